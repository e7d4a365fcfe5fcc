// Package dynamo implements the DynamoDB-compatible document store: a table
// registry, a key-value item store with conditional writes, secondary index
// bookkeeping and the query/scan engine, all behind the x-amz-json-1.0 wire
// protocol.
package dynamo

import (
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"ruststack/internal/dynamo/attrvalue"
)

const (
	keyTypeHash  = "HASH"
	keyTypeRange = "RANGE"

	statusActive   = "ACTIVE"
	statusDeleting = "DELETING"
)

// AttributeDefinition declares the type of a key attribute.
type AttributeDefinition struct {
	AttributeName string `json:"AttributeName" validate:"required"`
	AttributeType string `json:"AttributeType" validate:"required,oneof=S N B"`
}

// KeySchemaElement binds an attribute to the HASH or RANGE role.
type KeySchemaElement struct {
	AttributeName string `json:"AttributeName" validate:"required"`
	KeyType       string `json:"KeyType" validate:"required,oneof=HASH RANGE"`
}

// Projection controls which attributes a secondary index exposes.
type Projection struct {
	ProjectionType   string   `json:"ProjectionType,omitempty" validate:"omitempty,oneof=ALL KEYS_ONLY INCLUDE"`
	NonKeyAttributes []string `json:"NonKeyAttributes,omitempty"`
}

// ProvisionedThroughput carries the declared capacity. The store does not
// meter capacity; the numbers are kept for table descriptions.
type ProvisionedThroughput struct {
	ReadCapacityUnits  int64 `json:"ReadCapacityUnits"`
	WriteCapacityUnits int64 `json:"WriteCapacityUnits"`
}

// SecondaryIndex describes a GSI or LSI as supplied at table creation.
type SecondaryIndex struct {
	IndexName             string                 `json:"IndexName" validate:"required"`
	KeySchema             []KeySchemaElement     `json:"KeySchema" validate:"required,min=1,max=2,dive"`
	Projection            *Projection            `json:"Projection,omitempty"`
	ProvisionedThroughput *ProvisionedThroughput `json:"ProvisionedThroughput,omitempty"`
}

// keySchema is a parsed key schema: the partition attribute plus an optional
// sort attribute.
type keySchema struct {
	partition string
	sort      string // empty when the schema is hash-only
}

func parseKeySchema(elems []KeySchemaElement) (keySchema, error) {
	var ks keySchema
	for _, e := range elems {
		switch e.KeyType {
		case keyTypeHash:
			if ks.partition != "" {
				return ks, fmt.Errorf("key schema declares more than one HASH attribute")
			}
			ks.partition = e.AttributeName
		case keyTypeRange:
			if ks.sort != "" {
				return ks, fmt.Errorf("key schema declares more than one RANGE attribute")
			}
			ks.sort = e.AttributeName
		default:
			return ks, fmt.Errorf("unknown key type %q", e.KeyType)
		}
	}
	if ks.partition == "" {
		return ks, fmt.Errorf("key schema declares no HASH attribute")
	}
	return ks, nil
}

func (ks keySchema) attributes() []string {
	if ks.sort == "" {
		return []string{ks.partition}
	}
	return []string{ks.partition, ks.sort}
}

// index is the runtime state of one secondary index: its schema plus the
// membership map from encoded index key to the primary keys of the items
// currently reachable through it.
type index struct {
	name       string
	global     bool
	schema     keySchema
	projection Projection
	members    map[string]map[string]struct{}
}

func (ix *index) add(indexKey, primaryKey string) {
	set, ok := ix.members[indexKey]
	if !ok {
		set = make(map[string]struct{})
		ix.members[indexKey] = set
	}
	set[primaryKey] = struct{}{}
}

func (ix *index) remove(indexKey, primaryKey string) {
	set, ok := ix.members[indexKey]
	if !ok {
		return
	}
	delete(set, primaryKey)
	if len(set) == 0 {
		delete(ix.members, indexKey)
	}
}

// table holds one table's schema and data. The mutex covers items and index
// membership together, so a conditional write and its index maintenance are
// one atomic step.
type table struct {
	mu sync.RWMutex

	name       string
	schema     keySchema
	attrTypes  map[string]string // declared key attribute types
	attrDefs   []AttributeDefinition
	keySchema  []KeySchemaElement
	gsis       []SecondaryIndex
	lsis       []SecondaryIndex
	throughput ProvisionedThroughput
	billing    string
	createdAt  time.Time

	items   map[string]attrvalue.Item
	indexes map[string]*index
}

// encodeKeyValues renders key attribute values into one unambiguous string:
// length-prefixed type-tagged segments. Numbers are normalized first so
// "1" and "1.0" address the same item.
func encodeKeyValues(vals ...attrvalue.Value) string {
	var b strings.Builder
	for _, v := range vals {
		var payload string
		switch v.Type {
		case attrvalue.TypeString:
			payload = v.S
		case attrvalue.TypeNumber:
			payload = attrvalue.NormalizeNumber(v.N)
		case attrvalue.TypeBinary:
			payload = string(v.B)
		}
		fmt.Fprintf(&b, "%s:%d:%s", v.Type, len(payload), payload)
	}
	return b.String()
}

// primaryKey encodes the item's table key. The item must carry every key
// attribute with its declared type.
func (t *table) primaryKey(item attrvalue.Item) (string, error) {
	vals := make([]attrvalue.Value, 0, 2)
	for _, attr := range t.schema.attributes() {
		v, ok := item[attr]
		if !ok {
			return "", fmt.Errorf("missing the key %s in the item", attr)
		}
		if string(v.Type) != t.attrTypes[attr] {
			return "", fmt.Errorf("key %s expected type %s but got %s", attr, t.attrTypes[attr], v.Type)
		}
		vals = append(vals, v)
	}
	return encodeKeyValues(vals...), nil
}

// indexKey encodes an item's key for one index. ok is false when the item
// lacks an index key attribute: such items simply do not appear in the
// index.
func (ix *index) indexKey(item attrvalue.Item) (string, bool) {
	vals := make([]attrvalue.Value, 0, 2)
	for _, attr := range ix.schema.attributes() {
		v, ok := item[attr]
		if !ok {
			return "", false
		}
		vals = append(vals, v)
	}
	return encodeKeyValues(vals...), true
}

// reindex updates every index for one primary key transition. Caller holds
// the table lock.
func (t *table) reindex(primaryKey string, prev, next attrvalue.Item) {
	for _, ix := range t.indexes {
		if prev != nil {
			if key, ok := ix.indexKey(prev); ok {
				ix.remove(key, primaryKey)
			}
		}
		if next != nil {
			if key, ok := ix.indexKey(next); ok {
				ix.add(key, primaryKey)
			}
		}
	}
}

// validateItemKeyTypes rejects items whose declared key attributes (table or
// index) carry a type other than the declared one.
func (t *table) validateItemKeyTypes(item attrvalue.Item) error {
	for attr, declared := range t.attrTypes {
		v, ok := item[attr]
		if !ok {
			continue
		}
		if string(v.Type) != declared {
			return fmt.Errorf("attribute %s was declared %s but the item carries %s", attr, declared, v.Type)
		}
	}
	return nil
}

// sortedPrimaryKeys returns the items' encoded keys in lexicographic order,
// the deterministic order scans paginate in.
func (t *table) sortedPrimaryKeys() []string {
	keys := make([]string, 0, len(t.items))
	for k := range t.items {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// indexByName resolves a secondary index. Caller holds at least a read lock.
func (t *table) indexByName(name string) (*index, bool) {
	ix, ok := t.indexes[name]
	return ix, ok
}

// keyFromItem extracts the attributes a LastEvaluatedKey carries: the table
// key plus, for index queries, the index key attributes.
func (t *table) keyFromItem(item attrvalue.Item, ix *index) attrvalue.Item {
	out := attrvalue.Item{}
	for _, attr := range t.schema.attributes() {
		if v, ok := item[attr]; ok {
			out[attr] = v.Clone()
		}
	}
	if ix != nil {
		for _, attr := range ix.schema.attributes() {
			if v, ok := item[attr]; ok {
				out[attr] = v.Clone()
			}
		}
	}
	return out
}
