package dynamo

import (
	"fmt"
	"regexp"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"ruststack/internal/dynamo/attrvalue"
)

var tableNameRe = regexp.MustCompile(`^[a-zA-Z0-9_.-]{3,255}$`)

const defaultListTablesLimit = 100

// Service is the document store engine. A read-write mutex guards the table
// registry; each table carries its own lock for item operations, so traffic
// against different tables never serializes.
type Service struct {
	mu     sync.RWMutex
	tables map[string]*table

	logger      *zap.Logger
	strictLimit bool
	now         func() time.Time
}

// NewService builds an empty document store. With strictLimit set, Query and
// Scan apply Limit before filter expressions, trading the friendlier
// post-filter default for provider-faithful pagination.
func NewService(logger *zap.Logger, strictLimit bool) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		tables:      make(map[string]*table),
		logger:      logger,
		strictLimit: strictLimit,
		now:         time.Now,
	}
}

// CreateTable registers a new table. Tables are ACTIVE immediately: there is
// no asynchronous provisioning to wait for.
func (s *Service) CreateTable(input *CreateTableInput) (*TableDescription, error) {
	if !tableNameRe.MatchString(input.TableName) {
		return nil, errValidation("TableName must match %s", tableNameRe)
	}
	schema, err := parseKeySchema(input.KeySchema)
	if err != nil {
		return nil, errValidation("invalid KeySchema: %v", err)
	}

	declared := make(map[string]string, len(input.AttributeDefinitions))
	for _, def := range input.AttributeDefinitions {
		if _, dup := declared[def.AttributeName]; dup {
			return nil, errValidation("duplicate attribute definition for %s", def.AttributeName)
		}
		declared[def.AttributeName] = def.AttributeType
	}

	used := map[string]bool{}
	requireDeclared := func(scope, attr string) error {
		if _, ok := declared[attr]; !ok {
			return fmt.Errorf("%s key attribute %s is not listed in AttributeDefinitions", scope, attr)
		}
		used[attr] = true
		return nil
	}
	for _, attr := range schema.attributes() {
		if err := requireDeclared("table", attr); err != nil {
			return nil, errValidation("%v", err)
		}
	}

	indexes := make(map[string]*index, len(input.GlobalSecondaryIndexes)+len(input.LocalSecondaryIndexes))
	addIndex := func(def SecondaryIndex, global bool) error {
		if def.IndexName == "" || !tableNameRe.MatchString(def.IndexName) {
			return fmt.Errorf("invalid index name %q", def.IndexName)
		}
		if _, dup := indexes[def.IndexName]; dup {
			return fmt.Errorf("duplicate index name %s", def.IndexName)
		}
		ixSchema, err := parseKeySchema(def.KeySchema)
		if err != nil {
			return fmt.Errorf("index %s: %v", def.IndexName, err)
		}
		if !global {
			if ixSchema.partition != schema.partition {
				return fmt.Errorf("local index %s must share the table partition key", def.IndexName)
			}
			if ixSchema.sort == "" {
				return fmt.Errorf("local index %s requires a RANGE key", def.IndexName)
			}
		}
		for _, attr := range ixSchema.attributes() {
			if err := requireDeclared("index "+def.IndexName, attr); err != nil {
				return err
			}
		}
		proj := Projection{ProjectionType: "ALL"}
		if def.Projection != nil && def.Projection.ProjectionType != "" {
			proj = *def.Projection
		}
		if proj.ProjectionType == "INCLUDE" && len(proj.NonKeyAttributes) == 0 {
			return fmt.Errorf("index %s: INCLUDE projection requires NonKeyAttributes", def.IndexName)
		}
		indexes[def.IndexName] = &index{
			name:       def.IndexName,
			global:     global,
			schema:     ixSchema,
			projection: proj,
			members:    make(map[string]map[string]struct{}),
		}
		return nil
	}
	for _, def := range input.GlobalSecondaryIndexes {
		if err := addIndex(def, true); err != nil {
			return nil, errValidation("%v", err)
		}
	}
	for _, def := range input.LocalSecondaryIndexes {
		if err := addIndex(def, false); err != nil {
			return nil, errValidation("%v", err)
		}
	}
	for attr := range declared {
		if !used[attr] {
			return nil, errValidation("attribute %s is defined but not used by any key schema", attr)
		}
	}

	var throughput ProvisionedThroughput
	if input.ProvisionedThroughput != nil {
		throughput = *input.ProvisionedThroughput
	}
	billing := input.BillingMode
	if billing == "" {
		billing = "PROVISIONED"
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.tables[input.TableName]; exists {
		return nil, errTableExists(input.TableName)
	}
	t := &table{
		name:       input.TableName,
		schema:     schema,
		attrTypes:  declared,
		attrDefs:   input.AttributeDefinitions,
		keySchema:  input.KeySchema,
		gsis:       input.GlobalSecondaryIndexes,
		lsis:       input.LocalSecondaryIndexes,
		throughput: throughput,
		billing:    billing,
		createdAt:  s.now(),
		items:      make(map[string]attrvalue.Item),
		indexes:    indexes,
	}
	s.tables[input.TableName] = t

	s.logger.Info("table created",
		zap.String("table", t.name),
		zap.Int("indexes", len(indexes)),
	)
	return s.describeLocked(t, statusActive), nil
}

// DeleteTable removes a table and everything in it.
func (s *Service) DeleteTable(name string) (*TableDescription, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tables[name]
	if !ok {
		return nil, errTableNotFound(name)
	}
	delete(s.tables, name)

	s.logger.Info("table deleted", zap.String("table", name))
	return s.describeLocked(t, statusDeleting), nil
}

// DescribeTable reports schema and live item counts.
func (s *Service) DescribeTable(name string) (*TableDescription, error) {
	t, err := s.lookup(name)
	if err != nil {
		return nil, err
	}
	return s.describeLocked(t, statusActive), nil
}

// ListTables pages through table names in lexicographic order.
func (s *Service) ListTables(input *ListTablesInput) (*ListTablesOutput, error) {
	limit := defaultListTablesLimit
	if input.Limit != nil {
		if *input.Limit < 1 {
			return nil, errValidation("Limit must be at least 1")
		}
		limit = int(*input.Limit)
	}

	s.mu.RLock()
	names := make([]string, 0, len(s.tables))
	for name := range s.tables {
		names = append(names, name)
	}
	s.mu.RUnlock()
	sort.Strings(names)

	start := 0
	if input.ExclusiveStartTableName != "" {
		for i, name := range names {
			if name == input.ExclusiveStartTableName {
				start = i + 1
				break
			}
		}
	}

	out := &ListTablesOutput{TableNames: []string{}}
	for i := start; i < len(names) && len(out.TableNames) < limit; i++ {
		out.TableNames = append(out.TableNames, names[i])
	}
	if start+len(out.TableNames) < len(names) {
		out.LastEvaluatedTableName = out.TableNames[len(out.TableNames)-1]
	}
	return out, nil
}

func (s *Service) lookup(name string) (*table, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	t, ok := s.tables[name]
	if !ok {
		return nil, errTableNotFound(name)
	}
	return t, nil
}

// describeLocked renders a TableDescription snapshot. The table lock is
// taken briefly for the item count.
func (s *Service) describeLocked(t *table, status string) *TableDescription {
	t.mu.RLock()
	count := int64(len(t.items))
	indexCounts := make(map[string]int64, len(t.indexes))
	for name, ix := range t.indexes {
		var n int64
		for _, set := range ix.members {
			n += int64(len(set))
		}
		indexCounts[name] = n
	}
	t.mu.RUnlock()

	desc := &TableDescription{
		TableName:            t.name,
		TableStatus:          status,
		CreationDateTime:     float64(t.createdAt.UnixMilli()) / 1000.0,
		AttributeDefinitions: t.attrDefs,
		KeySchema:            t.keySchema,
		ItemCount:            count,
		TableArn:             "arn:aws:dynamodb:us-east-1:000000000000:table/" + t.name,
		ProvisionedThroughput: &ThroughputDescription{
			ReadCapacityUnits:  t.throughput.ReadCapacityUnits,
			WriteCapacityUnits: t.throughput.WriteCapacityUnits,
		},
	}
	if t.billing != "" {
		desc.BillingModeSummary = &BillingModeSummary{BillingMode: t.billing}
	}
	for _, def := range t.gsis {
		desc.GlobalSecondaryIndexes = append(desc.GlobalSecondaryIndexes, indexDescription(def, statusActive, indexCounts[def.IndexName]))
	}
	for _, def := range t.lsis {
		desc.LocalSecondaryIndexes = append(desc.LocalSecondaryIndexes, indexDescription(def, "", indexCounts[def.IndexName]))
	}
	return desc
}

func indexDescription(def SecondaryIndex, status string, count int64) SecondaryIndexDescription {
	desc := SecondaryIndexDescription{
		IndexName:   def.IndexName,
		KeySchema:   def.KeySchema,
		Projection:  def.Projection,
		IndexStatus: status,
		ItemCount:   count,
	}
	if desc.Projection == nil {
		desc.Projection = &Projection{ProjectionType: "ALL"}
	}
	return desc
}
