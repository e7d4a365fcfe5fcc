package dynamo

import (
	"sort"

	"ruststack/internal/dynamo/attrvalue"
	"ruststack/internal/dynamo/expression"
)

const selectCount = "COUNT"

// boundKeyCondition is a key condition bound to a concrete schema: the
// mandatory partition equality plus an optional sort-key restriction.
type boundKeyCondition struct {
	partition expression.KeyClause
	sort      *expression.KeyClause
}

// bindKeyCondition checks the parsed clauses against the queried schema: the
// partition attribute needs an equality clause, the optional second clause
// must address the sort attribute.
func bindKeyCondition(cond *expression.KeyCondition, schema keySchema) (*boundKeyCondition, error) {
	bound := &boundKeyCondition{}
	for i := range cond.Clauses {
		clause := cond.Clauses[i]
		switch clause.Path.Top() {
		case schema.partition:
			if clause.Op != "=" {
				return nil, errValidation("query key condition must use equality on the partition key %s", schema.partition)
			}
			if bound.partition.Op != "" {
				return nil, errValidation("duplicate key condition on partition key %s", schema.partition)
			}
			bound.partition = clause
		case schema.sort:
			if schema.sort == "" {
				break
			}
			if bound.sort != nil {
				return nil, errValidation("duplicate key condition on sort key %s", schema.sort)
			}
			bound.sort = &cond.Clauses[i]
		default:
			return nil, errValidation("key condition references %s, which is not a key attribute of the queried schema", clause.Path.Top())
		}
	}
	if bound.partition.Op == "" {
		return nil, errValidation("query key condition must constrain the partition key %s", schema.partition)
	}
	return bound, nil
}

func (b *boundKeyCondition) matches(item attrvalue.Item, schema keySchema) bool {
	pv, ok := item[schema.partition]
	if !ok || !expression.MatchKeyClause(b.partition, pv) {
		return false
	}
	if b.sort != nil {
		sv, ok := item[schema.sort]
		if !ok || !expression.MatchKeyClause(*b.sort, sv) {
			return false
		}
	}
	return true
}

// Query returns the items matching a key condition, in sort-key order,
// optionally through a secondary index.
func (s *Service) Query(input *QueryInput) (*QueryOutput, error) {
	t, err := s.lookup(input.TableName)
	if err != nil {
		return nil, err
	}
	if input.KeyConditionExpression == "" {
		return nil, errValidation("KeyConditionExpression is required")
	}
	ctx, err := exprContext(input.ExpressionAttributeNames, input.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	keyCond, err := expression.ParseKeyCondition(input.KeyConditionExpression, ctx)
	if err != nil {
		return nil, errValidation("invalid KeyConditionExpression: %v", err)
	}
	filter, projection, err := parseReadExpressions(input.FilterExpression, input.ProjectionExpression, ctx)
	if err != nil {
		return nil, err
	}
	limit, err := readLimit(input.Limit)
	if err != nil {
		return nil, err
	}

	t.mu.RLock()
	ix, schema, candidates, err := t.candidatesLocked(input.IndexName)
	if err != nil {
		t.mu.RUnlock()
		return nil, err
	}
	t.mu.RUnlock()

	bound, err := bindKeyCondition(keyCond, schema)
	if err != nil {
		return nil, err
	}

	matched := candidates[:0:0]
	for _, item := range candidates {
		if bound.matches(item, schema) {
			matched = append(matched, item)
		}
	}
	sortItems(matched, schema.sort, t)
	if input.ScanIndexForward != nil && !*input.ScanIndexForward {
		reverseItems(matched)
	}
	if len(input.ExclusiveStartKey) > 0 {
		matched, err = skipPastKey(matched, t, input.ExclusiveStartKey)
		if err != nil {
			return nil, err
		}
	}

	page := paginate(matched, filter, limit, s.strictLimit)
	out := &QueryOutput{
		Count:            len(page.items),
		ScannedCount:     page.scanned,
		ConsumedCapacity: consumedCapacity(input.ReturnConsumedCapacity, input.TableName),
	}
	if page.lastItem != nil {
		out.LastEvaluatedKey = t.keyFromItem(page.lastItem, ix)
	}
	if input.Select != selectCount {
		out.Items = renderItems(page.items, t, ix, projection)
	}
	return out, nil
}

// Scan walks every item of the table or index in deterministic key order.
func (s *Service) Scan(input *ScanInput) (*ScanOutput, error) {
	t, err := s.lookup(input.TableName)
	if err != nil {
		return nil, err
	}
	ctx, err := exprContext(input.ExpressionAttributeNames, input.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	filter, projection, err := parseReadExpressions(input.FilterExpression, input.ProjectionExpression, ctx)
	if err != nil {
		return nil, err
	}
	limit, err := readLimit(input.Limit)
	if err != nil {
		return nil, err
	}

	t.mu.RLock()
	ix, _, candidates, err := t.candidatesLocked(input.IndexName)
	if err != nil {
		t.mu.RUnlock()
		return nil, err
	}
	t.mu.RUnlock()

	sortItems(candidates, "", t)
	if len(input.ExclusiveStartKey) > 0 {
		candidates, err = skipPastKey(candidates, t, input.ExclusiveStartKey)
		if err != nil {
			return nil, err
		}
	}

	page := paginate(candidates, filter, limit, s.strictLimit)
	out := &ScanOutput{
		Count:            len(page.items),
		ScannedCount:     page.scanned,
		ConsumedCapacity: consumedCapacity(input.ReturnConsumedCapacity, input.TableName),
	}
	if page.lastItem != nil {
		out.LastEvaluatedKey = t.keyFromItem(page.lastItem, ix)
	}
	if input.Select != selectCount {
		out.Items = renderItems(page.items, t, ix, projection)
	}
	return out, nil
}

// candidatesLocked snapshots the item references to evaluate: the whole
// table, or the items reachable through a secondary index's membership map.
// Writers replace item maps wholesale, so the references stay consistent
// after the lock is released. Caller holds the read lock.
func (t *table) candidatesLocked(indexName string) (*index, keySchema, []attrvalue.Item, error) {
	if indexName == "" {
		items := make([]attrvalue.Item, 0, len(t.items))
		for _, item := range t.items {
			items = append(items, item)
		}
		return nil, t.schema, items, nil
	}
	ix, ok := t.indexByName(indexName)
	if !ok {
		return nil, keySchema{}, nil, errValidation("the table %s does not have the specified index: %s", t.name, indexName)
	}
	seen := make(map[string]struct{})
	var items []attrvalue.Item
	for _, pks := range ix.members {
		for pk := range pks {
			if _, dup := seen[pk]; dup {
				continue
			}
			seen[pk] = struct{}{}
			if item, ok := t.items[pk]; ok {
				items = append(items, item)
			}
		}
	}
	return ix, ix.schema, items, nil
}

func parseReadExpressions(filterExpr, projectionExpr string, ctx expression.Context) (*expression.ConditionNode, []expression.Path, error) {
	var filter *expression.ConditionNode
	var projection []expression.Path
	var err error
	if filterExpr != "" {
		filter, err = expression.ParseCondition(filterExpr, ctx)
		if err != nil {
			return nil, nil, errValidation("invalid FilterExpression: %v", err)
		}
	}
	if projectionExpr != "" {
		projection, err = expression.ParseProjection(projectionExpr, ctx)
		if err != nil {
			return nil, nil, errValidation("invalid ProjectionExpression: %v", err)
		}
	}
	return filter, projection, nil
}

func readLimit(limit *int32) (int, error) {
	if limit == nil {
		return 0, nil
	}
	if *limit < 1 {
		return 0, errValidation("Limit must be at least 1")
	}
	return int(*limit), nil
}

// sortItems orders items by sort attribute, falling back to the encoded
// primary key so pagination is stable even across equal sort values.
func sortItems(items []attrvalue.Item, sortAttr string, t *table) {
	sort.SliceStable(items, func(i, j int) bool {
		if sortAttr != "" {
			a, aok := items[i][sortAttr]
			b, bok := items[j][sortAttr]
			if aok && bok {
				if cmp, ok := a.Compare(b); ok && cmp != 0 {
					return cmp < 0
				}
			} else if aok != bok {
				return !aok
			}
		}
		ki, _ := t.primaryKey(items[i])
		kj, _ := t.primaryKey(items[j])
		return ki < kj
	})
}

func reverseItems(items []attrvalue.Item) {
	for i, j := 0, len(items)-1; i < j; i, j = i+1, j-1 {
		items[i], items[j] = items[j], items[i]
	}
}

// skipPastKey drops everything up to and including the item whose primary
// key matches the ExclusiveStartKey. An unknown start key restarts from the
// top rather than guessing a position.
func skipPastKey(items []attrvalue.Item, t *table, esk attrvalue.Item) ([]attrvalue.Item, error) {
	target, err := t.primaryKey(esk)
	if err != nil {
		return nil, errValidation("invalid ExclusiveStartKey: %v", err)
	}
	for i, item := range items {
		pk, err := t.primaryKey(item)
		if err != nil {
			continue
		}
		if pk == target {
			return items[i+1:], nil
		}
	}
	return items, nil
}

type pageResult struct {
	items    []attrvalue.Item
	scanned  int
	lastItem attrvalue.Item
}

// paginate applies the filter expression and Limit. The default order is
// filter first, then Limit over the survivors; strict mode instead windows
// the candidates by Limit before filtering, the way the real service pages.
func paginate(candidates []attrvalue.Item, filter *expression.ConditionNode, limit int, strict bool) pageResult {
	if strict && limit > 0 {
		window := candidates
		truncated := false
		if len(window) > limit {
			window = window[:limit]
			truncated = true
		}
		res := pageResult{scanned: len(window)}
		for _, item := range window {
			if filter == nil || expression.EvalCondition(filter, item) {
				res.items = append(res.items, item)
			}
		}
		if truncated {
			res.lastItem = window[len(window)-1]
		}
		return res
	}

	res := pageResult{scanned: len(candidates)}
	kept := candidates
	if filter != nil {
		kept = candidates[:0:0]
		for _, item := range candidates {
			if expression.EvalCondition(filter, item) {
				kept = append(kept, item)
			}
		}
	}
	if limit > 0 && len(kept) > limit {
		kept = kept[:limit]
		res.lastItem = kept[len(kept)-1]
	}
	res.items = kept
	return res
}

// renderItems clones the page for the response, applying the index
// projection and any projection expression.
func renderItems(items []attrvalue.Item, t *table, ix *index, projection []expression.Path) []attrvalue.Item {
	out := make([]attrvalue.Item, 0, len(items))
	for _, item := range items {
		rendered := t.applyIndexProjection(ix, item)
		if projection != nil {
			rendered = expression.Project(rendered, projection)
		} else {
			rendered = rendered.Clone()
		}
		out = append(out, rendered)
	}
	return out
}

// applyIndexProjection narrows an item to the attribute set a KEYS_ONLY or
// INCLUDE index exposes. Key attributes of both the table and the index are
// always present.
func (t *table) applyIndexProjection(ix *index, item attrvalue.Item) attrvalue.Item {
	if ix == nil || ix.projection.ProjectionType == "" || ix.projection.ProjectionType == "ALL" {
		return item
	}
	keep := make(map[string]struct{}, 4+len(ix.projection.NonKeyAttributes))
	for _, attr := range t.schema.attributes() {
		keep[attr] = struct{}{}
	}
	for _, attr := range ix.schema.attributes() {
		keep[attr] = struct{}{}
	}
	if ix.projection.ProjectionType == "INCLUDE" {
		for _, attr := range ix.projection.NonKeyAttributes {
			keep[attr] = struct{}{}
		}
	}
	out := attrvalue.Item{}
	for attr := range keep {
		if v, ok := item[attr]; ok {
			out[attr] = v
		}
	}
	return out
}
