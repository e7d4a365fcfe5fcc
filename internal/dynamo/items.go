package dynamo

import (
	"ruststack/internal/dynamo/attrvalue"
	"ruststack/internal/dynamo/expression"
)

const (
	returnNone       = "NONE"
	returnAllOld     = "ALL_OLD"
	returnAllNew     = "ALL_NEW"
	returnUpdatedOld = "UPDATED_OLD"
	returnUpdatedNew = "UPDATED_NEW"
)

// exprContext builds the placeholder context shared by every expression in a
// request, validating the supplied values up front.
func exprContext(names map[string]string, values map[string]attrvalue.Value) (expression.Context, error) {
	for ref, v := range values {
		if err := v.Validate(); err != nil {
			return expression.Context{}, errValidation("ExpressionAttributeValues[%s]: %v", ref, err)
		}
	}
	return expression.Context{Names: names, Values: values}, nil
}

// parseCondition parses an optional condition expression.
func parseCondition(expr string, ctx expression.Context) (*expression.ConditionNode, error) {
	if expr == "" {
		return nil, nil
	}
	node, err := expression.ParseCondition(expr, ctx)
	if err != nil {
		return nil, errValidation("invalid ConditionExpression: %v", err)
	}
	return node, nil
}

// keyFromInput validates a Key map against the table schema and returns the
// encoded primary key. The map must carry exactly the key attributes.
func (t *table) keyFromInput(key attrvalue.Item) (string, error) {
	if len(key) != len(t.schema.attributes()) {
		return "", errValidation("the provided key element does not match the schema")
	}
	pk, err := t.primaryKey(key)
	if err != nil {
		return "", errValidation("the provided key element does not match the schema: %v", err)
	}
	return pk, nil
}

// validateItem runs the write-boundary checks on a full item: attribute
// values must be well formed and declared key attributes correctly typed.
func (t *table) validateItem(item attrvalue.Item) error {
	for name, v := range item {
		if name == "" {
			return errValidation("attribute names must not be empty")
		}
		if err := v.Validate(); err != nil {
			return errValidation("attribute %s: %v", name, err)
		}
	}
	if err := t.validateItemKeyTypes(item); err != nil {
		return errValidation("%v", err)
	}
	return nil
}

// PutItem writes a full item, replacing any existing item with the same key.
// The condition expression, when present, is evaluated against the current
// item under the table lock, so the check and the write are atomic.
func (s *Service) PutItem(input *PutItemInput) (*PutItemOutput, error) {
	t, err := s.lookup(input.TableName)
	if err != nil {
		return nil, err
	}
	if err := t.validateItem(input.Item); err != nil {
		return nil, err
	}
	pk, err := t.primaryKey(input.Item)
	if err != nil {
		return nil, errValidation("%v", err)
	}
	ctx, err := exprContext(input.ExpressionAttributeNames, input.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	cond, err := parseCondition(input.ConditionExpression, ctx)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	existing := t.items[pk]
	if cond != nil && !expression.EvalCondition(cond, existing) {
		return nil, errConditionFailed()
	}
	stored := input.Item.Clone()
	t.items[pk] = stored
	t.reindex(pk, existing, stored)

	out := &PutItemOutput{ConsumedCapacity: consumedCapacity(input.ReturnConsumedCapacity, input.TableName)}
	if input.ReturnValues == returnAllOld && existing != nil {
		out.Attributes = existing.Clone()
	}
	return out, nil
}

// GetItem reads one item by primary key. ConsistentRead is accepted and
// ignored: a single node has nothing weaker than strong consistency.
func (s *Service) GetItem(input *GetItemInput) (*GetItemOutput, error) {
	t, err := s.lookup(input.TableName)
	if err != nil {
		return nil, err
	}
	pk, err := t.keyFromInput(input.Key)
	if err != nil {
		return nil, err
	}
	ctx, err := exprContext(input.ExpressionAttributeNames, nil)
	if err != nil {
		return nil, err
	}
	var projection []expression.Path
	if input.ProjectionExpression != "" {
		projection, err = expression.ParseProjection(input.ProjectionExpression, ctx)
		if err != nil {
			return nil, errValidation("invalid ProjectionExpression: %v", err)
		}
	}

	t.mu.RLock()
	item := t.items[pk]
	if item != nil {
		item = item.Clone()
	}
	t.mu.RUnlock()

	out := &GetItemOutput{ConsumedCapacity: consumedCapacity(input.ReturnConsumedCapacity, input.TableName)}
	if item == nil {
		return out, nil
	}
	if projection != nil {
		item = expression.Project(item, projection)
	}
	out.Item = item
	return out, nil
}

// UpdateItem applies an update expression to the addressed item, creating it
// when absent. The read-modify-write runs under the table lock, which is
// what makes ADD-based counters safe under concurrency.
func (s *Service) UpdateItem(input *UpdateItemInput) (*UpdateItemOutput, error) {
	t, err := s.lookup(input.TableName)
	if err != nil {
		return nil, err
	}
	pk, err := t.keyFromInput(input.Key)
	if err != nil {
		return nil, err
	}
	ctx, err := exprContext(input.ExpressionAttributeNames, input.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	var upd *expression.UpdateExpression
	if input.UpdateExpression != "" {
		upd, err = expression.ParseUpdate(input.UpdateExpression, ctx)
		if err != nil {
			return nil, errValidation("invalid UpdateExpression: %v", err)
		}
		for _, path := range upd.Paths() {
			for _, attr := range t.schema.attributes() {
				if path.Top() == attr {
					return nil, errValidation("cannot update attribute %s: it is part of the key", attr)
				}
			}
		}
	}
	cond, err := parseCondition(input.ConditionExpression, ctx)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	existing := t.items[pk]
	if cond != nil && !expression.EvalCondition(cond, existing) {
		return nil, errConditionFailed()
	}

	base := existing
	if base == nil {
		base = input.Key.Clone()
	}
	applied := base
	var touched []string
	if upd != nil {
		applied, touched, err = expression.ApplyUpdate(upd, base)
		if err != nil {
			return nil, errValidation("%v", err)
		}
	}
	if err := t.validateItem(applied); err != nil {
		return nil, err
	}
	t.items[pk] = applied
	t.reindex(pk, existing, applied)

	out := &UpdateItemOutput{ConsumedCapacity: consumedCapacity(input.ReturnConsumedCapacity, input.TableName)}
	switch input.ReturnValues {
	case returnAllOld:
		if existing != nil {
			out.Attributes = existing.Clone()
		}
	case returnAllNew:
		out.Attributes = applied.Clone()
	case returnUpdatedOld:
		out.Attributes = pickAttributes(existing, touched)
	case returnUpdatedNew:
		out.Attributes = pickAttributes(applied, touched)
	}
	return out, nil
}

// DeleteItem removes an item. Deleting an absent item succeeds, unless a
// condition expression says otherwise.
func (s *Service) DeleteItem(input *DeleteItemInput) (*DeleteItemOutput, error) {
	t, err := s.lookup(input.TableName)
	if err != nil {
		return nil, err
	}
	pk, err := t.keyFromInput(input.Key)
	if err != nil {
		return nil, err
	}
	ctx, err := exprContext(input.ExpressionAttributeNames, input.ExpressionAttributeValues)
	if err != nil {
		return nil, err
	}
	cond, err := parseCondition(input.ConditionExpression, ctx)
	if err != nil {
		return nil, err
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	existing := t.items[pk]
	if cond != nil && !expression.EvalCondition(cond, existing) {
		return nil, errConditionFailed()
	}
	delete(t.items, pk)
	t.reindex(pk, existing, nil)

	out := &DeleteItemOutput{ConsumedCapacity: consumedCapacity(input.ReturnConsumedCapacity, input.TableName)}
	if input.ReturnValues == returnAllOld && existing != nil {
		out.Attributes = existing.Clone()
	}
	return out, nil
}

// pickAttributes projects the touched top-level attributes out of an item,
// for the UPDATED_OLD and UPDATED_NEW return modes.
func pickAttributes(item attrvalue.Item, names []string) attrvalue.Item {
	if item == nil || len(names) == 0 {
		return nil
	}
	out := attrvalue.Item{}
	for _, name := range names {
		if v, ok := item[name]; ok {
			out[name] = v.Clone()
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}

// consumedCapacity reports a fixed unit per request when the caller asked
// for capacity accounting. The store does not meter real capacity.
func consumedCapacity(mode, tableName string) *ConsumedCapacity {
	if mode == "" || mode == returnNone {
		return nil
	}
	return &ConsumedCapacity{TableName: tableName, CapacityUnits: 1}
}
