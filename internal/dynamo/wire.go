package dynamo

import "ruststack/internal/dynamo/attrvalue"

// Request and response shapes for the x-amz-json-1.0 protocol. Field names
// follow the service's PascalCase JSON casing exactly; absent optional
// members are omitted from responses the same way the provider omits them.

type CreateTableInput struct {
	TableName              string                 `json:"TableName" validate:"required"`
	AttributeDefinitions   []AttributeDefinition  `json:"AttributeDefinitions" validate:"required,min=1,dive"`
	KeySchema              []KeySchemaElement     `json:"KeySchema" validate:"required,min=1,max=2,dive"`
	GlobalSecondaryIndexes []SecondaryIndex       `json:"GlobalSecondaryIndexes,omitempty" validate:"omitempty,dive"`
	LocalSecondaryIndexes  []SecondaryIndex       `json:"LocalSecondaryIndexes,omitempty" validate:"omitempty,dive"`
	BillingMode            string                 `json:"BillingMode,omitempty" validate:"omitempty,oneof=PROVISIONED PAY_PER_REQUEST"`
	ProvisionedThroughput  *ProvisionedThroughput `json:"ProvisionedThroughput,omitempty"`
}

type CreateTableOutput struct {
	TableDescription *TableDescription `json:"TableDescription"`
}

type DeleteTableInput struct {
	TableName string `json:"TableName" validate:"required"`
}

type DeleteTableOutput struct {
	TableDescription *TableDescription `json:"TableDescription"`
}

type DescribeTableInput struct {
	TableName string `json:"TableName" validate:"required"`
}

type DescribeTableOutput struct {
	Table *TableDescription `json:"Table"`
}

type ListTablesInput struct {
	ExclusiveStartTableName string `json:"ExclusiveStartTableName,omitempty"`
	Limit                   *int32 `json:"Limit,omitempty"`
}

type ListTablesOutput struct {
	TableNames             []string `json:"TableNames"`
	LastEvaluatedTableName string   `json:"LastEvaluatedTableName,omitempty"`
}

type TableDescription struct {
	TableName              string                      `json:"TableName"`
	TableStatus            string                      `json:"TableStatus"`
	CreationDateTime       float64                     `json:"CreationDateTime"`
	AttributeDefinitions   []AttributeDefinition       `json:"AttributeDefinitions"`
	KeySchema              []KeySchemaElement          `json:"KeySchema"`
	ItemCount              int64                       `json:"ItemCount"`
	TableSizeBytes         int64                       `json:"TableSizeBytes"`
	TableArn               string                      `json:"TableArn"`
	ProvisionedThroughput  *ThroughputDescription      `json:"ProvisionedThroughput,omitempty"`
	BillingModeSummary     *BillingModeSummary         `json:"BillingModeSummary,omitempty"`
	GlobalSecondaryIndexes []SecondaryIndexDescription `json:"GlobalSecondaryIndexes,omitempty"`
	LocalSecondaryIndexes  []SecondaryIndexDescription `json:"LocalSecondaryIndexes,omitempty"`
}

type ThroughputDescription struct {
	ReadCapacityUnits      int64 `json:"ReadCapacityUnits"`
	WriteCapacityUnits     int64 `json:"WriteCapacityUnits"`
	NumberOfDecreasesToday int64 `json:"NumberOfDecreasesToday"`
}

type BillingModeSummary struct {
	BillingMode string `json:"BillingMode"`
}

type SecondaryIndexDescription struct {
	IndexName   string             `json:"IndexName"`
	KeySchema   []KeySchemaElement `json:"KeySchema"`
	Projection  *Projection        `json:"Projection,omitempty"`
	IndexStatus string             `json:"IndexStatus,omitempty"`
	ItemCount   int64              `json:"ItemCount"`
}

type ConsumedCapacity struct {
	TableName     string  `json:"TableName"`
	CapacityUnits float64 `json:"CapacityUnits"`
}

type PutItemInput struct {
	TableName                 string                     `json:"TableName" validate:"required"`
	Item                      attrvalue.Item             `json:"Item" validate:"required"`
	ConditionExpression       string                     `json:"ConditionExpression,omitempty"`
	ExpressionAttributeNames  map[string]string          `json:"ExpressionAttributeNames,omitempty"`
	ExpressionAttributeValues map[string]attrvalue.Value `json:"ExpressionAttributeValues,omitempty"`
	ReturnValues              string                     `json:"ReturnValues,omitempty" validate:"omitempty,oneof=NONE ALL_OLD"`
	ReturnConsumedCapacity    string                     `json:"ReturnConsumedCapacity,omitempty"`
}

type PutItemOutput struct {
	Attributes       attrvalue.Item    `json:"Attributes,omitempty"`
	ConsumedCapacity *ConsumedCapacity `json:"ConsumedCapacity,omitempty"`
}

type GetItemInput struct {
	TableName                string            `json:"TableName" validate:"required"`
	Key                      attrvalue.Item    `json:"Key" validate:"required"`
	ProjectionExpression     string            `json:"ProjectionExpression,omitempty"`
	ExpressionAttributeNames map[string]string `json:"ExpressionAttributeNames,omitempty"`
	ConsistentRead           *bool             `json:"ConsistentRead,omitempty"`
	ReturnConsumedCapacity   string            `json:"ReturnConsumedCapacity,omitempty"`
}

type GetItemOutput struct {
	Item             attrvalue.Item    `json:"Item,omitempty"`
	ConsumedCapacity *ConsumedCapacity `json:"ConsumedCapacity,omitempty"`
}

type UpdateItemInput struct {
	TableName                 string                     `json:"TableName" validate:"required"`
	Key                       attrvalue.Item             `json:"Key" validate:"required"`
	UpdateExpression          string                     `json:"UpdateExpression,omitempty"`
	ConditionExpression       string                     `json:"ConditionExpression,omitempty"`
	ExpressionAttributeNames  map[string]string          `json:"ExpressionAttributeNames,omitempty"`
	ExpressionAttributeValues map[string]attrvalue.Value `json:"ExpressionAttributeValues,omitempty"`
	ReturnValues              string                     `json:"ReturnValues,omitempty" validate:"omitempty,oneof=NONE ALL_OLD ALL_NEW UPDATED_OLD UPDATED_NEW"`
	ReturnConsumedCapacity    string                     `json:"ReturnConsumedCapacity,omitempty"`
}

type UpdateItemOutput struct {
	Attributes       attrvalue.Item    `json:"Attributes,omitempty"`
	ConsumedCapacity *ConsumedCapacity `json:"ConsumedCapacity,omitempty"`
}

type DeleteItemInput struct {
	TableName                 string                     `json:"TableName" validate:"required"`
	Key                       attrvalue.Item             `json:"Key" validate:"required"`
	ConditionExpression       string                     `json:"ConditionExpression,omitempty"`
	ExpressionAttributeNames  map[string]string          `json:"ExpressionAttributeNames,omitempty"`
	ExpressionAttributeValues map[string]attrvalue.Value `json:"ExpressionAttributeValues,omitempty"`
	ReturnValues              string                     `json:"ReturnValues,omitempty" validate:"omitempty,oneof=NONE ALL_OLD"`
	ReturnConsumedCapacity    string                     `json:"ReturnConsumedCapacity,omitempty"`
}

type DeleteItemOutput struct {
	Attributes       attrvalue.Item    `json:"Attributes,omitempty"`
	ConsumedCapacity *ConsumedCapacity `json:"ConsumedCapacity,omitempty"`
}

type QueryInput struct {
	TableName                 string                     `json:"TableName" validate:"required"`
	IndexName                 string                     `json:"IndexName,omitempty"`
	KeyConditionExpression    string                     `json:"KeyConditionExpression,omitempty"`
	FilterExpression          string                     `json:"FilterExpression,omitempty"`
	ProjectionExpression      string                     `json:"ProjectionExpression,omitempty"`
	Select                    string                     `json:"Select,omitempty"`
	ExpressionAttributeNames  map[string]string          `json:"ExpressionAttributeNames,omitempty"`
	ExpressionAttributeValues map[string]attrvalue.Value `json:"ExpressionAttributeValues,omitempty"`
	Limit                     *int32                     `json:"Limit,omitempty"`
	ScanIndexForward          *bool                      `json:"ScanIndexForward,omitempty"`
	ExclusiveStartKey         attrvalue.Item             `json:"ExclusiveStartKey,omitempty"`
	ConsistentRead            *bool                      `json:"ConsistentRead,omitempty"`
	ReturnConsumedCapacity    string                     `json:"ReturnConsumedCapacity,omitempty"`
}

type QueryOutput struct {
	Items            []attrvalue.Item  `json:"Items,omitempty"`
	Count            int               `json:"Count"`
	ScannedCount     int               `json:"ScannedCount"`
	LastEvaluatedKey attrvalue.Item    `json:"LastEvaluatedKey,omitempty"`
	ConsumedCapacity *ConsumedCapacity `json:"ConsumedCapacity,omitempty"`
}

type ScanInput struct {
	TableName                 string                     `json:"TableName" validate:"required"`
	IndexName                 string                     `json:"IndexName,omitempty"`
	FilterExpression          string                     `json:"FilterExpression,omitempty"`
	ProjectionExpression      string                     `json:"ProjectionExpression,omitempty"`
	Select                    string                     `json:"Select,omitempty"`
	ExpressionAttributeNames  map[string]string          `json:"ExpressionAttributeNames,omitempty"`
	ExpressionAttributeValues map[string]attrvalue.Value `json:"ExpressionAttributeValues,omitempty"`
	Limit                     *int32                     `json:"Limit,omitempty"`
	ExclusiveStartKey         attrvalue.Item             `json:"ExclusiveStartKey,omitempty"`
	ConsistentRead            *bool                      `json:"ConsistentRead,omitempty"`
	ReturnConsumedCapacity    string                     `json:"ReturnConsumedCapacity,omitempty"`
}

type ScanOutput struct {
	Items            []attrvalue.Item  `json:"Items,omitempty"`
	Count            int               `json:"Count"`
	ScannedCount     int               `json:"ScannedCount"`
	LastEvaluatedKey attrvalue.Item    `json:"LastEvaluatedKey,omitempty"`
	ConsumedCapacity *ConsumedCapacity `json:"ConsumedCapacity,omitempty"`
}
