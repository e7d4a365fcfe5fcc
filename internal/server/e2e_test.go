package server

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http/httptest"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	ddbtypes "github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	s3types "github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"ruststack/internal/config"
)

// e2eClients builds real SDK clients pointed at an emulator instance
// running behind httptest.
func e2eClients(t *testing.T) (*s3.Client, *dynamodb.Client) {
	t.Helper()
	srv := httptest.NewServer(New(config.Default(), zap.NewNop()).Handler())
	t.Cleanup(srv.Close)

	awsCfg := aws.Config{
		Region:      "us-east-1",
		Credentials: credentials.NewStaticCredentialsProvider("test", "test", ""),
	}
	s3Client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		o.BaseEndpoint = aws.String(srv.URL)
		o.UsePathStyle = true
	})
	ddbClient := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		o.BaseEndpoint = aws.String(srv.URL)
	})
	return s3Client, ddbClient
}

func TestE2ES3ObjectLifecycle(t *testing.T) {
	client, _ := e2eClients(t)
	ctx := context.Background()

	_, err := client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String("e2e")})
	require.NoError(t, err)

	payload := []byte("hello through the real sdk")
	_, err = client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:      aws.String("e2e"),
		Key:         aws.String("docs/hello.txt"),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String("text/plain"),
		Metadata:    map[string]string{"origin": "e2e"},
	})
	require.NoError(t, err)

	got, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String("e2e"),
		Key:    aws.String("docs/hello.txt"),
	})
	require.NoError(t, err)
	body, err := io.ReadAll(got.Body)
	require.NoError(t, err)
	got.Body.Close()
	assert.Equal(t, payload, body)
	sum := md5.Sum(payload)
	assert.Equal(t, `"`+hex.EncodeToString(sum[:])+`"`, aws.ToString(got.ETag))
	assert.Equal(t, "text/plain", aws.ToString(got.ContentType))
	assert.Equal(t, "e2e", got.Metadata["origin"])

	list, err := client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:    aws.String("e2e"),
		Delimiter: aws.String("/"),
	})
	require.NoError(t, err)
	require.Len(t, list.CommonPrefixes, 1)
	assert.Equal(t, "docs/", aws.ToString(list.CommonPrefixes[0].Prefix))

	_, err = client.DeleteObject(ctx, &s3.DeleteObjectInput{
		Bucket: aws.String("e2e"),
		Key:    aws.String("docs/hello.txt"),
	})
	require.NoError(t, err)
	_, err = client.DeleteBucket(ctx, &s3.DeleteBucketInput{Bucket: aws.String("e2e")})
	require.NoError(t, err)
}

func TestE2ES3Multipart(t *testing.T) {
	client, _ := e2eClients(t)
	ctx := context.Background()

	_, err := client.CreateBucket(ctx, &s3.CreateBucketInput{Bucket: aws.String("mp")})
	require.NoError(t, err)

	create, err := client.CreateMultipartUpload(ctx, &s3.CreateMultipartUploadInput{
		Bucket: aws.String("mp"),
		Key:    aws.String("assembled"),
	})
	require.NoError(t, err)

	parts := [][]byte{[]byte("part1"), []byte("part2")}
	var completed []s3types.CompletedPart
	for i, data := range parts {
		up, err := client.UploadPart(ctx, &s3.UploadPartInput{
			Bucket:     aws.String("mp"),
			Key:        aws.String("assembled"),
			UploadId:   create.UploadId,
			PartNumber: aws.Int32(int32(i + 1)),
			Body:       bytes.NewReader(data),
		})
		require.NoError(t, err)
		completed = append(completed, s3types.CompletedPart{
			PartNumber: aws.Int32(int32(i + 1)),
			ETag:       up.ETag,
		})
	}

	done, err := client.CompleteMultipartUpload(ctx, &s3.CompleteMultipartUploadInput{
		Bucket:          aws.String("mp"),
		Key:             aws.String("assembled"),
		UploadId:        create.UploadId,
		MultipartUpload: &s3types.CompletedMultipartUpload{Parts: completed},
	})
	require.NoError(t, err)

	var digests []byte
	for _, data := range parts {
		sum := md5.Sum(data)
		digests = append(digests, sum[:]...)
	}
	outer := md5.Sum(digests)
	assert.Equal(t, fmt.Sprintf(`"%s-2"`, hex.EncodeToString(outer[:])), aws.ToString(done.ETag))

	got, err := client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String("mp"),
		Key:    aws.String("assembled"),
	})
	require.NoError(t, err)
	body, err := io.ReadAll(got.Body)
	require.NoError(t, err)
	got.Body.Close()
	assert.Equal(t, []byte("part1part2"), body)
}

func TestE2EDynamoDBQueryAndUpdate(t *testing.T) {
	_, client := e2eClients(t)
	ctx := context.Background()

	_, err := client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String("Orders"),
		AttributeDefinitions: []ddbtypes.AttributeDefinition{
			{AttributeName: aws.String("customerId"), AttributeType: ddbtypes.ScalarAttributeTypeS},
			{AttributeName: aws.String("orderId"), AttributeType: ddbtypes.ScalarAttributeTypeS},
		},
		KeySchema: []ddbtypes.KeySchemaElement{
			{AttributeName: aws.String("customerId"), KeyType: ddbtypes.KeyTypeHash},
			{AttributeName: aws.String("orderId"), KeyType: ddbtypes.KeyTypeRange},
		},
		BillingMode: ddbtypes.BillingModePayPerRequest,
	})
	require.NoError(t, err)

	for i := 1; i <= 5; i++ {
		item, err := attributevalue.MarshalMap(map[string]any{
			"customerId": "cust1",
			"orderId":    fmt.Sprintf("order%03d", i),
			"total":      i * 10,
		})
		require.NoError(t, err)
		_, err = client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName: aws.String("Orders"),
			Item:      item,
		})
		require.NoError(t, err)
	}

	out, err := client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String("Orders"),
		KeyConditionExpression: aws.String("customerId = :c AND orderId BETWEEN :lo AND :hi"),
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
			":c":  &ddbtypes.AttributeValueMemberS{Value: "cust1"},
			":lo": &ddbtypes.AttributeValueMemberS{Value: "order002"},
			":hi": &ddbtypes.AttributeValueMemberS{Value: "order004"},
		},
	})
	require.NoError(t, err)
	require.Equal(t, int32(3), out.Count)
	var ids []string
	for _, item := range out.Items {
		var row struct {
			OrderID string `dynamodbav:"orderId"`
		}
		require.NoError(t, attributevalue.UnmarshalMap(item, &row))
		ids = append(ids, row.OrderID)
	}
	assert.Equal(t, []string{"order002", "order003", "order004"}, ids)

	updated, err := client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String("Orders"),
		Key: map[string]ddbtypes.AttributeValue{
			"customerId": &ddbtypes.AttributeValueMemberS{Value: "cust1"},
			"orderId":    &ddbtypes.AttributeValueMemberS{Value: "order001"},
		},
		UpdateExpression: aws.String("SET total = total + :inc"),
		ExpressionAttributeValues: map[string]ddbtypes.AttributeValue{
			":inc": &ddbtypes.AttributeValueMemberN{Value: "5"},
		},
		ReturnValues: ddbtypes.ReturnValueAllNew,
	})
	require.NoError(t, err)
	total, ok := updated.Attributes["total"].(*ddbtypes.AttributeValueMemberN)
	require.True(t, ok)
	assert.Equal(t, "15", total.Value)
}

func TestE2EDynamoDBConditionalFailure(t *testing.T) {
	_, client := e2eClients(t)
	ctx := context.Background()

	_, err := client.CreateTable(ctx, &dynamodb.CreateTableInput{
		TableName: aws.String("Users"),
		AttributeDefinitions: []ddbtypes.AttributeDefinition{
			{AttributeName: aws.String("id"), AttributeType: ddbtypes.ScalarAttributeTypeS},
		},
		KeySchema: []ddbtypes.KeySchemaElement{
			{AttributeName: aws.String("id"), KeyType: ddbtypes.KeyTypeHash},
		},
	})
	require.NoError(t, err)

	put := func() error {
		_, err := client.PutItem(ctx, &dynamodb.PutItemInput{
			TableName:           aws.String("Users"),
			Item:                map[string]ddbtypes.AttributeValue{"id": &ddbtypes.AttributeValueMemberS{Value: "u1"}},
			ConditionExpression: aws.String("attribute_not_exists(id)"),
		})
		return err
	}
	require.NoError(t, put())

	err = put()
	require.Error(t, err)
	var conditionFailed *ddbtypes.ConditionalCheckFailedException
	assert.True(t, errors.As(err, &conditionFailed), "want ConditionalCheckFailedException, got %v", err)
}
