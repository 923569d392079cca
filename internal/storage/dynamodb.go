package storage

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/org/feedbackvault/pkg/models"
)

// DynamoDB attribute names. They match the items written by the Node.js Lambda.
const (
	attrID        = "id"
	attrRating    = "rating"
	attrComment   = "comment"
	attrTimestamp = "timestamp"
	attrUserAgent = "userAgent"
)

// DynamoAPI is the subset of the DynamoDB client the backend uses.
type DynamoAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// DynamoConfig describes how to reach the feedback table.
type DynamoConfig struct {
	Table     string
	Region    string
	Endpoint  string // optional, e.g. DynamoDB Local
	AccessKey string // optional static credentials
	SecretKey string
}

// DynamoBackend is a Store backed by a DynamoDB table with partition key "id".
type DynamoBackend struct {
	client DynamoAPI
	table  string
}

// NewDynamoBackend builds a DynamoDB client from the default AWS config chain.
func NewDynamoBackend(ctx context.Context, cfg DynamoConfig) (*DynamoBackend, error) {
	if cfg.Table == "" {
		return nil, fmt.Errorf("dynamodb table name is required")
	}
	var opts []func(*config.LoadOptions) error
	if cfg.Region != "" {
		opts = append(opts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKey != "" {
		opts = append(opts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKey, cfg.SecretKey, "")))
	}
	awsCfg, err := config.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("loading aws config: %w", err)
	}
	client := dynamodb.NewFromConfig(awsCfg, func(o *dynamodb.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		}
	})
	return NewDynamoBackendWithClient(client, cfg.Table), nil
}

// NewDynamoBackendWithClient wraps an existing client.
func NewDynamoBackendWithClient(client DynamoAPI, table string) *DynamoBackend {
	return &DynamoBackend{client: client, table: table}
}

func (d *DynamoBackend) Put(ctx context.Context, rec *models.Feedback) error {
	_, err := d.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.table),
		Item:      encodeItem(rec),
	})
	if err != nil {
		return fmt.Errorf("putting feedback item: %w", err)
	}
	return nil
}

func (d *DynamoBackend) Get(ctx context.Context, id string) (*models.Feedback, error) {
	out, err := d.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(d.table),
		Key:            itemKey(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("getting feedback item: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, ErrNotFound
	}
	return decodeItem(out.Item)
}

func (d *DynamoBackend) Delete(ctx context.Context, id string) error {
	_, err := d.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(d.table),
		Key:       itemKey(id),
	})
	if err != nil {
		return fmt.Errorf("deleting feedback item: %w", err)
	}
	return nil
}

func (d *DynamoBackend) Close() {}

func itemKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		attrID: &types.AttributeValueMemberS{Value: id},
	}
}

func encodeItem(rec *models.Feedback) map[string]types.AttributeValue {
	var rating types.AttributeValue = &types.AttributeValueMemberS{Value: rec.Rating.Value}
	if rec.Rating.Numeric {
		rating = &types.AttributeValueMemberN{Value: rec.Rating.Value}
	}
	return map[string]types.AttributeValue{
		attrID:        &types.AttributeValueMemberS{Value: rec.ID},
		attrRating:    rating,
		attrComment:   &types.AttributeValueMemberS{Value: rec.Comment},
		attrTimestamp: &types.AttributeValueMemberS{Value: rec.Timestamp},
		attrUserAgent: &types.AttributeValueMemberS{Value: rec.UserAgent},
	}
}

func decodeItem(item map[string]types.AttributeValue) (*models.Feedback, error) {
	rec := &models.Feedback{
		ID:        stringAttr(item, attrID),
		Comment:   stringAttr(item, attrComment),
		Timestamp: stringAttr(item, attrTimestamp),
		UserAgent: stringAttr(item, attrUserAgent),
	}
	switch v := item[attrRating].(type) {
	case *types.AttributeValueMemberN:
		rec.Rating = models.NumericRating(v.Value)
	case *types.AttributeValueMemberS:
		rec.Rating = models.TextRating(v.Value)
	case nil:
	default:
		return nil, fmt.Errorf("feedback item %q: unexpected rating attribute %T", rec.ID, v)
	}
	return rec, nil
}

func stringAttr(item map[string]types.AttributeValue, name string) string {
	if v, ok := item[name].(*types.AttributeValueMemberS); ok {
		return v.Value
	}
	return ""
}
