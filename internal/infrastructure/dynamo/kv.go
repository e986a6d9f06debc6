package dynamo

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/go-checkin-agent/internal/domain"
)

// kvAPI is the subset of *dynamodb.Client the store uses.
type kvAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Scan(ctx context.Context, in *dynamodb.ScanInput, optFns ...func(*dynamodb.Options)) (*dynamodb.ScanOutput, error)
}

// record is one row of the credentials table.
// ExpiresAt (unix seconds) doubles as the table's TTL attribute.
type record struct {
	Key       string    `dynamodbav:"record_key"`
	Value     []byte    `dynamodbav:"value"`
	ExpiresAt int64     `dynamodbav:"expires_at,omitempty"`
	UpdatedAt time.Time `dynamodbav:"updated_at"`
}

// KVStore provides key-value operations over the credentials table.
type KVStore struct {
	client    kvAPI
	tableName string
}

func NewKVStore(client kvAPI, tableName string) *KVStore {
	return &KVStore{client: client, tableName: tableName}
}

func (s *KVStore) Get(ctx context.Context, key string) ([]byte, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            strKey(attrKey, key),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, err
	}
	if out.Item == nil {
		return nil, fmt.Errorf("record %q: %w", key, domain.ErrNotFound)
	}
	var r record
	if err := attributevalue.UnmarshalMap(out.Item, &r); err != nil {
		return nil, fmt.Errorf("unmarshal record: %w", err)
	}
	return r.Value, nil
}

func (s *KVStore) Put(ctx context.Context, key string, value []byte, expiresAt time.Time) error {
	r := record{Key: key, Value: value, UpdatedAt: time.Now().UTC()}
	if !expiresAt.IsZero() {
		r.ExpiresAt = expiresAt.Unix()
	}
	item, err := attributevalue.MarshalMap(r)
	if err != nil {
		return fmt.Errorf("marshal record: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	return err
}

func (s *KVStore) Delete(ctx context.Context, key string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key:       strKey(attrKey, key),
	})
	return err
}

// List scans the table for keys starting with prefix, following pagination.
func (s *KVStore) List(ctx context.Context, prefix string) (map[string][]byte, error) {
	p := dynamodb.NewScanPaginator(s.client, &dynamodb.ScanInput{
		TableName:                aws.String(s.tableName),
		FilterExpression:         aws.String("begins_with(#k, :p)"),
		ExpressionAttributeNames: map[string]string{"#k": attrKey},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":p": &types.AttributeValueMemberS{Value: prefix},
		},
	})
	out := make(map[string][]byte)
	for p.HasMorePages() {
		page, err := p.NextPage(ctx)
		if err != nil {
			return nil, err
		}
		var records []record
		if err := attributevalue.UnmarshalListOfMaps(page.Items, &records); err != nil {
			return nil, fmt.Errorf("unmarshal records: %w", err)
		}
		for _, r := range records {
			out[r.Key] = r.Value
		}
	}
	return out, nil
}
