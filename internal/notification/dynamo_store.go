package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// DynamoStore is the durable Store backend. Records are partitioned by
// recipient key with a sort key ordered by creation time, so a single
// Query returns a key's records newest first. Expiry is enforced twice:
// DynamoDB TTL on the expires_at attribute reclaims storage, and List
// filters any not-yet-reclaimed expired items.
type DynamoStore struct {
	client    *dynamodb.Client
	tableName string
	ttl       time.Duration
	maxPerKey int
}

// dynamoNotification is the DynamoDB item structure.
type dynamoNotification struct {
	RecipientKey string            `dynamodbav:"recipient_key"`
	SortKey      string            `dynamodbav:"sort_key"`
	ID           string            `dynamodbav:"id"`
	Type         string            `dynamodbav:"type"`
	Title        string            `dynamodbav:"title"`
	Message      string            `dynamodbav:"message"`
	OrderID      string            `dynamodbav:"order_id,omitempty"`
	ProductID    string            `dynamodbav:"product_id,omitempty"`
	Data         map[string]string `dynamodbav:"data,omitempty"`
	Read         bool              `dynamodbav:"read"`
	CreatedAt    string            `dynamodbav:"created_at"`
	ExpiresAt    int64             `dynamodbav:"expires_at"`
}

func NewDynamoStore(client *dynamodb.Client, tableName string) *DynamoStore {
	return &DynamoStore{
		client:    client,
		tableName: tableName,
		ttl:       DefaultTTL,
		maxPerKey: DefaultMaxPerKey,
	}
}

// sortKeyTimeFormat is RFC 3339 with fixed-width nanoseconds. RFC3339Nano
// drops trailing fractional zeros, which breaks lexicographic ordering
// ("...05Z" sorts after "...05.5Z"); a fixed width keeps byte order equal
// to time order.
const sortKeyTimeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// sortKey orders items by creation time with the id as a tiebreaker so
// two records created in the same nanosecond still get distinct keys.
func sortKey(n Notification) string {
	return n.CreatedAt.UTC().Format(sortKeyTimeFormat) + "#" + n.ID
}

func (s *DynamoStore) Append(ctx context.Context, key string, n Notification) error {
	item := dynamoNotification{
		RecipientKey: key,
		SortKey:      sortKey(n),
		ID:           n.ID,
		Type:         string(n.Type),
		Title:        n.Title,
		Message:      n.Message,
		OrderID:      n.OrderID,
		ProductID:    n.ProductID,
		Data:         n.Data,
		Read:         n.Read,
		CreatedAt:    n.CreatedAt.UTC().Format(time.RFC3339Nano),
		ExpiresAt:    n.CreatedAt.Add(s.ttl).Unix(),
	}

	av, err := attributevalue.MarshalMap(item)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      av,
	})
	if err != nil {
		return fmt.Errorf("failed to put notification: %w", err)
	}
	return nil
}

func (s *DynamoStore) query(ctx context.Context, key string) ([]dynamoNotification, error) {
	result, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("recipient_key = :rk"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":rk": &types.AttributeValueMemberS{Value: key},
		},
		ScanIndexForward: aws.Bool(false), // newest first
		Limit:            aws.Int32(int32(s.maxPerKey)),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to query notifications: %w", err)
	}

	var items []dynamoNotification
	if err := attributevalue.UnmarshalListOfMaps(result.Items, &items); err != nil {
		return nil, fmt.Errorf("failed to unmarshal notifications: %w", err)
	}
	return items, nil
}

func (s *DynamoStore) List(ctx context.Context, key string) ([]Notification, error) {
	items, err := s.query(ctx, key)
	if err != nil {
		return nil, err
	}

	now := time.Now().Unix()
	out := make([]Notification, 0, len(items))
	for _, item := range items {
		if item.ExpiresAt <= now {
			continue
		}
		createdAt, err := time.Parse(time.RFC3339Nano, item.CreatedAt)
		if err != nil {
			continue
		}
		out = append(out, Notification{
			ID:           item.ID,
			RecipientKey: item.RecipientKey,
			Type:         Type(item.Type),
			Title:        item.Title,
			Message:      item.Message,
			OrderID:      item.OrderID,
			ProductID:    item.ProductID,
			Data:         item.Data,
			Read:         item.Read,
			CreatedAt:    createdAt,
		})
	}
	return out, nil
}

func (s *DynamoStore) MarkRead(ctx context.Context, key, id string) error {
	items, err := s.query(ctx, key)
	if err != nil {
		return err
	}
	for _, item := range items {
		if item.ID != id {
			continue
		}
		return s.setRead(ctx, key, item.SortKey)
	}
	return nil // unknown id is a no-op
}

func (s *DynamoStore) MarkAllRead(ctx context.Context, key string) error {
	items, err := s.query(ctx, key)
	if err != nil {
		return err
	}
	for _, item := range items {
		if item.Read {
			continue
		}
		if err := s.setRead(ctx, key, item.SortKey); err != nil {
			return err
		}
	}
	return nil
}

func (s *DynamoStore) setRead(ctx context.Context, key, sortKey string) error {
	_, err := s.client.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			"recipient_key": &types.AttributeValueMemberS{Value: key},
			"sort_key":      &types.AttributeValueMemberS{Value: sortKey},
		},
		UpdateExpression: aws.String("SET #r = :true"),
		ExpressionAttributeNames: map[string]string{
			"#r": "read",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":true": &types.AttributeValueMemberBOOL{Value: true},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to mark notification read: %w", err)
	}
	return nil
}
