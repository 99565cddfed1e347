package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	"conference-assistant/internal/domain"
)

const (
	// All conferences share one partition so List is a single Query.
	pkConferences = "CONFERENCES"
	skPrefixConf  = "CONF#"
)

// dynamodbAPI is the minimal DynamoDB interface required by DynamoStore.
// Defined here for testability.
type dynamodbAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// DynamoStore keeps one item per conference in a DynamoDB table.
type DynamoStore struct {
	api       dynamodbAPI
	tableName string
}

// NewDynamo creates a DynamoDB-backed conference store.
func NewDynamo(api dynamodbAPI, tableName string) (*DynamoStore, error) {
	if api == nil {
		return nil, errors.New("repository: api must not be nil")
	}
	if strings.TrimSpace(tableName) == "" {
		return nil, errors.New("repository: table name must not be empty")
	}
	return &DynamoStore{api: api, tableName: tableName}, nil
}

// confSK returns the sort key for a conference.
func confSK(id string) string {
	return skPrefixConf + id
}

func conferenceKey(id string) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"PK": &types.AttributeValueMemberS{Value: pkConferences},
		"SK": &types.AttributeValueMemberS{Value: confSK(id)},
	}
}

func (d *DynamoStore) Get(ctx context.Context, id string) (domain.Conference, error) {
	out, err := d.api.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(d.tableName),
		Key:            conferenceKey(id),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.Conference{}, fmt.Errorf("repository: Get get item: %w", err)
	}
	if out == nil || len(out.Item) == 0 {
		return domain.Conference{}, fmt.Errorf("repository: Get %q: %w", id, domain.ErrNotFound)
	}
	c, err := itemToConference(out.Item)
	if err != nil {
		return domain.Conference{}, fmt.Errorf("repository: Get unmarshal: %w", err)
	}
	return c, nil
}

func (d *DynamoStore) Put(ctx context.Context, c domain.Conference) error {
	if strings.TrimSpace(c.ID) == "" {
		return errors.New("repository: Put: conference id is required")
	}
	_, err := d.api.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(d.tableName),
		Item:      conferenceItem(c),
	})
	if err != nil {
		return fmt.Errorf("repository: Put: %w", err)
	}
	return nil
}

func (d *DynamoStore) Delete(ctx context.Context, id string) error {
	_, err := d.api.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(d.tableName),
		Key:                 conferenceKey(id),
		ConditionExpression: aws.String("attribute_exists(PK)"),
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return fmt.Errorf("repository: Delete %q: %w", id, domain.ErrNotFound)
		}
		return fmt.Errorf("repository: Delete: %w", err)
	}
	return nil
}

// List pages through the conference partition.
func (d *DynamoStore) List(ctx context.Context) ([]domain.Conference, error) {
	var (
		out       []domain.Conference
		startKey  map[string]types.AttributeValue
		firstPage = true
	)
	for firstPage || len(startKey) > 0 {
		firstPage = false
		page, err := d.api.Query(ctx, &dynamodb.QueryInput{
			TableName:              aws.String(d.tableName),
			KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :prefix)"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk":     &types.AttributeValueMemberS{Value: pkConferences},
				":prefix": &types.AttributeValueMemberS{Value: skPrefixConf},
			},
			ExclusiveStartKey: startKey,
		})
		if err != nil {
			return nil, fmt.Errorf("repository: List query: %w", err)
		}
		for _, item := range page.Items {
			c, err := itemToConference(item)
			if err != nil {
				return nil, fmt.Errorf("repository: List unmarshal: %w", err)
			}
			out = append(out, c)
		}
		startKey = page.LastEvaluatedKey
	}
	sortConferences(out)
	return out, nil
}

func conferenceItem(c domain.Conference) map[string]types.AttributeValue {
	segments := make([]types.AttributeValue, 0, len(c.Segments))
	for _, s := range c.Segments {
		segments = append(segments, &types.AttributeValueMemberM{Value: map[string]types.AttributeValue{
			"text":      &types.AttributeValueMemberS{Value: s.Text},
			"timestamp": &types.AttributeValueMemberS{Value: s.Timestamp.UTC().Format(time.RFC3339Nano)},
		}})
	}
	item := conferenceKey(c.ID)
	item["conferenceId"] = &types.AttributeValueMemberS{Value: c.ID}
	item["parentLanguage"] = &types.AttributeValueMemberS{Value: c.ParentLanguage}
	item["startTime"] = &types.AttributeValueMemberS{Value: c.StartTime.UTC().Format(time.RFC3339Nano)}
	item["segments"] = &types.AttributeValueMemberL{Value: segments}
	if c.Summary != nil {
		item["summary"] = &types.AttributeValueMemberS{Value: *c.Summary}
	}
	return item
}

func itemToConference(item map[string]types.AttributeValue) (domain.Conference, error) {
	id, err := strAttr(item, "conferenceId")
	if err != nil {
		return domain.Conference{}, err
	}
	lang, _ := strAttr(item, "parentLanguage") // allow empty
	start, err := timeAttr(item, "startTime")
	if err != nil {
		return domain.Conference{}, err
	}
	c := domain.Conference{ID: id, ParentLanguage: lang, StartTime: start}

	if raw, ok := item["segments"]; ok {
		list, ok := raw.(*types.AttributeValueMemberL)
		if !ok {
			return domain.Conference{}, errors.New("repository: attribute \"segments\" is not a list")
		}
		for i, v := range list.Value {
			m, ok := v.(*types.AttributeValueMemberM)
			if !ok {
				return domain.Conference{}, fmt.Errorf("repository: segment %d is not a map", i)
			}
			text, err := strAttr(m.Value, "text")
			if err != nil {
				return domain.Conference{}, fmt.Errorf("repository: segment %d: %w", i, err)
			}
			ts, err := timeAttr(m.Value, "timestamp")
			if err != nil {
				return domain.Conference{}, fmt.Errorf("repository: segment %d: %w", i, err)
			}
			c.Segments = append(c.Segments, domain.Segment{Text: text, Timestamp: ts})
		}
	}
	if _, ok := item["summary"]; ok {
		s, err := strAttr(item, "summary")
		if err != nil {
			return domain.Conference{}, err
		}
		c.Summary = &s
	}
	return c, nil
}

func strAttr(item map[string]types.AttributeValue, key string) (string, error) {
	v, ok := item[key]
	if !ok {
		return "", fmt.Errorf("repository: missing attribute %q", key)
	}
	s, ok := v.(*types.AttributeValueMemberS)
	if !ok {
		return "", fmt.Errorf("repository: attribute %q is not a string", key)
	}
	return s.Value, nil
}

func timeAttr(item map[string]types.AttributeValue, key string) (time.Time, error) {
	s, err := strAttr(item, key)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("repository: parse attribute %q: %w", key, err)
	}
	return t, nil
}
