package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/stretchr/testify/require"

	"conference-assistant/internal/domain"
)

type fakeDynamo struct {
	getOut       *dynamodb.GetItemOutput
	getErr       error
	putErr       error
	deleteErr    error
	queryPages   []*dynamodb.QueryOutput
	queryErr     error
	lastGetInput *dynamodb.GetItemInput
	lastPutInput *dynamodb.PutItemInput
	lastDelInput *dynamodb.DeleteItemInput
	queryInputs  []*dynamodb.QueryInput
}

func (f *fakeDynamo) GetItem(_ context.Context, in *dynamodb.GetItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error) {
	f.lastGetInput = in
	return f.getOut, f.getErr
}

func (f *fakeDynamo) PutItem(_ context.Context, in *dynamodb.PutItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error) {
	f.lastPutInput = in
	return &dynamodb.PutItemOutput{}, f.putErr
}

func (f *fakeDynamo) DeleteItem(_ context.Context, in *dynamodb.DeleteItemInput, _ ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error) {
	f.lastDelInput = in
	return &dynamodb.DeleteItemOutput{}, f.deleteErr
}

func (f *fakeDynamo) Query(_ context.Context, in *dynamodb.QueryInput, _ ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error) {
	f.queryInputs = append(f.queryInputs, in)
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	if len(f.queryPages) == 0 {
		return &dynamodb.QueryOutput{}, nil
	}
	page := f.queryPages[0]
	f.queryPages = f.queryPages[1:]
	return page, nil
}

func mustNewDynamo(t *testing.T, db *fakeDynamo) *DynamoStore {
	t.Helper()
	s, err := NewDynamo(db, "test-table")
	require.NoError(t, err)
	return s
}

func TestPut_WritesFullItem(t *testing.T) {
	db := &fakeDynamo{}
	s := mustNewDynamo(t, db)
	start := time.Date(2024, 9, 1, 15, 0, 0, 0, time.UTC)
	summary := "Conference Summary:\n"
	c := sampleConference("c1", start)
	c.Summary = &summary

	require.NoError(t, s.Put(context.Background(), c))
	item := db.lastPutInput.Item
	require.Equal(t, "test-table", *db.lastPutInput.TableName)
	require.Equal(t, pkConferences, item["PK"].(*types.AttributeValueMemberS).Value)
	require.Equal(t, "CONF#c1", item["SK"].(*types.AttributeValueMemberS).Value)
	require.Equal(t, "es", item["parentLanguage"].(*types.AttributeValueMemberS).Value)
	require.Len(t, item["segments"].(*types.AttributeValueMemberL).Value, 1)
	require.Equal(t, summary, item["summary"].(*types.AttributeValueMemberS).Value)
}

func TestPut_OmitsNilSummary(t *testing.T) {
	db := &fakeDynamo{}
	s := mustNewDynamo(t, db)
	require.NoError(t, s.Put(context.Background(), sampleConference("c1", time.Now())))
	_, ok := db.lastPutInput.Item["summary"]
	require.False(t, ok)
}

func TestPut_DynamoError(t *testing.T) {
	db := &fakeDynamo{putErr: errors.New("ProvisionedThroughputExceededException")}
	s := mustNewDynamo(t, db)
	err := s.Put(context.Background(), sampleConference("c1", time.Now()))
	require.Error(t, err)
	require.Contains(t, err.Error(), "Put")
}

func TestGet_RoundTripsItem(t *testing.T) {
	start := time.Date(2024, 9, 1, 15, 0, 0, 0, time.UTC)
	summary := "frozen"
	want := sampleConference("c1", start)
	want.Summary = &summary

	db := &fakeDynamo{getOut: &dynamodb.GetItemOutput{Item: conferenceItem(want)}}
	s := mustNewDynamo(t, db)
	got, err := s.Get(context.Background(), "c1")
	require.NoError(t, err)
	require.Equal(t, want, got)
	require.True(t, *db.lastGetInput.ConsistentRead)
}

func TestGet_Missing(t *testing.T) {
	db := &fakeDynamo{getOut: &dynamodb.GetItemOutput{}}
	s := mustNewDynamo(t, db)
	_, err := s.Get(context.Background(), "nope")
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestGet_MalformedItem(t *testing.T) {
	db := &fakeDynamo{getOut: &dynamodb.GetItemOutput{Item: map[string]types.AttributeValue{
		"conferenceId": &types.AttributeValueMemberS{Value: "c1"},
		"startTime":    &types.AttributeValueMemberS{Value: "yesterday"},
	}}}
	s := mustNewDynamo(t, db)
	_, err := s.Get(context.Background(), "c1")
	require.Error(t, err)
	require.Contains(t, err.Error(), "startTime")
}

func TestDelete_ConditionalFailureIsNotFound(t *testing.T) {
	db := &fakeDynamo{deleteErr: &types.ConditionalCheckFailedException{Message: aws.String("nope")}}
	s := mustNewDynamo(t, db)
	err := s.Delete(context.Background(), "c1")
	require.ErrorIs(t, err, domain.ErrNotFound)
	require.Equal(t, "attribute_exists(PK)", *db.lastDelInput.ConditionExpression)
}

func TestDelete_OtherError(t *testing.T) {
	db := &fakeDynamo{deleteErr: errors.New("boom")}
	s := mustNewDynamo(t, db)
	err := s.Delete(context.Background(), "c1")
	require.Error(t, err)
	require.NotErrorIs(t, err, domain.ErrNotFound)
}

func TestList_FollowsPagination(t *testing.T) {
	base := time.Date(2024, 9, 1, 15, 0, 0, 0, time.UTC)
	db := &fakeDynamo{queryPages: []*dynamodb.QueryOutput{
		{
			Items:            []map[string]types.AttributeValue{conferenceItem(sampleConference("late", base.Add(time.Hour)))},
			LastEvaluatedKey: conferenceKey("late"),
		},
		{
			Items: []map[string]types.AttributeValue{conferenceItem(sampleConference("early", base))},
		},
	}}
	s := mustNewDynamo(t, db)
	list, err := s.List(context.Background())
	require.NoError(t, err)
	require.Len(t, list, 2)
	require.Equal(t, "early", list[0].ID)
	require.Len(t, db.queryInputs, 2)
	require.Nil(t, db.queryInputs[0].ExclusiveStartKey)
	require.Equal(t, "PK = :pk AND begins_with(SK, :prefix)", *db.queryInputs[0].KeyConditionExpression)
	require.NotNil(t, db.queryInputs[1].ExclusiveStartKey)
}

func TestList_QueryError(t *testing.T) {
	db := &fakeDynamo{queryErr: errors.New("ResourceNotFoundException")}
	s := mustNewDynamo(t, db)
	_, err := s.List(context.Background())
	require.Error(t, err)
	require.Contains(t, err.Error(), "List")
}

func TestNewDynamo_Validation(t *testing.T) {
	_, err := NewDynamo(nil, "test-table")
	require.ErrorContains(t, err, "must not be nil")
	_, err = NewDynamo(&fakeDynamo{}, " ")
	require.ErrorContains(t, err, "must not be empty")
}
