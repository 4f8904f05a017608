package dictamenstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/google/uuid"

	"juntas/internal/cases/models"
	id "juntas/pkg/domain"
)

// DynamoAPI is the subset of *dynamodb.Client the store calls.
type DynamoAPI interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	UpdateItem(ctx context.Context, in *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

type dictamenItem struct {
	CaseID    string `dynamodbav:"case_id"`
	ID        string `dynamodbav:"id"`
	Payload   string `dynamodbav:"payload"`
	CreatedAt string `dynamodbav:"created_at"`
	UpdatedAt string `dynamodbav:"updated_at"`
}

// Dynamo keys opinions by case_id, which makes one-per-case structural.
// It does not take part in SQL transactions.
type Dynamo struct {
	ddb       DynamoAPI
	tableName string
}

func NewDynamo(ddb DynamoAPI, tableName string) *Dynamo {
	return &Dynamo{ddb: ddb, tableName: tableName}
}

// Upsert sets the payload and keeps id and created_at from the first write.
func (r *Dynamo) Upsert(ctx context.Context, caseID id.CaseID, payload json.RawMessage, at time.Time) (*models.Dictamen, error) {
	now := at.UTC().Format(time.RFC3339Nano)
	out, err := r.ddb.UpdateItem(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(r.tableName),
		Key:       caseKey(caseID),
		UpdateExpression: aws.String(
			"SET #payload = :payload, #updated_at = :now, #id = if_not_exists(#id, :id), #created_at = if_not_exists(#created_at, :now)"),
		ExpressionAttributeNames: map[string]string{
			"#payload":    "payload",
			"#updated_at": "updated_at",
			"#id":         "id",
			"#created_at": "created_at",
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":payload": &types.AttributeValueMemberS{Value: string(payload)},
			":now":     &types.AttributeValueMemberS{Value: now},
			":id":      &types.AttributeValueMemberS{Value: uuid.NewString()},
		},
		ReturnValues: types.ReturnValueAllNew,
	})
	if err != nil {
		return nil, fmt.Errorf("upsert dictamen: %w", err)
	}

	var it dictamenItem
	if err := attributevalue.UnmarshalMap(out.Attributes, &it); err != nil {
		return nil, fmt.Errorf("decode dictamen: %w", err)
	}
	return fromItem(it)
}

func (r *Dynamo) Get(ctx context.Context, caseID id.CaseID) (*models.Dictamen, error) {
	out, err := r.ddb.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(r.tableName),
		Key:            caseKey(caseID),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return nil, fmt.Errorf("get dictamen: %w", err)
	}
	if len(out.Item) == 0 {
		return nil, nil
	}

	var it dictamenItem
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return nil, fmt.Errorf("decode dictamen: %w", err)
	}
	return fromItem(it)
}

func (r *Dynamo) DeleteForCase(ctx context.Context, caseID id.CaseID) error {
	_, err := r.ddb.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(r.tableName),
		Key:       caseKey(caseID),
	})
	if err != nil {
		return fmt.Errorf("delete dictamen: %w", err)
	}
	return nil
}

func caseKey(caseID id.CaseID) map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		"case_id": &types.AttributeValueMemberS{Value: caseID.String()},
	}
}

func fromItem(it dictamenItem) (*models.Dictamen, error) {
	caseID, err := uuid.Parse(it.CaseID)
	if err != nil {
		return nil, fmt.Errorf("decode dictamen case_id: %w", err)
	}
	dictamenID, err := uuid.Parse(it.ID)
	if err != nil {
		return nil, fmt.Errorf("decode dictamen id: %w", err)
	}
	createdAt, err := time.Parse(time.RFC3339Nano, it.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("decode dictamen created_at: %w", err)
	}
	updatedAt, err := time.Parse(time.RFC3339Nano, it.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("decode dictamen updated_at: %w", err)
	}
	return &models.Dictamen{
		ID:        id.DictamenID(dictamenID),
		CaseID:    id.CaseID(caseID),
		Payload:   json.RawMessage(it.Payload),
		CreatedAt: createdAt,
		UpdatedAt: updatedAt,
	}, nil
}
