package dynamo

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/gram-sevak/internal/domain"
)

const (
	// ExpiredRetention keeps an item past its code's expiry so a late
	// verification is reported as expired rather than missing.
	ExpiredRetention = 10 * time.Minute

	tableWaitTimeout = 30 * time.Second
)

// API is the subset of the DynamoDB client the credential store uses.
type API interface {
	GetItem(ctx context.Context, in *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	DeleteItem(ctx context.Context, in *dynamodb.DeleteItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.DeleteItemOutput, error)
}

// otpItem is one credential record. PK: email.
type otpItem struct {
	Email       string `dynamodbav:"email"`
	Code        string `dynamodbav:"code"`
	ExpiresAt   int64  `dynamodbav:"expires_at"`
	ExpiresAtMs int64  `dynamodbav:"expires_at_ms"`
}

// CredentialStore keeps credential records in a DynamoDB table.
type CredentialStore struct {
	client    API
	tableName string
}

func NewCredentialStore(client API, tableName string) *CredentialStore {
	return &CredentialStore{client: client, tableName: tableName}
}

func (s *CredentialStore) Put(ctx context.Context, identity string, rec domain.CredentialRecord) error {
	item, err := attributevalue.MarshalMap(otpItem{
		Email:       identity,
		Code:        rec.Code,
		ExpiresAt:   rec.ExpiresAt.Add(ExpiredRetention).Unix(),
		ExpiresAtMs: rec.ExpiresAt.UnixMilli(),
	})
	if err != nil {
		return fmt.Errorf("marshal credential: %w", err)
	}
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("dynamo put credential: %w", err)
	}
	return nil
}

func (s *CredentialStore) Get(ctx context.Context, identity string) (domain.CredentialRecord, bool, error) {
	out, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:      aws.String(s.tableName),
		Key:            strKey(attrEmail, identity),
		ConsistentRead: aws.Bool(true),
	})
	if err != nil {
		return domain.CredentialRecord{}, false, fmt.Errorf("dynamo get credential: %w", err)
	}
	if out.Item == nil {
		return domain.CredentialRecord{}, false, nil
	}
	var it otpItem
	if err := attributevalue.UnmarshalMap(out.Item, &it); err != nil {
		return domain.CredentialRecord{}, false, fmt.Errorf("unmarshal credential: %w", err)
	}
	return domain.CredentialRecord{Code: it.Code, ExpiresAt: time.UnixMilli(it.ExpiresAtMs)}, true, nil
}

func (s *CredentialStore) Delete(ctx context.Context, identity string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key:       strKey(attrEmail, identity),
	})
	if err != nil {
		return fmt.Errorf("dynamo delete credential: %w", err)
	}
	return nil
}

// Consume deletes the item only while it still holds rec's code and expiry.
func (s *CredentialStore) Consume(ctx context.Context, identity string, rec domain.CredentialRecord) (bool, error) {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName:           aws.String(s.tableName),
		Key:                 strKey(attrEmail, identity),
		ConditionExpression: aws.String("#c = :c AND #e = :e"),
		ExpressionAttributeNames: map[string]string{
			"#c": attrCode,
			"#e": attrExpiresAtMs,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":c": &types.AttributeValueMemberS{Value: rec.Code},
			":e": &types.AttributeValueMemberN{Value: strconv.FormatInt(rec.ExpiresAt.UnixMilli(), 10)},
		},
	})
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return false, nil
		}
		return false, fmt.Errorf("dynamo consume credential: %w", err)
	}
	return true, nil
}
