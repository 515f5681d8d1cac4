package store

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"

	flowengine "github.com/queryflow/flowengine"
)

// DynamoDBStore implements flowengine.ExecutionStore using AWS DynamoDB
type DynamoDBStore struct {
	client    DynamoDBClient
	tableName string
}

// NewDynamoDBStore creates a new DynamoDB-backed execution store
func NewDynamoDBStore(client DynamoDBClient, tableName string) *DynamoDBStore {
	return &DynamoDBStore{
		client:    client,
		tableName: tableName,
	}
}

func (s *DynamoDBStore) marshalRecord(record *flowengine.ExecutionRecord) (map[string]types.AttributeValue, error) {
	item, err := attributevalue.MarshalMap(record)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal execution record: %w", err)
	}

	item[AttrPK] = &types.AttributeValueMemberS{Value: executionPK(record.ExecutionID)}
	item[AttrSK] = &types.AttributeValueMemberS{Value: executionSK()}
	item[AttrEntityType] = &types.AttributeValueMemberS{Value: EntityTypeExecution}

	if record.WorkflowID != "" {
		item[AttrGSI1PK] = &types.AttributeValueMemberS{
			Value: executionGSI1PK(record.WorkflowID, string(record.Status)),
		}
		item[AttrGSI1SK] = &types.AttributeValueMemberS{
			Value: executionGSI1SK(record.CreatedAt.Format(time.RFC3339Nano)),
		}
	}

	return item, nil
}

func (s *DynamoDBStore) CreateExecution(ctx context.Context, record *flowengine.ExecutionRecord) error {
	item, err := s.marshalRecord(record)
	if err != nil {
		return err
	}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName:           aws.String(s.tableName),
		Item:                item,
		ConditionExpression: aws.String("attribute_not_exists(PK)"),
	})
	if err != nil {
		return fmt.Errorf("failed to create execution record: %w", err)
	}

	return nil
}

func (s *DynamoDBStore) GetExecution(ctx context.Context, executionID string) (*flowengine.ExecutionRecord, error) {
	result, err := s.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			AttrPK: &types.AttributeValueMemberS{Value: executionPK(executionID)},
			AttrSK: &types.AttributeValueMemberS{Value: executionSK()},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to get execution record: %w", err)
	}

	if result.Item == nil {
		return nil, flowengine.NewWorkflowError(flowengine.ErrCodeNotFound,
			fmt.Sprintf("execution %s not found", executionID))
	}

	var record flowengine.ExecutionRecord
	if err := attributevalue.UnmarshalMap(result.Item, &record); err != nil {
		return nil, fmt.Errorf("failed to unmarshal execution record: %w", err)
	}

	return &record, nil
}

func (s *DynamoDBStore) UpdateExecution(ctx context.Context, record *flowengine.ExecutionRecord) error {
	record.UpdatedAt = time.Now()

	item, err := s.marshalRecord(record)
	if err != nil {
		return err
	}

	// Full-item put: repeated updates with the same record are idempotent
	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("failed to update execution record: %w", err)
	}

	return nil
}

func (s *DynamoDBStore) UpdateExecutionStatus(ctx context.Context, executionID string, status flowengine.RunStatus, execErr *flowengine.WorkflowError) error {
	record, err := s.GetExecution(ctx, executionID)
	if err != nil {
		return err
	}

	record.Status = status
	record.Error = execErr
	record.UpdatedAt = time.Now()

	if status.IsTerminal() && record.CompletedAt == nil {
		now := time.Now()
		record.CompletedAt = &now
	}

	return s.UpdateExecution(ctx, record)
}

func (s *DynamoDBStore) ListExecutions(ctx context.Context, filter flowengine.ExecutionFilter) ([]*flowengine.ExecutionRecord, error) {
	if filter.WorkflowID != "" && filter.Status != nil {
		return s.queryByWorkflowStatus(ctx, filter)
	}
	return s.scanExecutions(ctx, filter)
}

// queryByWorkflowStatus uses GSI1 when both the workflow and the status are
// pinned
func (s *DynamoDBStore) queryByWorkflowStatus(ctx context.Context, filter flowengine.ExecutionFilter) ([]*flowengine.ExecutionRecord, error) {
	var records []*flowengine.ExecutionRecord
	var lastEvaluatedKey map[string]types.AttributeValue

	for {
		queryInput := &dynamodb.QueryInput{
			TableName:              aws.String(s.tableName),
			IndexName:              aws.String(IndexWorkflowStatus),
			KeyConditionExpression: aws.String("GSI1PK = :pk"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":pk": &types.AttributeValueMemberS{
					Value: executionGSI1PK(filter.WorkflowID, string(*filter.Status)),
				},
			},
		}
		if lastEvaluatedKey != nil {
			queryInput.ExclusiveStartKey = lastEvaluatedKey
		}

		result, err := s.client.Query(ctx, queryInput)
		if err != nil {
			return nil, fmt.Errorf("failed to list execution records: %w", err)
		}

		for _, item := range result.Items {
			var record flowengine.ExecutionRecord
			if err := attributevalue.UnmarshalMap(item, &record); err != nil {
				return nil, fmt.Errorf("failed to unmarshal execution record: %w", err)
			}
			records = append(records, &record)

			if filter.Limit > 0 && len(records) >= filter.Limit {
				return records, nil
			}
		}

		if result.LastEvaluatedKey == nil {
			break
		}
		lastEvaluatedKey = result.LastEvaluatedKey
	}

	return records, nil
}

func (s *DynamoDBStore) scanExecutions(ctx context.Context, filter flowengine.ExecutionFilter) ([]*flowengine.ExecutionRecord, error) {
	var records []*flowengine.ExecutionRecord
	var lastEvaluatedKey map[string]types.AttributeValue

	for {
		scanInput := &dynamodb.ScanInput{
			TableName:        aws.String(s.tableName),
			FilterExpression: aws.String("entity_type = :entity"),
			ExpressionAttributeValues: map[string]types.AttributeValue{
				":entity": &types.AttributeValueMemberS{Value: EntityTypeExecution},
			},
		}
		if lastEvaluatedKey != nil {
			scanInput.ExclusiveStartKey = lastEvaluatedKey
		}

		result, err := s.client.Scan(ctx, scanInput)
		if err != nil {
			return nil, fmt.Errorf("failed to list execution records: %w", err)
		}

		for _, item := range result.Items {
			var record flowengine.ExecutionRecord
			if err := attributevalue.UnmarshalMap(item, &record); err != nil {
				return nil, fmt.Errorf("failed to unmarshal execution record: %w", err)
			}

			if filter.WorkflowID != "" && record.WorkflowID != filter.WorkflowID {
				continue
			}
			if filter.Status != nil && record.Status != *filter.Status {
				continue
			}

			records = append(records, &record)
			if filter.Limit > 0 && len(records) >= filter.Limit {
				return records, nil
			}
		}

		if result.LastEvaluatedKey == nil {
			break
		}
		lastEvaluatedKey = result.LastEvaluatedKey
	}

	return records, nil
}

func (s *DynamoDBStore) DeleteExecution(ctx context.Context, executionID string) error {
	_, err := s.client.DeleteItem(ctx, &dynamodb.DeleteItemInput{
		TableName: aws.String(s.tableName),
		Key: map[string]types.AttributeValue{
			AttrPK: &types.AttributeValueMemberS{Value: executionPK(executionID)},
			AttrSK: &types.AttributeValueMemberS{Value: executionSK()},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete execution record: %w", err)
	}

	return nil
}
