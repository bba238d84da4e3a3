// Package store records pipeline runs in DynamoDB.
//
// Single-table layout: one item per stage execution, keyed
// PK=RUN#<runId>, SK=STAGE#<stage>. Items expire through the expiresAt TTL
// attribute. The ledger is optional and best-effort: a nil *RunStore
// accepts every call and does nothing.
package store

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/rs/zerolog/log"

	"github.com/ryan-longoria/socialmedia-automation/internal/pipeline"
)

// DynamoDB key constants.
const (
	pkPrefix = "RUN#"
	skPrefix = "STAGE#"

	// RunTTL is how long stage records are kept.
	RunTTL = 30 * 24 * time.Hour
)

// DynamoAPI is the subset of the DynamoDB client used by RunStore.
type DynamoAPI interface {
	PutItem(ctx context.Context, in *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, in *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// StageRecord is one stage execution within a run. RunID and Stage are
// derived from the keys.
type StageRecord struct {
	RunID          string    `dynamodbav:"-" json:"runId"`
	Stage          string    `dynamodbav:"-" json:"stage"`
	Status         string    `dynamodbav:"status" json:"status"`
	Detail         string    `dynamodbav:"detail,omitempty" json:"detail,omitempty"`
	Title          string    `dynamodbav:"title,omitempty" json:"title,omitempty"`
	TrackingHandle string    `dynamodbav:"trackingHandle,omitempty" json:"trackingHandle,omitempty"`
	StartedAt      time.Time `dynamodbav:"startedAt" json:"startedAt"`
	FinishedAt     time.Time `dynamodbav:"finishedAt" json:"finishedAt"`
}

// RunStore writes and reads stage records.
type RunStore struct {
	client    DynamoAPI
	tableName string
	now       func() time.Time
}

// NewRunStore creates a RunStore for the given table.
func NewRunStore(client DynamoAPI, tableName string) *RunStore {
	return &RunStore{client: client, tableName: tableName, now: time.Now}
}

// TableName returns the table name, or "" for a nil store.
func (s *RunStore) TableName() string {
	if s == nil {
		return ""
	}
	return s.tableName
}

func runPK(runID string) string { return pkPrefix + runID }

// PutStage writes rec, replacing any earlier record for the same stage.
func (s *RunStore) PutStage(ctx context.Context, rec StageRecord) error {
	if s == nil {
		return nil
	}
	if rec.RunID == "" || rec.Stage == "" {
		return fmt.Errorf("stage record needs runId and stage")
	}
	if rec.FinishedAt.IsZero() {
		rec.FinishedAt = s.now()
	}

	item, err := attributevalue.MarshalMap(rec)
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	pk, sk := runPK(rec.RunID), skPrefix+rec.Stage
	item["PK"] = &types.AttributeValueMemberS{Value: pk}
	item["SK"] = &types.AttributeValueMemberS{Value: sk}
	item["expiresAt"] = &types.AttributeValueMemberN{Value: strconv.FormatInt(s.now().Add(RunTTL).Unix(), 10)}

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: &s.tableName,
		Item:      item,
	})
	if err != nil {
		return fmt.Errorf("PutItem PK=%s SK=%s: %w", pk, sk, err)
	}
	log.Debug().Str("runId", rec.RunID).Str("stage", rec.Stage).Str("status", rec.Status).Msg("Stage recorded")
	return nil
}

// Record is PutStage that logs instead of returning the error. Stages call it
// so a ledger outage never fails the pipeline.
func (s *RunStore) Record(ctx context.Context, rec StageRecord) {
	if err := s.PutStage(ctx, rec); err != nil {
		log.Warn().Err(err).Str("runId", rec.RunID).Str("stage", rec.Stage).Msg("Failed to record stage")
	}
}

// PutError records a failed stage. Its signature matches jobutil.ErrorWriter.
func (s *RunStore) PutError(ctx context.Context, runID, stage, errMsg string) error {
	if s == nil {
		return nil
	}
	return s.PutStage(ctx, StageRecord{RunID: runID, Stage: stage, Status: pipeline.StatusError, Detail: errMsg})
}

// ListStages returns every stage record of a run, ordered by sort key.
func (s *RunStore) ListStages(ctx context.Context, runID string) ([]StageRecord, error) {
	if s == nil {
		return nil, fmt.Errorf("run ledger not configured")
	}
	input := &dynamodb.QueryInput{
		TableName:              &s.tableName,
		KeyConditionExpression: aws.String("PK = :pk AND begins_with(SK, :sk)"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":pk": &types.AttributeValueMemberS{Value: runPK(runID)},
			":sk": &types.AttributeValueMemberS{Value: skPrefix},
		},
	}

	var out []StageRecord
	// DynamoDB returns up to 1MB per Query call.
	for {
		result, err := s.client.Query(ctx, input)
		if err != nil {
			return nil, fmt.Errorf("Query PK=%s: %w", runPK(runID), err)
		}
		for _, item := range result.Items {
			var rec StageRecord
			if err := attributevalue.UnmarshalMap(item, &rec); err != nil {
				return nil, fmt.Errorf("unmarshal stage record: %w", err)
			}
			rec.RunID = runID
			if sk, ok := item["SK"].(*types.AttributeValueMemberS); ok {
				rec.Stage = strings.TrimPrefix(sk.Value, skPrefix)
			}
			out = append(out, rec)
		}
		if result.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = result.LastEvaluatedKey
	}
	return out, nil
}
