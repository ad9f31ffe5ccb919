package s3

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

// ErrConcurrentModification is returned when a concurrent commit is detected.
var ErrConcurrentModification = errors.New("concurrent modification detected")

// ErrNoCommit is returned when a dataset has no committed archive yet.
var ErrNoCommit = errors.New("no committed archive")

// DDBClient is the interface for DynamoDB operations.
type DDBClient interface {
	PutItem(ctx context.Context, params *dynamodb.PutItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.PutItemOutput, error)
	Query(ctx context.Context, params *dynamodb.QueryInput, optFns ...func(*dynamodb.Options)) (*dynamodb.QueryOutput, error)
}

// CommitStore records which archive prefix is the current version of a
// dataset, using DynamoDB conditional writes for the atomic compare-and-swap
// that S3 lacks. Writers upload an archive under a fresh prefix, then commit
// it here; readers resolve the latest committed prefix before restoring.
//
// Table schema:
//   - Partition key: dataset (string) - the logical dataset name
//   - Sort key: version (number) - monotonically increasing version
//
// Create the table with:
//
//	aws dynamodb create-table \
//	  --table-name chemgo-archives \
//	  --attribute-definitions AttributeName=dataset,AttributeType=S AttributeName=version,AttributeType=N \
//	  --key-schema AttributeName=dataset,KeyType=HASH AttributeName=version,KeyType=RANGE \
//	  --billing-mode PAY_PER_REQUEST
type CommitStore struct {
	client    DDBClient
	tableName string
	dataset   string
}

// NewCommitStore creates a commit store for one logical dataset.
func NewCommitStore(client DDBClient, tableName, dataset string) *CommitStore {
	return &CommitStore{
		client:    client,
		tableName: tableName,
		dataset:   dataset,
	}
}

// Latest returns the highest committed version and its archive prefix.
func (s *CommitStore) Latest(ctx context.Context) (uint64, string, error) {
	resp, err := s.client.Query(ctx, &dynamodb.QueryInput{
		TableName:              aws.String(s.tableName),
		KeyConditionExpression: aws.String("dataset = :ds"),
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":ds": &types.AttributeValueMemberS{Value: s.dataset},
		},
		ScanIndexForward: aws.Bool(false), // Descending order
		Limit:            aws.Int32(1),
	})
	if err != nil {
		return 0, "", fmt.Errorf("query commits: %w", err)
	}

	if len(resp.Items) == 0 {
		return 0, "", ErrNoCommit
	}

	item := resp.Items[0]
	versionAttr, ok := item["version"].(*types.AttributeValueMemberN)
	if !ok {
		return 0, "", errors.New("invalid version attribute")
	}
	prefixAttr, ok := item["archive_prefix"].(*types.AttributeValueMemberS)
	if !ok {
		return 0, "", errors.New("invalid archive_prefix attribute")
	}

	version, err := strconv.ParseUint(versionAttr.Value, 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("parse version: %w", err)
	}

	return version, prefixAttr.Value, nil
}

// Commit records archivePrefix as the next version. The conditional put
// fails with ErrConcurrentModification when another writer claimed the same
// version first.
func (s *CommitStore) Commit(ctx context.Context, archivePrefix string) (uint64, error) {
	current, _, err := s.Latest(ctx)
	if err != nil && !errors.Is(err, ErrNoCommit) {
		return 0, err
	}

	newVersion := current + 1

	_, err = s.client.PutItem(ctx, &dynamodb.PutItemInput{
		TableName: aws.String(s.tableName),
		Item: map[string]types.AttributeValue{
			"dataset":        &types.AttributeValueMemberS{Value: s.dataset},
			"version":        &types.AttributeValueMemberN{Value: strconv.FormatUint(newVersion, 10)},
			"archive_prefix": &types.AttributeValueMemberS{Value: archivePrefix},
		},
		ConditionExpression: aws.String("attribute_not_exists(version)"),
	})
	if err != nil {
		var condErr *types.ConditionalCheckFailedException
		if errors.As(err, &condErr) {
			return 0, ErrConcurrentModification
		}
		return 0, fmt.Errorf("commit version: %w", err)
	}

	return newVersion, nil
}
