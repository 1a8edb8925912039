package counter

import (
	"context"
	"errors"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
	"github.com/aws/smithy-go"
)

// DynamoDBAPI is the subset of *dynamodb.Client the counter calls.
type DynamoDBAPI interface {
	UpdateItem(ctx context.Context, params *dynamodb.UpdateItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.UpdateItemOutput, error)
	GetItem(ctx context.Context, params *dynamodb.GetItemInput, optFns ...func(*dynamodb.Options)) (*dynamodb.GetItemOutput, error)
}

var (
	_ Counter     = (*DynamoDBCounter)(nil)
	_ DynamoDBAPI = (*dynamodb.Client)(nil)
)

// DynamoDBCounter increments a numeric attribute with an ADD update
// expression, which DynamoDB applies atomically and which creates the item
// and the attribute when they are absent.
type DynamoDBCounter struct {
	client          DynamoDBAPI
	table           string
	keyAttr         string
	key             string
	field           string
	requireExisting bool
}

func NewDynamoDBCounter(client DynamoDBAPI, opts ...Option) *DynamoDBCounter {
	o := newOptions(opts)
	return &DynamoDBCounter{
		client:          client,
		table:           o.table,
		keyAttr:         o.keyAttr,
		key:             o.key,
		field:           o.field,
		requireExisting: o.requireExisting,
	}
}

func (c *DynamoDBCounter) itemKey() map[string]types.AttributeValue {
	return map[string]types.AttributeValue{
		c.keyAttr: &types.AttributeValueMemberS{Value: c.key},
	}
}

func (c *DynamoDBCounter) Up(ctx context.Context) (Count, error) {
	in := &dynamodb.UpdateItemInput{
		TableName:        aws.String(c.table),
		Key:              c.itemKey(),
		UpdateExpression: aws.String("ADD #f :inc"),
		ExpressionAttributeNames: map[string]string{
			"#f": c.field,
		},
		ExpressionAttributeValues: map[string]types.AttributeValue{
			":inc": &types.AttributeValueMemberN{Value: "1"},
		},
		ReturnValues: types.ReturnValueUpdatedNew,
	}
	if c.requireExisting {
		in.ConditionExpression = aws.String("attribute_exists(#k)")
		in.ExpressionAttributeNames["#k"] = c.keyAttr
	}

	out, err := c.client.UpdateItem(ctx, in)
	if err != nil {
		var ccf *types.ConditionalCheckFailedException
		if errors.As(err, &ccf) {
			return Count{}, c.storageError("dynamodb.UpdateItem", errors.Join(ErrNotFound, err))
		}
		return Count{}, c.storageError("dynamodb.UpdateItem", err)
	}
	return c.countFrom("dynamodb.UpdateItem", out.Attributes)
}

func (c *DynamoDBCounter) Get(ctx context.Context) (Count, error) {
	out, err := c.client.GetItem(ctx, &dynamodb.GetItemInput{
		TableName:            aws.String(c.table),
		Key:                  c.itemKey(),
		ConsistentRead:       aws.Bool(true),
		ProjectionExpression: aws.String("#f"),
		ExpressionAttributeNames: map[string]string{
			"#f": c.field,
		},
	})
	if err != nil {
		return Count{}, c.storageError("dynamodb.GetItem", err)
	}
	if out.Item == nil {
		return Count{}, c.storageError("dynamodb.GetItem", ErrNotFound)
	}
	return c.countFrom("dynamodb.GetItem", out.Item)
}

func (c *DynamoDBCounter) countFrom(op string, attrs map[string]types.AttributeValue) (Count, error) {
	av, ok := attrs[c.field]
	if !ok {
		return Count{}, c.storageError(op, ErrMissingAttribute)
	}
	n, ok := av.(*types.AttributeValueMemberN)
	if !ok {
		return Count{}, c.storageError(op, fmt.Errorf("%w: %s is %T", ErrMissingAttribute, c.field, av))
	}
	return ParseCount(n.Value)
}

func (c *DynamoDBCounter) storageError(op string, err error) *StorageError {
	se := &StorageError{Op: op, Key: c.key, Err: err}
	var ae smithy.APIError
	if errors.As(err, &ae) {
		se.Code = ae.ErrorCode()
	}
	return se
}
