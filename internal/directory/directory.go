// Package directory answers "which rooms should this user auto-join" from
// the membership tables the external CRUD service maintains. The hub treats
// it as a read-only collaborator: membership policy is decided before any
// join reaches the hub.
package directory

import (
	"context"
	"fmt"

	"chat-hub-backend/internal/database"
	"chat-hub-backend/internal/model"

	"github.com/aws/aws-sdk-go-v2/feature/dynamodb/attributevalue"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb/types"
)

type DynamoDirectory struct {
	db *database.Database
}

func NewDynamoDirectory(db *database.Database) *DynamoDirectory {
	return &DynamoDirectory{db: db}
}

func (d *DynamoDirectory) ConversationIDs(ctx context.Context, userID string) ([]string, error) {
	items, err := d.queryByUser(ctx, model.ConversationMembersTable, userID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(items))
	for _, raw := range items {
		var item model.ConversationMemberItem
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			return nil, fmt.Errorf("directory: unmarshal conversation member: %w", err)
		}
		ids = append(ids, item.ConversationID)
	}
	return ids, nil
}

func (d *DynamoDirectory) ChannelIDs(ctx context.Context, userID string) ([]string, error) {
	items, err := d.queryByUser(ctx, model.ChannelMembersTable, userID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(items))
	for _, raw := range items {
		var item model.ChannelMemberItem
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			return nil, fmt.Errorf("directory: unmarshal channel member: %w", err)
		}
		ids = append(ids, item.ChannelID)
	}
	return ids, nil
}

func (d *DynamoDirectory) GuildIDs(ctx context.Context, userID string) ([]string, error) {
	items, err := d.queryByUser(ctx, model.GuildMembersTable, userID)
	if err != nil {
		return nil, err
	}

	ids := make([]string, 0, len(items))
	for _, raw := range items {
		var item model.GuildMemberItem
		if err := attributevalue.UnmarshalMap(raw, &item); err != nil {
			return nil, fmt.Errorf("directory: unmarshal guild member: %w", err)
		}
		ids = append(ids, item.GuildID)
	}
	return ids, nil
}

func (d *DynamoDirectory) queryByUser(ctx context.Context, table, userID string) ([]map[string]types.AttributeValue, error) {
	return d.db.Client.QueryAll(
		ctx,
		table,
		nil,
		"userId = :userId",
		map[string]types.AttributeValue{
			":userId": &types.AttributeValueMemberS{Value: userID},
		},
	)
}
