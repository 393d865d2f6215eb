package model

import "fmt"

const (
	ConversationMembersTable = "ConversationMembers"
	ChannelMembersTable      = "ChannelMembers"
	GuildMembersTable        = "GuildMembers"
)

// Membership items are written by the external CRUD service; the hub only
// reads them to learn which rooms a user auto-joins at connect time.

type ConversationMemberItem struct {
	UserID         string `dynamodbav:"userId"`
	ConversationID string `dynamodbav:"conversationId"`
	JoinedAt       string `dynamodbav:"joinedAt,omitempty"`
}

type ChannelMemberItem struct {
	UserID    string `dynamodbav:"userId"`
	ChannelID string `dynamodbav:"channelId"`
	GuildID   string `dynamodbav:"guildId,omitempty"`
	JoinedAt  string `dynamodbav:"joinedAt,omitempty"`
}

type GuildMemberItem struct {
	UserID   string `dynamodbav:"userId"`
	GuildID  string `dynamodbav:"guildId"`
	JoinedAt string `dynamodbav:"joinedAt,omitempty"`
}

func MemberPK(userID, entityID string) string {
	return fmt.Sprintf("%s#%s", userID, entityID)
}
