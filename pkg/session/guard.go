// Package session tracks per-conversation ingress state: webhook idempotency
// keys and the bot-active flag the platform toggles through conversation
// updates.
package session

import (
	"context"
	"fmt"
)

// Guard deduplicates webhook deliveries and answers whether the bot should
// reply in a conversation.
type Guard interface {
	// MarkProcessed claims a (conversation, message) pair. It returns true
	// for the first delivery and false for duplicates within the key TTL.
	MarkProcessed(ctx context.Context, companyID string, conversationID, messageID int64) (bool, error)
	// SetBotStatus records a conversation status change. The bot stays
	// active only while the status is in the configured active set.
	SetBotStatus(ctx context.Context, companyID string, conversationID int64, status string) error
	// BotActive reports whether the bot should reply in a conversation. A
	// conversation with no recorded status is treated as active.
	BotActive(ctx context.Context, companyID string, conversationID int64) (bool, error)
}

func processedKey(prefix string, conversationID, messageID int64) string {
	return fmt.Sprintf("%sprocessed_message:%d:%d", prefix, conversationID, messageID)
}

func botStatusKey(prefix string, conversationID int64) string {
	return fmt.Sprintf("%sbot_status:%d", prefix, conversationID)
}
