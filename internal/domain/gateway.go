package domain

import (
	"context"
	"time"
)

// MessageEvent is an inbound chat message delivered by the gateway
type MessageEvent struct {
	ConversationID int64
	MessageID      int64
	SenderID       int64
	Text           string
	Timestamp      time.Time
	Private        bool
}

// Gateway sends outbound messages to the chat platform. The transport
// size ceiling the orchestrator enforces mirrors this collaborator's
// upload limit and is supplied via configuration.
type Gateway interface {
	// SendText sends a text message and returns the sent message ID
	SendText(ctx context.Context, conversationID int64, text string) (int64, error)

	// EditText replaces the text of a previously sent message
	EditText(ctx context.Context, conversationID, messageID int64, text string) error

	// DeleteMessage removes a previously sent message
	DeleteMessage(ctx context.Context, conversationID, messageID int64) error

	// SendVideo uploads a local video file with a caption
	SendVideo(ctx context.Context, conversationID int64, filePath, caption string) error
}
