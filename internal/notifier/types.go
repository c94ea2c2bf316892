package notifier

import (
	"context"
	"time"
)

// Config controls the async notification pipeline.
type Config struct {
	Enabled  bool
	ChatID   int64
	ThreadID int

	Workers       int
	QueueSize     int
	RatePerSec    int
	RetryMax      int
	RetryBase     time.Duration
	RetryMaxDelay time.Duration

	DedupWindow     time.Duration
	DedupMaxEntries int
}

// Sender delivers text to a chat. The telegram transport implements it.
type Sender interface {
	SendText(ctx context.Context, chatID int64, threadID int, text string) error
}

// Notification is one queued message. A zero ChatID uses Config.ChatID.
type Notification struct {
	ChatID   int64
	ThreadID int
	Text     string
}

type HistoryItem struct {
	At   time.Time `json:"at"`
	Text string    `json:"text"`
}

// NotificationEvent is emitted on the event bus for notifier lifecycle events.
type NotificationEvent struct {
	ChatID   int64     `json:"chat_id"`
	ThreadID int       `json:"thread_id,omitempty"`
	Key      string    `json:"key"`
	At       time.Time `json:"at"`
	Error    string    `json:"error,omitempty"`
}
