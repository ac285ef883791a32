// Package chat defines the boundary to the remote conversations service.
// The sync engine drives these interfaces only; the concrete SDK binding
// lives with the embedding application. Fakes over this package are what
// the engine tests run against.
package chat

import (
	"context"
	"time"
)

// Handler receives remote events. Events are delivered one at a time per
// session; handlers must not block and are dispatched by type switch over
// the structs in events.go.
type Handler func(evt any)

// Dialer opens an authenticated session against one endpoint.
type Dialer func(ctx context.Context, token string) (Client, error)

// Client is one live session with the remote service.
type Client interface {
	// AddEventHandler registers a handler for every subsequent event.
	AddEventHandler(h Handler)

	// UpdateToken installs a fresh access token on the live session
	// without tearing it down.
	UpdateToken(ctx context.Context, token string) error

	// SetFriendlyName announces the local user's display name for this
	// session.
	SetFriendlyName(ctx context.Context, name string) error

	// CreateConversation creates a new conversation owned by this session.
	CreateConversation(ctx context.Context, friendlyName string) (Conversation, error)

	// Shutdown tears the session down and releases all event listeners.
	Shutdown(ctx context.Context) error
}

// Conversation is a remote conversation handle.
type Conversation interface {
	Sid() string
	FriendlyName() string
	Status() string // "joined", "left", ...
	LastReadMessageIndex() int64
	Attributes() map[string]any

	Join(ctx context.Context) error

	GetParticipants(ctx context.Context) ([]Participant, error)
	GetMessages(ctx context.Context, pageSize int) ([]Message, error)

	// GetUnreadMessagesCount returns the unread counter. ok is false when
	// the remote service cannot answer the optimized query, in which case
	// callers fall back to GetMessagesCount.
	GetUnreadMessagesCount(ctx context.Context) (count int64, ok bool, err error)
	GetMessagesCount(ctx context.Context) (int64, error)

	AdvanceLastReadMessageIndex(ctx context.Context, index int64) error

	// SendText sends a message and returns its server-assigned sid.
	SendText(ctx context.Context, body string) (messageSid string, err error)
	AddParticipant(ctx context.Context, identity string) error
	AddProxyParticipant(ctx context.Context, proxyAddress, address string) error
	RemoveParticipant(ctx context.Context, identity string) error
}

// Participant is a remote participant handle.
type Participant interface {
	Sid() string
	Identity() string
	Kind() string // "chat" or a proxy channel kind
	LastReadMessageIndex() int64
}

// Message is a remote message handle.
type Message interface {
	Sid() string
	ConversationSid() string
	Author() string
	Body() string
	Index() int64
	Timestamp() time.Time
	Attributes() map[string]any

	// HasAggregatedDelivery reports whether the message fans out to proxy
	// channel participants and therefore carries per-recipient receipts.
	HasAggregatedDelivery() bool

	// GetDetailedDeliveryReceipts fetches the first page of per-recipient
	// receipts. Every call re-queries the backend.
	GetDetailedDeliveryReceipts(ctx context.Context) (ReceiptPage, error)
}

// Receipt delivery statuses as reported by the remote service.
const (
	ReceiptRead        = "read"
	ReceiptDelivered   = "delivered"
	ReceiptFailed      = "failed"
	ReceiptUndelivered = "undelivered"
	ReceiptSent        = "sent"
	ReceiptQueued      = "queued"
)

// Receipt is one recipient's delivery record.
type Receipt struct {
	ParticipantSid string
	Status         string
}

// ReceiptPage is one page of delivery receipts.
type ReceiptPage interface {
	Items() []Receipt
	HasNextPage() bool
	NextPage(ctx context.Context) (ReceiptPage, error)
}
