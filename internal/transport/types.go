// Package transport defines the adapter-neutral types the core exchanges
// with the chat platform.
package transport

import (
	"context"
	"time"
)

type EventKind string

const (
	// EventStart is the distinguished registration command (/start).
	EventStart EventKind = "start"
	// EventStop is the distinguished deactivation command (/stop).
	EventStop EventKind = "stop"
	// EventText is any ordinary inbound message.
	EventText EventKind = "text"
)

// Event is one inbound message from a user.
type Event struct {
	Kind   EventKind
	ChatID int64
	Text   string
	// At is the message's own timestamp; date keyboards are anchored to it.
	At time.Time
}

type ChatTarget struct {
	ChatID int64
}

// SendOptions carries the optional choice keyboard for a prompt.
// ClearChoices removes a previously offered keyboard.
type SendOptions struct {
	Choices      []string
	ClearChoices bool
}

// Adapter is the chat platform boundary. Start feeds inbound events into
// out until the context is canceled.
type Adapter interface {
	Start(ctx context.Context, out chan<- Event) error
	Stop(ctx context.Context) error

	SendText(ctx context.Context, to ChatTarget, text string, opt *SendOptions) error
}
