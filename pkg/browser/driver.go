package browser

import (
	"context"
	"time"
)

// Driver establishes connections to browser processes over the remote
// control protocol.
type Driver interface {
	Connect(ctx context.Context, opts ConnectOptions) (Conn, error)
	Close() error
}

// ConnectOptions is the connection configuration built by the launcher.
type ConnectOptions struct {
	Width            int
	Height           int
	Headless         bool
	IgnoreDefaultArg bool
	Args             []string
	DebugPort        int
	CommandTimeout   time.Duration
}

// Conn is a live connection to one browser process.
type Conn interface {
	// NewPage opens a page at about:blank.
	NewPage(ctx context.Context) (Page, error)

	// Pages returns the pages currently open on the connection, in
	// creation order.
	Pages() []Page

	// Events returns the connection's event stream. The channel is closed
	// when the connection ends.
	Events() <-chan Event

	// Version reports the browser product string.
	Version() string

	// Close tears the connection down and terminates the browser.
	Close() error
}

// Page is one browser page (tab).
type Page interface {
	Goto(ctx context.Context, url string) error
	Evaluate(ctx context.Context, script string) (any, error)
	Screenshot(ctx context.Context) ([]byte, error)
	PDF(ctx context.Context) ([]byte, error)
	Content(ctx context.Context) (string, error)
	Title(ctx context.Context) (string, error)
	URL() string
	IsClosed() bool
	Close() error
}

// EventType names an event delivered by a connection.
type EventType string

const (
	EventPageCreated  EventType = "page_created"
	EventPageClosed   EventType = "page_closed"
	EventPageLoaded   EventType = "page_loaded"
	EventPageCrashed  EventType = "page_crashed"
	EventConsole      EventType = "console"
	EventDisconnected EventType = "disconnected"
)

// Event is one protocol event drained by the pump.
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"session_id,omitempty"`
	PageID    PageID    `json:"page_id,omitempty"`
	URL       string    `json:"url,omitempty"`
	Level     string    `json:"level,omitempty"`
	Text      string    `json:"text,omitempty"`
	Time      time.Time `json:"time"`

	// Page is the page the event refers to, if any.
	Page Page `json:"-"`
}
