package browser

import (
	"time"
)

// LaunchConfig configures a new browser session. Nil fields take the
// manager's defaults.
type LaunchConfig struct {
	// Width is the window width in pixels
	Width *int `json:"width,omitempty" yaml:"width,omitempty"`

	// Height is the window height in pixels
	Height *int `json:"height,omitempty" yaml:"height,omitempty"`

	// Headless runs the browser without a visible window
	Headless *bool `json:"headless,omitempty" yaml:"headless,omitempty"`

	// ExtraFlags drops the engine's default command-line flags so that
	// only Args are passed
	ExtraFlags *bool `json:"extra_flags,omitempty" yaml:"extra_flags,omitempty"`

	// Args are appended to the browser command line
	Args []string `json:"args,omitempty" yaml:"args,omitempty"`
}

// LaunchResult describes a freshly launched session.
type LaunchResult struct {
	ID       string `json:"id"`
	URL      string `json:"url"`
	Port     int    `json:"port"`
	PID      int32  `json:"pid,omitempty"`
	Headless bool   `json:"headless"`
}

// State is the lifecycle state of a session.
type State string

const (
	StateLaunching State = "launching"
	StateActive    State = "active"
	StateClosed    State = "closed"
)

// PageID identifies a page within one session. Ids start at 1 and are never
// reused; 0 selects the default page.
type PageID int

// DefaultPage selects the live page with the lowest id.
const DefaultPage PageID = 0

// PageInfo describes a page in a session's arena.
type PageInfo struct {
	ID    PageID `json:"id"`
	URL   string `json:"url"`
	Title string `json:"title,omitempty"`
}

// SessionInfo contains metadata about a browser session.
type SessionInfo struct {
	ID        string    `json:"id"`
	State     State     `json:"state"`
	Port      int       `json:"port"`
	PID       int32     `json:"pid,omitempty"`
	Headless  bool      `json:"headless"`
	Width     int       `json:"width"`
	Height    int       `json:"height"`
	Pages     int       `json:"pages"`
	CreatedAt time.Time `json:"created_at"`
}

// PDFResult describes a page printed to PDF.
type PDFResult struct {
	Path  string `json:"path"`
	Pages int    `json:"pages"`
	Bytes int    `json:"bytes"`
}

// Outline is the structural summary of a page.
type Outline struct {
	Title    string   `json:"title"`
	Headings []string `json:"headings"`
	Links    []Link   `json:"links"`
}

// Link represents a hyperlink with text and URL.
type Link struct {
	Text string `json:"text"`
	Href string `json:"href"`
}

// Default values for launches and commands.
const (
	DefaultWidth          = 1920
	DefaultHeight         = 1080
	DefaultPortRangeStart = 9222
	DefaultPortRangeEnd   = 9322
	DefaultMaxLength      = 10000 // characters
	BlankURL              = "about:blank"

	minDimension = 100
	maxDimension = 5000
)
