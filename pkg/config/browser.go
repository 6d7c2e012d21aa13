package config

import (
	"fmt"
	"sync"
	"time"

	"github.com/entrhq/chromectl/pkg/browser"
)

const (
	// SectionIDBrowser is the identifier for the browser settings section
	SectionIDBrowser = "browser"

	defaultHeadless   = false
	defaultExtraFlags = false
	defaultSkip       = false
)

// BrowserSection holds launch defaults and session limits.
type BrowserSection struct {
	Headless       bool          `json:"headless"`
	Width          int           `json:"width"`
	Height         int           `json:"height"`
	ExtraFlags     bool          `json:"extra_flags"`
	Args           []string      `json:"args"`
	PortRangeStart int           `json:"port_range_start"`
	PortRangeEnd   int           `json:"port_range_end"`
	CommandTimeout time.Duration `json:"command_timeout"`
	SkipInstall    bool          `json:"skip_install"`
	AllowedURLs    []string      `json:"allowed_urls"`
	DeniedURLs     []string      `json:"denied_urls"`
	OutputDir      string        `json:"output_dir"`
	OutputAllow    []string      `json:"output_whitelist"`
	mu             sync.RWMutex
}

// NewBrowserSection creates a browser section with default settings.
func NewBrowserSection() *BrowserSection {
	s := &BrowserSection{}
	s.Reset()
	return s
}

// ID returns the section identifier.
func (s *BrowserSection) ID() string {
	return SectionIDBrowser
}

// Title returns the section title.
func (s *BrowserSection) Title() string {
	return "Browser"
}

// Description returns the section description.
func (s *BrowserSection) Description() string {
	return "Default window, head mode and flags for launched browsers, the remote debugging port range and navigation URL rules and the screenshot output directory."
}

// Data returns the current configuration data.
func (s *BrowserSection) Data() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return map[string]interface{}{
		"headless":         s.Headless,
		"width":            s.Width,
		"height":           s.Height,
		"extra_flags":      s.ExtraFlags,
		"args":             toAnySlice(s.Args),
		"port_range_start": s.PortRangeStart,
		"port_range_end":   s.PortRangeEnd,
		"command_timeout":  s.CommandTimeout.String(),
		"skip_install":     s.SkipInstall,
		"allowed_urls":     toAnySlice(s.AllowedURLs),
		"denied_urls":      toAnySlice(s.DeniedURLs),
		"output_dir":       s.OutputDir,
		"output_whitelist": toAnySlice(s.OutputAllow),
	}
}

// SetData updates the configuration from the provided data.
func (s *BrowserSection) SetData(data map[string]interface{}) error {
	if data == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	for key, value := range data {
		switch key {
		case "headless":
			s.Headless, err = asBool(key, value)
		case "extra_flags":
			s.ExtraFlags, err = asBool(key, value)
		case "skip_install":
			s.SkipInstall, err = asBool(key, value)
		case "width":
			s.Width, err = asInt(key, value)
		case "height":
			s.Height, err = asInt(key, value)
		case "port_range_start":
			s.PortRangeStart, err = asInt(key, value)
		case "port_range_end":
			s.PortRangeEnd, err = asInt(key, value)
		case "command_timeout":
			s.CommandTimeout, err = asDuration(key, value)
		case "args":
			s.Args, err = asStrings(key, value)
		case "allowed_urls":
			s.AllowedURLs, err = asStrings(key, value)
		case "denied_urls":
			s.DeniedURLs, err = asStrings(key, value)
		case "output_dir":
			s.OutputDir, err = asString(key, value)
		case "output_whitelist":
			s.OutputAllow, err = asStrings(key, value)
		default:
			// Ignore unknown keys for forward compatibility
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Validate validates the current configuration.
func (s *BrowserSection) Validate() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.Width < 100 || s.Width > 5000 {
		return fmt.Errorf("width must be between 100 and 5000 pixels, got %d", s.Width)
	}
	if s.Height < 100 || s.Height > 5000 {
		return fmt.Errorf("height must be between 100 and 5000 pixels, got %d", s.Height)
	}
	if s.PortRangeStart < 1 || s.PortRangeEnd > 65535 || s.PortRangeStart > s.PortRangeEnd {
		return fmt.Errorf("invalid port range %d-%d", s.PortRangeStart, s.PortRangeEnd)
	}
	if s.CommandTimeout < 0 {
		return fmt.Errorf("command_timeout cannot be negative, got %v", s.CommandTimeout)
	}
	if _, err := browser.NewURLPolicy(s.AllowedURLs, s.DeniedURLs); err != nil {
		return err
	}
	if len(s.OutputAllow) > 0 && s.OutputDir == "" {
		return fmt.Errorf("output_whitelist requires output_dir")
	}
	return nil
}

// Reset resets the section to default configuration.
func (s *BrowserSection) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Headless = defaultHeadless
	s.Width = browser.DefaultWidth
	s.Height = browser.DefaultHeight
	s.ExtraFlags = defaultExtraFlags
	s.Args = []string{}
	s.PortRangeStart = browser.DefaultPortRangeStart
	s.PortRangeEnd = browser.DefaultPortRangeEnd
	s.CommandTimeout = 0
	s.SkipInstall = defaultSkip
	s.AllowedURLs = []string{}
	s.DeniedURLs = []string{}
	s.OutputDir = ""
	s.OutputAllow = []string{}
}

// ManagerOptions converts the section into session manager options.
func (s *BrowserSection) ManagerOptions() browser.Options {
	s.mu.RLock()
	defer s.mu.RUnlock()

	width, height := s.Width, s.Height
	headless, extra := s.Headless, s.ExtraFlags
	return browser.Options{
		Defaults: browser.LaunchConfig{
			Width:      &width,
			Height:     &height,
			Headless:   &headless,
			ExtraFlags: &extra,
			Args:       append([]string(nil), s.Args...),
		},
		PortRangeStart:  s.PortRangeStart,
		PortRangeEnd:    s.PortRangeEnd,
		CommandTimeout:  s.CommandTimeout,
		AllowedURLs:     append([]string(nil), s.AllowedURLs...),
		DeniedURLs:      append([]string(nil), s.DeniedURLs...),
		OutputDir:       s.OutputDir,
		OutputWhitelist: append([]string(nil), s.OutputAllow...),
	}
}

// IsSkipInstall reports whether browser binaries are assumed present.
func (s *BrowserSection) IsSkipInstall() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.SkipInstall
}

// SetHeadless sets the default head mode for new sessions.
func (s *BrowserSection) SetHeadless(headless bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Headless = headless
}
