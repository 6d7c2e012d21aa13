package config

import (
	"fmt"
	"net"
	"sync"

	"github.com/entrhq/chromectl/pkg/logging"
)

const (
	// SectionIDServer is the identifier for the HTTP server section
	SectionIDServer = "server"

	defaultListen       = ":8700"
	defaultEnableEvents = true
	defaultLogLevel     = "info"
)

// ServerSection configures the HTTP control server.
type ServerSection struct {
	Listen       string `json:"listen"`
	EnableEvents bool   `json:"enable_events"`
	LogLevel     string `json:"log_level"`
	mu           sync.RWMutex
}

// NewServerSection creates a server section with default settings.
func NewServerSection() *ServerSection {
	return &ServerSection{
		Listen:       defaultListen,
		EnableEvents: defaultEnableEvents,
		LogLevel:     defaultLogLevel,
	}
}

// ID returns the section identifier.
func (s *ServerSection) ID() string {
	return SectionIDServer
}

// Title returns the section title.
func (s *ServerSection) Title() string {
	return "Server"
}

// Description returns the section description.
func (s *ServerSection) Description() string {
	return "Listen address, websocket event streaming and log level of the control server."
}

// Data returns the current configuration data.
func (s *ServerSection) Data() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return map[string]interface{}{
		"listen":        s.Listen,
		"enable_events": s.EnableEvents,
		"log_level":     s.LogLevel,
	}
}

// SetData updates the configuration from the provided data.
func (s *ServerSection) SetData(data map[string]interface{}) error {
	if data == nil {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	for key, value := range data {
		switch key {
		case "listen":
			s.Listen, err = asString(key, value)
		case "enable_events":
			s.EnableEvents, err = asBool(key, value)
		case "log_level":
			s.LogLevel, err = asString(key, value)
		default:
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Validate validates the current configuration.
func (s *ServerSection) Validate() error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, _, err := net.SplitHostPort(s.Listen); err != nil {
		return fmt.Errorf("invalid listen address %q: %w", s.Listen, err)
	}
	if _, err := logging.ParseLevel(s.LogLevel); err != nil {
		return err
	}
	return nil
}

// Reset resets the section to default configuration.
func (s *ServerSection) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.Listen = defaultListen
	s.EnableEvents = defaultEnableEvents
	s.LogLevel = defaultLogLevel
}

// Settings returns the listen address, events toggle and log level.
func (s *ServerSection) Settings() (listen string, events bool, level string) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Listen, s.EnableEvents, s.LogLevel
}

// SetListen overrides the listen address.
func (s *ServerSection) SetListen(addr string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Listen = addr
}
