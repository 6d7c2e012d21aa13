// Package tools exposes session manager operations as named tools that take
// JSON arguments, for the HTTP tool endpoint and scenario files.
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"sync"
)

// Tool is one invocable operation.
type Tool interface {
	// Name returns the unique identifier for this tool (e.g., "browser_navigate")
	Name() string

	// Description returns a human-readable description of what this tool does
	Description() string

	// Schema returns the JSON schema for this tool's input parameters
	Schema() map[string]interface{}

	// Execute runs the tool with JSON arguments. The metadata map carries
	// structured values (session ids, page ids, results) that scenarios
	// can save; it may be nil.
	Execute(ctx context.Context, args json.RawMessage) (string, map[string]interface{}, error)
}

// Conditional is implemented by tools that are only useful in some states,
// e.g. page tools while no session exists.
type Conditional interface {
	ShouldShow() bool
}

// Previewable is implemented by tools that can describe what a call would
// do without doing it.
type Previewable interface {
	GeneratePreview(ctx context.Context, args json.RawMessage) (*ToolPreview, error)
}

// ToolPreview describes a tool call before it runs.
type ToolPreview struct {
	Title       string                 `json:"title"`
	Description string                 `json:"description"`
	Content     string                 `json:"content,omitempty"`
	Metadata    map[string]interface{} `json:"metadata,omitempty"`
}

// BaseToolSchema creates a common JSON schema structure for a tool
// with the given properties and required fields
func BaseToolSchema(properties map[string]interface{}, required []string) map[string]interface{} {
	schema := map[string]interface{}{
		"type":                 "object",
		"properties":           properties,
		"additionalProperties": false,
	}
	if len(required) > 0 {
		schema["required"] = required
	}
	return schema
}

// DecodeArgs strictly decodes JSON arguments into v. Empty arguments decode
// as an empty object.
func DecodeArgs(args json.RawMessage, v interface{}) error {
	if len(bytes.TrimSpace(args)) == 0 {
		args = json.RawMessage("{}")
	}
	dec := json.NewDecoder(bytes.NewReader(args))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

// Registry holds tools by name.
type Registry struct {
	mu    sync.RWMutex
	tools map[string]Tool
}

// NewRegistry creates a registry containing tools.
func NewRegistry(tools ...Tool) (*Registry, error) {
	r := &Registry{tools: make(map[string]Tool)}
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Register adds t. Names must be unique.
func (r *Registry) Register(t Tool) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.tools[t.Name()]; exists {
		return fmt.Errorf("tool %q already registered", t.Name())
	}
	r.tools[t.Name()] = t
	return nil
}

// Get returns the tool called name.
func (r *Registry) Get(name string) (Tool, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.tools[name]
	return t, ok
}

// All returns every tool sorted by name.
func (r *Registry) All() []Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Tool, 0, len(r.tools))
	for _, t := range r.tools {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name() < out[j].Name() })
	return out
}

// Visible returns the tools that are currently useful.
func (r *Registry) Visible() []Tool {
	all := r.All()
	out := all[:0]
	for _, t := range all {
		if c, ok := t.(Conditional); ok && !c.ShouldShow() {
			continue
		}
		out = append(out, t)
	}
	return out
}

// Execute runs the tool called name.
func (r *Registry) Execute(ctx context.Context, name string, args json.RawMessage) (string, map[string]interface{}, error) {
	t, ok := r.Get(name)
	if !ok {
		return "", nil, fmt.Errorf("%w: %s", ErrUnknownTool, name)
	}
	return t.Execute(ctx, args)
}

// ErrUnknownTool is returned for calls to unregistered tools.
var ErrUnknownTool = errors.New("unknown tool")
