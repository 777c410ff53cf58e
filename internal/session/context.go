package session

import (
	"context"
	"fmt"
	"sync"

	"github.com/yousuf/tracecanon/internal/console"
	"github.com/yousuf/tracecanon/internal/event"
	"github.com/yousuf/tracecanon/internal/sandbox"
	"github.com/yousuf/tracecanon/internal/wasmimages"
)

// maxEvents bounds the console events kept per session; the oldest are dropped first.
const maxEvents = 1000

// SandboxFactory creates the script sandbox of a session.
type SandboxFactory func(ctx context.Context, sc *Context) (*sandbox.Sandbox, error)

// Context represents a session context with its associated resources
type Context struct {
	SessionID string
	Images    *wasmimages.Registry
	Console   *console.Capturer

	newSandbox SandboxFactory
	sandbox    *sandbox.Sandbox
	events     []*event.Event
	mu         sync.Mutex
}

// NewContext creates a new session context
func NewContext(sessionID string, capturer *console.Capturer, newSandbox SandboxFactory) *Context {
	return &Context{
		SessionID:  sessionID,
		Images:     wasmimages.NewRegistry(),
		Console:    capturer,
		newSandbox: newSandbox,
	}
}

// Record stores a captured event.
func (c *Context) Record(ev *event.Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, ev)
	if over := len(c.events) - maxEvents; over > 0 {
		c.events = append(c.events[:0:0], c.events[over:]...)
	}
}

// Events returns the recorded events, oldest first.
func (c *Context) Events() []*event.Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]*event.Event(nil), c.events...)
}

// Sandbox returns the session's sandbox, creating it on first use.
func (c *Context) Sandbox(ctx context.Context) (*sandbox.Sandbox, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sandbox != nil {
		return c.sandbox, nil
	}
	if c.newSandbox == nil {
		return nil, fmt.Errorf("no script runtime configured")
	}
	sb, err := c.newSandbox(ctx, c)
	if err != nil {
		return nil, err
	}
	c.sandbox = sb
	return sb, nil
}

// Close releases the session's sandbox.
func (c *Context) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.sandbox == nil {
		return nil
	}
	err := c.sandbox.Close()
	c.sandbox = nil
	return err
}
