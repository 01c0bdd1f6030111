// Package adapter defines the model endpoint boundary: send messages, get
// the raw text response back, report token counts when the provider does.
package adapter

import "context"

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Response is the raw outcome of one model call. Token counts are nil when
// the provider did not report usage.
type Response struct {
	Text      string
	TokensIn  *int
	TokensOut *int
}

type Adapter interface {
	ID() string
	// DefaultParams are the model-specific request parameters configured
	// for this adapter (temperature and friends).
	DefaultParams() map[string]any
	Send(ctx context.Context, messages []Message, params map[string]any) (*Response, error)
}
