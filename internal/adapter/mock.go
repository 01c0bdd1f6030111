package adapter

import (
	"context"
	"encoding/json"
	"time"
)

// Mock is a deterministic offline adapter: it always picks choice "A" and
// reports fixed token counts. Used when QUIZBENCH_ENV=mock and in tests.
type Mock struct {
	modelID string
}

var _ Adapter = (*Mock)(nil)

func NewMock(modelID string) *Mock {
	if modelID == "" {
		modelID = "mock/echo-model"
	}
	return &Mock{modelID: modelID}
}

func (m *Mock) ID() string { return m.modelID }

func (m *Mock) DefaultParams() map[string]any {
	return map[string]any{"temperature": 0.0}
}

func (m *Mock) Send(ctx context.Context, _ []Message, _ map[string]any) (*Response, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(5 * time.Millisecond):
	}

	answer := map[string]any{
		"choice":              "A",
		"reason":              "Mock adapter always selects the first option.",
		"additional_thoughts": "",
		"refused":             false,
	}
	text, _ := json.Marshal(answer)

	tokensIn, tokensOut := 42, 17
	return &Response{
		Text:      string(text),
		TokensIn:  &tokensIn,
		TokensOut: &tokensOut,
	}, nil
}
