package providers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

const MockClientName = "mock"

// MockClient is a ChatClient for testing. Replies are served in order from
// Responses (the last one repeats); Reply, when set, overrides them.
type MockClient struct {
	Latency   time.Duration
	Responses []string
	Reply     func(req *ChatRequest) (string, error)

	// FailModels makes every request for the named model fail.
	FailModels map[string]error

	mu       sync.Mutex
	requests []*ChatRequest
	count    atomic.Int64
}

// NewMockClient creates a mock client that answers with responses.
func NewMockClient(responses ...string) *MockClient {
	return &MockClient{Responses: responses}
}

// Name returns the client identifier.
func (c *MockClient) Name() string {
	return MockClientName
}

// Chat returns the next scripted reply.
func (c *MockClient) Chat(ctx context.Context, req *ChatRequest) (*ChatResult, error) {
	n := c.count.Add(1)

	c.mu.Lock()
	c.requests = append(c.requests, req)
	c.mu.Unlock()

	if c.Latency > 0 {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(c.Latency):
		}
	}
	if err, ok := c.FailModels[req.Model]; ok {
		return nil, err
	}

	var content string
	switch {
	case c.Reply != nil:
		var err error
		if content, err = c.Reply(req); err != nil {
			return nil, err
		}
	case len(c.Responses) > 0:
		idx := int(n) - 1
		if idx >= len(c.Responses) {
			idx = len(c.Responses) - 1
		}
		content = c.Responses[idx]
	default:
		return nil, errors.New("mock client has no responses")
	}

	result := &ChatResult{Content: content, Model: req.Model}
	if len(req.Schema) > 0 {
		parsed, err := parseStructuredJSON(content)
		if err != nil {
			return result, fmt.Errorf("%w: %v", ErrStructuredOutput, err)
		}
		if err := validateStructuredJSON(req.Schema, parsed); err != nil {
			return result, fmt.Errorf("%w: %v", ErrStructuredOutput, err)
		}
		result.ParsedJSON = json.RawMessage(parsed)
	}
	return result, nil
}

// Requests returns the requests seen so far.
func (c *MockClient) Requests() []*ChatRequest {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]*ChatRequest, len(c.requests))
	copy(out, c.requests)
	return out
}

// RequestCount returns the number of Chat calls.
func (c *MockClient) RequestCount() int64 {
	return c.count.Load()
}
