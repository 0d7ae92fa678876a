// Package testutil provides test utilities for the llm package.
// It includes mock implementations for testing model client interactions.
package testutil

import (
	"context"
	"sync"

	"github.com/scanly/nutriengine/llm"
)

// MockModelClient is a thread-safe mock model client for testing.
// It captures requests passed to Complete() and returns configured responses.
//
// Usage:
//
//	// Single response mock
//	mock := &MockModelClient{
//	    Responses: []*llm.Response{
//	        {Content: `{"healthScore": 70}`, Model: "test-model"},
//	    },
//	}
//
//	// Error response
//	mock := &MockModelClient{
//	    Err: errors.New("connection failed"),
//	}
type MockModelClient struct {
	mu               sync.Mutex
	capturedRequests []llm.Request
	Responses        []*llm.Response // Responses to return in sequence
	Err              error           // Error to return (takes precedence over Responses)
	callCount        int
	responseIndex    int
}

// Complete returns the next response from Responses, or Err if set.
// The request is captured for verification in tests.
func (m *MockModelClient) Complete(_ context.Context, req llm.Request) (*llm.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.capturedRequests = append(m.capturedRequests, req)
	m.callCount++

	if m.Err != nil {
		return nil, m.Err
	}

	if m.responseIndex < len(m.Responses) {
		resp := m.Responses[m.responseIndex]
		m.responseIndex++
		return resp, nil
	}

	// Default response if no responses configured
	return &llm.Response{Content: "", Model: "test-model"}, nil
}

// CapturedRequests returns the requests passed to Complete() so far.
func (m *MockModelClient) CapturedRequests() []llm.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]llm.Request(nil), m.capturedRequests...)
}

// CallCount returns the number of times Complete() was called.
func (m *MockModelClient) CallCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.callCount
}

// Reset clears the mock's captured state and response cursor.
func (m *MockModelClient) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount = 0
	m.responseIndex = 0
	m.capturedRequests = nil
}
