package llm

import (
	"context"
	"sync"
)

// StubClient returns scripted responses for testing. Responses are consumed
// in order; when exhausted, the last one repeats. The zero value replies with
// a fixed placeholder.
type StubClient struct {
	mu        sync.Mutex
	responses []string
	errs      []error
	calls     []CompletionRequest
}

// NewStubClient creates a stub that replies with the given responses in order.
func NewStubClient(responses ...string) *StubClient {
	return &StubClient{responses: responses}
}

// FailWith queues an error before the scripted responses.
func (s *StubClient) FailWith(errs ...error) *StubClient {
	s.errs = append(s.errs, errs...)
	return s
}

// Complete pops the next scripted error or response.
func (s *StubClient) Complete(_ context.Context, req CompletionRequest) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.calls = append(s.calls, req)
	if len(s.errs) > 0 {
		err := s.errs[0]
		s.errs = s.errs[1:]
		return "", err
	}
	switch len(s.responses) {
	case 0:
		return "stub response", nil
	case 1:
		return s.responses[0], nil
	default:
		resp := s.responses[0]
		s.responses = s.responses[1:]
		return resp, nil
	}
}

// Calls returns the requests seen so far.
func (s *StubClient) Calls() []CompletionRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]CompletionRequest, len(s.calls))
	copy(out, s.calls)
	return out
}
