// Package llmtest provides deterministic llm.Client fakes for tests.
package llmtest

import (
	"context"
	"sync"

	"github.com/akhildatla/dfagent/pkg/llm"
)

// Static returns the same reply to every request and records the requests it
// received. It is safe for concurrent use.
type Static struct {
	Reply string
	Err   error

	mu       sync.Mutex
	requests []llm.Request
}

// Complete implements llm.Client.
func (s *Static) Complete(ctx context.Context, req llm.Request) (string, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return "", err
	}
	return s.Reply, s.Err
}

// Requests returns a copy of the requests received so far.
func (s *Static) Requests() []llm.Request {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]llm.Request(nil), s.requests...)
}

// Last returns the most recent request.
func (s *Static) Last() (llm.Request, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.requests) == 0 {
		return llm.Request{}, false
	}
	return s.requests[len(s.requests)-1], true
}

// Script maps the user text of a request to a reply. Unmatched requests get
// Fallback, or ErrUnscripted when Fallback is empty.
type Script struct {
	Replies  map[string]string
	Fallback string
}

// ErrUnscripted is returned by Script for requests it has no reply for.
var ErrUnscripted = llm.ErrEmptyResponse

// Complete implements llm.Client.
func (s Script) Complete(ctx context.Context, req llm.Request) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if reply, ok := s.Replies[req.User]; ok {
		return reply, nil
	}
	if s.Fallback != "" {
		return s.Fallback, nil
	}
	return "", ErrUnscripted
}
