// Package aitest provides a scripted ai.Provider for tests.
package aitest

import (
	"context"
	"io"
	"sync"

	"github.com/suPer8Hu/ai-chat-backend/internal/ai"
)

// Provider replays Deltas on StreamChat and returns Reply on Chat.
// StreamErr is returned by Recv after FailAfter deltas when set.
type Provider struct {
	Deltas    []string
	Reply     string
	StartErr  error
	StreamErr error
	FailAfter int
	ChatErr   error

	mu      sync.Mutex
	calls   [][]ai.Message
	streams []*Stream
}

func (p *Provider) record(messages []ai.Message) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.calls = append(p.calls, append([]ai.Message(nil), messages...))
}

// Calls returns copies of the message lists the provider was invoked with.
func (p *Provider) Calls() [][]ai.Message {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([][]ai.Message(nil), p.calls...)
}

func (p *Provider) Chat(ctx context.Context, messages []ai.Message) (string, error) {
	p.record(messages)
	if p.ChatErr != nil {
		return "", p.ChatErr
	}
	return p.Reply, nil
}

func (p *Provider) StreamChat(ctx context.Context, messages []ai.Message) (ai.Stream, error) {
	p.record(messages)
	if p.StartErr != nil {
		return nil, p.StartErr
	}
	s := &Stream{ctx: ctx, p: p}
	p.mu.Lock()
	p.streams = append(p.streams, s)
	p.mu.Unlock()
	return s, nil
}

// Streams returns the streams handed out by StreamChat, oldest first.
func (p *Provider) Streams() []*Stream {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*Stream(nil), p.streams...)
}

type Stream struct {
	ctx    context.Context
	p      *Provider
	next   int
	closed bool
}

// Closed reports whether Close was called.
func (s *Stream) Closed() bool { return s.closed }

func (s *Stream) Recv() (string, error) {
	if err := s.ctx.Err(); err != nil {
		return "", err
	}
	if s.p.StreamErr != nil && s.next >= s.p.FailAfter {
		return "", s.p.StreamErr
	}
	if s.next >= len(s.p.Deltas) {
		return "", io.EOF
	}
	d := s.p.Deltas[s.next]
	s.next++
	return d, nil
}

func (s *Stream) Close() error {
	s.closed = true
	return nil
}
