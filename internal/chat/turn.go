package chat

import (
	"context"
	"errors"
	"io"
	"iter"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/suPer8Hu/ai-chat-backend/internal/ai"
	"github.com/suPer8Hu/ai-chat-backend/internal/framing"
	"github.com/suPer8Hu/ai-chat-backend/internal/metrics"
)

// Store is the part of the message store a chat turn needs.
type Store interface {
	// History returns the chat's messages oldest first.
	History(ctx context.Context, chatID string) ([]Message, error)
	AppendMessage(ctx context.Context, chatID, content string, fromAI bool) (*Message, error)
}

// Orchestrator runs chat turns: it persists the user message, asks the completion
// provider for a reply with the full history, and persists the reply.
// It holds no per-turn state; concurrent turns are independent.
type Orchestrator struct {
	store             Store
	provider          ai.Provider
	contextWindowSize int
	log               *zap.Logger
	metrics           *metrics.Metrics
}

// NewOrchestrator builds an Orchestrator. contextWindowSize <= 0 sends the full history
// to the provider; otherwise only the most recent turns are sent.
func NewOrchestrator(store Store, provider ai.Provider, contextWindowSize int, log *zap.Logger, m *metrics.Metrics) *Orchestrator {
	if log == nil {
		log = zap.NewNop()
	}
	if contextWindowSize < 0 {
		contextWindowSize = 0
	}
	return &Orchestrator{
		store:             store,
		provider:          provider,
		contextWindowSize: contextWindowSize,
		log:               log,
		metrics:           m,
	}
}

// prepare reads the history, persists the user turn and returns the provider input.
func (o *Orchestrator) prepare(ctx context.Context, chatID, userText string) ([]ai.Message, error) {
	history, err := o.store.History(ctx, chatID)
	if err != nil {
		return nil, &StoreError{Op: OpReadHistory, Err: err}
	}

	turns := append(TurnsFromMessages(history), HistoryTurn{Role: RoleUser, Content: userText})

	// durable before the provider is called
	if _, err := o.store.AppendMessage(ctx, chatID, userText, RoleUser.FromAI()); err != nil {
		return nil, &StoreError{Op: OpAppendUser, Err: err}
	}

	if o.contextWindowSize > 0 && len(turns) > o.contextWindowSize {
		turns = turns[len(turns)-o.contextWindowSize:]
	}
	return providerMessages(turns), nil
}

// StreamTurn returns the output of one streamed turn as a lazy, single-pass sequence of
// framed chunks. Nothing happens until the caller ranges over it; the steps then run in
// order: read history, persist the user message, open the provider stream, emit one
// chunk per delta, emit the finish chunk (data framing), persist the reply.
//
// A failure ends the sequence with a (nil, err) pair. The reply is persisted only after
// a clean end of the provider stream: a provider failure, a cancelled ctx or the caller
// stopping early all leave only the user message behind. An unrecognised protocol
// produces no chunks and persists an empty reply.
func (o *Orchestrator) StreamTurn(ctx context.Context, chatID, userText, protocol string) iter.Seq2[[]byte, error] {
	return func(yield func([]byte, error) bool) {
		start := time.Now()
		outcome := metrics.OutcomeError
		defer func() {
			o.metrics.TurnFinished("stream", protocol, outcome, time.Since(start))
		}()
		log := o.log.With(zap.String("chat_id", chatID), zap.String("protocol", protocol))

		messages, err := o.prepare(ctx, chatID, userText)
		if err != nil {
			log.Warn("stream turn: prepare failed", zap.Error(err))
			yield(nil, err)
			return
		}

		stream, err := o.provider.StreamChat(ctx, messages)
		if err != nil {
			log.Warn("stream turn: provider did not start", zap.Error(err))
			yield(nil, &ProviderError{Op: "start stream", Err: err})
			return
		}
		defer stream.Close()

		framer := framing.For(protocol)
		accumulate := framing.Known(protocol)
		var acc strings.Builder
		for {
			delta, err := stream.Recv()
			if errors.Is(err, io.EOF) {
				break
			}
			if err != nil {
				if ctxErr := ctx.Err(); ctxErr != nil {
					outcome = metrics.OutcomeCanceled
					yield(nil, ctxErr)
					return
				}
				// the partial reply is not persisted
				log.Warn("stream turn: provider failed mid-stream",
					zap.Int("partial_len", acc.Len()), zap.Error(err))
				yield(nil, &ProviderError{Op: "stream", Err: err})
				return
			}
			if delta == "" || !accumulate {
				continue
			}
			acc.WriteString(delta)
			o.metrics.Delta()
			if !yield(framer.Delta(delta), nil) {
				outcome = metrics.OutcomeCanceled
				return
			}
		}

		if err := ctx.Err(); err != nil {
			outcome = metrics.OutcomeCanceled
			yield(nil, err)
			return
		}

		reply := acc.String()
		if chunk := framer.Finish(reply); chunk != nil {
			if !yield(chunk, nil) {
				outcome = metrics.OutcomeCanceled
				return
			}
		}

		if _, err := o.store.AppendMessage(ctx, chatID, reply, RoleAssistant.FromAI()); err != nil {
			log.Error("stream turn: persist reply failed", zap.Error(err))
			yield(nil, &StoreError{Op: OpAppendReply, Err: err})
			return
		}
		outcome = metrics.OutcomeOK
		log.Debug("stream turn done", zap.Int("reply_len", len(reply)), zap.Duration("took", time.Since(start)))
	}
}

// CompleteTurn is the single-shot variant of StreamTurn: same history and user-message
// handling, one non-streaming provider call, one write of the whole reply.
func (o *Orchestrator) CompleteTurn(ctx context.Context, chatID, userText string) (*Message, error) {
	start := time.Now()
	outcome := metrics.OutcomeError
	defer func() {
		o.metrics.TurnFinished("complete", "", outcome, time.Since(start))
	}()

	messages, err := o.prepare(ctx, chatID, userText)
	if err != nil {
		return nil, err
	}

	reply, err := o.provider.Chat(ctx, messages)
	if err != nil {
		return nil, &ProviderError{Op: "chat", Err: err}
	}

	msg, err := o.store.AppendMessage(ctx, chatID, reply, RoleAssistant.FromAI())
	if err != nil {
		return nil, &StoreError{Op: OpAppendReply, Err: err}
	}
	outcome = metrics.OutcomeOK
	return msg, nil
}
