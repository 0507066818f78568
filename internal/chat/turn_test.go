package chat

import (
	"context"
	"errors"
	"iter"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suPer8Hu/ai-chat-backend/internal/ai"
	"github.com/suPer8Hu/ai-chat-backend/internal/ai/aitest"
)

func collect(seq iter.Seq2[[]byte, error]) ([]string, error) {
	var chunks []string
	for chunk, err := range seq {
		if err != nil {
			return chunks, err
		}
		chunks = append(chunks, string(chunk))
	}
	return chunks, nil
}

// flakyStore fails History or the n-th AppendMessage (1-based) on demand.
type flakyStore struct {
	*Repo
	historyErr   error
	failAppendAt int
	appends      int
}

func (f *flakyStore) History(ctx context.Context, chatID string) ([]Message, error) {
	if f.historyErr != nil {
		return nil, f.historyErr
	}
	return f.Repo.History(ctx, chatID)
}

func (f *flakyStore) AppendMessage(ctx context.Context, chatID, content string, fromAI bool) (*Message, error) {
	f.appends++
	if f.appends == f.failAppendAt {
		return nil, errors.New("db down")
	}
	return f.Repo.AppendMessage(ctx, chatID, content, fromAI)
}

func setupTurn(t *testing.T, prov *aitest.Provider, history ...string) (*Repo, *Chat, *Orchestrator) {
	t.Helper()
	repo := NewRepo(openTestDB(t))
	c := mustCreateChat(t, repo, nil)
	for _, h := range history {
		_, err := repo.AppendMessage(context.Background(), c.ChatID, h, false)
		require.NoError(t, err)
	}
	return repo, c, NewOrchestrator(repo, prov, 0, nil, nil)
}

func requireStreamClosed(t *testing.T, prov *aitest.Provider) {
	t.Helper()
	streams := prov.Streams()
	require.Len(t, streams, 1)
	assert.True(t, streams[0].Closed(), "provider stream left open")
}

func TestStreamTurn_DataFraming(t *testing.T) {
	prov := &aitest.Provider{Deltas: []string{"I'm ", "fine."}}
	repo, c, o := setupTurn(t, prov, "hi")

	chunks, err := collect(o.StreamTurn(context.Background(), c.ChatID, "how are you", "data"))
	require.NoError(t, err)

	// completionTokens is the character count of the reply: "I'm fine." is 9, not 10.
	assert.Equal(t, []string{
		"0:\"I'm \"\n",
		"0:\"fine.\"\n",
		`d:{"finishReason":"stop","usage":{"promptTokens":0,"completionTokens":9}}` + "\n",
	}, chunks)
	assert.Equal(t, []storedTurn{
		{RoleUser, "hi"},
		{RoleUser, "how are you"},
		{RoleAssistant, "I'm fine."},
	}, storedTurns(t, repo, c.ChatID))
	requireStreamClosed(t, prov)

	calls := prov.Calls()
	require.Len(t, calls, 1)
	assert.Equal(t, []ai.Message{
		{Role: "user", Content: "hi"},
		{Role: "user", Content: "how are you"},
	}, calls[0])
}

func TestStreamTurn_TextFraming(t *testing.T) {
	prov := &aitest.Provider{Deltas: []string{"a", "", "b", "c"}}
	repo, c, o := setupTurn(t, prov)

	chunks, err := collect(o.StreamTurn(context.Background(), c.ChatID, "q", "text"))
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b", "c"}, chunks)
	assert.Equal(t, "abc", strings.Join(chunks, ""))
	assert.Equal(t, []storedTurn{{RoleUser, "q"}, {RoleAssistant, "abc"}}, storedTurns(t, repo, c.ChatID))
}

func TestStreamTurn_ProviderFailsMidStream(t *testing.T) {
	boom := errors.New("connection reset")
	prov := &aitest.Provider{Deltas: []string{"I'm ", "fine."}, StreamErr: boom, FailAfter: 1}
	repo, c, o := setupTurn(t, prov, "hi")

	chunks, err := collect(o.StreamTurn(context.Background(), c.ChatID, "how are you", "data"))

	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, []string{"0:\"I'm \"\n"}, chunks)
	assert.Equal(t, []storedTurn{
		{RoleUser, "hi"},
		{RoleUser, "how are you"},
	}, storedTurns(t, repo, c.ChatID))
	requireStreamClosed(t, prov)
}

func TestStreamTurn_ProviderFailsToStart(t *testing.T) {
	prov := &aitest.Provider{StartErr: errors.New("401")}
	repo, c, o := setupTurn(t, prov)

	chunks, err := collect(o.StreamTurn(context.Background(), c.ChatID, "q", "data"))

	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Empty(t, chunks)
	assert.Equal(t, []storedTurn{{RoleUser, "q"}}, storedTurns(t, repo, c.ChatID))
}

func TestStreamTurn_EmptyProviderStream(t *testing.T) {
	prov := &aitest.Provider{}
	repo, c, o := setupTurn(t, prov)

	chunks, err := collect(o.StreamTurn(context.Background(), c.ChatID, "q", "data"))
	require.NoError(t, err)

	assert.Equal(t, []string{
		`d:{"finishReason":"stop","usage":{"promptTokens":0,"completionTokens":0}}` + "\n",
	}, chunks)
	assert.Equal(t, []storedTurn{{RoleUser, "q"}, {RoleAssistant, ""}}, storedTurns(t, repo, c.ChatID))
}

func TestStreamTurn_UnknownFramingPersistsEmptyReply(t *testing.T) {
	prov := &aitest.Provider{Deltas: []string{"ignored"}}
	repo, c, o := setupTurn(t, prov)

	chunks, err := collect(o.StreamTurn(context.Background(), c.ChatID, "q", "sse"))
	require.NoError(t, err)

	assert.Empty(t, chunks)
	assert.Equal(t, []storedTurn{{RoleUser, "q"}, {RoleAssistant, ""}}, storedTurns(t, repo, c.ChatID))
}

func TestStreamTurn_NotIdempotent(t *testing.T) {
	prov := &aitest.Provider{Deltas: []string{"ok"}}
	repo, c, o := setupTurn(t, prov, "hi")

	for i := 1; i <= 2; i++ {
		_, err := collect(o.StreamTurn(context.Background(), c.ChatID, "same", "data"))
		require.NoError(t, err)
		assert.Len(t, storedTurns(t, repo, c.ChatID), 1+2*i)
	}
}

func TestStreamTurn_IsLazy(t *testing.T) {
	prov := &aitest.Provider{Deltas: []string{"x"}}
	repo, c, o := setupTurn(t, prov)

	seq := o.StreamTurn(context.Background(), c.ChatID, "q", "data")
	assert.Empty(t, storedTurns(t, repo, c.ChatID))
	assert.Empty(t, prov.Calls())

	_, err := collect(seq)
	require.NoError(t, err)
	assert.Len(t, storedTurns(t, repo, c.ChatID), 2)
}

func TestStreamTurn_CallerStopsEarly(t *testing.T) {
	prov := &aitest.Provider{Deltas: []string{"a", "b", "c"}}
	repo, c, o := setupTurn(t, prov)

	n := 0
	for _, err := range o.StreamTurn(context.Background(), c.ChatID, "q", "text") {
		require.NoError(t, err)
		n++
		break
	}

	assert.Equal(t, 1, n)
	assert.Equal(t, []storedTurn{{RoleUser, "q"}}, storedTurns(t, repo, c.ChatID))
	requireStreamClosed(t, prov)
}

func TestStreamTurn_ContextCancelled(t *testing.T) {
	prov := &aitest.Provider{Deltas: []string{"a", "b", "c"}}
	repo, c, o := setupTurn(t, prov)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var chunks []string
	var gotErr error
	for chunk, err := range o.StreamTurn(ctx, c.ChatID, "q", "text") {
		if err != nil {
			gotErr = err
			break
		}
		chunks = append(chunks, string(chunk))
		cancel()
	}

	assert.ErrorIs(t, gotErr, context.Canceled)
	assert.Equal(t, []string{"a"}, chunks)
	assert.Equal(t, []storedTurn{{RoleUser, "q"}}, storedTurns(t, repo, c.ChatID))
	requireStreamClosed(t, prov)
}

func TestStreamTurn_UnknownChatFailsBeforeProvider(t *testing.T) {
	prov := &aitest.Provider{Deltas: []string{"x"}}
	_, _, o := setupTurn(t, prov)

	chunks, err := collect(o.StreamTurn(context.Background(), "missing", "q", "data"))

	var serr *StoreError
	require.ErrorAs(t, err, &serr)
	assert.ErrorIs(t, err, ErrChatNotFound)
	assert.Empty(t, chunks)
	assert.Empty(t, prov.Calls())
}

func TestStreamTurn_HistoryReadFails(t *testing.T) {
	prov := &aitest.Provider{Deltas: []string{"x"}}
	repo, c, _ := setupTurn(t, prov)
	o := NewOrchestrator(&flakyStore{Repo: repo, historyErr: errors.New("timeout")}, prov, 0, nil, nil)

	_, err := collect(o.StreamTurn(context.Background(), c.ChatID, "q", "data"))

	var serr *StoreError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, OpReadHistory, serr.Op)
	assert.Empty(t, prov.Calls())
	assert.Empty(t, storedTurns(t, repo, c.ChatID))
}

func TestStreamTurn_ReplyWriteFails(t *testing.T) {
	prov := &aitest.Provider{Deltas: []string{"x"}}
	repo, c, _ := setupTurn(t, prov)
	o := NewOrchestrator(&flakyStore{Repo: repo, failAppendAt: 2}, prov, 0, nil, nil)

	chunks, err := collect(o.StreamTurn(context.Background(), c.ChatID, "q", "data"))

	var serr *StoreError
	require.ErrorAs(t, err, &serr)
	assert.Equal(t, OpAppendReply, serr.Op)
	assert.Len(t, chunks, 2)
	assert.Equal(t, []storedTurn{{RoleUser, "q"}}, storedTurns(t, repo, c.ChatID))
}

func TestStreamTurn_ContextWindowTrimsProviderInputOnly(t *testing.T) {
	prov := &aitest.Provider{Deltas: []string{"r"}}
	repo := NewRepo(openTestDB(t))
	c := mustCreateChat(t, repo, nil)
	for _, h := range []string{"1", "2", "3", "4"} {
		_, err := repo.AppendMessage(context.Background(), c.ChatID, h, false)
		require.NoError(t, err)
	}
	o := NewOrchestrator(repo, prov, 3, nil, nil)

	_, err := collect(o.StreamTurn(context.Background(), c.ChatID, "new", "text"))
	require.NoError(t, err)

	calls := prov.Calls()
	require.Len(t, calls, 1)
	require.Len(t, calls[0], 3)
	assert.Equal(t, ai.Message{Role: "user", Content: "new"}, calls[0][2])
	assert.Len(t, storedTurns(t, repo, c.ChatID), 6)
}

func TestCompleteTurn(t *testing.T) {
	prov := &aitest.Provider{Reply: "pong"}
	repo, c, o := setupTurn(t, prov, "hi")

	msg, err := o.CompleteTurn(context.Background(), c.ChatID, "ping")
	require.NoError(t, err)

	assert.True(t, msg.IsFromAI)
	assert.Equal(t, "pong", msg.Content)
	assert.Equal(t, []storedTurn{
		{RoleUser, "hi"},
		{RoleUser, "ping"},
		{RoleAssistant, "pong"},
	}, storedTurns(t, repo, c.ChatID))
}

func TestCompleteTurn_ProviderError(t *testing.T) {
	prov := &aitest.Provider{ChatErr: errors.New("overloaded")}
	repo, c, o := setupTurn(t, prov)

	_, err := o.CompleteTurn(context.Background(), c.ChatID, "ping")

	var perr *ProviderError
	require.ErrorAs(t, err, &perr)
	assert.Equal(t, []storedTurn{{RoleUser, "ping"}}, storedTurns(t, repo, c.ChatID))
}

func TestPromptStored(t *testing.T) {
	boom := errors.New("boom")
	assert.True(t, PromptStored(&ProviderError{Op: "chat", Err: boom}))
	assert.True(t, PromptStored(&StoreError{Op: OpAppendReply, Err: boom}))
	assert.False(t, PromptStored(&StoreError{Op: OpAppendUser, Err: boom}))
	assert.False(t, PromptStored(&StoreError{Op: OpReadHistory, Err: boom}))
	assert.False(t, PromptStored(boom))
}
