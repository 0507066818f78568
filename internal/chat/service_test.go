package chat

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestService_ChatLifecycle(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewRepo(openTestDB(t)))

	c, err := svc.CreateChat(ctx, nil)
	require.NoError(t, err)
	assert.NotEmpty(t, c.ChatID)
	assert.Equal(t, "Chat "+c.ChatID, c.DisplayTitle())

	_, err = svc.CreateMessage(ctx, c.ChatID, "hello", false)
	require.NoError(t, err)
	_, err = svc.CreateMessage(ctx, c.ChatID, "hi there", true)
	require.NoError(t, err)

	detail, err := svc.GetChat(ctx, c.ChatID)
	require.NoError(t, err)
	require.Len(t, detail.Messages, 2)
	assert.False(t, detail.Messages[0].IsFromAI)
	assert.True(t, detail.Messages[1].IsFromAI)

	require.NoError(t, svc.DeleteChat(ctx, c.ChatID))
	_, err = svc.GetChat(ctx, c.ChatID)
	assert.ErrorIs(t, err, ErrChatNotFound)
	_, err = svc.ListMessages(ctx, c.ChatID, 0, 0)
	assert.ErrorIs(t, err, ErrChatNotFound)
}

func TestService_ListChats_MostRecentlyUpdatedFirst(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewRepo(openTestDB(t)))

	older, err := svc.CreateChat(ctx, strPtr("older"))
	require.NoError(t, err)
	_, err = svc.CreateChat(ctx, strPtr("newer"))
	require.NoError(t, err)

	// a new message makes the older chat the most recently updated one
	_, err = svc.CreateMessage(ctx, older.ChatID, "bump", false)
	require.NoError(t, err)

	chats, err := svc.ListChats(ctx, 0, 0)
	require.NoError(t, err)
	require.Len(t, chats, 2)
	assert.Equal(t, older.ChatID, chats[0].ChatID)
}

func TestService_CreateMessage_UnknownChat(t *testing.T) {
	svc := NewService(NewRepo(openTestDB(t)))
	_, err := svc.CreateMessage(context.Background(), "missing", "x", false)
	assert.ErrorIs(t, err, ErrChatNotFound)
}

func TestService_EnqueueCompletion(t *testing.T) {
	ctx := context.Background()
	svc := NewService(NewRepo(openTestDB(t)))
	c, err := svc.CreateChat(ctx, nil)
	require.NoError(t, err)

	j1, created, err := svc.EnqueueCompletion(ctx, c.ChatID, "p", "key-1")
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, JobQueued, j1.Status)
	assert.Len(t, j1.ID, 26)

	j2, created, err := svc.EnqueueCompletion(ctx, c.ChatID, "p", "key-1")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, j1.ID, j2.ID)

	j3, created, err := svc.EnqueueCompletion(ctx, c.ChatID, "p", "")
	require.NoError(t, err)
	assert.True(t, created)
	assert.NotEqual(t, j1.ID, j3.ID)

	_, _, err = svc.EnqueueCompletion(ctx, "missing", "p", "")
	assert.ErrorIs(t, err, ErrChatNotFound)
}
