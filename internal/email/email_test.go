package email

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/suPer8Hu/ai-chat-backend/internal/models"
)

func TestBuildMessage_HeadersAndBcc(t *testing.T) {
	msg := string(buildMessage("bot@x.io", Mail{
		To:      []string{"a@x.io", "b@x.io"},
		Cc:      []string{"c@x.io"},
		Bcc:     []string{"hidden@x.io"},
		Subject: "Hi",
		Body:    "line1\nline2",
	}, time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)))

	assert.Contains(t, msg, "From: bot@x.io\r\n")
	assert.Contains(t, msg, "To: a@x.io, b@x.io\r\n")
	assert.Contains(t, msg, "Cc: c@x.io\r\n")
	assert.NotContains(t, msg, "hidden@x.io")
	assert.Contains(t, msg, `Content-Type: text/plain; charset="utf-8"`)
	assert.True(t, strings.HasSuffix(msg, "\r\n\r\nline1\r\nline2"))
}

func TestRecipientsIncludeCcAndBcc(t *testing.T) {
	m := Mail{To: []string{"a"}, Cc: []string{"b"}, Bcc: []string{"c"}}
	assert.Equal(t, []string{"a", "b", "c"}, m.recipients())
}

func TestSend_NoRecipients(t *testing.T) {
	assert.Error(t, Send(context.Background(), SMTPConfig{Host: "localhost"}, Mail{}))
}

func TestSender_SendTemplate(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "welcome.html"),
		[]byte(`<p>Hello {{.Name}}</p><p>{{.Username}}</p>`), 0o600))

	var got Mail
	s := NewSender(SMTPConfig{From: "bot@x.io"}, dir)
	s.send = func(_ context.Context, _ SMTPConfig, m Mail) error {
		got = m
		return nil
	}

	require.NoError(t, s.Welcome(context.Background(), models.Profile{Username: "<al>", Email: "al@x.io"}))

	assert.Equal(t, []string{"al@x.io"}, got.To)
	assert.True(t, got.HTML)
	assert.Equal(t, "<p>Hello &lt;al&gt;</p><p>&lt;al&gt;</p>", got.Body)
}

func TestSender_RenderRejectsPaths(t *testing.T) {
	s := NewSender(SMTPConfig{}, t.TempDir())
	_, err := s.Render("../secret.html", nil)
	assert.Error(t, err)
	_, err = s.Render("missing.html", nil)
	assert.Error(t, err)
}
