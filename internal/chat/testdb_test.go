package chat

import (
	"context"
	"fmt"
	"strings"
	"testing"

	gormsqlite "github.com/glebarez/sqlite"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := gorm.Open(gormsqlite.Open(fmt.Sprintf("file:%s?mode=memory&cache=shared", name)), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err, "open sqlite")
	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, db.AutoMigrate(Models()...), "automigrate")
	return db
}

func mustCreateChat(t *testing.T, repo *Repo, title *string) *Chat {
	t.Helper()
	c := &Chat{Title: title}
	require.NoError(t, repo.CreateChat(context.Background(), c))
	return c
}

type storedTurn struct {
	Role    Role
	Content string
}

func storedTurns(t *testing.T, repo *Repo, chatID string) []storedTurn {
	t.Helper()
	msgs, err := repo.History(context.Background(), chatID)
	require.NoError(t, err)
	out := make([]storedTurn, 0, len(msgs))
	for _, m := range msgs {
		out = append(out, storedTurn{Role: RoleFromAI(m.IsFromAI), Content: m.Content})
	}
	return out
}
