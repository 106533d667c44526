package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/MalcolmMc23/Alumo/internal/cache"
	"github.com/MalcolmMc23/Alumo/internal/models"
	"github.com/MalcolmMc23/Alumo/internal/providers/llm"
	pgrepo "github.com/MalcolmMc23/Alumo/internal/repositories/postgres"
	"github.com/MalcolmMc23/Alumo/internal/storage"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	require.NoError(t, pgrepo.AutoMigrate(db))
	return db
}

func seedUser(t *testing.T, db *gorm.DB, mut func(u *models.User)) *models.User {
	t.Helper()
	u := &models.User{
		ID:        uuid.NewString(),
		Email:     uuid.NewString() + "@example.edu",
		Name:      "Test Student",
		CreatedAt: time.Date(2024, time.March, 3, 10, 0, 0, 0, time.UTC),
	}
	if mut != nil {
		mut(u)
	}
	require.NoError(t, pgrepo.NewUserRepo(db).Create(context.Background(), u))
	return u
}

func newLocalStore(t *testing.T) *storage.LocalStore {
	t.Helper()
	s, err := storage.NewLocalStore(t.TempDir(), "http://files.test")
	require.NoError(t, err)
	return s
}

func newMemCache() cache.Cache {
	return cache.NewMemoryCache(time.Minute, time.Minute)
}

// fakeLLM records every conversation it was asked to complete.
type fakeLLM struct {
	mu    sync.Mutex
	reply string
	err   error
	calls [][]llm.Message
}

func (f *fakeLLM) Complete(_ context.Context, msgs []llm.Message) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, append([]llm.Message(nil), msgs...))
	if f.err != nil {
		return "", f.err
	}
	return f.reply, nil
}

func (f *fakeLLM) Close() error { return nil }

func (f *fakeLLM) lastCall() []llm.Message {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.calls) == 0 {
		return nil
	}
	return f.calls[len(f.calls)-1]
}
