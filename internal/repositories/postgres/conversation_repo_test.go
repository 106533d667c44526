package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/MalcolmMc23/Alumo/internal/models"
	"github.com/MalcolmMc23/Alumo/internal/utils"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newConversation(userID string, at time.Time, contents ...string) *models.Conversation {
	c := &models.Conversation{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     "t",
		CreatedAt: at,
		UpdatedAt: at,
	}
	for i, content := range contents {
		c.Messages = append(c.Messages, models.Message{
			ID:             uuid.NewString(),
			ConversationID: c.ID,
			Role:           models.RoleUser,
			Content:        content,
			CreatedAt:      at.Add(time.Duration(i) * time.Millisecond),
		})
	}
	return c
}

func TestConversationRepo_CreateAndMessages(t *testing.T) {
	repo := NewConversationRepo(openTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC()

	c := newConversation("u1", now, "one", "two", "three")
	require.NoError(t, repo.Create(ctx, c))
	assert.Len(t, c.Messages, 3)

	all, total, err := repo.Messages(ctx, c.ID, 0, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 3, total)
	require.Len(t, all, 3)
	assert.Equal(t, []string{"one", "two", "three"}, []string{all[0].Content, all[1].Content, all[2].Content})

	// newest window of two, still ascending
	window, _, err := repo.Messages(ctx, c.ID, 0, 2)
	require.NoError(t, err)
	require.Len(t, window, 2)
	assert.Equal(t, "two", window[0].Content)
	assert.Equal(t, "three", window[1].Content)

	older, _, err := repo.Messages(ctx, c.ID, 2, 2)
	require.NoError(t, err)
	require.Len(t, older, 1)
	assert.Equal(t, "one", older[0].Content)
}

func TestConversationRepo_GetForUser(t *testing.T) {
	repo := NewConversationRepo(openTestDB(t))
	ctx := context.Background()

	c := newConversation("owner", time.Now().UTC(), "hi")
	require.NoError(t, repo.Create(ctx, c))

	got, err := repo.GetForUser(ctx, "owner", c.ID)
	require.NoError(t, err)
	assert.Equal(t, c.ID, got.ID)

	_, err = repo.GetForUser(ctx, "intruder", c.ID)
	assert.ErrorIs(t, err, utils.ErrNotFound)

	_, err = repo.GetByID(ctx, uuid.NewString())
	assert.ErrorIs(t, err, utils.ErrNotFound)
}

func TestConversationRepo_AppendMovesToTop(t *testing.T) {
	repo := NewConversationRepo(openTestDB(t))
	ctx := context.Background()
	base := time.Now().UTC().Add(-time.Hour)

	older := newConversation("u1", base, "old")
	newer := newConversation("u1", base.Add(time.Minute), "new")
	other := newConversation("u2", base.Add(2*time.Minute), "other")
	for _, c := range []*models.Conversation{older, newer, other} {
		require.NoError(t, repo.Create(ctx, c))
	}

	rows, total, err := repo.ListByUser(ctx, "u1", 0, 10)
	require.NoError(t, err)
	assert.EqualValues(t, 2, total)
	require.Len(t, rows, 2)
	assert.Equal(t, newer.ID, rows[0].ID)

	touched := time.Now().UTC()
	err = repo.AppendMessages(ctx, older.ID, []models.Message{{
		ID:             uuid.NewString(),
		ConversationID: older.ID,
		Role:           models.RoleAssistant,
		Content:        "reply",
		CreatedAt:      touched,
	}}, touched)
	require.NoError(t, err)

	rows, _, err = repo.ListByUser(ctx, "u1", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, older.ID, rows[0].ID)

	latest, err := repo.LatestMessages(ctx, []string{older.ID, newer.ID})
	require.NoError(t, err)
	assert.Equal(t, "reply", latest[older.ID].Content)
	assert.Equal(t, "new", latest[newer.ID].Content)
}

func TestConversationRepo_AppendUnknownConversation(t *testing.T) {
	repo := NewConversationRepo(openTestDB(t))
	ctx := context.Background()
	missing := uuid.NewString()

	err := repo.AppendMessages(ctx, missing, []models.Message{{
		ID:             uuid.NewString(),
		ConversationID: missing,
		Role:           models.RoleUser,
		Content:        "x",
		CreatedAt:      time.Now().UTC(),
	}}, time.Now().UTC())
	assert.ErrorIs(t, err, utils.ErrNotFound)

	// the transaction rolled back the message insert
	_, total, err := repo.Messages(ctx, missing, 0, 0)
	require.NoError(t, err)
	assert.EqualValues(t, 0, total)
}
