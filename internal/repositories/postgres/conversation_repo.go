package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/MalcolmMc23/Alumo/internal/models"
	"github.com/MalcolmMc23/Alumo/internal/utils"
	"gorm.io/gorm"
)

type ConversationRepo interface {
	// Create inserts the conversation and its messages in one transaction.
	Create(ctx context.Context, c *models.Conversation) error
	GetByID(ctx context.Context, id string) (*models.Conversation, error)
	GetForUser(ctx context.Context, userID, id string) (*models.Conversation, error)
	// AppendMessages inserts msgs and bumps updated_at in one transaction.
	AppendMessages(ctx context.Context, conversationID string, msgs []models.Message, touchedAt time.Time) error
	ListByUser(ctx context.Context, userID string, offset, limit int) ([]models.Conversation, int64, error)
	LatestMessages(ctx context.Context, conversationIDs []string) (map[string]models.Message, error)
	// Messages returns a window in ascending order; limit <= 0 returns all.
	Messages(ctx context.Context, conversationID string, offset, limit int) ([]models.Message, int64, error)
}

type conversationRepo struct {
	db *gorm.DB
}

func NewConversationRepo(db *gorm.DB) ConversationRepo {
	return &conversationRepo{db: db}
}

func (r *conversationRepo) Create(ctx context.Context, c *models.Conversation) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		msgs := c.Messages
		c.Messages = nil
		if err := tx.Omit("Messages").Create(c).Error; err != nil {
			return err
		}
		if len(msgs) > 0 {
			if err := tx.Create(&msgs).Error; err != nil {
				return err
			}
		}
		c.Messages = msgs
		return nil
	})
}

func (r *conversationRepo) GetByID(ctx context.Context, id string) (*models.Conversation, error) {
	var c models.Conversation
	err := r.db.WithContext(ctx).Where("id = ?", id).Take(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *conversationRepo) GetForUser(ctx context.Context, userID, id string) (*models.Conversation, error) {
	var c models.Conversation
	err := r.db.WithContext(ctx).
		Where("id = ? AND user_id = ?", id, userID).
		Take(&c).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *conversationRepo) AppendMessages(ctx context.Context, conversationID string, msgs []models.Message, touchedAt time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(&msgs).Error; err != nil {
			return err
		}
		res := tx.Model(&models.Conversation{}).
			Where("id = ?", conversationID).
			UpdateColumn("updated_at", touchedAt)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return utils.ErrNotFound
		}
		return nil
	})
}

func (r *conversationRepo) ListByUser(ctx context.Context, userID string, offset, limit int) ([]models.Conversation, int64, error) {
	var total int64
	q := r.db.WithContext(ctx).Model(&models.Conversation{}).Where("user_id = ?", userID)
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.Conversation
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("updated_at DESC").
		Order("id").
		Offset(offset).
		Limit(limit).
		Find(&rows).Error
	return rows, total, err
}

func (r *conversationRepo) LatestMessages(ctx context.Context, conversationIDs []string) (map[string]models.Message, error) {
	out := make(map[string]models.Message, len(conversationIDs))
	if len(conversationIDs) == 0 {
		return out, nil
	}

	var rows []models.Message
	err := r.db.WithContext(ctx).
		Where("conversation_id IN ?", conversationIDs).
		Where("created_at = (SELECT MAX(m2.created_at) FROM messages AS m2 WHERE m2.conversation_id = messages.conversation_id)").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	for _, m := range rows {
		if _, ok := out[m.ConversationID]; !ok {
			out[m.ConversationID] = m
		}
	}
	return out, nil
}

func (r *conversationRepo) Messages(ctx context.Context, conversationID string, offset, limit int) ([]models.Message, int64, error) {
	var total int64
	if err := r.db.WithContext(ctx).
		Model(&models.Message{}).
		Where("conversation_id = ?", conversationID).
		Count(&total).Error; err != nil {
		return nil, 0, err
	}

	var rows []models.Message
	if limit <= 0 {
		err := r.db.WithContext(ctx).
			Where("conversation_id = ?", conversationID).
			Order("created_at ASC").
			Find(&rows).Error
		return rows, total, err
	}

	// newest window first, then flip to ascending for display
	err := r.db.WithContext(ctx).
		Where("conversation_id = ?", conversationID).
		Order("created_at DESC").
		Offset(offset).
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, 0, err
	}
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}
	return rows, total, nil
}
