package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/MalcolmMc23/Alumo/internal/models"
	pgrepo "github.com/MalcolmMc23/Alumo/internal/repositories/postgres"
	"github.com/MalcolmMc23/Alumo/internal/utils"

	"github.com/google/uuid"
)

const (
	DefaultTitle = "New Conversation"
	titleMaxLen  = 50

	DefaultListLimit    = 20
	MaxListLimit        = 100
	DefaultMessageLimit = 50
)

// MessageInput is one message as submitted by a client.
type MessageInput struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Pagination struct {
	Page       int   `json:"page"`
	Limit      int   `json:"limit"`
	Total      int64 `json:"total"`
	TotalPages int   `json:"totalPages"`
	HasMore    bool  `json:"hasMore"`
}

type ConversationPage struct {
	Conversations []models.Conversation `json:"conversations"`
	Pagination    Pagination            `json:"pagination"`
}

type ConversationDetail struct {
	models.Conversation
	Pagination Pagination `json:"pagination"`
}

type ConversationService interface {
	Create(ctx context.Context, userID string, msgs []MessageInput) (*models.Conversation, error)
	Append(ctx context.Context, userID, conversationID string, msgs []MessageInput) (*models.Conversation, error)
	List(ctx context.Context, userID string, page, limit int) (*ConversationPage, error)
	Get(ctx context.Context, userID, conversationID string, page, limit int, loadAll bool) (*ConversationDetail, error)
}

type conversationService struct {
	convos pgrepo.ConversationRepo
	now    func() time.Time
}

func NewConversationService(convos pgrepo.ConversationRepo) ConversationService {
	return &conversationService{convos: convos, now: time.Now}
}

// DeriveTitle uses the first user message, truncated to 50 characters.
func DeriveTitle(msgs []MessageInput) string {
	for _, m := range msgs {
		if m.Role != models.RoleUser {
			continue
		}
		content := m.Content
		if strings.TrimSpace(content) == "" {
			continue
		}
		if utf8.RuneCountInString(content) > titleMaxLen {
			return string([]rune(content)[:titleMaxLen]) + "..."
		}
		return content
	}
	return DefaultTitle
}

// isRowID reports whether id can name a stored row. Row ids are UUIDs, and
// Postgres rejects anything else before the lookup runs.
func isRowID(id string) bool {
	_, err := uuid.Parse(id)
	return err == nil
}

func validateMessages(op string, msgs []MessageInput) error {
	if len(msgs) == 0 {
		return utils.E(utils.CodeInvalidArgument, op, "Invalid messages format", nil)
	}
	for _, m := range msgs {
		if !models.ValidRole(m.Role) {
			return utils.E(utils.CodeInvalidArgument, op, "Invalid messages format: role must be user, assistant or system", nil)
		}
		if strings.TrimSpace(m.Content) == "" {
			return utils.E(utils.CodeInvalidArgument, op, "Invalid messages format: content is required", nil)
		}
	}
	return nil
}

// toRows stamps strictly increasing timestamps so batch order survives a sort by created_at.
func toRows(conversationID string, msgs []MessageInput, base time.Time) []models.Message {
	rows := make([]models.Message, len(msgs))
	for i, m := range msgs {
		rows[i] = models.Message{
			ID:             uuid.NewString(),
			ConversationID: conversationID,
			Role:           m.Role,
			Content:        m.Content,
			CreatedAt:      base.Add(time.Duration(i) * time.Microsecond),
		}
	}
	return rows
}

func (s *conversationService) Create(ctx context.Context, userID string, msgs []MessageInput) (*models.Conversation, error) {
	const op = "ConversationService.Create"

	if userID == "" {
		return nil, utils.E(utils.CodeUnauthorized, op, "unauthorized", nil)
	}
	if err := validateMessages(op, msgs); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	conv := &models.Conversation{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     DeriveTitle(msgs),
		CreatedAt: now,
		UpdatedAt: now,
	}
	conv.Messages = toRows(conv.ID, msgs, now)

	if err := s.convos.Create(ctx, conv); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to create conversation", err)
	}
	return conv, nil
}

func (s *conversationService) Append(ctx context.Context, userID, conversationID string, msgs []MessageInput) (*models.Conversation, error) {
	const op = "ConversationService.Append"

	if conversationID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "conversation id is required", nil)
	}
	if err := validateMessages(op, msgs); err != nil {
		return nil, err
	}
	if !isRowID(conversationID) {
		return nil, utils.E(utils.CodeNotFound, op, "Conversation not found", nil)
	}

	conv, err := s.convos.GetByID(ctx, conversationID)
	if errors.Is(err, utils.ErrNotFound) {
		return nil, utils.E(utils.CodeNotFound, op, "Conversation not found", err)
	}
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to load conversation", err)
	}
	if conv.UserID != userID {
		return nil, utils.E(utils.CodeForbidden, op, "Unauthorized to modify this conversation", nil)
	}

	now := s.now().UTC()
	if err := s.convos.AppendMessages(ctx, conv.ID, toRows(conv.ID, msgs, now), now); err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "Conversation not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to append messages", err)
	}

	all, _, err := s.convos.Messages(ctx, conv.ID, 0, 0)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to load messages", err)
	}
	conv.UpdatedAt = now
	conv.Messages = all
	return conv, nil
}

func (s *conversationService) List(ctx context.Context, userID string, page, limit int) (*ConversationPage, error) {
	const op = "ConversationService.List"

	if userID == "" {
		return nil, utils.E(utils.CodeUnauthorized, op, "unauthorized", nil)
	}
	page, limit = normalizePage(page, limit, DefaultListLimit, MaxListLimit)

	rows, total, err := s.convos.ListByUser(ctx, userID, (page-1)*limit, limit)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list conversations", err)
	}

	ids := make([]string, len(rows))
	for i := range rows {
		ids[i] = rows[i].ID
	}
	latest, err := s.convos.LatestMessages(ctx, ids)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to load message previews", err)
	}
	for i := range rows {
		rows[i].Messages = []models.Message{}
		if m, ok := latest[rows[i].ID]; ok {
			rows[i].Messages = append(rows[i].Messages, m)
		}
	}
	if rows == nil {
		rows = []models.Conversation{}
	}

	return &ConversationPage{
		Conversations: rows,
		Pagination:    paginate(page, limit, total),
	}, nil
}

func (s *conversationService) Get(ctx context.Context, userID, conversationID string, page, limit int, loadAll bool) (*ConversationDetail, error) {
	const op = "ConversationService.Get"

	if conversationID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "conversation id is required", nil)
	}

	if !isRowID(conversationID) {
		return nil, utils.E(utils.CodeNotFound, op, "Conversation not found", nil)
	}

	// scoped lookup: another user's conversation reads as missing
	conv, err := s.convos.GetForUser(ctx, userID, conversationID)
	if errors.Is(err, utils.ErrNotFound) {
		return nil, utils.E(utils.CodeNotFound, op, "Conversation not found", err)
	}
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to load conversation", err)
	}

	var (
		msgs  []models.Message
		total int64
	)
	if loadAll {
		msgs, total, err = s.convos.Messages(ctx, conv.ID, 0, 0)
		page, limit = 1, int(total)
	} else {
		page, limit = normalizePage(page, limit, DefaultMessageLimit, MaxListLimit)
		msgs, total, err = s.convos.Messages(ctx, conv.ID, (page-1)*limit, limit)
	}
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to load messages", err)
	}
	if msgs == nil {
		msgs = []models.Message{}
	}
	conv.Messages = msgs

	return &ConversationDetail{Conversation: *conv, Pagination: paginate(page, limit, total)}, nil
}

func normalizePage(page, limit, def, max int) (int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = def
	}
	if limit > max {
		limit = max
	}
	return page, limit
}

func paginate(page, limit int, total int64) Pagination {
	p := Pagination{Page: page, Limit: limit, Total: total}
	if limit > 0 {
		p.TotalPages = int((total + int64(limit) - 1) / int64(limit))
	}
	p.HasMore = int64(page*limit) < total
	return p
}
