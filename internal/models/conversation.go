package models

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ValidRole reports whether r is an accepted message role.
func ValidRole(r string) bool {
	switch r {
	case RoleUser, RoleAssistant, RoleSystem:
		return true
	}
	return false
}

type Conversation struct {
	ID        string    `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	UserID    string    `gorm:"column:user_id;type:uuid;index;not null" json:"userId"`
	Title     string    `gorm:"column:title;type:text" json:"title"`
	CreatedAt time.Time `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at;index" json:"updatedAt"`

	Messages []Message `gorm:"foreignKey:ConversationID;constraint:OnDelete:CASCADE" json:"messages"`
}

func (Conversation) TableName() string { return "conversations" }

// Message is immutable once written.
type Message struct {
	ID             string    `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	ConversationID string    `gorm:"column:conversation_id;type:uuid;index;not null" json:"conversationId"`
	Role           string    `gorm:"column:role;type:text;not null" json:"role"`
	Content        string    `gorm:"column:content;type:text;not null" json:"content"`
	CreatedAt      time.Time `gorm:"column:created_at;index" json:"createdAt"`
}

func (Message) TableName() string { return "messages" }
