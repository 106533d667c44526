package models

import (
	"time"

	"gorm.io/datatypes"
)

// Document is the registry entry for a file handed to the document editor.
type Document struct {
	ID           string `gorm:"column:id;type:uuid;primaryKey" json:"fileId"`
	UserID       string `gorm:"column:user_id;type:uuid;index;not null" json:"userId"`
	OriginalName string `gorm:"column:original_name;type:text" json:"fileName"`
	StoredName   string `gorm:"column:stored_name;type:text" json:"storedName"`
	StorageKey   string `gorm:"column:storage_key;type:text" json:"-"`
	MimeType     string `gorm:"column:mime_type;type:text" json:"mimeType"`
	Size         int64  `gorm:"column:size" json:"size"`
	Version      int    `gorm:"column:version;not null;default:1" json:"version"`

	// raw body of the most recent save callback
	LastCallback datatypes.JSON `gorm:"column:last_callback;type:jsonb" json:"-"`

	CreatedAt time.Time `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updatedAt"`
}

func (Document) TableName() string { return "documents" }
