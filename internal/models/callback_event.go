package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// CallbackEvent is one document-server callback, kept for auditing.
type CallbackEvent struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	FileID     string             `bson:"file_id" json:"fileId"`
	Status     int                `bson:"status" json:"status"`
	URL        string             `bson:"url,omitempty" json:"url,omitempty"`
	Key        string             `bson:"key,omitempty" json:"key,omitempty"`
	Users      []string           `bson:"users,omitempty" json:"users,omitempty"`
	Outcome    string             `bson:"outcome" json:"outcome"` // ack|saved|failed
	Error      string             `bson:"error,omitempty" json:"error,omitempty"`
	ReceivedAt time.Time          `bson:"received_at" json:"receivedAt"`
}
