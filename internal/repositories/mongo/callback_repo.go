package mongo

import (
	"context"
	"time"

	"github.com/MalcolmMc23/Alumo/internal/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type CallbackRepository interface {
	Insert(ctx context.Context, e *models.CallbackEvent) error
	ListByFile(ctx context.Context, fileID string, limit int64) ([]models.CallbackEvent, error)
}

type callbackRepo struct {
	col *mongo.Collection
}

func NewCallbackRepo(db *mongo.Database) CallbackRepository {
	return &callbackRepo{col: db.Collection("document_callbacks")}
}

func (r *callbackRepo) Insert(ctx context.Context, e *models.CallbackEvent) error {
	if e.ReceivedAt.IsZero() {
		e.ReceivedAt = time.Now().UTC()
	}
	_, err := r.col.InsertOne(ctx, e)
	return err
}

func (r *callbackRepo) ListByFile(ctx context.Context, fileID string, limit int64) ([]models.CallbackEvent, error) {
	if limit <= 0 {
		limit = 50
	}

	cur, err := r.col.Find(ctx,
		bson.M{"file_id": fileID},
		options.Find().
			SetSort(bson.D{{Key: "received_at", Value: -1}}).
			SetLimit(limit),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	var out []models.CallbackEvent
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}
