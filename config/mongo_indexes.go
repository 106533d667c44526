package config

import (
	"context"
	"errors"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// callbackRetention bounds how long document callback audit entries are kept.
const callbackRetention = 90 * 24 * time.Hour

func EnsureMongoIndexes() error {
	if MongoClient == nil {
		return errors.New("MongoClient is nil; call InitMongo() first")
	}
	db := MongoDatabase()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	callbacks := db.Collection("document_callbacks")
	_, err := callbacks.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "received_at", Value: 1}},
			Options: options.Index().
				SetName("ttl_received_at").
				SetExpireAfterSeconds(int32(callbackRetention.Seconds())),
		},
		{
			Keys:    bson.D{{Key: "file_id", Value: 1}, {Key: "received_at", Value: -1}},
			Options: options.Index().SetName("by_file_received"),
		},
	})
	return err
}
