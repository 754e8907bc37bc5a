package repository

import (
	"context"
	"time"

	"portal-rest-api/internal/model"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoDBUploadLogRepository implements UploadLogRepository for MongoDB
type MongoDBUploadLogRepository struct {
	client     *mongo.Client
	collection *mongo.Collection
}

// NewMongoDBUploadLogRepository connects to MongoDB and prepares the
// collection.
func NewMongoDBUploadLogRepository(uri, dbName, collectionName string) (*MongoDBUploadLogRepository, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	clientOptions := options.Client().ApplyURI(uri)
	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, err
	}

	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, err
	}

	collection := client.Database(dbName).Collection(collectionName)

	_, _ = collection.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "created_at", Value: -1}},
	})

	return &MongoDBUploadLogRepository{
		client:     client,
		collection: collection,
	}, nil
}

// InsertUploadLog inserts a new log entry
func (r *MongoDBUploadLogRepository) InsertUploadLog(ctx context.Context, log *model.UploadLog) error {
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}
	_, err := r.collection.InsertOne(ctx, log)
	return err
}

// GetUploadLogs returns logs newest first with pagination
func (r *MongoDBUploadLogRepository) GetUploadLogs(ctx context.Context, limit, offset int) ([]model.UploadLog, int64, error) {
	findOptions := options.Find()
	findOptions.SetSort(bson.D{{Key: "created_at", Value: -1}})
	findOptions.SetLimit(int64(limit))
	findOptions.SetSkip(int64(offset))

	cursor, err := r.collection.Find(ctx, bson.M{}, findOptions)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	var logs []model.UploadLog
	if err := cursor.All(ctx, &logs); err != nil {
		return nil, 0, err
	}

	// Ensure not nil slice for JSON
	if logs == nil {
		logs = []model.UploadLog{}
	}

	count, err := r.collection.CountDocuments(ctx, bson.M{})
	if err != nil {
		return nil, 0, err
	}

	return logs, count, nil
}

// Close closes the MongoDB connection
func (r *MongoDBUploadLogRepository) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return r.client.Disconnect(ctx)
}

var _ UploadLogRepository = (*MongoDBUploadLogRepository)(nil)
