package storage

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"NewsAlerts/internal/domain"
	"NewsAlerts/internal/ports"
)

const (
	alertsCollection     = "alerts"
	usersCollection      = "users"
	intentsCollection    = "alert_intents"
	articlesCollection   = "articles"
	dispatchesCollection = "dispatch_records"
)

// MongoStore persists alerts, intents, articles and dispatch records in MongoDB.
type MongoStore struct {
	client *mongo.Client
	db     *mongo.Database
	logger *slog.Logger
}

var _ ports.Store = (*MongoStore)(nil)

// OpenMongo connects, pings and ensures indexes.
func OpenMongo(ctx context.Context, uri, database string, logger *slog.Logger) (*MongoStore, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("mongo connect: %w", err)
	}
	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, nil); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongo ping: %w", err)
	}
	s := &MongoStore{client: client, db: client.Database(database), logger: logger}
	if err := s.EnsureIndexes(ctx); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, err
	}
	return s, nil
}

// EnsureIndexes creates the lookup indexes and the unique keys that back
// deduplication. Only sent records participate in the content hash key.
func (s *MongoStore) EnsureIndexes(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	plan := map[string][]mongo.IndexModel{
		alertsCollection: {
			{Keys: bson.D{{Key: "alert_id", Value: 1}}, Options: options.Index().SetUnique(true)},
			{Keys: bson.D{{Key: "user_id", Value: 1}}},
			{Keys: bson.D{{Key: "is_active", Value: 1}, {Key: "created_at", Value: 1}}},
		},
		usersCollection: {
			{Keys: bson.D{{Key: "user_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		intentsCollection: {
			{Keys: bson.D{{Key: "alert_id", Value: 1}, {Key: "user_id", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		articlesCollection: {
			{Keys: bson.D{{Key: "alert_id", Value: 1}, {Key: "content_hash", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
		dispatchesCollection: {
			{
				Keys: bson.D{
					{Key: "user_id", Value: 1},
					{Key: "template_name", Value: 1},
					{Key: "content_hash", Value: 1},
				},
				Options: options.Index().
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"message_sent": true}),
			},
			{Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "template_name", Value: 1},
				{Key: "article_hash", Value: 1},
			}},
			{Keys: bson.D{
				{Key: "user_id", Value: 1},
				{Key: "template_name", Value: 1},
				{Key: "created_at", Value: -1},
			}},
		},
	}
	for collection, indexes := range plan {
		if _, err := s.db.Collection(collection).Indexes().CreateMany(ctx, indexes); err != nil {
			return fmt.Errorf("ensure indexes on %s: %w", collection, err)
		}
	}
	s.logger.Info("database indexes ensured")
	return nil
}

func (s *MongoStore) ListActiveAlerts(ctx context.Context) ([]domain.Alert, error) {
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: 1}})
	cursor, err := s.db.Collection(alertsCollection).Find(ctx, bson.M{"is_active": true}, opts)
	if err != nil {
		return nil, fmt.Errorf("find active alerts: %w", err)
	}
	var alerts []domain.Alert
	if err := cursor.All(ctx, &alerts); err != nil {
		return nil, fmt.Errorf("decode alerts: %w", err)
	}
	return alerts, nil
}

func (s *MongoStore) GetAlert(ctx context.Context, alertID string) (*domain.Alert, error) {
	var alert domain.Alert
	if err := s.findOne(ctx, alertsCollection, bson.M{"alert_id": alertID}, &alert); err != nil {
		return nil, err
	}
	return &alert, nil
}

func (s *MongoStore) CountUserAlerts(ctx context.Context, userID string) (int, error) {
	n, err := s.db.Collection(alertsCollection).CountDocuments(ctx, bson.M{"user_id": userID})
	if err != nil {
		return 0, fmt.Errorf("count alerts: %w", err)
	}
	return int(n), nil
}

func (s *MongoStore) GetIntent(ctx context.Context, alertID, userID string) (*domain.AlertIntent, error) {
	var intent domain.AlertIntent
	if err := s.findOne(ctx, intentsCollection, bson.M{"alert_id": alertID, "user_id": userID}, &intent); err != nil {
		return nil, err
	}
	return &intent, nil
}

func (s *MongoStore) UpsertIntent(ctx context.Context, intent domain.AlertIntent) error {
	filter := bson.M{"alert_id": intent.AlertID, "user_id": intent.UserID}
	created := intent.CreatedAt
	set := bson.M{
		"topic":              intent.Topic,
		"category":           intent.Category,
		"subcategory":        intent.Subcategory,
		"custom_question":    intent.CustomQuestion,
		"followup_questions": intent.FollowupQuestions,
		"intent_summary":     intent.IntentSummary,
		"timeframe":          intent.Timeframe,
		"search_query":       intent.SearchQuery,
		"requires_live_data": intent.RequiresLiveData,
		"updated_at":         intent.UpdatedAt,
	}
	update := bson.M{"$set": set, "$setOnInsert": bson.M{"created_at": created}}
	_, err := s.db.Collection(intentsCollection).UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return wrapWriteErr("upsert intent", err)
}

func (s *MongoStore) UpsertArticle(ctx context.Context, article domain.Article) error {
	filter := bson.M{"alert_id": article.AlertID, "content_hash": article.ContentHash}
	update := bson.M{
		"$set":         bson.M{"user_id": article.UserID, "content": article.Content},
		"$setOnInsert": bson.M{"created_at": article.CreatedAt},
	}
	_, err := s.db.Collection(articlesCollection).UpdateOne(ctx, filter, update, options.Update().SetUpsert(true))
	return wrapWriteErr("upsert article", err)
}

func (s *MongoStore) SentWithContentHash(ctx context.Context, userID, templateName, contentHash string) (bool, error) {
	return s.exists(ctx, bson.M{
		"user_id":       userID,
		"template_name": templateName,
		"content_hash":  contentHash,
		"message_sent":  true,
	})
}

func (s *MongoStore) SentWithArticleHash(ctx context.Context, userID, templateName, articleHash string) (bool, error) {
	if articleHash == "" {
		return false, nil
	}
	return s.exists(ctx, bson.M{
		"user_id":       userID,
		"template_name": templateName,
		"article_hash":  articleHash,
		"message_sent":  true,
	})
}

func (s *MongoStore) RecentSent(ctx context.Context, userID, templateName string, since time.Time, limit int) ([]domain.DispatchRecord, error) {
	filter := bson.M{
		"user_id":       userID,
		"template_name": templateName,
		"message_sent":  true,
		"created_at":    bson.M{"$gte": since},
	}
	opts := options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}})
	if limit > 0 {
		opts.SetLimit(int64(limit))
	}
	cursor, err := s.db.Collection(dispatchesCollection).Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("find recent dispatches: %w", err)
	}
	var records []domain.DispatchRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, fmt.Errorf("decode dispatches: %w", err)
	}
	return records, nil
}

func (s *MongoStore) InsertDispatch(ctx context.Context, record domain.DispatchRecord) error {
	_, err := s.db.Collection(dispatchesCollection).InsertOne(ctx, record)
	return wrapWriteErr("insert dispatch", err)
}

func (s *MongoStore) FindByUserID(ctx context.Context, userID string) (*domain.UserContact, error) {
	var contact domain.UserContact
	if err := s.findOne(ctx, usersCollection, bson.M{"user_id": userID}, &contact); err != nil {
		return nil, err
	}
	return &contact, nil
}

// Close disconnects the client.
func (s *MongoStore) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}

func (s *MongoStore) findOne(ctx context.Context, collection string, filter bson.M, v any) error {
	err := s.db.Collection(collection).FindOne(ctx, filter).Decode(v)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("find %s: %w", collection, err)
	}
	return nil
}

func (s *MongoStore) exists(ctx context.Context, filter bson.M) (bool, error) {
	n, err := s.db.Collection(dispatchesCollection).CountDocuments(ctx, filter, options.Count().SetLimit(1))
	if err != nil {
		return false, fmt.Errorf("count dispatches: %w", err)
	}
	return n > 0, nil
}

func wrapWriteErr(op string, err error) error {
	switch {
	case err == nil:
		return nil
	case mongo.IsDuplicateKeyError(err):
		return fmt.Errorf("%s: %w", op, domain.ErrDuplicate)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}
