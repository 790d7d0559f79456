package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"cityflow/internal/accident"
)

type Mongo struct {
	client *mongo.Client
	db     *mongo.Database
	// Transactions wraps InsertBulk in a session transaction. It needs a
	// replica set; without it an ordered InsertMany stops at the first failure.
	Transactions bool
}

func NewMongo(ctx context.Context, uri, database string) (*Mongo, error) {
	clientOptions := options.Client().ApplyURI(uri).
		SetConnectTimeout(10 * time.Second).
		SetServerSelectionTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, clientOptions)
	if err != nil {
		return nil, fmt.Errorf("error connecting to MongoDB: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return nil, fmt.Errorf("error pinging MongoDB: %w", err)
	}
	return &Mongo{client: client, db: client.Database(database)}, nil
}

// EnsureIndexes creates the unique EventNo index and the DateTimeAdd sort index.
func (m *Mongo) EnsureIndexes(ctx context.Context, collection string) error {
	_, err := m.db.Collection(collection).Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "EventNo", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("event_no_idx"),
		},
		{
			Keys:    bson.D{{Key: "DateTimeAdd", Value: 1}},
			Options: options.Index().SetName("datetime_add_idx"),
		},
	})
	if err != nil {
		return fmt.Errorf("error creating %s indexes: %w", collection, err)
	}
	return nil
}

func (m *Mongo) FindIDs(ctx context.Context, collection string, ids []string, limit int) ([]string, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	opts := options.Find().
		SetLimit(int64(limit)).
		SetProjection(bson.M{"EventNo": 1, "_id": 0})
	cursor, err := m.db.Collection(collection).Find(ctx, bson.M{"EventNo": bson.M{"$in": ids}}, opts)
	if err != nil {
		return nil, fmt.Errorf("find %s ids: %w", collection, err)
	}
	defer cursor.Close(ctx)

	var docs []struct {
		EventNo string `bson:"EventNo"`
	}
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("decode %s ids: %w", collection, err)
	}
	found := make([]string, 0, len(docs))
	for _, d := range docs {
		found = append(found, d.EventNo)
	}
	return found, nil
}

func (m *Mongo) InsertBulk(ctx context.Context, collection string, records []accident.Record) error {
	if len(records) == 0 {
		return nil
	}
	docs := make([]interface{}, len(records))
	for i, r := range records {
		docs[i] = r
	}
	coll := m.db.Collection(collection)

	if !m.Transactions {
		if _, err := coll.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true)); err != nil {
			return fmt.Errorf("insert into %s: %w", collection, err)
		}
		return nil
	}

	session, err := m.client.StartSession()
	if err != nil {
		return fmt.Errorf("start session: %w", err)
	}
	defer session.EndSession(ctx)

	_, err = session.WithTransaction(ctx, func(sc mongo.SessionContext) (interface{}, error) {
		return coll.InsertMany(sc, docs)
	})
	if err != nil {
		return fmt.Errorf("insert into %s: %w", collection, err)
	}
	return nil
}

func (m *Mongo) ReadAll(ctx context.Context, collection string, limit int, order accident.SortOrder) ([]accident.Record, error) {
	dir := 1
	if order == accident.Descending {
		dir = -1
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "DateTimeAdd", Value: dir}}).
		SetLimit(int64(limit))
	cursor, err := m.db.Collection(collection).Find(ctx, bson.M{}, opts)
	if err != nil {
		return nil, fmt.Errorf("find %s: %w", collection, err)
	}
	defer cursor.Close(ctx)

	var out []accident.Record
	if err := cursor.All(ctx, &out); err != nil {
		return nil, fmt.Errorf("decode %s: %w", collection, err)
	}
	return out, nil
}

func (m *Mongo) Close(ctx context.Context) error {
	return m.client.Disconnect(ctx)
}
