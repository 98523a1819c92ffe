package mongo

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofrs/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"railwatch/pkg/lexer"
	"railwatch/pkg/models"
	"railwatch/pkg/storage"
)

const collName = "analyses"

type Store struct {
	client *mongo.Client
	dbName string
}

func New(ctx context.Context, conf *Config) (*Store, error) {
	client, err := mongo.Connect(ctx, conf.Options())
	if err != nil {
		return nil, err
	}

	s := Store{client: client, dbName: conf.DBName}
	if err := s.createCollection(ctx, collName); err != nil {
		client.Disconnect(ctx)
		return nil, err
	}

	return &s, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, nil)
}

func (s *Store) Close(ctx context.Context) {
	s.client.Disconnect(ctx)
}

func (s *Store) collection() *mongo.Collection {
	return s.client.Database(s.dbName).Collection(collName)
}

// AddAnalysis inserts an analysis or replaces the stored one with the same ID.
// A missing ID is derived from the analysis source and text.
func (s *Store) AddAnalysis(ctx context.Context, a models.Analysis) (uuid.UUID, error) {
	if a.ID == uuid.Nil {
		a.ID = models.AnalysisID(a.Source, a.Text)
	}

	opts := options.Replace().SetUpsert(true)
	_, err := s.collection().ReplaceOne(ctx, bson.M{"_id": a.ID}, a, opts)
	if err != nil {
		return uuid.Nil, err
	}

	return a.ID, nil
}

// AddAnalyses upserts a batch of analyses with one bulk write.
func (s *Store) AddAnalyses(ctx context.Context, as []models.Analysis) error {
	if len(as) == 0 {
		return nil
	}

	writes := make([]mongo.WriteModel, 0, len(as))
	for _, a := range as {
		if a.ID == uuid.Nil {
			a.ID = models.AnalysisID(a.Source, a.Text)
		}
		writes = append(writes, mongo.NewReplaceOneModel().
			SetFilter(bson.M{"_id": a.ID}).
			SetReplacement(a).
			SetUpsert(true))
	}

	_, err := s.collection().BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(true))
	return err
}

func (s *Store) LatestAnalyses(ctx context.Context, page, limit int) (analyses []models.Analysis, numPages int, err error) {
	return s.find(ctx, bson.M{}, page, limit)
}

func (s *Store) ProblemAnalyses(ctx context.Context, category lexer.Category, page, limit int) (analyses []models.Analysis, numPages int, err error) {
	if err := storage.CheckCategory(category); err != nil {
		return nil, 0, err
	}
	return s.find(ctx, bson.M{"problems.category": category}, page, limit)
}

// find returns one page of the analyses matching filter, newest first.
func (s *Store) find(ctx context.Context, filter bson.M, page, limit int) ([]models.Analysis, int, error) {
	page, limit = storage.PageParams(page, limit)
	coll := s.collection()

	total, err := coll.CountDocuments(ctx, filter)
	if err != nil {
		return nil, 0, err
	}

	opts := options.Find().
		SetSort(bson.D{{Key: "analyzed", Value: -1}, {Key: "_id", Value: 1}}).
		SetSkip(int64((page - 1) * limit)).
		SetLimit(int64(limit))

	cur, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, 0, err
	}

	analyses := []models.Analysis{}
	if err := cur.All(ctx, &analyses); err != nil {
		return nil, 0, err
	}

	numPages := (int(total) + limit - 1) / limit
	return analyses, numPages, nil
}

// Analysis returns the analysis with the given ID or storage.ErrAnalysisNotFound.
func (s *Store) Analysis(ctx context.Context, id uuid.UUID) (models.Analysis, error) {
	var a models.Analysis
	err := s.collection().FindOne(ctx, bson.M{"_id": id}).Decode(&a)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return models.Analysis{}, storage.ErrAnalysisNotFound
		}
		return models.Analysis{}, err
	}
	return a, nil
}

// createCollection creates a collection with the given name in the database if it doesn't already exist.
func (s *Store) createCollection(ctx context.Context, name string) error {
	collExists, err := collectionExists(ctx, s.client.Database(s.dbName), name)
	if err != nil {
		return err
	}

	if !collExists {
		err := s.client.Database(s.dbName).CreateCollection(ctx, name)
		if err != nil {
			return err
		}
	}

	return nil
}

// collectionExists checks if a collection with the given name exists in the database.
func collectionExists(ctx context.Context, db *mongo.Database, name string) (bool, error) {
	names, err := db.ListCollectionNames(ctx, bson.D{})
	if err != nil {
		return false, fmt.Errorf("failed to list collection names: %w", err)
	}

	for _, n := range names {
		if n == name {
			return true, nil
		}
	}

	return false, nil
}
