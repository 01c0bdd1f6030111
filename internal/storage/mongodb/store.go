// Package mongodb is the document backend. Collections mirror the
// relational tables one to one, with equivalent indexes; consistency is
// delegated to the server's own locking.
package mongodb

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"quizbench/internal/quizdef"
	"quizbench/internal/storage"
)

const DefaultDatabase = "quizbench"

type Store struct {
	client  *mongo.Client
	quizzes *mongo.Collection
	runs    *mongo.Collection
	results *mongo.Collection
	assets  *mongo.Collection
}

var _ storage.Store = (*Store)(nil)

func New(ctx context.Context, client *mongo.Client, dbName string) (*Store, error) {
	if dbName == "" {
		dbName = DefaultDatabase
	}
	db := client.Database(dbName)
	store := &Store{
		client:  client,
		quizzes: db.Collection("quizzes"),
		runs:    db.Collection("runs"),
		results: db.Collection("results"),
		assets:  db.Collection("assets"),
	}
	if err := store.ensureIndexes(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

func (s *Store) ensureIndexes(ctx context.Context) error {
	unique := options.Index().SetUnique(true)

	_, err := s.quizzes.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "quiz_id", Value: 1}}, Options: unique,
	})
	if err != nil {
		return err
	}
	_, err = s.runs.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "run_id", Value: 1}}, Options: unique},
		{Keys: bson.D{{Key: "quiz_id", Value: 1}}},
		{Keys: bson.D{{Key: "created_at", Value: 1}}},
	})
	if err != nil {
		return err
	}
	_, err = s.results.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "run_id", Value: 1}, {Key: "model_id", Value: 1}},
	})
	if err != nil {
		return err
	}
	_, err = s.assets.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "run_id", Value: 1}},
	})
	return err
}

func (s *Store) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return s.client.Disconnect(ctx)
}

type quizDoc struct {
	QuizID     string         `bson:"quiz_id"`
	Title      string         `bson:"title"`
	Source     quizdef.Source `bson:"source"`
	QuizJSON   string         `bson:"quiz_json"`
	RawPayload map[string]any `bson:"raw_payload"`
	CreatedAt  time.Time      `bson:"created_at"`
}

type runDoc struct {
	RunID     string            `bson:"run_id"`
	QuizID    string            `bson:"quiz_id"`
	CreatedAt time.Time         `bson:"created_at"`
	Status    string            `bson:"status"`
	Models    []string          `bson:"models"`
	Settings  map[string]string `bson:"settings"`
}

type resultDoc struct {
	RunID              string `bson:"run_id"`
	QuizID             string `bson:"quiz_id"`
	ModelID            string `bson:"model_id"`
	QuestionID         string `bson:"question_id"`
	Choice             string `bson:"choice"`
	Reason             string `bson:"reason"`
	AdditionalThoughts string `bson:"additional_thoughts"`
	Refused            bool   `bson:"refused"`
	LatencyMS          int64  `bson:"latency_ms"`
	TokensIn           *int   `bson:"tokens_in"`
	TokensOut          *int   `bson:"tokens_out"`
}

type assetDoc struct {
	RunID     string    `bson:"run_id"`
	AssetType string    `bson:"asset_type"`
	Path      string    `bson:"path"`
	CreatedAt time.Time `bson:"created_at"`
}

func (s *Store) UpsertQuiz(ctx context.Context, def quizdef.Quiz, quizJSON string, rawPayload map[string]any) error {
	if err := storage.CheckID(def.ID); err != nil {
		return err
	}
	if rawPayload == nil {
		rawPayload = map[string]any{}
	}

	doc := quizDoc{
		QuizID:     def.ID,
		Title:      def.Title,
		Source:     def.Source,
		QuizJSON:   quizJSON,
		RawPayload: rawPayload,
		CreatedAt:  time.Now().UTC(),
	}
	update := bson.M{
		"$set": bson.M{
			"title":       doc.Title,
			"source":      doc.Source,
			"quiz_json":   doc.QuizJSON,
			"raw_payload": doc.RawPayload,
		},
		"$setOnInsert": bson.M{
			"quiz_id":    doc.QuizID,
			"created_at": doc.CreatedAt,
		},
	}
	_, err := s.quizzes.UpdateOne(ctx, bson.M{"quiz_id": def.ID}, update, options.Update().SetUpsert(true))
	return err
}

// InsertRun relies on the unique run_id index: a duplicate id is an error,
// matching the relational backend.
func (s *Store) InsertRun(ctx context.Context, runID, quizID, status string, models []string, settings map[string]string) error {
	if err := storage.CheckID(runID); err != nil {
		return err
	}
	if err := storage.CheckID(quizID); err != nil {
		return err
	}
	if settings == nil {
		settings = map[string]string{}
	}

	_, err := s.runs.InsertOne(ctx, runDoc{
		RunID:     runID,
		QuizID:    quizID,
		CreatedAt: time.Now().UTC(),
		Status:    status,
		Models:    models,
		Settings:  settings,
	})
	if mongo.IsDuplicateKeyError(err) {
		return fmt.Errorf("%w: %s", storage.ErrRunExists, runID)
	}
	return err
}

func (s *Store) UpdateRunStatus(ctx context.Context, runID, status string) error {
	if err := storage.CheckID(runID); err != nil {
		return err
	}
	_, err := s.runs.UpdateOne(ctx, bson.M{"run_id": runID}, bson.M{"$set": bson.M{"status": status}})
	return err
}

func (s *Store) MarkStaleRunsFailed(ctx context.Context, statuses []string, newStatus string) ([]string, error) {
	if len(statuses) == 0 {
		return nil, nil
	}

	filter := bson.M{"status": bson.M{"$in": statuses}}
	cursor, err := s.runs.Find(ctx, filter, options.Find().SetProjection(bson.M{"run_id": 1}))
	if err != nil {
		return nil, err
	}
	runIDs := make([]string, 0)
	for cursor.Next(ctx) {
		var doc struct {
			RunID string `bson:"run_id"`
		}
		if err := cursor.Decode(&doc); err != nil {
			cursor.Close(ctx)
			return nil, err
		}
		runIDs = append(runIDs, doc.RunID)
	}
	if err := cursor.Err(); err != nil {
		cursor.Close(ctx)
		return nil, err
	}
	cursor.Close(ctx)

	if len(runIDs) > 0 {
		if _, err := s.runs.UpdateMany(ctx, filter, bson.M{"$set": bson.M{"status": newStatus}}); err != nil {
			return nil, err
		}
	}
	return runIDs, nil
}

func (s *Store) InsertResults(ctx context.Context, runID, quizID, modelID string, rows []storage.Result) error {
	if err := storage.CheckID(runID); err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	docs := make([]any, 0, len(rows))
	for _, row := range rows {
		docs = append(docs, resultDoc{
			RunID:              runID,
			QuizID:             quizID,
			ModelID:            modelID,
			QuestionID:         row.QuestionID,
			Choice:             row.Choice,
			Reason:             row.Reason,
			AdditionalThoughts: row.AdditionalThoughts,
			Refused:            row.Refused,
			LatencyMS:          row.LatencyMS,
			TokensIn:           row.TokensIn,
			TokensOut:          row.TokensOut,
		})
	}
	_, err := s.results.InsertMany(ctx, docs, options.InsertMany().SetOrdered(true))
	return err
}

func (s *Store) InsertAsset(ctx context.Context, runID, assetType, path string) error {
	if err := storage.CheckID(runID); err != nil {
		return err
	}
	_, err := s.assets.InsertOne(ctx, assetDoc{
		RunID:     runID,
		AssetType: assetType,
		Path:      path,
		CreatedAt: time.Now().UTC(),
	})
	return err
}

func (s *Store) FetchResults(ctx context.Context, runID string) ([]storage.Result, error) {
	if err := storage.CheckID(runID); err != nil {
		return nil, err
	}

	cursor, err := s.results.Find(ctx, bson.M{"run_id": runID})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	results := make([]storage.Result, 0)
	for cursor.Next(ctx) {
		var doc resultDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		results = append(results, storage.Result(doc))
	}
	return results, cursor.Err()
}

func (s *Store) FetchRuns(ctx context.Context) ([]storage.Run, error) {
	cursor, err := s.runs.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	runs := make([]storage.Run, 0)
	for cursor.Next(ctx) {
		var doc runDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		runs = append(runs, storage.Run(doc))
	}
	return runs, cursor.Err()
}

func (s *Store) FetchRun(ctx context.Context, runID string) (storage.Run, error) {
	if err := storage.CheckID(runID); err != nil {
		return storage.Run{}, err
	}

	var doc runDoc
	err := s.runs.FindOne(ctx, bson.M{"run_id": runID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return storage.Run{}, storage.ErrRunNotFound
		}
		return storage.Run{}, err
	}
	return storage.Run(doc), nil
}

func (s *Store) FetchAssets(ctx context.Context, runID string) ([]storage.Asset, error) {
	if err := storage.CheckID(runID); err != nil {
		return nil, err
	}

	cursor, err := s.assets.Find(ctx, bson.M{"run_id": runID}, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	assets := make([]storage.Asset, 0)
	for cursor.Next(ctx) {
		var doc assetDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		assets = append(assets, storage.Asset(doc))
	}
	return assets, cursor.Err()
}

func (s *Store) DeleteAssetsForRun(ctx context.Context, runID string) error {
	if err := storage.CheckID(runID); err != nil {
		return err
	}
	_, err := s.assets.DeleteMany(ctx, bson.M{"run_id": runID})
	return err
}

func (s *Store) FetchQuizzes(ctx context.Context) ([]storage.QuizSummary, error) {
	cursor, err := s.quizzes.Find(ctx, bson.M{}, options.Find().SetSort(bson.D{{Key: "created_at", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	summaries := make([]storage.QuizSummary, 0)
	for cursor.Next(ctx) {
		var doc quizDoc
		if err := cursor.Decode(&doc); err != nil {
			return nil, err
		}
		summaries = append(summaries, storage.QuizSummary{
			QuizID:       doc.QuizID,
			Title:        doc.Title,
			Source:       doc.Source,
			CreatedAt:    doc.CreatedAt,
			RawAvailable: len(doc.RawPayload) > 0,
		})
	}
	return summaries, cursor.Err()
}

func (s *Store) FetchQuizJSON(ctx context.Context, quizID string) (string, error) {
	record, err := s.FetchQuizRecord(ctx, quizID)
	if err != nil {
		return "", err
	}
	return record.JSON, nil
}

func (s *Store) FetchQuizDef(ctx context.Context, quizID string) (quizdef.Quiz, error) {
	record, err := s.FetchQuizRecord(ctx, quizID)
	if err != nil {
		return quizdef.Quiz{}, err
	}
	return record.Def, nil
}

func (s *Store) FetchQuizRecord(ctx context.Context, quizID string) (storage.QuizRecord, error) {
	if err := storage.CheckID(quizID); err != nil {
		return storage.QuizRecord{}, err
	}

	var doc quizDoc
	err := s.quizzes.FindOne(ctx, bson.M{"quiz_id": quizID}).Decode(&doc)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return storage.QuizRecord{}, storage.ErrQuizNotFound
		}
		return storage.QuizRecord{}, err
	}

	record := storage.QuizRecord{JSON: doc.QuizJSON, RawPayload: doc.RawPayload}
	if record.RawPayload == nil {
		record.RawPayload = map[string]any{}
	}
	if doc.QuizJSON != "" {
		if err := json.Unmarshal([]byte(doc.QuizJSON), &record.Def); err != nil {
			return storage.QuizRecord{}, err
		}
	}
	return record, nil
}

func (s *Store) DeleteQuiz(ctx context.Context, quizID string) ([]string, error) {
	if err := storage.CheckID(quizID); err != nil {
		return nil, err
	}

	cursor, err := s.runs.Find(ctx, bson.M{"quiz_id": quizID}, options.Find().SetProjection(bson.M{"run_id": 1}))
	if err != nil {
		return nil, err
	}
	runIDs := make([]string, 0)
	for cursor.Next(ctx) {
		var doc struct {
			RunID string `bson:"run_id"`
		}
		if err := cursor.Decode(&doc); err != nil {
			cursor.Close(ctx)
			return nil, err
		}
		runIDs = append(runIDs, doc.RunID)
	}
	if err := cursor.Err(); err != nil {
		cursor.Close(ctx)
		return nil, err
	}
	cursor.Close(ctx)

	if len(runIDs) > 0 {
		filter := bson.M{"run_id": bson.M{"$in": runIDs}}
		if _, err := s.results.DeleteMany(ctx, filter); err != nil {
			return nil, err
		}
		if _, err := s.assets.DeleteMany(ctx, filter); err != nil {
			return nil, err
		}
		if _, err := s.runs.DeleteMany(ctx, filter); err != nil {
			return nil, err
		}
	}
	if _, err := s.quizzes.DeleteOne(ctx, bson.M{"quiz_id": quizID}); err != nil {
		return nil, err
	}
	return runIDs, nil
}
