package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/treeform/nimmy/pkg/vm"
)

// breakpointDoc and runDoc are the BSON document shapes backing the two
// collections MongoStore uses, mirroring the SQLStore schema.
type breakpointDoc struct {
	SourceHash string `bson:"source_hash"`
	Line       int    `bson:"line"`
}

type runDoc struct {
	SourceHash string    `bson:"source_hash"`
	StartedAt  time.Time `bson:"started_at"`
	FinishedAt time.Time `bson:"finished_at"`
	Output     string    `bson:"output"`
	Error      string    `bson:"error"`
}

// MongoStore is a MongoDB-backed implementation of vm.Store, for
// embedders whose surrounding application already runs on Mongo.
type MongoStore struct {
	client      *mongo.Client
	breakpoints *mongo.Collection
	runs        *mongo.Collection
}

// OpenMongo connects to uri and prepares the nimmy collections within
// dbName.
func OpenMongo(ctx context.Context, uri, dbName string) (*MongoStore, error) {
	client, err := mongo.Connect(options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("store: connecting to mongo: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, fmt.Errorf("store: pinging mongo: %w", err)
	}
	db := client.Database(dbName)
	return &MongoStore{
		client:      client,
		breakpoints: db.Collection("nimmy_breakpoints"),
		runs:        db.Collection("nimmy_runs"),
	}, nil
}

// Close disconnects the underlying client.
func (m *MongoStore) Close() error {
	return m.client.Disconnect(context.Background())
}

// LoadBreakpoints satisfies vm.Store.
func (m *MongoStore) LoadBreakpoints(sourceHash string) ([]int, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	cur, err := m.breakpoints.Find(ctx, bson.M{"source_hash": sourceHash})
	if err != nil {
		return nil, fmt.Errorf("store: loading breakpoints: %w", err)
	}
	defer cur.Close(ctx)
	var lines []int
	for cur.Next(ctx) {
		var doc breakpointDoc
		if err := cur.Decode(&doc); err != nil {
			return nil, err
		}
		lines = append(lines, doc.Line)
	}
	return lines, cur.Err()
}

// SaveBreakpoints satisfies vm.Store, replacing the full breakpoint set
// for sourceHash.
func (m *MongoStore) SaveBreakpoints(sourceHash string, lines []int) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := m.breakpoints.DeleteMany(ctx, bson.M{"source_hash": sourceHash}); err != nil {
		return fmt.Errorf("store: clearing breakpoints: %w", err)
	}
	if len(lines) == 0 {
		return nil
	}
	docs := make([]interface{}, len(lines))
	for i, line := range lines {
		docs[i] = breakpointDoc{SourceHash: sourceHash, Line: line}
	}
	if _, err := m.breakpoints.InsertMany(ctx, docs); err != nil {
		return fmt.Errorf("store: saving breakpoints: %w", err)
	}
	return nil
}

// RecordRun satisfies vm.Store.
func (m *MongoStore) RecordRun(rec vm.RunRecord) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	doc := runDoc{
		SourceHash: rec.SourceHash, StartedAt: rec.Started, FinishedAt: rec.Finished,
		Output: rec.Output, Error: rec.Err,
	}
	if _, err := m.runs.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("store: recording run: %w", err)
	}
	return nil
}
