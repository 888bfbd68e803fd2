// Package runs keeps a metadata record for every generation run.
package runs

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type Status string

const (
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
	// StatusAbandoned marks a run whose client disconnected mid-stream.
	StatusAbandoned Status = "abandoned"
)

// Record is the stored representation of one run.
type Record struct {
	RunID          string     `bson:"_id" json:"runId"`
	WorkspaceID    string     `bson:"workspaceId" json:"workspaceId"`
	UserID         string     `bson:"userId" json:"userId"`
	DraftID        string     `bson:"draftId,omitempty" json:"draftId,omitempty"`
	Topic          string     `bson:"topic" json:"topic"`
	Status         Status     `bson:"status" json:"status"`
	Phase          string     `bson:"phase" json:"phase"`
	PresentationID string     `bson:"presentationId,omitempty" json:"presentationId,omitempty"`
	SlideCount     int        `bson:"slideCount" json:"slideCount"`
	Placeholders   int        `bson:"placeholders" json:"placeholders"`
	Error          string     `bson:"error,omitempty" json:"error,omitempty"`
	StartedAt      time.Time  `bson:"startedAt" json:"startedAt"`
	FinishedAt     *time.Time `bson:"finishedAt,omitempty" json:"finishedAt,omitempty"`
}

var ErrNotFound = errors.New("run not found")

// Store saves and loads run records.
type Store interface {
	Save(ctx context.Context, r *Record) error
	Load(ctx context.Context, workspaceID, runID string) (*Record, error)
	ListRecent(ctx context.Context, workspaceID string, limit int) ([]*Record, error)
}

// MongoStore upserts records into the "brew_runs" collection.
type MongoStore struct {
	col *mongo.Collection
}

func NewMongoStore(db *mongo.Database) *MongoStore {
	return &MongoStore{col: db.Collection("brew_runs")}
}

func (s *MongoStore) Save(ctx context.Context, r *Record) error {
	opts := options.Replace().SetUpsert(true)
	if _, err := s.col.ReplaceOne(ctx, bson.M{"_id": r.RunID}, r, opts); err != nil {
		return fmt.Errorf("save run %s: %w", r.RunID, err)
	}
	return nil
}

func (s *MongoStore) Load(ctx context.Context, workspaceID, runID string) (*Record, error) {
	var r Record
	if err := s.col.FindOne(ctx, bson.M{"_id": runID, "workspaceId": workspaceID}).Decode(&r); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &r, nil
}

func (s *MongoStore) ListRecent(ctx context.Context, workspaceID string, limit int) ([]*Record, error) {
	opts := options.Find().SetSort(bson.D{{Key: "startedAt", Value: -1}}).SetLimit(int64(limit))
	cur, err := s.col.Find(ctx, bson.M{"workspaceId": workspaceID}, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []*Record{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// MemoryStore is the in-process fallback.
type MemoryStore struct {
	mu   sync.RWMutex
	recs map[string]Record
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{recs: make(map[string]Record)}
}

func (s *MemoryStore) Save(_ context.Context, r *Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.recs[r.RunID] = *r
	return nil
}

func (s *MemoryStore) Load(_ context.Context, workspaceID, runID string) (*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	r, ok := s.recs[runID]
	if !ok || r.WorkspaceID != workspaceID {
		return nil, ErrNotFound
	}
	return &r, nil
}

func (s *MemoryStore) ListRecent(_ context.Context, workspaceID string, limit int) ([]*Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := []*Record{}
	for _, r := range s.recs {
		if r.WorkspaceID == workspaceID {
			r := r
			out = append(out, &r)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartedAt.After(out[j].StartedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
