package workspaces

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var ErrNotFound = errors.New("member not found")

// Repository persists workspace members.
type Repository interface {
	// UpsertBySub refreshes profile fields. WorkspaceID, Plan and CreatedAt
	// are only written when the member is first seen.
	UpsertBySub(ctx context.Context, m *Member) (*Member, error)
	GetBySub(ctx context.Context, sub string) (*Member, error)
}

// MongoRepository stores members in the "workspace_members" collection.
type MongoRepository struct {
	col *mongo.Collection
}

func NewMongoRepository(db *mongo.Database) *MongoRepository {
	return &MongoRepository{col: db.Collection("workspace_members")}
}

func (r *MongoRepository) UpsertBySub(ctx context.Context, m *Member) (*Member, error) {
	now := time.Now().UTC()
	update := bson.M{
		"$set": bson.M{
			"email":     m.Email,
			"name":      m.Name,
			"updatedAt": now,
		},
		"$setOnInsert": bson.M{
			"workspaceId": m.WorkspaceID,
			"plan":        m.Plan,
			"createdAt":   now,
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)
	var out Member
	if err := r.col.FindOneAndUpdate(ctx, bson.M{"_id": m.Sub}, update, opts).Decode(&out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (r *MongoRepository) GetBySub(ctx context.Context, sub string) (*Member, error) {
	var m Member
	if err := r.col.FindOne(ctx, bson.M{"_id": sub}).Decode(&m); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &m, nil
}

// MemoryRepository is used when MongoDB is not configured and in tests.
type MemoryRepository struct {
	mu      sync.Mutex
	members map[string]Member
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{members: map[string]Member{}}
}

func (r *MemoryRepository) UpsertBySub(_ context.Context, m *Member) (*Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := time.Now().UTC()
	cur, ok := r.members[m.Sub]
	if !ok {
		cur = Member{Sub: m.Sub, WorkspaceID: m.WorkspaceID, Plan: m.Plan, CreatedAt: now}
	}
	cur.Email, cur.Name, cur.UpdatedAt = m.Email, m.Name, now
	r.members[m.Sub] = cur
	out := cur
	return &out, nil
}

func (r *MemoryRepository) GetBySub(_ context.Context, sub string) (*Member, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	m, ok := r.members[sub]
	if !ok {
		return nil, ErrNotFound
	}
	return &m, nil
}
