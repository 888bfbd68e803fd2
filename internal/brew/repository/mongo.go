package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/slidecoffee/brew-service/internal/brew"
	"github.com/slidecoffee/brew-service/pkg/logger"
)

// MongoRepo stores drafts and presentations in two collections. Each
// presentation embeds its slides, so creating one is a single atomic insert.
// The projects and brands collections are only read, for ownership checks.
type MongoRepo struct {
	drafts        *mongo.Collection
	presentations *mongo.Collection
	projects      *mongo.Collection
	brands        *mongo.Collection
}

func NewMongoRepo(db *mongo.Database) *MongoRepo {
	r := &MongoRepo{
		drafts:        db.Collection("outline_drafts"),
		presentations: db.Collection("presentations"),
		projects:      db.Collection("projects"),
		brands:        db.Collection("brands"),
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if _, err := r.drafts.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "workspaceId", Value: 1}, {Key: "updatedAt", Value: -1}},
	}); err != nil {
		logger.Warnf("outline_drafts index: %v", err)
	}
	if _, err := r.presentations.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "workspaceId", Value: 1}, {Key: "createdAt", Value: 1}},
	}); err != nil {
		logger.Warnf("presentations index: %v", err)
	}
	return r
}

func liveDraft(workspaceID, id string) bson.M {
	return bson.M{"_id": id, "workspaceId": workspaceID, "deletedAt": bson.M{"$exists": false}}
}

func (r *MongoRepo) CreateDraft(ctx context.Context, d *brew.OutlineDraft) error {
	if d.ID == "" {
		d.ID = uuid.NewString()
	}
	if d.Status == "" {
		d.Status = brew.DraftStatusDraft
	}
	d.CreatedAt = time.Now().UTC()
	d.UpdatedAt = d.CreatedAt
	_, err := r.drafts.InsertOne(ctx, d)
	return err
}

func (r *MongoRepo) GetDraft(ctx context.Context, workspaceID, id string) (*brew.OutlineDraft, error) {
	var d brew.OutlineDraft
	if err := r.drafts.FindOne(ctx, liveDraft(workspaceID, id)).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (r *MongoRepo) ListDrafts(ctx context.Context, workspaceID string) ([]*brew.OutlineDraft, error) {
	filter := bson.M{"workspaceId": workspaceID, "deletedAt": bson.M{"$exists": false}}
	opts := options.Find().SetSort(bson.D{{Key: "updatedAt", Value: -1}})
	cur, err := r.drafts.Find(ctx, filter, opts)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	out := []*brew.OutlineDraft{}
	for cur.Next(ctx) {
		var d brew.OutlineDraft
		if err := cur.Decode(&d); err != nil {
			return nil, err
		}
		out = append(out, &d)
	}
	return out, cur.Err()
}

func (r *MongoRepo) PatchDraft(ctx context.Context, workspaceID, id string, p DraftPatch) (*brew.OutlineDraft, error) {
	set := bson.M{"updatedAt": time.Now().UTC()}
	if p.Outline != nil {
		set["outline"] = p.Outline
	}
	if p.CurrentStep != nil {
		set["currentStep"] = *p.CurrentStep
	}
	if p.ThemeID != nil {
		set["themeId"] = *p.ThemeID
	}
	if p.Theme != nil {
		set["theme"] = p.Theme
	}
	if p.BrandID != nil {
		set["brandId"] = *p.BrandID
	}
	if p.Brand != nil {
		set["brand"] = p.Brand
	}
	filter := liveDraft(workspaceID, id)
	filter["status"] = bson.M{"$in": editableStatuses}
	return r.conditionalUpdate(ctx, workspaceID, id, filter, bson.M{"$set": set})
}

func (r *MongoRepo) SoftDeleteDraft(ctx context.Context, workspaceID, id string) error {
	now := time.Now().UTC()
	res, err := r.drafts.UpdateOne(ctx, liveDraft(workspaceID, id), bson.M{"$set": bson.M{"deletedAt": now, "updatedAt": now}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// TransitionDraft applies t only if the stored status is one it may move
// from, so two runs can never claim the same draft.
func (r *MongoRepo) TransitionDraft(ctx context.Context, workspaceID, id string, t Transition) (*brew.OutlineDraft, error) {
	if t.At.IsZero() {
		t.At = time.Now().UTC()
	}
	var next brew.OutlineDraft
	t.apply(&next)
	set := bson.M{"status": next.Status, "updatedAt": next.UpdatedAt}
	if t.CurrentStep > 0 {
		set["currentStep"] = next.CurrentStep
	}
	if next.CompletedAt != nil {
		set["completedAt"] = next.CompletedAt
		set["presentationId"] = next.PresentationID
	}

	filter := liveDraft(workspaceID, id)
	filter["status"] = bson.M{"$in": sourceStatuses(t.To)}
	return r.conditionalUpdate(ctx, workspaceID, id, filter, bson.M{"$set": set})
}

// conditionalUpdate reports ErrConflict when the draft exists but filter's
// status condition did not match it.
func (r *MongoRepo) conditionalUpdate(ctx context.Context, workspaceID, id string, filter, update bson.M) (*brew.OutlineDraft, error) {
	d, err := r.findAndUpdate(ctx, filter, update)
	if errors.Is(err, ErrNotFound) {
		if _, getErr := r.GetDraft(ctx, workspaceID, id); getErr == nil {
			return nil, ErrConflict
		}
	}
	return d, err
}

func (r *MongoRepo) findAndUpdate(ctx context.Context, filter, update bson.M) (*brew.OutlineDraft, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var d brew.OutlineDraft
	if err := r.drafts.FindOneAndUpdate(ctx, filter, update, opts).Decode(&d); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &d, nil
}

func (r *MongoRepo) CreatePresentation(ctx context.Context, p *brew.Presentation) error {
	if p.ID == "" {
		p.ID = uuid.NewString()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	p.UpdatedAt = p.CreatedAt
	_, err := r.presentations.InsertOne(ctx, p)
	return err
}

func (r *MongoRepo) GetPresentation(ctx context.Context, workspaceID, id string) (*brew.Presentation, error) {
	var p brew.Presentation
	if err := r.presentations.FindOne(ctx, bson.M{"_id": id, "workspaceId": workspaceID}).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &p, nil
}

// MonthlyUsage sums slides and counts presentations created since the given
// instant.
func (r *MongoRepo) MonthlyUsage(ctx context.Context, workspaceID string, since time.Time) (brew.Usage, error) {
	pipeline := mongo.Pipeline{
		{{Key: "$match", Value: bson.M{"workspaceId": workspaceID, "createdAt": bson.M{"$gte": since}}}},
		{{Key: "$group", Value: bson.M{
			"_id":           nil,
			"slides":        bson.M{"$sum": "$slideCount"},
			"presentations": bson.M{"$sum": 1},
		}}},
	}
	cur, err := r.presentations.Aggregate(ctx, pipeline)
	if err != nil {
		return brew.Usage{}, err
	}
	defer cur.Close(ctx)
	var row struct {
		Slides        int `bson:"slides"`
		Presentations int `bson:"presentations"`
	}
	if cur.Next(ctx) {
		if err := cur.Decode(&row); err != nil {
			return brew.Usage{}, err
		}
	}
	if err := cur.Err(); err != nil {
		return brew.Usage{}, err
	}
	return brew.Usage{Slides: row.Slides, Presentations: row.Presentations}, nil
}

func (r *MongoRepo) ProjectOwned(ctx context.Context, workspaceID, id string) (bool, error) {
	return owned(ctx, r.projects, workspaceID, id)
}

func (r *MongoRepo) BrandOwned(ctx context.Context, workspaceID, id string) (bool, error) {
	return owned(ctx, r.brands, workspaceID, id)
}

func owned(ctx context.Context, col *mongo.Collection, workspaceID, id string) (bool, error) {
	n, err := col.CountDocuments(ctx, bson.M{"_id": id, "workspaceId": workspaceID}, options.Count().SetLimit(1))
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
