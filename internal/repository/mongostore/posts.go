package mongostore

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"

	"github.com/sakif/volunteerhub/internal/apperror"
	"github.com/sakif/volunteerhub/internal/model"
	"github.com/sakif/volunteerhub/internal/repository"
)

var _ repository.PostRepository = (*PostStore)(nil)

type PostStore struct {
	c *mongo.Collection
}

func (s *PostStore) Create(ctx context.Context, post *model.Post) error {
	post.ID = primitive.NewObjectID().Hex()
	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now().UTC()
	}
	if _, err := s.c.InsertOne(ctx, post); err != nil {
		return fmt.Errorf("mongostore: inserting post: %w", err)
	}
	return nil
}

func (s *PostStore) GetByID(ctx context.Context, id string) (*model.Post, error) {
	var p model.Post
	if err := s.c.FindOne(ctx, bson.M{"_id": id}).Decode(&p); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperror.NotFound("post", id)
		}
		return nil, fmt.Errorf("mongostore: finding post %s: %w", id, err)
	}
	return &p, nil
}

// List returns posts in natural order. Search is matched as a literal,
// case-insensitive substring of the title.
func (s *PostStore) List(ctx context.Context, filter repository.PostFilter) ([]model.Post, error) {
	q := bson.M{}
	if search := strings.TrimSpace(filter.Search); search != "" {
		q["title"] = primitive.Regex{Pattern: regexp.QuoteMeta(search), Options: "i"}
	}
	if category := strings.TrimSpace(filter.Category); category != "" {
		q["category"] = category
	}
	return s.find(ctx, q)
}

func (s *PostStore) ListByOrganizer(ctx context.Context, email string) ([]model.Post, error) {
	return s.find(ctx, bson.M{"organizerEmail": email})
}

func (s *PostStore) find(ctx context.Context, q bson.M) ([]model.Post, error) {
	cur, err := s.c.Find(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("mongostore: finding posts: %w", err)
	}
	defer cur.Close(ctx)

	posts := make([]model.Post, 0)
	if err := cur.All(ctx, &posts); err != nil {
		return nil, fmt.Errorf("mongostore: decoding posts: %w", err)
	}
	return posts, nil
}

// Update $sets the non-nil fields of patch and returns the post after the write.
func (s *PostStore) Update(ctx context.Context, id string, patch model.PostPatch) (*model.Post, error) {
	if patch.IsEmpty() {
		return s.GetByID(ctx, id)
	}

	var p model.Post
	err := s.c.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": patchToSet(patch)},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&p)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperror.NotFound("post", id)
		}
		return nil, fmt.Errorf("mongostore: updating post %s: %w", id, err)
	}
	return &p, nil
}

func patchToSet(patch model.PostPatch) bson.M {
	set := bson.M{}
	if patch.Title != nil {
		set["title"] = *patch.Title
	}
	if patch.Category != nil {
		set["category"] = *patch.Category
	}
	if patch.PhotoURL != nil {
		set["photoURL"] = *patch.PhotoURL
	}
	if patch.Deadline != nil {
		set["deadline"] = *patch.Deadline
	}
	if patch.Location != nil {
		set["location"] = *patch.Location
	}
	if patch.Description != nil {
		set["description"] = *patch.Description
	}
	if patch.OrganizerName != nil {
		set["organizerName"] = *patch.OrganizerName
	}
	if patch.OrganizerEmail != nil {
		set["organizerEmail"] = *patch.OrganizerEmail
	}
	if patch.VolunteersNeeded != nil {
		set["volunteersNeeded"] = *patch.VolunteersNeeded
	}
	return set
}

func (s *PostStore) Delete(ctx context.Context, id string) error {
	res, err := s.c.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		return fmt.Errorf("mongostore: deleting post %s: %w", id, err)
	}
	if res.DeletedCount == 0 {
		return apperror.NotFound("post", id)
	}
	return nil
}

func (s *PostStore) RaiseInterestedVolunteers(ctx context.Context, id string, atLeast int) error {
	res, err := s.c.UpdateOne(ctx, bson.M{"_id": id}, raiseInterestedUpdate(atLeast))
	if err != nil {
		return fmt.Errorf("mongostore: raising interested volunteers on %s: %w", id, err)
	}
	if res.MatchedCount == 0 {
		return apperror.NotFound("post", id)
	}
	return nil
}

// raiseInterestedUpdate uses $max so a concurrent $inc is never overwritten.
func raiseInterestedUpdate(atLeast int) bson.M {
	return bson.M{"$max": bson.M{"interestedVolunteers": atLeast}}
}
