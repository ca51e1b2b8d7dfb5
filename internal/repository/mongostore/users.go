package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/sakif/volunteerhub/internal/apperror"
	"github.com/sakif/volunteerhub/internal/model"
	"github.com/sakif/volunteerhub/internal/repository"
)

var _ repository.UserRepository = (*UserStore)(nil)

type UserStore struct {
	c *mongo.Collection
}

// Create inserts a user. The unique email index makes a duplicate an ErrConflict.
func (s *UserStore) Create(ctx context.Context, user *model.User) error {
	user.ID = primitive.NewObjectID().Hex()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	if user.AppliedCampaigns == nil {
		user.AppliedCampaigns = []string{}
	}
	if _, err := s.c.InsertOne(ctx, user); err != nil {
		if isDuplicateKey(err) {
			return apperror.ConflictMessage("User already exists")
		}
		return fmt.Errorf("mongostore: inserting user %s: %w", user.Email, err)
	}
	return nil
}

func (s *UserStore) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	if err := s.c.FindOne(ctx, bson.M{"email": email}).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperror.NotFoundMessage("User not found")
		}
		return nil, fmt.Errorf("mongostore: finding user %s: %w", email, err)
	}
	if u.AppliedCampaigns == nil {
		u.AppliedCampaigns = []string{}
	}
	return &u, nil
}

func (s *UserStore) List(ctx context.Context) ([]model.User, error) {
	cur, err := s.c.Find(ctx, bson.M{})
	if err != nil {
		return nil, fmt.Errorf("mongostore: finding users: %w", err)
	}
	defer cur.Close(ctx)

	users := make([]model.User, 0)
	if err := cur.All(ctx, &users); err != nil {
		return nil, fmt.Errorf("mongostore: decoding users: %w", err)
	}
	return users, nil
}

func (s *UserStore) AddAppliedCampaigns(ctx context.Context, email string, postIDs []string) error {
	res, err := s.c.UpdateOne(ctx, bson.M{"email": email}, addAppliedUpdate(postIDs))
	if err != nil {
		return fmt.Errorf("mongostore: adding applied campaigns for %s: %w", email, err)
	}
	if res.MatchedCount == 0 {
		return apperror.NotFound("user", email)
	}
	return nil
}

// addAppliedUpdate appends only the IDs the stored array lacks, server side.
func addAppliedUpdate(postIDs []string) bson.M {
	if postIDs == nil {
		postIDs = []string{}
	}
	return bson.M{"$addToSet": bson.M{"appliedCampaigns": bson.M{"$each": postIDs}}}
}
