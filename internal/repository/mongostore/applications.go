package mongostore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/sakif/volunteerhub/internal/apperror"
	"github.com/sakif/volunteerhub/internal/model"
	"github.com/sakif/volunteerhub/internal/repository"
)

var _ repository.ApplicationRepository = (*ApplicationStore)(nil)

// ApplicationStore touches all three collections: Submit writes the
// application, the post counter and the user's applied list together.
type ApplicationStore struct {
	client *mongo.Client
	apps   *mongo.Collection
	posts  *mongo.Collection
	users  *mongo.Collection
	log    *zap.Logger
}

// Submit runs the three submission writes in a transaction. On a deployment
// without transaction support it runs them sequentially and logs a warning;
// any drift left by a partial failure is repaired by the reconciler.
func (s *ApplicationStore) Submit(ctx context.Context, app *model.Application) error {
	app.ID = primitive.NewObjectID().Hex()
	if app.CreatedAt.IsZero() {
		app.CreatedAt = time.Now().UTC()
	}

	err := s.inTransaction(ctx, func(ctx context.Context) error {
		return s.writeSubmission(ctx, app)
	})
	if err == nil {
		return nil
	}

	var appErr *apperror.AppError
	if errors.As(err, &appErr) || !isTxnNotSupported(err) {
		return err
	}

	s.log.Warn("transactions not supported; submitting application without one",
		zap.String("post_id", app.PostID),
		zap.String("applicant", app.ApplicantEmail),
		zap.Error(err))
	if err := s.writeSubmission(ctx, app); err != nil {
		var appErr *apperror.AppError
		if !errors.As(err, &appErr) {
			s.log.Error("non-transactional submission failed part way; reconciler will repair counters",
				zap.String("application_id", app.ID),
				zap.Error(err))
		}
		return err
	}
	return nil
}

func (s *ApplicationStore) inTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	sess, err := s.client.StartSession()
	if err != nil {
		return fmt.Errorf("mongostore: starting session: %w", err)
	}
	defer sess.EndSession(ctx)

	_, err = sess.WithTransaction(ctx, func(sc mongo.SessionContext) (any, error) {
		return nil, fn(sc)
	})
	return err
}

// writeSubmission performs the three writes in order:
//  1. insert the application (duplicate key → ErrConflict)
//  2. $inc the post's interestedVolunteers by 1
//  3. $addToSet the post ID onto the user's appliedCampaigns
func (s *ApplicationStore) writeSubmission(ctx context.Context, app *model.Application) error {
	if _, err := s.apps.InsertOne(ctx, app); err != nil {
		if isDuplicateKey(err) {
			return apperror.ConflictMessage("You have already applied to this post")
		}
		return fmt.Errorf("mongostore: inserting application: %w", err)
	}

	res, err := s.posts.UpdateOne(ctx,
		bson.M{"_id": app.PostID},
		bson.M{"$inc": bson.M{"interestedVolunteers": 1}},
	)
	if err != nil {
		return fmt.Errorf("mongostore: incrementing interested volunteers on %s: %w", app.PostID, err)
	}
	if res.MatchedCount == 0 {
		return apperror.NotFound("post", app.PostID)
	}

	res, err = s.users.UpdateOne(ctx,
		bson.M{"email": app.ApplicantEmail},
		bson.M{"$addToSet": bson.M{"appliedCampaigns": app.PostID}},
	)
	if err != nil {
		return fmt.Errorf("mongostore: updating applied campaigns for %s: %w", app.ApplicantEmail, err)
	}
	if res.MatchedCount == 0 {
		return apperror.NotFoundMessage("User not found. Please sign up first.")
	}
	return nil
}

func (s *ApplicationStore) GetByID(ctx context.Context, id string) (*model.Application, error) {
	var a model.Application
	if err := s.apps.FindOne(ctx, bson.M{"_id": id}).Decode(&a); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperror.NotFound("application", id)
		}
		return nil, fmt.Errorf("mongostore: finding application %s: %w", id, err)
	}
	return &a, nil
}

func (s *ApplicationStore) ListByApplicant(ctx context.Context, email string) ([]model.Application, error) {
	return s.find(ctx, bson.M{"applicantEmail": email})
}

// ListByOrganizer matches the postCreatorEmail recorded at submission time.
func (s *ApplicationStore) ListByOrganizer(ctx context.Context, email string) ([]model.Application, error) {
	return s.find(ctx, bson.M{"postCreatorEmail": email})
}

func (s *ApplicationStore) List(ctx context.Context) ([]model.Application, error) {
	return s.find(ctx, bson.M{})
}

func (s *ApplicationStore) find(ctx context.Context, q bson.M) ([]model.Application, error) {
	cur, err := s.apps.Find(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("mongostore: finding applications: %w", err)
	}
	defer cur.Close(ctx)

	apps := make([]model.Application, 0)
	if err := cur.All(ctx, &apps); err != nil {
		return nil, fmt.Errorf("mongostore: decoding applications: %w", err)
	}
	return apps, nil
}

func (s *ApplicationStore) UpdateStatus(ctx context.Context, id string, status model.ApplicationStatus) (*model.Application, error) {
	var a model.Application
	err := s.apps.FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"status": status}},
		options.FindOneAndUpdate().SetReturnDocument(options.After),
	).Decode(&a)
	if err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, apperror.NotFound("application", id)
		}
		return nil, fmt.Errorf("mongostore: updating application %s: %w", id, err)
	}
	return &a, nil
}
