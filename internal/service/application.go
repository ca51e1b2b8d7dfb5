package service

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/sakif/volunteerhub/internal/apperror"
	"github.com/sakif/volunteerhub/internal/model"
	"github.com/sakif/volunteerhub/internal/repository"
)

// Placeholders used when an enrichment lookup finds nothing.
const (
	MissingPostTitle    = "Post not found"
	MissingPostCategory = "Unknown"
	MissingUserName     = "Unknown User"
)

// enrichConcurrency caps the lookups in flight for one listing request.
const enrichConcurrency = 8

// SubmitInput is the POST /applications payload.
type SubmitInput struct {
	PostID         string `json:"postId"`
	ApplicantEmail string `json:"applicantEmail"`
}

type ApplicationService struct {
	apps     repository.ApplicationRepository
	posts    repository.PostRepository
	users    repository.UserRepository
	policy   Policy
	recorder Recorder
	logger   *zap.Logger

	now func() time.Time
}

// NewApplicationService wires the service to all three repositories of store.
// rec may be nil.
func NewApplicationService(store repository.Store, policy Policy, rec Recorder, logger *zap.Logger) *ApplicationService {
	if rec == nil {
		rec = nopRecorder{}
	}
	return &ApplicationService{
		apps:     store.Applications(),
		posts:    store.Posts(),
		users:    store.Users(),
		policy:   policy,
		recorder: rec,
		logger:   logger,
		now:      time.Now,
	}
}

// Submit creates a pending application for in.ApplicantEmail on in.PostID.
//
// The applicant must already have signed up, and the post must exist. The
// application insert, the post's interestedVolunteers increment and the
// applicant's appliedCampaigns update happen together in the repository; a
// duplicate (post, applicant) pair comes back as ErrConflict from the unique
// constraint and changes nothing.
func (s *ApplicationService) Submit(ctx context.Context, actor string, in SubmitInput) (*model.Application, error) {
	postID := strings.TrimSpace(in.PostID)
	email := strings.TrimSpace(in.ApplicantEmail)
	if postID == "" || email == "" {
		s.recorder.ApplicationSubmitted(OutcomeRejected)
		return nil, apperror.ValidationFailed("postId", "postId and applicantEmail are required")
	}

	if err := s.policy.CheckOwner(actor, email); err != nil {
		s.recorder.ApplicationSubmitted(OutcomeRejected)
		return nil, err
	}

	if _, err := s.users.GetByEmail(ctx, email); err != nil {
		s.recorder.ApplicationSubmitted(OutcomeRejected)
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.NotFoundMessage("User not found. Please sign up first.")
		}
		return nil, err
	}

	post, err := s.posts.GetByID(ctx, postID)
	if err != nil {
		s.recorder.ApplicationSubmitted(OutcomeRejected)
		if errors.Is(err, apperror.ErrNotFound) {
			return nil, apperror.NotFoundMessage("Post not found")
		}
		return nil, err
	}

	app := &model.Application{
		PostID:           post.ID,
		ApplicantEmail:   email,
		PostCreatorEmail: post.OrganizerEmail,
		Status:           model.StatusPending,
		CreatedAt:        s.now().UTC(),
	}
	if err := s.apps.Submit(ctx, app); err != nil {
		switch {
		case errors.Is(err, apperror.ErrConflict):
			s.recorder.ApplicationSubmitted(OutcomeDuplicate)
		case errors.Is(err, apperror.ErrNotFound):
			s.recorder.ApplicationSubmitted(OutcomeRejected)
		default:
			s.recorder.ApplicationSubmitted(OutcomeError)
			s.logger.Error("submit application failed",
				zap.String("post_id", postID),
				zap.String("applicant", email),
				zap.Error(err))
		}
		return nil, err
	}

	s.recorder.ApplicationSubmitted(OutcomeCreated)
	s.logger.Info("application submitted",
		zap.String("id", app.ID),
		zap.String("post_id", app.PostID),
		zap.String("applicant", app.ApplicantEmail))
	return app, nil
}

// ListByApplicant returns the applicant's applications, newest first, each
// with its post's title and category.
func (s *ApplicationService) ListByApplicant(ctx context.Context, email string) ([]model.ApplicationView, error) {
	apps, err := s.apps.ListByApplicant(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, err
	}
	return s.enrich(ctx, apps, false)
}

// ListByOrganizer returns applications whose recorded postCreatorEmail is
// email, newest first, with post details and the applicant's display name.
func (s *ApplicationService) ListByOrganizer(ctx context.Context, email string) ([]model.ApplicationView, error) {
	apps, err := s.apps.ListByOrganizer(ctx, strings.TrimSpace(email))
	if err != nil {
		return nil, err
	}
	return s.enrich(ctx, apps, true)
}

// enrich runs the per-application lookups concurrently. A missing post or
// user becomes a placeholder; any other lookup error fails the request.
func (s *ApplicationService) enrich(ctx context.Context, apps []model.Application, withApplicant bool) ([]model.ApplicationView, error) {
	slices.SortStableFunc(apps, func(a, b model.Application) int {
		return b.CreatedAt.Compare(a.CreatedAt)
	})

	views := make([]model.ApplicationView, len(apps))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(enrichConcurrency)

	for i := range apps {
		views[i].Application = apps[i]
		g.Go(func() error {
			v := &views[i]

			post, err := s.posts.GetByID(gctx, v.PostID)
			switch {
			case err == nil:
				v.PostTitle = post.Title
				v.PostCategory = post.Category
			case errors.Is(err, apperror.ErrNotFound):
				v.PostTitle = MissingPostTitle
				v.PostCategory = MissingPostCategory
			default:
				return fmt.Errorf("looking up post %s: %w", v.PostID, err)
			}

			if !withApplicant {
				return nil
			}
			user, err := s.users.GetByEmail(gctx, v.ApplicantEmail)
			switch {
			case err == nil:
				v.ApplicantName = user.DisplayName
			case errors.Is(err, apperror.ErrNotFound):
				v.ApplicantName = MissingUserName
			default:
				return fmt.Errorf("looking up applicant %s: %w", v.ApplicantEmail, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return views, nil
}

// UpdateStatus sets an application's status. Under a strict policy only the
// post's creator may do this and the status must be one of the known values;
// otherwise any non-empty string is stored.
func (s *ApplicationService) UpdateStatus(ctx context.Context, actor, id, status string) (*model.Application, error) {
	st := model.ApplicationStatus(strings.TrimSpace(status))
	if st == "" {
		return nil, apperror.ValidationFailed("status", "status is required")
	}

	if s.policy.Strict {
		if !st.IsKnown() {
			return nil, apperror.ValidationFailed("status",
				"status must be one of: pending, under_review, accepted, waitlisted, declined")
		}
		existing, err := s.apps.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := s.policy.CheckOwner(actor, existing.PostCreatorEmail); err != nil {
			return nil, err
		}
	}

	app, err := s.apps.UpdateStatus(ctx, id, st)
	if err != nil {
		return nil, err
	}
	s.logger.Info("application status updated",
		zap.String("id", id),
		zap.String("status", string(st)))
	return app, nil
}
