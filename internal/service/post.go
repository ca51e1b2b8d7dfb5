package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/sakif/volunteerhub/internal/apperror"
	"github.com/sakif/volunteerhub/internal/model"
	"github.com/sakif/volunteerhub/internal/repository"
)

// FeaturedLimit is the most posts the featured endpoint returns.
const FeaturedLimit = 6

// NewPost is the create payload. InterestedVolunteers is a pointer so an
// omitted value (forced to 0) can be told apart from an explicit one.
type NewPost struct {
	Title                string `json:"title"`
	Category             string `json:"category"`
	PhotoURL             string `json:"photoURL"`
	Deadline             string `json:"deadline"`
	Location             string `json:"location"`
	Description          string `json:"description"`
	OrganizerName        string `json:"organizerName"`
	OrganizerEmail       string `json:"organizerEmail"`
	VolunteersNeeded     int    `json:"volunteersNeeded"`
	InterestedVolunteers *int   `json:"interestedVolunteers,omitempty"`
}

type PostService struct {
	repo     repository.PostRepository
	policy   Policy
	sanitize *bluemonday.Policy
	logger   *zap.Logger

	now     func() time.Time
	shuffle func(n int, swap func(i, j int))
}

func NewPostService(repo repository.PostRepository, policy Policy, logger *zap.Logger) *PostService {
	return &PostService{
		repo:     repo,
		policy:   policy,
		sanitize: bluemonday.UGCPolicy(),
		logger:   logger,
		now:      time.Now,
		shuffle:  rand.Shuffle,
	}
}

// ListAll returns posts in store order, optionally narrowed by filter.
func (s *PostService) ListAll(ctx context.Context, filter repository.PostFilter) ([]model.Post, error) {
	return s.repo.List(ctx, filter)
}

// ListActive returns posts whose deadline is at or after the current time.
// Posts with an unparseable deadline are treated as expired.
func (s *PostService) ListActive(ctx context.Context) ([]model.Post, error) {
	posts, err := s.repo.List(ctx, repository.PostFilter{})
	if err != nil {
		return nil, err
	}

	now := s.now()
	active := make([]model.Post, 0, len(posts))
	for i := range posts {
		if posts[i].IsActive(now) {
			active = append(active, posts[i])
		}
	}
	return active, nil
}

// Featured returns a fresh random sample of at most FeaturedLimit active posts.
// Fewer active posts than the limit is not an error.
func (s *PostService) Featured(ctx context.Context) ([]model.Post, error) {
	active, err := s.ListActive(ctx)
	if err != nil {
		return nil, err
	}
	s.shuffle(len(active), func(i, j int) { active[i], active[j] = active[j], active[i] })
	if len(active) > FeaturedLimit {
		active = active[:FeaturedLimit]
	}
	return active, nil
}

func (s *PostService) GetByID(ctx context.Context, id string) (*model.Post, error) {
	return s.repo.GetByID(ctx, id)
}

// ListByOrganizer returns the organizer's own posts. The session email must
// equal the requested email; a mismatch is 401 in every mode.
func (s *PostService) ListByOrganizer(ctx context.Context, actor, email string) ([]model.Post, error) {
	if actor == "" || actor != email {
		return nil, apperror.Unauthorized("forbidden access")
	}
	return s.repo.ListByOrganizer(ctx, email)
}

// Create validates in and stores a new post.
func (s *PostService) Create(ctx context.Context, actor string, in NewPost) (*model.Post, error) {
	post := &model.Post{
		Title:            strings.TrimSpace(in.Title),
		Category:         strings.TrimSpace(in.Category),
		PhotoURL:         strings.TrimSpace(in.PhotoURL),
		Location:         strings.TrimSpace(in.Location),
		Description:      s.sanitize.Sanitize(in.Description),
		OrganizerName:    strings.TrimSpace(in.OrganizerName),
		OrganizerEmail:   strings.TrimSpace(in.OrganizerEmail),
		VolunteersNeeded: in.VolunteersNeeded,
	}

	if post.Title == "" {
		return nil, apperror.ValidationFailed("title", "title is required")
	}
	if !model.IsValidCategory(post.Category) {
		return nil, apperror.ValidationFailed("category",
			fmt.Sprintf("category must be one of: %s", strings.Join(model.Categories, ", ")))
	}
	if post.OrganizerEmail == "" {
		return nil, apperror.ValidationFailed("organizerEmail", "organizerEmail is required")
	}
	if post.VolunteersNeeded < 0 {
		return nil, apperror.ValidationFailed("volunteersNeeded", "volunteersNeeded cannot be negative")
	}

	deadline, err := model.NormalizeDeadline(in.Deadline)
	if err != nil {
		return nil, apperror.ValidationFailed("deadline", err.Error())
	}
	post.Deadline = deadline

	if in.InterestedVolunteers != nil {
		if *in.InterestedVolunteers < 0 {
			return nil, apperror.ValidationFailed("interestedVolunteers", "interestedVolunteers cannot be negative")
		}
		post.InterestedVolunteers = *in.InterestedVolunteers
	}

	if err := s.policy.CheckOwner(actor, post.OrganizerEmail); err != nil {
		return nil, err
	}

	if err := s.repo.Create(ctx, post); err != nil {
		return nil, err
	}

	s.logger.Info("post created",
		zap.String("id", post.ID),
		zap.String("organizer", post.OrganizerEmail),
		zap.String("category", post.Category))
	return post, nil
}

// Update applies a partial patch. The deadline is normalized and the
// description sanitized before the write. An ownership transfer to another
// email is refused under a strict policy.
func (s *PostService) Update(ctx context.Context, actor, id string, patch model.PostPatch) (*model.Post, error) {
	if s.policy.Strict {
		existing, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := s.policy.CheckOwner(actor, existing.OrganizerEmail); err != nil {
			return nil, err
		}
		if patch.OrganizerEmail != nil && strings.TrimSpace(*patch.OrganizerEmail) != actor {
			return nil, apperror.Forbidden("organizerEmail cannot be changed to another user")
		}
	}

	if patch.Title != nil {
		title := strings.TrimSpace(*patch.Title)
		if title == "" {
			return nil, apperror.ValidationFailed("title", "title cannot be empty")
		}
		patch.Title = &title
	}
	if patch.Category != nil && !model.IsValidCategory(*patch.Category) {
		return nil, apperror.ValidationFailed("category",
			fmt.Sprintf("category must be one of: %s", strings.Join(model.Categories, ", ")))
	}
	if patch.Deadline != nil {
		deadline, err := model.NormalizeDeadline(*patch.Deadline)
		if err != nil {
			return nil, apperror.ValidationFailed("deadline", err.Error())
		}
		patch.Deadline = &deadline
	}
	if patch.Description != nil {
		clean := s.sanitize.Sanitize(*patch.Description)
		patch.Description = &clean
	}
	if patch.VolunteersNeeded != nil && *patch.VolunteersNeeded < 0 {
		return nil, apperror.ValidationFailed("volunteersNeeded", "volunteersNeeded cannot be negative")
	}

	post, err := s.repo.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	s.logger.Info("post updated", zap.String("id", id))
	return post, nil
}

func (s *PostService) Delete(ctx context.Context, actor, id string) error {
	if s.policy.Strict {
		existing, err := s.repo.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := s.policy.CheckOwner(actor, existing.OrganizerEmail); err != nil {
			return err
		}
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if !errors.Is(err, apperror.ErrNotFound) {
			s.logger.Error("delete post failed", zap.String("id", id), zap.Error(err))
		}
		return err
	}
	s.logger.Info("post deleted", zap.String("id", id))
	return nil
}
