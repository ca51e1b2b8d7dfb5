package service

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/sakif/volunteerhub/internal/repository"
)

// ReconcileReport counts the records a reconciliation pass repaired.
type ReconcileReport struct {
	PostsChecked  int
	PostsRepaired int
	UsersChecked  int
	UsersRepaired int
}

// ReconcileService repairs the denormalized counters that a partially
// applied submission can leave behind (the Mongo fallback path without
// transactions writes the application first, then the counter, then the
// user's list).
//
// Repairs only move forward and write deltas, never a value read earlier in
// the pass, so a submission landing mid-pass is not undone:
//   - a post whose interestedVolunteers is below its application count is
//     raised to that count; a higher value may be a seed given at creation
//     and is left alone
//   - a user's appliedCampaigns gains any applied post ID it is missing
type ReconcileService struct {
	apps   repository.ApplicationRepository
	posts  repository.PostRepository
	users  repository.UserRepository
	logger *zap.Logger
}

func NewReconcileService(store repository.Store, logger *zap.Logger) *ReconcileService {
	return &ReconcileService{
		apps:   store.Applications(),
		posts:  store.Posts(),
		users:  store.Users(),
		logger: logger,
	}
}

// Run performs one reconciliation pass.
func (s *ReconcileService) Run(ctx context.Context) (ReconcileReport, error) {
	var report ReconcileReport

	apps, err := s.apps.List(ctx)
	if err != nil {
		return report, fmt.Errorf("reconcile: listing applications: %w", err)
	}

	counts := make(map[string]int)
	applied := make(map[string][]string)
	for _, a := range apps {
		counts[a.PostID]++
		applied[a.ApplicantEmail] = append(applied[a.ApplicantEmail], a.PostID)
	}

	posts, err := s.posts.List(ctx, repository.PostFilter{})
	if err != nil {
		return report, fmt.Errorf("reconcile: listing posts: %w", err)
	}
	for _, p := range posts {
		report.PostsChecked++
		want := counts[p.ID]
		if p.InterestedVolunteers >= want {
			continue
		}
		if err := s.posts.RaiseInterestedVolunteers(ctx, p.ID, want); err != nil {
			return report, fmt.Errorf("reconcile: repairing post %s: %w", p.ID, err)
		}
		report.PostsRepaired++
		s.logger.Warn("repaired interested volunteers",
			zap.String("post_id", p.ID),
			zap.Int("was", p.InterestedVolunteers),
			zap.Int("now", want))
	}

	users, err := s.users.List(ctx)
	if err != nil {
		return report, fmt.Errorf("reconcile: listing users: %w", err)
	}
	for _, u := range users {
		report.UsersChecked++
		missing := difference(applied[u.Email], u.AppliedCampaigns)
		if len(missing) == 0 {
			continue
		}
		if err := s.users.AddAppliedCampaigns(ctx, u.Email, missing); err != nil {
			return report, fmt.Errorf("reconcile: repairing user %s: %w", u.Email, err)
		}
		report.UsersRepaired++
		s.logger.Warn("repaired applied campaigns",
			zap.String("email", u.Email),
			zap.Int("added", len(missing)))
	}

	return report, nil
}

// difference returns the elements of want absent from have, in order and
// without duplicates.
func difference(want, have []string) []string {
	seen := make(map[string]struct{}, len(have))
	for _, id := range have {
		seen[id] = struct{}{}
	}

	var out []string
	for _, id := range want {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
