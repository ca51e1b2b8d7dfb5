// Package repository declares the storage contracts the service layer depends on.
//
// Two backends implement every interface here:
//   - repository/mongostore: the production document store
//   - repository/sqlite:     an embedded store for local development and tests
//
// All methods return apperror values for the "expected" failures (not found,
// duplicate) and wrapped driver errors for everything else.
package repository

import (
	"context"

	"github.com/sakif/volunteerhub/internal/model"
)

// PostFilter narrows List. The zero value means "every post, store order".
type PostFilter struct {
	Search   string // case-insensitive substring of the title
	Category string // exact category match
}

type PostRepository interface {
	Create(ctx context.Context, post *model.Post) error
	GetByID(ctx context.Context, id string) (*model.Post, error)
	List(ctx context.Context, filter PostFilter) ([]model.Post, error)
	ListByOrganizer(ctx context.Context, email string) ([]model.Post, error)
	// Update applies patch and returns the post as it is after the write.
	Update(ctx context.Context, id string, patch model.PostPatch) (*model.Post, error)
	Delete(ctx context.Context, id string) error
	// RaiseInterestedVolunteers lifts the counter to atLeast in one atomic
	// write. A higher stored value is left alone.
	RaiseInterestedVolunteers(ctx context.Context, id string, atLeast int) error
}

type UserRepository interface {
	// Create inserts a user. A second user with the same email is ErrConflict.
	Create(ctx context.Context, user *model.User) error
	GetByEmail(ctx context.Context, email string) (*model.User, error)
	List(ctx context.Context) ([]model.User, error)
	// AddAppliedCampaigns adds the post IDs the user's list lacks without
	// rewriting entries a concurrent submission may have added.
	AddAppliedCampaigns(ctx context.Context, email string, postIDs []string) error
}

type ApplicationRepository interface {
	// Submit persists app and applies its side effects as one unit:
	//   1. insert the application (ErrConflict on a duplicate post/applicant pair)
	//   2. increment the post's interestedVolunteers by exactly 1
	//   3. add the post ID to the applicant's appliedCampaigns (set semantics)
	Submit(ctx context.Context, app *model.Application) error
	GetByID(ctx context.Context, id string) (*model.Application, error)
	ListByApplicant(ctx context.Context, email string) ([]model.Application, error)
	ListByOrganizer(ctx context.Context, email string) ([]model.Application, error)
	List(ctx context.Context) ([]model.Application, error)
	// UpdateStatus sets the status and returns the updated application.
	UpdateStatus(ctx context.Context, id string, status model.ApplicationStatus) (*model.Application, error)
}

// Store bundles the three repositories with the lifecycle of the connection
// behind them. cmd/server picks one implementation at start.
type Store interface {
	Posts() PostRepository
	Users() UserRepository
	Applications() ApplicationRepository
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
