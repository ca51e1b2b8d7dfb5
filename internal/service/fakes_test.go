package service

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/sakif/volunteerhub/internal/apperror"
	"github.com/sakif/volunteerhub/internal/model"
	"github.com/sakif/volunteerhub/internal/repository"
)

// =========================================================================
// IN-MEMORY STORE
// =========================================================================
//
// fakeStore implements repository.Store with maps guarded by one mutex.
// The enrichment code reads it from several goroutines at once.
// Each *Err field, when set, is returned by the matching method.
// The after*List hooks run once the lock is released, letting a test slip
// writes in between a caller's read and its follow-up write.

type fakeStore struct {
	mu     sync.Mutex
	nextID int

	posts []*model.Post
	users []*model.User
	apps  []*model.Application

	getPostErr error
	getUserErr error
	submitErr  error

	afterPostsList func()
	afterUsersList func()
}

func newFakeStore() *fakeStore { return &fakeStore{} }

func (f *fakeStore) id(prefix string) string {
	f.nextID++
	return fmt.Sprintf("%s-%d", prefix, f.nextID)
}

func (f *fakeStore) Posts() repository.PostRepository               { return fakePosts{f} }
func (f *fakeStore) Users() repository.UserRepository               { return fakeUsers{f} }
func (f *fakeStore) Applications() repository.ApplicationRepository { return fakeApps{f} }
func (f *fakeStore) Ping(context.Context) error                     { return nil }
func (f *fakeStore) Close(context.Context) error                    { return nil }

// addPost stores a copy of p directly, bypassing the service.
func (f *fakeStore) addPost(p model.Post) *model.Post {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p.ID == "" {
		p.ID = f.id("post")
	}
	f.posts = append(f.posts, &p)
	return &p
}

func (f *fakeStore) addUser(u model.User) *model.User {
	f.mu.Lock()
	defer f.mu.Unlock()
	if u.ID == "" {
		u.ID = f.id("user")
	}
	if u.AppliedCampaigns == nil {
		u.AppliedCampaigns = []string{}
	}
	f.users = append(f.users, &u)
	return &u
}

func (f *fakeStore) addApp(a model.Application) *model.Application {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a.ID == "" {
		a.ID = f.id("app")
	}
	f.apps = append(f.apps, &a)
	return &a
}

func (f *fakeStore) post(id string) *model.Post {
	for _, p := range f.posts {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (f *fakeStore) user(email string) *model.User {
	for _, u := range f.users {
		if u.Email == email {
			return u
		}
	}
	return nil
}

// ---- posts ----

type fakePosts struct{ f *fakeStore }

func (r fakePosts) Create(_ context.Context, p *model.Post) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	p.ID = r.f.id("post")
	stored := *p
	r.f.posts = append(r.f.posts, &stored)
	return nil
}

func (r fakePosts) GetByID(_ context.Context, id string) (*model.Post, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	if r.f.getPostErr != nil {
		return nil, r.f.getPostErr
	}
	p := r.f.post(id)
	if p == nil {
		return nil, apperror.NotFound("post", id)
	}
	cp := *p
	return &cp, nil
}

func (r fakePosts) List(_ context.Context, filter repository.PostFilter) ([]model.Post, error) {
	r.f.mu.Lock()
	out := make([]model.Post, 0)
	for _, p := range r.f.posts {
		if filter.Search != "" && !strings.Contains(strings.ToLower(p.Title), strings.ToLower(filter.Search)) {
			continue
		}
		if filter.Category != "" && p.Category != filter.Category {
			continue
		}
		out = append(out, *p)
	}
	hook := r.f.afterPostsList
	r.f.mu.Unlock()

	if hook != nil {
		hook()
	}
	return out, nil
}

func (r fakePosts) ListByOrganizer(_ context.Context, email string) ([]model.Post, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	out := make([]model.Post, 0)
	for _, p := range r.f.posts {
		if p.OrganizerEmail == email {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (r fakePosts) Update(_ context.Context, id string, patch model.PostPatch) (*model.Post, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	p := r.f.post(id)
	if p == nil {
		return nil, apperror.NotFound("post", id)
	}
	if patch.Title != nil {
		p.Title = *patch.Title
	}
	if patch.Category != nil {
		p.Category = *patch.Category
	}
	if patch.Deadline != nil {
		p.Deadline = *patch.Deadline
	}
	if patch.Description != nil {
		p.Description = *patch.Description
	}
	if patch.OrganizerEmail != nil {
		p.OrganizerEmail = *patch.OrganizerEmail
	}
	if patch.VolunteersNeeded != nil {
		p.VolunteersNeeded = *patch.VolunteersNeeded
	}
	cp := *p
	return &cp, nil
}

func (r fakePosts) Delete(_ context.Context, id string) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	for i, p := range r.f.posts {
		if p.ID == id {
			r.f.posts = append(r.f.posts[:i], r.f.posts[i+1:]...)
			return nil
		}
	}
	return apperror.NotFound("post", id)
}

func (r fakePosts) RaiseInterestedVolunteers(_ context.Context, id string, atLeast int) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	p := r.f.post(id)
	if p == nil {
		return apperror.NotFound("post", id)
	}
	if p.InterestedVolunteers < atLeast {
		p.InterestedVolunteers = atLeast
	}
	return nil
}

// ---- users ----

type fakeUsers struct{ f *fakeStore }

func (r fakeUsers) Create(_ context.Context, u *model.User) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	if r.f.user(u.Email) != nil {
		return apperror.ConflictMessage("User already exists")
	}
	u.ID = r.f.id("user")
	stored := *u
	r.f.users = append(r.f.users, &stored)
	return nil
}

func (r fakeUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	if r.f.getUserErr != nil {
		return nil, r.f.getUserErr
	}
	u := r.f.user(email)
	if u == nil {
		return nil, apperror.NotFoundMessage("User not found")
	}
	cp := *u
	cp.AppliedCampaigns = append([]string{}, u.AppliedCampaigns...)
	return &cp, nil
}

func (r fakeUsers) List(_ context.Context) ([]model.User, error) {
	r.f.mu.Lock()
	out := make([]model.User, 0, len(r.f.users))
	for _, u := range r.f.users {
		cp := *u
		cp.AppliedCampaigns = append([]string{}, u.AppliedCampaigns...)
		out = append(out, cp)
	}
	hook := r.f.afterUsersList
	r.f.mu.Unlock()

	if hook != nil {
		hook()
	}
	return out, nil
}

func (r fakeUsers) AddAppliedCampaigns(_ context.Context, email string, ids []string) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	u := r.f.user(email)
	if u == nil {
		return apperror.NotFound("user", email)
	}
	for _, id := range ids {
		if !slices.Contains(u.AppliedCampaigns, id) {
			u.AppliedCampaigns = append(u.AppliedCampaigns, id)
		}
	}
	return nil
}

// ---- applications ----

type fakeApps struct{ f *fakeStore }

func (r fakeApps) Submit(_ context.Context, a *model.Application) error {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	if r.f.submitErr != nil {
		return r.f.submitErr
	}
	for _, existing := range r.f.apps {
		if existing.PostID == a.PostID && existing.ApplicantEmail == a.ApplicantEmail {
			return apperror.ConflictMessage("You have already applied to this post")
		}
	}
	p := r.f.post(a.PostID)
	if p == nil {
		return apperror.NotFound("post", a.PostID)
	}
	u := r.f.user(a.ApplicantEmail)
	if u == nil {
		return apperror.NotFoundMessage("User not found. Please sign up first.")
	}

	a.ID = r.f.id("app")
	stored := *a
	r.f.apps = append(r.f.apps, &stored)
	p.InterestedVolunteers++
	for _, id := range u.AppliedCampaigns {
		if id == a.PostID {
			return nil
		}
	}
	u.AppliedCampaigns = append(u.AppliedCampaigns, a.PostID)
	return nil
}

func (r fakeApps) GetByID(_ context.Context, id string) (*model.Application, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	for _, a := range r.f.apps {
		if a.ID == id {
			cp := *a
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("application", id)
}

func (r fakeApps) filter(keep func(*model.Application) bool) []model.Application {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	out := make([]model.Application, 0)
	for _, a := range r.f.apps {
		if keep(a) {
			out = append(out, *a)
		}
	}
	return out
}

func (r fakeApps) ListByApplicant(_ context.Context, email string) ([]model.Application, error) {
	return r.filter(func(a *model.Application) bool { return a.ApplicantEmail == email }), nil
}

func (r fakeApps) ListByOrganizer(_ context.Context, email string) ([]model.Application, error) {
	return r.filter(func(a *model.Application) bool { return a.PostCreatorEmail == email }), nil
}

func (r fakeApps) List(_ context.Context) ([]model.Application, error) {
	return r.filter(func(*model.Application) bool { return true }), nil
}

func (r fakeApps) UpdateStatus(_ context.Context, id string, status model.ApplicationStatus) (*model.Application, error) {
	r.f.mu.Lock()
	defer r.f.mu.Unlock()
	for _, a := range r.f.apps {
		if a.ID == id {
			a.Status = status
			cp := *a
			return &cp, nil
		}
	}
	return nil, apperror.NotFound("application", id)
}

// countingRecorder records submission outcomes.
type countingRecorder struct {
	mu       sync.Mutex
	outcomes map[string]int
}

func (c *countingRecorder) ApplicationSubmitted(outcome string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.outcomes == nil {
		c.outcomes = make(map[string]int)
	}
	c.outcomes[outcome]++
}
