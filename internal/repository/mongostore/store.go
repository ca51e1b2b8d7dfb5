// Package mongostore implements the repository interfaces on MongoDB.
//
// Collections: posts, users, applications. Identifiers are ObjectID hex
// strings stored in _id, so the JSON the SPA receives is the same as with the
// embedded backend.
//
// UNIQUENESS:
// EnsureIndexes must run before the server accepts traffic. The unique index
// on applications(postId, applicantEmail) is what turns a duplicate submission
// into a 409; nothing checks for an existing application first.
package mongostore

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.uber.org/zap"

	"github.com/sakif/volunteerhub/internal/repository"
)

const (
	postsCollection        = "posts"
	usersCollection        = "users"
	applicationsCollection = "applications"
)

var _ repository.Store = (*Store)(nil)

// Store owns the client connection and hands out the per-collection stores.
type Store struct {
	client *mongo.Client
	db     *mongo.Database
	log    *zap.Logger
}

// Connect dials uri, verifies the primary is reachable and returns a Store
// bound to database dbName.
func Connect(ctx context.Context, uri, dbName string, log *zap.Logger) (*Store, error) {
	opts := options.Client().
		ApplyURI(uri).
		SetServerSelectionTimeout(10 * time.Second)

	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("mongostore: connecting: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		return nil, fmt.Errorf("mongostore: pinging primary: %w", err)
	}

	return New(client, client.Database(dbName), log), nil
}

// New wraps an existing client. Tests pass the mock deployment's client here.
func New(client *mongo.Client, db *mongo.Database, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{client: client, db: db, log: log}
}

// Database exposes the underlying database for index bootstrap.
func (s *Store) Database() *mongo.Database { return s.db }

func (s *Store) Posts() repository.PostRepository {
	return &PostStore{c: s.db.Collection(postsCollection)}
}

func (s *Store) Users() repository.UserRepository {
	return &UserStore{c: s.db.Collection(usersCollection)}
}

func (s *Store) Applications() repository.ApplicationRepository {
	return &ApplicationStore{
		client: s.client,
		apps:   s.db.Collection(applicationsCollection),
		posts:  s.db.Collection(postsCollection),
		users:  s.db.Collection(usersCollection),
		log:    s.log,
	}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx, readpref.Primary())
}

// Close disconnects the client, waiting for in-flight operations up to ctx's deadline.
func (s *Store) Close(ctx context.Context) error {
	return s.client.Disconnect(ctx)
}
