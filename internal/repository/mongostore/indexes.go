package mongostore

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"
)

/*
EnsureIndexes is called at startup, before the listener opens. Every index is
created idempotently; problems from all collections are collected so one bad
collection does not hide another.
*/
func EnsureIndexes(ctx context.Context, db *mongo.Database) error {
	var problems []string

	sets := []struct {
		collection string
		models     []mongo.IndexModel
	}{
		{postsCollection, postIndexes()},
		{usersCollection, userIndexes()},
		{applicationsCollection, applicationIndexes()},
	}
	for _, set := range sets {
		if err := ensureIndexSet(ctx, db.Collection(set.collection), set.models); err != nil {
			problems = append(problems, set.collection+": "+err.Error())
		}
	}

	if len(problems) > 0 {
		return errors.New(strings.Join(problems, "; "))
	}
	return nil
}

func postIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "organizerEmail", Value: 1}},
			Options: options.Index().SetName("idx_posts_organizer"),
		},
	}
}

func userIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "email", Value: 1}},
			Options: options.Index().SetName("uniq_users_email").SetUnique(true),
		},
	}
}

func applicationIndexes() []mongo.IndexModel {
	return []mongo.IndexModel{
		{
			Keys: bson.D{
				{Key: "postId", Value: 1},
				{Key: "applicantEmail", Value: 1},
			},
			Options: options.Index().SetName("uniq_applications_post_applicant").SetUnique(true),
		},
		{
			Keys:    bson.D{{Key: "applicantEmail", Value: 1}},
			Options: options.Index().SetName("idx_applications_applicant"),
		},
		{
			Keys:    bson.D{{Key: "postCreatorEmail", Value: 1}},
			Options: options.Index().SetName("idx_applications_creator"),
		},
	}
}

type existingIndex struct {
	Name   string `bson:"name"`
	Key    bson.D `bson:"key"`
	Unique *bool  `bson:"unique,omitempty"`
}

// ensureIndexSet creates each model and keeps going past failures so every
// problem in the collection is reported together.
func ensureIndexSet(ctx context.Context, coll *mongo.Collection, models []mongo.IndexModel) error {
	var errs []string
	for _, m := range models {
		if err := ensureIndex(ctx, coll, m); err != nil {
			zap.L().Error("ensure index failed",
				zap.String("collection", coll.Name()),
				zap.String("keys", keySig(m.Keys.(bson.D))),
				zap.Error(err))
			errs = append(errs, err.Error())
		}
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// ensureIndex creates m. On an options conflict the existing index on the
// same keys is kept only when its unique flag matches; otherwise it is
// dropped and rebuilt, which fails if duplicates block the unique build.
func ensureIndex(ctx context.Context, coll *mongo.Collection, m mongo.IndexModel) error {
	start := time.Now()
	sig := keySig(m.Keys.(bson.D))
	var wantName string
	var wantUnique *bool
	if m.Options != nil {
		if m.Options.Name != nil {
			wantName = *m.Options.Name
		}
		wantUnique = m.Options.Unique
	}

	name, err := coll.Indexes().CreateOne(ctx, m)
	if err == nil {
		zap.L().Info("index ensured",
			zap.String("collection", coll.Name()),
			zap.String("name", name),
			zap.Duration("took", time.Since(start)))
		return nil
	}
	if !isOptionsConflict(err) {
		return fmt.Errorf("index %s: %w", wantName, err)
	}

	ex, lerr := findIndex(ctx, coll, sig, wantName)
	if lerr != nil {
		return fmt.Errorf("index %s: listing indexes after conflict: %w", wantName, lerr)
	}
	if ex == nil {
		return fmt.Errorf("index %s: %w", wantName, err)
	}
	if ex.keySig() == sig && sameBoolPtr(wantUnique, ex.Unique) {
		zap.L().Warn("equivalent index exists under a different name; keeping it",
			zap.String("collection", coll.Name()),
			zap.String("name", ex.Name),
			zap.String("keys", sig))
		return nil
	}

	if _, err := coll.Indexes().DropOne(ctx, ex.Name); err != nil {
		return fmt.Errorf("index %s: dropping conflicting index %s: %w", wantName, ex.Name, err)
	}
	if _, err := coll.Indexes().CreateOne(ctx, m); err != nil {
		if isDuplicateKey(err) && wantUnique != nil && *wantUnique {
			return fmt.Errorf("index %s: cannot build unique index on %s, duplicates present: %w", wantName, sig, err)
		}
		return fmt.Errorf("index %s: recreating index: %w", wantName, err)
	}
	zap.L().Info("index dropped and recreated",
		zap.String("collection", coll.Name()),
		zap.String("dropped", ex.Name),
		zap.String("name", wantName),
		zap.String("keys", sig),
		zap.Bool("unique", wantUnique != nil && *wantUnique),
		zap.Duration("took", time.Since(start)))
	return nil
}

// findIndex returns the existing index with key signature sig, or failing
// that the one named name. Nil when neither exists.
func findIndex(ctx context.Context, coll *mongo.Collection, sig, name string) (*existingIndex, error) {
	cur, err := coll.Indexes().List(ctx)
	if err != nil {
		return nil, err
	}
	var all []existingIndex
	if err := cur.All(ctx, &all); err != nil {
		return nil, err
	}

	var byName *existingIndex
	for i := range all {
		if all[i].keySig() == sig {
			return &all[i], nil
		}
		if name != "" && all[i].Name == name {
			byName = &all[i]
		}
	}
	return byName, nil
}

func (ix existingIndex) keySig() string { return keySig(ix.Key) }

// keySig renders a key pattern as "field:dir, ..." so server-decoded keys
// (int32 directions) compare equal to the models' int directions.
func keySig(keys bson.D) string {
	parts := make([]string, 0, len(keys))
	for _, kv := range keys {
		parts = append(parts, fmt.Sprintf("%s:%v", kv.Key, kv.Value))
	}
	return strings.Join(parts, ", ")
}

// sameBoolPtr treats nil as false, the server's default for index flags.
func sameBoolPtr(a, b *bool) bool {
	return (a != nil && *a) == (b != nil && *b)
}

func isOptionsConflict(err error) bool {
	if err == nil {
		return false
	}
	var ce mongo.CommandError
	if errors.As(err, &ce) && (ce.Code == 85 || ce.Code == 86) {
		return true
	}
	return strings.Contains(err.Error(), "IndexOptionsConflict") ||
		strings.Contains(err.Error(), "IndexKeySpecsConflict")
}
