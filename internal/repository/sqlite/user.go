package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/volunteerhub/internal/apperror"
	"github.com/sakif/volunteerhub/internal/model"
	"github.com/sakif/volunteerhub/internal/repository"
)

var _ repository.UserRepository = (*UserDB)(nil)

// UserDB implements repository.UserRepository on the users table.
type UserDB struct {
	db *DB
}

const userColumns = `id, display_name, email, photo_url, applied_campaigns, created_at`

func scanUser(s rowScanner, u *model.User) error {
	var applied string
	if err := s.Scan(&u.ID, &u.DisplayName, &u.Email, &u.PhotoURL, &applied, &u.CreatedAt); err != nil {
		return err
	}
	ids, err := decodeIDs(applied)
	if err != nil {
		return fmt.Errorf("decoding applied_campaigns for %s: %w", u.Email, err)
	}
	u.AppliedCampaigns = ids
	return nil
}

// Create inserts a new user. The email column is UNIQUE, so a second sign-up
// with the same email, even a concurrent one, comes back as apperror.ErrConflict.
func (r *UserDB) Create(ctx context.Context, user *model.User) error {
	user.ID = xid.New().String()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	if user.AppliedCampaigns == nil {
		user.AppliedCampaigns = []string{}
	}

	applied, err := encodeIDs(user.AppliedCampaigns)
	if err != nil {
		return fmt.Errorf("sqlite: encoding applied_campaigns: %w", err)
	}

	_, err = r.db.conn.ExecContext(ctx,
		`INSERT INTO users (`+userColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		user.ID, user.DisplayName, user.Email, user.PhotoURL, applied, user.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.ConflictMessage("User already exists")
		}
		return fmt.Errorf("sqlite: inserting user %s: %w", user.Email, err)
	}
	return nil
}

// GetByEmail returns apperror.ErrNotFound if no user has that email.
func (r *UserDB) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	var u model.User
	err := scanUser(r.db.conn.QueryRowContext(ctx,
		`SELECT `+userColumns+` FROM users WHERE email = ?`, email), &u)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFoundMessage("User not found")
		}
		return nil, fmt.Errorf("sqlite: getting user %s: %w", email, err)
	}
	return &u, nil
}

func (r *UserDB) List(ctx context.Context) ([]model.User, error) {
	rows, err := r.db.conn.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("sqlite: listing users: %w", err)
	}
	defer rows.Close()

	users := make([]model.User, 0)
	for rows.Next() {
		var u model.User
		if err := scanUser(rows, &u); err != nil {
			return nil, fmt.Errorf("sqlite: scanning user row: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating users: %w", err)
	}
	return users, nil
}

// AddAppliedCampaigns merges postIDs into the stored list inside one
// transaction, so entries written since the caller's read are kept.
func (r *UserDB) AddAppliedCampaigns(ctx context.Context, email string, postIDs []string) error {
	tx, err := r.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning applied campaigns transaction: %w", err)
	}
	defer tx.Rollback()

	found, err := mergeAppliedCampaigns(ctx, tx, email, postIDs)
	if err != nil {
		return err
	}
	if !found {
		return apperror.NotFound("user", email)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing applied campaigns for %s: %w", email, err)
	}
	return nil
}

// mergeAppliedCampaigns reads, extends and rewrites one user's list on tx.
// found is false when no user has that email.
func mergeAppliedCampaigns(ctx context.Context, tx *sql.Tx, email string, postIDs []string) (found bool, err error) {
	var applied string
	err = tx.QueryRowContext(ctx,
		`SELECT applied_campaigns FROM users WHERE email = ?`, email,
	).Scan(&applied)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("sqlite: reading applied campaigns for %s: %w", email, err)
	}

	ids, err := decodeIDs(applied)
	if err != nil {
		return true, fmt.Errorf("sqlite: decoding applied_campaigns for %s: %w", email, err)
	}
	for _, id := range postIDs {
		ids = addID(ids, id)
	}
	encoded, err := encodeIDs(ids)
	if err != nil {
		return true, fmt.Errorf("sqlite: encoding applied_campaigns: %w", err)
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET applied_campaigns = ? WHERE email = ?`, encoded, email,
	); err != nil {
		return true, fmt.Errorf("sqlite: updating applied campaigns for %s: %w", email, err)
	}
	return true, nil
}

func encodeIDs(ids []string) (string, error) {
	b, err := json.Marshal(ids)
	if err != nil {
		return "", err
	}
	return string(b), nil
}

func decodeIDs(s string) ([]string, error) {
	ids := []string{}
	if s == "" {
		return ids, nil
	}
	if err := json.Unmarshal([]byte(s), &ids); err != nil {
		return nil, err
	}
	return ids, nil
}

// addID appends id to ids unless it is already present.
func addID(ids []string, id string) []string {
	for _, existing := range ids {
		if existing == id {
			return ids
		}
	}
	return append(ids, id)
}
