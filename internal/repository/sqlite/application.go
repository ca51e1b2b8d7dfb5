package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/volunteerhub/internal/apperror"
	"github.com/sakif/volunteerhub/internal/model"
	"github.com/sakif/volunteerhub/internal/repository"
)

var _ repository.ApplicationRepository = (*ApplicationDB)(nil)

// ApplicationDB implements repository.ApplicationRepository on the applications table.
type ApplicationDB struct {
	db *DB
}

const applicationColumns = `id, post_id, applicant_email, post_creator_email, status, created_at`

func scanApplication(s rowScanner, a *model.Application) error {
	return s.Scan(&a.ID, &a.PostID, &a.ApplicantEmail, &a.PostCreatorEmail, &a.Status, &a.CreatedAt)
}

// Submit inserts the application and applies both side effects inside one
// transaction. Any failure rolls back all three writes, so a duplicate never
// moves the post counter.
func (r *ApplicationDB) Submit(ctx context.Context, app *model.Application) error {
	app.ID = xid.New().String()
	if app.CreatedAt.IsZero() {
		app.CreatedAt = time.Now().UTC()
	}

	tx, err := r.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("sqlite: beginning submit transaction: %w", err)
	}
	// Rollback after a successful Commit is a no-op returning sql.ErrTxDone.
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO applications (`+applicationColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		app.ID, app.PostID, app.ApplicantEmail, app.PostCreatorEmail, app.Status, app.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return apperror.ConflictMessage("You have already applied to this post")
		}
		return fmt.Errorf("sqlite: inserting application: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE posts SET interested_volunteers = interested_volunteers + 1 WHERE id = ?`, app.PostID)
	if err != nil {
		return fmt.Errorf("sqlite: incrementing interested volunteers on %s: %w", app.PostID, err)
	}
	if err := requireAffected(result, "post", app.PostID); err != nil {
		return err
	}

	found, err := mergeAppliedCampaigns(ctx, tx, app.ApplicantEmail, []string{app.PostID})
	if err != nil {
		return err
	}
	if !found {
		return apperror.NotFoundMessage("User not found. Please sign up first.")
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("sqlite: committing submit transaction: %w", err)
	}
	return nil
}

func (r *ApplicationDB) GetByID(ctx context.Context, id string) (*model.Application, error) {
	var a model.Application
	err := scanApplication(r.db.conn.QueryRowContext(ctx,
		`SELECT `+applicationColumns+` FROM applications WHERE id = ?`, id), &a)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("application", id)
		}
		return nil, fmt.Errorf("sqlite: getting application %s: %w", id, err)
	}
	return &a, nil
}

func (r *ApplicationDB) ListByApplicant(ctx context.Context, email string) ([]model.Application, error) {
	return r.query(ctx, "listing applications by applicant",
		`SELECT `+applicationColumns+` FROM applications WHERE applicant_email = ? ORDER BY rowid`, email)
}

// ListByOrganizer filters on the post_creator_email recorded at submission,
// not on the live post's organizer.
func (r *ApplicationDB) ListByOrganizer(ctx context.Context, email string) ([]model.Application, error) {
	return r.query(ctx, "listing applications by organizer",
		`SELECT `+applicationColumns+` FROM applications WHERE post_creator_email = ? ORDER BY rowid`, email)
}

func (r *ApplicationDB) List(ctx context.Context) ([]model.Application, error) {
	return r.query(ctx, "listing applications",
		`SELECT `+applicationColumns+` FROM applications ORDER BY rowid`)
}

func (r *ApplicationDB) query(ctx context.Context, op, query string, args ...any) ([]model.Application, error) {
	rows, err := r.db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: %s: %w", op, err)
	}
	defer rows.Close()

	apps := make([]model.Application, 0)
	for rows.Next() {
		var a model.Application
		if err := scanApplication(rows, &a); err != nil {
			return nil, fmt.Errorf("sqlite: scanning application row: %w", err)
		}
		apps = append(apps, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating applications: %w", err)
	}
	return apps, nil
}

// UpdateStatus returns apperror.ErrNotFound when id matches nothing.
func (r *ApplicationDB) UpdateStatus(ctx context.Context, id string, status model.ApplicationStatus) (*model.Application, error) {
	result, err := r.db.conn.ExecContext(ctx,
		`UPDATE applications SET status = ? WHERE id = ?`, status, id)
	if err != nil {
		return nil, fmt.Errorf("sqlite: updating application %s: %w", id, err)
	}
	if err := requireAffected(result, "application", id); err != nil {
		return nil, err
	}
	return r.GetByID(ctx, id)
}
