package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/rs/xid"

	"github.com/sakif/volunteerhub/internal/apperror"
	"github.com/sakif/volunteerhub/internal/model"
	"github.com/sakif/volunteerhub/internal/repository"
)

var _ repository.PostRepository = (*PostDB)(nil)

// PostDB implements repository.PostRepository on the posts table.
type PostDB struct {
	db *DB
}

const postColumns = `id, title, category, photo_url, deadline, location, description,
	organizer_name, organizer_email, volunteers_needed, interested_volunteers, created_at`

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(s rowScanner, p *model.Post) error {
	return s.Scan(
		&p.ID, &p.Title, &p.Category, &p.PhotoURL, &p.Deadline, &p.Location,
		&p.Description, &p.OrganizerName, &p.OrganizerEmail,
		&p.VolunteersNeeded, &p.InterestedVolunteers, &p.CreatedAt,
	)
}

// Create inserts a post. ID and CreatedAt are assigned here and written back
// into the caller's struct.
func (r *PostDB) Create(ctx context.Context, post *model.Post) error {
	post.ID = xid.New().String()
	if post.CreatedAt.IsZero() {
		post.CreatedAt = time.Now().UTC()
	}

	_, err := r.db.conn.ExecContext(ctx,
		`INSERT INTO posts (`+postColumns+`)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		post.ID, post.Title, post.Category, post.PhotoURL, post.Deadline, post.Location,
		post.Description, post.OrganizerName, post.OrganizerEmail,
		post.VolunteersNeeded, post.InterestedVolunteers, post.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("sqlite: creating post: %w", err)
	}
	return nil
}

// GetByID returns apperror.ErrNotFound when no post has the given id.
func (r *PostDB) GetByID(ctx context.Context, id string) (*model.Post, error) {
	var p model.Post
	err := scanPost(r.db.conn.QueryRowContext(ctx,
		`SELECT `+postColumns+` FROM posts WHERE id = ?`, id), &p)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, apperror.NotFound("post", id)
		}
		return nil, fmt.Errorf("sqlite: getting post %s: %w", id, err)
	}
	return &p, nil
}

// List returns posts in insertion order, narrowed by filter.
// The title search uses instr over lower() so the input needs no LIKE escaping.
func (r *PostDB) List(ctx context.Context, filter repository.PostFilter) ([]model.Post, error) {
	var (
		where []string
		args  []any
	)
	if s := strings.TrimSpace(filter.Search); s != "" {
		where = append(where, "instr(lower(title), lower(?)) > 0")
		args = append(args, s)
	}
	if c := strings.TrimSpace(filter.Category); c != "" {
		where = append(where, "category = ?")
		args = append(args, c)
	}

	query := `SELECT ` + postColumns + ` FROM posts`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY rowid"

	return r.query(ctx, "listing posts", query, args...)
}

// ListByOrganizer returns every post whose organizer email matches exactly.
func (r *PostDB) ListByOrganizer(ctx context.Context, email string) ([]model.Post, error) {
	return r.query(ctx, "listing posts by organizer",
		`SELECT `+postColumns+` FROM posts WHERE organizer_email = ? ORDER BY rowid`, email)
}

func (r *PostDB) query(ctx context.Context, op, query string, args ...any) ([]model.Post, error) {
	rows, err := r.db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: %s: %w", op, err)
	}
	defer rows.Close()

	posts := make([]model.Post, 0)
	for rows.Next() {
		var p model.Post
		if err := scanPost(rows, &p); err != nil {
			return nil, fmt.Errorf("sqlite: scanning post row: %w", err)
		}
		posts = append(posts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iterating posts: %w", err)
	}
	return posts, nil
}

// Update writes only the non-nil fields of patch. An empty patch is a read.
// Returns apperror.ErrNotFound when no row matched.
func (r *PostDB) Update(ctx context.Context, id string, patch model.PostPatch) (*model.Post, error) {
	if patch.IsEmpty() {
		return r.GetByID(ctx, id)
	}

	var (
		sets []string
		args []any
	)
	set := func(column string, v any) {
		sets = append(sets, column+" = ?")
		args = append(args, v)
	}
	if patch.Title != nil {
		set("title", *patch.Title)
	}
	if patch.Category != nil {
		set("category", *patch.Category)
	}
	if patch.PhotoURL != nil {
		set("photo_url", *patch.PhotoURL)
	}
	if patch.Deadline != nil {
		set("deadline", *patch.Deadline)
	}
	if patch.Location != nil {
		set("location", *patch.Location)
	}
	if patch.Description != nil {
		set("description", *patch.Description)
	}
	if patch.OrganizerName != nil {
		set("organizer_name", *patch.OrganizerName)
	}
	if patch.OrganizerEmail != nil {
		set("organizer_email", *patch.OrganizerEmail)
	}
	if patch.VolunteersNeeded != nil {
		set("volunteers_needed", *patch.VolunteersNeeded)
	}

	args = append(args, id)
	result, err := r.db.conn.ExecContext(ctx,
		`UPDATE posts SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: updating post %s: %w", id, err)
	}
	if err := requireAffected(result, "post", id); err != nil {
		return nil, err
	}

	return r.GetByID(ctx, id)
}

// Delete removes the post. Returns apperror.ErrNotFound when nothing was deleted.
func (r *PostDB) Delete(ctx context.Context, id string) error {
	result, err := r.db.conn.ExecContext(ctx, `DELETE FROM posts WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("sqlite: deleting post %s: %w", id, err)
	}
	return requireAffected(result, "post", id)
}

// RaiseInterestedVolunteers never lowers the counter, so an increment that
// lands between the reconciler's read and this write survives.
func (r *PostDB) RaiseInterestedVolunteers(ctx context.Context, id string, atLeast int) error {
	result, err := r.db.conn.ExecContext(ctx,
		`UPDATE posts SET interested_volunteers = MAX(interested_volunteers, ?) WHERE id = ?`, atLeast, id)
	if err != nil {
		return fmt.Errorf("sqlite: raising interested volunteers on %s: %w", id, err)
	}
	return requireAffected(result, "post", id)
}

// requireAffected turns a zero RowsAffected into apperror.NotFound.
func requireAffected(result sql.Result, resource, id string) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: checking rows affected: %w", err)
	}
	if n == 0 {
		return apperror.NotFound(resource, id)
	}
	return nil
}
