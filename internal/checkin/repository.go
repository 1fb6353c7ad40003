package checkin

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/fkhayef/eventcheckin/internal/database"
	"github.com/fkhayef/eventcheckin/pkg/approval"
)

const checkinColumns = `c.id, c.path, c.uploaded_at, c.accept, c.accepted_at, c.score, c.user_id, c.event_id`

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Repository handles check-in image persistence
type Repository struct {
	db *sql.DB
	q  database.DBTX
}

// NewRepository creates a new check-in repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db, q: db}
}

// WithTx runs fn with a repository bound to a single transaction
func (r *Repository) WithTx(ctx context.Context, fn func(Store) error) error {
	return database.WithTx(ctx, r.db, func(tx *sql.Tx) error {
		return fn(&Repository{db: r.db, q: tx})
	})
}

type scanner interface {
	Scan(dest ...any) error
}

func scanCheckin(row scanner, extra ...any) (*CheckinImage, error) {
	c := &CheckinImage{}
	var accept sql.NullBool
	dest := []any{&c.ID, &c.Path, &c.UploadedAt, &accept, &c.AcceptedAt, &c.Score, &c.UserID, &c.EventID}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	c.State = approval.FromNullBool(accept)
	return c, nil
}

// LockRegistration reports whether userID registered for eventID and whether
// they are blocked, locking the registration row until the transaction ends
func (r *Repository) LockRegistration(ctx context.Context, eventID, userID int64) (registered, blocked bool, err error) {
	query := `SELECT block FROM registrations WHERE event_id = $1 AND user_id = $2 FOR UPDATE`
	if err := r.q.QueryRowContext(ctx, query, eventID, userID).Scan(&blocked); err != nil {
		if err == sql.ErrNoRows {
			return false, false, nil
		}
		return false, false, fmt.Errorf("failed to get registration: %w", err)
	}
	return true, blocked, nil
}

// Attempts returns the review state of every check-in userID submitted for
// eventID
func (r *Repository) Attempts(ctx context.Context, eventID, userID int64) ([]approval.State, error) {
	query := `SELECT accept FROM checkin_images WHERE event_id = $1 AND user_id = $2`

	rows, err := r.q.QueryContext(ctx, query, eventID, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list check-in attempts: %w", err)
	}
	defer rows.Close()

	var states []approval.State
	for rows.Next() {
		var accept sql.NullBool
		if err := rows.Scan(&accept); err != nil {
			return nil, fmt.Errorf("failed to scan check-in attempt: %w", err)
		}
		states = append(states, approval.FromNullBool(accept))
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate check-in attempts: %w", err)
	}
	return states, nil
}

// Create inserts a pending check-in referencing an already stored file
func (r *Repository) Create(ctx context.Context, c *CheckinImage) (*CheckinImage, error) {
	query := `
		INSERT INTO checkin_images AS c (path, user_id, event_id)
		VALUES ($1, $2, $3)
		RETURNING ` + checkinColumns

	created, err := scanCheckin(r.q.QueryRowContext(ctx, query, c.Path, c.UserID, c.EventID))
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			if database.ConstraintName(err) == "checkin_images_user_id_fkey" {
				return nil, ErrUserNotFound
			}
			return nil, ErrEventNotFound
		}
		return nil, fmt.Errorf("failed to create check-in: %w", err)
	}
	return created, nil
}

// Review records a decision on a check-in; returns nil when it does not exist
func (r *Repository) Review(ctx context.Context, id int64, state approval.State, score *float64) (*CheckinImage, error) {
	query := `
		UPDATE checkin_images AS c
		SET accept = $2, accepted_at = NOW(), score = $3
		WHERE id = $1
		RETURNING ` + checkinColumns

	c, err := scanCheckin(r.q.QueryRowContext(ctx, query, id, state.NullBool(), score))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to review check-in: %w", err)
	}
	return c, nil
}

// List returns check-ins matching filter with user and event details, newest
// first
func (r *Repository) List(ctx context.Context, filter Filter, limit, offset int) ([]*CheckinImage, int, error) {
	where := sq.And{}
	if filter.UserID != nil {
		where = append(where, sq.Eq{"c.user_id": *filter.UserID})
	}
	if filter.EventID != nil {
		where = append(where, sq.Eq{"c.event_id": *filter.EventID})
	}
	if filter.State != nil {
		if nb := filter.State.NullBool(); nb.Valid {
			where = append(where, sq.Eq{"c.accept": nb.Bool})
		} else {
			where = append(where, sq.Eq{"c.accept": nil})
		}
	}

	countQuery, args, err := psql.Select("COUNT(*)").From("checkin_images c").Where(where).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build count query: %w", err)
	}
	var total int
	if err := r.q.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count check-ins: %w", err)
	}

	query, args, err := psql.Select(checkinColumns, "u.fullname", "u.student_id", "e.title").
		From("checkin_images c").
		Join("users u ON u.id = c.user_id").
		Join("events e ON e.id = c.event_id").
		Where(where).
		OrderBy("c.id DESC").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build list query: %w", err)
	}

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list check-ins: %w", err)
	}
	defer rows.Close()

	items := []*CheckinImage{}
	for rows.Next() {
		var fullname, studentID, title string
		c, err := scanCheckin(rows, &fullname, &studentID, &title)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan check-in: %w", err)
		}
		c.Fullname, c.StudentID, c.EventTitle = fullname, studentID, title
		items = append(items, c)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate check-ins: %w", err)
	}
	return items, total, nil
}
