package identityimage

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/fkhayef/eventcheckin/internal/database"
)

const imageColumns = `i.id, i.path, i.uploaded_at, i.approve, i.user_id`

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Repository handles identity image persistence
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new identity image repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanImage(row scanner, extra ...any) (*IdentityImage, error) {
	i := &IdentityImage{}
	dest := []any{&i.ID, &i.Path, &i.UploadedAt, &i.Approve, &i.UserID}
	err := row.Scan(append(dest, extra...)...)
	return i, err
}

// UserExists reports whether a student exists
func (r *Repository) UserExists(ctx context.Context, userID int64) (bool, error) {
	var ok bool
	if err := r.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM users WHERE id = $1)`, userID).Scan(&ok); err != nil {
		return false, fmt.Errorf("failed to check user: %w", err)
	}
	return ok, nil
}

// Create inserts a row referencing an already stored file
func (r *Repository) Create(ctx context.Context, userID int64, path string) (*IdentityImage, error) {
	query := `
		INSERT INTO identity_images AS i (path, user_id)
		VALUES ($1, $2)
		RETURNING ` + imageColumns

	img, err := scanImage(r.db.QueryRowContext(ctx, query, path, userID))
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to create identity image: %w", err)
	}
	return img, nil
}

// GetByID retrieves an identity image by ID
func (r *Repository) GetByID(ctx context.Context, id int64) (*IdentityImage, error) {
	query := `SELECT ` + imageColumns + ` FROM identity_images i WHERE i.id = $1`

	img, err := scanImage(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get identity image: %w", err)
	}
	return img, nil
}

// List returns identity images matching filter, newest first
func (r *Repository) List(ctx context.Context, filter Filter, limit, offset int) ([]*IdentityImage, int, error) {
	where := sq.And{}
	if filter.UserID != nil {
		where = append(where, sq.Eq{"i.user_id": *filter.UserID})
	}
	if filter.From != nil {
		where = append(where, sq.GtOrEq{"i.uploaded_at": *filter.From})
	}
	if filter.To != nil {
		where = append(where, sq.LtOrEq{"i.uploaded_at": *filter.To})
	}

	countQuery, args, err := psql.Select("COUNT(*)").From("identity_images i").Where(where).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build count query: %w", err)
	}
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count identity images: %w", err)
	}

	query, args, err := psql.Select(imageColumns, "u.fullname", "u.student_id").
		From("identity_images i").
		Join("users u ON u.id = i.user_id").
		Where(where).
		OrderBy("i.id DESC").
		Limit(uint64(limit)).
		Offset(uint64(offset)).
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build list query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list identity images: %w", err)
	}
	defer rows.Close()

	items := []*IdentityImage{}
	for rows.Next() {
		var fullname, studentID string
		img, err := scanImage(rows, &fullname, &studentID)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan identity image: %w", err)
		}
		img.Fullname, img.StudentID = fullname, studentID
		items = append(items, img)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate identity images: %w", err)
	}
	return items, total, nil
}

// SetApprove stores the review decision; returns nil when the image does not
// exist
func (r *Repository) SetApprove(ctx context.Context, id int64, approve bool) (*IdentityImage, error) {
	query := `UPDATE identity_images AS i SET approve = $2 WHERE id = $1 RETURNING ` + imageColumns

	img, err := scanImage(r.db.QueryRowContext(ctx, query, id, approve))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to review identity image: %w", err)
	}
	return img, nil
}

// Delete removes an identity image row
func (r *Repository) Delete(ctx context.Context, id int64) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM identity_images WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete identity image: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}
