package manager

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/fkhayef/eventcheckin/internal/database"
	"github.com/fkhayef/eventcheckin/pkg/apperr"
)

const managerColumns = `id, fullname, email, phone, is_admin, avatar_image, username, password_hash, created_at, updated_at`

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Repository handles manager persistence
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new manager repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanManager(row scanner) (*Manager, error) {
	m := &Manager{}
	err := row.Scan(
		&m.ID,
		&m.Fullname,
		&m.Email,
		&m.Phone,
		&m.IsAdmin,
		&m.AvatarImage,
		&m.Username,
		&m.PasswordHash,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	return m, err
}

// Create inserts a new manager
func (r *Repository) Create(ctx context.Context, req *CreateManagerRequest, passwordHash string) (*Manager, error) {
	query := `
		INSERT INTO managers (fullname, email, phone, is_admin, username, password_hash)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING ` + managerColumns

	m, err := scanManager(r.db.QueryRowContext(ctx, query,
		req.Fullname, req.Email, req.Phone, req.IsAdmin, req.Username, passwordHash))
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, conflictError(err)
		}
		return nil, fmt.Errorf("failed to create manager: %w", err)
	}
	return m, nil
}

// GetByID retrieves a manager by ID
func (r *Repository) GetByID(ctx context.Context, id int64) (*Manager, error) {
	m, err := scanManager(r.db.QueryRowContext(ctx, `SELECT `+managerColumns+` FROM managers WHERE id = $1`, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get manager: %w", err)
	}
	return m, nil
}

// GetByUsername retrieves a manager by username
func (r *Repository) GetByUsername(ctx context.Context, username string) (*Manager, error) {
	m, err := scanManager(r.db.QueryRowContext(ctx, `SELECT `+managerColumns+` FROM managers WHERE username = $1`, username))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get manager by username: %w", err)
	}
	return m, nil
}

// Count returns the number of manager accounts
func (r *Repository) Count(ctx context.Context) (int, error) {
	var n int
	if err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM managers`).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count managers: %w", err)
	}
	return n, nil
}

// Search lists managers matching keyword with pagination
func (r *Repository) Search(ctx context.Context, keyword string, limit, offset int) ([]*Manager, int, error) {
	var filter sq.Sqlizer = sq.Expr("TRUE")
	if keyword != "" {
		like := "%" + keyword + "%"
		filter = sq.Or{sq.ILike{"fullname": like}, sq.ILike{"username": like}, sq.ILike{"phone": like}}
	}

	countQuery, args, err := psql.Select("COUNT(*)").From("managers").Where(filter).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build count query: %w", err)
	}
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count managers: %w", err)
	}

	query, args, err := psql.Select(managerColumns).From("managers").Where(filter).
		OrderBy("id").Limit(uint64(limit)).Offset(uint64(offset)).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build search query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to search managers: %w", err)
	}
	defer rows.Close()

	var managers []*Manager
	for rows.Next() {
		m, err := scanManager(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan manager: %w", err)
		}
		managers = append(managers, m)
	}
	return managers, total, rows.Err()
}

// Update modifies an existing manager
func (r *Repository) Update(ctx context.Context, id int64, req *UpdateManagerRequest) (*Manager, error) {
	query := `
		UPDATE managers
		SET fullname = COALESCE($2, fullname),
		    email = COALESCE($3, email),
		    phone = COALESCE($4, phone),
		    username = COALESCE($5, username),
		    is_admin = COALESCE($6, is_admin),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING ` + managerColumns

	m, err := scanManager(r.db.QueryRowContext(ctx, query, id,
		req.Fullname, req.Email, req.Phone, req.Username, req.IsAdmin))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		if database.IsUniqueViolation(err) {
			return nil, conflictError(err)
		}
		return nil, fmt.Errorf("failed to update manager: %w", err)
	}
	return m, nil
}

// UpdatePassword stores a new password hash
func (r *Repository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE managers SET password_hash = $2, updated_at = NOW() WHERE id = $1`, id, passwordHash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

// UpdateAvatar stores the public avatar reference
func (r *Repository) UpdateAvatar(ctx context.Context, id int64, avatar string) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE managers SET avatar_image = $2, updated_at = NOW() WHERE id = $1`, id, avatar); err != nil {
		return fmt.Errorf("failed to update avatar: %w", err)
	}
	return nil
}

func conflictError(err error) error {
	switch database.ConstraintName(err) {
	case "managers_username_key":
		return apperr.Invalid(map[string]string{"username": "username is already in use"})
	case "managers_phone_key":
		return apperr.Invalid(map[string]string{"phone": "phone is already in use"})
	default:
		return apperr.New(apperr.Validation, "account details are already in use")
	}
}
