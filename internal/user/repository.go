package user

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"

	"github.com/fkhayef/eventcheckin/internal/database"
)

const userColumns = `id, fullname, date_of_birth, student_id, email, phone, phone_verified, email_verified,
	avatar_image, block, note, username, password_hash, created_at, updated_at`

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// uniqueFields maps unique constraints to the request field they guard
var uniqueFields = map[string]string{
	"users_student_id_key": "student_id",
	"users_phone_key":      "phone",
	"users_username_key":   "username",
}

// Repository handles student account persistence
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new user repository with database dependency injected
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanUser(row scanner) (*User, error) {
	u := &User{}
	err := row.Scan(
		&u.ID,
		&u.Fullname,
		&u.DateOfBirth,
		&u.StudentID,
		&u.Email,
		&u.Phone,
		&u.PhoneVerified,
		&u.EmailVerified,
		&u.AvatarImage,
		&u.Block,
		&u.Note,
		&u.Username,
		&u.PasswordHash,
		&u.CreatedAt,
		&u.UpdatedAt,
	)
	return u, err
}

// Create inserts a new user into the database
func (r *Repository) Create(ctx context.Context, req *CreateUserRequest, passwordHash string) (*User, error) {
	query := `
		INSERT INTO users (fullname, date_of_birth, student_id, email, phone, username, password_hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING ` + userColumns

	u, err := scanUser(r.db.QueryRowContext(ctx, query,
		req.Fullname,
		req.birth,
		req.StudentID,
		req.Email,
		req.Phone,
		req.Username,
		passwordHash,
	))
	if err != nil {
		if database.IsUniqueViolation(err) {
			return nil, takenError(uniqueFields[database.ConstraintName(err)])
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	return u, nil
}

// GetByID retrieves a user by their ID
func (r *Repository) GetByID(ctx context.Context, id int64) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	u, err := scanUser(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	return u, nil
}

// GetByUsername retrieves a user by username
func (r *Repository) GetByUsername(ctx context.Context, username string) (*User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE username = $1`

	u, err := scanUser(r.db.QueryRowContext(ctx, query, username))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get user by username: %w", err)
	}
	return u, nil
}

// Search lists users matching keyword with pagination
func (r *Repository) Search(ctx context.Context, keyword string, limit, offset int) ([]*User, int, error) {
	var filter sq.Sqlizer = sq.Expr("TRUE")
	if keyword != "" {
		like := "%" + keyword + "%"
		filter = sq.Or{
			sq.ILike{"fullname": like},
			sq.ILike{"username": like},
			sq.ILike{"student_id": like},
			sq.ILike{"phone": like},
		}
	}

	countQuery, args, err := psql.Select("COUNT(*)").From("users").Where(filter).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build count query: %w", err)
	}
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count users: %w", err)
	}

	query, args, err := psql.Select(userColumns).From("users").Where(filter).
		OrderBy("id").Limit(uint64(limit)).Offset(uint64(offset)).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build search query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to search users: %w", err)
	}
	defer rows.Close()

	var users []*User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate users: %w", err)
	}

	return users, total, nil
}

// TakenFields returns which of the given unique values already belong to a
// user other than excludeID
func (r *Repository) TakenFields(ctx context.Context, excludeID int64, values map[string]string) ([]string, error) {
	if len(values) == 0 {
		return nil, nil
	}

	or := sq.Or{}
	for column, value := range values {
		or = append(or, sq.Eq{column: value})
	}
	query, args, err := psql.Select("student_id", "phone", "username").From("users").
		Where(sq.NotEq{"id": excludeID}).Where(or).ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build uniqueness query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to check uniqueness: %w", err)
	}
	defer rows.Close()

	seen := map[string]bool{}
	for rows.Next() {
		existing := map[string]string{}
		var studentID, phone, username string
		if err := rows.Scan(&studentID, &phone, &username); err != nil {
			return nil, fmt.Errorf("failed to scan user: %w", err)
		}
		existing["student_id"], existing["phone"], existing["username"] = studentID, phone, username
		for column, value := range values {
			if existing[column] == value {
				seen[column] = true
			}
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}

	var taken []string
	for _, column := range []string{"student_id", "phone", "username"} {
		if seen[column] {
			taken = append(taken, column)
		}
	}
	return taken, nil
}

// Update modifies an existing user; nil fields are left unchanged
func (r *Repository) Update(ctx context.Context, id int64, req *ManagerUpdateUserRequest) (*User, error) {
	query := `
		UPDATE users
		SET fullname = COALESCE($2, fullname),
		    date_of_birth = COALESCE($3, date_of_birth),
		    student_id = COALESCE($4, student_id),
		    email = COALESCE($5, email),
		    phone = COALESCE($6, phone),
		    username = COALESCE($7, username),
		    phone_verified = COALESCE($8, phone_verified),
		    email_verified = COALESCE($9, email_verified),
		    block = COALESCE($10, block),
		    note = COALESCE($11, note),
		    updated_at = NOW()
		WHERE id = $1
		RETURNING ` + userColumns

	u, err := scanUser(r.db.QueryRowContext(ctx, query, id,
		req.Fullname,
		req.birth,
		req.StudentID,
		req.Email,
		req.Phone,
		req.Username,
		req.PhoneVerified,
		req.EmailVerified,
		req.Block,
		req.Note,
	))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		if database.IsUniqueViolation(err) {
			return nil, takenError(uniqueFields[database.ConstraintName(err)])
		}
		return nil, fmt.Errorf("failed to update user: %w", err)
	}
	return u, nil
}

// UpdatePassword stores a new password hash
func (r *Repository) UpdatePassword(ctx context.Context, id int64, passwordHash string) error {
	query := `UPDATE users SET password_hash = $2, updated_at = NOW() WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, passwordHash); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

// UpdateAvatar stores the public avatar reference
func (r *Repository) UpdateAvatar(ctx context.Context, id int64, avatar string) error {
	query := `UPDATE users SET avatar_image = $2, updated_at = NOW() WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, avatar); err != nil {
		return fmt.Errorf("failed to update avatar: %w", err)
	}
	return nil
}

// Delete removes a user; dependent rows cascade in the schema
func (r *Repository) Delete(ctx context.Context, id int64) error {
	query := `DELETE FROM users WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}
