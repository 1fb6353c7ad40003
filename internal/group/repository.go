package group

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"github.com/fkhayef/eventcheckin/internal/database"
	"github.com/fkhayef/eventcheckin/pkg/approval"
)

const groupColumns = `id, name, description, code, require_approve, created_at`

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Repository handles group and membership persistence
type Repository struct {
	db *sql.DB
	q  database.DBTX
}

// NewRepository creates a new group repository
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

func scanGroup(row scanner) (*Group, error) {
	g := &Group{}
	err := row.Scan(&g.ID, &g.Name, &g.Description, &g.Code, &g.RequireApprove, &g.CreatedAt)
	return g, err
}

// Create inserts a new group
func (r *Repository) Create(ctx context.Context, req *CreateGroupRequest) (*Group, error) {
	query := `
		INSERT INTO groups (name, description, code, require_approve)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + groupColumns

	g, err := scanGroup(r.q.QueryRowContext(ctx, query, req.Name, req.Description, req.Code, req.RequireApprove))
	if err != nil {
		return nil, fmt.Errorf("failed to create group: %w", err)
	}
	return g, nil
}

// GetByID retrieves a group by its ID
func (r *Repository) GetByID(ctx context.Context, id int64) (*Group, error) {
	query := `SELECT ` + groupColumns + ` FROM groups WHERE id = $1`

	g, err := scanGroup(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get group: %w", err)
	}
	return g, nil
}

// Search lists groups whose name matches keyword
func (r *Repository) Search(ctx context.Context, keyword string, limit, offset int) ([]*Group, int, error) {
	var filter sq.Sqlizer = sq.Expr("TRUE")
	if keyword != "" {
		filter = sq.ILike{"name": "%" + keyword + "%"}
	}

	countQuery, args, err := psql.Select("COUNT(*)").From("groups").Where(filter).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build count query: %w", err)
	}
	var total int
	if err := r.q.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count groups: %w", err)
	}

	query, args, err := psql.Select(groupColumns).From("groups").Where(filter).
		OrderBy("id").Limit(uint64(limit)).Offset(uint64(offset)).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build search query: %w", err)
	}

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to search groups: %w", err)
	}
	defer rows.Close()

	var groups []*Group
	for rows.Next() {
		g, err := scanGroup(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan group: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate groups: %w", err)
	}

	return groups, total, nil
}

// Update modifies an existing group
func (r *Repository) Update(ctx context.Context, id int64, req *UpdateGroupRequest) (*Group, error) {
	query := `
		UPDATE groups
		SET name = COALESCE($2, name),
		    description = COALESCE($3, description),
		    code = COALESCE($4, code),
		    require_approve = COALESCE($5, require_approve)
		WHERE id = $1
		RETURNING ` + groupColumns

	g, err := scanGroup(r.q.QueryRowContext(ctx, query, id, req.Name, req.Description, req.Code, req.RequireApprove))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to update group: %w", err)
	}
	return g, nil
}

// Delete removes a group; memberships and limit groups cascade
func (r *Repository) Delete(ctx context.Context, id int64) (bool, error) {
	result, err := r.q.ExecContext(ctx, `DELETE FROM groups WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete group: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// LockUser takes a row lock on the user so concurrent joins by the same user
// are serialized. It reports false when the user does not exist.
func (r *Repository) LockUser(ctx context.Context, userID int64) (bool, error) {
	var id int64
	err := r.q.QueryRowContext(ctx, `SELECT id FROM users WHERE id = $1 FOR UPDATE`, userID).Scan(&id)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("failed to lock user: %w", err)
	}
	return true, nil
}

func scanMembership(row scanner) (*Membership, error) {
	m := &Membership{}
	var approve sql.NullBool
	if err := row.Scan(&m.GroupID, &m.UserID, &m.JoinedAt, &approve, &m.ApprovedAt, &m.AddedBy); err != nil {
		return nil, err
	}
	m.State = approval.FromNullBool(approve)
	return m, nil
}

// GetMembership retrieves the membership of userID in groupID
func (r *Repository) GetMembership(ctx context.Context, groupID, userID int64) (*Membership, error) {
	query := `
		SELECT group_id, user_id, joined_at, approve, approved_at, added_by
		FROM group_members
		WHERE group_id = $1 AND user_id = $2`

	m, err := scanMembership(r.q.QueryRowContext(ctx, query, groupID, userID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get membership: %w", err)
	}
	return m, nil
}

// FindActiveByCode returns a group other than excludeGroupID sharing code in
// which userID holds a pending or approved membership
func (r *Repository) FindActiveByCode(ctx context.Context, userID int64, code string, excludeGroupID int64) (*Group, error) {
	query := `
		SELECT g.id, g.name, g.description, g.code, g.require_approve, g.created_at
		FROM groups g
		JOIN group_members gm ON gm.group_id = g.id
		WHERE gm.user_id = $1
		  AND g.code = $2
		  AND g.id <> $3
		  AND (gm.approve IS NULL OR gm.approve)
		ORDER BY gm.joined_at
		LIMIT 1`

	g, err := scanGroup(r.q.QueryRowContext(ctx, query, userID, code, excludeGroupID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to check group code: %w", err)
	}
	return g, nil
}

// CreateMembership inserts a membership row
func (r *Repository) CreateMembership(ctx context.Context, m *Membership) (*Membership, error) {
	query := `
		INSERT INTO group_members (group_id, user_id, approve, approved_at, added_by)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING group_id, user_id, joined_at, approve, approved_at, added_by`

	created, err := scanMembership(r.q.QueryRowContext(ctx, query,
		m.GroupID, m.UserID, m.State.NullBool(), m.ApprovedAt, m.AddedBy))
	if err != nil {
		switch {
		case database.IsUniqueViolation(err):
			return nil, ErrAlreadyMember
		case database.IsForeignKeyViolation(err):
			return nil, membershipRefError(database.ConstraintName(err))
		}
		return nil, fmt.Errorf("failed to create membership: %w", err)
	}
	return created, nil
}

func membershipRefError(constraint string) error {
	switch constraint {
	case "group_members_group_id_fkey":
		return ErrGroupNotFound
	case "group_members_added_by_fkey":
		return ErrManagerNotFound
	default:
		return ErrUserNotFound
	}
}

// SetApproval records a review decision. It reports false when no membership
// exists.
func (r *Repository) SetApproval(ctx context.Context, groupID, userID int64, state approval.State, at *time.Time) (bool, error) {
	query := `UPDATE group_members SET approve = $3, approved_at = $4 WHERE group_id = $1 AND user_id = $2`

	result, err := r.q.ExecContext(ctx, query, groupID, userID, state.NullBool(), at)
	if err != nil {
		return false, fmt.Errorf("failed to update membership: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// DeleteMembership removes a membership if present
func (r *Repository) DeleteMembership(ctx context.Context, groupID, userID int64) error {
	query := `DELETE FROM group_members WHERE group_id = $1 AND user_id = $2`
	if _, err := r.q.ExecContext(ctx, query, groupID, userID); err != nil {
		return fmt.Errorf("failed to delete membership: %w", err)
	}
	return nil
}

// ListMembers returns the memberships of a group with user details
func (r *Repository) ListMembers(ctx context.Context, groupID int64) ([]*Membership, error) {
	query := `
		SELECT gm.group_id, gm.user_id, gm.joined_at, gm.approve, gm.approved_at, gm.added_by,
		       u.fullname, u.student_id, u.username
		FROM group_members gm
		JOIN users u ON u.id = gm.user_id
		WHERE gm.group_id = $1
		ORDER BY gm.joined_at`

	return r.listMemberships(ctx, query, groupID, func(m *Membership) []any {
		return []any{&m.Fullname, &m.StudentID, &m.Username}
	})
}

// ListOfUser returns the memberships a user holds, with group names
func (r *Repository) ListOfUser(ctx context.Context, userID int64) ([]*Membership, error) {
	query := `
		SELECT gm.group_id, gm.user_id, gm.joined_at, gm.approve, gm.approved_at, gm.added_by, g.name
		FROM group_members gm
		JOIN groups g ON g.id = gm.group_id
		WHERE gm.user_id = $1
		ORDER BY gm.joined_at`

	return r.listMemberships(ctx, query, userID, func(m *Membership) []any {
		return []any{&m.GroupName}
	})
}

func (r *Repository) listMemberships(ctx context.Context, query string, arg int64, extra func(*Membership) []any) ([]*Membership, error) {
	rows, err := r.q.QueryContext(ctx, query, arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list memberships: %w", err)
	}
	defer rows.Close()

	memberships := []*Membership{}
	for rows.Next() {
		var approve sql.NullBool
		m := &Membership{}
		dest := append([]any{&m.GroupID, &m.UserID, &m.JoinedAt, &approve, &m.ApprovedAt, &m.AddedBy}, extra(m)...)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		m.State = approval.FromNullBool(approve)
		memberships = append(memberships, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate memberships: %w", err)
	}
	return memberships, nil
}

// HasApprovedMember reports whether userID holds an approved membership in
// any of groupIDs
func (r *Repository) HasApprovedMember(ctx context.Context, userID int64, groupIDs []int64) (bool, error) {
	if len(groupIDs) == 0 {
		return false, nil
	}
	query := `
		SELECT EXISTS (
			SELECT 1 FROM group_members
			WHERE user_id = $1 AND group_id = ANY($2) AND approve IS TRUE
		)`

	var ok bool
	if err := r.q.QueryRowContext(ctx, query, userID, pq.Array(groupIDs)).Scan(&ok); err != nil {
		return false, fmt.Errorf("failed to check membership: %w", err)
	}
	return ok, nil
}
