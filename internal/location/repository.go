package location

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

const locationColumns = `id, name, longitude, latitude, radius`

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Repository handles location persistence
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new location repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

type scanner interface {
	Scan(dest ...any) error
}

func scanLocation(row scanner) (*Location, error) {
	l := &Location{}
	err := row.Scan(&l.ID, &l.Name, &l.Longitude, &l.Latitude, &l.Radius)
	return l, err
}

// Create inserts a new location
func (r *Repository) Create(ctx context.Context, req *CreateLocationRequest) (*Location, error) {
	query := `
		INSERT INTO locations (name, longitude, latitude, radius)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + locationColumns

	l, err := scanLocation(r.db.QueryRowContext(ctx, query, req.Name, req.Longitude, req.Latitude, req.Radius))
	if err != nil {
		return nil, fmt.Errorf("failed to create location: %w", err)
	}
	return l, nil
}

// GetByID retrieves a location by its ID
func (r *Repository) GetByID(ctx context.Context, id int64) (*Location, error) {
	query := `SELECT ` + locationColumns + ` FROM locations WHERE id = $1`

	l, err := scanLocation(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get location: %w", err)
	}
	return l, nil
}

// Search lists locations whose name matches keyword
func (r *Repository) Search(ctx context.Context, keyword string, limit, offset int) ([]*Location, int, error) {
	var filter sq.Sqlizer = sq.Expr("TRUE")
	if keyword != "" {
		filter = sq.ILike{"name": "%" + keyword + "%"}
	}

	countQuery, args, err := psql.Select("COUNT(*)").From("locations").Where(filter).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build count query: %w", err)
	}
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count locations: %w", err)
	}

	query, args, err := psql.Select(locationColumns).From("locations").Where(filter).
		OrderBy("id").Limit(uint64(limit)).Offset(uint64(offset)).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build search query: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to search locations: %w", err)
	}
	defer rows.Close()

	var locations []*Location
	for rows.Next() {
		l, err := scanLocation(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan location: %w", err)
		}
		locations = append(locations, l)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate locations: %w", err)
	}

	return locations, total, nil
}

// Update modifies an existing location
func (r *Repository) Update(ctx context.Context, id int64, req *UpdateLocationRequest) (*Location, error) {
	query := `
		UPDATE locations
		SET name = COALESCE($2, name),
		    longitude = COALESCE($3, longitude),
		    latitude = COALESCE($4, latitude),
		    radius = COALESCE($5, radius)
		WHERE id = $1
		RETURNING ` + locationColumns

	l, err := scanLocation(r.db.QueryRowContext(ctx, query, id, req.Name, req.Longitude, req.Latitude, req.Radius))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to update location: %w", err)
	}
	return l, nil
}

// Delete removes a location; events referencing it keep a NULL location
func (r *Repository) Delete(ctx context.Context, id int64) (bool, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM locations WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete location: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}
