package location

import (
	"context"
	"database/sql"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fkhayef/eventcheckin/pkg/apperr"
)

func setupMockDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock, *Service) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	return db, mock, NewService(NewRepository(db))
}

func TestCreate_RejectsNegativeCoordinates(t *testing.T) {
	db, mock, svc := setupMockDB(t)
	defer db.Close()

	_, err := svc.Create(context.Background(), &CreateLocationRequest{Name: "Hall A", Longitude: -1, Latitude: 16, Radius: -5})

	var appErr *apperr.Error
	require.ErrorAs(t, err, &appErr)
	assert.Contains(t, appErr.Fields, "longitude")
	assert.Contains(t, appErr.Fields, "radius")
	assert.NotContains(t, appErr.Fields, "latitude")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreate(t *testing.T) {
	db, mock, svc := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(`INSERT INTO locations`).
		WithArgs("Hall A", 108.2, 16.0, 50.0).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "longitude", "latitude", "radius"}).
			AddRow(1, "Hall A", 108.2, 16.0, 50.0))

	l, err := svc.Create(context.Background(), &CreateLocationRequest{Name: "Hall A", Longitude: 108.2, Latitude: 16.0, Radius: 50})
	require.NoError(t, err)
	assert.Equal(t, int64(1), l.ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetByID_NotFound(t *testing.T) {
	db, mock, svc := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT .+ FROM locations WHERE id = \$1`).
		WithArgs(int64(9)).
		WillReturnError(sql.ErrNoRows)

	_, err := svc.GetByID(context.Background(), 9)
	assert.ErrorIs(t, err, ErrLocationNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSearch_Keyword(t *testing.T) {
	db, mock, svc := setupMockDB(t)
	defer db.Close()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM locations WHERE name ILIKE \$1`).
		WithArgs("%hall%").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(`SELECT .+ FROM locations WHERE name ILIKE \$1 ORDER BY id LIMIT 20 OFFSET 20`).
		WithArgs("%hall%").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "longitude", "latitude", "radius"}).
			AddRow(2, "Hall B", 1.0, 2.0, 3.0))

	locations, total, err := svc.Search(context.Background(), "hall", 2, 20)
	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Len(t, locations, 1)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDelete_Missing(t *testing.T) {
	db, mock, svc := setupMockDB(t)
	defer db.Close()

	mock.ExpectExec(`DELETE FROM locations WHERE id = \$1`).
		WithArgs(int64(4)).
		WillReturnResult(sqlmock.NewResult(0, 0))

	assert.ErrorIs(t, svc.Delete(context.Background(), 4), ErrLocationNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}
