package event

import (
	"context"
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/lib/pq"

	"github.com/fkhayef/eventcheckin/internal/database"
)

const eventColumns = `e.id, e.title, e.place, e.maximum_participant, e.location_id, e.created_at, e.updated_at,
	e.start_at, e.stop_at, e.start_register_at, e.stop_register_at,
	e.soon_checkin_time, e.late_checkin_time, e.soon_checkout_time, e.late_checkout_time`

const numParticipant = `(SELECT COUNT(*) FROM registrations r WHERE r.event_id = e.id AND NOT r.block) AS num_participant`

const registrationColumns = `r.event_id, r.user_id, r.added_by, r.block, r.note, r.feedback, r.created_at, r.checkin_at, r.checkout_at`

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Dollar)

// Repository handles event, limit group and registration persistence
type Repository struct {
	db *sql.DB
	q  database.DBTX
}

// NewRepository creates a new event repository
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

func scanEvent(row scanner) (*Event, error) {
	e := &Event{}
	err := row.Scan(
		&e.ID,
		&e.Title,
		&e.Place,
		&e.MaximumParticipant,
		&e.LocationID,
		&e.CreatedAt,
		&e.UpdatedAt,
		&e.StartAt,
		&e.StopAt,
		&e.StartRegisterAt,
		&e.StopRegisterAt,
		&e.SoonCheckinTime,
		&e.LateCheckinTime,
		&e.SoonCheckoutTime,
		&e.LateCheckoutTime,
		&e.NumParticipant,
	)
	return e, err
}

// refError maps a foreign key violation to the missing entity
func refError(err error) error {
	switch database.ConstraintName(err) {
	case "events_location_id_fkey":
		return ErrLocationNotFound
	case "event_details_created_by_fkey", "event_details_leader_fkey", "registrations_added_by_fkey":
		return ErrManagerNotFound
	case "limit_groups_group_id_fkey":
		return ErrGroupNotFound
	case "registrations_user_id_fkey":
		return ErrUserNotFound
	default:
		return ErrEventNotFound
	}
}

// Create inserts the event row
func (r *Repository) Create(ctx context.Context, req *CreateEventRequest) (*Event, error) {
	query := `
		WITH e AS (
			INSERT INTO events (title, place, maximum_participant, location_id, start_at, stop_at,
			                    start_register_at, stop_register_at,
			                    soon_checkin_time, late_checkin_time, soon_checkout_time, late_checkout_time)
			VALUES ($1, $2, $3, $4, $5, $6, COALESCE($7, NOW()), $8, $9, $10, $11, $12)
			RETURNING *
		)
		SELECT ` + eventColumns + `, 0 FROM e`

	e, err := scanEvent(r.q.QueryRowContext(ctx, query,
		req.Title,
		req.Place,
		req.MaximumParticipant,
		req.LocationID,
		req.StartAt,
		req.StopAt,
		req.StartRegisterAt,
		req.StopRegisterAt,
		req.SoonCheckinTime,
		req.LateCheckinTime,
		req.SoonCheckoutTime,
		req.LateCheckoutTime,
	))
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return nil, refError(err)
		}
		return nil, fmt.Errorf("failed to create event: %w", err)
	}
	return e, nil
}

// GetByID retrieves an event with its participant count
func (r *Repository) GetByID(ctx context.Context, id int64) (*Event, error) {
	return r.getEvent(ctx, `SELECT `+eventColumns+`, `+numParticipant+` FROM events e WHERE e.id = $1`, id)
}

// LockEvent retrieves an event and locks its row until the transaction ends
func (r *Repository) LockEvent(ctx context.Context, id int64) (*Event, error) {
	return r.getEvent(ctx, `SELECT `+eventColumns+`, `+numParticipant+` FROM events e WHERE e.id = $1 FOR UPDATE OF e`, id)
}

func (r *Repository) getEvent(ctx context.Context, query string, id int64) (*Event, error) {
	e, err := scanEvent(r.q.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get event: %w", err)
	}
	return e, nil
}

// Exists reports whether an event exists
func (r *Repository) Exists(ctx context.Context, id int64) (bool, error) {
	var ok bool
	if err := r.q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM events WHERE id = $1)`, id).Scan(&ok); err != nil {
		return false, fmt.Errorf("failed to check event: %w", err)
	}
	return ok, nil
}

// Search lists events matching filter, newest first
func (r *Repository) Search(ctx context.Context, filter Filter, limit, offset int) ([]*Event, int, error) {
	where := sq.And{}
	if filter.Keyword != "" {
		like := "%" + filter.Keyword + "%"
		where = append(where, sq.Or{sq.ILike{"e.title": like}, sq.ILike{"e.place": like}})
	}
	if filter.From != nil {
		where = append(where, sq.GtOrEq{"e.start_at": *filter.From})
	}
	if filter.To != nil {
		where = append(where, sq.LtOrEq{"e.start_at": *filter.To})
	}

	countQuery, args, err := psql.Select("COUNT(*)").From("events e").Where(where).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build count query: %w", err)
	}
	var total int
	if err := r.q.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count events: %w", err)
	}

	query, args, err := psql.Select(eventColumns, numParticipant).From("events e").Where(where).
		OrderBy("e.id DESC").Limit(uint64(limit)).Offset(uint64(offset)).ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build search query: %w", err)
	}

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to search events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan event: %w", err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate events: %w", err)
	}

	return events, total, nil
}

// Update modifies the event row; nil fields are left unchanged and the clear
// flags reset capacity and location to NULL
func (r *Repository) Update(ctx context.Context, id int64, req *UpdateEventRequest) (*Event, error) {
	query := `
		WITH e AS (
			UPDATE events
			SET title = COALESCE($2, title),
			    place = COALESCE($3, place),
			    maximum_participant = CASE WHEN $14::boolean THEN NULL ELSE COALESCE($4, maximum_participant) END,
			    location_id = CASE WHEN $15::boolean THEN NULL ELSE COALESCE($5, location_id) END,
			    start_at = COALESCE($6, start_at),
			    stop_at = COALESCE($7, stop_at),
			    start_register_at = COALESCE($8, start_register_at),
			    stop_register_at = COALESCE($9, stop_register_at),
			    soon_checkin_time = COALESCE($10, soon_checkin_time),
			    late_checkin_time = COALESCE($11, late_checkin_time),
			    soon_checkout_time = COALESCE($12, soon_checkout_time),
			    late_checkout_time = COALESCE($13, late_checkout_time),
			    updated_at = NOW()
			WHERE id = $1
			RETURNING *
		)
		SELECT ` + eventColumns + `, ` + numParticipant + ` FROM e`

	e, err := scanEvent(r.q.QueryRowContext(ctx, query, id,
		req.Title,
		req.Place,
		req.MaximumParticipant,
		req.LocationID,
		req.StartAt,
		req.StopAt,
		req.StartRegisterAt,
		req.StopRegisterAt,
		req.SoonCheckinTime,
		req.LateCheckinTime,
		req.SoonCheckoutTime,
		req.LateCheckoutTime,
		req.ClearMaximumParticipant,
		req.ClearLocation,
	))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		if database.IsForeignKeyViolation(err) {
			return nil, refError(err)
		}
		return nil, fmt.Errorf("failed to update event: %w", err)
	}
	return e, nil
}

// Delete removes an event; details, limit groups, registrations and
// check-ins cascade
func (r *Repository) Delete(ctx context.Context, id int64) (bool, error) {
	result, err := r.q.ExecContext(ctx, `DELETE FROM events WHERE id = $1`, id)
	if err != nil {
		return false, fmt.Errorf("failed to delete event: %w", err)
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return n > 0, nil
}

// GetDetail retrieves the detail row of an event
func (r *Repository) GetDetail(ctx context.Context, eventID int64) (*Detail, error) {
	query := `SELECT event_id, description, created_by, leader FROM event_details WHERE event_id = $1`

	d := &Detail{}
	err := r.q.QueryRowContext(ctx, query, eventID).Scan(&d.EventID, &d.Description, &d.CreatedBy, &d.Leader)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get event detail: %w", err)
	}
	return d, nil
}

// UpsertDetail creates the detail row or updates its non-nil fields
func (r *Repository) UpsertDetail(ctx context.Context, d *Detail) error {
	query := `
		INSERT INTO event_details (event_id, description, created_by, leader)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (event_id) DO UPDATE
		SET description = COALESCE(EXCLUDED.description, event_details.description),
		    created_by = COALESCE(EXCLUDED.created_by, event_details.created_by),
		    leader = COALESCE(EXCLUDED.leader, event_details.leader)`

	if _, err := r.q.ExecContext(ctx, query, d.EventID, d.Description, d.CreatedBy, d.Leader); err != nil {
		if database.IsForeignKeyViolation(err) {
			return refError(err)
		}
		return fmt.Errorf("failed to save event detail: %w", err)
	}
	return nil
}

// LimitGroups lists the groups an event is restricted to
func (r *Repository) LimitGroups(ctx context.Context, eventID int64) ([]*LimitGroup, error) {
	query := `
		SELECT g.id, g.name, g.code
		FROM limit_groups lg
		JOIN groups g ON g.id = lg.group_id
		WHERE lg.event_id = $1
		ORDER BY g.id`

	rows, err := r.q.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list limit groups: %w", err)
	}
	defer rows.Close()

	groups := []*LimitGroup{}
	for rows.Next() {
		g := &LimitGroup{}
		if err := rows.Scan(&g.ID, &g.Name, &g.Code); err != nil {
			return nil, fmt.Errorf("failed to scan limit group: %w", err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate limit groups: %w", err)
	}
	return groups, nil
}

// AddLimitGroups restricts an event to groupIDs; existing entries are kept
func (r *Repository) AddLimitGroups(ctx context.Context, eventID int64, groupIDs []int64) error {
	if len(groupIDs) == 0 {
		return nil
	}
	query := `
		INSERT INTO limit_groups (event_id, group_id)
		SELECT $1, UNNEST($2::BIGINT[])
		ON CONFLICT DO NOTHING`

	if _, err := r.q.ExecContext(ctx, query, eventID, pq.Array(groupIDs)); err != nil {
		if database.IsForeignKeyViolation(err) {
			return refError(err)
		}
		return fmt.Errorf("failed to add limit groups: %w", err)
	}
	return nil
}

// RemoveLimitGroup drops a restriction if present
func (r *Repository) RemoveLimitGroup(ctx context.Context, eventID, groupID int64) error {
	query := `DELETE FROM limit_groups WHERE event_id = $1 AND group_id = $2`
	if _, err := r.q.ExecContext(ctx, query, eventID, groupID); err != nil {
		return fmt.Errorf("failed to remove limit group: %w", err)
	}
	return nil
}

func scanRegistration(row scanner, extra ...any) (*Registration, error) {
	reg := &Registration{}
	dest := []any{
		&reg.EventID,
		&reg.UserID,
		&reg.AddedBy,
		&reg.Block,
		&reg.Note,
		&reg.Feedback,
		&reg.CreatedAt,
		&reg.CheckinAt,
		&reg.CheckoutAt,
	}
	err := row.Scan(append(dest, extra...)...)
	return reg, err
}

// GetRegistration retrieves the registration of userID for eventID
func (r *Repository) GetRegistration(ctx context.Context, eventID, userID int64) (*Registration, error) {
	return r.getRegistration(ctx, `SELECT `+registrationColumns+` FROM registrations r WHERE r.event_id = $1 AND r.user_id = $2`, eventID, userID)
}

// LockRegistration is GetRegistration holding a row lock until the
// transaction ends
func (r *Repository) LockRegistration(ctx context.Context, eventID, userID int64) (*Registration, error) {
	return r.getRegistration(ctx, `SELECT `+registrationColumns+` FROM registrations r WHERE r.event_id = $1 AND r.user_id = $2 FOR UPDATE`, eventID, userID)
}

func (r *Repository) getRegistration(ctx context.Context, query string, eventID, userID int64) (*Registration, error) {
	reg, err := scanRegistration(r.q.QueryRowContext(ctx, query, eventID, userID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get registration: %w", err)
	}
	return reg, nil
}

// CountActive counts registrations of an event that are not blocked
func (r *Repository) CountActive(ctx context.Context, eventID int64) (int, error) {
	var n int
	query := `SELECT COUNT(*) FROM registrations WHERE event_id = $1 AND NOT block`
	if err := r.q.QueryRowContext(ctx, query, eventID).Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count registrations: %w", err)
	}
	return n, nil
}

// LimitGroupIDs lists the ids of the groups an event is restricted to
func (r *Repository) LimitGroupIDs(ctx context.Context, eventID int64) ([]int64, error) {
	rows, err := r.q.QueryContext(ctx, `SELECT group_id FROM limit_groups WHERE event_id = $1`, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list limit groups: %w", err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan limit group: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CreateRegistration inserts a registration row
func (r *Repository) CreateRegistration(ctx context.Context, reg *Registration) (*Registration, error) {
	query := `
		INSERT INTO registrations AS r (event_id, user_id, added_by, note)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + registrationColumns

	created, err := scanRegistration(r.q.QueryRowContext(ctx, query, reg.EventID, reg.UserID, reg.AddedBy, reg.Note))
	if err != nil {
		switch {
		case database.IsUniqueViolation(err):
			return nil, ErrAlreadyRegistered
		case database.IsForeignKeyViolation(err):
			return nil, refError(err)
		}
		return nil, fmt.Errorf("failed to create registration: %w", err)
	}
	return created, nil
}

// Block marks userID as blocked from eventID, creating the registration if
// needed
func (r *Repository) Block(ctx context.Context, eventID, userID int64, note *string) (*Registration, error) {
	query := `
		INSERT INTO registrations AS r (event_id, user_id, block, note)
		VALUES ($1, $2, TRUE, $3)
		ON CONFLICT (event_id, user_id) DO UPDATE
		SET block = TRUE, note = EXCLUDED.note
		RETURNING ` + registrationColumns

	reg, err := scanRegistration(r.q.QueryRowContext(ctx, query, eventID, userID, note))
	if err != nil {
		if database.IsForeignKeyViolation(err) {
			return nil, refError(err)
		}
		return nil, fmt.Errorf("failed to block registration: %w", err)
	}
	return reg, nil
}

// DeleteRegistration removes a registration row
func (r *Repository) DeleteRegistration(ctx context.Context, eventID, userID int64) error {
	query := `DELETE FROM registrations WHERE event_id = $1 AND user_id = $2`
	if _, err := r.q.ExecContext(ctx, query, eventID, userID); err != nil {
		return fmt.Errorf("failed to delete registration: %w", err)
	}
	return nil
}

// SetFeedback stores a participant's feedback
func (r *Repository) SetFeedback(ctx context.Context, eventID, userID int64, content string) error {
	query := `UPDATE registrations SET feedback = $3 WHERE event_id = $1 AND user_id = $2`
	if _, err := r.q.ExecContext(ctx, query, eventID, userID, content); err != nil {
		return fmt.Errorf("failed to save feedback: %w", err)
	}
	return nil
}

// Participants lists registrations of an event with user details
func (r *Repository) Participants(ctx context.Context, eventID int64) ([]*Registration, error) {
	query := `
		SELECT ` + registrationColumns + `, u.fullname, u.student_id, u.phone
		FROM registrations r
		JOIN users u ON u.id = r.user_id
		WHERE r.event_id = $1
		ORDER BY r.created_at`

	rows, err := r.q.QueryContext(ctx, query, eventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list participants: %w", err)
	}
	defer rows.Close()

	regs := []*Registration{}
	for rows.Next() {
		var fullname, studentID, phone string
		reg, err := scanRegistration(rows, &fullname, &studentID, &phone)
		if err != nil {
			return nil, fmt.Errorf("failed to scan participant: %w", err)
		}
		reg.Fullname, reg.StudentID, reg.Phone = fullname, studentID, phone
		regs = append(regs, reg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate participants: %w", err)
	}
	return regs, nil
}

// RegistrationsOfUser lists a user's registrations with event titles,
// optionally narrowed to one event
func (r *Repository) RegistrationsOfUser(ctx context.Context, userID int64, eventID *int64) ([]*Registration, error) {
	where := sq.And{sq.Eq{"r.user_id": userID}}
	if eventID != nil {
		where = append(where, sq.Eq{"r.event_id": *eventID})
	}

	query, args, err := psql.Select(registrationColumns, "e.title", "e.place").
		From("registrations r").
		Join("events e ON e.id = r.event_id").
		Where(where).
		OrderBy("r.created_at DESC").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build registrations query: %w", err)
	}

	rows, err := r.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list registrations: %w", err)
	}
	defer rows.Close()

	regs := []*Registration{}
	for rows.Next() {
		var title string
		var place *string
		reg, err := scanRegistration(rows, &title, &place)
		if err != nil {
			return nil, fmt.Errorf("failed to scan registration: %w", err)
		}
		reg.EventTitle, reg.EventPlace = title, place
		regs = append(regs, reg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate registrations: %w", err)
	}
	return regs, nil
}
