package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/KashanAdnan02/GroundZeroBackend2/internal/model"
)

const facilityColumns = `id, code, site_id, name, description, sports, weekly_slots, booking_rules,
	total_bookings, is_active, created_at, updated_at`

func scanFacility(row pgx.Row) (*model.Facility, error) {
	var f model.Facility
	err := row.Scan(
		&f.ID, &f.Code, &f.SiteID, &f.Name, &f.Description, &f.Sports, &f.WeeklySlots, &f.BookingRules,
		&f.TotalBookings, &f.IsActive, &f.CreatedAt, &f.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &f, nil
}

// FacilityFilter narrows facility listings.
type FacilityFilter struct {
	SiteID     string
	Sport      string
	ActiveOnly bool
}

// FacilityRepository handles persistence for facilities.
type FacilityRepository struct {
	db *pgxpool.Pool
}

// NewFacilityRepository constructs a FacilityRepository.
func NewFacilityRepository(db *pgxpool.Pool) *FacilityRepository {
	return &FacilityRepository{db: db}
}

// Create inserts a facility and attaches it to its site.
func (r *FacilityRepository) Create(ctx context.Context, f *model.Facility) (err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	if err = insertFacility(ctx, tx, f); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// CreateMany inserts facilities all or nothing, attaching each to its site.
func (r *FacilityRepository) CreateMany(ctx context.Context, fs []*model.Facility) (err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	for _, f := range fs {
		if err = insertFacility(ctx, tx, f); err != nil {
			return fmt.Errorf("facility %s: %w", f.Code, err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func insertFacility(ctx context.Context, q querier, f *model.Facility) error {
	_, err := q.Exec(ctx,
		`INSERT INTO facilities (id, code, site_id, name, description, sports, weekly_slots,
			booking_rules, total_bookings, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, 0, $9, $10, $10)`,
		f.ID, f.Code, f.SiteID, f.Name, f.Description, f.Sports, f.WeeklySlots,
		f.BookingRules, f.IsActive, f.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert facility: %w", translate(err))
	}
	if f.SiteID != "" {
		return attachFacility(ctx, q, f.SiteID, f.ID)
	}
	return nil
}

// Get returns a facility by id or code, with its per-sport counters.
func (r *FacilityRepository) Get(ctx context.Context, idOrCode string) (*model.Facility, error) {
	f, err := scanFacility(r.db.QueryRow(ctx,
		`SELECT `+facilityColumns+` FROM facilities WHERE id = $1 OR code = $1`,
		idOrCode,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get facility: %w", err)
	}
	if f.SportBookings, err = r.SportCounts(ctx, f.ID); err != nil {
		return nil, err
	}
	return f, nil
}

// List returns facilities ordered by name.
func (r *FacilityRepository) List(ctx context.Context, filter FacilityFilter) ([]model.Facility, error) {
	var (
		where []string
		args  []any
	)
	if filter.SiteID != "" {
		args = append(args, filter.SiteID)
		where = append(where, fmt.Sprintf("site_id = $%d", len(args)))
	}
	if filter.Sport != "" {
		args = append(args, filter.Sport)
		where = append(where, fmt.Sprintf("sports @> jsonb_build_array(jsonb_build_object('sport', $%d::text))", len(args)))
	}
	if filter.ActiveOnly {
		where = append(where, "is_active")
	}
	query := `SELECT ` + facilityColumns + ` FROM facilities`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY name"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list facilities: %w", err)
	}
	defer rows.Close()

	var out []model.Facility
	for rows.Next() {
		f, err := scanFacility(rows)
		if err != nil {
			return nil, fmt.Errorf("scan facility: %w", err)
		}
		out = append(out, *f)
	}
	return out, rows.Err()
}

// Update rewrites the editable fields and moves the site link when the site
// changed. Counters are never touched here.
func (r *FacilityRepository) Update(ctx context.Context, f *model.Facility, previousSite string) (err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	tag, err := tx.Exec(ctx,
		`UPDATE facilities SET code = $2, site_id = $3, name = $4, description = $5, sports = $6,
			weekly_slots = $7, booking_rules = $8, is_active = $9, updated_at = $10
		 WHERE id = $1`,
		f.ID, f.Code, f.SiteID, f.Name, f.Description, f.Sports,
		f.WeeklySlots, f.BookingRules, f.IsActive, f.UpdatedAt,
	)
	if err != nil {
		err = translate(err)
		return fmt.Errorf("update facility: %w", err)
	}
	if tag.RowsAffected() == 0 {
		err = ErrNotFound
		return err
	}
	if previousSite != f.SiteID {
		if _, err = tx.Exec(ctx, `DELETE FROM site_facilities WHERE facility_id = $1`, f.ID); err != nil {
			return fmt.Errorf("detach facility: %w", err)
		}
		if f.SiteID != "" {
			if err = attachFacility(ctx, tx, f.SiteID, f.ID); err != nil {
				return err
			}
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

// Delete removes a facility. It fails with ErrInUse while bookings reference it.
func (r *FacilityRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM facilities WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete facility: %w", translate(err))
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteMany removes facilities by id, all or nothing, and returns how many
// went. Site links go with them. Any referenced facility fails the batch with
// ErrInUse.
func (r *FacilityRepository) DeleteMany(ctx context.Context, ids []string) (int, error) {
	tag, err := r.db.Exec(ctx, `DELETE FROM facilities WHERE id = ANY($1)`, ids)
	if err != nil {
		return 0, fmt.Errorf("delete facilities: %w", translate(err))
	}
	return int(tag.RowsAffected()), nil
}

// SportCounts returns the per-sport booking counters of a facility.
func (r *FacilityRepository) SportCounts(ctx context.Context, facilityID string) ([]model.SportCount, error) {
	rows, err := r.db.Query(ctx,
		`SELECT sport, booking_count FROM facility_sport_bookings
		 WHERE facility_id = $1 ORDER BY sport`,
		facilityID,
	)
	if err != nil {
		return nil, fmt.Errorf("list sport counts: %w", err)
	}
	defer rows.Close()

	out := []model.SportCount{}
	for rows.Next() {
		var c model.SportCount
		if err := rows.Scan(&c.Sport, &c.BookingCount); err != nil {
			return nil, fmt.Errorf("scan sport count: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func attachFacility(ctx context.Context, q querier, siteID, facilityID string) error {
	_, err := q.Exec(ctx,
		`INSERT INTO site_facilities (site_id, facility_id) VALUES ($1, $2)
		 ON CONFLICT DO NOTHING`,
		siteID, facilityID,
	)
	if err != nil {
		if errors.Is(translate(err), ErrInUse) {
			return ErrNotFound
		}
		return fmt.Errorf("attach facility: %w", err)
	}
	return nil
}
