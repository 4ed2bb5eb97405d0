package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/KashanAdnan02/GroundZeroBackend2/internal/model"
)

// siteColumns aggregates the attached facility ids from the join table.
const siteColumns = `s.id, s.code, s.name, s.address, s.investor_ids, s.manager_ids, s.is_active,
	s.created_at, s.updated_at,
	COALESCE((SELECT array_agg(sf.facility_id ORDER BY sf.attached_at)
	          FROM site_facilities sf WHERE sf.site_id = s.id), '{}')`

func scanSite(row pgx.Row) (*model.Site, error) {
	var s model.Site
	err := row.Scan(
		&s.ID, &s.Code, &s.Name, &s.Address, &s.InvestorIDs, &s.ManagerIDs, &s.IsActive,
		&s.CreatedAt, &s.UpdatedAt, &s.FacilityIDs,
	)
	if err != nil {
		return nil, err
	}
	return &s, nil
}

// SiteRepository handles persistence for sites.
type SiteRepository struct {
	db *pgxpool.Pool
}

// NewSiteRepository constructs a SiteRepository.
func NewSiteRepository(db *pgxpool.Pool) *SiteRepository {
	return &SiteRepository{db: db}
}

// Create inserts a new site.
func (r *SiteRepository) Create(ctx context.Context, s *model.Site) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO sites (id, code, name, address, investor_ids, manager_ids, is_active, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)`,
		s.ID, s.Code, s.Name, s.Address, s.InvestorIDs, s.ManagerIDs, s.IsActive, s.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert site: %w", translate(err))
	}
	return nil
}

// Get returns a site by id or code.
func (r *SiteRepository) Get(ctx context.Context, idOrCode string) (*model.Site, error) {
	s, err := scanSite(r.db.QueryRow(ctx,
		`SELECT `+siteColumns+` FROM sites s WHERE s.id = $1 OR s.code = $1`,
		idOrCode,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get site: %w", err)
	}
	return s, nil
}

// List returns sites ordered by name.
func (r *SiteRepository) List(ctx context.Context, activeOnly bool) ([]model.Site, error) {
	rows, err := r.db.Query(ctx,
		`SELECT `+siteColumns+` FROM sites s
		 WHERE NOT $1 OR s.is_active
		 ORDER BY s.name`,
		activeOnly,
	)
	if err != nil {
		return nil, fmt.Errorf("list sites: %w", err)
	}
	defer rows.Close()

	var out []model.Site
	for rows.Next() {
		s, err := scanSite(rows)
		if err != nil {
			return nil, fmt.Errorf("scan site: %w", err)
		}
		out = append(out, *s)
	}
	return out, rows.Err()
}

// Update rewrites the editable fields of a site.
func (r *SiteRepository) Update(ctx context.Context, s *model.Site) error {
	tag, err := r.db.Exec(ctx,
		`UPDATE sites SET code = $2, name = $3, address = $4, investor_ids = $5, manager_ids = $6,
			updated_at = $7
		 WHERE id = $1`,
		s.ID, s.Code, s.Name, s.Address, s.InvestorIDs, s.ManagerIDs, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("update site: %w", translate(err))
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// ToggleActive flips the active flag and returns the new value.
func (r *SiteRepository) ToggleActive(ctx context.Context, id string) (bool, error) {
	var active bool
	err := r.db.QueryRow(ctx,
		`UPDATE sites SET is_active = NOT is_active, updated_at = now()
		 WHERE id = $1 OR code = $1
		 RETURNING is_active`,
		id,
	).Scan(&active)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, ErrNotFound
		}
		return false, fmt.Errorf("toggle site: %w", err)
	}
	return active, nil
}

// Delete removes a site. Its facilities stay but lose their site link. It
// fails with ErrInUse while bookings at the site are still open.
func (r *SiteRepository) Delete(ctx context.Context, id string) (err error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	var locked string
	if err = tx.QueryRow(ctx, `SELECT id FROM sites WHERE id = $1 FOR UPDATE`, id).Scan(&locked); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			err = ErrNotFound
			return err
		}
		return fmt.Errorf("lock site: %w", err)
	}

	var open bool
	err = tx.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM bookings WHERE site_id = $1 AND booking_status = ANY($2))`,
		id, statusStrings(openStatuses),
	).Scan(&open)
	if err != nil {
		return fmt.Errorf("check site bookings: %w", err)
	}
	if open {
		err = ErrInUse
		return err
	}

	if _, err = tx.Exec(ctx,
		`UPDATE facilities SET site_id = '', updated_at = now() WHERE site_id = $1`, id,
	); err != nil {
		return fmt.Errorf("detach site facilities: %w", err)
	}
	// site_facilities rows go with the site.
	if _, err = tx.Exec(ctx, `DELETE FROM sites WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete site: %w", translate(err))
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
