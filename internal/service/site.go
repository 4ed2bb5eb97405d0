package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/KashanAdnan02/GroundZeroBackend2/internal/apperr"
	"github.com/KashanAdnan02/GroundZeroBackend2/internal/auth"
	"github.com/KashanAdnan02/GroundZeroBackend2/internal/model"
	"github.com/KashanAdnan02/GroundZeroBackend2/internal/repository"
)

// SiteService manages sites.
type SiteService struct {
	sites SiteStore
	log   zerolog.Logger
	now   func() time.Time
}

// NewSiteService constructs a SiteService.
func NewSiteService(sites SiteStore, log zerolog.Logger) *SiteService {
	return &SiteService{sites: sites, log: log, now: time.Now}
}

// Create stores a new, active site. Admin only.
func (s *SiteService) Create(ctx context.Context, id auth.Identity, req model.SiteRequest) (*model.Site, error) {
	if id.Role != model.RoleAdmin {
		return nil, apperr.Forbidden("only admins can manage sites")
	}
	if err := validateSite(&req); err != nil {
		return nil, err
	}
	now := s.now()
	site := &model.Site{
		ID:          uuid.NewString(),
		Code:        req.Code,
		Name:        req.Name,
		Address:     req.Address,
		FacilityIDs: []string{},
		InvestorIDs: req.InvestorIDs,
		ManagerIDs:  req.ManagerIDs,
		IsActive:    true,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.sites.Create(ctx, site); err != nil {
		return nil, storeErr("site", "create site", err)
	}
	s.log.Info().Str("site", site.Code).Msg("site created")
	return site, nil
}

// Get returns a site by id or code.
func (s *SiteService) Get(ctx context.Context, idOrCode string) (*model.Site, error) {
	site, err := s.sites.Get(ctx, idOrCode)
	if err != nil {
		return nil, storeErr("site", "get site", err)
	}
	return site, nil
}

// List returns sites; inactive ones are visible to admins only.
func (s *SiteService) List(ctx context.Context, id auth.Identity) ([]model.Site, error) {
	out, err := s.sites.List(ctx, id.Role != model.RoleAdmin)
	if err != nil {
		return nil, storeErr("site", "list sites", err)
	}
	if out == nil {
		out = []model.Site{}
	}
	return out, nil
}

// Update rewrites a site's details. Admin only.
func (s *SiteService) Update(ctx context.Context, id auth.Identity, idOrCode string, req model.SiteRequest) (*model.Site, error) {
	if id.Role != model.RoleAdmin {
		return nil, apperr.Forbidden("only admins can manage sites")
	}
	if err := validateSite(&req); err != nil {
		return nil, err
	}
	site, err := s.sites.Get(ctx, idOrCode)
	if err != nil {
		return nil, storeErr("site", "get site", err)
	}
	site.Code = req.Code
	site.Name = req.Name
	site.Address = req.Address
	site.InvestorIDs = req.InvestorIDs
	site.ManagerIDs = req.ManagerIDs
	site.UpdatedAt = s.now()
	if err := s.sites.Update(ctx, site); err != nil {
		return nil, storeErr("site", "update site", err)
	}
	return site, nil
}

// Toggle flips a site's active flag. Admin only.
func (s *SiteService) Toggle(ctx context.Context, id auth.Identity, idOrCode string) (bool, error) {
	if id.Role != model.RoleAdmin {
		return false, apperr.Forbidden("only admins can manage sites")
	}
	active, err := s.sites.ToggleActive(ctx, idOrCode)
	if err != nil {
		return false, storeErr("site", "toggle site", err)
	}
	s.log.Info().Str("site", idOrCode).Bool("active", active).Msg("site status toggled")
	return active, nil
}

// Delete removes a site once no open booking refers to it. Its facilities
// are kept, detached. Admin only.
func (s *SiteService) Delete(ctx context.Context, id auth.Identity, idOrCode string) error {
	if id.Role != model.RoleAdmin {
		return apperr.Forbidden("only admins can manage sites")
	}
	site, err := s.sites.Get(ctx, idOrCode)
	if err != nil {
		return storeErr("site", "get site", err)
	}
	if err := s.sites.Delete(ctx, site.ID); err != nil {
		if errors.Is(err, repository.ErrInUse) {
			return apperr.Conflict("site %s still has open bookings", site.Code)
		}
		return storeErr("site", "delete site", err)
	}
	s.log.Info().Str("site", site.Code).Int("facilities", len(site.FacilityIDs)).Msg("site deleted")
	return nil
}

func validateSite(req *model.SiteRequest) error {
	req.Code = strings.TrimSpace(req.Code)
	req.Name = strings.TrimSpace(req.Name)
	if n := len(req.Code); n < 2 || n > 50 {
		return apperr.Validation("site_id must be between 2 and 50 characters")
	}
	if req.Name == "" {
		return apperr.Validation("site_name is required")
	}
	req.InvestorIDs = cleanIDs(req.InvestorIDs)
	req.ManagerIDs = cleanIDs(req.ManagerIDs)
	return nil
}

// cleanIDs trims, drops blanks and duplicates, and never returns nil.
func cleanIDs(in []string) []string {
	out := make([]string, 0, len(in))
	seen := make(map[string]bool, len(in))
	for _, v := range in {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
