package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/KashanAdnan02/GroundZeroBackend2/internal/apperr"
	"github.com/KashanAdnan02/GroundZeroBackend2/internal/auth"
	"github.com/KashanAdnan02/GroundZeroBackend2/internal/availability"
	"github.com/KashanAdnan02/GroundZeroBackend2/internal/model"
	"github.com/KashanAdnan02/GroundZeroBackend2/internal/repository"
	"github.com/KashanAdnan02/GroundZeroBackend2/internal/schedule"
)

// FacilityService manages facilities and their calendars.
type FacilityService struct {
	facilities FacilityStore
	sites      SiteStore
	bookings   BookingStore
	checker    *availability.Checker
	log        zerolog.Logger
	loc        *time.Location
	now        func() time.Time
}

// NewFacilityService constructs a FacilityService.
func NewFacilityService(facilities FacilityStore, sites SiteStore, bookings BookingStore, loc *time.Location, log zerolog.Logger) *FacilityService {
	if loc == nil {
		loc = time.UTC
	}
	return &FacilityService{
		facilities: facilities,
		sites:      sites,
		bookings:   bookings,
		checker:    availability.NewChecker(bookings),
		log:        log,
		loc:        loc,
		now:        time.Now,
	}
}

// Create validates and stores a new facility.
func (s *FacilityService) Create(ctx context.Context, id auth.Identity, req model.FacilityRequest) (*model.Facility, error) {
	if !id.Privileged() {
		return nil, apperr.Forbidden("only admins and site managers can manage facilities")
	}
	if err := s.validate(ctx, &req); err != nil {
		return nil, err
	}
	now := s.now()
	f := &model.Facility{
		ID:            uuid.NewString(),
		Code:          req.Code,
		SiteID:        req.SiteID,
		Name:          req.Name,
		Description:   req.Description,
		Sports:        req.Sports,
		WeeklySlots:   req.WeeklySlots,
		BookingRules:  req.BookingRules,
		SportBookings: []model.SportCount{},
		IsActive:      req.IsActive == nil || *req.IsActive,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if err := s.facilities.Create(ctx, f); err != nil {
		return nil, storeErr("facility", "create facility", err)
	}
	s.log.Info().Str("facility", f.Code).Str("site", f.SiteID).Msg("facility created")
	return f, nil
}

// Get returns a facility by id or code.
func (s *FacilityService) Get(ctx context.Context, idOrCode string) (*model.Facility, error) {
	f, err := s.facilities.Get(ctx, idOrCode)
	if err != nil {
		return nil, storeErr("facility", "get facility", err)
	}
	return f, nil
}

// List returns facilities, active ones only for regular callers.
func (s *FacilityService) List(ctx context.Context, id auth.Identity, filter repository.FacilityFilter) ([]model.Facility, error) {
	if !id.Privileged() {
		filter.ActiveOnly = true
	}
	out, err := s.facilities.List(ctx, filter)
	if err != nil {
		return nil, storeErr("facility", "list facilities", err)
	}
	if out == nil {
		out = []model.Facility{}
	}
	return out, nil
}

// Update replaces the editable fields of a facility. Booking counters are
// left alone.
func (s *FacilityService) Update(ctx context.Context, id auth.Identity, idOrCode string, req model.FacilityRequest) (*model.Facility, error) {
	if !id.Privileged() {
		return nil, apperr.Forbidden("only admins and site managers can manage facilities")
	}
	f, err := s.facilities.Get(ctx, idOrCode)
	if err != nil {
		return nil, storeErr("facility", "get facility", err)
	}
	if err := s.validate(ctx, &req); err != nil {
		return nil, err
	}

	previousSite := f.SiteID
	f.Code = req.Code
	f.SiteID = req.SiteID
	f.Name = req.Name
	f.Description = req.Description
	f.Sports = req.Sports
	f.WeeklySlots = req.WeeklySlots
	f.BookingRules = req.BookingRules
	if req.IsActive != nil {
		f.IsActive = *req.IsActive
	}
	f.UpdatedAt = s.now()
	if err := s.facilities.Update(ctx, f, previousSite); err != nil {
		return nil, storeErr("facility", "update facility", err)
	}
	s.log.Info().Str("facility", f.Code).Msg("facility updated")
	return f, nil
}

// Delete removes a facility that no booking references.
func (s *FacilityService) Delete(ctx context.Context, id auth.Identity, idOrCode string) error {
	if id.Role != model.RoleAdmin {
		return apperr.Forbidden("only admins can delete facilities")
	}
	f, err := s.facilities.Get(ctx, idOrCode)
	if err != nil {
		return storeErr("facility", "get facility", err)
	}
	if err := s.facilities.Delete(ctx, f.ID); err != nil {
		return storeErr("facility", "delete facility", err)
	}
	s.log.Info().Str("facility", f.Code).Msg("facility deleted")
	return nil
}

const maxBulkFacilities = 100

// Bulk creates or deletes a batch of facilities in one transaction. Creating
// needs staff, deleting needs an admin.
func (s *FacilityService) Bulk(ctx context.Context, id auth.Identity, req model.BulkFacilityRequest) (*model.BulkFacilityResult, error) {
	switch req.Operation {
	case model.BulkCreate:
		if !id.Privileged() {
			return nil, apperr.Forbidden("only admins and site managers can manage facilities")
		}
		var reqs []model.FacilityRequest
		if err := json.Unmarshal(req.Data, &reqs); err != nil {
			return nil, apperr.Validation("data must be a list of facilities")
		}
		return s.bulkCreate(ctx, reqs)
	case model.BulkDelete:
		if id.Role != model.RoleAdmin {
			return nil, apperr.Forbidden("only admins can delete facilities")
		}
		var ids []string
		if err := json.Unmarshal(req.Data, &ids); err != nil {
			return nil, apperr.Validation("data must be a list of facility ids")
		}
		return s.bulkDelete(ctx, ids)
	}
	return nil, apperr.Validation("operation must be %s or %s", model.BulkCreate, model.BulkDelete)
}

func (s *FacilityService) bulkCreate(ctx context.Context, reqs []model.FacilityRequest) (*model.BulkFacilityResult, error) {
	if len(reqs) == 0 || len(reqs) > maxBulkFacilities {
		return nil, apperr.Validation("data must hold between 1 and %d facilities", maxBulkFacilities)
	}
	now := s.now()
	codes := make(map[string]bool, len(reqs))
	batch := make([]*model.Facility, 0, len(reqs))
	for i := range reqs {
		req := reqs[i]
		if err := s.validate(ctx, &req); err != nil {
			if apperr.Is(err, apperr.ErrValidation) {
				return nil, apperr.Validation("data[%d]: %s", i, err.Error())
			}
			return nil, err
		}
		if codes[req.Code] {
			return nil, apperr.Validation("facility_code %q listed twice", req.Code)
		}
		codes[req.Code] = true
		batch = append(batch, &model.Facility{
			ID:            uuid.NewString(),
			Code:          req.Code,
			SiteID:        req.SiteID,
			Name:          req.Name,
			Description:   req.Description,
			Sports:        req.Sports,
			WeeklySlots:   req.WeeklySlots,
			BookingRules:  req.BookingRules,
			SportBookings: []model.SportCount{},
			IsActive:      req.IsActive == nil || *req.IsActive,
			CreatedAt:     now,
			UpdatedAt:     now,
		})
	}
	if err := s.facilities.CreateMany(ctx, batch); err != nil {
		return nil, storeErr("facility", "create facilities", err)
	}
	out := make([]model.Facility, len(batch))
	for i, f := range batch {
		out[i] = *f
	}
	s.log.Info().Int("count", len(out)).Msg("facilities created in bulk")
	return &model.BulkFacilityResult{Operation: model.BulkCreate, Count: len(out), Facilities: out}, nil
}

func (s *FacilityService) bulkDelete(ctx context.Context, refs []string) (*model.BulkFacilityResult, error) {
	if len(refs) == 0 || len(refs) > maxBulkFacilities {
		return nil, apperr.Validation("data must hold between 1 and %d facility ids", maxBulkFacilities)
	}
	ids := make([]string, 0, len(refs))
	for _, ref := range refs {
		f, err := s.facilities.Get(ctx, strings.TrimSpace(ref))
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, apperr.NotFound("facility " + ref)
			}
			return nil, storeErr("facility", "get facility", err)
		}
		ids = append(ids, f.ID)
	}
	n, err := s.facilities.DeleteMany(ctx, ids)
	if err != nil {
		return nil, storeErr("facility", "delete facilities", err)
	}
	s.log.Info().Int("count", n).Msg("facilities deleted in bulk")
	return &model.BulkFacilityResult{Operation: model.BulkDelete, Count: n}, nil
}

// Availability lists the open windows of a facility on a date. A positive
// duration keeps only windows of that length.
func (s *FacilityService) Availability(ctx context.Context, idOrCode, dateStr string, duration int) (*model.DayAvailability, error) {
	date, err := time.ParseInLocation(schedule.DateLayout, strings.TrimSpace(dateStr), s.loc)
	if err != nil {
		return nil, apperr.Validation("date must be YYYY-MM-DD")
	}
	if duration < 0 {
		return nil, apperr.Validation("duration must not be negative")
	}
	f, err := s.facilities.Get(ctx, idOrCode)
	if err != nil {
		return nil, storeErr("facility", "get facility", err)
	}
	if duration > 0 {
		if err := checkRules(f.BookingRules, duration); err != nil {
			return nil, err
		}
	}
	slots, err := s.checker.Day(ctx, f, date, duration)
	if err != nil {
		return nil, apperr.Dependency("list availability", err)
	}
	return &model.DayAvailability{FacilityID: f.ID, Date: date.Format(schedule.DateLayout), Slots: slots}, nil
}

// Stats summarises a facility's bookings and counters.
func (s *FacilityService) Stats(ctx context.Context, id auth.Identity, idOrCode string) (*model.FacilityStats, error) {
	if !id.Privileged() && id.Role != model.RoleInvestor {
		return nil, apperr.Forbidden("only staff and investors can view facility statistics")
	}
	f, err := s.facilities.Get(ctx, idOrCode)
	if err != nil {
		return nil, storeErr("facility", "get facility", err)
	}
	byStatus, revenue, err := s.bookings.Stats(ctx, f.ID)
	if err != nil {
		return nil, storeErr("facility", "facility stats", err)
	}
	sports := f.SportBookings
	if sports == nil {
		sports = []model.SportCount{}
	}
	return &model.FacilityStats{
		FacilityID:    f.ID,
		TotalBookings: f.TotalBookings,
		SportBookings: sports,
		ByStatus:      byStatus,
		Revenue:       revenue,
	}, nil
}

func (s *FacilityService) validate(ctx context.Context, req *model.FacilityRequest) error {
	req.Code = strings.TrimSpace(req.Code)
	req.Name = strings.TrimSpace(req.Name)
	req.SiteID = strings.TrimSpace(req.SiteID)
	req.Description = strings.TrimSpace(req.Description)
	if req.Code == "" {
		return apperr.Validation("facility_code is required")
	}
	if req.Name == "" {
		return apperr.Validation("name is required")
	}
	if len(req.Sports) == 0 {
		return apperr.Validation("at least one sport is required")
	}
	seen := make(map[string]bool, len(req.Sports))
	for i := range req.Sports {
		sp := &req.Sports[i]
		sp.Sport = strings.TrimSpace(sp.Sport)
		if sp.Sport == "" {
			return apperr.Validation("sports[%d].sport is required", i)
		}
		if seen[sp.Sport] {
			return apperr.Validation("sport %q listed twice", sp.Sport)
		}
		seen[sp.Sport] = true
		if sp.BasePrice < 0 {
			return apperr.Validation("sports[%d].base_price cannot be negative", i)
		}
	}
	if req.WeeklySlots == nil {
		req.WeeklySlots = model.WeeklySlots{}
	}
	if err := schedule.Validate(req.WeeklySlots); err != nil {
		return apperr.Validation("%s", err.Error())
	}
	r := req.BookingRules
	if r.MinDurationMin < 0 || r.MaxDurationMin < 0 {
		return apperr.Validation("booking_rules durations cannot be negative")
	}
	if r.MaxDurationMin > 0 && r.MinDurationMin > r.MaxDurationMin {
		return apperr.Validation("booking_rules.min_duration_min exceeds max_duration_min")
	}
	for _, d := range r.AllowedDurations {
		if d <= 0 {
			return apperr.Validation("booking_rules.allowed_durations must be positive")
		}
	}
	if req.SiteID != "" {
		site, err := s.sites.Get(ctx, req.SiteID)
		if err != nil {
			return storeErr("site", "get site", err)
		}
		req.SiteID = site.ID
	}
	return nil
}
