package service

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/KashanAdnan02/GroundZeroBackend2/internal/availability"
	"github.com/KashanAdnan02/GroundZeroBackend2/internal/events"
	"github.com/KashanAdnan02/GroundZeroBackend2/internal/gateway"
	"github.com/KashanAdnan02/GroundZeroBackend2/internal/model"
	"github.com/KashanAdnan02/GroundZeroBackend2/internal/notify"
	"github.com/KashanAdnan02/GroundZeroBackend2/internal/repository"
)

// memDB mimics the Postgres schema closely enough for the service: one
// mutex stands in for the facility row lock and every method is atomic.
type memDB struct {
	mu         sync.Mutex
	facilities map[string]*model.Facility
	sports     map[string]map[string]int
	sites      map[string]*model.Site
	bookings   map[string]*model.Booking
	payments   map[string]*model.Payment
	consumed   map[string]bool
	users      map[string]*model.User
}

func newMemDB() *memDB {
	return &memDB{
		facilities: map[string]*model.Facility{},
		sports:     map[string]map[string]int{},
		sites:      map[string]*model.Site{},
		bookings:   map[string]*model.Booking{},
		payments:   map[string]*model.Payment{},
		consumed:   map[string]bool{},
		users:      map[string]*model.User{},
	}
}

func (db *memDB) findBooking(idOrCode string) *model.Booking {
	if b, ok := db.bookings[idOrCode]; ok {
		return b
	}
	for _, b := range db.bookings {
		if b.Code == idOrCode {
			return b
		}
	}
	return nil
}

func (db *memDB) findFacility(idOrCode string) *model.Facility {
	if f, ok := db.facilities[idOrCode]; ok {
		return f
	}
	for _, f := range db.facilities {
		if f.Code == idOrCode {
			return f
		}
	}
	return nil
}

func (db *memDB) overlapping(facilityID string, start, end time.Time, excludeID string) int {
	n := 0
	for _, b := range db.bookings {
		if b.FacilityID == facilityID && b.ID != excludeID && b.Status.Occupies() &&
			availability.Overlaps(b.StartTime, b.EndTime, start, end) {
			n++
		}
	}
	return n
}

func (db *memDB) increment(facilityID, sport string) {
	db.facilities[facilityID].TotalBookings++
	if db.sports[facilityID] == nil {
		db.sports[facilityID] = map[string]int{}
	}
	db.sports[facilityID][sport]++
}

func (db *memDB) decrement(facilityID, sport string) {
	if f := db.facilities[facilityID]; f != nil && f.TotalBookings > 0 {
		f.TotalBookings--
	}
	if db.sports[facilityID][sport] > 0 {
		db.sports[facilityID][sport]--
	}
}

func (db *memDB) sportCounts(facilityID string) []model.SportCount {
	out := []model.SportCount{}
	for sport, n := range db.sports[facilityID] {
		out = append(out, model.SportCount{Sport: sport, BookingCount: n})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Sport < out[j].Sport })
	return out
}

func (db *memDB) save(b *model.Booking, guard repository.Guard) error {
	cur := db.bookings[b.ID]
	if cur == nil {
		return repository.ErrNotFound
	}
	if cur.Status != guard.Status || cur.PaymentStatus != guard.PaymentStatus {
		return repository.ErrStale
	}
	if b.Status.Occupies() && db.overlapping(b.FacilityID, b.StartTime, b.EndTime, b.ID) > 0 {
		return repository.ErrOverlap
	}
	cp := *b
	db.bookings[b.ID] = &cp
	return nil
}

func (db *memDB) paymentOf(bookingID string) *model.Payment {
	for _, p := range db.payments {
		if p.BookingID == bookingID {
			return p
		}
	}
	return nil
}

type memBookings struct{ db *memDB }

func (s memBookings) Create(_ context.Context, b *model.Booking, p *model.Payment) error {
	db := s.db
	db.mu.Lock()
	defer db.mu.Unlock()
	if db.facilities[b.FacilityID] == nil {
		return repository.ErrNotFound
	}
	if db.overlapping(b.FacilityID, b.StartTime, b.EndTime, "") > 0 {
		return repository.ErrOverlap
	}
	if db.findBooking(b.Code) != nil {
		return repository.ErrDuplicate
	}
	bc, pc := *b, *p
	db.bookings[b.ID] = &bc
	db.payments[p.ID] = &pc
	db.increment(b.FacilityID, b.Sport)
	return nil
}

func (s memBookings) Get(_ context.Context, idOrCode string) (*model.Booking, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	b := s.db.findBooking(idOrCode)
	if b == nil {
		return nil, repository.ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (s memBookings) List(_ context.Context, f model.BookingFilter) ([]model.Booking, int, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var all []model.Booking
	for _, b := range s.db.bookings {
		switch {
		case f.UserID != "" && b.UserID != f.UserID,
			f.FacilityID != "" && b.FacilityID != f.FacilityID,
			f.SiteID != "" && b.SiteID != f.SiteID,
			f.Status != "" && b.Status != f.Status,
			f.Upcoming && b.StartTime.Before(f.Now):
			continue
		}
		all = append(all, *b)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].StartTime.After(all[j].StartTime) })
	from := (f.Page - 1) * f.Limit
	if from > len(all) {
		from = len(all)
	}
	to := from + f.Limit
	if to > len(all) {
		to = len(all)
	}
	return all[from:to], len(all), nil
}

func (s memBookings) ListOccupying(_ context.Context, facilityID string, from, to time.Time) ([]model.Booking, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []model.Booking
	for _, b := range s.db.bookings {
		if b.FacilityID == facilityID && b.Status.Occupies() &&
			availability.Overlaps(b.StartTime, b.EndTime, from, to) {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (s memBookings) Save(_ context.Context, b *model.Booking, guard repository.Guard) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return s.db.save(b, guard)
}

func (s memBookings) Cancel(_ context.Context, b *model.Booking, guard repository.Guard, refund bool) error {
	db := s.db
	db.mu.Lock()
	defer db.mu.Unlock()
	if err := db.save(b, guard); err != nil {
		return err
	}
	db.decrement(b.FacilityID, b.Sport)
	if p := db.paymentOf(b.ID); refund && p != nil {
		p.Status = model.TxnRefunded
	}
	return nil
}

func (s memBookings) Settle(_ context.Context, b *model.Booking, guard repository.Guard, p *model.Payment, eventID string) error {
	db := s.db
	db.mu.Lock()
	defer db.mu.Unlock()
	if eventID != "" && db.consumed[eventID] {
		return repository.ErrProcessed
	}
	if err := db.save(b, guard); err != nil {
		return err
	}
	cp := *p
	db.payments[p.ID] = &cp
	if eventID != "" {
		db.consumed[eventID] = true
	}
	return nil
}

func (s memBookings) Delete(_ context.Context, idOrCode string) (*model.Booking, error) {
	db := s.db
	db.mu.Lock()
	defer db.mu.Unlock()
	b := db.findBooking(idOrCode)
	if b == nil {
		return nil, repository.ErrNotFound
	}
	if p := db.paymentOf(b.ID); p != nil {
		delete(db.payments, p.ID)
	}
	delete(db.bookings, b.ID)
	if b.Status != model.StatusCancelled {
		db.decrement(b.FacilityID, b.Sport)
	}
	return b, nil
}

func (s memBookings) AutoCheckIn(_ context.Context, now time.Time) ([]model.Booking, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []model.Booking
	for _, b := range s.db.bookings {
		if b.Status == model.StatusConfirmed && b.PaymentStatus == model.PaymentPaid &&
			b.AutoCheckIn && b.CheckInTime == nil && !b.StartTime.After(now) {
			b.Status = model.StatusActive
			b.CheckInTime = ptr(now)
			out = append(out, *b)
		}
	}
	return out, nil
}

func (s memBookings) AutoCheckOut(_ context.Context, now time.Time) ([]model.Booking, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []model.Booking
	for _, b := range s.db.bookings {
		if b.Status == model.StatusActive && b.AutoCheckOut && b.CheckOutTime == nil && !b.EndTime.After(now) {
			from := b.StartTime
			if b.CheckInTime != nil {
				from = *b.CheckInTime
			}
			b.Status = model.StatusCompleted
			b.CheckOutTime = ptr(now)
			b.ActualDuration = ptr(int(now.Sub(from).Round(time.Minute).Minutes()))
			out = append(out, *b)
		}
	}
	return out, nil
}

func (s memBookings) DeleteStale(_ context.Context, cutoff time.Time) ([]model.Booking, error) {
	db := s.db
	db.mu.Lock()
	defer db.mu.Unlock()
	var out []model.Booking
	for id, b := range db.bookings {
		if b.Status == model.StatusPending && b.PaymentStatus == model.PaymentPending && b.CreatedAt.Before(cutoff) {
			if p := db.paymentOf(id); p != nil {
				delete(db.payments, p.ID)
			}
			delete(db.bookings, id)
			db.decrement(b.FacilityID, b.Sport)
			out = append(out, *b)
		}
	}
	return out, nil
}

func (s memBookings) Stats(_ context.Context, facilityID string) (map[string]int, float64, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	byStatus := map[string]int{}
	var revenue float64
	for _, b := range s.db.bookings {
		if b.FacilityID != facilityID {
			continue
		}
		byStatus[string(b.Status)]++
		if b.PaymentStatus == model.PaymentPaid {
			revenue += b.TotalAmount + b.LateFee
		}
	}
	return byStatus, revenue, nil
}

type memFacilities struct{ db *memDB }

func (s memFacilities) Create(_ context.Context, f *model.Facility) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if s.db.findFacility(f.Code) != nil {
		return repository.ErrDuplicate
	}
	cp := *f
	s.db.facilities[f.ID] = &cp
	if site := s.db.sites[f.SiteID]; site != nil {
		site.FacilityIDs = append(site.FacilityIDs, f.ID)
	}
	return nil
}

func (s memFacilities) Get(_ context.Context, idOrCode string) (*model.Facility, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	f := s.db.findFacility(idOrCode)
	if f == nil {
		return nil, repository.ErrNotFound
	}
	cp := *f
	cp.SportBookings = s.db.sportCounts(f.ID)
	return &cp, nil
}

func (s memFacilities) List(_ context.Context, filter repository.FacilityFilter) ([]model.Facility, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []model.Facility
	for _, f := range s.db.facilities {
		if filter.SiteID != "" && f.SiteID != filter.SiteID {
			continue
		}
		if filter.ActiveOnly && !f.IsActive {
			continue
		}
		if _, ok := f.BasePrice(filter.Sport); filter.Sport != "" && !ok {
			continue
		}
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s memFacilities) Update(_ context.Context, f *model.Facility, _ string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	cur := s.db.facilities[f.ID]
	if cur == nil {
		return repository.ErrNotFound
	}
	cp := *f
	cp.TotalBookings = cur.TotalBookings
	s.db.facilities[f.ID] = &cp
	return nil
}

func (s memFacilities) Delete(_ context.Context, id string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if s.db.facilities[id] == nil {
		return repository.ErrNotFound
	}
	for _, b := range s.db.bookings {
		if b.FacilityID == id {
			return repository.ErrInUse
		}
	}
	delete(s.db.facilities, id)
	return nil
}

func (s memFacilities) CreateMany(_ context.Context, fs []*model.Facility) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	codes := map[string]bool{}
	for _, f := range fs {
		if codes[f.Code] || s.db.findFacility(f.Code) != nil {
			return repository.ErrDuplicate
		}
		if f.SiteID != "" && s.db.sites[f.SiteID] == nil {
			return repository.ErrNotFound
		}
		codes[f.Code] = true
	}
	for _, f := range fs {
		cp := *f
		s.db.facilities[f.ID] = &cp
		if site := s.db.sites[f.SiteID]; site != nil {
			site.FacilityIDs = append(site.FacilityIDs, f.ID)
		}
	}
	return nil
}

func (s memFacilities) DeleteMany(_ context.Context, ids []string) (int, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, b := range s.db.bookings {
		for _, id := range ids {
			if b.FacilityID == id {
				return 0, repository.ErrInUse
			}
		}
	}
	n := 0
	for _, id := range ids {
		f := s.db.facilities[id]
		if f == nil {
			continue
		}
		if site := s.db.sites[f.SiteID]; site != nil {
			site.FacilityIDs = without(site.FacilityIDs, id)
		}
		delete(s.db.facilities, id)
		n++
	}
	return n, nil
}

func without(ids []string, drop string) []string {
	out := ids[:0:0]
	for _, id := range ids {
		if id != drop {
			out = append(out, id)
		}
	}
	return out
}

func (s memFacilities) SportCounts(_ context.Context, facilityID string) ([]model.SportCount, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	return s.db.sportCounts(facilityID), nil
}

type memPayments struct{ db *memDB }

func (s memPayments) GetByBooking(_ context.Context, bookingID string) (*model.Payment, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	p := s.db.paymentOf(bookingID)
	if p == nil {
		return nil, repository.ErrNotFound
	}
	cp := *p
	return &cp, nil
}

func (s memPayments) GetByTransaction(_ context.Context, txnID string) (*model.Payment, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, p := range s.db.payments {
		if p.TransactionID == txnID {
			cp := *p
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s memPayments) SetGatewayRef(_ context.Context, txnID, ref, method string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, p := range s.db.payments {
		if p.TransactionID == txnID {
			p.GatewayRef, p.Method = ref, method
			return nil
		}
	}
	return repository.ErrNotFound
}

type memSites struct{ db *memDB }

func (s memSites) Create(_ context.Context, site *model.Site) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, cur := range s.db.sites {
		if cur.Code == site.Code {
			return repository.ErrDuplicate
		}
	}
	cp := *site
	s.db.sites[site.ID] = &cp
	return nil
}

func (s memSites) Get(_ context.Context, idOrCode string) (*model.Site, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, cur := range s.db.sites {
		if cur.ID == idOrCode || cur.Code == idOrCode {
			cp := *cur
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (s memSites) List(_ context.Context, activeOnly bool) ([]model.Site, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	var out []model.Site
	for _, cur := range s.db.sites {
		if !activeOnly || cur.IsActive {
			out = append(out, *cur)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (s memSites) Update(_ context.Context, site *model.Site) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if s.db.sites[site.ID] == nil {
		return repository.ErrNotFound
	}
	cp := *site
	s.db.sites[site.ID] = &cp
	return nil
}

func (s memSites) ToggleActive(_ context.Context, id string) (bool, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	for _, cur := range s.db.sites {
		if cur.ID == id || cur.Code == id {
			cur.IsActive = !cur.IsActive
			return cur.IsActive, nil
		}
	}
	return false, repository.ErrNotFound
}

func (s memSites) Delete(_ context.Context, id string) error {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	if s.db.sites[id] == nil {
		return repository.ErrNotFound
	}
	for _, b := range s.db.bookings {
		if b.SiteID == id && (b.Status == model.StatusPending || b.Status.Occupies()) {
			return repository.ErrInUse
		}
	}
	for _, f := range s.db.facilities {
		if f.SiteID == id {
			f.SiteID = ""
		}
	}
	delete(s.db.sites, id)
	return nil
}

type memUsers struct{ db *memDB }

func (s memUsers) List(_ context.Context, f model.UserFilter) ([]model.User, int, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	needle := strings.ToLower(f.Search)
	var all []model.User
	for _, u := range s.db.users {
		if needle == "" || strings.Contains(strings.ToLower(u.Name), needle) || strings.Contains(strings.ToLower(u.Email), needle) {
			all = append(all, *u)
		}
	}
	sort.Slice(all, func(i, j int) bool {
		if f.Desc {
			i, j = j, i
		}
		switch f.SortBy {
		case "name":
			return all[i].Name < all[j].Name
		case "email":
			return all[i].Email < all[j].Email
		}
		return all[i].CreatedAt.Before(all[j].CreatedAt)
	})
	total := len(all)
	from := (f.Page - 1) * f.Limit
	if from > total {
		from = total
	}
	to := from + f.Limit
	if to > total {
		to = total
	}
	return all[from:to], total, nil
}

func (s memUsers) Get(_ context.Context, id string) (*model.User, error) {
	s.db.mu.Lock()
	defer s.db.mu.Unlock()
	u := s.db.users[id]
	if u == nil {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

// recorder captures emitted events and queued notifications.
type recorder struct {
	mu       sync.Mutex
	events   []events.Event
	messages []notify.Message
}

func (r *recorder) Emit(_ context.Context, e events.Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return nil
}

func (r *recorder) Send(m notify.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, m)
}

func (r *recorder) types() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.events))
	for i, e := range r.events {
		out[i] = e.Type
	}
	return out
}

// fakeGateway returns canned payments keyed by provider id.
type fakeGateway struct {
	payments map[string]*gateway.PaymentInfo
	orders   []gateway.Order
}

func (g *fakeGateway) CreateOrder(_ context.Context, o gateway.Order) (*gateway.Checkout, error) {
	g.orders = append(g.orders, o)
	return &gateway.Checkout{OrderID: "pref-" + o.TransactionID, CheckoutURL: "https://pay.example/" + o.TransactionID}, nil
}

func (g *fakeGateway) GetPayment(_ context.Context, id string) (*gateway.PaymentInfo, error) {
	info, ok := g.payments[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return info, nil
}

// clock is a settable time source.
type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Set(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

// fixture wires every service onto one memDB.
type fixture struct {
	db       *memDB
	clock    *clock
	rec      *recorder
	gw       *fakeGateway
	bookings *BookingService
	payments *PaymentService
	facility *FacilityService
	sites    *SiteService
}

func newFixture() *fixture {
	db := newMemDB()
	clk := &clock{now: time.Date(2026, 3, 9, 8, 0, 0, 0, time.UTC)}
	rec := &recorder{}
	gw := &fakeGateway{payments: map[string]*gateway.PaymentInfo{}}
	log := zerolog.Nop()

	bookings := NewBookingService(BookingDeps{
		Bookings:   memBookings{db},
		Facilities: memFacilities{db},
		Users:      memUsers{db},
		Emitter:    rec,
		Notifier:   rec,
		Log:        log,
		Location:   time.UTC,
		Now:        clk.Now,
	})
	payments := NewPaymentService(PaymentDeps{
		Bookings: memBookings{db},
		Payments: memPayments{db},
		Users:    memUsers{db},
		Gateway:  gw,
		Emitter:  rec,
		Notifier: rec,
		Log:      log,
		Now:      clk.Now,
	})
	facility := NewFacilityService(memFacilities{db}, memSites{db}, memBookings{db}, time.UTC, log)
	facility.now = clk.Now
	sites := NewSiteService(memSites{db}, log)
	sites.now = clk.Now

	db.sites["s1"] = &model.Site{ID: "s1", Code: "DHA", Name: "DHA Arena", IsActive: true}
	db.facilities["f1"] = &model.Facility{
		ID:       "f1",
		Code:     "COURT-1",
		SiteID:   "s1",
		Name:     "Court 1",
		Sports:   []model.SportPrice{{Sport: "tennis", BasePrice: 500}, {Sport: "padel", BasePrice: 800}},
		IsActive: true,
		WeeklySlots: model.WeeklySlots{
			"tuesday": {Mode: model.ModePattern, Blocks: []model.Block{{From: "09:00", To: "12:00", DurationMin: 60}}},
		},
	}
	db.users["u1"] = &model.User{ID: "u1", Name: "Ayesha", Email: "ayesha@example.com", Role: model.RoleUser}
	db.users["u2"] = &model.User{ID: "u2", Name: "Bilal", Email: "bilal@example.com", Role: model.RoleUser}

	return &fixture{db: db, clock: clk, rec: rec, gw: gw, bookings: bookings, payments: payments, facility: facility, sites: sites}
}
