// Package model defines the core domain types for the facility booking system.
package model

import (
	"encoding/json"
	"time"
)

// BookingStatus is the lifecycle state of a booking.
type BookingStatus string

const (
	StatusPending   BookingStatus = "pending"
	StatusConfirmed BookingStatus = "confirmed"
	StatusActive    BookingStatus = "active"
	StatusCompleted BookingStatus = "completed"
	StatusCancelled BookingStatus = "cancelled"
)

// Valid reports whether s is a known booking status.
func (s BookingStatus) Valid() bool {
	switch s {
	case StatusPending, StatusConfirmed, StatusActive, StatusCompleted, StatusCancelled:
		return true
	}
	return false
}

// Occupies reports whether a booking in this state holds its facility window.
func (s BookingStatus) Occupies() bool {
	return s == StatusConfirmed || s == StatusActive
}

// PaymentStatus is the payment state carried on a booking.
type PaymentStatus string

const (
	PaymentPending  PaymentStatus = "pending"
	PaymentPaid     PaymentStatus = "paid"
	PaymentFailed   PaymentStatus = "failed"
	PaymentRefunded PaymentStatus = "refunded"
)

// TransactionStatus is the state of a payment record.
type TransactionStatus string

const (
	TxnPending   TransactionStatus = "pending"
	TxnCompleted TransactionStatus = "completed"
	TxnFailed    TransactionStatus = "failed"
	TxnRefunded  TransactionStatus = "refunded"
)

// Role is the caller role carried in the auth token.
type Role string

const (
	RoleUser        Role = "user"
	RoleAdmin       Role = "admin"
	RoleInvestor    Role = "investor"
	RoleSiteManager Role = "site_manager"
)

// Valid reports whether r is a known role.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAdmin, RoleInvestor, RoleSiteManager:
		return true
	}
	return false
}

// Schedule modes for a weekday entry.
const (
	ModeExplicit = "explicit"
	ModePattern  = "pattern"
)

// SportPrice is one sport offered by a facility.
type SportPrice struct {
	Sport     string  `json:"sport"`
	BasePrice float64 `json:"base_price"`
}

// Slot is an explicit start time ("HH:MM") with a length in minutes.
type Slot struct {
	Start       string `json:"start"`
	DurationMin int    `json:"duration_min"`
}

// Block is a pattern-mode rule: from/to is split into DurationMin windows.
// Date ("YYYY-MM-DD") pins the block to a single day. Day (day of month) and
// Month (number or name) narrow a recurring block.
type Block struct {
	Date        string `json:"date,omitempty"`
	Day         string `json:"day,omitempty"`
	Month       string `json:"month,omitempty"`
	From        string `json:"from"`
	To          string `json:"to"`
	DurationMin int    `json:"duration_min"`
}

// DaySchedule is the template for one weekday.
type DaySchedule struct {
	Mode   string  `json:"mode"`
	Slots  []Slot  `json:"slots,omitempty"`
	Blocks []Block `json:"blocks,omitempty"`
}

// WeeklySlots maps lower-case weekday names ("monday") to their template.
type WeeklySlots map[string]DaySchedule

// BookingRules bound the durations a facility accepts.
type BookingRules struct {
	MinDurationMin   int   `json:"min_duration_min,omitempty"`
	MaxDurationMin   int   `json:"max_duration_min,omitempty"`
	AllowedDurations []int `json:"allowed_durations,omitempty"`
}

// SportCount is a per-sport booking counter.
type SportCount struct {
	Sport        string `json:"sport"`
	BookingCount int    `json:"booking_count"`
}

// Facility is a bookable court, pitch or hall belonging to a site.
type Facility struct {
	ID            string       `json:"id"`
	Code          string       `json:"facility_code"`
	SiteID        string       `json:"site_id"`
	Name          string       `json:"name"`
	Description   string       `json:"description"`
	Sports        []SportPrice `json:"sports"`
	WeeklySlots   WeeklySlots  `json:"weekly_slots"`
	BookingRules  BookingRules `json:"booking_rules"`
	TotalBookings int          `json:"total_bookings"`
	SportBookings []SportCount `json:"sport_bookings"`
	IsActive      bool         `json:"is_active"`
	CreatedAt     time.Time    `json:"created_at"`
	UpdatedAt     time.Time    `json:"updated_at"`
}

// BasePrice returns the price of sport at the facility.
func (f *Facility) BasePrice(sport string) (float64, bool) {
	for _, s := range f.Sports {
		if s.Sport == sport {
			return s.BasePrice, true
		}
	}
	return 0, false
}

// Equipment is an item rented alongside a booking.
type Equipment struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Cost     float64 `json:"cost"`
}

// Cancellation records who cancelled a booking and what was refunded.
type Cancellation struct {
	Reason       string    `json:"reason"`
	CancelledAt  time.Time `json:"cancelled_at"`
	CancelledBy  string    `json:"cancelled_by"`
	RefundAmount float64   `json:"refund_amount"`
}

// Booking is a reservation of a facility window for one sport.
type Booking struct {
	ID              string        `json:"id"`
	Code            string        `json:"booking_code"`
	UserID          string        `json:"user_id"`
	FacilityID      string        `json:"facility_id"`
	SiteID          string        `json:"site_id"`
	Sport           string        `json:"sport"`
	BookingDate     string        `json:"booking_date"`
	StartTime       time.Time     `json:"start_time"`
	EndTime         time.Time     `json:"end_time"`
	DurationMinutes int           `json:"duration_minutes"`
	TotalAmount     float64       `json:"total_amount"`
	PaymentStatus   PaymentStatus `json:"payment_status"`
	PaymentMethod   string        `json:"payment_method"`
	PaymentID       string        `json:"payment_id"`
	Status          BookingStatus `json:"booking_status"`
	CheckInTime     *time.Time    `json:"check_in_time,omitempty"`
	CheckOutTime    *time.Time    `json:"check_out_time,omitempty"`
	AutoCheckIn     bool          `json:"auto_check_in"`
	AutoCheckOut    bool          `json:"auto_check_out"`
	ActualDuration  *int          `json:"actual_duration,omitempty"`
	Notes           string        `json:"notes,omitempty"`
	Equipment       []Equipment   `json:"equipment_used"`
	Cancellation    *Cancellation `json:"cancellation,omitempty"`
	LateFee         float64       `json:"late_fee"`
	Rating          *int          `json:"rating,omitempty"`
	Review          string        `json:"review,omitempty"`
	ReviewedAt      *time.Time    `json:"reviewed_at,omitempty"`
	CreatedAt       time.Time     `json:"created_at"`
	UpdatedAt       time.Time     `json:"updated_at"`
}

// Payment is the single payment record paired with a booking.
type Payment struct {
	ID            string            `json:"id"`
	UserID        string            `json:"user_id"`
	FacilityID    string            `json:"facility_id"`
	SiteID        string            `json:"site_id"`
	BookingID     string            `json:"booking_id"`
	Sport         string            `json:"sport"`
	Amount        float64           `json:"amount"`
	Currency      string            `json:"currency"`
	Method        string            `json:"payment_method"`
	Status        TransactionStatus `json:"status"`
	TransactionID string            `json:"transaction_id"`
	GatewayRef    string            `json:"gateway_ref,omitempty"`
	PaidAt        *time.Time        `json:"paid_at,omitempty"`
	CreatedAt     time.Time         `json:"created_at"`
	UpdatedAt     time.Time         `json:"updated_at"`
}

// TransactionID derives the payment transaction id for a booking code.
func TransactionID(bookingCode string) string {
	return "txn_" + bookingCode
}

// Address is a postal address.
type Address struct {
	Street  string `json:"street"`
	City    string `json:"city"`
	State   string `json:"state"`
	ZipCode string `json:"zip_code"`
	Country string `json:"country"`
}

// Site groups facilities at one location.
type Site struct {
	ID          string    `json:"id"`
	Code        string    `json:"site_id"`
	Name        string    `json:"site_name"`
	Address     Address   `json:"site_address"`
	FacilityIDs []string  `json:"facilities"`
	InvestorIDs []string  `json:"investors"`
	ManagerIDs  []string  `json:"site_managers"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// User is the minimal profile needed for notifications.
type User struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Phone     string    `json:"phone"`
	Role      Role      `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

// ─── Request / response payloads ──────────────────────────────────────────────

// CreateBookingRequest is the payload for booking a facility window.
type CreateBookingRequest struct {
	FacilityID      string      `json:"facility_id"`
	Sport           string      `json:"sport"`
	Date            string      `json:"date"`
	StartTime       string      `json:"start_time"`
	DurationMinutes int         `json:"duration_minutes"`
	Equipment       []Equipment `json:"equipment_used"`
	Notes           string      `json:"notes"`
	PaymentMethod   string      `json:"payment_method"`
	AutoCheckIn     bool        `json:"auto_check_in"`
	AutoCheckOut    bool        `json:"auto_check_out"`
}

// AdminBookingRequest lets a privileged caller book on behalf of a user.
type AdminBookingRequest struct {
	CreateBookingRequest
	UserID string        `json:"user_id"`
	Status BookingStatus `json:"booking_status"`
	Free   bool          `json:"free"`
}

// CancelRequest carries the reason for a cancellation.
type CancelRequest struct {
	Reason string `json:"reason"`
}

// ReviewRequest rates a completed booking.
type ReviewRequest struct {
	Rating int    `json:"rating"`
	Review string `json:"review"`
}

// PaymentRequest reports a payment outcome for a booking.
type PaymentRequest struct {
	PaymentMethod    string `json:"payment_method"`
	GatewayPaymentID string `json:"gateway_payment_id"`
}

// CheckAvailabilityRequest asks whether a window is free.
type CheckAvailabilityRequest struct {
	FacilityID       string    `json:"facility_id"`
	StartTime        time.Time `json:"start_time"`
	EndTime          time.Time `json:"end_time"`
	ExcludeBookingID string    `json:"exclude_booking_id"`
}

// AvailabilityResult is the outcome of a window check.
type AvailabilityResult struct {
	Available bool      `json:"available"`
	Conflicts []Booking `json:"conflicts"`
}

// OpenSlot is a free window on a facility's calendar.
type OpenSlot struct {
	StartTime   time.Time `json:"start_time"`
	EndTime     time.Time `json:"end_time"`
	DurationMin int       `json:"duration_min"`
}

// DayAvailability lists the free windows for a facility on one date.
type DayAvailability struct {
	FacilityID string     `json:"facility_id"`
	Date       string     `json:"date"`
	Slots      []OpenSlot `json:"available_slots"`
}

// BookingFilter narrows booking listings.
type BookingFilter struct {
	UserID     string
	FacilityID string
	SiteID     string
	Status     BookingStatus
	Upcoming   bool
	Now        time.Time
	Page       int
	Limit      int
}

// BookingPage is one page of bookings.
type BookingPage struct {
	Bookings []Booking `json:"bookings"`
	Total    int       `json:"total"`
	Page     int       `json:"page"`
	Limit    int       `json:"limit"`
}

// FacilityStats summarises bookings for a facility.
type FacilityStats struct {
	FacilityID    string         `json:"facility_id"`
	TotalBookings int            `json:"total_bookings"`
	SportBookings []SportCount   `json:"sport_bookings"`
	ByStatus      map[string]int `json:"by_status"`
	Revenue       float64        `json:"revenue"`
}

// FacilityRequest is the payload for creating or updating a facility.
type FacilityRequest struct {
	Code         string       `json:"facility_code"`
	SiteID       string       `json:"site_id"`
	Name         string       `json:"name"`
	Description  string       `json:"description"`
	Sports       []SportPrice `json:"sports"`
	WeeklySlots  WeeklySlots  `json:"weekly_slots"`
	BookingRules BookingRules `json:"booking_rules"`
	IsActive     *bool        `json:"is_active"`
}

// Bulk facility operations.
const (
	BulkCreate = "create"
	BulkDelete = "delete"
)

// BulkFacilityRequest creates facilities (Data is a list of FacilityRequest)
// or deletes them (Data is a list of ids or codes) in one transaction.
type BulkFacilityRequest struct {
	Operation string          `json:"operation"`
	Data      json.RawMessage `json:"data"`
}

// BulkFacilityResult reports the outcome of a bulk operation.
type BulkFacilityResult struct {
	Operation  string     `json:"operation"`
	Count      int        `json:"count"`
	Facilities []Facility `json:"facilities,omitempty"`
}

// UserFilter narrows the admin user listing.
type UserFilter struct {
	Search string
	SortBy string
	Desc   bool
	Page   int
	Limit  int
}

// UserPage is one page of users.
type UserPage struct {
	Users []User `json:"users"`
	Total int    `json:"total"`
	Page  int    `json:"page"`
	Limit int    `json:"limit"`
}

// SiteRequest is the payload for creating or updating a site.
type SiteRequest struct {
	Code        string   `json:"site_id"`
	Name        string   `json:"site_name"`
	Address     Address  `json:"site_address"`
	InvestorIDs []string `json:"investors"`
	ManagerIDs  []string `json:"site_managers"`
}

// OrderResponse is returned when a gateway checkout is opened.
type OrderResponse struct {
	TransactionID string  `json:"transaction_id"`
	OrderID       string  `json:"order_id"`
	CheckoutURL   string  `json:"checkout_url,omitempty"`
	Amount        float64 `json:"amount"`
	Currency      string  `json:"currency"`
}

// ErrorResponse is a standard JSON error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
