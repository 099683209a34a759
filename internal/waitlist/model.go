package waitlist

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Tier is the patient membership level used as a ranking weight.
type Tier string

const (
	TierPlatinum Tier = "platinum"
	TierGold     Tier = "gold"
	TierSilver   Tier = "silver"
)

// Priority is the operator-assigned urgency label on an entry. It is
// reported on dashboards but does not enter the ranking score.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// EntryStatus tracks the lifecycle of a waitlist entry.
type EntryStatus string

const (
	EntryActive  EntryStatus = "active"
	EntryOffered EntryStatus = "offered"
	EntryBooked  EntryStatus = "booked"
	EntryRemoved EntryStatus = "removed"
	EntryExpired EntryStatus = "expired"
)

// OfferStatus tracks the lifecycle of a slot offer.
type OfferStatus string

const (
	OfferPending    OfferStatus = "pending"
	OfferAccepted   OfferStatus = "accepted"
	OfferDeclined   OfferStatus = "declined"
	OfferExpired    OfferStatus = "expired"
	OfferSuperseded OfferStatus = "superseded"
)

// Entry represents one patient waiting for an opening.
// All writers must re-read by id and supply the version they read;
// the store rejects stale versions.
type Entry struct {
	ID                     uuid.UUID   `json:"id"`
	PatientID              uuid.UUID   `json:"patient_id"`
	PatientName            string      `json:"patient_name"`
	Phone                  string      `json:"phone"`
	Email                  string      `json:"email,omitempty"`
	ServiceID              string      `json:"service_id"`
	PractitionerPreference string      `json:"practitioner_preference,omitempty"`
	Tier                   Tier        `json:"tier"`
	Priority               Priority    `json:"priority"`
	AvailabilityStart      time.Time   `json:"availability_start"`
	AvailabilityEnd        time.Time   `json:"availability_end"`
	WaitingSince           time.Time   `json:"waiting_since"`
	Status                 EntryStatus `json:"status"`
	OfferCount             int         `json:"offer_count"`
	ResponseCount          int         `json:"response_count"`
	TotalResponseSeconds   float64     `json:"total_response_seconds"`
	Version                int64       `json:"version"`
	CreatedAt              time.Time   `json:"created_at"`
	UpdatedAt              time.Time   `json:"updated_at"`
}

// AvgResponseSeconds returns the mean offer-response latency for the entry,
// or 0 when the patient has never responded.
func (e *Entry) AvgResponseSeconds() float64 {
	if e.ResponseCount == 0 {
		return 0
	}
	return e.TotalResponseSeconds / float64(e.ResponseCount)
}

// RecordResponse folds one response latency into the entry's history.
func (e *Entry) RecordResponse(latency time.Duration) {
	e.ResponseCount++
	e.TotalResponseSeconds += latency.Seconds()
}

// Offer represents one time-bounded offer of a slot to an entry. The token
// is the sole credential for the public response endpoint.
type Offer struct {
	ID                uuid.UUID   `json:"id"`
	EntryID           uuid.UUID   `json:"entry_id"`
	Token             string      `json:"-"`
	ServiceID         string      `json:"service_id"`
	PractitionerID    string      `json:"practitioner_id"`
	SlotStart         time.Time   `json:"slot_start"`
	SlotEnd           time.Time   `json:"slot_end"`
	AppointmentID     string      `json:"appointment_id,omitempty"`
	Status            OfferStatus `json:"status"`
	SentAt            time.Time   `json:"sent_at"`
	ExpiresAt         time.Time   `json:"expires_at"`
	RespondedAt       *time.Time  `json:"responded_at,omitempty"`
	NotifiedAt        *time.Time  `json:"notified_at,omitempty"`
	ProviderMessageID string      `json:"provider_message_id,omitempty"`
	Version           int64       `json:"version"`
}

// Slot returns the slot identity the offer was issued for.
func (o *Offer) Slot() Slot {
	return Slot{
		ServiceID:      o.ServiceID,
		PractitionerID: o.PractitionerID,
		SlotStart:      o.SlotStart,
		SlotEnd:        o.SlotEnd,
	}
}

// Slot is a caller-supplied opening. It is ephemeral: the scheduling system
// owns the slot itself, this core only tracks reservation ownership via the
// resource version.
type Slot struct {
	ServiceID       string    `json:"service_id"`
	PractitionerID  string    `json:"practitioner_id"`
	SlotStart       time.Time `json:"slot_start"`
	SlotEnd         time.Time `json:"slot_end"`
	ResourceVersion int64     `json:"resource_version"`
}

// Key identifies the slot across processes.
func (s Slot) Key() string {
	return fmt.Sprintf("%s|%s|%s", s.ServiceID, s.PractitionerID, s.SlotStart.UTC().Format(time.RFC3339))
}

// JoinRequest carries the fields needed to place a patient on the waitlist.
type JoinRequest struct {
	PatientID              uuid.UUID `json:"patient_id"`
	PatientName            string    `json:"patient_name"`
	Phone                  string    `json:"phone"`
	Email                  string    `json:"email"`
	ServiceID              string    `json:"service_id"`
	PractitionerPreference string    `json:"practitioner_preference"`
	Tier                   Tier      `json:"tier"`
	Priority               Priority  `json:"priority"`
	AvailabilityStart      time.Time `json:"availability_start"`
	AvailabilityEnd        time.Time `json:"availability_end"`
}

// Validate checks the request at the boundary.
func (r *JoinRequest) Validate() error {
	if r.PatientID == uuid.Nil {
		return fmt.Errorf("%w: patient_id is required", ErrInvalidEntry)
	}
	if strings.TrimSpace(r.Phone) == "" {
		return fmt.Errorf("%w: phone is required", ErrInvalidEntry)
	}
	if strings.TrimSpace(r.ServiceID) == "" {
		return fmt.Errorf("%w: service_id is required", ErrInvalidEntry)
	}
	switch r.Tier {
	case TierPlatinum, TierGold, TierSilver:
	default:
		return fmt.Errorf("%w: unknown tier %q", ErrInvalidEntry, r.Tier)
	}
	switch r.Priority {
	case PriorityHigh, PriorityMedium, PriorityLow, "":
	default:
		return fmt.Errorf("%w: unknown priority %q", ErrInvalidEntry, r.Priority)
	}
	if !r.AvailabilityEnd.IsZero() && !r.AvailabilityEnd.After(r.AvailabilityStart) {
		return fmt.Errorf("%w: availability window must end after it starts", ErrInvalidEntry)
	}
	return nil
}

// Eligible reports whether the entry can receive an offer for the slot:
// active status, matching service, practitioner preference satisfied, and
// availability window overlapping the slot.
func (e *Entry) Eligible(slot Slot) bool {
	if e.Status != EntryActive {
		return false
	}
	if e.ServiceID != slot.ServiceID {
		return false
	}
	if e.PractitionerPreference != "" && e.PractitionerPreference != slot.PractitionerID {
		return false
	}
	if !e.AvailabilityStart.IsZero() && slot.SlotEnd.Before(e.AvailabilityStart) {
		return false
	}
	if !e.AvailabilityEnd.IsZero() && slot.SlotStart.After(e.AvailabilityEnd) {
		return false
	}
	return true
}

// RespondAction is a patient's answer to an offer.
type RespondAction string

const (
	ActionAccept  RespondAction = "accept"
	ActionDecline RespondAction = "decline"
)

// RespondResult is returned from RespondToOffer.
type RespondResult struct {
	Offer         *Offer `json:"offer"`
	AppointmentID string `json:"appointment_id,omitempty"`
	// Cascaded is true when declining triggered a follow-up offer to the
	// next eligible entry.
	Cascaded bool `json:"cascaded"`
}

// DeclinePolicy controls what happens to an entry after it declines an offer.
type DeclinePolicy string

const (
	// DeclineRequeue returns the entry to active so it stays eligible for
	// other openings; the incremented offer count discourages re-offering
	// it too soon.
	DeclineRequeue DeclinePolicy = "requeue"
	// DeclineRemove drops the entry from the waitlist entirely.
	DeclineRemove DeclinePolicy = "remove"
)
