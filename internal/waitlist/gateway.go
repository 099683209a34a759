package waitlist

import (
	"context"

	"github.com/google/uuid"
)

// Notification template ids understood by the gateway implementations.
const (
	TemplateSlotOffer      = "waitlist_slot_offer"
	TemplateOfferConfirmed = "waitlist_offer_confirmed"
)

// NotificationGateway delivers one message per call, at most once. The
// lifecycle manager is responsible for never calling it twice for the same
// offer event; the per-offer NotifiedAt marker backs that up.
type NotificationGateway interface {
	Send(ctx context.Context, recipient, templateID string, params map[string]string) (providerMessageID string, err error)
}

// AppointmentBooker creates the real appointment when an offer is accepted.
// The scheduling system behind it is out of this core's hands; it only
// receives the winning entry/offer pair and returns a reference.
type AppointmentBooker interface {
	Book(ctx context.Context, entry *Entry, offer *Offer) (appointmentID string, err error)
}

// StaticBooker is an AppointmentBooker that mints opaque references without
// calling out anywhere. Used in dev and tests.
type StaticBooker struct{}

// Book returns a fresh appointment reference.
func (StaticBooker) Book(ctx context.Context, entry *Entry, offer *Offer) (string, error) {
	return "appt_" + uuid.NewString(), nil
}
