package waitlist

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"

	"github.com/radiancehq/medspa-waitlist/internal/observability/metrics"
	"github.com/radiancehq/medspa-waitlist/pkg/logging"
)

var tracer = otel.Tracer("waitlist.internal.lifecycle")

// Config holds the lifecycle manager's tunables.
type Config struct {
	// OfferTTL is how long a patient has to respond to an offer.
	OfferTTL time.Duration
	// NotifyTimeout bounds every notification gateway call. No reservation
	// is held while waiting on it; state is committed first.
	NotifyTimeout time.Duration
	// DeclinePolicy decides whether a declining entry stays on the
	// waitlist for other openings.
	DeclinePolicy DeclinePolicy
	// Score fixes the ranking weights.
	Score ScoreConfig
}

// DefaultConfig returns the production lifecycle settings.
func DefaultConfig() Config {
	return Config{
		OfferTTL:      30 * time.Minute,
		NotifyTimeout: 10 * time.Second,
		DeclinePolicy: DeclineRequeue,
		Score:         DefaultScoreConfig(),
	}
}

// ServiceDeps bundles the collaborators the lifecycle manager orchestrates.
type ServiceDeps struct {
	Store      Store
	Guard      Guard
	Gateway    NotificationGateway
	Booker     AppointmentBooker
	Tokens     TokenGenerator
	Clock      Clock
	TokenCache *TokenCache
	Metrics    *metrics.WaitlistMetrics
	Logger     *logging.Logger
}

// Service drives the entry → offer → accept/decline/expire → cascade state
// machine. It owns no slot state of its own: every slot mutation goes
// through the Guard, every record mutation through the Store's version CAS.
type Service struct {
	store   Store
	guard   Guard
	gateway NotificationGateway
	booker  AppointmentBooker
	tokens  TokenGenerator
	clock   Clock
	cache   *TokenCache
	metrics *metrics.WaitlistMetrics
	cfg     Config
	logger  *logging.Logger
}

// NewService constructs the lifecycle manager.
func NewService(deps ServiceDeps, cfg Config) *Service {
	if deps.Store == nil {
		panic("waitlist: store required")
	}
	if deps.Guard == nil {
		panic("waitlist: guard required")
	}
	if deps.Tokens == nil {
		deps.Tokens = NewTokenGenerator()
	}
	if deps.Clock == nil {
		deps.Clock = SystemClock()
	}
	if deps.Booker == nil {
		deps.Booker = StaticBooker{}
	}
	if deps.Logger == nil {
		deps.Logger = logging.Default()
	}
	if cfg.OfferTTL <= 0 {
		cfg.OfferTTL = 30 * time.Minute
	}
	if cfg.NotifyTimeout <= 0 {
		cfg.NotifyTimeout = 10 * time.Second
	}
	if cfg.DeclinePolicy == "" {
		cfg.DeclinePolicy = DeclineRequeue
	}
	if cfg.Score.TierWeights == nil {
		cfg.Score = DefaultScoreConfig()
	}
	return &Service{
		store:   deps.Store,
		guard:   deps.Guard,
		gateway: deps.Gateway,
		booker:  deps.Booker,
		tokens:  deps.Tokens,
		clock:   deps.Clock,
		cache:   deps.TokenCache,
		metrics: deps.Metrics,
		cfg:     cfg,
		logger:  deps.Logger,
	}
}

// JoinWaitlist validates the request and places the patient on the waitlist.
func (s *Service) JoinWaitlist(ctx context.Context, req *JoinRequest) (*Entry, error) {
	ctx, span := tracer.Start(ctx, "waitlist.join")
	defer span.End()

	if err := req.Validate(); err != nil {
		return nil, err
	}

	now := s.clock.Now()
	priority := req.Priority
	if priority == "" {
		priority = PriorityMedium
	}
	entry := &Entry{
		ID:                     uuid.New(),
		PatientID:              req.PatientID,
		PatientName:            req.PatientName,
		Phone:                  req.Phone,
		Email:                  req.Email,
		ServiceID:              req.ServiceID,
		PractitionerPreference: req.PractitionerPreference,
		Tier:                   req.Tier,
		Priority:               priority,
		AvailabilityStart:      req.AvailabilityStart,
		AvailabilityEnd:        req.AvailabilityEnd,
		WaitingSince:           now,
		Status:                 EntryActive,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	if err := s.store.CreateEntry(ctx, entry); err != nil {
		span.RecordError(err)
		return nil, err
	}
	span.SetAttributes(attribute.String("waitlist.entry_id", entry.ID.String()))
	s.logger.Info("waitlist: entry joined",
		"entry_id", entry.ID, "service_id", entry.ServiceID, "tier", entry.Tier)
	return entry, nil
}

// OfferSlot offers a reported opening to the highest-scoring eligible entry.
// Returns ErrConflict when another offer cycle already holds the slot and
// ErrNoEligibleEntries when nobody on the waitlist matches it.
func (s *Service) OfferSlot(ctx context.Context, slot Slot) (*Offer, error) {
	ctx, span := tracer.Start(ctx, "waitlist.offer_slot")
	defer span.End()
	span.SetAttributes(attribute.String("waitlist.slot_key", slot.Key()))

	offer, err := s.offerNext(ctx, slot, slot.ResourceVersion)
	switch {
	case err == nil:
		s.metrics.ObserveOffer("created")
	case errors.Is(err, ErrNoEligibleEntries):
		s.metrics.ObserveOffer("no_candidates")
	case errors.Is(err, ErrConflict):
		s.metrics.ObserveOffer("conflict")
	default:
		s.metrics.ObserveOffer("error")
		span.RecordError(err)
	}
	return offer, err
}

// offerNext is the single offer cycle shared by OfferSlot and cascades:
// rank the current eligible entries, claim the slot, persist the offer, then
// notify. The reservation is committed to the store before any notification
// I/O happens.
func (s *Service) offerNext(ctx context.Context, slot Slot, expectedVersion int64) (*Offer, error) {
	now := s.clock.Now()

	candidates, err := s.store.ListEligible(ctx, slot)
	if err != nil {
		return nil, fmt.Errorf("waitlist: list eligible: %w", err)
	}
	if len(candidates) == 0 {
		return nil, ErrNoEligibleEntries
	}
	ranked := s.cfg.Score.Rank(candidates, now)

	if _, err := s.guard.TryReserve(ctx, slot, expectedVersion); err != nil {
		return nil, err
	}

	var (
		entry *Entry
		offer *Offer
	)
	for _, cand := range ranked {
		e, err := s.claimEntry(ctx, cand.ID, slot)
		if err != nil {
			if errors.Is(err, ErrEntryNotActive) || errors.Is(err, ErrConflict) || errors.Is(err, ErrNotFound) {
				// Entry was removed or claimed between ranking and persist.
				continue
			}
			s.releaseQuietly(ctx, slot)
			return nil, err
		}

		token, err := s.tokens.Generate()
		if err != nil {
			s.unclaimEntry(ctx, e.ID)
			s.releaseQuietly(ctx, slot)
			return nil, err
		}
		o := &Offer{
			ID:             uuid.New(),
			EntryID:        e.ID,
			Token:          token,
			ServiceID:      slot.ServiceID,
			PractitionerID: slot.PractitionerID,
			SlotStart:      slot.SlotStart,
			SlotEnd:        slot.SlotEnd,
			Status:         OfferPending,
			SentAt:         now,
			ExpiresAt:      now.Add(s.cfg.OfferTTL),
		}
		if err := s.store.CreateOffer(ctx, o); err != nil {
			s.unclaimEntry(ctx, e.ID)
			s.releaseQuietly(ctx, slot)
			return nil, err
		}
		entry, offer = e, o
		break
	}
	if offer == nil {
		s.releaseQuietly(ctx, slot)
		return nil, ErrNoEligibleEntries
	}

	s.cache.Put(ctx, offer.Token, offer.ID, s.cfg.OfferTTL)
	s.logger.Info("waitlist: offer issued",
		"offer_id", offer.ID, "entry_id", entry.ID, "slot_key", slot.Key(),
		"expires_at", offer.ExpiresAt)

	// State is committed; notification happens last with its own deadline.
	s.notifyOffer(ctx, entry, offer)
	return offer, nil
}

// claimEntry re-reads the entry and transitions it active → offered with a
// bumped offer count. A removal that raced the ranking shows up here as
// ErrEntryNotActive and the candidate is skipped.
func (s *Service) claimEntry(ctx context.Context, id uuid.UUID, slot Slot) (*Entry, error) {
	e, err := s.store.GetEntry(ctx, id)
	if err != nil {
		return nil, err
	}
	if !e.Eligible(slot) {
		return nil, ErrEntryNotActive
	}
	e.Status = EntryOffered
	e.OfferCount++
	if err := s.store.UpdateEntry(ctx, e); err != nil {
		return nil, err
	}
	return e, nil
}

// unclaimEntry is the best-effort undo when offer persistence fails after
// the entry was already marked offered.
func (s *Service) unclaimEntry(ctx context.Context, id uuid.UUID) {
	_, err := s.mutateEntry(ctx, id, func(e *Entry) error {
		if e.Status != EntryOffered {
			return ErrEntryNotActive
		}
		e.Status = EntryActive
		return nil
	})
	if err != nil && !errors.Is(err, ErrEntryNotActive) {
		s.logger.Error("waitlist: failed to unclaim entry", "entry_id", id, "error", err)
	}
}

func (s *Service) releaseQuietly(ctx context.Context, slot Slot) {
	if _, err := s.guard.Release(ctx, slot); err != nil && !errors.Is(err, ErrConflict) {
		s.logger.Error("waitlist: failed to release slot", "slot_key", slot.Key(), "error", err)
	}
}

// notifyOffer delivers the offer message at most once per offer, keyed by
// the offer's NotifiedAt marker. Failure never rolls back the offer: the
// record is the source of truth and can be resent out-of-band.
func (s *Service) notifyOffer(ctx context.Context, entry *Entry, offer *Offer) {
	if s.gateway == nil || offer.NotifiedAt != nil {
		return
	}
	sendCtx, cancel := context.WithTimeout(ctx, s.cfg.NotifyTimeout)
	defer cancel()

	recipient := entry.Phone
	if recipient == "" {
		recipient = entry.Email
	}
	providerID, err := s.gateway.Send(sendCtx, recipient, TemplateSlotOffer, map[string]string{
		"patient_name": entry.PatientName,
		"service_id":   offer.ServiceID,
		"slot_start":   offer.SlotStart.Format(time.RFC3339),
		"expires_at":   offer.ExpiresAt.Format(time.RFC3339),
		"token":        offer.Token,
	})
	if err != nil {
		s.metrics.ObserveNotify("failed")
		s.logger.Error("waitlist: offer notification failed",
			"offer_id", offer.ID, "entry_id", entry.ID, "error", fmt.Errorf("%w: %v", ErrSendFailed, err))
		return
	}

	now := s.clock.Now()
	offer.NotifiedAt = &now
	offer.ProviderMessageID = providerID
	if err := s.store.UpdateOffer(ctx, offer); err != nil {
		s.logger.Error("waitlist: failed to record notification", "offer_id", offer.ID, "error", err)
	}
	s.metrics.ObserveNotify("sent")
}

// GetOfferByToken is the read-only lookup behind the public response page.
func (s *Service) GetOfferByToken(ctx context.Context, token string) (*Offer, *Entry, error) {
	offer, err := s.lookupOffer(ctx, token)
	if err != nil {
		return nil, nil, err
	}
	entry, err := s.store.GetEntry(ctx, offer.EntryID)
	if err != nil {
		return nil, nil, err
	}
	return offer, entry, nil
}

func (s *Service) lookupOffer(ctx context.Context, token string) (*Offer, error) {
	if id, ok := s.cache.Get(ctx, token); ok {
		if offer, err := s.store.GetOffer(ctx, id); err == nil {
			return offer, nil
		}
	}
	return s.store.GetOfferByToken(ctx, token)
}

// RespondToOffer applies a patient's accept or decline, authenticated solely
// by the offer token.
func (s *Service) RespondToOffer(ctx context.Context, token string, action RespondAction) (*RespondResult, error) {
	ctx, span := tracer.Start(ctx, "waitlist.respond")
	defer span.End()
	span.SetAttributes(attribute.String("waitlist.action", string(action)))

	if action != ActionAccept && action != ActionDecline {
		return nil, fmt.Errorf("%w: unknown action %q", ErrInvalidEntry, action)
	}

	offer, err := s.lookupOffer(ctx, token)
	if err != nil {
		s.metrics.ObserveResponse(string(action), "not_found")
		return nil, err
	}
	now := s.clock.Now()

	if offer.Status == OfferPending && now.After(offer.ExpiresAt) {
		// Detection is the transition: the offer expires now and its slot
		// cascades to the next entry.
		s.expireOffer(ctx, offer)
		s.metrics.ObserveResponse(string(action), "expired")
		return nil, ErrOfferExpired
	}
	if offer.Status != OfferPending {
		if offer.Status == OfferExpired {
			s.metrics.ObserveResponse(string(action), "expired")
			return nil, ErrOfferExpired
		}
		s.metrics.ObserveResponse(string(action), "already_responded")
		return nil, ErrAlreadyResponded
	}

	switch action {
	case ActionAccept:
		return s.accept(ctx, offer, now)
	default:
		return s.decline(ctx, offer, now)
	}
}

func (s *Service) accept(ctx context.Context, offer *Offer, now time.Time) (*RespondResult, error) {
	offer.Status = OfferAccepted
	offer.RespondedAt = &now
	if err := s.store.UpdateOffer(ctx, offer); err != nil {
		if errors.Is(err, ErrConflict) {
			// A sweep or double-submit got there first.
			s.metrics.ObserveResponse("accept", "already_responded")
			return nil, ErrAlreadyResponded
		}
		return nil, err
	}
	s.cache.Invalidate(ctx, offer.Token)

	latency := now.Sub(offer.SentAt)
	entry, err := s.mutateEntry(ctx, offer.EntryID, func(e *Entry) error {
		e.Status = EntryBooked
		e.RecordResponse(latency)
		return nil
	})
	if err != nil {
		return nil, err
	}

	// The hold becomes a permanent booking; it is never released.
	if err := s.guard.Confirm(ctx, offer.Slot()); err != nil {
		s.logger.Error("waitlist: confirm reservation", "offer_id", offer.ID, "error", err)
	}

	appointmentID, err := s.booker.Book(ctx, entry, offer)
	if err != nil {
		s.metrics.ObserveResponse("accept", "error")
		return nil, fmt.Errorf("waitlist: book appointment: %w", err)
	}
	offer.AppointmentID = appointmentID
	if err := s.store.UpdateOffer(ctx, offer); err != nil {
		s.logger.Error("waitlist: record appointment ref", "offer_id", offer.ID, "error", err)
	}

	s.metrics.ObserveResponse("accept", "ok")
	s.logger.Info("waitlist: offer accepted",
		"offer_id", offer.ID, "entry_id", entry.ID, "appointment_id", appointmentID,
		"response_seconds", latency.Seconds())
	return &RespondResult{Offer: offer, AppointmentID: appointmentID}, nil
}

func (s *Service) decline(ctx context.Context, offer *Offer, now time.Time) (*RespondResult, error) {
	offer.Status = OfferDeclined
	offer.RespondedAt = &now
	if err := s.store.UpdateOffer(ctx, offer); err != nil {
		if errors.Is(err, ErrConflict) {
			s.metrics.ObserveResponse("decline", "already_responded")
			return nil, ErrAlreadyResponded
		}
		return nil, err
	}
	s.cache.Invalidate(ctx, offer.Token)

	latency := now.Sub(offer.SentAt)
	_, err := s.mutateEntry(ctx, offer.EntryID, func(e *Entry) error {
		e.RecordResponse(latency)
		if s.cfg.DeclinePolicy == DeclineRemove {
			e.Status = EntryRemoved
		} else {
			// The entry stays eligible for other openings; the offer count
			// bump from the original cycle already discourages re-offering
			// it too soon.
			e.Status = EntryActive
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	slot := offer.Slot()
	newVersion, err := s.guard.Release(ctx, slot)
	cascaded := false
	if err != nil {
		s.logger.Warn("waitlist: release after decline", "offer_id", offer.ID, "error", err)
	} else {
		slot.ResourceVersion = newVersion
		cascaded = s.cascade(ctx, slot)
	}

	s.metrics.ObserveResponse("decline", "ok")
	s.logger.Info("waitlist: offer declined",
		"offer_id", offer.ID, "entry_id", offer.EntryID, "cascaded", cascaded)
	return &RespondResult{Offer: offer, Cascaded: cascaded}, nil
}

// cascade re-offers a just-released slot to the next eligible entry. It
// always re-ranks from current store state; a Guard conflict is retried once
// with a freshly read version, then the cascade aborts silently: the slot is
// no longer this subsystem's to offer.
func (s *Service) cascade(ctx context.Context, slot Slot) bool {
	version := slot.ResourceVersion
	for attempt := 0; attempt < 2; attempt++ {
		_, err := s.offerNext(ctx, slot, version)
		switch {
		case err == nil:
			s.metrics.ObserveCascade("offered")
			return true
		case errors.Is(err, ErrNoEligibleEntries):
			s.metrics.ObserveCascade("empty")
			return false
		case errors.Is(err, ErrConflict):
			v, verr := s.guard.CurrentVersion(ctx, slot)
			if verr != nil {
				s.metrics.ObserveCascade("aborted")
				return false
			}
			version = v
		default:
			s.metrics.ObserveCascade("aborted")
			s.logger.Error("waitlist: cascade failed", "slot_key", slot.Key(), "error", err)
			return false
		}
	}
	s.metrics.ObserveCascade("aborted")
	return false
}

// expireOffer transitions one pending offer to expired, requeues its entry,
// releases the slot and cascades. The offer-version CAS makes it safe to
// race with a concurrent response or a second sweep: the loser of the race
// does nothing.
func (s *Service) expireOffer(ctx context.Context, offer *Offer) bool {
	offer.Status = OfferExpired
	if err := s.store.UpdateOffer(ctx, offer); err != nil {
		if !errors.Is(err, ErrConflict) {
			s.logger.Error("waitlist: expire offer", "offer_id", offer.ID, "error", err)
		}
		return false
	}
	s.cache.Invalidate(ctx, offer.Token)

	_, err := s.mutateEntry(ctx, offer.EntryID, func(e *Entry) error {
		if e.Status != EntryOffered {
			return ErrEntryNotActive
		}
		e.Status = EntryActive
		return nil
	})
	if err != nil && !errors.Is(err, ErrEntryNotActive) {
		s.logger.Error("waitlist: requeue entry after expiry", "entry_id", offer.EntryID, "error", err)
	}

	slot := offer.Slot()
	newVersion, err := s.guard.Release(ctx, slot)
	if err != nil {
		s.logger.Warn("waitlist: release after expiry", "offer_id", offer.ID, "error", err)
		return true
	}
	slot.ResourceVersion = newVersion
	s.cascade(ctx, slot)
	s.logger.Info("waitlist: offer expired", "offer_id", offer.ID, "entry_id", offer.EntryID)
	return true
}

// ExpireStaleOffers sweeps all pending offers past their expiry. Invoked
// periodically by the expiry worker and on demand by operators. Running it
// twice over the same state is a no-op the second time: every transition is
// guarded by the offer's version.
func (s *Service) ExpireStaleOffers(ctx context.Context) (int, error) {
	ctx, span := tracer.Start(ctx, "waitlist.expire_sweep")
	defer span.End()

	now := s.clock.Now()
	stale, err := s.store.ListExpiredPending(ctx, now)
	if err != nil {
		span.RecordError(err)
		return 0, fmt.Errorf("waitlist: expire sweep: %w", err)
	}

	expired := 0
	for _, offer := range stale {
		if s.expireOffer(ctx, offer) {
			expired++
		}
	}
	s.metrics.ObserveSweep(expired)
	if expired > 0 {
		s.logger.Info("waitlist: expiry sweep complete", "expired", expired, "candidates", len(stale))
	}
	return expired, nil
}

// RemoveEntry soft-deletes an entry. A pending offer held by the entry is
// superseded and its slot cascades to the next candidate. Safe to race
// against an in-flight OfferSlot: whichever write loses the version CAS
// re-reads and re-validates.
func (s *Service) RemoveEntry(ctx context.Context, entryID uuid.UUID) error {
	ctx, span := tracer.Start(ctx, "waitlist.remove_entry")
	defer span.End()
	span.SetAttributes(attribute.String("waitlist.entry_id", entryID.String()))

	entry, err := s.store.GetEntry(ctx, entryID)
	if err != nil {
		return err
	}
	if entry.Status == EntryRemoved {
		return nil
	}

	var superseded *Offer
	if entry.Status == EntryOffered {
		if offer, err := s.store.PendingOfferForEntry(ctx, entryID); err == nil {
			offer.Status = OfferSuperseded
			if err := s.store.UpdateOffer(ctx, offer); err == nil {
				s.cache.Invalidate(ctx, offer.Token)
				superseded = offer
			} else if !errors.Is(err, ErrConflict) {
				return err
			}
		}
	}

	if _, err := s.mutateEntry(ctx, entryID, func(e *Entry) error {
		if e.Status == EntryBooked {
			return ErrConflict
		}
		e.Status = EntryRemoved
		return nil
	}); err != nil {
		return err
	}

	if superseded != nil {
		slot := superseded.Slot()
		if newVersion, err := s.guard.Release(ctx, slot); err == nil {
			slot.ResourceVersion = newVersion
			s.cascade(ctx, slot)
		}
	}

	s.logger.Info("waitlist: entry removed", "entry_id", entryID)
	return nil
}

// ListEntries exposes the waitlist for dashboards.
func (s *Service) ListEntries(ctx context.Context, status *EntryStatus, limit int) ([]*Entry, error) {
	return s.store.ListEntries(ctx, status, limit)
}

// mutateEntry runs a read-modify-write cycle with one retry on a stale
// version, the optimistic-locking discipline every entry writer follows.
func (s *Service) mutateEntry(ctx context.Context, id uuid.UUID, fn func(*Entry) error) (*Entry, error) {
	var lastErr error
	for attempt := 0; attempt < 2; attempt++ {
		e, err := s.store.GetEntry(ctx, id)
		if err != nil {
			return nil, err
		}
		if err := fn(e); err != nil {
			return nil, err
		}
		if err := s.store.UpdateEntry(ctx, e); err != nil {
			if errors.Is(err, ErrConflict) {
				lastErr = err
				continue
			}
			return nil, err
		}
		return e, nil
	}
	return nil, lastErr
}
