package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/radiancehq/medspa-waitlist/internal/waitlist"
	"github.com/radiancehq/medspa-waitlist/pkg/logging"
)

// Gateway adapts the SMS and email senders to the waitlist's notification
// contract. Each Send call makes at most one delivery attempt per channel;
// the lifecycle manager tracks per-offer idempotency above this layer.
type Gateway struct {
	sms           SMSSender
	email         EmailSender
	publicBaseURL string
	logger        *logging.Logger
}

// NewGateway wires the configured senders. Either sender may be nil; a
// recipient that no configured channel can reach is a send error.
func NewGateway(sms SMSSender, email EmailSender, publicBaseURL string, logger *logging.Logger) *Gateway {
	if logger == nil {
		logger = logging.Default()
	}
	return &Gateway{sms: sms, email: email, publicBaseURL: publicBaseURL, logger: logger}
}

var _ waitlist.NotificationGateway = (*Gateway)(nil)

// Send renders the template and delivers it over SMS for phone recipients
// or email for address recipients.
func (g *Gateway) Send(ctx context.Context, recipient, templateID string, params map[string]string) (string, error) {
	if strings.TrimSpace(recipient) == "" {
		return "", fmt.Errorf("notify: recipient required")
	}

	subject, body, err := render(templateID, params, g.publicBaseURL)
	if err != nil {
		return "", err
	}

	if strings.Contains(recipient, "@") {
		if g.email == nil {
			return "", fmt.Errorf("notify: no email sender configured for %s", recipient)
		}
		if err := g.email.Send(ctx, EmailMessage{To: recipient, Subject: subject, Body: body}); err != nil {
			return "", err
		}
		return "", nil
	}

	if g.sms == nil {
		return "", fmt.Errorf("notify: no sms sender configured for %s", recipient)
	}
	return g.sms.SendSMS(ctx, recipient, body)
}

func render(templateID string, params map[string]string, baseURL string) (subject, body string, err error) {
	link := params["token"]
	if baseURL != "" {
		link = strings.TrimRight(baseURL, "/") + "/offers/" + params["token"]
	}
	switch templateID {
	case waitlist.TemplateSlotOffer:
		start := formatSlotTime(params["slot_start"])
		expires := formatSlotTime(params["expires_at"])
		subject = "An appointment just opened up"
		body = fmt.Sprintf(
			"Hi %s! A spot for %s opened up on %s. Reply via %s to claim it. This offer expires at %s.",
			firstName(params["patient_name"]), params["service_id"], start, link, expires)
		return subject, body, nil
	case waitlist.TemplateOfferConfirmed:
		subject = "Your appointment is booked"
		body = fmt.Sprintf("Hi %s! You're booked for %s on %s. See you then!",
			firstName(params["patient_name"]), params["service_id"], formatSlotTime(params["slot_start"]))
		return subject, body, nil
	default:
		return "", "", fmt.Errorf("notify: unknown template %q", templateID)
	}
}

func formatSlotTime(raw string) string {
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return raw
	}
	return t.Format("Monday, January 2 at 3:04 PM")
}

func firstName(full string) string {
	full = strings.TrimSpace(full)
	if full == "" {
		return "there"
	}
	if i := strings.IndexByte(full, ' '); i > 0 {
		return full[:i]
	}
	return full
}

// StubGateway records sends in memory for tests.
type StubGateway struct {
	Sent []StubSend
	Err  error
}

// StubSend captures one gateway call.
type StubSend struct {
	Recipient  string
	TemplateID string
	Params     map[string]string
}

var _ waitlist.NotificationGateway = (*StubGateway)(nil)

// Send records the call and returns the configured error, if any.
func (g *StubGateway) Send(ctx context.Context, recipient, templateID string, params map[string]string) (string, error) {
	if g.Err != nil {
		return "", g.Err
	}
	g.Sent = append(g.Sent, StubSend{Recipient: recipient, TemplateID: templateID, Params: params})
	return fmt.Sprintf("stub-%d", len(g.Sent)), nil
}
