package notify

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelInApp Channel = "in_app"
)

type Urgency string

const (
	UrgencyLow    Urgency = "low"
	UrgencyNormal Urgency = "normal"
	UrgencyUrgent Urgency = "urgent"
)

// Kinds emitted by the engines.
const (
	KindOfferPresented  = "offer_presented"
	KindLoanMatched     = "loan_matched"
	KindOfferAccepted   = "offer_accepted"
	KindLoanNoMatch     = "loan_no_match"
	KindBackedCompleted = "backed_loan_completed"
	KindBackedDefaulted = "backed_loan_defaulted"
	KindBackerLocked    = "backer_locked"
	KindBackerUnlocked  = "backer_unlocked"
	KindBackingRevoked  = "backing_revoked"
)

type Notification struct {
	ID        uuid.UUID         `json:"id"`
	Recipient string            `json:"recipient"`
	Kind      string            `json:"kind"`
	Urgency   Urgency           `json:"urgency"`
	Channels  []Channel         `json:"channels"`
	Subject   string            `json:"subject"`
	Body      string            `json:"body"`
	Data      map[string]string `json:"data,omitempty"`
	CreatedAt time.Time         `json:"created_at"`
}

// New fills id, timestamp and the in-app channel.
func New(recipient, kind string, urgency Urgency, subject, body string) Notification {
	return Notification{
		ID:        uuid.New(),
		Recipient: recipient,
		Kind:      kind,
		Urgency:   urgency,
		Channels:  []Channel{ChannelInApp},
		Subject:   subject,
		Body:      body,
		CreatedAt: time.Now().UTC(),
	}
}

// WithEmail adds the email channel.
func (n Notification) WithEmail() Notification {
	n.Channels = append(append([]Channel(nil), n.Channels...), ChannelEmail)
	return n
}

func (n Notification) With(k, v string) Notification {
	data := make(map[string]string, len(n.Data)+1)
	for key, val := range n.Data {
		data[key] = val
	}
	data[k] = v
	n.Data = data
	return n
}

// Sink delivers a notification. Implementations may block and fail.
type Sink interface {
	Deliver(ctx context.Context, n Notification) error
}

// Notifier is what the engines call: fire-and-forget, never returns an error.
type Notifier interface {
	Notify(ctx context.Context, n Notification)
}
