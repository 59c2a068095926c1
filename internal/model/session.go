package model

import "time"

// State is the lifecycle state of a qualification session.
type State string

const (
	StateNew            State = "new"
	StateAwaitingFields State = "awaiting_fields"
	StateComplete       State = "complete"
	StateAbandoned      State = "abandoned"
	StateFailed         State = "failed"
)

// Terminal reports whether the state accepts no further transitions.
func (s State) Terminal() bool {
	return s == StateComplete || s == StateAbandoned || s == StateFailed
}

// ObjectType identifies a CRM record type.
type ObjectType string

const (
	ObjectAccount     ObjectType = "account"
	ObjectContact     ObjectType = "contact"
	ObjectOpportunity ObjectType = "opportunity"
)

// RecordError is one failure observed while writing CRM records.
type RecordError struct {
	Object     ObjectType `json:"object"`
	Code       string     `json:"code"`
	Message    string     `json:"message"`
	OccurredAt time.Time  `json:"occurred_at"`
}

// Session is one in-progress qualification flow, keyed by the originating
// channel or thread. A session key maps to at most one active record at a
// time.
type Session struct {
	SessionKey       string                `json:"session_key"`
	Record           *SalesCallRecord      `json:"record"`
	State            State                 `json:"state"`
	CreatedRecordIDs map[ObjectType]string `json:"created_record_ids"`
	Errors           []RecordError         `json:"errors"`
	CreatedAt        time.Time             `json:"created_at"`
	LastActivity     time.Time             `json:"last_activity"`
}

// NewSession creates a fresh session in the New state.
func NewSession(key string, now time.Time) *Session {
	return &Session{
		SessionKey:       key,
		Record:           NewSalesCallRecord(),
		State:            StateNew,
		CreatedRecordIDs: make(map[ObjectType]string),
		CreatedAt:        now,
		LastActivity:     now,
	}
}

// Touch updates the last-activity timestamp.
func (s *Session) Touch(now time.Time) {
	s.LastActivity = now
}
