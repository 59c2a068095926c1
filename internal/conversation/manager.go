// Package conversation drives a transcript from "just received" to "fully
// qualified" across multiple turns.
package conversation

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/dealflow-ai/qualification-platform/internal/crm"
	"github.com/dealflow-ai/qualification-platform/internal/events"
	"github.com/dealflow-ai/qualification-platform/internal/extract"
	"github.com/dealflow-ai/qualification-platform/internal/meddic"
	"github.com/dealflow-ai/qualification-platform/internal/model"
	"github.com/dealflow-ai/qualification-platform/internal/session"
	"github.com/dealflow-ai/qualification-platform/pkg/logger"
	"github.com/dealflow-ai/qualification-platform/pkg/metrics"
)

// Extractor converts text into a typed partial record.
type Extractor interface {
	Extract(ctx context.Context, text string, known *model.SalesCallRecord) (*model.SalesCallRecord, error)
}

// RecordWriter commits a record to the CRM.
type RecordWriter interface {
	Commit(ctx context.Context, rec *model.SalesCallRecord, existing map[model.ObjectType]string) *crm.CommitResult
}

// Manager orchestrates the extractor, scorer, session store, and record
// writer. Exactly one state transition is in flight per session key;
// messages for the same key are serialized in arrival order, distinct keys
// run in parallel.
type Manager struct {
	store       session.Store
	extractor   Extractor
	writer      RecordWriter
	publisher   events.Publisher
	logger      *logger.Logger
	idleTimeout time.Duration
	gracePeriod time.Duration
	now         func() time.Time

	mu    sync.Mutex
	locks map[string]*keyLock
}

// keyLock serializes transitions for one session key. refs counts holders and
// waiters so the entry can be pruned once nobody needs it.
type keyLock struct {
	mu   sync.Mutex
	refs int
}

// NewManager creates a conversation manager.
func NewManager(
	store session.Store,
	extractor Extractor,
	writer RecordWriter,
	publisher events.Publisher,
	idleTimeout, gracePeriod time.Duration,
	log *logger.Logger,
) *Manager {
	if publisher == nil {
		publisher = events.NopPublisher{}
	}
	return &Manager{
		store:       store,
		extractor:   extractor,
		writer:      writer,
		publisher:   publisher,
		logger:      log,
		idleTimeout: idleTimeout,
		gracePeriod: gracePeriod,
		now:         time.Now,
		locks:       make(map[string]*keyLock),
	}
}

// HandleMessage processes one inbound event for a session key: the first
// transcript creates a session, follow-up messages merge into it, and
// terminal sessions are replaced by a fresh one. Returns the outbound reply.
func (m *Manager) HandleMessage(ctx context.Context, sessionKey, text string) (*Reply, error) {
	lock := m.acquire(sessionKey)
	defer m.release(sessionKey, lock)

	log := m.logger.WithSession(sessionKey)

	sess, err := m.store.Get(ctx, sessionKey)
	switch {
	case errors.Is(err, session.ErrNotFound):
		return m.startSession(ctx, sessionKey, text, nil, log)
	case errors.Is(err, session.ErrExpired):
		// The previous flow lapsed; this message starts over.
		m.publish(ctx, &events.SessionEvent{
			SessionKey: sessionKey,
			Type:       events.TypeSessionExpired,
		})
		return m.startSession(ctx, sessionKey, text, nil, log)
	case err != nil:
		return nil, err
	}

	if sess.State.Terminal() {
		// Sessions are never reopened; a new transcript starts fresh.
		if err := m.store.Delete(ctx, sessionKey); err != nil {
			return nil, err
		}
		var carried map[model.ObjectType]string
		if sess.State == model.StateComplete && len(sess.Errors) > 0 {
			// A partial commit left real CRM records behind. The replacement
			// session inherits their IDs so a resend retries only the failed
			// steps instead of duplicating the created records.
			carried = sess.CreatedRecordIDs
		}
		return m.startSession(ctx, sessionKey, text, carried, log)
	}

	return m.followUp(ctx, sess, text, log)
}

// startSession runs the New-state transition: extract, merge into an empty
// record, score, then either commit or ask for the missing fields. carried
// holds CRM record IDs inherited from a partially-committed predecessor.
func (m *Manager) startSession(ctx context.Context, sessionKey, text string, carried map[model.ObjectType]string, log *logger.Logger) (*Reply, error) {
	if strings.TrimSpace(text) == "" {
		return &Reply{
			Kind:  ReplyError,
			Text:  "The message is empty. Send a call transcript to begin qualification.",
			State: model.StateNew,
		}, nil
	}

	now := m.now()
	sess := model.NewSession(sessionKey, now)
	for obj, id := range carried {
		sess.CreatedRecordIDs[obj] = id
	}
	if err := m.store.Put(ctx, sess); err != nil {
		return nil, err
	}
	m.publish(ctx, &events.SessionEvent{
		SessionKey: sessionKey,
		Type:       events.TypeSessionCreated,
		State:      model.StateNew,
	})
	log.Info("session created")

	rec, err := m.extractor.Extract(ctx, text, nil)
	if err != nil {
		return m.failSession(ctx, sess, err, log)
	}

	sess.Record.Merge(rec)
	return m.advance(ctx, sess, log)
}

// followUp runs an AwaitingFields transition: extract seeded with the
// current record, merge, re-score.
func (m *Manager) followUp(ctx context.Context, sess *model.Session, text string, log *logger.Logger) (*Reply, error) {
	if strings.TrimSpace(text) == "" {
		comp := meddic.Score(sess.Record.MEDDIC)
		return &Reply{
			Kind:          ReplyPrompt,
			Text:          renderPrompt(comp.MissingFields, comp.Score),
			State:         sess.State,
			Score:         comp.Score,
			MissingFields: comp.MissingFields,
		}, nil
	}

	rec, err := m.extractor.Extract(ctx, text, sess.Record)
	if errors.Is(err, extract.ErrMalformedResponse) {
		// A terse human answer to a single outstanding question is taken
		// verbatim as that field's value.
		if missing := meddic.Score(sess.Record.MEDDIC).MissingFields; len(missing) == 1 {
			rec = model.NewSalesCallRecord()
			rec.MEDDIC[missing[0]] = strings.TrimSpace(text)
			rec.SourceText = text
			err = nil
		}
	}
	if err != nil {
		return m.failSession(ctx, sess, err, log)
	}

	sess.Record.Merge(rec)
	m.publish(ctx, &events.SessionEvent{
		SessionKey: sess.SessionKey,
		Type:       events.TypeFieldsMerged,
		State:      sess.State,
	})
	return m.advance(ctx, sess, log)
}

// advance scores the merged record and either commits or re-prompts.
func (m *Manager) advance(ctx context.Context, sess *model.Session, log *logger.Logger) (*Reply, error) {
	comp := meddic.Score(sess.Record.MEDDIC)
	metrics.CompletenessScore.Observe(float64(comp.Score))
	sess.Touch(m.now())

	if !comp.Complete() {
		m.transition(sess, model.StateAwaitingFields)
		if err := m.store.Put(ctx, sess); err != nil {
			return nil, err
		}
		m.publish(ctx, &events.SessionEvent{
			SessionKey:    sess.SessionKey,
			Type:          events.TypeFieldsPrompted,
			State:         sess.State,
			Score:         comp.Score,
			MissingFields: comp.MissingFields,
		})
		log.Info("awaiting fields",
			zap.Int("score", comp.Score),
			zap.Strings("missing", comp.MissingFields))

		return &Reply{
			Kind:          ReplyPrompt,
			Text:          renderPrompt(comp.MissingFields, comp.Score),
			State:         sess.State,
			Score:         comp.Score,
			MissingFields: comp.MissingFields,
		}, nil
	}

	outcome := m.writer.Commit(ctx, sess.Record, sess.CreatedRecordIDs)
	for obj, id := range outcome.CreatedRecordIDs {
		sess.CreatedRecordIDs[obj] = id
	}
	sess.Errors = append(sess.Errors, outcome.Errors...)

	m.transition(sess, model.StateComplete)
	if err := m.store.Put(ctx, sess); err != nil {
		return nil, err
	}
	m.publish(ctx, &events.SessionEvent{
		SessionKey:       sess.SessionKey,
		Type:             events.TypeRecordsCommitted,
		State:            sess.State,
		Score:            comp.Score,
		CreatedRecordIDs: sess.CreatedRecordIDs,
	})
	log.Info("session complete",
		zap.Int("created", len(outcome.CreatedRecordIDs)),
		zap.Int("errors", len(outcome.Errors)))

	return &Reply{
		Kind:             ReplySummary,
		Text:             renderSummary(sess.CreatedRecordIDs, outcome.Errors),
		State:            sess.State,
		Score:            comp.Score,
		CreatedRecordIDs: sess.CreatedRecordIDs,
		Errors:           outcome.Errors,
	}, nil
}

// failSession transitions to Failed on an unrecoverable extractor error,
// surfacing the error without discarding the partially-collected record.
func (m *Manager) failSession(ctx context.Context, sess *model.Session, cause error, log *logger.Logger) (*Reply, error) {
	sess.Touch(m.now())
	m.transition(sess, model.StateFailed)
	if err := m.store.Put(ctx, sess); err != nil {
		return nil, err
	}
	m.publish(ctx, &events.SessionEvent{
		SessionKey: sess.SessionKey,
		Type:       events.TypeSessionFailed,
		State:      sess.State,
		Reason:     cause.Error(),
	})
	log.Warn("session failed", zap.Error(cause))

	return &Reply{
		Kind:  ReplyError,
		Text:  renderFailure(cause.Error(), sess.Record),
		State: sess.State,
	}, nil
}

// SweepIdle transitions stale AwaitingFields sessions to Abandoned, purges
// terminal sessions past the grace period, and refreshes the active-session
// gauge. Called periodically.
func (m *Manager) SweepIdle(ctx context.Context) {
	keys, err := m.store.Keys(ctx)
	if err != nil {
		m.logger.Error("session sweep failed", zap.Error(err))
		return
	}

	now := m.now()
	active := 0
	for _, key := range keys {
		lock := m.acquire(key)

		sess, err := m.store.Get(ctx, key)
		if err != nil {
			m.release(key, lock)
			continue
		}

		switch {
		case sess.State.Terminal():
			if m.gracePeriod > 0 && now.Sub(sess.LastActivity) > m.gracePeriod {
				_ = m.store.Delete(ctx, key)
			}
		case sess.State == model.StateAwaitingFields && m.idleTimeout > 0 &&
			now.Sub(sess.LastActivity) > m.idleTimeout:
			err := m.store.Update(ctx, key, func(s *model.Session) error {
				s.State = model.StateAbandoned
				return nil
			})
			if err == nil {
				metrics.RecordTransition(string(model.StateAbandoned))
				m.publish(ctx, &events.SessionEvent{
					SessionKey: key,
					Type:       events.TypeSessionAbandoned,
					State:      model.StateAbandoned,
				})
				m.logger.WithSession(key).Info("session abandoned after idle timeout")
			}
		default:
			active++
		}

		m.release(key, lock)
	}

	// The gauge is set from the observed count rather than incremented per
	// transition, so sessions that lapse via store TTL cannot make it drift.
	metrics.SessionsActive.Set(float64(active))
}

// StartSweeper runs SweepIdle on an interval until ctx is cancelled.
func (m *Manager) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.SweepIdle(ctx)
			}
		}
	}()
}

func (m *Manager) transition(sess *model.Session, to model.State) {
	sess.State = to
	metrics.RecordTransition(string(to))
}

func (m *Manager) publish(ctx context.Context, event *events.SessionEvent) {
	event.ID = uuid.Must(uuid.NewV7()).String()
	event.CreatedAt = m.now()
	if err := m.publisher.PublishSessionEvent(ctx, event); err != nil {
		m.logger.Warn("failed to publish session event",
			zap.String("type", string(event.Type)),
			zap.Error(err))
	}
}

func (m *Manager) acquire(key string) *keyLock {
	m.mu.Lock()
	lock, ok := m.locks[key]
	if !ok {
		lock = &keyLock{}
		m.locks[key] = lock
	}
	lock.refs++
	m.mu.Unlock()

	lock.mu.Lock()
	return lock
}

func (m *Manager) release(key string, lock *keyLock) {
	lock.mu.Unlock()

	m.mu.Lock()
	lock.refs--
	if lock.refs == 0 {
		delete(m.locks, key)
	}
	m.mu.Unlock()
}
