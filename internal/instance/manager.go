package instance

import (
	"context"
	"encoding/json"
	"regexp"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"wamux/internal/engine"
	"wamux/internal/model"
	"wamux/internal/store"
)

// EventSink receives every session event for webhook delivery. Deliver must
// not block: delivery is asynchronous and its outcome is discarded. Release
// tells the sink a session is gone so it can drop per-session bookkeeping.
type EventSink interface {
	Deliver(sessionKey, webhookURL string, event model.EventKind, data any)
	Release(sessionKey string)
}

// Feed receives every session event for live subscribers (the websocket
// hub). Optional.
type Feed interface {
	Broadcast(sessionKey string, message []byte)
}

// Settings tunes per-session behavior.
type Settings struct {
	// ReconnectDelay spaces reconnect attempts after a non-logout disconnect.
	// Retries are deliberately unbounded.
	ReconnectDelay time.Duration
	// InitTimeout caps how long Create waits for the first observable state.
	InitTimeout time.Duration
}

func (s *Settings) applyDefaults() {
	if s.ReconnectDelay <= 0 {
		s.ReconnectDelay = 2 * time.Second
	}
	if s.InitTimeout <= 0 {
		s.InitTimeout = 60 * time.Second
	}
}

// feedEvent is the frame broadcast to live-feed subscribers. It mirrors the
// webhook payload shape.
type feedEvent struct {
	SessionID string          `json:"sessionId"`
	Event     model.EventKind `json:"event"`
	Data      any             `json:"data"`
}

// Status is one registry entry's externally visible state.
type Status struct {
	Key        string             `json:"key"`
	State      model.SessionState `json:"state"`
	WebhookURL string             `json:"webhookUrl,omitempty"`
}

var keyPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{1,64}$`)

// Manager is the registry mapping session keys to state machines. It is the
// only owner of the registry map; instances never touch it except through the
// onDestroyed callback.
type Manager struct {
	factory  engine.Factory
	creds    *store.Credentials
	archive  *store.Messages
	sink     EventSink
	feed     Feed
	settings Settings
	log      zerolog.Logger

	mu        sync.Mutex
	instances map[string]*Instance
}

// NewManager wires the registry. feed may be nil.
func NewManager(factory engine.Factory, creds *store.Credentials, archive *store.Messages, sink EventSink, feed Feed, settings Settings, log zerolog.Logger) *Manager {
	settings.applyDefaults()
	return &Manager{
		factory:   factory,
		creds:     creds,
		archive:   archive,
		sink:      sink,
		feed:      feed,
		settings:  settings,
		log:       log.With().Str("component", "manager").Logger(),
		instances: make(map[string]*Instance),
	}
}

// Create registers a new session and blocks until it reaches its first
// observable state (awaiting-pairing or connected). The entry is registered
// before the engine connects, so a concurrent Create with the same key fails
// with ErrAlreadyExists rather than racing.
func (m *Manager) Create(ctx context.Context, key, webhookURL string) (*Instance, error) {
	if !keyPattern.MatchString(key) {
		return nil, ErrInvalidKey
	}

	m.mu.Lock()
	if _, exists := m.instances[key]; exists {
		m.mu.Unlock()
		return nil, ErrAlreadyExists
	}
	inst := newInstance(
		key, webhookURL,
		m.factory, m.creds, m.archive,
		m.emitter(key, webhookURL),
		m.remove,
		m.settings.ReconnectDelay,
		m.log,
	)
	m.instances[key] = inst
	m.mu.Unlock()

	m.log.Info().Str("session_id", key).Msg("creating session")
	inst.start()

	waitCtx, cancel := context.WithTimeout(ctx, m.settings.InitTimeout)
	defer cancel()
	if err := inst.awaitReady(waitCtx); err != nil {
		m.remove(key)
		inst.cancel()
		return nil, err
	}
	return inst, nil
}

// Get returns the handle for key.
func (m *Manager) Get(key string) (*Instance, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inst, ok := m.instances[key]
	return inst, ok
}

// List snapshots every registered session, sorted by key.
func (m *Manager) List() []Status {
	m.mu.Lock()
	handles := make([]*Instance, 0, len(m.instances))
	for _, inst := range m.instances {
		handles = append(handles, inst)
	}
	m.mu.Unlock()

	statuses := make([]Status, 0, len(handles))
	for _, inst := range handles {
		statuses = append(statuses, Status{Key: inst.Key(), State: inst.State(), WebhookURL: inst.WebhookURL()})
	}
	sort.Slice(statuses, func(i, j int) bool { return statuses[i].Key < statuses[j].Key })
	return statuses
}

// Delete requests a graceful logout (best effort) and unconditionally removes
// the registry entry.
func (m *Manager) Delete(ctx context.Context, key string) error {
	m.mu.Lock()
	inst, ok := m.instances[key]
	m.mu.Unlock()
	if !ok {
		return ErrNotFound
	}

	inst.shutdown(ctx)
	m.remove(key)
	m.log.Info().Str("session_id", key).Msg("session deleted")
	return nil
}

// PairingCode returns the pending pairing payload for key.
func (m *Manager) PairingCode(key string) (string, error) {
	inst, ok := m.Get(key)
	if !ok {
		return "", ErrNotFound
	}
	return inst.PairingCode()
}

// SendText sends a text message through key's engine.
func (m *Manager) SendText(ctx context.Context, key, recipient, text string) (model.SendResult, error) {
	inst, ok := m.Get(key)
	if !ok {
		return model.SendResult{}, ErrNotFound
	}
	return inst.SendText(ctx, recipient, text)
}

// SendMedia sends a staged media file through key's engine.
func (m *Manager) SendMedia(ctx context.Context, key, recipient string, media model.Media) (model.SendResult, error) {
	inst, ok := m.Get(key)
	if !ok {
		return model.SendResult{}, ErrNotFound
	}
	return inst.SendMedia(ctx, recipient, media)
}

// remove drops the registry entry. Called by Delete and by instances entering
// the destroyed state; a completed deletion must never resurrect the entry.
func (m *Manager) remove(key string) {
	m.mu.Lock()
	delete(m.instances, key)
	m.mu.Unlock()
	m.sink.Release(key)
}

// emitter builds the per-instance event relay: webhook first, then the live
// feed. Both are best effort.
func (m *Manager) emitter(key, webhookURL string) emitFunc {
	return func(kind model.EventKind, data any) {
		m.sink.Deliver(key, webhookURL, kind, data)
		if m.feed == nil {
			return
		}
		frame, err := json.Marshal(feedEvent{SessionID: key, Event: kind, Data: data})
		if err != nil {
			m.log.Error().Err(err).Str("session_id", key).Msg("feed marshal failed")
			return
		}
		m.feed.Broadcast(key, frame)
	}
}
