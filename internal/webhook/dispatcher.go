// Package webhook relays session events to per-session callback URLs.
// Delivery is at-most-once: failures are logged and discarded, and
// a slow endpoint sheds events instead of backing up the session.
package webhook

import (
	"bytes"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"wamux/internal/model"
)

const (
	defaultTimeout = 10 * time.Second
	// defaultMaxInFlight caps concurrent deliveries per session so a dead
	// endpoint cannot accumulate unbounded outbound calls.
	defaultMaxInFlight = 8
)

// payload is the wire shape posted to callbacks.
type payload struct {
	SessionID string          `json:"sessionId"`
	Event     model.EventKind `json:"event"`
	Data      any             `json:"data"`
}

// Dispatcher posts events fire-and-forget. Implements instance.EventSink.
type Dispatcher struct {
	client      *http.Client
	log         zerolog.Logger
	maxInFlight int

	mu    sync.Mutex
	slots map[string]chan struct{}
}

// Options tunes the dispatcher. Zero values select defaults.
type Options struct {
	Timeout     time.Duration
	MaxInFlight int
}

func New(opts Options, log zerolog.Logger) *Dispatcher {
	if opts.Timeout <= 0 {
		opts.Timeout = defaultTimeout
	}
	if opts.MaxInFlight <= 0 {
		opts.MaxInFlight = defaultMaxInFlight
	}
	return &Dispatcher{
		client:      &http.Client{Timeout: opts.Timeout},
		log:         log.With().Str("component", "webhook").Logger(),
		maxInFlight: opts.MaxInFlight,
		slots:       make(map[string]chan struct{}),
	}
}

// Deliver posts {sessionId, event, data} to webhookURL without blocking the
// caller. No-op when webhookURL is empty. When the session's in-flight cap is
// reached the event is dropped and logged; consumers accept event loss.
func (d *Dispatcher) Deliver(sessionKey, webhookURL string, event model.EventKind, data any) {
	if webhookURL == "" {
		return
	}

	body, err := json.Marshal(payload{SessionID: sessionKey, Event: event, Data: data})
	if err != nil {
		d.log.Error().Err(err).Str("session_id", sessionKey).Str("event", string(event)).Msg("payload marshal failed")
		return
	}

	slot := d.sessionSlots(sessionKey)
	select {
	case slot <- struct{}{}:
	default:
		d.log.Warn().Str("session_id", sessionKey).Str("event", string(event)).Msg("delivery dropped, in-flight cap reached")
		return
	}

	deliveryID := uuid.NewString()
	go func() {
		defer func() { <-slot }()
		d.post(sessionKey, webhookURL, event, deliveryID, body)
	}()
}

func (d *Dispatcher) post(sessionKey, webhookURL string, event model.EventKind, deliveryID string, body []byte) {
	log := d.log.With().
		Str("session_id", sessionKey).
		Str("event", string(event)).
		Str("delivery_id", deliveryID).
		Logger()

	req, err := http.NewRequest(http.MethodPost, webhookURL, bytes.NewReader(body))
	if err != nil {
		log.Warn().Err(err).Msg("webhook request build failed")
		return
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.client.Do(req)
	if err != nil {
		log.Warn().Err(err).Msg("webhook delivery failed")
		return
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Warn().Int("status", resp.StatusCode).Msg("webhook rejected")
		return
	}
	log.Debug().Msg("webhook delivered")
}

// Release drops sessionKey's slot bookkeeping once the session is gone.
// In-flight deliveries keep their channel reference and drain normally; a
// later Deliver for the same key simply allocates a fresh slot.
func (d *Dispatcher) Release(sessionKey string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	delete(d.slots, sessionKey)
}

func (d *Dispatcher) sessionSlots(sessionKey string) chan struct{} {
	d.mu.Lock()
	defer d.mu.Unlock()
	slot, ok := d.slots[sessionKey]
	if !ok {
		slot = make(chan struct{}, d.maxInFlight)
		d.slots[sessionKey] = slot
	}
	return slot
}
