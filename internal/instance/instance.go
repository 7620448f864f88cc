// Package instance owns the per-session state machine and the registry that
// multiplexes many sessions in one process. Engine events for one session are
// consumed by a single goroutine in arrival order; sessions run independently
// of each other.
package instance

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"wamux/internal/engine"
	"wamux/internal/model"
	"wamux/internal/store"
)

const teardownTimeout = 10 * time.Second

// lifecyclePayload is the data field of connection webhook events.
type lifecyclePayload struct {
	Connection model.SessionState    `json:"connection"`
	Cause      model.DisconnectCause `json:"cause,omitempty"`
}

// emitFunc relays one event to the session's webhook and live feed. Callers
// must never block on it.
type emitFunc func(kind model.EventKind, data any)

// Instance is one session's state machine. All field mutation happens inside
// state transitions guarded by mu; the run loop is the only writer of state
// apart from explicit teardown.
type Instance struct {
	key            string
	webhookURL     string
	factory        engine.Factory
	creds          *store.Credentials
	archive        *store.Messages
	emit           emitFunc
	onDestroyed    func(key string)
	reconnectDelay time.Duration
	log            zerolog.Logger

	mu        sync.Mutex
	state     model.SessionState
	pairing   string
	eng       engine.Engine
	destroyed bool

	runCtx    context.Context
	cancel    context.CancelFunc
	readyCh   chan struct{}
	readyOnce sync.Once
	done      chan struct{}
}

func newInstance(key, webhookURL string, factory engine.Factory, creds *store.Credentials, archive *store.Messages, emit emitFunc, onDestroyed func(string), reconnectDelay time.Duration, log zerolog.Logger) *Instance {
	// The run context is created here, not in start, so cancel is always set
	// once a handle exists. A Delete racing the creator's start call must not
	// find a nil cancel func.
	ctx, cancel := context.WithCancel(context.Background())
	return &Instance{
		key:            key,
		webhookURL:     webhookURL,
		factory:        factory,
		creds:          creds,
		archive:        archive,
		emit:           emit,
		onDestroyed:    onDestroyed,
		reconnectDelay: reconnectDelay,
		log:            log.With().Str("session_id", key).Logger(),
		state:          model.StateLoading,
		runCtx:         ctx,
		cancel:         cancel,
		readyCh:        make(chan struct{}),
		done:           make(chan struct{}),
	}
}

// Key returns the immutable session identifier.
func (in *Instance) Key() string { return in.key }

// WebhookURL returns the callback URL configured at creation, empty if none.
func (in *Instance) WebhookURL() string { return in.webhookURL }

// State returns the current lifecycle state.
func (in *Instance) State() model.SessionState {
	in.mu.Lock()
	defer in.mu.Unlock()
	return in.state
}

// PairingCode returns the pending pairing payload. Valid only while the
// session is awaiting pairing.
func (in *Instance) PairingCode() (string, error) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.state != model.StatePairing {
		return "", ErrNotPairing
	}
	return in.pairing, nil
}

// SendText delegates to the engine; fails fast when the session is not
// connected.
func (in *Instance) SendText(ctx context.Context, recipient, text string) (model.SendResult, error) {
	eng, err := in.connectedEngine()
	if err != nil {
		return model.SendResult{}, err
	}
	return eng.SendText(ctx, recipient, text)
}

// SendMedia delegates to the engine; fails fast when the session is not
// connected.
func (in *Instance) SendMedia(ctx context.Context, recipient string, media model.Media) (model.SendResult, error) {
	eng, err := in.connectedEngine()
	if err != nil {
		return model.SendResult{}, err
	}
	return eng.SendMedia(ctx, recipient, media)
}

func (in *Instance) connectedEngine() (engine.Engine, error) {
	in.mu.Lock()
	defer in.mu.Unlock()
	if in.state != model.StateConnected || in.eng == nil {
		return nil, ErrNotConnected
	}
	return in.eng, nil
}

// start launches the connection loop. Called exactly once, by the Manager.
func (in *Instance) start() {
	go in.run(in.runCtx)
}

// awaitReady blocks until the session reaches its first observable state
// (awaiting-pairing or connected), or fails when it is destroyed or the
// context expires first.
func (in *Instance) awaitReady(ctx context.Context) error {
	select {
	case <-in.readyCh:
		return nil
	case <-in.done:
		return ErrInitFailed
	case <-ctx.Done():
		return ErrInitFailed
	}
}

func (in *Instance) signalReady() {
	in.readyOnce.Do(func() { close(in.readyCh) })
}

// shutdown handles an external delete: best-effort logout, then cancel the
// run loop and wait for teardown to finish.
func (in *Instance) shutdown(ctx context.Context) {
	in.mu.Lock()
	eng := in.eng
	in.mu.Unlock()

	if eng != nil {
		if err := eng.Logout(ctx); err != nil {
			in.log.Warn().Err(err).Msg("logout failed, tearing down anyway")
		}
	}
	in.cancel()
	select {
	case <-in.done:
	case <-ctx.Done():
	}
}

// run is the explicit reconnect loop: one engine per connection attempt,
// unbounded retries spaced by reconnectDelay, stopping only on logout or
// cancellation.
func (in *Instance) run(ctx context.Context) {
	defer close(in.done)

	for {
		eng, err := in.factory.New(engine.Config{
			SessionKey:  in.key,
			Credentials: &credentialView{creds: in.creds, session: in.key},
			Resolver:    &archiveView{archive: in.archive},
			Logger:      in.log.With().Str("component", "engine").Logger(),
		})
		if err != nil {
			in.log.Error().Err(err).Msg("engine construction failed")
			in.destroy(model.CauseUnknown)
			return
		}

		in.mu.Lock()
		in.eng = eng
		in.mu.Unlock()

		if err := eng.Connect(ctx); err != nil {
			_ = eng.Close()
			if ctx.Err() != nil {
				in.destroy(model.CauseUnknown)
				return
			}
			in.log.Warn().Err(err).Msg("connect attempt failed")
			in.toDisconnected(model.CauseConnectionLost)
		} else {
			loggedOut := in.consume(ctx, eng)
			_ = eng.Close()
			if loggedOut {
				in.destroy(model.CauseLoggedOut)
				return
			}
			if ctx.Err() != nil {
				in.destroy(model.CauseUnknown)
				return
			}
		}

		in.mu.Lock()
		in.eng = nil
		in.mu.Unlock()

		select {
		case <-time.After(in.reconnectDelay):
		case <-ctx.Done():
			in.destroy(model.CauseUnknown)
			return
		}
		in.toLoading()
	}
}

// consume processes the engine's event stream in arrival order. It returns
// true when the connection closed because of an explicit logout.
func (in *Instance) consume(ctx context.Context, eng engine.Engine) bool {
	for {
		select {
		case <-ctx.Done():
			return false
		case ev, ok := <-eng.Events():
			if !ok {
				// Stream ended without a closed event; treat as a lost
				// connection and let the loop retry.
				in.toDisconnected(model.CauseUnknown)
				return false
			}
			switch ev.Kind {
			case model.EventConnection:
				update := ev.Connection
				if update == nil {
					continue
				}
				switch update.Phase {
				case model.PhasePairing:
					in.toPairing(update.PairingCode)
					in.signalReady()
				case model.PhaseOpen:
					in.toConnected()
					in.signalReady()
				case model.PhaseClosed:
					cause := update.Cause
					if cause == "" {
						cause = model.CauseUnknown
					}
					if cause == model.CauseLoggedOut {
						return true
					}
					in.toDisconnected(cause)
					return false
				}
			case model.EventMessage:
				if ev.Messages == nil {
					continue
				}
				in.archiveBatch(ctx, ev.Messages)
				in.emit(model.EventMessage, ev.Messages)
			case model.EventGroupParticipants:
				if ev.GroupParticipants == nil {
					continue
				}
				in.emit(model.EventGroupParticipants, ev.GroupParticipants)
			}
		}
	}
}

// archiveBatch persists every message in the batch. Archive failures are
// logged and swallowed; they must never block delivery or mark the session
// unhealthy.
func (in *Instance) archiveBatch(ctx context.Context, batch *model.MessageBatch) {
	for _, msg := range batch.Messages {
		if msg.ID == "" {
			continue
		}
		if err := in.archive.Upsert(ctx, msg.ID, msg.Payload); err != nil {
			in.log.Error().Err(err).Str("message_id", msg.ID).Msg("archive write failed")
		}
	}
}

func (in *Instance) toLoading() {
	in.transition(func() bool {
		in.state = model.StateLoading
		return true
	}, lifecyclePayload{Connection: model.StateLoading})
}

func (in *Instance) toPairing(code string) {
	in.transition(func() bool {
		// A re-issued pairing payload supersedes the previous one.
		in.state = model.StatePairing
		in.pairing = code
		return true
	}, lifecyclePayload{Connection: model.StatePairing})
}

func (in *Instance) toConnected() {
	in.transition(func() bool {
		in.state = model.StateConnected
		in.pairing = ""
		return true
	}, lifecyclePayload{Connection: model.StateConnected})
}

func (in *Instance) toDisconnected(cause model.DisconnectCause) {
	in.transition(func() bool {
		in.state = model.StateDisconnected
		in.pairing = ""
		return true
	}, lifecyclePayload{Connection: model.StateDisconnected, Cause: cause})
}

// transition applies a state change and emits the lifecycle event, unless the
// session has already been destroyed. destroyed is terminal: nothing may
// transition out of it.
func (in *Instance) transition(apply func() bool, payload lifecyclePayload) {
	in.mu.Lock()
	if in.destroyed {
		in.mu.Unlock()
		return
	}
	changed := apply()
	in.mu.Unlock()
	if changed {
		in.emit(model.EventConnection, payload)
	}
}

// destroy finalizes the session: terminal state, credential wipe, lifecycle
// event, registry removal. Idempotent; the first caller wins.
func (in *Instance) destroy(cause model.DisconnectCause) {
	in.mu.Lock()
	if in.destroyed {
		in.mu.Unlock()
		return
	}
	in.destroyed = true
	in.state = model.StateDestroyed
	in.pairing = ""
	in.eng = nil
	in.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
	defer cancel()
	if err := in.creds.DeleteAll(ctx, in.key); err != nil {
		in.log.Error().Err(err).Msg("credential wipe failed")
	}

	in.emit(model.EventConnection, lifecyclePayload{Connection: model.StateDestroyed, Cause: cause})
	in.log.Info().Str("cause", string(cause)).Msg("session destroyed")

	if in.onDestroyed != nil {
		in.onDestroyed(in.key)
	}
}
