package instance

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"wamux/internal/model"
)

// A delete can observe a registered instance before the creator's start call
// has run. Teardown must work on such a handle instead of panicking.
func TestInstance_ShutdownBeforeStart(t *testing.T) {
	creds, archive := newTestStores(t)
	factory := &scriptFactory{}

	inst := newInstance("alpha", "", factory, creds, archive,
		func(model.EventKind, any) {}, nil, 10*time.Millisecond, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	inst.shutdown(ctx)

	// The run loop, started late, must observe the cancellation and stop.
	inst.start()
	select {
	case <-inst.done:
	case <-time.After(2 * time.Second):
		t.Fatal("run loop ignored pre-start shutdown")
	}
}
