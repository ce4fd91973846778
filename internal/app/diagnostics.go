package app

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/Gagansidh-u/My-Webapp-sub000/internal/inquiry"
)

// Diagnostic describes a rejected operation in full: who tried what, where,
// with which payload.
type Diagnostic struct {
	Operation string
	Path      string
	RequestID string
	ActorID   string
	Role      inquiry.Role
	ThreadID  string
	Payload   any
	Err       error
	At        time.Time
}

// Diagnostics is the process-wide error channel. Publishing never blocks;
// when no listener keeps up, diagnostics are dropped.
type Diagnostics struct {
	ch chan Diagnostic
}

func NewDiagnostics(buffer int) *Diagnostics {
	if buffer <= 0 {
		buffer = 64
	}
	return &Diagnostics{ch: make(chan Diagnostic, buffer)}
}

func (d *Diagnostics) Publish(diag Diagnostic) {
	if d == nil {
		return
	}
	select {
	case d.ch <- diag:
	default:
	}
}

func (d *Diagnostics) C() <-chan Diagnostic {
	return d.ch
}

// Run logs every diagnostic until ctx ends.
func (d *Diagnostics) Run(ctx context.Context, log zerolog.Logger) error {
	log = log.With().Str("component", "diagnostics").Logger()
	for {
		select {
		case <-ctx.Done():
			return nil
		case diag := <-d.ch:
			log.Warn().
				Err(diag.Err).
				Str("operation", diag.Operation).
				Str("path", diag.Path).
				Str("request_id", diag.RequestID).
				Str("actor_id", diag.ActorID).
				Str("role", string(diag.Role)).
				Str("thread_id", diag.ThreadID).
				Interface("payload", diag.Payload).
				Time("at", diag.At).
				Msg("permission denied")
		}
	}
}

type (
	requestPathKey struct{}
	requestIDKey   struct{}
)

func withRequestPath(ctx context.Context, path string) context.Context {
	return context.WithValue(ctx, requestPathKey{}, path)
}

func requestPath(ctx context.Context) string {
	path, _ := ctx.Value(requestPathKey{}).(string)
	return path
}

func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

func requestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}
