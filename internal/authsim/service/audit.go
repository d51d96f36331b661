package service

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// Audit event types.
const (
	AuditLoginSuccess   = "login.success"
	AuditLoginFailure   = "login.failure"
	AuditLoginLocked    = "login.locked"
	AuditTokenRefreshed = "token.refreshed"
	AuditLogout         = "logout"
	AuditMFAEnrolled    = "mfa.enrolled"
	AuditMFAActivated   = "mfa.activated"
	AuditMFADisabled    = "mfa.disabled"
	AuditLockoutCleared = "lockout.cleared"
)

// AuditEvent records one security-relevant action.
type AuditEvent struct {
	Timestamp time.Time `json:"timestamp"`
	EventType string    `json:"event_type"`
	UserID    string    `json:"user_id,omitempty"`
	Email     string    `json:"email,omitempty"`
	SessionID string    `json:"session_id,omitempty"`
	IP        string    `json:"ip,omitempty"`
	Success   bool      `json:"success"`
	Error     string    `json:"error,omitempty"`
}

// AuditSink receives events from the dispatcher worker.
type AuditSink interface {
	Emit(ctx context.Context, event AuditEvent)
}

// NoOpSink discards every event.
type NoOpSink struct{}

func (NoOpSink) Emit(context.Context, AuditEvent) {}

// SlogSink writes each event as one structured log line.
type SlogSink struct {
	Logger *slog.Logger
}

func (s SlogSink) Emit(_ context.Context, event AuditEvent) {
	s.Logger.Info("audit",
		"event_type", event.EventType,
		"user_id", event.UserID,
		"email", event.Email,
		"session_id", event.SessionID,
		"ip", event.IP,
		"success", event.Success,
		"error", event.Error,
	)
}

// ChannelSink buffers events for a consumer, used by tests.
type ChannelSink struct {
	events chan AuditEvent
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{events: make(chan AuditEvent, buffer)}
}

func (s *ChannelSink) Emit(ctx context.Context, event AuditEvent) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan AuditEvent {
	return s.events
}

// AuditDispatcher decouples event emission from the sink: Emit never
// blocks the caller, events queue on a bounded channel drained by a
// single worker, and overflow is counted rather than waited on. A nil
// dispatcher is valid and drops everything.
type AuditDispatcher struct {
	sink      AuditSink
	ch        chan AuditEvent
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

// NewAuditDispatcher starts the worker. buffer <= 0 is clamped to 1; a
// nil sink discards events.
func NewAuditDispatcher(sink AuditSink, buffer int) *AuditDispatcher {
	if buffer <= 0 {
		buffer = 1
	}
	if sink == nil {
		sink = NoOpSink{}
	}

	d := &AuditDispatcher{
		sink: sink,
		ch:   make(chan AuditEvent, buffer),
		done: make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *AuditDispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case event := <-d.ch:
			d.sink.Emit(context.Background(), event)
		case <-d.done:
			// Drain whatever is already queued before exiting.
			for {
				select {
				case event := <-d.ch:
					d.sink.Emit(context.Background(), event)
				default:
					return
				}
			}
		}
	}
}

// Emit queues an event without blocking. Events are dropped, and counted,
// when the buffer is full or the dispatcher is closed.
func (d *AuditDispatcher) Emit(event AuditEvent) {
	if d == nil || d.closed.Load() {
		return
	}
	select {
	case d.ch <- event:
	case <-d.done:
	default:
		d.dropped.Add(1)
	}
}

// Close stops the worker after draining queued events. Safe to call more
// than once and on a nil dispatcher.
func (d *AuditDispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}

// Dropped reports how many events were discarded due to a full buffer.
func (d *AuditDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
