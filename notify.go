package goAccounts

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// NotificationKind identifies an account event worth telling outside
// collaborators (mailers, audit pipelines) about.
type NotificationKind string

const (
	NotifyPasswordChanged     NotificationKind = "password.changed"
	NotifyPasswordResetIssued NotificationKind = "password.reset_issued"
	NotifyTwoFactorEnabled    NotificationKind = "twofactor.enabled"
	NotifyTwoFactorDisabled   NotificationKind = "twofactor.disabled"
	NotifySecurityKeyAdded    NotificationKind = "securitykey.added"
	NotifySecurityKeyRemoved  NotificationKind = "securitykey.removed"
	NotifyVerificationNeeded  NotificationKind = "verification.needed"
)

// Notification is a fire-and-forget account event. Details may carry material
// the collaborator needs to act (a cleartext temporary password for the reset
// mail, a verification code); sinks must treat it as sensitive.
type Notification struct {
	ID        string            `json:"id"`
	Timestamp time.Time         `json:"timestamp"`
	Kind      NotificationKind  `json:"kind"`
	AccountID uint64            `json:"account_id"`
	Username  string            `json:"username,omitempty"`
	Email     string            `json:"email,omitempty"`
	Details   map[string]string `json:"details,omitempty"`
}

// NotificationSink receives notifications from the dispatcher goroutine.
// Implementations must tolerate concurrent delivery with engine operations;
// a slow or failing sink never fails the operation that raised the event.
type NotificationSink interface {
	Notify(ctx context.Context, event Notification)
}

// NoOpSink discards every notification.
type NoOpSink struct{}

func (NoOpSink) Notify(context.Context, Notification) {}

// ChannelSink forwards notifications to a channel, mainly for tests and
// small integrations.
type ChannelSink struct {
	events chan Notification
}

func NewChannelSink(buffer int) *ChannelSink {
	if buffer <= 0 {
		buffer = 1
	}
	return &ChannelSink{events: make(chan Notification, buffer)}
}

func (s *ChannelSink) Notify(ctx context.Context, event Notification) {
	select {
	case s.events <- event:
	case <-ctx.Done():
	}
}

func (s *ChannelSink) Events() <-chan Notification {
	return s.events
}

// notifyDispatcher decouples notification delivery from request handling: a
// bounded buffer, one forwarding goroutine, and a drop counter for when the
// buffer is full. Close drains whatever is already queued.
type notifyDispatcher struct {
	sink      NotificationSink
	ch        chan Notification
	done      chan struct{}
	wg        sync.WaitGroup
	dropped   atomic.Uint64
	closed    atomic.Bool
	closeOnce sync.Once
}

func newNotifyDispatcher(sink NotificationSink, buffer int) *notifyDispatcher {
	if sink == nil {
		sink = NoOpSink{}
	}
	if buffer <= 0 {
		buffer = 1
	}

	d := &notifyDispatcher{
		sink: sink,
		ch:   make(chan Notification, buffer),
		done: make(chan struct{}),
	}

	d.wg.Add(1)
	go d.run()

	return d
}

func (d *notifyDispatcher) run() {
	defer d.wg.Done()

	for {
		select {
		case event := <-d.ch:
			d.sink.Notify(context.Background(), event)
		case <-d.done:
			for {
				select {
				case event := <-d.ch:
					d.sink.Notify(context.Background(), event)
				default:
					return
				}
			}
		}
	}
}

func (d *notifyDispatcher) Emit(event Notification) {
	if d == nil || d.closed.Load() {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now().UTC()
	}

	select {
	case d.ch <- event:
	default:
		d.dropped.Add(1)
	}
}

func (d *notifyDispatcher) Close() {
	if d == nil {
		return
	}
	d.closeOnce.Do(func() {
		d.closed.Store(true)
		close(d.done)
		d.wg.Wait()
	})
}

func (d *notifyDispatcher) Dropped() uint64 {
	if d == nil {
		return 0
	}
	return d.dropped.Load()
}
