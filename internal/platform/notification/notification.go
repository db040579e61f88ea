// Package notification renders and delivers appointment emails.
package notification

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Kind selects the email template.
type Kind string

const (
	KindCreated Kind = "CREATED"
	KindUpdated Kind = "UPDATED"
	KindStatus  Kind = "STATUS"
)

// AppointmentEmail is the data an appointment email is rendered from.
type AppointmentEmail struct {
	Kind          Kind
	AppointmentID string
	To            string
	ToName        string
	PatientFirst  string
	DoctorFirst   string
	DoctorLast    string
	At            time.Time
	Status        string
	Actor         string
}

// EmailMessage is a rendered email ready for a sender.
type EmailMessage struct {
	To      string
	ToName  string
	Subject string
	Body    string // plain text
	HTML    string
}

// EmailSender delivers one email. Implementations: SendGridSender,
// SESSender, LogSender.
type EmailSender interface {
	Send(ctx context.Context, msg EmailMessage) error
}

// DeliveryRecorder counts delivery attempts by kind and outcome.
type DeliveryRecorder interface {
	RecordNotification(kind, outcome string)
}

var ErrDispatcherClosed = errors.New("notification dispatcher is closed")

// Dispatcher renders emails synchronously and delivers them in the
// background. Delivery is detached from the caller's cancellation and bounded
// by the configured timeout.
type Dispatcher struct {
	sender  EmailSender
	logger  zerolog.Logger
	timeout time.Duration
	metrics DeliveryRecorder

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

type DispatcherOption func(*Dispatcher)

func WithTimeout(d time.Duration) DispatcherOption {
	return func(ds *Dispatcher) { ds.timeout = d }
}

func WithRecorder(r DeliveryRecorder) DispatcherOption {
	return func(ds *Dispatcher) { ds.metrics = r }
}

func NewDispatcher(sender EmailSender, logger zerolog.Logger, opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{
		sender:  sender,
		logger:  logger,
		timeout: 10 * time.Second,
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Dispatch queues msg for delivery. It returns an error only when the email
// cannot be rendered or the dispatcher has been closed.
func (d *Dispatcher) Dispatch(ctx context.Context, msg AppointmentEmail) error {
	rendered, err := Render(msg)
	if err != nil {
		d.record(msg.Kind, "render_error")
		return fmt.Errorf("render %s email: %w", msg.Kind, err)
	}

	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return ErrDispatcherClosed
	}
	d.wg.Add(1)
	d.mu.Unlock()

	go func() {
		defer d.wg.Done()
		sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), d.timeout)
		defer cancel()

		if err := d.sender.Send(sendCtx, rendered); err != nil {
			d.record(msg.Kind, "failed")
			d.logger.Warn().Err(err).
				Str("appointment_id", msg.AppointmentID).
				Str("event", string(msg.Kind)).
				Str("to", msg.To).
				Msg("appointment email delivery failed")
			return
		}
		d.record(msg.Kind, "sent")
		d.logger.Debug().
			Str("appointment_id", msg.AppointmentID).
			Str("event", string(msg.Kind)).
			Msg("appointment email sent")
	}()
	return nil
}

func (d *Dispatcher) record(kind Kind, outcome string) {
	if d.metrics != nil {
		d.metrics.RecordNotification(string(kind), outcome)
	}
}

// Close stops accepting messages and waits for in-flight deliveries or ctx.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// EmailCall records one message seen by MockEmailSender.
type EmailCall struct {
	Message EmailMessage
}

// MockEmailSender records messages and can be told to fail.
type MockEmailSender struct {
	mu         sync.Mutex
	calls      []EmailCall
	ShouldFail bool
}

func (m *MockEmailSender) Send(_ context.Context, msg EmailMessage) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.ShouldFail {
		return fmt.Errorf("mock email send failure")
	}
	m.calls = append(m.calls, EmailCall{Message: msg})
	return nil
}

func (m *MockEmailSender) Calls() []EmailCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]EmailCall, len(m.calls))
	copy(out, m.calls)
	return out
}
