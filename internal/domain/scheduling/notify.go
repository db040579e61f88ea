package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/clinicdesk/frontdesk/internal/platform/auth"
	"github.com/clinicdesk/frontdesk/internal/platform/notification"
)

type Event string

const (
	EventCreated       Event = "CREATED"
	EventUpdated       Event = "UPDATED"
	EventStatusChanged Event = "STATUS_CHANGED"
)

// Notifier is told about committed appointment changes. Errors are logged by
// the caller and never undo the change.
type Notifier interface {
	Notify(ctx context.Context, event Event, appt *Appointment, actor auth.Principal) error
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, Event, *Appointment, auth.Principal) error { return nil }

var errNoRecipient = errors.New("patient has no email address")

// EmailDispatcher queues rendered appointment emails.
type EmailDispatcher interface {
	Dispatch(ctx context.Context, msg notification.AppointmentEmail) error
}

// EmailNotifier emails the patient about changes to their appointment.
type EmailNotifier struct {
	dispatcher EmailDispatcher
	loc        *time.Location
}

func NewEmailNotifier(d EmailDispatcher, loc *time.Location) *EmailNotifier {
	if loc == nil {
		loc = time.UTC
	}
	return &EmailNotifier{dispatcher: d, loc: loc}
}

var emailKinds = map[Event]notification.Kind{
	EventCreated:       notification.KindCreated,
	EventUpdated:       notification.KindUpdated,
	EventStatusChanged: notification.KindStatus,
}

func (n *EmailNotifier) Notify(ctx context.Context, event Event, appt *Appointment, actor auth.Principal) error {
	if appt.Patient == nil || appt.Patient.Email == "" {
		return errNoRecipient
	}
	msg := notification.AppointmentEmail{
		Kind:          emailKinds[event],
		AppointmentID: appt.ID.String(),
		To:            appt.Patient.Email,
		ToName:        appt.Patient.FirstName + " " + appt.Patient.LastName,
		PatientFirst:  appt.Patient.FirstName,
		At:            appt.DateTime.In(n.loc),
		Status:        string(appt.Status),
		Actor:         actor.UserID,
	}
	if appt.Doctor != nil {
		msg.DoctorFirst = appt.Doctor.FirstName
		msg.DoctorLast = appt.Doctor.LastName
	}
	return n.dispatcher.Dispatch(ctx, msg)
}
