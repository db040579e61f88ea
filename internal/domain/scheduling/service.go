package scheduling

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/clinicdesk/frontdesk/internal/platform/auth"
)

var tracer = otel.Tracer("frontdesk/scheduling")

// OperationRecorder counts lifecycle operations by outcome.
type OperationRecorder interface {
	RecordAppointmentOperation(operation, outcome string)
}

// Service owns the appointment lifecycle. All appointment writes go through it.
type Service struct {
	appointments        AppointmentRepository
	directory           Directory
	tx                  Transactor
	notifier            Notifier
	metrics             OperationRecorder
	logger              zerolog.Logger
	now                 func() time.Time
	loc                 *time.Location
	enforceAvailability bool
}

type Option func(*Service)

func WithNotifier(n Notifier) Option { return func(s *Service) { s.notifier = n } }

func WithMetrics(m OperationRecorder) Option { return func(s *Service) { s.metrics = m } }

func WithLogger(l zerolog.Logger) Option { return func(s *Service) { s.logger = l } }

func WithClock(now func() time.Time) Option { return func(s *Service) { s.now = now } }

// WithLocation sets the clinic time zone used for availability and slots.
func WithLocation(loc *time.Location) Option { return func(s *Service) { s.loc = loc } }

// WithAvailabilityCheck toggles rejection of bookings outside working hours.
func WithAvailabilityCheck(enabled bool) Option {
	return func(s *Service) { s.enforceAvailability = enabled }
}

func NewService(appts AppointmentRepository, dir Directory, tx Transactor, opts ...Option) *Service {
	s := &Service{
		appointments:        appts,
		directory:           dir,
		tx:                  tx,
		notifier:            nopNotifier{},
		logger:              zerolog.Nop(),
		now:                 time.Now,
		loc:                 time.UTC,
		enforceAvailability: true,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.notifier == nil {
		s.notifier = nopNotifier{}
	}
	if s.loc == nil {
		s.loc = time.UTC
	}
	return s
}

// Location is the clinic time zone.
func (s *Service) Location() *time.Location { return s.loc }

func (s *Service) finish(span trace.Span, op string, err error) {
	outcome := Outcome(err)
	if s.metrics != nil {
		s.metrics.RecordAppointmentOperation(op, outcome)
	}
	span.SetAttributes(attribute.String("scheduling.outcome", outcome))
	if err != nil {
		span.RecordError(err)
		if outcome == "error" {
			span.SetStatus(codes.Error, err.Error())
		}
	}
	span.End()
}

// Create books a new PENDING appointment.
func (s *Service) Create(ctx context.Context, actor auth.Principal, in BookingInput) (appt *Appointment, err error) {
	ctx, span := tracer.Start(ctx, "scheduling.Create")
	defer func() { s.finish(span, "create", err) }()

	in.Notes = normalizeNotes(in.Notes)
	if err := s.validateInput(in, "Cannot book appointment in the past"); err != nil {
		return nil, err
	}
	doctor, patient, err := s.resolveParticipants(ctx, in)
	if err != nil {
		return nil, err
	}
	if err := s.checkAvailability(doctor, in.DateTime); err != nil {
		return nil, err
	}

	a := &Appointment{
		DateTime:  in.DateTime.UTC(),
		Notes:     in.Notes,
		Status:    StatusPending,
		DoctorID:  in.DoctorID,
		PatientID: in.PatientID,
	}
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		if err := s.ensureNoConflict(ctx, in, uuid.Nil); err != nil {
			return err
		}
		return s.appointments.CreateAppointment(ctx, a)
	})
	if err != nil {
		return nil, err
	}
	a.Doctor, a.Patient = doctor, patient

	span.SetAttributes(attribute.String("appointment.id", a.ID.String()))
	s.logger.Info().
		Str("appointment_id", a.ID.String()).
		Str("doctor_id", a.DoctorID.String()).
		Str("patient_id", a.PatientID.String()).
		Str("actor", actor.UserID).
		Msg("appointment created")
	s.notify(ctx, EventCreated, a, actor)
	return a, nil
}

// UpdateStatus moves an appointment to newStatus.
func (s *Service) UpdateStatus(ctx context.Context, actor auth.Principal, id uuid.UUID, newStatus string) (appt *Appointment, err error) {
	ctx, span := tracer.Start(ctx, "scheduling.UpdateStatus",
		trace.WithAttributes(attribute.String("appointment.id", id.String())))
	defer func() { s.finish(span, "update_status", err) }()

	changed := false
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		current, err := s.appointments.LockAppointment(ctx, id)
		if err != nil {
			return notFound(err, "Appointment", id)
		}
		next, ok := ParseStatus(newStatus)
		if !ok {
			return &ValidationError{Message: "Invalid appointment status"}
		}
		if !current.Status.CanTransitionTo(next) {
			return newIllegalTransition(current.Status, next)
		}
		appt = current
		if next == current.Status {
			return nil
		}
		if err := s.appointments.UpdateAppointmentStatus(ctx, id, next); err != nil {
			return notFound(err, "Appointment", id)
		}
		appt.Status = next
		appt.UpdatedAt = s.now().UTC()
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	if changed {
		s.logger.Info().
			Str("appointment_id", id.String()).
			Str("status", string(appt.Status)).
			Str("actor", actor.UserID).
			Msg("appointment status changed")
		s.notify(ctx, EventStatusChanged, appt, actor)
	}
	return appt, nil
}

// Update replaces an appointment's doctor, patient, time and notes.
func (s *Service) Update(ctx context.Context, actor auth.Principal, id uuid.UUID, in BookingInput) (appt *Appointment, err error) {
	ctx, span := tracer.Start(ctx, "scheduling.Update",
		trace.WithAttributes(attribute.String("appointment.id", id.String())))
	defer func() { s.finish(span, "update", err) }()

	in.Notes = normalizeNotes(in.Notes)
	if err := s.validateInput(in, "Cannot set appointment in the past"); err != nil {
		return nil, err
	}

	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		existing, err := s.appointments.LockAppointment(ctx, id)
		if err != nil {
			return notFound(err, "Appointment", id)
		}
		if existing.Status.Terminal() {
			return newIllegalTransition(existing.Status, existing.Status)
		}
		doctor, patient, err := s.resolveParticipants(ctx, in)
		if err != nil {
			return err
		}
		if err := s.checkAvailability(doctor, in.DateTime); err != nil {
			return err
		}
		if err := s.ensureNoConflict(ctx, in, id); err != nil {
			return err
		}

		updated := *existing
		updated.DoctorID = in.DoctorID
		updated.PatientID = in.PatientID
		updated.DateTime = in.DateTime.UTC()
		updated.Notes = in.Notes
		if err := s.appointments.UpdateAppointment(ctx, &updated); err != nil {
			return notFound(err, "Appointment", id)
		}
		updated.Doctor, updated.Patient = doctor, patient
		appt = &updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info().
		Str("appointment_id", id.String()).
		Str("actor", actor.UserID).
		Msg("appointment updated")
	s.notify(ctx, EventUpdated, appt, actor)
	return appt, nil
}

// Remove deletes an appointment regardless of its status.
func (s *Service) Remove(ctx context.Context, actor auth.Principal, id uuid.UUID) (err error) {
	ctx, span := tracer.Start(ctx, "scheduling.Remove",
		trace.WithAttributes(attribute.String("appointment.id", id.String())))
	defer func() { s.finish(span, "remove", err) }()

	if err := s.appointments.DeleteAppointment(ctx, id); err != nil {
		return notFound(err, "Appointment", id)
	}
	s.logger.Info().
		Str("appointment_id", id.String()).
		Str("actor", actor.UserID).
		Msg("appointment deleted")
	return nil
}

// ListAll returns every appointment ordered by time, with doctor and patient.
func (s *Service) ListAll(ctx context.Context) (items []Appointment, err error) {
	ctx, span := tracer.Start(ctx, "scheduling.ListAll")
	defer func() { s.finish(span, "list", err) }()

	return s.appointments.ListAppointments(ctx)
}

// AvailableSlots lists the doctor's slots on the clinic-local calendar day
// of date. patientID may be uuid.Nil; when set, slots that would double-book
// the patient are also blocked.
func (s *Service) AvailableSlots(ctx context.Context, doctorID uuid.UUID, date time.Time, patientID uuid.UUID) (slots []Slot, err error) {
	ctx, span := tracer.Start(ctx, "scheduling.AvailableSlots",
		trace.WithAttributes(attribute.String("doctor.id", doctorID.String())))
	defer func() { s.finish(span, "slots", err) }()

	doctor, err := s.directory.FindDoctor(ctx, doctorID)
	if err != nil {
		return nil, notFound(err, "Doctor", doctorID)
	}
	y, m, d := date.Date()
	day := time.Date(y, m, d, 0, 0, 0, 0, s.loc)

	starts := GenerateSlots(doctor.Availability.Day(day), day)
	if len(starts) == 0 {
		return []Slot{}, nil
	}
	windowStart := starts[0].Add(-ConflictWindow)
	windowEnd := starts[len(starts)-1].Add(ConflictWindow)
	existing, err := s.appointments.FindAppointmentsForConflictWindow(ctx, doctorID, patientID, windowStart, windowEnd, uuid.Nil)
	if err != nil {
		return nil, err
	}
	return AnnotateSlots(starts, doctorID, patientID, existing, s.now()), nil
}

func (s *Service) validateInput(in BookingInput, pastMessage string) error {
	if !in.complete() {
		return &ValidationError{Message: "date_time, patient_id and doctor_id are required"}
	}
	if !in.DateTime.After(s.now()) {
		return &ValidationError{Message: pastMessage}
	}
	return nil
}

func (s *Service) resolveParticipants(ctx context.Context, in BookingInput) (*Doctor, *Patient, error) {
	patient, err := s.directory.FindPatient(ctx, in.PatientID)
	if err != nil {
		return nil, nil, notFound(err, "Patient", in.PatientID)
	}
	doctor, err := s.directory.FindDoctor(ctx, in.DoctorID)
	if err != nil {
		return nil, nil, notFound(err, "Doctor", in.DoctorID)
	}
	return doctor, patient, nil
}

func (s *Service) checkAvailability(doctor *Doctor, at time.Time) error {
	if !s.enforceAvailability {
		return nil
	}
	local := at.In(s.loc)
	day := doctor.Availability.Day(local)
	if day == nil {
		return &ValidationError{Message: "Doctor is not available on this day"}
	}
	if !doctor.Availability.IsWorkingAt(local) {
		return &ValidationError{Message: "Doctor is not available at this time"}
	}
	return nil
}

// ensureNoConflict must run inside a transaction: it takes the participant
// locks and then re-reads the window from the store.
func (s *Service) ensureNoConflict(ctx context.Context, in BookingInput, excludeID uuid.UUID) error {
	if err := s.appointments.LockParticipants(ctx, in.DoctorID, in.PatientID); err != nil {
		return err
	}
	start, end := Window(in.DateTime)
	existing, err := s.appointments.FindAppointmentsForConflictWindow(ctx, in.DoctorID, in.PatientID, start, end, excludeID)
	if err != nil {
		return err
	}
	if hit, party := FindConflict(in.DateTime, in.DoctorID, in.PatientID, existing, excludeID); hit != nil {
		return newConflictError(party, hit)
	}
	return nil
}

func (s *Service) notify(ctx context.Context, event Event, appt *Appointment, actor auth.Principal) {
	if err := s.notifier.Notify(ctx, event, appt, actor); err != nil {
		s.logger.Warn().Err(err).
			Str("appointment_id", appt.ID.String()).
			Str("event", string(event)).
			Msg("appointment notification failed")
	}
}

// notFound converts a repository ErrNotFound into a typed NotFoundError and
// passes every other error through.
func notFound(err error, resource string, id uuid.UUID) error {
	var typed *NotFoundError
	if errors.As(err, &typed) {
		return err
	}
	if errors.Is(err, ErrNotFound) {
		return &NotFoundError{Resource: resource, ID: id}
	}
	return err
}
