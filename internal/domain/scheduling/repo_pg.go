package scheduling

import (
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sort"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/clinicdesk/frontdesk/internal/platform/db"
)

// Constraint names from migrations/001_init.sql.
const (
	constraintDoctorOverlap  = "appointments_doctor_no_overlap"
	constraintPatientOverlap = "appointments_patient_no_overlap"
	constraintDoctorFK       = "appointments_doctor_id_fkey"
	constraintPatientFK      = "appointments_patient_id_fkey"
)

// =========== Appointment Repository ===========

type appointmentRepoPG struct{ pool db.Querier }

func NewAppointmentRepoPG(pool db.Querier) AppointmentRepository {
	return &appointmentRepoPG{pool: pool}
}

func (r *appointmentRepoPG) conn(ctx context.Context) db.Querier {
	return db.Conn(ctx, r.pool)
}

const apptCols = `id, date_time, notes, status, doctor_id, patient_id, created_at, updated_at`

const apptDetailSelect = `SELECT a.id, a.date_time, a.notes, a.status, a.doctor_id, a.patient_id,
	a.created_at, a.updated_at,
	d.first_name, d.last_name, d.specialization, d.email,
	p.first_name, p.last_name, p.email, COALESCE(p.phone, '')
	FROM appointments a
	JOIN doctors d ON d.id = a.doctor_id
	JOIN patients p ON p.id = a.patient_id`

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var status string
	err := row.Scan(&a.ID, &a.DateTime, &a.Notes, &status, &a.DoctorID, &a.PatientID,
		&a.CreatedAt, &a.UpdatedAt)
	a.Status = Status(status)
	return &a, err
}

func scanAppointmentDetail(row pgx.Row) (*Appointment, error) {
	var a Appointment
	var status string
	d := &Doctor{}
	p := &Patient{}
	err := row.Scan(&a.ID, &a.DateTime, &a.Notes, &status, &a.DoctorID, &a.PatientID,
		&a.CreatedAt, &a.UpdatedAt,
		&d.FirstName, &d.LastName, &d.Specialization, &d.Email,
		&p.FirstName, &p.LastName, &p.Email, &p.Phone)
	if err != nil {
		return nil, err
	}
	a.Status = Status(status)
	d.ID = a.DoctorID
	p.ID = a.PatientID
	a.Doctor = d
	a.Patient = p
	return &a, nil
}

func (r *appointmentRepoPG) LockAppointment(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	if db.TxFromContext(ctx) == nil {
		return nil, errors.New("lock appointment: no transaction in context")
	}
	a, err := scanAppointmentDetail(r.conn(ctx).QueryRow(ctx,
		apptDetailSelect+` WHERE a.id = $1 FOR UPDATE OF a`, id))
	return a, mapNoRows(err)
}

func (r *appointmentRepoPG) FindAppointmentsForConflictWindow(ctx context.Context, doctorID, patientID uuid.UUID, windowStart, windowEnd time.Time, excludeID uuid.UUID) ([]Appointment, error) {
	rows, err := r.conn(ctx).Query(ctx, `SELECT `+apptCols+` FROM appointments
		WHERE status <> 'CANCELLED'
		  AND date_time > $3 AND date_time < $4
		  AND (doctor_id = $1 OR patient_id = $2)
		  AND id <> $5
		ORDER BY date_time`,
		doctorID, patientID, windowStart, windowEnd, excludeID)
	if err != nil {
		return nil, fmt.Errorf("query conflict window: %w", err)
	}
	defer rows.Close()

	var items []Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, fmt.Errorf("scan appointment: %w", err)
		}
		items = append(items, *a)
	}
	return items, rows.Err()
}

func (r *appointmentRepoPG) ListAppointments(ctx context.Context) ([]Appointment, error) {
	rows, err := r.conn(ctx).Query(ctx, apptDetailSelect+` ORDER BY a.date_time ASC, a.created_at ASC`)
	if err != nil {
		return nil, fmt.Errorf("list appointments: %w", err)
	}
	defer rows.Close()

	items := []Appointment{}
	for rows.Next() {
		a, err := scanAppointmentDetail(rows)
		if err != nil {
			return nil, fmt.Errorf("scan appointment: %w", err)
		}
		items = append(items, *a)
	}
	return items, rows.Err()
}

func (r *appointmentRepoPG) CreateAppointment(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointments (id, date_time, notes, status, doctor_id, patient_id)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING created_at, updated_at`,
		a.ID, a.DateTime, a.Notes, string(a.Status), a.DoctorID, a.PatientID,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	return mapWriteError(err)
}

func (r *appointmentRepoPG) UpdateAppointment(ctx context.Context, a *Appointment) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE appointments SET doctor_id = $2, patient_id = $3, date_time = $4, notes = $5,
			updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		a.ID, a.DoctorID, a.PatientID, a.DateTime, a.Notes,
	).Scan(&a.UpdatedAt)
	return mapWriteError(mapNoRows(err))
}

func (r *appointmentRepoPG) UpdateAppointmentStatus(ctx context.Context, id uuid.UUID, status Status) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE appointments SET status = $2, updated_at = NOW() WHERE id = $1`, id, string(status))
	if err != nil {
		return mapWriteError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *appointmentRepoPG) DeleteAppointment(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete appointment: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *appointmentRepoPG) LockParticipants(ctx context.Context, doctorID, patientID uuid.UUID) error {
	if db.TxFromContext(ctx) == nil {
		return errors.New("lock participants: no transaction in context")
	}
	keys := []int64{advisoryKey("doctor", doctorID), advisoryKey("patient", patientID)}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	for _, k := range keys {
		if _, err := r.conn(ctx).Exec(ctx, `SELECT pg_advisory_xact_lock($1)`, k); err != nil {
			return fmt.Errorf("advisory lock: %w", err)
		}
	}
	return nil
}

// advisoryKey maps a participant to a pg_advisory_xact_lock key.
func advisoryKey(kind string, id uuid.UUID) int64 {
	h := fnv.New64a()
	h.Write([]byte(kind))
	h.Write(id[:])
	return int64(h.Sum64())
}

func mapNoRows(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}

// mapWriteError turns constraint violations raised at commit time into
// domain errors.
func mapWriteError(err error) error {
	if err == nil || errors.Is(err, ErrNotFound) {
		return err
	}
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case "23P01", "23505":
		party := Party("")
		switch pgErr.ConstraintName {
		case constraintDoctorOverlap:
			party = PartyDoctor
		case constraintPatientOverlap:
			party = PartyPatient
		}
		return newConflictError(party, nil)
	case "23503":
		switch pgErr.ConstraintName {
		case constraintDoctorFK:
			return &NotFoundError{Resource: "Doctor"}
		case constraintPatientFK:
			return &NotFoundError{Resource: "Patient"}
		}
	}
	return err
}

// =========== Directory lookups ===========

type directoryRepoPG struct{ pool db.Querier }

// NewDirectoryRepoPG reads doctors and patients for the scheduling engine.
func NewDirectoryRepoPG(pool db.Querier) Directory {
	return &directoryRepoPG{pool: pool}
}

func (r *directoryRepoPG) FindDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	var d Doctor
	var availability string
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT id, first_name, last_name, specialization, email, availability
		FROM doctors WHERE id = $1`, id,
	).Scan(&d.ID, &d.FirstName, &d.LastName, &d.Specialization, &d.Email, &availability)
	if err != nil {
		return nil, mapNoRows(err)
	}
	d.Availability = ParseAvailability([]byte(availability))
	return &d, nil
}

func (r *directoryRepoPG) FindPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	var p Patient
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		SELECT id, first_name, last_name, email, COALESCE(phone, '')
		FROM patients WHERE id = $1`, id,
	).Scan(&p.ID, &p.FirstName, &p.LastName, &p.Email, &p.Phone)
	if err != nil {
		return nil, mapNoRows(err)
	}
	return &p, nil
}
