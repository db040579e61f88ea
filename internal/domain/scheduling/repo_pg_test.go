package scheduling

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clinicdesk/frontdesk/internal/platform/db"
)

func newMockPool(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

var apptColumns = []string{"id", "date_time", "notes", "status", "doctor_id", "patient_id", "created_at", "updated_at"}

var apptDetailColumns = append(append([]string{}, apptColumns...),
	"doctor_first_name", "doctor_last_name", "specialization", "doctor_email",
	"patient_first_name", "patient_last_name", "patient_email", "patient_phone")

func TestAppointmentRepoPG_Create(t *testing.T) {
	mock := newMockPool(t)
	repo := NewAppointmentRepoPG(mock)
	now := time.Now().UTC()
	a := &Appointment{DateTime: at(9, 0), Status: StatusPending, DoctorID: uuid.New(), PatientID: uuid.New()}

	mock.ExpectQuery("INSERT INTO appointments").
		WithArgs(pgxmock.AnyArg(), a.DateTime, pgxmock.AnyArg(), "PENDING", a.DoctorID, a.PatientID).
		WillReturnRows(pgxmock.NewRows([]string{"created_at", "updated_at"}).AddRow(now, now))

	require.NoError(t, repo.CreateAppointment(context.Background(), a))
	assert.NotEqual(t, uuid.Nil, a.ID)
	assert.Equal(t, now, a.CreatedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepoPG_Create_ConstraintViolations(t *testing.T) {
	tests := []struct {
		name  string
		pgErr *pgconn.PgError
		check func(t *testing.T, err error)
	}{
		{
			name:  "doctor overlap",
			pgErr: &pgconn.PgError{Code: "23P01", ConstraintName: "appointments_doctor_no_overlap"},
			check: func(t *testing.T, err error) {
				var ce *ConflictError
				require.True(t, errors.As(err, &ce), "got %v", err)
				assert.Equal(t, PartyDoctor, ce.Party)
			},
		},
		{
			name:  "patient overlap",
			pgErr: &pgconn.PgError{Code: "23P01", ConstraintName: "appointments_patient_no_overlap"},
			check: func(t *testing.T, err error) {
				var ce *ConflictError
				require.True(t, errors.As(err, &ce), "got %v", err)
				assert.Equal(t, PartyPatient, ce.Party)
			},
		},
		{
			name:  "missing patient",
			pgErr: &pgconn.PgError{Code: "23503", ConstraintName: "appointments_patient_id_fkey"},
			check: func(t *testing.T, err error) {
				var nf *NotFoundError
				require.True(t, errors.As(err, &nf), "got %v", err)
				assert.Equal(t, "Patient", nf.Resource)
			},
		},
		{
			name:  "other violation passes through",
			pgErr: &pgconn.PgError{Code: "23514", ConstraintName: "appointments_status_check"},
			check: func(t *testing.T, err error) {
				assert.False(t, errors.Is(err, ErrConflict))
				assert.False(t, errors.Is(err, ErrNotFound))
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := newMockPool(t)
			mock.ExpectQuery("INSERT INTO appointments").WillReturnError(tt.pgErr)

			err := NewAppointmentRepoPG(mock).CreateAppointment(context.Background(), &Appointment{Status: StatusPending})
			require.Error(t, err)
			tt.check(t, err)
		})
	}
}

func TestAppointmentRepoPG_LockAppointment(t *testing.T) {
	mock := newMockPool(t)
	repo := NewAppointmentRepoPG(mock)
	id, doctorID, patientID := uuid.New(), uuid.New(), uuid.New()
	now := time.Now().UTC()
	notes := "bring x-rays"

	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE OF a").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows(apptDetailColumns).AddRow(
			id, at(9, 0), &notes, "APPROVED", doctorID, patientID, now, now,
			"Gregory", "House", "Diagnostics", "house@clinic.com",
			"Ada", "Lovelace", "ada@example.com", "",
		))
	mock.ExpectCommit()

	var a *Appointment
	err := db.NewTxManager(mock).WithinTx(context.Background(), func(ctx context.Context) error {
		var err error
		a, err = repo.LockAppointment(ctx, id)
		return err
	})
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, a.Status)
	assert.Equal(t, "bring x-rays", *a.Notes)
	require.NotNil(t, a.Doctor)
	assert.Equal(t, doctorID, a.Doctor.ID)
	assert.Equal(t, "Lovelace", a.Patient.LastName)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepoPG_LockAppointment_NotFound(t *testing.T) {
	mock := newMockPool(t)
	mock.ExpectBegin()
	mock.ExpectQuery("FOR UPDATE OF a").WillReturnError(pgx.ErrNoRows)
	mock.ExpectRollback()

	err := db.NewTxManager(mock).WithinTx(context.Background(), func(ctx context.Context) error {
		_, err := NewAppointmentRepoPG(mock).LockAppointment(ctx, uuid.New())
		return err
	})
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepoPG_LockAppointment_RequiresTx(t *testing.T) {
	mock := newMockPool(t)
	_, err := NewAppointmentRepoPG(mock).LockAppointment(context.Background(), uuid.New())
	assert.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepoPG_FindAppointmentsForConflictWindow(t *testing.T) {
	mock := newMockPool(t)
	repo := NewAppointmentRepoPG(mock)
	doctorID, patientID := uuid.New(), uuid.New()
	start, end := Window(at(9, 0))
	now := time.Now().UTC()

	mock.ExpectQuery("status <> 'CANCELLED'").
		WithArgs(doctorID, patientID, start, end, uuid.Nil).
		WillReturnRows(pgxmock.NewRows(apptColumns).
			AddRow(uuid.New(), at(8, 45), (*string)(nil), "PENDING", doctorID, uuid.New(), now, now).
			AddRow(uuid.New(), at(9, 10), (*string)(nil), "APPROVED", uuid.New(), patientID, now, now))

	items, err := repo.FindAppointmentsForConflictWindow(context.Background(), doctorID, patientID, start, end, uuid.Nil)
	require.NoError(t, err)
	require.Len(t, items, 2)

	hit, party := FindConflict(at(9, 0), doctorID, patientID, items, uuid.Nil)
	require.NotNil(t, hit)
	assert.Equal(t, PartyDoctor, party)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepoPG_UpdateStatus_NotFound(t *testing.T) {
	mock := newMockPool(t)
	mock.ExpectExec("UPDATE appointments SET status").
		WithArgs(pgxmock.AnyArg(), "APPROVED").
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	err := NewAppointmentRepoPG(mock).UpdateAppointmentStatus(context.Background(), uuid.New(), StatusApproved)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAppointmentRepoPG_Delete(t *testing.T) {
	mock := newMockPool(t)
	repo := NewAppointmentRepoPG(mock)
	id := uuid.New()

	mock.ExpectExec("DELETE FROM appointments").WithArgs(id).WillReturnResult(pgxmock.NewResult("DELETE", 1))
	mock.ExpectExec("DELETE FROM appointments").WithArgs(id).WillReturnResult(pgxmock.NewResult("DELETE", 0))

	require.NoError(t, repo.DeleteAppointment(context.Background(), id))
	assert.ErrorIs(t, repo.DeleteAppointment(context.Background(), id), ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAppointmentRepoPG_LockParticipants(t *testing.T) {
	mock := newMockPool(t)
	repo := NewAppointmentRepoPG(mock)
	doctorID, patientID := uuid.New(), uuid.New()

	assert.Error(t, repo.LockParticipants(context.Background(), doctorID, patientID), "locks need a transaction")

	mock.ExpectBegin()
	mock.ExpectExec("pg_advisory_xact_lock").WithArgs(pgxmock.AnyArg()).WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectExec("pg_advisory_xact_lock").WithArgs(pgxmock.AnyArg()).WillReturnResult(pgxmock.NewResult("SELECT", 1))
	mock.ExpectCommit()

	err := db.NewTxManager(mock).WithinTx(context.Background(), func(ctx context.Context) error {
		return repo.LockParticipants(ctx, doctorID, patientID)
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestAdvisoryKey(t *testing.T) {
	id := uuid.New()
	assert.Equal(t, advisoryKey("doctor", id), advisoryKey("doctor", id))
	assert.NotEqual(t, advisoryKey("doctor", id), advisoryKey("patient", id))
}

func TestDirectoryRepoPG_FindDoctor(t *testing.T) {
	mock := newMockPool(t)
	id := uuid.New()
	mock.ExpectQuery("FROM doctors WHERE id").
		WithArgs(id).
		WillReturnRows(pgxmock.NewRows([]string{"id", "first_name", "last_name", "specialization", "email", "availability"}).
			AddRow(id, "Gregory", "House", "Diagnostics", "house@clinic.com", `{"Monday":{"start":"09:00","end":"12:00"}}`))

	d, err := NewDirectoryRepoPG(mock).FindDoctor(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, d.Availability.Day(testMonday))
	assert.Nil(t, d.Availability.Day(testNow))
}

func TestDirectoryRepoPG_FindPatient_NotFound(t *testing.T) {
	mock := newMockPool(t)
	mock.ExpectQuery("FROM patients WHERE id").WillReturnError(pgx.ErrNoRows)

	_, err := NewDirectoryRepoPG(mock).FindPatient(context.Background(), uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)
}
