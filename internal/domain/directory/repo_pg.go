package directory

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/clinicdesk/frontdesk/internal/domain/scheduling"
	"github.com/clinicdesk/frontdesk/internal/platform/db"
)

func mapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return ErrDuplicateEmail
		case "23503":
			return ErrInUse
		}
	}
	return err
}

func execOne(ctx context.Context, q db.Querier, sql string, args ...any) error {
	tag, err := q.Exec(ctx, sql, args...)
	if err != nil {
		return mapError(err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// =========== Doctors ===========

type doctorRepoPG struct{ pool db.Querier }

func NewDoctorRepoPG(pool db.Querier) DoctorRepository {
	return &doctorRepoPG{pool: pool}
}

const doctorCols = `id, first_name, last_name, specialization, email, phone, availability, created_at, updated_at`

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	var availability string
	if err := row.Scan(&d.ID, &d.FirstName, &d.LastName, &d.Specialization, &d.Email, &d.Phone,
		&availability, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	d.Availability = scheduling.ParseAvailability([]byte(availability))
	return &d, nil
}

func encodeAvailability(a scheduling.Availability) (string, error) {
	raw, err := json.Marshal(a)
	if err != nil {
		return "", fmt.Errorf("encode availability: %w", err)
	}
	return string(raw), nil
}

func (r *doctorRepoPG) Create(ctx context.Context, d *Doctor) error {
	availability, err := encodeAvailability(d.Availability)
	if err != nil {
		return err
	}
	d.ID = uuid.New()
	err = db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO doctors (id, first_name, last_name, specialization, email, phone, availability)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at, updated_at`,
		d.ID, d.FirstName, d.LastName, d.Specialization, d.Email, d.Phone, availability,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
	return mapError(err)
}

func (r *doctorRepoPG) Get(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	d, err := scanDoctor(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+doctorCols+` FROM doctors WHERE id = $1`, id))
	return d, mapError(err)
}

func (r *doctorRepoPG) List(ctx context.Context, limit, offset int) ([]*Doctor, int, error) {
	q := db.Conn(ctx, r.pool)
	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM doctors`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count doctors: %w", err)
	}
	rows, err := q.Query(ctx, `SELECT `+doctorCols+` FROM doctors
		ORDER BY created_at DESC, id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list doctors: %w", err)
	}
	defer rows.Close()
	var items []*Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan doctor: %w", err)
		}
		items = append(items, d)
	}
	return items, total, rows.Err()
}

func (r *doctorRepoPG) Update(ctx context.Context, d *Doctor) error {
	availability, err := encodeAvailability(d.Availability)
	if err != nil {
		return err
	}
	err = db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE doctors SET first_name = $2, last_name = $3, specialization = $4, email = $5,
			phone = $6, availability = $7, updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		d.ID, d.FirstName, d.LastName, d.Specialization, d.Email, d.Phone, availability,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
	return mapError(err)
}

func (r *doctorRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	return execOne(ctx, db.Conn(ctx, r.pool), `DELETE FROM doctors WHERE id = $1`, id)
}

// =========== Patients ===========

type patientRepoPG struct{ pool db.Querier }

func NewPatientRepoPG(pool db.Querier) PatientRepository {
	return &patientRepoPG{pool: pool}
}

const patientCols = `id, first_name, last_name, email, phone, date_of_birth, gender, address, created_at, updated_at`

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	var dob *time.Time
	if err := row.Scan(&p.ID, &p.FirstName, &p.LastName, &p.Email, &p.Phone, &dob,
		&p.Gender, &p.Address, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, err
	}
	if dob != nil {
		p.DateOfBirth = &Date{Time: *dob}
	}
	return &p, nil
}

func dobArg(d *Date) *time.Time {
	if d == nil {
		return nil
	}
	return &d.Time
}

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		INSERT INTO patients (id, first_name, last_name, email, phone, date_of_birth, gender, address)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING created_at, updated_at`,
		p.ID, p.FirstName, p.LastName, p.Email, p.Phone, dobArg(p.DateOfBirth), p.Gender, p.Address,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	return mapError(err)
}

func (r *patientRepoPG) Get(ctx context.Context, id uuid.UUID) (*Patient, error) {
	p, err := scanPatient(db.Conn(ctx, r.pool).QueryRow(ctx,
		`SELECT `+patientCols+` FROM patients WHERE id = $1`, id))
	return p, mapError(err)
}

func (r *patientRepoPG) List(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	q := db.Conn(ctx, r.pool)
	var total int
	if err := q.QueryRow(ctx, `SELECT COUNT(*) FROM patients`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count patients: %w", err)
	}
	rows, err := q.Query(ctx, `SELECT `+patientCols+` FROM patients
		ORDER BY created_at DESC, id LIMIT $1 OFFSET $2`, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list patients: %w", err)
	}
	defer rows.Close()
	var items []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan patient: %w", err)
		}
		items = append(items, p)
	}
	return items, total, rows.Err()
}

func (r *patientRepoPG) Update(ctx context.Context, p *Patient) error {
	err := db.Conn(ctx, r.pool).QueryRow(ctx, `
		UPDATE patients SET first_name = $2, last_name = $3, email = $4, phone = $5,
			date_of_birth = $6, gender = $7, address = $8, updated_at = NOW()
		WHERE id = $1
		RETURNING created_at, updated_at`,
		p.ID, p.FirstName, p.LastName, p.Email, p.Phone, dobArg(p.DateOfBirth), p.Gender, p.Address,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	return mapError(err)
}

func (r *patientRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	return execOne(ctx, db.Conn(ctx, r.pool), `DELETE FROM patients WHERE id = $1`, id)
}
