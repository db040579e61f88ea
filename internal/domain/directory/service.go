package directory

import (
	"context"
	"net/mail"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinicdesk/frontdesk/internal/domain/scheduling"
)

// Service manages the doctor and patient records appointments refer to.
type Service struct {
	doctors  DoctorRepository
	patients PatientRepository
	logger   zerolog.Logger
}

func NewService(doctors DoctorRepository, patients PatientRepository, logger zerolog.Logger) *Service {
	return &Service{doctors: doctors, patients: patients, logger: logger}
}

func normaliseName(first, last *string) error {
	*first = strings.TrimSpace(*first)
	*last = strings.TrimSpace(*last)
	if *first == "" || *last == "" {
		return invalid("first_name and last_name are required")
	}
	return nil
}

func normaliseEmail(email string) (string, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return "", invalid("email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return "", invalid("email %q is not a valid address", email)
	}
	return strings.ToLower(email), nil
}

func (s *Service) buildDoctor(in DoctorInput) (*Doctor, error) {
	if err := normaliseName(&in.FirstName, &in.LastName); err != nil {
		return nil, err
	}
	in.Specialization = strings.TrimSpace(in.Specialization)
	if in.Specialization == "" {
		return nil, invalid("specialization is required")
	}
	email, err := normaliseEmail(in.Email)
	if err != nil {
		return nil, err
	}

	availability := scheduling.Availability{}
	if len(in.Availability) > 0 && string(in.Availability) != "null" {
		availability, err = scheduling.ParseAvailabilityStrict(in.Availability)
		if err != nil {
			return nil, invalid("invalid availability: %v", err)
		}
	}

	return &Doctor{
		FirstName:      in.FirstName,
		LastName:       in.LastName,
		Specialization: in.Specialization,
		Email:          email,
		Phone:          trimmed(in.Phone),
		Availability:   availability,
	}, nil
}

func (s *Service) CreateDoctor(ctx context.Context, in DoctorInput) (*Doctor, error) {
	d, err := s.buildDoctor(in)
	if err != nil {
		return nil, err
	}
	if err := s.doctors.Create(ctx, d); err != nil {
		return nil, err
	}
	s.logger.Info().Str("doctor_id", d.ID.String()).Msg("doctor created")
	return d, nil
}

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return s.doctors.Get(ctx, id)
}

func (s *Service) ListDoctors(ctx context.Context, limit, offset int) ([]*Doctor, int, error) {
	return s.doctors.List(ctx, limit, offset)
}

// UpdateDoctor replaces every writable field of the doctor.
func (s *Service) UpdateDoctor(ctx context.Context, id uuid.UUID, in DoctorInput) (*Doctor, error) {
	d, err := s.buildDoctor(in)
	if err != nil {
		return nil, err
	}
	d.ID = id
	if err := s.doctors.Update(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// DeleteDoctor fails with ErrInUse while appointments still reference the
// doctor.
func (s *Service) DeleteDoctor(ctx context.Context, id uuid.UUID) error {
	if err := s.doctors.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("doctor_id", id.String()).Msg("doctor deleted")
	return nil
}

func (s *Service) buildPatient(in PatientInput) (*Patient, error) {
	if err := normaliseName(&in.FirstName, &in.LastName); err != nil {
		return nil, err
	}
	email, err := normaliseEmail(in.Email)
	if err != nil {
		return nil, err
	}
	return &Patient{
		FirstName:   in.FirstName,
		LastName:    in.LastName,
		Email:       email,
		Phone:       trimmed(in.Phone),
		DateOfBirth: in.DateOfBirth,
		Gender:      trimmed(in.Gender),
		Address:     trimmed(in.Address),
	}, nil
}

func (s *Service) CreatePatient(ctx context.Context, in PatientInput) (*Patient, error) {
	p, err := s.buildPatient(in)
	if err != nil {
		return nil, err
	}
	if err := s.patients.Create(ctx, p); err != nil {
		return nil, err
	}
	s.logger.Info().Str("patient_id", p.ID.String()).Msg("patient created")
	return p, nil
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.patients.Get(ctx, id)
}

func (s *Service) ListPatients(ctx context.Context, limit, offset int) ([]*Patient, int, error) {
	return s.patients.List(ctx, limit, offset)
}

func (s *Service) UpdatePatient(ctx context.Context, id uuid.UUID, in PatientInput) (*Patient, error) {
	p, err := s.buildPatient(in)
	if err != nil {
		return nil, err
	}
	p.ID = id
	if err := s.patients.Update(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Service) DeletePatient(ctx context.Context, id uuid.UUID) error {
	if err := s.patients.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info().Str("patient_id", id.String()).Msg("patient deleted")
	return nil
}
