package directory

import (
	"context"

	"github.com/google/uuid"
)

// DoctorRepository persists doctors. Get, Update and Delete return
// ErrNotFound for unknown ids.
type DoctorRepository interface {
	Create(ctx context.Context, d *Doctor) error
	Get(ctx context.Context, id uuid.UUID) (*Doctor, error)
	List(ctx context.Context, limit, offset int) ([]*Doctor, int, error)
	Update(ctx context.Context, d *Doctor) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type PatientRepository interface {
	Create(ctx context.Context, p *Patient) error
	Get(ctx context.Context, id uuid.UUID) (*Patient, error)
	List(ctx context.Context, limit, offset int) ([]*Patient, int, error)
	Update(ctx context.Context, p *Patient) error
	Delete(ctx context.Context, id uuid.UUID) error
}
