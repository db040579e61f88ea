package dashboard

import (
	"context"
	"fmt"
	"time"

	"github.com/clinicdesk/frontdesk/internal/platform/db"
)

// Stats is the front-desk overview shown to administrators.
type Stats struct {
	TotalPatients         int       `json:"total_patients"`
	TotalDoctors          int       `json:"total_doctors"`
	TotalAppointments     int       `json:"total_appointments"`
	PendingAppointments   int       `json:"pending_appointments"`
	ApprovedAppointments  int       `json:"approved_appointments"`
	CancelledAppointments int       `json:"cancelled_appointments"`
	CompletedAppointments int       `json:"completed_appointments"`
	GeneratedAt           time.Time `json:"generated_at"`
}

// Repository computes dashboard figures.
type Repository interface {
	Stats(ctx context.Context) (*Stats, error)
}

type repoPG struct{ pool db.Querier }

func NewRepoPG(pool db.Querier) Repository {
	return &repoPG{pool: pool}
}

const statsSQL = `SELECT
	(SELECT COUNT(*) FROM patients),
	(SELECT COUNT(*) FROM doctors),
	COUNT(*),
	COUNT(*) FILTER (WHERE status = 'PENDING'),
	COUNT(*) FILTER (WHERE status = 'APPROVED'),
	COUNT(*) FILTER (WHERE status = 'CANCELLED'),
	COUNT(*) FILTER (WHERE status = 'COMPLETED')
	FROM appointments`

func (r *repoPG) Stats(ctx context.Context) (*Stats, error) {
	var s Stats
	err := db.Conn(ctx, r.pool).QueryRow(ctx, statsSQL).Scan(
		&s.TotalPatients, &s.TotalDoctors, &s.TotalAppointments,
		&s.PendingAppointments, &s.ApprovedAppointments,
		&s.CancelledAppointments, &s.CompletedAppointments,
	)
	if err != nil {
		return nil, fmt.Errorf("dashboard stats: %w", err)
	}
	return &s, nil
}
