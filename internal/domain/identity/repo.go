package identity

import (
	"context"
	"time"

	"github.com/google/uuid"
)

type UserRepository interface {
	Create(ctx context.Context, u *User) error
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
	GetByUsername(ctx context.Context, username string) (*User, error)
	TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
}

type DoctorRepository interface {
	Create(ctx context.Context, d *Doctor) error
	GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error)
	Search(ctx context.Context, f DoctorFilter, limit, offset int) ([]*Doctor, int, error)
}

type PatientRepository interface {
	Create(ctx context.Context, p *Patient) error
	GetByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	Search(ctx context.Context, f PatientFilter, limit, offset int) ([]*Patient, int, error)
	// ListForDoctor returns patients with any appointment, record or
	// prescription under the doctor.
	ListForDoctor(ctx context.Context, doctorID uuid.UUID) ([]*Patient, error)
}
