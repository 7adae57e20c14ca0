package medication

import (
	"context"

	"github.com/google/uuid"
)

type PrescriptionRepository interface {
	// Create inserts the header only; items go through AddItem.
	Create(ctx context.Context, p *Prescription) error
	AddItem(ctx context.Context, item *Item) error
	GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error
	Search(ctx context.Context, f Filter, limit, offset int) ([]*Prescription, int, error)
	// ListForPatientDoctor returns the pair's prescriptions with items,
	// newest first.
	ListForPatientDoctor(ctx context.Context, patientID, doctorID uuid.UUID) ([]*Prescription, error)
}
