package clinical

import (
	"context"

	"github.com/google/uuid"
)

type MedicalRecordRepository interface {
	Create(ctx context.Context, r *MedicalRecord) error
	GetByID(ctx context.Context, id uuid.UUID) (*MedicalRecord, error)
	Search(ctx context.Context, f RecordFilter, limit, offset int) ([]*MedicalRecord, int, error)
	// ListForPatientDoctor returns the pair's records, newest visit first.
	ListForPatientDoctor(ctx context.Context, patientID, doctorID uuid.UUID) ([]*MedicalRecord, error)
}
