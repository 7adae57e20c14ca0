package medication

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Jackshan-Venujan/Hospital-Management-System-sub002/internal/platform/db"
)

// NumberConstraint keeps prescription numbers unique.
const NumberConstraint = "prescriptions_number_uniq"

type prescriptionRepoPG struct{ pool *pgxpool.Pool }

func NewPrescriptionRepoPG(pool *pgxpool.Pool) PrescriptionRepository {
	return &prescriptionRepoPG{pool: pool}
}

func (r *prescriptionRepoPG) conn(ctx context.Context) db.Queryable { return db.Conn(ctx, r.pool) }

var rxCols = []string{
	"rx.id", "rx.prescription_number", "rx.patient_id", "rx.doctor_id", "rx.medical_record_id",
	"rx.prescription_date", "rx.status", "rx.total_cost", "rx.notes", "rx.created_at", "rx.updated_at",
	"COALESCE(d.first_name || ' ' || d.last_name, '')",
	"COALESCE(p.first_name || ' ' || p.last_name, '')",
}

func rxFrom() sq.SelectBuilder {
	return db.Psql.Select().From("prescriptions rx").
		LeftJoin("doctors d ON d.id = rx.doctor_id").
		LeftJoin("patients p ON p.id = rx.patient_id")
}

func scanPrescription(row pgx.Row) (*Prescription, error) {
	var p Prescription
	err := row.Scan(&p.ID, &p.Number, &p.PatientID, &p.DoctorID, &p.MedicalRecordID,
		&p.Date, &p.Status, &p.TotalCost, &p.Notes, &p.CreatedAt, &p.UpdatedAt,
		&p.DoctorName, &p.PatientName)
	return &p, err
}

func (r *prescriptionRepoPG) Create(ctx context.Context, p *Prescription) error {
	p.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO prescriptions (id, prescription_number, patient_id, doctor_id, medical_record_id,
			prescription_date, status, total_cost, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`,
		p.ID, p.Number, p.PatientID, p.DoctorID, p.MedicalRecordID,
		p.Date, p.Status, p.TotalCost, p.Notes,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	switch {
	case db.IsUniqueViolation(err, NumberConstraint):
		return errDuplicateNumber
	case db.IsForeignKeyViolation(err):
		return invalid("unknown doctor, patient or medical record")
	}
	return err
}

func (r *prescriptionRepoPG) AddItem(ctx context.Context, it *Item) error {
	it.ID = uuid.New()
	_, err := r.conn(ctx).Exec(ctx, `
		INSERT INTO prescription_items (id, prescription_id, line_no, medication_name, dosage, frequency,
			duration, quantity, instructions, cost)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		it.ID, it.PrescriptionID, it.LineNo, it.MedicationName, it.Dosage, it.Frequency,
		it.Duration, it.Quantity, it.Instructions, it.Cost)
	return err
}

func (r *prescriptionRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Prescription, error) {
	sql, args, err := rxFrom().Columns(rxCols...).Where(sq.Eq{"rx.id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	p, err := scanPrescription(r.conn(ctx).QueryRow(ctx, sql, args...))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	if err := r.attachItems(ctx, []*Prescription{p}); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *prescriptionRepoPG) UpdateStatus(ctx context.Context, id uuid.UUID, status Status) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE prescriptions SET status = $2, updated_at = NOW() WHERE id = $1`, id, status)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *prescriptionRepoPG) query(ctx context.Context, b sq.SelectBuilder) ([]*Prescription, error) {
	sql, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Prescription
	for rows.Next() {
		p, err := scanPrescription(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

// attachItems loads the line items of every prescription in one query.
func (r *prescriptionRepoPG) attachItems(ctx context.Context, rxs []*Prescription) error {
	if len(rxs) == 0 {
		return nil
	}
	byID := make(map[uuid.UUID]*Prescription, len(rxs))
	ids := make([]uuid.UUID, 0, len(rxs))
	for _, p := range rxs {
		p.Items = []Item{}
		byID[p.ID] = p
		ids = append(ids, p.ID)
	}

	rows, err := r.conn(ctx).Query(ctx, `
		SELECT id, prescription_id, line_no, medication_name, dosage, frequency,
			duration, quantity, instructions, cost
		FROM prescription_items
		WHERE prescription_id = ANY($1)
		ORDER BY prescription_id, line_no`, ids)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ID, &it.PrescriptionID, &it.LineNo, &it.MedicationName, &it.Dosage,
			&it.Frequency, &it.Duration, &it.Quantity, &it.Instructions, &it.Cost); err != nil {
			return err
		}
		if p, ok := byID[it.PrescriptionID]; ok {
			p.Items = append(p.Items, it)
		}
	}
	return rows.Err()
}

func (r *prescriptionRepoPG) Search(ctx context.Context, f Filter, limit, offset int) ([]*Prescription, int, error) {
	base := rxFrom()
	if f.PatientID != nil {
		base = base.Where(sq.Eq{"rx.patient_id": *f.PatientID})
	}
	if f.DoctorID != nil {
		base = base.Where(sq.Eq{"rx.doctor_id": *f.DoctorID})
	}
	if f.Status != "" {
		base = base.Where(sq.Eq{"rx.status": f.Status})
	}
	if !f.From.IsZero() {
		base = base.Where(sq.GtOrEq{"rx.prescription_date": f.From})
	}
	if !f.To.IsZero() {
		base = base.Where(sq.LtOrEq{"rx.prescription_date": f.To})
	}

	total, err := db.Count(ctx, r.conn(ctx), base)
	if err != nil {
		return nil, 0, err
	}
	items, err := r.query(ctx, db.Page(base.Columns(rxCols...).OrderBy("rx.prescription_date DESC", "rx.created_at DESC"), limit, offset))
	if err != nil {
		return nil, 0, err
	}
	if err := r.attachItems(ctx, items); err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *prescriptionRepoPG) ListForPatientDoctor(ctx context.Context, patientID, doctorID uuid.UUID) ([]*Prescription, error) {
	items, err := r.query(ctx, rxFrom().Columns(rxCols...).
		Where(sq.Eq{"rx.patient_id": patientID, "rx.doctor_id": doctorID}).
		OrderBy("rx.prescription_date DESC", "rx.created_at DESC"))
	if err != nil {
		return nil, err
	}
	if err := r.attachItems(ctx, items); err != nil {
		return nil, err
	}
	return items, nil
}
