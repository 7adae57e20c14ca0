package clinical

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Jackshan-Venujan/Hospital-Management-System-sub002/internal/platform/db"
)

type medicalRecordRepoPG struct{ pool *pgxpool.Pool }

func NewMedicalRecordRepoPG(pool *pgxpool.Pool) MedicalRecordRepository {
	return &medicalRecordRepoPG{pool: pool}
}

func (r *medicalRecordRepoPG) conn(ctx context.Context) db.Queryable { return db.Conn(ctx, r.pool) }

var recordCols = []string{
	"m.id", "m.patient_id", "m.doctor_id", "m.visit_date",
	"m.chief_complaint", "m.symptoms", "m.diagnosis", "m.treatment_plan",
	"m.follow_up_instructions", "m.notes",
	"m.weight_kg", "m.height_cm", "m.blood_pressure", "m.temperature_c", "m.pulse_rate",
	"m.created_at",
	"COALESCE(d.first_name || ' ' || d.last_name, '')",
	"COALESCE(p.first_name || ' ' || p.last_name, '')",
}

func recordFrom() sq.SelectBuilder {
	return db.Psql.Select().From("medical_records m").
		LeftJoin("doctors d ON d.id = m.doctor_id").
		LeftJoin("patients p ON p.id = m.patient_id")
}

func scanRecord(row pgx.Row) (*MedicalRecord, error) {
	var m MedicalRecord
	err := row.Scan(&m.ID, &m.PatientID, &m.DoctorID, &m.VisitDate,
		&m.ChiefComplaint, &m.Symptoms, &m.Diagnosis, &m.TreatmentPlan,
		&m.FollowUpInstructions, &m.Notes,
		&m.Vitals.WeightKg, &m.Vitals.HeightCm, &m.Vitals.BloodPressure, &m.Vitals.TemperatureC, &m.Vitals.PulseRate,
		&m.CreatedAt, &m.DoctorName, &m.PatientName)
	return &m, err
}

func (r *medicalRecordRepoPG) query(ctx context.Context, b sq.SelectBuilder) ([]*MedicalRecord, error) {
	sql, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*MedicalRecord
	for rows.Next() {
		m, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

func (r *medicalRecordRepoPG) Create(ctx context.Context, m *MedicalRecord) error {
	m.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO medical_records (id, patient_id, doctor_id, visit_date,
			chief_complaint, symptoms, diagnosis, treatment_plan, follow_up_instructions, notes,
			weight_kg, height_cm, blood_pressure, temperature_c, pulse_rate)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15)
		RETURNING created_at`,
		m.ID, m.PatientID, m.DoctorID, m.VisitDate,
		m.ChiefComplaint, m.Symptoms, m.Diagnosis, m.TreatmentPlan, m.FollowUpInstructions, m.Notes,
		m.Vitals.WeightKg, m.Vitals.HeightCm, m.Vitals.BloodPressure, m.Vitals.TemperatureC, m.Vitals.PulseRate,
	).Scan(&m.CreatedAt)
	if db.IsForeignKeyViolation(err) {
		return invalid("unknown doctor or patient")
	}
	return err
}

func (r *medicalRecordRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*MedicalRecord, error) {
	sql, args, err := recordFrom().Columns(recordCols...).Where(sq.Eq{"m.id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	m, err := scanRecord(r.conn(ctx).QueryRow(ctx, sql, args...))
	if err != nil {
		if db.IsNoRows(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return m, nil
}

func (r *medicalRecordRepoPG) Search(ctx context.Context, f RecordFilter, limit, offset int) ([]*MedicalRecord, int, error) {
	base := recordFrom()
	if f.PatientID != nil {
		base = base.Where(sq.Eq{"m.patient_id": *f.PatientID})
	}
	if f.DoctorID != nil {
		base = base.Where(sq.Eq{"m.doctor_id": *f.DoctorID})
	}
	if !f.From.IsZero() {
		base = base.Where(sq.GtOrEq{"m.visit_date": f.From})
	}
	if !f.To.IsZero() {
		base = base.Where(sq.LtOrEq{"m.visit_date": f.To})
	}
	if f.Query != "" {
		pattern := db.Contains(f.Query)
		base = base.Where(sq.Or{
			sq.ILike{"m.chief_complaint": pattern},
			sq.ILike{"m.diagnosis": pattern},
		})
	}

	total, err := db.Count(ctx, r.conn(ctx), base)
	if err != nil {
		return nil, 0, err
	}
	items, err := r.query(ctx, db.Page(base.Columns(recordCols...).OrderBy("m.visit_date DESC", "m.created_at DESC"), limit, offset))
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *medicalRecordRepoPG) ListForPatientDoctor(ctx context.Context, patientID, doctorID uuid.UUID) ([]*MedicalRecord, error) {
	return r.query(ctx, recordFrom().Columns(recordCols...).
		Where(sq.Eq{"m.patient_id": patientID, "m.doctor_id": doctorID}).
		OrderBy("m.visit_date DESC", "m.created_at DESC"))
}
