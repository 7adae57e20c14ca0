package scheduling

import (
	"context"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Jackshan-Venujan/Hospital-Management-System-sub002/internal/platform/db"
	"github.com/Jackshan-Venujan/Hospital-Management-System-sub002/pkg/calendar"
)

// ActiveSlotConstraint is the partial unique index that keeps two
// non-cancelled appointments off the same doctor, date and time.
const ActiveSlotConstraint = "appointments_active_slot_uniq"

func notFound(err error) error {
	if db.IsNoRows(err) {
		return ErrNotFound
	}
	return err
}

// =========== Weekly Rule Repository ===========

type weeklyRuleRepoPG struct{ pool *pgxpool.Pool }

func NewWeeklyRuleRepoPG(pool *pgxpool.Pool) WeeklyRuleRepository {
	return &weeklyRuleRepoPG{pool: pool}
}

func (r *weeklyRuleRepoPG) conn(ctx context.Context) db.Queryable { return db.Conn(ctx, r.pool) }

const ruleCols = `id, doctor_id, day_of_week, start_time, end_time, slot_duration_minutes, created_at, updated_at`

func scanRule(row pgx.Row) (*WeeklyRule, error) {
	var w WeeklyRule
	err := row.Scan(&w.ID, &w.DoctorID, &w.DayOfWeek, &w.StartTime, &w.EndTime,
		&w.SlotDurationMinutes, &w.CreatedAt, &w.UpdatedAt)
	return &w, err
}

func (r *weeklyRuleRepoPG) Upsert(ctx context.Context, w *WeeklyRule) error {
	if w.ID == uuid.Nil {
		w.ID = uuid.New()
	}
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO weekly_availability (id, doctor_id, day_of_week, start_time, end_time, slot_duration_minutes)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (doctor_id, day_of_week) DO UPDATE
			SET start_time = EXCLUDED.start_time,
				end_time = EXCLUDED.end_time,
				slot_duration_minutes = EXCLUDED.slot_duration_minutes,
				updated_at = NOW()
		RETURNING id, created_at, updated_at`,
		w.ID, w.DoctorID, w.DayOfWeek, w.StartTime, w.EndTime, w.SlotDurationMinutes,
	).Scan(&w.ID, &w.CreatedAt, &w.UpdatedAt)
}

func (r *weeklyRuleRepoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID) ([]*WeeklyRule, error) {
	rows, err := r.conn(ctx).Query(ctx, `
		SELECT `+ruleCols+` FROM weekly_availability
		WHERE doctor_id = $1
		ORDER BY array_position(ARRAY['monday','tuesday','wednesday','thursday','friday','saturday','sunday'], day_of_week)`,
		doctorID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*WeeklyRule
	for rows.Next() {
		w, err := scanRule(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, w)
	}
	return items, rows.Err()
}

func (r *weeklyRuleRepoPG) Delete(ctx context.Context, doctorID uuid.UUID, day Weekday) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`DELETE FROM weekly_availability WHERE doctor_id = $1 AND day_of_week = $2`, doctorID, day)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

// =========== Time Block Repository ===========

type timeBlockRepoPG struct{ pool *pgxpool.Pool }

func NewTimeBlockRepoPG(pool *pgxpool.Pool) TimeBlockRepository {
	return &timeBlockRepoPG{pool: pool}
}

func (r *timeBlockRepoPG) conn(ctx context.Context) db.Queryable { return db.Conn(ctx, r.pool) }

const blockCols = `id, doctor_id, date, start_time, end_time, reason, created_by, created_at`

func scanBlock(row pgx.Row) (*TimeBlock, error) {
	var b TimeBlock
	err := row.Scan(&b.ID, &b.DoctorID, &b.Date, &b.StartTime, &b.EndTime, &b.Reason, &b.CreatedBy, &b.CreatedAt)
	return &b, err
}

func (r *timeBlockRepoPG) Create(ctx context.Context, b *TimeBlock) error {
	b.ID = uuid.New()
	return r.conn(ctx).QueryRow(ctx, `
		INSERT INTO time_blocks (id, doctor_id, date, start_time, end_time, reason, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING created_at`,
		b.ID, b.DoctorID, b.Date, b.StartTime, b.EndTime, b.Reason, b.CreatedBy,
	).Scan(&b.CreatedAt)
}

func (r *timeBlockRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*TimeBlock, error) {
	b, err := scanBlock(r.conn(ctx).QueryRow(ctx, `SELECT `+blockCols+` FROM time_blocks WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return b, nil
}

func (r *timeBlockRepoPG) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.conn(ctx).Exec(ctx, `DELETE FROM time_blocks WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *timeBlockRepoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID, from, to calendar.Date) ([]*TimeBlock, error) {
	q := db.Psql.Select(blockCols).From("time_blocks").
		Where(sq.Eq{"doctor_id": doctorID}).
		OrderBy("date", "start_time")
	if !from.IsZero() {
		q = q.Where(sq.GtOrEq{"date": from})
	}
	if !to.IsZero() {
		q = q.Where(sq.LtOrEq{"date": to})
	}
	sql, args, err := q.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*TimeBlock
	for rows.Next() {
		b, err := scanBlock(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, b)
	}
	return items, rows.Err()
}

// =========== Appointment Repository ===========

type appointmentRepoPG struct{ pool *pgxpool.Pool }

func NewAppointmentRepoPG(pool *pgxpool.Pool) AppointmentRepository {
	return &appointmentRepoPG{pool: pool}
}

func (r *appointmentRepoPG) conn(ctx context.Context) db.Queryable { return db.Conn(ctx, r.pool) }

var apptCols = []string{
	"a.id", "a.doctor_id", "a.patient_id", "a.date", "a.time", "a.status",
	"a.reason", "a.notes", "a.cancel_reason", "a.created_by", "a.created_at", "a.updated_at",
	"COALESCE(d.first_name || ' ' || d.last_name, '')",
	"COALESCE(p.first_name || ' ' || p.last_name, '')",
}

// apptFrom is the joined FROM clause shared by every appointment read.
func apptFrom() sq.SelectBuilder {
	return db.Psql.Select().From("appointments a").
		LeftJoin("doctors d ON d.id = a.doctor_id").
		LeftJoin("patients p ON p.id = a.patient_id")
}

func scanAppointment(row pgx.Row) (*Appointment, error) {
	var a Appointment
	err := row.Scan(&a.ID, &a.DoctorID, &a.PatientID, &a.Date, &a.Time, &a.Status,
		&a.Reason, &a.Notes, &a.CancelReason, &a.CreatedBy, &a.CreatedAt, &a.UpdatedAt,
		&a.DoctorName, &a.PatientName)
	return &a, err
}

func (r *appointmentRepoPG) query(ctx context.Context, b sq.SelectBuilder) ([]*Appointment, error) {
	sql, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Appointment
	for rows.Next() {
		a, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, a)
	}
	return items, rows.Err()
}

func (r *appointmentRepoPG) Create(ctx context.Context, a *Appointment) error {
	a.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO appointments (id, doctor_id, patient_id, date, time, status, reason, notes, created_by)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`,
		a.ID, a.DoctorID, a.PatientID, a.Date, a.Time, a.Status, a.Reason, a.Notes, a.CreatedBy,
	).Scan(&a.CreatedAt, &a.UpdatedAt)
	if db.IsUniqueViolation(err, ActiveSlotConstraint) {
		return fmt.Errorf("%w: %s %s already booked", ErrSlotUnavailable, a.Date, a.Time)
	}
	if db.IsForeignKeyViolation(err) {
		return fmt.Errorf("%w: doctor or patient", ErrNotFound)
	}
	return err
}

func (r *appointmentRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Appointment, error) {
	sql, args, err := apptFrom().Columns(apptCols...).Where(sq.Eq{"a.id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	a, err := scanAppointment(r.conn(ctx).QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, notFound(err)
	}
	return a, nil
}

func (r *appointmentRepoPG) UpdateStatus(ctx context.Context, a *Appointment) error {
	err := r.conn(ctx).QueryRow(ctx, `
		UPDATE appointments SET status = $2, cancel_reason = $3, updated_at = NOW()
		WHERE id = $1
		RETURNING updated_at`,
		a.ID, a.Status, a.CancelReason,
	).Scan(&a.UpdatedAt)
	if db.IsUniqueViolation(err, ActiveSlotConstraint) {
		return fmt.Errorf("%w: %s %s already booked", ErrSlotUnavailable, a.Date, a.Time)
	}
	return notFound(err)
}

func (r *appointmentRepoPG) UpdateNotes(ctx context.Context, id uuid.UUID, notes *string) error {
	tag, err := r.conn(ctx).Exec(ctx,
		`UPDATE appointments SET notes = $2, updated_at = NOW() WHERE id = $1`, id, notes)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *appointmentRepoPG) ListByDoctor(ctx context.Context, doctorID uuid.UUID, from, to calendar.Date) ([]*Appointment, error) {
	return r.query(ctx, apptFrom().Columns(apptCols...).
		Where(sq.Eq{"a.doctor_id": doctorID}).
		Where(sq.GtOrEq{"a.date": from}).
		Where(sq.LtOrEq{"a.date": to}).
		OrderBy("a.date", "a.time", "a.created_at"))
}

func (r *appointmentRepoPG) ListForPatientDoctor(ctx context.Context, patientID, doctorID uuid.UUID) ([]*Appointment, error) {
	return r.query(ctx, apptFrom().Columns(apptCols...).
		Where(sq.Eq{"a.patient_id": patientID, "a.doctor_id": doctorID}).
		OrderBy("a.date DESC", "a.time DESC"))
}

func (r *appointmentRepoPG) Search(ctx context.Context, f AppointmentFilter, limit, offset int) ([]*Appointment, int, error) {
	base := apptFrom()
	if f.DoctorID != nil {
		base = base.Where(sq.Eq{"a.doctor_id": *f.DoctorID})
	}
	if f.PatientID != nil {
		base = base.Where(sq.Eq{"a.patient_id": *f.PatientID})
	}
	if f.Status != "" {
		base = base.Where(sq.Eq{"a.status": f.Status})
	}
	if !f.From.IsZero() {
		base = base.Where(sq.GtOrEq{"a.date": f.From})
	}
	if !f.To.IsZero() {
		base = base.Where(sq.LtOrEq{"a.date": f.To})
	}

	total, err := db.Count(ctx, r.conn(ctx), base)
	if err != nil {
		return nil, 0, err
	}
	items, err := r.query(ctx, db.Page(base.Columns(apptCols...).OrderBy("a.date DESC", "a.time DESC"), limit, offset))
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *appointmentRepoPG) LockDoctorDay(ctx context.Context, doctorID uuid.UUID, date calendar.Date) error {
	_, err := r.conn(ctx).Exec(ctx,
		`SELECT pg_advisory_xact_lock(hashtext($1))`, doctorID.String()+"/"+date.String())
	return err
}
