package identity

import (
	"context"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/Jackshan-Venujan/Hospital-Management-System-sub002/internal/platform/db"
)

func notFound(err error) error {
	if db.IsNoRows(err) {
		return ErrNotFound
	}
	return err
}

// -- User Repository --

type userRepoPG struct{ pool *pgxpool.Pool }

func NewUserRepoPG(pool *pgxpool.Pool) UserRepository {
	return &userRepoPG{pool: pool}
}

func (r *userRepoPG) conn(ctx context.Context) db.Queryable { return db.Conn(ctx, r.pool) }

const userCols = `id, username, password_hash, role, display_name, email, doctor_id, patient_id,
	active, last_login, created_at, updated_at`

func scanUser(row pgx.Row) (*User, error) {
	var u User
	err := row.Scan(&u.ID, &u.Username, &u.PasswordHash, &u.Role, &u.DisplayName, &u.Email,
		&u.DoctorID, &u.PatientID, &u.Active, &u.LastLogin, &u.CreatedAt, &u.UpdatedAt)
	return &u, err
}

func (r *userRepoPG) Create(ctx context.Context, u *User) error {
	u.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO users (id, username, password_hash, role, display_name, email, doctor_id, patient_id, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`,
		u.ID, u.Username, u.PasswordHash, u.Role, u.DisplayName, u.Email, u.DoctorID, u.PatientID, u.Active,
	).Scan(&u.CreatedAt, &u.UpdatedAt)
	switch {
	case db.IsUniqueViolation(err):
		return ErrConflict
	case db.IsForeignKeyViolation(err):
		return invalid("linked doctor or patient does not exist")
	}
	return err
}

func (r *userRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	u, err := scanUser(r.conn(ctx).QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE id = $1`, id))
	if err != nil {
		return nil, notFound(err)
	}
	return u, nil
}

func (r *userRepoPG) GetByUsername(ctx context.Context, username string) (*User, error) {
	u, err := scanUser(r.conn(ctx).QueryRow(ctx, `SELECT `+userCols+` FROM users WHERE username = $1`, username))
	if err != nil {
		return nil, notFound(err)
	}
	return u, nil
}

func (r *userRepoPG) TouchLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	_, err := r.conn(ctx).Exec(ctx, `UPDATE users SET last_login = $2 WHERE id = $1`, id, at)
	return err
}

// -- Doctor Repository --

type doctorRepoPG struct{ pool *pgxpool.Pool }

func NewDoctorRepoPG(pool *pgxpool.Pool) DoctorRepository {
	return &doctorRepoPG{pool: pool}
}

func (r *doctorRepoPG) conn(ctx context.Context) db.Queryable { return db.Conn(ctx, r.pool) }

var doctorCols = []string{
	"id", "first_name", "last_name", "specialization", "department", "license_number",
	"phone", "email", "active", "created_at", "updated_at",
}

func scanDoctor(row pgx.Row) (*Doctor, error) {
	var d Doctor
	err := row.Scan(&d.ID, &d.FirstName, &d.LastName, &d.Specialization, &d.Department, &d.LicenseNumber,
		&d.Phone, &d.Email, &d.Active, &d.CreatedAt, &d.UpdatedAt)
	return &d, err
}

func (r *doctorRepoPG) Create(ctx context.Context, d *Doctor) error {
	d.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO doctors (id, first_name, last_name, specialization, department, license_number, phone, email, active)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING created_at, updated_at`,
		d.ID, d.FirstName, d.LastName, d.Specialization, d.Department, d.LicenseNumber, d.Phone, d.Email, d.Active,
	).Scan(&d.CreatedAt, &d.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (r *doctorRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	sql, args, err := db.Psql.Select(doctorCols...).From("doctors").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	d, err := scanDoctor(r.conn(ctx).QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, notFound(err)
	}
	return d, nil
}

func (r *doctorRepoPG) Search(ctx context.Context, f DoctorFilter, limit, offset int) ([]*Doctor, int, error) {
	base := db.Psql.Select().From("doctors")
	if f.Query != "" {
		pattern := db.Contains(f.Query)
		base = base.Where(sq.Or{sq.ILike{"first_name": pattern}, sq.ILike{"last_name": pattern}})
	}
	if f.Specialization != "" {
		base = base.Where(sq.Eq{"specialization": f.Specialization})
	}
	if f.Department != "" {
		base = base.Where(sq.Eq{"department": f.Department})
	}
	if f.ActiveOnly {
		base = base.Where(sq.Eq{"active": true})
	}

	total, err := db.Count(ctx, r.conn(ctx), base)
	if err != nil {
		return nil, 0, err
	}
	sql, args, err := db.Page(base.Columns(doctorCols...).OrderBy("last_name", "first_name"), limit, offset).ToSql()
	if err != nil {
		return nil, 0, err
	}
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()
	var items []*Doctor
	for rows.Next() {
		d, err := scanDoctor(rows)
		if err != nil {
			return nil, 0, err
		}
		items = append(items, d)
	}
	return items, total, rows.Err()
}

// -- Patient Repository --

type patientRepoPG struct{ pool *pgxpool.Pool }

func NewPatientRepoPG(pool *pgxpool.Pool) PatientRepository {
	return &patientRepoPG{pool: pool}
}

func (r *patientRepoPG) conn(ctx context.Context) db.Queryable { return db.Conn(ctx, r.pool) }

var patientCols = []string{
	"id", "mrn", "first_name", "last_name", "date_of_birth", "gender", "blood_group",
	"phone", "email", "address", "emergency_contact", "created_at", "updated_at",
}

func scanPatient(row pgx.Row) (*Patient, error) {
	var p Patient
	err := row.Scan(&p.ID, &p.MRN, &p.FirstName, &p.LastName, &p.DateOfBirth, &p.Gender, &p.BloodGroup,
		&p.Phone, &p.Email, &p.Address, &p.EmergencyContact, &p.CreatedAt, &p.UpdatedAt)
	return &p, err
}

func (r *patientRepoPG) list(ctx context.Context, b sq.SelectBuilder) ([]*Patient, error) {
	sql, args, err := b.ToSql()
	if err != nil {
		return nil, err
	}
	rows, err := r.conn(ctx).Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []*Patient
	for rows.Next() {
		p, err := scanPatient(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, p)
	}
	return items, rows.Err()
}

func (r *patientRepoPG) Create(ctx context.Context, p *Patient) error {
	p.ID = uuid.New()
	err := r.conn(ctx).QueryRow(ctx, `
		INSERT INTO patients (id, mrn, first_name, last_name, date_of_birth, gender, blood_group,
			phone, email, address, emergency_contact)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		RETURNING created_at, updated_at`,
		p.ID, p.MRN, p.FirstName, p.LastName, p.DateOfBirth, p.Gender, p.BloodGroup,
		p.Phone, p.Email, p.Address, p.EmergencyContact,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if db.IsUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (r *patientRepoPG) GetByID(ctx context.Context, id uuid.UUID) (*Patient, error) {
	sql, args, err := db.Psql.Select(patientCols...).From("patients").Where(sq.Eq{"id": id}).ToSql()
	if err != nil {
		return nil, err
	}
	p, err := scanPatient(r.conn(ctx).QueryRow(ctx, sql, args...))
	if err != nil {
		return nil, notFound(err)
	}
	return p, nil
}

func (r *patientRepoPG) Search(ctx context.Context, f PatientFilter, limit, offset int) ([]*Patient, int, error) {
	base := db.Psql.Select().From("patients")
	if f.Query != "" {
		pattern := db.Contains(f.Query)
		base = base.Where(sq.Or{
			sq.ILike{"first_name": pattern},
			sq.ILike{"last_name": pattern},
			sq.ILike{"mrn": pattern},
			sq.ILike{"phone": pattern},
		})
	}

	total, err := db.Count(ctx, r.conn(ctx), base)
	if err != nil {
		return nil, 0, err
	}
	items, err := r.list(ctx, db.Page(base.Columns(patientCols...).OrderBy("last_name", "first_name"), limit, offset))
	if err != nil {
		return nil, 0, err
	}
	return items, total, nil
}

func (r *patientRepoPG) ListForDoctor(ctx context.Context, doctorID uuid.UUID) ([]*Patient, error) {
	return r.list(ctx, db.Psql.Select(patientCols...).From("patients").
		Where(`id IN (
			SELECT patient_id FROM appointments WHERE doctor_id = ?
			UNION SELECT patient_id FROM medical_records WHERE doctor_id = ?
			UNION SELECT patient_id FROM prescriptions WHERE doctor_id = ?)`,
			doctorID, doctorID, doctorID).
		OrderBy("last_name", "first_name"))
}
