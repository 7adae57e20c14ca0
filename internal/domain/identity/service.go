package identity

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/Jackshan-Venujan/Hospital-Management-System-sub002/internal/platform/auth"
	"github.com/Jackshan-Venujan/Hospital-Management-System-sub002/pkg/calendar"
)

var usernamePattern = regexp.MustCompile(`^[a-z0-9][a-z0-9._-]{2,63}$`)

// LoginObserver is told whether each login attempt succeeded.
type LoginObserver interface {
	ObserveLogin(success bool)
}

type nopObserver struct{}

func (nopObserver) ObserveLogin(bool) {}

type Service struct {
	users    UserRepository
	doctors  DoctorRepository
	patients PatientRepository
	tokens   *auth.TokenIssuer
	hasher   *auth.PasswordHasher
	logins   LoginObserver
	logger   zerolog.Logger
	now      func() time.Time
}

type Option func(*Service)

func WithLoginObserver(o LoginObserver) Option {
	return func(s *Service) { s.logins = o }
}

func WithLogger(l zerolog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func WithPasswordHasher(h *auth.PasswordHasher) Option {
	return func(s *Service) { s.hasher = h }
}

func NewService(users UserRepository, doctors DoctorRepository, patients PatientRepository, tokens *auth.TokenIssuer, opts ...Option) *Service {
	s := &Service{
		users:    users,
		doctors:  doctors,
		patients: patients,
		tokens:   tokens,
		hasher:   auth.NewPasswordHasher(),
		logins:   nopObserver{},
		logger:   zerolog.Nop(),
		now:      time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// -- Authentication --

type LoginResult struct {
	Token     string          `json:"token"`
	ExpiresAt time.Time       `json:"expires_at"`
	User      *User           `json:"user"`
	Menu      []auth.MenuItem `json:"menu"`
}

// Login checks the password and issues a bearer token. Unknown users and
// wrong passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, username, password string) (*LoginResult, error) {
	username = strings.ToLower(strings.TrimSpace(username))
	res, err := s.login(ctx, username, password)
	s.logins.ObserveLogin(err == nil)
	if err != nil {
		s.logger.Warn().Str("username", username).Err(err).Msg("login failed")
		return nil, err
	}
	s.logger.Info().Str("user_id", res.User.ID.String()).Str("role", string(res.User.Role)).Msg("login succeeded")
	return res, nil
}

func (s *Service) login(ctx context.Context, username, password string) (*LoginResult, error) {
	if username == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	u, err := s.users.GetByUsername(ctx, username)
	if errors.Is(err, ErrNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	ok, err := s.hasher.Verify(u.PasswordHash, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}
	if !u.Active {
		return nil, ErrAccountDisabled
	}

	now := s.now()
	if err := s.users.TouchLastLogin(ctx, u.ID, now); err != nil {
		return nil, err
	}
	u.LastLogin = &now

	token, exp, err := s.tokens.Issue(u.Session())
	if err != nil {
		return nil, err
	}
	return &LoginResult{Token: token, ExpiresAt: exp, User: u, Menu: auth.MenuFor(u.Role)}, nil
}

// -- Users --

// CreateUser hashes password and stores u. Doctor and patient accounts must
// link to an existing profile.
func (s *Service) CreateUser(ctx context.Context, u *User, password string) error {
	u.Username = strings.ToLower(strings.TrimSpace(u.Username))
	if !usernamePattern.MatchString(u.Username) {
		return invalid("username must be 3-64 characters of a-z, 0-9, '.', '_' or '-'")
	}
	if !u.Role.Valid() {
		return invalid("invalid role %q", u.Role)
	}
	switch u.Role {
	case auth.RoleDoctor:
		if u.DoctorID == nil {
			return invalid("doctor accounts require doctor_id")
		}
		if _, err := s.doctors.GetByID(ctx, *u.DoctorID); err != nil {
			return linkError(err, "doctor")
		}
		u.PatientID = nil
	case auth.RolePatient:
		if u.PatientID == nil {
			return invalid("patient accounts require patient_id")
		}
		if _, err := s.patients.GetByID(ctx, *u.PatientID); err != nil {
			return linkError(err, "patient")
		}
		u.DoctorID = nil
	default:
		u.DoctorID, u.PatientID = nil, nil
	}
	u.DisplayName = strings.TrimSpace(u.DisplayName)
	if u.DisplayName == "" {
		u.DisplayName = u.Username
	}

	hash, err := s.hasher.Hash(password)
	if errors.Is(err, auth.ErrWeakPassword) {
		return invalid("%v", err)
	}
	if err != nil {
		return err
	}
	u.PasswordHash = hash
	u.Active = true

	if err := s.users.Create(ctx, u); err != nil {
		return err
	}
	s.logger.Info().Str("user_id", u.ID.String()).Str("role", string(u.Role)).Msg("user created")
	return nil
}

func linkError(err error, what string) error {
	if errors.Is(err, ErrNotFound) {
		return invalid("%s does not exist", what)
	}
	return err
}

func (s *Service) GetUser(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.users.GetByID(ctx, id)
}

// -- Doctors --

func (s *Service) CreateDoctor(ctx context.Context, d *Doctor) error {
	d.FirstName = strings.TrimSpace(d.FirstName)
	d.LastName = strings.TrimSpace(d.LastName)
	if d.FirstName == "" || d.LastName == "" {
		return invalid("first_name and last_name are required")
	}
	d.Active = true
	return s.doctors.Create(ctx, d)
}

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return s.doctors.GetByID(ctx, id)
}

func (s *Service) ListDoctors(ctx context.Context, f DoctorFilter, limit, offset int) ([]*Doctor, int, error) {
	f.Query = strings.TrimSpace(f.Query)
	return s.doctors.Search(ctx, f, limit, offset)
}

// -- Patients --

// NewMRN returns a medical record number such as MRN-3F2A9C1B.
func NewMRN() string {
	return "MRN-" + strings.ToUpper(uuid.New().String()[:8])
}

func (s *Service) CreatePatient(ctx context.Context, p *Patient) error {
	p.FirstName = strings.TrimSpace(p.FirstName)
	p.LastName = strings.TrimSpace(p.LastName)
	if p.FirstName == "" || p.LastName == "" {
		return invalid("first_name and last_name are required")
	}
	if p.DateOfBirth != nil && p.DateOfBirth.After(calendar.Of(s.now())) {
		return invalid("date_of_birth cannot be in the future")
	}
	if p.MRN = strings.TrimSpace(p.MRN); p.MRN == "" {
		p.MRN = NewMRN()
	}
	return s.patients.Create(ctx, p)
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.patients.GetByID(ctx, id)
}

func (s *Service) ListPatients(ctx context.Context, f PatientFilter, limit, offset int) ([]*Patient, int, error) {
	f.Query = strings.TrimSpace(f.Query)
	return s.patients.Search(ctx, f, limit, offset)
}

func (s *Service) ListPatientsForDoctor(ctx context.Context, doctorID uuid.UUID) ([]*Patient, error) {
	if _, err := s.doctors.GetByID(ctx, doctorID); err != nil {
		return nil, err
	}
	return s.patients.ListForDoctor(ctx, doctorID)
}
