package auth

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"edupulse/internal/model"
	"edupulse/internal/store"
	"edupulse/internal/validation"
)

var (
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrEmailTaken         = errors.New("email already registered")
	ErrInvalidRefresh     = errors.New("refresh token is invalid or expired")
	ErrSecurityPassword   = errors.New("security password is incorrect")
	ErrSecurityRequired   = errors.New("security password required")
)

// RegisterInput creates a teacher account.
type RegisterInput struct {
	Email    string `json:"email" validate:"required,email,max=254"`
	Name     string `json:"name" validate:"required,max=200"`
	Password string `json:"password" validate:"required,min=8,max=72"`
}

// LoginInput authenticates a teacher.
type LoginInput struct {
	Email    string `json:"email" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// SecurityInput sets or changes the security password.
type SecurityInput struct {
	CurrentPassword string `json:"current_password"`
	Password        string `json:"password" validate:"required,min=6,max=72"`
}

// Session is returned after register, login and refresh.
type Session struct {
	Teacher model.Teacher `json:"teacher"`
	Tokens  TokenPair     `json:"tokens"`
}

// Service handles teacher accounts, token rotation and the security password.
type Service struct {
	repo   *Repository
	issuer Issuer
	log    *zap.Logger
}

// NewService creates an auth service.
func NewService(repo *Repository, issuer Issuer, log *zap.Logger) *Service {
	return &Service{repo: repo, issuer: issuer, log: log}
}

// Register creates an account and signs it in.
func (s *Service) Register(ctx context.Context, in RegisterInput) (Session, error) {
	in.Email = normaliseEmail(in.Email)
	if err := validation.Struct(in); err != nil {
		return Session{}, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return Session{}, err
	}
	t := model.Teacher{Email: in.Email, Name: strings.TrimSpace(in.Name), PasswordHash: string(hash)}
	if err := s.repo.CreateTeacher(ctx, &t); err != nil {
		return Session{}, err
	}
	s.log.Info("teacher registered", zap.String("teacher", t.ID))
	return s.session(ctx, t)
}

// Login checks credentials. Unknown emails and wrong passwords fail the same way.
func (s *Service) Login(ctx context.Context, in LoginInput) (Session, error) {
	if err := validation.Struct(in); err != nil {
		return Session{}, err
	}
	t, err := s.repo.TeacherByEmail(ctx, normaliseEmail(in.Email))
	if errors.Is(err, store.ErrNotFound) {
		return Session{}, ErrInvalidCredentials
	}
	if err != nil {
		return Session{}, err
	}
	if err := bcrypt.CompareHashAndPassword([]byte(t.PasswordHash), []byte(in.Password)); err != nil {
		return Session{}, ErrInvalidCredentials
	}
	return s.session(ctx, *t)
}

// Refresh rotates a refresh token: the old one is revoked and a new pair is issued.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (Session, error) {
	claims, err := s.issuer.Parse(refreshToken, KindRefresh)
	if err != nil {
		return Session{}, ErrInvalidRefresh
	}
	ok, err := s.repo.RevokeRefreshToken(ctx, refreshToken)
	if err != nil {
		return Session{}, err
	}
	if !ok {
		s.log.Warn("refresh token reuse or unknown token", zap.String("teacher", claims.Subject))
		return Session{}, ErrInvalidRefresh
	}
	t, err := s.repo.TeacherByID(ctx, claims.Subject)
	if errors.Is(err, store.ErrNotFound) {
		return Session{}, ErrInvalidRefresh
	}
	if err != nil {
		return Session{}, err
	}
	return s.session(ctx, *t)
}

// SetSecurityPassword sets the security password, or changes it when the current one matches.
func (s *Service) SetSecurityPassword(ctx context.Context, teacherID string, in SecurityInput) error {
	if err := validation.Struct(in); err != nil {
		return err
	}
	t, err := s.repo.TeacherByID(ctx, teacherID)
	if err != nil {
		return err
	}
	if t.SecurityHash != nil {
		if bcrypt.CompareHashAndPassword([]byte(*t.SecurityHash), []byte(in.CurrentPassword)) != nil {
			return ErrSecurityPassword
		}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}
	if err := s.repo.SetSecurityHash(ctx, teacherID, string(hash)); err != nil {
		return err
	}
	s.log.Info("security password updated", zap.String("teacher", teacherID))
	return nil
}

// VerifySecurity reports whether password matches. A teacher without one always verifies.
func (s *Service) VerifySecurity(ctx context.Context, teacherID, password string) (bool, error) {
	t, err := s.repo.TeacherByID(ctx, teacherID)
	if err != nil {
		return false, err
	}
	if t.SecurityHash == nil {
		return true, nil
	}
	return bcrypt.CompareHashAndPassword([]byte(*t.SecurityHash), []byte(password)) == nil, nil
}

// RequireSecurity guards destructive operations: it fails unless the teacher has no security
// password or password matches it.
func (s *Service) RequireSecurity(ctx context.Context, teacherID, password string) error {
	t, err := s.repo.TeacherByID(ctx, teacherID)
	if err != nil {
		return err
	}
	if t.SecurityHash == nil {
		return nil
	}
	if password == "" {
		return ErrSecurityRequired
	}
	if bcrypt.CompareHashAndPassword([]byte(*t.SecurityHash), []byte(password)) != nil {
		return ErrSecurityPassword
	}
	return nil
}

func (s *Service) session(ctx context.Context, t model.Teacher) (Session, error) {
	pair, err := s.issuer.Issue(t.ID, RoleTeacher)
	if err != nil {
		return Session{}, err
	}
	if err := s.repo.SaveRefreshToken(ctx, t.ID, pair.RefreshToken, pair.RefreshExp); err != nil {
		return Session{}, err
	}
	return Session{Teacher: t, Tokens: pair}, nil
}

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
