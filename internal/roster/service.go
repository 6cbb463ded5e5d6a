package roster

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"edupulse/internal/model"
	"edupulse/internal/validation"
)

// ErrDuplicateIndex is returned when an index number is already used in the owner's roster.
var ErrDuplicateIndex = errors.New("index number already exists")

// Input is the payload to create a student.
type Input struct {
	Name        string  `json:"name" validate:"required,max=200"`
	IndexNumber string  `json:"index_number" validate:"required,max=32"`
	Grade       int     `json:"grade" validate:"required,min=1,max=13"`
	Section     *string `json:"section" validate:"omitempty,max=8"`
	Specialty   *string `json:"specialty" validate:"omitempty,max=100"`
	Status      string  `json:"status" validate:"omitempty,oneof=active at_risk inactive"`
}

// Student converts a validated input into a model owned by ownerID.
func (in Input) Student(ownerID string) model.Student {
	return model.Student{
		OwnerID:     ownerID,
		Name:        strings.TrimSpace(in.Name),
		IndexNumber: strings.TrimSpace(in.IndexNumber),
		Grade:       in.Grade,
		Section:     trimmedOrNil(in.Section),
		Specialty:   trimmedOrNil(in.Specialty),
		Status:      in.Status,
	}
}

// Service applies roster rules on top of the repository.
type Service struct {
	repo *Repository
	log  *zap.Logger
}

// NewService creates a service backed by a repository.
func NewService(repo *Repository, log *zap.Logger) *Service {
	return &Service{repo: repo, log: log}
}

// List returns the owner's roster.
func (s *Service) List(ctx context.Context, ownerID string, f Filter) ([]model.Student, error) {
	return s.repo.List(ctx, ownerID, f)
}

// Get returns one student.
func (s *Service) Get(ctx context.Context, ownerID, id string) (*model.Student, error) {
	return s.repo.Get(ctx, ownerID, id)
}

// Create validates and inserts a student.
func (s *Service) Create(ctx context.Context, ownerID string, in Input) (*model.Student, error) {
	if err := validation.Struct(in); err != nil {
		return nil, err
	}
	st := in.Student(ownerID)
	if err := s.repo.Insert(ctx, &st); err != nil {
		return nil, err
	}
	s.log.Info("student created", zap.String("owner", ownerID), zap.String("student", st.ID))
	return &st, nil
}

// Update validates and applies a partial update.
func (s *Service) Update(ctx context.Context, ownerID, id string, p Patch) (*model.Student, error) {
	if err := validation.Struct(p); err != nil {
		return nil, err
	}
	return s.repo.Update(ctx, ownerID, id, p)
}

// Delete removes a student and its attendance history.
func (s *Service) Delete(ctx context.Context, ownerID, id string) error {
	if err := s.repo.Delete(ctx, ownerID, id); err != nil {
		return err
	}
	s.log.Info("student deleted", zap.String("owner", ownerID), zap.String("student", id))
	return nil
}

// SetPhoto records an uploaded photo URL.
func (s *Service) SetPhoto(ctx context.Context, ownerID, id, url string) error {
	return s.repo.SetPhoto(ctx, ownerID, id, url)
}

func trimmedOrNil(p *string) *string {
	if p == nil {
		return nil
	}
	return nullIfEmpty(*p)
}
