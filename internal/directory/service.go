package directory

import (
	"context"
	"fmt"

	"github.com/google/uuid"
)

// Service fronts the repository and implements the existence-check view
// consumed by the booking core.
type Service struct {
	repo Repository
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (s *Service) DoctorExists(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.GetDoctorByID(ctx, id); err != nil {
		return err
	}
	return nil
}

func (s *Service) PatientExists(ctx context.Context, id uuid.UUID) error {
	if _, err := s.repo.GetPatientByID(ctx, id); err != nil {
		return err
	}
	return nil
}

func (s *Service) CreateDoctor(ctx context.Context, d Doctor) (*Doctor, error) {
	created, err := s.repo.CreateDoctor(ctx, d)
	if err != nil {
		return nil, fmt.Errorf("create doctor: %w", err)
	}
	return created, nil
}

func (s *Service) GetDoctor(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	return s.repo.GetDoctorByID(ctx, id)
}

func (s *Service) GetDoctorByEmail(ctx context.Context, email string) (*Doctor, error) {
	return s.repo.GetDoctorByEmail(ctx, email)
}

func (s *Service) UpdateDoctor(ctx context.Context, id uuid.UUID, upd DoctorUpdate) (*Doctor, error) {
	return s.repo.UpdateDoctor(ctx, id, upd)
}

func (s *Service) DeleteDoctor(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeleteDoctor(ctx, id)
}

func (s *Service) SearchDoctors(ctx context.Context, name, specialty string) ([]Doctor, error) {
	return s.repo.SearchDoctors(ctx, name, specialty)
}

func (s *Service) CreatePatient(ctx context.Context, p Patient) (*Patient, error) {
	created, err := s.repo.CreatePatient(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("create patient: %w", err)
	}
	return created, nil
}

func (s *Service) GetPatient(ctx context.Context, id uuid.UUID) (*Patient, error) {
	return s.repo.GetPatientByID(ctx, id)
}

func (s *Service) GetPatientByEmail(ctx context.Context, email string) (*Patient, error) {
	return s.repo.GetPatientByEmail(ctx, email)
}

func (s *Service) UpdatePatient(ctx context.Context, id uuid.UUID, upd PatientUpdate) (*Patient, error) {
	return s.repo.UpdatePatient(ctx, id, upd)
}

func (s *Service) DeletePatient(ctx context.Context, id uuid.UUID) error {
	return s.repo.DeletePatient(ctx, id)
}
