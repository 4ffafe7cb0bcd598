package service

import (
	"context"
	"strings"

	"github.com/protocolo/protocolo-backend/internal/staff/domain"
	"github.com/protocolo/protocolo-backend/internal/staff/repository"
	"github.com/protocolo/protocolo-backend/pkg/errors"
	"github.com/protocolo/protocolo-backend/pkg/logger"
)

// StaffService serves the tenant's staff directory
type StaffService struct {
	repo   *repository.ServidorRepository
	logger *logger.Logger
}

// NewStaffService creates a new staff service
func NewStaffService(repo *repository.ServidorRepository, log *logger.Logger) *StaffService {
	return &StaffService{
		repo:   repo,
		logger: log,
	}
}

// GetByMatricula gets a directory entry by registration number
func (s *StaffService) GetByMatricula(ctx context.Context, matricula string) (*domain.Servidor, error) {
	matricula = strings.TrimSpace(matricula)
	if matricula == "" {
		return nil, errors.Validation(map[string]string{"matricula": "required"})
	}
	return s.repo.GetByMatricula(ctx, matricula)
}

// Search finds directory entries by a name fragment of at least three characters
func (s *StaffService) Search(ctx context.Context, nome string) ([]*domain.Servidor, error) {
	nome = strings.TrimSpace(nome)
	if len([]rune(nome)) < domain.MinSearchLength {
		return nil, errors.Validation(map[string]string{"nome": "min"})
	}
	return s.repo.SearchByNome(ctx, nome, domain.MaxSearchResults)
}

// Upsert records a directory entry in the schema carried by ctx
func (s *StaffService) Upsert(ctx context.Context, servidor *domain.Servidor) error {
	details := map[string]string{}
	if strings.TrimSpace(servidor.Matricula) == "" {
		details["matricula"] = "required"
	}
	if strings.TrimSpace(servidor.Nome) == "" {
		details["nome"] = "required"
	}
	if len(details) > 0 {
		return errors.Validation(details)
	}
	return s.repo.Upsert(ctx, servidor)
}
