package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/protocolo/protocolo-backend/internal/protocol/domain"
	"github.com/protocolo/protocolo-backend/internal/protocol/events"
	"github.com/protocolo/protocolo-backend/internal/protocol/repository"
	"github.com/protocolo/protocolo-backend/pkg/actor"
	"github.com/protocolo/protocolo-backend/pkg/database"
	"github.com/protocolo/protocolo-backend/pkg/errors"
	"github.com/protocolo/protocolo-backend/pkg/logger"
)

const (
	createdObservation = "Protocolo criado no sistema."
	movedObservation   = "Status atualizado."
	systemActor        = "sistema"
)

// ProtocolService handles protocol business logic. Every multi-step
// operation is one transaction in the caller's tenant schema, so a
// status change and its history row are committed together.
type ProtocolService struct {
	db          *database.DB
	protocols   *repository.ProtocolRepository
	history     *repository.HistoryRepository
	attachments *repository.AttachmentRepository
	publisher   *events.ProtocolEventPublisher
	logger      *logger.Logger
}

// NewProtocolService creates a new protocol service
func NewProtocolService(
	db *database.DB,
	protocols *repository.ProtocolRepository,
	history *repository.HistoryRepository,
	attachments *repository.AttachmentRepository,
	publisher *events.ProtocolEventPublisher,
	log *logger.Logger,
) *ProtocolService {
	return &ProtocolService{
		db:          db,
		protocols:   protocols,
		history:     history,
		attachments: attachments,
		publisher:   publisher,
		logger:      log,
	}
}

// Create registers a protocol and its first history row.
func (s *ProtocolService) Create(ctx context.Context, req *domain.CreateProtocolRequest) (*domain.Protocol, error) {
	login := actor.LoginOr(ctx, systemActor)

	p := &domain.Protocol{
		Numero:           req.Numero,
		Nome:             req.Nome,
		Matricula:        req.Matricula,
		Endereco:         req.Endereco,
		Municipio:        req.Municipio,
		Bairro:           req.Bairro,
		CEP:              req.CEP,
		Telefone:         req.Telefone,
		CPF:              req.CPF,
		RG:               req.RG,
		Cargo:            req.Cargo,
		Lotacao:          req.Lotacao,
		UnidadeExercicio: req.UnidadeExercicio,
		TipoRequerimento: req.TipoRequerimento,
		RequerAo:         req.RequerAo,
		Observacoes:      req.Observacoes,
		Status:           req.Status,
	}
	if req.DataSolicitacao != nil {
		p.DataSolicitacao = *req.DataSolicitacao
	}
	if p.Status == "" {
		p.Status = domain.StatusGenerated
	}
	responsavel := req.Responsavel
	if responsavel == "" {
		responsavel = login
	}
	p.Responsavel = &responsavel

	err := s.db.WithTenantSchema(ctx, func(ctx context.Context) error {
		if err := s.protocols.Create(ctx, p); err != nil {
			return err
		}
		observacao := createdObservation
		return s.history.Append(ctx, &domain.History{
			ProtocoloID: p.ID,
			Status:      p.Status,
			Responsavel: p.Responsavel,
			Observacao:  &observacao,
		})
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx, s.logger).Info().
		Int64("protocol_id", p.ID).
		Str("numero", p.Numero).
		Str("responsavel", responsavel).
		Msg("protocol created")

	s.publisher.PublishCreated(ctx, p)
	return p, nil
}

// GetByID gets a protocol by ID
func (s *ProtocolService) GetByID(ctx context.Context, id int64) (*domain.Protocol, error) {
	return s.protocols.GetByID(ctx, id)
}

// List lists protocols with pagination
func (s *ProtocolService) List(ctx context.Context, page, perPage int) ([]*domain.Protocol, int64, error) {
	return s.protocols.List(ctx, domain.ListParams{Page: page, PerPage: perPage})
}

// Search runs the advanced protocol search in the caller's tenant.
func (s *ProtocolService) Search(ctx context.Context, params domain.SearchParams) ([]*domain.Protocol, int64, error) {
	if err := params.Validate(); err != nil {
		return nil, 0, err
	}
	return s.protocols.Search(ctx, params)
}

// ListMine lists the protocols the caller is responsible for.
func (s *ProtocolService) ListMine(ctx context.Context, page, perPage int) ([]*domain.Protocol, int64, error) {
	a := actor.FromContext(ctx)
	if a == nil || a.Login == "" {
		return nil, 0, errors.Unauthorized("login missing from token")
	}
	return s.protocols.List(ctx, domain.ListParams{Page: page, PerPage: perPage, Responsavel: &a.Login})
}

// Update changes the descriptive fields of a protocol.
func (s *ProtocolService) Update(ctx context.Context, id int64, req *domain.UpdateProtocolRequest) (*domain.Protocol, error) {
	var p *domain.Protocol
	err := s.db.WithTenantSchema(ctx, func(ctx context.Context) error {
		var err error
		p, err = s.protocols.GetByID(ctx, id)
		if err != nil {
			return err
		}
		req.Apply(p)
		return s.protocols.Update(ctx, p)
	})
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Delete removes a protocol together with its history and attachments.
func (s *ProtocolService) Delete(ctx context.Context, id int64) error {
	var p *domain.Protocol
	err := s.db.WithTenantSchema(ctx, func(ctx context.Context) error {
		var err error
		p, err = s.protocols.GetByID(ctx, id)
		if err != nil {
			return err
		}
		return s.protocols.Delete(ctx, id)
	})
	if err != nil {
		return err
	}

	s.publisher.PublishDeleted(ctx, p)
	return nil
}

// Move changes status and/or responsible and appends the movement to the
// history in the same transaction. The observation is prefixed with the
// login of whoever made the change.
func (s *ProtocolService) Move(ctx context.Context, id int64, req *domain.MoveRequest) (*domain.Protocol, error) {
	login := actor.LoginOr(ctx, systemActor)

	var (
		p         *domain.Protocol
		oldStatus string
	)
	err := s.db.WithTenantSchema(ctx, func(ctx context.Context) error {
		var err error
		p, err = s.protocols.GetByID(ctx, id)
		if err != nil {
			return err
		}
		oldStatus = p.Status

		if req.Status != nil && *req.Status != "" {
			p.Status = *req.Status
		}
		if req.Responsavel != nil && *req.Responsavel != "" {
			p.Responsavel = req.Responsavel
		}
		if err := s.protocols.Move(ctx, p.ID, p.Status, p.Responsavel); err != nil {
			return err
		}

		text := strings.TrimSpace(req.Observacao)
		if text == "" {
			text = movedObservation
		}
		observacao := fmt.Sprintf("(%s) %s", login, text)
		return s.history.Append(ctx, &domain.History{
			ProtocoloID: p.ID,
			Status:      p.Status,
			Responsavel: p.Responsavel,
			Observacao:  &observacao,
		})
	})
	if err != nil {
		return nil, err
	}

	s.publisher.PublishStatusChanged(ctx, p, oldStatus, login)
	return p, nil
}

// History returns the movements of a protocol, oldest first.
func (s *ProtocolService) History(ctx context.Context, id int64) ([]*domain.History, error) {
	var history []*domain.History
	err := s.db.WithTenantSchema(ctx, func(ctx context.Context) error {
		if _, err := s.protocols.GetByID(ctx, id); err != nil {
			return err
		}
		var err error
		history, err = s.history.ListByProtocol(ctx, id)
		return err
	})
	return history, err
}

// LastNumero returns the highest sequence number used in year.
func (s *ProtocolService) LastNumero(ctx context.Context, year int) (int, error) {
	if year < 1900 || year > 9999 {
		return 0, errors.Validation(map[string]string{"ano": "must be a four digit year"})
	}
	return s.protocols.LastNumero(ctx, year)
}

// Stats returns the dashboard counters.
func (s *ProtocolService) Stats(ctx context.Context) (*domain.Stats, error) {
	return s.protocols.Stats(ctx)
}

// Notifications counts the caller's protocols that were not opened yet.
func (s *ProtocolService) Notifications(ctx context.Context) (int64, error) {
	a := actor.FromContext(ctx)
	if a == nil || a.Login == "" {
		return 0, errors.Unauthorized("login missing from token")
	}
	return s.protocols.CountUnseen(ctx, a.Login)
}

// MarkNotificationsRead flags the caller's protocols as seen.
func (s *ProtocolService) MarkNotificationsRead(ctx context.Context) (int64, error) {
	a := actor.FromContext(ctx)
	if a == nil || a.Login == "" {
		return 0, errors.Unauthorized("login missing from token")
	}
	return s.protocols.MarkSeen(ctx, a.Login)
}
