package repository

import (
	"context"

	"github.com/protocolo/protocolo-backend/internal/protocol/domain"
	"github.com/protocolo/protocolo-backend/pkg/database"
)

// HistoryRepository appends and reads protocol movements. Rows are never
// updated or deleted except by the cascade of their protocol.
type HistoryRepository struct {
	db *database.DB
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *database.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// Append records one movement.
func (r *HistoryRepository) Append(ctx context.Context, h *domain.History) error {
	return r.db.WithTenantSchema(ctx, func(ctx context.Context) error {
		return r.db.Executor(ctx).QueryRowxContext(ctx, `
			INSERT INTO historico_protocolos (protocolo_id, status, responsavel, observacao)
			VALUES ($1, $2, $3, $4)
			RETURNING id, data_movimentacao
		`, h.ProtocoloID, h.Status, h.Responsavel, h.Observacao).Scan(&h.ID, &h.DataMovimentacao)
	})
}

// ListByProtocol returns the movements of a protocol, oldest first.
func (r *HistoryRepository) ListByProtocol(ctx context.Context, protocoloID int64) ([]*domain.History, error) {
	history := []*domain.History{}
	err := r.db.WithTenantSchema(ctx, func(ctx context.Context) error {
		return r.db.Executor(ctx).SelectContext(ctx, &history, `
			SELECT id, protocolo_id, status, responsavel, observacao, data_movimentacao
			FROM historico_protocolos
			WHERE protocolo_id = $1
			ORDER BY data_movimentacao ASC, id ASC
		`, protocoloID)
	})
	if err != nil {
		return nil, err
	}
	return history, nil
}
