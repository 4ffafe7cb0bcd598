package repository

import (
	"context"
	"database/sql"

	"github.com/protocolo/protocolo-backend/internal/protocol/domain"
	"github.com/protocolo/protocolo-backend/pkg/database"
	"github.com/protocolo/protocolo-backend/pkg/errors"
)

// AttachmentRepository stores protocol files in the tenant schema.
type AttachmentRepository struct {
	db *database.DB
}

// NewAttachmentRepository creates a new attachment repository
func NewAttachmentRepository(db *database.DB) *AttachmentRepository {
	return &AttachmentRepository{db: db}
}

// Create stores a.
func (r *AttachmentRepository) Create(ctx context.Context, a *domain.Attachment) error {
	return r.db.WithTenantSchema(ctx, func(ctx context.Context) error {
		err := r.db.Executor(ctx).QueryRowxContext(ctx, `
			INSERT INTO anexos (protocolo_id, file_name, mime_type, file_size, file_data)
			VALUES ($1, $2, $3, $4, $5)
			RETURNING id, created_at
		`, a.ProtocoloID, a.FileName, a.MimeType, a.FileSize, a.Data).Scan(&a.ID, &a.CreatedAt)
		if appErr := database.MapPQError(err); appErr != nil {
			return appErr
		}
		return err
	})
}

// ListByProtocol returns attachment metadata without file contents.
func (r *AttachmentRepository) ListByProtocol(ctx context.Context, protocoloID int64) ([]*domain.Attachment, error) {
	attachments := []*domain.Attachment{}
	err := r.db.WithTenantSchema(ctx, func(ctx context.Context) error {
		return r.db.Executor(ctx).SelectContext(ctx, &attachments, `
			SELECT id, protocolo_id, file_name, mime_type, file_size, created_at
			FROM anexos
			WHERE protocolo_id = $1
			ORDER BY id
		`, protocoloID)
	})
	if err != nil {
		return nil, err
	}
	return attachments, nil
}

// Get loads one attachment including its data.
func (r *AttachmentRepository) Get(ctx context.Context, protocoloID, id int64) (*domain.Attachment, error) {
	var a domain.Attachment
	err := r.db.WithTenantSchema(ctx, func(ctx context.Context) error {
		return r.db.Executor(ctx).GetContext(ctx, &a, `
			SELECT id, protocolo_id, file_name, mime_type, file_size, file_data, created_at
			FROM anexos
			WHERE protocolo_id = $1 AND id = $2
		`, protocoloID, id)
	})
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.NotFound("attachment")
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// Delete removes one attachment of a protocol.
func (r *AttachmentRepository) Delete(ctx context.Context, protocoloID, id int64) error {
	return r.db.WithTenantSchema(ctx, func(ctx context.Context) error {
		result, err := r.db.Executor(ctx).ExecContext(ctx,
			`DELETE FROM anexos WHERE protocolo_id = $1 AND id = $2`, protocoloID, id)
		if err != nil {
			return err
		}
		return requireAffected(result, "attachment")
	})
}
