package service

import (
	"context"
	"path/filepath"
	"strconv"

	"github.com/gabriel-vasile/mimetype"
	"github.com/protocolo/protocolo-backend/internal/protocol/domain"
	"github.com/protocolo/protocolo-backend/internal/protocol/repository"
	"github.com/protocolo/protocolo-backend/pkg/database"
	"github.com/protocolo/protocolo-backend/pkg/errors"
	"github.com/protocolo/protocolo-backend/pkg/logger"
)

// AttachmentService handles the files of a protocol.
type AttachmentService struct {
	db          *database.DB
	protocols   *repository.ProtocolRepository
	attachments *repository.AttachmentRepository
	maxFileSize int64
	logger      *logger.Logger
}

// NewAttachmentService creates a new attachment service
func NewAttachmentService(
	db *database.DB,
	protocols *repository.ProtocolRepository,
	attachments *repository.AttachmentRepository,
	maxFileSize int64,
	log *logger.Logger,
) *AttachmentService {
	return &AttachmentService{
		db:          db,
		protocols:   protocols,
		attachments: attachments,
		maxFileSize: maxFileSize,
		logger:      log,
	}
}

// MaxFileSize is the upload limit in bytes.
func (s *AttachmentService) MaxFileSize() int64 {
	return s.maxFileSize
}

// Upload stores a file for protocol protocoloID.
func (s *AttachmentService) Upload(ctx context.Context, protocoloID int64, fileName, mimeType string, data []byte) (*domain.Attachment, error) {
	fileName = filepath.Base(fileName)
	switch {
	case len(data) == 0:
		return nil, errors.Validation(map[string]string{"file": "must not be empty"})
	case s.maxFileSize > 0 && int64(len(data)) > s.maxFileSize:
		return nil, errors.Validation(map[string]string{"file": "must be at most " + strconv.FormatInt(s.maxFileSize, 10) + " bytes"})
	case fileName == "." || fileName == string(filepath.Separator):
		return nil, errors.Validation(map[string]string{"file": "file name is required"})
	}
	if mimeType == "" || mimeType == "application/octet-stream" {
		mimeType = mimetype.Detect(data).String()
	}

	a := &domain.Attachment{
		ProtocoloID: protocoloID,
		FileName:    fileName,
		MimeType:    mimeType,
		FileSize:    int64(len(data)),
		Data:        data,
	}
	err := s.db.WithTenantSchema(ctx, func(ctx context.Context) error {
		if _, err := s.protocols.GetByID(ctx, protocoloID); err != nil {
			return err
		}
		return s.attachments.Create(ctx, a)
	})
	if err != nil {
		return nil, err
	}

	logger.FromContext(ctx, s.logger).Info().
		Int64("protocol_id", protocoloID).
		Int64("attachment_id", a.ID).
		Int64("file_size", a.FileSize).
		Msg("attachment stored")
	return a, nil
}

// List returns attachment metadata of a protocol.
func (s *AttachmentService) List(ctx context.Context, protocoloID int64) ([]*domain.Attachment, error) {
	var attachments []*domain.Attachment
	err := s.db.WithTenantSchema(ctx, func(ctx context.Context) error {
		if _, err := s.protocols.GetByID(ctx, protocoloID); err != nil {
			return err
		}
		var err error
		attachments, err = s.attachments.ListByProtocol(ctx, protocoloID)
		return err
	})
	return attachments, err
}

// Get loads an attachment with its contents.
func (s *AttachmentService) Get(ctx context.Context, protocoloID, id int64) (*domain.Attachment, error) {
	return s.attachments.Get(ctx, protocoloID, id)
}

// Delete removes an attachment.
func (s *AttachmentService) Delete(ctx context.Context, protocoloID, id int64) error {
	return s.attachments.Delete(ctx, protocoloID, id)
}
