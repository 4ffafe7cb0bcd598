package service_test

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/protocolo/protocolo-backend/internal/protocol/repository"
	"github.com/protocolo/protocolo-backend/internal/protocol/service"
	"github.com/protocolo/protocolo-backend/pkg/errors"
	"github.com/protocolo/protocolo-backend/pkg/logger"
	"github.com/protocolo/protocolo-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newAttachmentService(t *testing.T, maxSize int64) (*service.AttachmentService, *testutil.MockDB) {
	t.Helper()
	mdb := testutil.NewMockDB(t)
	svc := service.NewAttachmentService(
		mdb.DB,
		repository.NewProtocolRepository(mdb.DB),
		repository.NewAttachmentRepository(mdb.DB),
		maxSize,
		logger.Nop(),
	)
	return svc, mdb
}

func TestAttachmentService_Upload(t *testing.T) {
	svc, mdb := newAttachmentService(t, 1024)
	pdf := []byte("%PDF-1.4\n%âãÏÓ\n1 0 obj\n")

	mdb.ExpectBegin()
	mdb.ExpectQueryIn("alpha", "FROM protocolos WHERE id = $1").
		WithArgs(int64(5)).
		WillReturnRows(protocolRow(5, "0005/2025", "Aberto", "maria"))
	mdb.ExpectQueryIn("alpha", "INSERT INTO anexos").
		WithArgs(int64(5), "requerimento.pdf", "application/pdf", int64(len(pdf)), pdf).
		WillReturnRows(testutil.MockRows("id", "created_at").AddRow(9, time.Now()))
	mdb.ExpectCommit()

	a, err := svc.Upload(alphaCtx(), 5, "../../etc/requerimento.pdf", "", pdf)
	require.NoError(t, err)
	assert.Equal(t, int64(9), a.ID)
	assert.Equal(t, "requerimento.pdf", a.FileName)
	assert.Equal(t, "application/pdf", a.MimeType)
	mdb.ExpectationsWereMet(t)
}

func TestAttachmentService_Upload_Rejects(t *testing.T) {
	svc, mdb := newAttachmentService(t, 4)

	tests := []struct {
		name     string
		fileName string
		data     []byte
	}{
		{name: "empty file", fileName: "a.txt", data: nil},
		{name: "too large", fileName: "a.txt", data: []byte("12345")},
		{name: "no file name", fileName: "", data: []byte("1")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Upload(alphaCtx(), 5, tt.fileName, "text/plain", tt.data)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errors.ErrValidation))
		})
	}
	mdb.ExpectationsWereMet(t)
}

func TestAttachmentService_Upload_UnknownProtocol(t *testing.T) {
	svc, mdb := newAttachmentService(t, 1024)

	mdb.ExpectBegin()
	mdb.ExpectQueryIn("alpha", "FROM protocolos WHERE id = $1").
		WithArgs(int64(404)).
		WillReturnRows(testutil.MockRows(protocolCols...))
	mdb.ExpectRollback()

	_, err := svc.Upload(alphaCtx(), 404, "a.txt", "text/plain", []byte("x"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
	mdb.ExpectationsWereMet(t)
}

func TestAttachmentService_Delete_NotFound(t *testing.T) {
	svc, mdb := newAttachmentService(t, 1024)

	mdb.ExpectBegin()
	mdb.ExpectExecIn("alpha", "DELETE FROM anexos WHERE protocolo_id = $1 AND id = $2").
		WithArgs(int64(5), int64(77)).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mdb.ExpectRollback()

	err := svc.Delete(alphaCtx(), 5, 77)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
	mdb.ExpectationsWereMet(t)
}
