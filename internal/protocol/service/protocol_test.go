package service_test

import (
	"context"
	"database/sql/driver"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/lib/pq"
	"github.com/protocolo/protocolo-backend/internal/protocol/domain"
	"github.com/protocolo/protocolo-backend/internal/protocol/events"
	"github.com/protocolo/protocolo-backend/internal/protocol/repository"
	"github.com/protocolo/protocolo-backend/internal/protocol/service"
	"github.com/protocolo/protocolo-backend/pkg/errors"
	"github.com/protocolo/protocolo-backend/pkg/logger"
	"github.com/protocolo/protocolo-backend/pkg/messaging"
	"github.com/protocolo/protocolo-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var protocolCols = []string{
	"id", "numero", "nome", "matricula", "endereco", "municipio", "bairro", "cep", "telefone",
	"cpf", "rg", "cargo", "lotacao", "unidade_exercicio", "tipo_requerimento", "requer_ao",
	"data_solicitacao", "observacoes", "status", "responsavel", "visto", "created_at",
}

func protocolRow(id int64, numero, status, responsavel string) *sqlmock.Rows {
	day := time.Date(2025, 3, 10, 0, 0, 0, 0, time.UTC)
	return testutil.MockRows(protocolCols...).AddRow(
		id, numero, "Fulano de Tal", "12345", nil, nil, nil, nil, nil,
		nil, nil, nil, nil, nil, "Férias", nil,
		day, nil, status, responsavel, false, day,
	)
}

func newProtocolService(t *testing.T) (*service.ProtocolService, *testutil.MockDB, *testutil.MockPublisher) {
	t.Helper()
	mdb := testutil.NewMockDB(t)
	pub := testutil.NewMockPublisher()
	svc := service.NewProtocolService(
		mdb.DB,
		repository.NewProtocolRepository(mdb.DB),
		repository.NewHistoryRepository(mdb.DB),
		repository.NewAttachmentRepository(mdb.DB),
		events.NewProtocolEventPublisher(pub, logger.Nop()),
		logger.Nop(),
	)
	return svc, mdb, pub
}

func alphaCtx() context.Context {
	return testutil.ActorContext(context.Background(), "alpha", "alpha", "maria", "user")
}

func TestProtocolService_Create(t *testing.T) {
	svc, mdb, pub := newProtocolService(t)
	day, _ := domain.ParseDate("2025-03-10")

	mdb.ExpectBegin()
	mdb.ExpectQueryIn("alpha", "INSERT INTO protocolos").
		WillReturnRows(testutil.MockRows("id", "visto", "created_at").AddRow(10, false, time.Now()))
	mdb.ExpectQueryIn("alpha", "INSERT INTO historico_protocolos").
		WithArgs(int64(10), domain.StatusGenerated, "maria", "Protocolo criado no sistema.").
		WillReturnRows(testutil.MockRows("id", "data_movimentacao").AddRow(1, time.Now()))
	mdb.ExpectCommit()

	p, err := svc.Create(alphaCtx(), &domain.CreateProtocolRequest{
		Numero:          "0001/2025",
		Nome:            "Fulano de Tal",
		DataSolicitacao: &day,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(10), p.ID)
	assert.Equal(t, domain.StatusGenerated, p.Status)
	assert.Equal(t, "maria", p.ResponsavelOr(""))
	mdb.ExpectationsWereMet(t)

	pub.AssertEventPublished(t, messaging.EventProtocolCreated)
	event := pub.Events()[0].Payload.(messaging.ProtocolCreatedEvent)
	assert.Equal(t, "alpha", event.ClientCode)
	assert.Equal(t, "0001/2025", event.Numero)
}

func TestProtocolService_Create_DuplicateNumeroRollsBack(t *testing.T) {
	svc, mdb, pub := newProtocolService(t)
	day, _ := domain.ParseDate("2025-03-10")

	mdb.ExpectBegin()
	mdb.ExpectQueryIn("alpha", "INSERT INTO protocolos").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "protocolos_numero_key"})
	mdb.ExpectRollback()

	_, err := svc.Create(alphaCtx(), &domain.CreateProtocolRequest{
		Numero:          "0001/2025",
		Nome:            "Fulano de Tal",
		DataSolicitacao: &day,
	})
	require.Error(t, err)

	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "CONFLICT", appErr.Code)
	mdb.ExpectationsWereMet(t)
	pub.AssertNoEventsPublished(t)
}

func TestProtocolService_RequiresTenant(t *testing.T) {
	svc, mdb, _ := newProtocolService(t)

	_, err := svc.GetByID(context.Background(), 1)
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrForbidden))

	// Nothing reached the database.
	mdb.ExpectationsWereMet(t)
}

func TestProtocolService_Move(t *testing.T) {
	svc, mdb, pub := newProtocolService(t)

	mdb.ExpectBegin()
	mdb.ExpectQueryIn("alpha", "FROM protocolos WHERE id = $1").
		WithArgs(int64(5)).
		WillReturnRows(protocolRow(5, "0005/2025", domain.StatusGenerated, "maria"))
	mdb.ExpectExecIn("alpha", "UPDATE protocolos SET").
		WithArgs(int64(5), "Em análise", "joao").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mdb.ExpectQueryIn("alpha", "INSERT INTO historico_protocolos").
		WithArgs(int64(5), "Em análise", "joao", "(maria) Encaminhado ao setor").
		WillReturnRows(testutil.MockRows("id", "data_movimentacao").AddRow(2, time.Now()))
	mdb.ExpectCommit()

	p, err := svc.Move(alphaCtx(), 5, &domain.MoveRequest{
		Status:      testutil.PtrString("Em análise"),
		Responsavel: testutil.PtrString("joao"),
		Observacao:  "Encaminhado ao setor",
	})
	require.NoError(t, err)
	assert.Equal(t, "Em análise", p.Status)
	assert.Equal(t, "joao", p.ResponsavelOr(""))
	mdb.ExpectationsWereMet(t)

	pub.AssertEventPublished(t, messaging.EventProtocolStatusChanged)
	event := pub.Events()[0].Payload.(messaging.ProtocolStatusChangedEvent)
	assert.Equal(t, domain.StatusGenerated, event.OldStatus)
	assert.Equal(t, "Em análise", event.NewStatus)
	assert.Equal(t, "maria", event.ChangedBy)
}

func TestProtocolService_Move_DefaultObservationKeepsStatus(t *testing.T) {
	svc, mdb, _ := newProtocolService(t)

	mdb.ExpectBegin()
	mdb.ExpectQueryIn("alpha", "FROM protocolos WHERE id = $1").
		WithArgs(int64(5)).
		WillReturnRows(protocolRow(5, "0005/2025", "Aberto", "maria"))
	mdb.ExpectExecIn("alpha", "UPDATE protocolos SET").
		WithArgs(int64(5), "Aberto", "maria").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mdb.ExpectQueryIn("alpha", "INSERT INTO historico_protocolos").
		WithArgs(int64(5), "Aberto", "maria", "(maria) Status atualizado.").
		WillReturnRows(testutil.MockRows("id", "data_movimentacao").AddRow(3, time.Now()))
	mdb.ExpectCommit()

	_, err := svc.Move(alphaCtx(), 5, &domain.MoveRequest{})
	require.NoError(t, err)
	mdb.ExpectationsWereMet(t)
}

func TestProtocolService_Move_HistoryFailureRollsBackStatus(t *testing.T) {
	svc, mdb, pub := newProtocolService(t)

	mdb.ExpectBegin()
	mdb.ExpectQueryIn("alpha", "FROM protocolos WHERE id = $1").
		WillReturnRows(protocolRow(5, "0005/2025", "Aberto", "maria"))
	mdb.ExpectExecIn("alpha", "UPDATE protocolos SET").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mdb.ExpectQueryIn("alpha", "INSERT INTO historico_protocolos").
		WillReturnError(assert.AnError)
	mdb.ExpectRollback()

	_, err := svc.Move(alphaCtx(), 5, &domain.MoveRequest{Status: testutil.PtrString("Finalizado")})
	require.ErrorIs(t, err, assert.AnError)
	mdb.ExpectationsWereMet(t)
	pub.AssertNoEventsPublished(t)
}

func TestProtocolService_Move_NotFound(t *testing.T) {
	svc, mdb, _ := newProtocolService(t)

	mdb.ExpectBegin()
	mdb.ExpectQueryIn("alpha", "FROM protocolos WHERE id = $1").
		WithArgs(int64(99)).
		WillReturnRows(testutil.MockRows(protocolCols...))
	mdb.ExpectRollback()

	_, err := svc.Move(alphaCtx(), 99, &domain.MoveRequest{})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
	mdb.ExpectationsWereMet(t)
}

func TestProtocolService_ListMine(t *testing.T) {
	svc, mdb, _ := newProtocolService(t)

	mdb.ExpectBegin()
	mdb.ExpectQueryIn("alpha", "SELECT COUNT(*) FROM protocolos WHERE responsavel = $1").
		WithArgs("maria").
		WillReturnRows(testutil.MockRows("count").AddRow(1))
	mdb.ExpectQueryIn("alpha", "WHERE responsavel = $1 ORDER BY id DESC LIMIT $2 OFFSET $3").
		WithArgs("maria", 10, 10).
		WillReturnRows(protocolRow(3, "0003/2025", "Aberto", "maria"))
	mdb.ExpectCommit()

	protocols, total, err := svc.ListMine(alphaCtx(), 2, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, protocols, 1)
	assert.Equal(t, "0003/2025", protocols[0].Numero)
	mdb.ExpectationsWereMet(t)
}

func mustDate(t *testing.T, s string) *domain.Date {
	t.Helper()
	d, err := domain.ParseDate(s)
	require.NoError(t, err)
	return &d
}

func TestProtocolService_Search_EachFilter(t *testing.T) {
	tests := []struct {
		name   string
		params domain.SearchParams
		where  string
		arg    interface{}
	}{
		{"numero", domain.SearchParams{Numero: "0003"}, "numero ILIKE $1", "%0003%"},
		{"nome", domain.SearchParams{Nome: "fulano"}, "nome ILIKE $1", "%fulano%"},
		{"nome wildcards are literal", domain.SearchParams{Nome: `50%_a\b`}, "nome ILIKE $1", `%50\%\_a\\b%`},
		{"status", domain.SearchParams{Status: "Aberto"}, "status = $1", "Aberto"},
		{"tipo", domain.SearchParams{Tipo: "Férias"}, "tipo_requerimento = $1", "Férias"},
		{"lotacao", domain.SearchParams{Lotacao: "SEDUC"}, "lotacao = $1", "SEDUC"},
		{"data inicio", domain.SearchParams{DataInicio: mustDate(t, "2025-01-01")}, "data_solicitacao >= $1", "2025-01-01"},
		{"data fim", domain.SearchParams{DataFim: mustDate(t, "2025-12-31")}, "data_solicitacao <= $1", "2025-12-31"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, mdb, _ := newProtocolService(t)
			tt.params.Page, tt.params.PerPage = 1, 10

			mdb.ExpectBegin()
			mdb.ExpectQueryIn("alpha", "SELECT COUNT(*) FROM protocolos WHERE "+tt.where).
				WithArgs(tt.arg).
				WillReturnRows(testutil.MockRows("count").AddRow(1))
			mdb.ExpectQueryIn("alpha", "FROM protocolos WHERE "+tt.where+" ORDER BY data_solicitacao DESC, id DESC LIMIT $2 OFFSET $3").
				WithArgs(tt.arg, 10, 0).
				WillReturnRows(protocolRow(3, "0003/2025", "Aberto", "maria"))
			mdb.ExpectCommit()

			protocols, total, err := svc.Search(alphaCtx(), tt.params)
			require.NoError(t, err)
			assert.Equal(t, int64(1), total)
			require.Len(t, protocols, 1)
			assert.Equal(t, "0003/2025", protocols[0].Numero)
			mdb.ExpectationsWereMet(t)
		})
	}
}

func TestProtocolService_Search_CombinedFilters(t *testing.T) {
	svc, mdb, _ := newProtocolService(t)

	where := "WHERE numero ILIKE $1 AND nome ILIKE $2 AND status = $3 AND tipo_requerimento = $4" +
		" AND lotacao = $5 AND data_solicitacao >= $6 AND data_solicitacao <= $7"
	args := []driver.Value{"%/2025%", "%tal%", "Aberto", "Férias", "SEDUC", "2025-03-01", "2025-03-31"}

	mdb.ExpectBegin()
	mdb.ExpectQueryIn("alpha", "SELECT COUNT(*) FROM protocolos "+where).
		WithArgs(args...).
		WillReturnRows(testutil.MockRows("count").AddRow(7))
	mdb.ExpectQueryIn("alpha", "FROM protocolos "+where+" ORDER BY data_solicitacao DESC, id DESC LIMIT $8 OFFSET $9").
		WithArgs(append(args, 5, 5)...).
		WillReturnRows(protocolRow(6, "0006/2025", "Aberto", "joao").AddRow(
			5, "0005/2025", "Fulano de Tal", "12345", nil, nil, nil, nil, nil,
			nil, nil, nil, nil, nil, "Férias", nil,
			time.Date(2025, 3, 9, 0, 0, 0, 0, time.UTC), nil, "Aberto", "maria", false, time.Now(),
		))
	mdb.ExpectCommit()

	protocols, total, err := svc.Search(alphaCtx(), domain.SearchParams{
		Numero:     "/2025",
		Nome:       "tal",
		Status:     "Aberto",
		Tipo:       "Férias",
		Lotacao:    "SEDUC",
		DataInicio: mustDate(t, "2025-03-01"),
		DataFim:    mustDate(t, "2025-03-31"),
		Page:       2,
		PerPage:    5,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(7), total)
	require.Len(t, protocols, 2)
	assert.Equal(t, "0006/2025", protocols[0].Numero)
	mdb.ExpectationsWereMet(t)
}

func TestProtocolService_Search_NoFilters(t *testing.T) {
	svc, mdb, _ := newProtocolService(t)

	mdb.ExpectBegin()
	mdb.ExpectQueryIn("alpha", "SELECT COUNT(*) FROM protocolos").
		WithoutArgs().
		WillReturnRows(testutil.MockRows("count").AddRow(0))
	mdb.ExpectQueryIn("alpha", "FROM protocolos ORDER BY data_solicitacao DESC, id DESC LIMIT $1 OFFSET $2").
		WithArgs(10, 0).
		WillReturnRows(testutil.MockRows(protocolCols...))
	mdb.ExpectCommit()

	protocols, total, err := svc.Search(alphaCtx(), domain.SearchParams{Page: 1, PerPage: 10})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, protocols)
	mdb.ExpectationsWereMet(t)
}

func TestProtocolService_Search_RejectsInvertedRange(t *testing.T) {
	svc, mdb, _ := newProtocolService(t)

	_, _, err := svc.Search(alphaCtx(), domain.SearchParams{
		DataInicio: mustDate(t, "2025-04-01"),
		DataFim:    mustDate(t, "2025-03-01"),
		Page:       1,
		PerPage:    10,
	})
	assert.True(t, errors.Is(err, errors.ErrValidation))
	mdb.ExpectationsWereMet(t)
}

func TestProtocolService_Search_RequiresTenant(t *testing.T) {
	svc, mdb, _ := newProtocolService(t)

	_, _, err := svc.Search(context.Background(), domain.SearchParams{Nome: "fulano", Page: 1, PerPage: 10})
	assert.True(t, errors.Is(err, errors.ErrForbidden))
	mdb.ExpectationsWereMet(t)
}

func TestProtocolService_Delete(t *testing.T) {
	svc, mdb, pub := newProtocolService(t)

	mdb.ExpectBegin()
	mdb.ExpectQueryIn("alpha", "FROM protocolos WHERE id = $1").
		WithArgs(int64(7)).
		WillReturnRows(protocolRow(7, "0007/2025", "Aberto", "maria"))
	mdb.ExpectExecIn("alpha", "DELETE FROM protocolos WHERE id = $1").
		WithArgs(int64(7)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mdb.ExpectCommit()

	require.NoError(t, svc.Delete(alphaCtx(), 7))
	mdb.ExpectationsWereMet(t)
	pub.AssertEventPublished(t, messaging.EventProtocolDeleted)
}

func TestProtocolService_LastNumero(t *testing.T) {
	svc, mdb, _ := newProtocolService(t)

	mdb.ExpectBegin()
	mdb.ExpectQueryIn("alpha", "SELECT MAX(CAST(SPLIT_PART(numero, '/', 1) AS INTEGER))").
		WithArgs("%/2025").
		WillReturnRows(testutil.MockRows("max").AddRow(42))
	mdb.ExpectCommit()

	last, err := svc.LastNumero(alphaCtx(), 2025)
	require.NoError(t, err)
	assert.Equal(t, 42, last)

	_, err = svc.LastNumero(alphaCtx(), 25)
	require.Error(t, err)
	mdb.ExpectationsWereMet(t)
}

func TestProtocolService_LastNumero_EmptyYear(t *testing.T) {
	svc, mdb, _ := newProtocolService(t)

	mdb.ExpectBegin()
	mdb.ExpectQueryIn("alpha", "SELECT MAX(CAST(SPLIT_PART(numero, '/', 1) AS INTEGER))").
		WillReturnRows(testutil.MockRows("max").AddRow(nil))
	mdb.ExpectCommit()

	last, err := svc.LastNumero(alphaCtx(), 2030)
	require.NoError(t, err)
	assert.Equal(t, 0, last)
	mdb.ExpectationsWereMet(t)
}

func TestProtocolService_Stats(t *testing.T) {
	svc, mdb, _ := newProtocolService(t)

	mdb.ExpectBegin()
	mdb.ExpectQueryIn("alpha", "SELECT COUNT(*) FROM protocolos").
		WillReturnRows(testutil.MockRows("count").AddRow(12))
	mdb.ExpectQueryIn("alpha", "WHERE status = ANY($1)").
		WillReturnRows(testutil.MockRows("count").AddRow(4))
	mdb.ExpectQueryIn("alpha", "WHERE status <> ALL($1) AND data_solicitacao <= CURRENT_DATE - $2::int").
		WithArgs(sqlmock.AnyArg(), domain.PendingAfterDays).
		WillReturnRows(testutil.MockRows("count").AddRow(3))
	mdb.ExpectQueryIn("alpha", "SELECT status, COUNT(*) AS total FROM protocolos").
		WillReturnRows(testutil.MockRows("status", "total").
			AddRow("Aberto", 8).
			AddRow("Finalizado", 4))
	mdb.ExpectQueryIn("alpha", "SELECT tipo_requerimento, COUNT(*) AS total FROM protocolos").
		WillReturnRows(testutil.MockRows("tipo_requerimento", "total").
			AddRow("Férias", 7).
			AddRow("Licença", 5))
	mdb.ExpectCommit()

	stats, err := svc.Stats(alphaCtx())
	require.NoError(t, err)
	assert.Equal(t, int64(12), stats.Total)
	assert.Equal(t, int64(4), stats.Finalizados)
	assert.Equal(t, int64(3), stats.PendentesAntigos)
	assert.Equal(t, []domain.StatusCount{{Status: "Aberto", Total: 8}, {Status: "Finalizado", Total: 4}}, stats.PorStatus)
	require.Len(t, stats.TopTipos, 2)
	assert.Equal(t, "Férias", stats.TopTipos[0].TipoRequerimento)
	mdb.ExpectationsWereMet(t)
}

func TestProtocolService_Notifications(t *testing.T) {
	svc, mdb, _ := newProtocolService(t)

	mdb.ExpectBegin()
	mdb.ExpectQueryIn("alpha", "SELECT COUNT(*) FROM protocolos WHERE responsavel = $1 AND visto = FALSE").
		WithArgs("maria").
		WillReturnRows(testutil.MockRows("count").AddRow(2))
	mdb.ExpectCommit()
	mdb.ExpectBegin()
	mdb.ExpectExecIn("alpha", "UPDATE protocolos SET visto = TRUE WHERE responsavel = $1 AND visto = FALSE").
		WithArgs("maria").
		WillReturnResult(sqlmock.NewResult(0, 2))
	mdb.ExpectCommit()

	n, err := svc.Notifications(alphaCtx())
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	marked, err := svc.MarkNotificationsRead(alphaCtx())
	require.NoError(t, err)
	assert.Equal(t, int64(2), marked)
	mdb.ExpectationsWereMet(t)
}
