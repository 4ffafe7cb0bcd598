package service_test

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"

	"github.com/lib/pq"
	"github.com/protocolo/protocolo-backend/internal/protocol/domain"
	"github.com/protocolo/protocolo-backend/internal/protocol/events"
	"github.com/protocolo/protocolo-backend/internal/protocol/repository"
	"github.com/protocolo/protocolo-backend/internal/protocol/service"
	"github.com/protocolo/protocolo-backend/pkg/database"
	"github.com/protocolo/protocolo-backend/pkg/errors"
	"github.com/protocolo/protocolo-backend/pkg/logger"
	"github.com/protocolo/protocolo-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var suite *testutil.IntegrationSuite

func TestMain(m *testing.M) {
	suite = testutil.MustIntegrationSuite()
	code := m.Run()
	suite.Cleanup(context.Background())
	os.Exit(code)
}

type services struct {
	protocols   *service.ProtocolService
	attachments *service.AttachmentService
}

func newServices(db *database.DB) services {
	protocols := repository.NewProtocolRepository(db)
	attachments := repository.NewAttachmentRepository(db)
	return services{
		protocols: service.NewProtocolService(db, protocols, repository.NewHistoryRepository(db), attachments,
			events.NewProtocolEventPublisher(nil, logger.Nop()), logger.Nop()),
		attachments: service.NewAttachmentService(db, protocols, attachments, 1<<20, logger.Nop()),
	}
}

func tenantCtx(tt *testutil.TestTenant, login string) context.Context {
	return testutil.ActorContext(context.Background(), tt.SchemaName, tt.ClientCode, login, "user")
}

func createProtocol(t *testing.T, ctx context.Context, svc *service.ProtocolService, numero, nome string) *domain.Protocol {
	t.Helper()
	day, err := domain.ParseDate("2025-03-10")
	require.NoError(t, err)
	p, err := svc.Create(ctx, &domain.CreateProtocolRequest{
		Numero:          numero,
		Nome:            nome,
		DataSolicitacao: &day,
	})
	require.NoError(t, err)
	return p
}

func TestIntegration_SameNumeroInTwoTenants(t *testing.T) {
	suite.Require(t)
	ctx := testutil.DefaultTestContext(t)
	alpha := suite.SetupTenant(t, ctx, "alpha")
	beta := suite.SetupTenant(t, ctx, "beta")
	svc := newServices(suite.DB)

	pa := createProtocol(t, tenantCtx(alpha, "maria"), svc.protocols, "0001/2025", "Requerente Alpha")
	pb := createProtocol(t, tenantCtx(beta, "joao"), svc.protocols, "0001/2025", "Requerente Beta")

	got, err := svc.protocols.GetByID(tenantCtx(alpha, "maria"), pa.ID)
	require.NoError(t, err)
	assert.Equal(t, "Requerente Alpha", got.Nome)

	got, err = svc.protocols.GetByID(tenantCtx(beta, "joao"), pb.ID)
	require.NoError(t, err)
	assert.Equal(t, "Requerente Beta", got.Nome)

	list, total, err := svc.protocols.List(tenantCtx(alpha, "maria"), 1, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, list, 1)
	assert.Equal(t, "Requerente Alpha", list[0].Nome)

	// A second 0001/2025 in the same tenant is a conflict.
	day, _ := domain.ParseDate("2025-03-11")
	_, err = svc.protocols.Create(tenantCtx(alpha, "maria"), &domain.CreateProtocolRequest{
		Numero: "0001/2025", Nome: "Outro", DataSolicitacao: &day,
	})
	require.Error(t, err)
	assert.True(t, errors.Is(err, errors.ErrConflict))
}

func TestIntegration_PooledConnectionDoesNotLeakSchema(t *testing.T) {
	suite.Require(t)
	ctx := testutil.DefaultTestContext(t)
	alpha := suite.SetupTenant(t, ctx, "alpha")
	beta := suite.SetupTenant(t, ctx, "beta")

	// One connection: every request reuses the session of the previous one.
	db := suite.NewDB(t, 1)
	svc := newServices(db)

	for i := 1; i <= 3; i++ {
		createProtocol(t, tenantCtx(alpha, "maria"), svc.protocols, fmt.Sprintf("%04d/2025", i), "alpha")
		createProtocol(t, tenantCtx(beta, "joao"), svc.protocols, fmt.Sprintf("%04d/2025", i), "beta")
	}

	var wg sync.WaitGroup
	errs := make(chan error, 40)
	for i := 0; i < 40; i++ {
		tt, want := alpha, "alpha"
		if i%2 == 1 {
			tt, want = beta, "beta"
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			list, _, err := svc.protocols.List(tenantCtx(tt, "maria"), 1, 10)
			if err != nil {
				errs <- err
				return
			}
			for _, p := range list {
				if p.Nome != want {
					errs <- fmt.Errorf("tenant %s saw protocol %s of %s", want, p.Numero, p.Nome)
					return
				}
			}
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		t.Error(err)
	}
}

func TestIntegration_MoveAppendsHistory(t *testing.T) {
	suite.Require(t)
	ctx := testutil.DefaultTestContext(t)
	alpha := suite.SetupTenant(t, ctx, "alpha")
	svc := newServices(suite.DB)

	p := createProtocol(t, tenantCtx(alpha, "maria"), svc.protocols, "0010/2025", "Fulano")

	moved, err := svc.protocols.Move(tenantCtx(alpha, "maria"), p.ID, &domain.MoveRequest{
		Status:      testutil.PtrString("Em análise"),
		Responsavel: testutil.PtrString("joao"),
		Observacao:  "Encaminhado",
	})
	require.NoError(t, err)
	assert.Equal(t, "Em análise", moved.Status)

	history, err := svc.protocols.History(tenantCtx(alpha, "maria"), p.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "Protocolo criado no sistema.", *history[0].Observacao)
	assert.Equal(t, "(maria) Encaminhado", *history[1].Observacao)
	assert.Equal(t, "joao", *history[1].Responsavel)

	unseen, err := svc.protocols.Notifications(tenantCtx(alpha, "joao"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), unseen)

	marked, err := svc.protocols.MarkNotificationsRead(tenantCtx(alpha, "joao"))
	require.NoError(t, err)
	assert.Equal(t, int64(1), marked)

	last, err := svc.protocols.LastNumero(tenantCtx(alpha, "maria"), 2025)
	require.NoError(t, err)
	assert.Equal(t, 10, last)
}

func TestIntegration_DeleteCascades(t *testing.T) {
	suite.Require(t)
	ctx := testutil.DefaultTestContext(t)
	alpha := suite.SetupTenant(t, ctx, "alpha")
	svc := newServices(suite.DB)
	actx := tenantCtx(alpha, "maria")

	p := createProtocol(t, actx, svc.protocols, "0020/2025", "Fulano")
	_, err := svc.attachments.Upload(actx, p.ID, "nota.txt", "text/plain", []byte("conteúdo"))
	require.NoError(t, err)

	require.NoError(t, svc.protocols.Delete(actx, p.ID))

	schema := pq.QuoteIdentifier(alpha.SchemaName)
	for _, table := range []string{"anexos", "historico_protocolos"} {
		var n int
		require.NoError(t, suite.RawDB.GetContext(ctx, &n, `SELECT COUNT(*) FROM `+schema+`.`+table))
		assert.Zero(t, n, table)
	}

	_, err = svc.protocols.GetByID(actx, p.ID)
	assert.True(t, errors.Is(err, errors.ErrNotFound))
}
