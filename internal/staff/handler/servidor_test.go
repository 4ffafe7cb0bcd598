package handler_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/protocolo/protocolo-backend/internal/staff/handler"
	"github.com/protocolo/protocolo-backend/internal/staff/repository"
	"github.com/protocolo/protocolo-backend/internal/staff/service"
	"github.com/protocolo/protocolo-backend/pkg/errors"
	"github.com/protocolo/protocolo-backend/pkg/logger"
	"github.com/protocolo/protocolo-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var servidorCols = []string{"id", "matricula", "nome", "lotacao", "cargo", "unidade_de_exercicio", "updated_at"}

func newRouter(t *testing.T) (http.Handler, *testutil.MockDB) {
	t.Helper()
	mdb := testutil.NewMockDB(t)
	h := handler.NewServidorHandler(service.NewStaffService(repository.NewServidorRepository(mdb.DB), logger.Nop()), logger.Nop())

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := testutil.ActorContext(r.Context(), "alpha", "alpha", "maria", "user")
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	r.Get("/servidores", h.Search)
	r.Get("/servidores/{matricula}", h.Get)
	return r, mdb
}

func TestServidorHandler_Search(t *testing.T) {
	router, mdb := newRouter(t)

	mdb.ExpectBegin()
	mdb.ExpectQueryIn("alpha", "WHERE nome ILIKE $1 ORDER BY nome LIMIT $2").
		WithArgs(`%mar\_ia%`, 20).
		WillReturnRows(testutil.MockRows(servidorCols...).
			AddRow(1, "123", "Mar_ia Souza", "Secretaria", nil, nil, time.Now()))
	mdb.ExpectCommit()

	rr := testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodGet, "/servidores?nome=mar_ia", nil))
	testutil.AssertStatus(t, rr, http.StatusOK)

	var body []map[string]interface{}
	testutil.ParseData(t, rr, &body)
	assert.Len(t, body, 1)
	assert.Equal(t, "123", body[0]["matricula"])
	mdb.ExpectationsWereMet(t)
}

func TestServidorHandler_Search_TooShort(t *testing.T) {
	router, mdb := newRouter(t)

	rr := testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodGet, "/servidores?nome=ma", nil))
	testutil.AssertStatus(t, rr, http.StatusBadRequest)
	testutil.AssertErrorCode(t, rr, "VALIDATION_ERROR")
	mdb.ExpectationsWereMet(t)
}

func TestServidorHandler_Get_NotFound(t *testing.T) {
	router, mdb := newRouter(t)

	mdb.ExpectBegin()
	mdb.ExpectQueryIn("alpha", "FROM servidores WHERE matricula = $1").
		WithArgs("999").
		WillReturnRows(testutil.MockRows(servidorCols...))
	mdb.ExpectRollback()

	rr := testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodGet, "/servidores/999", nil))
	testutil.AssertStatus(t, rr, http.StatusNotFound)
	mdb.ExpectationsWereMet(t)
}

func TestStaffService_RequiresTenant(t *testing.T) {
	mdb := testutil.NewMockDB(t)
	svc := service.NewStaffService(repository.NewServidorRepository(mdb.DB), logger.Nop())

	_, err := svc.GetByMatricula(context.Background(), "123")
	var appErr *errors.AppError
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, "FORBIDDEN", appErr.Code)
	mdb.ExpectationsWereMet(t)
}
