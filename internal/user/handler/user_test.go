package handler_test

import (
	"database/sql/driver"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/go-chi/chi/v5"
	"github.com/lib/pq"
	"github.com/protocolo/protocolo-backend/internal/user/handler"
	"github.com/protocolo/protocolo-backend/internal/user/repository"
	"github.com/protocolo/protocolo-backend/internal/user/service"
	"github.com/protocolo/protocolo-backend/pkg/logger"
	"github.com/protocolo/protocolo-backend/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"golang.org/x/crypto/bcrypt"
)

func newRouter(t *testing.T) (http.Handler, *testutil.MockDB) {
	t.Helper()
	mdb := testutil.NewMockDB(t)
	h := handler.NewUserHandler(service.NewUserService(repository.NewUserRepository(mdb.DB), logger.Nop()), logger.Nop())

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := testutil.ActorContext(r.Context(), "alpha", "alpha", "admin", "admin")
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	})
	r.Get("/usuarios", h.List)
	r.Post("/usuarios", h.Create)
	return r, mdb
}

// bcryptOf matches a bcrypt hash of password.
type bcryptOf string

func (p bcryptOf) Match(v driver.Value) bool {
	s, ok := v.(string)
	return ok && bcrypt.CompareHashAndPassword([]byte(s), []byte(p)) == nil
}

func TestUserHandler_Create(t *testing.T) {
	router, mdb := newRouter(t)

	mdb.ExpectBegin()
	mdb.ExpectQueryIn("alpha", "INSERT INTO usuarios").
		WithArgs("joao", sqlmock.Argument(bcryptOf("segredo1")), "João", "padrao").
		WillReturnRows(testutil.MockRows("id", "created_at").AddRow(3, time.Now()))
	mdb.ExpectCommit()

	rr := testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodPost, "/usuarios", map[string]string{
		"login":    "joao",
		"password": "segredo1",
		"nome":     "João",
		"role":     "padrao",
	}))
	testutil.AssertStatus(t, rr, http.StatusCreated)

	var body map[string]interface{}
	testutil.ParseData(t, rr, &body)
	assert.Equal(t, "joao", body["login"])
	assert.NotContains(t, body, "password_hash")
	mdb.ExpectationsWereMet(t)
}

func TestUserHandler_Create_DuplicateLogin(t *testing.T) {
	router, mdb := newRouter(t)

	mdb.ExpectBegin()
	mdb.ExpectQueryIn("alpha", "INSERT INTO usuarios").
		WillReturnError(&pq.Error{Code: "23505", Constraint: "usuarios_login_key"})
	mdb.ExpectRollback()

	rr := testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodPost, "/usuarios", map[string]string{
		"login":    "admin",
		"password": "segredo1",
		"role":     "user",
	}))
	testutil.AssertStatus(t, rr, http.StatusConflict)
	testutil.AssertErrorCode(t, rr, "CONFLICT")
	mdb.ExpectationsWereMet(t)
}

func TestUserHandler_Create_RejectsUnknownRole(t *testing.T) {
	router, mdb := newRouter(t)

	rr := testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodPost, "/usuarios", map[string]string{
		"login":    "x",
		"password": "segredo1",
		"role":     "super_admin",
	}))
	testutil.AssertStatus(t, rr, http.StatusBadRequest)
	testutil.AssertErrorCode(t, rr, "VALIDATION_ERROR")
	mdb.ExpectationsWereMet(t)
}

func TestUserHandler_Create_RejectsPasswordOverBcryptLimit(t *testing.T) {
	router, mdb := newRouter(t)

	// 40 runes pass the rune-counting validator but take 80 bytes.
	password := strings.Repeat("é", 40)
	rr := testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodPost, "/usuarios", map[string]string{
		"login":    "maria",
		"password": password,
		"role":     "padrao",
	}))
	testutil.AssertStatus(t, rr, http.StatusBadRequest)
	testutil.AssertErrorCode(t, rr, "VALIDATION_ERROR")
	mdb.ExpectationsWereMet(t)
}

func TestUserHandler_Create_AcceptsMultiBytePasswordWithinLimit(t *testing.T) {
	router, mdb := newRouter(t)

	password := strings.Repeat("é", 36)
	mdb.ExpectBegin()
	mdb.ExpectQueryIn("alpha", "INSERT INTO usuarios").
		WithArgs("maria", sqlmock.Argument(bcryptOf(password)), "", "padrao").
		WillReturnRows(testutil.MockRows("id", "created_at").AddRow(4, time.Now()))
	mdb.ExpectCommit()

	rr := testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodPost, "/usuarios", map[string]string{
		"login":    "maria",
		"password": password,
		"role":     "padrao",
	}))
	testutil.AssertStatus(t, rr, http.StatusCreated)
	mdb.ExpectationsWereMet(t)
}

func TestUserHandler_List(t *testing.T) {
	router, mdb := newRouter(t)

	mdb.ExpectBegin()
	mdb.ExpectQueryIn("alpha", "FROM usuarios ORDER BY login").
		WillReturnRows(testutil.MockRows("id", "login", "password_hash", "nome", "role", "created_at").
			AddRow(1, "admin", "$2a$hash", "Administrador", "admin", time.Now()))
	mdb.ExpectCommit()

	rr := testutil.ExecuteRequest(router, testutil.NewHTTPRequest(http.MethodGet, "/usuarios", nil))
	testutil.AssertStatus(t, rr, http.StatusOK)
	testutil.AssertBodyContains(t, rr, `"login":"admin"`)
	assert.NotContains(t, rr.Body.String(), "$2a$hash")
	mdb.ExpectationsWereMet(t)
}
