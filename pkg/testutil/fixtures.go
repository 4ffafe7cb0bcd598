package testutil

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"golang.org/x/crypto/bcrypt"
)

// DefaultPassword is the plain password of every user fixture unless overridden.
const DefaultPassword = "password123"

// UserFixture represents a row of a tenant's usuarios table
type UserFixture struct {
	ID           int64
	Login        string
	Password     string
	PasswordHash string
	Nome         string
	Role         string
}

// ProtocolFixture represents a row of a tenant's protocolos table
type ProtocolFixture struct {
	ID               int64
	Numero           string
	Nome             string
	Matricula        string
	TipoRequerimento string
	DataSolicitacao  time.Time
	Status           string
	Responsavel      string
}

// ServidorFixture represents a row of a tenant's servidores table
type ServidorFixture struct {
	ID                 int64
	Matricula          string
	Nome               string
	Lotacao            string
	Cargo              string
	UnidadeDeExercicio string
}

// FixtureFactory creates test fixtures with sensible defaults
type FixtureFactory struct {
	mu       sync.Mutex
	sequence int
}

// NewFixtureFactory creates a new fixture factory
func NewFixtureFactory() *FixtureFactory {
	return &FixtureFactory{}
}

// nextSeq returns the next sequence number for unique values
func (f *FixtureFactory) nextSeq() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sequence++
	return f.sequence
}

// User creates a user fixture with defaults
func (f *FixtureFactory) User(opts ...func(*UserFixture)) UserFixture {
	seq := f.nextSeq()

	user := UserFixture{
		Login:    fmt.Sprintf("user%d", seq),
		Password: DefaultPassword,
		Nome:     fmt.Sprintf("Usuário %d", seq),
		Role:     "user",
	}

	for _, opt := range opts {
		opt(&user)
	}

	if user.PasswordHash == "" {
		hash, _ := bcrypt.GenerateFromPassword([]byte(user.Password), bcrypt.MinCost)
		user.PasswordHash = string(hash)
	}
	return user
}

// WithLogin sets the user login
func WithLogin(login string) func(*UserFixture) {
	return func(u *UserFixture) {
		u.Login = login
	}
}

// WithPassword sets the user password (hashed on creation)
func WithPassword(password string) func(*UserFixture) {
	return func(u *UserFixture) {
		u.Password = password
	}
}

// WithRole sets the user role
func WithRole(role string) func(*UserFixture) {
	return func(u *UserFixture) {
		u.Role = role
	}
}

// Protocol creates a protocol fixture with defaults
func (f *FixtureFactory) Protocol(opts ...func(*ProtocolFixture)) ProtocolFixture {
	seq := f.nextSeq()

	p := ProtocolFixture{
		Numero:           fmt.Sprintf("%04d/%d", seq, time.Now().Year()),
		Nome:             fmt.Sprintf("Requerente %d", seq),
		Matricula:        fmt.Sprintf("M%05d", seq),
		TipoRequerimento: "Férias",
		DataSolicitacao:  time.Now().UTC().Truncate(24 * time.Hour),
		Status:           "PROTOCOLO GERADO",
		Responsavel:      "user1",
	}

	for _, opt := range opts {
		opt(&p)
	}
	return p
}

// WithNumero sets the protocol number
func WithNumero(numero string) func(*ProtocolFixture) {
	return func(p *ProtocolFixture) {
		p.Numero = numero
	}
}

// WithProtocolStatus sets the protocol status
func WithProtocolStatus(status string) func(*ProtocolFixture) {
	return func(p *ProtocolFixture) {
		p.Status = status
	}
}

// WithResponsavel sets the responsible login
func WithResponsavel(login string) func(*ProtocolFixture) {
	return func(p *ProtocolFixture) {
		p.Responsavel = login
	}
}

// WithRequestedAt sets the request date
func WithRequestedAt(t time.Time) func(*ProtocolFixture) {
	return func(p *ProtocolFixture) {
		p.DataSolicitacao = t
	}
}

// Servidor creates a staff directory fixture with defaults
func (f *FixtureFactory) Servidor(opts ...func(*ServidorFixture)) ServidorFixture {
	seq := f.nextSeq()

	s := ServidorFixture{
		Matricula:          fmt.Sprintf("%06d", seq),
		Nome:               fmt.Sprintf("Servidor %d", seq),
		Lotacao:            "Secretaria de Administração",
		Cargo:              "Analista",
		UnidadeDeExercicio: "Sede",
	}

	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// WithServidorNome sets the staff member's name
func WithServidorNome(nome string) func(*ServidorFixture) {
	return func(s *ServidorFixture) {
		s.Nome = nome
	}
}

// InsertUser writes u into the tenant schema and sets its ID.
func InsertUser(ctx context.Context, db *sqlx.DB, t *TestTenant, u *UserFixture) error {
	return db.QueryRowxContext(ctx,
		`INSERT INTO `+pq.QuoteIdentifier(t.SchemaName)+`.usuarios (login, password_hash, nome, role)
		 VALUES ($1, $2, $3, $4) RETURNING id`,
		u.Login, u.PasswordHash, u.Nome, u.Role,
	).Scan(&u.ID)
}

// InsertProtocol writes p into the tenant schema and sets its ID.
func InsertProtocol(ctx context.Context, db *sqlx.DB, t *TestTenant, p *ProtocolFixture) error {
	return db.QueryRowxContext(ctx,
		`INSERT INTO `+pq.QuoteIdentifier(t.SchemaName)+`.protocolos
		 (numero, nome, matricula, tipo_requerimento, data_solicitacao, status, responsavel)
		 VALUES ($1, $2, $3, $4, $5, $6, $7) RETURNING id`,
		p.Numero, p.Nome, p.Matricula, p.TipoRequerimento, p.DataSolicitacao, p.Status, p.Responsavel,
	).Scan(&p.ID)
}

// InsertServidor writes s into the tenant schema and sets its ID.
func InsertServidor(ctx context.Context, db *sqlx.DB, t *TestTenant, s *ServidorFixture) error {
	return db.QueryRowxContext(ctx,
		`INSERT INTO `+pq.QuoteIdentifier(t.SchemaName)+`.servidores
		 (matricula, nome, lotacao, cargo, unidade_de_exercicio)
		 VALUES ($1, $2, $3, $4, $5) RETURNING id`,
		s.Matricula, s.Nome, s.Lotacao, s.Cargo, s.UnidadeDeExercicio,
	).Scan(&s.ID)
}
