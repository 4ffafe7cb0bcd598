package domain

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Statuses used by the service and the dashboard counters.
const (
	StatusGenerated = "PROTOCOLO GERADO"
	StatusFinished  = "Finalizado"
	StatusConcluded = "Concluído"
)

// FinishedStatuses are excluded from the pending counters.
var FinishedStatuses = []string{StatusFinished, StatusConcluded}

// PendingAfterDays is the age at which an open protocol counts as overdue.
const PendingAfterDays = 15

// DateLayout is the wire and storage format of request dates.
const DateLayout = "2006-01-02"

// Date is a calendar date without time of day.
type Date struct {
	time.Time
}

// NewDate truncates t to its calendar day.
func NewDate(t time.Time) Date {
	y, m, d := t.Date()
	return Date{time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, err
	}
	return Date{t}, nil
}

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

func (d Date) MarshalJSON() ([]byte, error) {
	if d.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(d.Format(DateLayout))
}

func (d *Date) UnmarshalJSON(b []byte) error {
	s := strings.Trim(string(b), `"`)
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	// Accept full timestamps as well; only the day is kept.
	if len(s) > len(DateLayout) {
		s = s[:len(DateLayout)]
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return fmt.Errorf("invalid date %q, expected YYYY-MM-DD", s)
	}
	*d = parsed
	return nil
}

// Scan implements sql.Scanner
func (d *Date) Scan(value interface{}) error {
	switch v := value.(type) {
	case nil:
		*d = Date{}
	case time.Time:
		*d = NewDate(v)
	case []byte:
		return d.Scan(string(v))
	case string:
		parsed, err := ParseDate(v[:min(len(v), len(DateLayout))])
		if err != nil {
			return err
		}
		*d = parsed
	default:
		return fmt.Errorf("cannot scan %T into Date", value)
	}
	return nil
}

// Value implements driver.Valuer
func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.Time, nil
}

// Protocol is an administrative request tracked by a tenant.
// Numero is unique inside one schema and may repeat across tenants.
type Protocol struct {
	ID               int64     `db:"id" json:"id"`
	Numero           string    `db:"numero" json:"numero"`
	Nome             string    `db:"nome" json:"nome"`
	Matricula        *string   `db:"matricula" json:"matricula,omitempty"`
	Endereco         *string   `db:"endereco" json:"endereco,omitempty"`
	Municipio        *string   `db:"municipio" json:"municipio,omitempty"`
	Bairro           *string   `db:"bairro" json:"bairro,omitempty"`
	CEP              *string   `db:"cep" json:"cep,omitempty"`
	Telefone         *string   `db:"telefone" json:"telefone,omitempty"`
	CPF              *string   `db:"cpf" json:"cpf,omitempty"`
	RG               *string   `db:"rg" json:"rg,omitempty"`
	Cargo            *string   `db:"cargo" json:"cargo,omitempty"`
	Lotacao          *string   `db:"lotacao" json:"lotacao,omitempty"`
	UnidadeExercicio *string   `db:"unidade_exercicio" json:"unidade_exercicio,omitempty"`
	TipoRequerimento *string   `db:"tipo_requerimento" json:"tipo_requerimento,omitempty"`
	RequerAo         *string   `db:"requer_ao" json:"requer_ao,omitempty"`
	DataSolicitacao  Date      `db:"data_solicitacao" json:"data_solicitacao"`
	Observacoes      *string   `db:"observacoes" json:"observacoes,omitempty"`
	Status           string    `db:"status" json:"status"`
	Responsavel      *string   `db:"responsavel" json:"responsavel,omitempty"`
	Visto            bool      `db:"visto" json:"visto"`
	CreatedAt        time.Time `db:"created_at" json:"created_at"`
}

// ResponsavelOr returns the responsible login or fallback when unassigned.
func (p *Protocol) ResponsavelOr(fallback string) string {
	if p.Responsavel == nil || *p.Responsavel == "" {
		return fallback
	}
	return *p.Responsavel
}

// PublicView is what the unauthenticated lookup may reveal: no personal data.
type PublicView struct {
	Numero           string  `json:"numero"`
	Status           string  `json:"status"`
	TipoRequerimento *string `json:"tipo_requerimento,omitempty"`
	DataSolicitacao  Date    `json:"data_solicitacao"`
	Orgao            string  `json:"orgao"`
}

// NewPublicView strips p down to its public fields.
func NewPublicView(p *Protocol, tenantName string) *PublicView {
	return &PublicView{
		Numero:           p.Numero,
		Status:           p.Status,
		TipoRequerimento: p.TipoRequerimento,
		DataSolicitacao:  p.DataSolicitacao,
		Orgao:            tenantName,
	}
}

// History is one append-only movement of a protocol.
type History struct {
	ID               int64     `db:"id" json:"id"`
	ProtocoloID      int64     `db:"protocolo_id" json:"protocolo_id"`
	Status           string    `db:"status" json:"status"`
	Responsavel      *string   `db:"responsavel" json:"responsavel,omitempty"`
	Observacao       *string   `db:"observacao" json:"observacao,omitempty"`
	DataMovimentacao time.Time `db:"data_movimentacao" json:"data_movimentacao"`
}

// Attachment is a file stored with a protocol. Data is only loaded for downloads.
type Attachment struct {
	ID          int64     `db:"id" json:"id"`
	ProtocoloID int64     `db:"protocolo_id" json:"protocolo_id"`
	FileName    string    `db:"file_name" json:"file_name"`
	MimeType    string    `db:"mime_type" json:"mime_type"`
	FileSize    int64     `db:"file_size" json:"file_size"`
	Data        []byte    `db:"file_data" json:"-"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
}

// StatusCount is one bucket of the per-status counter.
type StatusCount struct {
	Status string `db:"status" json:"status"`
	Total  int64  `db:"total" json:"total"`
}

// TypeCount is one bucket of the request-type ranking.
type TypeCount struct {
	TipoRequerimento string `db:"tipo_requerimento" json:"tipo_requerimento"`
	Total            int64  `db:"total" json:"total"`
}

// Stats are the dashboard counters of one tenant.
type Stats struct {
	Total            int64         `json:"total"`
	Finalizados      int64         `json:"finalizados"`
	PendentesAntigos int64         `json:"pendentes_antigos"`
	PorStatus        []StatusCount `json:"por_status"`
	TopTipos         []TypeCount   `json:"top_tipos"`
}
