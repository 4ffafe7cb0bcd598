package domain

import "github.com/protocolo/protocolo-backend/pkg/errors"

// CreateProtocolRequest is the payload of POST /protocolos.
// Status and Responsavel default to StatusGenerated and the caller's login.
type CreateProtocolRequest struct {
	Numero           string  `json:"numero" validate:"required,numero_protocolo"`
	Nome             string  `json:"nome" validate:"required,max=255"`
	Matricula        *string `json:"matricula,omitempty" validate:"omitempty,max=50"`
	Endereco         *string `json:"endereco,omitempty" validate:"omitempty,max=255"`
	Municipio        *string `json:"municipio,omitempty" validate:"omitempty,max=100"`
	Bairro           *string `json:"bairro,omitempty" validate:"omitempty,max=100"`
	CEP              *string `json:"cep,omitempty" validate:"omitempty,max=10"`
	Telefone         *string `json:"telefone,omitempty" validate:"omitempty,max=30"`
	CPF              *string `json:"cpf,omitempty" validate:"omitempty,max=14"`
	RG               *string `json:"rg,omitempty" validate:"omitempty,max=20"`
	Cargo            *string `json:"cargo,omitempty" validate:"omitempty,max=255"`
	Lotacao          *string `json:"lotacao,omitempty" validate:"omitempty,max=255"`
	UnidadeExercicio *string `json:"unidade_exercicio,omitempty" validate:"omitempty,max=255"`
	TipoRequerimento *string `json:"tipo_requerimento,omitempty" validate:"omitempty,max=255"`
	RequerAo         *string `json:"requer_ao,omitempty" validate:"omitempty,max=255"`
	DataSolicitacao  *Date   `json:"data_solicitacao" validate:"required"`
	Observacoes      *string `json:"observacoes,omitempty"`
	Status           string  `json:"status,omitempty" validate:"omitempty,max=100"`
	Responsavel      string  `json:"responsavel,omitempty" validate:"omitempty,max=100"`
}

// UpdateProtocolRequest changes the descriptive fields of a protocol. Nil
// fields are left untouched. Status and responsible only change through a
// movement, which also writes the history.
type UpdateProtocolRequest struct {
	Numero           *string `json:"numero,omitempty" validate:"omitempty,numero_protocolo"`
	Nome             *string `json:"nome,omitempty" validate:"omitempty,min=1,max=255"`
	Matricula        *string `json:"matricula,omitempty" validate:"omitempty,max=50"`
	Endereco         *string `json:"endereco,omitempty" validate:"omitempty,max=255"`
	Municipio        *string `json:"municipio,omitempty" validate:"omitempty,max=100"`
	Bairro           *string `json:"bairro,omitempty" validate:"omitempty,max=100"`
	CEP              *string `json:"cep,omitempty" validate:"omitempty,max=10"`
	Telefone         *string `json:"telefone,omitempty" validate:"omitempty,max=30"`
	CPF              *string `json:"cpf,omitempty" validate:"omitempty,max=14"`
	RG               *string `json:"rg,omitempty" validate:"omitempty,max=20"`
	Cargo            *string `json:"cargo,omitempty" validate:"omitempty,max=255"`
	Lotacao          *string `json:"lotacao,omitempty" validate:"omitempty,max=255"`
	UnidadeExercicio *string `json:"unidade_exercicio,omitempty" validate:"omitempty,max=255"`
	TipoRequerimento *string `json:"tipo_requerimento,omitempty" validate:"omitempty,max=255"`
	RequerAo         *string `json:"requer_ao,omitempty" validate:"omitempty,max=255"`
	DataSolicitacao  *Date   `json:"data_solicitacao,omitempty"`
	Observacoes      *string `json:"observacoes,omitempty"`
}

// Apply copies the non-nil fields onto p.
func (r *UpdateProtocolRequest) Apply(p *Protocol) {
	if r.Numero != nil {
		p.Numero = *r.Numero
	}
	if r.Nome != nil {
		p.Nome = *r.Nome
	}
	setIfPresent(&p.Matricula, r.Matricula)
	setIfPresent(&p.Endereco, r.Endereco)
	setIfPresent(&p.Municipio, r.Municipio)
	setIfPresent(&p.Bairro, r.Bairro)
	setIfPresent(&p.CEP, r.CEP)
	setIfPresent(&p.Telefone, r.Telefone)
	setIfPresent(&p.CPF, r.CPF)
	setIfPresent(&p.RG, r.RG)
	setIfPresent(&p.Cargo, r.Cargo)
	setIfPresent(&p.Lotacao, r.Lotacao)
	setIfPresent(&p.UnidadeExercicio, r.UnidadeExercicio)
	setIfPresent(&p.TipoRequerimento, r.TipoRequerimento)
	setIfPresent(&p.RequerAo, r.RequerAo)
	setIfPresent(&p.Observacoes, r.Observacoes)
	if r.DataSolicitacao != nil {
		p.DataSolicitacao = *r.DataSolicitacao
	}
}

func setIfPresent(dst **string, v *string) {
	if v != nil {
		*dst = v
	}
}

// MoveRequest changes status and/or responsible and always appends history.
type MoveRequest struct {
	Status      *string `json:"status,omitempty" validate:"omitempty,min=1,max=100"`
	Responsavel *string `json:"responsavel,omitempty" validate:"omitempty,min=1,max=100"`
	Observacao  string  `json:"observacao,omitempty"`
}

// ListParams filters protocol listings.
type ListParams struct {
	Page        int
	PerPage     int
	Responsavel *string
}

// Offset of the requested page.
func (p ListParams) Offset() int {
	return offset(p.Page, p.PerPage)
}

// SearchParams filters the advanced protocol search. Empty fields are
// ignored. Numero and Nome match any part of the value, case-insensitively;
// the other text fields must match exactly. The date bounds are inclusive.
type SearchParams struct {
	Numero     string
	Nome       string
	Status     string
	Tipo       string
	Lotacao    string
	DataInicio *Date
	DataFim    *Date
	Page       int
	PerPage    int
}

// Validate rejects an inverted date range.
func (p SearchParams) Validate() error {
	if p.DataInicio != nil && p.DataFim != nil && p.DataFim.Before(p.DataInicio.Time) {
		return errors.Validation(map[string]string{"data_fim": "must not be before data_inicio"})
	}
	return nil
}

// Offset of the requested page.
func (p SearchParams) Offset() int {
	return offset(p.Page, p.PerPage)
}

func offset(page, perPage int) int {
	if page < 1 {
		return 0
	}
	return (page - 1) * perPage
}
