package domain

import "time"

// MinSearchLength is the shortest name fragment accepted by the directory search.
const MinSearchLength = 3

// MaxSearchResults bounds a directory search.
const MaxSearchResults = 20

// Servidor is an entry of the tenant's staff directory, used to prefill
// protocol requests by matricula.
type Servidor struct {
	ID                 int64     `db:"id" json:"id"`
	Matricula          string    `db:"matricula" json:"matricula"`
	Nome               string    `db:"nome" json:"nome"`
	Lotacao            *string   `db:"lotacao" json:"lotacao,omitempty"`
	Cargo              *string   `db:"cargo" json:"cargo,omitempty"`
	UnidadeDeExercicio *string   `db:"unidade_de_exercicio" json:"unidade_de_exercicio,omitempty"`
	UpdatedAt          time.Time `db:"updated_at" json:"updated_at"`
}
