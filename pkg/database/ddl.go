package database

import (
	"bytes"
	"fmt"
	"strings"
	"text/template"

	"github.com/lib/pq"
	"github.com/protocolo/protocolo-backend/pkg/tenant"
)

// Column is one column of a canonical table.
type Column struct {
	Name       string
	Type       string
	Constraint string // NOT NULL, DEFAULT ..., UNIQUE, CHECK ...
}

// ForeignKey references another table of the same schema.
type ForeignKey struct {
	Column   string
	Table    string
	OnDelete string
}

// Index is a secondary index on a canonical table.
type Index struct {
	Name    string
	Columns []string
}

// Table is one table every tenant schema owns.
type Table struct {
	Name        string
	Columns     []Column
	ForeignKeys []ForeignKey
	Indexes     []Index
}

// TenantTables is the canonical definition of a tenant schema. Provisioning
// renders it once per schema; tables are listed in dependency order.
var TenantTables = []Table{
	{
		Name: "usuarios",
		Columns: []Column{
			{Name: "id", Type: "BIGINT", Constraint: "GENERATED ALWAYS AS IDENTITY PRIMARY KEY"},
			{Name: "login", Type: "VARCHAR(100)", Constraint: "NOT NULL UNIQUE"},
			{Name: "password_hash", Type: "VARCHAR(255)", Constraint: "NOT NULL"},
			{Name: "nome", Type: "VARCHAR(255)", Constraint: "NOT NULL DEFAULT ''"},
			{Name: "role", Type: "VARCHAR(20)", Constraint: "NOT NULL DEFAULT 'user' CONSTRAINT usuarios_role_valid CHECK (role IN ('user', 'admin', 'padrao'))"},
			{Name: "created_at", Type: "TIMESTAMPTZ", Constraint: "NOT NULL DEFAULT NOW()"},
		},
	},
	{
		Name: "servidores",
		Columns: []Column{
			{Name: "id", Type: "BIGINT", Constraint: "GENERATED ALWAYS AS IDENTITY PRIMARY KEY"},
			{Name: "matricula", Type: "VARCHAR(50)", Constraint: "NOT NULL UNIQUE"},
			{Name: "nome", Type: "VARCHAR(255)", Constraint: "NOT NULL"},
			{Name: "lotacao", Type: "VARCHAR(255)"},
			{Name: "cargo", Type: "VARCHAR(255)"},
			{Name: "unidade_de_exercicio", Type: "VARCHAR(255)"},
			{Name: "updated_at", Type: "TIMESTAMPTZ", Constraint: "NOT NULL DEFAULT NOW()"},
		},
		Indexes: []Index{{Name: "idx_servidores_nome", Columns: []string{"nome"}}},
	},
	{
		Name: "protocolos",
		Columns: []Column{
			{Name: "id", Type: "BIGINT", Constraint: "GENERATED ALWAYS AS IDENTITY PRIMARY KEY"},
			{Name: "numero", Type: "VARCHAR(20)", Constraint: "NOT NULL CONSTRAINT protocolos_numero_key UNIQUE"},
			{Name: "nome", Type: "VARCHAR(255)", Constraint: "NOT NULL"},
			{Name: "matricula", Type: "VARCHAR(50)"},
			{Name: "endereco", Type: "VARCHAR(255)"},
			{Name: "municipio", Type: "VARCHAR(100)"},
			{Name: "bairro", Type: "VARCHAR(100)"},
			{Name: "cep", Type: "VARCHAR(10)"},
			{Name: "telefone", Type: "VARCHAR(30)"},
			{Name: "cpf", Type: "VARCHAR(14)"},
			{Name: "rg", Type: "VARCHAR(20)"},
			{Name: "cargo", Type: "VARCHAR(255)"},
			{Name: "lotacao", Type: "VARCHAR(255)"},
			{Name: "unidade_exercicio", Type: "VARCHAR(255)"},
			{Name: "tipo_requerimento", Type: "VARCHAR(255)"},
			{Name: "requer_ao", Type: "VARCHAR(255)"},
			{Name: "data_solicitacao", Type: "DATE", Constraint: "NOT NULL"},
			{Name: "observacoes", Type: "TEXT"},
			{Name: "status", Type: "VARCHAR(100)", Constraint: "NOT NULL DEFAULT 'Aberto'"},
			{Name: "responsavel", Type: "VARCHAR(100)"},
			{Name: "visto", Type: "BOOLEAN", Constraint: "NOT NULL DEFAULT FALSE"},
			{Name: "created_at", Type: "TIMESTAMPTZ", Constraint: "NOT NULL DEFAULT NOW()"},
		},
		Indexes: []Index{
			{Name: "idx_protocolos_status", Columns: []string{"status"}},
			{Name: "idx_protocolos_responsavel", Columns: []string{"responsavel"}},
		},
	},
	{
		Name: "historico_protocolos",
		Columns: []Column{
			{Name: "id", Type: "BIGINT", Constraint: "GENERATED ALWAYS AS IDENTITY PRIMARY KEY"},
			{Name: "protocolo_id", Type: "BIGINT", Constraint: "NOT NULL"},
			{Name: "status", Type: "VARCHAR(100)", Constraint: "NOT NULL"},
			{Name: "responsavel", Type: "VARCHAR(100)"},
			{Name: "observacao", Type: "TEXT"},
			{Name: "data_movimentacao", Type: "TIMESTAMPTZ", Constraint: "NOT NULL DEFAULT NOW()"},
		},
		ForeignKeys: []ForeignKey{{Column: "protocolo_id", Table: "protocolos", OnDelete: "CASCADE"}},
		Indexes:     []Index{{Name: "idx_historico_protocolo", Columns: []string{"protocolo_id", "data_movimentacao"}}},
	},
	{
		Name: "anexos",
		Columns: []Column{
			{Name: "id", Type: "BIGINT", Constraint: "GENERATED ALWAYS AS IDENTITY PRIMARY KEY"},
			{Name: "protocolo_id", Type: "BIGINT", Constraint: "NOT NULL"},
			{Name: "file_name", Type: "VARCHAR(255)", Constraint: "NOT NULL"},
			{Name: "mime_type", Type: "VARCHAR(100)", Constraint: "NOT NULL"},
			{Name: "file_size", Type: "BIGINT", Constraint: "NOT NULL"},
			{Name: "file_data", Type: "BYTEA", Constraint: "NOT NULL"},
			{Name: "created_at", Type: "TIMESTAMPTZ", Constraint: "NOT NULL DEFAULT NOW()"},
		},
		ForeignKeys: []ForeignKey{{Column: "protocolo_id", Table: "protocolos", OnDelete: "CASCADE"}},
		Indexes:     []Index{{Name: "idx_anexos_protocolo", Columns: []string{"protocolo_id"}}},
	},
}

var tableTemplate = template.Must(template.New("table").Parse(
	`CREATE TABLE IF NOT EXISTS {{.Schema}}.{{.Name}} (
{{- range $i, $c := .Columns}}{{if $i}},{{end}}
    {{$c.Name}} {{$c.Type}}{{if $c.Constraint}} {{$c.Constraint}}{{end}}
{{- end}}
{{- range .ForeignKeys}},
    FOREIGN KEY ({{.Column}}) REFERENCES {{$.Schema}}.{{.Table}}(id){{if .OnDelete}} ON DELETE {{.OnDelete}}{{end}}
{{- end}}
)`))

var indexTemplate = template.Must(template.New("index").Parse(
	`CREATE INDEX IF NOT EXISTS {{.Name}} ON {{.Schema}}.{{.Table}} ({{.Columns}})`))

// RenderTenantDDL renders the canonical tables for schema, one statement per
// element. The schema name is validated and quoted before interpolation.
func RenderTenantDDL(schema string) ([]string, error) {
	if err := tenant.ValidateSchemaName(schema); err != nil {
		return nil, err
	}
	quoted := pq.QuoteIdentifier(schema)

	var stmts []string
	for _, t := range TenantTables {
		var buf bytes.Buffer
		err := tableTemplate.Execute(&buf, struct {
			Table
			Schema string
		}{t, quoted})
		if err != nil {
			return nil, fmt.Errorf("render table %s: %w", t.Name, err)
		}
		stmts = append(stmts, buf.String())

		for _, idx := range t.Indexes {
			buf.Reset()
			err := indexTemplate.Execute(&buf, map[string]string{
				"Name":    idx.Name,
				"Schema":  quoted,
				"Table":   t.Name,
				"Columns": strings.Join(idx.Columns, ", "),
			})
			if err != nil {
				return nil, fmt.Errorf("render index %s: %w", idx.Name, err)
			}
			stmts = append(stmts, buf.String())
		}
	}
	return stmts, nil
}

// RegistryDDL creates the tenant registry in the default schema.
func RegistryDDL(defaultSchema string) (string, error) {
	if err := tenant.ValidateIdentifier(defaultSchema); err != nil {
		return "", err
	}
	return fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s.tenants (
    id BIGINT GENERATED ALWAYS AS IDENTITY PRIMARY KEY,
    name VARCHAR(100) NOT NULL,
    client_code VARCHAR(50) NOT NULL CONSTRAINT tenants_client_code_key UNIQUE,
    schema_name VARCHAR(63) NOT NULL CONSTRAINT tenants_schema_name_key UNIQUE,
    is_active BOOLEAN NOT NULL DEFAULT TRUE,
    created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
)`, pq.QuoteIdentifier(defaultSchema)), nil
}
