package postgres

import (
	"fmt"
	"strings"
)

// Column is a staging column and its Postgres type.
type Column struct {
	Name string
	Type string
}

// Schema describes the staging relation and the permanent relation it feeds.
// The permanent relation has the staging columns plus DateColumn.
type Schema struct {
	Table        string // permanent relation, optionally schema qualified
	StagingTable string // temp relation created per transaction
	DateColumn   string // filled with CURRENT_DATE on insert
	Columns      []Column
}

// DefaultSchema is the user_logins layout.
func DefaultSchema() Schema {
	return Schema{
		Table:        "user_logins",
		StagingTable: "stg",
		DateColumn:   "login_date",
		Columns: []Column{
			{Name: "user_id", Type: "varchar(128)"},
			{Name: "device_type", Type: "varchar(32)"},
			{Name: "masked_ip", Type: "varchar(256)"},
			{Name: "masked_device_id", Type: "varchar(256)"},
			{Name: "locale", Type: "varchar(32)"},
			{Name: "app_version", Type: "integer"},
		},
	}
}

// ColumnNames returns the staging column names in order.
func (s Schema) ColumnNames() []string {
	out := make([]string, len(s.Columns))
	for i, c := range s.Columns {
		out[i] = c.Name
	}
	return out
}

// CreateStagingSQL creates the temp relation. ON COMMIT DROP ties its
// lifetime to the load transaction, so nothing survives commit or rollback.
func (s Schema) CreateStagingSQL() string {
	return fmt.Sprintf("CREATE TEMP TABLE %s (%s) ON COMMIT DROP",
		pgIdent(s.StagingTable), s.columnDefs(nil))
}

// InsertStagingSQL is the parameterised single-row insert used by the batch
// insert mode.
func (s Schema) InsertStagingSQL() string {
	params := make([]string, len(s.Columns))
	for i := range s.Columns {
		params[i] = fmt.Sprintf("$%d", i+1)
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		pgIdent(s.StagingTable),
		strings.Join(mapIdent(s.ColumnNames()), ", "),
		strings.Join(params, ", "))
}

// UpsertSQL moves every staged row into the permanent relation, appending
// the server's current date.
func (s Schema) UpsertSQL() string {
	cols := strings.Join(mapIdent(s.ColumnNames()), ", ")
	return fmt.Sprintf("INSERT INTO %s (%s, %s) SELECT %s, CURRENT_DATE FROM %s",
		pgFQN(s.Table), cols, pgIdent(s.DateColumn), cols, pgIdent(s.StagingTable))
}

// EnsureTableSQL creates the permanent relation when missing. Only used by
// the opt-in bootstrap; production tables are managed elsewhere.
func (s Schema) EnsureTableSQL() string {
	return fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (%s)",
		pgFQN(s.Table), s.columnDefs(&Column{Name: s.DateColumn, Type: "date"}))
}

func (s Schema) columnDefs(extra *Column) string {
	defs := make([]string, 0, len(s.Columns)+1)
	for _, c := range s.Columns {
		defs = append(defs, pgIdent(c.Name)+" "+c.Type)
	}
	if extra != nil {
		defs = append(defs, pgIdent(extra.Name)+" "+extra.Type)
	}
	return strings.Join(defs, ", ")
}

// pgIdent safely quotes a single identifier segment for Postgres.
func pgIdent(id string) string { return `"` + strings.ReplaceAll(id, `"`, `""`) + `"` }

// pgFQN quotes a possibly schema-qualified name like "public.user_logins" to
// "public"."user_logins".
func pgFQN(name string) string {
	parts := strings.Split(name, ".")
	for i, p := range parts {
		parts[i] = pgIdent(p)
	}
	return strings.Join(parts, ".")
}

func mapIdent(cols []string) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = pgIdent(c)
	}
	return out
}
