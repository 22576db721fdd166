package backup

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"time"
)

// exportSQL renders the full database as one SQL script: header
// comments, FK-check bracketing, one CREATE TABLE and one INSERT per
// row per table.
func (e *Engine) exportSQL(ctx context.Context, now time.Time) ([]byte, error) {
	var b strings.Builder

	fmt.Fprintf(&b, "-- %s database backup\n", Product)
	fmt.Fprintf(&b, "-- Generated: %s\n", now.Format(time.RFC3339))
	fmt.Fprintf(&b, "-- Environment: %s\n", e.environment)
	fmt.Fprintf(&b, "-- Database: %s\n\n", e.database)

	// Postgres equivalent of disabling FK checks for the load.
	b.WriteString("SET session_replication_role = replica;\n\n")

	for _, table := range e.src.Tables() {
		ddl, err := e.src.TableDDL(ctx, table)
		if err != nil {
			return nil, fmt.Errorf("schema for %s: %w", table, err)
		}
		fmt.Fprintf(&b, "-- Table: %s\n%s\n\n", table, ddl)

		rows, err := e.src.Rows(ctx, table)
		if err != nil {
			return nil, fmt.Errorf("rows for %s: %w", table, err)
		}
		for _, row := range rows {
			b.WriteString(insertStatement(table, row))
			b.WriteString("\n")
		}
		if len(rows) > 0 {
			b.WriteString("\n")
		}
	}

	b.WriteString("SET session_replication_role = DEFAULT;\n")
	return []byte(b.String()), nil
}

// insertStatement renders one row as an INSERT with deterministic
// column order.
func insertStatement(table string, row map[string]interface{}) string {
	cols := make([]string, 0, len(row))
	for col := range row {
		cols = append(cols, col)
	}
	sort.Strings(cols)

	vals := make([]string, 0, len(cols))
	for _, col := range cols {
		vals = append(vals, sqlLiteral(row[col]))
	}
	return fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s);", table, strings.Join(cols, ", "), strings.Join(vals, ", "))
}

func sqlLiteral(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return "NULL"
	case bool:
		if x {
			return "TRUE"
		}
		return "FALSE"
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
		return fmt.Sprint(x)
	case float32, float64:
		return fmt.Sprint(x)
	case time.Time:
		return "'" + x.UTC().Format("2006-01-02 15:04:05") + "'"
	case []byte:
		return quoteString(string(x))
	case string:
		return quoteString(x)
	default:
		// Composite values (JSON maps) serialize as JSON text.
		if b, err := json.Marshal(x); err == nil {
			return quoteString(string(b))
		}
		return quoteString(fmt.Sprint(x))
	}
}

func quoteString(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

// jsonExport is the on-disk shape of a JSON format backup.
type jsonExport struct {
	GeneratedAt time.Time            `json:"generated_at"`
	Environment string               `json:"environment"`
	Database    string               `json:"database"`
	Tables      map[string]jsonTable `json:"tables"`
}

type jsonTable struct {
	Schema string                   `json:"schema"`
	Rows   []map[string]interface{} `json:"rows"`
}

// exportJSON renders the full database as one JSON document with
// schema and rows per table.
func (e *Engine) exportJSON(ctx context.Context, now time.Time) ([]byte, error) {
	doc := jsonExport{
		GeneratedAt: now,
		Environment: e.environment,
		Database:    e.database,
		Tables:      make(map[string]jsonTable),
	}

	for _, table := range e.src.Tables() {
		ddl, err := e.src.TableDDL(ctx, table)
		if err != nil {
			return nil, fmt.Errorf("schema for %s: %w", table, err)
		}
		rows, err := e.src.Rows(ctx, table)
		if err != nil {
			return nil, fmt.Errorf("rows for %s: %w", table, err)
		}
		if rows == nil {
			rows = []map[string]interface{}{}
		}
		doc.Tables[table] = jsonTable{Schema: ddl, Rows: rows}
	}

	return json.MarshalIndent(doc, "", "  ")
}
