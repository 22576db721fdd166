package db

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"gorm.io/gorm"
)

// IndexInfo describes one existing index as reported by the catalog.
type IndexInfo struct {
	Name       string
	Table      string
	Columns    []string
	Unique     bool
	Definition string
}

// TableStatistics carries the row count and a derived size estimate for
// a table. Used as an impact-estimation input only, never persisted.
type TableStatistics struct {
	Table     string
	RowCount  int64
	SizeBytes int64
}

// ColumnInfo describes one column as reported by information_schema.
type ColumnInfo struct {
	Name     string
	DataType string
	Nullable bool
	Default  string
}

// Catalog introspects the storage engine's own metadata tables to
// discover existing indexes and schema. It is the concrete backing for
// the advisor's and backup engine's catalog interfaces.
type Catalog struct {
	db *gorm.DB
}

func NewCatalog(gdb *gorm.DB) *Catalog {
	return &Catalog{db: gdb}
}

// Tables returns the fixed entity list the catalog serves.
func (c *Catalog) Tables() []string { return Tables() }

// Indexes returns the existing indexes on a table, with column lists
// parsed from the catalog's DDL text.
func (c *Catalog) Indexes(ctx context.Context, table string) ([]IndexInfo, error) {
	var rows []struct {
		Indexname string
		Indexdef  string
	}
	err := c.db.WithContext(ctx).
		Raw(`SELECT indexname, indexdef FROM pg_indexes WHERE schemaname = 'public' AND tablename = ?`, table).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("introspect indexes for %s: %w", table, err)
	}

	infos := make([]IndexInfo, 0, len(rows))
	for _, r := range rows {
		infos = append(infos, IndexInfo{
			Name:       r.Indexname,
			Table:      table,
			Columns:    ParseIndexColumns(r.Indexdef),
			Unique:     strings.Contains(strings.ToUpper(r.Indexdef), "UNIQUE INDEX"),
			Definition: r.Indexdef,
		})
	}
	return infos, nil
}

var indexColumnsRe = regexp.MustCompile(`\(([^)]+)\)\s*$`)

// ParseIndexColumns extracts the ordered column list from an index DDL
// statement such as
//
//	CREATE UNIQUE INDEX idx_leads_email ON public.leads USING btree (email)
//
// Expression indexes yield the expression text as-is; callers treat a
// non-match as an empty column list.
func ParseIndexColumns(indexdef string) []string {
	m := indexColumnsRe.FindStringSubmatch(indexdef)
	if m == nil {
		return nil
	}
	parts := strings.Split(m[1], ",")
	cols := make([]string, 0, len(parts))
	for _, p := range parts {
		col := strings.TrimSpace(p)
		col = strings.Trim(col, `"`)
		// Strip opclass/ordering suffixes like "email text_pattern_ops"
		// or "created_at DESC".
		if i := strings.IndexByte(col, ' '); i > 0 {
			col = col[:i]
		}
		if col != "" {
			cols = append(cols, col)
		}
	}
	return cols
}

// Statistics returns the planner's row estimate for a table, falling
// back to an exact count when the estimate is unavailable (fresh table,
// never analyzed), plus the total on-disk size.
func (c *Catalog) Statistics(ctx context.Context, table string) (TableStatistics, error) {
	stats := TableStatistics{Table: table}

	var rowCount int64 = -1
	err := c.db.WithContext(ctx).
		Raw(`SELECT reltuples::bigint FROM pg_class WHERE relname = ? AND relkind = 'r'`, table).
		Scan(&rowCount).Error
	if err != nil {
		return stats, fmt.Errorf("table statistics for %s: %w", table, err)
	}
	if rowCount < 0 {
		if err := c.db.WithContext(ctx).Table(table).Count(&rowCount).Error; err != nil {
			return stats, fmt.Errorf("count rows for %s: %w", table, err)
		}
	}
	stats.RowCount = rowCount

	var size int64
	if err := c.db.WithContext(ctx).
		Raw(`SELECT pg_total_relation_size(?::regclass)`, table).
		Scan(&size).Error; err == nil {
		stats.SizeBytes = size
	}
	return stats, nil
}

// Columns returns the ordered column definitions for a table.
func (c *Catalog) Columns(ctx context.Context, table string) ([]ColumnInfo, error) {
	var rows []struct {
		ColumnName    string
		DataType      string
		IsNullable    string
		ColumnDefault *string
	}
	err := c.db.WithContext(ctx).
		Raw(`SELECT column_name, data_type, is_nullable, column_default
		     FROM information_schema.columns
		     WHERE table_schema = 'public' AND table_name = ?
		     ORDER BY ordinal_position`, table).
		Scan(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("introspect columns for %s: %w", table, err)
	}

	cols := make([]ColumnInfo, 0, len(rows))
	for _, r := range rows {
		ci := ColumnInfo{
			Name:     r.ColumnName,
			DataType: r.DataType,
			Nullable: r.IsNullable == "YES",
		}
		if r.ColumnDefault != nil {
			ci.Default = *r.ColumnDefault
		}
		cols = append(cols, ci)
	}
	return cols, nil
}

// TableDDL reconstructs a CREATE TABLE statement from the catalog.
// Postgres has no SHOW CREATE TABLE, so this is assembled from
// information_schema and is sufficient for backup artifacts.
func (c *Catalog) TableDDL(ctx context.Context, table string) (string, error) {
	cols, err := c.Columns(ctx, table)
	if err != nil {
		return "", err
	}
	if len(cols) == 0 {
		return "", fmt.Errorf("table %s has no columns in catalog", table)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "CREATE TABLE %s (\n", table)
	for i, col := range cols {
		fmt.Fprintf(&b, "  %s %s", col.Name, col.DataType)
		if !col.Nullable {
			b.WriteString(" NOT NULL")
		}
		if col.Default != "" {
			fmt.Fprintf(&b, " DEFAULT %s", col.Default)
		}
		if i < len(cols)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString(");")
	return b.String(), nil
}

// Rows fetches all rows of a table as generic maps, for export.
func (c *Catalog) Rows(ctx context.Context, table string) ([]map[string]interface{}, error) {
	var rows []map[string]interface{}
	if err := c.db.WithContext(ctx).Table(table).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("fetch rows for %s: %w", table, err)
	}
	return rows, nil
}

// Exec runs a DDL statement (index creation) against the database.
func (c *Catalog) Exec(ctx context.Context, ddl string) error {
	return c.db.WithContext(ctx).Exec(ddl).Error
}

// Ping runs a trivial round-trip query and returns any error.
func (c *Catalog) Ping(ctx context.Context) error {
	var one int
	return c.db.WithContext(ctx).Raw(`SELECT 1`).Scan(&one).Error
}
