package sqldb

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
)

// DescribeSchema produces the table/column/type summary of the target
// database, readable by both humans and the model.
func (s *Service) DescribeSchema(ctx context.Context, details ConnectionDetails) (string, error) {
	handle, err := s.db(ctx, details)
	if err != nil {
		return "", err
	}

	driver, _, err := details.driverAndDSN()
	if err != nil {
		return "", err
	}

	var tables []tableSchema
	switch driver {
	case "sqlite3":
		tables, err = sqliteTables(ctx, handle)
	case "postgres":
		tables, err = informationSchemaTables(ctx, handle,
			`SELECT table_name, column_name, data_type
			 FROM information_schema.columns
			 WHERE table_schema = 'public'
			 ORDER BY table_name, ordinal_position`)
	case "mysql":
		tables, err = informationSchemaTables(ctx, handle,
			`SELECT table_name, column_name, data_type
			 FROM information_schema.columns
			 WHERE table_schema = DATABASE()
			 ORDER BY table_name, ordinal_position`)
	default:
		return "", fmt.Errorf("unsupported driver %q", driver)
	}
	if err != nil {
		return "", err
	}

	if len(tables) == 0 {
		return fmt.Sprintf("Database %q contains no tables.", details.DisplayName), nil
	}
	return formatSchema(details.DisplayName, tables), nil
}

// GetDatabaseSchema is the tool-facing wrapper: it resolves the user's
// connection and renders the schema, converting every failure to text since
// the consumer is the model.
func (s *Service) GetDatabaseSchema(ctx context.Context, userID string) string {
	details, err := s.resolver.ResolveConnectionDetails(ctx, userID)
	if err != nil {
		return fmt.Sprintf("Could not inspect the database schema: %v", err)
	}

	schema, err := s.DescribeSchema(ctx, details)
	if err != nil {
		return fmt.Sprintf("Could not inspect the database schema: %v", err)
	}
	return schema
}

type tableSchema struct {
	name    string
	columns []columnSchema
}

type columnSchema struct {
	name     string
	dataType string
}

func sqliteTables(ctx context.Context, db *sql.DB) ([]tableSchema, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT name FROM sqlite_master
		 WHERE type = 'table' AND name NOT LIKE 'sqlite_%'
		 ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var tables []tableSchema
	for _, name := range names {
		cols, err := sqliteColumns(ctx, db, name)
		if err != nil {
			return nil, err
		}
		tables = append(tables, tableSchema{name: name, columns: cols})
	}
	return tables, nil
}

func sqliteColumns(ctx context.Context, db *sql.DB, table string) ([]columnSchema, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%q)", table))
	if err != nil {
		return nil, fmt.Errorf("describing table %s: %w", table, err)
	}
	defer rows.Close()

	var cols []columnSchema
	for rows.Next() {
		var (
			cid        int
			name, typ  string
			notNull    int
			defaultVal sql.NullString
			pk         int
		)
		if err := rows.Scan(&cid, &name, &typ, &notNull, &defaultVal, &pk); err != nil {
			return nil, err
		}
		cols = append(cols, columnSchema{name: name, dataType: typ})
	}
	return cols, rows.Err()
}

func informationSchemaTables(ctx context.Context, db *sql.DB, query string) ([]tableSchema, error) {
	rows, err := db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("reading information_schema: %w", err)
	}
	defer rows.Close()

	var tables []tableSchema
	byName := make(map[string]int)
	for rows.Next() {
		var table, column, dataType string
		if err := rows.Scan(&table, &column, &dataType); err != nil {
			return nil, err
		}

		idx, ok := byName[table]
		if !ok {
			idx = len(tables)
			byName[table] = idx
			tables = append(tables, tableSchema{name: table})
		}
		tables[idx].columns = append(tables[idx].columns, columnSchema{name: column, dataType: dataType})
	}
	return tables, rows.Err()
}

func formatSchema(displayName string, tables []tableSchema) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Database: %s\n", displayName)
	for _, table := range tables {
		fmt.Fprintf(&b, "\nTable: %s\n", table.name)
		for _, col := range table.columns {
			fmt.Fprintf(&b, "  - %s (%s)\n", col.name, col.dataType)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
