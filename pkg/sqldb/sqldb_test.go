package sqldb

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"strings"
	"testing"

	"github.com/nestor-ai/nestor/pkg/config"
	"github.com/nestor-ai/nestor/pkg/llms"
)

func TestFingerprintDistinguishesDescriptors(t *testing.T) {
	base := ConnectionDetails{Mode: ModeSQLite, SQLitePath: "/tmp/a.db"}

	tests := []struct {
		name     string
		other    ConnectionDetails
		wantSame bool
	}{
		{"identical", ConnectionDetails{Mode: ModeSQLite, SQLitePath: "/tmp/a.db"}, true},
		{"display name ignored", ConnectionDetails{Mode: ModeSQLite, SQLitePath: "/tmp/a.db", DisplayName: "x"}, true},
		{"different path", ConnectionDetails{Mode: ModeSQLite, SQLitePath: "/tmp/b.db"}, false},
		{"different mode", ConnectionDetails{Mode: ModeURL, ConnectionURL: "/tmp/a.db"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if same := tt.other.Fingerprint() == base.Fingerprint(); same != tt.wantSame {
				t.Errorf("fingerprint equality = %v, want %v", same, tt.wantSame)
			}
		})
	}
}

func TestDriverAndDSN(t *testing.T) {
	tests := []struct {
		name       string
		details    ConnectionDetails
		wantDriver string
		wantDSN    string
		wantErr    bool
	}{
		{
			name:       "sqlite file",
			details:    ConnectionDetails{Mode: ModeSQLite, SQLitePath: "data/app.db"},
			wantDriver: "sqlite3",
			wantDSN:    "data/app.db",
		},
		{
			name:       "postgres url",
			details:    ConnectionDetails{Mode: ModeURL, ConnectionURL: "postgres://u:p@db:5432/shop"},
			wantDriver: "postgres",
			wantDSN:    "postgres://u:p@db:5432/shop",
		},
		{
			name:       "mysql url converted to dsn",
			details:    ConnectionDetails{Mode: ModeURL, ConnectionURL: "mysql://u:p@db:3307/shop?parseTime=true"},
			wantDriver: "mysql",
			wantDSN:    "u:p@tcp(db:3307)/shop?parseTime=true",
		},
		{
			name:       "mysql default port",
			details:    ConnectionDetails{Mode: ModeURL, ConnectionURL: "mysql://root@db/shop"},
			wantDriver: "mysql",
			wantDSN:    "root@tcp(db:3306)/shop",
		},
		{
			name:    "unsupported scheme",
			details: ConnectionDetails{Mode: ModeURL, ConnectionURL: "mongodb://db/shop"},
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			driver, dsn, err := tt.details.driverAndDSN()
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil {
				return
			}
			if driver != tt.wantDriver || dsn != tt.wantDSN {
				t.Errorf("got (%q, %q), want (%q, %q)", driver, dsn, tt.wantDriver, tt.wantDSN)
			}
		})
	}
}

type mapSource map[string]ConnectionDetails

func (m mapSource) GetConnection(_ context.Context, userID string) (*ConnectionDetails, error) {
	if d, ok := m[userID]; ok {
		return &d, nil
	}
	return nil, ErrNotFound
}

func TestResolverPrefersStoredDescriptor(t *testing.T) {
	stored := ConnectionDetails{Mode: ModeSQLite, SQLitePath: "/tmp/mine.db", DisplayName: "Mine"}
	r := NewResolver(mapSource{"alice": stored}, config.DatabaseConfig{},
		WithEnvLookup(func(string) string { return "" }))

	got, err := r.ResolveConnectionDetails(context.Background(), "alice")
	if err != nil {
		t.Fatal(err)
	}
	if got != stored {
		t.Errorf("got %+v, want the stored descriptor", got)
	}
}

func TestResolverEnvironmentDefault(t *testing.T) {
	r := NewResolver(mapSource{}, config.DatabaseConfig{},
		WithEnvLookup(func(key string) string {
			if key == "DATABASE_URL" {
				return "postgres://db/prod"
			}
			return ""
		}))

	got, err := r.ResolveConnectionDetails(context.Background(), "bob")
	if err != nil {
		t.Fatal(err)
	}
	if got.Mode != ModeURL || got.ConnectionURL != "postgres://db/prod" {
		t.Errorf("got %+v, want the DATABASE_URL default", got)
	}
	if got.DisplayName != "Environment database" {
		t.Errorf("DisplayName = %q", got.DisplayName)
	}
}

func TestResolverNoConnection(t *testing.T) {
	r := NewResolver(nil, config.DatabaseConfig{},
		WithEnvLookup(func(string) string { return "" }))

	if _, err := r.ResolveConnectionDetails(context.Background(), "bob"); !errors.Is(err, ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}
}

// seedDB creates a SQLite database with the users and orders tables.
func seedDB(t *testing.T) ConnectionDetails {
	t.Helper()
	path := filepath.Join(t.TempDir(), "shop.db")

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatal(err)
	}
	defer db.Close()

	ddl := `
		CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT, country TEXT);
		CREATE TABLE orders (id INTEGER PRIMARY KEY, user_id INTEGER, total REAL);
		INSERT INTO users (name, country) VALUES ('Ada', 'UK'), ('Linus', 'USA');
	`
	if _, err := db.Exec(ddl); err != nil {
		t.Fatal(err)
	}

	return ConnectionDetails{Mode: ModeSQLite, SQLitePath: path, DisplayName: "Shop"}
}

func TestDescribeSchema(t *testing.T) {
	details := seedDB(t)
	s := NewService(NewResolver(nil, config.DatabaseConfig{}))
	defer s.Close()

	schema, err := s.DescribeSchema(context.Background(), details)
	if err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{"Database: Shop", "Table: users", "Table: orders", "country (TEXT)", "total (REAL)"} {
		if !strings.Contains(schema, want) {
			t.Errorf("schema missing %q:\n%s", want, schema)
		}
	}
}

func TestGetDatabaseSchemaConvertsErrorsToText(t *testing.T) {
	s := NewService(NewResolver(nil, config.DatabaseConfig{},
		WithEnvLookup(func(string) string { return "" })))
	defer s.Close()

	out := s.GetDatabaseSchema(context.Background(), "nobody")
	if !strings.Contains(out, "Could not inspect the database schema") {
		t.Errorf("out = %q, want a descriptive failure", out)
	}
}

func TestToolkitCacheReuseAndClear(t *testing.T) {
	details := seedDB(t)
	s := NewService(NewResolver(nil, config.DatabaseConfig{}))
	defer s.Close()

	first, err := s.db(context.Background(), details)
	if err != nil {
		t.Fatal(err)
	}
	second, err := s.db(context.Background(), details)
	if err != nil {
		t.Fatal(err)
	}
	if first != second {
		t.Error("same fingerprint returned different handles")
	}

	s.ClearToolkitCache(details.Fingerprint())
	third, err := s.db(context.Background(), details)
	if err != nil {
		t.Fatal(err)
	}
	if third == first {
		t.Error("handle not reopened after cache clear")
	}
}

func TestTestConnection(t *testing.T) {
	s := NewService(NewResolver(nil, config.DatabaseConfig{}))
	defer s.Close()

	if !s.TestConnection(context.Background(), seedDB(t)) {
		t.Error("reachable database reported unreachable")
	}

	missing := ConnectionDetails{Mode: ModeURL, ConnectionURL: "mongodb://nope"}
	if s.TestConnection(context.Background(), missing) {
		t.Error("unsupported target reported reachable")
	}
}

func TestRunQueryCapsAndStringifies(t *testing.T) {
	details := seedDB(t)
	s := NewService(NewResolver(nil, config.DatabaseConfig{}))
	defer s.Close()

	result, err := s.RunQuery(context.Background(), details, "SELECT name, country FROM users ORDER BY id")
	if err != nil {
		t.Fatal(err)
	}
	if result.RowCount != 2 || result.Truncated {
		t.Errorf("RowCount = %d, Truncated = %v", result.RowCount, result.Truncated)
	}
	if result.Rows[0][0] != "Ada" || result.Rows[1][1] != "USA" {
		t.Errorf("rows = %v", result.Rows)
	}
}

func TestExecuteRaw(t *testing.T) {
	details := seedDB(t)
	s := NewService(NewResolver(nil, config.DatabaseConfig{}))
	defer s.Close()

	affected, err := s.ExecuteRaw(context.Background(), details, "UPDATE users SET country = 'DE'")
	if err != nil {
		t.Fatal(err)
	}
	if affected != 2 {
		t.Errorf("affected = %d, want 2", affected)
	}
}

type scriptedLLM struct {
	reply string
}

func (s *scriptedLLM) Generate(context.Context, []llms.Message, []llms.ToolDefinition) (*llms.Result, error) {
	return &llms.Result{Content: llms.TextContent(s.reply)}, nil
}

func (s *scriptedLLM) GenerateStreaming(context.Context, []llms.Message, []llms.ToolDefinition) (<-chan llms.StreamChunk, error) {
	ch := make(chan llms.StreamChunk)
	close(ch)
	return ch, nil
}

func (s *scriptedLLM) GetModelName() string { return "scripted" }
func (s *scriptedLLM) Close() error         { return nil }

func TestGenerateSQLSuggestions(t *testing.T) {
	details := seedDB(t)
	s := NewService(NewResolver(nil, config.DatabaseConfig{}))
	defer s.Close()

	reply := "```sql\nSELECT name FROM users WHERE country = 'USA';\n```\nFilters users by country."
	out, err := s.GenerateSQLSuggestions(context.Background(), &scriptedLLM{reply: reply}, details, "customers from USA")
	if err != nil {
		t.Fatal(err)
	}
	if strings.Count(out, "```sql") != 1 {
		t.Errorf("want exactly one fenced sql block, got:\n%s", out)
	}

	if _, err := s.GenerateSQLSuggestions(context.Background(), &scriptedLLM{reply: reply}, details, "  "); err == nil {
		t.Error("empty request should fail")
	}
}
