package tools

import (
	"context"

	"github.com/nestor-ai/nestor/pkg/sqldb"
)

// DatabaseSchemaTool describes the structure of the acting user's database.
// It is the only SQL-related capability in the tool set: the model can read
// schemas and propose queries, never run them.
type DatabaseSchemaTool struct {
	service *sqldb.Service
	userID  string
}

type databaseSchemaArgs struct{}

// NewDatabaseSchemaTool creates the schema tool bound to one user's
// connection resolution. An empty userID resolves the environment default.
func NewDatabaseSchemaTool(service *sqldb.Service, userID string) *DatabaseSchemaTool {
	return &DatabaseSchemaTool{service: service, userID: userID}
}

func (t *DatabaseSchemaTool) GetName() string { return "get_database_schema" }

func (t *DatabaseSchemaTool) GetDescription() string {
	return "Get the tables, columns, and types of the user's database. Use this before proposing SQL."
}

func (t *DatabaseSchemaTool) GetInfo() ToolInfo {
	return ToolInfo{
		Name:        t.GetName(),
		Description: t.GetDescription(),
		Parameters:  argsSchema[databaseSchemaArgs](),
	}
}

// Execute renders the schema. Resolution and introspection failures arrive
// here already converted to text by the schema service.
func (t *DatabaseSchemaTool) Execute(ctx context.Context, _ map[string]any) (ToolResult, error) {
	return ToolResult{
		Success: true,
		Content: t.service.GetDatabaseSchema(ctx, t.userID),
	}, nil
}
