package sqldb

import (
	"context"
	"database/sql"
	"fmt"
)

// maxQueryRows caps result sets returned to the approval flow.
const maxQueryRows = 500

// QueryResult is the row set of one approved query.
type QueryResult struct {
	Columns   []string `json:"columns"`
	Rows      [][]any  `json:"rows"`
	RowCount  int      `json:"row_count"`
	Truncated bool     `json:"truncated"`
}

// RunQuery executes a row-returning statement against the target. It exists
// for the human-initiated approval flow only and is never registered as an
// agent tool.
func (s *Service) RunQuery(ctx context.Context, details ConnectionDetails, query string) (*QueryResult, error) {
	handle, err := s.db(ctx, details)
	if err != nil {
		return nil, err
	}

	rows, err := handle.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("query failed: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	result := &QueryResult{Columns: columns}
	for rows.Next() {
		if result.RowCount >= maxQueryRows {
			result.Truncated = true
			break
		}

		raw := make([]sql.RawBytes, len(columns))
		dest := make([]any, len(columns))
		for i := range raw {
			dest[i] = &raw[i]
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, err
		}

		row := make([]any, len(columns))
		for i, cell := range raw {
			if cell == nil {
				row[i] = nil
			} else {
				row[i] = string(cell)
			}
		}
		result.Rows = append(result.Rows, row)
		result.RowCount++
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return result, nil
}

// ExecuteRaw executes a side-effecting statement, returning the affected row
// count. Approval-flow only, same as RunQuery.
func (s *Service) ExecuteRaw(ctx context.Context, details ConnectionDetails, statement string) (int64, error) {
	handle, err := s.db(ctx, details)
	if err != nil {
		return 0, err
	}

	result, err := handle.ExecContext(ctx, statement)
	if err != nil {
		return 0, fmt.Errorf("statement failed: %w", err)
	}
	return result.RowsAffected()
}
