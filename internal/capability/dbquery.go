package capability

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"

	"boruna/internal/value"
)

// DbQueryHandler implements the DbQuery capability, grounded on the
// teacher's internal/svc/mysql and internal/svc/sqlite services: a
// connect-then-query message shape, here flattened into a single
// handler call since the Gateway's Call contract is request/response
// rather than the teacher's actor-mailbox protocol. The Driver field
// ("mysql" or "sqlite3") names the database/sql driver and DSN is
// passed to it unchanged, covering the two drivers the teacher
// already depends on.
type DbQueryHandler struct {
	DSN    string
	Driver string // "mysql" or "sqlite3"
	db     *sql.DB
}

func NewDbQueryHandler(driver, dsn string) *DbQueryHandler {
	return &DbQueryHandler{Driver: driver, DSN: dsn}
}

func (h *DbQueryHandler) open() (*sql.DB, error) {
	if h.db != nil {
		return h.db, nil
	}
	db, err := sql.Open(h.Driver, h.DSN)
	if err != nil {
		return nil, err
	}
	h.db = db
	return db, nil
}

// Handle expects args[0] = query string, args[1] (optional) = list of
// bound parameters, and returns a List of Map rows — the "row list"
// callback payload named in spec.md §4.6's effect table.
func (h *DbQueryHandler) Handle(ctx context.Context, cap Capability, args []value.Value) (value.Value, error) {
	if cap.Kind != KindDbQuery {
		return nil, fmt.Errorf("dbquery handler: unsupported capability %s", cap.Name)
	}
	if len(args) < 1 {
		return nil, fmt.Errorf("db.query: missing query argument")
	}
	query, ok := args[0].(value.String)
	if !ok {
		return nil, fmt.Errorf("db.query: query argument must be a string")
	}
	var params []any
	if len(args) >= 2 {
		if list, ok := args[1].(*value.List); ok {
			for _, item := range list.Items {
				params = append(params, toSQLParam(item))
			}
		}
	}

	db, err := h.open()
	if err != nil {
		return nil, fmt.Errorf("db.query: connect: %w", err)
	}
	rows, err := db.QueryContext(ctx, string(query), params...)
	if err != nil {
		return nil, fmt.Errorf("db.query: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("db.query: %w", err)
	}

	result := &value.List{}
	for rows.Next() {
		scanTargets := make([]any, len(cols))
		scanValues := make([]any, len(cols))
		for i := range scanTargets {
			scanTargets[i] = &scanValues[i]
		}
		if err := rows.Scan(scanTargets...); err != nil {
			return nil, fmt.Errorf("db.query: %w", err)
		}
		row := value.NewMap()
		for i, col := range cols {
			row.Set(col, fromSQLValue(scanValues[i]))
		}
		result.Items = append(result.Items, row)
	}
	return result, rows.Err()
}

func toSQLParam(v value.Value) any {
	switch t := v.(type) {
	case value.Int:
		return int64(t)
	case value.Float:
		return float64(t)
	case value.Bool:
		return bool(t)
	case value.String:
		return string(t)
	default:
		return v.String()
	}
}

func fromSQLValue(v any) value.Value {
	switch t := v.(type) {
	case nil:
		return value.None()
	case int64:
		return value.Int(t)
	case float64:
		return value.Float(t)
	case bool:
		return value.Bool(t)
	case []byte:
		return value.String(string(t))
	case string:
		return value.String(t)
	default:
		return value.String(fmt.Sprintf("%v", t))
	}
}
