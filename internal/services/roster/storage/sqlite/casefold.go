package sqlite

import (
	"database/sql/driver"
	"fmt"

	"golang.org/x/text/cases"
	"modernc.org/sqlite"
)

// casefoldFunc is the SQL function the list queries use for
// case-insensitive matching. SQLite's lower() only folds ASCII.
const casefoldFunc = "casefold"

func init() {
	sqlite.MustRegisterDeterministicScalarFunction(casefoldFunc, 1, casefold)
}

func casefold(_ *sqlite.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch value := args[0].(type) {
	case nil:
		return nil, nil
	case string:
		return cases.Fold().String(value), nil
	case []byte:
		return cases.Fold().String(string(value)), nil
	case int64, float64:
		return fmt.Sprint(value), nil
	default:
		return nil, fmt.Errorf("casefold: unsupported argument type %T", value)
	}
}
