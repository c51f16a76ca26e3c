package dsl

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/oarkflow/bcl"
)

// query and uuid are the two bcl functions Validate blocks get beyond
// what bcl registers globally (upper/lower/now/date_*/...): query runs a
// read-only SQL statement against the connection Execute was called with
// and returns the bare value when exactly one row with one column comes
// back, or a []map[string]any of rows otherwise; uuid generates a random identifier via
// google/uuid.
func init() {
	_ = bcl.RegisterFunction("query", bclQuery)
	_ = bcl.RegisterFunction("uuid", bclUUID)
}

func bclUUID(args ...any) (any, error) {
	return uuid.NewString(), nil
}

// activeQuery binds the live connection a Validate block's query() calls
// run against. bcl functions are resolved from a process-wide registry
// with no closure support, so runChecks sets this for the duration of its
// evaluation and clears it afterward; the run mutex, held from bind to
// unbind, also keeps concurrent migration runs (on different connections)
// from treating each other's query() calls as their own.
var activeQuery struct {
	sync.Mutex
	run sync.Mutex
	ctx context.Context
	q   queryer
}

func bindQuery(ctx context.Context, q queryer) func() {
	activeQuery.run.Lock()
	activeQuery.Lock()
	activeQuery.ctx, activeQuery.q = ctx, q
	activeQuery.Unlock()
	return func() {
		activeQuery.Lock()
		activeQuery.ctx, activeQuery.q = nil, nil
		activeQuery.Unlock()
		activeQuery.run.Unlock()
	}
}

func bclQuery(args ...any) (any, error) {
	if len(args) != 1 {
		return nil, fmt.Errorf("query: expected 1 argument, got %d", len(args))
	}
	sqlText, ok := args[0].(string)
	if !ok {
		return nil, fmt.Errorf("query: argument must be a string")
	}

	activeQuery.Lock()
	ctx, q := activeQuery.ctx, activeQuery.q
	activeQuery.Unlock()
	if q == nil {
		return nil, fmt.Errorf("query: no connection bound; query() only works inside a Validate check")
	}

	rows, err := q.QueryContext(ctx, sqlText)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}
	var results []map[string]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(cols))
		for i, c := range cols {
			row[c] = vals[i]
		}
		results = append(results, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(results) == 1 && len(cols) == 1 {
		for _, v := range results[0] {
			return v, nil
		}
	}
	return results, nil
}
