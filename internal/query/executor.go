package query

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"time"
)

// Result holds rows in driver order. Truncated is set when max rows cut the
// result short.
type Result struct {
	Columns   []string
	Rows      [][]any
	Truncated bool
}

type Executor struct {
	db      *sql.DB
	timeout time.Duration
	maxRows int
}

// NewExecutor runs validated queries on db, which should be the read-only
// pool.
func NewExecutor(db *sql.DB, timeout time.Duration, maxRows int) *Executor {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if maxRows <= 0 {
		maxRows = 1000
	}
	return &Executor{db: db, timeout: timeout, maxRows: maxRows}
}

func (e *Executor) Execute(ctx context.Context, plan Plan) (Result, error) {
	q, err := Validate(plan.SQL)
	if err != nil {
		log.Printf("[executor] rejected sql=%q err=%v", plan.SQL, err)
		return Result{}, err
	}

	qctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	start := time.Now()
	res, err := e.run(qctx, q)
	if err != nil {
		if errors.Is(qctx.Err(), context.DeadlineExceeded) {
			log.Printf("[executor] timeout after %s sql=%q", e.timeout, q)
			return Result{}, ErrTimeout
		}
		return Result{}, &ExecutionError{SQL: q, Err: err}
	}

	log.Printf("[executor] ok rows=%d truncated=%v took=%s", len(res.Rows), res.Truncated, time.Since(start).Round(time.Millisecond))
	return res, nil
}

func (e *Executor) run(ctx context.Context, q string) (Result, error) {
	rows, err := e.db.QueryContext(ctx, q)
	if err != nil {
		return Result{}, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return Result{}, err
	}

	res := Result{Columns: cols, Rows: [][]any{}}
	for rows.Next() {
		if len(res.Rows) >= e.maxRows {
			res.Truncated = true
			break
		}
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return Result{}, fmt.Errorf("scan: %w", err)
		}
		for i, v := range vals {
			if b, ok := v.([]byte); ok {
				vals[i] = string(b)
			}
		}
		res.Rows = append(res.Rows, vals)
	}
	if err := rows.Err(); err != nil {
		return Result{}, err
	}
	return res, nil
}
