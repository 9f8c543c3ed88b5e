package postgrest

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	pgrest "github.com/supabase-community/postgrest-go"
	"go.uber.org/zap"

	"milk-delivery/internal/logger"
)

const restPath = "/rest/v1"

// Client talks to a PostgREST endpoint such as the one fronting a Supabase project.
type Client struct {
	rest    *pgrest.Client
	timeout time.Duration
	logger  *zap.SugaredLogger
}

// New returns a Client for baseURL authenticated with the project access key.
func New(baseURL, key string, timeout time.Duration, log *zap.SugaredLogger) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("parse store url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("store url %q must be absolute", baseURL)
	}
	u.Path = strings.TrimRight(u.Path, "/") + restPath

	l := logger.OrNop(log)
	rest := pgrest.NewClient(u.String(), "", map[string]string{
		"apikey":        key,
		"Authorization": "Bearer " + key,
	})
	if rest.ClientError != nil {
		return nil, fmt.Errorf("store client: %w", rest.ClientError)
	}
	base := http.DefaultTransport.(*http.Transport).Clone()
	base.ResponseHeaderTimeout = timeout
	rest.Transport.Parent = &roundTripper{next: base, logger: l}

	return &Client{rest: rest, timeout: timeout, logger: l}, nil
}

// From starts a query against table.
func (c *Client) From(table string) *Query {
	return &Query{c: c, table: table}
}

type filter struct {
	column, op, value string
}

type orderTerm struct {
	column    string
	ascending bool
}

// Query accumulates projection, filters and ordering for one table request.
// Nothing is sent until one of the terminal methods runs.
type Query struct {
	c       *Client
	table   string
	columns string
	filters []filter
	order   []orderTerm
	limit   int
}

// Select sets the column projection, e.g. "id,name,phone".
func (q *Query) Select(columns string) *Query {
	q.columns = columns
	return q
}

func (q *Query) Eq(column, value string) *Query  { return q.filter(column, "eq", value) }
func (q *Query) Gte(column, value string) *Query { return q.filter(column, "gte", value) }
func (q *Query) Lte(column, value string) *Query { return q.filter(column, "lte", value) }

func (q *Query) filter(column, op, value string) *Query {
	q.filters = append(q.filters, filter{column: column, op: op, value: value})
	return q
}

// Order appends an ordering term. Multiple calls order by each term in turn.
func (q *Query) Order(column string, ascending bool) *Query {
	q.order = append(q.order, orderTerm{column: column, ascending: ascending})
	return q
}

func (q *Query) Limit(n int) *Query {
	q.limit = n
	return q
}

// Execute runs a GET and decodes the JSON array into dest.
func (q *Query) Execute(ctx context.Context, dest any) error {
	return q.run(ctx, dest, func(qb *pgrest.QueryBuilder) *pgrest.FilterBuilder {
		return q.apply(qb.Select(q.columns, "", false))
	})
}

// Single runs a GET expecting exactly one row. Zero rows yield an error
// that matches domain.ErrNotFound.
func (q *Query) Single(ctx context.Context, dest any) error {
	return q.run(ctx, dest, func(qb *pgrest.QueryBuilder) *pgrest.FilterBuilder {
		return q.apply(qb.Select(q.columns, "", false)).Single()
	})
}

// Insert posts one row and decodes the stored representation into dest.
func (q *Query) Insert(ctx context.Context, row any, dest any) error {
	body, err := json.Marshal(row)
	if err != nil {
		return fmt.Errorf("encode %s body: %w", q.table, err)
	}
	return q.run(ctx, dest, func(qb *pgrest.QueryBuilder) *pgrest.FilterBuilder {
		q.project(qb)
		return q.apply(qb.Insert(json.RawMessage(body), false, "", "representation", "")).Single()
	})
}

// Update patches every row matching the query filters. When dest is non-nil
// the updated rows are decoded into it.
func (q *Query) Update(ctx context.Context, patch any, dest any) error {
	body, err := json.Marshal(patch)
	if err != nil {
		return fmt.Errorf("encode %s body: %w", q.table, err)
	}
	returning := "minimal"
	if dest != nil {
		returning = "representation"
	}
	return q.run(ctx, dest, func(qb *pgrest.QueryBuilder) *pgrest.FilterBuilder {
		q.project(qb)
		return q.apply(qb.Update(json.RawMessage(body), returning, ""))
	})
}

// project sets select= on a write so the returned representation is narrowed.
// The write builder called afterwards replaces the HTTP method.
func (q *Query) project(qb *pgrest.QueryBuilder) {
	if q.columns != "" {
		qb.Select(q.columns, "", false)
	}
}

// apply copies filters, ordering and limit onto fb. The underlying builder
// keeps one filter per column, so a column filtered more than once (a date
// range) is sent as a single and=(...) expression instead.
func (q *Query) apply(fb *pgrest.FilterBuilder) *pgrest.FilterBuilder {
	byColumn := make(map[string][]filter, len(q.filters))
	var columns []string
	for _, f := range q.filters {
		if _, seen := byColumn[f.column]; !seen {
			columns = append(columns, f.column)
		}
		byColumn[f.column] = append(byColumn[f.column], f)
	}
	var and []string
	for _, col := range columns {
		fs := byColumn[col]
		if len(fs) == 1 {
			fb = fb.Filter(col, fs[0].op, fs[0].value)
			continue
		}
		for _, f := range fs {
			and = append(and, f.column+"."+f.op+"."+quoteValue(f.value))
		}
	}
	if len(and) > 0 {
		fb = fb.And(strings.Join(and, ","), "")
	}
	for _, o := range q.order {
		fb = fb.Order(o.column, &pgrest.OrderOpts{Ascending: o.ascending})
	}
	if q.limit > 0 {
		fb = fb.Limit(q.limit, "")
	}
	return fb
}

// quoteValue wraps values containing PostgREST reserved characters in double quotes.
func quoteValue(v string) string {
	if !strings.ContainsAny(v, `,.:()"`) {
		return v
	}
	return `"` + strings.ReplaceAll(v, `"`, `\"`) + `"`
}

type result struct {
	body []byte
	err  error
}

// run executes the built request. The underlying client has no context
// support, so the call runs on its own goroutine and ctx only bounds the wait.
func (q *Query) run(ctx context.Context, dest any, build func(*pgrest.QueryBuilder) *pgrest.FilterBuilder) error {
	if q.c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, q.c.timeout)
		defer cancel()
	}
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("%s: %w", q.table, err)
	}

	fb := build(q.c.rest.From(q.table))
	done := make(chan result, 1)
	go func() {
		body, _, err := fb.Execute()
		done <- result{body: body, err: err}
	}()

	var res result
	select {
	case res = <-done:
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", q.table, ctx.Err())
	}
	if res.err != nil {
		return fromClientError(q.table, res.err)
	}
	if dest == nil || len(res.body) == 0 {
		return nil
	}
	if err := json.Unmarshal(res.body, dest); err != nil {
		return fmt.Errorf("decode %s response: %w", q.table, err)
	}
	return nil
}
