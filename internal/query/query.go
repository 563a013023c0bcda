// Package query implements the collection query language used by the REST
// API: where[field][op]=value filters, limit/page pagination and sort with
// a "-" prefix for descending order. Parsed queries are turned into
// squirrel builders; only schema fields flagged as queryable are accepted.
package query

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"net/url"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"folio/internal/schema"
)

// ErrInvalidQuery is returned for malformed filters, unknown fields or
// values that do not match the field type.
var ErrInvalidQuery = errors.New("invalid query")

const (
	DefaultLimit = 10
	MaxLimit     = 100

	// MaxPage keeps the row offset well inside the range Postgres accepts.
	MaxPage = 1_000_000
)

// Op is a filter operator.
type Op string

const (
	Equals           Op = "equals"
	NotEquals        Op = "not_equals"
	Like             Op = "like"
	Contains         Op = "contains"
	In               Op = "in"
	NotIn            Op = "not_in"
	Exists           Op = "exists"
	GreaterThan      Op = "greater_than"
	GreaterThanEqual Op = "greater_than_equal"
	LessThan         Op = "less_than"
	LessThanEqual    Op = "less_than_equal"
)

var knownOps = map[Op]bool{
	Equals: true, NotEquals: true, Like: true, Contains: true, In: true, NotIn: true,
	Exists: true, GreaterThan: true, GreaterThanEqual: true, LessThan: true, LessThanEqual: true,
}

var whereKey = regexp.MustCompile(`^where\[([A-Za-z0-9_]+)\]\[([a-z_]+)\]$`)

// Filter is one where[field][op]=value clause.
type Filter struct {
	Field schema.Field
	Op    Op
	Value string
}

// Sort orders results by one field.
type Sort struct {
	Field schema.Field
	Desc  bool
}

// Query is a parsed collection query.
type Query struct {
	Filters []Filter
	Sorts   []Sort
	Limit   int
	Page    int
}

// Parse reads filters, pagination and sort from URL query values.
func Parse(c *schema.Collection, v url.Values) (*Query, error) {
	q := &Query{Limit: DefaultLimit, Page: 1}

	// Sorted so the generated SQL is deterministic.
	for _, key := range slices.Sorted(maps.Keys(v)) {
		vals := v[key]
		m := whereKey.FindStringSubmatch(key)
		if m == nil {
			if strings.HasPrefix(key, "where") {
				return nil, fmt.Errorf("%w: malformed filter %q", ErrInvalidQuery, key)
			}
			continue
		}
		field, err := c.QueryField(m[1])
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
		}
		op := Op(m[2])
		if !knownOps[op] {
			return nil, fmt.Errorf("%w: unknown operator %q", ErrInvalidQuery, m[2])
		}
		q.Filters = append(q.Filters, Filter{Field: field, Op: op, Value: strings.Join(vals, ",")})
	}

	if s := v.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("%w: limit must be a positive integer", ErrInvalidQuery)
		}
		q.Limit = min(n, MaxLimit)
	}

	if s := v.Get("page"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			return nil, fmt.Errorf("%w: page must be a positive integer", ErrInvalidQuery)
		}
		if n > MaxPage {
			return nil, fmt.Errorf("%w: page must be at most %d", ErrInvalidQuery, MaxPage)
		}
		q.Page = n
	}

	sortSpec := v.Get("sort")
	if sortSpec == "" {
		sortSpec = c.DefaultSort
	}
	for _, part := range strings.Split(sortSpec, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		desc := strings.HasPrefix(part, "-")
		field, err := c.QueryField(strings.TrimPrefix(part, "-"))
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
		}
		q.Sorts = append(q.Sorts, Sort{Field: field, Desc: desc})
	}

	return q, nil
}

// Offset returns the row offset of the requested page.
func (q *Query) Offset() int {
	return (q.Page - 1) * q.Limit
}

// Where converts the filters into a squirrel predicate.
func (q *Query) Where() (sq.And, error) {
	where := sq.And{}
	for _, f := range q.Filters {
		pred, err := f.predicate()
		if err != nil {
			return nil, err
		}
		where = append(where, pred)
	}
	return where, nil
}

// OrderBy returns ORDER BY clauses, always ending with id for stable paging.
func (q *Query) OrderBy() []string {
	out := make([]string, 0, len(q.Sorts)+1)
	hasID := false
	for _, s := range q.Sorts {
		dir := "ASC"
		if s.Desc {
			dir = "DESC"
		}
		out = append(out, s.Field.Column+" "+dir)
		if s.Field.Column == "id" {
			hasID = true
		}
	}
	if !hasID {
		out = append(out, "id ASC")
	}
	return out
}

// Apply adds the filters, order and page window to a select builder.
func (q *Query) Apply(b sq.SelectBuilder) (sq.SelectBuilder, error) {
	where, err := q.Where()
	if err != nil {
		return b, err
	}
	if len(where) > 0 {
		b = b.Where(where)
	}
	return b.OrderBy(q.OrderBy()...).
		Limit(uint64(q.Limit)).
		Offset(uint64(q.Offset())), nil
}

// ApplyCount adds only the filters, for the matching COUNT(*) query.
func (q *Query) ApplyCount(b sq.SelectBuilder) (sq.SelectBuilder, error) {
	where, err := q.Where()
	if err != nil {
		return b, err
	}
	if len(where) > 0 {
		b = b.Where(where)
	}
	return b, nil
}

func (f Filter) predicate() (sq.Sqlizer, error) {
	col := f.Field.Column

	if f.Op == Exists {
		want, err := parseBool(f.Value)
		if err != nil {
			return nil, f.invalid(err)
		}
		return existsPredicate(f.Field, want), nil
	}

	if f.Field.Type == schema.Tags {
		return f.tagsPredicate()
	}

	if f.Op == In || f.Op == NotIn {
		var vals []any
		for _, raw := range splitList(f.Value) {
			v, err := coerce(f.Field, raw)
			if err != nil {
				return nil, f.invalid(err)
			}
			vals = append(vals, v)
		}
		if f.Op == In {
			return sq.Eq{col: vals}, nil
		}
		return sq.NotEq{col: vals}, nil
	}

	if f.Op == Like || f.Op == Contains {
		if !isTextual(f.Field) {
			return nil, f.invalid(errors.New("operator needs a text field"))
		}
		return sq.ILike{col: "%" + escapeLike(f.Value) + "%"}, nil
	}

	v, err := coerce(f.Field, f.Value)
	if err != nil {
		return nil, f.invalid(err)
	}

	switch f.Op {
	case Equals:
		return sq.Eq{col: v}, nil
	case NotEquals:
		return sq.NotEq{col: v}, nil
	case GreaterThan:
		return sq.Gt{col: v}, nil
	case GreaterThanEqual:
		return sq.GtOrEq{col: v}, nil
	case LessThan:
		return sq.Lt{col: v}, nil
	case LessThanEqual:
		return sq.LtOrEq{col: v}, nil
	}
	return nil, f.invalid(errors.New("unsupported operator"))
}

// tagsPredicate matches against a JSONB string array using containment.
func (f Filter) tagsPredicate() (sq.Sqlizer, error) {
	col := f.Field.Column
	contains := func(tag string) sq.Sqlizer {
		return sq.Expr(col+" @> ?::jsonb", mustJSON([]string{tag}))
	}

	switch f.Op {
	case Equals, Contains, Like:
		return contains(f.Value), nil
	case NotEquals:
		return sq.Expr("NOT ("+col+" @> ?::jsonb)", mustJSON([]string{f.Value})), nil
	case In:
		or := sq.Or{}
		for _, tag := range splitList(f.Value) {
			or = append(or, contains(tag))
		}
		return or, nil
	case NotIn:
		and := sq.And{}
		for _, tag := range splitList(f.Value) {
			and = append(and, sq.Expr("NOT ("+col+" @> ?::jsonb)", mustJSON([]string{tag})))
		}
		return and, nil
	}
	return nil, f.invalid(errors.New("operator not supported on tags"))
}

func (f Filter) invalid(err error) error {
	return fmt.Errorf("%w: where[%s][%s]: %v", ErrInvalidQuery, f.Field.Name, f.Op, err)
}

func existsPredicate(field schema.Field, want bool) sq.Sqlizer {
	col := field.Column
	switch {
	case field.Type == schema.Tags:
		if want {
			return sq.Expr("jsonb_array_length(" + col + ") > 0")
		}
		return sq.Expr("jsonb_array_length(" + col + ") = 0")
	case isTextual(field):
		if want {
			return sq.And{sq.NotEq{col: nil}, sq.NotEq{col: ""}}
		}
		return sq.Or{sq.Eq{col: nil}, sq.Eq{col: ""}}
	}
	if want {
		return sq.NotEq{col: nil}
	}
	return sq.Eq{col: nil}
}

func isTextual(f schema.Field) bool {
	if f.Column == "id" {
		return false
	}
	switch f.Type {
	case schema.Text, schema.Textarea, schema.Email, schema.Select, schema.Code:
		return true
	}
	return false
}

// coerce converts a raw filter value into the Go type the column expects.
func coerce(field schema.Field, raw string) (any, error) {
	if field.Column == "id" {
		id, err := uuid.Parse(raw)
		if err != nil {
			return nil, errors.New("not a valid id")
		}
		return id, nil
	}

	switch field.Type {
	case schema.Checkbox:
		return parseBool(raw)
	case schema.Number:
		n, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, errors.New("not a number")
		}
		return n, nil
	case schema.Date:
		return parseDate(raw)
	case schema.Select:
		if len(field.Options) > 0 && !field.HasOption(raw) {
			return nil, fmt.Errorf("%q is not an option", raw)
		}
	}
	return raw, nil
}

func parseBool(raw string) (bool, error) {
	switch strings.ToLower(raw) {
	case "true", "1":
		return true, nil
	case "false", "0":
		return false, nil
	}
	return false, fmt.Errorf("%q is not a boolean", raw)
}

func parseDate(raw string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("%q is not a date", raw)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func mustJSON(v any) string {
	b, _ := json.Marshal(v)
	return string(b)
}
