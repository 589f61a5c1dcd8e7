package querybuilder

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strconv"
	"strings"

	"bikerental/internal/pkg/validator"
)

var (
	ErrInvalidQuery = errors.New("invalid query parameters")
	ErrQueryFailed  = errors.New("query failed")
)

type Operator string

const (
	OpEq      Operator = "eq"
	OpGt      Operator = "gt"
	OpGte     Operator = "gte"
	OpLt      Operator = "lt"
	OpLte     Operator = "lte"
	OpLike    Operator = "like"
	OpBetween Operator = "between"
	OpIn      Operator = "in"
)

type Filter struct {
	Field    string   `json:"field" validate:"required,max=64"`
	Operator Operator `json:"operator" validate:"required,oneof=eq gt gte lt lte like between in"`
	Value    any      `json:"value"`
}

// QueryRequest is the normalized form of a list endpoint's query string.
type QueryRequest struct {
	Page    *int     `validate:"omitempty,min=1"`
	Limit   *int     `validate:"omitempty,min=1"`
	Cursor  string   `validate:"omitempty,max=64"`
	SortBy  string   `validate:"omitempty,max=64"`
	Order   string   `validate:"omitempty,oneof=ASC DESC asc desc"`
	Search  string   `validate:"omitempty,max=200"`
	Select  string   `validate:"omitempty,max=512"`
	Filters []Filter `validate:"omitempty,dive"`
}

// FromValues parses and validates list parameters. Any structural problem
// is reported as ErrInvalidQuery; unknown fields are left for the builder
// to drop.
func FromValues(v url.Values) (QueryRequest, error) {
	var q QueryRequest

	page, err := intParam(v, "page")
	if err != nil {
		return q, err
	}
	limit, err := intParam(v, "limit")
	if err != nil {
		return q, err
	}
	q.Page = page
	q.Limit = limit
	q.Cursor = strings.TrimSpace(v.Get("cursor"))
	q.SortBy = strings.TrimSpace(v.Get("sortBy"))
	q.Order = strings.TrimSpace(v.Get("order"))
	q.Search = strings.TrimSpace(v.Get("search"))
	q.Select = strings.TrimSpace(v.Get("select"))

	if raw := strings.TrimSpace(v.Get("filters")); raw != "" {
		if err := json.Unmarshal([]byte(raw), &q.Filters); err != nil {
			return q, fmt.Errorf("%w: filters must be a JSON array of {field, operator, value}", ErrInvalidQuery)
		}
	}

	if errs := validator.Validate(q); errs != nil {
		keys := make([]string, 0, len(errs))
		for k := range errs {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		return q, fmt.Errorf("%w: %s failed on %q", ErrInvalidQuery, keys[0], errs[keys[0]])
	}

	if err := CheckFilters(q.Filters); err != nil {
		return q, err
	}

	if q.Cursor != "" {
		if _, err := DecodeCursor(q.Cursor); err != nil {
			return q, err
		}
	}

	return q, nil
}

func intParam(v url.Values, name string) (*int, error) {
	s := strings.TrimSpace(v.Get(name))
	if s == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %s must be an integer", ErrInvalidQuery, name)
	}
	return &n, nil
}

func checkFilterValue(f Filter) error {
	switch f.Operator {
	case OpBetween:
		vals, ok := f.Value.([]any)
		if !ok || len(vals) != 2 {
			return errors.New("between expects a two element array")
		}
		return checkScalars(f.Operator, vals)
	case OpIn:
		vals, ok := f.Value.([]any)
		if !ok || len(vals) == 0 {
			return errors.New("in expects a non-empty array")
		}
		return checkScalars(f.Operator, vals)
	default:
		if f.Value == nil {
			return errors.New("value is required")
		}
		if !isScalar(f.Value) {
			return fmt.Errorf("%s expects a scalar value", f.Operator)
		}
	}
	return nil
}

func checkScalars(op Operator, vals []any) error {
	for i, v := range vals {
		if v == nil || !isScalar(v) {
			return fmt.Errorf("%s element %d must be a scalar", op, i)
		}
	}
	return nil
}

func isScalar(v any) bool {
	switch v.(type) {
	case []any, map[string]any:
		return false
	}
	return true
}

// CheckFilters applies the value rules of FromValues to filters built in code.
func CheckFilters(filters []Filter) error {
	for i, f := range filters {
		if err := checkFilterValue(f); err != nil {
			return fmt.Errorf("%w: filters[%d]: %v", ErrInvalidQuery, i, err)
		}
	}
	return nil
}
