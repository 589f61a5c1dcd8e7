package querybuilder

import (
	"context"
	"fmt"
	"strings"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type JoinType string

const (
	LeftJoin  JoinType = "left"
	InnerJoin JoinType = "inner"
)

// Condition is a raw, parameterized WHERE fragment. It is always wrapped in
// its own parentheses and ANDed with the rest of the query.
type Condition struct {
	SQL  string
	Args []any
}

// NestedJoin joins a gorm relation (dotted for nested relations) and
// optionally narrows its columns and adds extra conditions.
type NestedJoin struct {
	Path       string
	Type       JoinType
	Columns    []string
	Conditions []Condition
}

type Config struct {
	// Alias is the table the entity's own columns are qualified with.
	Alias         string
	DefaultLimit  int
	MaxLimit      int
	DefaultSortBy string
	DefaultOrder  string

	SearchableFields  []string
	AllowedSortFields []string
	FilterableFields  []string
	// SelectableFields bounds the select parameter. When empty the union of
	// the searchable, sortable and filterable fields is used.
	SelectableFields []string
	NestedJoins      []NestedJoin

	// BetweenColumn, when set, is compared by every between filter instead of
	// the filter's own field. "date" reproduces the legacy list behaviour.
	BetweenColumn string
}

const (
	defaultLimit = 10
	maxLimit     = 100
)

func (c Config) withDefaults() Config {
	if c.DefaultLimit <= 0 {
		c.DefaultLimit = defaultLimit
	}
	if c.MaxLimit <= 0 {
		c.MaxLimit = maxLimit
	}
	if c.DefaultLimit > c.MaxLimit {
		c.DefaultLimit = c.MaxLimit
	}
	if c.DefaultSortBy == "" {
		c.DefaultSortBy = "id"
	}
	c.DefaultOrder = strings.ToUpper(c.DefaultOrder)
	if c.DefaultOrder != "ASC" {
		c.DefaultOrder = "DESC"
	}
	return c
}

// Builder turns a QueryRequest into a parameterized query against the table
// of T. It holds no per-request state and is safe for concurrent use.
type Builder[T any] struct {
	db  *gorm.DB
	cfg Config

	searchable map[string]bool
	sortable   map[string]bool
	filterable map[string]bool
	selectable map[string]bool
}

func New[T any](db *gorm.DB, cfg Config) *Builder[T] {
	if cfg.Alias == "" {
		panic("querybuilder: Config.Alias is required")
	}
	cfg = cfg.withDefaults()

	b := &Builder[T]{
		db:         db,
		cfg:        cfg,
		searchable: toSet(cfg.SearchableFields),
		sortable:   toSet(cfg.AllowedSortFields),
		filterable: toSet(cfg.FilterableFields),
	}
	if len(cfg.SelectableFields) > 0 {
		b.selectable = toSet(cfg.SelectableFields)
	} else {
		b.selectable = toSet(cfg.SearchableFields, cfg.AllowedSortFields, cfg.FilterableFields)
	}
	return b
}

// EffectiveLimit clamps the requested limit to MaxLimit.
func (b *Builder[T]) EffectiveLimit(requested *int) int {
	limit := b.cfg.DefaultLimit
	if requested != nil && *requested > 0 {
		limit = *requested
	}
	if limit > b.cfg.MaxLimit {
		limit = b.cfg.MaxLimit
	}
	return limit
}

// BuildAndExecute runs the list query. Caller joins are applied first,
// followed by the configured and per-call nested joins.
func (b *Builder[T]) BuildAndExecute(
	ctx context.Context,
	params QueryRequest,
	customConditions []Condition,
	customJoinPaths []string,
	nestedJoins []NestedJoin,
) (*PagedResult[T], error) {
	if err := CheckFilters(params.Filters); err != nil {
		return nil, err
	}
	limit := b.EffectiveLimit(params.Limit)
	scope := func() *gorm.DB {
		return b.scope(ctx, params, customConditions, customJoinPaths, nestedJoins)
	}

	if params.Cursor != "" {
		after, err := DecodeCursor(params.Cursor)
		if err != nil {
			return nil, err
		}
		idCol := b.column("id")
		tx := b.project(scope(), params.Select).
			Where(clause.Expr{SQL: "? > ?", Vars: []any{idCol, after}}).
			Order(clause.OrderByColumn{Column: idCol}).
			Limit(limit)

		var items []T
		if err := tx.Find(&items).Error; err != nil {
			return nil, queryFailed(err)
		}
		hasMore := len(items) == limit
		return &PagedResult[T]{
			Results:    nonNil(items),
			Limit:      &limit,
			HasMore:    &hasMore,
			NextCursor: nextCursor(items),
		}, nil
	}

	if params.Page != nil {
		page := *params.Page
		if page < 1 {
			page = 1
		}

		var total int64
		if err := scope().Count(&total).Error; err != nil {
			return nil, queryFailed(err)
		}

		lastPage := (total + int64(limit) - 1) / int64(limit)

		// Pages past the end are answered without a fetch; this also keeps
		// (page-1)*limit bounded by total.
		var items []T
		if int64(page-1) < lastPage {
			tx := b.order(b.project(scope(), params.Select), params).
				Offset((page - 1) * limit).
				Limit(limit)
			if err := tx.Find(&items).Error; err != nil {
				return nil, queryFailed(err)
			}
		}

		totalPages := int(lastPage)
		hasMore := int64(page) < lastPage
		return &PagedResult[T]{
			Results:    nonNil(items),
			Total:      &total,
			Page:       &page,
			Limit:      &limit,
			TotalPages: &totalPages,
			HasMore:    &hasMore,
			NextCursor: nextCursor(items),
		}, nil
	}

	var items []T
	tx := b.order(b.project(scope(), params.Select), params).Limit(limit)
	if err := tx.Find(&items).Error; err != nil {
		return nil, queryFailed(err)
	}
	return &PagedResult[T]{Results: nonNil(items)}, nil
}

// scope builds everything shared by the count and the fetch query.
func (b *Builder[T]) scope(
	ctx context.Context,
	params QueryRequest,
	customConditions []Condition,
	customJoinPaths []string,
	nestedJoins []NestedJoin,
) *gorm.DB {
	tx := b.db.WithContext(ctx).Model(new(T))

	for _, path := range customJoinPaths {
		tx = tx.Joins(path)
	}
	for _, j := range b.cfg.NestedJoins {
		tx = b.join(tx, j)
	}
	for _, j := range nestedJoins {
		tx = b.join(tx, j)
	}

	if params.Search != "" && len(b.cfg.SearchableFields) > 0 {
		tx = b.search(tx, params.Search)
	}

	for _, f := range params.Filters {
		if !b.filterable[f.Field] {
			continue
		}
		if expr, ok := b.filterExpr(f); ok {
			tx = tx.Where(expr)
		}
	}

	for _, c := range customConditions {
		if strings.TrimSpace(c.SQL) == "" {
			continue
		}
		tx = tx.Where(clause.Expr{SQL: "(" + c.SQL + ")", Vars: c.Args})
	}

	return tx
}

func (b *Builder[T]) join(tx *gorm.DB, j NestedJoin) *gorm.DB {
	var args []any
	if len(j.Columns) > 0 {
		args = append(args, b.db.Select(j.Columns))
	}
	if j.Type == InnerJoin {
		tx = tx.InnerJoins(j.Path, args...)
	} else {
		tx = tx.Joins(j.Path, args...)
	}
	for _, c := range j.Conditions {
		tx = tx.Where(clause.Expr{SQL: "(" + c.SQL + ")", Vars: c.Args})
	}
	return tx
}

func (b *Builder[T]) search(tx *gorm.DB, term string) *gorm.DB {
	pattern := "%" + escapeLike(term) + "%"
	parts := make([]string, 0, len(b.cfg.SearchableFields))
	vars := make([]any, 0, len(b.cfg.SearchableFields)*2)
	for _, field := range b.cfg.SearchableFields {
		sql, v := b.likeExpr(field, pattern)
		parts = append(parts, sql)
		vars = append(vars, v...)
	}
	return tx.Where(clause.Expr{SQL: "(" + strings.Join(parts, " OR ") + ")", Vars: vars})
}

func (b *Builder[T]) likeExpr(field string, pattern string) (string, []any) {
	col := b.column(field)
	if b.isPostgres() {
		return `? ILIKE ? ESCAPE '\'`, []any{col, pattern}
	}
	return `LOWER(?) LIKE LOWER(?) ESCAPE '\'`, []any{col, pattern}
}

func (b *Builder[T]) filterExpr(f Filter) (clause.Expression, bool) {
	col := b.column(f.Field)
	var sql string
	vars := []any{col}

	switch f.Operator {
	case OpEq:
		sql, vars = "? = ?", append(vars, f.Value)
	case OpGt:
		sql, vars = "? > ?", append(vars, f.Value)
	case OpGte:
		sql, vars = "? >= ?", append(vars, f.Value)
	case OpLt:
		sql, vars = "? < ?", append(vars, f.Value)
	case OpLte:
		sql, vars = "? <= ?", append(vars, f.Value)
	case OpLike:
		like, v := b.likeExpr(f.Field, "%"+escapeLike(fmt.Sprint(f.Value))+"%")
		sql, vars = like, v
	case OpIn:
		vals, ok := f.Value.([]any)
		if !ok || len(vals) == 0 {
			return nil, false
		}
		sql, vars = "? IN ?", append(vars, vals)
	case OpBetween:
		vals, ok := f.Value.([]any)
		if !ok || len(vals) != 2 {
			return nil, false
		}
		if b.cfg.BetweenColumn != "" {
			vars[0] = b.column(b.cfg.BetweenColumn)
		}
		sql, vars = "? BETWEEN ? AND ?", append(vars, vals[0], vals[1])
	default:
		return nil, false
	}
	return clause.Expr{SQL: "(" + sql + ")", Vars: vars}, true
}

func (b *Builder[T]) order(tx *gorm.DB, params QueryRequest) *gorm.DB {
	sortBy := b.cfg.DefaultSortBy
	desc := b.cfg.DefaultOrder == "DESC"
	if params.SortBy != "" && b.sortable[params.SortBy] {
		sortBy = params.SortBy
		switch strings.ToUpper(params.Order) {
		case "ASC":
			desc = false
		case "DESC":
			desc = true
		}
	}
	return tx.Order(clause.OrderByColumn{Column: b.column(sortBy), Desc: desc})
}

// project narrows the selected columns to the allow-listed subset of the
// comma separated select parameter. The id is always kept.
func (b *Builder[T]) project(tx *gorm.DB, sel string) *gorm.DB {
	if strings.TrimSpace(sel) == "" {
		return tx
	}
	seen := map[string]bool{"id": true}
	cols := []string{b.quoted("id")}
	for _, f := range strings.Split(sel, ",") {
		f = strings.TrimSpace(f)
		if f == "" || seen[f] || !b.selectable[f] || strings.Contains(f, ".") {
			continue
		}
		seen[f] = true
		cols = append(cols, b.quoted(f))
	}
	if len(cols) == 1 {
		return tx
	}
	return tx.Select(cols)
}

// column qualifies a field with the builder alias unless it already names a
// joined relation ("Owner.name").
func (b *Builder[T]) column(field string) clause.Column {
	if i := strings.LastIndex(field, "."); i > 0 {
		return clause.Column{Table: field[:i], Name: field[i+1:]}
	}
	return clause.Column{Table: b.cfg.Alias, Name: field}
}

func (b *Builder[T]) quoted(field string) string {
	return b.db.Statement.Quote(b.column(field))
}

func (b *Builder[T]) isPostgres() bool {
	return b.db.Dialector != nil && b.db.Dialector.Name() == "postgres"
}

func queryFailed(err error) error {
	return fmt.Errorf("%w: %w", ErrQueryFailed, err)
}

func escapeLike(s string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return r.Replace(s)
}

func toSet(lists ...[]string) map[string]bool {
	out := make(map[string]bool)
	for _, l := range lists {
		for _, v := range l {
			out[v] = true
		}
	}
	return out
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
