package querybuilder

import (
	"context"
	"errors"
	"math"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

type owner struct {
	ID   int64
	Name string
}

type bike struct {
	ID          int64
	OwnerID     int64
	Name        string
	Brand       string
	Type        string
	PricePerDay float64
	CreatedAt   time.Time
	Owner       *owner `gorm:"foreignKey:OwnerID"`
}

func (b bike) CursorID() int64 { return b.ID }

// recorder accepts every query and keeps the generated SQL for assertions.
type recorder struct {
	mu      sync.Mutex
	queries []string
}

func (r *recorder) Match(_, actual string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries = append(r.queries, actual)
	return nil
}

func (r *recorder) last() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.queries) == 0 {
		return ""
	}
	return r.queries[len(r.queries)-1]
}

func (r *recorder) all() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.queries...)
}

func newMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock, *recorder) {
	t.Helper()
	rec := &recorder{}
	sqlDB, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(rec))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)
	return db, mock, rec
}

func bikeConfig() Config {
	return Config{
		Alias:             "bikes",
		DefaultSortBy:     "created_at",
		SearchableFields:  []string{"name", "brand"},
		AllowedSortFields: []string{"created_at", "price_per_day", "name"},
		FilterableFields:  []string{"type", "brand", "price_per_day", "created_at", "Owner.name"},
	}
}

func bikeRows(ids ...int64) *sqlmock.Rows {
	rows := sqlmock.NewRows([]string{"id", "name"})
	for _, id := range ids {
		rows.AddRow(id, "bike")
	}
	return rows
}

func intPtr(v int) *int { return &v }

func TestBuildAndExecute_UnknownSortFallsBackToDefault(t *testing.T) {
	db, mock, rec := newMockDB(t)
	mock.ExpectQuery("select").WillReturnRows(bikeRows(1))

	qb := New[bike](db, bikeConfig())
	_, err := qb.BuildAndExecute(context.Background(), QueryRequest{SortBy: "password", Order: "ASC"}, nil, nil, nil)
	require.NoError(t, err)

	sql := rec.last()
	assert.Contains(t, sql, `ORDER BY "bikes"."created_at" DESC`)
	assert.NotContains(t, sql, "password")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBuildAndExecute_AllowedSortHonoursOrder(t *testing.T) {
	db, mock, rec := newMockDB(t)
	mock.ExpectQuery("select").WillReturnRows(bikeRows(1))

	qb := New[bike](db, bikeConfig())
	_, err := qb.BuildAndExecute(context.Background(), QueryRequest{SortBy: "price_per_day", Order: "asc"}, nil, nil, nil)
	require.NoError(t, err)

	sql := rec.last()
	assert.Contains(t, sql, `ORDER BY "bikes"."price_per_day"`)
	assert.NotContains(t, sql, `"price_per_day" DESC`)
}

func TestBuildAndExecute_UnknownFilterIsDropped(t *testing.T) {
	db, mock, rec := newMockDB(t)
	mock.ExpectQuery("select").WillReturnRows(bikeRows(1))

	qb := New[bike](db, bikeConfig())
	params := QueryRequest{Filters: []Filter{{Field: "password_hash", Operator: OpEq, Value: "x"}}}
	_, err := qb.BuildAndExecute(context.Background(), params, nil, nil, nil)
	require.NoError(t, err)

	sql := rec.last()
	assert.NotContains(t, sql, "WHERE")
	assert.NotContains(t, sql, "password_hash")
}

func TestBuildAndExecute_FiltersAreParameterized(t *testing.T) {
	db, mock, rec := newMockDB(t)
	mock.ExpectQuery("select").
		WithArgs("trek", float64(10), "road", "city").
		WillReturnRows(bikeRows(1))

	qb := New[bike](db, bikeConfig())
	params := QueryRequest{Filters: []Filter{
		{Field: "brand", Operator: OpEq, Value: "trek"},
		{Field: "price_per_day", Operator: OpGte, Value: float64(10)},
		{Field: "type", Operator: OpIn, Value: []any{"road", "city"}},
	}}
	_, err := qb.BuildAndExecute(context.Background(), params, nil, nil, nil)
	require.NoError(t, err)

	sql := rec.last()
	assert.Contains(t, sql, `"bikes"."brand" = $1`)
	assert.Contains(t, sql, `"bikes"."price_per_day" >= $2`)
	assert.Contains(t, sql, `"bikes"."type" IN ($3,$4)`)
	assert.NotContains(t, sql, "trek")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBuildAndExecute_SearchIsOneOrGroup(t *testing.T) {
	db, mock, rec := newMockDB(t)
	mock.ExpectQuery("select").
		WithArgs("%50\\%%", "%50\\%%", "road").
		WillReturnRows(bikeRows(1))

	qb := New[bike](db, bikeConfig())
	params := QueryRequest{
		Search:  "50%",
		Filters: []Filter{{Field: "type", Operator: OpEq, Value: "road"}},
	}
	_, err := qb.BuildAndExecute(context.Background(), params, nil, nil, nil)
	require.NoError(t, err)

	sql := rec.last()
	assert.Contains(t, sql, `"bikes"."name" ILIKE $1 ESCAPE '\' OR "bikes"."brand" ILIKE $2 ESCAPE '\'`)
	assert.Contains(t, sql, ` AND `)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBuildAndExecute_PageMode(t *testing.T) {
	db, mock, rec := newMockDB(t)
	mock.ExpectQuery("count").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(25))
	mock.ExpectQuery("select").WillReturnRows(bikeRows(11, 12, 13))

	qb := New[bike](db, bikeConfig())
	res, err := qb.BuildAndExecute(context.Background(), QueryRequest{Page: intPtr(2), Limit: intPtr(10)}, nil, nil, nil)
	require.NoError(t, err)

	queries := rec.all()
	require.Len(t, queries, 2)
	assert.Contains(t, queries[0], `SELECT count(*) FROM "bikes"`)
	assert.NotContains(t, queries[0], "LIMIT")
	assert.Contains(t, queries[1], "LIMIT 10 OFFSET 10")

	require.NotNil(t, res.Total)
	assert.Equal(t, int64(25), *res.Total)
	assert.Equal(t, 2, *res.Page)
	assert.Equal(t, 10, *res.Limit)
	assert.Equal(t, 3, *res.TotalPages)
	assert.True(t, *res.HasMore)
	assert.Len(t, res.Results, 3)
	require.NotNil(t, res.NextCursor)
	assert.Equal(t, EncodeCursor(13), *res.NextCursor)
}

func TestBuildAndExecute_PageModeLastPage(t *testing.T) {
	db, mock, _ := newMockDB(t)
	mock.ExpectQuery("count").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(20))
	mock.ExpectQuery("select").WillReturnRows(bikeRows(19, 20))

	qb := New[bike](db, bikeConfig())
	res, err := qb.BuildAndExecute(context.Background(), QueryRequest{Page: intPtr(2), Limit: intPtr(10)}, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 2, *res.TotalPages)
	assert.False(t, *res.HasMore)
}

func TestBuildAndExecute_PagePastTheEnd(t *testing.T) {
	for name, page := range map[string]int{
		"just past": 4,
		"huge":      math.MaxInt64 / 5,
	} {
		t.Run(name, func(t *testing.T) {
			db, mock, rec := newMockDB(t)
			mock.ExpectQuery("count").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(3))

			qb := New[bike](db, bikeConfig())
			res, err := qb.BuildAndExecute(context.Background(), QueryRequest{Page: intPtr(page), Limit: intPtr(1)}, nil, nil, nil)
			require.NoError(t, err)

			assert.Len(t, rec.all(), 1)
			assert.Empty(t, res.Results)
			assert.Equal(t, int64(3), *res.Total)
			assert.Equal(t, page, *res.Page)
			assert.Equal(t, 3, *res.TotalPages)
			assert.False(t, *res.HasMore)
			assert.Nil(t, res.NextCursor)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestBuildAndExecute_PageModeEmptyTable(t *testing.T) {
	db, mock, _ := newMockDB(t)
	mock.ExpectQuery("count").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))

	qb := New[bike](db, bikeConfig())
	res, err := qb.BuildAndExecute(context.Background(), QueryRequest{Page: intPtr(1)}, nil, nil, nil)
	require.NoError(t, err)
	assert.NotNil(t, res.Results)
	assert.Empty(t, res.Results)
	assert.Equal(t, 0, *res.TotalPages)
	assert.False(t, *res.HasMore)
}

func TestBuildAndExecute_CountAndFetchShareConditions(t *testing.T) {
	db, mock, rec := newMockDB(t)
	mock.ExpectQuery("count").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery("select").WillReturnRows(bikeRows(1))

	qb := New[bike](db, bikeConfig())
	params := QueryRequest{
		Page:    intPtr(1),
		Search:  "trek",
		Filters: []Filter{{Field: "brand", Operator: OpLike, Value: "tr"}},
	}
	conds := []Condition{{SQL: "bikes.owner_id = ?", Args: []any{7}}}
	_, err := qb.BuildAndExecute(context.Background(), params, conds, []string{"Owner"}, nil)
	require.NoError(t, err)

	queries := rec.all()
	require.Len(t, queries, 2)
	where := func(sql string) string {
		i := strings.Index(sql, "WHERE")
		require.GreaterOrEqual(t, i, 0)
		rest := sql[i:]
		if j := strings.Index(rest, " ORDER BY"); j >= 0 {
			rest = rest[:j]
		}
		return rest
	}
	assert.Equal(t, where(queries[0]), where(queries[1]))
	assert.Contains(t, queries[0], `LEFT JOIN "owners" "Owner"`)
	assert.Contains(t, queries[1], `LEFT JOIN "owners" "Owner"`)
	assert.Contains(t, queries[1], "(bikes.owner_id = $")
}

func TestBuildAndExecute_LimitIsClamped(t *testing.T) {
	db, mock, rec := newMockDB(t)
	mock.ExpectQuery("count").WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1000))
	mock.ExpectQuery("select").WillReturnRows(bikeRows(1))

	qb := New[bike](db, bikeConfig())
	res, err := qb.BuildAndExecute(context.Background(), QueryRequest{Page: intPtr(1), Limit: intPtr(500)}, nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 100, *res.Limit)
	assert.Equal(t, 10, *res.TotalPages)
	assert.Contains(t, rec.last(), "LIMIT 100")
}

func TestBuildAndExecute_CursorMode(t *testing.T) {
	db, mock, rec := newMockDB(t)
	mock.ExpectQuery("select").WithArgs(int64(5)).WillReturnRows(bikeRows(6, 7))

	qb := New[bike](db, bikeConfig())
	params := QueryRequest{Cursor: EncodeCursor(5), Limit: intPtr(2), SortBy: "name"}
	res, err := qb.BuildAndExecute(context.Background(), params, nil, nil, nil)
	require.NoError(t, err)

	sql := rec.last()
	assert.Contains(t, sql, `"bikes"."id" > $1`)
	assert.Contains(t, sql, `ORDER BY "bikes"."id" LIMIT 2`)
	assert.Nil(t, res.Total)
	assert.Nil(t, res.TotalPages)
	assert.True(t, *res.HasMore)
	require.NotNil(t, res.NextCursor)
	assert.Equal(t, EncodeCursor(7), *res.NextCursor)
	for _, b := range res.Results {
		assert.Greater(t, b.ID, int64(5))
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBuildAndExecute_CursorModeShortPage(t *testing.T) {
	db, mock, _ := newMockDB(t)
	mock.ExpectQuery("select").WillReturnRows(bikeRows(6))

	qb := New[bike](db, bikeConfig())
	res, err := qb.BuildAndExecute(context.Background(), QueryRequest{Cursor: EncodeCursor(5), Limit: intPtr(2)}, nil, nil, nil)
	require.NoError(t, err)
	assert.False(t, *res.HasMore)
}

func TestBuildAndExecute_UnpaginatedEnvelope(t *testing.T) {
	db, mock, rec := newMockDB(t)
	mock.ExpectQuery("select").WillReturnRows(bikeRows(1, 2))

	qb := New[bike](db, bikeConfig())
	res, err := qb.BuildAndExecute(context.Background(), QueryRequest{}, nil, nil, nil)
	require.NoError(t, err)
	assert.Len(t, res.Results, 2)
	assert.Nil(t, res.Total)
	assert.Nil(t, res.Page)
	assert.Nil(t, res.Limit)
	assert.Nil(t, res.HasMore)
	assert.Nil(t, res.NextCursor)
	assert.Contains(t, rec.last(), "LIMIT 10")
}

func TestBuildAndExecute_Between(t *testing.T) {
	filter := Filter{Field: "created_at", Operator: OpBetween, Value: []any{"2025-01-01", "2025-02-01"}}

	t.Run("filter field", func(t *testing.T) {
		db, mock, rec := newMockDB(t)
		mock.ExpectQuery("select").WithArgs("2025-01-01", "2025-02-01").WillReturnRows(bikeRows(1))

		qb := New[bike](db, bikeConfig())
		_, err := qb.BuildAndExecute(context.Background(), QueryRequest{Filters: []Filter{filter}}, nil, nil, nil)
		require.NoError(t, err)
		assert.Contains(t, rec.last(), `"bikes"."created_at" BETWEEN $1 AND $2`)
	})

	t.Run("legacy date column", func(t *testing.T) {
		db, mock, rec := newMockDB(t)
		mock.ExpectQuery("select").WillReturnRows(bikeRows(1))

		cfg := bikeConfig()
		cfg.BetweenColumn = "date"
		qb := New[bike](db, cfg)
		_, err := qb.BuildAndExecute(context.Background(), QueryRequest{Filters: []Filter{filter}}, nil, nil, nil)
		require.NoError(t, err)
		assert.Contains(t, rec.last(), `"bikes"."date" BETWEEN $1 AND $2`)
	})
}

func TestBuildAndExecute_SelectNarrowing(t *testing.T) {
	db, mock, rec := newMockDB(t)
	mock.ExpectQuery("select").WillReturnRows(bikeRows(1))

	qb := New[bike](db, bikeConfig())
	_, err := qb.BuildAndExecute(context.Background(), QueryRequest{Select: "name, password_hash,brand"}, nil, nil, nil)
	require.NoError(t, err)

	sql := rec.last()
	assert.Contains(t, sql, `SELECT "bikes"."id","bikes"."name","bikes"."brand" FROM`)
	assert.NotContains(t, sql, "password_hash")
}

func TestBuildAndExecute_NestedJoin(t *testing.T) {
	db, mock, rec := newMockDB(t)
	mock.ExpectQuery("select").WithArgs("ann").WillReturnRows(bikeRows(1))

	qb := New[bike](db, bikeConfig())
	joins := []NestedJoin{{
		Path:       "Owner",
		Type:       InnerJoin,
		Columns:    []string{"id", "name"},
		Conditions: []Condition{{SQL: `"Owner"."name" = ?`, Args: []any{"ann"}}},
	}}
	_, err := qb.BuildAndExecute(context.Background(), QueryRequest{}, nil, nil, joins)
	require.NoError(t, err)

	sql := rec.last()
	assert.Contains(t, sql, `INNER JOIN "owners" "Owner"`)
	assert.Contains(t, sql, `"Owner"."name" AS "Owner__name"`)
	assert.Contains(t, sql, `("Owner"."name" = $1)`)
}

func TestBuildAndExecute_FilterOnJoinedRelation(t *testing.T) {
	db, mock, rec := newMockDB(t)
	mock.ExpectQuery("select").WillReturnRows(bikeRows(1))

	qb := New[bike](db, bikeConfig())
	params := QueryRequest{Filters: []Filter{{Field: "Owner.name", Operator: OpEq, Value: "ann"}}}
	_, err := qb.BuildAndExecute(context.Background(), params, nil, []string{"Owner"}, nil)
	require.NoError(t, err)
	assert.Contains(t, rec.last(), `"Owner"."name" = $1`)
}

func TestBuildAndExecute_WrapsDatabaseErrors(t *testing.T) {
	db, mock, _ := newMockDB(t)
	mock.ExpectQuery("select").WillReturnError(errors.New(`column "nope" does not exist`))

	qb := New[bike](db, bikeConfig())
	_, err := qb.BuildAndExecute(context.Background(), QueryRequest{}, nil, nil, nil)
	assert.ErrorIs(t, err, ErrQueryFailed)
}

func TestBuildAndExecute_InvalidCursor(t *testing.T) {
	db, _, _ := newMockDB(t)
	qb := New[bike](db, bikeConfig())
	_, err := qb.BuildAndExecute(context.Background(), QueryRequest{Cursor: "%%%"}, nil, nil, nil)
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestBuildAndExecute_RejectsNonScalarFilterValues(t *testing.T) {
	db, _, rec := newMockDB(t)
	qb := New[bike](db, bikeConfig())

	for name, f := range map[string]Filter{
		"object":          {Field: "type", Operator: OpEq, Value: map[string]any{"a": 1}},
		"object in list":  {Field: "type", Operator: OpIn, Value: []any{"road", map[string]any{"a": 1}}},
		"list in between": {Field: "price_per_day", Operator: OpBetween, Value: []any{[]any{1}, 2}},
	} {
		t.Run(name, func(t *testing.T) {
			_, err := qb.BuildAndExecute(context.Background(), QueryRequest{Filters: []Filter{f}}, nil, nil, nil)
			assert.ErrorIs(t, err, ErrInvalidQuery)
		})
	}
	assert.Empty(t, rec.all())
}

func TestEffectiveLimit(t *testing.T) {
	db, _, _ := newMockDB(t)
	qb := New[bike](db, Config{Alias: "bikes", DefaultLimit: 20, MaxLimit: 50})

	assert.Equal(t, 20, qb.EffectiveLimit(nil))
	assert.Equal(t, 20, qb.EffectiveLimit(intPtr(0)))
	assert.Equal(t, 5, qb.EffectiveLimit(intPtr(5)))
	assert.Equal(t, 50, qb.EffectiveLimit(intPtr(51)))
}
