package crud

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/smokescreen/internal/orm/metadata"
	"github.com/conduit-lang/smokescreen/internal/orm/schema"
	"github.com/conduit-lang/smokescreen/pkg/orm"
)

func setupTestDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func postSchema() *schema.ResourceSchema {
	s := schema.NewResourceSchema("Post")
	s.Columns = []schema.Column{
		{Name: "id", Kind: "integer"},
		{Name: "title", Kind: "string"},
		{Name: "user_id", Kind: "integer"},
	}
	s.Relationships["user"] = &schema.Relationship{
		Type:           orm.RelationBelongsTo,
		TargetResource: "User",
		FieldName:      "user",
		ForeignKey:     "user_id",
	}
	return s
}

func TestReader_Find(t *testing.T) {
	db, mock := setupTestDB(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "posts" WHERE id = $1 LIMIT 1`)).
		WithArgs(7).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title"}).AddRow(int64(7), []byte("Hello")))

	rec, err := NewReader(postSchema(), db, metadata.DialectPostgres).Find(context.Background(), 7)
	require.NoError(t, err)

	assert.Equal(t, "posts", rec.TableName())
	assert.Equal(t, map[string]any{"id": int64(7), "title": "Hello"}, rec.AsMap())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReader_FindNotFound(t *testing.T) {
	db, mock := setupTestDB(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "posts" WHERE id = $1`)).
		WithArgs(99).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	_, err := NewReader(postSchema(), db, metadata.DialectPostgres).Find(context.Background(), 99)
	assert.True(t, IsNotFound(err))
}

func TestReader_FindAll(t *testing.T) {
	db, mock := setupTestDB(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "posts" WHERE "title" = $1 AND "user_id" = $2 ORDER BY "id"`)).
		WithArgs("Hello", 1).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title", "user_id"}).
			AddRow(1, "Hello", 1).
			AddRow(2, "Hello", 1))

	loader := orm.LoaderFunc(func(context.Context, []orm.Model, []string) error { return nil })
	reader := NewReader(postSchema(), db, metadata.DialectPostgres).WithLoader(loader)

	posts, err := reader.FindAll(context.Background(), map[string]any{"user_id": 1, "title": "Hello"})
	require.NoError(t, err)
	assert.Equal(t, 2, posts.Len())
	assert.NoError(t, posts.Load(context.Background(), "user"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReader_InvalidFields(t *testing.T) {
	db, _ := setupTestDB(t)
	reader := NewReader(postSchema(), db, metadata.DialectPostgres)

	_, err := reader.FindAll(context.Background(), map[string]any{"user": 1})
	assert.ErrorIs(t, err, ErrRelationshipField)

	_, err = reader.Count(context.Background(), map[string]any{"missing": 1})
	assert.ErrorIs(t, err, ErrFieldNotFound)
}

func TestReader_Paginate(t *testing.T) {
	db, mock := setupTestDB(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM "posts"`)).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(45))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "posts" ORDER BY "id" LIMIT 20 OFFSET 20`)).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(21).AddRow(22))

	p, err := NewReader(postSchema(), db, metadata.DialectPostgres).
		Paginate(context.Background(), 2, 20, "/posts", ListOptions{})
	require.NoError(t, err)

	assert.Equal(t, 45, p.Total())
	assert.Equal(t, 2, p.CurrentPage())
	assert.Equal(t, 3, p.LastPage())
	assert.Equal(t, 2, p.Count())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReader_PaginateWithOptions(t *testing.T) {
	db, mock := setupTestDB(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM "posts" WHERE "user_id" = $1`)).
		WithArgs("3").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(1))
	mock.ExpectQuery(regexp.QuoteMeta(`SELECT * FROM "posts" WHERE "user_id" = $1 ORDER BY "title" DESC, "id" LIMIT 10 OFFSET 0`)).
		WithArgs("3").
		WillReturnRows(sqlmock.NewRows([]string{"id", "title"}).AddRow(int64(9), "z"))

	p, err := NewReader(postSchema(), db, metadata.DialectPostgres).
		Paginate(context.Background(), 1, 10, "/posts", ListOptions{
			Conditions: map[string]any{"user_id": "3"},
			Order:      []Order{{Field: "title", Desc: true}},
		})
	require.NoError(t, err)
	assert.Equal(t, 1, p.Total())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReader_PaginateInvalidSort(t *testing.T) {
	db, _ := setupTestDB(t)
	reader := NewReader(postSchema(), db, metadata.DialectPostgres)

	_, err := reader.Paginate(context.Background(), 1, 10, "/posts", ListOptions{Order: []Order{{Field: "user"}}})
	assert.ErrorIs(t, err, ErrRelationshipField)

	_, err = reader.Paginate(context.Background(), 1, 10, "/posts", ListOptions{Order: []Order{{Field: "missing"}}})
	assert.ErrorIs(t, err, ErrFieldNotFound)
}

func TestReader_UndefinedTable(t *testing.T) {
	db, mock := setupTestDB(t)

	mock.ExpectQuery(regexp.QuoteMeta(`SELECT COUNT(*) FROM "posts"`)).
		WillReturnError(&pgconn.PgError{Code: "42P01", Message: `relation "posts" does not exist`})

	_, err := NewReader(postSchema(), db, metadata.DialectPostgres).Count(context.Background(), nil)
	assert.ErrorIs(t, err, ErrUnknownTable)
}

func TestReader_SQLite(t *testing.T) {
	db, err := sql.Open("sqlite3", ":memory:")
	require.NoError(t, err)
	defer db.Close()
	db.SetMaxOpenConns(1)

	_, err = db.Exec(`CREATE TABLE posts (id INTEGER PRIMARY KEY, title TEXT, user_id INTEGER)`)
	require.NoError(t, err)
	for _, title := range []string{"a", "b", "c"} {
		_, err = db.Exec(`INSERT INTO posts (title, user_id) VALUES (?, 1)`, title)
		require.NoError(t, err)
	}

	reader := NewReader(postSchema(), db, metadata.DialectSQLite)
	ctx := context.Background()

	p, err := reader.Paginate(ctx, 2, 2, "/posts", ListOptions{})
	require.NoError(t, err)
	assert.Equal(t, 3, p.Total())
	require.Equal(t, 1, p.Count())
	title, _ := p.Items().At(0).(*orm.Record).Get("title")
	assert.Equal(t, "c", title)

	rec, err := reader.Find(ctx, 2)
	require.NoError(t, err)
	title, _ = rec.Get("title")
	assert.Equal(t, "b", title)

	n, err := reader.Count(ctx, map[string]any{"user_id": 1})
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

func TestConvertDBError(t *testing.T) {
	assert.Nil(t, ConvertDBError(nil))
	assert.ErrorIs(t, ConvertDBError(sql.ErrNoRows), ErrNotFound)
	assert.ErrorIs(t, ConvertDBError(&pgconn.PgError{Code: "42703"}), ErrFieldNotFound)

	other := &pgconn.PgError{Code: "08006"}
	assert.Equal(t, other, ConvertDBError(other))
}
