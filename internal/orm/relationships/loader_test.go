package relationships

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/smokescreen/internal/orm/schema"
	"github.com/conduit-lang/smokescreen/pkg/orm"
)

func setupTestDB(t *testing.T) (*sql.DB, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db, mock
}

func setupTestRegistry(t *testing.T) *schema.Registry {
	registry := schema.NewRegistry()

	user := schema.NewResourceSchema("User")
	user.Columns = []schema.Column{{Name: "id", Kind: "guid"}, {Name: "name", Kind: "string"}}
	user.Relationships["profile"] = &schema.Relationship{
		Type:           orm.RelationHasOne,
		TargetResource: "Profile",
		FieldName:      "profile",
		Nullable:       true,
	}

	post := schema.NewResourceSchema("Post")
	post.Columns = []schema.Column{
		{Name: "id", Kind: "guid"},
		{Name: "title", Kind: "string"},
		{Name: "author_id", Kind: "guid"},
	}
	post.Relationships["author"] = &schema.Relationship{
		Type:           orm.RelationBelongsTo,
		TargetResource: "User",
		FieldName:      "author",
		ForeignKey:     "author_id",
	}
	post.Relationships["comments"] = &schema.Relationship{
		Type:           orm.RelationHasMany,
		TargetResource: "Comment",
		FieldName:      "comments",
		ForeignKey:     "post_id",
	}
	post.Relationships["tags"] = &schema.Relationship{
		Type:           orm.RelationBelongsToMany,
		TargetResource: "Tag",
		FieldName:      "tags",
		JoinTable:      "post_tags",
	}
	post.Relationships["images"] = &schema.Relationship{
		Type:           orm.RelationMorphMany,
		TargetResource: "Image",
		FieldName:      "images",
	}

	comment := schema.NewResourceSchema("Comment")
	comment.Columns = []schema.Column{{Name: "id", Kind: "guid"}, {Name: "body", Kind: "text"}, {Name: "post_id", Kind: "guid"}}
	comment.Relationships["post"] = &schema.Relationship{
		Type:           orm.RelationBelongsTo,
		TargetResource: "Post",
		FieldName:      "post",
	}

	for _, rs := range []*schema.ResourceSchema{
		user, post, comment,
		schema.NewResourceSchema("Profile"),
		schema.NewResourceSchema("Tag"),
	} {
		require.NoError(t, registry.Register(rs))
	}
	return registry
}

func posts(n int) []orm.Model {
	models := make([]orm.Model, n)
	for i := range models {
		models[i] = orm.NewRecord("posts", map[string]any{
			"id":        fmt.Sprintf("post-%d", i+1),
			"title":     fmt.Sprintf("Post %d", i+1),
			"author_id": fmt.Sprintf("user-%d", i%2+1),
		})
	}
	return models
}

func attr(m orm.Model, key string) any {
	v, _ := m.(*orm.Record).Get(key)
	return v
}

func TestLoadBelongsTo(t *testing.T) {
	db, mock := setupTestDB(t)
	loader := NewLoader(db, setupTestRegistry(t))

	mock.ExpectQuery(`SELECT \* FROM "users" WHERE id = ANY\(\$1\)`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(
			sqlmock.NewRows([]string{"id", "name"}).
				AddRow("user-1", "Alice").
				AddRow("user-2", "Bob"),
		)

	models := posts(3)
	err := loader.LoadRelations(context.Background(), models, []string{"author"})
	require.NoError(t, err)

	author1 := attr(models[0], "author").(*orm.Record)
	author3 := attr(models[2], "author").(*orm.Record)
	assert.Equal(t, "Alice", author1.Attrs["name"])
	assert.Same(t, author1, author3)
	assert.Equal(t, "users", author1.TableName())

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadHasMany(t *testing.T) {
	db, mock := setupTestDB(t)
	loader := NewLoader(db, setupTestRegistry(t))

	mock.ExpectQuery(`SELECT \* FROM "comments" WHERE "post_id" = ANY\(\$1\)`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(
			sqlmock.NewRows([]string{"id", "body", "post_id"}).
				AddRow("comment-1", []byte("Great post!"), "post-1").
				AddRow("comment-2", "Thanks!", "post-1"),
		)

	models := posts(2)
	err := loader.LoadRelations(context.Background(), models, []string{"comments"})
	require.NoError(t, err)

	first := attr(models[0], "comments").(*orm.Collection)
	second := attr(models[1], "comments").(*orm.Collection)
	assert.Equal(t, 2, first.Len())
	assert.Equal(t, 0, second.Len(), "parents without children get an empty collection")
	assert.Equal(t, "Great post!", attr(first.At(0), "body"))

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadHasOne(t *testing.T) {
	db, mock := setupTestDB(t)
	loader := NewLoader(db, setupTestRegistry(t))

	mock.ExpectQuery(`SELECT DISTINCT ON \("user_id"\) \* FROM "profiles" WHERE "user_id" = ANY\(\$1\) ORDER BY "user_id", id`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(
			sqlmock.NewRows([]string{"id", "bio", "user_id"}).
				AddRow("profile-1", "Hello", "user-1"),
		)

	users := []orm.Model{
		orm.NewRecord("users", map[string]any{"id": "user-1"}),
		orm.NewRecord("users", map[string]any{"id": "user-2"}),
	}
	err := loader.LoadRelations(context.Background(), users, []string{"profile"})
	require.NoError(t, err)

	assert.Equal(t, "Hello", attr(attr(users[0], "profile").(*orm.Record), "bio"))
	assert.Nil(t, attr(users[1], "profile"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadBelongsToMany(t *testing.T) {
	db, mock := setupTestDB(t)
	loader := NewLoader(db, setupTestRegistry(t))

	mock.ExpectQuery(`INNER JOIN "post_tags" j ON t.id = j."tag_id" WHERE j."post_id" = ANY\(\$1\)`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(
			sqlmock.NewRows([]string{"id", "name", "__parent_id"}).
				AddRow("tag-1", "go", "post-1").
				AddRow("tag-2", "sql", "post-1").
				AddRow("tag-1", "go", "post-2"),
		)

	models := posts(2)
	err := loader.LoadRelations(context.Background(), models, []string{"tags"})
	require.NoError(t, err)

	tags := attr(models[0], "tags").(*orm.Collection)
	require.Equal(t, 2, tags.Len())
	_, hasJoinColumn := tags.At(0).(*orm.Record).Get("__parent_id")
	assert.False(t, hasJoinColumn)
	assert.Equal(t, 1, attr(models[1], "tags").(*orm.Collection).Len())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadRelations_OneQueryPerKey(t *testing.T) {
	db, mock := setupTestDB(t)
	loader := NewLoader(db, setupTestRegistry(t))

	mock.ExpectQuery(`FROM "users" WHERE id = ANY`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "name"}).AddRow("user-1", "Alice").AddRow("user-2", "Bob"))
	mock.ExpectQuery(`FROM "comments" WHERE "post_id" = ANY`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "body", "post_id"}))

	models := posts(1000)
	err := loader.LoadRelations(context.Background(), models, []string{"author", "comments", "author"})
	require.NoError(t, err)

	for _, m := range models {
		assert.NotNil(t, attr(m, "author"))
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadRelations_Nested(t *testing.T) {
	db, mock := setupTestDB(t)
	loader := NewLoader(db, setupTestRegistry(t))

	mock.ExpectQuery(`FROM "comments" WHERE "post_id" = ANY`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "body", "post_id"}).
			AddRow("comment-1", "First", "post-1").
			AddRow("comment-2", "Second", "post-2"))
	mock.ExpectQuery(`FROM "posts" WHERE id = ANY`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "title"}).
			AddRow("post-1", "Post 1").
			AddRow("post-2", "Post 2"))

	models := posts(2)
	// the trailing comments key would re-enter Post, which is already on
	// the load path, so it is skipped
	err := loader.LoadRelations(context.Background(), models, []string{"comments.post.comments"})
	require.NoError(t, err)

	comments := attr(models[0], "comments").(*orm.Collection)
	require.Equal(t, 1, comments.Len())
	parent := attr(comments.At(0), "post").(*orm.Record)
	assert.Equal(t, "Post 1", parent.Attrs["title"])
	_, loaded := parent.Get("comments")
	assert.False(t, loaded)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadRelations_Errors(t *testing.T) {
	db, mock := setupTestDB(t)
	loader := NewLoader(db, setupTestRegistry(t))
	ctx := context.Background()

	t.Run("unknown relationship", func(t *testing.T) {
		err := loader.LoadRelations(ctx, posts(1), []string{"reviews"})
		assert.ErrorIs(t, err, ErrUnknownRelationship)
	})

	t.Run("unbatchable family", func(t *testing.T) {
		err := loader.LoadRelations(ctx, posts(1), []string{"images"})
		assert.ErrorIs(t, err, ErrInvalidRelationType)
	})

	t.Run("non-record model", func(t *testing.T) {
		err := loader.LoadRelations(ctx, []orm.Model{struct{ orm.Model }{}}, []string{"author"})
		assert.ErrorIs(t, err, ErrUnsupportedModel)
	})

	t.Run("mixed tables", func(t *testing.T) {
		models := append(posts(1), orm.NewRecord("users", nil))
		err := loader.LoadRelations(ctx, models, []string{"author"})
		assert.ErrorIs(t, err, ErrUnsupportedModel)
	})

	t.Run("query error", func(t *testing.T) {
		boom := errors.New("connection reset")
		mock.ExpectQuery(`FROM "users"`).WithArgs(sqlmock.AnyArg()).WillReturnError(boom)

		err := loader.LoadRelations(ctx, posts(2), []string{"author"})
		assert.ErrorIs(t, err, boom)
		assert.Contains(t, err.Error(), "failed to load relationship author")
	})

	t.Run("max depth", func(t *testing.T) {
		shallow := NewLoader(db, setupTestRegistry(t), WithMaxDepth(0))
		err := shallow.LoadRelations(ctx, posts(1), []string{"author"})
		assert.ErrorIs(t, err, ErrMaxDepthExceeded)
	})

	t.Run("no keys", func(t *testing.T) {
		assert.NoError(t, loader.LoadRelations(ctx, posts(3), nil))
		assert.NoError(t, loader.LoadRelations(ctx, nil, []string{"author"}))
	})
}

func TestFetcher(t *testing.T) {
	db, mock := setupTestDB(t)
	loader := NewLoader(db, setupTestRegistry(t))

	mock.ExpectQuery(`FROM "comments" WHERE "post_id" = ANY`).
		WithArgs(sqlmock.AnyArg()).
		WillReturnRows(sqlmock.NewRows([]string{"id", "body", "post_id"}).AddRow("comment-1", "Hi", "post-1"))

	post := posts(1)[0]
	rel := orm.Base{}.HasMany(post, orm.NewRecord("comments", nil))
	loader.Bind(rel, "comments")

	value, err := rel.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, value.(*orm.Collection).Len())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuoteSortClause(t *testing.T) {
	assert.Equal(t, `"created_at" DESC`, quoteSortClause("created_at desc"))
	assert.Equal(t, `"name" ASC, "id"`, quoteSortClause("name ASC, id sideways"))
	assert.Equal(t, "", quoteSortClause(" , "))
}

func TestGroupKeys(t *testing.T) {
	groups := groupKeys([]string{"author", "comments.author", "comments.post", "author", ""})
	require.Len(t, groups, 2)
	assert.Equal(t, "author", groups[0].relation)
	assert.Empty(t, groups[0].nested)
	assert.Equal(t, []string{"author", "post"}, groups[1].nested)
}
