package engine

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/smokescreen/pkg/orm"
	"github.com/conduit-lang/smokescreen/pkg/resource"
	"github.com/conduit-lang/smokescreen/pkg/transform"
)

type User struct {
	Name string `json:"name"`
}

func (*User) TableName() string { return "users" }

type Comment struct {
	ID   int    `json:"id"`
	Body string `json:"body"`
}

func (*Comment) TableName() string { return "comments" }

type Post struct {
	orm.Base
	ID       int        `json:"id"`
	Title    string     `json:"title"`
	Comments []*Comment `json:"-"`
}

func (*Post) TableName() string { return "posts" }

func (p *Post) Author() *orm.BelongsTo {
	rel := p.BelongsTo(p, &User{})
	rel.Using(func(context.Context, orm.Model, orm.Model) (any, error) {
		return &User{Name: "ann"}, nil
	})
	return rel
}

type commentTransformer struct{ transform.Base }

func newCommentTransformer() *commentTransformer {
	return &commentTransformer{transform.Base{
		Defs: transform.Defs{{Name: "post", Definition: "item"}},
		Props: transform.Props{
			{Name: "id", Kind: "integer"},
			{Name: "body", Kind: "string"},
		},
	}}
}

type postTransformer struct{ transform.Base }

func newPostTransformer() *postTransformer {
	t := &postTransformer{}
	t.Props = transform.Props{{Name: "id", Kind: "integer"}, {Name: "title", Kind: "string"}}
	t.Defs = transform.Defs{
		{Name: "author", Definition: "relation|item"},
		{Name: "comments", Definition: "relation|collection"},
		{Name: "tags", Definition: "collection"},
		{Name: "kind", Definition: "default"},
	}
	return t
}

func (t *postTransformer) Includes() transform.Includes {
	includes := t.Base.Includes()
	for i := range includes {
		switch includes[i].Name {
		case "comments":
			includes[i].Resolve = func(data any) (any, error) {
				return transform.CollectionOf(data.(*Post).Comments, newCommentTransformer()), nil
			}
		case "tags":
			includes[i].Resolve = func(any) (any, error) {
				return []string{"go", "api"}, nil
			}
		case "kind":
			includes[i].Resolve = func(any) (any, error) {
				return map[string]any{"name": "article"}, nil
			}
		}
	}
	return includes
}

type recordingLoader struct {
	calls [][]string
}

func (l *recordingLoader) Load(_ context.Context, _ *resource.Resource, includes []string) error {
	l.calls = append(l.calls, includes)
	return nil
}

func posts() *orm.Collection {
	return orm.NewCollection(
		&Post{ID: 1, Title: "One", Comments: []*Comment{{ID: 10, Body: "hi"}}},
		&Post{ID: 2, Title: "Two"},
	)
}

func TestRender_Passthrough(t *testing.T) {
	e := New()

	out, err := e.Render(context.Background(), resource.NewCollection([]any{}))
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"data": []any{}}, out)

	item := map[string]any{"name": "Bob"}
	out, err = e.Render(context.Background(), resource.NewItem(item))
	require.NoError(t, err)
	assert.Equal(t, item, out)
}

func TestRender_NoResource(t *testing.T) {
	_, err := New().Render(context.Background(), nil)
	assert.ErrorIs(t, err, ErrNoResource)
}

func TestRender_ItemWithIncludes(t *testing.T) {
	e := New()
	e.ParseIncludes("author,comments,secret")

	r := resource.NewItem(&Post{ID: 1, Title: "One", Comments: []*Comment{{ID: 10, Body: "hi"}}})
	r.SetTransformer(newPostTransformer())

	out, err := e.Render(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{
		"id":     int64(1),
		"title":  "One",
		"author": &User{Name: "ann"},
		"comments": map[string]any{"data": []any{
			map[string]any{"id": int64(10), "body": "hi"},
		}},
		"kind": map[string]any{"name": "article"},
	}, out)
}

func TestRender_CollectionLoadsOnce(t *testing.T) {
	loader := &recordingLoader{}
	e := New()
	e.SetRelationLoader(loader)
	e.ParseIncludes("comments,tags")

	r := resource.NewCollection(posts())
	r.SetTransformer(newPostTransformer())

	out, err := e.Render(context.Background(), r)
	require.NoError(t, err)

	require.Len(t, loader.calls, 1)
	assert.Equal(t, []string{"comments", "tags", "kind"}, loader.calls[0])

	data := out.(map[string]any)["data"].([]any)
	require.Len(t, data, 2)
	assert.Equal(t, map[string]any{"data": []any{"go", "api"}}, data[1].(map[string]any)["tags"])
	assert.Equal(t, map[string]any{"data": []any{}}, data[1].(map[string]any)["comments"])
	assert.NotContains(t, data[0], "author")
}

func TestRender_NestedCollectionsLoadOnce(t *testing.T) {
	loader := &recordingLoader{}
	e := New()
	e.SetRelationLoader(loader)
	e.ParseIncludes("comments,comments.post")

	models := make([]orm.Model, 40)
	for i := range models {
		models[i] = &Post{ID: i, Comments: []*Comment{{ID: i * 10}, {ID: i*10 + 1}}}
	}
	r := resource.NewCollection(orm.NewCollection(models...))
	r.SetTransformer(newPostTransformer())

	out, err := e.Render(context.Background(), r)
	require.NoError(t, err)

	require.Len(t, loader.calls, 1)
	assert.Equal(t, []string{"comments.post", "kind"}, loader.calls[0])

	data := out.(map[string]any)["data"].([]any)
	require.Len(t, data, 40)
	comments := data[3].(map[string]any)["comments"].(map[string]any)["data"].([]any)
	assert.Equal(t, map[string]any{"id": int64(30), "body": "", "post": nil}, comments[0])
}

func TestRender_NoIncludesNoLoad(t *testing.T) {
	loader := &recordingLoader{}
	e := New()
	e.SetRelationLoader(loader)

	r := resource.NewCollection(posts())
	r.SetTransformer(transform.Base{Props: transform.Props{{Name: "id", Kind: "integer"}}})

	_, err := e.Render(context.Background(), r)
	require.NoError(t, err)
	assert.Empty(t, loader.calls)
}

func TestRender_NestedPaths(t *testing.T) {
	e := New()
	e.ParseIncludes("comments.post")

	post := &Post{ID: 1, Title: "One"}
	post.Comments = []*Comment{{ID: 10, Body: "hi"}}

	r := resource.NewItem(post)
	pt := newPostTransformer()
	r.SetTransformer(transform.Func(pt.Transform))

	// a Func declares no includes, so nothing is expanded
	out, err := e.Render(context.Background(), r)
	require.NoError(t, err)
	assert.NotContains(t, out, "comments")

	r = resource.NewItem(post)
	r.SetTransformer(pt)
	out, err = e.Render(context.Background(), r)
	require.NoError(t, err)

	comments := out.(map[string]any)["comments"].(map[string]any)["data"].([]any)
	// comments carry no "post" attribute, so the nested include is null
	assert.Equal(t, map[string]any{"id": int64(10), "body": "hi", "post": nil}, comments[0])
}

func TestRender_Pagination(t *testing.T) {
	e := New()
	p := orm.NewPaginator(posts(), 5, 2, 2, "/posts")

	out, err := e.Render(context.Background(), resource.NewCollection(p))
	require.NoError(t, err)

	pagination := out.(map[string]any)["pagination"].(map[string]any)
	assert.Equal(t, 5, pagination["total"])
	assert.Equal(t, 2, pagination["count"])
	assert.Equal(t, 3, pagination["total_pages"])
	assert.Equal(t, map[string]any{
		"previous": "/posts?page=1",
		"next":     "/posts?page=3",
	}, pagination["links"])
}

type postQuery struct{ err error }

func (postQuery) Model() orm.Model { return &Post{} }

func (q postQuery) Get(context.Context) (*orm.Collection, error) {
	return posts(), q.err
}

func TestRender_Query(t *testing.T) {
	e := New()
	r := resource.NewCollection(postQuery{})
	r.SetTransformer(transform.Base{Props: transform.Props{{Name: "title", Kind: "string"}}})

	out, err := e.Render(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"data": []any{
		map[string]any{"title": "One"},
		map[string]any{"title": "Two"},
	}}, out)

	boom := errors.New("boom")
	_, err = e.Render(context.Background(), resource.NewCollection(postQuery{err: boom}))
	assert.ErrorIs(t, err, boom)
}

type resolverFunc func(r *resource.Resource) (transform.Transformer, error)

func (f resolverFunc) Resolve(r *resource.Resource) (transform.Transformer, error) { return f(r) }

func TestRender_UsesResolver(t *testing.T) {
	calls := 0
	e := New()
	e.SetResolver(resolverFunc(func(r *resource.Resource) (transform.Transformer, error) {
		calls++
		t := transform.Func(func(any) (any, error) { return "resolved", nil })
		r.SetTransformer(t)
		return t, nil
	}))

	r := resource.NewItem(&Post{})
	out, err := e.Render(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, "resolved", out)

	_, err = e.Render(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)

	boom := errors.New("unresolved")
	e.SetResolver(resolverFunc(func(*resource.Resource) (transform.Transformer, error) { return nil, boom }))
	_, err = e.Render(context.Background(), resource.NewItem(&Post{}))
	assert.ErrorIs(t, err, boom)
}

func TestRender_AttachesResolvedTransformer(t *testing.T) {
	calls := 0
	e := New()
	e.SetResolver(resolverFunc(func(*resource.Resource) (transform.Transformer, error) {
		calls++
		return transform.Func(func(any) (any, error) { return "resolved", nil }), nil
	}))

	r := resource.NewCollection(orm.NewCollection(&Post{ID: 1}))
	out, err := e.Render(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"data": []any{"resolved"}}, out)
	assert.True(t, r.HasTransformer())

	_, err = e.Render(context.Background(), r)
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

type loopTransformer struct{}

func (loopTransformer) Transform(any) (any, error) { return map[string]any{}, nil }

func (t loopTransformer) Includes() transform.Includes {
	return transform.Includes{{
		Name:    "self",
		Default: true,
		Resolve: func(data any) (any, error) { return transform.ItemOf(data, t), nil },
	}}
}

func TestRender_MaxDepth(t *testing.T) {
	r := resource.NewItem(map[string]any{})
	r.SetTransformer(loopTransformer{})

	_, err := New(WithMaxDepth(3)).Render(context.Background(), r)
	assert.ErrorIs(t, err, ErrMaxDepthExceeded)
}

func TestRender_TransformError(t *testing.T) {
	boom := errors.New("boom")
	r := resource.NewItem(1)
	r.SetTransformer(transform.Func(func(any) (any, error) { return nil, boom }))

	_, err := New().Render(context.Background(), r)
	assert.ErrorIs(t, err, boom)
}

func TestParseIncludes(t *testing.T) {
	e := New()

	assert.Equal(t, []string{"user", "comments.author"}, e.ParseIncludes(" user, ,comments. author ,user"))
	assert.Equal(t, []string{"user", "comments.author"}, e.Includes())
	assert.Empty(t, e.ParseIncludes(""))
	assert.Empty(t, e.Includes())
}

func TestElements(t *testing.T) {
	assert.Nil(t, Elements(nil))
	assert.Equal(t, []any{"a", "b"}, Elements([]string{"a", "b"}))
	assert.Equal(t, []any{"x", "y"}, Elements(map[int]string{1: "y", 0: "x"}))
	assert.Equal(t, []any{"solo"}, Elements("solo"))
	assert.Len(t, Elements(posts()), 2)
}
