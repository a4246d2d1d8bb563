package smokescreen

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conduit-lang/smokescreen/internal/engine"
	"github.com/conduit-lang/smokescreen/pkg/orm"
	"github.com/conduit-lang/smokescreen/pkg/resource"
	"github.com/conduit-lang/smokescreen/pkg/transform"
)

type Post struct {
	ID     int    `json:"id"`
	Title  string `json:"title"`
	UserID int    `json:"user_id"`
}

func (*Post) TableName() string { return "posts" }

type User struct {
	ID int `json:"id"`
}

func (*User) TableName() string { return "users" }

type declaredItem struct{}

func (declaredItem) IsItemResource() {}

type declaredCollection struct{}

func (declaredCollection) IsCollectionResource() {}

type PostTransformer struct {
	transform.Base
	calls *int
}

func (t PostTransformer) Transform(data any) (any, error) {
	*t.calls++
	return t.Base.Transform(data)
}

func newPostTransformer(calls *int) PostTransformer {
	return PostTransformer{
		Base: transform.Base{
			Props: transform.Props{{Name: "id", Kind: "integer"}, {Name: "title", Kind: "string"}},
			Defs: transform.Defs{
				{Name: "user", Definition: "relation|item"},
				{Name: "comments", Definition: "relation|collection"},
			},
		},
		calls: calls,
	}
}

type countingLoader struct {
	calls [][]string
}

func (l *countingLoader) LoadRelations(_ context.Context, models []orm.Model, keys []string) error {
	l.calls = append(l.calls, keys)
	for _, m := range models {
		m.(*orm.Record).Set("user", map[string]any{"id": 7})
		m.(*orm.Record).Set("comments", orm.List{})
	}
	return nil
}

func registryWithPost(t *testing.T, calls *int) *Registry {
	t.Helper()
	registry := NewRegistry()
	require.NoError(t, registry.RegisterConventional(DefaultConfig().Naming(), &Post{}, func() (transform.Transformer, error) {
		return newPostTransformer(calls), nil
	}))
	return registry
}

func TestTransform_Classifies(t *testing.T) {
	tests := []struct {
		name     string
		data     any
		expected resource.Kind
	}{
		{"declared item", declaredItem{}, resource.Item},
		{"declared collection", declaredCollection{}, resource.Collection},
		{"assoc map", map[string]any{"name": "Bob", "age": 21}, resource.Item},
		{"sequential list", []string{"one", "two", "three"}, resource.Collection},
		{"model", &Post{}, resource.Item},
		{"model collection", orm.NewCollection(&Post{}), resource.Collection},
		{"paginator", orm.NewPaginator(orm.NewCollection(&Post{}), 1, 15, 1, "/"), resource.Collection},
		{"ambiguous struct", struct{}{}, resource.Item},
		{"nil", nil, resource.Item},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Make().Transform(tt.data, nil)
			require.NotNil(t, s.Resource())
			assert.Equal(t, tt.expected, s.Resource().Kind())
		})
	}
}

func TestCollection_Paginator(t *testing.T) {
	p := orm.NewPaginator(orm.NewCollection(&Post{ID: 1}), 1, 15, 1, "/posts")
	s := Make().Collection(p, nil)

	assert.True(t, s.Resource().IsCollection())
	assert.Equal(t, p, s.Resource().Paginator())
}

func TestItem_KeepsData(t *testing.T) {
	list := []string{"a"}
	s := Make().Item(list, nil)

	assert.Equal(t, resource.Item, s.Resource().Kind())
	assert.Equal(t, list, s.Resource().Data())
}

func TestRender_EmptyCollectionPassthrough(t *testing.T) {
	input := []any{}
	assert.Equal(t, resource.Collection, resource.Classify(input))

	out, err := Make().Transform(input, nil).Render(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"data": input}, out)
}

func TestRender_MissingResource(t *testing.T) {
	s := Make()

	_, err := s.Render(context.Background())
	assert.ErrorIs(t, err, ErrMissingResource)

	err = s.TransformWith(transform.Empty{})
	assert.ErrorIs(t, err, ErrMissingResource)
}

func TestTransformWith(t *testing.T) {
	s := Make().Item(map[string]any{"a": 1}, nil)
	assert.False(t, s.Resource().HasTransformer())

	require.NoError(t, s.TransformWith(transform.Empty{}))
	out, err := s.Render(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{}, out)
}

func TestRender_ResolvesTransformer(t *testing.T) {
	calls := 0
	s := Make(WithInstantiator(registryWithPost(t, &calls)))

	out, err := s.Transform(&Post{ID: 1, Title: "Hello"}, nil).Render(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"id": int64(1), "title": "Hello"}, out)
	assert.IsType(t, PostTransformer{}, s.Resource().Transformer())

	out, err = s.Transform(orm.NewCollection(&Post{ID: 1}, &Post{ID: 2}), nil).Render(context.Background())
	require.NoError(t, err)
	assert.Len(t, out.(map[string]any)["data"], 2)
	assert.IsType(t, PostTransformer{}, s.Resource().Transformer())
}

func TestRender_UnresolvedTransformer(t *testing.T) {
	calls := 0
	s := Make(WithInstantiator(registryWithPost(t, &calls))).Transform(&User{ID: 1}, nil)

	_, err := s.Render(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrUnresolvedTransformer)

	var unresolved *UnresolvedTransformerError
	require.True(t, errors.As(err, &unresolved))
	assert.Equal(t, "User", unresolved.Model)
}

type resolverFunc func(r *resource.Resource) (transform.Transformer, error)

func (f resolverFunc) Resolve(r *resource.Resource) (transform.Transformer, error) { return f(r) }

func TestResolveTransformerVia(t *testing.T) {
	calls := 0
	s := Make().ResolveTransformerVia(resolverFunc(func(*resource.Resource) (transform.Transformer, error) {
		calls++
		return transform.Empty{}, nil
	}))

	_, err := s.Transform(&User{}, nil).Render(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
	assert.Equal(t, transform.Empty{}, s.Resource().Transformer())
}

func TestRender_Memoized(t *testing.T) {
	calls := 0
	s := Make().Item(&Post{ID: 1}, newPostTransformer(&calls))

	first, err := s.Render(context.Background())
	require.NoError(t, err)
	second, err := s.Render(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, 1, calls)

	s.Inject("meta.version", 2)
	third, err := s.Render(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, calls)
	assert.Equal(t, map[string]any{"version": 2}, third.(map[string]any)["meta"])
}

func TestRender_IncludesFromRequest(t *testing.T) {
	calls := 0
	record := func() orm.Model { return orm.NewRecord("posts", map[string]any{"id": 1, "title": "Hello"}) }
	loader := &countingLoader{}

	s := Make().
		Collection(orm.NewCollection(record(), record()).WithLoader(loader), newPostTransformer(&calls)).
		SetRequest(Input{"include": "user"})

	out, err := s.Render(context.Background())
	require.NoError(t, err)
	require.Len(t, loader.calls, 1)
	assert.Equal(t, []string{"user"}, loader.calls[0])

	data := out.(map[string]any)["data"].([]any)
	assert.Equal(t, map[string]any{"id": 7}, data[0].(map[string]any)["user"])
	assert.NotContains(t, data[0], "comments")

	out, err = s.Include("comments").Render(context.Background())
	require.NoError(t, err)
	require.Len(t, loader.calls, 2)
	assert.Equal(t, []string{"comments"}, loader.calls[1])
	assert.NotContains(t, out.(map[string]any)["data"].([]any)[0], "user")

	out, err = s.NoIncludes().Render(context.Background())
	require.NoError(t, err)
	assert.Len(t, loader.calls, 2)
	assert.NotContains(t, out.(map[string]any)["data"].([]any)[0], "user")
}

func TestRender_SingleBatchedLoad(t *testing.T) {
	calls := 0
	loader := &countingLoader{}

	models := make([]orm.Model, 1000)
	for i := range models {
		models[i] = orm.NewRecord("posts", map[string]any{"id": i})
	}

	_, err := Make().
		Collection(orm.NewCollection(models...).WithLoader(loader), newPostTransformer(&calls)).
		Include("user,comments,secrets").
		Render(context.Background())
	require.NoError(t, err)

	require.Len(t, loader.calls, 1)
	assert.Equal(t, []string{"user", "comments"}, loader.calls[0])
	assert.Equal(t, 1000, calls)
}

func TestIncludeKey(t *testing.T) {
	assert.Equal(t, "include", Make().IncludeKey())

	cfg := DefaultConfig()
	cfg.IncludeKey = "override"
	s, err := New(cfg)
	require.NoError(t, err)
	assert.Equal(t, "override", s.IncludeKey())

	s, err = New(cfg, WithIncludeKey("auto_parse_key"))
	require.NoError(t, err)
	assert.Equal(t, "auto_parse_key", s.IncludeKey())

	cfg.IncludeKey = ""
	s, err = New(cfg)
	require.NoError(t, err)
	assert.Equal(t, "include", s.IncludeKey())
}

type customSerializer struct{}

func (customSerializer) Item(_ string, data any) any { return data }

func (customSerializer) Collection(_ string, items []any, _ orm.Paginator) any {
	return map[string]any{"custom_serialize": items}
}

func TestDefaultSerializer(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DefaultSerializer = "data"
	s, err := New(cfg)
	require.NoError(t, err)

	out, err := s.Item(map[string]any{"a": 1}, nil).Render(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"data": map[string]any{"a": 1}}, out)

	cfg.DefaultSerializer = customSerializer{}
	s, err = New(cfg)
	require.NoError(t, err)
	out, err = s.Transform([]any{1, 2}, nil).Render(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"custom_serialize": []any{1, 2}}, out)

	out, err = s.SerializeWith(engine.DefaultSerializer{}).Render(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]any{"data": []any{1, 2}}, out)

	cfg.DefaultSerializer = "jsonapi"
	_, err = New(cfg)
	assert.Error(t, err)

	cfg.DefaultSerializer = 42
	_, err = New(cfg)
	assert.Error(t, err)
}

func TestNew_InvalidTemplate(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NameTemplate = "Transformer"

	_, err := New(cfg)
	assert.Error(t, err)
}

func TestToJSON(t *testing.T) {
	data := []any{
		map[string]any{"id": 1, "name": "Bob"},
		map[string]any{"id": 2, "name": "Walter"},
	}

	raw, err := Make().Transform(data, nil).Inject("meta.count", 2).ToJSON(context.Background())
	require.NoError(t, err)
	assert.JSONEq(t, `{"data":[{"id":1,"name":"Bob"},{"id":2,"name":"Walter"}],"meta":{"count":2}}`, string(raw))
}

func TestResponse_Cached(t *testing.T) {
	ctx := context.Background()
	s := Make().Collection([]any{}, nil)

	resp, err := s.Response(ctx, http.StatusTeapot, http.Header{"X-Some-Header": {"Some Header"}})
	require.NoError(t, err)
	assert.Equal(t, http.StatusTeapot, resp.Status)
	assert.Equal(t, "Some Header", resp.Header.Get("X-Some-Header"))
	assert.JSONEq(t, `{"data":[]}`, string(resp.Body))

	resp, err = s.Response(ctx, http.StatusOK, http.Header{"X-Some-Header": {"Another Value"}})
	require.NoError(t, err)
	assert.Equal(t, http.StatusTeapot, resp.Status)
	assert.Equal(t, "Some Header", resp.Header.Get("X-Some-Header"))

	resp, err = s.FreshResponse(ctx, http.StatusOK, http.Header{"X-Some-Header": {"Another Value"}})
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "Another Value", resp.Header.Get("X-Some-Header"))
}

func TestWithResponse(t *testing.T) {
	ctx := context.Background()
	s := Make().Collection([]any{}, nil)

	require.NoError(t, s.WithResponse(ctx, func(r *Response) {
		r.Header.Set("X-Some-Header", "Some Header")
		r.Status = http.StatusTeapot
	}))

	resp, err := s.Response(ctx, http.StatusOK, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusTeapot, resp.Status)
	assert.Equal(t, "Some Header", resp.Header.Get("X-Some-Header"))

	s.ClearResponse()
	resp, err = s.Response(ctx, http.StatusOK, nil)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.Status)
}

func TestWriteResponse(t *testing.T) {
	w := httptest.NewRecorder()

	err := Make().Item(map[string]any{"name": "Bob"}, nil).WriteResponse(context.Background(), w)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "Bob", body["name"])

	err = Make().WriteResponse(context.Background(), httptest.NewRecorder())
	assert.ErrorIs(t, err, ErrMissingResource)
}

func TestHTTPRequest(t *testing.T) {
	router := chi.NewRouter()

	var got []string
	router.Get("/posts/{include}", func(w http.ResponseWriter, r *http.Request) {
		src := HTTPRequest(r)
		for _, key := range []string{"page", "include", "missing"} {
			v, ok := src.InputValue(key)
			if ok {
				got = append(got, key+"="+v)
			}
		}
	})

	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/posts/author?page=2", nil))
	assert.Equal(t, []string{"page=2", "include=author"}, got)

	got = nil
	router.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/posts/author?include=comments", nil))
	assert.Equal(t, []string{"include=comments"}, got)
}

func TestRender_NestedIncludeSingleLoad(t *testing.T) {
	var loads [][]string
	loader := orm.LoaderFunc(func(_ context.Context, models []orm.Model, keys []string) error {
		loads = append(loads, keys)
		for _, m := range models {
			comments, _ := m.(*orm.Record).Get("comments")
			for _, c := range comments.(*orm.Collection).All() {
				c.(*orm.Record).Set("author", map[string]any{"name": "ann"})
			}
		}
		return nil
	})

	models := make([]orm.Model, 50)
	for i := range models {
		post := orm.NewRecord("posts", map[string]any{"id": i})
		post.Set("comments", orm.NewCollection(
			orm.NewRecord("comments", map[string]any{"id": i * 10}),
			orm.NewRecord("comments", map[string]any{"id": i*10 + 1}),
		).WithLoader(loader))
		models[i] = post
	}

	postT := transform.Base{
		Props: transform.Props{{Name: "id", Kind: "integer"}},
		Defs:  transform.Defs{{Name: "comments", Definition: "relation|collection"}},
	}
	commentT := transform.Base{
		Props: transform.Props{{Name: "id", Kind: "integer"}},
		Defs:  transform.Defs{{Name: "author", Definition: "relation|item"}},
	}

	// the resolver hands out the comment transformer without attaching it
	resolved := 0
	s := Make(WithResolver(resolverFunc(func(r *resource.Resource) (transform.Transformer, error) {
		if !r.IsCollection() {
			return nil, nil
		}
		resolved++
		return commentT, nil
	})))

	out, err := s.Collection(orm.NewCollection(models...).WithLoader(loader), postT).
		Include("comments.author").
		Render(context.Background())
	require.NoError(t, err)

	require.Len(t, loads, 1)
	assert.Equal(t, []string{"comments.author"}, loads[0])
	assert.Equal(t, 50, resolved)

	data := out.(map[string]any)["data"].([]any)
	require.Len(t, data, 50)
	comments := data[49].(map[string]any)["comments"].(map[string]any)["data"].([]any)
	assert.Equal(t, map[string]any{"id": int64(491), "author": map[string]any{"name": "ann"}}, comments[1])
}

type paginatedPost struct {
	*Post
	*orm.LengthAwarePaginator
}

func TestTransform_ModelPaginatorIsItem(t *testing.T) {
	data := paginatedPost{&Post{ID: 1}, orm.NewPaginator(orm.NewCollection(&Post{ID: 2}), 1, 10, 1, "/posts")}
	require.Equal(t, resource.Item, resource.Classify(data))

	s := Make().Transform(data, nil)
	assert.Equal(t, resource.Item, s.Resource().Kind())
	assert.Nil(t, s.Resource().Paginator())
	assert.Equal(t, data, s.Resource().Data())

	p := orm.NewPaginator(orm.NewCollection(&Post{ID: 2}), 1, 10, 1, "/posts")
	s = Make().Transform(p, nil)
	assert.Equal(t, resource.Collection, s.Resource().Kind())
	assert.Equal(t, p, s.Resource().Paginator())
}
