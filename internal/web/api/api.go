// Package api serves database tables as a read-only JSON API. Every
// response is rendered through a smokescreen facade with conventionally
// registered record transformers.
package api

import (
	"database/sql"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/spf13/cast"
	"go.uber.org/zap"

	"github.com/conduit-lang/smokescreen/internal/orm/crud"
	"github.com/conduit-lang/smokescreen/internal/orm/metadata"
	"github.com/conduit-lang/smokescreen/internal/orm/schema"
	"github.com/conduit-lang/smokescreen/internal/orm/transaction"
	"github.com/conduit-lang/smokescreen/internal/transformer"
	"github.com/conduit-lang/smokescreen/internal/web/query"
	"github.com/conduit-lang/smokescreen/internal/web/server"
	"github.com/conduit-lang/smokescreen/pkg/orm"
	"github.com/conduit-lang/smokescreen/pkg/smokescreen"
)

const (
	DefaultPerPage = 20
	MaxPerPage     = 100
)

// Options configures an API
type Options struct {
	Config   smokescreen.Config
	Registry *schema.Registry
	DB       *sql.DB
	Dialect  metadata.Dialect
	// Loader eager-loads relations of records. Without one, tables
	// declare no includes.
	Loader orm.Loader
	Logger *zap.Logger
}

// API serves the tables of a schema registry
type API struct {
	cfg      smokescreen.Config
	registry *schema.Registry
	tx       *transaction.Manager
	dialect  metadata.Dialect
	loader   orm.Loader
	resolver *transformer.Resolver
	logger   *zap.Logger
}

// New creates an API and registers a record transformer for every table
func New(opts Options) (*API, error) {
	if opts.Registry == nil || opts.DB == nil {
		return nil, fmt.Errorf("api needs a schema registry and a database")
	}
	if err := opts.Config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	transformers := transformer.NewRegistry()
	if err := RegisterTables(transformers, opts.Config.Naming(), opts.Registry, opts.Loader != nil); err != nil {
		return nil, fmt.Errorf("failed to register record transformers: %w", err)
	}

	// Count and page are read from one snapshot
	tx := transaction.NewManager(opts.DB)
	if opts.Dialect == metadata.DialectSQLite {
		tx.ReadLevel = transaction.ReadCommitted
	}

	return &API{
		cfg:      opts.Config,
		registry: opts.Registry,
		tx:       tx,
		dialect:  opts.Dialect,
		loader:   opts.Loader,
		resolver: transformer.NewResolver(opts.Config.Naming(), transformers,
			transformer.WithModelName(RecordModelName),
			transformer.WithLogger(logger)),
		logger: logger,
	}, nil
}

// Routes registers the API routes on r
func (a *API) Routes(r chi.Router) {
	r.Get("/", a.index)
	r.Get("/{table}", a.list)
	r.Get("/{table}/{id}", a.show)
}

func (a *API) facade() (*smokescreen.Smokescreen, error) {
	return smokescreen.New(a.cfg,
		smokescreen.WithResolver(a.resolver),
		smokescreen.WithLogger(a.logger),
	)
}

// index lists the served tables and their relations
func (a *API) index(w http.ResponseWriter, r *http.Request) {
	schemas := a.registry.All()
	tables := make([]map[string]any, 0, len(schemas))
	for _, rs := range schemas {
		relations := make([]string, 0, len(rs.Relationships))
		if a.loader != nil {
			for name := range rs.Relationships {
				relations = append(relations, name)
			}
			sort.Strings(relations)
		}
		tables = append(tables, map[string]any{
			"table":     rs.TableName,
			"model":     rs.Name,
			"relations": relations,
		})
	}
	sort.Slice(tables, func(i, j int) bool {
		return tables[i]["table"].(string) < tables[j]["table"].(string)
	})

	s, err := a.facade()
	if err != nil {
		server.Error(w, err)
		return
	}
	server.Respond(w, r, s.Collection(tables, nil))
}

// list renders one page of a table
func (a *API) list(w http.ResponseWriter, r *http.Request) {
	rs, ok := a.resource(w, r)
	if !ok {
		return
	}

	page, err := intParam(r, "page", 1)
	if err != nil {
		server.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	perPage, err := intParam(r, "per_page", DefaultPerPage)
	if err != nil {
		server.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	perPage = min(perPage, MaxPerPage)

	opts, err := listOptions(r, rs)
	if err != nil {
		server.Error(w, err)
		return
	}

	var paginator *orm.LengthAwarePaginator
	err = a.tx.ReadOnly(r.Context(), func(tx *sql.Tx) error {
		var err error
		paginator, err = a.reader(rs, tx).Paginate(r.Context(), page, perPage, pagePath(r), opts)
		return err
	})
	if err != nil {
		server.Error(w, err)
		return
	}

	s, err := a.facade()
	if err != nil {
		server.Error(w, err)
		return
	}
	server.Respond(w, r, s.Paginate(paginator, nil))
}

// show renders a single record with its requested relations loaded
func (a *API) show(w http.ResponseWriter, r *http.Request) {
	rs, ok := a.resource(w, r)
	if !ok {
		return
	}

	var record *orm.Record
	err := a.tx.ReadOnly(r.Context(), func(tx *sql.Tx) error {
		var err error
		record, err = a.reader(rs, tx).Find(r.Context(), chi.URLParam(r, "id"))
		return err
	})
	if err != nil {
		server.Error(w, err)
		return
	}

	if keys := a.requestedRelations(r, rs); len(keys) > 0 {
		if err := a.loader.LoadRelations(r.Context(), []orm.Model{record}, keys); err != nil {
			server.Error(w, err)
			return
		}
	}

	s, err := a.facade()
	if err != nil {
		server.Error(w, err)
		return
	}
	server.Respond(w, r, s.Item(record, nil))
}

// resource looks up the schema of the requested table
func (a *API) resource(w http.ResponseWriter, r *http.Request) (*schema.ResourceSchema, bool) {
	table := chi.URLParam(r, "table")
	rs, ok := a.registry.GetByTable(table)
	if !ok {
		server.WriteError(w, http.StatusNotFound, fmt.Sprintf("unknown table %s", table))
		return nil, false
	}
	return rs, true
}

func (a *API) reader(rs *schema.ResourceSchema, q crud.Querier) *crud.Reader {
	reader := crud.NewReader(rs, q, a.dialect)
	if a.loader != nil {
		reader.WithLoader(a.loader)
	}
	return reader
}

// requestedRelations returns the requested include paths whose first
// segment is a relationship of rs
func (a *API) requestedRelations(r *http.Request, rs *schema.ResourceSchema) []string {
	if a.loader == nil {
		return nil
	}
	key := a.cfg.IncludeKey
	if key == "" {
		key = smokescreen.DefaultIncludeKey
	}

	var keys []string
	for _, path := range strings.Split(r.URL.Query().Get(key), ",") {
		path = strings.TrimSpace(path)
		relation, _, _ := strings.Cut(path, ".")
		if relation != "" && rs.HasRelationship(relation) {
			keys = append(keys, path)
		}
	}
	return keys
}

// listOptions reads the sort and filter parameters of a listing
func listOptions(r *http.Request, rs *schema.ResourceSchema) (crud.ListOptions, error) {
	columns := rs.ColumnNames()
	order, err := query.ParseSort(r.URL.Query().Get(query.SortParam), columns)
	if err != nil {
		return crud.ListOptions{}, err
	}
	conditions, err := query.ParseFilters(r.URL.Query(), columns)
	if err != nil {
		return crud.ListOptions{}, err
	}
	return crud.ListOptions{Conditions: conditions, Order: order}, nil
}

// pagePath is the request URL without its page parameter, so page links
// keep the sort, filter and include parameters
func pagePath(r *http.Request) string {
	q := r.URL.Query()
	q.Del("page")
	if len(q) == 0 {
		return r.URL.Path
	}
	return r.URL.Path + "?" + q.Encode()
}

func intParam(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	// decimal digits only; cast would read a leading 0 as octal
	digits := strings.TrimLeft(raw, "0")
	if digits == "" || strings.TrimLeft(digits, "0123456789") != "" {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", name, raw)
	}
	n, err := cast.ToIntE(digits)
	if err != nil || n < 1 {
		return 0, fmt.Errorf("%s must be a positive integer, got %q", name, raw)
	}
	return n, nil
}
