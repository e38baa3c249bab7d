package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
	"golang.org/x/crypto/bcrypt"

	"github.com/ella-cms/scribble/internal/core/domain"
	"github.com/ella-cms/scribble/internal/core/entity"
	"github.com/ella-cms/scribble/internal/core/field"
	"github.com/ella-cms/scribble/internal/core/ports"
	"github.com/ella-cms/scribble/internal/pkg/metrics"
)

// DefaultLimit is the page size of a list request without a limit parameter.
const DefaultLimit = 20

// ResourceHandler serves the generic /api/r1/<type>/ collections for every
// registered entity type.
type ResourceHandler struct {
	types *entity.Registry
	store ports.ResourceStore
	log   zerolog.Logger
}

func NewResourceHandler(types *entity.Registry, store ports.ResourceStore, log zerolog.Logger) *ResourceHandler {
	return &ResourceHandler{types: types, store: store, log: log}
}

// --- Request / Response types ---

type listParams struct {
	Limit  int64 `validate:"gte=0"`
	Offset int64 `validate:"gte=0"`
}

type listMeta struct {
	Limit      int64 `json:"limit"`
	Offset     int64 `json:"offset"`
	TotalCount int64 `json:"total_count"`
}

type listResponse struct {
	Meta    listMeta         `json:"meta"`
	Objects []map[string]any `json:"objects"`
}

// reserved query parameters that are never field filters.
var reserved = map[string]bool{"limit": true, "offset": true, "format": true}

// List handles GET /api/r1/:type/.
//
// Every other query parameter is an exact-match filter on a declared field.
// Repeating a parameter requires all of its values to match. limit=0 returns
// every match.
//
// @Summary      List objects of a type
// @Tags         resources
// @Produce      json
// @Security     BearerAuth
// @Param        type    path      string  true   "Entity type (e.g. article)"
// @Param        limit   query     int     false  "Page size, 0 for all"
// @Param        offset  query     int     false  "Objects to skip"
// @Success      200     {object}  listResponse
// @Failure      400     {object}  map[string]string
// @Failure      401     {object}  map[string]string
// @Failure      404     {object}  map[string]string
// @Router       /api/r1/{type}/ [get]
func (h *ResourceHandler) List(c echo.Context) error {
	typ, err := h.resolve(c)
	if err != nil {
		return err
	}

	p := listParams{Limit: DefaultLimit}
	if err := echo.QueryParamsBinder(c).
		Int64("limit", &p.Limit).
		Int64("offset", &p.Offset).
		BindError(); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "limit and offset must be integers")
	}
	if err := c.Validate(&p); err != nil {
		return err
	}

	filters, secrets, err := h.parseFilters(typ, c.QueryParams())
	if err != nil {
		return err
	}

	// 1. Query the store. Password filters can only be checked against the
	// stored hashes, so those queries page in memory.
	q := ports.ResourceQuery{Filters: filters, Limit: p.Limit, Offset: p.Offset}
	if len(secrets) > 0 {
		q.Limit, q.Offset = 0, 0
	}
	docs, total, err := h.store.Find(c.Request().Context(), typ.Name(), q)
	if err != nil {
		return fmt.Errorf("list %s: %w", typ.Name(), err)
	}

	// 2. Post-filter on secrets.
	if len(secrets) > 0 {
		docs = matchSecrets(docs, secrets)
		total = int64(len(docs))
		docs = page(docs, p.Limit, p.Offset)
	}

	// 3. Render.
	objects := make([]map[string]any, 0, len(docs))
	for _, doc := range docs {
		objects = append(objects, h.present(typ, doc))
	}
	return c.JSON(http.StatusOK, listResponse{
		Meta:    listMeta{Limit: p.Limit, Offset: p.Offset, TotalCount: total},
		Objects: objects,
	})
}

// Create handles POST /api/r1/:type/. A body with an id replaces that object.
//
// @Summary      Create or replace an object
// @Tags         resources
// @Accept       json
// @Produce      json
// @Security     BearerAuth
// @Param        type  path      string          true  "Entity type (e.g. article)"
// @Param        body  body      map[string]any  true  "Object fields"
// @Success      201   {object}  map[string]any
// @Success      200   {object}  map[string]any
// @Failure      400   {object}  map[string]string
// @Failure      403   {object}  map[string]string
// @Failure      422   {object}  map[string]string
// @Router       /api/r1/{type}/ [post]
func (h *ResourceHandler) Create(c echo.Context) error {
	typ, err := h.resolve(c)
	if err != nil {
		return err
	}

	var raw map[string]any
	dec := json.NewDecoder(c.Request().Body)
	dec.UseNumber()
	if err := dec.Decode(&raw); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "invalid payload")
	}

	e, err := typ.New(raw)
	if err != nil {
		return err
	}
	doc := e.Values()
	if id, ok := doc[entity.IDField]; ok {
		if _, isInt := id.(int64); !isInt {
			return &domain.FieldError{Type: typ.Name(), Field: entity.IDField, Kind: string(field.KindID), Err: domain.ErrValidation,
				Cause: fmt.Errorf("id %v is not an integer", id)}
		}
	}

	ctx := c.Request().Context()
	if err := h.sealSecrets(c, typ, doc); err != nil {
		return err
	}
	saved, created, err := h.store.Save(ctx, typ.Name(), doc)
	if err != nil {
		return fmt.Errorf("create %s: %w", typ.Name(), err)
	}

	mode, status := "update", http.StatusOK
	if created {
		mode, status = "create", http.StatusCreated
	}
	metrics.ObjectsStoredTotal.WithLabelValues(typ.Name(), mode).Inc()
	h.log.Info().
		Str("type", typ.Name()).
		Interface("id", saved[entity.IDField]).
		Str("mode", mode).
		Str("sub", ctxSubject(c)).
		Msg("object stored")

	return c.JSON(status, h.present(typ, saved))
}

// Get handles GET /api/r1/:type/:id/.
//
// @Summary      Get one object
// @Tags         resources
// @Produce      json
// @Security     BearerAuth
// @Param        type  path      string  true  "Entity type (e.g. article)"
// @Param        id    path      int     true  "Object id"
// @Success      200   {object}  map[string]any
// @Failure      404   {object}  map[string]string
// @Router       /api/r1/{type}/{id}/ [get]
func (h *ResourceHandler) Get(c echo.Context) error {
	typ, err := h.resolve(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}

	doc, err := h.store.Get(c.Request().Context(), typ.Name(), id)
	if err != nil {
		return fmt.Errorf("get %s: %w", typ.Name(), err)
	}
	return c.JSON(http.StatusOK, h.present(typ, doc))
}

// Delete handles DELETE /api/r1/:type/:id/.
//
// @Summary      Delete one object
// @Tags         resources
// @Security     BearerAuth
// @Param        type  path  string  true  "Entity type (e.g. article)"
// @Param        id    path  int     true  "Object id"
// @Success      204
// @Failure      403   {object}  map[string]string
// @Failure      404   {object}  map[string]string
// @Router       /api/r1/{type}/{id}/ [delete]
func (h *ResourceHandler) Delete(c echo.Context) error {
	typ, err := h.resolve(c)
	if err != nil {
		return err
	}
	id, err := parseID(c)
	if err != nil {
		return err
	}

	if err := h.store.Delete(c.Request().Context(), typ.Name(), id); err != nil {
		return fmt.Errorf("delete %s: %w", typ.Name(), err)
	}
	h.log.Info().Str("type", typ.Name()).Int64("id", id).Str("sub", ctxSubject(c)).Msg("object deleted")
	return c.NoContent(http.StatusNoContent)
}

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

func (h *ResourceHandler) resolve(c echo.Context) (*entity.Type, error) {
	name := c.Param("type")
	typ, ok := h.types.Lookup(name)
	if !ok {
		return nil, fmt.Errorf("%q: %w", name, domain.ErrUnknownType)
	}
	return typ, nil
}

func parseID(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusNotFound, "object not found")
	}
	return id, nil
}

// parseFilters turns query parameters into store filters. Password filters
// are returned separately as plain-text secrets.
func (h *ResourceHandler) parseFilters(typ *entity.Type, params url.Values) ([]ports.Filter, map[string][]string, error) {
	names := make([]string, 0, len(params))
	for name := range params {
		if !reserved[name] {
			names = append(names, name)
		}
	}
	sort.Strings(names)

	var filters []ports.Filter
	secrets := make(map[string][]string)
	for _, name := range names {
		decl, ok := typ.Declaration(name)
		if !ok {
			return nil, nil, domain.NoSuchField(typ.Name(), name)
		}
		vals := params[name]

		switch decl.Kind() {
		case field.KindPassword:
			secrets[name] = vals
		case field.KindReference:
			filters = append(filters, ports.Filter{Field: name, Mode: ports.MatchRef, Values: parseIDs(vals)})
		case field.KindCollection:
			filters = append(filters, ports.Filter{Field: name, Mode: ports.MatchAll, Values: parseIDs(vals)})
		case field.KindID:
			filters = append(filters, ports.Filter{Field: name, Mode: ports.MatchEqual, Values: parseIDs(vals)})
		case field.KindBool:
			f := ports.Filter{Field: name, Mode: ports.MatchEqual}
			for _, s := range vals {
				b, err := strconv.ParseBool(s)
				if err != nil {
					return nil, nil, echo.NewHTTPError(http.StatusBadRequest, fmt.Sprintf("%s must be a boolean", name))
				}
				f.Values = append(f.Values, b)
			}
			filters = append(filters, f)
		default:
			f := ports.Filter{Field: name, Mode: ports.MatchEqual}
			for _, s := range vals {
				v, err := decl.Validate(s)
				if err != nil {
					return nil, nil, err
				}
				f.Values = append(f.Values, decl.Serialize(v))
			}
			filters = append(filters, f)
		}
	}
	return filters, secrets, nil
}

func parseIDs(vals []string) []any {
	out := make([]any, 0, len(vals))
	for _, s := range vals {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			out = append(out, n)
			continue
		}
		out = append(out, s)
	}
	return out
}

// sealSecrets hashes the top-level passwords of doc and drops passwords from
// nested snapshots. An update without a password keeps the stored hash.
func (h *ResourceHandler) sealSecrets(c echo.Context, typ *entity.Type, doc map[string]any) error {
	for _, name := range typ.FieldNames() {
		decl, _ := typ.Declaration(name)
		if decl.Kind() != field.KindPassword {
			continue
		}
		plain, _ := doc[name].(string)
		if plain == "" {
			delete(doc, name)
			if err := h.keepStoredSecret(c, typ, doc, name); err != nil {
				return err
			}
			continue
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(plain), bcrypt.DefaultCost)
		if err != nil {
			return fmt.Errorf("hash %s.%s: %w", typ.Name(), name, err)
		}
		doc[name] = string(hash)
	}

	for name, v := range doc {
		decl, _ := typ.Declaration(name)
		if decl == nil || decl.Kind() == field.KindPassword {
			continue
		}
		h.stripNested(decl, v)
	}
	return nil
}

func (h *ResourceHandler) keepStoredSecret(c echo.Context, typ *entity.Type, doc map[string]any, name string) error {
	id, ok := doc[entity.IDField].(int64)
	if !ok {
		return nil
	}
	prev, err := h.store.Get(c.Request().Context(), typ.Name(), id)
	if errors.Is(err, domain.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read %s %d: %w", typ.Name(), id, err)
	}
	if hash, ok := prev[name]; ok {
		doc[name] = hash
	}
	return nil
}

// present returns doc without any password fields, at any depth.
func (h *ResourceHandler) present(typ *entity.Type, doc map[string]any) map[string]any {
	h.stripSecrets(typ, doc)
	return doc
}

func (h *ResourceHandler) stripSecrets(typ *entity.Type, doc map[string]any) {
	for name, v := range doc {
		decl, ok := typ.Declaration(name)
		if !ok {
			continue
		}
		if decl.Kind() == field.KindPassword {
			delete(doc, name)
			continue
		}
		h.stripNested(decl, v)
	}
}

func (h *ResourceHandler) stripNested(decl *field.Declaration, v any) {
	target := decl.Target()
	if target == nil {
		return
	}
	nested, ok := h.types.Lookup(target.TypeName())
	if !ok {
		return
	}
	switch x := v.(type) {
	case map[string]any:
		h.stripSecrets(nested, x)
	case []any:
		for _, el := range x {
			if m, ok := el.(map[string]any); ok {
				h.stripSecrets(nested, m)
			}
		}
	}
}

func matchSecrets(docs []map[string]any, secrets map[string][]string) []map[string]any {
	out := docs[:0]
	for _, doc := range docs {
		if secretsMatch(doc, secrets) {
			out = append(out, doc)
		}
	}
	return out
}

func secretsMatch(doc map[string]any, secrets map[string][]string) bool {
	for name, plains := range secrets {
		hash, _ := doc[name].(string)
		if hash == "" {
			return false
		}
		for _, plain := range plains {
			if bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain)) != nil {
				return false
			}
		}
	}
	return true
}

func page(docs []map[string]any, limit, offset int64) []map[string]any {
	n := int64(len(docs))
	start := min(offset, n)
	end := n
	if limit > 0 {
		end = min(start+limit, n)
	}
	return docs[start:end]
}
