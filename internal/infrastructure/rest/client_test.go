package rest

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ella-cms/scribble/internal/core/domain"
)

func newTestClient(t *testing.T, h http.HandlerFunc, signer *TokenSigner) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	c, err := NewClient(Options{BaseURL: srv.URL, Signer: signer}, zerolog.Nop())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	return c
}

func TestNewClient_InvalidBaseURL(t *testing.T) {
	if _, err := NewClient(Options{BaseURL: "localhost"}, zerolog.Nop()); err == nil {
		t.Fatal("expected error for base url without scheme")
	}
}

func TestCollectionURL(t *testing.T) {
	c, err := NewClient(Options{BaseURL: "http://cms.local/", Prefix: "api/r1/"}, zerolog.Nop())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := c.CollectionURL("article"); got != "http://cms.local/api/r1/article/" {
		t.Fatalf("unexpected url %q", got)
	}
}

func TestList_SendsFilterAndDecodesObjects(t *testing.T) {
	var gotQuery url.Values
	var gotPath, gotReqID string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotQuery = r.URL.Query()
		gotReqID = r.Header.Get("X-Request-ID")
		_, _ = io.WriteString(w, `{"meta":{"total_count":1},"objects":[{"id":3,"username":"johndoe"}]}`)
	}, nil)

	objs, err := c.List(context.Background(), "user", url.Values{"username": {"johndoe"}, "limit": {"0"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotPath != "/api/r1/user/" {
		t.Errorf("unexpected path %q", gotPath)
	}
	if gotQuery.Get("username") != "johndoe" || gotQuery.Get("limit") != "0" {
		t.Errorf("unexpected query %v", gotQuery)
	}
	if _, err := uuid.Parse(gotReqID); err != nil {
		t.Errorf("request id %q is not a uuid", gotReqID)
	}
	if len(objs) != 1 || objs[0]["id"] != json.Number("3") {
		t.Fatalf("unexpected objects %#v", objs)
	}
}

func TestCreate_PostsJSON(t *testing.T) {
	var gotBody, gotType, gotMethod string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotType = r.Header.Get("Content-Type")
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{"id":9,"name":"ella"}`)
	}, nil)

	out, err := c.Create(context.Background(), "site", []byte(`{"name":"ella"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotMethod != http.MethodPost || gotType != "application/json" || gotBody != `{"name":"ella"}` {
		t.Errorf("unexpected request %s %s %s", gotMethod, gotType, gotBody)
	}
	if out["id"] != json.Number("9") {
		t.Errorf("unexpected response %#v", out)
	}
}

func TestDelete_AddressesDetailURL(t *testing.T) {
	var gotPath string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("unexpected method %s", r.Method)
		}
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusNoContent)
	}, nil)

	if err := c.Delete(context.Background(), "site", int64(4)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotPath != "/api/r1/site/4/" {
		t.Errorf("unexpected path %q", gotPath)
	}
}

func TestErrorStatus_BecomesTransportError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusUnprocessableEntity)
		_, _ = io.WriteString(w, `{"error":"site.name: invalid field value"}`)
	}, nil)

	_, err := c.Create(context.Background(), "site", []byte(`{}`))
	if !errors.Is(err, domain.ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
	var te *domain.TransportError
	if !errors.As(err, &te) || te.Status != http.StatusUnprocessableEntity {
		t.Fatalf("expected status 422, got %#v", err)
	}
	if !strings.Contains(err.Error(), "invalid field value") {
		t.Errorf("error message lost: %v", err)
	}
}

func TestMalformedBody_BecomesTransportError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, _ *http.Request) {
		_, _ = io.WriteString(w, `{"objects": [`)
	}, nil)

	_, err := c.List(context.Background(), "site", nil)
	if !errors.Is(err, domain.ErrTransport) {
		t.Fatalf("expected ErrTransport, got %v", err)
	}
}

func TestConnectionRefused_BecomesTransportError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	base := srv.URL
	srv.Close()

	c, err := NewClient(Options{BaseURL: base, Timeout: time.Second}, zerolog.Nop())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	_, err = c.List(context.Background(), "site", nil)
	var te *domain.TransportError
	if !errors.As(err, &te) || te.Status != 0 {
		t.Fatalf("expected transport error without status, got %v", err)
	}
}

func TestSigner_AddsBearerToken(t *testing.T) {
	signer := NewTokenSigner("secret", "cli", "editor", time.Minute)
	var claims jwt.MapClaims
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		raw := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		claims = jwt.MapClaims{}
		_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) { return []byte("secret"), nil })
		if err != nil {
			t.Errorf("parse token: %v", err)
		}
		_, _ = io.WriteString(w, `{"objects":[]}`)
	}, signer)

	if _, err := c.List(context.Background(), "site", nil); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if claims["sub"] != "cli" || claims["role"] != "editor" {
		t.Fatalf("unexpected claims %v", claims)
	}
}

func TestLogin_PostsCredentialsAndUsesToken(t *testing.T) {
	var gotPath string
	var gotBody map[string]string
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/auth/token":
			gotPath = r.URL.Path
			_ = json.NewDecoder(r.Body).Decode(&gotBody)
			_, _ = io.WriteString(w, `{"token":"abc.def.ghi"}`)
		default:
			gotAuth = r.Header.Get("Authorization")
			_, _ = io.WriteString(w, `{"objects":[]}`)
		}
	}))
	defer srv.Close()

	c, err := NewClient(Options{BaseURL: srv.URL}, zerolog.Nop())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	token, err := c.Login(context.Background(), "johndoe", "s3cret")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if gotPath != "/auth/token" || gotBody["username"] != "johndoe" || gotBody["password"] != "s3cret" {
		t.Fatalf("unexpected login request %s %v", gotPath, gotBody)
	}
	if token != "abc.def.ghi" {
		t.Fatalf("unexpected token %q", token)
	}

	authed, err := NewClient(Options{BaseURL: srv.URL, Token: token}, zerolog.Nop())
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	if _, err := authed.List(context.Background(), "site", nil); err != nil {
		t.Fatalf("list: %v", err)
	}
	if gotAuth != "Bearer abc.def.ghi" {
		t.Fatalf("unexpected authorization %q", gotAuth)
	}
}
