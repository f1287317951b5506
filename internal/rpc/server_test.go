package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/socialhub/internal/model"
)

type echoInput struct {
	Text  string    `json:"text"`
	Since time.Time `json:"since"`
}

func newTestServer() *Server {
	s := NewServer(nil)
	s.Query("echo.get", func(ctx context.Context, input Input) (any, error) {
		var in echoInput
		if err := input.Decode(&in); err != nil {
			return nil, err
		}
		return map[string]any{"text": in.Text, "since": in.Since}, nil
	})
	s.Mutation("echo.set", func(ctx context.Context, input Input) (any, error) {
		var in echoInput
		if err := input.Decode(&in); err != nil {
			return nil, err
		}
		if in.Text == "" {
			return nil, model.NewInvalidContentError()
		}
		return in, nil
	})
	s.Query("echo.fail", func(ctx context.Context, input Input) (any, error) {
		return nil, errors.New("db exploded")
	})
	return s
}

func newRouter(s *Server) http.Handler {
	r := chi.NewRouter()
	r.Handle(Path+"/{procedure}", s)
	return r
}

func decodeErrorBody(t *testing.T, w *httptest.ResponseRecorder) errorResponse {
	t.Helper()
	var body errorResponse
	if err := json.NewDecoder(w.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode error body: %v", err)
	}
	return body
}

func TestServer_QueryWithInput(t *testing.T) {
	since := time.Date(2026, 2, 3, 4, 5, 6, 0, time.UTC)
	env, _ := DateTransformer{}.Serialize(echoInput{Text: "hi", Since: since})
	raw, _ := json.Marshal(env)

	req := httptest.NewRequest(http.MethodGet, Path+"/echo.get?input="+url.QueryEscape(string(raw)), nil)
	w := httptest.NewRecorder()
	newRouter(newTestServer()).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", w.Code, w.Body.String())
	}
	var resp successResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if got := resp.Result.Data.Meta.Values["since"]; len(got) != 1 || got[0] != TypeDate {
		t.Errorf("meta.values[since] = %v", got)
	}

	var out echoInput
	if err := (DateTransformer{}).Deserialize(resp.Result.Data, &out); err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	if out.Text != "hi" || !out.Since.Equal(since) {
		t.Errorf("out = %+v", out)
	}
}

func TestServer_MutationValidationError(t *testing.T) {
	req := httptest.NewRequest(http.MethodPost, Path+"/echo.set", nil)
	w := httptest.NewRecorder()
	newRouter(newTestServer()).ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	body := decodeErrorBody(t, w)
	if body.Error.Data.Code != "BAD_REQUEST" || body.Error.Data.HTTPStatus != 400 {
		t.Errorf("data = %+v", body.Error.Data)
	}
	if body.Error.Data.APICode != model.ErrCodeInvalidContent {
		t.Errorf("apiCode = %q", body.Error.Data.APICode)
	}
	if body.Error.Data.Category != "validation" || body.Error.Data.Action == "" {
		t.Errorf("category/action = %q/%q", body.Error.Data.Category, body.Error.Data.Action)
	}
	if body.Error.Code != -32600 {
		t.Errorf("json-rpc code = %d, want -32600", body.Error.Code)
	}
}

func TestServer_UnknownProcedure(t *testing.T) {
	w := httptest.NewRecorder()
	newRouter(newTestServer()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, Path+"/nope.missing", nil))

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", w.Code)
	}
	if body := decodeErrorBody(t, w); body.Error.Data.Path != "nope.missing" {
		t.Errorf("path = %q", body.Error.Data.Path)
	}
}

func TestServer_WrongMethod(t *testing.T) {
	tests := []struct {
		method, path, allow string
	}{
		{http.MethodPost, "/echo.get", http.MethodGet},
		{http.MethodGet, "/echo.set", http.MethodPost},
	}
	for _, tt := range tests {
		t.Run(tt.method+tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			newRouter(newTestServer()).ServeHTTP(w, httptest.NewRequest(tt.method, Path+tt.path, nil))

			if w.Code != http.StatusMethodNotAllowed {
				t.Fatalf("status = %d, want 405", w.Code)
			}
			if got := w.Header().Get("Allow"); got != tt.allow {
				t.Errorf("Allow = %q, want %q", got, tt.allow)
			}
		})
	}
}

func TestServer_MalformedInput(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, Path+"/echo.get?input="+url.QueryEscape("{not json"), nil)
	w := httptest.NewRecorder()
	newRouter(newTestServer()).ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", w.Code)
	}
	if body := decodeErrorBody(t, w); body.Error.Data.APICode != model.ErrCodeInvalidInput {
		t.Errorf("apiCode = %q", body.Error.Data.APICode)
	}
}

func TestServer_UnexpectedErrorIsInternal(t *testing.T) {
	w := httptest.NewRecorder()
	newRouter(newTestServer()).ServeHTTP(w, httptest.NewRequest(http.MethodGet, Path+"/echo.fail", nil))

	if w.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", w.Code)
	}
	body := decodeErrorBody(t, w)
	if body.Error.Data.Code != "INTERNAL_SERVER_ERROR" {
		t.Errorf("code = %q", body.Error.Data.Code)
	}
	if body.Error.Message == "db exploded" {
		t.Error("internal error details must not leak")
	}
}

func TestServer_WithoutChiUsesURLPath(t *testing.T) {
	w := httptest.NewRecorder()
	newTestServer().ServeHTTP(w, httptest.NewRequest(http.MethodGet, Path+"/echo.get", nil))
	if w.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Code)
	}
}

func TestServer_DuplicateRegistrationPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	s := NewServer(nil)
	s.Query("a", nil)
	s.Mutation("a", nil)
}

func TestServer_Procedures(t *testing.T) {
	procs := newTestServer().Procedures()
	if procs["echo.get"] != Query || procs["echo.set"] != Mutation {
		t.Errorf("Procedures() = %v", procs)
	}
}
