package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"slices"
	"strings"
	"testing"

	"boardcore/internal/board"
	"boardcore/internal/observability"
	"boardcore/pkg/domain"
	"boardcore/pkg/wire"
)

func newServer(t *testing.T, opts ...RouterOption) *httptest.Server {
	t.Helper()
	seq := 0
	svc := board.NewInMemoryService(
		board.WithLogger(observability.DiscardLogger()),
		board.WithIDGenerator(func() string {
			seq++
			return fmt.Sprintf("c%d", seq)
		}),
	)
	srv := httptest.NewServer(NewRouter(svc, observability.DiscardLogger(), opts...))
	t.Cleanup(srv.Close)
	return srv
}

func do(t *testing.T, method, url string, body any) (*http.Response, []byte) {
	t.Helper()
	var rd *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal: %v", err)
		}
		rd = bytes.NewReader(data)
	} else {
		rd = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, rd)
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, url, err)
	}
	defer func() { _ = resp.Body.Close() }()
	var buf bytes.Buffer
	_, _ = buf.ReadFrom(resp.Body)
	return resp, buf.Bytes()
}

func TestCategoryLifecycle(t *testing.T) {
	srv := newServer(t)
	for _, title := range []string{"A", "B", "C"} {
		resp, body := do(t, http.MethodPost, srv.URL+"/categories", domain.CreateCategoryRequest{Title: title})
		if resp.StatusCode != http.StatusCreated {
			t.Fatalf("create %s: %d %s", title, resp.StatusCode, body)
		}
	}

	resp, body := do(t, http.MethodPut, srv.URL+"/categories/c3/position", wire.PositionBody{Position: 0})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("reposition: %d %s", resp.StatusCode, body)
	}

	title := "A2"
	resp, body = do(t, http.MethodPatch, srv.URL+"/categories/c1", domain.UpdateCategoryRequest{Title: &title})
	var updated wire.CategoryBody
	if resp.StatusCode != http.StatusOK || json.Unmarshal(body, &updated) != nil || updated.Category.Title != "A2" {
		t.Fatalf("update: %d %s", resp.StatusCode, body)
	}

	resp, body = do(t, http.MethodDelete, srv.URL+"/categories/c2", nil)
	var receipt domain.DeleteReceipt
	if resp.StatusCode != http.StatusOK || json.Unmarshal(body, &receipt) != nil || receipt.Affected != 1 {
		t.Fatalf("delete: %d %s", resp.StatusCode, body)
	}

	resp, body = do(t, http.MethodGet, srv.URL+"/categories", nil)
	var list wire.CategoriesBody
	if err := json.Unmarshal(body, &list); err != nil || resp.StatusCode != http.StatusOK {
		t.Fatalf("list: %d %s", resp.StatusCode, body)
	}
	if !slices.Equal(list.Categories.IDs(), []string{"c3", "c1"}) {
		t.Fatalf("unexpected list %v", list.Categories.IDs())
	}
}

func TestErrorMapping(t *testing.T) {
	srv := newServer(t)
	do(t, http.MethodPost, srv.URL+"/categories", domain.CreateCategoryRequest{Title: "A"})

	cases := []struct {
		name   string
		method string
		path   string
		body   any
		status int
		code   string
	}{
		{"missing delete", http.MethodDelete, "/categories/zz", nil, http.StatusNotFound, wire.CodeNotFound},
		{"invalid position", http.MethodPut, "/categories/c1/position", wire.PositionBody{Position: 5}, http.StatusBadRequest, wire.CodeInvalidPosition},
		{"validation", http.MethodPost, "/categories", domain.CreateCategoryRequest{}, http.StatusBadRequest, wire.CodeValidation},
		{"malformed", http.MethodPost, "/categories", map[string]any{"title": 7}, http.StatusBadRequest, wire.CodeBadRequest},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp, body := do(t, tc.method, srv.URL+tc.path, tc.body)
			var eb wire.ErrorBody
			if err := json.Unmarshal(body, &eb); err != nil {
				t.Fatalf("decode %s: %v", body, err)
			}
			if resp.StatusCode != tc.status || eb.Code != tc.code {
				t.Fatalf("expected %d/%s, got %d/%s (%s)", tc.status, tc.code, resp.StatusCode, eb.Code, eb.Error)
			}
		})
	}
}

type failingService struct{ CategoryService }

func (failingService) ListCategories(context.Context) (domain.Collection, error) {
	return nil, errors.New("disk on fire")
}

func TestInternalErrorsAreOpaque(t *testing.T) {
	srv := httptest.NewServer(NewRouter(failingService{}, observability.DiscardLogger()))
	defer srv.Close()
	resp, body := do(t, http.MethodGet, srv.URL+"/categories", nil)
	if resp.StatusCode != http.StatusInternalServerError || strings.Contains(string(body), "fire") {
		t.Fatalf("unexpected response %d %s", resp.StatusCode, body)
	}
}

func TestHealthAndMetrics(t *testing.T) {
	srv := newServer(t, WithMetricsHandler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte("boardcore_up 1\n"))
	})))
	if resp, _ := do(t, http.MethodGet, srv.URL+"/healthz", nil); resp.StatusCode != http.StatusOK {
		t.Fatalf("healthz: %d", resp.StatusCode)
	}
	if resp, body := do(t, http.MethodGet, srv.URL+"/metrics", nil); resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "boardcore_up") {
		t.Fatalf("metrics: %d %s", resp.StatusCode, body)
	}

	plain := newServer(t)
	if resp, _ := do(t, http.MethodGet, plain.URL+"/metrics", nil); resp.StatusCode != http.StatusNotFound {
		t.Fatalf("metrics must not be mounted by default, got %d", resp.StatusCode)
	}
}
