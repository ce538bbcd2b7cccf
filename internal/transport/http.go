// Package transport connects the client side mutation controller and cache to
// an authoritative board, over HTTP or in process.
package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"boardcore/pkg/domain"
	"boardcore/pkg/wire"
)

// StatusError is returned for failed responses that carry no typed error.
type StatusError struct {
	Status  int
	Message string
}

func (e StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("server responded %d", e.Status)
	}
	return fmt.Sprintf("server responded %d: %s", e.Status, e.Message)
}

// HTTP talks to the boardcore HTTP API.
type HTTP struct {
	base   string
	client *http.Client
}

// NewHTTP returns a client for the API rooted at baseURL. A nil client gets
// one with a 30 second timeout.
func NewHTTP(baseURL string, client *http.Client) *HTTP {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	return &HTTP{base: strings.TrimRight(baseURL, "/"), client: client}
}

// Fetch returns the authoritative collection. It matches cache.Fetcher.
func (h *HTTP) Fetch(ctx context.Context) (domain.Collection, error) {
	var body wire.CategoriesBody
	if err := h.do(ctx, http.MethodGet, "/categories", nil, &body); err != nil {
		return nil, err
	}
	if body.Categories == nil {
		body.Categories = domain.Collection{}
	}
	return body.Categories, nil
}

// CreateCategory posts req and returns the stored category.
func (h *HTTP) CreateCategory(ctx context.Context, req domain.CreateCategoryRequest) (domain.Category, error) {
	var body wire.CategoryBody
	err := h.do(ctx, http.MethodPost, "/categories", req, &body)
	return body.Category, err
}

// UpdateCategory patches the category named by req.ID.
func (h *HTTP) UpdateCategory(ctx context.Context, req domain.UpdateCategoryRequest) (domain.Category, error) {
	var body wire.CategoryBody
	err := h.do(ctx, http.MethodPatch, categoryPath(req.ID), req, &body)
	return body.Category, err
}

// RepositionCategory moves the category named by req.ID to req.Position.
func (h *HTTP) RepositionCategory(ctx context.Context, req domain.RepositionCategoryRequest) (domain.Category, error) {
	var body wire.CategoryBody
	err := h.do(ctx, http.MethodPut, categoryPath(req.ID)+"/position", wire.PositionBody{Position: req.Position}, &body)
	return body.Category, err
}

// DeleteCategory removes the category named by req.ID and returns the
// server's receipt.
func (h *HTTP) DeleteCategory(ctx context.Context, req domain.DeleteCategoryRequest) (domain.DeleteReceipt, error) {
	var receipt domain.DeleteReceipt
	err := h.do(ctx, http.MethodDelete, categoryPath(req.ID), nil, &receipt)
	return receipt, err
}

func categoryPath(id string) string {
	return "/categories/" + url.PathEscape(id)
}

func (h *HTTP) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, h.base+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := h.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 300 {
		return decodeError(resp)
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func decodeError(resp *http.Response) error {
	var eb wire.ErrorBody
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if err := json.Unmarshal(data, &eb); err != nil {
		return StatusError{Status: resp.StatusCode, Message: strings.TrimSpace(string(data))}
	}
	if typed := eb.Typed(); typed != nil {
		return typed
	}
	return StatusError{Status: resp.StatusCode, Message: eb.Error}
}

// IsStatus reports whether err is a StatusError with the given status.
func IsStatus(err error, status int) bool {
	var se StatusError
	return errors.As(err, &se) && se.Status == status
}
