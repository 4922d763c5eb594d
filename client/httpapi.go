package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/nicolasparada/go-errs"

	"github.com/parleyhq/parley/types"
)

// HTTPAPI talks to the parley JSON API. Identity is forwarded the same
// way the authenticating gateway does it, so the client can be pointed
// straight at a service instance in development.
type HTTPAPI struct {
	BaseURL  string
	Identity types.Identity

	// HTTPClient defaults to http.DefaultClient.
	HTTPClient *http.Client
}

func (api *HTTPAPI) Conversations(ctx context.Context) ([]types.Conversation, error) {
	var out []types.Conversation
	return out, api.do(ctx, http.MethodGet, "/api/conversations", nil, &out)
}

func (api *HTTPAPI) Messages(ctx context.Context, conversationID string, page, limit int) ([]types.Message, error) {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))

	path := "/api/conversations/" + url.PathEscape(conversationID) + "/messages?" + q.Encode()

	var out []types.Message
	return out, api.do(ctx, http.MethodGet, path, nil, &out)
}

func (api *HTTPAPI) CreateConversation(ctx context.Context, in types.CreateConversation) (types.Conversation, error) {
	var out types.Conversation
	return out, api.do(ctx, http.MethodPost, "/api/conversations", map[string]any{
		"other":   in.Other,
		"content": in.Content,
	}, &out)
}

func (api *HTTPAPI) CreateMessage(ctx context.Context, conversationID, content string) (types.Message, error) {
	path := "/api/conversations/" + url.PathEscape(conversationID) + "/messages"

	var out types.Message
	return out, api.do(ctx, http.MethodPost, path, map[string]any{
		"content": content,
	}, &out)
}

func (api *HTTPAPI) MarkConversationRead(ctx context.Context, conversationID string) error {
	path := "/api/conversations/" + url.PathEscape(conversationID) + "/read"
	return api.do(ctx, http.MethodPost, path, nil, nil)
}

func (api *HTTPAPI) UnreadCount(ctx context.Context) (int, error) {
	var out types.UnreadCount
	if err := api.do(ctx, http.MethodGet, "/api/unread-count", nil, &out); err != nil {
		return 0, err
	}
	return out.Count, nil
}

func (api *HTTPAPI) do(ctx context.Context, method, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("json marshal request body: %w", err)
		}
		r = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, strings.TrimSuffix(api.BaseURL, "/")+path, r)
	if err != nil {
		return fmt.Errorf("new http request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
	}
	req.Header.Set("X-User-Id", api.Identity.ID)
	req.Header.Set("X-User-Name", api.Identity.Name)
	req.Header.Set("X-User-Avatar", api.Identity.Avatar)

	httpClient := api.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
		return apiError(resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	if out == nil {
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("json unmarshal response body: %w", err)
	}

	return nil
}

func apiError(statusCode int, msg string) error {
	if msg == "" {
		msg = http.StatusText(statusCode)
	}

	switch statusCode {
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return errs.InvalidArgumentError(msg)
	case http.StatusUnauthorized:
		return errs.Unauthenticated
	case http.StatusForbidden:
		return errs.PermissionDeniedError(msg)
	case http.StatusNotFound:
		return errs.NotFoundError(msg)
	case http.StatusConflict:
		return errs.ConflictError(msg)
	}

	return fmt.Errorf("unexpected http status %d: %s", statusCode, msg)
}
