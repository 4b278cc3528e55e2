// Package remote implements the client for the two remote collections the
// sync engine reconciles against.
//
// The remote store exposes categories and flashcards as owner-scoped REST
// collections supporting upsert-by-id and offset/limit select ordered by
// updated_at. Upserts are idempotent, which is what makes the engine's
// at-least-once push safe: a retried push re-uploads already-accepted rows
// without effect.
package remote

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
	"time"
)

// CategoryRow is the wire shape of a remote category.
type CategoryRow struct {
	ID        string `json:"id"`
	Owner     string `json:"owner"`
	Name      string `json:"name"`
	Icon      string `json:"icon"`
	Color     string `json:"color"`
	UpdatedAt int64  `json:"updated_at"`
}

// FlashcardRow is the wire shape of a remote flashcard.
type FlashcardRow struct {
	ID         string `json:"id"`
	Owner      string `json:"owner"`
	Word       string `json:"word"`
	ImageURL   string `json:"image_url"`
	CategoryID string `json:"category_id"`
	CreatedAt  int64  `json:"created_at"`
	UpdatedAt  int64  `json:"updated_at"`
}

// HTTPError is a non-2xx response from the remote store.
type HTTPError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *HTTPError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("http %d %s: %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("http %d: %s", e.StatusCode, e.Message)
}

// Client talks to the remote collections over HTTP with bearer-token auth.
//
// Transient failures (transport errors, 429, 5xx) are retried with
// exponential backoff up to maxRetries before the error is surfaced to the
// engine, which applies its own cooldown policy on top.
type Client struct {
	baseURL    string
	owner      string
	token      string
	httpClient *http.Client
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// NewClient creates a remote client. owner scopes every request to the
// authenticated account. If httpClient is nil a 15 second timeout client
// is used.
func NewClient(baseURL, owner, token string, httpClient *http.Client) *Client {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		baseURL:    baseURL,
		owner:      strings.TrimSpace(owner),
		token:      strings.TrimSpace(token),
		httpClient: httpClient,
		maxRetries: 3,
		baseDelay:  100 * time.Millisecond,
		maxDelay:   2 * time.Second,
	}
}

// Authenticated reports whether the client carries the credentials needed
// to reach the remote store.
func (c *Client) Authenticated() bool {
	return c.baseURL != "" && c.owner != "" && c.token != ""
}

// UpsertCategories uploads one batch of category rows. Upsert is keyed by
// id: rows that already exist remotely are overwritten.
func (c *Client) UpsertCategories(ctx context.Context, rows []CategoryRow) error {
	if len(rows) == 0 {
		return nil
	}
	for i := range rows {
		rows[i].Owner = c.owner
	}
	return c.doJSON(ctx, http.MethodPost, "/rest/v1/categories", rows, nil)
}

// UpsertFlashcards uploads one batch of flashcard rows.
func (c *Client) UpsertFlashcards(ctx context.Context, rows []FlashcardRow) error {
	if len(rows) == 0 {
		return nil
	}
	for i := range rows {
		rows[i].Owner = c.owner
	}
	return c.doJSON(ctx, http.MethodPost, "/rest/v1/flashcards", rows, nil)
}

// SelectCategories fetches one page of the owner's categories ordered by
// updated_at.
func (c *Client) SelectCategories(ctx context.Context, offset, limit int) ([]CategoryRow, error) {
	var out []CategoryRow
	err := c.doJSON(ctx, http.MethodGet, c.selectPath("categories", offset, limit), nil, &out)
	return out, err
}

// SelectFlashcards fetches one page of the owner's flashcards ordered by
// updated_at.
func (c *Client) SelectFlashcards(ctx context.Context, offset, limit int) ([]FlashcardRow, error) {
	var out []FlashcardRow
	err := c.doJSON(ctx, http.MethodGet, c.selectPath("flashcards", offset, limit), nil, &out)
	return out, err
}

func (c *Client) selectPath(collection string, offset, limit int) string {
	q := url.Values{}
	q.Set("owner", "eq."+c.owner)
	q.Set("order", "updated_at.asc")
	q.Set("offset", strconv.Itoa(offset))
	q.Set("limit", strconv.Itoa(limit))
	return fmt.Sprintf("/rest/v1/%s?%s", collection, q.Encode())
}

func (c *Client) doJSON(ctx context.Context, method, requestPath string, body, out any) error {
	var bodyBytes []byte
	if body != nil {
		var err error
		bodyBytes, err = json.Marshal(body)
		if err != nil {
			return err
		}
	}
	for attempt := 0; ; attempt++ {
		var bodyReader io.Reader
		if bodyBytes != nil {
			bodyReader = bytes.NewReader(bodyBytes)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+requestPath, bodyReader)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+c.token)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
			req.Header.Set("Prefer", "resolution=merge-duplicates")
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			if attempt < c.maxRetries {
				if waitErr := waitWithContext(ctx, c.retryDelay(attempt+1)); waitErr != nil {
					return waitErr
				}
				continue
			}
			return err
		}
		payload, readErr := io.ReadAll(resp.Body)
		_ = resp.Body.Close()
		if readErr != nil {
			return readErr
		}

		if resp.StatusCode >= 200 && resp.StatusCode <= 299 {
			if out == nil || len(payload) == 0 {
				return nil
			}
			return json.Unmarshal(payload, out)
		}

		if (resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500) && attempt < c.maxRetries {
			if waitErr := waitWithContext(ctx, c.retryDelay(attempt+1)); waitErr != nil {
				return waitErr
			}
			continue
		}

		var errPayload struct {
			Code    string `json:"code"`
			Message string `json:"message"`
		}
		_ = json.Unmarshal(payload, &errPayload)
		return &HTTPError{
			StatusCode: resp.StatusCode,
			Code:       errPayload.Code,
			Message:    errPayload.Message,
		}
	}
}

func (c *Client) retryDelay(attempt int) time.Duration {
	delay := c.baseDelay
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= c.maxDelay {
			return c.maxDelay
		}
	}
	if delay > c.maxDelay {
		return c.maxDelay
	}
	return delay
}

func waitWithContext(ctx context.Context, delay time.Duration) error {
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
