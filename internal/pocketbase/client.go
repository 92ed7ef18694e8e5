package pocketbase

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// Record is a PocketBase record as returned by the REST API. Field
// names follow the collection schema; "id" is the PocketBase record id.
type Record map[string]any

// Client talks to a PocketBase instance via its REST API using an
// admin token. Authenticate must be called before any other method.
type Client struct {
	baseURL    string
	httpClient *http.Client
	token      string
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
	}
}

type authResponse struct {
	Token string `json:"token"`
}

// Authenticate exchanges admin credentials for a token. All later
// requests carry it as "Authorization: Admin <token>".
func (c *Client) Authenticate(ctx context.Context, email, password string) error {
	body, err := json.Marshal(map[string]string{
		"identity": email,
		"password": password,
	})
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.baseURL+"/api/admins/auth-with-password", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("pocketbase auth: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("pocketbase auth: status %d", resp.StatusCode)
	}
	var auth authResponse
	if err := json.NewDecoder(resp.Body).Decode(&auth); err != nil {
		return fmt.Errorf("pocketbase auth: decode: %w", err)
	}
	if auth.Token == "" {
		return errors.New("pocketbase auth: empty token")
	}
	c.token = auth.Token
	return nil
}

type listResponse struct {
	Page       int      `json:"page"`
	PerPage    int      `json:"perPage"`
	TotalItems int      `json:"totalItems"`
	Items      []Record `json:"items"`
}

// ListOptions narrow a List call. Zero values are omitted from the
// request so PocketBase defaults apply.
type ListOptions struct {
	Filter  string
	Sort    string
	Page    int
	PerPage int
}

// List fetches one page of records from a collection.
func (c *Client) List(ctx context.Context, collection string, opts ListOptions) ([]Record, error) {
	q := url.Values{}
	if opts.Filter != "" {
		q.Set("filter", opts.Filter)
	}
	if opts.Sort != "" {
		q.Set("sort", opts.Sort)
	}
	if opts.Page > 0 {
		q.Set("page", strconv.Itoa(opts.Page))
	}
	if opts.PerPage > 0 {
		q.Set("perPage", strconv.Itoa(opts.PerPage))
	}

	endpoint := fmt.Sprintf("%s/api/collections/%s/records", c.baseURL, collection)
	if len(q) > 0 {
		endpoint += "?" + q.Encode()
	}

	var list listResponse
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &list); err != nil {
		return nil, fmt.Errorf("list %s: %w", collection, err)
	}
	return list.Items, nil
}

// ListAll walks every page of a collection.
func (c *Client) ListAll(ctx context.Context, collection, filter string) ([]Record, error) {
	var all []Record
	for page := 1; ; page++ {
		items, err := c.List(ctx, collection, ListOptions{
			Filter: filter, Page: page, PerPage: 200,
		})
		if err != nil {
			return nil, err
		}
		all = append(all, items...)
		if len(items) < 200 {
			return all, nil
		}
	}
}

// GetByID fetches one record; ErrNotFound when the id does not exist.
func (c *Client) GetByID(ctx context.Context, collection, id string) (Record, error) {
	endpoint := fmt.Sprintf("%s/api/collections/%s/records/%s", c.baseURL, collection, id)
	var rec Record
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &rec); err != nil {
		return nil, err
	}
	return rec, nil
}

// Create inserts a record and returns it with its assigned id.
func (c *Client) Create(ctx context.Context, collection string, fields Record) (Record, error) {
	endpoint := fmt.Sprintf("%s/api/collections/%s/records", c.baseURL, collection)
	var rec Record
	if err := c.do(ctx, http.MethodPost, endpoint, fields, &rec); err != nil {
		return nil, fmt.Errorf("create %s: %w", collection, err)
	}
	return rec, nil
}

// Update patches an existing record.
func (c *Client) Update(ctx context.Context, collection, id string, fields Record) (Record, error) {
	endpoint := fmt.Sprintf("%s/api/collections/%s/records/%s", c.baseURL, collection, id)
	var rec Record
	if err := c.do(ctx, http.MethodPatch, endpoint, fields, &rec); err != nil {
		return nil, fmt.Errorf("update %s/%s: %w", collection, id, err)
	}
	return rec, nil
}

// Delete removes a record.
func (c *Client) Delete(ctx context.Context, collection, id string) error {
	endpoint := fmt.Sprintf("%s/api/collections/%s/records/%s", c.baseURL, collection, id)
	if err := c.do(ctx, http.MethodDelete, endpoint, nil, nil); err != nil {
		return fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Admin "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode >= 400:
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("status %d: %s", resp.StatusCode, data)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
