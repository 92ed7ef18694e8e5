package telkussa

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"telkatv/internal/ratelimit"
)

const defaultBaseURL = "https://telkussa.fi/API"

var baseURL = defaultBaseURL

const defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64) AppleWebKit/537.36"

// Client handles schedule API requests. Every request waits on the
// limiter first, so callers never have to pace themselves.
type Client struct {
	httpClient *http.Client
	limiter    ratelimit.Limiter
	userAgent  string
}

// NewClient creates a new schedule API client.
func NewClient(limiter ratelimit.Limiter, userAgent string, timeout time.Duration) *Client {
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		limiter:    limiter,
		userAgent:  userAgent,
	}
}

// FetchDay retrieves the raw program list for one channel on one
// calendar date (YYYYMMDD). The response is either a bare JSON array or
// an object wrapping a "programs" array, depending on the API version.
func (c *Client) FetchDay(ctx context.Context, channelID int64, date string) ([]RawProgram, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	u := fmt.Sprintf("%s/Channel/%d/%s", baseURL, channelID, date)

	body, err := c.get(ctx, u)
	if err != nil {
		return nil, err
	}

	var programs []RawProgram
	if err := json.Unmarshal(body, &programs); err == nil {
		return programs, nil
	}

	var wrapper struct {
		Programs []RawProgram `json:"programs"`
	}
	if err := json.Unmarshal(body, &wrapper); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return wrapper.Programs, nil
}

// FetchChannels retrieves the upstream channel directory.
func (c *Client) FetchChannels(ctx context.Context) ([]ChannelInfo, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	body, err := c.get(ctx, baseURL+"/Channels")
	if err != nil {
		return nil, err
	}

	var channels []ChannelInfo
	if err := json.Unmarshal(body, &channels); err != nil {
		return nil, fmt.Errorf("decode channel list: %w", err)
	}
	return channels, nil
}

func (c *Client) get(ctx context.Context, u string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Accept-Language", "fi-FI,fi;q=0.9,en;q=0.8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	buf, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	return buf, nil
}
