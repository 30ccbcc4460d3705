package collector

import (
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

const (
	// DefaultNaverEndpoint is the Naver news search API.
	DefaultNaverEndpoint = "https://openapi.naver.com/v1/search/news.json"

	// Naver caps display at 100 items per page and start at 1000.
	maxDisplay = 100
	maxStart   = 1000
)

// NaverItem is one raw search result.
type NaverItem struct {
	Title        string `json:"title"`
	OriginalLink string `json:"originallink"`
	Link         string `json:"link"`
	Description  string `json:"description"`
	PubDate      string `json:"pubDate"`
}

type naverResponse struct {
	Total   int         `json:"total"`
	Start   int         `json:"start"`
	Display int         `json:"display"`
	Items   []NaverItem `json:"items"`
}

// NaverClient fetches news search results with credentialed requests.
type NaverClient struct {
	endpoint     string
	clientID     string
	clientSecret string
	client       *http.Client
}

func NewNaverClient(clientID, clientSecret string) *NaverClient {
	return &NaverClient{
		endpoint:     DefaultNaverEndpoint,
		clientID:     strings.TrimSpace(clientID),
		clientSecret: strings.TrimSpace(clientSecret),
		client: &http.Client{
			Timeout: 15 * time.Second,
		},
	}
}

// Configured reports whether API credentials are present.
func (c *NaverClient) Configured() bool {
	return c != nil && c.clientID != "" && c.clientSecret != ""
}

// SetEndpoint overrides the API endpoint, for tests.
func (c *NaverClient) SetEndpoint(endpoint string) {
	c.endpoint = endpoint
}

// Search fetches up to maxItems results for a query, paging through the API
// in display-sized steps. Results arrive newest first.
func (c *NaverClient) Search(ctx context.Context, query string, maxItems int) ([]NaverItem, error) {
	if !c.Configured() {
		return nil, fmt.Errorf("naver API credentials are not configured")
	}
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, fmt.Errorf("query is required")
	}
	if maxItems <= 0 {
		maxItems = maxDisplay
	}

	var items []NaverItem
	for start := 1; start <= maxStart && len(items) < maxItems; start += maxDisplay {
		display := maxDisplay
		if remaining := maxItems - len(items); remaining < display {
			display = remaining
		}

		page, err := c.fetchPage(ctx, query, start, display)
		if err != nil {
			return nil, err
		}
		items = append(items, page.Items...)

		if start+len(page.Items) > page.Total || len(page.Items) < display {
			break
		}
	}

	return items, nil
}

func (c *NaverClient) fetchPage(ctx context.Context, query string, start, display int) (*naverResponse, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("display", strconv.Itoa(display))
	params.Set("start", strconv.Itoa(start))
	params.Set("sort", "date")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("build naver request: %w", err)
	}
	req.Header.Set("X-Naver-Client-Id", c.clientID)
	req.Header.Set("X-Naver-Client-Secret", c.clientSecret)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call naver API: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, fmt.Errorf("read naver response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("naver API returned status %d: %s", resp.StatusCode, truncate(string(body), 200))
	}

	var decoded naverResponse
	if err := json.Unmarshal(body, &decoded); err != nil {
		return nil, fmt.Errorf("decode naver response: %w", err)
	}
	return &decoded, nil
}

// ParsePubDate parses the API's RFC 822 style publication timestamp.
func ParsePubDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}
	for _, layout := range []string{time.RFC1123Z, time.RFC1123, time.RFC822Z} {
		if t, err := time.Parse(layout, raw); err == nil {
			utc := t.UTC()
			return &utc
		}
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
