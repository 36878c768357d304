// Package naver searches the Naver shopping catalogue for estimate line
// items.
package naver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/manash/olive/internal/provider"
	"github.com/manash/olive/pkg/models"
)

const (
	defaultBaseURL = "https://openapi.naver.com"
	defaultTimeout = 15 * time.Second

	DefaultDisplay = 20
	MaxDisplay     = 100
	DefaultSort    = "asc"

	// Naver's search APIs allow 10 calls per second per application.
	defaultRate  = 10
	defaultBurst = 5
)

var ErrEmptyQuery = errors.New("search query cannot be empty")

// Config carries the application credentials. The embedded APIKey holds
// the client secret.
type Config struct {
	provider.Config
	ClientID          string
	RequestsPerSecond float64
}

type Client struct {
	clientID     string
	clientSecret string
	baseURL      string
	httpClient   *http.Client
	limiter      *rate.Limiter
}

func New(cfg Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.APIKey == "" {
		return nil, provider.ErrAPIKeyRequired
	}
	baseURL := defaultBaseURL
	if cfg.BaseURL != "" {
		baseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	rps := cfg.RequestsPerSecond
	if rps <= 0 {
		rps = defaultRate
	}
	return &Client{
		clientID:     cfg.ClientID,
		clientSecret: cfg.APIKey,
		baseURL:      baseURL,
		httpClient:   provider.NewHTTPClient(&cfg.Config, defaultTimeout),
		limiter:      rate.NewLimiter(rate.Limit(rps), defaultBurst),
	}, nil
}

type searchResponse struct {
	Total int               `json:"total"`
	Start int               `json:"start"`
	Items []json.RawMessage `json:"items"`
}

// Normalize trims the query and clamps paging parameters into the ranges
// the API accepts.
func Normalize(q models.SearchQuery) models.SearchQuery {
	q.Query = strings.TrimSpace(q.Query)
	if q.Display <= 0 {
		q.Display = DefaultDisplay
	}
	if q.Display > MaxDisplay {
		q.Display = MaxDisplay
	}
	if q.Start < 1 {
		q.Start = 1
	}
	if q.Sort == "" {
		q.Sort = DefaultSort
	}
	return q
}

func (c *Client) Search(ctx context.Context, q models.SearchQuery) (*models.SearchResult, error) {
	q = Normalize(q)
	if q.Query == "" {
		return nil, ErrEmptyQuery
	}
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	params := url.Values{}
	params.Set("query", q.Query)
	params.Set("display", strconv.Itoa(q.Display))
	params.Set("start", strconv.Itoa(q.Start))
	params.Set("sort", q.Sort)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/v1/search/shop.json?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("X-Naver-Client-Id", c.clientID)
	req.Header.Set("X-Naver-Client-Secret", c.clientSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &provider.StatusError{Code: resp.StatusCode, Message: strings.TrimSpace(string(body))}
	}

	var parsed searchResponse
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	result := &models.SearchResult{
		Items: make([]models.ShopItem, 0, len(parsed.Items)),
		Total: parsed.Total,
		Start: parsed.Start,
	}
	if result.Start == 0 {
		result.Start = q.Start
	}
	for _, raw := range parsed.Items {
		item, err := decodeItem(raw)
		if err != nil {
			return nil, fmt.Errorf("failed to parse item: %w", err)
		}
		result.Items = append(result.Items, item)
	}
	return result, nil
}

// decodeItem tolerates lprice arriving as a number or a formatted string.
func decodeItem(raw json.RawMessage) (models.ShopItem, error) {
	var wire struct {
		models.ShopItem
		LPrice any `json:"lprice"`
	}
	if err := json.Unmarshal(raw, &wire); err != nil {
		return models.ShopItem{}, err
	}
	item := wire.ShopItem
	switch v := wire.LPrice.(type) {
	case string:
		item.LPrice = DigitsOnly(v)
	case float64:
		item.LPrice = DigitsOnly(strconv.FormatFloat(v, 'f', 0, 64))
	default:
		item.LPrice = "0"
	}
	return item, nil
}

// DigitsOnly strips every non-digit; an empty result becomes "0".
func DigitsOnly(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "0"
	}
	return b.String()
}
