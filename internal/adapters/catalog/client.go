// Package catalog is a read-only playlist store backed by a remote moodlist
// playlist API.
package catalog

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/ewilliams-labs/moodlist/internal/core/domain"
	"github.com/ewilliams-labs/moodlist/internal/core/ports"
	"github.com/ewilliams-labs/moodlist/internal/logging"
)

// compile-time interface assertion
var _ ports.PlaylistRepository = (*Client)(nil)

// Config configures the remote catalog client. ClientID enables OAuth2
// client-credentials authentication against TokenURL.
type Config struct {
	BaseURL      string
	ClientID     string
	ClientSecret string
	TokenURL     string
	Scopes       []string
	MaxRetries   int
	RetryBackoff time.Duration
	Timeout      time.Duration
}

// Client is an HTTP client for the remote playlist catalog.
type Client struct {
	httpClient  *http.Client
	baseURL     string
	maxRetries  int
	baseBackoff time.Duration
	logger      zerolog.Logger
}

// NewClient constructs a catalog client. A nil httpClient selects a default
// one with cfg.Timeout, wrapped for OAuth2 when credentials are configured.
func NewClient(cfg Config, httpClient *http.Client) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.ClientID != "" && cfg.TokenURL != "" {
		cc := &clientcredentials.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			TokenURL:     cfg.TokenURL,
			Scopes:       cfg.Scopes,
		}
		// The token source reuses httpClient for the token endpoint.
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, httpClient)
		authed := cc.Client(ctx)
		authed.Timeout = httpClient.Timeout
		httpClient = authed
	}

	maxRetries, backoff := cfg.MaxRetries, cfg.RetryBackoff
	if maxRetries <= 0 {
		maxRetries = defaultMaxRetries
	}
	if backoff <= 0 {
		backoff = time.Duration(defaultBackoffMs) * time.Millisecond
	}

	return &Client{
		httpClient:  httpClient,
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		maxRetries:  maxRetries,
		baseBackoff: backoff,
		logger:      logging.Component("catalog"),
	}
}

// Query fetches playlists matching q from the catalog.
func (c *Client) Query(ctx context.Context, q ports.PlaylistQuery) ([]domain.Playlist, error) {
	params := url.Values{}
	if q.Emotion != "" {
		params.Set("emotion", q.Emotion)
	}
	if len(q.Languages) > 0 {
		params.Set("languages", strings.Join(q.Languages, ","))
	}
	endpoint := c.baseURL + "/playlists"
	if len(params) > 0 {
		endpoint += "?" + params.Encode()
	}

	var body []wirePlaylist
	if err := c.getJSON(ctx, endpoint, &body); err != nil {
		return nil, err
	}
	if len(body) == 0 {
		return nil, nil
	}
	out := make([]domain.Playlist, 0, len(body))
	for _, p := range body {
		out = append(out, mapPlaylistToDomain(p))
	}
	return out, nil
}

func (c *Client) GetByID(ctx context.Context, id string) (domain.Playlist, error) {
	var body wirePlaylist
	if err := c.getJSON(ctx, c.baseURL+"/playlists/"+url.PathEscape(id), &body); err != nil {
		return domain.Playlist{}, err
	}
	return mapPlaylistToDomain(body), nil
}

func (c *Client) Save(context.Context, domain.Playlist) error {
	return domain.ErrReadOnlyStore
}

func (c *Client) ReplaceAll(context.Context, []domain.Playlist) error {
	return domain.ErrReadOnlyStore
}

func (c *Client) getJSON(ctx context.Context, endpoint string, out any) error {
	resp, err := c.get(ctx, endpoint)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return domain.ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return fmt.Errorf("catalog adapter: status %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("catalog adapter: decode response: %w", err)
	}
	return nil
}
