package youtube

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"
)

// DefaultOEmbedURL is the public oEmbed endpoint.
const DefaultOEmbedURL = "https://www.youtube.com/oembed"

// Info is the display metadata of a video.
type Info struct {
	ID        string
	Title     string
	Author    string
	Thumbnail string
}

// Client fetches video metadata over oEmbed.
type Client struct {
	endpoint string
	client   *http.Client
	logger   *slog.Logger
}

// NewClient creates a metadata client. An empty endpoint selects DefaultOEmbedURL.
func NewClient(endpoint string) *Client {
	if endpoint == "" {
		endpoint = DefaultOEmbedURL
	}
	return &Client{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 10 * time.Second},
		logger:   slog.With("component", "youtube"),
	}
}

type oembedResponse struct {
	Title      string `json:"title"`
	AuthorName string `json:"author_name"`
}

// Info returns the metadata for id. Lookup failures are logged and yield a
// generic title so callers can always display something.
func (c *Client) Info(ctx context.Context, id string) Info {
	info, err := c.fetch(ctx, id)
	if err != nil {
		c.logger.Warn("Failed to fetch video info", slog.String("id", id), slog.Any("error", err))
		return Info{ID: id, Title: "YouTube Video", Thumbnail: ThumbnailURL(id)}
	}
	return info
}

func (c *Client) fetch(ctx context.Context, id string) (Info, error) {
	q := url.Values{}
	q.Set("url", WatchURL(id))
	q.Set("format", "json")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return Info{}, fmt.Errorf("failed to create HTTP request: %w", err)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return Info{}, fmt.Errorf("failed to send HTTP request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return Info{}, fmt.Errorf("oembed returned status %d: %s", resp.StatusCode, body)
	}

	var out oembedResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return Info{}, fmt.Errorf("decode oembed response: %w", err)
	}

	title := out.Title
	if title == "" {
		title = "Video " + id
	}
	return Info{
		ID:        id,
		Title:     title,
		Author:    out.AuthorName,
		Thumbnail: ThumbnailURL(id),
	}, nil
}
