package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"

	"fbaudio/internal/domain"
	"fbaudio/internal/remote"
)

// Client fetches and parses the embedded JSON payloads of the talk site's
// server-rendered search and detail pages.
type Client struct {
	httpClient *http.Client
	baseURL    string
}

// NewClient creates a client using the provided HTTP client. The baseURL can
// be overridden for testing; if empty the public site is used.
func NewClient(httpClient *http.Client, baseURL string) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if strings.TrimSpace(baseURL) == "" {
		baseURL = "https://www.freebuddhistaudio.com"
	}
	return &Client{httpClient: httpClient, baseURL: strings.TrimRight(baseURL, "/")}
}

// Search queries the site for talks matching the supplied term. Elements that
// fail to parse are dropped individually; the batch survives partially
// malformed payloads.
func (c *Client) Search(ctx context.Context, query string) (domain.SearchResponse, error) {
	if strings.TrimSpace(query) == "" {
		return domain.SearchResponse{}, fmt.Errorf("search query cannot be empty")
	}

	endpoint, err := url.Parse(c.baseURL + "/search")
	if err != nil {
		return domain.SearchResponse{}, err
	}
	q := endpoint.Query()
	q.Set("s", "0")
	q.Set("r", "10")
	q.Set("b", "p")
	q.Set("q", query)
	q.Set("t", "audio")
	endpoint.RawQuery = q.Encode()

	doc, err := c.fetch(ctx, endpoint.String(), "search")
	if err != nil {
		return domain.SearchResponse{}, err
	}

	fragment, err := extractBetween(doc, searchPrefix, searchEnd)
	if err != nil {
		return domain.SearchResponse{}, err
	}

	var payload map[string]any
	if err := json.Unmarshal([]byte(fragment), &payload); err != nil {
		return domain.SearchResponse{}, &MalformedResponseError{Reason: fmt.Sprintf("search payload: %v", err)}
	}

	response := domain.SearchResponse{Total: intField(payload, "total")}
	rawResults, _ := payload["results"].([]any)
	response.Results = make([]domain.Talk, 0, len(rawResults))
	for _, raw := range rawResults {
		talk, err := parseTalk(raw)
		if err != nil {
			logSkip("result", query, err)
			continue
		}
		response.Results = append(response.Results, talk)
	}
	return response, nil
}

// TalkDetails fetches the per-talk detail page, whose track entries carry the
// secondary track id and numeric duration the search payload lacks. A payload
// that fails to parse at the top level reports absence rather than an error,
// since callers treat detail as optional enrichment.
func (c *Client) TalkDetails(ctx context.Context, talkID string) (domain.Talk, bool, error) {
	endpoint, err := url.Parse(c.baseURL + "/audio/details")
	if err != nil {
		return domain.Talk{}, false, err
	}
	q := endpoint.Query()
	q.Set("num", talkID)
	endpoint.RawQuery = q.Encode()

	doc, err := c.fetch(ctx, endpoint.String(), "talk details")
	if err != nil {
		return domain.Talk{}, false, err
	}

	fragment, err := extractStatement(doc, detailPrefix)
	if err != nil {
		log.Printf("talk details %s: %v", talkID, err)
		return domain.Talk{}, false, nil
	}

	var payload any
	if err := json.Unmarshal([]byte(fragment), &payload); err != nil {
		log.Printf("talk details %s: unparsable payload: %v", talkID, err)
		return domain.Talk{}, false, nil
	}

	talk, err := parseTalk(payload)
	if err != nil {
		log.Printf("talk details %s: %v", talkID, err)
		return domain.Talk{}, false, nil
	}
	return talk, true, nil
}

func (c *Client) fetch(ctx context.Context, rawURL, op string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%s failed: %w", op, &remote.HTTPStatusError{Code: resp.StatusCode, Status: resp.Status})
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("%s: read body: %w", op, err)
	}
	return string(data), nil
}

func logSkip(kind, context string, err error) {
	log.Printf("skipping unparsable %s (%s): %v", kind, context, err)
}
