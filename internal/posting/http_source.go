package posting

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

const defaultFetchTimeout = 30 * time.Second

// HTTPSource fetches the current posting batch from a JSON endpoint
// returning an array of postings. It is the default Source wiring for
// the CLI; anything implementing Source can replace it.
type HTTPSource struct {
	url    string
	client *http.Client
}

// NewHTTPSource creates a source reading from the given URL.
func NewHTTPSource(url string, timeout time.Duration) *HTTPSource {
	if timeout <= 0 {
		timeout = defaultFetchTimeout
	}
	return &HTTPSource{
		url:    url,
		client: &http.Client{Timeout: timeout},
	}
}

// Fetch retrieves and decodes the current batch.
func (s *HTTPSource) Fetch(ctx context.Context) ([]Posting, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.url, http.NoBody)
	if err != nil {
		return nil, fmt.Errorf("build postings request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetch postings: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch postings: unexpected status %d", resp.StatusCode)
	}

	var batch []Posting
	if err := json.NewDecoder(resp.Body).Decode(&batch); err != nil {
		return nil, fmt.Errorf("decode postings: %w", err)
	}

	return batch, nil
}
