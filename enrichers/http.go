// Package enrichers contains the built-in enricher implementations and the
// central registration table wiring them into the enricher registry.
package enrichers

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"
)

// defaultTimeout bounds every outbound request unless a node parameter
// overrides it.
const defaultTimeout = 10 * time.Second

func newHTTPClient(timeout time.Duration) *http.Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	return &http.Client{Timeout: timeout}
}

// getJSON fetches a URL and decodes the JSON response into out. A non-2xx
// status or a non-JSON body fails the call.
func getJSON(ctx context.Context, client *http.Client, url string, headers map[string]string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("GET %s: unexpected status %d", url, resp.StatusCode)
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("GET %s: non-JSON response: %w", url, err)
	}
	return nil
}

// paramTimeout reads an optional "timeout" node parameter in seconds.
func paramTimeout(v any) time.Duration {
	switch x := v.(type) {
	case float64:
		return time.Duration(x) * time.Second
	case int:
		return time.Duration(x) * time.Second
	case json.Number:
		if n, err := x.Int64(); err == nil {
			return time.Duration(n) * time.Second
		}
	}
	return 0
}
