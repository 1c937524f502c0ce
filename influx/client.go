package influx

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

// Client is a minimal InfluxDB 2.x API client covering the surfaces the
// diagnostic needs: health, bucket administration, and existence queries.
type Client struct {
	baseURL string
	token   string
	org     string
	http    *http.Client
}

// NewClient creates a client. timeout bounds every request; zero defaults
// to 5 seconds, matching the reachability contract.
func NewClient(baseURL, token, org string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		org:     org,
		http:    &http.Client{Timeout: timeout},
	}
}

// HasToken reports whether an API token is configured. Health works
// unauthenticated; everything else does not.
func (c *Client) HasToken() bool {
	return c.token != ""
}

// Health performs the reachability check and returns the HTTP status code.
func (c *Client) Health(ctx context.Context) (int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/health", nil)
	if err != nil {
		return 0, err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, fmt.Errorf("influx: health: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	return resp.StatusCode, nil
}

// Buckets lists bucket names visible to the token.
func (c *Client) Buckets(ctx context.Context) ([]string, error) {
	body, err := c.get(ctx, "/api/v2/buckets?limit=100")
	if err != nil {
		return nil, err
	}

	var parsed struct {
		Buckets []struct {
			Name string `json:"name"`
		} `json:"buckets"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, fmt.Errorf("influx: decoding bucket list: %w", err)
	}

	names := make([]string, 0, len(parsed.Buckets))
	for _, b := range parsed.Buckets {
		names = append(names, b.Name)
	}
	return names, nil
}

// CreateBucket creates a bucket in the configured org.
func (c *Client) CreateBucket(ctx context.Context, name string) error {
	orgID, err := c.orgID(ctx)
	if err != nil {
		return err
	}

	payload, _ := json.Marshal(map[string]any{
		"name":  name,
		"orgID": orgID,
	})
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v2/buckets", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", "Token "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("influx: creating bucket %s: %w", name, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("influx: creating bucket %s: status %d", name, resp.StatusCode)
	}
	return nil
}

// HasData runs a bounded existence query: any point in the window for the
// measurement, or for the whole bucket when measurement is empty. A zero
// window queries from the epoch, which distinguishes "never written" from
// "quiet lately".
func (c *Client) HasData(ctx context.Context, bucket, measurement string, window time.Duration) (bool, error) {
	var b strings.Builder
	fmt.Fprintf(&b, "from(bucket: %q)", bucket)
	if window > 0 {
		fmt.Fprintf(&b, " |> range(start: -%ds)", int(window.Seconds()))
	} else {
		b.WriteString(" |> range(start: 0)")
	}
	if measurement != "" {
		fmt.Fprintf(&b, " |> filter(fn: (r) => r._measurement == %q)", measurement)
	}
	b.WriteString(" |> limit(n: 1)")

	payload, _ := json.Marshal(map[string]string{
		"query": b.String(),
		"type":  "flux",
	})
	u := c.baseURL + "/api/v2/query?org=" + url.QueryEscape(c.org)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, u, bytes.NewReader(payload))
	if err != nil {
		return false, err
	}
	req.Header.Set("Authorization", "Token "+c.token)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/csv")

	resp, err := c.http.Do(req)
	if err != nil {
		return false, fmt.Errorf("influx: query: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return false, fmt.Errorf("influx: reading query response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return false, fmt.Errorf("influx: query: status %d", resp.StatusCode)
	}

	return hasRows(string(body)), nil
}

func (c *Client) orgID(ctx context.Context) (string, error) {
	body, err := c.get(ctx, "/api/v2/orgs?org="+url.QueryEscape(c.org))
	if err != nil {
		return "", err
	}

	var parsed struct {
		Orgs []struct {
			ID string `json:"id"`
		} `json:"orgs"`
	}
	if err := json.Unmarshal(body, &parsed); err != nil {
		return "", fmt.Errorf("influx: decoding org list: %w", err)
	}
	if len(parsed.Orgs) == 0 {
		return "", fmt.Errorf("influx: org %q not found", c.org)
	}
	return parsed.Orgs[0].ID, nil
}

func (c *Client) get(ctx context.Context, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Token "+c.token)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("influx: GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("influx: GET %s: %w", path, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("influx: GET %s: status %d", path, resp.StatusCode)
	}
	return body, nil
}

// hasRows reports whether an annotated-CSV query response contains at
// least one data row. Annotation lines start with '#'; the first plain
// line of each table is its header.
func hasRows(body string) bool {
	sawHeader := false
	for _, line := range strings.Split(body, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if sawHeader {
			return true
		}
		sawHeader = true
	}
	return false
}
