package util

import (
	"context"
	"fmt"
	"io"
	"net/http"
)

// MaxDownloadBytes caps remote image bodies.
const MaxDownloadBytes = 32 << 20

// GetBytes fetches url with client and returns the body of a 200 response.
func GetBytes(ctx context.Context, client *http.Client, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("GET %s: %s", url, resp.Status)
	}
	b, err := io.ReadAll(io.LimitReader(resp.Body, MaxDownloadBytes+1))
	if err != nil {
		return nil, err
	}
	if len(b) > MaxDownloadBytes {
		return nil, fmt.Errorf("GET %s: body exceeds %d bytes", url, MaxDownloadBytes)
	}
	return b, nil
}
