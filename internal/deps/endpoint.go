package deps

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const endpointTimeout = 3 * time.Second

// CheckEndpoint checks an OpenAI-compatible server by listing its models.
// The dependency is optional: scripts fail on their own when it is down.
func CheckEndpoint(ctx context.Context, name, baseURL, desc string) Status {
	status := Status{
		Name:        name,
		Command:     baseURL,
		Description: desc,
		Optional:    true,
	}
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		status.Detail = "no URL configured"
		return status
	}

	ctx, cancel := context.WithTimeout(ctx, endpointTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, baseURL+"/models", nil)
	if err != nil {
		status.Detail = fmt.Sprintf("invalid URL: %v", err)
		return status
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		status.Detail = fmt.Sprintf("unreachable: %v", err)
		return status
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		status.Detail = fmt.Sprintf("unexpected status %d", resp.StatusCode)
		return status
	}
	status.Available = true
	return status
}
