package trigger

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// callStrategyEndpoint posts to a running site's OnChangeStrategy HTTP
// endpoint, mirroring the teacher's bounded-timeout HTTP client used for
// the same purpose in wave/tooling/events.go.
func callStrategyEndpoint(url string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return err
	}

	client := &http.Client{Timeout: 10 * time.Second}
	resp, err := client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("trigger.callStrategyEndpoint: %s returned status %d", url, resp.StatusCode)
	}
	return nil
}
