package client

import (
	"context"
	"fmt"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/valyala/fasthttp"

	"portfolio_tracker/internal/domain/entity"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// getJSON performs a GET against a provider API, honoring the context
// deadline when one is set and falling back to the client's own timeout
// otherwise. The returned error is already classified for the resolution
// engine's retry decision.
func getJSON(ctx context.Context, hc *fasthttp.Client, providerID, url string, timeout time.Duration, headers map[string]string) ([]byte, error) {
	req := fasthttp.AcquireRequest()
	defer fasthttp.ReleaseRequest(req)
	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.Set("Accept", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseResponse(resp)

	var err error
	if deadline, ok := ctx.Deadline(); ok {
		err = hc.DoDeadline(req, resp, deadline)
	} else {
		err = hc.DoTimeout(req, resp, timeout)
	}
	if err != nil {
		// Network-level faults (timeouts, resets) are transient.
		return nil, &entity.ProviderError{Provider: providerID, Retryable: true, Err: err}
	}

	status := resp.StatusCode()
	if status != fasthttp.StatusOK {
		return nil, &entity.ProviderError{
			Provider:   providerID,
			StatusCode: status,
			Retryable:  isRetryableStatus(status),
			Err:        fmt.Errorf("request to %s failed: %s", url, fasthttp.StatusMessage(status)),
		}
	}

	// Copy the body out of fasthttp's reusable buffer.
	body := make([]byte, len(resp.Body()))
	copy(body, resp.Body())
	return body, nil
}

// isRetryableStatus reports whether an HTTP status marks a transient
// failure: rate limits and server-side errors are retried, other client
// errors are not.
func isRetryableStatus(status int) bool {
	return status == fasthttp.StatusTooManyRequests || status >= 500
}
