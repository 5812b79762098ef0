// Package feeds fetches raw disaster reports and hands them to the domain
// normalizers. Each source type satisfies pipeline.Source.
package feeds

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

const userAgent = "disaster-merge-service/1.0"

// newRESTClient builds the shared HTTP client for the JSON feeds. Each refresh
// fetches a feed once; a failure leaves that source empty until the next run.
func newRESTClient(timeout time.Duration) *resty.Client {
	return resty.New().
		SetTimeout(timeout).
		SetHeader("Accept", "application/json").
		SetHeader("User-Agent", userAgent).
		SetRetryCount(0)
}

// getBody performs a GET and returns the body of a 200 response.
func getBody(ctx context.Context, client *resty.Client, url string, params map[string]string) ([]byte, error) {
	resp, err := client.R().
		SetContext(ctx).
		SetQueryParams(params).
		Get(url)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", url, err)
	}
	if resp.StatusCode() != http.StatusOK {
		body := resp.String()
		if len(body) > 256 {
			body = body[:256]
		}
		return nil, fmt.Errorf("request %s: status %d: %s", url, resp.StatusCode(), body)
	}
	return resp.Body(), nil
}
