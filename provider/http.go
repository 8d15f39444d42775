package provider

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/pkg/errors"
	"github.com/rustyorb/auto-chat/model"
)

// maxErrorBody caps how much of a failed response is kept on a RequestError.
const maxErrorBody = 4096

// postJSON sends body as JSON and returns the response only for 2xx statuses.
// The caller owns the returned body.
func postJSON(ctx context.Context, client *http.Client, provider, endpoint string, body any, headers map[string]string) (*http.Response, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, errors.Wrap(err, "failed to encode request body")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, &model.ConfigurationError{Provider: provider, Reason: "invalid endpoint " + endpoint}
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, &model.RequestError{Provider: provider, Err: err}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		defer resp.Body.Close()
		data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &model.RequestError{
			Provider:   provider,
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(data)),
		}
	}

	return resp, nil
}

// joinURL appends path to base without doubling slashes.
func joinURL(base, path string) string {
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(path, "/")
}

// classifyTransportError maps an SDK error that carries no HTTP status onto
// the taxonomy: network and context failures are transient RequestErrors,
// anything else came from decoding the body.
func classifyTransportError(provider string, err error) error {
	var urlErr *url.Error
	var netErr net.Error
	switch {
	case errors.As(err, &urlErr),
		errors.As(err, &netErr),
		errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, context.Canceled),
		errors.Is(err, io.ErrUnexpectedEOF):
		return &model.RequestError{Provider: provider, Err: err}
	default:
		return &model.ResponseFormatError{Provider: provider, Reason: "failed to decode response body", Err: err}
	}
}

func bearer(apiKey string) map[string]string {
	if apiKey == "" {
		return nil
	}
	return map[string]string{"Authorization": "Bearer " + apiKey}
}
