package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"

	"tenant-ledger/internal/util"
)

// Stripe-style keys and bearer tokens that may leak into provider error text.
var secretPattern = regexp.MustCompile(`(?i)(sk|rk|pk)_(live|test)_[0-9a-z]+|bearer\s+[0-9a-z._\-]+`)

const maxErrorBody = 2048

// apiError is a non-2xx response from a REST gateway.
type apiError struct {
	Status int
	Body   string
}

func (e *apiError) Error() string {
	return fmt.Sprintf("gateway returned status %d: %s", e.Status, e.Body)
}

// doJSON sends body as JSON (when non-nil) and decodes a 2xx response into out.
func doJSON(ctx context.Context, client *http.Client, method, url string, headers map[string]string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	return send(client, req, out)
}

func send(client *http.Client, req *http.Request, out any) error {
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("send request: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	// Authorize.Net prefixes JSON with a byte order mark.
	raw = bytes.TrimPrefix(raw, []byte("\xef\xbb\xbf"))

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if len(raw) > maxErrorBody {
			raw = raw[:maxErrorBody]
		}
		return &apiError{Status: resp.StatusCode, Body: string(raw)}
	}
	if out == nil || len(raw) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// restError classifies a transport or API failure from a REST gateway.
func restError(provider string, err error, secrets ...string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return &util.PaymentError{Provider: provider, Message: "request timed out", Err: util.ErrGatewayTimeout}
	}
	var ue interface{ Timeout() bool }
	if errors.As(err, &ue) && ue.Timeout() {
		return &util.PaymentError{Provider: provider, Message: "request timed out", Err: util.ErrGatewayTimeout}
	}
	return &util.PaymentError{Provider: provider, Message: Sanitize(err.Error(), secrets...), Err: util.ErrPaymentFailed}
}
