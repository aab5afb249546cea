package external

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/evogene-server/internal/domain"
)

// ErrEvoEndpointNotSet is returned when no scoring endpoint is configured
var ErrEvoEndpointNotSet = errors.New("ERROR: EVO2_END_POINT environment variable is not set.")

// maxEvoResponseSize caps the scoring response read into memory
const maxEvoResponseSize = 8 << 20

// EvoClient posts variant records to the remote Evo2 scoring model.
// Each call is a single attempt bounded by the configured timeout.
type EvoClient struct {
	endpoint   string
	timeout    time.Duration
	httpClient *http.Client
}

// NewEvoClient creates a new Evo2 scoring client
func NewEvoClient(config domain.EvoConfig) *EvoClient {
	return &EvoClient{
		endpoint: config.Endpoint,
		timeout:  config.Timeout,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
	}
}

// Score sends record to the scoring service and returns the raw JSON body
func (c *EvoClient) Score(ctx context.Context, record domain.VariantRecord) ([]byte, error) {
	if c.endpoint == "" {
		return nil, ErrEvoEndpointNotSet
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return nil, c.unexpected(fmt.Errorf("encoding payload: %w", err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(payload))
	if err != nil {
		return nil, c.unexpected(fmt.Errorf("creating request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		if isTimeout(err) {
			return nil, &domain.ExternalServiceError{
				Service: "evo2",
				Err:     fmt.Errorf("Modal API Request Timed Out after %s. Server is offline/slow.", formatSeconds(c.timeout)),
			}
		}
		return nil, c.network(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxEvoResponseSize))
	if err != nil {
		if isTimeout(err) {
			return nil, &domain.ExternalServiceError{
				Service: "evo2",
				Err:     fmt.Errorf("Modal API Request Timed Out after %s. Server is offline/slow.", formatSeconds(c.timeout)),
			}
		}
		return nil, c.network(fmt.Errorf("reading response: %w", err))
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, c.network(fmt.Errorf("%d %s: %s", resp.StatusCode, http.StatusText(resp.StatusCode), truncate(string(body), 200)))
	}

	if !json.Valid(body) {
		return nil, c.unexpected(fmt.Errorf("response is not valid JSON"))
	}

	return body, nil
}

func (c *EvoClient) network(err error) error {
	return &domain.ExternalServiceError{
		Service: "evo2",
		Err:     fmt.Errorf("Network/HTTP Error calling Modal Evo Model: %w", err),
	}
}

func (c *EvoClient) unexpected(err error) error {
	return &domain.ExternalServiceError{
		Service: "evo2",
		Err:     fmt.Errorf("Unexpected Error during Evo Model call: %w", err),
	}
}

// Message returns the user-facing text of a scoring error
func Message(err error) string {
	var extErr *domain.ExternalServiceError
	if errors.As(err, &extErr) {
		return extErr.Err.Error()
	}
	return err.Error()
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func formatSeconds(d time.Duration) string {
	if d%time.Second == 0 {
		return fmt.Sprintf("%ds", int64(d/time.Second))
	}
	return d.String()
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
