package external

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/evogene-server/internal/domain"
	"github.com/sony/gobreaker"
)

// ImagingClient sends brain scans to the image classification service
type ImagingClient struct {
	endpoint   string
	httpClient *http.Client
	breaker    *gobreaker.CircuitBreaker
}

// imagingResponse is the classification service payload. MaskPNG is base64.
type imagingResponse struct {
	Score   float64 `json:"score"`
	Label   string  `json:"label"`
	MaskPNG string  `json:"mask_png"`
}

// NewImagingClient creates a new image classification client
func NewImagingClient(config domain.ImagingConfig, breakers *BreakerRegistry) *ImagingClient {
	return &ImagingClient{
		endpoint: config.Endpoint,
		httpClient: &http.Client{
			Timeout: config.Timeout,
		},
		breaker: breakers.New("imaging", domain.CircuitBreakerConfig{
			MaxRequests:  1,
			Interval:     time.Minute,
			Timeout:      30 * time.Second,
			MinRequests:  3,
			FailureRatio: 0.6,
		}),
	}
}

// Classify uploads image as multipart field "image" and decodes the verdict
func (c *ImagingClient) Classify(ctx context.Context, filename string, image []byte) (*domain.ScanClassification, error) {
	if c.endpoint == "" {
		return nil, &domain.ExternalServiceError{Service: "imaging", Err: fmt.Errorf("image classification endpoint is not configured")}
	}

	result, err := c.breaker.Execute(func() (interface{}, error) {
		return c.classify(ctx, filename, image)
	})
	if err != nil {
		return nil, &domain.ExternalServiceError{Service: "imaging", Err: err}
	}
	return result.(*domain.ScanClassification), nil
}

func (c *ImagingClient) classify(ctx context.Context, filename string, image []byte) (*domain.ScanClassification, error) {
	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("image", filename)
	if err != nil {
		return nil, fmt.Errorf("creating form file: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, fmt.Errorf("writing image: %w", err)
	}
	if err := writer.Close(); err != nil {
		return nil, fmt.Errorf("closing multipart body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, &body)
	if err != nil {
		return nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("calling classification service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("classification service returned %d: %s", resp.StatusCode, truncate(string(msg), 200))
	}

	var payload imagingResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decoding classification response: %w", err)
	}
	if payload.Score < 0 || payload.Score > 1 {
		return nil, fmt.Errorf("classification score out of range: %v", payload.Score)
	}

	var mask []byte
	if payload.MaskPNG != "" {
		mask, err = base64.StdEncoding.DecodeString(payload.MaskPNG)
		if err != nil {
			return nil, fmt.Errorf("decoding mask: %w", err)
		}
	}

	return &domain.ScanClassification{
		Score: payload.Score,
		Label: payload.Label,
		Mask:  mask,
	}, nil
}
