package external

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/evogene-server/internal/domain"
	"github.com/sirupsen/logrus"
	"github.com/sony/gobreaker"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

var (
	// ErrLLMNotConfigured is returned by UnconfiguredModel
	ErrLLMNotConfigured = errors.New("language model API key is not configured")

	errEmptyCompletion = errors.New("language model returned an empty response")
)

// GeminiClient calls Gemini through the genai SDK with rate limiting and a
// circuit breaker.
type GeminiClient struct {
	client      *genai.Client
	model       string
	temperature float32
	timeout     time.Duration
	limiter     *rate.Limiter
	breaker     *gobreaker.CircuitBreaker
	log         *logrus.Logger
}

// GeminiOption customizes client construction
type GeminiOption func(*genai.ClientConfig)

// WithBaseURL points the SDK at a different API host
func WithBaseURL(baseURL string) GeminiOption {
	return func(c *genai.ClientConfig) {
		c.HTTPOptions.BaseURL = baseURL
	}
}

// NewGeminiClient creates a new Gemini client
func NewGeminiClient(ctx context.Context, config domain.LLMConfig, breakers *BreakerRegistry, logger *logrus.Logger, opts ...GeminiOption) (*GeminiClient, error) {
	if config.APIKey == "" {
		return nil, ErrLLMNotConfigured
	}

	clientConfig := &genai.ClientConfig{
		APIKey:  config.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	for _, opt := range opts {
		opt(clientConfig)
	}

	client, err := genai.NewClient(ctx, clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	limit := rate.Inf
	if config.RateLimit > 0 {
		limit = rate.Limit(config.RateLimit)
	}

	return &GeminiClient{
		client:      client,
		model:       config.Model,
		temperature: config.Temperature,
		timeout:     config.Timeout,
		limiter:     rate.NewLimiter(limit, 1),
		breaker:     breakers.New("gemini", config.Breaker),
		log:         logger,
	}, nil
}

// Generate returns a free text completion
func (g *GeminiClient) Generate(ctx context.Context, system, prompt string) (string, error) {
	return g.generate(ctx, prompt, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		Temperature:       genai.Ptr(g.temperature),
	})
}

// GenerateJSON returns a completion constrained to an object with fields
func (g *GeminiClient) GenerateJSON(ctx context.Context, system, prompt string, fields []domain.SchemaField) (string, error) {
	return g.generate(ctx, prompt, &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleUser),
		Temperature:       genai.Ptr(g.temperature),
		ResponseMIMEType:  "application/json",
		ResponseSchema:    objectSchema(fields),
	})
}

func (g *GeminiClient) generate(ctx context.Context, prompt string, config *genai.GenerateContentConfig) (string, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit wait: %w", err)
	}

	if g.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.timeout)
		defer cancel()
	}

	start := time.Now()
	result, err := g.breaker.Execute(func() (interface{}, error) {
		resp, err := g.client.Models.GenerateContent(ctx, g.model, genai.Text(prompt), config)
		if err != nil {
			return nil, err
		}
		text := resp.Text()
		if text == "" {
			return nil, errEmptyCompletion
		}
		return text, nil
	})

	fields := logrus.Fields{
		"model":       g.model,
		"duration_ms": time.Since(start).Milliseconds(),
		"structured":  config.ResponseSchema != nil,
	}
	if err != nil {
		fields["breaker_state"] = g.breaker.State().String()
		g.log.WithFields(fields).WithError(err).Warn("Language model call failed")
		return "", &domain.ExternalServiceError{Service: "gemini", Err: err}
	}
	g.log.WithFields(fields).Debug("Language model call completed")

	return result.(string), nil
}

func objectSchema(fields []domain.SchemaField) *genai.Schema {
	schema := &genai.Schema{
		Type:       genai.TypeObject,
		Properties: make(map[string]*genai.Schema, len(fields)),
	}
	for _, f := range fields {
		schema.Properties[f.Name] = &genai.Schema{
			Type:        schemaType(f.Type),
			Description: f.Description,
			Enum:        f.Enum,
		}
		schema.PropertyOrdering = append(schema.PropertyOrdering, f.Name)
		if f.Required {
			schema.Required = append(schema.Required, f.Name)
		}
	}
	return schema
}

func schemaType(t string) genai.Type {
	switch t {
	case "integer":
		return genai.TypeInteger
	case "number":
		return genai.TypeNumber
	case "boolean":
		return genai.TypeBoolean
	default:
		return genai.TypeString
	}
}

// UnconfiguredModel stands in for the language model when no API key is set
type UnconfiguredModel struct{}

// Generate always fails with ErrLLMNotConfigured
func (UnconfiguredModel) Generate(context.Context, string, string) (string, error) {
	return "", ErrLLMNotConfigured
}

// GenerateJSON always fails with ErrLLMNotConfigured
func (UnconfiguredModel) GenerateJSON(context.Context, string, string, []domain.SchemaField) (string, error) {
	return "", ErrLLMNotConfigured
}
