// Package variant turns free text into a validated variant record using the
// language model in structured output mode.
package variant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/evogene-server/internal/domain"
	"github.com/evogene-server/pkg/external"
	"github.com/evogene-server/pkg/hgvs"
	"github.com/sirupsen/logrus"
)

const systemPrompt = "You are a genomic data extraction specialist. " +
	"Extract the variant described by the user into the required JSON fields: " +
	"chromosome (for example chr12), variant_position (the 1-based genomic coordinate as an integer), " +
	"alternative (the single alternate nucleotide A, C, G or T) and genome (hg38 or hg19, default hg38). " +
	"Return only the JSON object."

// Fields is the response schema sent to the language model
var Fields = []domain.SchemaField{
	{Name: "chromosome", Type: "string", Description: "Chromosome name, e.g. chr12", Required: true},
	{Name: "variant_position", Type: "integer", Description: "Genomic position of the variant", Required: true},
	{Name: "alternative", Type: "string", Description: "Alternate allele, one of A, C, G, T", Required: true},
	{Name: "genome", Type: "string", Description: "Reference genome build", Enum: []string{hgvs.BuildHG38, hgvs.BuildHG19}},
}

// Cache stores extraction results keyed by query
type Cache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
}

// Extractor converts a free text query into a variant record
type Extractor struct {
	llm       domain.LanguageModel
	validator *hgvs.Validator
	cache     Cache
	cacheTTL  time.Duration
	log       *logrus.Logger
}

// NewExtractor creates an extractor. cache may be nil.
func NewExtractor(llm domain.LanguageModel, cache Cache, cacheTTL time.Duration, logger *logrus.Logger) *Extractor {
	return &Extractor{
		llm:       llm,
		validator: hgvs.NewValidator(),
		cache:     cache,
		cacheTTL:  cacheTTL,
		log:       logger,
	}
}

// Extract returns the variant named in query. A query that already holds a
// genomic substitution in HGVS notation is parsed directly; anything else is
// sent to the language model and validated.
func (e *Extractor) Extract(ctx context.Context, query string) (*domain.VariantRecord, error) {
	if sub, ok := hgvs.FindGenomicSubstitution(query); ok {
		record := &domain.VariantRecord{
			Chromosome:      sub.Chromosome,
			VariantPosition: sub.Position,
			Alternative:     sub.Alternative,
			Genome:          buildHint(query),
		}
		if err := e.validator.NormalizeRecord(record); err != nil {
			return nil, &domain.ExtractionError{Reason: err.Error(), Raw: sub.String()}
		}
		e.log.WithField("notation", sub.String()).Debug("Variant parsed from HGVS notation")
		return record, nil
	}

	key := external.QueryKey("extraction", query)

	if e.cache != nil {
		var cached domain.VariantRecord
		hit, err := e.cache.Get(ctx, key, &cached)
		if err != nil {
			e.log.WithError(err).Warn("Extraction cache read failed")
		} else if hit {
			e.log.WithField("cache_key", key).Debug("Extraction cache hit")
			return &cached, nil
		}
	}

	raw, err := e.llm.GenerateJSON(ctx, systemPrompt, query, Fields)
	if err != nil {
		return nil, fmt.Errorf("language model extraction: %w", err)
	}

	record, err := e.Parse(raw)
	if err != nil {
		return nil, err
	}

	if e.cache != nil {
		if err := e.cache.Set(ctx, key, record, e.cacheTTL); err != nil {
			e.log.WithError(err).Warn("Extraction cache write failed")
		}
	}

	return record, nil
}

// Parse strictly decodes and normalizes a raw model response
func (e *Extractor) Parse(raw string) (*domain.VariantRecord, error) {
	body := stripCodeFence(raw)

	var fields map[string]json.RawMessage
	if err := json.Unmarshal([]byte(body), &fields); err != nil {
		return nil, &domain.ExtractionError{Reason: fmt.Sprintf("invalid JSON: %v", err), Raw: raw}
	}
	if fields == nil {
		return nil, &domain.ExtractionError{Reason: "expected a JSON object", Raw: raw}
	}

	record := &domain.VariantRecord{}
	var err error

	if record.Chromosome, err = requiredString(fields, "chromosome", raw); err != nil {
		return nil, err
	}
	if record.VariantPosition, err = requiredInteger(fields, "variant_position", raw); err != nil {
		return nil, err
	}
	if record.Alternative, err = requiredString(fields, "alternative", raw); err != nil {
		return nil, err
	}
	if value, ok := fields["genome"]; ok && !isNull(value) {
		if err := json.Unmarshal(value, &record.Genome); err != nil {
			return nil, &domain.ExtractionError{Field: "genome", Reason: "must be a string", Raw: raw}
		}
	}

	if err := e.validator.NormalizeRecord(record); err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			return nil, &domain.ExtractionError{Field: verr.Field, Reason: verr.Message, Raw: raw}
		}
		return nil, &domain.ExtractionError{Reason: err.Error(), Raw: raw}
	}

	return record, nil
}

// buildHint picks hg19 when the query names it, leaving the default otherwise
func buildHint(query string) string {
	lower := strings.ToLower(query)
	if strings.Contains(lower, "hg19") || strings.Contains(lower, "grch37") {
		return hgvs.BuildHG19
	}
	return ""
}

func requiredString(fields map[string]json.RawMessage, name, raw string) (string, error) {
	value, ok := fields[name]
	if !ok || isNull(value) {
		return "", &domain.ExtractionError{Field: name, Reason: "field required", Raw: raw}
	}
	var s string
	if err := json.Unmarshal(value, &s); err != nil {
		return "", &domain.ExtractionError{Field: name, Reason: "must be a string", Raw: raw}
	}
	return s, nil
}

func requiredInteger(fields map[string]json.RawMessage, name, raw string) (int64, error) {
	value, ok := fields[name]
	if !ok || isNull(value) {
		return 0, &domain.ExtractionError{Field: name, Reason: "field required", Raw: raw}
	}
	var f float64
	if err := json.Unmarshal(value, &f); err != nil {
		return 0, &domain.ExtractionError{Field: name, Reason: "must be an integer", Raw: raw}
	}
	if f != math.Trunc(f) || math.Abs(f) > 1<<53 {
		return 0, &domain.ExtractionError{Field: name, Reason: "must be an integer", Raw: raw}
	}
	return int64(f), nil
}

func isNull(value json.RawMessage) bool {
	return bytes.Equal(bytes.TrimSpace(value), []byte("null"))
}

func stripCodeFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimPrefix(s, "json")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}
