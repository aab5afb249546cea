package variant

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/evogene-server/internal/domain"
	"github.com/evogene-server/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type stubModel struct {
	output string
	err    error
	calls  int
	fields []domain.SchemaField
}

func (s *stubModel) Generate(context.Context, string, string) (string, error) {
	return "", errors.New("not used")
}

func (s *stubModel) GenerateJSON(_ context.Context, _, _ string, fields []domain.SchemaField) (string, error) {
	s.calls++
	s.fields = fields
	return s.output, s.err
}

type memoryCache struct {
	entries map[string][]byte
}

func (m *memoryCache) Get(_ context.Context, key string, dest interface{}) (bool, error) {
	data, ok := m.entries[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(data, dest)
}

func (m *memoryCache) Set(_ context.Context, key string, value interface{}, _ time.Duration) error {
	data, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.entries[key] = data
	return nil
}

func TestParse(t *testing.T) {
	e := NewExtractor(&stubModel{}, nil, 0, logging.Discard())

	tests := []struct {
		name     string
		raw      string
		expected *domain.VariantRecord
		field    string
	}{
		{
			name:     "defaults genome",
			raw:      `{"chromosome":"chr12","variant_position":43119628,"alternative":"G"}`,
			expected: &domain.VariantRecord{Chromosome: "chr12", VariantPosition: 43119628, Alternative: "G", Genome: "hg38"},
		},
		{
			name:     "explicit hg19 and accession",
			raw:      `{"chromosome":"NC_000017.10","variant_position":41245466,"alternative":"t","genome":"hg19"}`,
			expected: &domain.VariantRecord{Chromosome: "chr17", VariantPosition: 41245466, Alternative: "T", Genome: "hg19"},
		},
		{
			name:     "code fenced",
			raw:      "```json\n{\"chromosome\":\"12\",\"variant_position\":5,\"alternative\":\"A\",\"genome\":null}\n```",
			expected: &domain.VariantRecord{Chromosome: "chr12", VariantPosition: 5, Alternative: "A", Genome: "hg38"},
		},
		{name: "not json", raw: `chr12 at 43119628`},
		{name: "array", raw: `[1,2]`},
		{name: "null", raw: `null`},
		{name: "missing chromosome", raw: `{"variant_position":1,"alternative":"G"}`, field: "chromosome"},
		{name: "missing position", raw: `{"chromosome":"chr1","alternative":"G"}`, field: "variant_position"},
		{name: "missing alternative", raw: `{"chromosome":"chr1","variant_position":1}`, field: "alternative"},
		{name: "position as string", raw: `{"chromosome":"chr1","variant_position":"1","alternative":"G"}`, field: "variant_position"},
		{name: "fractional position", raw: `{"chromosome":"chr1","variant_position":1.5,"alternative":"G"}`, field: "variant_position"},
		{name: "chromosome as number", raw: `{"chromosome":12,"variant_position":1,"alternative":"G"}`, field: "chromosome"},
		{name: "multi base allele", raw: `{"chromosome":"chr1","variant_position":1,"alternative":"GA"}`, field: "alternative"},
		{name: "unknown build", raw: `{"chromosome":"chr1","variant_position":1,"alternative":"G","genome":"hg18"}`, field: "genome"},
		{name: "genome wrong type", raw: `{"chromosome":"chr1","variant_position":1,"alternative":"G","genome":38}`, field: "genome"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record, err := e.Parse(tt.raw)
			if tt.expected != nil {
				require.NoError(t, err)
				assert.Equal(t, tt.expected, record)
				return
			}

			var extErr *domain.ExtractionError
			require.ErrorAs(t, err, &extErr)
			assert.Equal(t, tt.field, extErr.Field)
			assert.Equal(t, tt.raw, extErr.Raw)
		})
	}
}

func TestExtract(t *testing.T) {
	model := &stubModel{output: `{"chromosome":"chr12","variant_position":43119628,"alternative":"G"}`}
	e := NewExtractor(model, nil, 0, logging.Discard())

	record, err := e.Extract(context.Background(), "Analyze variant chr12 43119628 G")
	require.NoError(t, err)
	assert.Equal(t, "hg38", record.Genome)
	assert.Equal(t, Fields, model.fields)
}

func TestExtract_HGVSNotationSkipsModel(t *testing.T) {
	tests := []struct {
		name     string
		query    string
		expected domain.VariantRecord
	}{
		{
			name:     "UCSC name defaults build",
			query:    "Analyze variant chr12:g.43119628A>G",
			expected: domain.VariantRecord{Chromosome: "chr12", VariantPosition: 43119628, Alternative: "G", Genome: "hg38"},
		},
		{
			name:     "accession with hg19 mentioned",
			query:    "Score DNA variant NC_000017.10:g.41245466G>T on hg19",
			expected: domain.VariantRecord{Chromosome: "chr17", VariantPosition: 41245466, Alternative: "T", Genome: "hg19"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			model := &stubModel{err: errors.New("must not be called")}
			cache := &memoryCache{entries: map[string][]byte{}}
			e := NewExtractor(model, cache, time.Hour, logging.Discard())

			record, err := e.Extract(context.Background(), tt.query)
			require.NoError(t, err)
			assert.Equal(t, tt.expected, *record)
			assert.Zero(t, model.calls)
			assert.Empty(t, cache.entries)
		})
	}
}

func TestExtract_ModelFailure(t *testing.T) {
	model := &stubModel{err: errors.New("quota exceeded")}
	e := NewExtractor(model, nil, 0, logging.Discard())

	_, err := e.Extract(context.Background(), "variant")
	assert.ErrorContains(t, err, "quota exceeded")
}

func TestExtract_UsesCache(t *testing.T) {
	model := &stubModel{output: `{"chromosome":"chr12","variant_position":43119628,"alternative":"G"}`}
	cache := &memoryCache{entries: map[string][]byte{}}
	e := NewExtractor(model, cache, time.Hour, logging.Discard())

	first, err := e.Extract(context.Background(), "Analyze variant chr12 43119628 G")
	require.NoError(t, err)
	second, err := e.Extract(context.Background(), "analyze variant chr12 43119628 g")
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, model.calls)
}

func TestExtract_InvalidOutputNotCached(t *testing.T) {
	model := &stubModel{output: `{"chromosome":"chr12"}`}
	cache := &memoryCache{entries: map[string][]byte{}}
	e := NewExtractor(model, cache, time.Hour, logging.Discard())

	_, err := e.Extract(context.Background(), "variant on chr12")
	require.Error(t, err)
	assert.Empty(t, cache.entries)
}
