package hgvs

import (
	"errors"
	"testing"

	"github.com/evogene-server/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestValidateAllele(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		input    string
		expected string
		wantErr  bool
	}{
		{"G", "G", false},
		{"a", "A", false},
		{" t ", "T", false},
		{"", "", true},
		{"AT", "", true},
		{"N", "", true},
		{"del", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result, err := v.ValidateAllele(tt.input)
			if tt.wantErr {
				var verr *domain.ValidationError
				require.True(t, errors.As(err, &verr))
				assert.Equal(t, "alternative", verr.Field)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestValidateBuild(t *testing.T) {
	v := NewValidator()

	tests := []struct {
		input    string
		expected string
		wantErr  bool
	}{
		{"", "hg38", false},
		{"hg38", "hg38", false},
		{"HG19", "hg19", false},
		{"GRCh38", "hg38", false},
		{"GRCh37", "hg19", false},
		{"hg18", "", true},
		{"mm10", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			result, err := v.ValidateBuild(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, result)
		})
	}
}

func TestNormalizeRecord(t *testing.T) {
	v := NewValidator()

	t.Run("defaults genome", func(t *testing.T) {
		record := &domain.VariantRecord{Chromosome: "chr12", VariantPosition: 43119628, Alternative: "G"}
		require.NoError(t, v.NormalizeRecord(record))
		assert.Equal(t, domain.VariantRecord{
			Chromosome:      "chr12",
			VariantPosition: 43119628,
			Alternative:     "G",
			Genome:          "hg38",
		}, *record)
	})

	t.Run("normalizes accession and case", func(t *testing.T) {
		record := &domain.VariantRecord{Chromosome: "NC_000017.11", VariantPosition: 43104121, Alternative: "a", Genome: "GRCh37"}
		require.NoError(t, v.NormalizeRecord(record))
		assert.Equal(t, "chr17", record.Chromosome)
		assert.Equal(t, "A", record.Alternative)
		assert.Equal(t, "hg19", record.Genome)
	})

	tests := []struct {
		name   string
		record domain.VariantRecord
		field  string
	}{
		{"bad chromosome", domain.VariantRecord{Chromosome: "chr99", VariantPosition: 1, Alternative: "A"}, "chromosome"},
		{"zero position", domain.VariantRecord{Chromosome: "chr1", VariantPosition: 0, Alternative: "A"}, "variant_position"},
		{"negative position", domain.VariantRecord{Chromosome: "chr1", VariantPosition: -5, Alternative: "A"}, "variant_position"},
		{"multi base allele", domain.VariantRecord{Chromosome: "chr1", VariantPosition: 1, Alternative: "AG"}, "alternative"},
		{"unknown build", domain.VariantRecord{Chromosome: "chr1", VariantPosition: 1, Alternative: "A", Genome: "hg17"}, "genome"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			record := tt.record
			err := v.NormalizeRecord(&record)

			var verr *domain.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
			assert.Equal(t, tt.record, record, "record must be untouched on failure")
		})
	}
}
