package hgvs

import (
	"strings"

	"github.com/evogene-server/internal/domain"
)

// Supported reference genome builds
const (
	BuildHG38 = "hg38"
	BuildHG19 = "hg19"
)

// Validator checks and normalizes the fields of a variant record
type Validator struct {
	defaultBuild string
}

// NewValidator creates a new validator that fills missing builds with hg38
func NewValidator() *Validator {
	return &Validator{defaultBuild: BuildHG38}
}

// ValidateAllele checks that allele is a single nucleotide and returns it
// upper-cased.
func (v *Validator) ValidateAllele(allele string) (string, error) {
	allele = strings.ToUpper(strings.TrimSpace(allele))
	switch allele {
	case "A", "C", "G", "T":
		return allele, nil
	case "":
		return "", domain.NewValidationError("alternative", "allele cannot be empty", allele)
	default:
		return "", domain.NewValidationError("alternative", "must be a single nucleotide (A, C, G or T)", allele)
	}
}

// ValidateBuild accepts hg38/hg19 and the GRCh aliases. Empty means the default build.
func (v *Validator) ValidateBuild(build string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(build)) {
	case "":
		return v.defaultBuild, nil
	case "hg38", "grch38":
		return BuildHG38, nil
	case "hg19", "grch37":
		return BuildHG19, nil
	default:
		return "", domain.NewValidationError("genome", "must be hg38 or hg19", build)
	}
}

// ValidatePosition checks that a genomic position is positive
func (v *Validator) ValidatePosition(position int64) error {
	if position <= 0 {
		return domain.NewValidationError("variant_position", "must be a positive integer", position)
	}
	return nil
}

// NormalizeRecord validates every field of record and rewrites it in
// canonical form.
func (v *Validator) NormalizeRecord(record *domain.VariantRecord) error {
	chromosome, err := NormalizeChromosome(record.Chromosome)
	if err != nil {
		return domain.NewValidationError("chromosome", err.Error(), record.Chromosome)
	}

	if err := v.ValidatePosition(record.VariantPosition); err != nil {
		return err
	}

	alternative, err := v.ValidateAllele(record.Alternative)
	if err != nil {
		return err
	}

	build, err := v.ValidateBuild(record.Genome)
	if err != nil {
		return err
	}

	record.Chromosome = chromosome
	record.Alternative = alternative
	record.Genome = build
	return nil
}
