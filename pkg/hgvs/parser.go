package hgvs

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Genomic substitution: NC_000012.12:g.43119628A>G or chr12:g.43119628A>G
const substitutionExpr = `(NC_\d+\.\d+|chr\d+|chr[XYM]|chrMT):g\.(\d+)([ACGT])>([ACGT])`

var (
	genomicSubstitutionPattern = regexp.MustCompile(`^` + substitutionExpr + `$`)

	// Same notation inside free text, not glued to surrounding words
	embeddedSubstitutionPattern = regexp.MustCompile(`(?:^|[^\w.])` + substitutionExpr + `(?:$|[^\w>])`)

	// RefSeq chromosome accessions for GRCh38 and GRCh37
	refSeqChromosomes = map[string]string{
		"NC_000001": "chr1", "NC_000002": "chr2", "NC_000003": "chr3", "NC_000004": "chr4",
		"NC_000005": "chr5", "NC_000006": "chr6", "NC_000007": "chr7", "NC_000008": "chr8",
		"NC_000009": "chr9", "NC_000010": "chr10", "NC_000011": "chr11", "NC_000012": "chr12",
		"NC_000013": "chr13", "NC_000014": "chr14", "NC_000015": "chr15", "NC_000016": "chr16",
		"NC_000017": "chr17", "NC_000018": "chr18", "NC_000019": "chr19", "NC_000020": "chr20",
		"NC_000021": "chr21", "NC_000022": "chr22", "NC_000023": "chrX", "NC_000024": "chrY",
		"NC_012920": "chrM",
	}
)

// Substitution is a parsed genomic single nucleotide substitution
type Substitution struct {
	Chromosome  string
	Position    int64
	Reference   string
	Alternative string
}

// NormalizeChromosome converts RefSeq accessions, bare names and any casing
// of the chr prefix to the UCSC form ("chr12", "chrX", "chrM").
func NormalizeChromosome(chr string) (string, error) {
	chr = strings.TrimSpace(chr)
	if chr == "" {
		return "", fmt.Errorf("chromosome is empty")
	}

	if strings.HasPrefix(strings.ToUpper(chr), "NC_") {
		accession := strings.ToUpper(strings.SplitN(chr, ".", 2)[0])
		if normalized, ok := refSeqChromosomes[accession]; ok {
			return normalized, nil
		}
		return "", fmt.Errorf("unknown chromosome accession %q", chr)
	}

	name := chr
	if len(name) > 3 && strings.EqualFold(name[:3], "chr") {
		name = name[3:]
	}
	name = strings.ToUpper(name)

	switch name {
	case "X", "Y", "M":
		return "chr" + name, nil
	case "MT":
		return "chrM", nil
	}

	n, err := strconv.Atoi(name)
	if err != nil || n < 1 || n > 22 {
		return "", fmt.Errorf("unknown chromosome %q", chr)
	}
	return "chr" + strconv.Itoa(n), nil
}

// ParseGenomicSubstitution parses a genomic substitution in HGVS notation
func ParseGenomicSubstitution(notation string) (*Substitution, error) {
	matches := genomicSubstitutionPattern.FindStringSubmatch(strings.TrimSpace(notation))
	if matches == nil {
		return nil, fmt.Errorf("unable to parse genomic substitution: %s", notation)
	}
	return substitutionFromMatch(matches)
}

// FindGenomicSubstitution returns the first genomic substitution written in
// text. The second result is false when text holds none.
func FindGenomicSubstitution(text string) (*Substitution, bool) {
	matches := embeddedSubstitutionPattern.FindStringSubmatch(text)
	if matches == nil {
		return nil, false
	}
	sub, err := substitutionFromMatch(matches)
	if err != nil {
		return nil, false
	}
	return sub, true
}

func substitutionFromMatch(matches []string) (*Substitution, error) {
	chromosome, err := NormalizeChromosome(matches[1])
	if err != nil {
		return nil, err
	}

	position, err := strconv.ParseInt(matches[2], 10, 64)
	if err != nil {
		return nil, fmt.Errorf("parsing position %s: %w", matches[2], err)
	}

	return &Substitution{
		Chromosome:  chromosome,
		Position:    position,
		Reference:   matches[3],
		Alternative: matches[4],
	}, nil
}

// String renders the substitution in UCSC genomic HGVS form
func (s *Substitution) String() string {
	return fmt.Sprintf("%s:g.%d%s>%s", s.Chromosome, s.Position, s.Reference, s.Alternative)
}
