package predict

import "fmt"

// Scan labels returned by the direct analysis endpoint
const (
	LabelTumorDetected   = "Tumor Detected"
	LabelNoTumorDetected = "No Tumor Detected"
)

// ScanLabel applies the decision threshold to a tumor probability
func ScanLabel(score, threshold float64) string {
	if score > threshold {
		return LabelTumorDetected
	}
	return LabelNoTumorDetected
}

// FormatConfidence renders a score with four decimals
func FormatConfidence(score float64) string {
	return fmt.Sprintf("%.4f", score)
}
