// Package predict runs the precomputed local models: the diabetes logistic
// model with its zero-to-mean imputer, and the scan labeling rule.
package predict

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/evogene-server/internal/domain"
)

// Columns is the training column order of the diabetes model
var Columns = []string{
	"Pregnancies",
	"Glucose",
	"BloodPressure",
	"SkinThickness",
	"Insulin",
	"BMI",
	"DiabetesPedigreeFunction",
	"Age",
}

// ErrModelNotLoaded is returned when no artifact has been loaded
var ErrModelNotLoaded = errors.New("ML model not loaded")

// Artifact is the serialized diabetes model
type Artifact struct {
	Version      string             `json:"version"`
	Columns      []string           `json:"columns"`
	Intercept    float64            `json:"intercept"`
	Coefficients map[string]float64 `json:"coefficients"`
	Scaler       *Scaler            `json:"scaler,omitempty"`
	Imputer      Imputer            `json:"imputer"`
	Threshold    float64            `json:"threshold"`
}

// Scaler standardizes features before the linear term
type Scaler struct {
	Mean  map[string]float64 `json:"mean"`
	Scale map[string]float64 `json:"scale"`
}

// Imputer replaces zero readings in the listed columns with training means.
// A zero glucose or BMI is physiologically impossible and marks a missing value.
type Imputer struct {
	Columns []string           `json:"columns"`
	Means   map[string]float64 `json:"means"`
}

// DiabetesModel is a loaded logistic regression model
type DiabetesModel struct {
	artifact Artifact
	weights  []float64
	impute   []bool
	means    []float64
	center   []float64
	scale    []float64
}

// LoadDiabetesModel reads and validates an artifact file
func LoadDiabetesModel(path string) (*DiabetesModel, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading model artifact: %w", err)
	}

	var artifact Artifact
	if err := json.Unmarshal(data, &artifact); err != nil {
		return nil, fmt.Errorf("decoding model artifact: %w", err)
	}

	return NewDiabetesModel(artifact)
}

// NewDiabetesModel validates artifact and prepares it for prediction
func NewDiabetesModel(artifact Artifact) (*DiabetesModel, error) {
	if len(artifact.Columns) != len(Columns) {
		return nil, fmt.Errorf("artifact has %d columns, expected %d", len(artifact.Columns), len(Columns))
	}
	for i, col := range Columns {
		if artifact.Columns[i] != col {
			return nil, fmt.Errorf("artifact column %d is %q, expected %q", i, artifact.Columns[i], col)
		}
	}
	if artifact.Threshold <= 0 || artifact.Threshold >= 1 {
		artifact.Threshold = 0.5
	}

	m := &DiabetesModel{
		artifact: artifact,
		weights:  make([]float64, len(Columns)),
		impute:   make([]bool, len(Columns)),
		means:    make([]float64, len(Columns)),
		center:   make([]float64, len(Columns)),
		scale:    make([]float64, len(Columns)),
	}

	imputed := make(map[string]bool, len(artifact.Imputer.Columns))
	for _, col := range artifact.Imputer.Columns {
		imputed[col] = true
	}

	for i, col := range Columns {
		w, ok := artifact.Coefficients[col]
		if !ok {
			return nil, fmt.Errorf("artifact is missing coefficient for %s", col)
		}
		m.weights[i] = w

		if imputed[col] {
			mean, ok := artifact.Imputer.Means[col]
			if !ok {
				return nil, fmt.Errorf("artifact is missing imputer mean for %s", col)
			}
			m.impute[i] = true
			m.means[i] = mean
		}

		m.scale[i] = 1
		if artifact.Scaler != nil {
			m.center[i] = artifact.Scaler.Mean[col]
			if s := artifact.Scaler.Scale[col]; s != 0 {
				m.scale[i] = s
			}
		}
	}

	return m, nil
}

// Impute returns the row with zero readings replaced by training means
func (m *DiabetesModel) Impute(features domain.DiabetesFeatures) []float64 {
	row := features.Vector()
	for i := range row {
		if m.impute[i] && row[i] == 0 {
			row[i] = m.means[i]
		}
	}
	return row
}

// Predict returns the positive class decision and its probability
func (m *DiabetesModel) Predict(features domain.DiabetesFeatures) (domain.DiabetesOutcome, error) {
	if m == nil {
		return domain.DiabetesOutcome{}, ErrModelNotLoaded
	}

	row := m.Impute(features)
	z := m.artifact.Intercept
	for i, x := range row {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return domain.DiabetesOutcome{}, fmt.Errorf("feature %s is not a finite number", Columns[i])
		}
		z += m.weights[i] * (x - m.center[i]) / m.scale[i]
	}

	p := 1 / (1 + math.Exp(-z))
	return domain.DiabetesOutcome{
		Positive:    p > m.artifact.Threshold,
		Probability: p,
	}, nil
}

// Version returns the artifact version string
func (m *DiabetesModel) Version() string {
	return m.artifact.Version
}

// MeanBloodPressure averages systolic and diastolic readings
func MeanBloodPressure(systolic, diastolic float64) float64 {
	return (systolic + diastolic) / 2
}

// Label maps an outcome to the stored prediction result
func Label(outcome domain.DiabetesOutcome) string {
	if outcome.Positive {
		return "Diabetic"
	}
	return "Non-Diabetic"
}
