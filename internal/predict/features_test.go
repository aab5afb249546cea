package predict

import (
	"testing"

	"github.com/evogene-server/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFeaturesFromPatientData(t *testing.T) {
	tests := []struct {
		name     string
		data     interface{}
		expected domain.DiabetesFeatures
		wantErr  bool
	}{
		{
			name: "training column names",
			data: map[string]interface{}{
				"Pregnancies": 2.0, "Glucose": 140.0, "BloodPressure": 70.0, "SkinThickness": 20.0,
				"Insulin": 80.0, "BMI": 31.2, "DiabetesPedigreeFunction": 0.4, "Age": 45.0,
			},
			expected: domain.DiabetesFeatures{
				Pregnancies: 2, Glucose: 140, BloodPressure: 70, SkinThickness: 20,
				Insulin: 80, BMI: 31.2, DiabetesPedigreeFunction: 0.4, Age: 45,
			},
		},
		{
			name: "snake case with systolic and diastolic",
			data: map[string]interface{}{
				"glucose": 120.0, "blood_pressure_systolic": 130.0, "blood_pressure_diastolic": 80.0,
				"skin_thickness": "25", "bmi": 28.0, "age": 50,
			},
			expected: domain.DiabetesFeatures{
				Glucose: 120, BloodPressure: 105, SkinThickness: 25, BMI: 28, Age: 50,
			},
		},
		{
			name: "combined pressure wins over readings",
			data: map[string]interface{}{
				"BloodPressure": 90.0, "systolic": 130.0, "diastolic": 80.0,
			},
			expected: domain.DiabetesFeatures{BloodPressure: 90},
		},
		{
			name:     "only systolic leaves pressure for imputation",
			data:     map[string]interface{}{"systolic": 130.0},
			expected: domain.DiabetesFeatures{},
		},
		{
			name:     "unknown keys ignored",
			data:     map[string]interface{}{"name": "Jane", "glucose": nil},
			expected: domain.DiabetesFeatures{},
		},
		{name: "free text", data: "glucose is high", wantErr: true},
		{name: "non numeric", data: map[string]interface{}{"glucose": "high"}, wantErr: true},
		{name: "nested object", data: map[string]interface{}{"bmi": map[string]interface{}{}}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			features, err := FeaturesFromPatientData(tt.data)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.expected, features)
		})
	}
}
