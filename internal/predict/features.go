package predict

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/evogene-server/internal/domain"
)

// featureAliases maps accepted request keys to training columns
var featureAliases = map[string]string{
	"pregnancies":                "Pregnancies",
	"glucose":                    "Glucose",
	"bloodpressure":              "BloodPressure",
	"blood_pressure":             "BloodPressure",
	"skinthickness":              "SkinThickness",
	"skin_thickness":             "SkinThickness",
	"insulin":                    "Insulin",
	"bmi":                        "BMI",
	"diabetespedigreefunction":   "DiabetesPedigreeFunction",
	"diabetes_pedigree_function": "DiabetesPedigreeFunction",
	"age":                        "Age",
}

// FeaturesFromPatientData builds a model row from free-form patient data.
// Keys may use training names or snake_case. Missing features stay zero and
// are imputed by the model. Systolic and diastolic readings are averaged when
// no combined blood pressure is given.
func FeaturesFromPatientData(data interface{}) (domain.DiabetesFeatures, error) {
	fields, ok := data.(map[string]interface{})
	if !ok {
		return domain.DiabetesFeatures{}, fmt.Errorf("patient data must be an object of diabetes features, got %T", data)
	}

	values := make(map[string]float64, len(Columns))
	var systolic, diastolic *float64

	for key, raw := range fields {
		normalized := strings.ToLower(strings.TrimSpace(key))

		switch normalized {
		case "blood_pressure_systolic", "systolic":
			v, err := toFloat(key, raw)
			if err != nil {
				return domain.DiabetesFeatures{}, err
			}
			systolic = &v
			continue
		case "blood_pressure_diastolic", "diastolic":
			v, err := toFloat(key, raw)
			if err != nil {
				return domain.DiabetesFeatures{}, err
			}
			diastolic = &v
			continue
		}

		column, known := featureAliases[normalized]
		if !known {
			continue
		}
		v, err := toFloat(key, raw)
		if err != nil {
			return domain.DiabetesFeatures{}, err
		}
		values[column] = v
	}

	if _, set := values["BloodPressure"]; !set && systolic != nil && diastolic != nil {
		values["BloodPressure"] = MeanBloodPressure(*systolic, *diastolic)
	}

	return domain.DiabetesFeatures{
		Pregnancies:              values["Pregnancies"],
		Glucose:                  values["Glucose"],
		BloodPressure:            values["BloodPressure"],
		SkinThickness:            values["SkinThickness"],
		Insulin:                  values["Insulin"],
		BMI:                      values["BMI"],
		DiabetesPedigreeFunction: values["DiabetesPedigreeFunction"],
		Age:                      values["Age"],
	}, nil
}

func toFloat(key string, raw interface{}) (float64, error) {
	switch v := raw.(type) {
	case float64:
		return v, nil
	case float32:
		return float64(v), nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case nil:
		return 0, nil
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
		if err != nil {
			return 0, fmt.Errorf("feature %s is not numeric: %q", key, v)
		}
		return f, nil
	default:
		return 0, fmt.Errorf("feature %s has unsupported type %T", key, raw)
	}
}
