package domain

import (
	"encoding/json"
	"time"
)

// User is a registered account
type User struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	CreatedAt    time.Time `json:"created_at"`
}

// DiabetesPrediction is a persisted tabular prediction with its inputs
type DiabetesPrediction struct {
	ID                       int64     `json:"id"`
	UserID                   *int64    `json:"user_id,omitempty"`
	Glucose                  float64   `json:"glucose"`
	BloodPressureSystolic    float64   `json:"blood_pressure_systolic"`
	BloodPressureDiastolic   float64   `json:"blood_pressure_diastolic"`
	SkinThickness            float64   `json:"skin_thickness"`
	Insulin                  float64   `json:"insulin"`
	BMI                      float64   `json:"bmi"`
	Age                      int       `json:"age"`
	Pregnancies              int       `json:"pregnancies"`
	DiabetesPedigreeFunction float64   `json:"diabetes_pedigree_function"`
	PredictionResult         string    `json:"prediction_result"`
	PredictionProbability    float64   `json:"prediction_probability"`
	CreatedAt                time.Time `json:"created_at"`
}

// BrainScan is a persisted image classification outcome
type BrainScan struct {
	ID              int64     `json:"id"`
	UserID          *int64    `json:"user_id,omitempty"`
	ImagePath       string    `json:"image_path"`
	MaskPath        string    `json:"mask_path"`
	PredictionLabel string    `json:"prediction_label"`
	ConfidenceScore float64   `json:"confidence_score"`
	CreatedAt       time.Time `json:"created_at"`
}

// TaskStatus describes the lifecycle of a background task
type TaskStatus string

const (
	TaskProcessing TaskStatus = "processing"
	TaskSuccess    TaskStatus = "Success"
	TaskError      TaskStatus = "Error"
)

// TaskResult is the stored outcome of a background analysis
type TaskResult struct {
	TaskID    string          `json:"task_id"`
	Status    TaskStatus      `json:"status"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// DiabetesFeatures is one model input row in training column order
type DiabetesFeatures struct {
	Pregnancies              float64 `json:"Pregnancies"`
	Glucose                  float64 `json:"Glucose"`
	BloodPressure            float64 `json:"BloodPressure"`
	SkinThickness            float64 `json:"SkinThickness"`
	Insulin                  float64 `json:"Insulin"`
	BMI                      float64 `json:"BMI"`
	DiabetesPedigreeFunction float64 `json:"DiabetesPedigreeFunction"`
	Age                      float64 `json:"Age"`
}

// Vector returns the features in training column order
func (f DiabetesFeatures) Vector() []float64 {
	return []float64{
		f.Pregnancies,
		f.Glucose,
		f.BloodPressure,
		f.SkinThickness,
		f.Insulin,
		f.BMI,
		f.DiabetesPedigreeFunction,
		f.Age,
	}
}

// DiabetesOutcome is a tabular model prediction
type DiabetesOutcome struct {
	Positive    bool    `json:"positive"`
	Probability float64 `json:"probability"`
}

// ScanClassification is the image service verdict for one scan
type ScanClassification struct {
	Score float64 `json:"score"`
	Label string  `json:"label,omitempty"`
	Mask  []byte  `json:"-"`
}
