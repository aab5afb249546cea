package domain

import (
	"context"
)

// SchemaField describes one property of a structured language model response
type SchemaField struct {
	Name        string
	Type        string // "string", "integer", "number", "boolean"
	Description string
	Enum        []string
	Required    bool
}

// LanguageModel produces free text or schema-constrained JSON
type LanguageModel interface {
	Generate(ctx context.Context, system, prompt string) (string, error)
	GenerateJSON(ctx context.Context, system, prompt string, fields []SchemaField) (string, error)
}

// VariantScorer posts a variant record to the remote scoring model and
// returns its raw JSON response.
type VariantScorer interface {
	Score(ctx context.Context, record VariantRecord) ([]byte, error)
}

// DiabetesPredictor runs the precomputed tabular model on one row
type DiabetesPredictor interface {
	Predict(features DiabetesFeatures) (DiabetesOutcome, error)
}

// TumorClassifier classifies one brain scan image
type TumorClassifier interface {
	Classify(ctx context.Context, filename string, image []byte) (*ScanClassification, error)
}

// UserRepository persists accounts
type UserRepository interface {
	CreateUser(ctx context.Context, user *User) error
	GetUserByEmail(ctx context.Context, email string) (*User, error)
}

// PredictionRepository persists direct-endpoint analyses
type PredictionRepository interface {
	SaveDiabetesPrediction(ctx context.Context, p *DiabetesPrediction) error
	GetDiabetesPrediction(ctx context.Context, id int64) (*DiabetesPrediction, error)
	SaveBrainScan(ctx context.Context, s *BrainScan) error
	UpdateBrainScanMask(ctx context.Context, id int64, maskPath string) error
	GetBrainScan(ctx context.Context, id int64) (*BrainScan, error)
}

// ConfigManager defines the interface for configuration management
type ConfigManager interface {
	GetConfig() *Config
	GetDatabaseConfig() *DatabaseConfig
	GetServerConfig() *ServerConfig
	Reload() error
	Validate() error
	GetDatabaseConnectionString() string
	GetRedisConnectionString() string
	IsProduction() bool
	IsDevelopment() bool
}
