// Package repository persists accounts and direct-endpoint analyses.
package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/evogene-server/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"
)

// ErrEmailTaken is returned when registering an email that already exists
var ErrEmailTaken = errors.New("a user with this email already exists")

// uniqueViolation is the Postgres SQLSTATE for unique constraint failures
const uniqueViolation = "23505"

// PostgresRepository stores records through a pgx pool
type PostgresRepository struct {
	db  *pgxpool.Pool
	log *logrus.Logger
}

// NewPostgresRepository creates a repository on an established pool
func NewPostgresRepository(db *pgxpool.Pool, logger *logrus.Logger) *PostgresRepository {
	return &PostgresRepository{
		db:  db,
		log: logger,
	}
}

// CreateUser inserts user and fills its ID and CreatedAt
func (r *PostgresRepository) CreateUser(ctx context.Context, user *domain.User) error {
	query := `
		INSERT INTO users (name, email, password_hash)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`

	err := r.db.QueryRow(ctx, query, user.Name, user.Email, user.PasswordHash).Scan(&user.ID, &user.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == uniqueViolation {
			return ErrEmailTaken
		}
		r.log.WithFields(logrus.Fields{
			"email": user.Email,
			"error": err,
		}).Error("Failed to create user")
		return fmt.Errorf("creating user: %w", err)
	}

	r.log.WithField("user_id", user.ID).Info("User created")
	return nil
}

// GetUserByEmail retrieves a user by email
func (r *PostgresRepository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	query := `
		SELECT id, name, email, password_hash, created_at
		FROM users
		WHERE email = $1`

	var user domain.User
	err := r.db.QueryRow(ctx, query, email).Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("getting user by email: %w", err)
	}
	return &user, nil
}

// SaveDiabetesPrediction inserts p and fills its ID and CreatedAt
func (r *PostgresRepository) SaveDiabetesPrediction(ctx context.Context, p *domain.DiabetesPrediction) error {
	query := `
		INSERT INTO diabetes_predictions (
			user_id, glucose, blood_pressure_systolic, blood_pressure_diastolic,
			skin_thickness, insulin, bmi, age, pregnancies,
			diabetes_pedigree_function, prediction_result, prediction_probability
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		RETURNING id, created_at`

	err := r.db.QueryRow(ctx, query,
		p.UserID,
		p.Glucose,
		p.BloodPressureSystolic,
		p.BloodPressureDiastolic,
		p.SkinThickness,
		p.Insulin,
		p.BMI,
		p.Age,
		p.Pregnancies,
		p.DiabetesPedigreeFunction,
		p.PredictionResult,
		p.PredictionProbability,
	).Scan(&p.ID, &p.CreatedAt)
	if err != nil {
		r.log.WithError(err).Error("Failed to save diabetes prediction")
		return fmt.Errorf("saving diabetes prediction: %w", err)
	}
	return nil
}

// GetDiabetesPrediction retrieves a prediction by ID
func (r *PostgresRepository) GetDiabetesPrediction(ctx context.Context, id int64) (*domain.DiabetesPrediction, error) {
	query := `
		SELECT id, user_id, glucose, blood_pressure_systolic, blood_pressure_diastolic,
			skin_thickness, insulin, bmi, age, pregnancies,
			diabetes_pedigree_function, prediction_result, prediction_probability, created_at
		FROM diabetes_predictions
		WHERE id = $1`

	var p domain.DiabetesPrediction
	err := r.db.QueryRow(ctx, query, id).Scan(
		&p.ID,
		&p.UserID,
		&p.Glucose,
		&p.BloodPressureSystolic,
		&p.BloodPressureDiastolic,
		&p.SkinThickness,
		&p.Insulin,
		&p.BMI,
		&p.Age,
		&p.Pregnancies,
		&p.DiabetesPedigreeFunction,
		&p.PredictionResult,
		&p.PredictionProbability,
		&p.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("diabetes prediction not found: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("getting diabetes prediction: %w", err)
	}
	return &p, nil
}

// SaveBrainScan inserts s and fills its ID and CreatedAt
func (r *PostgresRepository) SaveBrainScan(ctx context.Context, s *domain.BrainScan) error {
	query := `
		INSERT INTO brain_scans (user_id, image_path, mask_path, prediction_label, confidence_score)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at`

	err := r.db.QueryRow(ctx, query, s.UserID, s.ImagePath, s.MaskPath, s.PredictionLabel, s.ConfidenceScore).
		Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		r.log.WithError(err).Error("Failed to save brain scan")
		return fmt.Errorf("saving brain scan: %w", err)
	}
	return nil
}

// UpdateBrainScanMask records the generated mask for a stored scan
func (r *PostgresRepository) UpdateBrainScanMask(ctx context.Context, id int64, maskPath string) error {
	tag, err := r.db.Exec(ctx, `UPDATE brain_scans SET mask_path = $1 WHERE id = $2`, maskPath, id)
	if err != nil {
		return fmt.Errorf("updating brain scan mask: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("brain scan not found: %w", domain.ErrNotFound)
	}
	return nil
}

// GetBrainScan retrieves a scan by ID
func (r *PostgresRepository) GetBrainScan(ctx context.Context, id int64) (*domain.BrainScan, error) {
	query := `
		SELECT id, user_id, image_path, mask_path, prediction_label, confidence_score, created_at
		FROM brain_scans
		WHERE id = $1`

	var s domain.BrainScan
	err := r.db.QueryRow(ctx, query, id).Scan(
		&s.ID, &s.UserID, &s.ImagePath, &s.MaskPath, &s.PredictionLabel, &s.ConfidenceScore, &s.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("brain scan not found: %w", domain.ErrNotFound)
		}
		return nil, fmt.Errorf("getting brain scan: %w", err)
	}
	return &s, nil
}
