package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/evogene-server/internal/domain"
)

// SQLiteRepository stores records in a local SQLite file opened with
// database.OpenSQLite
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a repository on db
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// scanner is an interface for sql.Row and sql.Rows
type scanner interface {
	Scan(dest ...interface{}) error
}

// CreateUser inserts user and fills its ID and CreatedAt
func (r *SQLiteRepository) CreateUser(ctx context.Context, user *domain.User) error {
	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx,
		"INSERT INTO users (name, email, password_hash, created_at) VALUES (?, ?, ?, ?)",
		user.Name, user.Email, user.PasswordHash, now,
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrEmailTaken
		}
		return fmt.Errorf("creating user: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading user id: %w", err)
	}
	user.ID = id
	user.CreatedAt = now
	return nil
}

// GetUserByEmail retrieves a user by email
func (r *SQLiteRepository) GetUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	var user domain.User
	err := r.db.QueryRowContext(ctx,
		"SELECT id, name, email, password_hash, created_at FROM users WHERE email = ?",
		email,
	).Scan(&user.ID, &user.Name, &user.Email, &user.PasswordHash, &user.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("user not found: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting user by email: %w", err)
	}
	return &user, nil
}

// SaveDiabetesPrediction inserts p and fills its ID and CreatedAt
func (r *SQLiteRepository) SaveDiabetesPrediction(ctx context.Context, p *domain.DiabetesPrediction) error {
	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO diabetes_predictions (
			user_id, glucose, blood_pressure_systolic, blood_pressure_diastolic,
			skin_thickness, insulin, bmi, age, pregnancies,
			diabetes_pedigree_function, prediction_result, prediction_probability, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		nullableID(p.UserID),
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
		now,
	)
	if err != nil {
		return fmt.Errorf("saving diabetes prediction: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading prediction id: %w", err)
	}
	p.ID = id
	p.CreatedAt = now
	return nil
}

// GetDiabetesPrediction retrieves a prediction by ID
func (r *SQLiteRepository) GetDiabetesPrediction(ctx context.Context, id int64) (*domain.DiabetesPrediction, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, glucose, blood_pressure_systolic, blood_pressure_diastolic,
			skin_thickness, insulin, bmi, age, pregnancies,
			diabetes_pedigree_function, prediction_result, prediction_probability, created_at
		FROM diabetes_predictions
		WHERE id = ?
	`, id)

	p, err := scanDiabetesPrediction(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("diabetes prediction not found: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting diabetes prediction: %w", err)
	}
	return p, nil
}

func scanDiabetesPrediction(s scanner) (*domain.DiabetesPrediction, error) {
	var (
		p      domain.DiabetesPrediction
		userID sql.NullInt64
	)
	err := s.Scan(
		&p.ID,
		&userID,
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
		return nil, err
	}
	if userID.Valid {
		p.UserID = &userID.Int64
	}
	return &p, nil
}

// SaveBrainScan inserts s and fills its ID and CreatedAt
func (r *SQLiteRepository) SaveBrainScan(ctx context.Context, s *domain.BrainScan) error {
	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx, `
		INSERT INTO brain_scans (user_id, image_path, mask_path, prediction_label, confidence_score, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, nullableID(s.UserID), s.ImagePath, s.MaskPath, s.PredictionLabel, s.ConfidenceScore, now)
	if err != nil {
		return fmt.Errorf("saving brain scan: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading scan id: %w", err)
	}
	s.ID = id
	s.CreatedAt = now
	return nil
}

// UpdateBrainScanMask records the generated mask for a stored scan
func (r *SQLiteRepository) UpdateBrainScanMask(ctx context.Context, id int64, maskPath string) error {
	result, err := r.db.ExecContext(ctx, "UPDATE brain_scans SET mask_path = ? WHERE id = ?", maskPath, id)
	if err != nil {
		return fmt.Errorf("updating brain scan mask: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("updating brain scan mask: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("brain scan not found: %w", domain.ErrNotFound)
	}
	return nil
}

// GetBrainScan retrieves a scan by ID
func (r *SQLiteRepository) GetBrainScan(ctx context.Context, id int64) (*domain.BrainScan, error) {
	var (
		s      domain.BrainScan
		userID sql.NullInt64
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, image_path, mask_path, prediction_label, confidence_score, created_at
		FROM brain_scans
		WHERE id = ?
	`, id).Scan(&s.ID, &userID, &s.ImagePath, &s.MaskPath, &s.PredictionLabel, &s.ConfidenceScore, &s.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("brain scan not found: %w", domain.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting brain scan: %w", err)
	}
	if userID.Valid {
		s.UserID = &userID.Int64
	}
	return &s, nil
}

func nullableID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}
