package api

import (
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/evogene-server/internal/auth"
	"github.com/evogene-server/internal/domain"
	"github.com/evogene-server/internal/logging"
	"github.com/evogene-server/internal/predict"
	"github.com/evogene-server/pkg/external"
	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Media subdirectories for uploaded scans and generated masks
const (
	scanDir = "mri_scans"
	maskDir = "masked_results"
)

// StatusAnalysisComplete is returned with every successful scan analysis
const StatusAnalysisComplete = "Analysis Complete"

var unsafeFilename = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// diabetesRequest carries the raw clinical measurements. Pointers make
// zero a valid reading while still requiring the field.
type diabetesRequest struct {
	Glucose                  *float64 `json:"glucose" binding:"required,gte=0"`
	BloodPressureSystolic    *float64 `json:"blood_pressure_systolic" binding:"required,gte=0"`
	BloodPressureDiastolic   *float64 `json:"blood_pressure_diastolic" binding:"required,gte=0"`
	SkinThickness            *float64 `json:"skin_thickness" binding:"required,gte=0"`
	Insulin                  *float64 `json:"insulin" binding:"required,gte=0"`
	BMI                      *float64 `json:"bmi" binding:"required,gte=0"`
	Age                      *int     `json:"age" binding:"required,gte=0"`
	Pregnancies              *int     `json:"pregnancies" binding:"required,gte=0"`
	DiabetesPedigreeFunction *float64 `json:"diabetes_pedigree_function" binding:"required,gte=0"`
}

func (r diabetesRequest) features() domain.DiabetesFeatures {
	return domain.DiabetesFeatures{
		Pregnancies:              float64(*r.Pregnancies),
		Glucose:                  *r.Glucose,
		BloodPressure:            predict.MeanBloodPressure(*r.BloodPressureSystolic, *r.BloodPressureDiastolic),
		SkinThickness:            *r.SkinThickness,
		Insulin:                  *r.Insulin,
		BMI:                      *r.BMI,
		DiabetesPedigreeFunction: *r.DiabetesPedigreeFunction,
		Age:                      float64(*r.Age),
	}
}

// handleDiabetesPredict runs the tabular model and stores the prediction
func (s *Server) handleDiabetesPredict(c *gin.Context) {
	var req diabetesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, fieldErrors(err))
		return
	}

	if s.deps.Diabetes == nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": predict.ErrModelNotLoaded.Error()})
		return
	}

	entry := logging.FromContext(c.Request.Context(), s.log)

	outcome, err := s.deps.Diabetes.Predict(req.features())
	if err != nil {
		entry.WithError(err).Error("Diabetes prediction failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	record := &domain.DiabetesPrediction{
		UserID:                   auth.UserID(c),
		Glucose:                  *req.Glucose,
		BloodPressureSystolic:    *req.BloodPressureSystolic,
		BloodPressureDiastolic:   *req.BloodPressureDiastolic,
		SkinThickness:            *req.SkinThickness,
		Insulin:                  *req.Insulin,
		BMI:                      *req.BMI,
		Age:                      *req.Age,
		Pregnancies:              *req.Pregnancies,
		DiabetesPedigreeFunction: *req.DiabetesPedigreeFunction,
		PredictionResult:         predict.Label(outcome),
		PredictionProbability:    outcome.Probability,
	}
	if err := s.deps.Records.SaveDiabetesPrediction(c.Request.Context(), record); err != nil {
		entry.WithError(err).Error("Failed to store diabetes prediction")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	entry.WithFields(logrus.Fields{
		"record_id": record.ID,
		"result":    record.PredictionResult,
	}).Info("Diabetes prediction stored")

	c.JSON(http.StatusOK, gin.H{
		"message":     "Prediction successful",
		"result":      record.PredictionResult,
		"probability": math.Round(outcome.Probability*1000) / 1000,
		"record_id":   record.ID,
	})
}

// handleBrainTumorAnalysis classifies an uploaded scan, stores it with its
// mask and returns the verdict
func (s *Server) handleBrainTumorAnalysis(c *gin.Context) {
	header, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "No image provided"})
		return
	}

	file, err := header.Open()
	if err != nil {
		s.scanFailed(c, err)
		return
	}
	data, err := io.ReadAll(file)
	file.Close()
	if err != nil {
		s.scanFailed(c, err)
		return
	}

	if mtype := mimetype.Detect(data); !strings.HasPrefix(mtype.String(), "image/") {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": fmt.Sprintf("Upload a valid image. The file you uploaded was either not an image or a corrupted image (%s).", mtype.String()),
		})
		return
	}

	ctx := c.Request.Context()
	entry := logging.FromContext(ctx, s.log)
	name := safeFilename(header.Filename)

	verdict, err := s.deps.Classifier.Classify(ctx, name, data)
	if err != nil {
		s.scanFailed(c, err)
		return
	}

	imagePath, err := s.writeMedia(scanDir, uuid.NewString()[:8]+"_"+name, data)
	if err != nil {
		s.scanFailed(c, err)
		return
	}

	scan := &domain.BrainScan{
		UserID:          auth.UserID(c),
		ImagePath:       imagePath,
		PredictionLabel: predict.ScanLabel(verdict.Score, s.imaging.Threshold),
		ConfidenceScore: verdict.Score,
	}
	if err := s.deps.Records.SaveBrainScan(ctx, scan); err != nil {
		s.scanFailed(c, err)
		return
	}

	var maskURL interface{}
	if len(verdict.Mask) > 0 {
		maskPath, err := s.writeMedia(maskDir, fmt.Sprintf("mask_%d_%s", scan.ID, name), verdict.Mask)
		if err != nil {
			s.scanFailed(c, err)
			return
		}
		if err := s.deps.Records.UpdateBrainScanMask(ctx, scan.ID, maskPath); err != nil {
			s.scanFailed(c, err)
			return
		}
		maskURL = s.mediaURL(c, maskPath)
	}

	entry.WithFields(logrus.Fields{
		"scan_id":       scan.ID,
		"label":         scan.PredictionLabel,
		"score":         verdict.Score,
		"service_label": verdict.Label,
	}).Info("Brain scan analyzed")

	c.JSON(http.StatusOK, gin.H{
		"id":               scan.ID,
		"prediction_label": scan.PredictionLabel,
		"confidence_score": predict.FormatConfidence(verdict.Score),
		"masked_image_url": maskURL,
		"status":           StatusAnalysisComplete,
	})
}

func (s *Server) scanFailed(c *gin.Context, err error) {
	logging.FromContext(c.Request.Context(), s.log).WithError(err).Error("Brain scan analysis failed")

	details := err.Error()
	var serviceErr *domain.ExternalServiceError
	if errors.As(err, &serviceErr) {
		details = external.Message(err)
	}
	c.JSON(http.StatusInternalServerError, gin.H{
		"error":   "Image Processing Failed",
		"details": details,
	})
}

// writeMedia stores data under the media directory and returns its
// slash-separated path relative to that directory
func (s *Server) writeMedia(dir, name string, data []byte) (string, error) {
	target := filepath.Join(s.config.MediaDir, dir)
	if err := os.MkdirAll(target, 0o755); err != nil {
		return "", fmt.Errorf("creating media directory: %w", err)
	}
	if err := os.WriteFile(filepath.Join(target, name), data, 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", name, err)
	}
	return path.Join(dir, name), nil
}

// mediaURL builds the absolute URL of a stored media file
func (s *Server) mediaURL(c *gin.Context, rel string) string {
	base := strings.TrimRight(s.config.PublicURL, "/")
	if base == "" {
		scheme := "http"
		if c.Request.TLS != nil || c.GetHeader("X-Forwarded-Proto") == "https" {
			scheme = "https"
		}
		base = scheme + "://" + c.Request.Host
	}
	return base + "/media/" + rel
}

func safeFilename(name string) string {
	name = unsafeFilename.ReplaceAllString(filepath.Base(name), "_")
	name = strings.Trim(name, "._")
	if name == "" {
		return "scan"
	}
	return name
}
