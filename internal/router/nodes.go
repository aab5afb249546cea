package router

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/evogene-server/internal/domain"
	"github.com/evogene-server/internal/predict"
	"github.com/evogene-server/pkg/external"
	"github.com/sirupsen/logrus"
)

// BrainScanStubResult is the canned result of the chat brain-tumor branch.
// Real scans go through the brain-tumor analysis endpoint.
const BrainScanStubResult = "CT Scan classified: Glioma detected with 85% confidence."

// VariantExtractor turns free text into a variant record
type VariantExtractor interface {
	Extract(ctx context.Context, query string) (*domain.VariantRecord, error)
}

// Nodes holds the collaborators used by the graph nodes
type Nodes struct {
	extractor VariantExtractor
	scorer    domain.VariantScorer
	diabetes  domain.DiabetesPredictor
	llm       domain.LanguageModel
	log       *logrus.Logger
}

// NewNodes creates the node set. diabetes may be nil when no model artifact
// could be loaded; the diabetes branch then reports an error.
func NewNodes(extractor VariantExtractor, scorer domain.VariantScorer, diabetes domain.DiabetesPredictor, llm domain.LanguageModel, logger *logrus.Logger) *Nodes {
	return &Nodes{
		extractor: extractor,
		scorer:    scorer,
		diabetes:  diabetes,
		llm:       llm,
		log:       logger,
	}
}

// ExtractVariant replaces patient data with the structured variant record
func (n *Nodes) ExtractVariant(ctx context.Context, state domain.SessionState) Update {
	record, err := n.extractor.Extract(ctx, state.UserQuery)
	if err != nil {
		return failure(fmt.Sprintf("JSON Extraction Error: %v", err))
	}
	return Update{
		DataType:    dataType(domain.DataTypeDNA),
		PatientData: *record,
		Error:       str(""),
	}
}

// ScoreVariant posts the extracted record to the scoring service. It does
// nothing when extraction already failed.
func (n *Nodes) ScoreVariant(ctx context.Context, state domain.SessionState) Update {
	if state.Error != "" {
		return Update{}
	}

	record, ok := state.PatientData.(domain.VariantRecord)
	if !ok {
		return failure(fmt.Sprintf("Unexpected Error during Evo Model call: patient data is %T, not a variant record", state.PatientData))
	}

	body, err := n.scorer.Score(ctx, record)
	if err != nil {
		return failure(external.Message(err))
	}

	var pretty bytes.Buffer
	if err := json.Indent(&pretty, body, "", "  "); err != nil {
		return failure(fmt.Sprintf("Unexpected Error during Evo Model call: %v", err))
	}

	return Update{ModelResult: str(pretty.String()), Error: str("")}
}

// AnalyzeBrainScan is the chat brain-tumor branch
func (n *Nodes) AnalyzeBrainScan(_ context.Context, _ domain.SessionState) Update {
	return Update{
		DataType:    dataType(domain.DataTypeBrain),
		ModelResult: str(BrainScanStubResult),
		Error:       str(""),
	}
}

// AnalyzeDiabetes runs the tabular model on the request's patient data
func (n *Nodes) AnalyzeDiabetes(_ context.Context, state domain.SessionState) Update {
	if n.diabetes == nil {
		return failure("Diabetes Model Error: " + predict.ErrModelNotLoaded.Error())
	}

	features, err := predict.FeaturesFromPatientData(state.PatientData)
	if err != nil {
		return failure(fmt.Sprintf("Diabetes Model Error: %v", err))
	}

	outcome, err := n.diabetes.Predict(features)
	if err != nil {
		return failure(fmt.Sprintf("Diabetes Model Error: %v", err))
	}

	verdict := "Negative"
	if outcome.Positive {
		verdict = "Positive"
	}

	return Update{
		DataType:    dataType(domain.DataTypeDiabetes),
		ModelResult: str(fmt.Sprintf("Diabetes Prediction: %s. Probability: %.2f", verdict, outcome.Probability)),
		Error:       str(""),
	}
}

// SynthesizeReport turns the branch result into the final report and records
// it in the session history
func (n *Nodes) SynthesizeReport(ctx context.Context, state domain.SessionState) Update {
	if state.Error != "" {
		return Update{
			FinalReport: str(fmt.Sprintf("An error occurred during %s analysis: %s", state.DataType, state.Error)),
		}
	}

	report, err := n.llm.Generate(ctx, synthesisSystemPrompt(state.DataType), synthesisPrompt(state))
	if err != nil {
		msg := fmt.Sprintf("LLM Synthesis Error: %s", external.Message(err))
		return Update{
			FinalReport: str(msg),
			ModelResult: str(""),
			Error:       str(msg),
		}
	}

	update := Update{FinalReport: str(report)}
	if history, stored := state.ReportHistory.WithReport(state.DataType, report); stored {
		update.ReportHistory = &history
	} else {
		n.log.WithFields(logrus.Fields{
			"session_id": state.SessionID,
			"data_type":  state.DataType,
		}).Debug("Generic report not stored in history")
	}
	return update
}

func synthesisSystemPrompt(analysis domain.DataType) string {
	return fmt.Sprintf("You are the Evo Gene AI Assistant. Generate a comprehensive, "+
		"professional, and patient-friendly health report for a %s analysis. "+
		"Synthesize the raw model result into clear findings, risks, and actionable next steps.", analysis)
}

func synthesisPrompt(state domain.SessionState) string {
	return fmt.Sprintf("User Question:\n%s\n\nRaw Model Result:\n%s\n\nGenerate a detailed, patient-friendly report.",
		state.UserQuery, state.ModelResult)
}
