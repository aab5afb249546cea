// Package domain contains the core entities shared by the analysis pipeline:
// the per-session state carried through the query router, the report history
// kept across invocations, and the records persisted for direct analyses.
package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// DataType tags which analysis branch produced the current state
type DataType string

const (
	DataTypeQuery    DataType = "QUERY"
	DataTypeDNA      DataType = "DNA_Analysis"
	DataTypeBrain    DataType = "Brain_Tumor_Analysis"
	DataTypeDiabetes DataType = "Diabetes_Analysis"
)

// DefaultSessionID is used when a chat request carries no session identifier
const DefaultSessionID = "default_user"

// ReportHistory keeps the latest report per analysis kind. It always
// serializes to exactly three keys.
type ReportHistory struct {
	DNAReport      string `json:"dna_report"`
	BrainReport    string `json:"brain_report"`
	DiabetesReport string `json:"diabetes_report"`
}

// WithReport returns a copy of h with the slot matching dataType replaced.
// The second result is false when dataType maps to no slot.
func (h ReportHistory) WithReport(dataType DataType, report string) (ReportHistory, bool) {
	tag := strings.ToUpper(string(dataType))
	switch {
	case strings.Contains(tag, "DNA"):
		h.DNAReport = report
	case strings.Contains(tag, "BRAIN"):
		h.BrainReport = report
	case strings.Contains(tag, "DIABETES"):
		h.DiabetesReport = report
	default:
		return h, false
	}
	return h, true
}

// RepairHistory decodes a persisted history value. Anything that is not a
// JSON object yields the empty history; non-string slot values are dropped.
func RepairHistory(raw json.RawMessage) ReportHistory {
	var fields map[string]interface{}
	if len(raw) == 0 || json.Unmarshal(raw, &fields) != nil || fields == nil {
		return ReportHistory{}
	}

	slot := func(key string) string {
		if s, ok := fields[key].(string); ok {
			return s
		}
		return ""
	}

	return ReportHistory{
		DNAReport:      slot("dna_report"),
		BrainReport:    slot("brain_report"),
		DiabetesReport: slot("diabetes_report"),
	}
}

// SessionState is the value threaded through the router graph for one
// invocation.
type SessionState struct {
	SessionID     string        `json:"session_id"`
	UserQuery     string        `json:"user_query"`
	DataType      DataType      `json:"data_type"`
	PatientData   interface{}   `json:"patient_data"`
	ModelResult   string        `json:"model_result"`
	FinalReport   string        `json:"final_report"`
	ReportHistory ReportHistory `json:"report_history"`
	Error         string        `json:"error"`
}

// NewSessionState builds the fresh state for a request, carrying only the
// persisted history forward.
func NewSessionState(sessionID, query string, patientData interface{}, history ReportHistory) SessionState {
	if patientData == nil {
		patientData = map[string]interface{}{}
	}
	return SessionState{
		SessionID:     sessionID,
		UserQuery:     query,
		DataType:      DataTypeQuery,
		PatientData:   patientData,
		ReportHistory: history,
	}
}

// Checkpoint is a persisted session snapshot
type Checkpoint struct {
	SessionID string          `json:"session_id"`
	State     json.RawMessage `json:"state"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// History extracts and repairs the report history stored in the snapshot
func (c *Checkpoint) History() ReportHistory {
	if c == nil {
		return ReportHistory{}
	}
	var envelope struct {
		ReportHistory json.RawMessage `json:"report_history"`
	}
	if err := json.Unmarshal(c.State, &envelope); err != nil {
		return ReportHistory{}
	}
	return RepairHistory(envelope.ReportHistory)
}

// VariantRecord is the structured variant payload sent to the scoring service
type VariantRecord struct {
	Chromosome      string `json:"chromosome"`
	VariantPosition int64  `json:"variant_position"`
	Alternative     string `json:"alternative"`
	Genome          string `json:"genome"`
}
