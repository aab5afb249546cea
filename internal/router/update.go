package router

import "github.com/evogene-server/internal/domain"

// Update is a partial state change returned by a node. Nil fields leave the
// state untouched.
type Update struct {
	DataType      *domain.DataType
	PatientData   interface{}
	ModelResult   *string
	FinalReport   *string
	ReportHistory *domain.ReportHistory
	Error         *string
}

// Apply returns a new state with u merged into s
func (u Update) Apply(s domain.SessionState) domain.SessionState {
	if u.DataType != nil {
		s.DataType = *u.DataType
	}
	if u.PatientData != nil {
		s.PatientData = u.PatientData
	}
	if u.ModelResult != nil {
		s.ModelResult = *u.ModelResult
	}
	if u.FinalReport != nil {
		s.FinalReport = *u.FinalReport
	}
	if u.ReportHistory != nil {
		s.ReportHistory = *u.ReportHistory
	}
	if u.Error != nil {
		s.Error = *u.Error
	}
	return s
}

func str(s string) *string {
	return &s
}

func dataType(t domain.DataType) *domain.DataType {
	return &t
}

// failure clears the model result and records msg
func failure(msg string) Update {
	return Update{ModelResult: str(""), Error: str(msg)}
}
