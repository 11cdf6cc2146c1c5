// Package validation owns the per-meeting coding state: one validation entry
// per extracted decision, the reviewer's missing-decision list, and the
// meeting summary. All mutation goes through Session methods; presentation
// layers only read.
package validation

import (
	"errors"
	"fmt"
	"strings"
)

// Occurrence is the reviewer's answer to "did this decision occur?".
type Occurrence string

const (
	OccurredExact     Occurrence = "yes_exact"
	OccurredCorrected Occurrence = "yes_corrected"
	OccurredNo        Occurrence = "no"
)

func (o Occurrence) Valid() bool {
	switch o {
	case OccurredExact, OccurredCorrected, OccurredNo:
		return true
	}
	return false
}

// DecisionType classifies a policy decision. Values match the provider's
// decision files verbatim.
type DecisionType string

const (
	TypeRateDecision  DecisionType = "rate decision"
	TypeCommunication DecisionType = "communication"
	TypeOther         DecisionType = "other"
)

func (t DecisionType) Valid() bool {
	switch t {
	case TypeRateDecision, TypeCommunication, TypeOther:
		return true
	}
	return false
}

// Confidence is the reviewer's confidence in a single judgment.
type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

func (c Confidence) Valid() bool {
	switch c {
	case ConfidenceHigh, ConfidenceMedium, ConfidenceLow:
		return true
	}
	return false
}

// Assessment is the meeting-level quality judgment of the extraction.
type Assessment string

const (
	AssessmentExcellent Assessment = "excellent"
	AssessmentGood      Assessment = "good"
	AssessmentFair      Assessment = "fair"
	AssessmentPoor      Assessment = "poor"
)

func (a Assessment) Valid() bool {
	switch a {
	case AssessmentExcellent, AssessmentGood, AssessmentFair, AssessmentPoor:
		return true
	}
	return false
}

// Entry is the reviewer's judgment about one extracted decision. Nil pointer
// fields mean "not answered yet". HumanCorrectedDescription is meaningful
// only while HumanOccurred == yes_corrected; HumanTypeOverride only while
// HumanTypeAgree == false.
type Entry struct {
	DecisionIndex             int           `json:"decision_index"`
	HumanOccurred             *Occurrence   `json:"human_occurred"`
	HumanCorrectedDescription *string       `json:"human_corrected_description"`
	HumanTypeAgree            *bool         `json:"human_type_agree"`
	HumanTypeOverride         *DecisionType `json:"human_type_override"`
	HumanScore                *int          `json:"human_score"`
	HumanEvidence             string        `json:"human_evidence"`
	HumanNotes                string        `json:"human_notes"`
	HumanConfidence           *Confidence   `json:"human_confidence"`
	Completed                 bool          `json:"completed"`
}

// MissingDecision is a decision the reviewer believes occurred but was not
// extracted. Identity is positional in the session list.
type MissingDecision struct {
	Description string       `json:"description"`
	Type        DecisionType `json:"type"`
	Score       int          `json:"score"`
	Evidence    string       `json:"evidence"`
	Notes       string       `json:"notes"`
	Confidence  *Confidence  `json:"confidence"`
}

// Summary is the meeting-level wrap-up. AllDecisionsComplete is derived and
// recomputed after every completion-affecting mutation.
type Summary struct {
	AllDecisionsComplete bool        `json:"all_decisions_complete"`
	MissingCheckComplete bool        `json:"missing_check_complete"`
	OverallAssessment    *Assessment `json:"overall_assessment"`
	GeneralNotes         string      `json:"general_notes"`
}

// ErrInvalidValue is wrapped by every field-level validation failure.
var ErrInvalidValue = errors.New("invalid value")

// ErrIndexOutOfRange is returned by positional operations given a position
// outside the current list.
var ErrIndexOutOfRange = errors.New("index out of range")

// IncompleteError reports which required fields block a completion.
type IncompleteError struct {
	MissingFields []string
}

func (e *IncompleteError) Error() string {
	return "incomplete required fields: " + strings.Join(e.MissingFields, ", ")
}

func invalidValue(field string, value any) error {
	return fmt.Errorf("%w: %s = %v", ErrInvalidValue, field, value)
}
