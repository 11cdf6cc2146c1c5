// Package snapshot serializes a coding session to its canonical JSON
// document and rebuilds sessions from uploaded or previously saved
// documents. The encoding is reproducible byte for byte modulo the
// coding timestamp.
package snapshot

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fomcval/api/internal/meetings"
	"fomcval/api/internal/provider"
	"fomcval/api/internal/validation"
)

// AppVersion is recorded in every document's metadata.
const AppVersion = "1.0"

// ErrMalformedDocument is returned when the input cannot be parsed as a
// snapshot document at all.
var ErrMalformedDocument = errors.New("malformed document")

// Metadata is the document header. All fields are written on encode;
// decode requires only MeetingDate.
type Metadata struct {
	MeetingDate           string `json:"meeting_date"`
	CoderID               string `json:"coder_id"`
	CodingTimestamp       string `json:"coding_timestamp"`
	AppVersion            string `json:"app_version"`
	TranscriptWordCount   int    `json:"transcript_word_count"`
	NumDecisionsClaude    int    `json:"num_decisions_claude"`
	AlternativesAvailable bool   `json:"alternatives_available"`
}

// DecisionValidation merges one extracted decision with the reviewer's
// judgment about it. The claude_ fields carry the machine extraction; a nil
// DecisionIndex marks an entry that cannot be keyed back into a session.
type DecisionValidation struct {
	DecisionIndex             *int                     `json:"decision_index"`
	ClaudeDescription         *string                  `json:"claude_description"`
	ClaudeType                *string                  `json:"claude_type"`
	ClaudeScore               *int                     `json:"claude_score"`
	ClaudeJustification       *string                  `json:"claude_justification"`
	HumanOccurred             *validation.Occurrence   `json:"human_occurred"`
	HumanCorrectedDescription *string                  `json:"human_corrected_description"`
	HumanTypeAgree            *bool                    `json:"human_type_agree"`
	HumanTypeOverride         *validation.DecisionType `json:"human_type_override"`
	HumanScore                *int                     `json:"human_score"`
	HumanEvidence             string                   `json:"human_evidence"`
	HumanNotes                string                   `json:"human_notes"`
	HumanConfidence           *validation.Confidence   `json:"human_confidence"`
	Completed                 bool                     `json:"completed"`
}

// Document is the canonical four-section snapshot.
type Document struct {
	Metadata            Metadata                     `json:"metadata"`
	DecisionValidations []DecisionValidation         `json:"decision_validations"`
	MissingDecisions    []validation.MissingDecision `json:"missing_decisions"`
	MeetingSummary      validation.Summary           `json:"meeting_summary"`
}

// Encode projects the live session into a document, joining each decision
// index with its provider record. One DecisionValidation is emitted per
// extracted decision in ascending index order; indexes the reviewer never
// touched get a default entry.
func Encode(session *validation.Session, records []provider.DecisionRecord, stats provider.MeetingStats, alternativesCount int, now time.Time) Document {
	byIndex := make(map[int]provider.DecisionRecord, len(records))
	for _, record := range records {
		byIndex[record.Index] = record
	}

	validations := make([]DecisionValidation, 0, session.DecisionCount)
	for index := 0; index < session.DecisionCount; index++ {
		entry, ok := session.Validations[index]
		if !ok {
			entry = &validation.Entry{DecisionIndex: index}
		}
		idx := index
		item := DecisionValidation{
			DecisionIndex:             &idx,
			HumanOccurred:             entry.HumanOccurred,
			HumanCorrectedDescription: entry.HumanCorrectedDescription,
			HumanTypeAgree:            entry.HumanTypeAgree,
			HumanTypeOverride:         entry.HumanTypeOverride,
			HumanScore:                entry.HumanScore,
			HumanEvidence:             entry.HumanEvidence,
			HumanNotes:                entry.HumanNotes,
			HumanConfidence:           entry.HumanConfidence,
			Completed:                 entry.Completed,
		}
		if record, ok := byIndex[index]; ok {
			description, recordType, justification := record.Description, record.Type, record.Justification
			score := record.Score
			item.ClaudeDescription = &description
			item.ClaudeType = &recordType
			item.ClaudeScore = &score
			item.ClaudeJustification = &justification
		}
		validations = append(validations, item)
	}

	missing := session.Missing
	if missing == nil {
		missing = []validation.MissingDecision{}
	}

	return Document{
		Metadata: Metadata{
			MeetingDate:           session.Meeting,
			CoderID:               session.CoderID,
			CodingTimestamp:       now.Format(time.RFC3339),
			AppVersion:            AppVersion,
			TranscriptWordCount:   stats.WordCount,
			NumDecisionsClaude:    session.DecisionCount,
			AlternativesAvailable: alternativesCount > 0,
		},
		DecisionValidations: validations,
		MissingDecisions:    missing,
		MeetingSummary:      session.Summary,
	}
}

// Marshal renders the canonical byte form: two-space indented JSON with a
// trailing newline.
func Marshal(doc Document) ([]byte, error) {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshal document: %w", err)
	}
	return append(data, '\n'), nil
}

// Parse reads document bytes without interpreting them as a session.
// Unparseable input is ErrMalformedDocument; an absent or unrecognized
// meeting date is meetings.ErrUnsupportedMeeting.
func Parse(data []byte) (Document, error) {
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrMalformedDocument, err)
	}
	if _, err := meetings.Get(doc.Metadata.MeetingDate); err != nil {
		return Document{}, err
	}
	return doc, nil
}

// Decode parses data and rebuilds the full session it describes. Entries
// without a decision_index are dropped; absent optional sections leave the
// corresponding session parts at their defaults.
func Decode(data []byte) (*validation.Session, error) {
	doc, err := Parse(data)
	if err != nil {
		return nil, err
	}
	return ToSession(doc), nil
}

// ToSession materializes a parsed document as a session.
func ToSession(doc Document) *validation.Session {
	session := validation.NewSession(doc.Metadata.CoderID)
	session.Meeting = doc.Metadata.MeetingDate
	session.DecisionCount = decisionCount(doc)

	for _, item := range doc.DecisionValidations {
		if item.DecisionIndex == nil {
			continue
		}
		session.Validations[*item.DecisionIndex] = &validation.Entry{
			DecisionIndex:             *item.DecisionIndex,
			HumanOccurred:             item.HumanOccurred,
			HumanCorrectedDescription: item.HumanCorrectedDescription,
			HumanTypeAgree:            item.HumanTypeAgree,
			HumanTypeOverride:         item.HumanTypeOverride,
			HumanScore:                item.HumanScore,
			HumanEvidence:             item.HumanEvidence,
			HumanNotes:                item.HumanNotes,
			HumanConfidence:           item.HumanConfidence,
			Completed:                 item.Completed,
		}
	}
	if doc.MissingDecisions != nil {
		session.Missing = doc.MissingDecisions
	}
	session.Summary = doc.MeetingSummary
	return session
}

// decisionCount recovers the meeting's decision count: the recorded
// extraction count, widened if any surviving entry sits past it.
func decisionCount(doc Document) int {
	count := doc.Metadata.NumDecisionsClaude
	for _, item := range doc.DecisionValidations {
		if item.DecisionIndex != nil && *item.DecisionIndex >= count {
			count = *item.DecisionIndex + 1
		}
	}
	return count
}
