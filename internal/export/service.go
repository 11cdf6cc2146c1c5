// Package export projects a coding session into its downloadable forms: the
// flattened tabular CSV, the printable HTML report, and the PDF rendering of
// that report. The structured JSON form lives in the snapshot package; this
// package only ever reads live session state.
package export

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"fomcval/api/internal/provider"
	"fomcval/api/internal/validation"
)

const (
	RecordValidatedDecision = "validated_decision"
	RecordMissingDecision   = "missing_decision"
	RecordMeetingSummary    = "meeting_summary"
)

// ErrPDFDependencyMissing indicates the headless browser needed for PDF
// rendering is not installed.
var ErrPDFDependencyMissing = errors.New("export pdf dependency missing")

// Result is a rendered export ready to stream to the caller.
type Result struct {
	Data     []byte
	Filename string
	MimeType string
}

// csvHeader is the fixed column set of the tabular export. Order is part of
// the output contract.
var csvHeader = []string{
	"meeting_date",
	"coder_id",
	"coding_timestamp",
	"record_type",
	"decision_index",
	"claude_description",
	"claude_type",
	"claude_score",
	"claude_justification",
	"human_occurred",
	"human_corrected_description",
	"human_type_agree",
	"human_type_override",
	"human_score",
	"human_evidence",
	"human_notes",
	"human_confidence",
	"completed",
}

// Row is one record of the tabular export. Nil pointers render as empty
// cells; DecisionIndex is a string because missing-decision rows carry the
// synthetic "missing_<n>" identity.
type Row struct {
	MeetingDate               string
	CoderID                   string
	CodingTimestamp           string
	RecordType                string
	DecisionIndex             string
	ClaudeDescription         *string
	ClaudeType                *string
	ClaudeScore               *int
	ClaudeJustification       *string
	HumanOccurred             *string
	HumanCorrectedDescription *string
	HumanTypeAgree            *bool
	HumanTypeOverride         *string
	HumanScore                *int
	HumanEvidence             *string
	HumanNotes                *string
	HumanConfidence           *string
	Completed                 *bool
}

// TabularRows flattens the session into uniform rows: one per extracted
// decision in index order, one per missing decision, then a single summary
// row. Every row count is therefore decisions + missing + 1.
func TabularRows(session *validation.Session, records []provider.DecisionRecord, now time.Time) []Row {
	timestamp := now.Format(time.RFC3339)
	base := Row{
		MeetingDate:     session.Meeting,
		CoderID:         session.CoderID,
		CodingTimestamp: timestamp,
	}

	byIndex := make(map[int]provider.DecisionRecord, len(records))
	for _, record := range records {
		byIndex[record.Index] = record
	}

	rows := make([]Row, 0, session.DecisionCount+len(session.Missing)+1)
	for index := 0; index < session.DecisionCount; index++ {
		entry, ok := session.Validations[index]
		if !ok {
			entry = &validation.Entry{DecisionIndex: index}
		}
		row := base
		row.RecordType = RecordValidatedDecision
		row.DecisionIndex = strconv.Itoa(index)
		if record, ok := byIndex[index]; ok {
			row.ClaudeDescription = ptr(record.Description)
			row.ClaudeType = ptr(record.Type)
			row.ClaudeScore = ptr(record.Score)
			row.ClaudeJustification = ptr(record.Justification)
		}
		row.HumanOccurred = stringValue(entry.HumanOccurred)
		row.HumanCorrectedDescription = entry.HumanCorrectedDescription
		row.HumanTypeAgree = entry.HumanTypeAgree
		row.HumanTypeOverride = stringValue(entry.HumanTypeOverride)
		row.HumanScore = entry.HumanScore
		row.HumanEvidence = ptr(entry.HumanEvidence)
		row.HumanNotes = ptr(entry.HumanNotes)
		row.HumanConfidence = stringValue(entry.HumanConfidence)
		row.Completed = ptr(entry.Completed)
		rows = append(rows, row)
	}

	for i, missing := range session.Missing {
		row := base
		row.RecordType = RecordMissingDecision
		row.DecisionIndex = fmt.Sprintf("missing_%d", i+1)
		row.HumanOccurred = ptr("missing")
		row.HumanCorrectedDescription = ptr(missing.Description)
		row.HumanTypeOverride = ptr(string(missing.Type))
		row.HumanScore = ptr(missing.Score)
		row.HumanEvidence = ptr(missing.Evidence)
		row.HumanNotes = ptr(missing.Notes)
		row.HumanConfidence = stringValue(missing.Confidence)
		row.Completed = ptr(true)
		rows = append(rows, row)
	}

	summary := base
	summary.RecordType = RecordMeetingSummary
	summary.HumanNotes = ptr(session.Summary.GeneralNotes)
	summary.HumanConfidence = stringValue(session.Summary.OverallAssessment)
	summary.Completed = ptr(session.Summary.AllDecisionsComplete)
	rows = append(rows, summary)

	return rows
}

// WriteCSV streams header plus rows.
func WriteCSV(w io.Writer, rows []Row) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(csvHeader); err != nil {
		return fmt.Errorf("write csv header: %w", err)
	}
	for _, row := range rows {
		record := []string{
			row.MeetingDate,
			row.CoderID,
			row.CodingTimestamp,
			row.RecordType,
			row.DecisionIndex,
			cell(row.ClaudeDescription),
			cell(row.ClaudeType),
			intCell(row.ClaudeScore),
			cell(row.ClaudeJustification),
			cell(row.HumanOccurred),
			cell(row.HumanCorrectedDescription),
			boolCell(row.HumanTypeAgree),
			cell(row.HumanTypeOverride),
			intCell(row.HumanScore),
			cell(row.HumanEvidence),
			cell(row.HumanNotes),
			cell(row.HumanConfidence),
			boolCell(row.Completed),
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write csv row: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("flush csv: %w", err)
	}
	return nil
}

// Filename builds the download name: decisions_<meeting>_<coder>_<ts>.<ext>.
func Filename(meeting, coderID, extension string, now time.Time) string {
	return fmt.Sprintf("decisions_%s_%s_%s.%s", meeting, coderID, now.Format("20060102_150405"), extension)
}

func ptr[T any](v T) *T { return &v }

func stringValue[T ~string](v *T) *string {
	if v == nil {
		return nil
	}
	s := string(*v)
	return &s
}

func cell(v *string) string {
	if v == nil {
		return ""
	}
	return *v
}

func intCell(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func boolCell(v *bool) string {
	if v == nil {
		return ""
	}
	return strconv.FormatBool(*v)
}
