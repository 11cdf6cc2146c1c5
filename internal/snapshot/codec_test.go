package snapshot

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"fomcval/api/internal/meetings"
	"fomcval/api/internal/provider"
	"fomcval/api/internal/validation"
)

var fixedNow = time.Date(2026, 3, 14, 15, 9, 26, 0, time.UTC)

func sampleRecords() []provider.DecisionRecord {
	return []provider.DecisionRecord{
		{Index: 0, Description: "Cut the target to 0 to 1/4 percent", Type: "rate decision", Score: -3, Justification: "Statement language"},
		{Index: 1, Description: "Signal low rates for some time", Type: "communication", Score: -2, Justification: "Forward guidance"},
		{Index: 2, Description: "Expand agency debt purchases", Type: "other", Score: -2, Justification: "Balance sheet discussion"},
	}
}

func sampleSession(t *testing.T) *validation.Session {
	t.Helper()
	s := validation.NewSession("coder1")
	s.Reset("20081216", 3)

	occurred := validation.OccurredCorrected
	conf := validation.ConfidenceHigh
	corrected := "Cut to exactly zero"
	if _, err := s.Update(0, validation.Patch{
		HumanOccurred:             &occurred,
		HumanCorrectedDescription: &corrected,
		HumanConfidence:           &conf,
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkComplete(0); err != nil {
		t.Fatal(err)
	}
	if err := s.AddMissing(validation.MissingDecision{
		Description: "swap line extension",
		Type:        validation.TypeOther,
		Score:       2,
	}); err != nil {
		t.Fatal(err)
	}
	assessment := validation.AssessmentGood
	if err := s.UpdateSummary(validation.SummaryPatch{OverallAssessment: &assessment}); err != nil {
		t.Fatal(err)
	}
	return s
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	session := sampleSession(t)
	stats := provider.MeetingStats{WordCount: 41000, UtteranceCount: 900}

	doc := Encode(session, sampleRecords(), stats, 2, fixedNow)
	data, err := Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}

	restored, err := Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	if restored.CoderID != "coder1" || restored.Meeting != "20081216" || restored.DecisionCount != 3 {
		t.Fatalf("restored header = %+v", restored)
	}
	entry := restored.Validations[0]
	if entry == nil || !entry.Completed {
		t.Fatalf("entry 0 = %+v", entry)
	}
	if entry.HumanOccurred == nil || *entry.HumanOccurred != validation.OccurredCorrected {
		t.Fatalf("entry 0 occurrence = %+v", entry.HumanOccurred)
	}
	if entry.HumanCorrectedDescription == nil || *entry.HumanCorrectedDescription != "Cut to exactly zero" {
		t.Fatalf("entry 0 correction = %+v", entry.HumanCorrectedDescription)
	}
	if len(restored.Missing) != 1 || restored.Missing[0].Description != "swap line extension" {
		t.Fatalf("missing = %+v", restored.Missing)
	}
	if restored.Summary.OverallAssessment == nil || *restored.Summary.OverallAssessment != validation.AssessmentGood {
		t.Fatalf("summary = %+v", restored.Summary)
	}

	reencoded, err := Marshal(Encode(restored, sampleRecords(), stats, 2, fixedNow))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(data, reencoded) {
		t.Fatal("encode -> decode -> encode is not byte stable")
	}
}

func TestEncodeMergesProviderFields(t *testing.T) {
	session := sampleSession(t)
	doc := Encode(session, sampleRecords(), provider.MeetingStats{}, 0, fixedNow)

	if len(doc.DecisionValidations) != 3 {
		t.Fatalf("validations = %d, want 3", len(doc.DecisionValidations))
	}
	for i, item := range doc.DecisionValidations {
		if item.DecisionIndex == nil || *item.DecisionIndex != i {
			t.Fatalf("validation %d has index %v", i, item.DecisionIndex)
		}
	}
	first := doc.DecisionValidations[0]
	if first.ClaudeDescription == nil || *first.ClaudeDescription != "Cut the target to 0 to 1/4 percent" {
		t.Fatalf("claude_description = %v", first.ClaudeDescription)
	}
	if first.ClaudeScore == nil || *first.ClaudeScore != -3 {
		t.Fatalf("claude_score = %v", first.ClaudeScore)
	}
	untouched := doc.DecisionValidations[1]
	if untouched.HumanOccurred != nil || untouched.Completed {
		t.Fatalf("untouched entry not default: %+v", untouched)
	}
	if doc.Metadata.AlternativesAvailable {
		t.Fatal("alternatives_available true with zero alternatives")
	}
	if doc.Metadata.AppVersion != AppVersion || doc.Metadata.NumDecisionsClaude != 3 {
		t.Fatalf("metadata = %+v", doc.Metadata)
	}
}

func TestDecodeRejectsUnsupportedMeeting(t *testing.T) {
	data := []byte(`{"metadata":{"meeting_date":"20200101","coder_id":"coder1"}}`)
	if _, err := Decode(data); !errors.Is(err, meetings.ErrUnsupportedMeeting) {
		t.Fatalf("err = %v, want ErrUnsupportedMeeting", err)
	}

	data = []byte(`{"metadata":{"coder_id":"coder1"}}`)
	if _, err := Decode(data); !errors.Is(err, meetings.ErrUnsupportedMeeting) {
		t.Fatalf("absent meeting date: err = %v, want ErrUnsupportedMeeting", err)
	}
}

func TestDecodeRejectsMalformedBytes(t *testing.T) {
	for _, input := range []string{"not json at all", `{"metadata": [1,2]}`, `[]`} {
		if _, err := Decode([]byte(input)); !errors.Is(err, ErrMalformedDocument) {
			t.Fatalf("Decode(%q) err = %v, want ErrMalformedDocument", input, err)
		}
	}
}

func TestDecodeDefaultsAbsentSections(t *testing.T) {
	data := []byte(`{"metadata":{"meeting_date":"19940816","coder_id":"coder2","num_decisions_claude":2}}`)
	session, err := Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	if session.Meeting != "19940816" || session.CoderID != "coder2" || session.DecisionCount != 2 {
		t.Fatalf("session = %+v", session)
	}
	if len(session.Validations) != 0 || len(session.Missing) != 0 {
		t.Fatalf("absent sections should default empty: %+v", session)
	}
	if session.Summary != (validation.Summary{}) {
		t.Fatalf("summary = %+v", session.Summary)
	}
}

func TestDecodeDropsEntriesWithoutIndex(t *testing.T) {
	data := []byte(`{
		"metadata": {"meeting_date": "20081216", "coder_id": "coder1", "num_decisions_claude": 2},
		"decision_validations": [
			{"decision_index": 1, "human_notes": "kept", "completed": true},
			{"human_notes": "dropped", "completed": true}
		]
	}`)
	session, err := Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	if len(session.Validations) != 1 {
		t.Fatalf("validations = %+v", session.Validations)
	}
	if session.Validations[1] == nil || session.Validations[1].HumanNotes != "kept" {
		t.Fatalf("kept entry = %+v", session.Validations[1])
	}
}

func TestDecodeWidensDecisionCount(t *testing.T) {
	data := []byte(`{
		"metadata": {"meeting_date": "20081216", "coder_id": "coder1", "num_decisions_claude": 1},
		"decision_validations": [{"decision_index": 4}]
	}`)
	session, err := Decode(data)
	if err != nil {
		t.Fatal(err)
	}
	if session.DecisionCount != 5 {
		t.Fatalf("DecisionCount = %d, want 5", session.DecisionCount)
	}
}
