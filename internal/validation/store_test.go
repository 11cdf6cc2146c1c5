package validation

import (
	"errors"
	"testing"
)

func occurrence(v Occurrence) *Occurrence       { return &v }
func confidence(v Confidence) *Confidence       { return &v }
func decisionType(v DecisionType) *DecisionType { return &v }
func boolPtr(v bool) *bool                      { return &v }
func intPtr(v int) *int                         { return &v }
func strPtr(v string) *string                   { return &v }

func TestGetOrCreateIsIdempotent(t *testing.T) {
	s := NewSession("coder1")
	s.Reset("20081216", 4)

	first := s.GetOrCreate(2)
	if first.DecisionIndex != 2 {
		t.Fatalf("DecisionIndex = %d, want 2", first.DecisionIndex)
	}
	if first.HumanOccurred != nil || first.Completed {
		t.Fatalf("new entry is not default: %+v", first)
	}

	if _, err := s.Update(2, Patch{HumanNotes: strPtr("checked transcript")}); err != nil {
		t.Fatal(err)
	}
	second := s.GetOrCreate(2)
	if second != first {
		t.Fatal("GetOrCreate returned a different entry on second access")
	}
	if second.HumanNotes != "checked transcript" {
		t.Fatalf("HumanNotes = %q", second.HumanNotes)
	}
}

func TestUpdateRejectsInvalidValues(t *testing.T) {
	s := NewSession("coder1")
	s.Reset("20081216", 4)

	cases := []struct {
		name  string
		patch Patch
	}{
		{"occurrence", Patch{HumanOccurred: occurrence("maybe")}},
		{"type override", Patch{HumanTypeOverride: decisionType("guess")}},
		{"score low", Patch{HumanScore: intPtr(-4)}},
		{"score high", Patch{HumanScore: intPtr(4)}},
		{"confidence", Patch{HumanConfidence: confidence("certain")}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := s.Update(0, tc.patch); !errors.Is(err, ErrInvalidValue) {
				t.Fatalf("err = %v, want ErrInvalidValue", err)
			}
		})
	}
	if len(s.Validations) != 0 {
		t.Fatalf("rejected updates must not create entries, got %d", len(s.Validations))
	}
}

func TestUpdateClearsDependentFields(t *testing.T) {
	s := NewSession("coder1")
	s.Reset("20081216", 4)

	if _, err := s.Update(0, Patch{
		HumanOccurred:             occurrence(OccurredCorrected),
		HumanCorrectedDescription: strPtr("cut 75bp, not 50bp"),
		HumanTypeAgree:            boolPtr(false),
		HumanTypeOverride:         decisionType(TypeCommunication),
	}); err != nil {
		t.Fatal(err)
	}
	entry := s.GetOrCreate(0)
	if entry.HumanCorrectedDescription == nil || entry.HumanTypeOverride == nil {
		t.Fatalf("conditional fields should be set: %+v", entry)
	}

	if _, err := s.Update(0, Patch{HumanOccurred: occurrence(OccurredExact)}); err != nil {
		t.Fatal(err)
	}
	if entry.HumanCorrectedDescription != nil {
		t.Fatal("corrected description should clear when occurrence leaves yes_corrected")
	}

	if _, err := s.Update(0, Patch{HumanTypeAgree: boolPtr(true)}); err != nil {
		t.Fatal(err)
	}
	if entry.HumanTypeOverride != nil {
		t.Fatal("type override should clear when the reviewer agrees with the extracted type")
	}
}

func TestMarkCompleteRequiresOccurrenceAndConfidence(t *testing.T) {
	s := NewSession("coder1")
	s.Reset("20081216", 2)

	err := s.MarkComplete(0)
	var incomplete *IncompleteError
	if !errors.As(err, &incomplete) {
		t.Fatalf("err = %v, want IncompleteError", err)
	}
	if len(incomplete.MissingFields) != 2 ||
		incomplete.MissingFields[0] != "human_occurred" ||
		incomplete.MissingFields[1] != "human_confidence" {
		t.Fatalf("MissingFields = %v", incomplete.MissingFields)
	}
	if s.GetOrCreate(0).Completed {
		t.Fatal("entry marked complete despite missing fields")
	}

	if _, err := s.Update(0, Patch{HumanOccurred: occurrence(OccurredExact)}); err != nil {
		t.Fatal(err)
	}
	err = s.MarkComplete(0)
	if !errors.As(err, &incomplete) {
		t.Fatalf("err = %v, want IncompleteError", err)
	}
	if len(incomplete.MissingFields) != 1 || incomplete.MissingFields[0] != "human_confidence" {
		t.Fatalf("MissingFields = %v", incomplete.MissingFields)
	}

	if _, err := s.Update(0, Patch{HumanConfidence: confidence(ConfidenceHigh)}); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkComplete(0); err != nil {
		t.Fatal(err)
	}
	if !s.GetOrCreate(0).Completed {
		t.Fatal("entry not completed")
	}
}

func completeIndex(t *testing.T, s *Session, index int) {
	t.Helper()
	if _, err := s.Update(index, Patch{
		HumanOccurred:   occurrence(OccurredExact),
		HumanConfidence: confidence(ConfidenceHigh),
	}); err != nil {
		t.Fatal(err)
	}
	if err := s.MarkComplete(index); err != nil {
		t.Fatal(err)
	}
}

func TestSummaryTracksCompletion(t *testing.T) {
	s := NewSession("coder1")
	s.Reset("20081216", 3)

	if s.Summary.AllDecisionsComplete {
		t.Fatal("all-complete true with nothing completed")
	}
	completeIndex(t, s, 0)
	completeIndex(t, s, 1)
	if s.Summary.AllDecisionsComplete {
		t.Fatal("all-complete true at 2 of 3")
	}
	if got := s.CompletionFraction(); got < 0.66 || got > 0.67 {
		t.Fatalf("CompletionFraction = %v", got)
	}
	completeIndex(t, s, 2)
	if !s.Summary.AllDecisionsComplete {
		t.Fatal("all-complete false with every index completed")
	}

	s.ClearEntry(1)
	if s.Summary.AllDecisionsComplete {
		t.Fatal("all-complete not recomputed after clear")
	}
	if got := s.CompletedCount(); got != 2 {
		t.Fatalf("CompletedCount = %d after clear", got)
	}
}

func TestCompletionWithZeroDecisions(t *testing.T) {
	s := NewSession("coder1")
	s.Reset("19791006", 0)

	if !s.Summary.AllDecisionsComplete {
		t.Fatal("vacuously complete meeting should report all-complete")
	}
	if got := s.CompletionFraction(); got != 0 {
		t.Fatalf("CompletionFraction = %v, want 0", got)
	}
}

func TestOutOfRangeEntriesDoNotCount(t *testing.T) {
	s := NewSession("coder1")
	s.Reset("20081216", 2)

	completeIndex(t, s, 0)
	completeIndex(t, s, 1)
	completeIndex(t, s, 7)

	if got := s.CompletedCount(); got != 2 {
		t.Fatalf("CompletedCount = %d, want 2", got)
	}
	if got := s.CompletionFraction(); got != 1 {
		t.Fatalf("CompletionFraction = %v, want 1", got)
	}
}

func TestMissingDecisionsArePositional(t *testing.T) {
	s := NewSession("coder1")
	s.Reset("20081216", 1)

	for _, description := range []string{"first", "second", "third"} {
		if err := s.AddMissing(MissingDecision{
			Description: description,
			Type:        TypeOther,
			Score:       0,
		}); err != nil {
			t.Fatal(err)
		}
	}
	if err := s.RemoveMissing(1); err != nil {
		t.Fatal(err)
	}
	if len(s.Missing) != 2 || s.Missing[0].Description != "first" || s.Missing[1].Description != "third" {
		t.Fatalf("Missing = %+v", s.Missing)
	}
	if err := s.RemoveMissing(2); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("err = %v, want ErrIndexOutOfRange", err)
	}
	if err := s.RemoveMissing(-1); !errors.Is(err, ErrIndexOutOfRange) {
		t.Fatalf("err = %v, want ErrIndexOutOfRange", err)
	}
}

func TestAddMissingValidatesFields(t *testing.T) {
	s := NewSession("coder1")
	s.Reset("20081216", 1)

	if err := s.AddMissing(MissingDecision{Type: "bad", Score: 0}); !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("err = %v, want ErrInvalidValue", err)
	}
	if err := s.AddMissing(MissingDecision{Type: TypeOther, Score: 5}); !errors.Is(err, ErrInvalidValue) {
		t.Fatalf("err = %v, want ErrInvalidValue", err)
	}
	if len(s.Missing) != 0 {
		t.Fatalf("rejected items must not be appended, got %d", len(s.Missing))
	}
}

func TestResetDropsEverything(t *testing.T) {
	s := NewSession("coder1")
	s.Reset("20081216", 2)
	completeIndex(t, s, 0)
	if err := s.AddMissing(MissingDecision{Description: "x", Type: TypeOther}); err != nil {
		t.Fatal(err)
	}
	if err := s.UpdateSummary(SummaryPatch{GeneralNotes: strPtr("partial pass")}); err != nil {
		t.Fatal(err)
	}

	s.Reset("19940816", 3)
	if s.Meeting != "19940816" || s.DecisionCount != 3 {
		t.Fatalf("session not rebound: %+v", s)
	}
	if len(s.Validations) != 0 || len(s.Missing) != 0 {
		t.Fatal("coding state survived reset")
	}
	if s.Summary.GeneralNotes != "" || s.Summary.AllDecisionsComplete {
		t.Fatalf("summary survived reset: %+v", s.Summary)
	}
}
