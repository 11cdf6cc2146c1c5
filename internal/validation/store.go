package validation

// Session is the root coding state for one reviewer working one meeting.
// Exactly one Session is live per hosting-surface session id; all mutation
// is sequential relative to the reviewer's interaction stream.
type Session struct {
	CoderID       string            `json:"coder_id"`
	Meeting       string            `json:"meeting"`
	DecisionCount int               `json:"decision_count"`
	Validations   map[int]*Entry    `json:"validations"`
	Missing       []MissingDecision `json:"missing_decisions"`
	Summary       Summary           `json:"meeting_summary"`
}

// NewSession returns an empty session with no meeting selected.
func NewSession(coderID string) *Session {
	return &Session{
		CoderID:     coderID,
		Validations: make(map[int]*Entry),
		Missing:     []MissingDecision{},
	}
}

// Clone returns a copy sharing no mutable state with the receiver. Leaf
// pointers stay shared: updates always swap in fresh pointers, never write
// through old ones.
func (s *Session) Clone() *Session {
	out := *s
	out.Validations = make(map[int]*Entry, len(s.Validations))
	for index, entry := range s.Validations {
		copied := *entry
		out.Validations[index] = &copied
	}
	out.Missing = make([]MissingDecision, len(s.Missing))
	copy(out.Missing, s.Missing)
	return &out
}

// Reset clears all coding state and rebinds the session to meeting with the
// given provider decision count.
func (s *Session) Reset(meeting string, decisionCount int) {
	s.Meeting = meeting
	s.DecisionCount = decisionCount
	s.Validations = make(map[int]*Entry)
	s.Missing = []MissingDecision{}
	s.Summary = Summary{}
	s.recomputeSummary()
}

func defaultEntry(index int) *Entry {
	return &Entry{DecisionIndex: index, HumanEvidence: "", HumanNotes: ""}
}

// GetOrCreate returns the entry for index, creating a default one on first
// access. The factory is deterministic and has no side effect beyond the
// map insertion.
func (s *Session) GetOrCreate(index int) *Entry {
	if s.Validations == nil {
		s.Validations = make(map[int]*Entry)
	}
	entry, ok := s.Validations[index]
	if !ok {
		entry = defaultEntry(index)
		s.Validations[index] = entry
	}
	return entry
}

// Patch carries a partial update for one entry. Nil fields are left
// unchanged. Cross-field constraints are re-applied after every update:
// leaving yes_corrected clears the corrected description, and agreeing with
// the extracted type clears the override.
type Patch struct {
	HumanOccurred             *Occurrence   `json:"human_occurred"`
	HumanCorrectedDescription *string       `json:"human_corrected_description"`
	HumanTypeAgree            *bool         `json:"human_type_agree"`
	HumanTypeOverride         *DecisionType `json:"human_type_override"`
	HumanScore                *int          `json:"human_score"`
	HumanEvidence             *string       `json:"human_evidence"`
	HumanNotes                *string       `json:"human_notes"`
	HumanConfidence           *Confidence   `json:"human_confidence"`
}

func (p Patch) validate() error {
	if p.HumanOccurred != nil && !p.HumanOccurred.Valid() {
		return invalidValue("human_occurred", *p.HumanOccurred)
	}
	if p.HumanTypeOverride != nil && !p.HumanTypeOverride.Valid() {
		return invalidValue("human_type_override", *p.HumanTypeOverride)
	}
	if p.HumanScore != nil && (*p.HumanScore < -3 || *p.HumanScore > 3) {
		return invalidValue("human_score", *p.HumanScore)
	}
	if p.HumanConfidence != nil && !p.HumanConfidence.Valid() {
		return invalidValue("human_confidence", *p.HumanConfidence)
	}
	return nil
}

// Update applies patch to the entry for index. The entry is created if it
// does not exist yet. Only the entry itself changes; summary recomputation
// is reserved for MarkComplete/ClearEntry.
func (s *Session) Update(index int, patch Patch) (*Entry, error) {
	if err := patch.validate(); err != nil {
		return nil, err
	}
	entry := s.GetOrCreate(index)
	if patch.HumanOccurred != nil {
		occurred := *patch.HumanOccurred
		entry.HumanOccurred = &occurred
	}
	if patch.HumanCorrectedDescription != nil {
		description := *patch.HumanCorrectedDescription
		entry.HumanCorrectedDescription = &description
	}
	if patch.HumanTypeAgree != nil {
		agree := *patch.HumanTypeAgree
		entry.HumanTypeAgree = &agree
	}
	if patch.HumanTypeOverride != nil {
		override := *patch.HumanTypeOverride
		entry.HumanTypeOverride = &override
	}
	if patch.HumanScore != nil {
		score := *patch.HumanScore
		entry.HumanScore = &score
	}
	if patch.HumanEvidence != nil {
		entry.HumanEvidence = *patch.HumanEvidence
	}
	if patch.HumanNotes != nil {
		entry.HumanNotes = *patch.HumanNotes
	}
	if patch.HumanConfidence != nil {
		confidence := *patch.HumanConfidence
		entry.HumanConfidence = &confidence
	}

	if entry.HumanOccurred == nil || *entry.HumanOccurred != OccurredCorrected {
		entry.HumanCorrectedDescription = nil
	}
	if entry.HumanTypeAgree != nil && *entry.HumanTypeAgree {
		entry.HumanTypeOverride = nil
	}
	return entry, nil
}

// MarkComplete marks the entry for index complete. Occurrence and confidence
// are required; the error names every missing field.
func (s *Session) MarkComplete(index int) error {
	entry := s.GetOrCreate(index)
	var missing []string
	if entry.HumanOccurred == nil {
		missing = append(missing, "human_occurred")
	}
	if entry.HumanConfidence == nil {
		missing = append(missing, "human_confidence")
	}
	if len(missing) > 0 {
		return &IncompleteError{MissingFields: missing}
	}
	entry.Completed = true
	s.recomputeSummary()
	return nil
}

// ClearEntry resets the entry for index back to defaults.
func (s *Session) ClearEntry(index int) {
	if s.Validations == nil {
		s.Validations = make(map[int]*Entry)
	}
	s.Validations[index] = defaultEntry(index)
	s.recomputeSummary()
}

// CompletedCount counts completed entries within the current meeting's
// decision range.
func (s *Session) CompletedCount() int {
	count := 0
	for index, entry := range s.Validations {
		if index >= 0 && index < s.DecisionCount && entry.Completed {
			count++
		}
	}
	return count
}

// CompletionFraction is CompletedCount over the decision count, defined as 0
// for a meeting with no decisions.
func (s *Session) CompletionFraction() float64 {
	if s.DecisionCount == 0 {
		return 0
	}
	return float64(s.CompletedCount()) / float64(s.DecisionCount)
}

// AddMissing appends a reviewer-identified missing decision.
func (s *Session) AddMissing(item MissingDecision) error {
	if !item.Type.Valid() {
		return invalidValue("type", item.Type)
	}
	if item.Score < -3 || item.Score > 3 {
		return invalidValue("score", item.Score)
	}
	if item.Confidence != nil && !item.Confidence.Valid() {
		return invalidValue("confidence", *item.Confidence)
	}
	s.Missing = append(s.Missing, item)
	return nil
}

// RemoveMissing removes the entry at position. Positions of subsequent
// entries shift down by one; missing-decision identity is positional.
func (s *Session) RemoveMissing(position int) error {
	if position < 0 || position >= len(s.Missing) {
		return ErrIndexOutOfRange
	}
	s.Missing = append(s.Missing[:position], s.Missing[position+1:]...)
	return nil
}

// ClearMissing drops the whole missing-decision list.
func (s *Session) ClearMissing() {
	s.Missing = []MissingDecision{}
}

// SummaryPatch is a partial update for the meeting summary.
// AllDecisionsComplete is derived and cannot be patched.
type SummaryPatch struct {
	MissingCheckComplete *bool       `json:"missing_check_complete"`
	OverallAssessment    *Assessment `json:"overall_assessment"`
	GeneralNotes         *string     `json:"general_notes"`
}

// UpdateSummary applies patch to the meeting summary.
func (s *Session) UpdateSummary(patch SummaryPatch) error {
	if patch.OverallAssessment != nil && !patch.OverallAssessment.Valid() {
		return invalidValue("overall_assessment", *patch.OverallAssessment)
	}
	if patch.MissingCheckComplete != nil {
		s.Summary.MissingCheckComplete = *patch.MissingCheckComplete
	}
	if patch.OverallAssessment != nil {
		assessment := *patch.OverallAssessment
		s.Summary.OverallAssessment = &assessment
	}
	if patch.GeneralNotes != nil {
		s.Summary.GeneralNotes = *patch.GeneralNotes
	}
	return nil
}

// recomputeSummary refreshes the derived all-complete flag: true iff every
// decision index in the current meeting has a completed entry.
func (s *Session) recomputeSummary() {
	for index := 0; index < s.DecisionCount; index++ {
		entry, ok := s.Validations[index]
		if !ok || !entry.Completed {
			s.Summary.AllDecisionsComplete = false
			return
		}
	}
	s.Summary.AllDecisionsComplete = true
}
