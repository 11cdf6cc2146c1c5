// Package app is the session lifecycle controller and its HTTP surface. It
// mediates every state transition (meeting selection, coder change, restore,
// clears) so that session state is always consistent with the currently
// selected meeting.
package app

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"sync"
	"time"

	"fomcval/api/internal/export"
	"fomcval/api/internal/meetings"
	"fomcval/api/internal/provider"
	"fomcval/api/internal/results"
	"fomcval/api/internal/search"
	"fomcval/api/internal/session"
	"fomcval/api/internal/snapshot"
	"fomcval/api/internal/util"
	"fomcval/api/internal/validation"
)

type Service struct {
	provider provider.Provider
	results  results.Store
	registry session.Registry
	search   *search.Service
	now      func() time.Time

	lockMu sync.Mutex
	locks  map[string]*sync.Mutex
}

func New(records provider.Provider, resultStore results.Store, registry session.Registry, searchService *search.Service) *Service {
	return &Service{
		provider: records,
		results:  resultStore,
		registry: registry,
		search:   searchService,
		now:      time.Now,
		locks:    make(map[string]*sync.Mutex),
	}
}

// sessionLock serializes the read-mutate-write cycle per session id.
func (s *Service) sessionLock(id string) *sync.Mutex {
	s.lockMu.Lock()
	defer s.lockMu.Unlock()
	lock, ok := s.locks[id]
	if !ok {
		lock = &sync.Mutex{}
		s.locks[id] = lock
	}
	return lock
}

func (s *Service) load(ctx context.Context, id string) (*validation.Session, error) {
	state, err := s.registry.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return state, nil
}

func (s *Service) store(ctx context.Context, id string, state *validation.Session) error {
	if err := s.registry.Put(ctx, id, state); err != nil {
		return fmt.Errorf("persist session: %w", err)
	}
	return nil
}

// CreateSession opens a fresh session with no meeting selected.
func (s *Service) CreateSession(ctx context.Context, coderID string) (string, map[string]any, error) {
	if coderID == "" {
		return "", nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "coderId is required", nil)
	}
	id := util.NewID("sess")
	state := validation.NewSession(coderID)
	if err := s.store(ctx, id, state); err != nil {
		return "", nil, err
	}
	return id, s.statePayload(id, state), nil
}

// GetState returns the full session state plus progress.
func (s *Service) GetState(ctx context.Context, id string) (map[string]any, error) {
	state, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.statePayload(id, state), nil
}

// EndSession drops the session from the registry and releases its lock.
func (s *Service) EndSession(ctx context.Context, id string) error {
	lock := s.sessionLock(id)
	lock.Lock()
	defer lock.Unlock()

	if _, err := s.load(ctx, id); err != nil {
		return err
	}
	if err := s.registry.Delete(ctx, id); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	s.lockMu.Lock()
	delete(s.locks, id)
	s.lockMu.Unlock()
	return nil
}

// SetCoder changes the reviewer identifier. Meeting state is untouched;
// coder id and meeting selection are independent axes.
func (s *Service) SetCoder(ctx context.Context, id, coderID string) (map[string]any, error) {
	if coderID == "" {
		return nil, domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "coderId is required", nil)
	}
	lock := s.sessionLock(id)
	lock.Lock()
	defer lock.Unlock()

	state, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	state.CoderID = coderID
	if err := s.store(ctx, id, state); err != nil {
		return nil, err
	}
	return s.statePayload(id, state), nil
}

// SelectMeeting switches the session to meeting ymd. Selecting the current
// meeting is a no-op. Otherwise the coding state resets, and the most
// recent saved snapshot for (ymd, current coder) is installed if one
// exists. A corrupt prior snapshot leaves the reset in place and surfaces
// the decode error.
func (s *Service) SelectMeeting(ctx context.Context, id, ymd string) (map[string]any, error) {
	if _, err := meetings.Get(ymd); err != nil {
		return nil, err
	}
	lock := s.sessionLock(id)
	lock.Lock()
	defer lock.Unlock()

	state, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if state.Meeting == ymd {
		return s.statePayload(id, state), nil
	}

	decisionCount := 0
	records, err := s.provider.ListDecisions(ctx, ymd)
	if err != nil && !errors.Is(err, provider.ErrNotFound) {
		return nil, err
	}
	decisionCount = len(records)

	state.Reset(ymd, decisionCount)

	data, err := s.results.FindLatest(ctx, ymd, state.CoderID)
	if errors.Is(err, results.ErrNotFound) {
		if err := s.store(ctx, id, state); err != nil {
			return nil, err
		}
		return s.statePayload(id, state), nil
	}
	if err != nil {
		return nil, err
	}

	restored, decodeErr := snapshot.Decode(data)
	if decodeErr != nil {
		if err := s.store(ctx, id, state); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("prior snapshot unusable: %w", decodeErr)
	}
	restored.CoderID = state.CoderID
	restored.Meeting = ymd
	if decisionCount > 0 {
		restored.DecisionCount = decisionCount
	}
	if err := s.store(ctx, id, restored); err != nil {
		return nil, err
	}
	return s.statePayload(id, restored), nil
}

// UpdateValidation applies a partial update to one entry.
func (s *Service) UpdateValidation(ctx context.Context, id string, index int, patch validation.Patch) (map[string]any, error) {
	return s.mutate(ctx, id, func(state *validation.Session) error {
		if err := requireMeeting(state); err != nil {
			return err
		}
		if err := checkIndex(state, index); err != nil {
			return err
		}
		_, err := state.Update(index, patch)
		return err
	})
}

// CompleteValidation marks one entry complete.
func (s *Service) CompleteValidation(ctx context.Context, id string, index int) (map[string]any, error) {
	return s.mutate(ctx, id, func(state *validation.Session) error {
		if err := requireMeeting(state); err != nil {
			return err
		}
		if err := checkIndex(state, index); err != nil {
			return err
		}
		return state.MarkComplete(index)
	})
}

// ClearValidation resets one entry back to defaults.
func (s *Service) ClearValidation(ctx context.Context, id string, index int) (map[string]any, error) {
	return s.mutate(ctx, id, func(state *validation.Session) error {
		if err := requireMeeting(state); err != nil {
			return err
		}
		if err := checkIndex(state, index); err != nil {
			return err
		}
		state.ClearEntry(index)
		return nil
	})
}

// AddMissing appends a reviewer-identified missing decision.
func (s *Service) AddMissing(ctx context.Context, id string, item validation.MissingDecision) (map[string]any, error) {
	return s.mutate(ctx, id, func(state *validation.Session) error {
		if err := requireMeeting(state); err != nil {
			return err
		}
		return state.AddMissing(item)
	})
}

// RemoveMissing removes the missing decision at position.
func (s *Service) RemoveMissing(ctx context.Context, id string, position int) (map[string]any, error) {
	return s.mutate(ctx, id, func(state *validation.Session) error {
		return state.RemoveMissing(position)
	})
}

// UpdateSummary applies a partial update to the meeting summary.
func (s *Service) UpdateSummary(ctx context.Context, id string, patch validation.SummaryPatch) (map[string]any, error) {
	return s.mutate(ctx, id, func(state *validation.Session) error {
		if err := requireMeeting(state); err != nil {
			return err
		}
		return state.UpdateSummary(patch)
	})
}

// Restore replaces the whole session from an uploaded document. The decode
// happens before anything is touched; a failed restore leaves the live
// session exactly as it was.
func (s *Service) Restore(ctx context.Context, id string, document []byte) (map[string]any, error) {
	lock := s.sessionLock(id)
	lock.Lock()
	defer lock.Unlock()

	if _, err := s.load(ctx, id); err != nil {
		return nil, err
	}
	restored, err := snapshot.Decode(document)
	if err != nil {
		return nil, err
	}
	if err := s.store(ctx, id, restored); err != nil {
		return nil, err
	}
	return s.statePayload(id, restored), nil
}

// SaveResults encodes the current session and persists it to the result
// store under the canonical filename.
func (s *Service) SaveResults(ctx context.Context, id string) (map[string]any, error) {
	lock := s.sessionLock(id)
	lock.Lock()
	defer lock.Unlock()

	state, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireMeeting(state); err != nil {
		return nil, err
	}

	data, _, err := s.encodeSnapshot(ctx, state)
	if err != nil {
		return nil, err
	}
	filename := export.Filename(state.Meeting, state.CoderID, "json", s.now())
	if err := s.results.Save(ctx, filename, data); err != nil {
		return nil, err
	}
	return map[string]any{"ok": true, "filename": filename}, nil
}

// ExportJSON renders the canonical snapshot document for download.
func (s *Service) ExportJSON(ctx context.Context, id string) (*export.Result, error) {
	state, err := s.loadWithMeeting(ctx, id)
	if err != nil {
		return nil, err
	}
	data, _, err := s.encodeSnapshot(ctx, state)
	if err != nil {
		return nil, err
	}
	return &export.Result{
		Data:     data,
		Filename: export.Filename(state.Meeting, state.CoderID, "json", s.now()),
		MimeType: "application/json",
	}, nil
}

// ExportCSV renders the flattened tabular form for download.
func (s *Service) ExportCSV(ctx context.Context, id string) (*export.Result, error) {
	state, err := s.loadWithMeeting(ctx, id)
	if err != nil {
		return nil, err
	}
	records, err := s.records(ctx, state.Meeting)
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, export.TabularRows(state, records, s.now())); err != nil {
		return nil, err
	}
	return &export.Result{
		Data:     buf.Bytes(),
		Filename: export.Filename(state.Meeting, state.CoderID, "csv", s.now()),
		MimeType: "text/csv",
	}, nil
}

// ExportPDF renders the printable report as PDF.
func (s *Service) ExportPDF(ctx context.Context, id string) (*export.Result, error) {
	state, err := s.loadWithMeeting(ctx, id)
	if err != nil {
		return nil, err
	}
	records, err := s.records(ctx, state.Meeting)
	if err != nil {
		return nil, err
	}
	meeting, err := meetings.Get(state.Meeting)
	if err != nil {
		return nil, err
	}

	html, err := export.RenderReportHTML(s.reportData(state, meeting, records))
	if err != nil {
		return nil, fmt.Errorf("render report: %w", err)
	}
	filename := export.Filename(state.Meeting, state.CoderID, "pdf", s.now())
	return export.RenderPDF(html, filename)
}

// MeetingsOverview lists the recognized meetings with decision counts.
func (s *Service) MeetingsOverview(ctx context.Context) map[string]any {
	items := make([]map[string]any, 0, 5)
	for _, meeting := range meetings.All() {
		item := map[string]any{
			"ymd":             meeting.YMD,
			"displayName":     meeting.DisplayName,
			"era":             meeting.Era,
			"hasAlternatives": meeting.HasAlternatives,
		}
		if records, err := s.provider.ListDecisions(ctx, meeting.YMD); err == nil {
			item["decisionCount"] = len(records)
		} else {
			item["decisionCount"] = 0
		}
		items = append(items, item)
	}
	return map[string]any{"meetings": items, "scoreScale": meetings.ScoreScale}
}

// MeetingDecisions returns the extracted decisions for one meeting.
func (s *Service) MeetingDecisions(ctx context.Context, ymd string) ([]provider.DecisionRecord, error) {
	if _, err := meetings.Get(ymd); err != nil {
		return nil, err
	}
	return s.provider.ListDecisions(ctx, ymd)
}

// MeetingAlternatives returns the policy alternatives for one meeting.
func (s *Service) MeetingAlternatives(ctx context.Context, ymd string) ([]provider.Alternative, error) {
	if _, err := meetings.Get(ymd); err != nil {
		return nil, err
	}
	return s.provider.ListAlternatives(ctx, ymd)
}

// MeetingTranscript returns the reconstructed transcript text.
func (s *Service) MeetingTranscript(ctx context.Context, ymd string) (string, error) {
	if _, err := meetings.Get(ymd); err != nil {
		return "", err
	}
	return s.provider.TranscriptText(ctx, ymd)
}

// MeetingStats returns transcript statistics.
func (s *Service) MeetingStats(ctx context.Context, ymd string) (provider.MeetingStats, error) {
	if _, err := meetings.Get(ymd); err != nil {
		return provider.MeetingStats{}, err
	}
	return s.provider.MeetingStats(ctx, ymd)
}

// SearchTranscript runs the canonical substring scan over one meeting's
// transcript.
func (s *Service) SearchTranscript(ctx context.Context, ymd, term string) ([]search.Match, error) {
	transcript, err := s.MeetingTranscript(ctx, ymd)
	if err != nil {
		return nil, err
	}
	matches := search.ScanTranscript(transcript, term)
	if matches == nil {
		matches = []search.Match{}
	}
	return matches, nil
}

// SearchAll runs a cross-meeting search through the search facade.
func (s *Service) SearchAll(ctx context.Context, q search.Query) search.Response {
	return s.search.Search(ctx, q)
}

// ListResults lists saved result files, optionally filtered by coder.
func (s *Service) ListResults(ctx context.Context, coderID string) ([]results.FileInfo, error) {
	items, err := s.results.List(ctx, coderID)
	if err != nil {
		return nil, err
	}
	if items == nil {
		items = []results.FileInfo{}
	}
	return items, nil
}

// Bootstrap indexes transcripts for cross-meeting search.
func (s *Service) Bootstrap(ctx context.Context) {
	s.search.Bootstrap(ctx)
}

func (s *Service) mutate(ctx context.Context, id string, apply func(*validation.Session) error) (map[string]any, error) {
	lock := s.sessionLock(id)
	lock.Lock()
	defer lock.Unlock()

	state, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := apply(state); err != nil {
		return nil, err
	}
	if err := s.store(ctx, id, state); err != nil {
		return nil, err
	}
	return s.statePayload(id, state), nil
}

func (s *Service) loadWithMeeting(ctx context.Context, id string) (*validation.Session, error) {
	state, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := requireMeeting(state); err != nil {
		return nil, err
	}
	return state, nil
}

// records fetches the meeting's decisions, treating a missing data set as
// an empty record list so exports of a no-data meeting still work.
func (s *Service) records(ctx context.Context, ymd string) ([]provider.DecisionRecord, error) {
	records, err := s.provider.ListDecisions(ctx, ymd)
	if errors.Is(err, provider.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return records, nil
}

func (s *Service) encodeSnapshot(ctx context.Context, state *validation.Session) ([]byte, snapshot.Document, error) {
	records, err := s.records(ctx, state.Meeting)
	if err != nil {
		return nil, snapshot.Document{}, err
	}
	stats, err := s.provider.MeetingStats(ctx, state.Meeting)
	if err != nil && !errors.Is(err, provider.ErrNotFound) {
		return nil, snapshot.Document{}, err
	}
	alternatives, err := s.provider.ListAlternatives(ctx, state.Meeting)
	if err != nil && !errors.Is(err, provider.ErrNotFound) {
		return nil, snapshot.Document{}, err
	}

	doc := snapshot.Encode(state, records, stats, len(alternatives), s.now())
	data, err := snapshot.Marshal(doc)
	if err != nil {
		return nil, snapshot.Document{}, err
	}
	return data, doc, nil
}

func (s *Service) reportData(state *validation.Session, meeting meetings.Meeting, records []provider.DecisionRecord) export.ReportData {
	byIndex := make(map[int]provider.DecisionRecord, len(records))
	for _, record := range records {
		byIndex[record.Index] = record
	}

	decisions := make([]export.ReportDecision, 0, state.DecisionCount)
	for index := 0; index < state.DecisionCount; index++ {
		entry, ok := state.Validations[index]
		if !ok {
			entry = &validation.Entry{DecisionIndex: index}
		}
		item := export.ReportDecision{
			Index:     index,
			Completed: entry.Completed,
			Evidence:  entry.HumanEvidence,
			Notes:     entry.HumanNotes,
		}
		if record, ok := byIndex[index]; ok {
			item.Description = record.Description
			item.Type = record.Type
			item.Score = record.Score
			item.FinalType = record.Type
		}
		if entry.HumanOccurred != nil {
			item.Occurred = string(*entry.HumanOccurred)
		}
		if entry.HumanCorrectedDescription != nil {
			item.Correction = *entry.HumanCorrectedDescription
		}
		if entry.HumanTypeOverride != nil {
			item.FinalType = string(*entry.HumanTypeOverride)
		}
		if entry.HumanScore != nil {
			item.HumanScore = strconv.Itoa(*entry.HumanScore)
		}
		if entry.HumanConfidence != nil {
			item.Confidence = string(*entry.HumanConfidence)
		}
		decisions = append(decisions, item)
	}

	missing := make([]export.ReportMissing, 0, len(state.Missing))
	for i, item := range state.Missing {
		row := export.ReportMissing{
			Position:    i + 1,
			Description: item.Description,
			Type:        string(item.Type),
			Score:       item.Score,
			Evidence:    item.Evidence,
			Notes:       item.Notes,
		}
		if item.Confidence != nil {
			row.Confidence = string(*item.Confidence)
		}
		missing = append(missing, row)
	}

	data := export.ReportData{
		MeetingName:    meeting.DisplayName,
		MeetingDate:    meeting.YMD,
		CoderID:        state.CoderID,
		GeneratedAt:    s.now(),
		CompletedCount: state.CompletedCount(),
		DecisionCount:  state.DecisionCount,
		Decisions:      decisions,
		Missing:        missing,
		GeneralNotes:   state.Summary.GeneralNotes,
		AllComplete:    state.Summary.AllDecisionsComplete,
	}
	if state.Summary.OverallAssessment != nil {
		data.Assessment = string(*state.Summary.OverallAssessment)
	}
	return data
}

func (s *Service) statePayload(id string, state *validation.Session) map[string]any {
	payload := map[string]any{
		"sessionId":        id,
		"coderId":          state.CoderID,
		"meeting":          state.Meeting,
		"decisionCount":    state.DecisionCount,
		"validations":      state.Validations,
		"missingDecisions": state.Missing,
		"summary":          state.Summary,
		"progress": map[string]any{
			"completed": state.CompletedCount(),
			"total":     state.DecisionCount,
			"fraction":  state.CompletionFraction(),
		},
	}
	if meeting, err := meetings.Get(state.Meeting); err == nil {
		payload["meetingName"] = meeting.DisplayName
	}
	return payload
}

func requireMeeting(state *validation.Session) error {
	if state.Meeting == "" {
		return domainError(http.StatusUnprocessableEntity, "VALIDATION_ERROR", "no meeting selected", nil)
	}
	return nil
}

// checkIndex bounds validation indexes to the selected meeting's decision
// list; every stored entry stays within the snapshot's encoded range.
func checkIndex(state *validation.Session, index int) error {
	if index < 0 || index >= state.DecisionCount {
		return fmt.Errorf("%w: decision %d of %d", validation.ErrIndexOutOfRange, index, state.DecisionCount)
	}
	return nil
}
