package search

import (
	"context"
	"log"
	"strings"

	"fomcval/api/internal/meetings"
	"fomcval/api/internal/provider"
)

// Service is the facade that tries Meilisearch first and falls back to a
// transcript scan over the provider. meili may be nil when not configured.
type Service struct {
	meili    *Meili
	provider provider.Provider
}

func NewService(meili *Meili, records provider.Provider) *Service {
	return &Service{meili: meili, provider: records}
}

// Search serves a cross-meeting query. The scan fallback walks every
// recognized meeting (or just q.Meeting) and applies the canonical
// substring semantics.
func (s *Service) Search(ctx context.Context, q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text}
		}
		log.Printf("search: meilisearch error, falling back to scan: %v", err)
	}
	return s.scan(ctx, q)
}

func (s *Service) scan(ctx context.Context, q Query) Response {
	targets := make([]string, 0, 5)
	if q.Meeting != "" {
		targets = append(targets, q.Meeting)
	} else {
		for _, meeting := range meetings.All() {
			targets = append(targets, meeting.YMD)
		}
	}

	limit := q.Limit
	if limit == 0 {
		limit = 20
	}

	results := []Result{}
	total := 0
	for _, ymd := range targets {
		transcript, err := s.provider.TranscriptText(ctx, ymd)
		if err != nil {
			continue
		}
		for _, match := range ScanTranscript(transcript, q.Text) {
			total++
			if len(results) >= limit {
				continue
			}
			results = append(results, Result{
				Meeting: ymd,
				Index:   match.Index,
				Speaker: speakerOf(match.Text),
				Text:    match.Text,
				Preview: match.Preview,
			})
		}
	}
	return Response{Results: results, Total: total, Query: q.Text}
}

// Bootstrap pushes every recognized meeting's transcript into Meilisearch.
// Failures are logged and skipped; the scan fallback still works.
func (s *Service) Bootstrap(ctx context.Context) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	for _, meeting := range meetings.All() {
		utterances, err := s.provider.Utterances(ctx, meeting.YMD)
		if err != nil {
			log.Printf("search: skip indexing %s: %v", meeting.YMD, err)
			continue
		}
		if err := s.meili.IndexMeeting(meeting.YMD, utterances); err != nil {
			log.Printf("search: index %s: %v", meeting.YMD, err)
		}
	}
}

// speakerOf pulls the "LABEL:" prefix off a transcript unit, if present.
func speakerOf(unit string) string {
	if idx := strings.Index(unit, ":"); idx > 0 && idx < 60 {
		return unit[:idx]
	}
	return ""
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
