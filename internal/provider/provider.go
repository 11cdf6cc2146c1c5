// Package provider serves the read-only extraction records a coding session
// validates against: extracted decisions, policy alternatives, and the
// meeting transcript. Implementations are backed by flat files or Postgres.
package provider

import (
	"context"
	"errors"
	"strings"
)

// ErrNotFound is returned when a recognized meeting has no records in the
// backing data set.
var ErrNotFound = errors.New("records not found")

// DecisionRecord is one extracted decision. Index is the stable zero-based
// position within the meeting's decision list.
type DecisionRecord struct {
	Index         int    `json:"index"`
	Description   string `json:"description"`
	Type          string `json:"type"`
	Score         int    `json:"score"`
	Justification string `json:"justification"`
}

// Alternative is one policy alternative put before the committee.
type Alternative struct {
	Label       string `json:"label"`
	Description string `json:"description"`
	Statement   string `json:"statement"`
}

// Utterance is one transcript turn, ordered by Sequence within the meeting.
type Utterance struct {
	Sequence int    `json:"n"`
	Title    string `json:"title"`
	Speaker  string `json:"speaker"`
	Text     string `json:"text"`
	Words    int    `json:"words"`
}

// MeetingStats summarizes a meeting's transcript.
type MeetingStats struct {
	WordCount      int `json:"word_count"`
	UtteranceCount int `json:"utterance_count"`
}

// Provider exposes the extraction records for recognized meetings. All
// methods return ErrNotFound when the backing data has nothing for ymd.
type Provider interface {
	ListDecisions(ctx context.Context, ymd string) ([]DecisionRecord, error)
	ListAlternatives(ctx context.Context, ymd string) ([]Alternative, error)
	Utterances(ctx context.Context, ymd string) ([]Utterance, error)
	TranscriptText(ctx context.Context, ymd string) (string, error)
	MeetingStats(ctx context.Context, ymd string) (MeetingStats, error)
}

// SpeakerLabel formats an utterance's speaker heading. Chair titles render
// fully uppercased ("CHAIRMAN Bernanke"); every other title gets the
// abbreviated form ("MR. Kohn").
func SpeakerLabel(title, speaker string) string {
	title = strings.TrimSpace(title)
	speaker = strings.TrimSpace(speaker)
	switch {
	case title != "" && speaker != "":
		upper := strings.ToUpper(title)
		switch upper {
		case "CHAIR", "CHAIRMAN", "VICE CHAIR", "VICE CHAIRMAN":
			return upper + " " + speaker
		}
		return upper + ". " + speaker
	case speaker != "":
		return speaker
	}
	return "UNKNOWN"
}

// TranscriptFromUtterances reconstructs the display transcript: one
// "LABEL: text" paragraph per non-empty utterance, blank-line separated.
func TranscriptFromUtterances(utterances []Utterance) string {
	lines := make([]string, 0, len(utterances))
	for _, u := range utterances {
		text := strings.TrimSpace(u.Text)
		if text == "" {
			continue
		}
		lines = append(lines, SpeakerLabel(u.Title, u.Speaker)+": "+text)
	}
	return strings.Join(lines, "\n\n")
}

// StatsFromUtterances derives meeting stats, counting words directly when
// the source rows carry no word counts.
func StatsFromUtterances(utterances []Utterance) MeetingStats {
	stats := MeetingStats{UtteranceCount: len(utterances)}
	for _, u := range utterances {
		if u.Words > 0 {
			stats.WordCount += u.Words
			continue
		}
		stats.WordCount += len(strings.Fields(u.Text))
	}
	return stats
}
