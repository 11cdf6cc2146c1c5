package search

import "strings"

// previewRunes caps match previews.
const previewRunes = 200

// ScanTranscript finds every paragraph unit containing term, case
// insensitively. An empty term matches nothing. Index is the unit's
// position in the paragraph-split transcript.
func ScanTranscript(transcript, term string) []Match {
	if term == "" {
		return nil
	}
	needle := strings.ToLower(term)
	units := strings.Split(transcript, "\n\n")

	var matches []Match
	for i, unit := range units {
		if !strings.Contains(strings.ToLower(unit), needle) {
			continue
		}
		matches = append(matches, Match{
			Index:   i,
			Text:    unit,
			Preview: preview(unit),
		})
	}
	return matches
}

func preview(unit string) string {
	runes := []rune(unit)
	if len(runes) <= previewRunes {
		return unit
	}
	return string(runes[:previewRunes]) + "..."
}
