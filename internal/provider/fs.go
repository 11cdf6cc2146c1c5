package provider

import (
	"bufio"
	"context"
	"encoding/csv"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"
)

// FS serves records from a flat data directory:
//
//	<dir>/adopted_decisions_<ymd>.csv   one meeting's extracted decisions
//	<dir>/transcripts.jsonl             all utterances, one JSON object per line
//	<dir>/alternatives.json             all alternatives across meetings
//
// Files are parsed on first access and cached for the process lifetime; the
// backing data is static research output.
type FS struct {
	dir string

	mu           sync.Mutex
	decisions    map[string][]DecisionRecord
	utterances   map[string][]Utterance
	alternatives map[string][]Alternative
}

func NewFS(dir string) *FS {
	return &FS{
		dir:       dir,
		decisions: make(map[string][]DecisionRecord),
	}
}

func (p *FS) ListDecisions(_ context.Context, ymd string) ([]DecisionRecord, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if cached, ok := p.decisions[ymd]; ok {
		return cached, nil
	}
	records, err := p.readDecisions(ymd)
	if err != nil {
		return nil, err
	}
	p.decisions[ymd] = records
	return records, nil
}

func (p *FS) ListAlternatives(_ context.Context, ymd string) ([]Alternative, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.loadAlternatives(); err != nil {
		return nil, err
	}
	return p.alternatives[ymd], nil
}

func (p *FS) Utterances(_ context.Context, ymd string) ([]Utterance, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.utterancesLocked(ymd)
}

func (p *FS) TranscriptText(_ context.Context, ymd string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	utterances, err := p.utterancesLocked(ymd)
	if err != nil {
		return "", err
	}
	return TranscriptFromUtterances(utterances), nil
}

func (p *FS) MeetingStats(_ context.Context, ymd string) (MeetingStats, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	utterances, err := p.utterancesLocked(ymd)
	if err != nil {
		return MeetingStats{}, err
	}
	return StatsFromUtterances(utterances), nil
}

func (p *FS) utterancesLocked(ymd string) ([]Utterance, error) {
	if err := p.loadTranscripts(); err != nil {
		return nil, err
	}
	utterances, ok := p.utterances[ymd]
	if !ok || len(utterances) == 0 {
		return nil, fmt.Errorf("%w: transcript for %s", ErrNotFound, ymd)
	}
	return utterances, nil
}

func (p *FS) readDecisions(ymd string) ([]DecisionRecord, error) {
	path := filepath.Join(p.dir, fmt.Sprintf("adopted_decisions_%s.csv", ymd))
	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: decisions for %s", ErrNotFound, ymd)
	}
	if err != nil {
		return nil, fmt.Errorf("open decisions: %w", err)
	}
	defer file.Close()

	reader := csv.NewReader(file)
	reader.FieldsPerRecord = -1
	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read decisions header: %w", err)
	}
	column := make(map[string]int, len(header))
	for i, name := range header {
		column[name] = i
	}
	field := func(row []string, name string) string {
		i, ok := column[name]
		if !ok || i >= len(row) {
			return ""
		}
		return row[i]
	}

	var records []DecisionRecord
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read decisions row: %w", err)
		}
		score, _ := strconv.Atoi(field(row, "score"))
		records = append(records, DecisionRecord{
			Index:         len(records),
			Description:   field(row, "description"),
			Type:          field(row, "type"),
			Score:         score,
			Justification: field(row, "justification"),
		})
	}
	return records, nil
}

type transcriptRow struct {
	YMD      string `json:"ymd"`
	Sequence int    `json:"n"`
	Title    string `json:"title"`
	Speaker  string `json:"speaker"`
	Text     string `json:"text"`
	Words    int    `json:"words"`
}

func (p *FS) loadTranscripts() error {
	if p.utterances != nil {
		return nil
	}
	path := filepath.Join(p.dir, "transcripts.jsonl")
	file, err := os.Open(path)
	if errors.Is(err, fs.ErrNotExist) {
		p.utterances = make(map[string][]Utterance)
		return nil
	}
	if err != nil {
		return fmt.Errorf("open transcripts: %w", err)
	}
	defer file.Close()

	byMeeting := make(map[string][]Utterance)
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		if len(scanner.Bytes()) == 0 {
			continue
		}
		var row transcriptRow
		if err := json.Unmarshal(scanner.Bytes(), &row); err != nil {
			return fmt.Errorf("parse transcripts line %d: %w", line, err)
		}
		byMeeting[row.YMD] = append(byMeeting[row.YMD], Utterance{
			Sequence: row.Sequence,
			Title:    row.Title,
			Speaker:  row.Speaker,
			Text:     row.Text,
			Words:    row.Words,
		})
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("read transcripts: %w", err)
	}
	for _, utterances := range byMeeting {
		sort.Slice(utterances, func(i, j int) bool {
			return utterances[i].Sequence < utterances[j].Sequence
		})
	}
	p.utterances = byMeeting
	return nil
}

type alternativeRow struct {
	YMD         string `json:"ymd"`
	Label       string `json:"label"`
	Description string `json:"description"`
	Statement   string `json:"statement"`
}

func (p *FS) loadAlternatives() error {
	if p.alternatives != nil {
		return nil
	}
	path := filepath.Join(p.dir, "alternatives.json")
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		p.alternatives = make(map[string][]Alternative)
		return nil
	}
	if err != nil {
		return fmt.Errorf("open alternatives: %w", err)
	}
	var rows []alternativeRow
	if err := json.Unmarshal(data, &rows); err != nil {
		return fmt.Errorf("parse alternatives: %w", err)
	}
	byMeeting := make(map[string][]Alternative)
	for _, row := range rows {
		byMeeting[row.YMD] = append(byMeeting[row.YMD], Alternative{
			Label:       row.Label,
			Description: row.Description,
			Statement:   row.Statement,
		})
	}
	p.alternatives = byMeeting
	return nil
}
