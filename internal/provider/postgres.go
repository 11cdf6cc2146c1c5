package provider

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Postgres serves records from read-only research tables
// (fomc_decisions, fomc_utterances, fomc_alternatives).
type Postgres struct {
	db *sql.DB
}

func NewPostgres(db *sql.DB) *Postgres {
	return &Postgres{db: db}
}

// Open connects with the pgx stdlib driver and verifies the connection.
func Open(ctx context.Context, databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	db.SetConnMaxIdleTime(5 * time.Minute)
	db.SetConnMaxLifetime(30 * time.Minute)
	db.SetMaxIdleConns(5)
	db.SetMaxOpenConns(10)

	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping db: %w", err)
	}
	return db, nil
}

func (p *Postgres) ListDecisions(ctx context.Context, ymd string) ([]DecisionRecord, error) {
	const query = `
		SELECT description, type, score, COALESCE(justification, '')
		FROM fomc_decisions
		WHERE ymd = $1
		ORDER BY decision_index
	`
	rows, err := p.db.QueryContext(ctx, query, ymd)
	if err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	defer rows.Close()

	var records []DecisionRecord
	for rows.Next() {
		record := DecisionRecord{Index: len(records)}
		if err := rows.Scan(&record.Description, &record.Type, &record.Score, &record.Justification); err != nil {
			return nil, fmt.Errorf("scan decision: %w", err)
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list decisions: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("%w: decisions for %s", ErrNotFound, ymd)
	}
	return records, nil
}

func (p *Postgres) ListAlternatives(ctx context.Context, ymd string) ([]Alternative, error) {
	const query = `
		SELECT label, description, COALESCE(statement, '')
		FROM fomc_alternatives
		WHERE ymd = $1
		ORDER BY label
	`
	rows, err := p.db.QueryContext(ctx, query, ymd)
	if err != nil {
		return nil, fmt.Errorf("list alternatives: %w", err)
	}
	defer rows.Close()

	var alternatives []Alternative
	for rows.Next() {
		var alt Alternative
		if err := rows.Scan(&alt.Label, &alt.Description, &alt.Statement); err != nil {
			return nil, fmt.Errorf("scan alternative: %w", err)
		}
		alternatives = append(alternatives, alt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list alternatives: %w", err)
	}
	return alternatives, nil
}

func (p *Postgres) Utterances(ctx context.Context, ymd string) ([]Utterance, error) {
	const query = `
		SELECT n, COALESCE(title, ''), COALESCE(speaker, ''), text, COALESCE(words, 0)
		FROM fomc_utterances
		WHERE ymd = $1
		ORDER BY n
	`
	rows, err := p.db.QueryContext(ctx, query, ymd)
	if err != nil {
		return nil, fmt.Errorf("list utterances: %w", err)
	}
	defer rows.Close()

	var utterances []Utterance
	for rows.Next() {
		var u Utterance
		if err := rows.Scan(&u.Sequence, &u.Title, &u.Speaker, &u.Text, &u.Words); err != nil {
			return nil, fmt.Errorf("scan utterance: %w", err)
		}
		utterances = append(utterances, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list utterances: %w", err)
	}
	if len(utterances) == 0 {
		return nil, fmt.Errorf("%w: transcript for %s", ErrNotFound, ymd)
	}
	return utterances, nil
}

func (p *Postgres) TranscriptText(ctx context.Context, ymd string) (string, error) {
	utterances, err := p.Utterances(ctx, ymd)
	if err != nil {
		return "", err
	}
	return TranscriptFromUtterances(utterances), nil
}

func (p *Postgres) MeetingStats(ctx context.Context, ymd string) (MeetingStats, error) {
	const query = `
		SELECT COALESCE(SUM(words), 0), COUNT(*)
		FROM fomc_utterances
		WHERE ymd = $1
	`
	var stats MeetingStats
	err := p.db.QueryRowContext(ctx, query, ymd).Scan(&stats.WordCount, &stats.UtteranceCount)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && stats.UtteranceCount == 0) {
		return MeetingStats{}, fmt.Errorf("%w: transcript for %s", ErrNotFound, ymd)
	}
	if err != nil {
		return MeetingStats{}, fmt.Errorf("meeting stats: %w", err)
	}
	return stats, nil
}
