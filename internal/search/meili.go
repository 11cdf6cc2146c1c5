package search

import (
	"encoding/json"
	"fmt"
	"log"
	"sync/atomic"
	"time"

	meili "github.com/meilisearch/meilisearch-go"

	"fomcval/api/internal/provider"
)

const idxUtterances = "fomcval_utterances"

// UtteranceRecord is the indexed shape of one transcript unit.
type UtteranceRecord struct {
	ID      string `json:"id"`
	Meeting string `json:"meeting"`
	Index   int    `json:"index"`
	Speaker string `json:"speaker"`
	Text    string `json:"text"`
}

// Meili serves cross-meeting transcript search via Meilisearch.
type Meili struct {
	client  meili.ServiceManager
	healthy atomic.Bool
	done    chan struct{}
}

// NewMeili creates the client and configures the utterance index. The
// caller proceeds without it if Meilisearch never becomes healthy.
func NewMeili(url, apiKey string) *Meili {
	client := meili.New(url, meili.WithAPIKey(apiKey))

	m := &Meili{
		client: client,
		done:   make(chan struct{}),
	}

	if _, err := client.Health(); err != nil {
		log.Printf("search: meilisearch unavailable at %s: %v", url, err)
		m.healthy.Store(false)
	} else {
		m.healthy.Store(true)
		m.configureIndex()
	}

	go m.healthLoop()
	return m
}

func (m *Meili) configureIndex() {
	if _, err := m.client.CreateIndex(&meili.IndexConfig{
		Uid:        idxUtterances,
		PrimaryKey: "id",
	}); err != nil {
		log.Printf("search: create index %s (may already exist): %v", idxUtterances, err)
	}

	index := m.client.Index(idxUtterances)
	filterable := []interface{}{"meeting"}
	if _, err := index.UpdateFilterableAttributes(&filterable); err != nil {
		log.Printf("search: update filterable attrs: %v", err)
	}
	searchable := []string{"text", "speaker"}
	if _, err := index.UpdateSearchableAttributes(&searchable); err != nil {
		log.Printf("search: update searchable attrs: %v", err)
	}
}

func (m *Meili) healthLoop() {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-m.done:
			return
		case <-ticker.C:
			_, err := m.client.Health()
			wasHealthy := m.healthy.Load()
			m.healthy.Store(err == nil)
			if err == nil && !wasHealthy {
				log.Println("search: meilisearch recovered, reconfiguring index")
				m.configureIndex()
			}
		}
	}
}

// Close stops the background health monitor.
func (m *Meili) Close() {
	close(m.done)
}

// Healthy reports whether Meilisearch is reachable.
func (m *Meili) Healthy() bool {
	return m.healthy.Load()
}

// IndexMeeting bulk-indexes one meeting's utterances.
func (m *Meili) IndexMeeting(ymd string, utterances []provider.Utterance) error {
	if len(utterances) == 0 {
		return nil
	}
	records := make([]UtteranceRecord, 0, len(utterances))
	for i, u := range utterances {
		records = append(records, UtteranceRecord{
			ID:      fmt.Sprintf("%s_%d", ymd, u.Sequence),
			Meeting: ymd,
			Index:   i,
			Speaker: provider.SpeakerLabel(u.Title, u.Speaker),
			Text:    u.Text,
		})
	}
	_, err := m.client.Index(idxUtterances).AddDocuments(records, nil)
	return err
}

// Search queries the utterance index.
func (m *Meili) Search(q Query) ([]Result, int, error) {
	if !m.healthy.Load() {
		return nil, 0, fmt.Errorf("meilisearch unhealthy")
	}

	limit := int64(q.Limit)
	if limit == 0 {
		limit = 20
	}
	request := &meili.SearchRequest{
		Limit: limit,
	}
	if q.Meeting != "" {
		request.Filter = fmt.Sprintf("meeting = %q", q.Meeting)
	}

	resp, err := m.client.Index(idxUtterances).Search(q.Text, request)
	if err != nil {
		m.healthy.Store(false)
		return nil, 0, fmt.Errorf("meilisearch search: %w", err)
	}

	results := make([]Result, 0, len(resp.Hits))
	for _, hit := range resp.Hits {
		text := decodeString(hit, "text")
		results = append(results, Result{
			Meeting: decodeString(hit, "meeting"),
			Index:   decodeInt(hit, "index"),
			Speaker: decodeString(hit, "speaker"),
			Text:    text,
			Preview: preview(text),
		})
	}
	return results, int(resp.EstimatedTotalHits), nil
}

func decodeString(hit meili.Hit, key string) string {
	raw, ok := hit[key]
	if !ok {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return ""
}

func decodeInt(hit meili.Hit, key string) int {
	raw, ok := hit[key]
	if !ok {
		return 0
	}
	var n int
	if err := json.Unmarshal(raw, &n); err == nil {
		return n
	}
	return 0
}
