package domain

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"time"
)

// Entity is a canonical deduplicated answer value. Name is unique; mentions
// are counted with atomic increments on upsert.
type Entity struct {
	ID              string     `db:"id"                json:"id"`
	Name            string     `db:"name"              json:"name"`
	Category        string     `db:"category"          json:"category"`
	TotalMentions   int64      `db:"total_mentions"    json:"total_mentions"`
	LastMentionedAt *time.Time `db:"last_mentioned_at" json:"last_mentioned_at,omitempty"`
}

// SourceList is a JSONB-backed list of web-search source URLs. A nil pointer
// column means no web search was used; an empty list means web search ran but
// returned no sources.
type SourceList []string

// Value implements driver.Valuer for JSONB storage.
func (s SourceList) Value() (driver.Value, error) {
	if s == nil {
		return json.Marshal([]string{})
	}
	return json.Marshal([]string(s))
}

// Scan implements sql.Scanner for JSONB storage.
func (s *SourceList) Scan(src any) error {
	if src == nil {
		*s = nil
		return nil
	}
	b, ok := src.([]byte)
	if !ok {
		return errors.New("source list: expected []byte from database")
	}
	return json.Unmarshal(b, (*[]string)(s))
}

// Response is one recorded raw answer instance linked to an entity.
// Immutable once written.
type Response struct {
	ID               string      `db:"id"                 json:"id"`
	PromptID         string      `db:"prompt_id"          json:"prompt_id"`
	ModelID          string      `db:"model_id"           json:"model_id"`
	EntityID         string      `db:"entity_id"          json:"entity_id"`
	ResponseText     string      `db:"response_text"      json:"response_text"`
	WebSearchSources *SourceList `db:"web_search_sources" json:"web_search_sources,omitempty"`
	Timestamp        time.Time   `db:"timestamp"          json:"timestamp"`
}
