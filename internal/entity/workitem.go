package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// WorkItem represents one row of stage_table for data transfer between layers.
type WorkItem struct {
	ID          uuid.UUID       `json:"id"`
	FileName    string          `json:"file_name"`
	SourceQuery string          `json:"source_query"`
	Options     json.RawMessage `json:"options,omitempty"`
	Status      string          `json:"status"`
	ClaimedAt   *time.Time      `json:"claimed_at,omitempty"`
}

// StatusRecord represents one row of status_table. One row per work item;
// later writes overwrite earlier ones.
type StatusRecord struct {
	ID        uuid.UUID `json:"id"`
	Status    string    `json:"status"`
	Message   string    `json:"message,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}
