package models

import (
	"encoding/json"
	"sort"
	"time"
)

// CheckpointState is the durable progress of the batch orchestrator.
type CheckpointState struct {
	Processed   map[string]struct{}
	Failed      map[string]struct{}
	LastUpdated time.Time
}

// NewCheckpointState returns an empty state.
func NewCheckpointState() *CheckpointState {
	return &CheckpointState{
		Processed: make(map[string]struct{}),
		Failed:    make(map[string]struct{}),
	}
}

// IsProcessed reports whether id completed in this or a prior run.
func (s *CheckpointState) IsProcessed(id string) bool {
	_, ok := s.Processed[id]
	return ok
}

// IsFailed reports whether id's latest attempt failed.
func (s *CheckpointState) IsFailed(id string) bool {
	_, ok := s.Failed[id]
	return ok
}

// MarkProcessed records a success and clears any earlier failure.
func (s *CheckpointState) MarkProcessed(id string) {
	s.Processed[id] = struct{}{}
	delete(s.Failed, id)
}

// MarkFailed records a failure. A processed id is never moved back.
func (s *CheckpointState) MarkFailed(id string) {
	if s.IsProcessed(id) {
		return
	}
	s.Failed[id] = struct{}{}
}

// Pending returns ids not yet processed, in input order.
func (s *CheckpointState) Pending(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if !s.IsProcessed(id) {
			out = append(out, id)
		}
	}
	return out
}

// ProcessedIDs returns the processed set sorted.
func (s *CheckpointState) ProcessedIDs() []string { return sortedKeys(s.Processed) }

// FailedIDs returns the failed set sorted.
func (s *CheckpointState) FailedIDs() []string { return sortedKeys(s.Failed) }

type checkpointJSON struct {
	Processed   []string `json:"processed"`
	Failed      []string `json:"failed"`
	LastUpdated *string  `json:"last_updated"`
}

// MarshalJSON writes the state as {processed, failed, last_updated}.
func (s *CheckpointState) MarshalJSON() ([]byte, error) {
	doc := checkpointJSON{
		Processed: s.ProcessedIDs(),
		Failed:    s.FailedIDs(),
	}
	if !s.LastUpdated.IsZero() {
		ts := s.LastUpdated.Format(time.RFC3339Nano)
		doc.LastUpdated = &ts
	}
	return json.Marshal(doc)
}

// UnmarshalJSON reads the checkpoint document. last_updated may be null or
// a naive ISO-8601 timestamp as written by the legacy scraper.
func (s *CheckpointState) UnmarshalJSON(data []byte) error {
	var doc checkpointJSON
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	*s = *NewCheckpointState()
	for _, id := range doc.Processed {
		s.Processed[NormalizeID(id)] = struct{}{}
	}
	for _, id := range doc.Failed {
		id = NormalizeID(id)
		if !s.IsProcessed(id) {
			s.Failed[id] = struct{}{}
		}
	}
	if doc.LastUpdated != nil {
		s.LastUpdated = parseTimestamp(*doc.LastUpdated)
	}
	return nil
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999",
	"2006-01-02T15:04:05",
}

func parseTimestamp(v string) time.Time {
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, v); err == nil {
			return t
		}
	}
	return time.Time{}
}

func sortedKeys(m map[string]struct{}) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
