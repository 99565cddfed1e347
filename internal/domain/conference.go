package domain

import (
	"fmt"
	"time"
)

// ConferenceState is derived from a Conference record; it is never stored.
type ConferenceState string

const (
	StateActive     ConferenceState = "ACTIVE"
	StateSummarized ConferenceState = "SUMMARIZED"
)

// NoSummary is reported for conferences that have not been summarized yet.
const NoSummary = "No summary available"

// Segment is one transcribed unit of conference audio.
type Segment struct {
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Conference is a parent-teacher conference session.
type Conference struct {
	ID             string    `json:"id"`
	ParentLanguage string    `json:"parent_language"`
	StartTime      time.Time `json:"start_time"`
	Segments       []Segment `json:"segments"`
	// Summary is computed once and then frozen, even if segments are added later.
	Summary *string `json:"summary,omitempty"`
}

func (c Conference) State() ConferenceState {
	if c.Summary != nil {
		return StateSummarized
	}
	return StateActive
}

// Clone returns a copy that shares no mutable memory with c.
func (c Conference) Clone() Conference {
	out := c
	if c.Segments != nil {
		out.Segments = make([]Segment, len(c.Segments))
		copy(out.Segments, c.Segments)
	}
	if c.Summary != nil {
		s := *c.Summary
		out.Summary = &s
	}
	return out
}

// Duration formats the span between the first and last segment as HH:MM:SS,
// or "Unknown" when it cannot be computed.
func (c Conference) Duration() string {
	if len(c.Segments) < 2 {
		return "Unknown"
	}
	first := c.Segments[0].Timestamp
	last := c.Segments[len(c.Segments)-1].Timestamp
	if first.IsZero() || last.IsZero() || last.Before(first) {
		return "Unknown"
	}
	d := last.Sub(first).Truncate(time.Second)
	h := int(d / time.Hour)
	m := int(d%time.Hour) / int(time.Minute)
	s := int(d%time.Minute) / int(time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", h, m, s)
}

// ConferenceInfo is the listing view of a conference.
type ConferenceInfo struct {
	ID           string    `json:"id"`
	Date         time.Time `json:"date"`
	Language     string    `json:"language"`
	SegmentCount int       `json:"segments"`
	Duration     string    `json:"duration"`
	Summary      string    `json:"summary"`
}

func (c Conference) Info() ConferenceInfo {
	summary := NoSummary
	if c.Summary != nil {
		summary = *c.Summary
	}
	return ConferenceInfo{
		ID:           c.ID,
		Date:         c.StartTime,
		Language:     c.ParentLanguage,
		SegmentCount: len(c.Segments),
		Duration:     c.Duration(),
		Summary:      summary,
	}
}
