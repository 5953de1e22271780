package transcribe

import (
	"strings"
)

// Segment is one timed span of recognized speech. Start and End are in
// seconds from the beginning of the audio.
type Segment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Result is what a Recognizer returns for one audio file, segments in
// emission order.
type Result struct {
	Segments []Segment `json:"segments"`
	Language string    `json:"language,omitempty"`
}

// Text joins the segments with single spaces. Each segment is trimmed first
// so provider leading spaces do not double up, and blank segments are skipped.
func (r Result) Text() string {
	parts := make([]string, 0, len(r.Segments))
	for _, s := range r.Segments {
		if text := strings.TrimSpace(s.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.TrimSpace(strings.Join(parts, " "))
}

// Duration is the end time of the last segment.
func (r Result) Duration() float64 {
	if len(r.Segments) == 0 {
		return 0
	}
	return r.Segments[len(r.Segments)-1].End
}
