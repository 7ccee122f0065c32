package chunk

import (
	"fmt"
	"strings"
)

const (
	// TimestampTypeStatic marks metadata whose validity does not expire.
	TimestampTypeStatic = "static"

	// TimestampTypePeriodic marks metadata that is only valid for the years
	// listed in ValidFor.
	TimestampTypePeriodic = "periodic"
)

// Metadata carries the well-known optional fields attached to a chunk plus an
// explicit extension map for forward-compatible keys. Known fields are
// validated eagerly at the ingestion boundary; Extra is passed through
// untouched.
type Metadata struct {
	Filename     string `json:"filename,omitempty"`
	MainCategory string `json:"main_category,omitempty"`
	SubCategory  string `json:"sub_category,omitempty"`
	City         string `json:"city,omitempty"`
	CreatedDate  string `json:"created_date,omitempty"`
	UploadDate   string `json:"upload_date,omitempty"`
	Source       string `json:"source,omitempty"`

	// AnswerExamples are curated Q&A pairs that bias retrieval toward
	// example answers. Canonical structured form; see RenderAnswerExamples
	// for the lossy embedding-bias rendering.
	AnswerExamples []AnswerExample `json:"answer_examples,omitempty"`

	// Verified marks chunks whose content has been manually confirmed.
	Verified bool `json:"verified,omitempty"`

	// TimestampType is either TimestampTypeStatic or TimestampTypePeriodic.
	TimestampType string `json:"timestamp_type,omitempty"`

	// ValidFor lists the fiscal years the content is valid for.
	ValidFor []string `json:"valid_for,omitempty"`

	Latitude  float64 `json:"latitude,omitempty"`
	Longitude float64 `json:"longitude,omitempty"`
	Address   string  `json:"address,omitempty"`

	// Facility fields populated by the CSV importer.
	FacilityName     string `json:"facility_name,omitempty"`
	WalkingDistance  int    `json:"walking_distance,omitempty"`
	WalkingMinutes   int    `json:"walking_minutes,omitempty"`
	StraightDistance int    `json:"straight_distance,omitempty"`

	// Extra holds forward-compatible keys that have no typed field yet.
	Extra map[string]any `json:"extra,omitempty"`
}

// Taxonomy maps main categories to their allowed sub categories.
type Taxonomy map[string][]string

// DefaultTaxonomy is the known (main, sub) category taxonomy for
// neighborhood and property information.
var DefaultTaxonomy = Taxonomy{
	"transport":   {"station", "bus stop", "parking"},
	"shopping":    {"supermarket", "convenience store", "drugstore", "shopping mall"},
	"education":   {"nursery", "kindergarten", "elementary school", "junior high school"},
	"medical":     {"hospital", "clinic", "dentist", "pharmacy"},
	"environment": {"park", "library", "community center", "gym"},
	"property":    {"facilities", "contract", "rules", "access"},
}

// Validate eagerly checks the well-known fields against the taxonomy.
// Category fields must be either both empty or a known (main, sub) pair.
func (m *Metadata) Validate(tax Taxonomy) error {
	if m.MainCategory == "" && m.SubCategory == "" {
		return nil
	}
	if m.MainCategory == "" || m.SubCategory == "" {
		return fmt.Errorf("category must be a (main, sub) pair, got main=%q sub=%q", m.MainCategory, m.SubCategory)
	}

	subs, ok := tax[m.MainCategory]
	if !ok {
		return fmt.Errorf("unknown main category %q", m.MainCategory)
	}
	for _, sub := range subs {
		if sub == m.SubCategory {
			return nil
		}
	}
	return fmt.Errorf("unknown sub category %q under %q", m.SubCategory, m.MainCategory)
}

// Flatten renders the metadata as the flat key/value record stored alongside
// each vector. Absent numeric fields default to 0, list fields to empty
// sequences, and the timestamp type to TimestampTypeStatic, matching what
// downstream consumers expect when rendering citations.
func (m *Metadata) Flatten() map[string]any {
	timestampType := m.TimestampType
	if timestampType == "" {
		timestampType = TimestampTypeStatic
	}

	validFor := m.ValidFor
	if validFor == nil {
		validFor = []string{}
	}

	examples := make([]string, 0, len(m.AnswerExamples))
	for _, ex := range m.AnswerExamples {
		examples = append(examples, ex.String())
	}

	flat := map[string]any{
		"filename":          m.Filename,
		"main_category":     m.MainCategory,
		"sub_category":      m.SubCategory,
		"city":              m.City,
		"created_date":      m.CreatedDate,
		"upload_date":       m.UploadDate,
		"source":            m.Source,
		"answer_examples":   examples,
		"verified":          m.Verified,
		"timestamp_type":    timestampType,
		"valid_for":         validFor,
		"latitude":          m.Latitude,
		"longitude":         m.Longitude,
		"address":           m.Address,
		"facility_name":     m.FacilityName,
		"walking_distance":  m.WalkingDistance,
		"walking_minutes":   m.WalkingMinutes,
		"straight_distance": m.StraightDistance,
	}

	for k, v := range m.Extra {
		if _, reserved := flat[k]; reserved {
			continue
		}
		flat[k] = v
	}

	return flat
}

// AnswerExample is the canonical structured form of a curated Q&A pair.
// Legacy string forms are converted at the ingestion boundary via
// ParseAnswerExample.
type AnswerExample struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// Render returns the embedding-bias rendering of the example. This form is
// lossy and exists only to weight retrieval toward example answers; it is
// never parsed back.
func (e AnswerExample) Render() string {
	return fmt.Sprintf("Q: %s\nA: %s", e.Question, e.Answer)
}

// String returns the single-line form stored in flat index metadata.
func (e AnswerExample) String() string {
	switch {
	case e.Question != "" && e.Answer != "":
		return fmt.Sprintf("Q: %s | A: %s", e.Question, e.Answer)
	case e.Question != "":
		return "Q: " + e.Question
	default:
		return "A: " + e.Answer
	}
}

// ParseAnswerExample converts a legacy string form back into the structured
// form. Strings that don't carry the Q/A markers are treated as bare answers.
func ParseAnswerExample(s string) AnswerExample {
	if q, a, found := strings.Cut(s, " | A: "); found {
		return AnswerExample{
			Question: strings.TrimPrefix(q, "Q: "),
			Answer:   a,
		}
	}
	if strings.HasPrefix(s, "Q: ") {
		return AnswerExample{Question: strings.TrimPrefix(s, "Q: ")}
	}
	return AnswerExample{Answer: strings.TrimPrefix(s, "A: ")}
}

// RenderAnswerExamples joins the embedding-bias renderings of all examples,
// one per line. Returns the empty string when there are none.
func RenderAnswerExamples(examples []AnswerExample) string {
	if len(examples) == 0 {
		return ""
	}
	rendered := make([]string, 0, len(examples))
	for _, ex := range examples {
		rendered = append(rendered, ex.Render())
	}
	return strings.Join(rendered, "\n")
}
