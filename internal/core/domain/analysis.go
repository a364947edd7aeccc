package domain

type SecurityLevel string

const (
	SecurityPublic    SecurityLevel = "public"
	SecurityInternal  SecurityLevel = "internal"
	SecuritySensitive SecurityLevel = "sensitive"
)

// Analysis is recomputed fresh per document and never mutated after
// creation.
type Analysis struct {
	ExecutiveSummary  string        `json:"executive_summary"`
	SummaryMethod     AnswerMethod  `json:"summary_method"`
	Keywords          []string      `json:"keywords"`
	Tags              []string      `json:"tags"`
	Projects          []string      `json:"projects"`
	Locations         []string      `json:"locations"`
	SecurityLevel     SecurityLevel `json:"security_level"`
	ActionSuggestions []string      `json:"action_suggestions"`
}
