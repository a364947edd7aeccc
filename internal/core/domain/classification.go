package domain

type Group string

const (
	GroupMetro         Group = "metro"
	GroupTender        Group = "dau_thau"
	GroupApartment     Group = "chung_cu"
	GroupSocialHousing Group = "nha_o_xa_hoi"
	GroupOther         Group = "khac"
)

type Confidence string

const (
	ConfidenceHigh   Confidence = "high"
	ConfidenceMedium Confidence = "medium"
	ConfidenceLow    Confidence = "low"
)

// SubGroup is a secondary classification candidate.
type SubGroup struct {
	Group    Group  `json:"group"`
	Category string `json:"category"`
	Score    int    `json:"score"`
}

// Classification is the keyword-scoring verdict for a document.
// MainGroup is always the argmax of Scores; when every score is zero
// it is GroupOther with ConfidenceLow.
type Classification struct {
	MainGroup       Group         `json:"main_group"`
	MainCategory    string        `json:"main_category"`
	SubGroups       []SubGroup    `json:"sub_groups"`
	Confidence      Confidence    `json:"confidence"`
	Scores          map[Group]int `json:"scores"`
	MatchedKeywords []string      `json:"matched_keywords"`
}
