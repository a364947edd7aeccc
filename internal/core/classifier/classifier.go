// Package classifier assigns documents to a fixed set of business
// groups by counting keyword occurrences in the text and filename.
package classifier

import (
	"sort"
	"strings"

	"github.com/quangtd/docman/internal/core/domain"
)

// filenameBonus is added to a group's score for every keyword whose
// lowercase form appears anywhere in the filename.
const filenameBonus = 2

// Confidence thresholds: a group wins "high" only when it has at
// least highMinScore hits and more than highMinShare of the total.
const (
	highMinScore   = 5
	highMinShare   = 0.6
	mediumMinScore = 2
)

type groupDef struct {
	group    domain.Group
	category string
	keywords []string
}

// Declaration order is the tie-break order: the first group reaching
// the maximal score wins.
var groups = []groupDef{
	{
		group:    domain.GroupMetro,
		category: "Metro_DuongSatDoThi",
		keywords: []string{
			"metro", "đường sắt đô thị", "tuyến metro", "tuyến đường sắt",
			"depot", "nhà ga", "RAMS", "FEED", "Pre-FS", "FS", "khảo sát",
			"thiết kế metro", "vận hành metro", "TOD", "transit-oriented",
			"hạ tầng giao thông", "đường ray", "đoàn tàu", "tàu điện",
			"MRT", "urban rail", "mass transit",
		},
	},
	{
		group:    domain.GroupTender,
		category: "DauThau_KhuGiaoDuc_TOD",
		keywords: []string{
			"đấu thầu", "mời thầu", "hồ sơ dự thầu", "đề xuất kỹ thuật",
			"đề xuất tài chính", "nhà thầu", "đấu thầu rộng rãi",
			"đàm phán cạnh tranh", "khu giáo dục", "đường Thống Nhất",
			"Suối Cây Sao", "TOD4", "quy hoạch", "đầu tư", "dự án",
			"thuyết minh dự án", "hồ sơ mời thầu", "PPP", "BT", "BOT",
		},
	},
	{
		group:    domain.GroupApartment,
		category: "ChungCu",
		keywords: []string{
			"chung cư", "căn hộ", "apartment", "condominium", "nhà ở cao tầng",
			"dự án chung cư", "bán nhà", "mua nhà", "sổ đỏ chung cư",
			"pháp lý chung cư", "thiết kế chung cư", "xây dựng chung cư",
			"kinh doanh bất động sản", "bán hàng chung cư",
		},
	},
	{
		group:    domain.GroupSocialHousing,
		category: "NhaO_XaHoi",
		keywords: []string{
			"nhà ở xã hội", "NOXH", "nhà ở công nhân", "nhà ở cho người thu nhập thấp",
			"chính sách nhà ở xã hội", "ưu đãi nhà ở", "an sinh xã hội",
			"dự án an sinh", "nhà ở cho người nghèo", "social housing",
		},
	},
}

const otherCategory = "Khac"

// CategoryFor maps a group to its storage category label.
func CategoryFor(group domain.Group) string {
	for _, def := range groups {
		if def.group == group {
			return def.category
		}
	}
	return otherCategory
}

// Groups returns the known groups in declaration order, excluding the
// zero-hit fallback group.
func Groups() []domain.Group {
	out := make([]domain.Group, len(groups))
	for i, def := range groups {
		out[i] = def.group
	}
	return out
}

// Categories returns every storage category label including the
// fallback.
func Categories() []string {
	out := make([]string, 0, len(groups)+1)
	for _, def := range groups {
		out = append(out, def.category)
	}
	return append(out, otherCategory)
}

// Classify scores the text and filename against every group's keyword
// list. Counting is literal, case-insensitive substring counting; the
// keyword lists are tuned against that behavior, so no word-boundary
// matching is applied.
func Classify(text, filename string) domain.Classification {
	textLower := strings.ToLower(text)
	filenameLower := strings.ToLower(filename)

	scores := make(map[domain.Group]int, len(groups))
	matched := make(map[domain.Group][]string, len(groups))

	for _, def := range groups {
		score := 0
		var keywords []string

		for _, keyword := range def.keywords {
			count := strings.Count(textLower, strings.ToLower(keyword))
			if count > 0 {
				score += count
				keywords = append(keywords, keyword)
			}
		}
		for _, keyword := range def.keywords {
			if strings.Contains(filenameLower, strings.ToLower(keyword)) {
				score += filenameBonus
				if !contains(keywords, keyword) {
					keywords = append(keywords, keyword)
				}
			}
		}

		scores[def.group] = score
		matched[def.group] = keywords
	}

	total := 0
	for _, s := range scores {
		total += s
	}
	if total == 0 {
		return domain.Classification{
			MainGroup:       domain.GroupOther,
			MainCategory:    otherCategory,
			SubGroups:       []domain.SubGroup{},
			Confidence:      domain.ConfidenceLow,
			Scores:          scores,
			MatchedKeywords: []string{},
		}
	}

	main := mainGroup(scores)
	maxScore := scores[main]

	confidence := domain.ConfidenceLow
	switch {
	case maxScore >= highMinScore && float64(maxScore)/float64(total) > highMinShare:
		confidence = domain.ConfidenceHigh
	case maxScore >= mediumMinScore:
		confidence = domain.ConfidenceMedium
	}

	keywords := matched[main]
	if keywords == nil {
		keywords = []string{}
	}

	return domain.Classification{
		MainGroup:       main,
		MainCategory:    CategoryFor(main),
		SubGroups:       subGroups(scores, main),
		Confidence:      confidence,
		Scores:          scores,
		MatchedKeywords: keywords,
	}
}

func mainGroup(scores map[domain.Group]int) domain.Group {
	best := groups[0].group
	for _, def := range groups[1:] {
		if scores[def.group] > scores[best] {
			best = def.group
		}
	}
	return best
}

// subGroups lists the next-highest-scoring groups after the main one,
// at most two, positive scores only. The sort is stable so ties keep
// declaration order.
func subGroups(scores map[domain.Group]int, main domain.Group) []domain.SubGroup {
	ordered := make([]groupDef, len(groups))
	copy(ordered, groups)
	sort.SliceStable(ordered, func(i, j int) bool {
		return scores[ordered[i].group] > scores[ordered[j].group]
	})

	out := []domain.SubGroup{}
	for _, def := range ordered {
		if def.group == main || scores[def.group] <= 0 {
			continue
		}
		out = append(out, domain.SubGroup{
			Group:    def.group,
			Category: def.category,
			Score:    scores[def.group],
		})
		if len(out) == 2 {
			break
		}
	}
	return out
}

func contains(items []string, target string) bool {
	for _, item := range items {
		if item == target {
			return true
		}
	}
	return false
}
