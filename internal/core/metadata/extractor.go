// Package metadata recognizes document type, issuing agency and issue
// date in the leading slice of a document's text. Extraction is a pure
// function: no match yields an absent field, never an error.
package metadata

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/quangtd/docman/internal/core/domain"
)

// Preview windows. Type and agency markers sit at the very top of
// Vietnamese administrative documents; the issue date can appear a
// little further down.
const (
	typeAgencyPreviewRunes = 1000
	datePreviewRunes       = 1500
)

// documentTypes is ordered by priority: an earlier type matching any
// of its patterns beats a later type matching anywhere in the preview.
var documentTypes = []string{
	"Nghị định",
	"Nghị quyết",
	"Thông tư",
	"Luật",
	"Quyết định",
	"Chỉ thị",
	"Thông báo",
	"Công văn",
	"Quy chế",
	"Quy định",
}

type typePatterns struct {
	name     string
	patterns []*regexp.Regexp
}

var typeMatchers = buildTypeMatchers()

func buildTypeMatchers() []typePatterns {
	out := make([]typePatterns, 0, len(documentTypes))
	for _, name := range documentTypes {
		quoted := regexp.QuoteMeta(name)
		out = append(out, typePatterns{
			name: name,
			patterns: []*regexp.Regexp{
				regexp.MustCompile(`(?i)` + quoted + `\s+số\s+\d+`),
				regexp.MustCompile(`(?i)` + quoted + `\s+\d+`),
				regexp.MustCompile(`(?i)` + quoted + `\s+\S+`),
			},
		})
	}
	return out
}

// agencyPatterns is ordered by priority; the first pattern to match
// wins.
var agencyPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)Chính\s+phủ`),
	regexp.MustCompile(`(?i)Quốc\s+hội`),
	regexp.MustCompile(`(?i)Bộ\s+[^,\n]+`),
	regexp.MustCompile(`(?i)Ủy\s+ban\s+[^,\n]+`),
	regexp.MustCompile(`(?i)Ban\s+[^,\n]+`),
	regexp.MustCompile(`(?i)Sở\s+[^,\n]+`),
	regexp.MustCompile(`(?i)UBND\s+[^,\n]+`),
	regexp.MustCompile(`(?i)HĐND\s+[^,\n]+`),
	regexp.MustCompile(`(?i)Thủ\s+tướng`),
	regexp.MustCompile(`(?i)Chủ\s+tịch`),
}

// agencyOfPattern is the generic fallback: "của <Capitalized phrase>".
var agencyOfPattern = regexp.MustCompile(`(?i)(?:CỦA|của)\s+([A-ZÀÁẠẢÃÂẦẤẬẨẪĂẰẮẶẲẴÈÉẸẺẼÊỀẾỆỂỄÌÍỊỈĨÒÓỌỎÕÔỒỐỘỔỖƠỜỚỢỞỠÙÚỤỦŨƯỪỨỰỬỮỲÝỴỶỸĐ][^,\n.]+)`)

// Date patterns. The anchored tier (preceded by "ban hành" or "ngày")
// takes precedence over bare dates anywhere in the preview. Within a
// tier the first pattern with any match wins, and only its first match
// is used.
var anchoredDatePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)(?:ban\s+hành|ngày)\s+(\d{1,2})[/-](\d{1,2})[/-](\d{4})`),
	regexp.MustCompile(`(?i)(?:ban\s+hành|ngày)\s+(\d{1,2})\s+tháng\s+(\d{1,2})\s+năm\s+(\d{4})`),
}

var bareDatePatterns = []*regexp.Regexp{
	regexp.MustCompile(`(\d{1,2})[/-](\d{1,2})[/-](\d{4})`),
	regexp.MustCompile(`(\d{4})[/-](\d{1,2})[/-](\d{1,2})`),
	regexp.MustCompile(`(?i)(\d{1,2})\s+tháng\s+(\d{1,2})\s+năm\s+(\d{4})`),
	regexp.MustCompile(`(?i)ngày\s+(\d{1,2})\s+tháng\s+(\d{1,2})\s+năm\s+(\d{4})`),
}

// Extract recognizes the metadata triple from text and filename.
func Extract(text, filename string) domain.Metadata {
	return domain.Metadata{
		DocumentType:  extractDocumentType(text, filename),
		IssuingAgency: extractIssuingAgency(text),
		IssueDate:     extractIssueDate(text),
	}
}

func extractDocumentType(text, filename string) string {
	preview := runePrefix(text, typeAgencyPreviewRunes)

	for _, matcher := range typeMatchers {
		for _, pattern := range matcher.patterns {
			if pattern.MatchString(preview) {
				return matcher.name
			}
		}
	}

	filenameLower := strings.ToLower(filename)
	for _, matcher := range typeMatchers {
		if strings.Contains(filenameLower, strings.ToLower(matcher.name)) {
			return matcher.name
		}
	}
	return ""
}

func extractIssuingAgency(text string) string {
	preview := runePrefix(text, typeAgencyPreviewRunes)

	for _, pattern := range agencyPatterns {
		match := pattern.FindString(preview)
		if match == "" {
			continue
		}
		if agency := cleanAgency(match); agency != "" {
			return agency
		}
	}

	if groups := agencyOfPattern.FindStringSubmatch(preview); groups != nil {
		agency := strings.TrimRight(strings.TrimSpace(groups[1]), ".,;:")
		if agencyLengthOK(agency) {
			return agency
		}
	}
	return ""
}

func cleanAgency(match string) string {
	agency := strings.TrimRight(strings.TrimSpace(match), ".,;:")
	agency = strings.ReplaceAll(agency, "CỦA", "")
	agency = strings.ReplaceAll(agency, "của", "")
	agency = strings.TrimSpace(agency)
	if agencyLengthOK(agency) {
		return agency
	}
	return ""
}

func agencyLengthOK(agency string) bool {
	n := len([]rune(agency))
	return n > 3 && n <= 200
}

func extractIssueDate(text string) string {
	preview := runePrefix(text, datePreviewRunes)

	for _, pattern := range anchoredDatePatterns {
		if groups := pattern.FindStringSubmatch(preview); groups != nil {
			// Anchored patterns always carry the year last.
			return formatDate(groups[1], groups[2], groups[3])
		}
	}
	for _, pattern := range bareDatePatterns {
		if groups := pattern.FindStringSubmatch(preview); groups != nil {
			day, month, year := groups[1], groups[2], groups[3]
			if len(year) != 4 {
				// YYYY-MM-DD order: the year led the match.
				day, month, year = groups[3], groups[2], groups[1]
			}
			return formatDate(day, month, year)
		}
	}
	return ""
}

// formatDate normalizes to DD/MM/YYYY with zero-padded day and month.
func formatDate(day, month, year string) string {
	d, _ := strconv.Atoi(day)
	m, _ := strconv.Atoi(month)
	return fmt.Sprintf("%02d/%02d/%s", d, m, year)
}

func runePrefix(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
