// Package analyzer derives the executive summary, keywords, tags,
// project/location mentions, security tier and action suggestions for
// a classified document.
package analyzer

import (
	"context"
	"log/slog"
	"regexp"
	"strings"

	"github.com/quangtd/docman/internal/core/domain"
	"github.com/quangtd/docman/internal/core/ports"
	"github.com/quangtd/docman/internal/core/textutil"
)

const (
	maxKeywords        = 10
	maxSuggestions     = 5
	maxReferenceNumber = 2
	maxProjectMatches  = 3
	summaryMaxRunes    = 400
	summaryMinLineLen  = 50
)

var groupNames = map[domain.Group]string{
	domain.GroupMetro:         "Metro/Đường sắt đô thị",
	domain.GroupTender:        "Đấu thầu/Khu giáo dục/TOD",
	domain.GroupApartment:     "Chung cư",
	domain.GroupSocialHousing: "Nhà ở xã hội",
	domain.GroupOther:         "Khác",
}

// GroupName returns the display label for a group.
func GroupName(group domain.Group) string {
	if name, ok := groupNames[group]; ok {
		return name
	}
	return groupNames[domain.GroupOther]
}

var commonTags = []string{
	"phap_ly", "dau_thau", "FS", "Pre-FS", "FEED", "PPP", "TOD",
	"quy_hoach", "von_dau_tu", "thiet_ke", "xay_dung", "vận_hành",
	"hop_dong", "nghị_định", "nghị_quyết", "thông_tư", "quyết_định",
	"báo_cáo", "thuyết_minh", "kế_hoạch", "dự_án",
}

var referencePatterns = []struct {
	prefix  string
	pattern *regexp.Regexp
}{
	{"ND", regexp.MustCompile(`nghị\s*định\s*số\s*(\d+\S*)`)},
	{"QD", regexp.MustCompile(`quyết\s*định\s*số\s*(\d+\S*)`)},
	{"TT", regexp.MustCompile(`thông\s*tư\s*số\s*(\d+\S*)`)},
}

var commonLocations = []string{
	"Hà Nội", "TP.HCM", "TP Hồ Chí Minh", "Bình Dương", "Đồng Nai",
	"Long An", "Cần Thơ", "Đà Nẵng", "Hải Phòng",
}

var commonProjects = []string{
	"Tuyến 1", "Tuyến 2", "Tuyến 3", "Metro Line", "TOD",
	"Suối Cây Sao", "Đường Thống Nhất", "TOD4",
}

var projectPattern = regexp.MustCompile(`(?i)(dự\s*án|tuyến|metro\s*line)\s+[A-Z0-9\s]+`)

var sensitiveKeywords = []string{
	"mật", "bảo mật", "bí mật", "nội bộ", "không công bố",
	"confidential", "internal", "secret",
}

var publicKeywords = []string{
	"công khai", "phổ biến", "thông báo", "công bố",
}

var groupActions = map[domain.Group][]string{
	domain.GroupMetro: {
		"Chuyển cho phòng kỹ thuật Metro",
		"Kiểm tra tính đồng bộ với các tuyến khác",
		"Xem xét yêu cầu FS/Pre-FS/FEED",
	},
	domain.GroupTender: {
		"Chuyển cho phòng đấu thầu",
		"Kiểm tra hồ sơ pháp lý dự án",
		"Xem xét tiến độ đấu thầu",
	},
	domain.GroupApartment: {
		"Chuyển cho phòng kinh doanh",
		"Kiểm tra pháp lý dự án",
		"Xem xét hồ sơ bán hàng",
	},
	domain.GroupSocialHousing: {
		"Chuyển cho phòng an sinh xã hội",
		"Kiểm tra chính sách ưu đãi",
		"Xem xét quy trình phê duyệt",
	},
}

const summarySystemPrompt = "Bạn là trợ lý AI chuyên tóm tắt tài liệu pháp lý, kỹ thuật, đầu tư của Việt Nam. " +
	"Hãy đọc toàn bộ văn bản và tạo tóm tắt điều hành ngắn gọn 5-7 dòng, " +
	"tập trung vào thông tin quan trọng nhất như: nội dung chính, mục đích, " +
	"phạm vi áp dụng, quy định quan trọng. " +
	"Trả lời bằng tiếng Việt, ngắn gọn và chính xác."

// Analyzer computes an Analysis from text plus its classification,
// optionally delegating the executive summary to a hosted model.
type Analyzer struct {
	summarizer ports.Summarizer
	logger     *slog.Logger
}

func New(summarizer ports.Summarizer, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Analyzer{summarizer: summarizer, logger: logger}
}

// Analyze never fails: every summarizer error degrades to the
// deterministic path.
func (a *Analyzer) Analyze(ctx context.Context, text, filename string, cls domain.Classification, useModel bool) domain.Analysis {
	keywords := extractKeywords(text, cls)
	summary, method := a.executiveSummary(ctx, text, cls, useModel)
	return domain.Analysis{
		ExecutiveSummary:  summary,
		SummaryMethod:     method,
		Keywords:          keywords,
		Tags:              extractTags(text, cls),
		Projects:          identifyProjects(text),
		Locations:         identifyLocations(text),
		SecurityLevel:     assessSecurityLevel(text, filename),
		ActionSuggestions: suggestActions(cls, keywords),
	}
}

func (a *Analyzer) executiveSummary(ctx context.Context, text string, cls domain.Classification, useModel bool) (string, domain.AnswerMethod) {
	groupLabel := "Tài liệu thuộc nhóm: " + GroupName(cls.MainGroup) + ". "

	if useModel && a.summarizer != nil && a.summarizer.Configured() {
		prompt := "Tài liệu này được phân loại vào nhóm: " + GroupName(cls.MainGroup) + ".\n\n" +
			"Hãy đọc TOÀN BỘ văn bản sau và tạo tóm tắt điều hành (5-7 dòng):\n\n" +
			strings.Repeat("=", 50) + "\n" + text + "\n" + strings.Repeat("=", 50)
		summary, err := a.summarizer.Complete(ctx, summarySystemPrompt, prompt)
		if err == nil && strings.TrimSpace(summary) != "" {
			return groupLabel + strings.TrimSpace(summary), domain.MethodModelAssisted
		}
		if err != nil {
			a.logger.Warn("model summary failed, using deterministic summary", "error", err)
		}
	}

	return groupLabel + fallbackSummary(text), domain.MethodDeterministic
}

// fallbackSummary joins the first two lines longer than 50 characters
// and truncates to 400 characters.
func fallbackSummary(text string) string {
	var lines []string
	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		if len([]rune(trimmed)) > summaryMinLineLen {
			lines = append(lines, trimmed)
		}
	}
	if len(lines) == 0 {
		lines = []string{runePrefix(text, 500)}
	}
	if len(lines) > 2 {
		lines = lines[:2]
	}

	summary := strings.Join(lines, " ")
	if len([]rune(summary)) > summaryMaxRunes {
		summary = runePrefix(summary, summaryMaxRunes) + "..."
	}
	return summary
}

// extractKeywords starts from the classifier's matched keywords and
// appends up to two decree/resolution/circular reference numbers per
// pattern, capped at ten entries.
func extractKeywords(text string, cls domain.Classification) []string {
	keywords := make([]string, 0, len(cls.MatchedKeywords)+6)
	keywords = append(keywords, cls.MatchedKeywords...)

	textLower := strings.ToLower(text)
	for _, ref := range referencePatterns {
		matches := ref.pattern.FindAllStringSubmatch(textLower, maxReferenceNumber)
		for _, groups := range matches {
			keywords = append(keywords, ref.prefix+" "+groups[1])
		}
	}
	return textutil.UniqueLimit(keywords, maxKeywords)
}

// extractTags scans the fixed tag catalog: a token matches when its
// underscore form converted to spaces, or stripped of underscores,
// appears in the lowercased text. The main group is always appended
// as a tag.
func extractTags(text string, cls domain.Classification) []string {
	textLower := strings.ToLower(text)

	var tags []string
	for _, tag := range commonTags {
		spaced := strings.ReplaceAll(tag, "_", " ")
		joined := strings.ReplaceAll(tag, "_", "")
		if strings.Contains(textLower, spaced) || strings.Contains(textLower, joined) {
			tags = append(tags, tag)
		}
	}
	tags = append(tags, string(cls.MainGroup))
	return textutil.Unique(tags)
}

func identifyProjects(text string) []string {
	var projects []string
	for _, project := range commonProjects {
		if strings.Contains(text, project) {
			projects = append(projects, project)
		}
	}
	matches := projectPattern.FindAllString(text, maxProjectMatches)
	for _, match := range matches {
		projects = append(projects, strings.TrimSpace(match))
	}
	return textutil.Unique(projects)
}

func identifyLocations(text string) []string {
	var locations []string
	for _, location := range commonLocations {
		if strings.Contains(text, location) {
			locations = append(locations, location)
		}
	}
	return textutil.Unique(locations)
}

// assessSecurityLevel scans text and filename. Sensitive keywords take
// precedence over every other signal.
func assessSecurityLevel(text, filename string) domain.SecurityLevel {
	textLower := strings.ToLower(text)
	filenameLower := strings.ToLower(filename)

	for _, keyword := range sensitiveKeywords {
		if strings.Contains(textLower, keyword) || strings.Contains(filenameLower, keyword) {
			return domain.SecuritySensitive
		}
	}
	if strings.Contains(textLower, "nội bộ") || strings.Contains(textLower, "dự thảo") {
		return domain.SecurityInternal
	}
	for _, keyword := range publicKeywords {
		if strings.Contains(textLower, keyword) {
			return domain.SecurityPublic
		}
	}
	return domain.SecurityInternal
}

func suggestActions(cls domain.Classification, keywords []string) []string {
	var suggestions []string
	if actions, ok := groupActions[cls.MainGroup]; ok {
		suggestions = append(suggestions, actions...)
	}

	for _, keyword := range keywords {
		lower := strings.ToLower(keyword)
		if strings.Contains(lower, "fs") || strings.Contains(lower, "feed") {
			suggestions = append(suggestions, "Kiểm tra đầy đủ hồ sơ FS/FEED")
		}
		if strings.Contains(lower, "phap_ly") || strings.Contains(lower, "pháp lý") {
			suggestions = append(suggestions, "Rà soát tính pháp lý của tài liệu")
		}
		if strings.Contains(lower, "dau_thau") || strings.Contains(lower, "đấu thầu") {
			suggestions = append(suggestions, "Cập nhật tiến độ đấu thầu")
		}
	}
	return textutil.UniqueLimit(suggestions, maxSuggestions)
}

func runePrefix(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
