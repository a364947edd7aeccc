package textutil

// Unique removes duplicates keeping the first occurrence order.
func Unique(items []string) []string {
	seen := make(map[string]struct{}, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if _, ok := seen[item]; ok {
			continue
		}
		seen[item] = struct{}{}
		out = append(out, item)
	}
	return out
}

// UniqueLimit is Unique capped at limit entries. A limit <= 0 means
// no cap.
func UniqueLimit(items []string, limit int) []string {
	out := Unique(items)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}
