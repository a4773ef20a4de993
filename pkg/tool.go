package pkg

// Dedupe keep first occurrence of each value, drop excluded ones
func Dedupe(slice []string, exclude ...string) []string {
	seen := make(map[string]bool, len(slice))
	for _, e := range exclude {
		seen[e] = true
	}
	out := make([]string, 0, len(slice))
	for _, v := range slice {
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
