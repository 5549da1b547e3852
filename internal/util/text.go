package util

import "strings"

// NormalizeTag deixa a tag comparável: minúsculas e sem espaços nas pontas.
func NormalizeTag(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// NormalizeTags aplica NormalizeTag e descarta vazios.
func NormalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if n := NormalizeTag(t); n != "" {
			out = append(out, n)
		}
	}
	return out
}

// CleanTags apara, remove vazios e deduplica sem diferenciar maiúsculas,
// preservando a grafia da primeira ocorrência.
func CleanTags(tags []string) []string {
	seen := make(map[string]struct{}, len(tags))
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		trimmed := strings.TrimSpace(t)
		key := NormalizeTag(trimmed)
		if key == "" {
			continue
		}
		if _, ok := seen[key]; ok {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}
