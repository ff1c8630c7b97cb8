package github

import (
	"fmt"
	"strings"
)

const baseQuery = `is:issue is:open label:"good first issue"`

// frameworkLanguages maps frameworks to the repository language GitHub
// reports for projects built on them.
var frameworkLanguages = map[string]string{
	"fastapi": "python",
	"django":  "python",
	"flask":   "python",
	"react":   "javascript",
	"vue":     "javascript",
	"express": "javascript",
	"nextjs":  "javascript",
	"angular": "typescript",
}

// Languages lowercases skills, maps frameworks to languages and removes
// duplicates, keeping first-seen order.
func Languages(skills []string) []string {
	seen := make(map[string]bool, len(skills))
	out := make([]string, 0, len(skills))
	for _, s := range skills {
		lang := strings.ToLower(strings.TrimSpace(s))
		if lang == "" {
			continue
		}
		if mapped, ok := frameworkLanguages[lang]; ok {
			lang = mapped
		}
		if seen[lang] {
			continue
		}
		seen[lang] = true
		out = append(out, lang)
	}
	return out
}

// BuildSearchQuery returns the issue search query for skills.
func BuildSearchQuery(skills []string) string {
	langs := Languages(skills)
	if len(langs) == 0 {
		return baseQuery
	}
	parts := make([]string, len(langs))
	for i, l := range langs {
		parts[i] = fmt.Sprintf("language:%s", l)
	}
	return baseQuery + " " + strings.Join(parts, " ")
}
