package matcher

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// SkillMatcher selects which required skills a resume covers.
type SkillMatcher interface {
	Match(resume string, skills []string) []string
}

// ExperienceEstimator extracts years of experience from a resume. Nil means unknown.
type ExperienceEstimator interface {
	Estimate(resume string) *float64
}

// SubstringSkills matches a skill when its lower-case form occurs anywhere in
// the lower-case resume. It is a heuristic: "go" also matches "google".
type SubstringSkills struct{}

func (SubstringSkills) Match(resume string, skills []string) []string {
	text := strings.ToLower(resume)
	matched := make([]string, 0, len(skills))
	for _, skill := range skills {
		if strings.Contains(text, strings.ToLower(skill)) {
			matched = append(matched, skill)
		}
	}
	return matched
}

var yearsPattern = regexp.MustCompile(`(?i)(\d+)\+?\s*years?\b`)

// RegexExperience takes the largest "N years", "N+ years" or "N year" mention.
// Ranges and date spans are not understood.
type RegexExperience struct{}

func (RegexExperience) Estimate(resume string) *float64 {
	var best *float64
	for _, m := range yearsPattern.FindAllStringSubmatch(resume, -1) {
		n, err := strconv.Atoi(m[1])
		if err != nil {
			continue
		}
		v := float64(n)
		if best == nil || v > *best {
			best = &v
		}
	}
	return best
}

// ParseSkills reads a JSON array, falling back to a comma separated list.
// Non-string array elements are formatted as text. Blank and null entries are
// dropped.
func ParseSkills(raw string) []string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return []string{}
	}

	list, ok := jsonSkills(raw)
	if !ok {
		list = strings.Split(raw, ",")
	}

	skills := make([]string, 0, len(list))
	for _, s := range list {
		if s = strings.TrimSpace(s); s != "" {
			skills = append(skills, s)
		}
	}
	return skills
}

func jsonSkills(raw string) ([]string, bool) {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()

	var items []any
	if err := dec.Decode(&items); err != nil || dec.More() {
		return nil, false
	}

	list := make([]string, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case nil:
		case string:
			list = append(list, v)
		case json.Number:
			list = append(list, v.String())
		default:
			list = append(list, fmt.Sprint(v))
		}
	}
	return list, true
}
