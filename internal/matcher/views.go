package matcher

import "strings"

// Views are the three texts a job is compared through.
type Views struct {
	Overview   string
	Skills     string
	Experience string
}

// BuildViews joins the non-empty job fields of each view with newlines.
func BuildViews(job JobProfile) Views {
	return Views{
		Overview:   joinNonEmpty(job.Title, job.Description, job.Requirements, job.Responsibilities),
		Skills:     joinNonEmpty(job.SkillsRequired, job.Title),
		Experience: joinNonEmpty(job.ExperienceLevel, job.Requirements, job.Title),
	}
}

func joinNonEmpty(parts ...string) string {
	kept := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			kept = append(kept, p)
		}
	}
	return strings.Join(kept, "\n")
}
