package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Hamza7661/Assistly-Backend-sub000/internal/store"
)

// LeadType is a category of user intent presented as a menu choice.
type LeadType struct {
	ID                   string            `json:"id"`
	Value                string            `json:"value"`
	Text                 string            `json:"text"`
	RelevantServicePlans []string          `json:"relevantServicePlans,omitempty"`
	Synonyms             []string          `json:"synonyms,omitempty"`
	Labels               map[string]string `json:"labels,omitempty"`
}

// DefaultLeadTypes is the fixed system catalog used when a tenant has no
// overrides.
func DefaultLeadTypes() []LeadType {
	return []LeadType{
		{ID: "default-question", Value: "ask-a-question", Text: "Ask a question"},
		{ID: "default-appointment", Value: "book-an-appointment", Text: "Book an appointment"},
		{ID: "default-callback", Value: "request-a-callback", Text: "Request a callback"},
	}
}

// NormalizeLeadTypes merges tenant overrides with the system defaults. The
// machine value is recomputed from the display text on every read so it
// always matches what the end user currently sees, even when the record was
// saved under an older label.
func NormalizeLeadTypes(overrides []store.LeadTypeOverride) []LeadType {
	if len(overrides) == 0 {
		return DefaultLeadTypes()
	}

	kept := make([]store.LeadTypeOverride, 0, len(overrides))
	for _, o := range overrides {
		if o.Active != nil && !*o.Active {
			continue
		}
		kept = append(kept, o)
	}
	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Order < kept[j].Order
	})

	out := make([]LeadType, 0, len(kept))
	for i, o := range kept {
		lt := LeadType{
			ID:   o.ID,
			Text: o.Text,
		}
		lt.Value = Slugify(o.Text)
		if lt.Value == "" {
			lt.Value = strings.TrimSpace(o.Value)
		}
		if lt.Value == "" {
			if o.ID != "" {
				lt.Value = "custom-" + o.ID
			} else {
				lt.Value = fmt.Sprintf("custom-%d", i)
			}
		}
		if plans := cleanList(o.RelevantServicePlans); len(plans) > 0 {
			lt.RelevantServicePlans = plans
		}
		if synonyms := cleanList(o.Synonyms); len(synonyms) > 0 {
			lt.Synonyms = synonyms
		}
		if len(o.Labels) > 0 {
			lt.Labels = o.Labels
		}
		out = append(out, lt)
	}
	return out
}

// Slugify derives a stable machine value from display text: lowercase,
// whitespace runs become single hyphens, everything outside [a-z0-9-] is
// stripped.
func Slugify(s string) string {
	s = strings.ToLower(strings.Join(strings.Fields(s), "-"))
	return strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') || r == '-' {
			return r
		}
		return -1
	}, s)
}

func cleanList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
