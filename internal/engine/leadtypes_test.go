package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Hamza7661/Assistly-Backend-sub000/internal/store"
)

func boolPtr(b bool) *bool { return &b }

func TestNormalizeLeadTypesEmptyFallsBackToDefaults(t *testing.T) {
	got := NormalizeLeadTypes(nil)

	require.Len(t, got, 3)
	assert.Equal(t, "ask-a-question", got[0].Value)
	assert.Equal(t, "book-an-appointment", got[1].Value)
	assert.Equal(t, "request-a-callback", got[2].Value)
}

func TestNormalizeLeadTypesRecomputesValueFromText(t *testing.T) {
	// The stored value predates a label rename and must be ignored.
	overrides := []store.LeadTypeOverride{
		{ID: "lt-1", Text: "Book a Table", Value: "old-slug"},
	}

	got := NormalizeLeadTypes(overrides)

	require.Len(t, got, 1)
	assert.Equal(t, "book-a-table", got[0].Value)
}

func TestNormalizeLeadTypesFiltersInactiveAndSorts(t *testing.T) {
	overrides := []store.LeadTypeOverride{
		{ID: "lt-2", Text: "Second", Order: 2},
		{ID: "lt-3", Text: "Hidden", Order: 0, Active: boolPtr(false)},
		{ID: "lt-1", Text: "First", Order: 1, Active: boolPtr(true)},
	}

	got := NormalizeLeadTypes(overrides)

	require.Len(t, got, 2)
	assert.Equal(t, "First", got[0].Text)
	assert.Equal(t, "Second", got[1].Text)
}

func TestNormalizeLeadTypesValueFallbackChain(t *testing.T) {
	overrides := []store.LeadTypeOverride{
		{ID: "lt-1", Text: "日本語のみ", Value: "  stored-value  "},
		{ID: "lt-2", Text: "###"},
		{Text: "!!!"},
	}

	got := NormalizeLeadTypes(overrides)

	require.Len(t, got, 3)
	assert.Equal(t, "stored-value", got[0].Value, "unslugifiable text falls back to stored value")
	assert.Equal(t, "custom-lt-2", got[1].Value, "no value falls back to id")
	assert.Equal(t, "custom-2", got[2].Value, "no id falls back to list position")
}

func TestNormalizeLeadTypesDeterministic(t *testing.T) {
	overrides := []store.LeadTypeOverride{
		{ID: "a", Text: "Same Order", Order: 1},
		{ID: "b", Text: "Also Same", Order: 1},
	}

	first := NormalizeLeadTypes(overrides)
	second := NormalizeLeadTypes(overrides)
	assert.Equal(t, first, second)
	assert.Equal(t, "a", first[0].ID, "stable sort keeps input order on ties")
}

func TestSlugify(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"Book a Table", "book-a-table"},
		{"  Trim   Me  ", "trim-me"},
		{"Ask (Anything)!", "ask-anything"},
		{"Mixed-Case-2go", "mixed-case-2go"},
		{"###", ""},
		{"", ""},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, Slugify(tc.in), "Slugify(%q)", tc.in)
	}
}
