package moral

import "testing"

func TestUSPoliticalAffiliationSummarizer(t *testing.T) {
	t.Parallel()

	got := USPoliticalAffiliationSummarizer([]Demographics{
		{"usPoliticalAffiliation": "Democrat"},
		{"usPoliticalAffiliation": "Republican"},
		{"usPoliticalAffiliation": "Independent"},
		{"usPoliticalAffiliation": "Independent"},
		{"age": 40},
	}).(PoliticalAffiliationSummary)

	// Tie between the two majors goes to Democrat; Independent is counted but never main.
	if got.MainAffiliation != "Democrat" {
		t.Fatalf("MainAffiliation=%q, want Democrat", got.MainAffiliation)
	}
	if got.Counts["Independent"] != 2 || got.Counts["Republican"] != 1 || len(got.Counts) != 3 {
		t.Fatalf("Counts=%v", got.Counts)
	}
}

func TestUSPoliticalAffiliationSummarizer_Empty(t *testing.T) {
	t.Parallel()

	got := USPoliticalAffiliationSummarizer(nil).(PoliticalAffiliationSummary)
	if got.MainAffiliation != "" || len(got.Counts) != 0 {
		t.Fatalf("got=%+v, want empty", got)
	}
}
