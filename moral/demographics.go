package moral

import "sort"

// PoliticalAffiliationSummary is the reduced form of US political affiliation demographics.
type PoliticalAffiliationSummary struct {
	// MainAffiliation is the more common of "Democrat" and "Republican", or "" if neither appears.
	MainAffiliation string         `json:"mainUsPoliticalAffiliation,omitempty"`
	Counts          map[string]int `json:"usPoliticalAffiliationCounts"`
}

// USPoliticalAffiliationSummarizer counts the "usPoliticalAffiliation" attribute across
// respondents. Every affiliation is counted; only Democrat and Republican compete for main.
func USPoliticalAffiliationSummarizer(demographics []Demographics) any {
	counts := make(map[string]int)
	for _, d := range demographics {
		a, _ := d["usPoliticalAffiliation"].(string)
		if a == "" {
			continue
		}
		counts[a]++
	}

	type entry struct {
		name  string
		count int
	}
	var major []entry
	for _, name := range []string{"Democrat", "Republican"} {
		if c := counts[name]; c > 0 {
			major = append(major, entry{name, c})
		}
	}
	// Stable: Democrat wins ties.
	sort.SliceStable(major, func(i, j int) bool { return major[i].count > major[j].count })

	out := PoliticalAffiliationSummary{Counts: counts}
	if len(major) > 0 {
		out.MainAffiliation = major[0].name
	}
	return out
}
