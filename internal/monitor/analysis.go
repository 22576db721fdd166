package monitor

import (
	"sort"
	"strings"
)

// Analysis is an on-demand pattern summary computed from the retained
// slow samples only. It is always a partial view bounded by the most
// recent samples; aggregate trends live in Stats.
type Analysis struct {
	SampleCount     int               `json:"sample_count"`
	JoinHeavy       int               `json:"join_heavy"`
	FrequentTables  []TableFrequency  `json:"frequent_tables"`
	ByOperation     map[QueryType]int `json:"by_operation"`
	SlowestSampleMs int64             `json:"slowest_sample_ms"`
}

// TableFrequency pairs a table guess with how often it appears in the
// retained samples.
type TableFrequency struct {
	Table string `json:"table"`
	Count int    `json:"count"`
}

// Analyze scans the retained slow samples for patterns: join-heavy
// statements and the tables/operations that dominate the buffer.
func (m *Monitor) Analyze() Analysis {
	samples := m.Samples()

	a := Analysis{
		SampleCount: len(samples),
		ByOperation: make(map[QueryType]int),
	}
	tables := make(map[string]int)

	for _, s := range samples {
		a.ByOperation[s.Type]++
		if strings.Contains(strings.ToUpper(s.SQL), " JOIN ") {
			a.JoinHeavy++
		}
		if s.Table != "" {
			tables[s.Table]++
		}
		if ms := s.Duration.Milliseconds(); ms > a.SlowestSampleMs {
			a.SlowestSampleMs = ms
		}
	}

	for t, n := range tables {
		a.FrequentTables = append(a.FrequentTables, TableFrequency{Table: t, Count: n})
	}
	sort.Slice(a.FrequentTables, func(i, j int) bool {
		if a.FrequentTables[i].Count != a.FrequentTables[j].Count {
			return a.FrequentTables[i].Count > a.FrequentTables[j].Count
		}
		return a.FrequentTables[i].Table < a.FrequentTables[j].Table
	})
	return a
}
