package report

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/leapstack-labs/dqsentry/internal/state"
)

// RecurrenceLimit caps the recurrence summary at the most frequent groups.
const RecurrenceLimit = 10

// RecurringIssue summarizes how often one (check, table, issue type) group
// has appeared across the full issue history.
type RecurringIssue struct {
	CheckName         string  `json:"check_name"`
	TableName         string  `json:"table_name"`
	IssueType         string  `json:"issue_type"`
	Occurrences       int     `json:"occurrences"`
	MedianAffectedPct float64 `json:"median_affected_pct"`
	LastSeen          string  `json:"last_seen"`
	ProbableRootCause string  `json:"probable_root_cause"`
	RecommendedFix    string  `json:"recommended_fix"`
}

// Recurrence groups the issue history by check, table, and issue type and
// returns up to limit groups ordered by occurrences, then recency. The
// cause and fix reported for a group come from its most recent occurrence.
func Recurrence(history []state.IssueRecord, limit int) []RecurringIssue {
	type group struct {
		summary RecurringIssue
		pcts    []float64
	}

	groups := make(map[[3]string]*group)
	var order [][3]string
	for _, issue := range history {
		key := [3]string{issue.CheckName, issue.TableName, issue.IssueType}
		g, ok := groups[key]
		if !ok {
			g = &group{summary: RecurringIssue{
				CheckName: issue.CheckName,
				TableName: issue.TableName,
				IssueType: issue.IssueType,
			}}
			groups[key] = g
			order = append(order, key)
		}
		g.summary.Occurrences++
		g.pcts = append(g.pcts, issue.AffectedPct)
		if issue.RunTS >= g.summary.LastSeen {
			g.summary.LastSeen = issue.RunTS
			g.summary.ProbableRootCause = issue.ProbableRootCause
			g.summary.RecommendedFix = issue.RecommendedFix
		}
	}

	summaries := make([]RecurringIssue, 0, len(order))
	for _, key := range order {
		g := groups[key]
		g.summary.MedianAffectedPct = median(g.pcts)
		summaries = append(summaries, g.summary)
	}

	sort.SliceStable(summaries, func(i, j int) bool {
		if summaries[i].Occurrences != summaries[j].Occurrences {
			return summaries[i].Occurrences > summaries[j].Occurrences
		}
		return summaries[i].LastSeen > summaries[j].LastSeen
	})

	if limit > 0 && len(summaries) > limit {
		summaries = summaries[:limit]
	}
	return summaries
}

// WriteRecurrenceJSON writes the recurrence summary to path, creating
// parent directories. An empty summary still produces a valid file.
func WriteRecurrenceJSON(path string, summaries []RecurringIssue) error {
	if summaries == nil {
		summaries = []RecurringIssue{}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("failed to create report directory: %w", err)
	}
	data, err := json.MarshalIndent(summaries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode recurrence summary: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write recurrence summary: %w", err)
	}
	return nil
}

func median(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 1 {
		return sorted[mid]
	}
	return (sorted[mid-1] + sorted[mid]) / 2
}
