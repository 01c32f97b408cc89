package domain

import "math"

// Stats is the aggregate report over a candidate task set spanning all
// stages. Percentages are display values rounded to the nearest integer.
type Stats struct {
	TotalTasks      int `json:"totalTasks"`
	CompletedTasks  int `json:"completedTasks"`
	InProgressTasks int `json:"inProgressTasks"`
	TotalPoints     int `json:"totalPoints"`
	CompletedPoints int `json:"completedPoints"`
	CompletionRate  int `json:"completionRate"`

	Stages     []StageStat    `json:"stages"`
	Labels     []GroupStat    `json:"labels"`
	Priorities []GroupStat    `json:"priorities"`
	Assignees  []AssigneeStat `json:"assignees"`
}

// StageStat is the per-stage slice of the report, one row per pipeline
// stage in board order.
type StageStat struct {
	Stage   Stage `json:"stage"`
	Count   int   `json:"count"`
	Percent int   `json:"percent"`
}

// GroupStat is a count/percentage row for a label or priority value.
// Values with zero tasks are omitted from the report.
type GroupStat struct {
	Name    string `json:"name"`
	Count   int    `json:"count"`
	Percent int    `json:"percent"`
}

// AssigneeStat is the per-assignee rollup. Dangling assignee codes are
// reported as-is; tasks without an assignee roll up under "unassigned".
type AssigneeStat struct {
	Assignee       string `json:"assignee"`
	Tasks          int    `json:"tasks"`
	Completed      int    `json:"completed"`
	InProgress     int    `json:"inProgress"`
	Points         int    `json:"points"`
	CompletionRate int    `json:"completionRate"`
}

// UnassignedKey groups tasks whose assignee is empty or dangling-blank.
const UnassignedKey = "unassigned"

// ReportStats computes the aggregate report over the candidate set selected
// by the sprint and assignee filters. Assignee rollup rows appear in the
// order assignees are first encountered scanning the stages in board order.
func (b *Board) ReportStats(f Filter) Stats {
	tasks := b.candidates(f)

	stats := Stats{TotalTasks: len(tasks)}
	stageCounts := make(map[Stage]int, len(Stages))
	labelCounts := make(map[Label]int)
	priorityCounts := make(map[Priority]int)

	rollup := make(map[string]*AssigneeStat)
	var rollupOrder []string

	for _, t := range tasks {
		stats.TotalPoints += t.Points
		stageCounts[t.Stage]++
		labelCounts[t.Label]++
		priorityCounts[t.Priority]++

		switch t.Stage {
		case StageDone:
			stats.CompletedTasks++
			stats.CompletedPoints += t.Points
		case StageInProgress:
			stats.InProgressTasks++
		}

		key := t.Assignee
		if key == "" {
			key = UnassignedKey
		}
		row, ok := rollup[key]
		if !ok {
			row = &AssigneeStat{Assignee: key}
			rollup[key] = row
			rollupOrder = append(rollupOrder, key)
		}
		row.Tasks++
		row.Points += t.Points
		switch t.Stage {
		case StageDone:
			row.Completed++
		case StageInProgress:
			row.InProgress++
		}
	}

	stats.CompletionRate = percent(stats.CompletedTasks, stats.TotalTasks)

	for _, stage := range Stages {
		stats.Stages = append(stats.Stages, StageStat{
			Stage:   stage,
			Count:   stageCounts[stage],
			Percent: percent(stageCounts[stage], stats.TotalTasks),
		})
	}
	for _, label := range []Label{LabelBilling, LabelAccounts, LabelForms, LabelFeedback} {
		if n := labelCounts[label]; n > 0 {
			stats.Labels = append(stats.Labels, GroupStat{
				Name:    string(label),
				Count:   n,
				Percent: percent(n, stats.TotalTasks),
			})
		}
	}
	for _, prio := range []Priority{PriorityCritical, PriorityHigh, PriorityMedium, PriorityLow} {
		if n := priorityCounts[prio]; n > 0 {
			stats.Priorities = append(stats.Priorities, GroupStat{
				Name:    string(prio),
				Count:   n,
				Percent: percent(n, stats.TotalTasks),
			})
		}
	}
	for _, key := range rollupOrder {
		row := rollup[key]
		row.CompletionRate = percent(row.Completed, row.Tasks)
		stats.Assignees = append(stats.Assignees, *row)
	}
	return stats
}

// percent rounds part/total to the nearest whole percentage, returning 0 for
// an empty total.
func percent(part, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(float64(part) / float64(total) * 100))
}
