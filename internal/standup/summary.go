package standup

import (
	"time"

	"github.com/chasedowdell/SprintSwarm/internal/backlog"
	"github.com/chasedowdell/SprintSwarm/internal/developer"
)

// TaskResult is the outcome of one decomposed task.
type TaskResult struct {
	Description string
	Decision    developer.DecisionKind
	FilePath    string
	Attempts    int
	Failure     FailureKind
	Err         error
}

// ItemResult is the outcome of one work item.
type ItemResult struct {
	Item  backlog.WorkItem
	Tasks []TaskResult
	// Failure is set when the item failed before any task ran.
	Failure FailureKind
	Err     error
}

// Failed reports whether the item could not be decomposed.
func (r ItemResult) Failed() bool {
	return r.Failure != ""
}

// Summary aggregates one standup cycle.
type Summary struct {
	RunID     string
	StartedAt time.Time
	Duration  time.Duration

	ItemsProcessed int
	ItemsFailed    int
	TasksSucceeded int
	TasksFailed    int

	Decisions map[developer.DecisionKind]int
	Failures  map[FailureKind]int

	// Items lists results in the order items were popped.
	Items []ItemResult

	// Canceled is set when the context ended before the queue was drained.
	Canceled bool
}

func newSummary(runID string, started time.Time) Summary {
	return Summary{
		RunID:     runID,
		StartedAt: started,
		Decisions: make(map[developer.DecisionKind]int),
		Failures:  make(map[FailureKind]int),
	}
}

// TotalFailures is the number of failed items plus failed tasks.
func (s Summary) TotalFailures() int {
	n := 0
	for _, c := range s.Failures {
		n += c
	}
	return n
}

func (s *Summary) add(r ItemResult) {
	s.Items = append(s.Items, r)
	if r.Failed() {
		s.ItemsFailed++
		s.Failures[r.Failure]++
		return
	}
	s.ItemsProcessed++
	for _, t := range r.Tasks {
		if t.Failure != "" {
			s.TasksFailed++
			s.Failures[t.Failure]++
			continue
		}
		s.TasksSucceeded++
		s.Decisions[t.Decision]++
	}
}
