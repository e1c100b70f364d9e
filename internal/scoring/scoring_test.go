package scoring

import (
	"testing"
	"time"

	"github.com/marcus/dayshift/internal/tasks"
)

var testNow = time.Date(2025, 6, 2, 9, 0, 0, 0, time.UTC)

func baseTask() *tasks.Task {
	return &tasks.Task{
		ID:         "t1",
		Title:      "test task",
		Domain:     tasks.DomainPersonal,
		Importance: 3,
		Urgency:    3,
	}
}

func TestScoreDeterministic(t *testing.T) {
	task := baseTask()
	cfg := DefaultConfig()

	s1, tier1 := Score(task, testNow, cfg)
	s2, tier2 := Score(task, testNow, cfg)

	if s1 != s2 || tier1 != tier2 {
		t.Errorf("score not deterministic: (%f,%s) vs (%f,%s)", s1, tier1, s2, tier2)
	}
}

func TestScoreMonotonicInUrgencyAndImportance(t *testing.T) {
	cfg := DefaultConfig()

	prev := -1.0
	for u := 1; u <= 5; u++ {
		task := baseTask()
		task.Urgency = u
		s, _ := Score(task, testNow, cfg)
		if s < prev {
			t.Errorf("score decreased as urgency rose: urgency=%d score=%f prev=%f", u, s, prev)
		}
		prev = s
	}

	prev = -1.0
	for i := 1; i <= 5; i++ {
		task := baseTask()
		task.Importance = i
		s, _ := Score(task, testNow, cfg)
		if s < prev {
			t.Errorf("score decreased as importance rose: importance=%d score=%f prev=%f", i, s, prev)
		}
		prev = s
	}
}

func TestOverdueAlwaysAtLeastHigh(t *testing.T) {
	cfg := DefaultConfig()
	overdue := testNow.Add(-48 * time.Hour)

	// Even with minimum inputs, an overdue task lands at high or above.
	task := baseTask()
	task.Importance = 1
	task.Urgency = 1
	task.DueDate = &overdue

	_, tier := Score(task, testNow, cfg)
	if tier != tasks.PriorityHigh && tier != tasks.PriorityCritical {
		t.Errorf("overdue task got tier %s, want at least high", tier)
	}
}

func TestOverdueSaturatesUrgencyComponent(t *testing.T) {
	cfg := DefaultConfig()
	overdue := testNow.Add(-time.Hour)

	task := baseTask()
	task.Urgency = 1
	task.DueDate = &overdue

	if got := urgencyComponent(task, testNow, cfg); got != 1.0 {
		t.Errorf("urgency component for overdue task = %f, want 1.0", got)
	}
}

func TestProximityBonusMonotonic(t *testing.T) {
	cfg := DefaultConfig()

	// Closer due dates never score lower.
	prev := -1.0
	for days := 10; days >= 0; days-- {
		due := testNow.Add(time.Duration(days) * 24 * time.Hour)
		task := baseTask()
		task.DueDate = &due
		got := urgencyComponent(task, testNow, cfg)
		if got < prev {
			t.Errorf("urgency component dropped as due date approached: days=%d got=%f prev=%f", days, got, prev)
		}
		prev = got
	}
}

func TestTierThresholds(t *testing.T) {
	cases := []struct {
		score float64
		want  tasks.Priority
	}{
		{0.85, tasks.PriorityCritical},
		{0.80, tasks.PriorityCritical},
		{0.79, tasks.PriorityHigh},
		{0.60, tasks.PriorityHigh},
		{0.59, tasks.PriorityMedium},
		{0.40, tasks.PriorityMedium},
		{0.39, tasks.PriorityLow},
		{0.20, tasks.PriorityLow},
		{0.19, tasks.PrioritySomeday},
		{0.0, tasks.PrioritySomeday},
	}
	for _, tc := range cases {
		if got := tierFor(tc.score); got != tc.want {
			t.Errorf("tierFor(%f) = %s, want %s", tc.score, got, tc.want)
		}
	}
}

func TestEffortComponentFavorsQuickWins(t *testing.T) {
	cfg := DefaultConfig()

	quick := baseTask()
	quick.EstimatedDurationMin = 5
	long := baseTask()
	long.EstimatedDurationMin = 120

	sQuick, _ := Score(quick, testNow, cfg)
	sLong, _ := Score(long, testNow, cfg)
	if sQuick <= sLong {
		t.Errorf("quick task (%f) should outscore long task (%f), all else equal", sQuick, sLong)
	}

	// No estimate is neutral, between quick and long.
	if got := effortComponent(baseTask(), cfg); got != 0.5 {
		t.Errorf("effort component without estimate = %f, want 0.5", got)
	}
}

func TestDomainWeightsConfigurable(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DomainWeights[tasks.DomainPersonal] = 0.1

	personal := baseTask()
	family := baseTask()
	family.Domain = tasks.DomainFamily

	sPersonal, _ := Score(personal, testNow, cfg)
	sFamily, _ := Score(family, testNow, cfg)
	if sFamily <= sPersonal {
		t.Errorf("family task (%f) should outscore down-weighted personal task (%f)", sFamily, sPersonal)
	}
}

func TestDefaultWeightsNormalized(t *testing.T) {
	w := DefaultConfig().Weights
	sum := w.Urgency + w.Importance + w.Effort + w.Domain
	if sum < 0.999 || sum > 1.001 {
		t.Errorf("default weights sum to %f, want 1.0", sum)
	}

	// A zero weight set falls back to defaults rather than dividing by zero.
	n := Weights{}.Normalize()
	if n != DefaultConfig().Weights {
		t.Errorf("zero weights normalized to %+v, want defaults", n)
	}
}

func TestUrgencyFromDue(t *testing.T) {
	day := func(n int) *time.Time {
		d := testNow.Add(time.Duration(n) * 24 * time.Hour)
		return &d
	}

	cases := []struct {
		name string
		due  *time.Time
		want int
	}{
		{"no due date", nil, 2},
		{"overdue", day(-2), 5},
		{"today", day(0), 5},
		{"tomorrow", day(1), 4},
		{"three days", day(3), 3},
		{"this week", day(6), 2},
		{"later", day(20), 1},
	}
	for _, tc := range cases {
		if got := UrgencyFromDue(tc.due, testNow); got != tc.want {
			t.Errorf("%s: UrgencyFromDue = %d, want %d", tc.name, got, tc.want)
		}
	}
}
