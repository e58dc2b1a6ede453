package logging

// DefaultMilestoneStep is the percentage spacing used when none is given.
const DefaultMilestoneStep = 5

// Milestones thins a stream of progress percentages to one report per step
// for each stage. Percentages that go backwards are ignored, values above
// 100 are clamped, and negative values never report.
type Milestones struct {
	step int
	last map[string]int
}

// NewMilestones returns a tracker that reports at multiples of step.
func NewMilestones(step int) *Milestones {
	if step <= 0 {
		step = DefaultMilestoneStep
	}
	return &Milestones{step: step, last: make(map[string]int)}
}

// Next reports whether percent reaches a milestone not yet reported for
// stage, and returns that milestone.
func (m *Milestones) Next(stage string, percent int) (int, bool) {
	if m == nil {
		return percent, true
	}
	if percent < 0 {
		return 0, false
	}
	mark := min(percent, 100) / m.step * m.step
	if prev, seen := m.last[stage]; seen && mark <= prev {
		return prev, false
	}
	m.last[stage] = mark
	return mark, true
}

// Forget drops the state kept for stage so a rerun reports from zero.
func (m *Milestones) Forget(stage string) {
	if m != nil {
		delete(m.last, stage)
	}
}
