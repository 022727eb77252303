package intake

// Step is a position in the intake workflow.
type Step string

const (
	StepBranchSelect Step = "branch"
	StepRecordChoice Step = "record-choice"
	StepRegistration Step = "registration"
	StepLabel        Step = "label"
	StepWorkOrder    Step = "work-order"
	StepTypeApproval Step = "type-approval"
	StepChecklist    Step = "checklist"
	StepSummary      Step = "summary"
	StepCommitted    Step = "committed"
)

var stepOrder = []Step{
	StepBranchSelect,
	StepRecordChoice,
	StepRegistration,
	StepLabel,
	StepWorkOrder,
	StepTypeApproval,
	StepChecklist,
	StepSummary,
	StepCommitted,
}

func (s Step) index() int {
	for i, st := range stepOrder {
		if st == s {
			return i
		}
	}
	return -1
}

// ParseStep accepts any step a client may navigate to. Committed is only
// reached through Commit.
func ParseStep(s string) (Step, bool) {
	st := Step(s)
	if st == StepCommitted || st.index() < 0 {
		return "", false
	}
	return st, true
}

// after reports whether s lies strictly after other in the workflow.
func (s Step) after(other Step) bool { return s.index() > other.index() }

// Next returns the step following s, or s when it is the last navigable one.
func (s Step) Next() Step {
	i := s.index()
	if i < 0 || i+1 >= StepSummary.index()+1 {
		return s
	}
	return stepOrder[i+1]
}

// Prev returns the step before s, or s when it is the first.
func (s Step) Prev() Step {
	i := s.index()
	if i <= 0 {
		return s
	}
	return stepOrder[i-1]
}
