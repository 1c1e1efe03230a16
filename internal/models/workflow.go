package models

// Decision is the verdict an instructor or FA applies to a selection.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// StudentAction is a student-initiated enrollment action.
type StudentAction string

const (
	StudentActionCredit   StudentAction = "credit"
	StudentActionDrop     StudentAction = "drop"
	StudentActionWithdraw StudentAction = "withdraw"
)

var enrollmentTransitions = map[EnrollmentStatus][]EnrollmentStatus{
	EnrollmentStatusNotEnrolled:       {EnrollmentStatusPendingInstructor},
	EnrollmentStatusPendingInstructor: {EnrollmentStatusPendingFA, EnrollmentStatusRejected, EnrollmentStatusDropped, EnrollmentStatusWithdrawn},
	EnrollmentStatusPendingFA:         {EnrollmentStatusApproved, EnrollmentStatusRejected, EnrollmentStatusDropped, EnrollmentStatusWithdrawn},
	EnrollmentStatusApproved:          {EnrollmentStatusDropped, EnrollmentStatusWithdrawn},
}

// CanTransition reports whether the enrollment state machine has an edge from -> to.
func CanTransition(from, to EnrollmentStatus) bool {
	for _, allowed := range enrollmentTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// TargetStatus maps the student action onto the status it produces.
func (a StudentAction) TargetStatus() (EnrollmentStatus, bool) {
	switch a {
	case StudentActionCredit:
		return EnrollmentStatusPendingInstructor, true
	case StudentActionDrop:
		return EnrollmentStatusDropped, true
	case StudentActionWithdraw:
		return EnrollmentStatusWithdrawn, true
	}
	return "", false
}

// StudentActionAllowed checks a student action against the unified status of a course.
// Terminal statuses admit a fresh credit only when re-enrollment is enabled.
func StudentActionAllowed(current EnrollmentStatus, action StudentAction, allowReenroll bool) bool {
	switch {
	case current == EnrollmentStatusNotEnrolled:
		return action == StudentActionCredit
	case current.IsTerminal():
		return allowReenroll && action == StudentActionCredit
	case current.Valid():
		return action == StudentActionDrop || action == StudentActionWithdraw
	}
	return false
}

// InstructorTarget maps an instructor decision onto the resulting status.
func (d Decision) InstructorTarget() (EnrollmentStatus, bool) {
	switch d {
	case DecisionApprove:
		return EnrollmentStatusPendingFA, true
	case DecisionReject:
		return EnrollmentStatusRejected, true
	}
	return "", false
}

// FATarget maps a faculty advisor decision onto the resulting status.
func (d Decision) FATarget() (EnrollmentStatus, bool) {
	switch d {
	case DecisionApprove:
		return EnrollmentStatusApproved, true
	case DecisionReject:
		return EnrollmentStatusRejected, true
	}
	return "", false
}

// CourseTarget maps a proposal decision onto the resulting course status.
func (d Decision) CourseTarget() (CourseStatus, bool) {
	switch d {
	case DecisionApprove:
		return CourseStatusEnrolling, true
	case DecisionReject:
		return CourseStatusRejected, true
	}
	return "", false
}
