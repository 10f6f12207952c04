package emailguess

// RowResult is the outcome for one input row.
// Email is non-empty only when both DomainValid and EmailValid are true.
type RowResult struct {
	Email       string    `json:"email"`
	Domain      string    `json:"domain"`
	DomainValid bool      `json:"domainValid"`
	EmailValid  bool      `json:"emailValid"`
	Attempts    []Attempt `json:"attempts,omitempty"`
}

// Found reports whether a candidate was accepted.
func (r RowResult) Found() bool {
	return r.Email != ""
}

// Attempt records the checks run for one candidate, in order.
// Checks stop at the first failure.
type Attempt struct {
	Email  string        `json:"email"`
	Valid  bool          `json:"valid"`
	Checks []CheckResult `json:"checks"`
}

// FailedChecks returns those CheckResults that did not pass.
func (a Attempt) FailedChecks() []CheckResult {
	var out []CheckResult
	for _, c := range a.Checks {
		if !c.Passed {
			out = append(out, c)
		}
	}
	return out
}

// CheckFor returns the CheckResult for the given level, if it exists.
// The second return value indicates whether the given level was executed.
func (a Attempt) CheckFor(level CheckLevel) (CheckResult, bool) {
	for _, c := range a.Checks {
		if c.Level == level {
			return c, true
		}
	}
	return CheckResult{}, false
}

// Reason returns the reason of the failed check, or ReasonNone.
func (a Attempt) Reason() Reason {
	if failed := a.FailedChecks(); len(failed) > 0 {
		return failed[0].Reason
	}
	return ReasonNone
}
