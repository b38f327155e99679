package domain

// Outcome is what a delivery attempt tells the job store to do with the job.
type Outcome int

const (
	OutcomeOK Outcome = iota
	OutcomeSkipped
	OutcomeRetry
	OutcomeFatal
)

func (o Outcome) String() string {
	switch o {
	case OutcomeOK:
		return "ok"
	case OutcomeSkipped:
		return "skipped"
	case OutcomeRetry:
		return "retry"
	case OutcomeFatal:
		return "fatal"
	}
	return "unknown"
}

type Result struct {
	Outcome Outcome
	Reason  string
	Err     error
}

func Ok() Result { return Result{Outcome: OutcomeOK} }

func Skipped(reason string) Result { return Result{Outcome: OutcomeSkipped, Reason: reason} }

// Retry hands the failure to the retry policy.
func Retry(err error) Result { return Result{Outcome: OutcomeRetry, Err: err, Reason: err.Error()} }

// Fatal fails the job now; the attempt still counts.
func Fatal(err error) Result { return Result{Outcome: OutcomeFatal, Err: err, Reason: err.Error()} }

// Succeeded reports whether the job should be marked completed.
func (r Result) Succeeded() bool {
	return r.Outcome == OutcomeOK || r.Outcome == OutcomeSkipped
}
