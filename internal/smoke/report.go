package smoke

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"
)

// Step is the outcome of one check.
type Step struct {
	Name     string
	OK       bool
	Detail   string
	Duration time.Duration
}

// Report summarises a run.
type Report struct {
	RunID            string
	BaseURL          string
	Username         string
	BetID            string
	SignupsCreated   int
	SignupsDuplicate int
	SignupsFailed    int
	Steps            []Step
	Started          time.Time
	Duration         time.Duration
}

// Passed reports whether every step ran and succeeded.
func (r *Report) Passed() bool {
	if len(r.Steps) == 0 {
		return false
	}
	for _, s := range r.Steps {
		if !s.OK {
			return false
		}
	}
	return true
}

// Print writes the report as a table.
func (r *Report) Print(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "run %s against %s\n\n", r.RunID, r.BaseURL)
	fmt.Fprintln(tw, "STEP\tRESULT\tTOOK\tDETAIL")
	for _, s := range r.Steps {
		result := "ok"
		if !s.OK {
			result = "FAIL"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", s.Name, result, s.Duration.Round(time.Millisecond), s.Detail)
	}
	verdict := "PASSED"
	if !r.Passed() {
		verdict = "FAILED"
	}
	fmt.Fprintf(tw, "\n%s in %s\n", verdict, r.Duration.Round(time.Millisecond))
	return tw.Flush()
}
