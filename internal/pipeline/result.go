package pipeline

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"

	"spritegen/internal/domain"
)

// Stage names the step an asset reached. A failed result carries the stage
// that failed; a successful one carries StageDone.
type Stage string

const (
	StageQueued   Stage = "queued"
	StageValidate Stage = "validate"
	StageSubmit   Stage = "submit"
	StagePoll     Stage = "poll"
	StageFetch    Stage = "fetch"
	StageLoad     Stage = "load"
	StageMatte    Stage = "matte"
	StageResize   Stage = "resize"
	StageWrite    Stage = "write"
	StageDone     Stage = "done"
)

// AssetResult is the outcome of one request.
type AssetResult struct {
	Seq          int
	Name         string
	JobID        string
	SourceURL    string
	Outputs      []string
	Stage        Stage
	Kind         domain.ErrorKind
	Err          error
	Cleared      int
	PollAttempts int
	Duration     time.Duration
}

// Succeeded reports whether every stage, including all writes, completed.
func (r AssetResult) Succeeded() bool {
	return r.Err == nil
}

// Summary reports a whole batch. Results follow the input order.
type Summary struct {
	RunID     uuid.UUID
	Started   time.Time
	Finished  time.Time
	Succeeded int
	Failed    int
	Results   []AssetResult
}

// Failures returns the failed results in input order.
func (s Summary) Failures() []AssetResult {
	var out []AssetResult
	for _, r := range s.Results {
		if !r.Succeeded() {
			out = append(out, r)
		}
	}
	return out
}

func (s Summary) Duration() time.Duration {
	return s.Finished.Sub(s.Started)
}

func (s *Summary) tally() {
	s.Succeeded, s.Failed = 0, 0
	for _, r := range s.Results {
		if r.Succeeded() {
			s.Succeeded++
		} else {
			s.Failed++
		}
	}
}

// Report writes a human readable table of the run to w.
func (s Summary) Report(w io.Writer) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "run %s: %d succeeded, %d failed in %s\n", s.RunID, s.Succeeded, s.Failed, s.Duration().Round(time.Millisecond))
	fmt.Fprintln(tw, "ASSET\tRESULT\tSTAGE\tDETAIL")
	for _, r := range s.Results {
		if r.Succeeded() {
			fmt.Fprintf(tw, "%s\tok\t%s\t%s\n", r.Name, r.Stage, strings.Join(r.Outputs, ", "))
			continue
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%v\n", r.Name, r.Kind, r.Stage, r.Err)
	}
	return tw.Flush()
}
