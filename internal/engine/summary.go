package engine

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// SummaryPrefix starts the machine-readable result line the runtime prints
// after its human-readable summary.
const SummaryPrefix = "verdict:summary "

// Summary counts scenario and step outcomes of one execution.
type Summary struct {
	Scenarios      int   `json:"scenarios"`
	Passed         int   `json:"passed"`
	Failed         int   `json:"failed"`
	Undefined      int   `json:"undefined"`
	Steps          int   `json:"steps"`
	StepsPassed    int   `json:"steps_passed"`
	StepsFailed    int   `json:"steps_failed"`
	StepsSkipped   int   `json:"steps_skipped"`
	StepsUndefined int   `json:"steps_undefined"`
	DurationMS     int64 `json:"duration_ms"`
}

// Success reports whether at least one scenario ran and every scenario passed.
func (s Summary) Success() bool {
	return s.Scenarios > 0 && s.Passed == s.Scenarios && s.Failed == 0 && s.Undefined == 0
}

// add folds one scenario result into the counts.
func (s *Summary) add(r ScenarioResult) {
	s.Scenarios++
	switch r.Outcome {
	case Passed:
		s.Passed++
	case Undefined:
		s.Undefined++
	default:
		s.Failed++
	}
	for _, st := range r.Steps {
		s.Steps++
		switch st.Outcome {
		case Passed:
			s.StepsPassed++
		case Failed:
			s.StepsFailed++
		case Undefined:
			s.StepsUndefined++
		default:
			s.StepsSkipped++
		}
	}
}

// Write prints the cucumber-style totals followed by the structured line.
func (s Summary) Write(w io.Writer) error {
	scenarios := counts(
		count{s.Failed, "failed"},
		count{s.Undefined, "undefined"},
		count{s.Passed, "passed"},
	)
	stepCounts := counts(
		count{s.StepsFailed, "failed"},
		count{s.StepsUndefined, "undefined"},
		count{s.StepsSkipped, "skipped"},
		count{s.StepsPassed, "passed"},
	)
	d := time.Duration(s.DurationMS) * time.Millisecond

	encoded, err := json.Marshal(s)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(w, "%s%s\n%s%s\n%dm%06.3fs\n%s%s\n",
		plural(s.Scenarios, "scenario"), scenarios,
		plural(s.Steps, "step"), stepCounts,
		int(d.Minutes()), (d % time.Minute).Seconds(),
		SummaryPrefix, encoded,
	)
	return err
}

type count struct {
	n    int
	name string
}

func counts(cs ...count) string {
	var parts []string
	for _, c := range cs {
		if c.n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", c.n, c.name))
		}
	}
	if len(parts) == 0 {
		return ""
	}
	return " (" + strings.Join(parts, ", ") + ")"
}

func plural(n int, noun string) string {
	if n == 1 {
		return fmt.Sprintf("%d %s", n, noun)
	}
	return fmt.Sprintf("%d %ss", n, noun)
}

// ParseSummary finds the last structured summary line in a transcript.
func ParseSummary(transcript string) (Summary, bool) {
	var (
		found bool
		out   Summary
	)
	sc := bufio.NewScanner(strings.NewReader(transcript))
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		raw, ok := strings.CutPrefix(line, SummaryPrefix)
		if !ok {
			continue
		}
		var s Summary
		if err := json.Unmarshal([]byte(raw), &s); err != nil {
			continue
		}
		out, found = s, true
	}
	return out, found
}
