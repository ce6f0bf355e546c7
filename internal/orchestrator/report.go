package orchestrator

import (
	"fmt"
	"strings"
	"time"

	"github.com/ma5311943-dotcom/testing-tool/api/schemas"
)

const (
	emptyPassed = "All steps completed; the scenario runtime produced no output."
	emptyFailed = "The scenario runtime produced no output. Check that the target URL is reachable."
)

// Report renders the caller-visible log of a run.
func Report(id, target string, v Verdict, elapsed time.Duration, transcript string) string {
	var b strings.Builder
	b.WriteString("--- BEHAVIOR VERIFICATION REPORT ---\n")
	fmt.Fprintf(&b, "[RUN]    %s\n", id)
	fmt.Fprintf(&b, "[TARGET] %s\n", target)
	fmt.Fprintf(&b, "[RESULT] %s\n", strings.ToUpper(string(v.Status)))
	fmt.Fprintf(&b, "[TIME]   %s\n", elapsed.Round(time.Millisecond))
	if v.Status != schemas.StatusPassed && v.Reason != "" {
		fmt.Fprintf(&b, "[REASON] %s\n", v.Reason)
	}
	b.WriteByte('\n')

	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		transcript = emptyFailed
		if v.Status == schemas.StatusPassed {
			transcript = emptyPassed
		}
	}
	b.WriteString(transcript)
	b.WriteByte('\n')
	return b.String()
}
