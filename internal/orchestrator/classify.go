package orchestrator

import (
	"fmt"
	"regexp"

	"github.com/ma5311943-dotcom/testing-tool/api/schemas"
	"github.com/ma5311943-dotcom/testing-tool/internal/engine"
)

// Verdict is the classified outcome of one child execution.
type Verdict struct {
	Status schemas.RunStatus
	// Reason explains any status other than passed.
	Reason string
}

var (
	noScenarios = regexp.MustCompile(`(?m)(^|[^0-9])0 scenarios`)
	// Counts only flag a run when non-zero: "0 undefined" is a clean total.
	unrunnable = regexp.MustCompile(`(?i)undefined\. implement with|undefined step|ambiguous step|(?:^|[^0-9])[1-9][0-9]* (?:undefined|ambiguous)\b`)
)

// Classify decides a run's status from the runtime's exit code and its cleaned
// transcript. The structured summary line is authoritative when present. Without
// it a zero exit still fails when the transcript reports that nothing ran or that
// a step was undefined or ambiguous; a non-zero exit is an error.
func Classify(exitCode int, transcript string) Verdict {
	if sum, ok := engine.ParseSummary(transcript); ok {
		switch {
		case exitCode == 0 && sum.Success():
			return Verdict{Status: schemas.StatusPassed}
		case sum.Scenarios == 0:
			return Verdict{Status: schemas.StatusFailed, Reason: "no scenarios were executed"}
		case sum.Failed > 0 || sum.Undefined > 0:
			return Verdict{
				Status: schemas.StatusFailed,
				Reason: fmt.Sprintf("%d of %d scenarios failed, %d undefined", sum.Failed, sum.Scenarios, sum.Undefined),
			}
		default:
			return Verdict{Status: schemas.StatusFailed, Reason: fmt.Sprintf("runtime exited with status %d", exitCode)}
		}
	}

	if exitCode != 0 {
		return Verdict{
			Status: schemas.StatusError,
			Reason: fmt.Sprintf("runtime exited with status %d without a result summary", exitCode),
		}
	}
	if noScenarios.MatchString(transcript) {
		return Verdict{Status: schemas.StatusFailed, Reason: "no scenarios were executed"}
	}
	if unrunnable.MatchString(transcript) {
		return Verdict{Status: schemas.StatusFailed, Reason: "transcript reports an undefined or ambiguous step"}
	}
	return Verdict{Status: schemas.StatusPassed}
}
