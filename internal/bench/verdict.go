package bench

import (
	"github.com/nymph-fabric/fabric-bench/api"
)

// DefaultThreshold is the fraction of the memcpy throughput a stub device path must reach.
const DefaultThreshold = 0.10

// Evaluation holds the individual checks of a run.
type Evaluation struct {
	Interface  api.Verdict
	Hash       api.Verdict
	Throughput api.Verdict
	Status     api.RunStatus
}

// Evaluate applies the pass/warn/fail policy. Only a non-positive device throughput
// fails the run; the other checks are advisory.
func Evaluate(baselineMBps float64, dmaMBps float64, hashPresent bool, threshold float64) Evaluation {
	if dmaMBps <= 0 {
		return Evaluation{
			Interface:  api.VerdictFail,
			Hash:       api.VerdictFail,
			Throughput: api.VerdictFail,
			Status:     api.StatusFail,
		}
	}

	e := Evaluation{
		Interface:  api.VerdictPass,
		Hash:       api.VerdictPass,
		Throughput: api.VerdictPass,
		Status:     api.StatusPass,
	}

	if !hashPresent {
		e.Hash = api.VerdictWarn
	}

	if dmaMBps < baselineMBps*threshold {
		e.Throughput = api.VerdictWarn
	}

	return e
}

// Overall folds the checks into the single verdict printed last.
func (e Evaluation) Overall() api.Verdict {
	if e.Status != api.StatusPass {
		return api.VerdictFail
	}

	if e.Hash == api.VerdictWarn || e.Throughput == api.VerdictWarn {
		return api.VerdictWarn
	}

	return api.VerdictPass
}
