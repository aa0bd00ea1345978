package docstore

import "runtime"

// RespirationRate is how many items find/getMany/_addIndex materialize
// before yielding to the scheduler. A design decision, not a derived
// constant (see spec design notes on cooperative yield).
const RespirationRate = 250

// pacer is the cooperative-yield primitive: every RespirationRate calls to
// tick, it calls runtime.Gosched() and, if set, reports progress. On a
// parallel runtime an implementer could substitute a different progress
// callback without changing caller code.
type pacer struct {
	n        int
	progress func(n int)
}

func newPacer(progress func(int)) *pacer {
	return &pacer{progress: progress}
}

func (p *pacer) tick() {
	p.n++
	if p.n%RespirationRate == 0 {
		runtime.Gosched()
		if p.progress != nil {
			p.progress(p.n)
		}
	}
}
