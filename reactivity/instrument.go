package reactivity

import "time"

type EffectRunEvent struct {
	Name     string
	Kind     string
	Duration time.Duration
	Err      error
	Panicked bool
}

type FlushEvent struct {
	Effects  int
	Errors   int
	Duration time.Duration
}

// Instrument observes the engine. Calls happen synchronously on the
// goroutine driving the system and must not read or write reactive state.
type Instrument interface {
	EffectRun(ev EffectRunEvent)
	Flush(ev FlushEvent)
	Trigger(op TriggerOp)
	ComputedEval(changed bool)
}

type multiInstrument []Instrument

// MultiInstrument fans every event out to all of ins in order.
func MultiInstrument(ins ...Instrument) Instrument {
	var m multiInstrument
	for _, in := range ins {
		if in != nil {
			m = append(m, in)
		}
	}
	return m
}

func (m multiInstrument) EffectRun(ev EffectRunEvent) {
	for _, in := range m {
		in.EffectRun(ev)
	}
}

func (m multiInstrument) Flush(ev FlushEvent) {
	for _, in := range m {
		in.Flush(ev)
	}
}

func (m multiInstrument) Trigger(op TriggerOp) {
	for _, in := range m {
		in.Trigger(op)
	}
}

func (m multiInstrument) ComputedEval(changed bool) {
	for _, in := range m {
		in.ComputedEval(changed)
	}
}
