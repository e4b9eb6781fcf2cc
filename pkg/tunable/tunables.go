package tunable

import (
	"sync/atomic"

	"go.uber.org/zap"
)

// Tunable is an int that can be adjusted live, from the joystick, while the robot runs.
type Tunable struct {
	Name     string
	Value    int64
	Min, Max int

	log *zap.SugaredLogger
}

func (t *Tunable) Add(delta int) int {
	for {
		old := atomic.LoadInt64(&t.Value)
		newV := int64(t.clamp(int(old) + delta))
		if atomic.CompareAndSwapInt64(&t.Value, old, newV) {
			t.log.Infow("Tunable", "name", t.Name, "value", newV)
			return int(newV)
		}
	}
}

func (t *Tunable) Set(v int) {
	atomic.StoreInt64(&t.Value, int64(t.clamp(v)))
}

func (t *Tunable) Get() int {
	return int(atomic.LoadInt64(&t.Value))
}

func (t *Tunable) clamp(v int) int {
	if v < t.Min {
		return t.Min
	}
	if v > t.Max {
		return t.Max
	}
	return v
}

type Tunables struct {
	All      []*Tunable
	selected int

	Log *zap.SugaredLogger
}

func (t *Tunables) Create(name string, value, min, max int) *Tunable {
	log := t.Log
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	newTunable := &Tunable{
		Name: name,
		Min:  min,
		Max:  max,
		log:  log,
	}
	newTunable.Set(value)
	t.All = append(t.All, newTunable)
	return newTunable
}

func (t *Tunables) SelectNext() {
	if len(t.All) == 0 {
		return
	}
	t.selected++
	if t.selected >= len(t.All) {
		t.selected = 0
	}
	t.logSelected()
}

func (t *Tunables) SelectPrev() {
	if len(t.All) == 0 {
		return
	}
	t.selected--
	if t.selected < 0 {
		t.selected = len(t.All) - 1
	}
	t.logSelected()
}

func (t *Tunables) logSelected() {
	c := t.Current()
	c.log.Infow("Tunable selected", "name", c.Name, "value", c.Get())
}

// Current returns the selected tunable, or nil if there are none.
func (t *Tunables) Current() *Tunable {
	if len(t.All) == 0 {
		return nil
	}
	return t.All[t.selected]
}
