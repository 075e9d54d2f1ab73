package simulator

import (
	"sync"

	"github.com/diamondman/att26a/att26a"
)

// Reference is an in-memory Callbacks implementation mirroring
// original_source/python/src/att26a/simulator.py's Att26aSim: it stores
// one LEDMode per LED plus factory-test/IO-enable flags and is the
// decoder-side reference used by round-trip tests.
type Reference struct {
	mu sync.Mutex

	leds         [120]att26a.LEDMode
	factoryTest  bool
	ioEnable     bool

	ranges []RangeWrite
}

// RangeWrite records one SetLEDRange dispatch, in order, for assertions
// in round-trip tests.
type RangeWrite struct {
	Start  int
	States []bool
}

// NewReference returns a Reference with every LED off.
func NewReference() *Reference {
	return &Reference{}
}

func (r *Reference) SetLEDState(mode att26a.LEDMode, id int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id >= 0 && id < len(r.leds) {
		r.leds[id] = mode
	}
}

func (r *Reference) SetLEDRange(start int, states []bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i, on := range states {
		id := (start + i) % len(r.leds)
		if on {
			r.leds[id] = att26a.LEDOn
		} else {
			r.leds[id] = att26a.LEDOff
		}
	}
	r.ranges = append(r.ranges, RangeWrite{Start: start, States: append([]bool(nil), states...)})
}

func (r *Reference) SetFactoryTest(enable bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factoryTest = enable
}

func (r *Reference) SetIOEnable(enable bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ioEnable = enable
}

func (r *Reference) GetLEDStatus(id int) att26a.LEDMode {
	r.mu.Lock()
	defer r.mu.Unlock()
	if id < 0 || id >= len(r.leds) {
		return att26a.LEDOff
	}
	return r.leds[id]
}

// LED returns the currently stored mode for id, for test assertions.
func (r *Reference) LED(id int) att26a.LEDMode {
	return r.GetLEDStatus(id)
}

// FactoryTest reports the last value passed to SetFactoryTest.
func (r *Reference) FactoryTest() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.factoryTest
}

// IOEnable reports the last value passed to SetIOEnable.
func (r *Reference) IOEnable() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.ioEnable
}

// RangeWrites returns every SetLEDRange call observed so far, in order.
func (r *Reference) RangeWrites() []RangeWrite {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]RangeWrite(nil), r.ranges...)
}
