package simulator

import (
	"testing"
	"time"

	"github.com/diamondman/att26a/att26a"
	"github.com/diamondman/att26a/serial"
)

// TestSimulatorOverRealPTY wires a Driver and a Simulator over an actual
// Linux pty pair instead of an in-memory fake, exercising serial.OpenPTY
// end to end.
func TestSimulatorOverRealPTY(t *testing.T) {
	master, slave, err := serial.OpenPTY(nil, nil)
	if err != nil {
		t.Skipf("OpenPTY unavailable in this environment: %v", err)
	}

	ref := NewReference()
	sim := New(slave, ref)
	defer sim.Close()

	d, err := att26a.Open(master)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer d.Close()

	if err := d.SetLEDState(att26a.LEDBlink1, 30); err != nil {
		t.Fatalf("SetLEDState over pty: %v", err)
	}
	if got := ref.LED(30); got != att26a.LEDBlink1 {
		t.Fatalf("LED(30) = %v, want LEDBlink1", got)
	}

	if err := sim.SendButtonPress(88); err != nil {
		t.Fatalf("SendButtonPress: %v", err)
	}
	id, err := d.NextButton(2 * time.Second)
	if err != nil {
		t.Fatalf("NextButton: %v", err)
	}
	if id != 88 {
		t.Fatalf("id = %d, want 88", id)
	}
}
