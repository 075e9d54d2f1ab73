package att26a

import (
	"testing"
	"time"

	"github.com/diamondman/att26a/serial"
	"github.com/diamondman/att26a/wire"
)

// ptyDevice plays the device side of a real OS-backed pty loopback the
// same way fakeDevice plays it over an in-memory pipe: ack every frame,
// optionally queue a response payload first.
type ptyDevice struct {
	port *serial.Port
}

func servePTYDevice(t *testing.T, port *serial.Port) *ptyDevice {
	t.Helper()
	d := &ptyDevice{port: port}
	go d.serve()
	return d
}

func (d *ptyDevice) serve() {
	var acc []byte
	for {
		b, err := d.port.ReadByte()
		if err != nil {
			return
		}
		if b == wire.EndOfFrame {
			if len(acc) >= 2 {
				d.port.Write([]byte{wire.Ack})
			}
			acc = nil
			continue
		}
		acc = append(acc, b)
	}
}

// TestDriverOverRealPTY exercises the Driver against an actual Linux
// pseudoterminal pair (serial.OpenPTY) instead of an in-memory fake,
// the way pty_linux.go's OpenPTY was meant to be exercised.
func TestDriverOverRealPTY(t *testing.T) {
	master, slave, err := serial.OpenPTY(nil, nil)
	if err != nil {
		t.Skipf("OpenPTY unavailable in this environment: %v", err)
	}
	defer slave.Close()

	servePTYDevice(t, slave)

	d, err := Open(master)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer d.Close()

	if err := d.SetLEDState(LEDOn, 5); err != nil {
		t.Fatalf("SetLEDState over pty: %v", err)
	}
}

// TestDriverOverRealPTYButtonPress checks an inbound button byte written
// directly to the slave side is observed by NextButton.
func TestDriverOverRealPTYButtonPress(t *testing.T) {
	master, slave, err := serial.OpenPTY(nil, nil)
	if err != nil {
		t.Skipf("OpenPTY unavailable in this environment: %v", err)
	}
	defer slave.Close()

	d, err := Open(master)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	defer d.Close()

	if _, err := slave.Write([]byte{wire.RotateLeft7(17)}); err != nil {
		t.Fatalf("slave.Write: %v", err)
	}

	id, err := d.NextButton(2 * time.Second)
	if err != nil {
		t.Fatalf("NextButton: %v", err)
	}
	if id != 17 {
		t.Fatalf("id = %d, want 17", id)
	}
}
