package serial

import (
	"testing"
	"time"
)

// TestPortOptionsAndReadTimeout exercises the Options/ReadTimeout surface
// that OpenATT26A and OpenPTY don't touch directly: a caller that wants a
// bounded Read instead of a blocking one.
func TestPortOptionsAndReadTimeout(t *testing.T) {
	master, slave, err := OpenPTY(nil, nil)
	if err != nil {
		t.Skipf("OpenPTY unavailable in this environment: %v", err)
	}
	defer master.Close()
	defer slave.Close()

	opts := NewOptions().SetReadTimeout(50 * time.Millisecond)
	if opts.ReadTimeout != 50*time.Millisecond {
		t.Fatalf("SetReadTimeout did not stick: %v", opts.ReadTimeout)
	}

	master.SetReadTimeout(20 * time.Millisecond)
	buf := make([]byte, 1)
	if _, err := master.Read(buf); err == nil {
		t.Fatal("Read with no data pending and a short deadline should time out")
	}

	if _, err := slave.Write([]byte{'x'}); err != nil {
		t.Fatalf("slave.Write: %v", err)
	}
	n, err := master.ReadTimeout(buf, time.Second)
	if err != nil {
		t.Fatalf("ReadTimeout: %v", err)
	}
	if n != 1 || buf[0] != 'x' {
		t.Fatalf("ReadTimeout got %v (n=%d), want 'x'", buf, n)
	}
}

// TestPortFdAndModemLines exercises Fd and the modem-line get/set pair
// against a real pty master, which (unlike a plain tty) supports
// TIOCMGET/TIOCMSET loopback of the settable bits.
func TestPortFdAndModemLines(t *testing.T) {
	master, slave, err := OpenPTY(nil, nil)
	if err != nil {
		t.Skipf("OpenPTY unavailable in this environment: %v", err)
	}
	defer master.Close()
	defer slave.Close()

	if master.Fd() < 0 {
		t.Fatal("Fd() < 0 on an open port")
	}

	if err := master.EnableModemLines(TIOCM_DTR); err != nil {
		t.Fatalf("EnableModemLines: %v", err)
	}
	lines, err := master.GetModemLines()
	if err != nil {
		t.Fatalf("GetModemLines: %v", err)
	}
	if lines&TIOCM_DTR == 0 {
		t.Fatalf("GetModemLines = %v, want TIOCM_DTR set", lines)
	}

	if err := master.SetModemLines(lines &^ TIOCM_DTR); err != nil {
		t.Fatalf("SetModemLines: %v", err)
	}
	lines, err = master.GetModemLines()
	if err != nil {
		t.Fatalf("GetModemLines after clear: %v", err)
	}
	if lines&TIOCM_DTR != 0 {
		t.Fatalf("GetModemLines = %v, want TIOCM_DTR clear", lines)
	}

	master.Close()
	if master.Fd() != -1 {
		t.Fatal("Fd() should be -1 once closed")
	}
}

// TestPortWinSizeRoundTrip exercises SetWinSize/GetWinSize, which OpenPTY
// only drives one-way (an optional configure-on-open argument).
func TestPortWinSizeRoundTrip(t *testing.T) {
	_, slave, err := OpenPTY(nil, nil)
	if err != nil {
		t.Skipf("OpenPTY unavailable in this environment: %v", err)
	}
	defer slave.Close()

	want := &Winsize{Row: 24, Col: 80, Xpixel: 0, Ypixel: 0}
	if err := slave.SetWinSize(want); err != nil {
		t.Fatalf("SetWinSize: %v", err)
	}
	got, err := slave.GetWinSize()
	if err != nil {
		t.Fatalf("GetWinSize: %v", err)
	}
	if *got != *want {
		t.Fatalf("GetWinSize = %+v, want %+v", *got, *want)
	}
}

// TestPortGetAttrMakeRaw exercises the single-step-termios GetAttr/SetAttr
// pair and MakeRaw, the 32-bit termios counterpart to the termios2 path
// OpenATT26A uses for its custom baud rate.
func TestPortGetAttrMakeRaw(t *testing.T) {
	_, slave, err := OpenPTY(nil, nil)
	if err != nil {
		t.Skipf("OpenPTY unavailable in this environment: %v", err)
	}
	defer slave.Close()

	before, err := slave.GetAttr()
	if err != nil {
		t.Fatalf("GetAttr: %v", err)
	}
	if err := slave.MakeRaw(); err != nil {
		t.Fatalf("MakeRaw: %v", err)
	}
	after, err := slave.GetAttr()
	if err != nil {
		t.Fatalf("GetAttr after MakeRaw: %v", err)
	}
	if after.Lflag&(ICANON|ECHO) != 0 {
		t.Fatalf("Lflag = %#x after MakeRaw, want ICANON|ECHO clear", after.Lflag)
	}
	if err := slave.SetAttr(TCSANOW, before); err != nil {
		t.Fatalf("SetAttr restoring original: %v", err)
	}
}
