// Package att26a implements the host-side driver for the AT&T 26A Direct
// Extension Selector Console: a serial-attached 120-LED / 120-button panel.
// It owns request serialization, the inbound byte demultiplexer, and the
// button/response queues; package wire supplies the byte-level codec and
// package serial supplies a concrete Linux ByteStream.
package att26a

import (
	"time"

	"github.com/sirupsen/logrus"
)

// LEDMode is the closed set of LED states the console accepts. Values
// outside this set are rejected by SetLEDState before any I/O.
type LEDMode byte

const (
	LEDOff    LEDMode = 0x0
	LEDBlink1 LEDMode = 0x8
	LEDBlink2 LEDMode = 0xD
	LEDOn     LEDMode = 0xF
)

func (m LEDMode) valid() bool {
	switch m {
	case LEDOff, LEDBlink1, LEDBlink2, LEDOn:
		return true
	}
	return false
}

func (m LEDMode) String() string {
	switch m {
	case LEDOff:
		return "off"
	case LEDBlink1:
		return "blink1"
	case LEDBlink2:
		return "blink2"
	case LEDOn:
		return "on"
	default:
		return "invalid"
	}
}

// ledModes is the canonical index->mode table get_led_status decodes against.
var ledModes = [4]LEDMode{LEDOff, LEDBlink1, LEDBlink2, LEDOn}

// ByteStream is the abstract full-duplex pipe a Driver talks over: a
// direct serial device (serial.Port, via serial.OpenATT26A) or any other
// transport (e.g. a network tunnel) that forwards bytes and DTR transitions
// transparently.
type ByteStream interface {
	Write(p []byte) (int, error)
	ReadByte() (byte, error)
	SetDTR(assert bool) error
	Close() error
}

const (
	writeDeadline    = 100 * time.Millisecond
	ackDeadline      = 100 * time.Millisecond
	resetSleep       = 100 * time.Millisecond
	readerStopWindow = 2 * time.Second
	buttonQueueCap   = 100
)

func nopEntry(l *logrus.Entry) *logrus.Entry {
	if l == nil {
		return logrus.NewEntry(discardLogger)
	}
	return l
}

var discardLogger = func() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(discardWriter{})
	return l
}()

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }
