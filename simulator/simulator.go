// Package simulator is the device-side reference implementation of the
// AT&T 26A wire protocol: it reassembles inbound frames, verifies them,
// dispatches semantic callbacks, and emits keep-alives/button
// events/responses/ACKs — the Go recast of
// original_source/python/src/att26a/simulator.py's Att26aSimBase/Att26aSim.
package simulator

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/diamondman/att26a/att26a"
	"github.com/diamondman/att26a/wire"
)

const (
	accumulatorCap  = 16
	keepAliveCadence = 26 * time.Millisecond
)

// Callbacks is the capability set a Simulator dispatches decoded commands
// to. GetLEDStatus returns the stored LEDMode for id; the encoder maps it
// to the mode index (0..3) it puts in the query response.
type Callbacks interface {
	SetLEDState(mode att26a.LEDMode, id int)
	SetLEDRange(start int, states []bool)
	SetFactoryTest(enable bool)
	SetIOEnable(enable bool)
	GetLEDStatus(id int) att26a.LEDMode
}

// Simulator decodes bytes written by a Driver's ByteStream peer and
// dispatches them to a Callbacks implementation, encoding responses,
// ACKs, button events, and a periodic keep-alive back over the same
// stream.
type Simulator struct {
	stream att26a.ByteStream
	cb     Callbacks
	log    *logrus.Entry

	writeMu sync.Mutex

	stopOnce sync.Once
	stopCh   chan struct{}
	done     chan struct{}
}

// Options configures a Simulator.
type Options struct {
	Log *logrus.Entry
}

// Option mutates Options during New.
type Option func(*Options)

// WithLogger attaches a logger; nil (the default) discards output.
func WithLogger(log *logrus.Entry) Option {
	return func(o *Options) { o.Log = log }
}

func nopEntry(l *logrus.Entry) *logrus.Entry {
	if l != nil {
		return l
	}
	discard := logrus.New()
	discard.SetOutput(discardWriter{})
	return logrus.NewEntry(discard)
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// New starts a Simulator over stream, dispatching decoded commands to cb.
// It launches a reader goroutine and a keep-alive goroutine immediately.
func New(stream att26a.ByteStream, cb Callbacks, opts ...Option) *Simulator {
	o := &Options{}
	for _, opt := range opts {
		opt(o)
	}
	s := &Simulator{
		stream: stream,
		cb:     cb,
		log:    nopEntry(o.Log),
		stopCh: make(chan struct{}),
		done:   make(chan struct{}),
	}
	go s.readLoop()
	go s.keepAliveLoop()
	return s
}

// Close stops the keep-alive and reader goroutines and closes the
// underlying stream. Idempotent.
func (s *Simulator) Close() error {
	s.stopOnce.Do(func() { close(s.stopCh) })
	err := s.stream.Close()
	<-s.done
	return err
}

// SendButtonPress emits a single button-press byte for id (0..119).
func (s *Simulator) SendButtonPress(id int) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	_, err := s.stream.Write([]byte{wire.RotateLeft7(byte(id))})
	return err
}

func (s *Simulator) keepAliveLoop() {
	ticker := time.NewTicker(keepAliveCadence)
	defer ticker.Stop()
	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			s.writeMu.Lock()
			_, err := s.stream.Write([]byte{wire.EndOfFrame})
			s.writeMu.Unlock()
			if err != nil {
				return
			}
		}
	}
}

// readLoop is the frame reassembler (C5): it accumulates bytes up to
// accumulatorCap, treats 0x85/0xA5 as a fresh command start, and
// validates+dispatches on 0xFF.
func (s *Simulator) readLoop() {
	defer close(s.done)
	var acc []byte
	for {
		select {
		case <-s.stopCh:
			return
		default:
		}
		b, err := s.stream.ReadByte()
		if err != nil {
			s.log.WithError(err).Debug("simulator: reader stopped")
			return
		}
		switch {
		case b == wire.EndOfFrame:
			if len(acc) >= 2 {
				s.handleFrame(acc)
			}
			acc = acc[:0]
		case b == 0x85 || b == 0xA5:
			acc = append(acc[:0], b)
		default:
			if len(acc) < accumulatorCap {
				acc = append(acc, b)
			}
		}
	}
}

func (s *Simulator) handleFrame(msg []byte) {
	if !wire.Verify(msg) {
		s.log.Warn("simulator: checksum mismatch, discarding frame")
		return
	}
	payload := msg[:len(msg)-1]
	if resp := s.dispatch(payload); resp != nil {
		s.writeMu.Lock()
		s.stream.Write(resp)
		s.writeMu.Unlock()
		return
	}
	s.writeMu.Lock()
	s.stream.Write([]byte{wire.Ack})
	s.writeMu.Unlock()
}

// dispatch decodes payload and invokes the matching callback. It returns a
// non-nil response (already including the trailing ACK byte) only for a
// query command; every other command path returns nil so handleFrame emits
// a bare ACK. Malformed payloads are logged and ignored, but still produce
// an ACK via the caller so the driver never stalls.
func (s *Simulator) dispatch(payload []byte) []byte {
	if len(payload) < 2 {
		s.log.Warn("simulator: short frame, acking anyway")
		return nil
	}
	cat, sub := payload[0], payload[1]
	params := payload[2:]

	switch cat {
	case 0x85:
		s.dispatchWrite(sub, params)
	case 0xA5:
		if sub == 0x20 {
			return s.dispatchQuery(params)
		}
		s.log.WithField("sub", sub).Warn("simulator: unknown read subtype")
	default:
		s.log.WithField("cat", cat).Warn("simulator: unknown category")
	}
	return nil
}

func (s *Simulator) dispatchWrite(sub byte, params []byte) {
	switch {
	case sub == 0x07:
		s.dispatchSetRange(params)
	case sub&0xF0 == 0x20:
		mode := att26a.LEDMode(sub & 0x0F)
		switch mode {
		case att26a.LEDOff, att26a.LEDBlink1, att26a.LEDBlink2, att26a.LEDOn:
		default:
			s.log.WithField("mode", mode).Warn("simulator: set led state mode not in LED_MODES")
			return
		}
		if len(params) < 1 {
			s.log.Warn("simulator: set led state missing id byte")
			return
		}
		id := int(wire.RotateRight7(params[0]))
		if id < 0 || id >= 120 {
			s.log.WithField("id", id).Warn("simulator: set led state id out of range")
			return
		}
		s.cb.SetLEDState(mode, id)
	case sub == 0x10 && len(params) >= 1 && params[0] == 0x6F:
		s.cb.SetFactoryTest(true)
	case sub == 0x30 && len(params) >= 1 && params[0] == 0x4F:
		s.cb.SetFactoryTest(false)
	case sub == 0x40 && len(params) >= 1 && params[0] == 0x3F:
		s.cb.SetIOEnable(true)
	case sub == 0x50 && len(params) >= 1 && params[0] == 0x2F:
		s.cb.SetIOEnable(false)
	default:
		s.log.WithField("sub", sub).Warn("simulator: unknown write subtype")
	}
}

func (s *Simulator) dispatchSetRange(params []byte) {
	if len(params) < 2 {
		s.log.Warn("simulator: set led range missing header bytes")
		return
	}
	start := int(wire.RotateRight7(params[0]))
	wireCount := params[1]
	count := int(wireCount) + 1
	if wireCount == 70 {
		count = 70
	}
	data := params[2:]

	if start < 0 || start > 99 {
		s.log.WithField("start", start).Warn("simulator: set led range start out of range")
		return
	}
	if !((count >= 1 && count <= 70) || (count >= 72 && count <= 76)) {
		s.log.WithField("count", count).Warn("simulator: set led range count out of range")
		return
	}
	wantBytes := (count + 6) / 7
	if len(data) != wantBytes {
		s.log.Warn("simulator: set led range data length mismatch")
		return
	}
	states, err := wire.UnpackStates(data, count)
	if err != nil {
		s.log.WithError(err).Warn("simulator: set led range unpack failed")
		return
	}
	s.cb.SetLEDRange(start, states)
}

// dispatchQuery answers a lower-range LED query with a one- or two-byte
// response (bit 7 set on every byte) followed by the ACK, per the device's
// response contract. It does not go through wire.Frame.
func (s *Simulator) dispatchQuery(params []byte) []byte {
	if len(params) < 1 {
		s.log.Warn("simulator: query missing id byte")
		return nil
	}
	id := int(wire.RotateRight7(params[0]))
	if id < 100 || id > 119 {
		s.log.WithField("id", id).Warn("simulator: query id out of range")
		return nil
	}
	mode := s.cb.GetLEDStatus(id)
	modeIdx := ledModeIndex(mode)
	offset := id - 100

	var resp []byte
	if id <= 107 {
		resp = []byte{0x80 | (modeIdx << 4) | byte(offset)}
	} else {
		resp = []byte{
			0x80 | (modeIdx << 4) | 0x08,
			0x80 | byte(offset&0x1F),
		}
	}
	return append(resp, wire.Ack)
}

func ledModeIndex(mode att26a.LEDMode) byte {
	switch mode {
	case att26a.LEDOff:
		return 0
	case att26a.LEDBlink1:
		return 1
	case att26a.LEDBlink2:
		return 2
	case att26a.LEDOn:
		return 3
	default:
		return 0
	}
}
