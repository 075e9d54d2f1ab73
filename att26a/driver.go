package att26a

import (
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/diamondman/att26a/queue"
	"github.com/diamondman/att26a/wire"
)

// Driver is the public entry point: it owns a ByteStream, a background
// reader goroutine that demultiplexes inbound bytes (C3), and the button
// and response queues the reader feeds (C4). Exactly one command may be
// outstanding at a time; writeMu enforces that.
type Driver struct {
	stream ByteStream
	log    *logrus.Entry

	writeMu sync.Mutex

	qmu        sync.RWMutex
	buttonQ    *queue.Queue[int]
	respQ      *queue.Queue[[]byte]
	generation uint64

	closeMu    sync.Mutex
	closed     bool
	readerDone chan struct{}
}

// Open wraps stream in a Driver and performs the same reset sequence Reset
// does: DTR low, settle, start the reader.
func Open(stream ByteStream, opts ...Option) (*Driver, error) {
	o := newOptions(opts...)
	d := &Driver{
		stream: stream,
		log:    nopEntry(o.Log),
	}
	if err := d.Reset(); err != nil {
		return nil, err
	}
	return d, nil
}

// Reset cycles DTR to put the console back into a known state and
// restarts the reader goroutine under a fresh generation. Buttons and
// responses queued before Reset are discarded. Reset never fails fatally
// on a stuck reader: it logs and abandons it after readerStopWindow,
// rather than blocking Reset indefinitely.
func (d *Driver) Reset() error {
	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	d.closeMu.Lock()
	closed := d.closed
	d.closeMu.Unlock()
	if closed {
		return wrapErr("reset", ErrShutdown)
	}

	if err := d.stream.SetDTR(false); err != nil {
		return wrapErr("reset: dtr low", ErrIO)
	}
	time.Sleep(resetSleep)

	newGen := atomic.AddUint64(&d.generation, 1)
	if d.readerDone != nil {
		select {
		case <-d.readerDone:
		case <-time.After(readerStopWindow):
			d.log.Warn("att26a: reader did not stop within the deadline, abandoning it")
		}
	}

	buttonQ := queue.New[int](buttonQueueCap)
	respQ := queue.New[[]byte](0)

	d.qmu.Lock()
	d.buttonQ = buttonQ
	d.respQ = respQ
	d.qmu.Unlock()

	if err := d.stream.SetDTR(true); err != nil {
		return wrapErr("reset: dtr high", ErrIO)
	}

	done := make(chan struct{})
	d.readerDone = done
	go d.readLoop(newGen, buttonQ, respQ, done)

	d.log.Info("att26a: reset complete")
	return nil
}

// readLoop is the background demultiplexer (C3). It owns the response
// accumulator exclusively and runs until its generation goes stale (Reset
// or Close bumped the counter) or the stream errors out.
func (d *Driver) readLoop(gen uint64, buttonQ *queue.Queue[int], respQ *queue.Queue[[]byte], done chan struct{}) {
	defer close(done)
	var acc []byte
	for {
		if atomic.LoadUint64(&d.generation) != gen {
			return
		}
		b, err := d.stream.ReadByte()
		if err != nil {
			if atomic.LoadUint64(&d.generation) == gen {
				d.log.WithError(err).Error("att26a: reader stopped on io error")
				d.transitionClosed()
			}
			return
		}
		if atomic.LoadUint64(&d.generation) != gen {
			return
		}
		switch {
		case b&0x80 == 0:
			if !buttonQ.Put(int(wire.RotateRight7(b))) {
				d.log.Debug("att26a: button queue full, dropping press")
			}
		case b == wire.EndOfFrame:
			// keep-alive
		case b == wire.Ack:
			resp := append([]byte(nil), acc...)
			respQ.Put(resp)
			acc = acc[:0]
		default:
			acc = append(acc, b)
		}
	}
}

// transitionClosed moves the driver to Closed in response to a reader-side
// IoError, waking every blocked consumer with Shutdown.
func (d *Driver) transitionClosed() {
	d.closeMu.Lock()
	if d.closed {
		d.closeMu.Unlock()
		return
	}
	d.closed = true
	d.closeMu.Unlock()

	d.qmu.RLock()
	buttonQ, respQ := d.buttonQ, d.respQ
	d.qmu.RUnlock()
	if buttonQ != nil {
		buttonQ.Interrupt()
	}
	if respQ != nil {
		respQ.Interrupt()
	}
}

// Close stops the reader, closes the underlying stream, and wakes every
// blocked and future consumer with Shutdown. Idempotent.
func (d *Driver) Close() error {
	d.closeMu.Lock()
	if d.closed {
		d.closeMu.Unlock()
		return nil
	}
	d.closed = true
	d.closeMu.Unlock()

	atomic.AddUint64(&d.generation, 1)

	d.qmu.RLock()
	buttonQ, respQ := d.buttonQ, d.respQ
	d.qmu.RUnlock()
	if buttonQ != nil {
		buttonQ.Interrupt()
	}
	if respQ != nil {
		respQ.Interrupt()
	}

	err := d.stream.Close()
	d.log.Info("att26a: closed")
	if err != nil {
		return wrapErr("close", ErrIO)
	}
	return nil
}

// IsOpen reports the driver's current lifecycle state.
func (d *Driver) IsOpen() bool {
	d.closeMu.Lock()
	defer d.closeMu.Unlock()
	return !d.closed
}

// doCommand frames payload, writes it under writeMu (serializing against
// every other writer and against Reset), and awaits the matching ACK.
func (d *Driver) doCommand(payload []byte) ([]byte, error) {
	if !d.IsOpen() {
		return nil, wrapErr("command", ErrShutdown)
	}
	framed, err := wire.Frame(payload)
	if err != nil {
		return nil, wrapErr("command: frame", ErrInvalidArg)
	}

	d.writeMu.Lock()
	defer d.writeMu.Unlock()

	if !d.IsOpen() {
		return nil, wrapErr("command", ErrShutdown)
	}

	d.qmu.RLock()
	respQ := d.respQ
	d.qmu.RUnlock()

	writeDone := make(chan error, 1)
	go func() {
		_, werr := d.stream.Write(framed)
		writeDone <- werr
	}()
	select {
	case werr := <-writeDone:
		if werr != nil {
			return nil, wrapErr("command: write", ErrIO)
		}
	case <-time.After(writeDeadline):
		return nil, wrapErr("command: write", ErrWriteTimeout)
	}

	resp, err := respQ.Get(ackDeadline)
	if err != nil {
		if errors.Is(err, queue.ErrInterrupted) {
			return nil, wrapErr("command", ErrShutdown)
		}
		return nil, wrapErr("command: await ack", ErrResponseTimeout)
	}
	return resp, nil
}

// drainResponses discards anything left in the response queue. Called when
// a command's own response turns out to be unexpected: the protocol has no
// correlation IDs, so a stray frame can't be safely ascribed to whatever
// request comes next.
func (d *Driver) drainResponses() {
	d.qmu.RLock()
	respQ := d.respQ
	d.qmu.RUnlock()
	respQ.Drain()
}

// SetLEDState sets a single LED (0..119) to one of the four modes.
func (d *Driver) SetLEDState(mode LEDMode, id int) error {
	if !mode.valid() {
		return wrapErr("set led state: mode", ErrInvalidArg)
	}
	if id < 0 || id >= 120 {
		return wrapErr("set led state: id", ErrInvalidArg)
	}
	resp, err := d.doCommand([]byte{0x85, 0x20 | byte(mode), wire.RotateLeft7(byte(id))})
	if err != nil {
		return err
	}
	if len(resp) != 0 {
		d.drainResponses()
		return wrapErr("set led state: non-empty response", ErrUnexpectedResponse)
	}
	return nil
}

// SetLEDRange bulk-writes on/off states for a contiguous range of LEDs
// starting at start, wrapping at 100. The device refuses a count of
// exactly 71 or greater than 77; SetLEDRange transparently splits those
// into two writes.
func (d *Driver) SetLEDRange(start int, states []bool) error {
	if start < 0 || start > 99 {
		return wrapErr("set led range: start", ErrInvalidArg)
	}
	if len(states) == 0 || len(states) > 100 {
		return wrapErr("set led range: length", ErrInvalidArg)
	}

	l := len(states)
	var extra int
	switch {
	case l == 71:
		extra = 1
	case l > 77:
		extra = l - 77
	}
	if extra == 0 {
		return d.writeLEDRangeChunk(start, states)
	}
	firstLen := l - extra
	if err := d.writeLEDRangeChunk(start, states[:firstLen]); err != nil {
		return err
	}
	secondStart := (start + firstLen) % 100
	return d.writeLEDRangeChunk(secondStart, states[firstLen:])
}

func (d *Driver) writeLEDRangeChunk(start int, states []bool) error {
	count := len(states)
	wireCount := byte(count - 1)
	if count == 70 {
		wireCount = 70
	}
	packed := wire.PackStates(states)
	payload := make([]byte, 0, 4+len(packed))
	payload = append(payload, 0x85, 0x07, wire.RotateLeft7(byte(start)), wireCount)
	payload = append(payload, packed...)
	_, err := d.doCommand(payload)
	return err
}

// SetFactoryTest enables or disables the console's factory-test mode.
func (d *Driver) SetFactoryTest(enable bool) error {
	payload := []byte{0x85, 0x30, 0x4F}
	if enable {
		payload = []byte{0x85, 0x10, 0x6F}
	}
	_, err := d.doCommand(payload)
	return err
}

// SetIOEnable enables or disables the console's I/O.
func (d *Driver) SetIOEnable(enable bool) error {
	payload := []byte{0x85, 0x50, 0x2F}
	if enable {
		payload = []byte{0x85, 0x40, 0x3F}
	}
	_, err := d.doCommand(payload)
	return err
}

// GetLEDStatus queries the current mode of a lower-range LED (100..119).
func (d *Driver) GetLEDStatus(id int) (LEDMode, error) {
	if id < 100 || id >= 120 {
		return 0, wrapErr("get led status: id", ErrInvalidArg)
	}
	resp, err := d.doCommand([]byte{0xA5, 0x20, wire.RotateLeft7(byte(id))})
	if err != nil {
		return 0, err
	}

	var modeIdx byte
	var decodedID int
	switch len(resp) {
	case 1:
		modeIdx = (resp[0] >> 4) & 0x07
		decodedID = 100 + int(resp[0]&0x07)
	case 2:
		modeIdx = (resp[0] >> 4) & 0x07
		decodedID = 100 + int(resp[1]&0x1F)
	default:
		d.drainResponses()
		return 0, wrapErr("get led status: response length", ErrUnexpectedResponse)
	}
	if decodedID != id || int(modeIdx) >= len(ledModes) {
		d.drainResponses()
		return 0, wrapErr("get led status: mismatched response", ErrUnexpectedResponse)
	}
	return ledModes[modeIdx], nil
}

// NextButton pops the oldest queued button press. timeout<=0 blocks
// forever; otherwise it fails with ButtonTimeout if nothing arrives in time.
func (d *Driver) NextButton(timeout time.Duration) (int, error) {
	d.qmu.RLock()
	buttonQ := d.buttonQ
	d.qmu.RUnlock()
	if buttonQ == nil {
		return 0, wrapErr("next button", ErrShutdown)
	}
	id, err := buttonQ.Get(timeout)
	if err != nil {
		if errors.Is(err, queue.ErrInterrupted) {
			return 0, wrapErr("next button", ErrShutdown)
		}
		return 0, wrapErr("next button", ErrButtonTimeout)
	}
	return id, nil
}
