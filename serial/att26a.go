package serial


// att26aBaud is the AT&T 26A console's UART rate. It has no entry in the
// standard CBAUD table, so it's programmed through the termios2 BOTHER /
// custom-speed path instead of one of the Bnnnn constants.
const att26aBaud = 10752

// OpenATT26A opens name and configures it the way the 26A console expects:
// 8 data bits, one stop bit, odd parity, and the nonstandard 10752 baud
// custom speed. DTR starts asserted; callers that need to reset the device
// should call SetDTR(false), wait, then SetDTR(true) again.
func OpenATT26A(name string) (*Port, error) {
	p, err := Open(name, nil)
	if err != nil {
		return nil, err
	}
	attrs, err := p.GetAttr2()
	if err != nil {
		p.Close()
		return nil, err
	}
	attrs.MakeRaw()
	attrs.Cflag |= PARENB | PARODD | CREAD | CLOCAL
	attrs.Cflag &= ^CSTOPB
	attrs.SetCustomSpeed(att26aBaud)
	if err := p.SetAttr2(TCSANOW, attrs); err != nil {
		p.Close()
		return nil, err
	}
	if err := p.SetDTR(true); err != nil {
		p.Close()
		return nil, err
	}
	return p, nil
}

// SetDTR asserts or deasserts the DTR modem control line. The 26A holds
// itself in reset while DTR is low.
func (p *Port) SetDTR(assert bool) error {
	if assert {
		return p.EnableModemLines(TIOCM_DTR)
	}
	return p.DisableModemLines(TIOCM_DTR)
}

// ReadByte blocks until exactly one byte is available and returns it. It
// satisfies the single-byte blocking read half of a byte-stream capability.
func (p *Port) ReadByte() (byte, error) {
	var buf [1]byte
	for {
		n, err := p.Read(buf[:])
		if err != nil {
			return 0, err
		}
		if n == 1 {
			return buf[0], nil
		}
		// n==0 with no error: retry rather than hand back a bogus byte.
	}
}
