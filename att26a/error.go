package att26a

// Error wraps a message around a sentinel error kind, the same shape
// serial.Error uses, so callers can match with errors.Is against one of
// the Err* sentinels below while still getting a readable message.
type Error struct {
	msg string
	err error
}

func (e Error) Error() string {
	if e.msg != "" {
		if e.err != nil {
			return e.msg + ": " + e.err.Error()
		}
		return e.msg
	}
	if e.err != nil {
		return e.err.Error()
	}
	return ""
}

func (e Error) Unwrap() error {
	return e.err
}

func wrapErr(msg string, kind error) error {
	return Error{msg: msg, err: kind}
}

// Sentinel error kinds, one per failure mode a caller might branch on.
var (
	ErrInvalidArg         = Error{msg: "invalid argument"}
	ErrShutdown           = Error{msg: "driver closed"}
	ErrIO                 = Error{msg: "io error"}
	ErrWriteTimeout       = Error{msg: "write deadline exceeded"}
	ErrResponseTimeout    = Error{msg: "no ack within deadline"}
	ErrButtonTimeout      = Error{msg: "next button deadline elapsed"}
	ErrUnexpectedResponse = Error{msg: "unexpected response"}
)
