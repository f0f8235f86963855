package pdf

import (
	"errors"
	"strconv"
)

// ErrUnsupportedFormat is returned for documents that are not encrypted,
// use a security handler other than the standard one, or carry an encryption
// dictionary that cannot be used.
var ErrUnsupportedFormat = errors.New("unsupported document")

// ParseError reports a structural problem in the document.
type ParseError struct {
	Pos int64
	Err error
}

func (err *ParseError) Error() string {
	msg := "malformed PDF"
	if err.Err != nil {
		msg += ": " + err.Err.Error()
	}
	if err.Pos > 0 {
		msg += " (at byte " + strconv.FormatInt(err.Pos, 10) + ")"
	}
	return msg
}

func (err *ParseError) Unwrap() error { return err.Err }

func parseErrorf(pos int64, msg string) error {
	return &ParseError{Pos: pos, Err: errors.New(msg)}
}
