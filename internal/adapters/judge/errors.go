package judge

import "errors"

// Sentinel kinds for judge errors.
var (
	// ErrTransient marks backend failures the caller may retry.
	ErrTransient = errors.New("transient judge failure")
	// ErrMalformedVerdict means the reply carried no usable verdict. It
	// counts against the retry budget like any transient failure.
	ErrMalformedVerdict = errors.New("malformed judge verdict")
	// ErrEmptyReply means the backend answered with no content at all.
	ErrEmptyReply = errors.New("empty judge reply")
)
