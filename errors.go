package ewf

import "github.com/evidencekit/ewf/internal/ioerr"

// Kind classifies an error returned by this package.
type Kind = ioerr.Kind

// Error is the structured error value every operation in this package
// returns on failure: a Kind, an optional wrapped cause, and operator-
// facing details (segment number, offset, chunk index, section type).
type Error = ioerr.Error

const (
	KindInvalidArgument  = ioerr.KindInvalidArgument
	KindUnsupported      = ioerr.KindUnsupported
	KindIO               = ioerr.KindIO
	KindChecksumMismatch = ioerr.KindChecksumMismatch
	KindCorruptData      = ioerr.KindCorruptData
	KindOutOfBounds      = ioerr.KindOutOfBounds
	KindMemoryFailure    = ioerr.KindMemoryFailure
	KindAborted          = ioerr.KindAborted
	KindNotFound         = ioerr.KindNotFound
)

// Is reports whether err carries the given Kind anywhere in its chain.
func Is(err error, kind Kind) bool { return ioerr.Is(err, kind) }

// KindOf extracts the Kind of err, defaulting to KindCorruptData when
// err carries none (it originated outside this package).
func KindOf(err error) Kind { return ioerr.KindOf(err) }
