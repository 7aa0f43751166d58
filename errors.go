package gpukv

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// Error is a structured gpukv error with operation and block context.
// It is distinct from wire.KVStatus (internal/wire/wire.go): KVStatus
// rides in shared-memory slots at a high rate and is a plain byte code
// for that reason, while Error is returned from Go-level calls
// (construction, Close, DeleteDB) and from KV* calls given an
// out-of-range block index or refused for a full async ticket table.
type Error struct {
	Op         string    // operation that failed, e.g. "NewStore", "OpenDB"
	BlockIndex int       // block index, -1 if not applicable
	Code       ErrorCode // high-level error category
	Msg        string    // human-readable message
	Inner      error     // wrapped error
}

func (e *Error) Error() string {
	var parts []string
	if e.Op != "" {
		parts = append(parts, fmt.Sprintf("op=%s", e.Op))
	}
	if e.BlockIndex >= 0 {
		parts = append(parts, fmt.Sprintf("block=%d", e.BlockIndex))
	}

	msg := e.Msg
	if msg == "" {
		msg = string(e.Code)
	}
	if len(parts) > 0 {
		return fmt.Sprintf("gpukv: %s (%s)", msg, parts[0])
	}
	return fmt.Sprintf("gpukv: %s", msg)
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *Error) Unwrap() error { return e.Inner }

// Is compares by error code, so errors.Is(err, &Error{Code: ...}) works
// without matching Op/BlockIndex/Msg.
func (e *Error) Is(target error) bool {
	te, ok := target.(*Error)
	if !ok {
		return false
	}
	return e.Code == te.Code
}

// ErrorCode categorizes the construction-time and lifecycle failures of
// spec.md §7 plus the per-call refusals above. None is a KVStatus outcome.
type ErrorCode string

const (
	ErrCodeInvalidGeometry   ErrorCode = "invalid geometry"
	ErrCodeBackendOpenFailed ErrorCode = "backend open failed"
	ErrCodeAllocationFailed  ErrorCode = "allocation failed"
	ErrCodeTicketTableFull   ErrorCode = "ticket table full"
	ErrCodeStoreClosed       ErrorCode = "store closed"
	ErrCodeUnknownTicket     ErrorCode = "unknown ticket"
	ErrCodeInternal          ErrorCode = "internal error"
)

// NewError creates a structured error not tied to a specific block.
func NewError(op string, code ErrorCode, msg string) *Error {
	return &Error{Op: op, BlockIndex: -1, Code: code, Msg: msg}
}

// NewBlockError creates a structured error scoped to a block.
func NewBlockError(op string, blockIndex int, code ErrorCode, msg string) *Error {
	return &Error{Op: op, BlockIndex: blockIndex, Code: code, Msg: msg}
}

// WrapError wraps inner with gpukv context, preserving its code if inner
// is already a *Error. Non-*Error causes are given a stack trace via
// cockroachdb/errors so a logged Inner points back at where the backend
// or lifecycle call actually failed, not just where WrapError ran.
func WrapError(op string, inner error) *Error {
	if inner == nil {
		return nil
	}
	if ge, ok := inner.(*Error); ok {
		return &Error{Op: op, BlockIndex: ge.BlockIndex, Code: ge.Code, Msg: ge.Msg, Inner: ge.Inner}
	}
	return &Error{Op: op, BlockIndex: -1, Code: ErrCodeInternal, Msg: inner.Error(), Inner: errors.WithStack(inner)}
}

// IsCode reports whether err is (or wraps) a *Error with the given code.
func IsCode(err error, code ErrorCode) bool {
	var ge *Error
	if errors.As(err, &ge) {
		return ge.Code == code
	}
	return false
}
