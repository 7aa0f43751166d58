// Package wire defines the on-slot layout shared between the accelerator
// producer and the host consumer: command codes, per-key status codes, and
// the RequestMessage/ResponseMessage structs that occupy one SQ or CQ slot.
//
// Nothing here performs I/O; it is the descriptor format both sides agree
// on, the way a uapi package defines a kernel/userspace ABI.
package wire

// Cmd identifies the operation a RequestMessage slot carries.
type Cmd uint8

const (
	CmdPut Cmd = iota
	CmdMultiPut
	CmdGet
	CmdMultiGet
	CmdDelete
	CmdAsyncGetInitiate
	CmdAsyncGetFinalize
	CmdExit
)

func (c Cmd) String() string {
	switch c {
	case CmdPut:
		return "PUT"
	case CmdMultiPut:
		return "MULTI_PUT"
	case CmdGet:
		return "GET"
	case CmdMultiGet:
		return "MULTI_GET"
	case CmdDelete:
		return "DELETE"
	case CmdAsyncGetInitiate:
		return "ASYNC_GET_INITIATE"
	case CmdAsyncGetFinalize:
		return "ASYNC_GET_FINALIZE"
	case CmdExit:
		return "EXIT"
	default:
		return "UNKNOWN"
	}
}

// KVStatus is the per-key completion status written into a ResponseMessage.
// It rides in shared-memory slots at a high rate, so it is a plain byte
// code rather than a Go error — see errors.go for the distinction.
type KVStatus uint8

const (
	StatusSuccess KVStatus = iota
	StatusNonExist
	StatusFail
	StatusExit
)

func (s KVStatus) String() string {
	switch s {
	case StatusSuccess:
		return "SUCCESS"
	case StatusNonExist:
		return "NON_EXIST"
	case StatusFail:
		return "FAIL"
	case StatusExit:
		return "EXIT"
	default:
		return "UNKNOWN"
	}
}

// DecodeBackendStatus translates a backend return code (§6: 0=OK,
// 5=not-found, other=error) into the KVStatus taxonomy of §7.
func DecodeBackendStatus(code int) KVStatus {
	switch code {
	case 0:
		return StatusSuccess
	case 5:
		return StatusNonExist
	default:
		return StatusFail
	}
}

// RequestMessage occupies one leading slot of a SubmissionQueue batch.
// incrementSize consecutive slots starting at the leading slot belong to
// the same logical request; only the leading slot's header fields are
// meaningful, but every slot in the batch carries its own inline key and,
// for PUT, its own databank payload.
type RequestMessage struct {
	Cmd           Cmd
	RequestID     uint64
	IncrementSize uint32 // batch length in slots
	KeySize       uint32
	Key           []byte // not set by the SubmissionQueue: each slot's key lives in its own key buffer (SubmissionQueue.KeyAt)
	BuffSize      uint32 // value size shared by every key in the batch
	Ticket        uint32 // meaningful only for ASYNC_GET_FINALIZE
}

// ResponseMessage occupies one leading slot of a CompletionQueue batch.
// KVStatus and BackendStatus are sized by the producer: the dispatcher
// sizes them to the batch length of the response it publishes.
type ResponseMessage struct {
	Cmd           Cmd
	RequestID     uint64
	IncrementSize uint32
	KVStatus      []KVStatus
	BackendStatus []int
	Ticket        uint32 // populated by ASYNC_GET_INITIATE's empty response
}

// NewResponseMessage allocates a ResponseMessage sized for maxNumKeys
// per-key status slots, mirroring the fixed-size KVStatus[maxNumKeys]
// array of the data model in spec.md §3.
func NewResponseMessage(maxNumKeys int) ResponseMessage {
	return ResponseMessage{
		KVStatus:      make([]KVStatus, maxNumKeys),
		BackendStatus: make([]int, maxNumKeys),
	}
}
