package sender

// State is the phase of a file send.
type State int32

const (
	Idle State = iota
	Launching
	SendingHeader
	SendingPayload
	SendingTerminator
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Launching:
		return "launching"
	case SendingHeader:
		return "sending header"
	case SendingPayload:
		return "sending payload"
	case SendingTerminator:
		return "sending terminator"
	default:
		return "unknown"
	}
}

// Progress is reported to an Observer after the header and after every
// payload chunk.
type Progress struct {
	State State
	// Sent is the number of compressed payload bytes sent so far.
	Sent  int
	Total int
	// Finished is set on the last report of a send that reached the terminator.
	Finished bool
}

// Observer receives progress updates on the sending goroutine.
type Observer func(Progress)
