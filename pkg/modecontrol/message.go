package modecontrol

type MessageKind int

const (
	// MsgAck echoes an accepted single-byte command ("ACK: F").
	MsgAck MessageKind = iota
	MsgNotice
	// MsgRejected covers commands refused because of the current mode and no-op commands.
	MsgRejected
	MsgUnknown
	MsgStatus
	MsgIgnored
	MsgRunStarted
	MsgRunFinished
	MsgSafetyStop
)

func (k MessageKind) String() string {
	switch k {
	case MsgAck:
		return "ack"
	case MsgNotice:
		return "notice"
	case MsgRejected:
		return "rejected"
	case MsgUnknown:
		return "unknown"
	case MsgStatus:
		return "status"
	case MsgIgnored:
		return "ignored"
	case MsgRunStarted:
		return "run-started"
	case MsgRunFinished:
		return "run-finished"
	case MsgSafetyStop:
		return "safety-stop"
	default:
		return "message"
	}
}

// Message is one line for the acknowledgement channel.
type Message struct {
	Kind MessageKind
	Text string
}

func (m Message) String() string {
	return m.Text
}
