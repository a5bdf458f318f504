package protocol

// Op identifies a protocol command.
type Op uint8

const (
	OpInvalid Op = iota
	OpConnect
	OpSubscribe
	OpStat
	OpAdd
	OpFlush
	OpDisconnect
	OpUnsubscribe
	OpGetLogs
)

// Descriptor describes how the session machine treats an op.
type Descriptor struct {
	Name string
	// RequiresAttach rejects the op with ErrAuthRequired on an unattached session.
	RequiresAttach bool
	Success        string
	// Terminal ends the session after the reply, whatever the outcome.
	Terminal bool
}

var descriptors = [...]Descriptor{
	OpInvalid:     {Name: "INVALID"},
	OpConnect:     {Name: "CONNECT", Success: "connected"},
	OpSubscribe:   {Name: "SUBSCRIBE", Success: "subscribed"},
	OpStat:        {Name: "STAT", RequiresAttach: true, Success: "stats sent"},
	OpAdd:         {Name: "ADD", RequiresAttach: true, Success: "log added"},
	OpFlush:       {Name: "FLUSH", RequiresAttach: true, Success: "flushed"},
	OpDisconnect:  {Name: "DISCONNECT", Success: "disconnected", Terminal: true},
	OpUnsubscribe: {Name: "UNSUBSCRIBE", RequiresAttach: true, Success: "unsubscribed", Terminal: true},
	OpGetLogs:     {Name: "GETLOGS", RequiresAttach: true, Success: "logs sent"},
}

// Ops lists every valid op in table order.
func Ops() []Op {
	return []Op{OpConnect, OpSubscribe, OpStat, OpAdd, OpFlush, OpDisconnect, OpUnsubscribe, OpGetLogs}
}

// Descriptor returns the table entry of o.
func (o Op) Descriptor() Descriptor {
	if int(o) >= len(descriptors) {
		return descriptors[OpInvalid]
	}
	return descriptors[o]
}

func (o Op) String() string { return o.Descriptor().Name }

// Lookup resolves an opcode token. Matching is case sensitive.
func Lookup(token string) (Op, bool) {
	for _, op := range Ops() {
		if descriptors[op].Name == token {
			return op, true
		}
	}
	return OpInvalid, false
}
