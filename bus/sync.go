package bus

import "bytes"

// Sync message type tags.
const (
	TagTask        uint16 = 300
	TagEvent       uint16 = 301
	TagBridgeEvent uint16 = 302
)

// SyncMsg is the family of syncer-facing payloads: downstream Tasks and
// upstream Events, plus the internal BridgeEvent variant that only ever
// travels on the Bridge lane.
type SyncMsg interface {
	BusMsg
	isSyncMsg()
}

type syncBase struct{}

func (syncBase) Family() Family { return FamilySync }
func (syncBase) isSyncMsg()     {}

// TaskKind identifies which of the seven abstract blockchain work items a
// Task describes.
type TaskKind uint8

const (
	TaskWatchAddress TaskKind = iota
	TaskWatchTransaction
	TaskWatchHeight
	TaskBroadcastTransaction
	TaskSweepAddress
	TaskGetTx
	TaskAbort
)

func (k TaskKind) String() string {
	names := [...]string{
		"WatchAddress", "WatchTransaction", "WatchHeight",
		"BroadcastTransaction", "SweepAddress", "GetTx", "Abort",
	}
	if int(k) < len(names) {
		return names[k]
	}
	return "Unknown"
}

// Task is an abstract unit of blockchain work submitted to a Syncer. It is
// represented as one flattened struct rather than Go's closest analogue to
// a sum type (an interface with N implementations) because Task values must
// be directly, structurally comparable for the Syncer's outstanding-task set
// -- see syncer.Runtime -- which a struct of comparable fields gives for
// free while an interface holding slices does not.
type Task struct {
	Kind   TaskKind
	TaskId uint32

	// WatchAddress
	Script     string // hex-encoded output script
	FromHeight uint32

	// WatchTransaction
	Txid                  [32]byte
	ConfirmationsRequired uint32

	// BroadcastTransaction
	TxHex string

	// SweepAddress
	SweepScript      string
	SweepDestination string
	MinimumBalance   uint64

	// Abort
	AbortTaskId uint32
}

// WatchAddress builds a Task watching for any transaction paying script,
// scanning from fromHeight.
func WatchAddress(taskId uint32, script string, fromHeight uint32) Task {
	return Task{Kind: TaskWatchAddress, TaskId: taskId, Script: script, FromHeight: fromHeight}
}

// WatchTransaction builds a Task watching txid until it reaches
// confirmationsRequired confirmations.
func WatchTransaction(taskId uint32, txid [32]byte, confirmationsRequired uint32) Task {
	return Task{
		Kind: TaskWatchTransaction, TaskId: taskId, Txid: txid,
		ConfirmationsRequired: confirmationsRequired,
	}
}

// WatchHeight builds a Task that emits HeightChanged on every new block.
func WatchHeight(taskId uint32) Task {
	return Task{Kind: TaskWatchHeight, TaskId: taskId}
}

// BroadcastTransaction builds a Task asking the Syncer to relay txHex (a
// hex-encoded raw transaction) to the network.
func BroadcastTransaction(taskId uint32, txHex string) Task {
	return Task{Kind: TaskBroadcastTransaction, TaskId: taskId, TxHex: txHex}
}

// SweepAddress builds a Task asking the Syncer to sweep all funds at
// sweepScript to sweepDestination once they exceed minimumBalance.
func SweepAddress(taskId uint32, sweepScript, sweepDestination string, minimumBalance uint64) Task {
	return Task{
		Kind: TaskSweepAddress, TaskId: taskId, SweepScript: sweepScript,
		SweepDestination: sweepDestination, MinimumBalance: minimumBalance,
	}
}

// GetTx builds a one-shot Task requesting a transaction by id.
func GetTx(taskId uint32, txid [32]byte) Task {
	return Task{Kind: TaskGetTx, TaskId: taskId, Txid: txid}
}

// AbortTask builds a Task cancelling a previously submitted task.
func AbortTask(taskId uint32, target uint32) Task {
	return Task{Kind: TaskAbort, TaskId: taskId, AbortTaskId: target}
}

func (t Task) marshal(buf *bytes.Buffer) {
	buf.WriteByte(byte(t.Kind))
	putUint32(buf, t.TaskId)
	putString(buf, t.Script)
	putUint32(buf, t.FromHeight)
	buf.Write(t.Txid[:])
	putUint32(buf, t.ConfirmationsRequired)
	putString(buf, t.TxHex)
	putString(buf, t.SweepScript)
	putString(buf, t.SweepDestination)
	putUint64(buf, t.MinimumBalance)
	putUint32(buf, t.AbortTaskId)
}

func unmarshalTask(r *bytes.Reader) (Task, error) {
	var t Task
	kb, err := r.ReadByte()
	if err != nil {
		return t, err
	}
	t.Kind = TaskKind(kb)
	if t.TaskId, err = readUint32(r); err != nil {
		return t, err
	}
	if t.Script, err = readString(r); err != nil {
		return t, err
	}
	if t.FromHeight, err = readUint32(r); err != nil {
		return t, err
	}
	if _, err = readFull(r, t.Txid[:]); err != nil {
		return t, err
	}
	if t.ConfirmationsRequired, err = readUint32(r); err != nil {
		return t, err
	}
	if t.TxHex, err = readString(r); err != nil {
		return t, err
	}
	if t.SweepScript, err = readString(r); err != nil {
		return t, err
	}
	if t.SweepDestination, err = readString(r); err != nil {
		return t, err
	}
	if t.MinimumBalance, err = readUint64(r); err != nil {
		return t, err
	}
	if t.AbortTaskId, err = readUint32(r); err != nil {
		return t, err
	}
	return t, nil
}

// TaskMsg wraps a Task addressed to a Syncer over the Sync lane.
type TaskMsg struct {
	syncBase
	Task Task
}

func (m TaskMsg) Tag() uint16 { return TagTask }
func (m TaskMsg) MarshalPayload() ([]byte, error) {
	var buf bytes.Buffer
	m.Task.marshal(&buf)
	return buf.Bytes(), nil
}

func init() {
	registerTag(TagTask, func(b []byte) (BusMsg, error) {
		t, err := unmarshalTask(bytes.NewReader(b))
		if err != nil {
			return nil, err
		}
		return TaskMsg{Task: t}, nil
	})
}

// EventKind identifies which of the seven Event variants a syncer emitted.
type EventKind uint8

const (
	EventHeightChanged EventKind = iota
	EventAddressTransaction
	EventTransactionConfirmations
	EventTransactionBroadcasted
	EventSweepSuccess
	EventTaskAborted
	EventFailure
)

func (k EventKind) String() string {
	names := [...]string{
		"HeightChanged", "AddressTransaction", "TransactionConfirmations",
		"TransactionBroadcasted", "SweepSuccess", "TaskAborted", "Failure",
	}
	if int(k) < len(names) {
		return names[k]
	}
	return "Unknown"
}

// Event is the Syncer's response payload, flattened the same way Task is.
type Event struct {
	Kind   EventKind
	TaskId uint32

	Height        uint32
	Txid          [32]byte
	Confirmations uint32
	Amount        uint64
	BlockHash     [32]byte
	ErrorInfo     string
}

func (e Event) marshal(buf *bytes.Buffer) {
	buf.WriteByte(byte(e.Kind))
	putUint32(buf, e.TaskId)
	putUint32(buf, e.Height)
	buf.Write(e.Txid[:])
	putUint32(buf, e.Confirmations)
	putUint64(buf, e.Amount)
	buf.Write(e.BlockHash[:])
	putString(buf, e.ErrorInfo)
}

func unmarshalEvent(r *bytes.Reader) (Event, error) {
	var e Event
	kb, err := r.ReadByte()
	if err != nil {
		return e, err
	}
	e.Kind = EventKind(kb)
	if e.TaskId, err = readUint32(r); err != nil {
		return e, err
	}
	if e.Height, err = readUint32(r); err != nil {
		return e, err
	}
	if _, err = readFull(r, e.Txid[:]); err != nil {
		return e, err
	}
	if e.Confirmations, err = readUint32(r); err != nil {
		return e, err
	}
	if e.Amount, err = readUint64(r); err != nil {
		return e, err
	}
	if _, err = readFull(r, e.BlockHash[:]); err != nil {
		return e, err
	}
	if e.ErrorInfo, err = readString(r); err != nil {
		return e, err
	}
	return e, nil
}

// EventMsg wraps an Event delivered to its task's original source over the
// Sync lane.
type EventMsg struct {
	syncBase
	Event Event
}

func (m EventMsg) Tag() uint16 { return TagEvent }
func (m EventMsg) MarshalPayload() ([]byte, error) {
	var buf bytes.Buffer
	m.Event.marshal(&buf)
	return buf.Bytes(), nil
}

func init() {
	registerTag(TagEvent, func(b []byte) (BusMsg, error) {
		e, err := unmarshalEvent(bytes.NewReader(b))
		if err != nil {
			return nil, err
		}
		return EventMsg{Event: e}, nil
	})
}

// BridgeEvent carries an Event plus the ServiceId that originally submitted
// the task it responds to. It only ever travels on the Bridge lane, from a
// Synclet's worker goroutine back to its own Runtime; the Runtime unwraps it
// and re-emits the inner Event on Sync, addressed to Source.
type BridgeEvent struct {
	syncBase
	Source ServiceId
	Event  Event
}

func (m BridgeEvent) Tag() uint16 { return TagBridgeEvent }
func (m BridgeEvent) MarshalPayload() ([]byte, error) {
	var buf bytes.Buffer
	srcBytes, err := m.Source.MarshalBinary()
	if err != nil {
		return nil, err
	}
	putBytes(&buf, srcBytes)
	m.Event.marshal(&buf)
	return buf.Bytes(), nil
}

func init() {
	registerTag(TagBridgeEvent, func(b []byte) (BusMsg, error) {
		r := bytes.NewReader(b)
		srcBytes, err := readBytes(r)
		if err != nil {
			return nil, err
		}
		source, _, err := UnmarshalServiceId(srcBytes)
		if err != nil {
			return nil, err
		}
		event, err := unmarshalEvent(r)
		if err != nil {
			return nil, err
		}
		return BridgeEvent{Source: source, Event: event}, nil
	})
}

// SyncerdTask pairs a Task with the ServiceId that submitted it. Syncer
// retains a set of these, deduplicated by structural equality of the
// (Task, Source) pair -- see syncer.Runtime.
type SyncerdTask struct {
	Task   Task
	Source ServiceId
}

// Key returns a canonical string uniquely identifying (Task, Source) by
// structural value, used as the outstanding-task set's map key.
func (t SyncerdTask) Key() string {
	var buf bytes.Buffer
	t.Task.marshal(&buf)
	srcBytes, _ := t.Source.MarshalBinary()
	buf.Write(srcBytes)
	return buf.String()
}
