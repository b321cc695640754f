// Package bus implements the three logical lanes (Ctl, Info, Sync) plus the
// internal Bridge lane that every swapd service is wired to. It defines the
// tagged message union carried on those lanes, their canonical
// little-endian, length-delimited wire encoding, and the in-process
// transport (Endpoints) that fans messages out to service event loops.
package bus

import "fmt"

// Lane names one of the four logical message buses a service can be wired
// to. Bridge never crosses a service boundary: it is the private channel a
// Syncer's Synclet worker uses to hand events back to its own Runtime.
type Lane int

const (
	// Ctl carries commands: start, terminate, hello, offer and key
	// exchange traffic.
	Ctl Lane = iota

	// Info carries read-only introspection request/response traffic.
	Info

	// Sync carries syncer tasks (downstream) and chain events (upstream).
	Sync

	// Bridge is the internal single-producer lane from a Syncer's worker
	// thread to its own bus handler.
	Bridge
)

func (l Lane) String() string {
	switch l {
	case Ctl:
		return "ctl"
	case Info:
		return "info"
	case Sync:
		return "sync"
	case Bridge:
		return "bridge"
	default:
		return fmt.Sprintf("lane(%d)", int(l))
	}
}

// Family identifies which BusMsg sub-union a message belongs to. A message
// is only admitted on a lane whose allowed family set contains it; this is
// the contract checked at the top of every service's handle() method.
type Family int

const (
	// FamilyCtl tags CtlMsg payloads.
	FamilyCtl Family = iota

	// FamilyInfo tags InfoMsg payloads.
	FamilyInfo

	// FamilySync tags SyncMsg payloads.
	FamilySync
)

func (f Family) String() string {
	switch f {
	case FamilyCtl:
		return "ctl"
	case FamilyInfo:
		return "info"
	case FamilySync:
		return "sync"
	default:
		return fmt.Sprintf("family(%d)", int(f))
	}
}

// allowedFamilies lists which message families may be dispatched on which
// lane, per spec section 4.1: "The Bus admits a message on lane L only if
// the message's family matches L; mismatches are rejected before dispatch."
var allowedFamilies = map[Lane]Family{
	Ctl:    FamilyCtl,
	Info:   FamilyInfo,
	Sync:   FamilySync,
	Bridge: FamilySync,
}

// Allowed reports whether family f may be dispatched on lane l.
func Allowed(l Lane, f Family) bool {
	allowed, ok := allowedFamilies[l]
	return ok && allowed == f
}
