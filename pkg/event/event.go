// Package event defines the typed events fired while a protocol runs and a
// synchronous bus that delivers them.
//
// Events are identified by an explicit [Kind] (and, for operations, an
// [Operation]) passed by the code that fires them. Each event renders to a
// human-readable label that ends up in frame filenames:
//
//	initial_state
//	operation_pick_up_tips
//	assign_plate1
//	unassign_plate1
//	state_update_well_A1
//
// Delivery through [Bus.Fire] is synchronous: the firer blocks until every
// handler returns, and the first handler error is returned to it.
package event

import (
	"fmt"
	"strings"
)

// Kind is the category of an event.
type Kind int

// Recognized event kinds.
const (
	KindInitialState Kind = iota
	KindOperation
	KindResourceAssigned
	KindResourceUnassigned
	KindStateUpdate
)

var kindNames = map[Kind]string{
	KindInitialState:       "initial_state",
	KindOperation:          "operation",
	KindResourceAssigned:   "resource_assigned",
	KindResourceUnassigned: "resource_unassigned",
	KindStateUpdate:        "state_update",
}

// String returns the stable name of k.
func (k Kind) String() string {
	if s, ok := kindNames[k]; ok {
		return s
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Kinds returns every recognized kind in declaration order.
func Kinds() []Kind {
	return []Kind{
		KindInitialState,
		KindOperation,
		KindResourceAssigned,
		KindResourceUnassigned,
		KindStateUpdate,
	}
}

// Operation is a liquid-handling operation.
type Operation string

// Liquid-handling operations, single channel and 96-head.
const (
	PickUpTips   Operation = "pick_up_tips"
	DropTips     Operation = "drop_tips"
	Aspirate     Operation = "aspirate"
	Dispense     Operation = "dispense"
	PickUpTips96 Operation = "pick_up_tips96"
	DropTips96   Operation = "drop_tips96"
	Aspirate96   Operation = "aspirate96"
	Dispense96   Operation = "dispense96"
)

// Operations lists every recognized operation.
var Operations = []Operation{
	PickUpTips, DropTips, Aspirate, Dispense,
	PickUpTips96, DropTips96, Aspirate96, Dispense96,
}

// Valid reports whether op is a recognized operation.
func (op Operation) Valid() bool {
	for _, o := range Operations {
		if o == op {
			return true
		}
	}
	return false
}

// Event is one occurrence fired by the protocol runtime or the resource tree.
type Event struct {
	Kind      Kind
	Operation Operation // set for KindOperation
	Resource  string    // resource name for structural and state events
}

// Initial is the event recorded at setup, before any operation runs.
func Initial() Event { return Event{Kind: KindInitialState} }

// Op returns an operation event.
func Op(op Operation) Event { return Event{Kind: KindOperation, Operation: op} }

// Assigned returns a resource-assigned event.
func Assigned(name string) Event { return Event{Kind: KindResourceAssigned, Resource: name} }

// Unassigned returns a resource-unassigned event.
func Unassigned(name string) Event { return Event{Kind: KindResourceUnassigned, Resource: name} }

// StateUpdated returns a state-update event.
func StateUpdated(name string) Event { return Event{Kind: KindStateUpdate, Resource: name} }

// Label returns the human-readable label of e. Labels are not sanitized;
// callers that put them in filenames must do that themselves.
func (e Event) Label() string {
	switch e.Kind {
	case KindInitialState:
		return "initial_state"
	case KindOperation:
		return "operation_" + string(e.Operation)
	case KindResourceAssigned:
		return "assign_" + e.Resource
	case KindResourceUnassigned:
		return "unassign_" + e.Resource
	case KindStateUpdate:
		return "state_update_" + e.Resource
	default:
		return strings.ToLower(e.Kind.String())
	}
}

// String implements fmt.Stringer.
func (e Event) String() string { return e.Label() }
