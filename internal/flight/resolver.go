package flight

import (
	"context"
	"fmt"
)

// Option is a selectable cargo flight date.
type Option struct {
	ISO             string `json:"iso" validate:"required,max=64"`
	Label           string `json:"label" validate:"max=128"`
	CutoffDateLabel string `json:"cutoffDateLabel,omitempty" validate:"max=128"`
}

// State is the selection state of a Resolver.
type State int

const (
	Unselected State = iota
	Selected
	LockedOwn
	LockedJoiner
)

func (s State) String() string {
	switch s {
	case Unselected:
		return "unselected"
	case Selected:
		return "selected"
	case LockedOwn:
		return "locked_own"
	case LockedJoiner:
		return "locked_joiner"
	default:
		return "unknown"
	}
}

// ActiveOrder is a buyer order that pins the flight of any new order.
type ActiveOrder struct {
	ID         string
	Status     string
	FlightDate string
}

// OrderStatusProvider looks up the buyer's in-flight order, if any.
type OrderStatusProvider interface {
	ActiveOrder(ctx context.Context, buyerID string) (ActiveOrder, bool, error)
}

// Resolver decides which flight date an order ships on. A joiner lock wins over an
// own-order lock and cannot be released within the session.
type Resolver struct {
	options  []Option
	state    State
	selected string
	locked   string
	joiner   string
}

// NewResolver builds a resolver over the offered options. A non-empty joiner date locks
// the resolver immediately.
func NewResolver(options []Option, joinerReceiverFlightDate string) *Resolver {
	r := &Resolver{options: append([]Option(nil), options...)}
	if key := NormalizeKey(joinerReceiverFlightDate); key != "" {
		r.joiner = key
		r.state = LockedJoiner
	}
	return r
}

// State returns the current state.
func (r *Resolver) State() State { return r.state }

// Options returns a copy of the offered options.
func (r *Resolver) Options() []Option { return append([]Option(nil), r.options...) }

// Select chooses an offered option by iso date or label. It reports whether the selection
// changed; taps are ignored while locked or when the option is not offered.
func (r *Resolver) Select(input string) bool {
	if r.state == LockedOwn || r.state == LockedJoiner {
		return false
	}
	opt, ok := r.match(NormalizeKey(input))
	if !ok {
		return false
	}
	key := NormalizeKey(opt.ISO)
	if r.state == Selected && r.selected == key {
		return false
	}
	r.selected = key
	r.state = Selected
	return true
}

// ApplyOwnLock pins the selection to the buyer's active order flight. An empty key
// releases a previous own-order lock.
func (r *Resolver) ApplyOwnLock(flightKey string) {
	if r.state == LockedJoiner {
		return
	}
	key := NormalizeKey(flightKey)
	if key == "" {
		if r.state == LockedOwn {
			r.locked = ""
			r.state = Unselected
			r.selected = ""
		}
		return
	}
	r.locked = key
	r.state = LockedOwn
}

// Selected returns the resolved flight key.
func (r *Resolver) Selected() (string, bool) {
	var key string
	switch r.state {
	case LockedJoiner:
		key = r.joiner
	case LockedOwn:
		key = r.locked
	case Selected:
		key = r.selected
	default:
		return "", false
	}
	if opt, ok := r.match(key); ok {
		return NormalizeKey(opt.ISO), true
	}
	return key, key != ""
}

// Locked reports whether manual selection is disabled.
func (r *Resolver) Locked() bool {
	return r.state == LockedOwn || r.state == LockedJoiner
}

// Notice explains a lock to the buyer. It is empty when nothing is locked.
func (r *Resolver) Notice() string {
	switch r.state {
	case LockedJoiner:
		return fmt.Sprintf("This order joins a group order and ships on the receiver's flight (%s).", r.display(r.joiner))
	case LockedOwn:
		return fmt.Sprintf("You have an order ready to fly on %s. New orders ship on the same flight.", r.display(r.locked))
	default:
		return ""
	}
}

func (r *Resolver) display(key string) string {
	if opt, ok := r.match(key); ok && opt.Label != "" {
		return opt.Label
	}
	return key
}

func (r *Resolver) match(key string) (Option, bool) {
	if key == "" {
		return Option{}, false
	}
	for _, opt := range r.options {
		if NormalizeKey(opt.ISO) == key || (opt.Label != "" && NormalizeKey(opt.Label) == key) {
			return opt, true
		}
	}
	return Option{}, false
}
