package bracket

type Direction string

const (
	Flat  Direction = "FLAT"
	Long  Direction = "LONG"
	Short Direction = "SHORT"
)

// Opposite returns the closing direction for a held position.
func (d Direction) Opposite() Direction {
	switch d {
	case Long:
		return Short
	case Short:
		return Long
	}
	return Flat
}

type Signal string

const (
	SignalHold       Signal = "HOLD"
	SignalEnterLong  Signal = "ENTER_LONG"
	SignalEnterShort Signal = "ENTER_SHORT"
	SignalExitNow    Signal = "EXIT_NOW"
)

type OrderKind string

const (
	KindEntry  OrderKind = "ENTRY"
	KindStop   OrderKind = "STOP"
	KindTarget OrderKind = "TARGET"
)

type OrderStatus string

const (
	StatusFilled        OrderStatus = "FILLED"
	StatusCanceled      OrderStatus = "CANCELED"
	StatusCancelPending OrderStatus = "CANCEL_PENDING"
	StatusInvalid       OrderStatus = "INVALID"
	StatusError         OrderStatus = "ERROR"
)

// Ticket is the opaque order handle returned by the gateway. Empty means absent.
type Ticket string

// OrderEvent is an asynchronous status notification from the gateway,
// enriched with the kind and direction recorded when the order was submitted.
type OrderEvent struct {
	OrderID   Ticket
	Status    OrderStatus
	Kind      OrderKind
	Direction Direction
	FillPrice float64
	FilledQty float64
}

// Position is the logical holding for the instrument under control.
// Quantity and EntryPrice are zero whenever Direction is Flat.
type Position struct {
	Direction  Direction
	Quantity   float64
	EntryPrice float64
}

// BracketPair holds the OCO pair guarding an open position. While a position
// is open the pair is either fully absent or fully present; it is never left
// half-present past a single controller step.
type BracketPair struct {
	Stop   Ticket
	Target Ticket
}

func (p BracketPair) Present() bool { return p.Stop != "" && p.Target != "" }

func (p BracketPair) Absent() bool { return p.Stop == "" && p.Target == "" }

// State is derived from (Position, BracketPair, pending entry); it is never
// stored independently.
type State string

const (
	StateFlat            State = "FLAT"
	StateEntryPending    State = "ENTRY_PENDING"
	StateOpenUnbracketed State = "OPEN_UNBRACKETED"
	StateOpenBracketed   State = "OPEN_BRACKETED"
)
