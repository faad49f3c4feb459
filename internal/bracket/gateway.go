package bracket

// Gateway is the order gateway as seen by the controller. Submissions are
// fire-and-forget: a returned error is the synchronous rejection case, every
// other outcome arrives later as an OrderEvent. Implementations must not block
// on exchange acknowledgement.
type Gateway interface {
	SubmitMarketOrder(direction Direction, quantity float64) (Ticket, error)
	SubmitStopOrder(direction Direction, quantity, stopPrice float64) (Ticket, error)
	SubmitLimitOrder(direction Direction, quantity, limitPrice float64) (Ticket, error)

	// Cancel is best-effort; the outcome is observed via a later Canceled event.
	Cancel(ticket Ticket, reason string)

	// Liquidate closes the whole position at market.
	Liquidate(reason string)
}
