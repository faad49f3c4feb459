package metrics

type Counter interface {
	Inc()
}

type Metrics struct {
	EntriesSubmitted Counter
	EntriesFailed    Counter
	BracketsPlaced   Counter
	BracketsFailed   Counter
	Exits            Counter
	Liquidations     Counter
	EventsIgnored    Counter
}

type noopCounter struct{}

func (noopCounter) Inc() {}

func NewNoop() *Metrics {
	n := noopCounter{}
	return &Metrics{
		EntriesSubmitted: n,
		EntriesFailed:    n,
		BracketsPlaced:   n,
		BracketsFailed:   n,
		Exits:            n,
		Liquidations:     n,
		EventsIgnored:    n,
	}
}
