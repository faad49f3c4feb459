package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const promNamespace = "kr_reversion_bot"

type promCounter struct {
	counter prometheus.Counter
}

func (p promCounter) Inc() {
	p.counter.Inc()
}

type Prometheus struct {
	Metrics *Metrics

	registry *prometheus.Registry
}

func NewPrometheus() *Prometheus {
	registry := prometheus.NewRegistry()
	newCounter := func(name, help string) prometheus.Counter {
		c := prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: promNamespace,
			Name:      name,
			Help:      help,
		})
		registry.MustRegister(c)
		return c
	}

	m := &Metrics{
		EntriesSubmitted: promCounter{newCounter("entries_submitted_total", "Total number of entry orders submitted.")},
		EntriesFailed:    promCounter{newCounter("entries_failed_total", "Total number of entry submissions rejected by the gateway.")},
		BracketsPlaced:   promCounter{newCounter("brackets_placed_total", "Total number of OCO bracket pairs placed.")},
		BracketsFailed:   promCounter{newCounter("brackets_failed_total", "Total number of bracket placements that failed and forced liquidation.")},
		Exits:            promCounter{newCounter("exits_total", "Total number of positions closed by a bracket leg fill.")},
		Liquidations:     promCounter{newCounter("liquidations_total", "Total number of forced liquidations.")},
		EventsIgnored:    promCounter{newCounter("events_ignored_total", "Total number of stale, duplicate or unmodeled order events absorbed.")},
	}

	return &Prometheus{Metrics: m, registry: registry}
}

func (p *Prometheus) Handler() http.Handler {
	return promhttp.HandlerFor(p.registry, promhttp.HandlerOpts{})
}
