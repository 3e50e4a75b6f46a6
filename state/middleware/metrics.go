package middleware

import (
	"fmt"

	"github.com/johnsiilver/stockboard"
	"github.com/johnsiilver/stockboard/state/actions"
	"github.com/johnsiilver/stockboard/state/data"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics provides middleware that exports board activity to Prometheus.
type Metrics struct {
	Ticks   prometheus.Counter
	Toggles prometheus.Counter
	Updates *prometheus.CounterVec
	Price   *prometheus.GaugeVec
}

// NewMetrics is the constructor for Metrics. The collectors are registered
// with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stockboard_ticks_total",
			Help: "Total number of ticks that moved at least one stock",
		}),
		Toggles: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "stockboard_toggles_total",
			Help: "Total number of stock toggles",
		}),
		Updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "stockboard_record_updates_total",
			Help: "Total number of price updates per stock",
		}, []string{"symbol"}),
		Price: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "stockboard_price",
			Help: "Current price per stock",
		}, []string{"symbol"}),
	}

	for _, c := range []prometheus.Collector{m.Ticks, m.Toggles, m.Updates, m.Price} {
		if err := reg.Register(c); err != nil {
			return nil, fmt.Errorf("could not register board metrics: %w", err)
		}
	}
	return m, nil
}

// Observe implements stockboard.Middleware.
func (m *Metrics) Observe(args *stockboard.MWArgs) (changedData *data.State, stop bool, err error) {
	old := args.GetState()

	go func() {
		defer args.WG.Done()
		state := <-args.Committed
		if state.IsZero() {
			return
		}

		switch args.Action.Type {
		case actions.ActTick:
			m.Ticks.Inc()
			for _, r := range changedRecords(old.Data, state.Data) {
				m.Updates.WithLabelValues(r.Symbol).Inc()
				m.Price.WithLabelValues(r.Symbol).Set(r.Price)
			}
		case actions.ActToggle:
			m.Toggles.Inc()
		}
	}()
	return nil, false, nil
}
