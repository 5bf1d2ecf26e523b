package core

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the normalization pipeline.
type Metrics struct {
	FilesProcessed  *prometheus.CounterVec
	RecordsAdmitted *prometheus.CounterVec
	FixesAttempted  *prometheus.CounterVec
	AssistantCalls  *prometheus.HistogramVec
	LedgerSize      *prometheus.GaugeVec
}

// NewMetrics creates the pipeline metrics and registers them with reg.
// A nil registerer yields working but unregistered metrics, which is what
// tests want.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		FilesProcessed: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "salesunifier_files_processed_total",
			Help: "Spreadsheet files processed, by outcome (ok, failed)",
		}, []string{"outcome"}),
		RecordsAdmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "salesunifier_records_admitted_total",
			Help: "Records admitted to the ledger, by destination (consolidated, exception)",
		}, []string{"destination"}),
		FixesAttempted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "salesunifier_fixes_total",
			Help: "Assisted record repairs, by outcome (ok, failed)",
		}, []string{"outcome"}),
		AssistantCalls: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "salesunifier_assistant_call_duration_seconds",
			Help:    "Duration of assistant calls, by purpose (translate, repair)",
			Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 20, 40},
		}, []string{"purpose"}),
		LedgerSize: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "salesunifier_ledger_records",
			Help: "Current number of records per ledger collection",
		}, []string{"collection"}),
	}
}

// ObserveAssistant records the duration of an assistant call.
// Call with time.Now() at the start of the call.
func (m *Metrics) ObserveAssistant(purpose string, start time.Time) {
	m.AssistantCalls.WithLabelValues(purpose).Observe(time.Since(start).Seconds())
}

// SetLedger publishes the current ledger sizes.
func (m *Metrics) SetLedger(c Counts) {
	m.LedgerSize.WithLabelValues("consolidated").Set(float64(c.Consolidated))
	m.LedgerSize.WithLabelValues("exceptions").Set(float64(c.Exceptions))
	m.LedgerSize.WithLabelValues("fix_history").Set(float64(c.FixHistory))
}
