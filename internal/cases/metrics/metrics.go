package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics tracks case lifecycle activity. A nil *Metrics records nothing.
type Metrics struct {
	CasesCreated      prometheus.Counter
	StatusTransitions *prometheus.CounterVec
	DocumentsStored   prometheus.Counter
	DictamenesSaved   *prometheus.CounterVec
	CasesDeleted      prometheus.Counter
	OperationDuration *prometheus.HistogramVec
}

// New registers on the default registry.
func New() *Metrics {
	return NewWithRegistry(prometheus.DefaultRegisterer)
}

func NewWithRegistry(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		CasesCreated: f.NewCounter(prometheus.CounterOpts{
			Name: "juntas_cases_created_total",
			Help: "Total number of cases created",
		}),
		StatusTransitions: f.NewCounterVec(prometheus.CounterOpts{
			Name: "juntas_case_status_transitions_total",
			Help: "Stored status changes by target status",
		}, []string{"to"}),
		DocumentsStored: f.NewCounter(prometheus.CounterOpts{
			Name: "juntas_documents_stored_total",
			Help: "Document slot inserts and replacements",
		}),
		DictamenesSaved: f.NewCounterVec(prometheus.CounterOpts{
			Name: "juntas_dictamenes_saved_total",
			Help: "Dictamen upserts by mode",
		}, []string{"mode"}),
		CasesDeleted: f.NewCounter(prometheus.CounterOpts{
			Name: "juntas_cases_deleted_total",
			Help: "Total number of cases deleted with their documents and dictamen",
		}),
		OperationDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "juntas_case_operation_duration_seconds",
			Help:    "Duration of case service operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"operation"}),
	}
}

func (m *Metrics) IncrementCreated() {
	if m == nil {
		return
	}
	m.CasesCreated.Inc()
}

func (m *Metrics) IncrementTransition(to string) {
	if m == nil {
		return
	}
	m.StatusTransitions.WithLabelValues(to).Inc()
}

func (m *Metrics) IncrementDocumentStored() {
	if m == nil {
		return
	}
	m.DocumentsStored.Inc()
}

func (m *Metrics) IncrementDictamenSaved(finalized bool) {
	if m == nil {
		return
	}
	mode := "draft"
	if finalized {
		mode = "finalize"
	}
	m.DictamenesSaved.WithLabelValues(mode).Inc()
}

func (m *Metrics) IncrementDeleted() {
	if m == nil {
		return
	}
	m.CasesDeleted.Inc()
}

// ObserveOperation records the duration since start.
// Call with time.Now() at the start of the operation.
func (m *Metrics) ObserveOperation(operation string, start time.Time) {
	if m == nil {
		return
	}
	m.OperationDuration.WithLabelValues(operation).Observe(time.Since(start).Seconds())
}
