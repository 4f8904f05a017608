package notification

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	casemodels "juntas/internal/cases/models"
	dirmodels "juntas/internal/directory/models"
	"juntas/pkg/email"
	platformstrings "juntas/pkg/platform/strings"
	"juntas/pkg/requestcontext"
)

const defaultTimeout = 10 * time.Second

type Metrics struct {
	Dispatched *prometheus.CounterVec
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		Dispatched: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "juntas_notifications_total",
			Help: "Case notifications by dispatch outcome",
		}, []string{"outcome"}),
	}
}

func (m *Metrics) observe(ok bool) {
	if m == nil {
		return
	}
	outcome := "failed"
	if ok {
		outcome = "sent"
	}
	m.Dispatched.WithLabelValues(outcome).Inc()
}

// Notifier fans a case event out to its recipients without blocking the caller.
type Notifier struct {
	dispatcher Dispatcher
	timeout    time.Duration
	logger     *slog.Logger
	metrics    *Metrics
	inflight   sync.WaitGroup
}

type Option func(*Notifier)

func WithLogger(logger *slog.Logger) Option {
	return func(n *Notifier) {
		n.logger = logger
	}
}

func WithMetrics(m *Metrics) Option {
	return func(n *Notifier) {
		n.metrics = m
	}
}

func WithTimeout(d time.Duration) Option {
	return func(n *Notifier) {
		if d > 0 {
			n.timeout = d
		}
	}
}

func NewNotifier(dispatcher Dispatcher, opts ...Option) *Notifier {
	n := &Notifier{
		dispatcher: dispatcher,
		timeout:    defaultTimeout,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// CaseCreated notifies the evaluator and the patient. Recipients without an
// address are skipped and a shared address is notified once.
func (n *Notifier) CaseCreated(ctx context.Context, c *casemodels.Case, patient *dirmodels.Patient, evaluator *dirmodels.User) {
	if c == nil || patient == nil || evaluator == nil {
		return
	}
	evaluatorName := nameOrDerived(evaluator.FullName, evaluator.Email)
	patientEmail := ""
	if patient.Email != nil {
		patientEmail = *patient.Email
	}
	patientName := nameOrDerived(patient.FullName, patientEmail)

	base := Notification{
		Date:   c.ScheduledDate.Format(casemodels.DateLayout),
		CaseID: c.ID.String(),
	}
	if c.ScheduledTime != nil {
		base.Time = *c.ScheduledTime
	}
	if c.Location != nil {
		base.Location = *c.Location
	}

	candidates := []Notification{
		withRecipient(base, evaluatorName, evaluator.Email, patientName),
		withRecipient(base, patientName, patientEmail, evaluatorName),
	}
	addresses := make([]string, 0, len(candidates))
	for _, cand := range candidates {
		addresses = append(addresses, cand.RecipientEmail)
	}
	for _, addr := range platformstrings.UniqueFold(addresses) {
		for _, cand := range candidates {
			if strings.EqualFold(cand.RecipientEmail, addr) {
				n.dispatchDetached(ctx, cand)
				break
			}
		}
	}
}

// Wait blocks until in-flight dispatches finish.
func (n *Notifier) Wait() {
	n.inflight.Wait()
}

func (n *Notifier) dispatchDetached(ctx context.Context, note Notification) {
	requestID := requestcontext.RequestID(ctx)
	detached := context.WithoutCancel(ctx)
	n.inflight.Add(1)
	go func() {
		defer n.inflight.Done()
		dctx, cancel := context.WithTimeout(detached, n.timeout)
		defer cancel()

		ok := n.dispatcher.Dispatch(dctx, note)
		n.metrics.observe(ok)
		if !ok {
			n.logger.WarnContext(dctx, "notification dispatch failed",
				"case_id", note.CaseID,
				"recipient", note.RecipientEmail,
				"request_id", requestID,
			)
			return
		}
		n.logger.InfoContext(dctx, "notification dispatched",
			"case_id", note.CaseID,
			"recipient", note.RecipientEmail,
			"request_id", requestID,
		)
	}()
}

func withRecipient(base Notification, name, addr, counterpart string) Notification {
	base.RecipientName = name
	base.RecipientEmail = strings.TrimSpace(addr)
	base.CounterpartName = counterpart
	return base
}

func nameOrDerived(name, addr string) string {
	if name = strings.TrimSpace(name); name != "" {
		return name
	}
	return email.DisplayName(addr)
}
