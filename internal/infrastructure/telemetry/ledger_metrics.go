package telemetry

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/metric"
)

// PrometheusNamespace prefixes every Prometheus metric name
const PrometheusNamespace = "invoicing"

// NewPrometheusRegistry returns a registry with the Go runtime and process
// collectors, served on /metrics.
func NewPrometheusRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// LedgerMetrics counts ledger activity. Every measurement goes both to the
// OTel meter (exported over OTLP when enabled) and to the Prometheus registry.
type LedgerMetrics struct {
	invoicesCreated   *Counter
	invoicedAmount    *FloatCounter
	invoicesPaid      *Counter
	statusChanges     *Counter
	paymentsCompleted *Counter
	paymentsAmount    *FloatCounter
	outboxDeliveries  *Counter

	promInvoicesCreated   *prometheus.CounterVec
	promInvoicesPaid      prometheus.Counter
	promStatusChanges     *prometheus.CounterVec
	promPaymentsCompleted *prometheus.CounterVec
	promPaymentsAmount    *prometheus.CounterVec
	promOutboxDeliveries  *prometheus.CounterVec
}

// NewLedgerMetrics creates the instruments on meter and registers the
// Prometheus collectors on reg.
func NewLedgerMetrics(meter metric.Meter, reg prometheus.Registerer) (*LedgerMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}

	lm := &LedgerMetrics{}
	var err error

	if lm.invoicesCreated, err = NewCounter(meter, "invoicing_invoices_created_total",
		"Total number of invoices created", "{invoices}"); err != nil {
		return nil, err
	}
	if lm.invoicedAmount, err = NewFloatCounter(meter, "invoicing_invoiced_amount_total",
		"Sum of invoice totals at creation", "{currency_unit}"); err != nil {
		return nil, err
	}
	if lm.invoicesPaid, err = NewCounter(meter, "invoicing_invoices_paid_total",
		"Total number of invoices that reached PAID through payments", "{invoices}"); err != nil {
		return nil, err
	}
	if lm.statusChanges, err = NewCounter(meter, "invoicing_invoice_status_changes_total",
		"Invoice status transitions by target status and reason", "{transitions}"); err != nil {
		return nil, err
	}
	if lm.paymentsCompleted, err = NewCounter(meter, "invoicing_payments_completed_total",
		"Total number of payments marked COMPLETED", "{payments}"); err != nil {
		return nil, err
	}
	if lm.paymentsAmount, err = NewFloatCounter(meter, "invoicing_payments_completed_amount_total",
		"Sum of completed payment amounts", "{currency_unit}"); err != nil {
		return nil, err
	}
	if lm.outboxDeliveries, err = NewCounter(meter, "invoicing_outbox_deliveries_total",
		"Outbox delivery attempts by event type and outcome", "{attempts}"); err != nil {
		return nil, err
	}

	lm.promInvoicesCreated = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: PrometheusNamespace,
		Name:      "invoices_created_total",
		Help:      "Total number of invoices created.",
	}, []string{"currency"})
	lm.promInvoicesPaid = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: PrometheusNamespace,
		Name:      "invoices_paid_total",
		Help:      "Total number of invoices that reached PAID through payments.",
	})
	lm.promStatusChanges = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: PrometheusNamespace,
		Name:      "invoice_status_changes_total",
		Help:      "Invoice status transitions by target status and reason.",
	}, []string{"to", "reason"})
	lm.promPaymentsCompleted = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: PrometheusNamespace,
		Name:      "payments_completed_total",
		Help:      "Total number of payments marked COMPLETED.",
	}, []string{"method"})
	lm.promPaymentsAmount = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: PrometheusNamespace,
		Name:      "payments_completed_amount_total",
		Help:      "Sum of completed payment amounts.",
	}, []string{"method"})
	lm.promOutboxDeliveries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: PrometheusNamespace,
		Name:      "outbox_deliveries_total",
		Help:      "Outbox delivery attempts by event type and outcome (sent, retry, dead).",
	}, []string{"event_type", "outcome"})

	if reg != nil {
		for _, c := range []prometheus.Collector{
			lm.promInvoicesCreated,
			lm.promInvoicesPaid,
			lm.promStatusChanges,
			lm.promPaymentsCompleted,
			lm.promPaymentsAmount,
			lm.promOutboxDeliveries,
		} {
			if err := reg.Register(c); err != nil {
				return nil, err
			}
		}
	}

	return lm, nil
}

// RecordInvoiceCreated counts a new invoice and its total
func (lm *LedgerMetrics) RecordInvoiceCreated(ctx context.Context, currency string, total decimal.Decimal) {
	amount := total.InexactFloat64()
	lm.invoicesCreated.Inc(ctx, AttrCurrency.String(currency))
	lm.invoicedAmount.Add(ctx, amount, AttrCurrency.String(currency))
	lm.promInvoicesCreated.WithLabelValues(currency).Inc()
}

// RecordInvoiceStatusChange counts a status transition
func (lm *LedgerMetrics) RecordInvoiceStatusChange(ctx context.Context, to, reason string) {
	lm.statusChanges.Inc(ctx, AttrInvoiceStatus.String(to), AttrReason.String(reason))
	lm.promStatusChanges.WithLabelValues(to, reason).Inc()
}

// RecordInvoicePaid counts an invoice settled by payments
func (lm *LedgerMetrics) RecordInvoicePaid(ctx context.Context) {
	lm.invoicesPaid.Inc(ctx)
	lm.promInvoicesPaid.Inc()
}

// RecordPaymentCompleted counts a completed payment and its amount
func (lm *LedgerMetrics) RecordPaymentCompleted(ctx context.Context, method string, amount decimal.Decimal) {
	value := amount.InexactFloat64()
	lm.paymentsCompleted.Inc(ctx, AttrPaymentMethod.String(method))
	lm.paymentsAmount.Add(ctx, value, AttrPaymentMethod.String(method))
	lm.promPaymentsCompleted.WithLabelValues(method).Inc()
	lm.promPaymentsAmount.WithLabelValues(method).Add(value)
}

// ObserveDelivery counts one outbox delivery attempt
func (lm *LedgerMetrics) ObserveDelivery(ctx context.Context, eventType, outcome string) {
	lm.outboxDeliveries.Inc(ctx, AttrEventType.String(eventType), AttrDeliveryOutcome.String(outcome))
	lm.promOutboxDeliveries.WithLabelValues(eventType, outcome).Inc()
}

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewLedgerMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
