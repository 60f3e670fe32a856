package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the service
type Metrics struct {
	ScansTotal          *prometheus.CounterVec
	CheckinsRecorded    prometheus.Counter
	CheckinsDuplicate   prometheus.Counter
	BatchItemsTotal     *prometheus.CounterVec
	ScannerLogins       *prometheus.CounterVec
	AttendeesRegistered prometheus.Counter
}

// New registers all metrics on the default registry.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers all metrics on the given registry. Tests pass a fresh
// registry per case; the default registry allows one registration per process.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		ScansTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gatepass_scans_total",
			Help: "Total QR verifications by outcome (admitted or deny reason)",
		}, []string{"outcome"}),
		CheckinsRecorded: factory.NewCounter(prometheus.CounterOpts{
			Name: "gatepass_checkins_recorded_total",
			Help: "Total check-in records persisted",
		}),
		CheckinsDuplicate: factory.NewCounter(prometheus.CounterOpts{
			Name: "gatepass_checkins_duplicate_total",
			Help: "Total check-in submissions ignored as duplicates",
		}),
		BatchItemsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gatepass_batch_items_total",
			Help: "Batch sync items by outcome (recorded, duplicate, error)",
		}, []string{"outcome"}),
		ScannerLogins: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "gatepass_scanner_logins_total",
			Help: "Scanner operator login attempts by status",
		}, []string{"status"}),
		AttendeesRegistered: factory.NewCounter(prometheus.CounterOpts{
			Name: "gatepass_attendees_registered_total",
			Help: "Total attendees registered with an issued credential",
		}),
	}
}
