package monitoring

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
)

var (
	checkInAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkin_attempts_total",
			Help: "Check-in attempts by outcome",
		},
		[]string{"result"},
	)

	checkOutAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "checkout_attempts_total",
			Help: "Check-out attempts by outcome",
		},
		[]string{"result"},
	)

	confirmDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "checkin_confirm_duration_seconds",
			Help:    "Duration of the confirm-read following an attendance write",
			Buckets: prometheus.ExponentialBuckets(0.05, 2, 8),
		},
		[]string{"outcome"},
	)

	openSessions = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "checkin_open_sessions",
			Help: "Currently open check-in sessions",
		},
	)

	activeEvents = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "active_events_total",
			Help: "Events currently tracked as active",
		},
	)
)

func RecordCheckIn(result string) {
	checkInAttempts.WithLabelValues(result).Inc()
}

func RecordCheckOut(result string) {
	checkOutAttempts.WithLabelValues(result).Inc()
}

func ObserveConfirm(outcome string, d time.Duration) {
	confirmDuration.WithLabelValues(outcome).Observe(d.Seconds())
}

func SetOpenSessions(n int) {
	openSessions.Set(float64(n))
}

// Monitor periodically mirrors the Redis active-event registry into a gauge.
type Monitor struct {
	redis *redis.Client
}

func NewMonitor(redisClient *redis.Client) *Monitor {
	return &Monitor{redis: redisClient}
}

func (m *Monitor) Start(ctx context.Context) {
	ticker := time.NewTicker(30 * time.Second)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if n, err := m.redis.SCard(ctx, "active_events").Result(); err == nil {
					activeEvents.Set(float64(n))
				}
			}
		}
	}()
}
