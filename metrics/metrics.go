package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/maxpoletaev/quorum/peer"
	"github.com/maxpoletaev/quorum/peerapi"
)

var (
	PeerRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "quorum",
		Subsystem: "peer",
		Name:      "request_duration_seconds",
		Help:      "Outbound peer request duration, recorded on every exit path",
		Buckets:   prometheus.ExponentialBuckets(0.0001, 2, 20),
	}, []string{"peer", "kind"})

	PeerStatusTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "quorum",
		Subsystem: "peer",
		Name:      "status_transitions_total",
		Help:      "Peer availability transitions by resulting status",
	}, []string{"peer", "status"})
)

// PeerSink feeds peer request latencies into prometheus. Plug it into
// peer.Config.Metrics.
type PeerSink struct{}

var _ peer.Metrics = PeerSink{}

func (PeerSink) ObserveLatency(id peer.MemberID, kind peerapi.Kind, elapsed time.Duration) {
	PeerRequestDuration.WithLabelValues(id.String(), kind.String()).Observe(elapsed.Seconds())
}

// ObserveStatus records an availability transition. Meant to be registered
// through Member.OnStatusChange.
func ObserveStatus(m *peer.Member, prev, next peer.Status) {
	PeerStatusTransitions.WithLabelValues(m.ID().String(), next.String()).Inc()
}
