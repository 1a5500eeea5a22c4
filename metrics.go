package ledgerAuth

import (
	"sync/atomic"
	"time"
)

// MetricID identifies one in-process counter or histogram.
type MetricID uint16

const (
	// MetricLoginSuccess counts password logins that issued a token.
	MetricLoginSuccess MetricID = iota
	// MetricLoginFailure counts rejected password logins.
	MetricLoginFailure
	// MetricLoginRateLimited counts logins blocked by the login limiter.
	MetricLoginRateLimited
	// MetricLoginSecondFactorRequired counts logins that ended in the pending-2FA state.
	MetricLoginSecondFactorRequired
	// MetricRegisterSuccess is an exported constant or variable used by the authentication engine.
	MetricRegisterSuccess
	// MetricRegisterDuplicate is an exported constant or variable used by the authentication engine.
	MetricRegisterDuplicate
	// MetricMemberCreated is an exported constant or variable used by the authentication engine.
	MetricMemberCreated
	// MetricTOTPSecretGenerated is an exported constant or variable used by the authentication engine.
	MetricTOTPSecretGenerated
	// MetricTOTPEnabled is an exported constant or variable used by the authentication engine.
	MetricTOTPEnabled
	// MetricTOTPEnableFailure is an exported constant or variable used by the authentication engine.
	MetricTOTPEnableFailure
	// MetricTOTPLoginSuccess is an exported constant or variable used by the authentication engine.
	MetricTOTPLoginSuccess
	// MetricTOTPLoginFailure is an exported constant or variable used by the authentication engine.
	MetricTOTPLoginFailure
	// MetricTOTPDisabled is an exported constant or variable used by the authentication engine.
	MetricTOTPDisabled
	// MetricTOTPCodeSent is an exported constant or variable used by the authentication engine.
	MetricTOTPCodeSent
	// MetricTOTPCodeSendFailure counts mailer rejections, including best-effort sends after login.
	MetricTOTPCodeSendFailure
	// MetricRecoveryCodeUsed is an exported constant or variable used by the authentication engine.
	MetricRecoveryCodeUsed
	// MetricRecoveryCodeFailed is an exported constant or variable used by the authentication engine.
	MetricRecoveryCodeFailed
	// MetricVerificationRateLimited counts code, recovery and send-code attempts blocked by a limiter.
	MetricVerificationRateLimited
	// MetricChallengeFailure counts missing, expired or exhausted login challenges.
	MetricChallengeFailure
	// MetricPasswordChangeSuccess is an exported constant or variable used by the authentication engine.
	MetricPasswordChangeSuccess
	// MetricPasswordChangeInvalidOld is an exported constant or variable used by the authentication engine.
	MetricPasswordChangeInvalidOld
	// MetricPasswordChangeReuseRejected is an exported constant or variable used by the authentication engine.
	MetricPasswordChangeReuseRejected
	// MetricPasswordRehashed counts legacy or outdated hashes upgraded during login.
	MetricPasswordRehashed
	// MetricTokenIssued is an exported constant or variable used by the authentication engine.
	MetricTokenIssued
	// MetricTokenRejected is an exported constant or variable used by the authentication engine.
	MetricTokenRejected
	// MetricLogout is an exported constant or variable used by the authentication engine.
	MetricLogout
	// MetricAuthorizationDenied counts role, permission and organization denials.
	MetricAuthorizationDenied
	// MetricRoleChanged is an exported constant or variable used by the authentication engine.
	MetricRoleChanged
	// MetricAccountStatusChanged is an exported constant or variable used by the authentication engine.
	MetricAccountStatusChanged
	// MetricRateLimitHit counts every limiter denial regardless of scope.
	MetricRateLimitHit
	// MetricVerifyLatency is the only histogram: session token verification latency.
	MetricVerifyLatency
	metricIDCount
)

const (
	histBucketCount = 8
	cacheLineSize   = 64
)

type metricHistogram struct {
	buckets [histBucketCount]uint64
}

type paddedCounter struct {
	value uint64
	_     [cacheLineSize - 8]byte
}

// Metrics is a fixed set of lock-free counters. A nil or disabled *Metrics
// ignores every call.
type Metrics struct {
	enabled       bool
	enableLatency bool
	counters      [metricIDCount]paddedCounter
	histograms    [metricIDCount]metricHistogram
}

// MetricsSnapshot is a point-in-time copy of every counter and histogram.
type MetricsSnapshot struct {
	Counters   map[MetricID]uint64
	Histograms map[MetricID][]uint64
}

// NewMetrics returns a counter set. A disabled set ignores every update.
func NewMetrics(cfg MetricsConfig) *Metrics {
	return &Metrics{
		enabled:       cfg.Enabled,
		enableLatency: cfg.Enabled && cfg.EnableLatencyHistograms,
	}
}

func (m *Metrics) Enabled() bool {
	return m != nil && m.enabled
}

func (m *Metrics) LatencyEnabled() bool {
	return m != nil && m.enableLatency
}

// Inc adds one to the counter.
func (m *Metrics) Inc(id MetricID) {
	if m == nil || !m.enabled || id >= metricIDCount {
		return
	}
	atomic.AddUint64(&m.counters[id].value, 1)
}

// Observe records d into the latency histogram. Only MetricVerifyLatency
// carries buckets; other IDs are ignored.
func (m *Metrics) Observe(id MetricID, d time.Duration) {
	if m == nil || !m.enabled || !m.enableLatency || id >= metricIDCount {
		return
	}
	if id != MetricVerifyLatency {
		return
	}

	b := bucketIndex(d)
	atomic.AddUint64(&m.histograms[id].buckets[b], 1)
}

func (m *Metrics) Value(id MetricID) uint64 {
	if m == nil || id >= metricIDCount {
		return 0
	}
	return atomic.LoadUint64(&m.counters[id].value)
}

// Snapshot copies the counters. It returns empty maps when metrics are
// disabled.
func (m *Metrics) Snapshot() MetricsSnapshot {
	if m == nil || !m.enabled {
		return MetricsSnapshot{
			Counters:   map[MetricID]uint64{},
			Histograms: map[MetricID][]uint64{},
		}
	}

	s := MetricsSnapshot{
		Counters:   make(map[MetricID]uint64, int(metricIDCount)),
		Histograms: make(map[MetricID][]uint64, 1),
	}

	for id := MetricID(0); id < metricIDCount; id++ {
		s.Counters[id] = atomic.LoadUint64(&m.counters[id].value)
	}

	if m.enableLatency {
		buckets := make([]uint64, histBucketCount)
		for i := 0; i < histBucketCount; i++ {
			buckets[i] = atomic.LoadUint64(&m.histograms[MetricVerifyLatency].buckets[i])
		}
		s.Histograms[MetricVerifyLatency] = buckets
	}

	return s
}

func bucketIndex(d time.Duration) int {
	ms := d.Milliseconds()

	switch {
	case ms <= 5:
		return 0
	case ms <= 10:
		return 1
	case ms <= 25:
		return 2
	case ms <= 50:
		return 3
	case ms <= 100:
		return 4
	case ms <= 250:
		return 5
	case ms <= 500:
		return 6
	default:
		return 7
	}
}
