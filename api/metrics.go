package api

import (
	"time"

	log "github.com/sirupsen/logrus"
)

// boardRequestMetrics collects timing and outcome fields for a single write
// request and logs them as one structured line.
type boardRequestMetrics struct {
	route          string
	logger         *log.Logger
	start          time.Time
	decodeDuration time.Duration
	applyDuration  time.Duration
	idempotencyKey string
	errorStage     string
}

func newBoardRequestMetrics(route string, logger *log.Logger) *boardRequestMetrics {
	return &boardRequestMetrics{
		route:  route,
		logger: logger,
		start:  time.Now(),
	}
}

func (m *boardRequestMetrics) ObserveDecode(d time.Duration) {
	if d <= 0 {
		return
	}
	m.decodeDuration = d
}

func (m *boardRequestMetrics) ObserveApply(d time.Duration) {
	if d <= 0 {
		return
	}
	m.applyDuration = d
}

func (m *boardRequestMetrics) SetIdempotencyKey(key string) {
	m.idempotencyKey = key
}

func (m *boardRequestMetrics) SetErrorStage(stage string) {
	if stage == "" {
		return
	}
	m.errorStage = stage
}

func (m *boardRequestMetrics) Log(status int, err error) {
	if m == nil || m.logger == nil {
		return
	}

	fields := log.Fields{
		"route":    m.route,
		"status":   status,
		"total_ms": durationToMillis(time.Since(m.start)),
	}
	if m.decodeDuration > 0 {
		fields["decode_ms"] = durationToMillis(m.decodeDuration)
	}
	if m.applyDuration > 0 {
		fields["apply_ms"] = durationToMillis(m.applyDuration)
	}
	if m.idempotencyKey != "" {
		fields["idempotency_key"] = m.idempotencyKey
	}
	if m.errorStage != "" {
		fields["error_stage"] = m.errorStage
	}
	if err != nil {
		fields["error"] = err.Error()
	}

	m.logger.WithFields(fields).Info("board.request.metrics")
}

func durationToMillis(d time.Duration) float64 {
	if d <= 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
