package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	DECODE_RESULT_OK          = "ok"
	DECODE_RESULT_IGNORED     = "ignored"
	DECODE_RESULT_UNSUPPORTED = "unsupported"
	DECODE_RESULT_ERROR       = "error"

	WRITE_RESULT_OK    = "ok"
	WRITE_RESULT_ERROR = "error"
)

// NewRegistry creates a registry with the go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// AppMetrics holds the bridge counters. A nil *AppMetrics is valid and
// records nothing.
type AppMetrics struct {
	FramesTotal      prometheus.Counter
	ShortReadsTotal  prometheus.Counter
	DecodeTotal      *prometheus.CounterVec // labels: result
	ChangedTotal     *prometheus.CounterVec // labels: type
	SinkErrorsTotal  *prometheus.CounterVec // labels: sink
	ActorWritesTotal *prometheus.CounterVec // labels: actor, result
	SensorsGauge     prometheus.Gauge
}

func NewAppMetrics(reg prometheus.Registerer) *AppMetrics {
	m := &AppMetrics{
		FramesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rfxcom_frames_total",
			Help: "Complete frames read from the receiver.",
		}),
		ShortReadsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "rfxcom_short_reads_total",
			Help: "Frames dropped because the payload did not arrive in time.",
		}),
		DecodeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rfxcom_decode_total",
			Help: "Decode attempts by result.",
		}, []string{"result"}),
		ChangedTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rfxcom_readings_changed_total",
			Help: "Readings that differed from the previous one of the same sensor.",
		}, []string{"type"}),
		SinkErrorsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rfxcom_sink_errors_total",
			Help: "Readings a sink refused.",
		}, []string{"sink"}),
		ActorWritesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "rfxcom_actor_writes_total",
			Help: "Backend writes performed by sink actors.",
		}, []string{"actor", "result"}),
		SensorsGauge: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "rfxcom_sensors_known",
			Help: "Sensors currently held in the registry.",
		}),
	}
	reg.MustRegister(m.FramesTotal, m.ShortReadsTotal, m.DecodeTotal, m.ChangedTotal,
		m.SinkErrorsTotal, m.ActorWritesTotal, m.SensorsGauge)
	return m
}

func (m *AppMetrics) FrameRead() {
	if m != nil {
		m.FramesTotal.Inc()
	}
}

func (m *AppMetrics) ShortRead() {
	if m != nil {
		m.ShortReadsTotal.Inc()
	}
}

func (m *AppMetrics) Decoded(result string) {
	if m != nil {
		m.DecodeTotal.WithLabelValues(result).Inc()
	}
}

func (m *AppMetrics) Changed(sensorType string) {
	if m != nil {
		m.ChangedTotal.WithLabelValues(sensorType).Inc()
	}
}

func (m *AppMetrics) SinkError(sink string) {
	if m != nil {
		m.SinkErrorsTotal.WithLabelValues(sink).Inc()
	}
}

func (m *AppMetrics) ActorWrite(actor string, err error) {
	if m == nil {
		return
	}
	result := WRITE_RESULT_OK
	if err != nil {
		result = WRITE_RESULT_ERROR
	}
	m.ActorWritesTotal.WithLabelValues(actor, result).Inc()
}

func (m *AppMetrics) Sensors(n int) {
	if m != nil {
		m.SensorsGauge.Set(float64(n))
	}
}
