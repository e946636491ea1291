package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/berfenger/rfxcom2mqtt/internal/core/domain"
	"github.com/berfenger/rfxcom2mqtt/internal/core/port"
	"github.com/berfenger/rfxcom2mqtt/internal/metrics"
	"github.com/berfenger/rfxcom2mqtt/pkg/rfxcom"

	"go.uber.org/zap"
)

// Pipeline is the single consumer of the receiver stream: it reads frames,
// decodes them, deduplicates them in the registry and hands changed
// readings to the sinks.
type Pipeline struct {
	reader      port.FrameSource
	decoder     *rfxcom.Decoder
	registry    *SensorRegistry
	logger      *zap.Logger
	metrics     *metrics.AppMetrics
	onNewSensor func(domain.SensorRecord)
	now         func() time.Time
}

type PipelineOption func(*Pipeline)

func WithMetrics(m *metrics.AppMetrics) PipelineOption {
	return func(p *Pipeline) {
		p.metrics = m
	}
}

// WithNewSensorHook registers fn to be called once for every sensor the
// registry did not know before.
func WithNewSensorHook(fn func(domain.SensorRecord)) PipelineOption {
	return func(p *Pipeline) {
		p.onNewSensor = fn
	}
}

func WithClock(now func() time.Time) PipelineOption {
	return func(p *Pipeline) {
		p.now = now
	}
}

func NewPipeline(reader port.FrameSource, decoder *rfxcom.Decoder, registry *SensorRegistry, logger *zap.Logger, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		reader:   reader,
		decoder:  decoder,
		registry: registry,
		logger:   logger.With(zap.String("component", "pipeline")),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Run consumes the stream until it ends or ctx is done, both of which
// return nil. Only an unrecoverable read error is returned.
func (p *Pipeline) Run(ctx context.Context, sinks ...port.ReadingSink) error {
	for {
		frame, err := p.reader.Next(ctx)
		if err != nil {
			switch {
			case errors.Is(err, rfxcom.ErrShortRead):
				p.metrics.ShortRead()
				p.logger.Warn("frame dropped", zap.Error(err))
				continue
			case errors.Is(err, io.EOF):
				p.logger.Info("receiver stream ended")
				return nil
			case ctx.Err() != nil:
				return nil
			default:
				return fmt.Errorf("read frame: %w", err)
			}
		}
		p.metrics.FrameRead()
		p.process(frame, sinks)
	}
}

func (p *Pipeline) process(frame rfxcom.Frame, sinks []port.ReadingSink) {
	reading, err := p.decoder.Decode(frame, p.now())
	if err != nil {
		switch {
		case errors.Is(err, rfxcom.ErrIgnored):
			p.metrics.Decoded(metrics.DECODE_RESULT_IGNORED)
		case errors.Is(err, rfxcom.ErrUnsupportedType):
			p.metrics.Decoded(metrics.DECODE_RESULT_UNSUPPORTED)
			p.logger.Warn("unsupported sensor type", zap.Error(err))
		default:
			p.metrics.Decoded(metrics.DECODE_RESULT_ERROR)
			p.logger.Warn("decode failed", zap.Error(err))
		}
		return
	}
	p.metrics.Decoded(metrics.DECODE_RESULT_OK)
	p.logger.Debug(reading.String())

	known := p.registry.Known(reading.Identity.Key())
	record, changed := p.registry.Observe(reading)
	if !known {
		p.metrics.Sensors(p.registry.Len())
		p.logger.Info("new sensor", zap.String("sensor", record.Name), zap.Stringer("type", record.Type))
		if p.onNewSensor != nil {
			p.onNewSensor(record)
		}
	}
	if !changed {
		return
	}
	p.metrics.Changed(reading.Type.String())

	for _, sink := range sinks {
		if err := sink.Accept(reading); err != nil {
			name := sinkName(sink)
			p.metrics.SinkError(name)
			p.logger.Warn("sink refused reading", zap.String("sink", name), zap.Error(err))
		}
	}
}

func sinkName(sink port.ReadingSink) string {
	if named, ok := sink.(interface{ Name() string }); ok {
		return named.Name()
	}
	return fmt.Sprintf("%T", sink)
}
