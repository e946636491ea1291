package service

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/berfenger/rfxcom2mqtt/internal/core/domain"
)

const DEFAULT_DETECT_DURATION = 60 * time.Second

// Detect runs the pipeline without sinks for duration and returns every
// sensor seen, flagged when router already has a route for it.
func (p *Pipeline) Detect(ctx context.Context, duration time.Duration, router *TopicRouter) ([]domain.DetectedSensor, error) {
	if duration <= 0 {
		duration = DEFAULT_DETECT_DURATION
	}
	detectCtx, cancel := context.WithTimeout(ctx, duration)
	defer cancel()

	if err := p.Run(detectCtx); err != nil {
		return nil, err
	}

	records := p.registry.List(nil)
	result := make([]domain.DetectedSensor, 0, len(records))
	for _, rec := range records {
		if rec.LastReading == nil {
			continue
		}
		result = append(result, domain.DetectedSensor{
			SensorRecord: rec,
			Mapped:       router != nil && router.HasRoute(rec.Identity),
		})
	}
	return result, nil
}

// FormatDetectSummary renders the detect report. Mapped sensors are
// prefixed with an asterisk.
func FormatDetectSummary(sensors []domain.DetectedSensor) string {
	var sb strings.Builder
	sb.WriteString("All detected sensors (if prefixed with asterisk, it's already in your route file):\n")
	for _, s := range sensors {
		mark := " "
		if s.Mapped {
			mark = "*"
		}
		desc := ""
		if s.LastReading != nil && s.LastReading.Data != nil {
			desc = s.LastReading.Data.Describe()
		}
		fmt.Fprintf(&sb, "%s Channel %2d, Id %4d, Type %d %s (%s)\n",
			mark, s.Identity.Minor, s.Identity.Major, uint8(s.Type), s.Type, desc)
	}
	return sb.String()
}
