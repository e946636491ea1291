package service

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/berfenger/rfxcom2mqtt/internal/core/domain"
	"github.com/berfenger/rfxcom2mqtt/pkg/rfxcom"

	"go.uber.org/zap"
)

var placeholderRegexp = regexp.MustCompile(`\{([^}]+)\}`)

// TopicRouter resolves route rules against readings. It keeps the last
// value published per resolved topic and only emits changes. Not safe for
// concurrent use: the pipeline goroutine owns it.
type TopicRouter struct {
	rules         map[rfxcom.SensorKey][]domain.RouteRule
	lastPublished map[string]string
	logger        *zap.Logger
}

func NewTopicRouter(rules []domain.RouteRule, logger *zap.Logger) *TopicRouter {
	r := &TopicRouter{
		rules:         make(map[rfxcom.SensorKey][]domain.RouteRule),
		lastPublished: make(map[string]string),
		logger:        logger.With(zap.String("component", "router")),
	}
	for _, rule := range rules {
		key := rule.Identity.Key()
		r.rules[key] = append(r.rules[key], rule)
	}
	return r
}

func (r *TopicRouter) HasRoute(id rfxcom.Identity) bool {
	return len(r.rules[id.Key()]) > 0
}

func (r *TopicRouter) Rules(id rfxcom.Identity) []domain.RouteRule {
	return append([]domain.RouteRule(nil), r.rules[id.Key()]...)
}

// Route returns the publications of reading in rule order, skipping those
// whose topic already carries the same value.
func (r *TopicRouter) Route(reading rfxcom.Reading) []domain.Publication {
	rules := r.rules[reading.Identity.Key()]
	if len(rules) == 0 {
		return nil
	}
	fields := reading.Measurements()
	var result []domain.Publication
	for _, rule := range rules {
		pub, err := Resolve(rule.TopicTemplate, fields)
		if err != nil {
			r.logger.Warn("route skipped",
				zap.String("sensor", reading.Identity.Label()),
				zap.Int("line", rule.Line),
				zap.Error(err))
			continue
		}
		payload := pub.Payload()
		if last, ok := r.lastPublished[pub.Topic]; ok && last == payload {
			continue
		}
		r.lastPublished[pub.Topic] = payload
		result = append(result, pub)
	}
	return result
}

// Resolve substitutes every {field} of template and splits the result on
// its last ':' into a topic and the measurement whose value is published.
func Resolve(template string, fields map[string]rfxcom.Value) (domain.Publication, error) {
	var missing string
	resolved := placeholderRegexp.ReplaceAllStringFunc(template, func(m string) string {
		key := rfxcom.CanonicalMeasurement(m[1 : len(m)-1])
		v, ok := fields[key]
		if !ok {
			if missing == "" {
				missing = key
			}
			return m
		}
		return v.String()
	})
	if missing != "" {
		return domain.Publication{}, fmt.Errorf("%w %q in %q", domain.ErrInvalidRouteKey, missing, template)
	}

	sep := strings.LastIndex(resolved, ":")
	if sep < 0 {
		return domain.Publication{}, fmt.Errorf("%w: no value field in %q", domain.ErrInvalidRouteKey, template)
	}
	topic, selector := resolved[:sep], rfxcom.CanonicalMeasurement(strings.TrimSpace(resolved[sep+1:]))
	value, ok := fields[selector]
	if !ok {
		return domain.Publication{}, fmt.Errorf("%w %q in %q", domain.ErrInvalidRouteKey, selector, template)
	}
	return domain.Publication{Topic: topic, Measurement: selector, Value: value}, nil
}
