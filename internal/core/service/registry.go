package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/berfenger/rfxcom2mqtt/internal/core/domain"
	"github.com/berfenger/rfxcom2mqtt/internal/core/port"
	"github.com/berfenger/rfxcom2mqtt/pkg/rfxcom"

	"go.uber.org/zap"
)

// SensorRegistry keeps the last reading and metadata of every sensor seen.
// The pipeline is its only writer; the query surface reads it concurrently.
type SensorRegistry struct {
	mu      sync.RWMutex
	sensors map[rfxcom.SensorKey]*domain.SensorRecord
	catalog port.SensorCatalog
	logger  *zap.Logger
}

// NewSensorRegistry creates an empty registry. catalog may be nil, then
// renames only live in memory.
func NewSensorRegistry(catalog port.SensorCatalog, logger *zap.Logger) *SensorRegistry {
	return &SensorRegistry{
		sensors: make(map[rfxcom.SensorKey]*domain.SensorRecord),
		catalog: catalog,
		logger:  logger.With(zap.String("component", "registry")),
	}
}

// Preload seeds records (names, types) loaded from the catalog.
func (r *SensorRegistry) Preload(records []domain.SensorRecord) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for i := range records {
		rec := records[i]
		rec.LastReading = nil
		if rec.Name == "" {
			rec.Name = rec.Identity.Label()
		}
		r.sensors[rec.Key()] = &rec
	}
	r.logger.Debug("registry preloaded", zap.Int("sensors", len(records)))
}

// Observe stores reading and reports whether it differs from the last one
// of the same sensor. An unchanged reading leaves the record untouched.
func (r *SensorRegistry) Observe(reading rfxcom.Reading) (domain.SensorRecord, bool) {
	key := reading.Identity.Key()
	ts := reading.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.sensors[key]
	if !ok {
		rec = &domain.SensorRecord{
			Identity:  reading.Identity,
			Type:      reading.Type,
			Name:      reading.Identity.Label(),
			FirstSeen: ts,
		}
		r.sensors[key] = rec
	} else if rec.LastReading != nil && rec.LastReading.SameValues(reading) {
		return copyRecord(rec), false
	}

	if rec.FirstSeen.IsZero() {
		rec.FirstSeen = ts
	}
	stored := reading
	rec.Type = reading.Type
	rec.LastReading = &stored
	rec.LastChanged = ts
	return copyRecord(rec), true
}

// Known reports whether key has a record, either observed or preloaded.
func (r *SensorRegistry) Known(key rfxcom.SensorKey) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.sensors[key]
	return ok
}

func (r *SensorRegistry) Get(key rfxcom.SensorKey) (domain.SensorRecord, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rec, ok := r.sensors[key]
	if !ok {
		return domain.SensorRecord{}, false
	}
	return copyRecord(rec), true
}

// List returns every record sorted by key, optionally only those of one type.
func (r *SensorRegistry) List(filter *rfxcom.SensorType) []domain.SensorRecord {
	r.mu.RLock()
	result := make([]domain.SensorRecord, 0, len(r.sensors))
	for _, rec := range r.sensors {
		if filter != nil && rec.Type != *filter {
			continue
		}
		result = append(result, copyRecord(rec))
	}
	r.mu.RUnlock()

	sort.Slice(result, func(i, j int) bool {
		return result[i].Key() < result[j].Key()
	})
	return result
}

// Rename changes the display name of a sensor. An empty name is a no-op.
// The catalog is written first; memory is left untouched if that fails.
func (r *SensorRegistry) Rename(ctx context.Context, key rfxcom.SensorKey, name string) error {
	if name == "" {
		return nil
	}
	renamed, ok := r.Get(key)
	if !ok {
		return fmt.Errorf("%w: %d", domain.ErrUnknownSensor, key)
	}
	renamed.Name = name
	if r.catalog != nil {
		if err := r.catalog.RenameSensor(ctx, renamed); err != nil {
			return fmt.Errorf("rename sensor %d: %w", key, err)
		}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.sensors[key]
	if !ok {
		return fmt.Errorf("%w: %d", domain.ErrUnknownSensor, key)
	}
	rec.Name = name
	r.logger.Info("sensor renamed", zap.Uint16("sensor", uint16(key)), zap.String("name", name))
	return nil
}

func (r *SensorRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sensors)
}

func copyRecord(rec *domain.SensorRecord) domain.SensorRecord {
	c := *rec
	if rec.LastReading != nil {
		reading := *rec.LastReading
		c.LastReading = &reading
	}
	return c
}
