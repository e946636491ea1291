package gormrepo

import (
	"context"
	"fmt"

	"github.com/berfenger/rfxcom2mqtt/internal/core/domain"
	"github.com/berfenger/rfxcom2mqtt/internal/core/port"
	"github.com/berfenger/rfxcom2mqtt/internal/logging"
	"github.com/berfenger/rfxcom2mqtt/pkg/rfxcom"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	gormlogger "gorm.io/gorm/logger"
)

// Repository stores readings in per-type tables and keeps the sensor catalog.
type Repository struct {
	db *gorm.DB
}

var (
	_ port.ReadingStore  = (*Repository)(nil)
	_ port.SensorCatalog = (*Repository)(nil)
)

func New(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// Open connects to PostgreSQL and creates the tables when missing.
func Open(ctx context.Context, dsn string, logger *zap.Logger) (*Repository, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logging.NewGormLogger(logger, gormlogger.Warn),
	})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	repo := New(db)
	if err := repo.Migrate(ctx); err != nil {
		return nil, err
	}
	return repo, nil
}

func (r *Repository) Migrate(ctx context.Context) error {
	if err := r.db.WithContext(ctx).AutoMigrate(AllModels()...); err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

func (r *Repository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// StoreReading appends one row to the table of the reading type.
func (r *Repository) StoreReading(ctx context.Context, reading rfxcom.Reading, _ string) error {
	row, err := RowFor(reading)
	if err != nil {
		return err
	}
	return r.db.WithContext(ctx).Create(row).Error
}

func (r *Repository) LoadSensors(ctx context.Context) ([]domain.SensorRecord, error) {
	var rows []Sensor
	if err := r.db.WithContext(ctx).Order("id").Find(&rows).Error; err != nil {
		return nil, err
	}
	result := make([]domain.SensorRecord, 0, len(rows))
	for _, row := range rows {
		result = append(result, domain.SensorRecord{
			Identity:  rfxcom.SensorKey(row.ID).Identity(),
			Type:      rfxcom.SensorType(row.Type),
			Name:      row.Name,
			FirstSeen: row.CreatedAt,
		})
	}
	return result, nil
}

// SaveSensor inserts the sensor unless a row with the same id exists.
func (r *Repository) SaveSensor(ctx context.Context, sensor domain.SensorRecord) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "id"}},
			DoNothing: true,
		}).
		Create(sensorRow(sensor)).Error
}

// RenameSensor stores the name of sensor, creating its catalog row when the
// sensor was never registered.
func (r *Repository) RenameSensor(ctx context.Context, sensor domain.SensorRecord) error {
	return upsertName(r.db.WithContext(ctx), sensorRow(sensor)).Error
}

func upsertName(tx *gorm.DB, row *Sensor) *gorm.DB {
	return tx.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name", "updated_at"}),
	}).Create(row)
}

func sensorRow(sensor domain.SensorRecord) *Sensor {
	return &Sensor{
		ID:   int32(sensor.Key()),
		Type: int16(sensor.Type),
		Name: sensor.Name,
	}
}

// RowFor maps a reading onto its table model.
func RowFor(reading rfxcom.Reading) (any, error) {
	ts := reading.Timestamp
	sensor := int32(reading.Identity.Key())
	signal, battery := int16(reading.Signal), int16(reading.Battery)
	switch data := reading.Data.(type) {
	case rfxcom.TempHumidity:
		return &THData{TS: ts, Sensor: sensor, Temperature: data.Temperature, Humidity: int16(data.Humidity),
			Signal: signal, Battery: battery}, nil
	case rfxcom.Rain:
		return &RainData{TS: ts, Sensor: sensor, Rate: data.Rate, Total: data.Total,
			Signal: signal, Battery: battery}, nil
	case rfxcom.UV:
		return &UVData{TS: ts, Sensor: sensor, UV: int16(data.UV), Temperature: data.Temperature,
			ValidTemp: data.TemperatureValid, Signal: signal, Battery: battery}, nil
	case rfxcom.Wind:
		return &WindData{TS: ts, Sensor: sensor, Direction: int32(data.Direction), Average: data.Average,
			Instant: data.Instant, Temperature: data.Temperature, ChillFactor: data.Chill,
			ValidTemp: data.TemperatureValid, ValidChill: data.ChillValid, Signal: signal, Battery: battery}, nil
	default:
		return nil, fmt.Errorf("%w: no table for %s", rfxcom.ErrUnsupportedType, reading.Type)
	}
}
