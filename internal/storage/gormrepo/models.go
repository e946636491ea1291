package gormrepo

import "time"

// Sensor is the catalog row of one sensor.
type Sensor struct {
	ID        int32  `gorm:"column:id;primaryKey;autoIncrement:false"`
	Type      int16  `gorm:"column:type;not null"`
	Name      string `gorm:"column:name;not null"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (Sensor) TableName() string { return "sensors" }

type THData struct {
	TS          time.Time `gorm:"column:ts;not null;index"`
	Sensor      int32     `gorm:"column:sensor;not null;index"`
	Temperature float64   `gorm:"column:temperature;not null"`
	Humidity    int16     `gorm:"column:humidity;not null"`
	Signal      int16     `gorm:"column:signal;not null"`
	Battery     int16     `gorm:"column:battery;not null"`
}

func (THData) TableName() string { return "th_data" }

type RainData struct {
	TS      time.Time `gorm:"column:ts;not null;index"`
	Sensor  int32     `gorm:"column:sensor;not null;index"`
	Rate    float64   `gorm:"column:rate;not null"`
	Total   float64   `gorm:"column:total;not null"`
	Signal  int16     `gorm:"column:signal;not null"`
	Battery int16     `gorm:"column:battery;not null"`
}

func (RainData) TableName() string { return "rain_data" }

type UVData struct {
	TS          time.Time `gorm:"column:ts;not null;index"`
	Sensor      int32     `gorm:"column:sensor;not null;index"`
	UV          int16     `gorm:"column:uv;not null"`
	Temperature float64   `gorm:"column:temperature;not null"`
	ValidTemp   bool      `gorm:"column:validtemp;not null"`
	Signal      int16     `gorm:"column:signal;not null"`
	Battery     int16     `gorm:"column:battery;not null"`
}

func (UVData) TableName() string { return "uv_data" }

type WindData struct {
	TS          time.Time `gorm:"column:ts;not null;index"`
	Sensor      int32     `gorm:"column:sensor;not null;index"`
	Direction   int32     `gorm:"column:direction;not null"`
	Average     float64   `gorm:"column:average;not null"`
	Instant     float64   `gorm:"column:instant;not null"`
	Temperature float64   `gorm:"column:temperature;not null"`
	ChillFactor float64   `gorm:"column:chillfactor;not null"`
	ValidTemp   bool      `gorm:"column:validtemp;not null"`
	ValidChill  bool      `gorm:"column:validchill;not null"`
	Signal      int16     `gorm:"column:signal;not null"`
	Battery     int16     `gorm:"column:battery;not null"`
}

func (WindData) TableName() string { return "wind_data" }

// AllModels lists the models created by Migrate.
func AllModels() []any {
	return []any{&Sensor{}, &THData{}, &RainData{}, &UVData{}, &WindData{}}
}
