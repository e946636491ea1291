package server

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/berfenger/rfxcom2mqtt/internal/core/domain"
	"github.com/berfenger/rfxcom2mqtt/internal/metrics"
	"github.com/berfenger/rfxcom2mqtt/pkg/rfxcom"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

type sensorSummary struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

type sensorDetail struct {
	Id          uint16       `json:"id"`
	Major       uint8        `json:"major"`
	Minor       uint8        `json:"minor"`
	Type        string       `json:"type"`
	Name        string       `json:"name"`
	FirstSeen   time.Time    `json:"first_seen"`
	LastChanged time.Time    `json:"last_changed"`
	Reading     *readingView `json:"reading,omitempty"`
}

type readingView struct {
	Subtype      uint8              `json:"subtype"`
	Signal       uint8              `json:"signal"`
	Battery      uint8              `json:"battery"`
	Timestamp    time.Time          `json:"timestamp"`
	Description  string             `json:"description"`
	Measurements map[string]float64 `json:"measurements"`
}

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	if s.httpLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())

	e.GET("/healthcheck", s.HealthCheckHandler)
	e.GET("/sensors", s.ListSensorsHandler)
	e.GET("/sensors/:type", s.ListSensorsHandler)
	e.GET("/sensor/:id", s.GetSensorHandler)
	e.POST("/sensor/update", s.RenameSensorHandler)
	if s.metrics != nil {
		e.GET("/metrics", echo.WrapHandler(metrics.Handler(s.metrics)))
	}

	return e
}

func (s *Server) HealthCheckHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.ActorHealthRequest{}, 10*time.Second).Result()
	if err != nil {
		return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
	}
	if response, ok := res.(domain.ActorHealthResponse); ok && response.Healthy {
		return c.String(http.StatusOK, "health_check: OK")
	}
	return c.String(http.StatusServiceUnavailable, "health_check: FAIL")
}

func (s *Server) ListSensorsHandler(c echo.Context) error {
	var filter *rfxcom.SensorType
	if param := c.Param("type"); param != "" {
		sensorType, err := rfxcom.ParseSensorType(param)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, err.Error())
		}
		filter = &sensorType
	}
	result := make(map[string]sensorSummary)
	for _, rec := range s.registry.List(filter) {
		result[strconv.Itoa(int(rec.Key()))] = sensorSummary{Name: rec.Name, Type: rec.Type.String()}
	}
	return c.JSON(http.StatusOK, result)
}

func (s *Server) GetSensorHandler(c echo.Context) error {
	key, err := parseKey(c.Param("id"))
	if err != nil {
		return err
	}
	rec, ok := s.registry.Get(key)
	if !ok {
		return c.JSON(http.StatusOK, struct{}{})
	}
	return c.JSON(http.StatusOK, detail(rec))
}

func (s *Server) RenameSensorHandler(c echo.Context) error {
	key, err := parseKey(c.FormValue("id"))
	if err != nil {
		return err
	}
	err = s.registry.Rename(c.Request().Context(), key, c.FormValue("name"))
	if errors.Is(err, domain.ErrUnknownSensor) {
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	} else if err != nil {
		return echo.NewHTTPError(http.StatusInternalServerError, err.Error())
	}
	rec, _ := s.registry.Get(key)
	return c.JSON(http.StatusOK, detail(rec))
}

func parseKey(s string) (rfxcom.SensorKey, error) {
	id, err := strconv.ParseUint(s, 10, 16)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid sensor id")
	}
	return rfxcom.SensorKey(id), nil
}

func detail(rec domain.SensorRecord) sensorDetail {
	d := sensorDetail{
		Id:          uint16(rec.Key()),
		Major:       rec.Identity.Major,
		Minor:       rec.Identity.Minor,
		Type:        rec.Type.String(),
		Name:        rec.Name,
		FirstSeen:   rec.FirstSeen,
		LastChanged: rec.LastChanged,
	}
	if r := rec.LastReading; r != nil {
		d.Reading = &readingView{
			Subtype:      r.Subtype,
			Signal:       r.Signal,
			Battery:      r.Battery,
			Timestamp:    r.Timestamp,
			Description:  r.String(),
			Measurements: make(map[string]float64),
		}
		for k, v := range r.Measurements() {
			d.Reading.Measurements[k] = v.Number
		}
	}
	return d
}
