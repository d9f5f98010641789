package server

import (
	"net/http"
	"time"

	"github.com/berfenger/webbox2mqtt/internal/core/domain"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
)

func (s *Server) RegisterRoutes() http.Handler {
	e := echo.New()
	if s.httpLog {
		e.Use(middleware.Logger())
	}
	e.Use(middleware.Recover())

	e.GET("/healthcheck", s.HealthCheckHandler)
	e.GET("/snapshot", s.SnapshotHandler)

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

type snapshotReadingDTO struct {
	Device  string   `json:"device"`
	Channel string   `json:"channel"`
	Source  string   `json:"source"`
	Name    string   `json:"name,omitempty"`
	Value   *float64 `json:"value,omitempty"`
	Text    string   `json:"text,omitempty"`
	Unit    string   `json:"unit,omitempty"`
	Valid   bool     `json:"valid"`
}

type snapshotDTO struct {
	State    string               `json:"state"`
	TakenAt  *time.Time           `json:"taken_at,omitempty"`
	Readings []snapshotReadingDTO `json:"readings"`
}

// SnapshotHandler serves the latest published snapshot as JSON, in walk
// order. Before the first successful poll it returns an empty reading set.
func (s *Server) SnapshotHandler(c echo.Context) error {
	res, err := s.rootContext.RequestFuture(s.masterActor, domain.GetSnapshotRequest{}, 10*time.Second).Result()
	if err != nil {
		return c.String(http.StatusServiceUnavailable, "snapshot: FAIL")
	}
	response, ok := res.(domain.GetSnapshotResponse)
	if !ok {
		return c.String(http.StatusServiceUnavailable, "snapshot: FAIL")
	}

	dto := snapshotDTO{
		State:    response.PollerState,
		Readings: []snapshotReadingDTO{},
	}
	if response.Snapshot != nil {
		takenAt := response.Snapshot.TakenAt
		dto.TakenAt = &takenAt
		for _, key := range response.Snapshot.Keys {
			src, _ := response.Snapshot.Get(key)
			reading := snapshotReadingDTO{
				Device:  key.Device,
				Channel: key.Channel,
				Source:  key.Source,
				Name:    src.Name,
				Text:    src.Text,
				Unit:    src.Unit,
				Valid:   src.Valid,
			}
			if src.Numeric() {
				value := src.Value
				reading.Value = &value
			}
			dto.Readings = append(dto.Readings, reading)
		}
	}
	return c.JSON(http.StatusOK, dto)
}
