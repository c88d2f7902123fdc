package healthcheck

import (
	"encoding/json"
	"fmt"
	"math"
	"time"
)

type Status int

const (
	StatusDown Status = iota
	StatusActive
)

func (s Status) String() string {
	switch s {
	case StatusActive:
		return "Active"
	case StatusDown:
		return "Down"
	default:
		return "Unknown"
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *Status) UnmarshalText(text []byte) error {
	switch string(text) {
	case "Active":
		*s = StatusActive
	case "Down":
		*s = StatusDown
	default:
		return fmt.Errorf("unknown status %q", text)
	}
	return nil
}

// InstanceHealth is the outcome of the most recent probe of one URL.
type InstanceHealth struct {
	URL            string
	Healthy        bool
	LastCheck      time.Time
	ResponseTimeMs float64
	Status         Status
	Protocol       string
}

func down(url string, at time.Time) InstanceHealth {
	return InstanceHealth{
		URL:            url,
		Healthy:        false,
		LastCheck:      at,
		ResponseTimeMs: math.Inf(1),
		Status:         StatusDown,
		Protocol:       "N/A",
	}
}

// Stale reports whether the record is older than window at now.
func (h InstanceHealth) Stale(window time.Duration, now time.Time) bool {
	return now.Sub(h.LastCheck) > window
}

type healthJSON struct {
	URL            string    `json:"url"`
	Healthy        bool      `json:"healthy"`
	LastCheck      time.Time `json:"last_check"`
	ResponseTimeMs *float64  `json:"response_time_ms"`
	Status         Status    `json:"status"`
	Protocol       string    `json:"protocol"`
}

// MarshalJSON writes an infinite response time as null.
func (h InstanceHealth) MarshalJSON() ([]byte, error) {
	out := healthJSON{
		URL:       h.URL,
		Healthy:   h.Healthy,
		LastCheck: h.LastCheck,
		Status:    h.Status,
		Protocol:  h.Protocol,
	}
	if !math.IsInf(h.ResponseTimeMs, 0) && !math.IsNaN(h.ResponseTimeMs) {
		rt := h.ResponseTimeMs
		out.ResponseTimeMs = &rt
	}
	return json.Marshal(out)
}

func (h *InstanceHealth) UnmarshalJSON(data []byte) error {
	var in healthJSON
	if err := json.Unmarshal(data, &in); err != nil {
		return err
	}

	*h = InstanceHealth{
		URL:            in.URL,
		Healthy:        in.Healthy,
		LastCheck:      in.LastCheck,
		ResponseTimeMs: math.Inf(1),
		Status:         in.Status,
		Protocol:       in.Protocol,
	}
	if in.ResponseTimeMs != nil {
		h.ResponseTimeMs = *in.ResponseTimeMs
	}
	return nil
}
