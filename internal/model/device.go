package model

import (
	"math"
	"strings"
	"time"
)

// Defaults applied to device configuration.
const (
	DefaultCapacity       = 5000
	DefaultHeight         = 100
	DefaultAlertThreshold = 10
	DefaultLocation       = "Central Fleet"
	UnknownLocation       = "Unknown"

	// FullLevel is the high-water mark in percent.
	FullLevel = 95
)

// DeviceRecord is a durable tank record created on pairing.
type DeviceRecord struct {
	ID             string `json:"id"`
	Name           string `json:"name"`
	Location       string `json:"location"`
	Capacity       int    `json:"capacity"`
	Height         int    `json:"height"`
	AlertThreshold int    `json:"alertThreshold"`
	Secret         string `json:"-"`
	HardwareID     string `json:"deviceId,omitempty"`
	IP             string `json:"ipAddress,omitempty"`
}

// Status reported by a device or assigned by the hub.
type Status string

const (
	StatusOnline  Status = "online"
	StatusOffline Status = "offline"
)

// Nominal reports whether the device itself claims to work normally.
func (s Status) Nominal() bool {
	return strings.EqualFold(string(s), string(StatusOnline))
}

// Band is a water level classification used to edge-trigger alerts.
type Band uint8

const (
	BandNone Band = iota
	BandLow
	BandFull
)

func (b Band) String() string {
	switch b {
	case BandNone:
		return "none"
	case BandLow:
		return "low"
	case BandFull:
		return "full"
	default:
		return "undefined"
	}
}

// LiveState is the in-memory status of one device. It is keyed by the
// device secret and never leaves the process as is, see PublicView.
type LiveState struct {
	ID             string
	Name           string
	Location       string
	Capacity       int
	Height         int
	AlertThreshold int

	Level    int
	Volume   int
	Status   Status
	Online   bool
	LastSeen time.Time
	RSSI     *int
	Band     Band
}

// NewLiveState makes an offline state for the record.
func NewLiveState(rec DeviceRecord) LiveState {
	s := LiveState{
		Status: StatusOffline,
	}
	s.ApplyRecord(rec)

	return s
}

// ApplyRecord refreshes configuration fields from the durable record,
// leaving observed fields untouched.
func (s *LiveState) ApplyRecord(rec DeviceRecord) {
	s.ID = rec.ID
	s.Name = rec.Name
	s.Location = rec.Location
	if s.Location == "" {
		s.Location = UnknownLocation
	}

	s.Capacity = rec.Capacity
	s.Height = rec.Height
	if s.Height <= 0 {
		s.Height = DefaultHeight
	}

	s.AlertThreshold = rec.AlertThreshold
	s.Volume = VolumeOf(s.Level, s.Capacity)
}

// VolumeOf computes the volume of water for level percent of capacity.
func VolumeOf(level, capacity int) int {
	return int(math.Round(float64(level) / 100 * float64(capacity)))
}

// Classify returns the alert band for the state.
func (s LiveState) Classify() Band {
	if !s.Status.Nominal() {
		return BandNone
	}

	switch {
	case s.Level < s.AlertThreshold:
		return BandLow
	case s.Level >= FullLevel:
		return BandFull
	default:
		return BandNone
	}
}

// Public projects the state into the externally visible view.
func (s LiveState) Public() PublicView {
	v := PublicView{
		ID:       s.ID,
		Name:     s.Name,
		Location: s.Location,
		Level:    s.Level,
		Volume:   s.Volume,
		Capacity: s.Capacity,
		Status:   s.Status,
		Online:   s.Online,
		Updated:  "Offline",
	}

	if s.RSSI != nil {
		rssi := *s.RSSI
		v.RSSI = &rssi
	}

	if s.Online {
		v.Updated = "Live"
	}

	return v
}

// PublicView is the projection of LiveState sent to observers.
type PublicView struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Location string `json:"location"`
	Level    int    `json:"level"`
	Volume   int    `json:"volume"`
	Capacity int    `json:"capacity"`
	Status   Status `json:"status"`
	Online   bool   `json:"isOnline"`
	RSSI     *int   `json:"rssi,omitempty"`
	Updated  string `json:"lastUpdated"`
}

// Equal compares two views by value.
func (v PublicView) Equal(o PublicView) bool {
	if (v.RSSI == nil) != (o.RSSI == nil) {
		return false
	}

	if v.RSSI != nil && *v.RSSI != *o.RSSI {
		return false
	}

	v.RSSI, o.RSSI = nil, nil

	return v == o
}

// HistorySample is a level reading persisted for analytics.
type HistorySample struct {
	DeviceID  string `json:"tankId"`
	Level     int    `json:"level"`
	Timestamp int64  `json:"timestamp"`
}

// ConfigPatch carries a partial configuration update. Nil fields are left
// unchanged.
type ConfigPatch struct {
	Name           *string
	Location       *string
	Capacity       *int
	Height         *int
	AlertThreshold *int
}

// Validate checks the values of the patch.
func (p ConfigPatch) Validate() error {
	if p.Name != nil && strings.TrimSpace(*p.Name) == "" {
		return ErrInvalidConfig
	}

	if p.Capacity != nil && *p.Capacity <= 0 {
		return ErrInvalidConfig
	}

	if p.Height != nil && *p.Height <= 0 {
		return ErrInvalidConfig
	}

	if p.AlertThreshold != nil && (*p.AlertThreshold < 0 || *p.AlertThreshold > 100) {
		return ErrInvalidConfig
	}

	return nil
}

// Empty reports whether the patch changes nothing.
func (p ConfigPatch) Empty() bool {
	return p.Name == nil && p.Location == nil && p.Capacity == nil && p.Height == nil && p.AlertThreshold == nil
}

// ApplyTo merges the patch into the record.
func (p ConfigPatch) ApplyTo(rec *DeviceRecord) {
	if p.Name != nil {
		rec.Name = *p.Name
	}

	if p.Location != nil {
		rec.Location = *p.Location
	}

	if p.Capacity != nil {
		rec.Capacity = *p.Capacity
	}

	if p.Height != nil {
		rec.Height = *p.Height
	}

	if p.AlertThreshold != nil {
		rec.AlertThreshold = *p.AlertThreshold
	}
}

// ApplyConfig merges the patch into the state and recomputes the volume.
func (s *LiveState) ApplyConfig(p ConfigPatch) {
	if p.Name != nil {
		s.Name = *p.Name
	}

	if p.Location != nil {
		s.Location = *p.Location
	}

	if p.Capacity != nil {
		s.Capacity = *p.Capacity
	}

	if p.Height != nil {
		s.Height = *p.Height
	}

	if p.AlertThreshold != nil {
		s.AlertThreshold = *p.AlertThreshold
	}

	s.Volume = VolumeOf(s.Level, s.Capacity)
}
