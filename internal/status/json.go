package status

import (
	"encoding/json"
	"fmt"
	"time"
)

// StatusJSON is the top-level JSON envelope for status output.
type StatusJSON struct {
	Status StatusInner `json:"status"`
}

// StatusInner contains the status details.
type StatusInner struct {
	Event         string       `json:"event,omitempty"`
	Reason        string       `json:"reason,omitempty"`
	Reading       *ReadingJSON `json:"reading"`
	Ready         bool         `json:"ready"`
	Lost          bool         `json:"sensor_lost"`
	LastAttempt   *AttemptJSON `json:"last_attempt,omitempty"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"counts"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// ReadingJSON is the latest good reading.
type ReadingJSON struct {
	TemperatureC float64 `json:"temperature_c"`
	HumidityPct  float64 `json:"humidity_pct"`
	RecordedAt   string  `json:"recorded_at"`
	AgeSeconds   int64   `json:"age_seconds"`
}

// AttemptJSON describes the most recent attempt.
type AttemptJSON struct {
	Timestamp string `json:"timestamp"`
	Outcome   string `json:"outcome"`
	Edges     int    `json:"edges"`
	Bits      int    `json:"bits"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of policy counts.
type CountsJSON struct {
	Readings  int `json:"readings"`
	Failures  int `json:"failures"`
	Published int `json:"published"`
	Lost      int `json:"lost"`
}

// NetworkJSON is the JSON representation of network info.
type NetworkJSON struct {
	Type       string `json:"type"`
	IP         string `json:"ip"`
	Status     string `json:"status"`
	Gateway    string `json:"gateway"`
	WifiStatus string `json:"wifi_status"`
	SSID       string `json:"ssid"`
}

// ConfigJSON is the JSON representation of daemon config.
type ConfigJSON struct {
	Chip        string `json:"chip"`
	Pin         int    `json:"pin"`
	Backend     string `json:"backend"`
	IntervalMs  int64  `json:"interval_ms"`
	WindowMs    int64  `json:"window_ms"`
	MaxEdges    int    `json:"max_edges"`
	HeartbeatMs int64  `json:"heartbeat_ms"`
	Broker      string `json:"broker"`
	HTTPAddr    string `json:"http_addr"`
}

func buildInner(snap Snapshot) StatusInner {
	inner := StatusInner{
		Ready:         snap.HasReading,
		Lost:          snap.Lost,
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			Readings:  snap.Counts.Readings,
			Failures:  snap.Counts.Failures,
			Published: snap.Counts.Published,
			Lost:      snap.Counts.Lost,
		},
		Config: ConfigJSON{
			Chip:        snap.Config.Chip,
			Pin:         snap.Config.Pin,
			Backend:     snap.Config.Backend,
			IntervalMs:  snap.Config.IntervalMs,
			WindowMs:    snap.Config.WindowMs,
			MaxEdges:    snap.Config.MaxEdges,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			HTTPAddr:    snap.Config.HTTPAddr,
		},
	}
	if snap.HasReading {
		inner.Reading = &ReadingJSON{
			TemperatureC: snap.Reading.Celsius(),
			HumidityPct:  snap.Reading.RelativeHumidity(),
			RecordedAt:   snap.RecordedAt.UTC().Format(time.RFC3339),
			AgeSeconds:   int64(snap.Age().Truncate(time.Second).Seconds()),
		}
	}
	if !snap.LastAttempt.Time.IsZero() {
		inner.LastAttempt = &AttemptJSON{
			Timestamp: snap.LastAttempt.Time.UTC().Format(time.RFC3339),
			Outcome:   snap.LastAttempt.Outcome,
			Edges:     snap.LastAttempt.Edges,
			Bits:      snap.LastAttempt.Bits,
		}
	}
	return inner
}

func buildNetwork(snap Snapshot, inner *StatusInner) {
	if snap.Network != nil {
		inner.Network = &NetworkJSON{
			Type:       snap.Network.Type,
			IP:         snap.Network.IP,
			Status:     snap.Network.Status,
			Gateway:    snap.Network.Gateway,
			WifiStatus: snap.Network.WifiStatus,
			SSID:       snap.Network.SSID,
		}
	}
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	inner := buildInner(snap)
	buildNetwork(snap, &inner)

	data, _ := json.MarshalIndent(StatusJSON{Status: inner}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason
	buildNetwork(snap, &inner)

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}

// FormatText returns the latest reading as a single key=value line,
// or "no reading yet" before the first success.
func FormatText(snap Snapshot) string {
	if !snap.HasReading {
		return "no reading yet\n"
	}
	return fmt.Sprintf("temperature=%.1f humidity=%.1f recorded=%s\n",
		snap.Reading.Celsius(),
		snap.Reading.RelativeHumidity(),
		snap.RecordedAt.UTC().Format(time.RFC3339))
}
