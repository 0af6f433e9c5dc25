package status

import (
	"encoding/json"
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
	Emergency     bool         `json:"emergency"`
	Warning       bool         `json:"warning"`
	State         string       `json:"state"`
	Ranges        RangesJSON   `json:"ranges"`
	Fusion        FusionJSON   `json:"fusion"`
	UptimeSeconds int64        `json:"uptime_seconds"`
	StartTime     string       `json:"start_time"`
	Timestamp     string       `json:"timestamp"`
	BootID        string       `json:"boot_id"`
	Serial        SerialStatus `json:"serial"`
	MQTT          MQTTStatus   `json:"mqtt"`
	Counts        CountsJSON   `json:"event_counts"`
	Lines         LinesJSON    `json:"line_counts"`
	Network       *NetworkJSON `json:"network,omitempty"`
	Config        ConfigJSON   `json:"config"`
}

// RangesJSON holds fused distances in meters.
type RangesJSON struct {
	Left   float64 `json:"left"`
	Center float64 `json:"center"`
	Right  float64 `json:"right"`
}

// FusionJSON reports ring fill during warm-up.
type FusionJSON struct {
	Filled    int  `json:"filled"`
	Window    int  `json:"window"`
	WarmingUp bool `json:"warming_up"`
}

// SerialStatus reports line source state.
type SerialStatus struct {
	Connected bool   `json:"connected"`
	Device    string `json:"device"`
}

// MQTTStatus reports MQTT connection state.
type MQTTStatus struct {
	Connected bool   `json:"connected"`
	Broker    string `json:"broker"`
}

// CountsJSON is the JSON representation of event counts.
type CountsJSON struct {
	EmergencyOn  int `json:"emergency_on"`
	EmergencyOff int `json:"emergency_off"`
	WarningOn    int `json:"warning_on"`
	WarningOff   int `json:"warning_off"`
	StopSignals  int `json:"stop_signals"`
}

// LinesJSON is the JSON representation of ingest line counts.
type LinesJSON struct {
	Samples int `json:"samples"`
	Stops   int `json:"stops"`
	Dropped int `json:"dropped"`
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
	EmergencyCm float64 `json:"emergency_threshold_cm"`
	WarningCm   float64 `json:"warning_threshold_cm"`
	Window      int     `json:"fusion_window_size"`
	DelayMs     int64   `json:"emergency_delay_ms"`
	HoldMs      int64   `json:"emergency_hold_ms"`
	PublishMs   int64   `json:"status_publish_ms"`
	TickMs      int64   `json:"tick_ms"`
	HeartbeatMs int64   `json:"heartbeat_ms"`
	Broker      string  `json:"broker"`
	Redis       string  `json:"redis,omitempty"`
	HTTPPort    string  `json:"http_port"`
}

func buildInner(snap Snapshot) StatusInner {
	m := snap.Report.Ranges.Meters()
	state := string(snap.Report.Phase)
	if state == "" {
		state = "UNKNOWN"
	}

	inner := StatusInner{
		Emergency: snap.Report.Status.Emergency,
		Warning:   snap.Report.Status.Warning,
		State:     state,
		Ranges:    RangesJSON{Left: m[0], Center: m[1], Right: m[2]},
		Fusion: FusionJSON{
			Filled:    snap.Filled,
			Window:    snap.Window,
			WarmingUp: snap.WarmingUp(),
		},
		UptimeSeconds: int64(snap.Uptime().Truncate(time.Second).Seconds()),
		StartTime:     snap.StartTime.UTC().Format(time.RFC3339),
		Timestamp:     snap.Now.UTC().Format(time.RFC3339),
		BootID:        snap.BootID,
		Serial:        SerialStatus{Connected: snap.SerialConnected, Device: snap.Config.Serial},
		MQTT:          MQTTStatus{Connected: snap.MQTTConnected, Broker: snap.Config.Broker},
		Counts: CountsJSON{
			EmergencyOn:  snap.Counts.EmergencyOn,
			EmergencyOff: snap.Counts.EmergencyOff,
			WarningOn:    snap.Counts.WarningOn,
			WarningOff:   snap.Counts.WarningOff,
			StopSignals:  snap.Counts.StopSignals,
		},
		Lines: LinesJSON{
			Samples: snap.Lines.Samples,
			Stops:   snap.Lines.Stops,
			Dropped: snap.Lines.Dropped,
		},
		Config: ConfigJSON{
			EmergencyCm: snap.Config.EmergencyCm,
			WarningCm:   snap.Config.WarningCm,
			Window:      snap.Config.Window,
			DelayMs:     snap.Config.DelayMs,
			HoldMs:      snap.Config.HoldMs,
			PublishMs:   snap.Config.PublishMs,
			TickMs:      snap.Config.TickMs,
			HeartbeatMs: snap.Config.HeartbeatMs,
			Broker:      snap.Config.Broker,
			Redis:       snap.Config.Redis,
			HTTPPort:    snap.Config.HTTPPort,
		},
	}

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
	return inner
}

// FormatJSON returns the JSON status for the web endpoint (no event/reason).
func FormatJSON(snap Snapshot) []byte {
	data, _ := json.MarshalIndent(StatusJSON{Status: buildInner(snap)}, "", "  ")
	return data
}

// FormatStatusEvent returns the JSON status for an MQTT system event.
func FormatStatusEvent(snap Snapshot, event, reason string) []byte {
	inner := buildInner(snap)
	inner.Event = event
	inner.Reason = reason

	data, _ := json.Marshal(StatusJSON{Status: inner})
	return data
}
