package web

import (
	"fmt"
	"html/template"
	"io"
	"log"
	"time"

	"github.com/sweeney/rangeguard/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"uptime": func(d time.Duration) string {
		d = d.Truncate(time.Second)
		days := int(d.Hours()) / 24
		h := int(d.Hours()) % 24
		m := int(d.Minutes()) % 60
		s := int(d.Seconds()) % 60
		if days > 0 {
			return fmt.Sprintf("%dd %dh %dm %ds", days, h, m, s)
		}
		if h > 0 {
			return fmt.Sprintf("%dh %dm %ds", h, m, s)
		}
		if m > 0 {
			return fmt.Sprintf("%dm %ds", m, s)
		}
		return fmt.Sprintf("%ds", s)
	},
	"meters": func(cm float64) string {
		return fmt.Sprintf("%.2f m", cm/100)
	},
	"flag": func(on bool) string {
		if on {
			return "ON"
		}
		return "OFF"
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="2">
<title>Range Guard</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.on { color: red; font-weight: bold; }
.warn { color: orange; font-weight: bold; }
.off { color: #888; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>Range Guard</h1>

<h2>Safety</h2>
<table>
<tr><th>Emergency</th><td id="emergency" class="{{if .Report.Status.Emergency}}on{{else}}off{{end}}">{{flag .Report.Status.Emergency}}</td></tr>
<tr><th>Warning</th><td id="warning" class="{{if .Report.Status.Warning}}warn{{else}}off{{end}}">{{flag .Report.Status.Warning}}</td></tr>
<tr><th>State</th><td id="state">{{.Report.Phase}}</td></tr>
</table>

<h2>Ranges</h2>
<table>
<tr><th>Left</th><td>{{meters (index .Report.Ranges 0)}}</td></tr>
<tr><th>Center</th><td>{{meters (index .Report.Ranges 1)}}</td></tr>
<tr><th>Right</th><td>{{meters (index .Report.Ranges 2)}}</td></tr>
<tr><th>Window</th><td>{{.Filled}}/{{.Window}}{{if .WarmingUp}} (warming up){{end}}</td></tr>
</table>

<h2>Connectivity</h2>
<table>
<tr><th>Serial</th><td class="{{if .SerialConnected}}connected{{else}}disconnected{{end}}">{{if .SerialConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Device</th><td>{{.Config.Serial}}</td></tr>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{.Config.Broker}}</td></tr>
{{if .Config.Redis}}<tr><th>Redis</th><td>{{.Config.Redis}}</td></tr>{{end}}
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}}: {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Counts</h2>
<table>
<tr><th>Emergency ON</th><td>{{.Counts.EmergencyOn}}</td></tr>
<tr><th>Emergency OFF</th><td>{{.Counts.EmergencyOff}}</td></tr>
<tr><th>Warning ON</th><td>{{.Counts.WarningOn}}</td></tr>
<tr><th>Warning OFF</th><td>{{.Counts.WarningOff}}</td></tr>
<tr><th>Stop signals</th><td>{{.Counts.StopSignals}}</td></tr>
<tr><th>Sample lines</th><td>{{.Lines.Samples}}</td></tr>
<tr><th>Dropped lines</th><td>{{.Lines.Dropped}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{uptime .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Boot ID</th><td>{{.BootID}}</td></tr>
<tr><th>Thresholds</th><td>emergency &lt; {{.Config.EmergencyCm}}cm, warning &lt; {{.Config.WarningCm}}cm</td></tr>
<tr><th>Delay / Hold</th><td>{{.Config.DelayMs}}ms / {{.Config.HoldMs}}ms</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{.Config.HeartbeatMs}}ms{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPPort}}</td></tr>
</table>

<p><a href="/index.json">JSON</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() and WarmingUp() methods but the template is
	// clearer with plain fields.
	data := struct {
		status.Snapshot
		Uptime    time.Duration
		WarmingUp bool
	}{
		Snapshot:  snap,
		Uptime:    snap.Uptime(),
		WarmingUp: snap.WarmingUp(),
	}
	if err := indexTmpl.Execute(w, data); err != nil {
		log.Printf("http: render index: %v", err)
	}
}
