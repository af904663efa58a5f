package web

import (
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/sweeney/am2302-sensor/internal/status"
)

var indexTmpl = template.Must(template.New("index").Funcs(template.FuncMap{
	"duration": func(d time.Duration) string {
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
	"ms": func(ms int64) string {
		return (time.Duration(ms) * time.Millisecond).String()
	},
	"tenths": func(v float64) string {
		return fmt.Sprintf("%.1f", v)
	},
}).Parse(indexHTML))

const indexHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<meta http-equiv="refresh" content="10">
<title>AM2302 Sensor</title>
<style>
body { font-family: monospace; max-width: 600px; margin: 2em auto; padding: 0 1em; }
h1 { font-size: 1.4em; }
table { border-collapse: collapse; width: 100%; margin: 1em 0; }
td, th { text-align: left; padding: 4px 8px; border-bottom: 1px solid #ddd; }
th { width: 40%; }
.big { font-size: 1.6em; font-weight: bold; }
.ok { color: green; }
.lost { color: red; font-weight: bold; }
.unknown { color: orange; }
.connected { color: green; }
.disconnected { color: red; }
</style>
</head>
<body>
<h1>AM2302 Sensor</h1>

<h2>Reading</h2>
<table>
{{if .HasReading}}<tr><th>Temperature</th><td id="temperature" class="big">{{tenths .Reading.Celsius}} °C</td></tr>
<tr><th>Humidity</th><td id="humidity" class="big">{{tenths .Reading.RelativeHumidity}} %RH</td></tr>
<tr><th>Recorded</th><td>{{.RecordedAt.UTC.Format "2006-01-02T15:04:05Z"}} ({{duration .Age}} ago)</td></tr>
{{else}}<tr><th>Temperature</th><td id="temperature" class="unknown">no reading yet</td></tr>
{{end}}<tr><th>Sensor</th><td class="{{if .Lost}}lost{{else if .HasReading}}ok{{else}}unknown{{end}}">{{if .Lost}}LOST{{else if .HasReading}}OK{{else}}WAITING{{end}}</td></tr>
{{if not .LastAttempt.Time.IsZero}}<tr><th>Last attempt</th><td>{{.LastAttempt.Outcome}} ({{.LastAttempt.Edges}} edges, {{.LastAttempt.Bits}} bits)</td></tr>{{end}}
</table>

<h2>Connectivity</h2>
<table>
<tr><th>MQTT</th><td class="{{if .MQTTConnected}}connected{{else}}disconnected{{end}}">{{if .MQTTConnected}}connected{{else}}disconnected{{end}}</td></tr>
<tr><th>Broker</th><td>{{if .Config.Broker}}{{.Config.Broker}}{{else}}disabled{{end}}</td></tr>
{{if .Network}}<tr><th>Network</th><td>{{.Network.Status}} ({{.Network.Type}}{{if .Network.SSID}} {{.Network.SSID}}{{end}})</td></tr>
<tr><th>IP</th><td>{{.Network.IP}}</td></tr>{{end}}
</table>

<h2>Counts</h2>
<table>
<tr><th>Readings</th><td>{{.Counts.Readings}}</td></tr>
<tr><th>Failures</th><td>{{.Counts.Failures}}</td></tr>
<tr><th>Published</th><td>{{.Counts.Published}}</td></tr>
<tr><th>Lost</th><td>{{.Counts.Lost}}</td></tr>
</table>

<h2>System</h2>
<table>
<tr><th>Uptime</th><td>{{duration .Uptime}}</td></tr>
<tr><th>Started</th><td>{{.StartTime.UTC.Format "2006-01-02T15:04:05Z"}}</td></tr>
<tr><th>Line</th><td>{{.Config.Chip}} line {{.Config.Pin}} ({{.Config.Backend}})</td></tr>
<tr><th>Interval</th><td>{{ms .Config.IntervalMs}}</td></tr>
<tr><th>Window</th><td>{{ms .Config.WindowMs}}, {{.Config.MaxEdges}} edges</td></tr>
<tr><th>Heartbeat</th><td>{{if eq .Config.HeartbeatMs 0}}disabled{{else}}{{ms .Config.HeartbeatMs}}{{end}}</td></tr>
<tr><th>HTTP</th><td>{{.Config.HTTPAddr}}</td></tr>
</table>

<p><a href="/index.json">JSON</a> · <a href="/reading">text</a> · <a href="/metrics">metrics</a></p>
</body>
</html>
`

func renderHTML(w io.Writer, snap status.Snapshot) {
	// Snapshot has Uptime() and Age() methods but the template wants fields.
	data := struct {
		status.Snapshot
		Uptime time.Duration
		Age    time.Duration
	}{
		Snapshot: snap,
		Uptime:   snap.Uptime(),
		Age:      snap.Age(),
	}
	indexTmpl.Execute(w, data)
}
