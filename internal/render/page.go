package render

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/thatsimonsguy/irrigation-controller/internal/model"
)

// PageData is everything the status page shows. The controller only hands
// over structured values; all markup lives here.
type PageData struct {
	Temperature   float64
	Moisture      float64
	PumpOn        bool
	LightOn       bool
	AutoWater     bool
	Threshold     float64
	History       []model.HistoryPoint
	UpdateMessage string
}

var pageTmpl = template.Must(template.New("page").Funcs(template.FuncMap{
	"onOff": func(b bool) string {
		if b {
			return "ON"
		}
		return "OFF"
	},
	"enabled": func(b bool) string {
		if b {
			return "enabled"
		}
		return "disabled"
	},
	"tempClass": temperatureClass,
	"f1": func(v float64) string { return fmt.Sprintf("%.1f", v) },
	"f2": func(v float64) string { return fmt.Sprintf("%.2f", v) },
}).Parse(pageHTML))

// temperatureClass picks the page colour: blue below 5°C, red above 30°C.
func temperatureClass(c float64) string {
	switch {
	case c < 5:
		return "cold"
	case c > 30:
		return "hot"
	default:
		return "mild"
	}
}

func Page(d PageData) (string, error) {
	if d.History == nil {
		d.History = []model.HistoryPoint{}
	}
	var buf bytes.Buffer
	if err := pageTmpl.Execute(&buf, d); err != nil {
		return "", fmt.Errorf("render page: %w", err)
	}
	return buf.String(), nil
}

const pageHTML = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Irrigation Controller</title>
<script src="https://cdn.jsdelivr.net/npm/chart.js"></script>
<style>
body { font-family: sans-serif; max-width: 480px; margin: 1em auto; padding: 0 1em; }
.control-box { border: 1px solid #ccc; border-radius: 6px; padding: 0.6em; margin: 0.8em 0; }
.control-title { font-weight: bold; margin-bottom: 0.4em; }
.cold { color: #1e6fd9; }
.mild { color: #2a9d3a; }
.hot { color: #d93a1e; }
.update-message { color: #555; font-style: italic; }
</style>
<script>
var moistureThreshold = {{.Threshold}};
var points = {{.History}};
function get(path, done) {
  var xhr = new XMLHttpRequest();
  xhr.open('GET', path, true);
  xhr.onload = function () { if (xhr.status === 200 && done) { done(xhr.responseText); } };
  xhr.send();
}
function controlPump(action) { get('/pump?action=' + action); }
function autowaterControl() { get('/autowater'); }
function light(on) { get(on ? '/lighton' : '/lightoff'); }
function updateThreshold() {
  var v = document.getElementById('threshold-input').value;
  if (v && !isNaN(v) && v >= 0 && v <= 100) {
    moistureThreshold = parseFloat(v);
    get('/threshold?value=' + moistureThreshold, updateChart);
  }
}
function manualUpdate() {
  document.getElementById('update-message').innerText = 'Checking for updates...';
  get('/update', function (body) {
    document.getElementById('update-message').innerText = JSON.parse(body).message;
  });
}
function refresh() {
  get('/data', function (body) {
    var d = JSON.parse(body);
    document.getElementById('temperature').innerText = d.temperature.toFixed(1);
    document.getElementById('moisture').innerText = d.moisture.toFixed(2) + '%';
  });
  get('/pumplog', function (body) {
    document.getElementById('pump-log-entries').innerHTML = body;
  });
}
var chart;
function updateChart() {
  if (!chart) { return; }
  chart.data.datasets[2].data = points.map(function () { return moistureThreshold; });
  chart.update();
}
window.onload = function () {
  chart = new Chart(document.getElementById('chart'), {
    type: 'line',
    data: {
      labels: points.map(function (p) { return p.time; }),
      datasets: [
        { label: 'Moisture %', data: points.map(function (p) { return p.moisture; }) },
        { label: 'Temperature °C', data: points.map(function (p) { return p.temperature; }) },
        { label: 'Threshold', data: points.map(function () { return moistureThreshold; }), borderDash: [5, 5] }
      ]
    }
  });
  document.getElementById('threshold-input').addEventListener('change', updateThreshold);
  refresh();
  setInterval(refresh, 5000);
};
</script>
</head>
<body>
<h1>Irrigation Controller</h1>
<p>Temperature: <span id="temperature" class="{{tempClass .Temperature}}">{{f1 .Temperature}}</span> °C</p>
<div class="control-box">
  <div class="control-title">Light</div>
  <button onclick="light(true)">Light On</button>
  <button onclick="light(false)">Light Off</button>
  <span>Light is {{onOff .LightOn}}</span>
</div>
<div class="control-box">
  <div class="control-title">Pump Control</div>
  <button onclick="controlPump('on')">Pump On</button>
  <button onclick="controlPump('off')">Pump Off</button>
  <button onclick="autowaterControl()">Autowater</button>
  <span>Pump is {{onOff .PumpOn}}</span>
</div>
<p>Moisture Level: <span id="moisture">{{f2 .Moisture}}%</span></p>
<p>Moisture Threshold (for Pump): <input type="text" id="threshold-input" value="{{.Threshold}}" size="3"> %</p>
<p>Automatic Watering is <span id="auto-water-status">{{enabled .AutoWater}}</span></p>
<canvas id="chart"></canvas>
<div id="pump-log">
  <h2>Pump Activation Log</h2>
  <div id="pump-log-entries"></div>
</div>
<div class="control-box">
  <div class="control-title">Software Update</div>
  <button onclick="manualUpdate()">Software Update</button>
  <p id="update-message" class="update-message">{{.UpdateMessage}}</p>
</div>
</body>
</html>
`
