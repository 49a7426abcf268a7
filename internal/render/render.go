package render

import (
	"encoding/json"
	"fmt"
	"html"
	"strings"

	"github.com/thatsimonsguy/irrigation-controller/internal/model"
)

const (
	NotFoundBody       = "<h1>404 Not Found</h1>"
	InvalidThreshold   = "Invalid threshold value"
	InvalidPumpAction  = "Invalid pump action"
	logTimestampLayout = "02/01/2006 at 15:04:05"
)

// Data is the /data payload polled by the page.
func Data(s model.SensorSample) string {
	return fmt.Sprintf(`{"temperature": %.1f, "moisture": %.2f}`, s.Temperature, s.Moisture)
}

func LogEntry(r model.ActivationRecord) string {
	return fmt.Sprintf("Pump Activated (%s for %d seconds)",
		r.StartedAt.Format(logTimestampLayout), int(r.Duration.Seconds()))
}

// PumpLog renders activation records oldest first as <p> elements.
func PumpLog(records []model.ActivationRecord) string {
	var b strings.Builder
	for _, r := range records {
		b.WriteString("<p>")
		b.WriteString(html.EscapeString(LogEntry(r)))
		b.WriteString("</p>")
	}
	return b.String()
}

func UpdateJSON(message string) string {
	out, err := json.Marshal(struct {
		Message string `json:"message"`
	}{message})
	if err != nil {
		return `{"message": ""}`
	}
	return string(out)
}
