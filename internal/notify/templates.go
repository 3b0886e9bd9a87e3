package notify

import (
	"fmt"
	"html/template"
	"strings"
	"time"

	"rehabflow/internal/models"
)

// Rendered is one email ready for dispatch.
type Rendered struct {
	Subject string
	Text    string
	HTML    string
}

var subjects = map[string]string{
	models.KindConfirmed:   "Your appointment is confirmed",
	models.KindRescheduled: "Your appointment has been rescheduled",
	models.KindCancelled:   "Your appointment has been cancelled",
}

var intros = map[string]string{
	models.KindConfirmed:   "your appointment has been confirmed. We look forward to seeing you.",
	models.KindRescheduled: "your appointment has been moved to a new slot. The updated details are below.",
	models.KindCancelled:   "your appointment has been cancelled. If this was unexpected, please contact the clinic.",
}

var htmlTemplate = template.Must(template.New("email").Parse(`<!DOCTYPE html>
<html>
  <body style="font-family: Arial, sans-serif; color: #333;">
    <h2>RehabFlow Physiotherapy</h2>
    <p>Hi {{.Name}},</p>
    <p>{{.Intro}}</p>
    <table cellpadding="6">
      <tr><td><strong>Service</strong></td><td>{{.Service}}</td></tr>
      <tr><td><strong>Date</strong></td><td>{{.Date}}</td></tr>
      <tr><td><strong>Time</strong></td><td>{{.Time}}</td></tr>
      <tr><td><strong>Status</strong></td><td>{{.Status}}</td></tr>
    </table>
    <p style="color: #888; font-size: 12px;">&copy; {{.Year}} RehabFlow Physiotherapy</p>
  </body>
</html>
`))

type templateData struct {
	Name    string
	Intro   string
	Service string
	Date    string
	Time    string
	Status  string
	Year    int
}

// Render maps a booking and transition kind to subject, text and HTML bodies.
// Pure: the clock is injected via now so output is deterministic in tests.
func Render(booking *models.Booking, kind string, now time.Time) (Rendered, error) {
	subject, ok := subjects[kind]
	if !ok {
		return Rendered{}, fmt.Errorf("unknown notification kind: %q", kind)
	}

	data := templateData{
		Name:    booking.Name,
		Intro:   intros[kind],
		Service: booking.Service,
		Date:    FormatDate(booking.Date),
		Time:    FormatTime(booking.Time),
		Status:  statusAfter(kind),
		Year:    now.Year(),
	}

	text := fmt.Sprintf(
		"Hi %s,\n\n"+
			"This is RehabFlow Physiotherapy: %s\n\n"+
			"Service: %s\nDate: %s\nTime: %s\nStatus: %s\n\n"+
			"(c) %d RehabFlow Physiotherapy\n",
		data.Name, data.Intro, data.Service, data.Date, data.Time, data.Status, data.Year,
	)

	var html strings.Builder
	if err := htmlTemplate.Execute(&html, data); err != nil {
		return Rendered{}, fmt.Errorf("failed to render html body: %w", err)
	}

	return Rendered{Subject: subject, Text: text, HTML: html.String()}, nil
}

// FormatDate renders a calendar date the way it appears in client emails,
// e.g. "Monday, 1 September 2025".
func FormatDate(date time.Time) string {
	return date.Format("Monday, 2 January 2006")
}

// FormatTime converts an HH:MM wall-clock string to 12-hour form with AM/PM.
// Legacy records without a time render as a placeholder.
func FormatTime(wallTime string) string {
	if wallTime == "" {
		return "to be scheduled"
	}
	parsed, err := time.Parse(models.TimeLayout, wallTime)
	if err != nil {
		return wallTime
	}
	return parsed.Format("3:04 PM")
}

func statusAfter(kind string) string {
	switch kind {
	case models.KindConfirmed:
		return models.StatusConfirmed
	case models.KindRescheduled:
		return models.StatusRescheduled
	case models.KindCancelled:
		return models.StatusCancelled
	}
	return ""
}
