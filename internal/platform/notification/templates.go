package notification

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"
)

var subjects = map[Kind]string{
	KindCreated: "Appointment Confirmed",
	KindUpdated: "Appointment Updated",
	KindStatus:  "Appointment Status Updated",
}

var intros = map[Kind]string{
	KindCreated: "Your appointment has been successfully scheduled.",
	KindUpdated: "Your appointment details have been updated.",
	KindStatus:  "Your appointment status has changed.",
}

type emailView struct {
	Title        string
	Intro        string
	PatientFirst string
	Doctor       string
	Date         string
	Time         string
	Status       string
	ShowStatus   bool
	Year         int
}

const htmlLayout = `<div style="font-family: Arial, sans-serif; background:#f6f7fb; padding:40px 0;">
  <div style="max-width:600px; margin:0 auto; background:white; border-radius:16px; overflow:hidden;">
    <div style="background:#14b8a6; padding:24px; text-align:center;">
      <h1 style="color:white; margin:0; font-size:20px;">{{.Title}}</h1>
    </div>
    <div style="padding:30px;">
      <h2 style="margin-top:0; color:#111;">Hello {{.PatientFirst}},</h2>
      <p style="color:#555; line-height:1.6;">{{.Intro}}</p>
      <div style="background:#f3f4f6; padding:16px; border-radius:12px; margin:20px 0;">
        <p style="margin:6px 0;"><strong>Doctor:</strong> {{.Doctor}}</p>
        <p style="margin:6px 0;"><strong>Date:</strong> {{.Date}}</p>
        <p style="margin:6px 0;"><strong>Time:</strong> {{.Time}}</p>
        {{- if .ShowStatus}}
        <p style="margin:6px 0;"><strong>Status:</strong> {{.Status}}</p>
        {{- end}}
      </div>
      <p style="color:#666; font-size:14px;">If you need to reschedule, please contact the clinic.</p>
    </div>
    <div style="background:#f9fafb; padding:20px; text-align:center; font-size:12px; color:#999;">
      &copy; {{.Year}} Clinic System
    </div>
  </div>
</div>`

const textLayout = `Hello {{.PatientFirst}},

{{.Intro}}

Doctor: {{.Doctor}}
Date: {{.Date}}
Time: {{.Time}}
{{- if .ShowStatus}}
Status: {{.Status}}
{{- end}}

If you need to reschedule, please contact the clinic.
`

var (
	htmlTmpl = htmltemplate.Must(htmltemplate.New("appointment.html").Parse(htmlLayout))
	textTmpl = texttemplate.Must(texttemplate.New("appointment.txt").Parse(textLayout))
)

// Render builds the subject and bodies for an appointment email. Times are
// formatted in msg.At's location.
func Render(msg AppointmentEmail) (EmailMessage, error) {
	subject, ok := subjects[msg.Kind]
	if !ok {
		return EmailMessage{}, fmt.Errorf("unknown email kind %q", msg.Kind)
	}
	if msg.To == "" {
		return EmailMessage{}, fmt.Errorf("recipient is required")
	}

	view := emailView{
		Title:        subject,
		Intro:        intros[msg.Kind],
		PatientFirst: msg.PatientFirst,
		Doctor:       "Dr. " + msg.DoctorFirst + " " + msg.DoctorLast,
		Date:         msg.At.Format("Monday, January 2, 2006"),
		Time:         msg.At.Format("15:04"),
		Status:       msg.Status,
		ShowStatus:   msg.Kind == KindStatus,
		Year:         msg.At.Year(),
	}

	var html, text bytes.Buffer
	if err := htmlTmpl.Execute(&html, view); err != nil {
		return EmailMessage{}, fmt.Errorf("execute html template: %w", err)
	}
	if err := textTmpl.Execute(&text, view); err != nil {
		return EmailMessage{}, fmt.Errorf("execute text template: %w", err)
	}

	return EmailMessage{
		To:      msg.To,
		ToName:  msg.ToName,
		Subject: subject,
		Body:    text.String(),
		HTML:    html.String(),
	}, nil
}
