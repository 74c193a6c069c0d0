package notify

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	"strings"
	texttemplate "text/template"
	"time"

	"github.com/example/room-reservations/internal/application"
)

const timeLayout = "2006-01-02 15:04"

// messageView is the data the notification templates render.
type messageView struct {
	RoomName    string
	Name        string
	Owner       string
	Start       string
	End         string
	Recurrence  string
	Description string
	ApproveURL  string
}

var pendingText = texttemplate.Must(texttemplate.New("pending").Parse(`A reservation is waiting for approval.

Room:         {{.RoomName}}
Name:         {{.Name}}
Requested by: {{.Owner}}
Start:        {{.Start}}
End:          {{.End}}
{{- if .Recurrence}}
Repeats:      {{.Recurrence}}
{{- end}}
{{- if .Description}}

{{.Description}}
{{- end}}

Approve: {{.ApproveURL}}
`))

var pendingHTML = htmltemplate.Must(htmltemplate.New("pending").Parse(`<p>A reservation is waiting for approval.</p>
<table>
<tr><th>Room</th><td>{{.RoomName}}</td></tr>
<tr><th>Name</th><td>{{.Name}}</td></tr>
<tr><th>Requested by</th><td>{{.Owner}}</td></tr>
<tr><th>Start</th><td>{{.Start}}</td></tr>
<tr><th>End</th><td>{{.End}}</td></tr>
{{- if .Recurrence}}
<tr><th>Repeats</th><td>{{.Recurrence}}</td></tr>
{{- end}}
</table>
{{- if .Description}}
<p>{{.Description}}</p>
{{- end}}
<p><a href="{{.ApproveURL}}">Approve reservation</a></p>
`))

var digestText = texttemplate.Must(texttemplate.New("digest").Parse(`{{len .}} reservation(s) are waiting for approval.
{{range .}}
- {{.Name}} in {{.RoomName}}, {{.Start}} to {{.End}}{{if .Recurrence}} ({{.Recurrence}}){{end}}
  requested by {{.Owner}}: {{.ApproveURL}}
{{- end}}
`))

var digestHTML = htmltemplate.Must(htmltemplate.New("digest").Parse(`<p>{{len .}} reservation(s) are waiting for approval.</p>
<ul>
{{- range .}}
<li><a href="{{.ApproveURL}}">{{.Name}}</a> in {{.RoomName}}, {{.Start}} to {{.End}}{{if .Recurrence}} ({{.Recurrence}}){{end}}, requested by {{.Owner}}</li>
{{- end}}
</ul>
`))

// PendingSubject is the subject line of an approval request.
func PendingSubject(reservationName string) string {
	return fmt.Sprintf("Reservation %s Pending Approval", reservationName)
}

// ApprovalURL is the link an approver follows to approve reservationID.
func ApprovalURL(publicURL, reservationID string) string {
	return strings.TrimRight(publicURL, "/") + "/approve-reservation/" + reservationID
}

func newMessageView(notice application.PendingNotice, publicURL string, loc *time.Location) messageView {
	reservation := notice.Reservation
	view := messageView{
		RoomName:    notice.Room.Name,
		Name:        reservation.Name,
		Owner:       reservation.OwnerID,
		Start:       reservation.Start.In(loc).Format(timeLayout),
		End:         reservation.End.In(loc).Format(timeLayout),
		Description: reservation.Description,
		ApproveURL:  ApprovalURL(publicURL, reservation.ID),
	}
	if view.RoomName == "" {
		view.RoomName = reservation.RoomID
	}
	if reservation.Recurrence != nil {
		view.Recurrence = reservation.Recurrence.Describe()
	}
	return view
}

// render executes the plain-text and HTML templates against data.
func render(text *texttemplate.Template, html *htmltemplate.Template, data any) (string, string, error) {
	var textBuf, htmlBuf bytes.Buffer
	if err := text.Execute(&textBuf, data); err != nil {
		return "", "", fmt.Errorf("render text body: %w", err)
	}
	if err := html.Execute(&htmlBuf, data); err != nil {
		return "", "", fmt.Errorf("render html body: %w", err)
	}
	return textBuf.String(), htmlBuf.String(), nil
}
