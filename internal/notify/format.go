package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"net/url"
	"strconv"
	"time"

	"github.com/couchcryptid/proton-flux-alerts/internal/domain"
)

var bodyTmpl = template.Must(template.New("body").Parse(`<html>
  <head></head>
  <body>
    <p>{{.Headline}}<br>
       Please refer to the attached history graph and the link below for more details.<br><br>
       <a href="{{.Link}}">GOES Proton Flux Website</a>
    </p>
  </body>
</html>
`))

// FormatValue renders a flux reading the way it appears in messages.
func FormatValue(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// Subject returns the email subject line.
func Subject(n Notification) string {
	if n.Recovery() {
		return fmt.Sprintf("[%s]: Flux <1 for last %s (%s - currently at %s)",
			n.LevelName, windowText(n.Window), n.BandLabel, FormatValue(n.Value))
	}
	return fmt.Sprintf("[%s] Proton Event: Currently at %s MeV (%s)",
		n.LevelName, FormatValue(n.Value), n.BandLabel)
}

// HTMLBody returns the email body.
func HTMLBody(n Notification) (string, error) {
	headline := "There is currently an ongoing Proton Event."
	if n.Recovery() {
		headline = fmt.Sprintf("Flux has been less than 1 for the last %s.", windowLong(n.Window))
	}

	var buf bytes.Buffer
	err := bodyTmpl.Execute(&buf, struct {
		Headline string
		Link     string
	}{headline, n.Link})
	if err != nil {
		return "", fmt.Errorf("render body: %w", err)
	}
	return buf.String(), nil
}

// AlertText is the one-line summary carried by the callback.
func AlertText(n Notification) string {
	return fmt.Sprintf("Space weather %s: >%d MeV proton flux currently at %s",
		n.LevelName, n.Threshold, FormatValue(n.Value))
}

// CallbackForm returns the form fields posted to the HTTP callback.
func CallbackForm(n Notification) url.Values {
	return url.Values{
		"alert_text": {AlertText(n)},
		"level":      {n.LevelName},
		"link":       {n.Link},
	}
}

// windowText renders the quiet period compactly, e.g. "90mins".
func windowText(d time.Duration) string {
	return fmt.Sprintf("%dmins", windowMinutes(d))
}

func windowLong(d time.Duration) string {
	return fmt.Sprintf("%d minutes", windowMinutes(d))
}

func windowMinutes(d time.Duration) int {
	if d <= 0 {
		d = domain.DefaultRecoveryWindow
	}
	return int(d.Round(time.Minute) / time.Minute)
}
