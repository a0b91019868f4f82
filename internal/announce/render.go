// Package announce renders the markdown bodies this engine hands to the
// notification collaborators: the public result announcement, the
// cancellation notice, the per-winner private message, and the lock notice.
// Rendering is pure; delivery stays behind the engine's Notifier.
package announce

import (
	"fmt"
	"strings"
	"text/template"
	"time"

	"github.com/raffleworks/topicdraw/internal/draw"
)

const timestampFormat = "2006-01-02 15:04:05"

var winnersTmpl = template.Must(template.New("winners").Parse(strings.TrimSpace(`
🎉 **Draw results** 🎉

**Event:** {{.Title}}
**Drawn at:** {{.DrawnAt}}
**Winners:**

{{.WinnerList}}

Congratulations! Winners, please check your private messages.
`)))

var cancelledTmpl = template.Must(template.New("cancelled").Parse(strings.TrimSpace(`
❌ **Draw cancelled** ❌

**Event:** {{.Title}}
**Reason:** {{.Reason}}
**Cancelled at:** {{.CancelledAt}}

Thanks to everyone who took part.
`)))

var winnerMessageTmpl = template.Must(template.New("winnerMessage").Parse(strings.TrimSpace(`
🎉 Congratulations, you won!

**Event:** {{.Title}}
**Prize:** {{.Prize}}
**Your reply:** #{{.Position}}
**Drawn at:** {{.DrawnAt}}

Please contact the organizer @{{.Initiator}} to claim your prize.
`)))

// WinnerAnnouncement renders the public results post for a finished draw.
func WinnerAnnouncement(d *draw.Draw, drawnAt time.Time) string {
	var list strings.Builder
	for i, w := range d.Winners {
		if i > 0 {
			list.WriteByte('\n')
		}
		fmt.Fprintf(&list, "%d. @%s (reply #%d)", i+1, w.Username, w.Position)
	}
	return render(winnersTmpl, map[string]string{
		"Title":      d.Config.Title,
		"DrawnAt":    drawnAt.Format(timestampFormat),
		"WinnerList": list.String(),
	})
}

// CancellationNotice renders the public post for a cancelled draw.
func CancellationNotice(d *draw.Draw, reason string, cancelledAt time.Time) string {
	return render(cancelledTmpl, map[string]string{
		"Title":       d.Config.Title,
		"Reason":      reason,
		"CancelledAt": cancelledAt.Format(timestampFormat),
	})
}

// WinnerMessage renders the private message sent to one winner.
func WinnerMessage(d *draw.Draw, w draw.Winner, initiatorName string, drawnAt time.Time) string {
	return render(winnerMessageTmpl, map[string]any{
		"Title":     d.Config.Title,
		"Prize":     d.Config.PrizeDescription,
		"Position":  w.Position,
		"DrawnAt":   drawnAt.Format(timestampFormat),
		"Initiator": initiatorName,
	})
}

// WinnerMessageTitle is the subject line of the winner private message.
func WinnerMessageTitle(d *draw.Draw) string {
	return "🎉 You won the draw - " + d.Config.Title
}

// LockNotice is the post made when the edit-protection window closes.
func LockNotice() string {
	return "⏰ The edit window has closed. The draw settings are now locked until the results are drawn."
}

func render(tmpl *template.Template, data any) string {
	var b strings.Builder
	// Templates are package constants over flat data; execution cannot fail.
	if err := tmpl.Execute(&b, data); err != nil {
		panic(fmt.Sprintf("render %s: %v", tmpl.Name(), err))
	}
	return b.String()
}
