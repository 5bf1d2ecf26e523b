package web

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/JonMunkholm/salesunifier/internal/core"
	"github.com/a-h/templ"
)

// dashboardData is everything the dashboard page renders.
type dashboardData struct {
	Counts     core.Counts
	Gate       core.GateStatus
	Exceptions []*core.Record
	Fixes      []core.FixEntry
}

// dashboardFixLimit caps the fix history rows shown on the page.
const dashboardFixLimit = 20

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	l := s.pipeline.Ledger()
	fixes := l.FixHistory()
	if len(fixes) > dashboardFixLimit {
		fixes = fixes[len(fixes)-dashboardFixLimit:]
	}

	data := dashboardData{
		Counts:     l.Counts(),
		Gate:       s.pipeline.GateStatus(),
		Exceptions: l.Exceptions(),
		Fixes:      fixes,
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := dashboard(data).Render(r.Context(), w); err != nil {
		s.respondError(w, r, err)
	}
}

func dashboard(d dashboardData) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"><title>Sales Unifier</title></head><body>`)
		b.WriteString(`<h1>Sales Unifier</h1>`)

		fmt.Fprintf(&b, `<section id="counts"><p>Consolidated: <strong>%d</strong></p><p>Exceptions: <strong>%d</strong></p><p>Fixed: <strong>%d</strong></p></section>`,
			d.Counts.Consolidated, d.Counts.Exceptions, d.Counts.FixHistory)
		if d.Gate.Busy {
			fmt.Fprintf(&b, `<p class="busy">Running: %s</p>`, templ.EscapeString(d.Gate.Operation))
		}

		b.WriteString(`<section id="exceptions"><h2>Exceptions</h2>`)
		if len(d.Exceptions) == 0 {
			b.WriteString(`<p>No exceptions.</p>`)
		} else {
			b.WriteString(`<table><thead><tr><th>#</th><th>Source</th><th>Errors</th></tr></thead><tbody>`)
			for i, rec := range d.Exceptions {
				fmt.Fprintf(&b, `<tr><td>%d</td><td>%s</td><td>%s</td></tr>`,
					i, templ.EscapeString(rec.SourceFile), templ.EscapeString(strings.Join(rec.ValidationErrors, "; ")))
			}
			b.WriteString(`</tbody></table>`)
		}
		b.WriteString(`</section>`)

		b.WriteString(`<section id="fix-history"><h2>Fix History</h2>`)
		if len(d.Fixes) == 0 {
			b.WriteString(`<p>No fixes yet.</p>`)
		} else {
			b.WriteString(`<ul>`)
			for _, fix := range d.Fixes {
				fmt.Fprintf(&b, `<li>%s: %s (%d changes)</li>`,
					templ.EscapeString(fix.Timestamp.Format("2006-01-02 15:04:05")),
					templ.EscapeString(fix.Original.SourceFile),
					len(fix.Changes()))
			}
			b.WriteString(`</ul>`)
		}
		b.WriteString(`</section>`)

		b.WriteString(`<p><a href="/api/export/consolidated">Download consolidated CSV</a> | <a href="/api/export/fix-history">Download fix history CSV</a></p>`)
		b.WriteString(`</body></html>`)

		_, err := io.WriteString(w, b.String())
		return err
	})
}

func errorAlert(msg core.UserMessage) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		b.WriteString(`<div class="error" role="alert"><p>`)
		b.WriteString(templ.EscapeString(msg.Message))
		b.WriteString(`</p>`)
		if msg.Action != "" {
			fmt.Fprintf(&b, `<p class="action">%s</p>`, templ.EscapeString(msg.Action))
		}
		if msg.Code != "" {
			fmt.Fprintf(&b, `<p class="code">Error code: %s</p>`, templ.EscapeString(msg.Code))
		}
		b.WriteString(`</div>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}
