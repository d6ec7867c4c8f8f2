package web

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/a-h/templ"

	"github.com/JonMunkholm/sheet2neon/internal/core"
)

const pageStyle = `body{font-family:system-ui,sans-serif;margin:2rem;color:#1f2933}
table{border-collapse:collapse;margin:1rem 0}td,th{border:1px solid #cbd2d9;padding:.3rem .6rem;text-align:left}
th{background:#f5f7fa}.num{text-align:right}.warn{color:#b44d12}code{font-size:.9em}`

// runPage renders a run report: counters, then rejected and skipped rows.
func runPage(r core.RunReport) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		var b strings.Builder
		esc := templ.EscapeString

		fmt.Fprintf(&b, `<!DOCTYPE html><html lang="en"><head><meta charset="utf-8"><title>Run %s</title><style>%s</style></head><body>`,
			esc(r.RunID.String()), pageStyle)
		fmt.Fprintf(&b, `<h1>%s run</h1><p><code>%s</code></p>`, esc(r.EntityType), esc(r.RunID.String()))
		fmt.Fprintf(&b, `<p>Started %s, took %s</p>`,
			esc(r.StartedAt.UTC().Format(time.RFC3339)), esc(r.Duration().Round(time.Millisecond).String()))
		if r.Interrupted {
			b.WriteString(`<p class="warn">This run was interrupted. Counters cover the rows processed before it stopped.</p>`)
		}

		b.WriteString(`<table><tr><th>Seen</th><th>Loaded</th><th>Skipped</th><th>Rejected</th></tr>`)
		fmt.Fprintf(&b, `<tr><td class="num">%d</td><td class="num">%d</td><td class="num">%d</td><td class="num">%d</td></tr></table>`,
			r.RecordsSeen, r.RecordsLoaded, r.RecordsSkipped, r.RecordsRejected)

		if len(r.RejectedDetail) > 0 {
			b.WriteString(`<h2>Rejected rows</h2><table><tr><th>Row</th><th>Line</th><th>Code</th><th>Reasons</th></tr>`)
			for _, row := range r.RejectedDetail {
				code := ""
				if len(row.Reasons) > 0 {
					code = core.MapReason(row.Reasons[0]).Code
				}
				fmt.Fprintf(&b, `<tr><td class="num">%d</td><td class="num">%d</td><td>%s</td><td>%s</td></tr>`,
					row.RowIndex, row.Line, esc(code), esc(strings.Join(row.Reasons, "; ")))
			}
			b.WriteString(`</table>`)
		}

		if len(r.SkippedDetail) > 0 {
			b.WriteString(`<h2>Skipped rows</h2><table><tr><th>Row</th><th>Key</th><th>Reason</th></tr>`)
			for _, row := range r.SkippedDetail {
				fmt.Fprintf(&b, `<tr><td class="num">%d</td><td>%s</td><td>%s</td></tr>`,
					row.RowIndex, esc(row.Key), esc(strings.ReplaceAll(row.Reason, "_", " ")))
			}
			b.WriteString(`</table>`)
		}

		b.WriteString(`</body></html>`)
		_, err := io.WriteString(w, b.String())
		return err
	})
}
