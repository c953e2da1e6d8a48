package cli

import (
	"fmt"
	"io"
	"strings"
	"time"
)

// ─── Settle Progress ────────────────────────────────────────────────────────
// A terminal progress bar for handshake convergence.
// Shows: [============>.......] 62% | 5 / 8 handshakes | 1.2s

const barWidth = 30 // Characters for the progress bar

type progressBar struct {
	w       io.Writer
	started time.Time
	last    int
}

func newProgressBar(w io.Writer) *progressBar {
	return &progressBar{
		w:       w,
		started: time.Now(),
		last:    -1,
	}
}

// callback is passed to Daemon.Settle. Only changes are redrawn.
func (p *progressBar) callback(done, total int) {
	if done == p.last {
		return
	}
	p.last = done
	p.render(done, total, time.Now())
}

func (p *progressBar) render(done, total int, now time.Time) {
	pct := 100.0
	if total > 0 {
		pct = float64(done) / float64(total) * 100
	}

	clearLine(p.w)
	fmt.Fprintf(p.w, "  %s %3.0f%% | %d / %d handshakes | %s",
		renderBar(pct), pct, done, total, formatElapsed(now.Sub(p.started)))
}

// finish ends the bar line with the outcome.
func (p *progressBar) finish(converged bool) {
	clearLine(p.w)
	elapsed := formatElapsed(time.Since(p.started))
	if converged {
		fmt.Fprintf(p.w, "[ok] converged in %s\n", elapsed)
		return
	}
	fmt.Fprintf(p.w, "[!!] not converged after %s\n", elapsed)
}

func renderBar(pct float64) string {
	if pct < 0 {
		pct = 0
	}
	if pct > 100 {
		pct = 100
	}

	// Build the bar: [=======>............]
	filled := int(pct / 100 * float64(barWidth))
	empty := barWidth - filled

	switch {
	case filled == barWidth:
		return "[" + strings.Repeat("=", filled) + "]"
	case filled > 0:
		return "[" + strings.Repeat("=", filled-1) + ">" + strings.Repeat(".", empty) + "]"
	default:
		return "[" + strings.Repeat(".", barWidth) + "]"
	}
}

func formatElapsed(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	return fmt.Sprintf("%.1fs", d.Seconds())
}

func clearLine(w io.Writer) {
	fmt.Fprintf(w, "\r\033[K")
}
