package cli

import (
	"fmt"
	"io"
	"time"

	"github.com/yorozuya-cybersecurity/artiscan/internal/schema"
	"github.com/yorozuya-cybersecurity/artiscan/internal/session"
)

// console prints session progress for a terminal user.
type console struct {
	w io.Writer
}

func (c console) OnArtifactSelected(a schema.Artifact) {
	fmt.Fprintf(c.w, "📦 Selected %s (%s)\n", a.Name, a.SizeLabel)
}

func (c console) OnArtifactRejected(err error) {
	fmt.Fprintf(c.w, "⛔ %v\n", err)
}

func (c console) OnLifecycleChange(ev session.Event) {
	switch ev.State {
	case session.StateSubmitting:
		name := ""
		if ev.Artifact != nil {
			name = ev.Artifact.Name
		}
		fmt.Fprintf(c.w, "🚀 Submitting %s for scanning (submission %s)\n", name, ev.SubmissionID)
	case session.StateCompleted:
		fmt.Fprintf(c.w, "✅ Scan complete in %s\n", ev.Elapsed.Round(time.Millisecond))
	case session.StateFailed:
		fmt.Fprintf(c.w, "⚠️  Scan failed after %s\n", ev.Elapsed.Round(time.Millisecond))
	}
}
