package report

import (
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/termenv"

	"github.com/ChuLiYu/murdock-reporter/internal/aggregate"
	"github.com/ChuLiYu/murdock-reporter/internal/snapshot"
	"github.com/ChuLiYu/murdock-reporter/internal/tracker"
	"github.com/ChuLiYu/murdock-reporter/pkg/types"
)

// 結果行
const (
	ResultFailed  = "--- result: BUILD FAILED!"
	ResultSuccess = "--- result: BUILD SUCCESSFUL."
)

// Styles 摘要中使用的樣式；只套用在單行文字上
type Styles struct {
	Passed  lipgloss.Style
	Failed  lipgloss.Style
	Heading lipgloss.Style
	Dim     lipgloss.Style
}

// NewStyles detects the color support of w.
func NewStyles(w io.Writer) Styles {
	return stylesFor(lipgloss.NewRenderer(w))
}

// PlainStyles never emits escape sequences; used for summary.txt.
func PlainStyles() Styles {
	r := lipgloss.NewRenderer(io.Discard)
	r.SetColorProfile(termenv.Ascii)
	return stylesFor(r)
}

func stylesFor(r *lipgloss.Renderer) Styles {
	return Styles{
		Passed:  r.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "#008700", Dark: "#00FF87"}),
		Failed:  r.NewStyle().Bold(true).Foreground(lipgloss.AdaptiveColor{Light: "#AF0000", Dark: "#FF5F5F"}),
		Heading: r.NewStyle().Bold(true),
		Dim:     r.NewStyle().Foreground(lipgloss.AdaptiveColor{Light: "#585858", Dark: "#6C6C6C"}),
	}
}

// ResultLine returns the first line of the summary.
func (r *Report) ResultLine() string {
	if r.Passed() {
		return ResultSuccess
	}
	return ResultFailed
}

// WriteSummary writes the human readable summary of r.
func WriteSummary(w io.Writer, r *Report, st Styles) error {
	var b strings.Builder
	line := func(format string, args ...any) {
		fmt.Fprintf(&b, format+"\n", args...)
	}

	if r.Passed() {
		line("%s", st.Passed.Render(ResultSuccess))
	} else {
		line("%s", st.Failed.Render(ResultFailed))
	}
	line("")

	snap := r.Snapshot
	if node, ok := snap.Misc.Child(tracker.StaticTestsName); ok {
		if rec, ok := node.Value(); ok {
			if rec.Status {
				line("%s", st.Heading.Render("--- static tests: passed"))
			} else {
				line("%s", st.Failed.Render("--- static tests: failed!"))
			}
			b.WriteString(rec.Output)
			if rec.Output != "" && !strings.HasSuffix(rec.Output, "\n") {
				b.WriteString("\n")
			}
		}
	}
	line("---")
	writeCategory(&b, snap.Builds, "build", st)
	line("---")
	writeCategory(&b, snap.Tests, "test", st)
	line("---")
	writeMisc(&b, snap, st)

	if len(r.CollectedErrors) > 0 {
		line("%s", st.Failed.Render("-- collected errors:"))
		for _, e := range r.CollectedErrors {
			line("%s", e)
		}
		line("")
	}

	line("%s", st.Heading.Render("--- worker stats:"))
	for _, name := range snap.Workers() {
		ws, _ := snap.Worker(name)
		rt := aggregate.NewRuntimeStats(ws.Runtimes)
		avg, _ := rt.Average()
		line("%s total: %d pass: %d fail: %d avg: %.1fs", name, rt.Count, ws.Passed, ws.Failed, avg)
	}

	_, err := io.WriteString(w, b.String())
	return err
}

// SaveSummary writes the plain summary to path atomically.
func SaveSummary(path string, r *Report) error {
	var buf bytes.Buffer
	if err := WriteSummary(&buf, r, PlainStyles()); err != nil {
		return err
	}
	return snapshot.WriteFile(path, buf.Bytes())
}

func writeCategory(b *strings.Builder, c *aggregate.Category, noun string, st Styles) {
	if c.Count == 0 {
		fmt.Fprintf(b, "--- no %s jobs\n", noun)
		return
	}
	fmt.Fprintf(b, "%s\n\n", st.Heading.Render(fmt.Sprintf("--- %s job results (%d failed, %d passed, %d total):",
		noun, c.FailureCount, c.SuccessCount, c.Count)))

	apps := c.Applications()
	sort.Strings(apps)

	var all []float64
	for _, name := range apps {
		app, _ := c.App(name)
		fmt.Fprintf(b, "%s (%d/%d):\n", name, len(app.Success), len(app.Jobs))
		writeTargets(b, "failed", app.Failures, st.Failed)
		writeTargets(b, "passed", app.Success, st.Passed)

		runtimes := make([]float64, 0, len(app.Jobs))
		for _, rec := range app.Jobs {
			runtimes = append(runtimes, rec.Runtime)
		}
		all = append(all, runtimes...)
		fmt.Fprintf(b, "    %s\n\n", runtimeLine(aggregate.NewRuntimeStats(runtimes)))
	}
	fmt.Fprintf(b, "    total cpu runtime: %s\n", aggregate.FormatDuration(aggregate.NewRuntimeStats(all).Total))
}

func writeTargets(b *strings.Builder, label string, recs []types.JobRecord, style lipgloss.Style) {
	if len(recs) == 0 {
		return
	}
	names := make([]string, len(recs))
	for i, rec := range recs {
		names[i] = rec.Target + ":" + rec.Toolchain
	}
	fmt.Fprintf(b, "    %s\n    %s\n", style.Render(label+":"), strings.Join(names, ", "))
}

// writeMisc 列出 Misc 樹中除了 static_tests 以外的每個頂層群組
func writeMisc(b *strings.Builder, snap *aggregate.Snapshot, st Styles) {
	for _, key := range snap.Misc.Keys() {
		if key == tracker.StaticTestsName {
			continue
		}
		node, _ := snap.Misc.Child(key)
		jobs := node.Leaves()

		var passed, failed []string
		runtimes := make([]float64, 0, len(jobs))
		for _, rec := range jobs {
			runtimes = append(runtimes, rec.Runtime)
			if rec.Status {
				passed = append(passed, rec.Name)
			} else {
				failed = append(failed, rec.Name)
			}
		}

		fmt.Fprintf(b, "%s\n", st.Heading.Render(fmt.Sprintf("--- %s job results (%d failed, %d passed, %d total):",
			key, len(failed), len(passed), len(jobs))))
		if len(failed) > 0 {
			fmt.Fprintf(b, "    %s\n", st.Failed.Render("failed:"))
			for _, name := range failed {
				fmt.Fprintf(b, "    %s\n", name)
			}
		}
		if len(passed) > 0 {
			fmt.Fprintf(b, "    %s\n", st.Passed.Render("passed:"))
			for _, name := range passed {
				fmt.Fprintf(b, "    %s\n", name)
			}
		}
		fmt.Fprintf(b, "    %s\n\n", runtimeLine(aggregate.NewRuntimeStats(runtimes)))
	}
}

func runtimeLine(rt aggregate.RuntimeStats) string {
	avg, ok := rt.Average()
	avgText := "n/a"
	if ok {
		avgText = aggregate.FormatDuration(avg)
	}
	return fmt.Sprintf("runtime: total=%s min=%s max=%s avg=%s",
		aggregate.FormatDuration(rt.Total),
		aggregate.FormatDuration(rt.Min),
		aggregate.FormatDuration(rt.Max),
		avgText)
}
