package main

import (
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"github.com/mgoubin/companion/internal/intra"
	"github.com/mgoubin/companion/internal/profile"
)

const (
	colorReset  = "\033[0m"
	colorRed    = "\033[31m"
	colorGreen  = "\033[32m"
	colorYellow = "\033[33m"
	colorCyan   = "\033[36m"
	colorBold   = "\033[1m"
	colorDim    = "\033[2m"
)

func colorize(color, text string) string {
	if noColor {
		return text
	}
	return color + text + colorReset
}

func printSuccess(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorGreen, "✓ "+msg))
}

func printError(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorRed, "✗ "+msg))
}

func printWarning(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorYellow, "⚠ "+msg))
}

func printStatus(label string, format string, args ...any) {
	val := fmt.Sprintf(format, args...)
	l := colorize(colorBold, label+":")
	fmt.Fprintf(os.Stderr, "  %s %s\n", l, val)
}

func printStep(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	fmt.Fprintln(os.Stderr, colorize(colorCyan, "→ "+msg))
}

const barWidth = 24

// skillLevelCap is the scale for skill bars; levels typically top out
// around 21 on the platform.
const skillLevelCap = 21.0

func progressBar(frac float64, width int) string {
	frac = math.Max(0, math.Min(1, frac))
	filled := int(frac*float64(width) + 0.5)
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

// renderProfile prints the derived view: identity, main-track level,
// account grid, finished projects, and ranked skills.
func renderProfile(w io.Writer, d profile.Derived) {
	u := d.User

	fmt.Fprintf(w, "%s  %s\n", colorize(colorBold, u.DisplayName), colorize(colorDim, "("+u.Login+")"))

	contact := u.Email
	if phone, ok := u.VisiblePhone(); ok {
		if contact != "" {
			contact += "  "
		}
		contact += phone
	}
	if contact != "" {
		fmt.Fprintf(w, "%s\n", contact)
	}

	if d.MainCursus != nil {
		level := d.MainCursus.Level
		fmt.Fprintf(w, "\nLevel %d  %s %.2f\n",
			int(math.Floor(level)), progressBar(level-math.Floor(level), barWidth), level)
	}

	fmt.Fprintf(w, "\nWallet: %d₳  Ev. Pts: %d  Location: %s\n",
		u.Wallet, u.CorrectionPoint, u.DisplayLocation())

	fmt.Fprintf(w, "\n%s\n", colorize(colorBold, "Projects"))
	if len(d.FinishedProjects) == 0 {
		fmt.Fprintln(w, "  No projects")
	} else {
		for _, p := range d.FinishedProjects {
			fmt.Fprintf(w, "  %-40s %s\n", p.Project.Name, projectMark(p))
		}
	}

	fmt.Fprintf(w, "\n%s\n", colorize(colorBold, "Skills"))
	if len(d.RankedSkills) == 0 {
		fmt.Fprintln(w, "  No skills")
	} else {
		for _, s := range d.RankedSkills {
			fmt.Fprintf(w, "  %-20s %s %.2f\n", s.Name, progressBar(s.Level/skillLevelCap, barWidth), s.Level)
		}
	}
}

// projectMark formats a project's final mark with its validation outcome:
// green ✓ for passed, red ✗ for failed, plain for pending.
func projectMark(p intra.Project) string {
	label := "-"
	if p.FinalMark != nil {
		label = strconv.Itoa(*p.FinalMark)
	}

	switch p.Validated {
	case intra.Passed:
		return colorize(colorGreen, label+" ✓")
	case intra.Failed:
		return colorize(colorRed, label+" ✗")
	default:
		return label
	}
}
