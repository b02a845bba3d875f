package progress

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/briandowns/spinner"
	"github.com/fatih/color"
	"github.com/trebuchet-org/treb-anvil/internal/usecase"
)

// SpinnerProgressReporter shows node startup stages behind a spinner
type SpinnerProgressReporter struct {
	spinner *spinner.Spinner
	stages  []stageInfo
}

type stageInfo struct {
	Stage     usecase.NodeStage
	StartTime time.Time
	EndTime   time.Time
	Status    string
}

var stageNames = map[usecase.NodeStage]string{
	usecase.StageResolvingFork: "Resolving fork",
	usecase.StageConnecting:    "Connecting",
	usecase.StageConnected:     "Connected",
}

// NewSpinnerProgressReporter creates a new spinner-based progress reporter
func NewSpinnerProgressReporter() *SpinnerProgressReporter {
	s := spinner.New(spinner.CharSets[14], 100*time.Millisecond)
	s.HideCursor = false

	return &SpinnerProgressReporter{
		spinner: s,
		stages:  []stageInfo{},
	}
}

// OnProgress handles progress events
func (r *SpinnerProgressReporter) OnProgress(ctx context.Context, event usecase.ProgressEvent) {
	stage := usecase.NodeStage(event.Stage)
	if _, known := stageNames[stage]; known {
		r.enterStage(stage, time.Now())
	}

	if event.Spinner {
		r.spinner.Suffix = " " + r.display(time.Now())
		if event.Message != "" {
			r.spinner.Suffix += color.New(color.Faint).Sprintf("  %s", event.Message)
		}
		if !r.spinner.Active() {
			r.spinner.Start()
		}
		return
	}

	if r.spinner.Active() {
		r.spinner.Stop()
	}
	if event.Message != "" {
		color.New(color.FgGreen).Printf("✓ %s\n", event.Message)
	}
}

// Info prints an info message
func (r *SpinnerProgressReporter) Info(message string) {
	r.pause(func() { color.New(color.FgCyan).Println(message) })
}

// Error prints an error message
func (r *SpinnerProgressReporter) Error(message string) {
	// a failed stage ends the spinner for good
	if len(r.stages) > 0 {
		r.stages[len(r.stages)-1].Status = "failed"
	}
	if r.spinner.Active() {
		r.spinner.Stop()
	}
	color.New(color.FgRed).Println(message)
}

func (r *SpinnerProgressReporter) pause(print func()) {
	wasActive := r.spinner != nil && r.spinner.Active()
	if wasActive {
		r.spinner.Stop()
	}
	print()
	if wasActive {
		r.spinner.Start()
	}
}

// enterStage completes the running stage and starts the next one
func (r *SpinnerProgressReporter) enterStage(stage usecase.NodeStage, now time.Time) {
	if n := len(r.stages); n > 0 {
		if r.stages[n-1].Stage == stage {
			return
		}
		if r.stages[n-1].Status == "running" {
			r.stages[n-1].EndTime = now
			r.stages[n-1].Status = "completed"
		}
	}

	status := "running"
	if stage == usecase.StageConnected {
		status = "completed"
	}
	r.stages = append(r.stages, stageInfo{Stage: stage, StartTime: now, EndTime: now, Status: status})
	if status == "running" {
		r.stages[len(r.stages)-1].EndTime = time.Time{}
	}
}

// display renders the stage trail, e.g. "✓ Resolving fork (1.2s) → ● Connecting (3s)"
func (r *SpinnerProgressReporter) display(now time.Time) string {
	parts := make([]string, 0, len(r.stages))
	for _, stage := range r.stages {
		var icon string
		var stageColor *color.Color

		switch stage.Status {
		case "completed":
			icon = "✓"
			stageColor = color.New(color.FgGreen)
		case "running":
			icon = "●"
			stageColor = color.New(color.FgYellow)
		case "failed":
			icon = "✗"
			stageColor = color.New(color.FgRed)
		default:
			icon = "○"
			stageColor = color.New(color.FgWhite)
		}

		duration := ""
		if !stage.EndTime.IsZero() {
			if d := stage.EndTime.Sub(stage.StartTime); d > 0 {
				duration = fmt.Sprintf(" (%s)", d.Round(time.Millisecond))
			}
		} else if stage.Status == "running" {
			duration = fmt.Sprintf(" (%s)", now.Sub(stage.StartTime).Round(time.Second))
		}

		parts = append(parts, fmt.Sprintf("%s %s%s", icon, stageColor.Sprint(stageNames[stage.Stage]), duration))
	}
	return strings.Join(parts, " → ")
}

// Ensure SpinnerProgressReporter implements ProgressSink
var _ usecase.ProgressSink = (*SpinnerProgressReporter)(nil)
