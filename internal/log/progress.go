package log

import (
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Progress reports advancement of a long-running job such as a weight grid.
// On a terminal it redraws a bar in place; otherwise it logs every tenth.
type Progress struct {
	mu          sync.Mutex
	out         io.Writer
	name        string
	total       int
	current     int
	startTime   time.Time
	interactive bool
	lastDecile  int
}

// NewProgress creates a new progress indicator writing to out
func NewProgress(name string, total int, out io.Writer, interactive bool) *Progress {
	return &Progress{
		out:         out,
		name:        name,
		total:       total,
		startTime:   time.Now(),
		interactive: interactive,
	}
}

// Increment advances progress by one step. Safe for concurrent use.
func (p *Progress) Increment() {
	p.Add(1)
}

// Add advances progress by n steps
func (p *Progress) Add(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.current += n
	if p.interactive {
		p.draw("")
		return
	}
	if p.total > 0 {
		decile := p.current * 10 / p.total
		if decile > p.lastDecile {
			p.lastDecile = decile
			log.Info().Str("job", p.name).Int("done", p.current).Int("total", p.total).Msg("progress")
		}
	}
}

// Current returns the number of completed steps
func (p *Progress) Current() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current
}

// Finish completes the progress indicator
func (p *Progress) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()

	elapsed := time.Since(p.startTime).Round(time.Millisecond)
	if p.interactive {
		fmt.Fprintf(p.out, "\r\033[K✅ %s completed (%d items, %v)\n", p.name, p.current, elapsed)
		return
	}
	log.Info().Str("job", p.name).Int("items", p.current).Dur("elapsed", elapsed).Msg("completed")
}

// Fail marks the progress as failed
func (p *Progress) Fail(reason string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	elapsed := time.Since(p.startTime).Round(time.Millisecond)
	if p.interactive {
		fmt.Fprintf(p.out, "\r\033[K❌ %s failed: %s (%v)\n", p.name, reason, elapsed)
		return
	}
	log.Error().Str("job", p.name).Str("reason", reason).Dur("elapsed", elapsed).Msg("failed")
}

// draw renders the bar; callers hold the lock
func (p *Progress) draw(message string) {
	var b strings.Builder
	b.WriteString("\r\033[K")
	b.WriteString(p.name)

	if p.total > 0 {
		const width = 20
		filled := width * p.current / p.total
		if filled > width {
			filled = width
		}
		b.WriteString(" [")
		b.WriteString(strings.Repeat("█", filled))
		b.WriteString(strings.Repeat("░", width-filled))
		fmt.Fprintf(&b, "] %d/%d (%.1f%%)", p.current, p.total, float64(p.current)/float64(p.total)*100)

		if p.current > 0 && p.current < p.total {
			rate := float64(p.current) / time.Since(p.startTime).Seconds()
			eta := time.Duration(float64(p.total-p.current)/rate) * time.Second
			fmt.Fprintf(&b, " ETA: %v", eta.Round(time.Second))
		}
	}
	if message != "" {
		b.WriteString(" - ")
		b.WriteString(message)
	}
	fmt.Fprint(p.out, b.String())
}

// StepLogger provides step-by-step progress logging for pipelines
type StepLogger struct {
	steps       []string
	currentStep int
	stepStart   time.Time
	startTime   time.Time
	stepTimes   []time.Duration
}

// NewStepLogger creates a new step logger for pipeline operations
func NewStepLogger(steps ...string) *StepLogger {
	now := time.Now()
	return &StepLogger{
		steps:       steps,
		currentStep: -1,
		stepStart:   now,
		startTime:   now,
		stepTimes:   make([]time.Duration, len(steps)),
	}
}

// StartStep closes the running step and begins the named one
func (sl *StepLogger) StartStep(stepName string) {
	stepIndex := -1
	for i, step := range sl.steps {
		if step == stepName {
			stepIndex = i
			break
		}
	}
	if stepIndex == -1 {
		log.Warn().Str("step", stepName).Msg("unknown pipeline step")
		return
	}

	sl.CompleteStep()
	sl.currentStep = stepIndex
	sl.stepStart = time.Now()

	log.Debug().
		Str("step", stepName).
		Int("step_number", stepIndex+1).
		Int("total_steps", len(sl.steps)).
		Msg("starting pipeline step")
}

// CompleteStep records the duration of the running step
func (sl *StepLogger) CompleteStep() {
	if sl.currentStep < 0 || sl.stepTimes[sl.currentStep] != 0 {
		return
	}
	sl.stepTimes[sl.currentStep] = time.Since(sl.stepStart)
	log.Debug().
		Str("step", sl.steps[sl.currentStep]).
		Dur("duration", sl.stepTimes[sl.currentStep]).
		Msg("pipeline step completed")
}

// Durations returns the recorded time per step
func (sl *StepLogger) Durations() map[string]time.Duration {
	out := make(map[string]time.Duration, len(sl.steps))
	for i, step := range sl.steps {
		out[step] = sl.stepTimes[i]
	}
	return out
}

// Finish completes the step logger and logs the timing summary
func (sl *StepLogger) Finish() {
	sl.CompleteStep()
	log.Info().Dur("total_duration", time.Since(sl.startTime)).Int("steps", len(sl.steps)).Msg("pipeline completed")
}

// Fail logs the step the pipeline stopped in
func (sl *StepLogger) Fail(err error) {
	failed := "unknown"
	if sl.currentStep >= 0 {
		failed = sl.steps[sl.currentStep]
	}
	log.Error().Err(err).Str("failed_step", failed).Int("total_steps", len(sl.steps)).Msg("pipeline failed")
}
