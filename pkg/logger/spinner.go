package logger

import (
	"fmt"
	"strings"
	"sync"
	"time"
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// Spinner animates a single status line until stopped
type Spinner struct {
	mu      sync.Mutex
	message string
	stop    chan struct{}
	done    chan struct{}
	tick    time.Duration
}

func NewSpinner(message string) *Spinner {
	return &Spinner{message: message, tick: 100 * time.Millisecond}
}

// Start begins drawing. Calling it on a running spinner does nothing.
func (s *Spinner) Start() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stop != nil {
		return
	}
	s.stop = make(chan struct{})
	s.done = make(chan struct{})
	go s.run(s.stop, s.done)
}

func (s *Spinner) run(stop <-chan struct{}, done chan<- struct{}) {
	defer close(done)
	t := time.NewTicker(s.tick)
	defer t.Stop()
	for i := 0; ; i++ {
		s.mu.Lock()
		msg := s.message
		s.mu.Unlock()
		frame := paint(keyColor, spinnerFrames[i%len(spinnerFrames)])
		_, _ = fmt.Fprintf(Output(), "\r%s %s", frame, msg)

		select {
		case <-stop:
			_, _ = fmt.Fprintf(Output(), "\r%s\r", strings.Repeat(" ", len(msg)+4))
			return
		case <-t.C:
		}
	}
}

// Stop clears the line and waits for the drawing goroutine to exit
func (s *Spinner) Stop() {
	s.mu.Lock()
	stop, done := s.stop, s.done
	s.stop, s.done = nil, nil
	s.mu.Unlock()
	if stop == nil {
		return
	}
	close(stop)
	<-done
}

func (s *Spinner) SetMessage(message string) {
	s.mu.Lock()
	s.message = message
	s.mu.Unlock()
}

// WithSpinner runs fn behind a spinner and logs how it went
func WithSpinner(message string, fn func() error) error {
	s := NewSpinner(message)
	s.Start()
	err := fn()
	s.Stop()
	if err != nil {
		Errorf("%s failed: %v", message, err)
		return err
	}
	Successf("%s done", message)
	return nil
}

// ProgressBar draws a percentage bar on one line
type ProgressBar struct {
	mu      sync.Mutex
	total   int
	current int
	width   int
	label   string
}

func NewProgressBar(total int, label string) *ProgressBar {
	if total <= 0 {
		total = 1
	}
	return &ProgressBar{total: total, width: 40, label: label}
}

// Update sets the current count, clamped to [0, total]
func (p *ProgressBar) Update(current int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = clamp(current, 0, p.total)
	p.draw()
}

func (p *ProgressBar) Increment() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = clamp(p.current+1, 0, p.total)
	p.draw()
}

func (p *ProgressBar) Finish() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.current = p.total
	p.draw()
	_, _ = fmt.Fprintln(Output())
}

// Fraction is the completed share in [0, 1]
func (p *ProgressBar) Fraction() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return float64(p.current) / float64(p.total)
}

func (p *ProgressBar) draw() {
	frac := float64(p.current) / float64(p.total)
	filled := int(frac * float64(p.width))
	bar := strings.Repeat("█", filled) + strings.Repeat("░", p.width-filled)
	if console.colored() {
		bar = paint(passColor, bar)
	} else {
		bar = "[" + bar + "]"
	}
	_, _ = fmt.Fprintf(Output(), "\r%s: %s %3.0f%%", p.label, bar, frac*100)
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
