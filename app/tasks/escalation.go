package tasks

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/lysyi3m/rss-press/app/database"
)

// Decision is what happens to a feed whose paywall hits reached the threshold.
type Decision int

const (
	DecisionContinue Decision = iota
	DecisionMarkPaywalled
	DecisionDeactivate
	DecisionRemove
)

func (d Decision) String() string {
	switch d {
	case DecisionMarkPaywalled:
		return "mark_paywalled"
	case DecisionDeactivate:
		return "deactivate"
	case DecisionRemove:
		return "remove"
	default:
		return "continue"
	}
}

const (
	PolicyAutoFlag       = "auto-flag"
	PolicyAutoDeactivate = "auto-deactivate"
	PolicyAutoIgnore     = "auto-ignore"
	PolicyPrompt         = "prompt"
)

var EscalationPolicies = []string{PolicyAutoFlag, PolicyAutoDeactivate, PolicyAutoIgnore, PolicyPrompt}

type EscalationPolicy interface {
	Decide(ctx context.Context, f database.Feed, recentHits int) (Decision, error)
}

type AutoFlag struct{}

func (AutoFlag) Decide(context.Context, database.Feed, int) (Decision, error) {
	return DecisionMarkPaywalled, nil
}

type AutoDeactivate struct{}

func (AutoDeactivate) Decide(context.Context, database.Feed, int) (Decision, error) {
	return DecisionDeactivate, nil
}

type AutoIgnore struct{}

func (AutoIgnore) Decide(context.Context, database.Feed, int) (Decision, error) {
	return DecisionContinue, nil
}

// PromptOperator asks on out and reads the choice from in. It is the only
// policy that blocks on the operator.
type PromptOperator struct {
	mu    sync.Mutex
	in    *bufio.Reader
	out   io.Writer
	start sync.Once
	lines chan promptLine
}

type promptLine struct {
	text string
	err  error
}

func NewPromptOperator(in io.Reader, out io.Writer) *PromptOperator {
	return &PromptOperator{in: bufio.NewReader(in), out: out, lines: make(chan promptLine)}
}

func (p *PromptOperator) Decide(ctx context.Context, f database.Feed, recentHits int) (Decision, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.out, "\nFeed %q (%s) hit a paywall %d times recently.\n", f.Name, f.URL, recentHits)
	fmt.Fprintln(p.out, "  1) mark as paywalled")
	fmt.Fprintln(p.out, "  2) remove feed")
	fmt.Fprintln(p.out, "  3) continue processing")

	for {
		fmt.Fprint(p.out, "Choice [1-3]: ")

		line, err := p.readLine(ctx)
		if err != nil {
			return DecisionContinue, fmt.Errorf("failed to read operator choice: %w", err)
		}

		switch strings.TrimSpace(line) {
		case "1":
			return DecisionMarkPaywalled, nil
		case "2":
			return DecisionRemove, nil
		case "3":
			return DecisionContinue, nil
		}
		fmt.Fprintln(p.out, "Please enter 1, 2 or 3.")
	}
}

// readLine waits for the next line from the single reader goroutine. A line
// read while nobody waits is kept for the next call.
func (p *PromptOperator) readLine(ctx context.Context) (string, error) {
	p.start.Do(func() { go p.readLoop() })

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case line, ok := <-p.lines:
		if !ok {
			return "", io.EOF
		}
		return line.text, line.err
	}
}

func (p *PromptOperator) readLoop() {
	defer close(p.lines)
	for {
		text, err := p.in.ReadString('\n')
		if err == io.EOF && text != "" {
			p.lines <- promptLine{text: text}
			continue
		}
		p.lines <- promptLine{text: text, err: err}
		if err != nil {
			return
		}
	}
}

func NewEscalationPolicy(name string, in io.Reader, out io.Writer) (EscalationPolicy, error) {
	switch name {
	case PolicyAutoFlag, "":
		return AutoFlag{}, nil
	case PolicyAutoDeactivate:
		return AutoDeactivate{}, nil
	case PolicyAutoIgnore:
		return AutoIgnore{}, nil
	case PolicyPrompt:
		return NewPromptOperator(in, out), nil
	default:
		return nil, fmt.Errorf("unknown escalation policy %q", name)
	}
}
