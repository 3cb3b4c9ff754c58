package automata

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/aretw0/automata/internal/presentation/tui"
	"github.com/aretw0/automata/pkg/domain"
)

// Runner drives an Engine from line-oriented input, rendering every transition to
// Output. This allows for easy testing and integration with different frontends.
//
// Each line is "action [input]" or "automaton/action [input]". Input is decoded as
// JSON when possible and passed as a string otherwise. "quit" or "exit" stop the loop.
type Runner struct {
	Input    io.Reader
	Output   io.Writer
	Headless bool
	Renderer ContentRenderer
}

// ContentRenderer transforms markdown before it is written, e.g. into ANSI.
type ContentRenderer func(string) (string, error)

// NewRunner creates a Runner. Input and Output must be set before Run.
func NewRunner() *Runner {
	return &Runner{}
}

// Run executes the loop until the input ends, a quit command is read or ctx is done.
func (r *Runner) Run(ctx context.Context, engine *Engine) error {
	if r.Input == nil {
		return errors.New("input reader must be set (use os.Stdin)")
	}
	if r.Output == nil {
		return errors.New("output writer must be set (use os.Stdout)")
	}

	appOpts := []tui.Option{tui.WithLogger(engine.Logger())}
	if r.Renderer != nil {
		appOpts = append(appOpts, tui.WithRenderer(tui.RenderFunc(r.Renderer)))
	}
	app := tui.NewApp(r.Output, appOpts...)

	f := engine.Factory()
	names := make([]string, 0)
	for _, a := range f.Automata() {
		names = append(names, a.Name())
	}
	if len(names) == 0 {
		return errors.New("engine has no automata")
	}
	if err := f.Connect(app, names...); err != nil {
		return err
	}
	defer f.Disconnect(app, names...)

	scanner := bufio.NewScanner(r.Input)
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !r.Headless {
			r.prompt(f)
		}
		if !scanner.Scan() {
			return scanner.Err()
		}

		line, err := SanitizeInput(scanner.Text())
		if err != nil {
			engine.Logger().Warn("Runner: input rejected", "err", err)
			fmt.Fprintf(r.Output, "%v\n", err)
			continue
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			return nil
		}

		req := ParseCommand(line)
		if _, err := f.Transit(ctx, req); err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return err
			}
			if !errors.Is(err, domain.ErrNoMatchingTransition) && !errors.Is(err, domain.ErrUnknownAutomaton) {
				return fmt.Errorf("transit error: %w", err)
			}
			fmt.Fprintf(r.Output, "%v\n", err)
		}
	}
}

func (r *Runner) prompt(f *Factory) {
	automata := f.Automata()
	for i, a := range automata {
		if i < len(automata)-1 {
			fmt.Fprintln(r.Output, strings.TrimSuffix(tui.Prompt(a), "> "))
			continue
		}
		fmt.Fprint(r.Output, tui.Prompt(a))
	}
}

// ParseCommand turns an input line into a transit request.
func ParseCommand(line string) TransitRequest {
	head, rest, _ := strings.Cut(strings.TrimSpace(line), " ")
	req := TransitRequest{Action: head, Name: "runner"}
	if automaton, action, ok := strings.Cut(head, "/"); ok {
		req.Automaton = automaton
		req.Action = action
	}

	rest = strings.TrimSpace(rest)
	if rest == "" {
		return req
	}
	var input any
	if err := json.Unmarshal([]byte(rest), &input); err != nil {
		input = rest
	}
	req.Input = input
	return req
}
