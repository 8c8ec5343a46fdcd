package confirmation

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	apperrors "shop-lifecycle/internal/errors"

	"github.com/mattn/go-isatty"
)

// ErrAborted is returned when the operator declines or interrupts a prompt
var ErrAborted = errors.New("operation aborted by user")

// Prompter asks for a yes/no confirmation before a destructive step
type Prompter struct {
	reader      *bufio.Reader
	out         io.Writer
	interactive bool
	autoApprove bool
}

// NewPrompter reads from stdin and writes to stderr. When stdin is not a
// terminal, as under cron or a git hook, every confirmation is granted.
func NewPrompter(autoApprove bool) *Prompter {
	fd := os.Stdin.Fd()
	interactive := isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
	return NewPrompterWithIO(os.Stdin, os.Stderr, interactive, autoApprove)
}

// NewPrompterWithIO creates a Prompter over explicit streams
func NewPrompterWithIO(in io.Reader, out io.Writer, interactive, autoApprove bool) *Prompter {
	return &Prompter{
		reader:      bufio.NewReader(in),
		out:         out,
		interactive: interactive,
		autoApprove: autoApprove,
	}
}

// Confirm asks question with a [y/N] prompt. It returns nil to proceed and an
// interruption error wrapping ErrAborted otherwise. Canceling ctx aborts.
func (p *Prompter) Confirm(ctx context.Context, question string) error {
	if p.autoApprove {
		fmt.Fprintf(p.out, "%s [y/N]: auto-approved\n", question)
		return nil
	}
	if !p.interactive {
		return nil
	}

	for {
		input, err := p.prompt(ctx, question)
		if err != nil {
			return err
		}

		switch strings.ToLower(input) {
		case "y", "yes":
			return nil
		case "n", "no", "":
			return aborted(ErrAborted)
		default:
			fmt.Fprintf(p.out, "Invalid input '%s'. Please enter 'y' for yes or 'n' for no.\n", input)
		}
	}
}

// prompt reads one line, giving up when ctx is canceled. The reading
// goroutine stays blocked on stdin until the process exits.
func (p *Prompter) prompt(ctx context.Context, question string) (string, error) {
	fmt.Fprintf(p.out, "%s [y/N]: ", question)

	type result struct {
		line string
		err  error
	}
	ch := make(chan result, 1)
	go func() {
		line, err := p.reader.ReadString('\n')
		ch <- result{line: line, err: err}
	}()

	select {
	case <-ctx.Done():
		fmt.Fprintln(p.out)
		return "", aborted(ctx.Err())
	case r := <-ch:
		if r.err != nil {
			// a closed stdin with no answer counts as "no"
			if errors.Is(r.err, io.EOF) {
				fmt.Fprintln(p.out)
				return strings.TrimSpace(r.line), nil
			}
			return "", fmt.Errorf("failed to read input: %w", r.err)
		}
		return strings.TrimSpace(r.line), nil
	}
}

func aborted(cause error) error {
	if !errors.Is(cause, ErrAborted) {
		cause = fmt.Errorf("%w: %v", ErrAborted, cause)
	}
	return apperrors.NewAppError(apperrors.ErrorTypeInterruption, "operation aborted before any change was made", cause)
}
