package chainz

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
)

// Handler answers one line of REPL input.
type Handler func(ctx context.Context, line string) string

// IsExitCommand reports whether line ends a REPL session.
func IsExitCommand(line string) bool {
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "exit", "quit":
		return true
	}
	return false
}

// RunREPL reads lines from in and writes each answer to out until "exit", "quit",
// EOF, or ctx is done. Blank lines are skipped. Each line is handled to completion
// before the next is read.
func RunREPL(ctx context.Context, in io.Reader, out io.Writer, prompt string, handle Handler) error {
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := fmt.Fprint(out, prompt); err != nil {
			return err
		}
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return fmt.Errorf("read input: %w", err)
			}
			fmt.Fprintln(out)
			return nil
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		if IsExitCommand(line) {
			_, err := fmt.Fprintln(out, "Goodbye!")
			return err
		}
		if _, err := fmt.Fprintf(out, "\n%s\n", handle(ctx, line)); err != nil {
			return err
		}
	}
}
