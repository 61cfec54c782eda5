package commands

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"
)

// prompter asks for values that were not given as flags, it only asks when
// stdin is a terminal.
type prompter struct {
	in          *bufio.Reader
	out         io.Writer
	interactive bool
}

func newPrompter() prompter {
	return prompter{
		in:          bufio.NewReader(os.Stdin),
		out:         os.Stderr,
		interactive: term.IsTerminal(int(os.Stdin.Fd())),
	}
}

// Int returns value when it was given, otherwise it asks for it. An empty
// answer keeps fallback.
func (p prompter) Int(question string, value int, given bool, fallback int) (int, error) {
	if given || !p.interactive {
		if given {
			return value, nil
		}
		return fallback, nil
	}
	for {
		fmt.Fprintf(p.out, "%s ", question)
		line, err := p.in.ReadString('\n')
		line = strings.TrimSpace(line)
		if line == "" {
			if err != nil && err != io.EOF {
				return 0, err
			}
			return fallback, nil
		}
		n, convErr := strconv.Atoi(strings.ReplaceAll(line, ",", ""))
		if convErr == nil {
			return n, nil
		}
		if err != nil {
			return 0, fmt.Errorf("%q is not a number", line)
		}
		fmt.Fprintf(p.out, "%q is not a number.\n", line)
	}
}
