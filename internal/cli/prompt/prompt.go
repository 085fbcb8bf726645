package prompt

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"golang.org/x/term"
)

// ErrAborted is returned when input ends before an answer is given
var ErrAborted = errors.New("aborted")

// Prompter asks the user for values
type Prompter interface {
	// Prompt asks for a value; an empty answer returns def, and is
	// re-asked when def is also empty.
	Prompt(label, def string) (string, error)
	// Hidden asks for a value without echoing it
	Hidden(label string) (string, error)
	// Confirm asks a yes/no question
	Confirm(label string, def bool) (bool, error)
	// Int asks for an integer
	Int(label string, def int) (int, error)
	// Choice asks for one of choices
	Choice(label string, choices []string, def string) (string, error)
}

// Terminal prompts on a reader/writer pair
type Terminal struct {
	in  *bufio.Reader
	out io.Writer
	fd  int
}

// NewTerminal creates a prompter reading in and writing questions to out.
// Hidden input only suppresses echo when in is a terminal.
func NewTerminal(in io.Reader, out io.Writer) *Terminal {
	fd := -1
	if f, ok := in.(*os.File); ok {
		fd = int(f.Fd())
	}
	return &Terminal{in: bufio.NewReader(in), out: out, fd: fd}
}

func (t *Terminal) readLine() (string, error) {
	line, err := t.in.ReadString('\n')
	if err != nil && (err != io.EOF || line == "") {
		if err == io.EOF {
			return "", ErrAborted
		}
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

// Prompt implements Prompter
func (t *Terminal) Prompt(label, def string) (string, error) {
	for {
		if def != "" {
			fmt.Fprintf(t.out, "%s [%s]: ", label, def)
		} else {
			fmt.Fprintf(t.out, "%s: ", label)
		}

		answer, err := t.readLine()
		if err != nil {
			return "", err
		}
		answer = strings.TrimSpace(answer)
		if answer == "" {
			answer = def
		}
		if answer != "" {
			return answer, nil
		}
	}
}

// Hidden implements Prompter
func (t *Terminal) Hidden(label string) (string, error) {
	for {
		fmt.Fprintf(t.out, "%s: ", label)

		var answer string
		if t.fd >= 0 && term.IsTerminal(t.fd) {
			b, err := term.ReadPassword(t.fd)
			fmt.Fprintln(t.out)
			if err != nil {
				return "", err
			}
			answer = string(b)
		} else {
			line, err := t.readLine()
			if err != nil {
				return "", err
			}
			answer = line
		}

		if answer = strings.TrimSpace(answer); answer != "" {
			return answer, nil
		}
	}
}

// Confirm implements Prompter
func (t *Terminal) Confirm(label string, def bool) (bool, error) {
	hint := "y/N"
	if def {
		hint = "Y/n"
	}
	for {
		fmt.Fprintf(t.out, "%s [%s]: ", label, hint)
		answer, err := t.readLine()
		if err != nil {
			return false, err
		}
		switch strings.ToLower(strings.TrimSpace(answer)) {
		case "":
			return def, nil
		case "y", "yes", "true", "1":
			return true, nil
		case "n", "no", "false", "0":
			return false, nil
		}
		fmt.Fprintln(t.out, "Error: invalid input")
	}
}

// Int implements Prompter
func (t *Terminal) Int(label string, def int) (int, error) {
	for {
		answer, err := t.Prompt(label, strconv.Itoa(def))
		if err != nil {
			return 0, err
		}
		n, err := strconv.Atoi(answer)
		if err == nil {
			return n, nil
		}
		fmt.Fprintf(t.out, "Error: %s is not a valid integer\n", answer)
	}
}

// Choice implements Prompter
func (t *Terminal) Choice(label string, choices []string, def string) (string, error) {
	full := fmt.Sprintf("%s (%s)", label, strings.Join(choices, ", "))
	for {
		answer, err := t.Prompt(full, def)
		if err != nil {
			return "", err
		}
		for _, c := range choices {
			if c == answer {
				return answer, nil
			}
		}
		fmt.Fprintf(t.out, "Error: invalid choice: %s. (choose from %s)\n", answer, strings.Join(choices, ", "))
	}
}
