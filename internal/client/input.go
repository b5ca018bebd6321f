package client

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"
)

// readTerminalPassword is a test seam for term.ReadPassword.
var readTerminalPassword = term.ReadPassword

// PasswordReader asks for one password.
type PasswordReader func(prompt string) (string, error)

// NewPasswordReader reads without echo when in is a terminal and falls back
// to one line of plain input otherwise, so that passwords can be piped in.
// Prompts go to w.
func NewPasswordReader(in *os.File, w io.Writer) PasswordReader {
	reader := bufio.NewReader(in)
	return func(prompt string) (string, error) {
		if _, err := fmt.Fprint(w, prompt); err != nil {
			return "", err
		}

		if term.IsTerminal(int(in.Fd())) {
			pw, err := readTerminalPassword(int(in.Fd()))
			fmt.Fprintln(w)
			if err != nil {
				return "", fmt.Errorf("read password: %w", err)
			}
			return string(pw), nil
		}

		return readLine(reader)
	}
}

func readLine(reader *bufio.Reader) (string, error) {
	line, err := reader.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && len(line) > 0) {
		return "", fmt.Errorf("read password: %w", err)
	}
	return strings.TrimRight(line, "\r\n"), nil
}
