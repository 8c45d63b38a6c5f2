package config

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"
)

// promptSecretFn is a function-variable seam (teacher idiom, see images.go's
// dockerBuildxAvailableFn) so tests can stub interactive prompting without a
// real TTY.
var promptSecretFn = promptSecret

// promptSecret asks for a value on stdin up to attempts times, only when
// stdin is a terminal, per spec.md §4.2's INPUT_ATTEMPTS rule. It returns
// ok=false if stdin isn't a TTY or every attempt produced an empty value.
func promptSecret(label string, attempts int) (string, bool) {
	fd := int(os.Stdin.Fd())
	if !term.IsTerminal(fd) {
		return "", false
	}
	if attempts < 1 {
		attempts = 1
	}
	for i := 0; i < attempts; i++ {
		fmt.Fprintf(os.Stderr, "%s: ", label)
		raw, err := term.ReadPassword(fd)
		fmt.Fprintln(os.Stderr)
		if err != nil {
			reader := bufio.NewReader(os.Stdin)
			line, _ := reader.ReadString('\n')
			raw = []byte(line)
		}
		v := strings.TrimSpace(string(raw))
		if v != "" {
			return v, true
		}
	}
	return "", false
}
