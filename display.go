package main

// Terminal display helpers: ANSI coloring, usage text, and the fatal/warn
// exit path. Grounded on util.go's colorize/style*/fatal/printUsage
// helpers, trimmed to the subset this CLI's surface needs and generalized
// so fatal reports the exit code table from spec.md §6 instead of a flat 1.

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"golang.org/x/term"

	"splunkctl/internal/errs"
)

var ansiEnabled = initAnsiEnabled()

// initAnsiEnabled mirrors util.go's initAnsiEnabled, renamed to this
// project's own env var per SPEC_FULL.md §A.1 (SPLUNKCTL_NO_COLOR in place
// of the teacher's SI_NO_COLOR/SI_COLOR).
func initAnsiEnabled() bool {
	if strings.TrimSpace(os.Getenv("NO_COLOR")) != "" || strings.TrimSpace(os.Getenv("SPLUNKCTL_NO_COLOR")) != "" {
		return false
	}
	if strings.EqualFold(strings.TrimSpace(os.Getenv("TERM")), "dumb") {
		return false
	}
	if force := strings.TrimSpace(os.Getenv("SPLUNKCTL_COLOR")); force != "" {
		return force == "1" || strings.EqualFold(force, "true")
	}
	if force := strings.TrimSpace(os.Getenv("CLICOLOR_FORCE")); force != "" && force != "0" {
		return true
	}
	return term.IsTerminal(int(os.Stdout.Fd()))
}

func ansi(codes ...string) string {
	return "\x1b[" + strings.Join(codes, ";") + "m"
}

func colorize(s string, codes ...string) string {
	if !ansiEnabled || s == "" {
		return s
	}
	return ansi(codes...) + s + ansi("0")
}

func styleHeading(s string) string { return colorize(s, "1", "36") }
func styleCmd(s string) string     { return colorize(s, "1", "32") }
func styleFlag(s string) string    { return colorize(s, "33") }
func styleDim(s string) string     { return colorize(s, "90") }
func styleSuccess(s string) string { return colorize(s, "32") }
func styleWarn(s string) string    { return colorize(s, "33") }
func styleError(s string) string   { return colorize(s, "31") }
func styleUsage(s string) string   { return colorize(s, "1", "33") }

const splunkctlVersion = "v0.1.0"

func printVersion() {
	fmt.Println(splunkctlVersion)
}

func printUsage(line string) {
	raw := strings.TrimSpace(line)
	if strings.HasPrefix(raw, "usage:") {
		rest := strings.TrimSpace(strings.TrimPrefix(raw, "usage:"))
		fmt.Printf("%s %s\n", styleUsage("usage:"), rest)
		return
	}
	fmt.Println(styleUsage(raw))
}

func printUnknown(kind, cmd string) {
	kind = strings.TrimSpace(kind)
	if kind != "" {
		kind = kind + " "
	}
	fmt.Fprintf(os.Stderr, "%s %s%s\n", styleError("unknown"), kind+"command:", styleCmd(cmd))
}

func warnf(format string, args ...interface{}) {
	fmt.Fprintln(os.Stderr, styleWarn("warning:")+" "+fmt.Sprintf(format, args...))
}

// fatal prints err and exits with the spec.md §6 exit code for its kind,
// generalizing util.go's fatal (which always exits 1) to the typed table
// the orchestration pipeline's errors carry.
func fatal(err error) {
	fmt.Fprintln(os.Stderr, styleError(err.Error()))
	os.Exit(errs.ExitCode(err))
}

func usage() {
	fmt.Print(colorizeHelp(`splunkctl [command] [args]

Deploys and manages a containerized Splunk + app cluster via Docker or
Podman Compose.

Commands:
  orchestrate   resolve config, render compose, pull images, bring the
                stack up, and wait for every service to become healthy
  bundle        assemble an air-gapped distributable (images + compose +
                manifest + boot script) for offline deployment
  doctor        run host preflight and runtime/capability detection and
                print the report without changing anything
  compose       compose print: render the compose document and print it
                without applying it
  docker        pass args straight through to the detected runtime binary
  version       print the version
  help          show this text

Run "splunkctl <command> --help" for a command's flags.
`))
}

func colorizeHelp(text string) string {
	if !ansiEnabled {
		return text
	}
	lines := strings.Split(text, "\n")
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if strings.HasSuffix(trimmed, ":") && !strings.Contains(trimmed, " ") {
			prefix := line[:len(line)-len(strings.TrimLeft(line, " "))]
			lines[i] = prefix + styleHeading(trimmed)
		}
	}
	return strings.Join(lines, "\n")
}

// isInteractiveTerminal reports whether stdin is a TTY, the gate the
// teacher's confirm.go and -i/--interactive flag checks against before
// prompting rather than blocking a non-interactive run.
func isInteractiveTerminal() bool {
	return term.IsTerminal(int(os.Stdin.Fd()))
}

func promptLine(f *os.File) (string, error) {
	line, err := bufio.NewReader(f).ReadString('\n')
	return strings.TrimRight(line, "\r\n"), err
}

func isEscCancelInput(value string) bool {
	return strings.ContainsRune(value, '\x1b')
}
