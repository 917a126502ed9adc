// Package cli holds the output helpers shared by the gns3cp commands.
package cli

import (
	"os"
	"strings"
)

// colorEnabled is false when NO_COLOR is set (see no-color.org).
var colorEnabled = os.Getenv("NO_COLOR") == ""

func wrap(code, s string) string {
	if !colorEnabled {
		return s
	}
	return "\033[" + code + "m" + s + "\033[0m"
}

// Green, Yellow, Red, Bold and Dim wrap s in the matching ANSI code.
func Green(s string) string  { return wrap("32", s) }
func Yellow(s string) string { return wrap("33", s) }
func Red(s string) string    { return wrap("31", s) }
func Bold(s string) string   { return wrap("1", s) }
func Dim(s string) string    { return wrap("2", s) }

// Status colors a node or outcome status: green when up or done, yellow
// when stopped or cancelled, red when failed.
func Status(s string) string {
	switch strings.ToLower(s) {
	case "running", "started", "online", "succeeded", "ok":
		return Green(s)
	case "stopped", "offline", "cancelled", "compensated":
		return Yellow(s)
	case "failed", "error":
		return Red(s)
	}
	return s
}

// DotPad pads name with dots to width: DotPad("subnet", 12) is
// "subnet .....".
func DotPad(name string, width int) string {
	if width <= 0 || len(name) >= width-1 {
		return name
	}
	return name + " " + strings.Repeat(".", width-len(name)-1)
}
