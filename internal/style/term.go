package style

import (
	"os"

	"golang.org/x/term"
)

// fallbackWidth is used when stdout is not a terminal (pipes, CI).
const fallbackWidth = 100

// TermWidth returns the display width of the terminal on stdout.
func TermWidth() int {
	w, _, err := term.GetSize(int(os.Stdout.Fd()))
	if err != nil || w <= 0 {
		return fallbackWidth
	}
	return w
}

// FitWidth shrinks a preferred column width so the whole table fits the
// terminal, never going below min.
func FitWidth(preferred, used, min int) int {
	avail := TermWidth() - used
	if avail >= preferred {
		return preferred
	}
	if avail < min {
		return min
	}
	return avail
}
