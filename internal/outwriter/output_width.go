package outwriter

import (
	"os"

	"github.com/huangsam/moze/internal/contract"
	"golang.org/x/term"
)

// getMaxTableTextWidth calculates the maximum width for the free-form column
// of a table (unit names, prompts, audit details) from the terminal width.
// fixedWidth is the space the other columns take, borders included.
func getMaxTableTextWidth(cfg *contract.Config, fixedWidth int) int {
	termWidth := cfg.Width

	if termWidth == 0 { // Not set by override
		detectedWidth, _, err := term.GetSize(int(os.Stdout.Fd()))
		if err != nil || detectedWidth <= 0 {
			termWidth = 80 // Conservative default for narrow terminals and CI
		} else {
			termWidth = detectedWidth
		}
	}

	available := termWidth - fixedWidth
	if available < 15 {
		return 15
	}
	if available > 70 {
		return 70
	}
	return available
}
