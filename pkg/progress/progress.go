package progress

import (
	"fmt"
	"io"
	"time"

	"github.com/schollz/progressbar/v3"
)

// Bar counts applied steps of a batch on out, labelling each with the step
// currently running.
type Bar struct {
	*progressbar.ProgressBar
	out io.Writer
}

func NewBar(out io.Writer, total int, description string) *Bar {
	bar := progressbar.NewOptions(total,
		progressbar.OptionSetWriter(out),
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "=",
			SaucerHead:    ">",
			SaucerPadding: " ",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(out)
		}),
	)

	return &Bar{ProgressBar: bar, out: out}
}

// Step marks one step done and shows label as the next description.
func (b *Bar) Step(label string) {
	if b == nil || b.ProgressBar == nil {
		return
	}
	b.Describe(label)
	_ = b.Add(1)
}

func (b *Bar) Finish() {
	if b == nil || b.ProgressBar == nil {
		return
	}
	_ = b.ProgressBar.Finish()
}
