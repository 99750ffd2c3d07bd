package reembed

import (
	"fmt"
	"io"

	"github.com/schollz/progressbar/v3"
)

// Progress receives the number of chunks finished so far.
type Progress interface {
	Add(n int) error
	Finish() error
}

// NewProgressBar renders progress over total chunks to w.
func NewProgressBar(w io.Writer, total int) Progress {
	return progressbar.NewOptions(total,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription("Re-embedding"),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetItsString("chunks"),
		progressbar.OptionOnCompletion(func() {
			fmt.Fprintln(w)
		}),
	)
}

type noProgress struct{}

func (noProgress) Add(int) error { return nil }
func (noProgress) Finish() error { return nil }
