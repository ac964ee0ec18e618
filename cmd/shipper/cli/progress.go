package cli

import (
	"io"
	"log/slog"
	"os"
	"sync"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/viper"
	"golang.org/x/term"

	"github.com/meigma/shipper"
)

// progressMode returns the configured progress mode: "auto", "tty", or "plain".
func progressMode() string {
	mode := viper.GetString("progress")
	switch mode {
	case "auto", "tty", "plain":
		return mode
	default:
		return "auto"
	}
}

// shouldShowProgress returns true if progress bars should be displayed.
func shouldShowProgress() bool {
	switch progressMode() {
	case "plain":
		return false
	case "tty":
		return true
	default:
		return term.IsTerminal(int(os.Stderr.Fd()))
	}
}

// newProgressBar creates a new progress bar for byte-based operations.
func newProgressBar(w io.Writer, total int64, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions64(
		total,
		progressbar.OptionSetDescription(description),
		progressbar.OptionSetWriter(w),
		progressbar.OptionShowBytes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowCount(),
		progressbar.OptionSetRenderBlankState(true),
		progressbar.OptionUseANSICodes(true),
	)
}

// progressObserver reports provider lifecycle events on stderr, with a
// byte progress bar per provider when bars are enabled.
type progressObserver struct {
	logger *slog.Logger
	out    io.Writer
	bars   bool

	mu   sync.Mutex
	open map[string]*progressbar.ProgressBar
}

// newProgressObserver returns the run observer and a finish function that
// closes any bars still open.
func newProgressObserver(logger *slog.Logger) (shipper.Observer, func()) {
	o := &progressObserver{
		logger: logger,
		out:    os.Stderr,
		bars:   shouldShowProgress(),
		open:   make(map[string]*progressbar.ProgressBar),
	}
	return o, o.finish
}

func (o *progressObserver) OnEvent(e shipper.Event) {
	switch e.Kind {
	case shipper.EventUploadBegin:
		o.logger.Info("uploading", "provider", e.Provider)
	case shipper.EventUploadProgress:
		o.progress(e)
	case shipper.EventUploadSuccess:
		o.close(e.Provider)
		o.logger.Info("uploaded", "provider", e.Provider)
	case shipper.EventUploadFail:
		o.close(e.Provider)
		o.logger.Warn("upload failed", "provider", e.Provider, "error", e.Err)
	case shipper.EventPinBegin:
		o.logger.Info("pinning", "provider", e.Provider)
	case shipper.EventPinSuccess:
		o.logger.Info("pinned", "provider", e.Provider, "cid", e.CID)
	case shipper.EventPinFail:
		o.logger.Warn("pin failed", "provider", e.Provider, "error", e.Err)
	}
}

func (o *progressObserver) progress(e shipper.Event) {
	if !o.bars {
		return
	}
	o.mu.Lock()
	defer o.mu.Unlock()

	bar, ok := o.open[e.Provider]
	if !ok {
		bar = newProgressBar(o.out, e.TotalBytes, e.Provider)
		o.open[e.Provider] = bar
	}
	//nolint:errcheck // progress bar errors are not critical
	bar.Set64(e.BytesTransferred)
}

func (o *progressObserver) close(provider string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if bar, ok := o.open[provider]; ok {
		//nolint:errcheck // progress bar errors are not critical
		bar.Finish()
		delete(o.open, provider)
	}
}

func (o *progressObserver) finish() {
	o.mu.Lock()
	defer o.mu.Unlock()

	for name, bar := range o.open {
		//nolint:errcheck // progress bar errors are not critical
		bar.Finish()
		delete(o.open, name)
	}
}
