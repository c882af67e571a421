package notify

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"
	"unicode"

	"go.uber.org/zap"
)

func init() {
	Register("file", func(s Settings, _ *zap.SugaredLogger) (Backend, error) {
		return NewFileBackend(s.OutputDir)
	})
}

// FileBackend writes each message to `<dir>/YYYYMMDD_HHMMSS_<subject>.txt`.
type FileBackend struct {
	dir string
	now func() time.Time
}

// NewFileBackend creates dir when missing.
func NewFileBackend(dir string) (*FileBackend, error) {
	if dir == "" {
		return nil, fmt.Errorf("%w: file channel needs output_dir", ErrInvalidSettings)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create notification dir: %w", err)
	}
	return &FileBackend{dir: dir, now: time.Now}, nil
}

// Send implements Backend.  Messages with the same subject in the same
// second get a numeric suffix instead of overwriting each other.
func (b *FileBackend) Send(ctx context.Context, msg Message, s Settings) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var body strings.Builder
	fmt.Fprintf(&body, "Subject: %s\n", msg.Subject)
	fmt.Fprintf(&body, "Channel: %s\n", msg.ChannelOr(s.Channel))
	fmt.Fprintf(&body, "Destination: %s\n", strings.Join(s.Destination, ", "))
	body.WriteString(strings.Repeat("-", 20) + "\n")
	body.WriteString(msg.Content)
	body.WriteString("\n")

	stem := b.now().Format("20060102_150405") + "_" + sanitize(msg.Subject)
	for i := 1; ; i++ {
		name := stem + ".txt"
		if i > 1 {
			name = fmt.Sprintf("%s_%d.txt", stem, i)
		}
		f, err := os.OpenFile(filepath.Join(b.dir, name), os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return fmt.Errorf("write notification: %w", err)
		}
		_, werr := f.WriteString(body.String())
		if cerr := f.Close(); werr == nil {
			werr = cerr
		}
		return werr
	}
}

// sanitize keeps letters and digits and replaces everything else with "_".
func sanitize(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			return r
		}
		return '_'
	}, s)
}
