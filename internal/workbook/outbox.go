package workbook

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/angelmondragon/labaccess-backend/internal/messages"
	"github.com/angelmondragon/labaccess-backend/internal/workspace/gmail"
	pkgerrors "github.com/angelmondragon/labaccess-backend/pkg/errors"
)

var unsafeName = regexp.MustCompile(`[^a-zA-Z0-9@._-]+`)

// Outbox implements messages.Mailer by writing each message as an .eml file.
type Outbox struct {
	mu  sync.Mutex
	dir string
	seq int
	now func() time.Time
}

var _ messages.Mailer = (*Outbox)(nil)

func NewOutbox(dir string) (*Outbox, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, fmt.Errorf("outbox directory required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating outbox: %w", err)
	}
	return &Outbox{dir: dir, now: time.Now}, nil
}

func (o *Outbox) Send(_ context.Context, email messages.Email) error {
	raw, err := gmail.BuildMIME(email)
	if err != nil {
		if pkgerrors.Is(err, pkgerrors.CodeFormat) {
			return err
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "build message")
	}

	o.mu.Lock()
	o.seq++
	name := fmt.Sprintf("%s-%03d-%s.eml", o.now().UTC().Format("20060102T150405"), o.seq, unsafeName.ReplaceAllString(email.To, "_"))
	o.mu.Unlock()

	if err := os.WriteFile(filepath.Join(o.dir, name), raw, 0o644); err != nil {
		return wrap(err, "write message")
	}
	return nil
}
