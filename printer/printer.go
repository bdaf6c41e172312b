// Package printer holds the receipt printers the counter can be wired to.
package printer

import (
	"bytes"
	"context"
	"net"
	"os"
	"path/filepath"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/Xtsservices/BasavatarakamCanteen2/receipt"
)

// Spool writes each receipt into a directory watched by the print spooler.
type Spool struct {
	Dir    string
	Logger *zap.SugaredLogger
}

func (s *Spool) Print(ctx context.Context, doc receipt.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(s.Dir, 0o755); err != nil {
		return errors.Wrap(err, "create spool dir")
	}
	tmp, err := os.CreateTemp(s.Dir, ".receipt-*")
	if err != nil {
		return errors.Wrap(err, "create spool file")
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.WriteString(doc.HTML); err != nil {
		tmp.Close()
		return errors.Wrap(err, "write spool file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close spool file")
	}
	// the spooler only ever sees complete files
	dst := filepath.Join(s.Dir, doc.Name)
	if err := os.Rename(tmp.Name(), dst); err != nil {
		return errors.Wrap(err, "publish spool file")
	}
	s.Logger.Debugw("receipt spooled", "path", dst)
	return nil
}

// Sender is the part of *tgbotapi.BotAPI the Telegram printer needs.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram posts the receipt as an HTML document to a chat that a print
// station listens on.
type Telegram struct {
	Bot    Sender
	ChatID int64
}

const captionLimit = 1024

func (t *Telegram) Print(ctx context.Context, doc receipt.Document) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewDocument(t.ChatID, tgbotapi.FileBytes{Name: doc.Name, Bytes: []byte(doc.HTML)})
	caption := []rune(doc.Text)
	if len(caption) > captionLimit {
		caption = caption[:captionLimit]
	}
	msg.Caption = string(caption)
	if _, err := t.Bot.Send(msg); err != nil {
		return errors.Wrap(err, "send receipt document")
	}
	return nil
}

// Network sends the text rendering to a raw TCP receipt printer (port 9100
// style) followed by a feed and cut.
type Network struct {
	Addr    string
	Timeout time.Duration
}

var (
	escInit = []byte{0x1b, '@'}
	escCut  = []byte{'\n', '\n', '\n', 0x1d, 'V', 'B', 0x00}
)

func (n *Network) Print(ctx context.Context, doc receipt.Document) error {
	d := net.Dialer{Timeout: n.Timeout}
	conn, err := d.DialContext(ctx, "tcp", n.Addr)
	if err != nil {
		return errors.Wrapf(err, "dial printer %s", n.Addr)
	}
	defer conn.Close()
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(deadline)
	}

	var buf bytes.Buffer
	buf.Write(escInit)
	buf.WriteString(doc.Text)
	buf.Write(escCut)
	if _, err := conn.Write(buf.Bytes()); err != nil {
		return errors.Wrap(err, "write to printer")
	}
	return nil
}
