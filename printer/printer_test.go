package printer

import (
	"context"
	"io"
	"net"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Xtsservices/BasavatarakamCanteen2/receipt"
)

var doc = receipt.Document{Name: "bill-ABC.html", HTML: "<html>bill</html>", Text: "Samosa x2   ₹20.00\n"}

func TestSpoolWritesCompleteFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "spool")
	p := &Spool{Dir: dir, Logger: zap.NewNop().Sugar()}
	require.NoError(t, p.Print(context.Background(), doc))

	body, err := os.ReadFile(filepath.Join(dir, "bill-ABC.html"))
	require.NoError(t, err)
	assert.Equal(t, doc.HTML, string(body))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestSpoolHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p := &Spool{Dir: t.TempDir(), Logger: zap.NewNop().Sugar()}
	assert.Error(t, p.Print(ctx, doc))
}

type fakeSender struct {
	sent []tgbotapi.Chattable
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.sent = append(f.sent, c)
	return tgbotapi.Message{}, f.err
}

func TestTelegramSendsDocument(t *testing.T) {
	s := &fakeSender{}
	p := &Telegram{Bot: s, ChatID: -100123}
	require.NoError(t, p.Print(context.Background(), doc))

	require.Len(t, s.sent, 1)
	d, ok := s.sent[0].(tgbotapi.DocumentConfig)
	require.True(t, ok)
	assert.Equal(t, int64(-100123), d.ChatID)
	assert.Equal(t, doc.Text, d.Caption)
	file, ok := d.File.(tgbotapi.FileBytes)
	require.True(t, ok)
	assert.Equal(t, "bill-ABC.html", file.Name)
	assert.Equal(t, []byte(doc.HTML), file.Bytes)
}

func TestTelegramFailure(t *testing.T) {
	p := &Telegram{Bot: &fakeSender{err: errors.New("chat not found")}}
	assert.Error(t, p.Print(context.Background(), doc))
}

func TestTelegramCaptionIsCut(t *testing.T) {
	s := &fakeSender{}
	long := doc
	long.Text = strings.Repeat("₹", 2000)
	require.NoError(t, (&Telegram{Bot: s}).Print(context.Background(), long))
	d := s.sent[0].(tgbotapi.DocumentConfig)
	assert.Len(t, []rune(d.Caption), captionLimit)
}

func TestNetworkWritesTextAndCut(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	defer ln.Close()

	got := make(chan []byte, 1)
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		b, _ := io.ReadAll(conn)
		got <- b
	}()

	p := &Network{Addr: ln.Addr().String(), Timeout: time.Second}
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, p.Print(ctx, doc))

	select {
	case b := <-got:
		assert.True(t, strings.HasPrefix(string(b), string(escInit)))
		assert.Contains(t, string(b), doc.Text)
		assert.True(t, strings.HasSuffix(string(b), string(escCut)))
	case <-time.After(2 * time.Second):
		t.Fatal("printer received nothing")
	}
}

func TestNetworkUnreachable(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	ln.Close()

	p := &Network{Addr: addr, Timeout: 200 * time.Millisecond}
	assert.Error(t, p.Print(context.Background(), doc))
}
