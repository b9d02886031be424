// Copyright (c) Jeff Berkowitz 2021, 2026. All rights reserved.

package console

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/davecgh/go-spew/spew"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errLinkClosed = errors.New("link closed")

// fakeLink is both halves of a serial link. Reads time out after a few
// milliseconds like the real port; writes are recorded with the time they
// happened.
type fakeLink struct {
	incoming chan []byte
	closed   chan struct{}
	once     sync.Once

	mu     sync.Mutex
	writes [][]byte
	when   []time.Time
}

func newFakeLink() *fakeLink {
	return &fakeLink{incoming: make(chan []byte, 8), closed: make(chan struct{})}
}

func (f *fakeLink) Read(p []byte) (int, error) {
	select {
	case <-f.closed:
		return 0, errLinkClosed
	case b := <-f.incoming:
		return copy(p, b), nil
	case <-time.After(5 * time.Millisecond):
		return 0, nil
	}
}

func (f *fakeLink) Write(p []byte) (int, error) {
	select {
	case <-f.closed:
		return 0, errLinkClosed
	default:
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	w := make([]byte, len(p))
	copy(w, p)
	f.writes = append(f.writes, w)
	f.when = append(f.when, time.Now())
	return len(p), nil
}

func (f *fakeLink) Close() error {
	f.once.Do(func() { close(f.closed) })
	return nil
}

func (f *fakeLink) isClosed() bool {
	select {
	case <-f.closed:
		return true
	default:
		return false
	}
}

func (f *fakeLink) recorded() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.writes...)
}

// scriptInput delivers its lines and then either ends (io.EOF) or, if
// hold is set, blocks until closed like an idle terminal.
type scriptInput struct {
	lines  chan string
	closed chan struct{}
	once   sync.Once
}

func newScriptInput(hold bool, lines ...string) *scriptInput {
	si := &scriptInput{lines: make(chan string, len(lines)), closed: make(chan struct{})}
	for _, l := range lines {
		si.lines <- l
	}
	if !hold {
		close(si.lines)
	}
	return si
}

func (si *scriptInput) ReadLine() (string, error) {
	select {
	case l, ok := <-si.lines:
		if !ok {
			return "", io.EOF
		}
		return l, nil
	case <-si.closed:
		return "", io.EOF
	}
}

func (si *scriptInput) Close() error {
	si.once.Do(func() { close(si.closed) })
	return nil
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (sb *syncBuffer) Write(p []byte) (int, error) {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	return sb.buf.Write(p)
}

func (sb *syncBuffer) String() string {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	return sb.buf.String()
}

func runConsole(t *testing.T, link *fakeLink, out io.Writer, lines ...string) {
	c := New(link, link, link, newScriptInput(false, lines...), out, WithBlockPause(5*time.Millisecond))
	require.NoError(t, c.Run(context.Background()))
	assert.True(t, link.isClosed(), "link is closed when the console ends")
}

func writeTestFile(t *testing.T, size int) string {
	content := make([]byte, size)
	for i := range content {
		content[i] = byte(i ^ (i >> 8))
	}
	path := filepath.Join(t.TempDir(), "test.bin")
	require.NoError(t, os.WriteFile(path, content, 0644))
	return path
}

func TestLinesAreForwarded(t *testing.T) {
	link := newFakeLink()
	runConsole(t, link, io.Discard, "hello", "", "w 0100 ff")
	assert.Equal(t, [][]byte{[]byte("hello\n"), []byte("\n"), []byte("w 0100 ff\n")}, link.recorded())
}

func TestLocalUpload(t *testing.T) {
	path := writeTestFile(t, 0x300)
	content, err := os.ReadFile(path)
	require.NoError(t, err)

	link := newFakeLink()
	out := &syncBuffer{}
	runConsole(t, link, out, "local upload "+path+" 0100")

	writes := link.recorded()
	require.Len(t, writes, 4, spew.Sdump(writes))
	for i, w := range writes {
		start := 0x100 + i*64
		assert.Equal(t, content[start:start+64], w, "block %d", i)
	}
	for i := 1; i < len(link.when); i++ {
		assert.GreaterOrEqual(t, link.when[i].Sub(link.when[i-1]), 5*time.Millisecond)
	}
	assert.Contains(t, out.String(), "uploaded 256 bytes")
}

func TestLocalUploadMixedCaseOffset(t *testing.T) {
	path := writeTestFile(t, 0x300)
	content, err := os.ReadFile(path)
	require.NoError(t, err)

	link := newFakeLink()
	runConsole(t, link, io.Discard, "local upload "+path+" 01aB", "next")

	writes := link.recorded()
	require.Len(t, writes, 5)
	assert.Equal(t, content[0x1AB:0x1AB+64], writes[0])
	assert.Equal(t, content[0x1AB+192:0x1AB+256], writes[3])
	assert.Equal(t, []byte("next\n"), writes[4])
}

func TestMalformedLocalCommandIsNotForwarded(t *testing.T) {
	path := writeTestFile(t, 0x300)
	for _, line := range []string{
		"local upload " + path + " 100",
		"local upload " + path + " 01000",
		"local upload " + path + " zz00",
		"local upload " + path,
		"local frobnicate",
		"local",
	} {
		link := newFakeLink()
		out := &syncBuffer{}
		runConsole(t, link, out, line)
		assert.Empty(t, link.recorded(), line)
		assert.Contains(t, out.String(), "malformed local command", line)
	}
}

func TestLocalLookalikeIsForwarded(t *testing.T) {
	link := newFakeLink()
	runConsole(t, link, io.Discard, "locally upload x 0100")
	assert.Equal(t, [][]byte{[]byte("locally upload x 0100\n")}, link.recorded())
}

func TestLocalUploadPastEndOfFile(t *testing.T) {
	path := writeTestFile(t, 0x1FF)
	link := newFakeLink()
	out := &syncBuffer{}
	runConsole(t, link, out, "local upload "+path+" 0100", "still here")

	assert.Equal(t, [][]byte{[]byte("still here\n")}, link.recorded())
	assert.Contains(t, out.String(), "runs past end of file")
}

func TestLocalUploadMissingFile(t *testing.T) {
	missing := filepath.Join(t.TempDir(), "nope.bin")
	link := newFakeLink()
	out := &syncBuffer{}
	runConsole(t, link, out, "local upload "+missing+" 0000")

	assert.Empty(t, link.recorded())
	assert.Contains(t, out.String(), "nope.bin")
}

func TestLocalHelp(t *testing.T) {
	link := newFakeLink()
	out := &syncBuffer{}
	runConsole(t, link, out, "local help")
	assert.Empty(t, link.recorded())
	assert.Contains(t, out.String(), "local upload <path> <hhhh>")
}

func TestEchoUntilCancelled(t *testing.T) {
	link := newFakeLink()
	out := &syncBuffer{}
	in := newScriptInput(true)
	c := New(link, link, link, in, out)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- c.Run(ctx) }()

	link.incoming <- []byte("rea")
	link.incoming <- []byte("dy\r\n> ")
	assert.Eventually(t, func() bool {
		return out.String() == "ready\r\n> "
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("console did not stop")
	}
	assert.True(t, link.isClosed())
}

func TestClosedLinkStopsConsole(t *testing.T) {
	link := newFakeLink()
	in := newScriptInput(true)
	c := New(link, link, link, in, io.Discard)

	done := make(chan error, 1)
	go func() { done <- c.Run(context.Background()) }()
	link.Close()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("console did not notice the closed link")
	}
}

func TestIsLocal(t *testing.T) {
	assert.True(t, isLocal("local upload a 0000"))
	assert.True(t, isLocal("  local"))
	assert.False(t, isLocal("locale"))
	assert.False(t, isLocal(""))
	assert.False(t, isLocal("send local"))
}

func TestUploadRangeErrorText(t *testing.T) {
	err := &UploadRangeError{Path: "x.bin", Offset: 0x100, Size: 10}
	assert.True(t, strings.HasPrefix(err.Error(), "x.bin: upload of 256 bytes at 0x0100"))
}
