package sender

import (
	"bytes"
	"context"
	"errors"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/keycast/keycast/internal/core"
	"github.com/keycast/keycast/internal/core/token"
	"github.com/keycast/keycast/internal/transfer"
	"github.com/sirupsen/logrus/hooks/test"
)

var errUnplugged = errors.New("device unplugged")

type fakeTransport struct {
	mu     sync.Mutex
	writes [][]byte
	// paused is the number of SendEnabled calls that report false.
	paused int
	// failAt makes the write with this index fail when non-negative.
	failAt int
}

func newFakeTransport() *fakeTransport { return &fakeTransport{failAt: -1} }

func (f *fakeTransport) Write(p []byte) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failAt == len(f.writes) {
		return 0, errUnplugged
	}
	f.writes = append(f.writes, append([]byte(nil), p...))
	return len(p), nil
}

func (f *fakeTransport) SendEnabled() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.paused > 0 {
		f.paused--
		return false
	}
	return true
}

func (f *fakeTransport) Close() error { return nil }
func (f *fakeTransport) Name() string { return "fake" }

func (f *fakeTransport) written() [][]byte {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([][]byte(nil), f.writes...)
}

// instantScheduler records every wait without blocking.
type instantScheduler struct {
	sleeps  []time.Duration
	polls   int
	onSleep func()
}

func (s *instantScheduler) Sleep(ctx context.Context, d time.Duration) error {
	s.sleeps = append(s.sleeps, d)
	if s.onSleep != nil {
		s.onSleep()
	}
	return ctx.Err()
}

func (s *instantScheduler) WaitUntil(ctx context.Context, ready func() bool, _ time.Duration) error {
	for !ready() {
		s.polls++
		if err := ctx.Err(); err != nil {
			return err
		}
	}
	return nil
}

func newTestSender(t *testing.T, policy string, tr *fakeTransport) (*Sender, *instantScheduler) {
	t.Helper()
	codec, err := token.New(policy)
	if err != nil {
		t.Fatal(err)
	}
	logger, _ := test.NewNullLogger()
	sched := &instantScheduler{}
	opts := &Options{KeyDelay: time.Millisecond, Scheduler: sched, PacketLogging: true}
	return New(tr, codec, opts, logger), sched
}

// presses checks that every report is followed by its release and returns
// the pressed reports.
func presses(t *testing.T, writes [][]byte) [][]byte {
	t.Helper()
	if len(writes)%2 != 0 {
		t.Fatalf("expected press/release pairs, got %d writes", len(writes))
	}
	var out [][]byte
	for i := 0; i < len(writes); i += 2 {
		press, release := writes[i], writes[i+1]
		want := make([]byte, len(press))
		want[0] = press[0]
		if !bytes.Equal(release, want) {
			t.Fatalf("write %d: expected release %x after %x, got %x", i+1, want, press, release)
		}
		out = append(out, press)
	}
	return out
}

func testTransfer(t *testing.T, size int) *transfer.Transfer {
	t.Helper()
	data := make([]byte, size)
	rand.New(rand.NewSource(int64(size))).Read(data)
	tr, err := transfer.Prepare(context.Background(), "notes", data, nil)
	if err != nil {
		t.Fatal(err)
	}
	return tr
}

var (
	enterKey   = []byte{0x00, 0x00, 0x28}
	enterCodes = []byte{0xFF, 0x02, 0x28, 0, 0, 0, 0, 0}
	terminator = []byte{0x00, 0x00, 0x32}
)

// splitFrame separates the header lines, payload reports and trailer of a
// file send that had no launch sequence.
func splitFrame(t *testing.T, reports [][]byte) (header [][][]byte, payload [][]byte, trailer [][]byte) {
	t.Helper()
	i := 0
	var line [][]byte
	for len(header) < 4 {
		if i >= len(reports) {
			t.Fatalf("stream ended inside the header")
		}
		r := reports[i]
		i++
		if bytes.Equal(r, enterKey) {
			header = append(header, line)
			line = nil
			continue
		}
		line = append(line, r)
	}
	for ; i < len(reports) && reports[i][0] == 0xFF; i++ {
		payload = append(payload, reports[i])
	}
	return header, payload, reports[i:]
}

// decodePayload maps the typed stream reports back to symbols and decodes them.
func decodePayload(t *testing.T, policy string, payload [][]byte, size int) []byte {
	t.Helper()
	ref, err := token.New(policy)
	if err != nil {
		t.Fatal(err)
	}
	chars := make(map[byte]byte)
	for _, tok := range ref.Symbols() {
		chars[tok.Code] = tok.Char
	}

	var symbols []byte
	for _, r := range payload {
		if bytes.Equal(r, enterCodes) {
			continue
		}
		if r[1] != 0x02 {
			t.Fatalf("payload report %x is not shifted", r)
		}
		for _, code := range r[2:] {
			symbols = append(symbols, chars[code])
		}
	}

	dec, _ := token.New(policy)
	got, err := token.DecodeTokens(dec, symbols, size)
	if err != nil {
		t.Fatalf("DecodeTokens() returned an unexpected error: %v", err)
	}
	return got
}

func TestSendFile_Framing(t *testing.T) {
	for _, policy := range []string{token.PolicySixBit, token.PolicyFiveBit} {
		t.Run(policy, func(t *testing.T) {
			tr := newFakeTransport()
			s, _ := newTestSender(t, policy, tr)
			xfer := testTransfer(t, 1000)

			var progress []Progress
			sent, err := s.SendFile(context.Background(), xfer, func(p Progress) { progress = append(progress, p) })
			if err != nil {
				t.Fatalf("SendFile() returned an unexpected error: %v", err)
			}
			if sent != xfer.CompressedSize() {
				t.Errorf("expected %d bytes sent, got %d", xfer.CompressedSize(), sent)
			}

			header, payload, trailer := splitFrame(t, presses(t, tr.written()))

			// "notes" is typed as "NOTES" with shift held.
			if diff := cmp.Diff([]byte{0x00, 0x02, 0x11}, header[0][0]); diff != "" {
				t.Errorf("unexpected first header report; diff:\n%s", diff)
			}
			if len(header[0]) != 5 || len(header[1]) != 3 {
				t.Errorf("unexpected header line lengths %d and %d", len(header[0]), len(header[1]))
			}

			chunk := s.codec.ChunkBytes()
			chunks := (xfer.CompressedSize() + chunk - 1) / chunk
			if want := chunks * 81; len(payload) != want {
				t.Fatalf("expected %d payload reports for %d chunks, got %d", want, chunks, len(payload))
			}
			for i := 80; i < len(payload); i += 81 {
				if !bytes.Equal(payload[i], enterCodes) {
					t.Errorf("expected report %d to end a chunk, got %x", i, payload[i])
				}
			}

			got := decodePayload(t, policy, payload, xfer.CompressedSize())
			if !bytes.Equal(got, xfer.Payload) {
				t.Error("decoded payload does not match the compressed payload")
			}

			if diff := cmp.Diff([][]byte{terminator, enterKey}, trailer); diff != "" {
				t.Errorf("unexpected trailer; diff:\n%s", diff)
			}

			if len(progress) != chunks+2 {
				t.Fatalf("expected %d progress reports, got %d", chunks+2, len(progress))
			}
			last := progress[len(progress)-1]
			if !last.Finished || last.Sent != xfer.CompressedSize() {
				t.Errorf("unexpected final progress %+v", last)
			}
			if s.State() != Idle || s.Busy() {
				t.Errorf("expected an idle sender, got %s", s.State())
			}
		})
	}
}

func TestSendFile_ProgressPerChunk(t *testing.T) {
	tr := newFakeTransport()
	s, _ := newTestSender(t, token.PolicySixBit, tr)
	xfer := &transfer.Transfer{Name: "A", Type: "dat", ActualSize: 2000, Payload: make([]byte, 1000)}

	var sent []int
	_, err := s.SendFile(context.Background(), xfer, func(p Progress) {
		if p.State == SendingPayload {
			sent = append(sent, p.Sent)
		}
	})
	if err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([]int{360, 720, 1000}, sent); diff != "" {
		t.Errorf("unexpected progress; diff:\n%s", diff)
	}
}

func TestSendFile_Cancelled(t *testing.T) {
	tr := newFakeTransport()
	s, _ := newTestSender(t, token.PolicySixBit, tr)
	xfer := &transfer.Transfer{Name: "A", Type: "dat", ActualSize: 2000, Payload: make([]byte, 1000)}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var last Progress
	sent, err := s.SendFile(ctx, xfer, func(p Progress) {
		last = p
		if p.State == SendingPayload {
			cancel()
		}
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if sent != 360 {
		t.Errorf("expected one whole chunk to be sent, got %d bytes", sent)
	}
	if last.Finished {
		t.Error("expected a cancelled send not to finish")
	}

	reports := presses(t, tr.written())
	if diff := cmp.Diff(enterCodes, reports[len(reports)-1]); diff != "" {
		t.Errorf("expected the send to stop after a chunk; diff:\n%s", diff)
	}
	for _, r := range reports {
		if bytes.Equal(r, terminator) {
			t.Fatal("terminator sent after cancellation")
		}
	}
	if s.Busy() {
		t.Error("expected the sender to be released")
	}
}

func TestSendFile_TransportError(t *testing.T) {
	tr := newFakeTransport()
	tr.failAt = 20
	s, _ := newTestSender(t, token.PolicySixBit, tr)

	_, err := s.SendFile(context.Background(), testTransfer(t, 100), nil)
	if !errors.Is(err, errUnplugged) {
		t.Fatalf("expected the transport error, got %v", err)
	}
	if len(tr.written()) != 20 {
		t.Errorf("expected no writes after the failure, got %d", len(tr.written()))
	}
	if s.State() != Idle || s.Busy() {
		t.Errorf("expected an idle sender, got %s", s.State())
	}
}

func TestSendFile_Busy(t *testing.T) {
	tr := newFakeTransport()
	s, sched := newTestSender(t, token.PolicySixBit, tr)

	var nested error
	var before, after int
	sched.onSleep = func() {
		sched.onSleep = nil
		_, nested = s.SendFile(context.Background(), testTransfer(t, 10), nil)

		before = len(tr.written())
		if err := s.SendText(context.Background(), "ignored"); err != nil {
			t.Errorf("SendText() returned an unexpected error: %v", err)
		}
		if err := s.SendKey(context.Background(), 0, 0x04); err != nil {
			t.Errorf("SendKey() returned an unexpected error: %v", err)
		}
		after = len(tr.written())
	}

	if _, err := s.SendFile(context.Background(), testTransfer(t, 10), nil); err != nil {
		t.Fatal(err)
	}
	if !errors.Is(nested, ErrBusy) {
		t.Errorf("expected ErrBusy, got %v", nested)
	}
	if before != after {
		t.Errorf("expected interactive input to be dropped, %d reports were written", after-before)
	}
}

func TestSendText_BlocksFileSend(t *testing.T) {
	tr := newFakeTransport()
	s, sched := newTestSender(t, token.PolicySixBit, tr)

	var nested error
	sched.onSleep = func() {
		sched.onSleep = nil
		_, nested = s.SendFile(context.Background(), testTransfer(t, 10), nil)
		if err := s.SendKey(context.Background(), 0, 0x04); err != nil {
			t.Errorf("SendKey() returned an unexpected error: %v", err)
		}
	}

	if err := s.SendText(context.Background(), "abc"); err != nil {
		t.Fatal(err)
	}
	if !errors.Is(nested, ErrBusy) {
		t.Errorf("expected ErrBusy, got %v", nested)
	}
	if len(tr.written()) != 6 {
		t.Errorf("expected only the 3 typed keys to be written, got %d reports", len(tr.written()))
	}
	if s.Busy() {
		t.Error("expected the sender to be released after SendText")
	}

	if _, err := s.SendFile(context.Background(), testTransfer(t, 10), nil); err != nil {
		t.Errorf("SendFile() after SendText returned an unexpected error: %v", err)
	}
}

func TestSendFile_WaitsForFlowControl(t *testing.T) {
	tr := newFakeTransport()
	tr.paused = 5
	s, sched := newTestSender(t, token.PolicySixBit, tr)

	if _, err := s.SendFile(context.Background(), testTransfer(t, 10), nil); err != nil {
		t.Fatal(err)
	}
	if sched.polls == 0 {
		t.Error("expected the sender to poll while the device was paused")
	}
}

func TestSendFile_Launch(t *testing.T) {
	tr := newFakeTransport()
	s, sched := newTestSender(t, token.PolicySixBit, tr)
	s.opts.Launch = Launch{Enabled: true, Key: 0x44, Wait: 2 * time.Second, ModeCodes: []byte{0x27, 0x27, 0x27, 0x27}}

	if _, err := s.SendFile(context.Background(), testTransfer(t, 10), nil); err != nil {
		t.Fatal(err)
	}

	reports := presses(t, tr.written())
	want := [][]byte{
		{0x00, 0x00, 0x44},
		{0xFF, 0x00, 0x27, 0x27, 0x27, 0x27, 0x00, 0x00},
	}
	if diff := cmp.Diff(want, reports[:2]); diff != "" {
		t.Errorf("unexpected launch sequence; diff:\n%s", diff)
	}

	found := false
	for _, d := range sched.sleeps {
		found = found || d == 2*time.Second
	}
	if !found {
		t.Error("expected the sender to wait for the application to start")
	}
}

func TestSendText(t *testing.T) {
	tr := newFakeTransport()
	s, _ := newTestSender(t, token.PolicySixBit, tr)

	if err := s.SendText(context.Background(), "aB!é"); err != nil {
		t.Fatal(err)
	}
	want := [][]byte{
		{0x00, 0x00, 0x04},
		{0x00, 0x02, 0x05},
		{0x00, 0x02, 0x1E},
	}
	if diff := cmp.Diff(want, presses(t, tr.written())); diff != "" {
		t.Errorf("unexpected reports; diff:\n%s", diff)
	}
}

func TestSendCodes(t *testing.T) {
	tr := newFakeTransport()
	s, _ := newTestSender(t, token.PolicySixBit, tr)

	if err := s.SendCodes(context.Background(), 0x01, []byte{0x19}); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff([][]byte{{0xFF, 0x01, 0x19, 0, 0, 0, 0, 0}}, presses(t, tr.written())); diff != "" {
		t.Errorf("unexpected reports; diff:\n%s", diff)
	}
	if err := s.SendCodes(context.Background(), 0, make([]byte, 7)); err == nil {
		t.Error("expected an error for more codes than fit in a report")
	}
}

func TestSendUnicode(t *testing.T) {
	tr := newFakeTransport()
	s, sched := newTestSender(t, token.PolicySixBit, tr)

	if err := s.SendUnicode(context.Background(), "字\r"); err != nil {
		t.Fatal(err)
	}
	want := [][]byte{
		{0x00, 0x00, 0x44},
		{0xFF, 0x00, 0x22, 0x05, 0x22, 0x24, 0x00, 0x00},
		{0x00, 0x00, 0x2C},
		{0x00, 0x01, 0x19},
	}
	if diff := cmp.Diff(want, presses(t, tr.written())); diff != "" {
		t.Errorf("unexpected reports; diff:\n%s", diff)
	}

	var waits []time.Duration
	for _, d := range sched.sleeps {
		if d >= 50*time.Millisecond {
			waits = append(waits, d)
		}
	}
	if diff := cmp.Diff([]time.Duration{50 * time.Millisecond, 100 * time.Millisecond}, waits); diff != "" {
		t.Errorf("unexpected waits; diff:\n%s", diff)
	}
}

func TestOptionsFromConfig(t *testing.T) {
	cfg, err := core.LoadConfig(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	opts, err := OptionsFromConfig(cfg)
	if err != nil {
		t.Fatalf("OptionsFromConfig() returned an unexpected error: %v", err)
	}
	want := Launch{Enabled: true, Key: 0x44, Wait: 2 * time.Second, ModeCodes: []byte{0x27, 0x27, 0x27, 0x27}}
	if diff := cmp.Diff(want, opts.Launch); diff != "" {
		t.Errorf("unexpected launch options; diff:\n%s", diff)
	}

	cfg.Transmit.Launch.Key = "F13"
	if _, err := OptionsFromConfig(cfg); err == nil {
		t.Error("expected an error for an unknown launch key")
	}
}

func TestTimerScheduler(t *testing.T) {
	var sched TimerScheduler

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sched.Sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Errorf("expected Sleep() to stop on cancellation, got %v", err)
	}

	calls := 0
	err := sched.WaitUntil(context.Background(), func() bool {
		calls++
		return calls == 3
	}, time.Millisecond)
	if err != nil || calls != 3 {
		t.Errorf("WaitUntil() = %v after %d calls", err, calls)
	}
}
