// Package sender types prepared transfers and interactive input into a
// keyboard device as a sequence of key reports.
package sender

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/keycast/keycast/internal/core"
	"github.com/keycast/keycast/internal/core/bits"
	"github.com/keycast/keycast/internal/core/bytes"
	"github.com/keycast/keycast/internal/core/debug"
	"github.com/keycast/keycast/internal/core/keycode"
	"github.com/keycast/keycast/internal/core/token"
	"github.com/keycast/keycast/internal/packets"
	"github.com/keycast/keycast/internal/transfer"
	"github.com/keycast/keycast/internal/transport"
	"github.com/sirupsen/logrus"
)

// Terminator is typed after the last payload chunk.
const Terminator = ']'

// Delays used when typing Unicode text through the receiver's input method.
const (
	unicodeOpenDelay  = 50 * time.Millisecond
	unicodeApplyDelay = 100 * time.Millisecond
)

// Launch describes the key sequence that starts the receiving application.
type Launch struct {
	Enabled bool
	Key     byte
	// Wait is the time the application needs before it accepts the mode codes.
	Wait time.Duration
	// ModeCodes are pressed together in one stream report.
	ModeCodes []byte
}

type Options struct {
	// KeyDelay separates a report from its release.
	KeyDelay time.Duration
	// PacketDelay follows every release.
	PacketDelay time.Duration
	// PollInterval is used while the transport has paused sending.
	PollInterval  time.Duration
	Launch        Launch
	PacketLogging bool
	// Scheduler defaults to TimerScheduler.
	Scheduler Scheduler
}

// OptionsFromConfig resolves the transmit section of cfg.
func OptionsFromConfig(cfg *core.Config) (*Options, error) {
	opts := &Options{
		KeyDelay:      cfg.Transmit.KeyDelay,
		PacketDelay:   cfg.Transmit.PacketDelay,
		PollInterval:  cfg.Transmit.PollInterval,
		PacketLogging: cfg.Debugging.PacketLoggingEnabled,
	}

	launch := cfg.Transmit.Launch
	if !launch.Enabled {
		return opts, nil
	}
	key, ok := keycode.ByName(launch.Key)
	if !ok {
		return nil, fmt.Errorf("unknown launch key %q", launch.Key)
	}
	codes, err := charCodes(launch.ModeCodes)
	if err != nil {
		return nil, fmt.Errorf("invalid launch mode codes: %w", err)
	}
	if len(codes) > packets.MaxCodes {
		return nil, fmt.Errorf("launch mode codes hold %d keys, at most %d fit in a report", len(codes), packets.MaxCodes)
	}
	opts.Launch = Launch{Enabled: true, Key: key, Wait: launch.Wait, ModeCodes: codes}
	return opts, nil
}

// Sender writes key reports to a Transport. Only one send may run at a time;
// SendFile fails with ErrBusy and interactive input is dropped while another
// send holds the sender.
type Sender struct {
	Logger *logrus.Logger

	transport transport.Transport
	codec     token.Codec
	sched     Scheduler
	opts      Options

	busy  atomic.Bool
	state atomic.Int32
}

func New(t transport.Transport, codec token.Codec, opts *Options, logger *logrus.Logger) *Sender {
	s := &Sender{Logger: logger, transport: t, codec: codec}
	if opts != nil {
		s.opts = *opts
	}
	s.sched = s.opts.Scheduler
	if s.sched == nil {
		s.sched = TimerScheduler{}
	}
	return s
}

// State returns the phase of the current file send.
func (s *Sender) State() State { return State(s.state.Load()) }

// Busy reports whether a file or interactive send is in progress.
func (s *Sender) Busy() bool { return s.busy.Load() }

func (s *Sender) setState(st State) { s.state.Store(int32(st)) }

// SendFile types t into the device: the optional launch sequence, the header
// lines, the encoded payload and the terminator. It returns the number of
// payload bytes sent. Cancellation is checked between payload chunks; a
// cancelled send stops without the terminator and returns ctx.Err().
func (s *Sender) SendFile(ctx context.Context, t *transfer.Transfer, observe Observer) (int, error) {
	if !s.busy.CompareAndSwap(false, true) {
		return 0, ErrBusy
	}
	defer func() {
		s.setState(Idle)
		s.busy.Store(false)
	}()
	if observe == nil {
		observe = func(Progress) {}
	}

	log := s.Logger.WithFields(logrus.Fields{
		"device":     s.transport.Name(),
		"name":       t.Name,
		"size":       t.ActualSize,
		"compressed": t.CompressedSize(),
		"policy":     s.codec.Name(),
	})
	log.Info("starting file send")

	if s.opts.Launch.Enabled {
		s.setState(Launching)
		if err := s.launch(ctx); err != nil {
			return 0, s.abort(log, observe, 0, len(t.Payload), err)
		}
	}

	s.setState(SendingHeader)
	for _, line := range t.HeaderLines() {
		if err := s.typeLine(ctx, ctx, line); err != nil {
			return 0, s.abort(log, observe, 0, len(t.Payload), err)
		}
	}
	observe(Progress{State: SendingHeader, Total: len(t.Payload)})

	s.setState(SendingPayload)
	sent, err := s.sendPayload(ctx, t.Payload, observe)
	if err != nil {
		return sent, s.abort(log, observe, sent, len(t.Payload), err)
	}

	s.setState(SendingTerminator)
	if err := s.typeLine(ctx, ctx, string(Terminator)); err != nil {
		return sent, s.abort(log, observe, sent, len(t.Payload), err)
	}

	observe(Progress{State: SendingTerminator, Sent: sent, Total: len(t.Payload), Finished: true})
	log.WithField("sent", sent).Info("file send finished")
	return sent, nil
}

func (s *Sender) abort(log *logrus.Entry, observe Observer, sent, total int, err error) error {
	observe(Progress{State: s.State(), Sent: sent, Total: total})
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		log.WithField("sent", sent).Info("file send cancelled")
	} else {
		log.WithError(err).WithField("sent", sent).Error("file send failed")
	}
	return err
}

// launch starts the receiving application and selects its transfer mode.
func (s *Sender) launch(ctx context.Context) error {
	l := s.opts.Launch
	if err := s.press(ctx, ctx, packets.NewKeyReport(0, l.Key)); err != nil {
		return err
	}
	if err := s.sched.Sleep(ctx, l.Wait); err != nil {
		return err
	}
	if len(l.ModeCodes) == 0 {
		return nil
	}
	return s.press(ctx, ctx, packets.NewStreamReport(0, l.ModeCodes))
}

// sendPayload encodes the payload one chunk at a time. The final chunk is
// padded with zero bytes so that every chunk fills the same number of
// reports.
func (s *Sender) sendPayload(ctx context.Context, payload []byte, observe Observer) (int, error) {
	// A chunk always goes out whole; only the flow control wait can be
	// interrupted part way through.
	pace := context.WithoutCancel(ctx)

	s.codec.Reset()
	chunk := make([]byte, s.codec.ChunkBytes())
	enter := packets.NewStreamReport(keycode.ModLShift, []byte{keycode.KeyEnter})

	sent := 0
	for sent < len(payload) {
		cur := bits.New(chunk)
		for i := 0; i < len(chunk); i++ {
			var b byte
			if sent < len(payload) {
				b = payload[sent]
				sent++
			}
			if err := cur.WriteByte(b); err != nil {
				return sent, err
			}
		}

		tokens, err := token.EncodeChunk(s.codec, chunk)
		if err != nil {
			return sent, fmt.Errorf("error encoding payload: %w", err)
		}

		codes := make([]byte, 0, token.SymbolsPerReport)
		for i := 0; i < len(tokens); i += token.SymbolsPerReport {
			codes = codes[:0]
			for j := i; j < i+token.SymbolsPerReport && j < len(tokens); j++ {
				codes = append(codes, tokens[j].Code)
			}
			if err := s.press(ctx, pace, packets.NewStreamReport(keycode.ModLShift, codes)); err != nil {
				return sent, err
			}
		}
		if err := s.press(ctx, pace, enter); err != nil {
			return sent, err
		}

		observe(Progress{State: SendingPayload, Sent: sent, Total: len(payload)})
		if err := ctx.Err(); err != nil {
			return sent, err
		}
	}
	return sent, nil
}

// SendText types s one character at a time. Characters without a key are
// skipped. Nothing is sent while another send is in progress.
func (s *Sender) SendText(ctx context.Context, text string) error {
	if !s.claim("text") {
		return nil
	}
	defer s.busy.Store(false)
	for _, ch := range text {
		code, ok := keycode.CharCode(ch)
		if !ok {
			s.Logger.Debugf("no key for %q, skipping", ch)
			continue
		}
		if err := s.press(ctx, ctx, packets.NewKeyReport(code.Modifier(), code.Key())); err != nil {
			return err
		}
	}
	return nil
}

// SendKey presses and releases a single key unless another send is in
// progress.
func (s *Sender) SendKey(ctx context.Context, modifier, code byte) error {
	if !s.claim("key") {
		return nil
	}
	defer s.busy.Store(false)
	return s.press(ctx, ctx, packets.NewKeyReport(modifier, code))
}

// SendCodes presses up to packets.MaxCodes keys at once.
func (s *Sender) SendCodes(ctx context.Context, modifier byte, codes []byte) error {
	if !s.claim("codes") {
		return nil
	}
	defer s.busy.Store(false)
	if len(codes) > packets.MaxCodes {
		return fmt.Errorf("%d codes do not fit in one report", len(codes))
	}
	return s.press(ctx, ctx, packets.NewStreamReport(modifier, codes))
}

// SendUnicode types text through the receiver's code point input: F11 opens
// it, each UTF-16 code unit is typed as four hex digits, Space converts and
// Ctrl+V pastes the result. Carriage returns are skipped.
func (s *Sender) SendUnicode(ctx context.Context, text string) error {
	if !s.claim("unicode") {
		return nil
	}
	defer s.busy.Store(false)

	if err := s.press(ctx, ctx, packets.NewKeyReport(0, keycode.KeyF11)); err != nil {
		return err
	}
	if err := s.sched.Sleep(ctx, unicodeOpenDelay); err != nil {
		return err
	}

	for _, unit := range bytes.ConvertToUtf16(text) {
		if unit == '\r' {
			continue
		}
		digits := bytes.HexDigits(unit)
		codes, err := charCodes(string(digits[:]))
		if err != nil {
			return err
		}
		if err := s.press(ctx, ctx, packets.NewStreamReport(0, codes)); err != nil {
			return err
		}
	}

	if err := s.press(ctx, ctx, packets.NewKeyReport(0, keycode.KeySpace)); err != nil {
		return err
	}
	if err := s.sched.Sleep(ctx, unicodeApplyDelay); err != nil {
		return err
	}
	return s.press(ctx, ctx, packets.NewKeyReport(keycode.ModLCtrl, keycode.KeyV))
}

// claim takes the busy flag for an interactive send. The caller releases it.
func (s *Sender) claim(kind string) bool {
	if s.busy.CompareAndSwap(false, true) {
		return true
	}
	s.Logger.WithField("kind", kind).Debug("send in progress, dropping input")
	return false
}

// typeLine types line as single key reports followed by Enter.
func (s *Sender) typeLine(ctx, pace context.Context, line string) error {
	for _, ch := range line {
		code, ok := keycode.CharCode(ch)
		if !ok {
			return fmt.Errorf("no key for %q", ch)
		}
		if err := s.press(ctx, pace, packets.NewKeyReport(code.Modifier(), code.Key())); err != nil {
			return err
		}
	}
	return s.press(ctx, pace, packets.NewKeyReport(0, keycode.KeyEnter))
}

// press writes r, holds it for KeyDelay, then writes its release followed by
// PacketDelay. Flow control waits honor ctx while the delays honor pace.
func (s *Sender) press(ctx, pace context.Context, r packets.Report) error {
	if err := s.write(ctx, r); err != nil {
		return err
	}
	if err := s.sched.Sleep(pace, s.opts.KeyDelay); err != nil {
		return err
	}
	if err := s.write(ctx, r.Released()); err != nil {
		return err
	}
	return s.sched.Sleep(pace, s.opts.PacketDelay)
}

func (s *Sender) write(ctx context.Context, r packets.Report) error {
	if !s.transport.SendEnabled() {
		if err := s.sched.WaitUntil(ctx, s.transport.SendEnabled, s.opts.PollInterval); err != nil {
			return err
		}
	}

	data, _ := bytes.BytesFromStruct(r)
	if s.opts.PacketLogging {
		s.Logger.Debugf("sending report to %s\n%s", s.transport.Name(), debug.DescribeReport(data))
	}
	if _, err := s.transport.Write(data); err != nil {
		return fmt.Errorf("error writing report to %s: %w", s.transport.Name(), err)
	}
	return nil
}

func charCodes(chars string) ([]byte, error) {
	codes := make([]byte, 0, len(chars))
	for _, ch := range chars {
		code, ok := keycode.CharCode(ch)
		if !ok {
			return nil, fmt.Errorf("no key for %q", ch)
		}
		codes = append(codes, code.Key())
	}
	return codes, nil
}
