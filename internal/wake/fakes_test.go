package wake

import (
	"errors"
	"io"
	"log/slog"
	"time"
)

// discardLogger keeps test output quiet.
func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

var epoch = time.Date(2026, 3, 1, 7, 30, 0, 0, time.UTC)

// fakeClock is a virtual clock; Sleep only advances Now.
type fakeClock struct {
	now    time.Time
	slept  time.Duration
	sleeps int
}

func newFakeClock() *fakeClock { return &fakeClock{now: epoch} }

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(d time.Duration) {
	c.now = c.now.Add(d)
	c.slept += d
	c.sleeps++
}

// events is a shared call log so tests can check ordering across fakes.
type events []string

func (e *events) add(s string) { *e = append(*e, s) }

func (e events) count(s string) int {
	n := 0
	for _, v := range e {
		if v == s {
			n++
		}
	}
	return n
}

func (e events) indexOf(s string) int {
	for i, v := range e {
		if v == s {
			return i
		}
	}
	return -1
}

type fakeADC struct {
	raws  []int
	err   error
	reads int
}

func (a *fakeADC) ReadRaw() (int, error) {
	a.reads++
	if a.err != nil {
		return 0, a.err
	}
	if len(a.raws) == 0 {
		return 0, nil
	}
	v := a.raws[(a.reads-1)%len(a.raws)]
	return v, nil
}

// fakeRadio reports not associated for failPolls polls after each
// BeginAssociation, then associated until dropped.
type fakeRadio struct {
	log       *events
	failPolls int
	remaining int
	begins    int
	polls     int
	dropped   bool
}

const never = 1 << 30

func (r *fakeRadio) BeginAssociation(ssid, passphrase string) error {
	r.log.add("associate")
	r.begins++
	r.remaining = r.failPolls
	r.dropped = false
	return nil
}

func (r *fakeRadio) Associated() bool {
	r.polls++
	if r.dropped {
		return false
	}
	if r.remaining > 0 {
		r.remaining--
		return false
	}
	return true
}

func (r *fakeRadio) LocalAddress() string         { return "192.0.2.17" }
func (r *fakeRadio) SignalStrength() (int, error) { return -67, nil }
func (r *fakeRadio) MACAddress() string           { return "5c:cf:7f:00:11:22" }

var errRefused = errors.New("connection refused")

type publishCall struct {
	at      time.Time
	topic   string
	payload string
}

// fakeTransport fails Connect and Publish according to its error
// functions (nil means always succeed). Poll advances the clock so the
// tick loop makes progress in virtual time.
type fakeTransport struct {
	log      *events
	clock    *fakeClock
	pollStep time.Duration

	connectErr func(n int) error
	publishErr func(n int) error
	closeErr   error

	host      string
	port      int
	connected bool
	clientIDs []string
	publishes []publishCall
	polls     int
	lastCode  int
}

func (t *fakeTransport) SetEndpoint(host string, port int) {
	t.host = host
	t.port = port
}

func (t *fakeTransport) Connect(clientID string) error {
	t.log.add("connect")
	t.clientIDs = append(t.clientIDs, clientID)
	if t.connectErr != nil {
		if err := t.connectErr(len(t.clientIDs)); err != nil {
			t.lastCode = 5
			return err
		}
	}
	t.connected = true
	t.lastCode = 0
	return nil
}

func (t *fakeTransport) Connected() bool { return t.connected }

func (t *fakeTransport) Publish(topic string, payload []byte) error {
	t.log.add("publish")
	t.publishes = append(t.publishes, publishCall{at: t.clock.Now(), topic: topic, payload: string(payload)})
	if t.publishErr != nil {
		return t.publishErr(len(t.publishes))
	}
	return nil
}

func (t *fakeTransport) Poll() {
	t.polls++
	t.clock.now = t.clock.now.Add(t.pollStep)
}

func (t *fakeTransport) LastErrorCode() int { return t.lastCode }

func (t *fakeTransport) Close() error {
	t.log.add("close")
	t.connected = false
	return t.closeErr
}

// failFirst returns an error function failing the first n calls.
func failFirst(n int) func(int) error {
	return func(call int) error {
		if call <= n {
			return errRefused
		}
		return nil
	}
}

type fakeBoard struct {
	log       *events
	indicator []bool
	holds     []bool
	halts     int
}

func (b *fakeBoard) SetIndicator(on bool) error {
	b.indicator = append(b.indicator, on)
	return nil
}

func (b *fakeBoard) SetPowerHold(on bool) error {
	if on {
		b.log.add("hold")
	} else {
		b.log.add("release")
	}
	b.holds = append(b.holds, on)
	return nil
}

func (b *fakeBoard) EnterLowPowerHalt(wake time.Duration) error {
	b.log.add("halt")
	b.halts++
	return nil
}

func (b *fakeBoard) lastIndicator() (bool, bool) {
	if len(b.indicator) == 0 {
		return false, false
	}
	return b.indicator[len(b.indicator)-1], true
}

type fakeRecorder struct {
	summaries []Summary
}

func (r *fakeRecorder) Record(s Summary) { r.summaries = append(r.summaries, s) }
