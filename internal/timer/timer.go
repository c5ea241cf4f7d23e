package timer

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/y4ku-os/kernel/internal/ioport"
)

const maxAlarms = 256

// Alarm is one slot of the fixed 256-entry alarm wheel described in
// spec.md §3. A released slot still contributes to monotonic ID
// assignment: IDs are never reused.
type Alarm struct {
	ID          uint32
	IntervalMS  uint32
	RemainingMS uint32
	Active      bool
	Callback    func()
}

// TickCallback is the optional high-level hook invoked once per tick,
// after alarm processing.
type TickCallback func(ticks uint32, ns uint64)

// Timer is the process-wide singleton high-resolution timer: PIT-backed
// tick/ns counters, the alarm wheel, and RTC/calibration support.
type Timer struct {
	mu sync.Mutex

	freqHz     uint32
	tickMS     uint32
	ticks      atomic.Uint32
	ns         atomic.Uint64
	cpuMHz     uint32
	alarms     [maxAlarms]Alarm
	nextID     uint32
	tickCB     TickCallback
	port       *pitPort
	handle     timerHandle
	factory    timerFactory
	bus        *ioport.Bus
}

// Option customises a Timer at construction, mainly for tests.
type Option func(*Timer)

// WithTimerFactory overrides how the periodic tick goroutine is created.
// Tests use this to drive Tick() deterministically instead of racing a
// real time.Ticker.
func WithTimerFactory(factory func(time.Duration, func()) timerHandle) Option {
	return func(t *Timer) {
		if factory != nil {
			t.factory = factory
		}
	}
}

// noopFactory starts no background goroutine; callers drive Tick()
// themselves. Used by tests that need deterministic tick counts.
func noopFactory(time.Duration, func()) timerHandle { return nil }

// WithoutBackgroundTicker disables the automatic periodic ticker.
func WithoutBackgroundTicker() Option {
	return WithTimerFactory(noopFactory)
}

// New constructs a Timer programmed at freqHz (spec.md default 1000 Hz).
func New(bus *ioport.Bus, freqHz uint32, opts ...Option) *Timer {
	if freqHz == 0 {
		freqHz = defaultFrequencyHz
	}
	t := &Timer{freqHz: freqHz, cpuMHz: 1000, factory: defaultTimerFactory, bus: bus}
	t.tickMS = msPerTick(freqHz)
	t.port = &pitPort{t: t}
	if bus != nil {
		_ = bus.Register(t.port)
	}
	for _, opt := range opts {
		opt(t)
	}
	t.startTicker()
	return t
}

func msPerTick(freqHz uint32) uint32 {
	if freqHz == 0 {
		return 1
	}
	ms := 1000 / freqHz
	if ms == 0 {
		ms = 1
	}
	return ms
}

// Init programs the PIT at freqHz. Re-invocation at the same frequency is a
// no-op; a different frequency reprograms the divisor, matching
// spec.md §2's idempotent-safe bring-up requirement.
func (t *Timer) Init(freqHz uint32) {
	t.SetFrequency(freqHz)
}

// SetFrequency reprograms the PIT divisor for freqHz, per spec.md §4.2.
func (t *Timer) SetFrequency(freqHz uint32) {
	if freqHz == 0 {
		freqHz = defaultFrequencyHz
	}
	t.applyDivisor(divisorForFrequency(freqHz))
}

func (t *Timer) applyDivisor(divisor uint32) {
	if divisor == 0 {
		divisor = 1
	}
	hz := PITInputFrequency / divisor
	if hz == 0 {
		hz = 1
	}
	t.mu.Lock()
	t.freqHz = hz
	t.tickMS = msPerTick(hz)
	t.mu.Unlock()
}

func (t *Timer) currentDivisor() uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return divisorForFrequency(t.freqHz)
}

// Frequency returns the currently configured tick frequency.
func (t *Timer) Frequency() uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.freqHz
}

// Stop cancels the background tick goroutine. Safe to call more than once.
func (t *Timer) Stop() {
	t.mu.Lock()
	handle := t.handle
	t.mu.Unlock()
	if handle != nil {
		handle.Stop()
	}
}

func (t *Timer) startTicker() {
	t.mu.Lock()
	period := tickPeriod(t.freqHz)
	t.mu.Unlock()
	t.handle = t.factory(period, t.Tick)
}

// RegisterTickCallback installs fn to run once per tick, after alarm
// processing.
func (t *Timer) RegisterTickCallback(fn TickCallback) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.tickCB = fn
}

// Tick is the PIT ISR body: advances the counters, decrements every active
// alarm's remaining time, fires and reschedules/deactivates alarms that
// reach zero, then invokes the registered tick callback. It never lets the
// tick or ns counters regress (spec.md §8).
func (t *Timer) Tick() {
	t.mu.Lock()
	tickMS := t.tickMS
	freq := t.freqHz
	t.mu.Unlock()

	newTicks := t.ticks.Add(1)
	var nsDelta uint64
	if freq > 0 {
		nsDelta = 1_000_000_000 / uint64(freq)
	}
	newNS := t.ns.Add(nsDelta)

	t.mu.Lock()
	due := make([]func(), 0, 4)
	for i := range t.alarms {
		a := &t.alarms[i]
		if !a.Active {
			continue
		}
		if a.RemainingMS <= tickMS {
			a.RemainingMS = 0
		} else {
			a.RemainingMS -= tickMS
		}
		if a.RemainingMS == 0 {
			cb := a.Callback
			if a.IntervalMS > 0 {
				a.RemainingMS = a.IntervalMS
			} else {
				a.Active = false
			}
			if cb != nil {
				due = append(due, cb)
			}
		}
	}
	cb := t.tickCB
	t.mu.Unlock()

	for _, fn := range due {
		fn()
	}
	if cb != nil {
		cb(newTicks, newNS)
	}
}

// Ticks returns the monotonic tick counter.
func (t *Timer) Ticks() uint32 { return t.ticks.Load() }

// Nanoseconds returns the monotonic nanosecond counter.
func (t *Timer) Nanoseconds() uint64 { return t.ns.Load() }

// UptimeMS returns elapsed milliseconds since boot.
func (t *Timer) UptimeMS() uint64 { return t.ns.Load() / 1_000_000 }

// Wait busy-waits (via the bus's Halt/Wake hlt-loop stand-in) until at
// least ms milliseconds of uptime have elapsed.
func (t *Timer) Wait(ms uint64) {
	target := t.UptimeMS() + ms
	for t.UptimeMS() < target {
		if t.bus != nil {
			t.bus.Halt()
		}
	}
	if t.bus != nil {
		t.bus.Wake()
	}
}

// USleep/NSleep are Wait expressed in microseconds/nanoseconds.
func (t *Timer) USleep(us uint64) { t.Wait(us / 1000) }
func (t *Timer) NSleep(ns uint64) { t.Wait(ns / 1_000_000) }

// CreateAlarm allocates the next free slot in the fixed 256-entry wheel
// and returns its monotonically assigned ID, or 0 if every slot is
// occupied (spec.md §8: "Alarm slot exhaustion... returns id 0"). interval
// 0 is rejected; a single-shot alarm is expressed by deactivating itself
// inside the callback (spec.md §3).
func (t *Timer) CreateAlarm(intervalMS uint32, cb func()) uint32 {
	if cb == nil || intervalMS == 0 {
		return 0
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.alarms {
		if t.alarms[i].Active {
			continue
		}
		t.nextID++
		t.alarms[i] = Alarm{
			ID:          t.nextID,
			IntervalMS:  intervalMS,
			RemainingMS: intervalMS,
			Active:      true,
			Callback:    cb,
		}
		return t.nextID
	}
	return 0
}

// DestroyAlarm deactivates the alarm with the given id. It is safe to call
// concurrently with a firing callback: the tick handler copies the
// callback pointer before invoking it (spec.md §5).
func (t *Timer) DestroyAlarm(id uint32) bool {
	if id == 0 {
		return false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	for i := range t.alarms {
		if t.alarms[i].ID == id && t.alarms[i].Active {
			t.alarms[i].Active = false
			return true
		}
	}
	return false
}

// Alarms returns a snapshot of the alarm wheel, for tests and debug dumps.
func (t *Timer) Alarms() [maxAlarms]Alarm {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.alarms
}

func tickPeriod(freqHz uint32) time.Duration {
	if freqHz == 0 {
		freqHz = defaultFrequencyHz
	}
	return time.Second / time.Duration(freqHz)
}
