package timer

// fallbackCPUFrequencyMHz is used when the elapsed calibration window was
// too short to measure (division-by-zero guard), per spec.md §4.2.
const fallbackCPUFrequencyMHz = 1000

// Calibrate measures CPU frequency in MHz by sampling readTSC before and
// after a 100ms t.Wait, which returns only once ticks advance the uptime
// counter. Unlike the
// original source (see spec.md §9's open question), the delta is
// accumulated unconditionally in 64 bits: readTSC values routinely exceed
// 32 bits well within a 100ms window at GHz-class frequencies, and
// truncating to 32 bits there produces silently wrong results.
func (t *Timer) Calibrate(readTSC func() uint64) uint32 {
	if readTSC == nil {
		t.mu.Lock()
		t.cpuMHz = fallbackCPUFrequencyMHz
		t.mu.Unlock()
		return fallbackCPUFrequencyMHz
	}

	const calibrationMS = 100
	t0 := readTSC()
	t.Wait(calibrationMS)
	t1 := readTSC()

	var delta uint64
	if t1 >= t0 {
		delta = t1 - t0
	}

	mhz := fallbackCPUFrequencyMHz
	if calibrationMS > 0 && delta > 0 {
		mhz = int(delta / calibrationMS / 1000)
		if mhz == 0 {
			mhz = fallbackCPUFrequencyMHz
		}
	}

	t.mu.Lock()
	t.cpuMHz = uint32(mhz)
	t.mu.Unlock()
	return uint32(mhz)
}

// CPUFrequencyMHz returns the last calibrated (or fallback) CPU frequency.
func (t *Timer) CPUFrequencyMHz() uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cpuMHz
}
