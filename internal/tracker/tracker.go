package tracker

// Tracker suppresses outcomes that repeat what was last reported for their
// kind. It is not safe for concurrent use; the sampling loop owns it.
type Tracker struct {
	last Outcome

	waiting    bool
	failed     bool
	lastReason string
	outside    bool
	lastOOB    OutOfBounds
	sampled    bool
	lastSample Sampled

	reported   uint64
	suppressed uint64
}

// New returns a Tracker with no reporting history.
func New() *Tracker {
	return &Tracker{}
}

// Observe records o and reports whether it should be surfaced.
//
//   - NoData is surfaced on entry and then stays quiet.
//   - SourceFailure is surfaced when its reason differs from the last
//     reported failure reason. Valid data clears that memory; a NoData gap
//     does not.
//   - OutOfBounds is surfaced when the cell changes or the cursor just left
//     the template.
//   - Sampled is surfaced when the template pixel or its color changes, or
//     the cursor just came back from outside the template. Cell jitter
//     inside one template pixel is swallowed.
func (t *Tracker) Observe(o Outcome) bool {
	if o == nil {
		return false
	}
	if !t.update(o) {
		t.suppressed++
		return false
	}
	t.last = o
	t.reported++
	return true
}

func (t *Tracker) update(o Outcome) bool {
	if _, ok := o.(NoData); ok {
		if t.waiting {
			return false
		}
		t.waiting = true
		return true
	}
	t.waiting = false

	switch cur := o.(type) {
	case SourceFailure:
		if t.failed && t.lastReason == cur.Reason {
			return false
		}
		t.failed, t.lastReason = true, cur.Reason
		return true
	case OutOfBounds:
		t.failed = false
		if t.outside && t.lastOOB.CellX == cur.CellX && t.lastOOB.CellY == cur.CellY {
			return false
		}
		t.outside, t.lastOOB = true, cur
		t.sampled = false
		return true
	case Sampled:
		t.failed = false
		if t.sampled && sameSample(t.lastSample, cur) {
			return false
		}
		t.sampled, t.lastSample = true, cur
		t.outside = false
		return true
	default:
		return true
	}
}

func sameSample(a, b Sampled) bool {
	return a.RelX == b.RelX && a.RelY == b.RelY && a.Color == b.Color
}

// Last returns the last reported outcome, or nil.
func (t *Tracker) Last() Outcome {
	return t.last
}

// Reset forgets the reporting history so the next outcome is always surfaced.
func (t *Tracker) Reset() {
	reported, suppressed := t.reported, t.suppressed
	*t = Tracker{reported: reported, suppressed: suppressed}
}

// Counts returns how many outcomes were reported and suppressed.
func (t *Tracker) Counts() (reported, suppressed uint64) {
	return t.reported, t.suppressed
}
