package kernel

// PanicReason enumerates the distinct panic call sites of spec.md §7,
// recovered from the original source's several panic()/assert() call
// sites (bad boot magic, double fault, missing exception handler,
// assertion failure, scheduler return) rather than the original's raw
// per-site format strings.
type PanicReason uint8

const (
	PanicBadBootloaderMagic PanicReason = iota
	PanicDoubleFault
	PanicMissingExceptionHandler
	PanicAssertionFailure
	PanicSchedulerReturn
)

// String renders the fixed banner prefix for a panic reason.
func (r PanicReason) String() string {
	switch r {
	case PanicBadBootloaderMagic:
		return "bad bootloader magic"
	case PanicDoubleFault:
		return "double fault"
	case PanicMissingExceptionHandler:
		return "missing exception handler"
	case PanicAssertionFailure:
		return "assertion failure"
	case PanicSchedulerReturn:
		return "scheduler returned"
	default:
		return "unknown panic"
	}
}
