package admin

import (
	"golang.org/x/sys/unix"
)

// rusageState holds the last-observed values of getrusage's cumulative
// counters, so each sample can be turned into a Prometheus Counter delta
// (Counter has no Set method; only Add). One Admin owns one rusageState.
type rusageState struct {
	utime, stime                                int64
	minflt, majflt, nswap                       int64
	inblock, oublock, msgsnd, msgrcv             int64
	nsignals, nvcsw, nivcsw                      int64
}

// sample reads process-level resource usage into m, per spec.md §4.7.
// Units are normalized per spec.md: times in nanoseconds (seconds * 1e9 +
// microseconds * 1e3), memory in bytes (kilobytes * 1024).
//
// Sampling failure is silent (spec.md §7, §4.7): the prior gauge/counter
// values are simply left unchanged.
//
// Grounded on golang.org/x/sys/unix's heavy use throughout
// joeycumines-go-utilpkg/eventloop for direct OS syscalls rather than the
// syscall package.
func (s *rusageState) sample(m *metricSet) {
	var ru unix.Rusage
	if err := unix.Getrusage(unix.RUSAGE_SELF, &ru); err != nil {
		return
	}

	m.RUUtime.Add(s.delta(&s.utime, timevalNanos(ru.Utime)))
	m.RUStime.Add(s.delta(&s.stime, timevalNanos(ru.Stime)))

	m.RUMaxrss.Set(float64(ru.Maxrss) * 1024)
	m.RUIxrss.Set(float64(ru.Ixrss) * 1024)
	m.RUIdrss.Set(float64(ru.Idrss) * 1024)
	m.RUIsrss.Set(float64(ru.Isrss) * 1024)

	m.RUMinflt.Add(s.delta(&s.minflt, int64(ru.Minflt)))
	m.RUMajflt.Add(s.delta(&s.majflt, int64(ru.Majflt)))
	m.RUNswap.Add(s.delta(&s.nswap, int64(ru.Nswap)))
	m.RUInblock.Add(s.delta(&s.inblock, int64(ru.Inblock)))
	m.RUOublock.Add(s.delta(&s.oublock, int64(ru.Oublock)))
	m.RUMsgsnd.Add(s.delta(&s.msgsnd, int64(ru.Msgsnd)))
	m.RUMsgrcv.Add(s.delta(&s.msgrcv, int64(ru.Msgrcv)))
	m.RUNsignals.Add(s.delta(&s.nsignals, int64(ru.Nsignals)))
	m.RUNvcsw.Add(s.delta(&s.nvcsw, int64(ru.Nvcsw)))
	m.RUNivcsw.Add(s.delta(&s.nivcsw, int64(ru.Nivcsw)))
}

func timevalNanos(tv unix.Timeval) int64 {
	return int64(tv.Sec)*1e9 + int64(tv.Usec)*1e3
}

// delta converts a cumulative getrusage counter into the increment since
// the last sample.
func (s *rusageState) delta(last *int64, current int64) float64 {
	prev := *last
	*last = current
	if current < prev {
		// Shouldn't happen for RUSAGE_SELF (monotonic), but guard against
		// a negative Add, which Counter.Add would panic on.
		return 0
	}
	return float64(current - prev)
}
