package h2c

// RFC 9113 Section 6.9.1.
const maxFlowControlWindow = 1<<31 - 1

type outflow struct {
	// RFC 9113 6.9.1
	// A sender MUST NOT allow a flow-control window to exceed 2^31-1 octets.
	//
	// so we can maintain the window with int32 instead of uint32
	// to track negative values
	n int32
}

func (fm *outflow) Available() bool {
	// RFC 9113 6.9.2.
	// A change to SETTINGS_INITIAL_WINDOW_SIZE can cause the available space
	// in a flow-control window to become negative. A sender MUST track the
	// negative flow-control window and MUST NOT send new flow-controlled frames
	// until it receives WINDOW_UPDATE frames that cause the flow-control
	// window to become positive.
	return fm.n > 0
}

func (fm *outflow) Pay(sz uint32) uint32 {
	if fm.n <= 0 {
		return 0
	}
	got := sz
	if avail := uint32(fm.n); avail < sz {
		got = avail
	}
	fm.n -= int32(got)
	return got
}

// Refund adds sz to the window, reporting false when that would overflow it
func (fm *outflow) Refund(sz uint32) bool {
	return fm.add(int32(sz))
}

func (fm *outflow) add(n int32) bool {
	sum := fm.n + n
	// smart overflow detection that works for negative incrs from golang.org/x/net
	if (sum > n) == (fm.n > 0) {
		fm.n = sum
		return true
	}
	return false
}
