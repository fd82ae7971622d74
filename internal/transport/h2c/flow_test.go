package h2c

import "testing"

func TestOutflow(t *testing.T) {
	f := outflow{n: 10}
	if got := f.Pay(4); got != 4 || f.n != 6 {
		t.Errorf("pay 4: got %d, left %d", got, f.n)
	}
	if got := f.Pay(100); got != 6 || f.Available() {
		t.Errorf("pay over window: got %d, left %d", got, f.n)
	}
	// a SETTINGS_INITIAL_WINDOW_SIZE decrease can go negative
	f.add(-5)
	if f.Available() || f.Pay(1) != 0 {
		t.Error("negative window must not be spendable")
	}
	f.Refund(6)
	if !f.Available() || f.n != 1 {
		t.Errorf("left %d, want 1", f.n)
	}
	if (&outflow{n: maxFlowControlWindow}).Refund(1) {
		t.Error("overflow not detected")
	}
}
