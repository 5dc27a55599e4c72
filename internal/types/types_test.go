package types

import "testing"

func TestOptionalSomeIsSet(t *testing.T) {
	o := Some(42)
	if !o.Set || o.Value != 42 || o.OrZero() != 42 {
		t.Errorf("Some(42) = %+v", o)
	}
}

func TestOptionalNoneIsUnset(t *testing.T) {
	o := None[int]()
	if o.Set {
		t.Errorf("None() should be unset, got %+v", o)
	}
	if o.OrZero() != 0 {
		t.Errorf("OrZero() = %d, want 0", o.OrZero())
	}
}

func TestOptionalZeroValueDistinctFromNone(t *testing.T) {
	zero := Some(0)
	absent := None[int]()
	if !zero.Set {
		t.Errorf("Some(0) must still be Set")
	}
	if zero.Set == absent.Set {
		t.Errorf("Some(0) and None() must differ in Set")
	}
}
