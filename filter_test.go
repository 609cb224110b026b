package afscgap

import "testing"

func TestFilterIsIgnorable(t *testing.T) {
	if !(*Filter)(nil).IsIgnorable() {
		t.Error("nil filter should be ignorable")
	}
	if !EmptyFilter().IsIgnorable() {
		t.Error("EmptyFilter() should be ignorable")
	}
	if StrEquals("x").IsIgnorable() {
		t.Error("a populated equals filter should not be ignorable")
	}
}

func TestFilterIsEffectivelyEmpty(t *testing.T) {
	if !IntRange(nil, nil).isEffectivelyEmpty() {
		t.Error("a range with both bounds absent should be effectively empty")
	}
	low := int64(5)
	if IntRange(&low, nil).isEffectivelyEmpty() {
		t.Error("a range with one bound present should not be effectively empty")
	}
}

func TestQuerySetFilterRejectsInvertedIntRange(t *testing.T) {
	cfg := NewConfig(nil)
	q := NewQuery(cfg)

	low := int64(10)
	high := int64(1)
	err := q.SetFilter("year", IntRange(&low, &high))
	if err == nil {
		t.Fatal("expected an error for a low bound greater than the high bound")
	}
	if _, ok := err.(*FilterConstructionError); !ok {
		t.Errorf("expected a *FilterConstructionError, got %T", err)
	}
}

func TestQuerySetFilterAcceptsValidRange(t *testing.T) {
	cfg := NewConfig(nil)
	q := NewQuery(cfg)

	low := int64(1)
	high := int64(10)
	if err := q.SetFilter("year", IntRange(&low, &high)); err != nil {
		t.Fatalf("unexpected error for a valid range: %v", err)
	}
}

func TestQuerySetFilterOnClosedQuery(t *testing.T) {
	cfg := NewConfig(nil)
	q := NewQuery(cfg)
	q.Close()

	if err := q.SetFilter("year", IntEquals(2021)); err != ErrQueryClosed {
		t.Errorf("expected ErrQueryClosed, got %v", err)
	}
}
