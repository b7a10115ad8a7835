package commerce

import (
	"testing"
	"time"
)

func TestCanTransition(t *testing.T) {
	cases := []struct {
		from, to Status
		want     bool
	}{
		{StatusPending, StatusProcessing, true},
		{StatusPending, StatusCancelled, true},
		{StatusProcessing, StatusShipped, true},
		{StatusShipped, StatusDelivered, true},
		{StatusPending, StatusShipped, false},
		{StatusProcessing, StatusCancelled, false},
		{StatusDelivered, StatusPending, false},
		{StatusCancelled, StatusProcessing, false},
	}
	for _, c := range cases {
		if got := CanTransition(c.from, c.to); got != c.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", c.from, c.to, got, c.want)
		}
	}
}

func TestStampStatusSetsOnlyMatchingTimestamp(t *testing.T) {
	now := time.Now()
	var o Order

	StampStatus(&o, StatusProcessing, now)
	if o.Status != StatusProcessing {
		t.Fatalf("status = %s", o.Status)
	}
	if o.ProcessingAt == nil || !o.ProcessingAt.Equal(now) {
		t.Fatalf("processing_at not stamped")
	}
	if o.ShippedAt != nil || o.DeliveredAt != nil || o.CancelledAt != nil {
		t.Fatalf("unrelated timestamps were stamped")
	}

	later := now.Add(time.Hour)
	StampStatus(&o, StatusShipped, later)
	if o.ShippedAt == nil || !o.ShippedAt.Equal(later) {
		t.Fatalf("shipped_at not stamped")
	}
	if !o.ProcessingAt.Equal(now) {
		t.Fatalf("processing_at was changed by a later stamp")
	}
}

func TestValidStatus(t *testing.T) {
	for _, s := range []Status{StatusPending, StatusProcessing, StatusShipped, StatusDelivered, StatusCancelled} {
		if !ValidStatus(s) {
			t.Errorf("ValidStatus(%s) = false", s)
		}
	}
	if ValidStatus("refunded") {
		t.Errorf("ValidStatus accepted unknown status")
	}
}
