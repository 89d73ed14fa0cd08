package storage

import "testing"

func TestValidOrderStatus(t *testing.T) {
	cases := []struct {
		status OrderStatus
		want   bool
	}{
		{StatusPending, true},
		{StatusConfirmed, true},
		{StatusFulfilled, true},
		{StatusCancelled, true},
		{OrderStatus("shipped"), false},
		{OrderStatus(""), false},
	}
	for _, tc := range cases {
		if got := ValidOrderStatus(tc.status); got != tc.want {
			t.Errorf("ValidOrderStatus(%q) = %v, want %v", tc.status, got, tc.want)
		}
	}
}
