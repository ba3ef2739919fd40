package ledger

import (
	"errors"
	"testing"
)

func TestGuard(t *testing.T) {
	cases := []struct {
		name      string
		planned   int
		admitted  int
		requested int
		wantErr   error
		wantCap   bool
	}{
		{name: "fits exactly", planned: 5, admitted: 3, requested: 2},
		{name: "fits with room", planned: 5, admitted: 0, requested: 1},
		{name: "overflow by one", planned: 5, admitted: 3, requested: 3, wantCap: true},
		{name: "zero planned rejects any", planned: 0, admitted: 0, requested: 1, wantCap: true},
		{name: "already full", planned: 2, admitted: 2, requested: 1, wantCap: true},
		{name: "zero requested", planned: 5, admitted: 0, requested: 0, wantErr: ErrInvalidCount},
		{name: "negative requested", planned: 5, admitted: 0, requested: -3, wantErr: ErrInvalidCount},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := Guard(tc.planned, tc.admitted, tc.requested)
			switch {
			case tc.wantCap:
				ce, ok := IsCapacityExceeded(err)
				if !ok {
					t.Fatalf("Guard(%d,%d,%d) = %v, want CapacityError", tc.planned, tc.admitted, tc.requested, err)
				}
				if ce.Planned != tc.planned || ce.Admitted != tc.admitted || ce.Requested != tc.requested {
					t.Fatalf("CapacityError = %+v, want {%d %d %d}", ce, tc.planned, tc.admitted, tc.requested)
				}
			case tc.wantErr != nil:
				if !errors.Is(err, tc.wantErr) {
					t.Fatalf("Guard(%d,%d,%d) = %v, want %v", tc.planned, tc.admitted, tc.requested, err, tc.wantErr)
				}
			default:
				if err != nil {
					t.Fatalf("Guard(%d,%d,%d) = %v, want nil", tc.planned, tc.admitted, tc.requested, err)
				}
			}
		})
	}
}
