package chain

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

func TestUSDCUnits(t *testing.T) {
	cases := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{"1", "1000000", false},
		{"12.5", "12500000", false},
		{"0.000001", "1", false},
		{"0.0000001", "", true}, // below one base unit
		{"5.1234567", "", true}, // 7 fractional digits
		{"0", "", true},
		{"-3", "", true},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := USDCUnits(decimal.RequireFromString(tc.in))
			if tc.wantErr {
				if err == nil {
					t.Fatalf("USDCUnits(%s) = %v, want error", tc.in, got)
				}
				return
			}
			if err != nil {
				t.Fatalf("USDCUnits(%s): %v", tc.in, err)
			}
			if got.String() != tc.want {
				t.Fatalf("USDCUnits(%s) = %s, want %s", tc.in, got, tc.want)
			}
		})
	}
}

func TestScheduleIDBytes(t *testing.T) {
	id := uuid.MustParse("11111111-2222-4333-8444-555555555555")
	out := ScheduleIDBytes(id)

	for i := 0; i < 16; i++ {
		if out[i] != 0 {
			t.Fatalf("byte %d should be zero padding, got %x", i, out[i])
		}
	}
	for i := 0; i < 16; i++ {
		if out[16+i] != id[i] {
			t.Fatalf("uuid byte %d mismatch: %x vs %x", i, out[16+i], id[i])
		}
	}

	if ScheduleIDBytes(id) != out {
		t.Fatalf("encoding must be deterministic")
	}
	if other := ScheduleIDBytes(uuid.MustParse("99999999-2222-4333-8444-555555555555")); other == out {
		t.Fatalf("distinct uuids must encode differently")
	}
}
