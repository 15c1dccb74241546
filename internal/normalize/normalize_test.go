package normalize

import (
	"math"
	"testing"
	"time"

	"github.com/langchou/voltgazer/internal/apperr"
)

func TestParseTimestamp(t *testing.T) {
	want := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		input string
		want  time.Time
	}{
		{"utc zulu", "2024-01-01T00:00:00Z", want},
		{"naive", "2024-01-01T00:00:00", want},
		{"naive space", "2024-01-01 00:00:00", want},
		{"positive offset", "2024-01-01T02:00:00+02:00", want},
		{"negative offset", "2023-12-31T19:00:00-05:00", want},
		{"fractional", "2024-01-01T00:00:00.250Z", want.Add(250 * time.Millisecond)},
		{"naive fractional", "2024-01-01T00:00:00.250", want.Add(250 * time.Millisecond)},
		{"minutes only", "2024-01-01T00:00", want},
		{"date only", "2024-01-01", want},
		{"surrounding space", "  2024-01-01T00:00:00Z ", want},
		{"sub-microsecond", "2024-01-01T00:00:00.1234567Z", want.Add(123456 * time.Microsecond)},
		{"naive sub-microsecond", "2024-01-01T00:00:00.123456789", want.Add(123456 * time.Microsecond)},
		{"zero instant", "0001-01-01T00:00:00Z", time.Time{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseTimestamp(tt.input)
			if err != nil {
				t.Fatalf("ParseTimestamp(%q): %v", tt.input, err)
			}
			if !got.Equal(tt.want) {
				t.Errorf("ParseTimestamp(%q) = %v, want %v", tt.input, got, tt.want)
			}
			if got.Location() != time.UTC {
				t.Errorf("ParseTimestamp(%q) location = %v, want UTC", tt.input, got.Location())
			}
		})
	}
}

func TestParseTimestampInvalid(t *testing.T) {
	for _, input := range []string{"", "   ", "not-a-time", "2024-13-01T00:00:00Z", "01/02/2024"} {
		_, err := ParseTimestamp(input)
		if !apperr.IsValidation(err) {
			t.Errorf("ParseTimestamp(%q) error = %v, want ValidationError", input, err)
		}
	}
}

func TestOffsetAndNaiveNormalizeIdentically(t *testing.T) {
	withOffset, err := ParseTimestamp("2024-06-01T12:30:00+00:00")
	if err != nil {
		t.Fatal(err)
	}
	naive, err := ParseTimestamp("2024-06-01T12:30:00")
	if err != nil {
		t.Fatal(err)
	}
	if !withOffset.Equal(naive) || withOffset.Location() != naive.Location() {
		t.Fatalf("expected identical values, got %v and %v", withOffset, naive)
	}
}

func TestNormalizeTimestamp(t *testing.T) {
	loc := time.FixedZone("UTC+8", 8*3600)
	in := time.Date(2024, 1, 1, 8, 0, 0, 0, loc)

	got := NormalizeTimestamp(in)
	if !got.Equal(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)) || got.Location() != time.UTC {
		t.Fatalf("NormalizeTimestamp = %v", got)
	}

	// 已经是 UTC 的值原样返回
	utc := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if !NormalizeTimestamp(utc).Equal(utc) {
		t.Fatalf("expected pass-through for UTC value")
	}
}

func TestNormalizeTimestampMicrosecondPrecision(t *testing.T) {
	in := time.Date(2024, 1, 1, 0, 0, 0, 123456789, time.FixedZone("UTC+2", 2*3600))

	got := NormalizeTimestamp(in)
	want := time.Date(2023, 12, 31, 22, 0, 0, 123456000, time.UTC)
	if !got.Equal(want) {
		t.Fatalf("NormalizeTimestamp = %v, want %v", got, want)
	}
	if got.Nanosecond()%1000 != 0 {
		t.Fatalf("expected microsecond precision, got %d ns", got.Nanosecond())
	}
	if again := NormalizeTimestamp(got); !again.Equal(got) {
		t.Fatalf("normalization not idempotent: %v vs %v", again, got)
	}
}

func TestValidateVoltage(t *testing.T) {
	tests := []struct {
		name    string
		v       float64
		wantErr bool
	}{
		{"typical", 3.7, false},
		{"zero", 0, false},
		{"negative", -1.2, false},
		{"large", 1e12, false},
		{"nan", math.NaN(), true},
		{"+inf", math.Inf(1), true},
		{"-inf", math.Inf(-1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateVoltage(tt.v)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateVoltage(%v) error = %v, wantErr %v", tt.v, err, tt.wantErr)
			}
			if err != nil && !apperr.IsValidation(err) {
				t.Errorf("expected ValidationError, got %T", err)
			}
		})
	}
}

func TestValidateBatteryID(t *testing.T) {
	tests := []struct {
		input   string
		wantErr bool
	}{
		{"b1", false},
		{"battery-0001", false},
		{"", true},
		{"   ", true},
	}

	for _, tt := range tests {
		err := ValidateBatteryID(tt.input)
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidateBatteryID(%q) error = %v, wantErr %v", tt.input, err, tt.wantErr)
		}
	}
}
