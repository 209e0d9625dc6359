package clock

import (
	"testing"
	"time"
)

func TestManualAdvance(t *testing.T) {
	start := time.Date(2024, 2, 29, 23, 59, 0, 0, time.UTC)
	c := NewManual(start)

	c.Advance(2 * time.Minute)

	if want := start.Add(2 * time.Minute); !c.Now().Equal(want) {
		t.Fatalf("expected %v, got %v", want, c.Now())
	}
}

func TestSystemIsUTC(t *testing.T) {
	if loc := (System{}).Now().Location(); loc != time.UTC {
		t.Fatalf("expected UTC, got %v", loc)
	}
}
