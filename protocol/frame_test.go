package protocol

import (
	"bytes"
	"testing"
)

func TestNewFrameDefaults(t *testing.T) {
	f := NewFrame()
	want := []byte{'n', 0, 90}
	if !bytes.Equal(f.Bytes(), want) {
		t.Errorf("Expected default frame %v, got %v", want, f.Bytes())
	}
}

func TestFrameSetLastWriteWins(t *testing.T) {
	f := NewFrame()

	f.Set(SlotTurn, Left)
	f.Set(SlotSpeed, 10)
	f.Set(SlotDirection, Forward)
	f.Set(SlotSpeed, 200)
	f.Set(SlotTurn, Right)

	want := []byte{'f', 200, 130}
	if !bytes.Equal(f.Bytes(), want) {
		t.Errorf("Expected %v, got %v", want, f.Bytes())
	}
	if f.Get(SlotSpeed) != 200 {
		t.Errorf("Expected speed 200, got %d", f.Get(SlotSpeed))
	}
}

func TestFrameBytesIsCopy(t *testing.T) {
	f := NewFrame()
	b := f.Bytes()
	b[0] = 'x'
	if f[SlotDirection] != Neutral {
		t.Errorf("Mutating Bytes() result changed the frame: %v", f)
	}
}

func TestFrameSetInvalidSlotPanics(t *testing.T) {
	for _, slot := range []int{-1, 3, 100} {
		func() {
			defer func() {
				if recover() == nil {
					t.Errorf("Set(%d) should panic", slot)
				}
			}()
			f := NewFrame()
			f.Set(slot, 1)
		}()
	}
}

func TestFrameSetNoValueValidation(t *testing.T) {
	f := NewFrame()
	f.Set(SlotDirection, 'x')
	f.Set(SlotTurn, 7)
	if f[SlotDirection] != 'x' || f[SlotTurn] != 7 {
		t.Errorf("Set should store values verbatim, got %v", f.Bytes())
	}
}

func TestParseDirectionAndTurn(t *testing.T) {
	if d, err := ParseDirection("Forward"); err != nil || d != Forward {
		t.Errorf("ParseDirection(Forward) = %q, %v", d, err)
	}
	if d, err := ParseDirection("r"); err != nil || d != Reverse {
		t.Errorf("ParseDirection(r) = %q, %v", d, err)
	}
	if _, err := ParseDirection("up"); err == nil {
		t.Error("ParseDirection(up) should fail")
	}

	if v, err := ParseTurn("left"); err != nil || v != Left {
		t.Errorf("ParseTurn(left) = %d, %v", v, err)
	}
	if v, err := ParseTurn("130"); err != nil || v != Right {
		t.Errorf("ParseTurn(130) = %d, %v", v, err)
	}
	if _, err := ParseTurn("sideways"); err == nil {
		t.Error("ParseTurn(sideways) should fail")
	}
}

func TestFrameString(t *testing.T) {
	f := Frame{Reverse, 42, Left}
	if got := f.String(); got != "reverse speed=42 turn=left" {
		t.Errorf("Unexpected String(): %q", got)
	}
}
