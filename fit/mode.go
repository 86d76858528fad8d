package fit

import (
	"fmt"
	"strings"
)

// Mode selects how a source image is mapped onto the canvas.
type Mode int

const (
	// Contain keeps the whole image visible and letterboxes the remainder.
	Contain Mode = iota

	// Cover fills the whole canvas and crops whatever overflows.
	Cover
)

func (m Mode) String() string {
	switch m {
	case Contain:
		return "contain"
	case Cover:
		return "cover"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool {
	return m == Contain || m == Cover
}

// ParseMode parses "contain" or "cover".
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "contain":
		return Contain, nil
	case "cover":
		return Cover, nil
	}
	return 0, fmt.Errorf("%w: %q", ErrUnsupportedMode, s)
}

func (m Mode) MarshalText() ([]byte, error) {
	if !m.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedMode, int(m))
	}
	return []byte(m.String()), nil
}

func (m *Mode) UnmarshalText(text []byte) error {
	v, err := ParseMode(string(text))
	if err != nil {
		return err
	}
	*m = v
	return nil
}

// Rotation is a clockwise rotation in degrees applied before fitting.
type Rotation int

const (
	Rotate0   Rotation = 0
	Rotate90  Rotation = 90
	Rotate180 Rotation = 180
	Rotate270 Rotation = 270
)

// Valid reports whether r is a quarter turn.
func (r Rotation) Valid() bool {
	switch r {
	case Rotate0, Rotate90, Rotate180, Rotate270:
		return true
	}
	return false
}

// ParseRotation checks that deg is one of 0, 90, 180 or 270.
func ParseRotation(deg int) (Rotation, error) {
	r := Rotation(deg)
	if !r.Valid() {
		return 0, fmt.Errorf("%w: %d", ErrInvalidRotation, deg)
	}
	return r, nil
}

// Apply returns the size s takes after rotating by r.
func (r Rotation) Apply(s Size) Size {
	if r == Rotate90 || r == Rotate270 {
		return Size{Width: s.Height, Height: s.Width}
	}
	return s
}
