package shell

// Rect is a screen area in pixels.
type Rect struct {
	X, Y          int
	Width, Height int
}

// Display reports the work area absolute cursor moves are projected onto.
type Display interface {
	WorkArea() Rect
}

// StaticDisplay is a fixed work area taken from settings. The uinput sink
// cannot read the cursor position, so the area does not follow the monitor
// under the cursor.
type StaticDisplay Rect

func (d StaticDisplay) WorkArea() Rect { return Rect(d) }
