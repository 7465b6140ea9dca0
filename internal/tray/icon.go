package tray

import (
	"bytes"
	"encoding/binary"
	"runtime"
	"sync"

	"github.com/fogleman/gg"
)

const iconSize = 32

var (
	iconOnce sync.Once
	iconData []byte
)

// Icon returns the tray icon: PNG, wrapped in an ICO container on windows.
func Icon() []byte {
	iconOnce.Do(func() {
		data := drawIcon()
		if runtime.GOOS == "windows" {
			data = wrapICO(data, iconSize)
		}
		iconData = data
	})
	return iconData
}

// drawIcon renders a gamepad silhouette: a rounded body with two grips, a
// d-pad and two face buttons.
func drawIcon() []byte {
	dc := gg.NewContext(iconSize, iconSize)
	dc.SetRGBA(0, 0, 0, 0)
	dc.Clear()

	dc.SetHexColor("#2d333b")
	dc.DrawRoundedRectangle(3, 9, 26, 14, 5)
	dc.Fill()
	dc.DrawCircle(8, 22, 5)
	dc.DrawCircle(24, 22, 5)
	dc.Fill()

	dc.SetHexColor("#4fc3f7")
	dc.DrawRectangle(7, 12, 2, 8)
	dc.DrawRectangle(4, 15, 8, 2)
	dc.Fill()
	dc.DrawCircle(22, 14, 2)
	dc.Fill()
	dc.SetHexColor("#ef5350")
	dc.DrawCircle(26, 18, 2)
	dc.Fill()

	var buf bytes.Buffer
	if err := dc.EncodePNG(&buf); err != nil {
		return nil
	}
	return buf.Bytes()
}

// wrapICO stores a PNG as the single image of an ICO file.
func wrapICO(pngData []byte, size int) []byte {
	var buf bytes.Buffer
	le := binary.LittleEndian
	// ICONDIR
	binary.Write(&buf, le, [3]uint16{0, 1, 1})
	// ICONDIRENTRY
	buf.WriteByte(byte(size))
	buf.WriteByte(byte(size))
	buf.WriteByte(0) // palette
	buf.WriteByte(0)
	binary.Write(&buf, le, uint16(1))  // planes
	binary.Write(&buf, le, uint16(32)) // bpp
	binary.Write(&buf, le, uint32(len(pngData)))
	binary.Write(&buf, le, uint32(6+16))
	buf.Write(pngData)
	return buf.Bytes()
}
