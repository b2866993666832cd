package frame

// Frame is one still sample of the video source. Pixels is tightly packed
// RGBA; Encoded is the JPEG representation used for fingerprinting and for
// the remote inference call. A frame is owned by the session for one tick
// and never mutated after construction.
type Frame struct {
	SessionID string
	Timestamp int64
	Pixels    []byte
	Width     int
	Height    int
	Encoded   []byte
}

// DownsampleGreen extracts the green channel of every factor-th pixel on
// every factor-th row. Motion detection compares only this one channel.
func DownsampleGreen(f *Frame, factor int) ([]uint8, int, int) {
	if factor < 1 {
		factor = 1
	}
	w := f.Width / factor
	h := f.Height / factor
	if w < 1 || h < 1 || len(f.Pixels) < f.Width*f.Height*4 {
		return nil, 0, 0
	}

	out := make([]uint8, w*h)
	for y := 0; y < h; y++ {
		srcRow := y * factor * f.Width
		for x := 0; x < w; x++ {
			idx := (srcRow + x*factor) * 4
			out[y*w+x] = f.Pixels[idx+1]
		}
	}
	return out, w, h
}

// Luminance converts the frame to a downsampled single-channel luma
// approximation using integer BT.601 weights.
func Luminance(f *Frame, factor int) ([]uint8, int, int) {
	if factor < 1 {
		factor = 1
	}
	w := f.Width / factor
	h := f.Height / factor
	if w < 1 || h < 1 || len(f.Pixels) < f.Width*f.Height*4 {
		return nil, 0, 0
	}

	out := make([]uint8, w*h)
	for y := 0; y < h; y++ {
		srcRow := y * factor * f.Width
		for x := 0; x < w; x++ {
			idx := (srcRow + x*factor) * 4
			r := int(f.Pixels[idx])
			g := int(f.Pixels[idx+1])
			b := int(f.Pixels[idx+2])
			out[y*w+x] = uint8((299*r + 587*g + 114*b) / 1000)
		}
	}
	return out, w, h
}
