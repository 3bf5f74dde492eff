package receipt

import (
	"bytes"
	"fmt"
	"image"
	"image/color"

	"github.com/skip2/go-qrcode"
)

// ESC/POS Commands
const (
	ESC byte = 0x1B
	GS  byte = 0x1D
	NL  byte = 0x0A
)

// ControlCodes is the table of printer commands the encoder emits
type ControlCodes struct {
	Init        []byte
	AlignLeft   []byte
	AlignCenter []byte
	AlignRight  []byte
	BoldOn      []byte
	BoldOff     []byte
	SizePrefix  []byte // Followed by one byte: ((width-1) << 4) | (height-1)
	RasterImage []byte // Followed by xL xH yL yH and the bitmap
	Cut         []byte
	LineFeed    byte
}

// DefaultControlCodes returns the ESC/POS table used by common 58/80mm thermal printers
func DefaultControlCodes() ControlCodes {
	return ControlCodes{
		Init:        []byte{ESC, '@', ESC, 't', 2}, // Initialize + code page 850
		AlignLeft:   []byte{ESC, 'a', 0},
		AlignCenter: []byte{ESC, 'a', 1},
		AlignRight:  []byte{ESC, 'a', 2},
		BoldOn:      []byte{ESC, 'E', 1},
		BoldOff:     []byte{ESC, 'E', 0},
		SizePrefix:  []byte{GS, '!'},
		RasterImage: []byte{GS, 'v', '0', 0},
		Cut:         []byte{GS, 'V', 66, 0}, // Partial cut
		LineFeed:    NL,
	}
}

// escposWriter tracks printer state so a command is only emitted when the style changes
type escposWriter struct {
	codes  ControlCodes
	buffer *bytes.Buffer
	align  Align
	bold   bool
	width  byte
	height byte
}

func newEscposWriter(codes ControlCodes) *escposWriter {
	return &escposWriter{
		codes:  codes,
		buffer: &bytes.Buffer{},
		width:  1,
		height: 1,
	}
}

func (w *escposWriter) init() {
	w.buffer.Write(w.codes.Init)
	w.align = AlignLeft
	w.bold = false
	w.width, w.height = 1, 1
}

func (w *escposWriter) setAlign(align Align) {
	if w.align == align {
		return
	}
	switch align {
	case AlignCenter:
		w.buffer.Write(w.codes.AlignCenter)
	case AlignRight:
		w.buffer.Write(w.codes.AlignRight)
	default:
		w.buffer.Write(w.codes.AlignLeft)
	}
	w.align = align
}

func (w *escposWriter) setEmphasize(on bool) {
	if w.bold == on {
		return
	}
	if on {
		w.buffer.Write(w.codes.BoldOn)
	} else {
		w.buffer.Write(w.codes.BoldOff)
	}
	w.bold = on
}

func (w *escposWriter) setSize(width, height byte) {
	width, height = clampScale(width), clampScale(height)
	if w.width == width && w.height == height {
		return
	}
	w.buffer.Write(w.codes.SizePrefix)
	w.buffer.WriteByte(((width - 1) << 4) | (height - 1))
	w.width, w.height = width, height
}

func (w *escposWriter) write(text string) {
	// Thermal printers only get plain ASCII
	w.buffer.WriteString(removeDiacritics(text))
}

func (w *escposWriter) lineFeed() {
	w.buffer.WriteByte(w.codes.LineFeed)
}

func (w *escposWriter) cut() {
	w.buffer.Write(w.codes.Cut)
}

func (w *escposWriter) bytes() []byte {
	return w.buffer.Bytes()
}

// printQRCode renders data as a QR bitmap no wider than maxWidth dots
func (w *escposWriter) printQRCode(data string, maxWidth int) error {
	qr, err := qrcode.New(data, qrcode.Medium)
	if err != nil {
		return fmt.Errorf("failed to generate QR code: %w", err)
	}
	size := 256
	if size > maxWidth {
		size = maxWidth
	}
	w.printImage(qr.Image(size))
	return nil
}

// printImage writes img as a GS v 0 raster bitmap, one bit per dot
func (w *escposWriter) printImage(img image.Image) {
	bounds := img.Bounds()
	width := bounds.Dx()
	height := bounds.Dy()
	widthBytes := (width + 7) / 8

	w.buffer.Write(w.codes.RasterImage)
	w.buffer.WriteByte(byte(widthBytes % 256)) // xL
	w.buffer.WriteByte(byte(widthBytes / 256)) // xH
	w.buffer.WriteByte(byte(height % 256))     // yL
	w.buffer.WriteByte(byte(height / 256))     // yH

	for y := 0; y < height; y++ {
		for x := 0; x < width; x += 8 {
			var b byte
			for bit := 0; bit < 8; bit++ {
				px := x + bit
				if px < width && isDark(img.At(bounds.Min.X+px, bounds.Min.Y+y)) {
					b |= 1 << uint(7-bit)
				}
			}
			w.buffer.WriteByte(b)
		}
	}
	w.lineFeed()
}

// isDark applies the luminance threshold used for monochrome printing
func isDark(c color.Color) bool {
	r, g, b, a := c.RGBA()
	if a == 0 {
		return false
	}
	gray := (299*(r>>8) + 587*(g>>8) + 114*(b>>8)) / 1000
	return gray < 128
}

func clampScale(v byte) byte {
	if v < 1 {
		return 1
	}
	if v > 8 {
		return 8
	}
	return v
}

// removeDiacritics folds accented characters to their ASCII base.
// Characters without a mapping become a space so rune count is preserved.
func removeDiacritics(text string) string {
	replacements := map[rune]rune{
		'á': 'a', 'Á': 'A', 'à': 'a', 'À': 'A', 'â': 'a', 'Â': 'A', 'ã': 'a', 'Ã': 'A',
		'é': 'e', 'É': 'E', 'ê': 'e', 'Ê': 'E',
		'í': 'i', 'Í': 'I',
		'ó': 'o', 'Ó': 'O', 'ô': 'o', 'Ô': 'O', 'õ': 'o', 'Õ': 'O',
		'ú': 'u', 'Ú': 'U', 'ü': 'u', 'Ü': 'U',
		'ç': 'c', 'Ç': 'C',
		'ñ': 'n', 'Ñ': 'N',
		'¿': '?', '¡': '!',
		'º': 'o', 'ª': 'a',
		'€': 'E',
	}

	result := make([]rune, 0, len(text))
	for _, r := range text {
		if r < 128 {
			result = append(result, r)
		} else if replacement, ok := replacements[r]; ok {
			result = append(result, replacement)
		} else {
			result = append(result, ' ')
		}
	}
	return string(result)
}
