package receipt

import (
	"fmt"

	"PrintRelay/app/models"
)

// Encoder turns orders into ESC/POS byte streams
type Encoder struct {
	Store StoreProfile
	Codes ControlCodes
}

// NewEncoder returns an encoder using the default ESC/POS table
func NewEncoder(store StoreProfile) *Encoder {
	return &Encoder{Store: store, Codes: DefaultControlCodes()}
}

// Encode validates and renders an order. The output depends only on its inputs.
func (e *Encoder) Encode(order *models.OrderSnapshot, width models.PaperWidth) ([]byte, error) {
	doc, err := Build(order, width, e.Store)
	if err != nil {
		return nil, err
	}
	return EncodeDocument(doc, e.Codes)
}

// EncodeDocument writes a built document with the given control codes
func EncodeDocument(doc *Document, codes ControlCodes) ([]byte, error) {
	w := newEscposWriter(codes)
	w.init()

	for _, section := range doc.Sections {
		for _, line := range section.Lines {
			w.setAlign(line.Align)
			if line.QR != "" {
				if err := w.printQRCode(line.QR, doc.PaperWidth.DotWidth()); err != nil {
					return nil, fmt.Errorf("error encoding %s section: %w", section.Name, err)
				}
				continue
			}
			w.setEmphasize(line.Bold)
			w.setSize(line.Width, line.Height)
			w.write(line.Text)
			w.lineFeed()
		}
	}

	w.setEmphasize(false)
	w.setSize(1, 1)
	w.cut()
	return w.bytes(), nil
}
