package models

import "fmt"

// PaperWidth is the paper size profile of a thermal printer
type PaperWidth string

const (
	PaperWidth58 PaperWidth = "58mm"
	PaperWidth76 PaperWidth = "76mm"
	PaperWidth80 PaperWidth = "80mm"
)

var paperColumns = map[PaperWidth]int{
	PaperWidth58: 32,
	PaperWidth76: 42,
	PaperWidth80: 48,
}

// Columns returns the fixed character column count for the width class
func (w PaperWidth) Columns() (int, error) {
	cols, ok := paperColumns[w]
	if !ok {
		return 0, fmt.Errorf("unknown paper width %q", string(w))
	}
	return cols, nil
}

// DotWidth returns the printable raster width in dots at 203 DPI
func (w PaperWidth) DotWidth() int {
	switch w {
	case PaperWidth58:
		return 384
	case PaperWidth76:
		return 512
	default:
		return 576
	}
}

// PrinterTarget addresses a printer behind the relay
type PrinterTarget struct {
	ID         string     `json:"id"`
	Name       string     `json:"name"`
	PaperWidth PaperWidth `json:"paper_width"`
	State      string     `json:"state,omitempty"`
}

// PrinterState is the relay's view of a printer's connectivity
type PrinterState struct {
	Online        bool   `json:"online"`
	State         string `json:"state"`
	ComputerState string `json:"computer_state,omitempty"`
}

// AccountInfo identifies the relay account behind the credential
type AccountInfo struct {
	ID        string `json:"id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name,omitempty"`
	LastName  string `json:"last_name,omitempty"`
}
