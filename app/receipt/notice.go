package receipt

import (
	"fmt"
	"strconv"
	"time"

	"PrintRelay/app/models"
)

// RetryNotice builds the placeholder printed when a failed job is retried by hand.
// The original receipt bytes are not kept, so the notice only names the job.
func RetryNotice(codes ControlCodes, width models.PaperWidth, title, jobID string) ([]byte, error) {
	cols, err := width.Columns()
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPaperWidth, string(width))
	}
	l := NewLayout(cols)
	doc := &Document{
		Columns:    cols,
		PaperWidth: width,
		Sections: []Section{{
			Name: "retry",
			Lines: []Line{
				{Text: "REPRINT", Bold: true, Width: 2, Height: 2, Align: AlignCenter},
				{Text: l.DoubleDivider()},
				{Text: l.Truncate(title, cols)},
				{Text: "Job: " + jobID},
				{Text: l.Divider()},
				{},
				{},
				{},
			},
		}},
	}
	return EncodeDocument(doc, codes)
}

// TestPage builds a short page used to check a printer end to end
func TestPage(codes ControlCodes, width models.PaperWidth, store StoreProfile, now time.Time) ([]byte, error) {
	cols, err := width.Columns()
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPaperWidth, string(width))
	}
	l := NewLayout(cols)
	lines := []Line{
		{Text: "PRINTER TEST", Bold: true, Width: 2, Height: 2, Align: AlignCenter},
	}
	if store.Name != "" {
		lines = append(lines, Line{Text: store.Name, Align: AlignCenter})
	}
	lines = append(lines,
		Line{Text: l.DoubleDivider()},
		Line{Text: l.PadLine("Paper:", string(width))},
		Line{Text: l.PadLine("Columns:", strconv.Itoa(cols))},
		Line{Text: now.In(store.location()).Format(dateLayout)},
		Line{Text: l.Divider()},
		Line{Text: "Normal"},
		Line{Text: "Bold", Bold: true},
		Line{Text: "Double", Width: 2, Height: 2},
		Line{Text: l.DoubleDivider()},
		Line{}, Line{}, Line{},
	)
	doc := &Document{
		Columns:    cols,
		PaperWidth: width,
		Sections:   []Section{{Name: "test", Lines: lines}},
	}
	return EncodeDocument(doc, codes)
}
