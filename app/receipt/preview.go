package receipt

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"html/template"

	"PrintRelay/app/models"

	"github.com/skip2/go-qrcode"
)

var previewTemplate = template.Must(template.New("receipt").Parse(`<div class="receipt receipt-{{.Columns}}" style="font-family:monospace;width:{{.Columns}}ch">
{{- range .Sections}}
<section class="receipt-{{.Name}}">
{{- range .Lines}}
{{- if .QRImage}}
<div style="text-align:center"><img alt="QR" src="{{.QRImage}}"></div>
{{- else}}
<div style="white-space:pre;text-align:{{.Align}}{{if .Bold}};font-weight:bold{{end}}{{if gt .Scale 1}};font-size:{{.Scale}}em{{end}}">{{.Text}}</div>
{{- end}}
{{- end}}
</section>
{{- end}}
</div>
`))

type previewLine struct {
	Text    string
	Bold    bool
	Align   string
	Scale   int
	QRImage template.URL
}

type previewSection struct {
	Name  string
	Lines []previewLine
}

type previewData struct {
	Columns  int
	Sections []previewSection
}

// Previewer renders orders as HTML for on-screen display
type Previewer struct {
	Store StoreProfile
}

// NewPreviewer returns a previewer for the given store
func NewPreviewer(store StoreProfile) *Previewer {
	return &Previewer{Store: store}
}

// Preview renders the same sections the encoder prints, as block markup
func (p *Previewer) Preview(order *models.OrderSnapshot, width models.PaperWidth) (string, error) {
	doc, err := Build(order, width, p.Store)
	if err != nil {
		return "", err
	}
	return RenderHTML(doc)
}

// RenderHTML renders a built document as HTML
func RenderHTML(doc *Document) (string, error) {
	data := previewData{Columns: doc.Columns}
	for _, section := range doc.Sections {
		ps := previewSection{Name: section.Name}
		for _, line := range section.Lines {
			pl := previewLine{
				Text:  line.Text,
				Bold:  line.Bold,
				Align: alignName(line.Align),
				Scale: int(clampScale(line.Height)),
			}
			if line.QR != "" {
				png, err := qrcode.Encode(line.QR, qrcode.Medium, 160)
				if err != nil {
					return "", fmt.Errorf("failed to generate QR code: %w", err)
				}
				pl.QRImage = template.URL("data:image/png;base64," + base64.StdEncoding.EncodeToString(png))
			}
			ps.Lines = append(ps.Lines, pl)
		}
		data.Sections = append(data.Sections, ps)
	}

	var buf bytes.Buffer
	if err := previewTemplate.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("error rendering preview: %w", err)
	}
	return buf.String(), nil
}

func alignName(a Align) string {
	switch a {
	case AlignCenter:
		return "center"
	case AlignRight:
		return "right"
	default:
		return "left"
	}
}
