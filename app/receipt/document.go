package receipt

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"PrintRelay/app/models"

	"github.com/shopspring/decimal"
)

// ErrUnknownPaperWidth is returned for width classes without a column mapping
var ErrUnknownPaperWidth = errors.New("unknown paper width")

// Align is the horizontal alignment of a printed line
type Align int

const (
	AlignLeft Align = iota
	AlignCenter
	AlignRight
)

// Line is a single styled row of a receipt
type Line struct {
	Text   string
	Bold   bool
	Width  byte   // Character width multiplier, 1-8
	Height byte   // Character height multiplier, 1-8
	Align  Align
	QR     string // When set the line prints this payload as a QR code instead of Text
}

// Section groups the lines of one receipt block
type Section struct {
	Name  string
	Lines []Line
}

// Document is a fully laid out receipt for a fixed column count
type Document struct {
	Columns    int
	PaperWidth models.PaperWidth
	Sections   []Section
}

// SectionNames lists the section names in print order
func (d *Document) SectionNames() []string {
	names := make([]string, 0, len(d.Sections))
	for _, s := range d.Sections {
		names = append(names, s.Name)
	}
	return names
}

// Text returns the document's printable text, one line per row
func (d *Document) Text() string {
	var sb strings.Builder
	for _, s := range d.Sections {
		for _, l := range s.Lines {
			if l.QR != "" {
				continue
			}
			sb.WriteString(l.Text)
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// StoreProfile carries the store branding printed on every receipt
type StoreProfile struct {
	Name           string
	Tagline        string
	Handle         string // e.g. "@pizzeria - (11) 5555-0000"
	ThankYou       string
	CurrencySymbol string
	TrackingURL    string // Optional; "{order}" is replaced by the order number
	Location       *time.Location
}

func (p StoreProfile) currency() string {
	if p.CurrencySymbol == "" {
		return "$"
	}
	return p.CurrencySymbol
}

func (p StoreProfile) location() *time.Location {
	if p.Location == nil {
		return time.Local
	}
	return p.Location
}

func (p StoreProfile) thankYou() string {
	if p.ThankYou == "" {
		return "Thank you for your order!"
	}
	return p.ThankYou
}

var serviceLabels = map[models.ServiceType]string{
	models.ServiceDelivery: "DELIVERY",
	models.ServicePickup:   "PICKUP",
	models.ServiceDineIn:   "DINE-IN",
}

var paymentLabels = map[string]string{
	"cash":        "Cash",
	"card":        "Card",
	"credit_card": "Credit card",
	"debit_card":  "Debit card",
	"pix":         "PIX",
	"voucher":     "Meal voucher",
	"online":      "Paid online",
}

const dateLayout = "02/01/2006 15:04"

// Build lays out an order for the given paper width
func Build(order *models.OrderSnapshot, width models.PaperWidth, store StoreProfile) (*Document, error) {
	if err := order.Validate(); err != nil {
		return nil, err
	}
	cols, err := width.Columns()
	if err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPaperWidth, string(width))
	}

	b := &builder{
		layout: NewLayout(cols),
		store:  store,
		doc:    &Document{Columns: cols, PaperWidth: width},
	}

	b.header()
	b.orderNumber(order)
	b.serviceBanner(order)
	b.dateLine(order)
	b.customer(order)
	if order.ServiceType == models.ServiceDelivery && order.Address != nil {
		b.address(order.Address)
	}
	if order.Table != "" {
		b.table(order.Table)
	}
	b.items(order.Items)
	b.payment(order)
	b.totals(order)
	if strings.TrimSpace(order.Observations) != "" {
		b.observations(order.Observations)
	}
	b.footer(order)

	return b.doc, nil
}

type builder struct {
	layout  Layout
	store   StoreProfile
	doc     *Document
	current *Section
}

func (b *builder) section(name string) {
	b.doc.Sections = append(b.doc.Sections, Section{Name: name})
	b.current = &b.doc.Sections[len(b.doc.Sections)-1]
}

func (b *builder) add(line Line) {
	b.current.Lines = append(b.current.Lines, line)
}

func (b *builder) text(text string) {
	b.add(Line{Text: text})
}

func (b *builder) bold(text string) {
	b.add(Line{Text: text, Bold: true})
}

func (b *builder) blank() {
	b.add(Line{})
}

func (b *builder) money(v decimal.Decimal) string {
	return b.store.currency() + v.StringFixed(2)
}

func (b *builder) header() {
	b.section("header")
	if b.store.Name != "" {
		b.add(Line{Text: b.store.Name, Bold: true, Width: 2, Height: 2, Align: AlignCenter})
	}
	if b.store.Tagline != "" {
		b.add(Line{Text: b.store.Tagline, Align: AlignCenter})
	}
	b.add(Line{Align: AlignCenter})
}

func (b *builder) orderNumber(order *models.OrderSnapshot) {
	b.section("order")
	b.add(Line{
		Text:   "ORDER #" + strconv.Itoa(order.OrderNumber),
		Bold:   true,
		Width:  3,
		Height: 3,
		Align:  AlignCenter,
	})
}

func (b *builder) serviceBanner(order *models.OrderSnapshot) {
	b.section("service")
	b.text(b.layout.DoubleDivider())

	label, ok := serviceLabels[order.ServiceType]
	if !ok {
		label = string(order.ServiceType)
	}
	b.add(Line{Text: b.layout.Center(label), Bold: true, Height: 2})
}

func (b *builder) dateLine(order *models.OrderSnapshot) {
	b.section("date")
	b.text(b.layout.Divider())
	b.text(order.CreatedAt.In(b.store.location()).Format(dateLayout))
}

func (b *builder) customer(order *models.OrderSnapshot) {
	b.section("customer")
	b.text(b.layout.Divider())
	b.bold("CUSTOMER")
	if order.CustomerName != "" {
		b.text(order.CustomerName)
	}
	if order.CustomerPhone != "" {
		b.text(order.CustomerPhone)
	}
}

func (b *builder) address(addr *models.Address) {
	b.section("address")
	street := addr.Street
	if addr.Number != "" {
		street += ", " + addr.Number
	}
	b.text(street)
	if addr.Complement != "" {
		b.text(addr.Complement)
	}
	if addr.Neighborhood != "" {
		b.text(addr.Neighborhood)
	}
	if addr.Reference != "" {
		b.text("Ref: " + addr.Reference)
	}
}

func (b *builder) table(table string) {
	b.section("table")
	b.add(Line{Text: "Table: " + table, Width: 2, Height: 2})
}

func (b *builder) items(items []models.LineItem) {
	b.section("items")
	b.text(b.layout.Divider())
	b.bold("ITEMS")
	b.blank()

	w := b.layout.Width
	for _, item := range items {
		b.bold(fmt.Sprintf("%dx %s", item.Quantity, b.layout.Truncate(item.ProductName, w-15)))
		if item.Size != "" {
			b.text("  Size: " + item.Size)
		}
		if len(item.Flavors) > 0 {
			b.text("  Flavors: " + b.layout.Truncate(strings.Join(item.Flavors, ", "), w-12))
		}
		if item.Border != "" {
			b.text("  Border: " + item.Border)
		}
		if item.Note != "" {
			b.text("  Note: " + item.Note)
		}
		b.text(b.layout.PadLine(
			fmt.Sprintf("  %d x %s", item.Quantity, b.money(item.UnitPrice)),
			b.money(item.TotalPrice),
		))
		b.blank()
	}
}

func (b *builder) payment(order *models.OrderSnapshot) {
	b.section("payment")
	b.text(b.layout.Divider())
	b.bold("PAYMENT")

	label, ok := paymentLabels[order.PaymentMethod]
	if !ok {
		label = order.PaymentMethod
	}
	b.text(label)
	if order.ChangeFor != nil && order.ChangeFor.IsPositive() {
		b.text(b.layout.PadLine("Change for:", b.money(*order.ChangeFor)))
	}
}

func (b *builder) totals(order *models.OrderSnapshot) {
	b.section("totals")
	b.text(b.layout.Divider())
	b.text(b.layout.PadLine("Subtotal:", b.money(order.Subtotal)))
	if order.DeliveryFee.IsPositive() {
		b.text(b.layout.PadLine("Delivery fee:", b.money(order.DeliveryFee)))
	}
	if order.Discount.IsPositive() {
		b.text(b.layout.PadLine("Discount:", "-"+b.money(order.Discount)))
	}
	b.blank()
	// Double height only; double width would overflow the padded line
	b.add(Line{Text: b.layout.PadLine("TOTAL", b.money(order.Total)), Bold: true, Height: 2})
}

func (b *builder) observations(text string) {
	b.section("observations")
	b.text(b.layout.Divider())
	b.bold("OBSERVATIONS")
	b.text(text)
}

func (b *builder) footer(order *models.OrderSnapshot) {
	b.section("footer")
	b.text(b.layout.DoubleDivider())
	b.text(b.layout.Center(b.store.thankYou()))
	if b.store.Handle != "" {
		b.text(b.layout.Center(b.store.Handle))
	}
	if b.store.TrackingURL != "" {
		url := strings.ReplaceAll(b.store.TrackingURL, "{order}", strconv.Itoa(order.OrderNumber))
		b.add(Line{QR: url, Align: AlignCenter})
	}
	b.blank()
	b.blank()
	b.blank()
}
