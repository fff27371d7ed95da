// Command gen810 writes sample X12 810 interchanges for exercising ediproc.
//
//	go run ./internal/tools/gen810 -scenario=all -count=20 -output-dir=generated
package main

import (
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/shopspring/decimal"
)

// Scenario describes how one generated interchange writes its amounts.
type Scenario struct {
	Name        string
	Description string
	Cents       bool
	Adjustments bool
	Unreconcile bool
}

var scenarios = []Scenario{
	{Name: "dollars", Description: "explicit decimal prices that reconcile as dollars"},
	{Name: "cents", Description: "integer prices that reconcile only as cents", Cents: true},
	{Name: "adjustments", Description: "dollar prices with SAC allowances and TXI taxes", Adjustments: true},
	{Name: "unreconciled", Description: "TDS total that matches neither interpretation", Unreconcile: true},
}

// InvoiceGenerator builds interchanges from a seeded faker.
type InvoiceGenerator struct {
	faker    *gofakeit.Faker
	sender   string
	receiver string
	control  int
}

func main() {
	var (
		outputDir = flag.String("output-dir", "generated", "Output directory for generated files")
		scenario  = flag.String("scenario", "all", "Scenario: dollars, cents, adjustments, unreconciled or all")
		count     = flag.Int("count", 5, "Interchanges per scenario")
		seed      = flag.Uint64("seed", uint64(time.Now().UnixNano()), "Random seed for reproducible generation")
		sender    = flag.String("sender", "SENDERID", "ISA06 sender ID")
		receiver  = flag.String("receiver", "RECEIVERID", "ISA08 receiver ID")
		list      = flag.Bool("list", false, "List available scenarios")
	)
	flag.Parse()

	if *list {
		for _, s := range scenarios {
			fmt.Printf("  %-13s %s\n", s.Name, s.Description)
		}
		return
	}

	if err := os.MkdirAll(*outputDir, 0o755); err != nil {
		log.Fatalf("Failed to create output directory: %v", err)
	}

	g := &InvoiceGenerator{
		faker:    gofakeit.New(*seed),
		sender:   *sender,
		receiver: *receiver,
		control:  1,
	}

	written := 0
	for _, s := range scenarios {
		if *scenario != "all" && *scenario != s.Name {
			continue
		}
		for i := 1; i <= *count; i++ {
			path := filepath.Join(*outputDir, fmt.Sprintf("%s_%03d.edi", s.Name, i))
			if err := os.WriteFile(path, []byte(g.Interchange(s)), 0o644); err != nil {
				log.Fatalf("Failed to write %s: %v", path, err)
			}
			written++
		}
	}
	if written == 0 {
		log.Fatalf("Unknown scenario: %s", *scenario)
	}

	fmt.Printf("Generated %d interchanges in %s\n", written, *outputDir)
	fmt.Printf("Seed used: %d\n", *seed)
}

// Interchange returns one ISA..IEA envelope holding a single 810.
func (g *InvoiceGenerator) Interchange(s Scenario) string {
	f := g.faker
	ctl := g.control
	g.control++

	at := f.DateRange(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC))
	var segs []string
	add := func(elements ...string) { segs = append(segs, strings.Join(elements, "*")) }

	add("ST", "810", "0001")
	add("BIG", at.Format("20060102"), "INV-"+f.Numerify("#####"), "", "PO-"+f.Numerify("####"))
	add("N1", "SE", strings.ToUpper(f.Company()), "92", "V"+f.Numerify("###"))
	add("N1", "BY", strings.ToUpper(f.Company()), "92", "B"+f.Numerify("###"))

	total := decimal.Zero
	lines := f.IntRange(1, 6)
	for n := 1; n <= lines; n++ {
		qty := f.IntRange(1, 12)
		price := decimal.NewFromFloat(f.Price(1, 250)).Round(2)
		ext := price.Mul(decimal.NewFromInt(int64(qty)))
		total = total.Add(ext)

		add("IT1", fmt.Sprint(n), fmt.Sprint(qty), "EA", g.price(price, s.Cents), "", "VP", "SKU-"+f.Numerify("####"))
		add("PID", "F", "", "", "", strings.ToUpper(f.ProductName()))

		if s.Adjustments && f.Bool() {
			allowance := ext.Mul(decimal.NewFromFloat(0.05)).Round(2)
			total = total.Sub(allowance)
			add("SAC", "A", "C310", "", "", n2(allowance), "", "", "", "", "", "", "", "", "", "PROMO")
		}
	}

	if s.Adjustments {
		tax := total.Mul(decimal.NewFromFloat(0.08)).Round(2)
		total = total.Add(tax)
		add("TDS", n2(total))
		add("TXI", "ST", tax.StringFixed(2))
	} else {
		if s.Unreconcile {
			total = total.Add(decimal.NewFromInt(int64(f.IntRange(3, 90))))
		}
		add("TDS", n2(total))
	}
	add("CTT", fmt.Sprint(lines))
	add("SE", fmt.Sprint(len(segs)+1), "0001")

	var b strings.Builder
	fmt.Fprintf(&b, "ISA*00*          *00*          *ZZ*%-15s*ZZ*%-15s*%s*%s*U*00401*%09d*0*P*>~\n",
		g.sender, g.receiver, at.Format("060102"), at.Format("1504"), ctl)
	fmt.Fprintf(&b, "GS*IN*%s*%s*%s*%s*%d*X*004010~\n",
		g.sender, g.receiver, at.Format("20060102"), at.Format("1504"), ctl)
	for _, s := range segs {
		b.WriteString(s)
		b.WriteString("~\n")
	}
	fmt.Fprintf(&b, "GE*1*%d~\n", ctl)
	fmt.Fprintf(&b, "IEA*1*%09d~\n", ctl)
	return b.String()
}

// price writes a unit price with an explicit decimal point, or as an
// integer count of cents.
func (g *InvoiceGenerator) price(d decimal.Decimal, cents bool) string {
	if cents {
		return d.Shift(2).StringFixed(0)
	}
	return d.StringFixed(2)
}

// n2 writes an implied two-decimal amount.
func n2(d decimal.Decimal) string {
	return d.Shift(2).Round(0).String()
}
