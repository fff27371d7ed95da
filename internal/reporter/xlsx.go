package reporter

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"golang-edi-invoice-service/internal/reconciler"
)

// Sheet names used by the XLSX export.
const (
	SheetInvoices  = "Invoices"
	SheetLineItems = "Line Items"
)

var invoiceColumns = []interface{}{
	"Source", "Sender", "Group Control", "Set Control", "Invoice Number", "Invoice Date",
	"Purchase Order", "Vendor", "Buyer", "Currency", "Interpretation", "Status", "Lines",
	"Subtotal", "Allowances", "Charges", "Taxes", "Net Amount", "Declared Total",
	"GL Account", "Flags", "Discrepancies",
}

var lineItemColumns = []interface{}{
	"Source", "Set Control", "Invoice Number", "Line Number", "Product Code", "Description",
	"Quantity", "Unit of Measure", "Unit Price", "Currency", "Subtotal", "Allowances",
	"Charges", "Taxes", "Net Amount", "GL Account",
}

func (rg *ReportGenerator) generateXLSXReport(batch *reconciler.BatchResult, writer io.Writer) error {
	invoices, lines := BuildRows(batch.Results)
	rg.sortInvoices(invoices)

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), SheetInvoices); err != nil {
		return fmt.Errorf("failed to name invoice sheet: %w", err)
	}
	if err := writeRow(f, SheetInvoices, 1, invoiceColumns); err != nil {
		return err
	}
	for i, inv := range invoices {
		row := []interface{}{
			inv.Source, inv.SenderID, inv.GroupControl, inv.SetControl, inv.InvoiceNumber,
			inv.InvoiceDate, inv.PurchaseOrder, inv.Vendor, inv.Buyer, inv.Currency,
			string(inv.Interpretation), string(inv.Status), inv.Lines,
			inv.Subtotal.InexactFloat64(), inv.Allowances.InexactFloat64(),
			inv.Charges.InexactFloat64(), inv.Taxes.InexactFloat64(),
			inv.NetAmount.InexactFloat64(), inv.DeclaredTotal, inv.GLAccount,
			inv.Flags, inv.Discrepancies,
		}
		if err := writeRow(f, SheetInvoices, i+2, row); err != nil {
			return err
		}
	}

	if rg.config.IncludeLineItems {
		if _, err := f.NewSheet(SheetLineItems); err != nil {
			return fmt.Errorf("failed to create line item sheet: %w", err)
		}
		if err := writeRow(f, SheetLineItems, 1, lineItemColumns); err != nil {
			return err
		}
		for i, li := range lines {
			row := []interface{}{
				li.Source, li.SetControl, li.InvoiceNumber, li.LineNumber, li.ProductCode,
				li.Description, li.Quantity, li.UnitOfMeasure, li.UnitPrice.InexactFloat64(),
				li.Currency, li.Subtotal.InexactFloat64(), li.Allowances.InexactFloat64(),
				li.Charges.InexactFloat64(), li.Taxes.InexactFloat64(),
				li.NetAmount.InexactFloat64(), li.GLAccount,
			}
			if err := writeRow(f, SheetLineItems, i+2, row); err != nil {
				return err
			}
		}
	}

	if _, err := f.WriteTo(writer); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeRow(f *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := f.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("failed to write %s row %d: %w", sheet, row, err)
	}
	return nil
}
