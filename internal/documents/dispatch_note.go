package documents

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/jung-kurt/gofpdf/v2"

	"opsboard-backend/internal/models"
	"opsboard-backend/internal/timeutil"
)

// ErrNotPacked is returned for transfers that have nothing to ship yet.
var ErrNotPacked = errors.New("dispatch note is available once the transfer is packed")

// DispatchNoteReady reports whether a note can be printed for status s.
func DispatchNoteReady(s models.TransferStatus) bool {
	switch s {
	case models.TransferStatusPacked, models.TransferStatusDispatched,
		models.TransferStatusInTransit, models.TransferStatusDelivered:
		return true
	}
	return false
}

// RenderDispatchNote builds the A4 note that travels with a shipment.
func RenderDispatchNote(d *models.TransferDetail) ([]byte, error) {
	t := d.Transfer
	if t == nil {
		return nil, errors.New("transfer is required")
	}
	if !DispatchNoteReady(t.Status) {
		return nil, ErrNotPacked
	}

	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetMargins(10, 10, 10)
	pdf.AddPage()

	pdf.SetFont("Arial", "B", 16)
	pdf.CellFormat(190, 10, "Dispatch Note", "", 1, "C", false, 0, "")
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(190, 6, fmt.Sprintf("Generated: %s", timeutil.Format(timeutil.Now(), timeutil.DisplayLayout)), "", 1, "C", false, 0, "")
	pdf.Ln(5)

	pdf.SetFillColor(240, 240, 240)
	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(190, 8, fmt.Sprintf("Transfer %s", t.TransferNumber), "1", 1, "L", true, 0, "")

	pdf.SetFont("Arial", "", 11)
	pdf.CellFormat(95, 7, fmt.Sprintf("From: %s (%s)", t.SourceLocationName, t.SourceLocationCode), "LB", 0, "L", false, 0, "")
	pdf.CellFormat(95, 7, fmt.Sprintf("To: %s (%s)", t.DestinationLocationName, t.DestinationLocationCode), "RB", 1, "L", false, 0, "")
	pdf.CellFormat(95, 7, fmt.Sprintf("Priority: %s", t.Priority), "LB", 0, "L", false, 0, "")
	pdf.CellFormat(95, 7, fmt.Sprintf("Status: %s", t.Status), "RB", 1, "L", false, 0, "")
	expected := "-"
	if t.ExpectedDeliveryDate != nil {
		expected = timeutil.Format(*t.ExpectedDeliveryDate, "02-Jan-2006")
	}
	pdf.CellFormat(95, 7, fmt.Sprintf("Requested: %s", timeutil.Format(t.RequestedAt, "02-Jan-2006")), "LB", 0, "L", false, 0, "")
	pdf.CellFormat(95, 7, fmt.Sprintf("Expected: %s", expected), "RB", 1, "L", false, 0, "")
	pdf.Ln(5)

	pdf.SetFont("Arial", "B", 12)
	pdf.CellFormat(190, 8, "Items", "1", 1, "L", true, 0, "")

	pdf.SetFont("Arial", "B", 10)
	pdf.SetFillColor(200, 200, 200)
	pdf.CellFormat(70, 7, "Product", "1", 0, "C", true, 0, "")
	pdf.CellFormat(30, 7, "Code", "1", 0, "C", true, 0, "")
	pdf.CellFormat(25, 7, "Requested", "1", 0, "C", true, 0, "")
	pdf.CellFormat(25, 7, "Packed", "1", 0, "C", true, 0, "")
	pdf.CellFormat(20, 7, "Delivered", "1", 0, "C", true, 0, "")
	pdf.CellFormat(20, 7, "Unit", "1", 1, "C", true, 0, "")

	pdf.SetFont("Arial", "", 10)
	totalPacked := 0
	for _, item := range d.Items {
		name := item.ProductName
		if len(name) > 35 {
			name = name[:32] + "..."
		}
		code := "-"
		if item.ProductCode != nil {
			code = *item.ProductCode
		}
		pdf.CellFormat(70, 6, name, "1", 0, "L", false, 0, "")
		pdf.CellFormat(30, 6, code, "1", 0, "C", false, 0, "")
		pdf.CellFormat(25, 6, fmt.Sprintf("%d", item.QuantityRequested), "1", 0, "R", false, 0, "")
		pdf.CellFormat(25, 6, fmt.Sprintf("%d", item.QuantityPacked), "1", 0, "R", false, 0, "")
		pdf.CellFormat(20, 6, fmt.Sprintf("%d", item.QuantityDelivered), "1", 0, "R", false, 0, "")
		pdf.CellFormat(20, 6, item.Unit, "1", 1, "C", false, 0, "")
		totalPacked += item.QuantityPacked
	}
	pdf.SetFont("Arial", "B", 10)
	pdf.CellFormat(125, 7, "Total packed", "1", 0, "R", false, 0, "")
	pdf.CellFormat(65, 7, fmt.Sprintf("%d", totalPacked), "1", 1, "C", false, 0, "")
	pdf.Ln(5)

	if len(d.DeliveryAssignments) > 0 {
		a := d.DeliveryAssignments[len(d.DeliveryAssignments)-1]
		pdf.SetFillColor(240, 240, 240)
		pdf.SetFont("Arial", "B", 12)
		pdf.CellFormat(190, 8, "Transport", "1", 1, "L", true, 0, "")
		pdf.SetFont("Arial", "", 11)
		pdf.CellFormat(95, 7, fmt.Sprintf("Vehicle: %s", a.VehicleNumber), "LB", 0, "L", false, 0, "")
		pdf.CellFormat(95, 7, fmt.Sprintf("Driver: %s %s", a.DriverName, a.DriverPhone), "RB", 1, "L", false, 0, "")
		pdf.Ln(5)
	}

	pdf.Ln(15)
	pdf.SetFont("Arial", "", 10)
	pdf.CellFormat(63, 6, "Packed by", "T", 0, "C", false, 0, "")
	pdf.CellFormat(64, 6, "Driver", "T", 0, "C", false, 0, "")
	pdf.CellFormat(63, 6, "Received by", "T", 1, "C", false, 0, "")

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
