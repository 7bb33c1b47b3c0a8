package documents

import (
	"bytes"
	"errors"
	"testing"
	"time"

	"opsboard-backend/internal/models"
)

func sampleDetail(status models.TransferStatus) *models.TransferDetail {
	code := "SKU-1"
	items := []models.TransferItem{
		{ID: 1, ProductName: "Rice 25kg", ProductCode: &code, QuantityRequested: 10, QuantityPacked: 10, Unit: "bag"},
		{ID: 2, ProductName: "Sugar", QuantityRequested: 4, QuantityPacked: 3, Unit: "kg"},
	}
	return &models.TransferDetail{
		Transfer: &models.Transfer{
			ID:                      1,
			TransferNumber:          "TRF-000001",
			SourceLocationName:      "Central Warehouse",
			SourceLocationCode:      "WH-1",
			DestinationLocationName: "Main Street Store",
			DestinationLocationCode: "ST-1",
			Priority:                models.PriorityHigh,
			Status:                  status,
			RequestedAt:             time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
		},
		Items: items,
		DeliveryAssignments: []models.DeliveryAssignment{
			{ID: 1, VehicleNumber: "KA01AB1234", DriverName: "Ravi"},
		},
	}
}

func TestRenderDispatchNote(t *testing.T) {
	out, err := RenderDispatchNote(sampleDetail(models.TransferStatusDispatched))
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !bytes.HasPrefix(out, []byte("%PDF")) {
		t.Errorf("output is not a PDF")
	}
}

func TestRenderDispatchNoteBeforePacking(t *testing.T) {
	for _, s := range []models.TransferStatus{
		models.TransferStatusRequested,
		models.TransferStatusWarehouseApproved,
		models.TransferStatusPacking,
		models.TransferStatusCancelled,
	} {
		if _, err := RenderDispatchNote(sampleDetail(s)); !errors.Is(err, ErrNotPacked) {
			t.Errorf("%s: err = %v, want ErrNotPacked", s, err)
		}
	}
}
