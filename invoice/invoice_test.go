package invoice

import (
	"testing"

	"chatinvoice/storage"
)

func price(v float64) *float64 { return &v }

func TestComputeAppliesIntraStateCGSTSGSTSplit(t *testing.T) {
	e := &Engine{}
	profile := &storage.BusinessProfile{BusinessName: "Shree Traders", GSTNumber: "29ABCDE1234F1Z5", TaxRatePercent: 18}
	order := &storage.Order{
		DeliveryAddress: "12 MG Road, Bengaluru",
		Items: []storage.OrderItem{
			{ProductName: "Rice", Quantity: 10, PricePerUnit: price(50)},
			{ProductName: "Oil", Quantity: 2, PricePerUnit: price(150)},
		},
	}
	inv, err := e.Compute(profile, 7, order, "Asha Rao", false)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if inv.Number == "" || inv.Subtotal != 800 {
		t.Fatalf("unexpected subtotal: %+v", inv)
	}
	if inv.CGST != 72 || inv.SGST != 72 {
		t.Fatalf("expected 9%% CGST/SGST each on 800, got cgst=%v sgst=%v", inv.CGST, inv.SGST)
	}
	if inv.IGST != nil {
		t.Fatalf("expected no IGST for intra-state invoice")
	}
	if inv.Total != 944 {
		t.Fatalf("expected total 944, got %v", inv.Total)
	}
}

func TestComputeAppliesIGSTForInterState(t *testing.T) {
	e := &Engine{}
	profile := &storage.BusinessProfile{BusinessName: "Shree Traders", GSTNumber: "29ABCDE1234F1Z5", TaxRatePercent: 18}
	order := &storage.Order{
		DeliveryAddress: "1 Marine Drive, Maharashtra",
		Items: []storage.OrderItem{
			{ProductName: "Rice", Quantity: 10, PricePerUnit: price(50)},
		},
	}
	inv, err := e.Compute(profile, 1, order, "Vikram Shah", true)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if inv.IGST == nil {
		t.Fatalf("expected IGST for inter-state delivery")
	}
	if *inv.IGST != 90 {
		t.Fatalf("expected IGST 90 on subtotal 500 at 18%%, got %v", *inv.IGST)
	}
	if inv.CGST != 0 || inv.SGST != 0 {
		t.Fatalf("expected no CGST/SGST for inter-state invoice")
	}
	if inv.Total != 590 {
		t.Fatalf("expected total 590, got %v", inv.Total)
	}
}

func TestComputeRoundsHalfUpToTwoDecimals(t *testing.T) {
	e := &Engine{}
	profile := &storage.BusinessProfile{BusinessName: "Test", TaxRatePercent: 18}
	order := &storage.Order{
		Items: []storage.OrderItem{
			{ProductName: "Spice", Quantity: 3, PricePerUnit: price(10.005)},
		},
	}
	inv, err := e.Compute(profile, 2, order, "Customer", false)
	if err != nil {
		t.Fatalf("compute: %v", err)
	}
	if inv.Items[0].Amount != 30.02 {
		t.Fatalf("expected line amount rounded to 30.02, got %v", inv.Items[0].Amount)
	}
}
