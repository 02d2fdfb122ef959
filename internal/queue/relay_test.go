package queue

import "testing"

func TestParseReconEvent(t *testing.T) {
	msg, err := parseReconEvent(map[string]interface{}{
		"request_id":    "req-1",
		"product_id":    "p1",
		"desired_stock": "25",
		"new_price":     "49.99",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.RequestID != "req-1" || msg.ProductID != "p1" {
		t.Fatalf("msg = %+v", msg)
	}
	if msg.DesiredStock == nil || *msg.DesiredStock != 25 {
		t.Fatalf("desired stock = %v", msg.DesiredStock)
	}
	if msg.NewPrice == nil || *msg.NewPrice != 49.99 {
		t.Fatalf("new price = %v", msg.NewPrice)
	}
}

func TestParseReconEventStockOnly(t *testing.T) {
	msg, err := parseReconEvent(map[string]interface{}{
		"request_id":    "req-1",
		"product_id":    "p1",
		"desired_stock": "0",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.NewPrice != nil {
		t.Fatalf("new price should be absent, got %v", *msg.NewPrice)
	}
	if msg.DesiredStock == nil || *msg.DesiredStock != 0 {
		t.Fatalf("desired stock = %v", msg.DesiredStock)
	}
}

func TestParseReconEventRejectsDirtyMessages(t *testing.T) {
	cases := []struct {
		name   string
		values map[string]interface{}
	}{
		{"missing request id", map[string]interface{}{"product_id": "p1", "desired_stock": "5"}},
		{"missing product id", map[string]interface{}{"request_id": "r", "desired_stock": "5"}},
		{"no operation", map[string]interface{}{"request_id": "r", "product_id": "p1"}},
		{"bad stock", map[string]interface{}{"request_id": "r", "product_id": "p1", "desired_stock": "many"}},
		{"bad price", map[string]interface{}{"request_id": "r", "product_id": "p1", "new_price": "cheap"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := parseReconEvent(tc.values); err == nil {
				t.Fatal("expected parse error")
			}
		})
	}
}

func TestReconMessageValidate(t *testing.T) {
	stock := int64(5)
	ok := ReconMessage{RequestID: "r", ProductID: "p", DesiredStock: &stock}
	if err := ok.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	empty := ReconMessage{RequestID: "r", ProductID: "p"}
	if err := empty.Validate(); err == nil {
		t.Fatal("message without operation must be invalid")
	}
}
