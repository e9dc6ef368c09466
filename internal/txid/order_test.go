package txid

import "testing"

func TestDeriveOrderIsDeterministic(t *testing.T) {
	const txid = "4a5e1e4baab89f3a32518a88c31bc87f618f76673e2cc77ab2127b7afdeda33"

	first, err := DeriveOrder(txid)
	if err != nil {
		t.Fatalf("DeriveOrder returned an error: %v", err)
	}
	second, err := DeriveOrder(txid)
	if err != nil {
		t.Fatalf("DeriveOrder returned an error: %v", err)
	}
	if first != second {
		t.Fatalf("DeriveOrder is not deterministic: %d != %d", first, second)
	}
}

func TestDeriveOrderRejectsMalformedTxID(t *testing.T) {
	if _, err := DeriveOrder("not-a-txid"); err == nil {
		t.Fatal("expected an error for a malformed txid")
	}
}
