package spiritcore

import "testing"

func testAccount(b byte) PublicKeyBytes {
	var a PublicKeyBytes
	a[0] = b
	return a
}

func TestInMemoryStorageReadWriteDelete(t *testing.T) {
	s := NewInMemoryStorage()
	key, value := []byte("k"), []byte("v")

	if _, ok, err := s.Read(key); err != nil || ok {
		t.Fatalf("unexpected read before write: ok=%v err=%v", ok, err)
	}
	if err := s.Write(key, value); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, ok, err := s.Read(key)
	if err != nil || !ok || string(got) != "v" {
		t.Fatalf("Read after write = %q, %v, %v", got, ok, err)
	}
	existed, err := s.Delete(key)
	if err != nil || !existed {
		t.Fatalf("Delete = %v, %v", existed, err)
	}
	if _, ok, _ := s.Read(key); ok {
		t.Error("key should be gone after delete")
	}
}

func TestInMemoryCreditLedgerTransfer(t *testing.T) {
	alice, bob := testAccount(1), testAccount(2)
	ledger := NewInMemoryCreditLedgerWithBalances(map[PublicKeyBytes]uint64{alice: 1000})

	if err := ledger.Transfer(alice, bob, 400); err != nil {
		t.Fatalf("Transfer: %v", err)
	}
	aliceBalance, _ := ledger.Balance(alice)
	bobBalance, _ := ledger.Balance(bob)
	if aliceBalance != 600 || bobBalance != 400 {
		t.Errorf("balances after transfer = alice=%d bob=%d, want 600/400", aliceBalance, bobBalance)
	}
}

func TestInMemoryCreditLedgerReserveConsumeRelease(t *testing.T) {
	alice := testAccount(1)
	ledger := NewInMemoryCreditLedgerWithBalances(map[PublicKeyBytes]uint64{alice: 1000})

	id, err := ledger.Reserve(alice, 300)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}

	available, _ := ledger.AvailableBalance(alice)
	if available != 700 {
		t.Errorf("available balance after reserve = %d, want 700", available)
	}

	if err := ledger.ConsumeReservation(id); err != nil {
		t.Fatalf("ConsumeReservation: %v", err)
	}
	balance, _ := ledger.Balance(alice)
	if balance != 700 {
		t.Errorf("balance after consume = %d, want 700", balance)
	}

	if err := ledger.ConsumeReservation(id); err == nil {
		t.Error("consuming an already-settled reservation should fail")
	}
	if err := ledger.ReleaseReservation(id); err == nil {
		t.Error("releasing an already-settled reservation should fail")
	}
}

func TestInMemoryCreditLedgerReleaseRestoresAvailability(t *testing.T) {
	alice := testAccount(1)
	ledger := NewInMemoryCreditLedgerWithBalances(map[PublicKeyBytes]uint64{alice: 1000})

	id, err := ledger.Reserve(alice, 300)
	if err != nil {
		t.Fatalf("Reserve: %v", err)
	}
	if err := ledger.ReleaseReservation(id); err != nil {
		t.Fatalf("ReleaseReservation: %v", err)
	}
	available, _ := ledger.AvailableBalance(alice)
	if available != 1000 {
		t.Errorf("available balance after release = %d, want 1000", available)
	}
}

func TestInMemoryCreditLedgerReserveExceedsAvailable(t *testing.T) {
	alice := testAccount(1)
	ledger := NewInMemoryCreditLedgerWithBalances(map[PublicKeyBytes]uint64{alice: 100})
	if _, err := ledger.Reserve(alice, 200); err == nil {
		t.Error("reserving more than the available balance should fail")
	}
}

func TestMockNetworkBackendBroadcastReachesConnections(t *testing.T) {
	nb := NewMockNetworkBackend()
	if _, err := nb.Connect("127.0.0.1:9000"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	if _, err := nb.Connect("127.0.0.1:9001"); err != nil {
		t.Fatalf("Connect: %v", err)
	}
	reached, err := nb.Broadcast([]byte("hello"))
	if err != nil {
		t.Fatalf("Broadcast: %v", err)
	}
	if reached != 2 {
		t.Errorf("broadcast reached %d peers, want 2", reached)
	}
}
