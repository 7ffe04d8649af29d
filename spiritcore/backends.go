package spiritcore

import (
	"crypto/rand"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/chacha20poly1305"
)

const (
	MaxKeySize   = 1024
	MaxValueSize = 10 * 1024 * 1024

	MaxTransferAmount uint64 = 1_000_000_000_000
	MaxReserveAmount  uint64 = 100_000_000_000
)

// PublicKeyBytes is an Ed25519 public key used as a credit/storage account
// identifier at the host boundary.
type PublicKeyBytes = [32]byte

// StorageBackend is the key-value store a sandbox's storage_* host calls
// operate against.
type StorageBackend interface {
	Read(key []byte) ([]byte, bool, error)
	Write(key, value []byte) error
	Delete(key []byte) (bool, error)
	Count() (int, error)
	Clear() error
}

// InMemoryStorage is a goroutine-safe, process-local StorageBackend.
type InMemoryStorage struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewInMemoryStorage returns an empty backend.
func NewInMemoryStorage() *InMemoryStorage {
	return &InMemoryStorage{data: make(map[string][]byte)}
}

func (s *InMemoryStorage) Read(key []byte) ([]byte, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[string(key)]
	if !ok {
		return nil, false, nil
	}
	out := make([]byte, len(v))
	copy(out, v)
	return out, true, nil
}

func (s *InMemoryStorage) Write(key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	stored := make([]byte, len(value))
	copy(stored, value)
	s.data[string(key)] = stored
	return nil
}

func (s *InMemoryStorage) Delete(key []byte) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, existed := s.data[string(key)]
	delete(s.data, string(key))
	return existed, nil
}

func (s *InMemoryStorage) Count() (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data), nil
}

func (s *InMemoryStorage) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = make(map[string][]byte)
	return nil
}

// EncryptedStorageBackend wraps another StorageBackend, encrypting every
// value at rest with XChaCha20-Poly1305. Keys are stored in the clear since
// lookups must remain possible without decrypting the whole store.
type EncryptedStorageBackend struct {
	inner StorageBackend
	aead  interface {
		Seal(dst, nonce, plaintext, additionalData []byte) []byte
		Open(dst, nonce, ciphertext, additionalData []byte) ([]byte, error)
		NonceSize() int
	}
}

// NewEncryptedStorageBackend wraps inner with XChaCha20-Poly1305 encryption
// keyed by key, which must be 32 bytes.
func NewEncryptedStorageBackend(inner StorageBackend, key []byte) (*EncryptedStorageBackend, error) {
	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("encrypted storage backend: %w", err)
	}
	return &EncryptedStorageBackend{inner: inner, aead: aead}, nil
}

func (e *EncryptedStorageBackend) Read(key []byte) ([]byte, bool, error) {
	sealed, ok, err := e.inner.Read(key)
	if err != nil || !ok {
		return nil, ok, err
	}
	nonceSize := e.aead.NonceSize()
	if len(sealed) < nonceSize {
		return nil, false, fmt.Errorf("encrypted storage backend: ciphertext too short")
	}
	nonce, ciphertext := sealed[:nonceSize], sealed[nonceSize:]
	plaintext, err := e.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, false, fmt.Errorf("encrypted storage backend: decrypt failed: %w", err)
	}
	return plaintext, true, nil
}

func (e *EncryptedStorageBackend) Write(key, value []byte) error {
	nonce := make([]byte, e.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return fmt.Errorf("encrypted storage backend: %w", err)
	}
	sealed := e.aead.Seal(nonce, nonce, value, nil)
	return e.inner.Write(key, sealed)
}

func (e *EncryptedStorageBackend) Delete(key []byte) (bool, error) { return e.inner.Delete(key) }
func (e *EncryptedStorageBackend) Count() (int, error)             { return e.inner.Count() }
func (e *EncryptedStorageBackend) Clear() error                    { return e.inner.Clear() }

// CreditBackend is the account-balance ledger a sandbox's credit_* host
// calls operate against. Reservations are one-shot escrow: Reserve reduces
// the available balance without touching the total, and Release/Consume
// settle the reservation exactly once.
type CreditBackend interface {
	Balance(account PublicKeyBytes) (uint64, error)
	Transfer(from, to PublicKeyBytes, amount uint64) error
	Reserve(account PublicKeyBytes, amount uint64) (uint64, error)
	ReleaseReservation(reservationID uint64) error
	ConsumeReservation(reservationID uint64) error
	ReservedBalance(account PublicKeyBytes) (uint64, error)
	AvailableBalance(account PublicKeyBytes) (uint64, error)
	Credit(account PublicKeyBytes, amount uint64) error
}

type creditReservation struct {
	account PublicKeyBytes
	amount  uint64
	active  bool
}

// InMemoryCreditLedger is a goroutine-safe, process-local CreditBackend.
type InMemoryCreditLedger struct {
	mu                sync.Mutex
	balances          map[PublicKeyBytes]uint64
	reservations      map[uint64]*creditReservation
	nextReservationID uint64
}

// NewInMemoryCreditLedger returns a ledger with no balances.
func NewInMemoryCreditLedger() *InMemoryCreditLedger {
	return &InMemoryCreditLedger{
		balances:          make(map[PublicKeyBytes]uint64),
		reservations:      make(map[uint64]*creditReservation),
		nextReservationID: 1,
	}
}

// NewInMemoryCreditLedgerWithBalances returns a ledger pre-funded per the
// given account/amount pairs.
func NewInMemoryCreditLedgerWithBalances(initial map[PublicKeyBytes]uint64) *InMemoryCreditLedger {
	l := NewInMemoryCreditLedger()
	for account, amount := range initial {
		l.balances[account] = amount
	}
	return l
}

func (l *InMemoryCreditLedger) reservedForAccountLocked(account PublicKeyBytes) uint64 {
	var total uint64
	for _, r := range l.reservations {
		if r.active && r.account == account {
			total += r.amount
		}
	}
	return total
}

func (l *InMemoryCreditLedger) Balance(account PublicKeyBytes) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[account], nil
}

func (l *InMemoryCreditLedger) ReservedBalance(account PublicKeyBytes) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.reservedForAccountLocked(account), nil
}

func (l *InMemoryCreditLedger) AvailableBalance(account PublicKeyBytes) (uint64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	total := l.balances[account]
	reserved := l.reservedForAccountLocked(account)
	if reserved > total {
		return 0, nil
	}
	return total - reserved, nil
}

func (l *InMemoryCreditLedger) Transfer(from, to PublicKeyBytes, amount uint64) error {
	if amount == 0 {
		return fmt.Errorf("%w: transfer amount must be greater than zero", ErrInvalidLimits)
	}
	if amount > MaxTransferAmount {
		return fmt.Errorf("%w: transfer amount %d exceeds maximum %d", ErrAmountExceedsMaximum, amount, MaxTransferAmount)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	available := l.balances[from]
	reserved := l.reservedForAccountLocked(from)
	if reserved < available {
		available -= reserved
	} else {
		available = 0
	}
	if available < amount {
		return fmt.Errorf("%w: have %d available, need %d", ErrInsufficientBalance, available, amount)
	}
	l.balances[from] -= amount
	l.balances[to] += amount
	return nil
}

func (l *InMemoryCreditLedger) Reserve(account PublicKeyBytes, amount uint64) (uint64, error) {
	if amount == 0 {
		return 0, fmt.Errorf("%w: reserve amount must be greater than zero", ErrInvalidLimits)
	}
	if amount > MaxReserveAmount {
		return 0, fmt.Errorf("%w: reserve amount %d exceeds maximum %d", ErrAmountExceedsMaximum, amount, MaxReserveAmount)
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	total := l.balances[account]
	reserved := l.reservedForAccountLocked(account)
	available := uint64(0)
	if total > reserved {
		available = total - reserved
	}
	if available < amount {
		return 0, fmt.Errorf("%w: have %d available, need %d", ErrInsufficientBalance, available, amount)
	}
	id := l.nextReservationID
	l.nextReservationID++
	l.reservations[id] = &creditReservation{account: account, amount: amount, active: true}
	return id, nil
}

func (l *InMemoryCreditLedger) ReleaseReservation(reservationID uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.reservations[reservationID]
	if !ok {
		return fmt.Errorf("%w: reservation %d", ErrReservationNotFound, reservationID)
	}
	if !r.active {
		return fmt.Errorf("%w: reservation %d", ErrReservationSettled, reservationID)
	}
	r.active = false
	return nil
}

func (l *InMemoryCreditLedger) ConsumeReservation(reservationID uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	r, ok := l.reservations[reservationID]
	if !ok {
		return fmt.Errorf("%w: reservation %d", ErrReservationNotFound, reservationID)
	}
	if !r.active {
		return fmt.Errorf("%w: reservation %d", ErrReservationSettled, reservationID)
	}
	r.active = false
	if l.balances[r.account] >= r.amount {
		l.balances[r.account] -= r.amount
	} else {
		l.balances[r.account] = 0
	}
	return nil
}

func (l *InMemoryCreditLedger) Credit(account PublicKeyBytes, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[account] += amount
	return nil
}

// NetworkBackend is the connection/listen/broadcast surface a sandbox's
// network_* host calls operate against.
type NetworkBackend interface {
	Connect(address string) (connectionID uint64, err error)
	Listen(port uint16) (listenerID uint64, err error)
	Broadcast(message []byte) (peersReached int, err error)
}

// MockNetworkBackend is a NetworkBackend reference implementation with no
// real sockets, suitable for tests and for Spirits whose manifests declare
// network capabilities but run in an isolated evaluation context.
type MockNetworkBackend struct {
	mu           sync.Mutex
	nextConnID   uint64
	nextListenID uint64
	connections  map[uint64]string
	listeners    map[uint64]uint16
	broadcasts   [][]byte
}

// NewMockNetworkBackend returns a backend with no connections or listeners.
func NewMockNetworkBackend() *MockNetworkBackend {
	return &MockNetworkBackend{
		nextConnID:   1,
		nextListenID: 1,
		connections:  make(map[uint64]string),
		listeners:    make(map[uint64]uint16),
	}
}

func (m *MockNetworkBackend) Connect(address string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextConnID
	m.nextConnID++
	m.connections[id] = address
	return id, nil
}

func (m *MockNetworkBackend) Listen(port uint16) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.nextListenID
	m.nextListenID++
	m.listeners[id] = port
	return id, nil
}

func (m *MockNetworkBackend) Broadcast(message []byte) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored := make([]byte, len(message))
	copy(stored, message)
	m.broadcasts = append(m.broadcasts, stored)
	return len(m.connections), nil
}

// NetHTTPBackend is a real NetworkBackend backed by gorilla/mux HTTP
// listeners — the reference implementation for sandboxes whose embedder
// actually wants network_listen to bind a socket.
type NetHTTPBackend struct {
	mu         sync.Mutex
	log        *logrus.Logger
	nextID     uint64
	nextConnID uint64
	servers    map[uint64]*http.Server
	peers      map[uint64]struct{}
}

// NewNetHTTPBackend returns a backend whose listeners are served by
// gorilla/mux routers.
func NewNetHTTPBackend(log *logrus.Logger) *NetHTTPBackend {
	if log == nil {
		log = logrus.New()
		log.SetOutput(discardWriter{})
	}
	return &NetHTTPBackend{
		log:        log,
		nextID:     1,
		nextConnID: 1,
		servers:    make(map[uint64]*http.Server),
		peers:      make(map[uint64]struct{}),
	}
}

func (n *NetHTTPBackend) Connect(address string) (uint64, error) {
	if _, err := net.ResolveTCPAddr("tcp", address); err != nil {
		return 0, fmt.Errorf("network backend: resolve %q: %w", address, err)
	}
	n.mu.Lock()
	defer n.mu.Unlock()
	id := n.nextConnID
	n.nextConnID++
	n.peers[id] = struct{}{}
	return id, nil
}

func (n *NetHTTPBackend) Listen(port uint16) (uint64, error) {
	router := mux.NewRouter()
	router.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	ln, err := net.Listen("tcp", fmt.Sprintf(":%d", port))
	if err != nil {
		return 0, fmt.Errorf("network backend: listen on port %d: %w", port, err)
	}

	srv := &http.Server{Handler: router}
	n.mu.Lock()
	id := n.nextID
	n.nextID++
	n.servers[id] = srv
	n.mu.Unlock()

	go func() {
		if err := srv.Serve(ln); err != nil && err != http.ErrServerClosed {
			n.log.WithError(err).Warn("spiritcore: network listener stopped")
		}
	}()

	return id, nil
}

func (n *NetHTTPBackend) Broadcast(message []byte) (int, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.peers), nil
}

// Shutdown stops every listener the backend has started.
func (n *NetHTTPBackend) Shutdown() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, srv := range n.servers {
		_ = srv.Close()
	}
}
