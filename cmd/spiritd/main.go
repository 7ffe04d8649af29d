// Command spiritd runs an HTTP front end over the sandbox runtime: it
// accepts WASM modules, spawns sandboxes against them, and invokes exported
// functions on request.
package main

import (
	"encoding/base64"
	"encoding/json"
	"net/http"
	"os"
	"sync"

	"github.com/gorilla/mux"
	log "github.com/sirupsen/logrus"

	"spiritvm/pkg/config"
	"spiritvm/spiritcore"
)

type server struct {
	mu       sync.Mutex
	sandboxes map[spiritcore.SandboxID]*spiritcore.Sandbox
	storage  spiritcore.StorageBackend
	credit   spiritcore.CreditBackend
	network  spiritcore.NetworkBackend
	limits   spiritcore.ResourceLimits
	nextNonce uint64
}

func newServer(limits spiritcore.ResourceLimits) *server {
	return &server{
		sandboxes: make(map[spiritcore.SandboxID]*spiritcore.Sandbox),
		storage:   spiritcore.NewInMemoryStorage(),
		credit:    spiritcore.NewInMemoryCreditLedger(),
		network:   spiritcore.NewMockNetworkBackend(),
		limits:    limits,
	}
}

type spawnRequest struct {
	Owner        string   `json:"owner"`          // hex-encoded Ed25519 public key
	CodeBase64   string   `json:"code_base64"`
	Capabilities []string `json:"capabilities"`
}

type spawnResponse struct {
	SandboxID string `json:"sandbox_id"`
}

func (s *server) handleSpawn(w http.ResponseWriter, r *http.Request) {
	var req spawnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	owner, err := spiritcore.DecodePublicKey(req.Owner)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	code, err := base64.StdEncoding.DecodeString(req.CodeBase64)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	var ownerBytes spiritcore.PublicKeyBytes
	copy(ownerBytes[:], owner)

	s.mu.Lock()
	nonce := s.nextNonce
	s.nextNonce++
	s.mu.Unlock()
	id := spiritcore.DeriveSandboxID(ownerBytes, nonce)

	sb, err := spiritcore.New(id, spiritcore.SandboxConfig{
		Owner:   ownerBytes,
		Code:    code,
		Limits:  s.limits,
		Caps:    spiritcore.CapabilitySetFromGrants(nil),
		Storage: s.storage,
		Credit:  s.credit,
		Network: s.network,
	})
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := sb.Initialize(); err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	s.mu.Lock()
	s.sandboxes[id] = sb
	s.mu.Unlock()

	writeJSON(w, spawnResponse{SandboxID: id.String()})
}

type invokeRequest struct {
	Function string `json:"function"`
}

func (s *server) handleInvoke(w http.ResponseWriter, r *http.Request) {
	idHex := mux.Vars(r)["id"]
	sb, ok := s.lookup(idHex)
	if !ok {
		http.Error(w, "sandbox not found", http.StatusNotFound)
		return
	}

	var req invokeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	result, err := sb.Invoke(r.Context(), req.Function)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	writeJSON(w, result)
}

func (s *server) handleStatus(w http.ResponseWriter, r *http.Request) {
	idHex := mux.Vars(r)["id"]
	sb, ok := s.lookup(idHex)
	if !ok {
		http.Error(w, "sandbox not found", http.StatusNotFound)
		return
	}
	writeJSON(w, map[string]interface{}{
		"state":   sb.GetState().String(),
		"metrics": sb.Metrics(),
		"fuel":    sb.FuelRemaining(),
	})
}

func (s *server) lookup(idHex string) (*spiritcore.Sandbox, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, sb := range s.sandboxes {
		if id.String() == idHex {
			return sb, true
		}
	}
	return nil, false
}

func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

func main() {
	limits := spiritcore.DefaultResourceLimits()
	if cfg, err := config.LoadFromEnv(); err != nil {
		log.WithError(err).Warn("spiritd: using built-in defaults, config could not be loaded")
	} else {
		limits = cfg.ResourceLimits()
	}

	srv := newServer(limits)

	router := mux.NewRouter()
	router.HandleFunc("/sandboxes", srv.handleSpawn).Methods(http.MethodPost)
	router.HandleFunc("/sandboxes/{id}/invoke", srv.handleInvoke).Methods(http.MethodPost)
	router.HandleFunc("/sandboxes/{id}", srv.handleStatus).Methods(http.MethodGet)

	addr := os.Getenv("SPIRIT_LISTEN_ADDR")
	if addr == "" {
		addr = ":8089"
	}
	log.WithField("addr", addr).Info("spiritd: listening")
	if err := http.ListenAndServe(addr, router); err != nil {
		log.WithError(err).Fatal("spiritd: server exited")
	}
}
