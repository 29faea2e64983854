package core

// The HTTP surface the node hands to the RPC collaborator. Only the
// methods the core itself guarantees live here; the full JSON-RPC and
// subscription machinery is a separate service.

import (
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	log "github.com/sirupsen/logrus"
)

type RPCServer struct {
	mempool *Mempool
	store   *Store
	engine  *Engine
	logger  *log.Logger
	version string
}

func NewRPCServer(mempool *Mempool, store *Store, version string, lg *log.Logger) *RPCServer {
	if lg == nil {
		lg = log.StandardLogger()
	}
	return &RPCServer{mempool: mempool, store: store, logger: lg, version: version}
}

// AttachEngine enables the execution route.
func (s *RPCServer) AttachEngine(engine *Engine) {
	s.engine = engine
}

// SendTransaction decodes a hex-encoded transaction envelope, checks the
// signature and hands it to the mempool.
func (s *RPCServer) SendTransaction(r *http.Request, txHex string) error {
	raw, err := hex.DecodeString(strings.TrimSpace(txHex))
	if err != nil {
		return ErrByteMismatch
	}
	tx, err := TransactionFromBytes(raw)
	if err != nil {
		return err
	}
	if !tx.IsSigned() {
		return ErrNotSigned
	}
	ok, err := tx.Verify()
	if err != nil {
		return err
	}
	if !ok {
		return ErrInvalidSignature
	}
	return s.mempool.AddItem(r.Context(), tx)
}

func (s *RPCServer) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Infof("%s %s %s", r.Method, r.RequestURI, time.Since(start))
	})
}

// Router assembles the HTTP routes.
func (s *RPCServer) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(s.requestLogger)

	r.Get("/version", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"version": s.version})
	})

	r.Post("/transaction", func(w http.ResponseWriter, req *http.Request) {
		body, err := io.ReadAll(io.LimitReader(req.Body, 1<<20))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := s.SendTransaction(req, string(body)); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "accepted"})
	})

	r.Post("/execute", func(w http.ResponseWriter, req *http.Request) {
		if s.engine == nil {
			http.Error(w, "no execution engine attached", http.StatusNotImplemented)
			return
		}
		body, err := io.ReadAll(io.LimitReader(req.Body, 1<<20))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		raw, err := hex.DecodeString(strings.TrimSpace(string(body)))
		if err != nil {
			http.Error(w, ErrByteMismatch.Error(), http.StatusBadRequest)
			return
		}
		tx, err := TransactionFromBytes(raw)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if !tx.IsSigned() {
			http.Error(w, ErrNotSigned.Error(), http.StatusBadRequest)
			return
		}
		if ok, err := tx.Verify(); err != nil || !ok {
			http.Error(w, ErrInvalidSignature.Error(), http.StatusBadRequest)
			return
		}
		signer, err := tx.SignerDA()
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		res, err := s.engine.Execute(signer, tx.Instructions, tx.ReservedGas)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{
			"status":   "executed",
			"used_gas": res.UsedGas.String(),
		})
	})

	r.Get("/node/{id}", func(w http.ResponseWriter, req *http.Request) {
		id := chi.URLParam(req, "id")
		node, ok := s.mempool.Node(id)
		if !ok {
			http.Error(w, "node not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{
			"id":         node.ID,
			"prev_nodes": node.PrevNodes,
			"references": node.References(),
			"instrs":     len(node.Instructions),
		})
	})

	r.Get("/account/{id}", func(w http.ResponseWriter, req *http.Request) {
		id := chi.URLParam(req, "id")
		info, err := s.accountInfo(id)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if info == nil {
			http.Error(w, "account not found", http.StatusNotFound)
			return
		}
		writeJSON(w, http.StatusOK, info)
	})

	r.Get("/checkpoint/{sig}", func(w http.ResponseWriter, req *http.Request) {
		sig, err := hex.DecodeString(chi.URLParam(req, "sig"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		nodes, err := s.mempool.Checkpoint(sig)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if nodes == nil {
			http.Error(w, "checkpoint not found", http.StatusNotFound)
			return
		}
		ids := make([]string, 0, len(nodes))
		for _, n := range nodes {
			ids = append(ids, n.ID)
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"nodes": ids})
	})

	return r
}

// accountInfo resolves a textual id against the contract, data-account
// and balance records, in that order. A nil result means nothing is
// stored under the id.
func (s *RPCServer) accountInfo(id string) (map[string]interface{}, error) {
	da, err := DisplayAddressFromString(id)
	if err != nil {
		return nil, err
	}

	if contract, err := s.store.GetContractAccount(da); err != nil {
		return nil, err
	} else if contract != nil {
		info := map[string]interface{}{
			"kind":        "contract",
			"id":          id,
			"binary_size": len(contract.ProgramBinary),
		}
		if contract.StateAccountID != nil {
			stateDA, err := DisplayAddressFromBytes(contract.StateAccountID[:])
			if err != nil {
				return nil, err
			}
			info["state_account"] = stateDA.String()
		}
		return info, nil
	}

	if data, err := s.store.GetDataAccount(id); err != nil {
		return nil, err
	} else if data != nil {
		owner, err := DisplayAddressFromBytes(data.Owner[:])
		if err != nil {
			return nil, err
		}
		updater, err := DisplayAddressFromBytes(data.Updater[:])
		if err != nil {
			return nil, err
		}
		return map[string]interface{}{
			"kind":      "data",
			"id":        id,
			"owner":     owner.String(),
			"updater":   updater.String(),
			"data_size": len(data.Data),
		}, nil
	}

	balance, err := s.store.Balance(da, NativeTokenDA())
	if err != nil {
		return nil, err
	}
	if balance.Sign() == 0 {
		return nil, nil
	}
	return map[string]interface{}{
		"kind":    "user",
		"id":      id,
		"balance": balance.String(),
	}, nil
}

// Serve blocks on the HTTP listener.
func (s *RPCServer) Serve(addr string) error {
	srv := &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  30 * time.Second,
	}
	s.logger.Infof("rpc listening on %s", addr)
	return srv.ListenAndServe()
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
