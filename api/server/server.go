package server

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dominikbraun/graph"
	"github.com/gorilla/mux"
	"github.com/lunfardo314/tangle/api"
	"github.com/lunfardo314/tangle/core/memdag"
	"github.com/lunfardo314/tangle/core/vertex"
	"github.com/lunfardo314/tangle/global"
	"github.com/lunfardo314/tangle/ledger"
	"github.com/lunfardo314/tangle/store"
	"github.com/lunfardo314/tangle/util"
	"github.com/prometheus/client_golang/prometheus"
)

type (
	environment interface {
		global.NodeGlobal
		Info() *api.NodeInfo
		GetVertex(h ledger.Hash) *vertex.WrappedTx
		Balance(addr ledger.Address) uint64
		LedgerIndex() ledger.MilestoneIndex
		MilestoneRecord(idx ledger.MilestoneIndex) (*store.MilestoneRecord, bool, error)
		Tips() []*vertex.WrappedTx
		SubmitTransactionBytes(ctx context.Context, txBytes []byte) (*vertex.WrappedTx, error)
		MakeGraphPastCone(vid *vertex.WrappedTx, maxVertices ...int) graph.Graph[string, string]
	}

	server struct {
		*http.Server
		environment
		router  *mux.Router
		metrics metrics
	}

	metrics struct {
		totalRequests prometheus.Counter
		errorRequests prometheus.Counter
	}
)

const (
	TraceTag = "apiServer"

	submitTimeout   = 10 * time.Second
	maxSubmitBody   = 1 << 17
	defaultDOTLimit = 500
)

func newServer(env environment) *server {
	srv := &server{
		environment: env,
		router:      mux.NewRouter(),
	}
	srv.registerMetrics()
	srv.registerHandlers()
	return srv
}

func (srv *server) registerHandlers() {
	srv.router.Use(srv.countRequests)

	r := srv.router.PathPrefix(api.PrefixAPIV1).Subrouter()
	r.HandleFunc("/info", srv.getInfo).Methods(http.MethodGet)
	r.HandleFunc("/vertex/{hash}", srv.getVertex).Methods(http.MethodGet)
	r.HandleFunc("/balance/{address}", srv.getBalance).Methods(http.MethodGet)
	r.HandleFunc("/milestone/{index}", srv.getMilestone).Methods(http.MethodGet)
	r.HandleFunc("/tips", srv.getTips).Methods(http.MethodGet)
	r.HandleFunc("/submit", srv.submitTransaction).Methods(http.MethodPost)
	r.HandleFunc("/dot/{hash}", srv.getDOT).Methods(http.MethodGet)
}

func (srv *server) getInfo(w http.ResponseWriter, _ *http.Request) {
	setHeader(w)
	writeJSON(w, srv.Info())
}

func (srv *server) getVertex(w http.ResponseWriter, r *http.Request) {
	srv.Tracef(TraceTag, "getVertex invoked")
	setHeader(w)

	vid, ok := srv.vertexFromPath(w, r)
	if !ok {
		return
	}
	md := vid.Metadata()
	writeJSON(w, &api.Vertex{
		ID:                vid.ID.String(),
		Trunk:             vid.Trunk().String(),
		Branch:            vid.Branch().String(),
		PayloadType:       vid.Tx.Payload().Type().String(),
		Timestamp:         vid.Tx.Timestamp(),
		Status:            vid.Status().String(),
		Milestone:         md.Milestone,
		MilestoneIndex:    uint32(md.MilestoneIndex),
		ConfirmedBy:       uint32(md.ConfirmedBy),
		Conflicting:       md.Conflict == vertex.ConflictExcluded,
		YoungestMilestone: uint32(md.YoungestMilestone),
		TxBytes:           hex.EncodeToString(vid.Tx.Bytes()),
	})
}

func (srv *server) getBalance(w http.ResponseWriter, r *http.Request) {
	setHeader(w)

	addr, err := ledger.AddressFromHexString(mux.Vars(r)["address"])
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, &api.Balance{
		Address:     addr.String(),
		Balance:     srv.Balance(addr),
		LedgerIndex: uint32(srv.LedgerIndex()),
	})
}

func (srv *server) getMilestone(w http.ResponseWriter, r *http.Request) {
	setHeader(w)

	idx, err := strconv.ParseUint(mux.Vars(r)["index"], 10, 32)
	if err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Sprintf("wrong milestone index: %v", err))
		return
	}
	rec, found, err := srv.MilestoneRecord(ledger.MilestoneIndex(idx))
	if err != nil {
		writeErr(w, statusFromError(err), err.Error())
		return
	}
	if !found {
		writeErr(w, http.StatusNotFound, fmt.Sprintf("milestone #%d has not been applied", idx))
		return
	}
	writeJSON(w, &api.Milestone{
		Index:               uint32(rec.Index),
		ID:                  rec.ID.String(),
		Timestamp:           rec.Timestamp,
		ConfirmedMerkleRoot: rec.ConfirmedMerkleRoot.String(),
		AppliedMerkleRoot:   rec.AppliedMerkleRoot.String(),
		NumReferenced:       rec.NumReferenced,
		NumApplied:          rec.NumApplied,
		NumConflicting:      rec.NumConflicting,
	})
}

func (srv *server) getTips(w http.ResponseWriter, _ *http.Request) {
	setHeader(w)

	tips := srv.Tips()
	resp := &api.Tips{Tips: make([]string, 0, len(tips))}
	for _, vid := range tips {
		resp.Tips = append(resp.Tips, vid.ID.String())
	}
	writeJSON(w, resp)
}

func (srv *server) submitTransaction(w http.ResponseWriter, r *http.Request) {
	srv.Tracef(TraceTag, "submitTransaction invoked")
	setHeader(w)

	body, err := io.ReadAll(io.LimitReader(r.Body, maxSubmitBody))
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return
	}
	txBytes, err := hex.DecodeString(strings.TrimSpace(string(body)))
	if err != nil {
		writeErr(w, http.StatusBadRequest, fmt.Sprintf("hex-encoded transaction bytes expected: %v", err))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), submitTimeout)
	defer cancel()

	vid, err := srv.SubmitTransactionBytes(ctx, txBytes)
	if err != nil {
		writeErr(w, statusFromError(err), err.Error())
		return
	}
	srv.Tracef(TraceTag, "submitted transaction %s", vid.IDShortString)

	writeJSON(w, &api.Submitted{
		ID:     vid.ID.String(),
		Status: vid.Status().String(),
	})
}

func (srv *server) getDOT(w http.ResponseWriter, r *http.Request) {
	vid, ok := srv.vertexFromPath(w, r)
	if !ok {
		return
	}
	limit := defaultDOTLimit
	if lst, ok := r.URL.Query()["max"]; ok && len(lst) == 1 {
		n, err := strconv.Atoi(lst[0])
		if err != nil || n < 1 {
			writeErr(w, http.StatusBadRequest, "parameter 'max' must be a positive integer")
			return
		}
		limit = n
	}
	w.Header().Set("Content-Type", "text/vnd.graphviz")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	err := memdag.WriteDOT(srv.MakeGraphPastCone(vid, limit), w)
	srv.AssertNoError(err)
}

func (srv *server) vertexFromPath(w http.ResponseWriter, r *http.Request) (*vertex.WrappedTx, bool) {
	h, err := ledger.HashFromHexString(mux.Vars(r)["hash"])
	if err != nil {
		writeErr(w, http.StatusBadRequest, err.Error())
		return nil, false
	}
	vid := srv.GetVertex(h)
	if vid == nil {
		writeErr(w, http.StatusNotFound, fmt.Sprintf("vertex %s not found", h.StringShort()))
		return nil, false
	}
	return vid, true
}

// statusFromError maps error taxonomy to coarse HTTP categories
func statusFromError(err error) int {
	switch {
	case errors.Is(err, ledger.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, ledger.ErrValidation):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

func writeJSON(w http.ResponseWriter, resp any) {
	respBin, err := json.MarshalIndent(resp, "", "  ")
	if err != nil {
		writeErr(w, http.StatusInternalServerError, err.Error())
		return
	}
	_, err = w.Write(respBin)
	util.AssertNoError(err)
}

func writeErr(w http.ResponseWriter, status int, errStr string) {
	respBytes, err := json.Marshal(&api.Error{Error: errStr})
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(status)
	_, err = w.Write(respBytes)
	util.AssertNoError(err)
}

func setHeader(w http.ResponseWriter) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Access-Control-Allow-Origin", "*")
}

// Run blocks until the server is closed or the node context is done
func Run(addr string, env environment) {
	srv := newServer(env)
	srv.Server = &http.Server{
		Addr:         addr,
		Handler:      srv.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 2 * submitTimeout,
		IdleTimeout:  10 * time.Second,
	}
	go func() {
		<-env.Ctx().Done()
		_ = srv.Close()
	}()

	err := srv.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return
	}
	util.AssertNoError(err)
}

func (srv *server) registerMetrics() {
	srv.metrics.totalRequests = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tangle_api_totalRequests",
		Help: "total API requests",
	})
	srv.metrics.errorRequests = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "tangle_api_errorRequests",
		Help: "API requests answered with an error status",
	})
	srv.MetricsRegistry().MustRegister(srv.metrics.totalRequests, srv.metrics.errorRequests)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func (srv *server) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)
		srv.metrics.totalRequests.Inc()
		if rec.status >= http.StatusBadRequest {
			srv.metrics.errorRequests.Inc()
		}
	})
}
