package handler

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/honeynil/UsersLedgerService/internal/infrastructure/observability"
	"github.com/honeynil/UsersLedgerService/internal/models"
	service "github.com/honeynil/UsersLedgerService/internal/services"
	pkgerrors "github.com/honeynil/UsersLedgerService/pkg/errors"
)

type Handler struct {
	service service.LedgerService
}

func NewHandler(s service.LedgerService) *Handler {
	return &Handler{service: s}
}

type errorResponse struct {
	Error string `json:"error"`
}

var kindStatus = map[pkgerrors.Kind]int{
	pkgerrors.KindInvalidArgument:    http.StatusBadRequest,
	pkgerrors.KindNotFound:           http.StatusNotFound,
	pkgerrors.KindPermissionDenied:   http.StatusForbidden,
	pkgerrors.KindFailedPrecondition: http.StatusConflict,
	pkgerrors.KindUnauthenticated:    http.StatusUnauthorized,
}

// writeError maps err to its status. Only internal errors are logged, and
// their detail is not sent to the caller.
func (h *Handler) writeError(w http.ResponseWriter, r *http.Request, err error) {
	kind := pkgerrors.KindOf(err)
	status, ok := kindStatus[kind]
	msg := err.Error()
	if !ok {
		status = http.StatusInternalServerError
		msg = pkgerrors.ErrInternal.Error()
		observability.LoggerFromContext(r.Context()).Error("request failed",
			"method", r.Method, "path", r.URL.Path, "error", err)
	}
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(body)
}

func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/accounts", h.CreateAccount).Methods(http.MethodPost)
	r.HandleFunc("/accounts", h.GetAllAccounts).Methods(http.MethodGet)
	r.HandleFunc("/accounts/top", h.GetTopAccounts).Methods(http.MethodGet)
	r.HandleFunc("/accounts/{id:[0-9]+}", h.GetAccount).Methods(http.MethodGet)
	r.HandleFunc("/accounts/{id:[0-9]+}/autobuy", h.ChangeAutoBuy).Methods(http.MethodPost)
	r.HandleFunc("/accounts/{id:[0-9]+}/role", h.ChangeRole).Methods(http.MethodPost)
	r.HandleFunc("/accounts/{id:[0-9]+}/farm", h.Farm).Methods(http.MethodPost)
	r.HandleFunc("/accounts/{id:[0-9]+}/transactions", h.GetTransactionHistory).Methods(http.MethodGet)
	r.HandleFunc("/transactions", h.SendTransaction).Methods(http.MethodPost)
	r.HandleFunc("/transactions", h.GetAllTransactions).Methods(http.MethodGet)
	r.HandleFunc("/transactions/{id:[0-9]+}", h.GetTransaction).Methods(http.MethodGet)
}

func pathID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: bad id %q", pkgerrors.ErrInvalidInput, mux.Vars(r)["id"])
	}
	return id, nil
}

func (h *Handler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	account, err := h.service.CreateAccount(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, account)
}

func (h *Handler) GetAllAccounts(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.service.GetAllAccounts(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, accounts)
}

func (h *Handler) GetTopAccounts(w http.ResponseWriter, r *http.Request) {
	currency := models.Currency(r.URL.Query().Get("currency"))
	if currency == "" {
		currency = models.CurrencyCredits
	}
	accounts, err := h.service.GetTopAccounts(r.Context(), currency)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, accounts)
}

func (h *Handler) GetAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	account, err := h.service.GetAccount(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func (h *Handler) ChangeAutoBuy(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	account, err := h.service.ChangeAutoBuy(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func (h *Handler) ChangeRole(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	var req struct {
		ActorID int64       `json:"actor_id"`
		Role    models.Role `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, fmt.Errorf("%w: %v", pkgerrors.ErrInvalidInput, err))
		return
	}

	account, err := h.service.ChangeRole(r.Context(), req.ActorID, id, req.Role)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, account)
}

func (h *Handler) Farm(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	tx, err := h.service.Farm(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

func (h *Handler) GetTransactionHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	history, err := h.service.GetTransactionHistory(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, history)
}

func (h *Handler) SendTransaction(w http.ResponseWriter, r *http.Request) {
	var req models.TransactionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, r, fmt.Errorf("%w: %v", pkgerrors.ErrInvalidInput, err))
		return
	}

	tx, err := h.service.SendTransaction(r.Context(), req)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, tx)
}

func (h *Handler) GetAllTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := h.service.GetAllTransactions(r.Context())
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

func (h *Handler) GetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	tx, err := h.service.GetTransaction(r.Context(), id)
	if err != nil {
		h.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}
