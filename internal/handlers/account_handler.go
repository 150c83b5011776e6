package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/ruralpay/banksim/internal/models"
	"github.com/ruralpay/banksim/internal/services"
)

const maxBodyBytes = 1_048_576

type AccountHandler struct {
	accounts  *services.AccountService
	ledger    *services.LedgerService
	validator *services.ValidationHelper
}

func NewAccountHandler(accounts *services.AccountService, ledger *services.LedgerService) *AccountHandler {
	return &AccountHandler{
		accounts:  accounts,
		ledger:    ledger,
		validator: services.NewValidationHelper(),
	}
}

// Routes mounts the account endpoints under the current router, normally /api/accounts.
// The single path segment is a holder name for POST and an account number otherwise.
// extra registers further per-account routes such as the QR code.
func (h *AccountHandler) Routes(r chi.Router, extra ...func(chi.Router)) {
	r.Post("/", h.CreateAccount)
	r.Route("/{accountNumber}", func(r chi.Router) {
		r.Post("/", h.CreateAccountByName)
		r.Get("/", h.GetAccount)
		r.Delete("/", h.DeleteAccount)
		r.Put("/close", h.CloseAccount)
		r.Post("/deposit", h.Deposit)
		r.Post("/withdraw", h.Withdraw)
		r.Post("/transfer/{to}", h.Transfer)
		r.Get("/transactions", h.ListTransactions)
		for _, register := range extra {
			register(r)
		}
	})
}

// CreateAccount opens an account from a JSON body
// @Summary Create account
// @Description Open an ACTIVE account with a zero balance
// @Tags accounts
// @Accept json
// @Produce json
// @Param request body models.CreateAccountRequest true "Account holder"
// @Success 201 {object} models.Account
// @Failure 400 {object} services.ErrorResponse
// @Router /accounts [post]
func (h *AccountHandler) CreateAccount(w http.ResponseWriter, r *http.Request) {
	var req models.CreateAccountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "account holder name must not be null", http.StatusBadRequest, err)
		return
	}

	h.create(w, r, req.Name)
}

// CreateAccountByName opens an account using the path segment as holder name
// @Summary Create account by name
// @Tags accounts
// @Produce json
// @Param accountNumber path string true "Account holder name"
// @Success 201 {object} models.Account
// @Failure 400 {object} services.ErrorResponse
// @Router /accounts/{accountNumber} [post]
func (h *AccountHandler) CreateAccountByName(w http.ResponseWriter, r *http.Request) {
	h.create(w, r, chi.URLParam(r, "accountNumber"))
}

func (h *AccountHandler) create(w http.ResponseWriter, r *http.Request, name string) {
	acc, err := h.accounts.CreateAccount(r.Context(), name)
	if err != nil {
		services.WriteError(w, err)
		return
	}

	w.Header().Set("Location", "/api/accounts/"+acc.AccountNumber)
	writeJSON(w, http.StatusCreated, acc)
}

// GetAccount returns one account
// @Summary Get account
// @Tags accounts
// @Produce json
// @Param accountNumber path string true "Account number"
// @Success 200 {object} models.Account
// @Failure 404 {object} services.ErrorResponse
// @Router /accounts/{accountNumber} [get]
func (h *AccountHandler) GetAccount(w http.ResponseWriter, r *http.Request) {
	acc, err := h.accounts.GetAccount(r.Context(), chi.URLParam(r, "accountNumber"))
	if err != nil {
		services.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

// DeleteAccount removes an account and its transactions
// @Summary Delete account
// @Tags accounts
// @Param accountNumber path string true "Account number"
// @Success 204
// @Failure 404 {object} services.ErrorResponse
// @Router /accounts/{accountNumber} [delete]
func (h *AccountHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	if err := h.accounts.DeleteAccount(r.Context(), chi.URLParam(r, "accountNumber")); err != nil {
		services.WriteError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CloseAccount marks a zero-balance account INACTIVE
// @Summary Close account
// @Tags accounts
// @Produce json
// @Param accountNumber path string true "Account number"
// @Success 200 {object} models.Account
// @Failure 404 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /accounts/{accountNumber}/close [put]
func (h *AccountHandler) CloseAccount(w http.ResponseWriter, r *http.Request) {
	acc, err := h.accounts.CloseAccount(r.Context(), chi.URLParam(r, "accountNumber"))
	if err != nil {
		services.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, acc)
}

// Deposit credits an account
// @Summary Deposit
// @Tags ledger
// @Accept json
// @Produce json
// @Param accountNumber path string true "Account number"
// @Param amount query int false "Amount in minor units, takes precedence over the body"
// @Param request body models.AmountRequest false "Amount"
// @Success 200 {object} models.Transaction
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /accounts/{accountNumber}/deposit [post]
func (h *AccountHandler) Deposit(w http.ResponseWriter, r *http.Request) {
	amount, ok := h.amount(w, r)
	if !ok {
		return
	}

	tx, err := h.ledger.Deposit(r.Context(), chi.URLParam(r, "accountNumber"), amount)
	if err != nil {
		services.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

// Withdraw debits an account
// @Summary Withdraw
// @Tags ledger
// @Accept json
// @Produce json
// @Param accountNumber path string true "Account number"
// @Param amount query int false "Amount in minor units, takes precedence over the body"
// @Param request body models.AmountRequest false "Amount"
// @Success 200 {object} models.Transaction
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Failure 422 {object} services.ErrorResponse
// @Router /accounts/{accountNumber}/withdraw [post]
func (h *AccountHandler) Withdraw(w http.ResponseWriter, r *http.Request) {
	amount, ok := h.amount(w, r)
	if !ok {
		return
	}

	tx, err := h.ledger.Withdraw(r.Context(), chi.URLParam(r, "accountNumber"), amount)
	if err != nil {
		services.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

// Transfer moves funds between two accounts
// @Summary Transfer
// @Tags ledger
// @Accept json
// @Produce json
// @Param accountNumber path string true "Source account number"
// @Param to path string true "Destination account number"
// @Param amount query int false "Amount in minor units, takes precedence over the body"
// @Param request body models.AmountRequest false "Amount"
// @Success 200 {object} models.Transaction
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Failure 422 {object} services.ErrorResponse
// @Router /accounts/{accountNumber}/transfer/{to} [post]
func (h *AccountHandler) Transfer(w http.ResponseWriter, r *http.Request) {
	amount, ok := h.amount(w, r)
	if !ok {
		return
	}

	tx, err := h.ledger.Transfer(r.Context(), chi.URLParam(r, "accountNumber"), chi.URLParam(r, "to"), amount)
	if err != nil {
		services.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, tx)
}

// ListTransactions returns the account's transactions in write order
// @Summary List transactions
// @Tags ledger
// @Produce json
// @Param accountNumber path string true "Account number"
// @Success 200 {array} models.Transaction
// @Failure 404 {object} services.ErrorResponse
// @Router /accounts/{accountNumber}/transactions [get]
func (h *AccountHandler) ListTransactions(w http.ResponseWriter, r *http.Request) {
	txs, err := h.accounts.ListTransactions(r.Context(), chi.URLParam(r, "accountNumber"))
	if err != nil {
		services.WriteError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, txs)
}

// amount reads ?amount= first and falls back to a JSON body. Range checks on
// the query value are left to the ledger so both paths report the same error.
func (h *AccountHandler) amount(w http.ResponseWriter, r *http.Request) (int64, bool) {
	if raw := r.URL.Query().Get("amount"); raw != "" {
		amount, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			services.SendErrorResponse(w, "amount must be an integer", http.StatusBadRequest, nil)
			return 0, false
		}
		return amount, true
	}

	var req models.AmountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		if errors.Is(err, io.EOF) {
			services.SendErrorResponse(w, "amount is required", http.StatusBadRequest, nil)
			return 0, false
		}
		services.SendErrorResponse(w, "Invalid request body", http.StatusBadRequest, nil)
		return 0, false
	}

	if err := h.validator.ValidateStruct(&req); err != nil {
		services.SendErrorResponse(w, "amount must be positive", http.StatusBadRequest, err)
		return 0, false
	}
	return req.Amount, true
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("request body must only contain a single JSON object")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
