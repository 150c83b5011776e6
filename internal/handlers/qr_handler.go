package handlers

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/ruralpay/banksim/internal/services"
)

type QRHandler struct {
	service *services.QRService
}

func NewQRHandler(service *services.QRService) *QRHandler {
	return &QRHandler{
		service: service,
	}
}

// AccountQR renders a QR code payers can scan to transfer into the account
// @Summary Account QR Code
// @Description PNG QR code encoding the account number and holder name
// @Tags QR
// @Produce png
// @Param accountNumber path string true "Account number"
// @Success 200 {file} binary
// @Failure 404 {object} services.ErrorResponse
// @Failure 409 {object} services.ErrorResponse
// @Router /accounts/{accountNumber}/qr [get]
func (h *QRHandler) AccountQR(w http.ResponseWriter, r *http.Request) {
	image, err := h.service.AccountQR(r.Context(), chi.URLParam(r, "accountNumber"))
	if err != nil {
		services.WriteError(w, err)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Content-Length", strconv.Itoa(len(image)))
	w.WriteHeader(http.StatusOK)
	w.Write(image)
}
