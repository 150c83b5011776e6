package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/ruralpay/banksim/internal/services"
)

type ExportHandler struct {
	service *services.ISO20022Service
}

func NewExportHandler(service *services.ISO20022Service) *ExportHandler {
	return &ExportHandler{
		service: service,
	}
}

// Routes mounts the export endpoints under /api/transactions.
func (h *ExportHandler) Routes(r chi.Router) {
	r.Get("/{txId}/pacs008", h.Pacs008)
	r.Get("/{txId}/pacs002", h.Pacs002)
}

// Pacs008 exports a transfer as an ISO 20022 credit transfer
// @Summary Export pacs.008
// @Description Render a TRANSFER transaction as pacs.008.001.08 XML
// @Tags iso20022
// @Produce xml
// @Param txId path string true "Transaction ID"
// @Success 200 {string} string
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /transactions/{txId}/pacs008 [get]
func (h *ExportHandler) Pacs008(w http.ResponseWriter, r *http.Request) {
	xmlData, err := h.service.ExportPacs008(r.Context(), chi.URLParam(r, "txId"))
	if err != nil {
		services.WriteError(w, err)
		return
	}
	writeXML(w, services.MessageTypePacs008, xmlData)
}

// Pacs002 exports the settlement status of a transfer
// @Summary Export pacs.002
// @Description Render a pacs.002.001.08 status report (ACSC) for a TRANSFER transaction
// @Tags iso20022
// @Produce xml
// @Param txId path string true "Transaction ID"
// @Success 200 {string} string
// @Failure 400 {object} services.ErrorResponse
// @Failure 404 {object} services.ErrorResponse
// @Router /transactions/{txId}/pacs002 [get]
func (h *ExportHandler) Pacs002(w http.ResponseWriter, r *http.Request) {
	xmlData, err := h.service.ExportPacs002(r.Context(), chi.URLParam(r, "txId"))
	if err != nil {
		services.WriteError(w, err)
		return
	}
	writeXML(w, services.MessageTypePacs002, xmlData)
}

func writeXML(w http.ResponseWriter, messageType, body string) {
	w.Header().Set("Content-Type", "application/xml")
	w.Header().Set("X-ISO20022-Message-Type", messageType)
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(body))
}
