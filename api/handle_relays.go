package api

import (
	"net/http"
	"strconv"

	"github.com/soficola/bridge-relay/database/models"
)

func (s *Server) handleRelaysGet(w http.ResponseWriter, r *http.Request) {
	// Get query parameters
	page, err := strconv.ParseInt(r.URL.Query().Get("page"), 10, 64)
	if err != nil || page < 1 {
		page = 1
	}

	pageSize, err := strconv.ParseInt(r.URL.Query().Get("pageSize"), 10, 64)
	if err != nil || pageSize < 1 {
		pageSize = 10
	}

	// Build filter from query parameters
	filter := models.Filter{
		Status:    r.URL.Query().Get("status"),
		Sender:    r.URL.Query().Get("sender"),
		Recipient: r.URL.Query().Get("recipient"),
		TxHash:    r.URL.Query().Get("txHash"),
	}

	result, err := s.store.GetRelays(r.Context(), filter, page, pageSize)
	if err != nil {
		ERROR(w, http.StatusInternalServerError, err)
		return
	}

	JSON(w, http.StatusOK, result)
}

func (s *Server) handleStatusGet(w http.ResponseWriter, r *http.Request) {
	lastScanned, err := s.store.GetLastScannedBlock(r.Context(), s.opts.Chain)
	if err != nil {
		ERROR(w, http.StatusInternalServerError, err)
		return
	}

	JSON(w, http.StatusOK, map[string]interface{}{
		"chain":              s.opts.Chain,
		"last_scanned_block": lastScanned,
	})
}
