package http

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/proofwatch/proofwatch/core"
	"github.com/proofwatch/proofwatch/service"
)

const serviceVersion = "1.2.0"

// RelayHandlers contains HTTP handlers for the mint relay endpoints.
type RelayHandlers struct {
	mintService *service.MintService
}

// NewRelayHandlers creates relay handlers.
func NewRelayHandlers(mintService *service.MintService) *RelayHandlers {
	return &RelayHandlers{mintService: mintService}
}

// Root serves service metadata.
func (h *RelayHandlers) Root(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"name":    "proofwatch-relay",
		"version": serviceVersion,
		"status":  "running",
		"endpoints": gin.H{
			"health": "GET /health",
			"mint":   "POST /api/mint",
			"deploy": "GET /api/deploy/:hash",
			"bridge": "GET /ws",
		},
		"contractHash": h.mintService.ContractHash(),
		"chainName":    h.mintService.ChainName(),
		"publicKey":    h.mintService.SignerPublicKey(),
	})
}

// Health serves the liveness probe.
func (h *RelayHandlers) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "ok",
		"publicKey": h.mintService.SignerPublicKey(),
	})
}

// Mint handles a mint request.
func (h *RelayHandlers) Mint(c *gin.Context) {
	var req core.MintRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error":   "Missing required fields: toPublicKey, kind, uri, name",
		})
		return
	}

	idemKey := strings.TrimSpace(c.GetHeader("Idempotency-Key"))

	deployHash, err := h.mintService.Mint(c.Request.Context(), req, idemKey)
	if err != nil {
		status := http.StatusInternalServerError
		msg := err.Error()

		switch {
		case errors.Is(err, core.ErrValidation):
			status = http.StatusBadRequest
			msg = "Missing required fields: toPublicKey, kind, uri, name"
		case errors.Is(err, core.ErrKeyFormat):
			status = http.StatusBadRequest
		}

		c.JSON(status, gin.H{"success": false, "error": msg})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":    true,
		"deployHash": deployHash,
		"message":    "Mint deploy submitted",
	})
}

// DeployStatus handles a deploy status lookup.
func (h *RelayHandlers) DeployStatus(c *gin.Context) {
	hash := c.Param("hash")

	status, err := h.mintService.Status(c.Request.Context(), hash)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"success": false, "error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"success": true, "deploy": status})
}
