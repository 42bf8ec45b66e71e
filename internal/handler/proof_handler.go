package handler

import (
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/ukm-attendance-api/pkg/errors"
	"github.com/noah-isme/ukm-attendance-api/pkg/response"
)

type proofResolver interface {
	Resolve(token string) (string, error)
}

// ProofHandler redeems signed proof links issued by the local storage driver.
type ProofHandler struct {
	resolver proofResolver
}

// NewProofHandler constructs handler.
func NewProofHandler(resolver proofResolver) *ProofHandler {
	return &ProofHandler{resolver: resolver}
}

// Download godoc
// @Summary Download a proof file via signed token
// @Tags Attendance
// @Produce octet-stream
// @Param token query string true "Signed token"
// @Success 200 {file} binary
// @Failure 403 {object} response.Envelope
// @Router /proofs/download [get]
func (h *ProofHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if strings.TrimSpace(token) == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "token is required"))
		return
	}
	path, err := h.resolver.Resolve(token)
	if err != nil {
		response.Error(c, appErrors.Clone(appErrors.ErrForbidden, "invalid or expired token"))
		return
	}
	c.FileAttachment(path, filepath.Base(path))
}
