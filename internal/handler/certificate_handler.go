package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/coursehub/coursehub-api/internal/service"
	appErrors "github.com/coursehub/coursehub-api/pkg/errors"
	"github.com/coursehub/coursehub-api/pkg/response"
)

// CertificateHandler exposes certificate issuance, verification and
// download endpoints.
type CertificateHandler struct {
	certificates *service.CertificateService
}

// NewCertificateHandler constructs CertificateHandler.
func NewCertificateHandler(certificates *service.CertificateService) *CertificateHandler {
	return &CertificateHandler{certificates: certificates}
}

// Issue godoc
// @Summary Issue a certificate for a completed course
// @Tags Certificates
// @Produce json
// @Param id path string true "Course ID"
// @Security BearerAuth
// @Success 201 {object} response.Envelope
// @Router /courses/{id}/certificate [post]
func (h *CertificateHandler) Issue(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	certificate, err := h.certificates.Issue(c.Request.Context(), claims.UserID, c.Param("id"), claims.Username)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, certificate)
}

// ListMine godoc
// @Summary List the current student's certificates
// @Tags Certificates
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /certificates [get]
func (h *CertificateHandler) ListMine(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	certificates, err := h.certificates.ListByStudent(c.Request.Context(), claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, certificates, nil)
}

// Verify godoc
// @Summary Verify a certificate by its public code
// @Tags Certificates
// @Produce json
// @Param code path string true "Verification code"
// @Success 200 {object} response.Envelope
// @Router /certificates/verify/{code} [get]
func (h *CertificateHandler) Verify(c *gin.Context) {
	certificate, err := h.certificates.VerifyByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, certificate, nil)
}

type verifyCertificateRequest struct {
	Notes string `json:"notes" binding:"max=500"`
}

// MarkVerified godoc
// @Summary Record an instructor verification of a certificate
// @Tags Certificates
// @Accept json
// @Produce json
// @Param id path string true "Certificate ID"
// @Param payload body verifyCertificateRequest false "Verification notes"
// @Security BearerAuth
// @Success 204
// @Router /certificates/{id}/verify [put]
func (h *CertificateHandler) MarkVerified(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	var req verifyCertificateRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
			return
		}
	}
	if err := h.certificates.MarkVerified(c.Request.Context(), c.Param("id"), req.Notes, claims); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// SignedURL godoc
// @Summary Get a short-lived download token for a certificate PDF
// @Tags Certificates
// @Produce json
// @Param id path string true "Certificate ID"
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /certificates/{id}/download [get]
func (h *CertificateHandler) SignedURL(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	download, err := h.certificates.SignedURL(c.Request.Context(), c.Param("id"), claims)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, download, nil)
}

// Download godoc
// @Summary Stream a certificate PDF using a signed token
// @Tags Certificates
// @Produce application/pdf
// @Param token query string true "Signed download token"
// @Success 200 {file} binary
// @Router /certificates/download [get]
func (h *CertificateHandler) Download(c *gin.Context) {
	token := c.Query("token")
	if token == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrValidation, "download token required"))
		return
	}
	file, filename, err := h.certificates.OpenDownload(token)
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close()

	headers := map[string]string{
		"Content-Disposition": fmt.Sprintf("attachment; filename=%q", filename),
	}
	c.DataFromReader(http.StatusOK, -1, "application/pdf", file, headers)
}
