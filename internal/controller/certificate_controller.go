package controller

import (
	"examhub_backend/internal/service"
	"examhub_backend/internal/util"

	"github.com/gin-gonic/gin"
)

type CertificateController struct {
	OutcomeService *service.OutcomeService
}

func NewCertificateController(outcomeService *service.OutcomeService) *CertificateController {
	return &CertificateController{OutcomeService: outcomeService}
}

// @Summary Verify a certificate by its public code
// @Tags certificates
// @Produce json
// @Param code path string true "Verification code"
// @Success 200 {object} util.Response
// @Router /certificates/verify/{code} [get]
func (c *CertificateController) Verify(ctx *gin.Context) {
	code := ctx.Param("code")
	if code == "" {
		util.BadRequest(ctx, "verification code required")
		return
	}

	verification, err := c.OutcomeService.VerifyCertificate(code)
	if err != nil {
		util.DomainError(ctx, err)
		return
	}

	util.Success(ctx, verification)
}

// @Summary List the authenticated user's certificates
// @Tags certificates
// @Produce json
// @Security ApiKeyAuth
// @Success 200 {object} util.Response
// @Router /users/me/certificates [get]
func (c *CertificateController) ListMine(ctx *gin.Context) {
	user := util.GetUserFromContext(ctx)
	if user == nil {
		util.Unauthorized(ctx)
		return
	}

	certs, err := c.OutcomeService.ListUserCertificates(user.UserID)
	if err != nil {
		util.DomainError(ctx, err)
		return
	}

	util.Success(ctx, certs)
}
