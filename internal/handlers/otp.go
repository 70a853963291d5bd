package handlers

import (
	"strings"

	"bankcore/internal/models"
	"bankcore/internal/services/verification"
	"bankcore/internal/utils"

	"github.com/gofiber/fiber/v2"
)

// OTPHandler issues and checks one-time codes for the authenticated subject.
type OTPHandler struct {
	verifier verification.Service
	notifier verification.Notifier
}

func NewOTPHandler(verifier verification.Service, notifier verification.Notifier) *OTPHandler {
	return &OTPHandler{verifier: verifier, notifier: notifier}
}

type otpRequest struct {
	Purpose models.Purpose `json:"purpose"`
	Code    string         `json:"code"`
}

func (r *otpRequest) purpose() (models.Purpose, bool) {
	p := models.Purpose(strings.ToLower(strings.TrimSpace(string(r.Purpose))))
	return p, p.Valid()
}

// Issue handles POST /otp/issue.
func (h *OTPHandler) Issue(c *fiber.Ctx) error {
	claims, err := utils.GetUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	var req otpRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.BadRequest(c, "invalid request")
	}
	purpose, ok := req.purpose()
	if !ok {
		return utils.BadRequest(c, "unknown purpose")
	}

	issued, err := h.verifier.IssueChallenge(c.Context(), claims.SubjectID, purpose, h.notifier)
	if err != nil {
		return handleError(c, err)
	}
	return utils.Created(c, issued)
}

// Verify handles POST /otp/verify.
func (h *OTPHandler) Verify(c *fiber.Ctx) error {
	claims, err := utils.GetUserClaims(c)
	if err != nil {
		return utils.Unauthorized(c, "invalid claims")
	}

	var req otpRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.BadRequest(c, "invalid request")
	}
	purpose, ok := req.purpose()
	if !ok {
		return utils.BadRequest(c, "unknown purpose")
	}

	if _, err := h.verifier.CheckChallenge(c.Context(), claims.SubjectID, purpose, req.Code); err != nil {
		return handleError(c, err)
	}
	return utils.Success(c, fiber.Map{"verified": true, "purpose": purpose})
}

// VerifyToken handles GET /otp/verify/:token for link-style confirmation.
func (h *OTPHandler) VerifyToken(c *fiber.Ctx) error {
	subjectID, purpose, err := h.verifier.CheckChallengeByToken(c.Context(), c.Params("token"))
	if err != nil {
		return handleError(c, err)
	}
	return utils.Success(c, fiber.Map{
		"verified":   true,
		"subject_id": subjectID,
		"purpose":    purpose,
	})
}
