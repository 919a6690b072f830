package handlers

import (
	"bytes"
	"encoding/base64"
	"errors"
	"image/png"

	"github.com/gofiber/fiber/v2"
	"github.com/pquerna/otp"
	"golang.org/x/crypto/bcrypt"

	"github.com/bkaraoglu/timberline-api/internal/dto"
	"github.com/bkaraoglu/timberline-api/internal/middleware"
	"github.com/bkaraoglu/timberline-api/internal/services"
)

type TwoFactorHandler struct {
	twoFactor *services.TwoFactorService
}

func NewTwoFactorHandler(twoFactor *services.TwoFactorService) *TwoFactorHandler {
	return &TwoFactorHandler{twoFactor: twoFactor}
}

func (h *TwoFactorHandler) Status(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	return c.JSON(dto.OK(dto.TwoFactorStatusResponse{
		Enabled:   user.TwoFactorEnabled,
		Pending:   user.TwoFactorSecret != "" && user.TwoFactorConfirmedAt == nil,
		Confirmed: user.TwoFactorConfirmedAt != nil,
	}))
}

// Enable provisions a pending secret and recovery codes. Two-factor is not
// active until the first code is confirmed.
func (h *TwoFactorHandler) Enable(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	if user.TwoFactorEnabled {
		return badRequest(c, "Two-factor authentication is already enabled")
	}

	secret, uri, codes, err := h.twoFactor.Enroll(c.Context(), user)
	if err != nil {
		return internalError(c, err)
	}

	return c.JSON(dto.OK(dto.TwoFactorEnrollResponse{
		Secret:          secret,
		ProvisioningURI: uri,
		RecoveryCodes:   codes,
	}))
}

func (h *TwoFactorHandler) Confirm(c *fiber.Ctx) error {
	var req dto.TwoFactorConfirmRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if req.Code == "" {
		return badRequest(c, "Code is required")
	}

	user := middleware.CurrentUser(c)
	ok, err := h.twoFactor.Confirm(c.Context(), user, req.Code)
	if err != nil {
		if errors.Is(err, services.ErrTwoFactorNotEnrolled) {
			return badRequest(c, err.Error())
		}
		return internalError(c, err)
	}
	if !ok {
		return c.Status(fiber.StatusUnprocessableEntity).JSON(dto.Fail("Invalid authentication code"))
	}
	return c.JSON(dto.OKMessage("Two-factor authentication enabled"))
}

// Disable requires the account password and wipes all two-factor state so
// a later re-enable starts from scratch.
func (h *TwoFactorHandler) Disable(c *fiber.Ctx) error {
	var req dto.TwoFactorDisableRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}

	user := middleware.CurrentUser(c)
	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(req.Password)); err != nil {
		return c.Status(fiber.StatusUnauthorized).JSON(dto.Fail("Current password is incorrect"))
	}

	if err := h.twoFactor.Disable(c.Context(), user); err != nil {
		return internalError(c, err)
	}
	return c.JSON(dto.OKMessage("Two-factor authentication disabled"))
}

// RecoveryCodes replaces the outstanding set. The old codes stop working
// immediately.
func (h *TwoFactorHandler) RecoveryCodes(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	if !user.TwoFactorEnabled {
		return badRequest(c, "Two-factor authentication is not enabled")
	}

	codes, err := h.twoFactor.RegenerateRecoveryCodes(c.Context(), user)
	if err != nil {
		return internalError(c, err)
	}
	return c.JSON(dto.OK(dto.RecoveryCodesResponse{RecoveryCodes: codes}))
}

// QRCode renders the provisioning URI as a base64 PNG for authenticator
// apps that scan instead of typing the secret.
func (h *TwoFactorHandler) QRCode(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)

	uri, err := h.twoFactor.ProvisioningURI(user)
	if err != nil {
		if errors.Is(err, services.ErrTwoFactorNotEnrolled) {
			return badRequest(c, err.Error())
		}
		return internalError(c, err)
	}

	key, err := otp.NewKeyFromURL(uri)
	if err != nil {
		return internalError(c, err)
	}
	img, err := key.Image(256, 256)
	if err != nil {
		return internalError(c, err)
	}

	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return internalError(c, err)
	}

	return c.JSON(dto.OK(fiber.Map{
		"qr_code": "data:image/png;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()),
	}))
}
