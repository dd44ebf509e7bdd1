package handlers

import (
	"net/http"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/policy-service/internal/api/dto"
	"github.com/spec-kit/policy-service/internal/service"
	apperrors "github.com/spec-kit/policy-service/pkg/util/errorutil"
)

// PoliciesHandler manages quote and policy endpoints.
type PoliciesHandler struct {
	policies *service.PolicyService
}

// NewPoliciesHandler constructs handler.
func NewPoliciesHandler(policies *service.PolicyService) *PoliciesHandler {
	return &PoliciesHandler{policies: policies}
}

// CreateQuote POST /api/v1/quotes.
func (h *PoliciesHandler) CreateQuote(c *fiber.Ctx) error {
	var req dto.CreateQuoteRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	policy, err := h.policies.CreateQuote(c.UserContext(), service.QuoteInput{
		CustomerID: req.CustomerID,
		PolicyType: req.PolicyType,
		State:      req.State,
	})
	if err != nil {
		return err
	}
	return c.Status(http.StatusCreated).JSON(fiber.Map{"data": dto.NewPolicyResponse(policy)})
}

// Pay PUT /api/v1/policies/:id/pay.
func (h *PoliciesHandler) Pay(c *fiber.Ctx) error {
	var req dto.PayPolicyRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	policy, err := h.policies.Pay(c.UserContext(), c.Params("id"), req.PaymentMethod)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{
		"message": "Payment is successfully processed",
		"data":    dto.NewPolicyResponse(policy),
	})
}

// ChangeState PUT /api/v1/policies/:id/state (agent only).
func (h *PoliciesHandler) ChangeState(c *fiber.Ctx) error {
	var req dto.ChangeStateRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	if req.State == "" {
		return apperrors.NewValidationError("state required", nil)
	}

	policy, err := h.policies.ChangeState(c.UserContext(), c.Params("id"), req.State)
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewPolicyResponse(policy)})
}

// List GET /api/v1/policies?customer_id=.
func (h *PoliciesHandler) List(c *fiber.Ctx) error {
	customerID := c.Query("customer_id")
	if customerID == "" {
		return apperrors.NewValidationError("customer_id required", nil)
	}

	policies, err := h.policies.ListForCustomer(c.UserContext(), customerID)
	if err != nil {
		return err
	}

	items := make([]dto.PolicyResponse, 0, len(policies))
	for i := range policies {
		items = append(items, dto.NewPolicyResponse(&policies[i]))
	}
	return c.JSON(fiber.Map{"data": items})
}

// History GET /api/v1/policies/:id/history.
func (h *PoliciesHandler) History(c *fiber.Ctx) error {
	entries, err := h.policies.History(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return c.JSON(fiber.Map{"data": dto.NewHistoryResponses(entries)})
}
