package http

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	nethttp "net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/spec-kit/policy-service/internal/api/http/handlers"
	"github.com/spec-kit/policy-service/internal/auth"
	"github.com/spec-kit/policy-service/internal/config"
	"github.com/spec-kit/policy-service/internal/pricing"
	"github.com/spec-kit/policy-service/internal/repository/memory"
	"github.com/spec-kit/policy-service/internal/service"
)

func newTestApp(t *testing.T) *fiber.App {
	t.Helper()

	store := memory.NewStore()
	logger := zap.NewNop()

	policySvc := service.NewPolicyService(service.PolicyDependencies{
		Store:  store,
		Engine: pricing.NewEngine(0),
	})
	customerSvc := service.NewCustomerService(store)
	authSvc := service.NewAuthService(config.AuthConfig{
		JWTSecret:             "test-secret",
		AccessTokenTTLMinutes: 60,
		BcryptCost:            4,
	}, store.Agents())
	authMiddleware := auth.NewAuthMiddleware(authSvc.TokenManager(), store.Agents())

	app := fiber.New()
	RegisterMiddlewares(app, logger, nil, 5*time.Second)
	RegisterRoutes(app, RouteConfig{
		Health:         handlers.NewHealthHandler("policy-service", "test", nil, nil),
		Agents:         handlers.NewAgentsHandler(authSvc),
		Customers:      handlers.NewCustomersHandler(customerSvc),
		Policies:       handlers.NewPoliciesHandler(policySvc),
		AuthMiddleware: authMiddleware,
	})
	return app
}

func doRequest(t *testing.T, app *fiber.App, method, path string, body any, token string) *nethttp.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(payload)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := app.Test(req, -1)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	return resp
}

func decodeBody(t *testing.T, resp *nethttp.Response, out any) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func errorCode(t *testing.T, resp *nethttp.Response) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	decodeBody(t, resp, &body)
	return body.Error.Code
}

func createCustomerHTTP(t *testing.T, app *fiber.App, first, last, dob string) string {
	t.Helper()
	resp := doRequest(t, app, nethttp.MethodPost, "/api/v1/customers", fiber.Map{
		"first_name": first,
		"last_name":  last,
		"dob":        dob,
	}, "")
	if resp.StatusCode != nethttp.StatusCreated {
		t.Fatalf("create customer: status %d", resp.StatusCode)
	}
	var body struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	decodeBody(t, resp, &body)
	return body.Data.ID
}

func registerAgentHTTP(t *testing.T, app *fiber.App) string {
	t.Helper()
	resp := doRequest(t, app, nethttp.MethodPost, "/auth/agents/register", fiber.Map{
		"name":     "Ops Agent",
		"email":    "ops@example.com",
		"password": "s3cret-pass",
	}, "")
	if resp.StatusCode != nethttp.StatusCreated {
		t.Fatalf("register agent: status %d", resp.StatusCode)
	}
	var body struct {
		Data struct {
			Auth struct {
				Token string `json:"token"`
			} `json:"auth"`
		} `json:"data"`
	}
	decodeBody(t, resp, &body)
	if body.Data.Auth.Token == "" {
		t.Fatalf("expected a token")
	}
	return body.Data.Auth.Token
}

func TestQuoteToPaymentFlow(t *testing.T) {
	app := newTestApp(t)
	customerID := createCustomerHTTP(t, app, "Rita", "Okafor", "1996-09-03")

	resp := doRequest(t, app, nethttp.MethodPost, "/api/v1/quotes", fiber.Map{
		"customer_id": customerID,
		"policy_type": "health",
	}, "")
	if resp.StatusCode != nethttp.StatusCreated {
		t.Fatalf("create quote: status %d", resp.StatusCode)
	}
	var quote struct {
		Data struct {
			ID      string  `json:"id"`
			Premium float64 `json:"premium"`
			Cover   float64 `json:"cover"`
			State   string  `json:"state"`
		} `json:"data"`
	}
	decodeBody(t, resp, &quote)
	if quote.Data.Premium != 150 || quote.Data.Cover != 200000 {
		t.Fatalf("unexpected pricing: premium=%v cover=%v", quote.Data.Premium, quote.Data.Cover)
	}
	if quote.Data.State != "new" {
		t.Fatalf("expected state new, got %s", quote.Data.State)
	}

	payPath := fmt.Sprintf("/api/v1/policies/%s/pay", quote.Data.ID)
	resp = doRequest(t, app, nethttp.MethodPut, payPath, fiber.Map{"payment_method": "credit_card"}, "")
	if resp.StatusCode != nethttp.StatusOK {
		t.Fatalf("pay: status %d", resp.StatusCode)
	}
	var paid struct {
		Message string `json:"message"`
		Data    struct {
			State string `json:"state"`
		} `json:"data"`
	}
	decodeBody(t, resp, &paid)
	if paid.Data.State != "bound" {
		t.Fatalf("expected state bound, got %s", paid.Data.State)
	}
	if paid.Message == "" {
		t.Fatalf("expected a payment confirmation message")
	}

	// Paying again keeps the policy bound and adds no ledger entry.
	resp = doRequest(t, app, nethttp.MethodPut, payPath, fiber.Map{"payment_method": "credit_card"}, "")
	if resp.StatusCode != nethttp.StatusOK {
		t.Fatalf("repeat pay: status %d", resp.StatusCode)
	}
	resp.Body.Close()

	resp = doRequest(t, app, nethttp.MethodGet, fmt.Sprintf("/api/v1/policies/%s/history", quote.Data.ID), nil, "")
	if resp.StatusCode != nethttp.StatusOK {
		t.Fatalf("history: status %d", resp.StatusCode)
	}
	var history struct {
		Data []struct {
			State string `json:"state"`
		} `json:"data"`
	}
	decodeBody(t, resp, &history)
	if len(history.Data) != 2 {
		t.Fatalf("expected 2 ledger entries, got %d", len(history.Data))
	}
	if history.Data[0].State != "bound" || history.Data[1].State != "new" {
		t.Fatalf("unexpected ledger order: %+v", history.Data)
	}

	resp = doRequest(t, app, nethttp.MethodGet, "/api/v1/policies?customer_id="+customerID, nil, "")
	if resp.StatusCode != nethttp.StatusOK {
		t.Fatalf("list policies: status %d", resp.StatusCode)
	}
	var list struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	decodeBody(t, resp, &list)
	if len(list.Data) != 1 || list.Data[0].ID != quote.Data.ID {
		t.Fatalf("unexpected policy list: %+v", list.Data)
	}
}

func TestErrorMapping(t *testing.T) {
	app := newTestApp(t)

	t.Run("malformed search date", func(t *testing.T) {
		resp := doRequest(t, app, nethttp.MethodGet, "/api/v1/customers/search?dob=1991-06-25", nil, "")
		if resp.StatusCode != nethttp.StatusBadRequest {
			t.Fatalf("expected 400, got %d", resp.StatusCode)
		}
		if code := errorCode(t, resp); code != "VALIDATION_FAILED" {
			t.Fatalf("expected VALIDATION_FAILED, got %s", code)
		}
	})

	t.Run("list without customer id", func(t *testing.T) {
		resp := doRequest(t, app, nethttp.MethodGet, "/api/v1/policies", nil, "")
		if resp.StatusCode != nethttp.StatusBadRequest {
			t.Fatalf("expected 400, got %d", resp.StatusCode)
		}
		resp.Body.Close()
	})

	t.Run("pay unknown policy", func(t *testing.T) {
		resp := doRequest(t, app, nethttp.MethodPut, "/api/v1/policies/nope/pay", fiber.Map{"payment_method": "card"}, "")
		if resp.StatusCode != nethttp.StatusNotFound {
			t.Fatalf("expected 404, got %d", resp.StatusCode)
		}
		if code := errorCode(t, resp); code != "NOT_FOUND" {
			t.Fatalf("expected NOT_FOUND, got %s", code)
		}
	})

	t.Run("quote with unknown policy type", func(t *testing.T) {
		customerID := createCustomerHTTP(t, app, "Liu", "Wen", "1988-01-20")
		resp := doRequest(t, app, nethttp.MethodPost, "/api/v1/quotes", fiber.Map{
			"customer_id": customerID,
			"policy_type": "pet",
		}, "")
		if resp.StatusCode != nethttp.StatusBadRequest {
			t.Fatalf("expected 400, got %d", resp.StatusCode)
		}
		resp.Body.Close()
	})

	t.Run("unmatched search is an empty success", func(t *testing.T) {
		resp := doRequest(t, app, nethttp.MethodGet, "/api/v1/customers/search?dob=01-01-1900", nil, "")
		if resp.StatusCode != nethttp.StatusOK {
			t.Fatalf("expected 200, got %d", resp.StatusCode)
		}
		var body struct {
			Data []json.RawMessage `json:"data"`
		}
		decodeBody(t, resp, &body)
		if len(body.Data) != 0 {
			t.Fatalf("expected empty data, got %d items", len(body.Data))
		}
	})
}

func TestAgentProtectedRoutes(t *testing.T) {
	app := newTestApp(t)
	customerID := createCustomerHTTP(t, app, "Ana", "Silva", "1979-11-30")

	t.Run("delete requires a token", func(t *testing.T) {
		resp := doRequest(t, app, nethttp.MethodDelete, "/api/v1/customers/"+customerID, nil, "")
		if resp.StatusCode != nethttp.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", resp.StatusCode)
		}
		resp.Body.Close()
	})

	t.Run("garbage token is rejected", func(t *testing.T) {
		resp := doRequest(t, app, nethttp.MethodDelete, "/api/v1/customers/"+customerID, nil, "not-a-jwt")
		if resp.StatusCode != nethttp.StatusUnauthorized {
			t.Fatalf("expected 401, got %d", resp.StatusCode)
		}
		resp.Body.Close()
	})

	t.Run("agent token unlocks state override and delete", func(t *testing.T) {
		token := registerAgentHTTP(t, app)

		resp := doRequest(t, app, nethttp.MethodPost, "/api/v1/quotes", fiber.Map{
			"customer_id": customerID,
			"policy_type": "travel",
		}, "")
		if resp.StatusCode != nethttp.StatusCreated {
			t.Fatalf("create quote: status %d", resp.StatusCode)
		}
		var quote struct {
			Data struct {
				ID string `json:"id"`
			} `json:"data"`
		}
		decodeBody(t, resp, &quote)

		resp = doRequest(t, app, nethttp.MethodPut, fmt.Sprintf("/api/v1/policies/%s/state", quote.Data.ID), fiber.Map{"state": "declined"}, token)
		if resp.StatusCode != nethttp.StatusOK {
			t.Fatalf("state override: status %d", resp.StatusCode)
		}
		var changed struct {
			Data struct {
				State string `json:"state"`
			} `json:"data"`
		}
		decodeBody(t, resp, &changed)
		if changed.Data.State != "declined" {
			t.Fatalf("expected state declined, got %s", changed.Data.State)
		}

		resp = doRequest(t, app, nethttp.MethodDelete, "/api/v1/customers/"+customerID, nil, token)
		if resp.StatusCode != nethttp.StatusNoContent {
			t.Fatalf("delete: status %d", resp.StatusCode)
		}
		resp.Body.Close()

		resp = doRequest(t, app, nethttp.MethodGet, "/api/v1/customers/"+customerID, nil, "")
		if resp.StatusCode != nethttp.StatusNotFound {
			t.Fatalf("expected 404 after delete, got %d", resp.StatusCode)
		}
		resp.Body.Close()
	})
}

func TestHealthEndpoints(t *testing.T) {
	app := newTestApp(t)

	resp := doRequest(t, app, nethttp.MethodGet, "/health/live", nil, "")
	if resp.StatusCode != nethttp.StatusOK {
		t.Fatalf("live: status %d", resp.StatusCode)
	}
	var body struct {
		Status  string `json:"status"`
		Service string `json:"service"`
	}
	decodeBody(t, resp, &body)
	if body.Status != "alive" {
		t.Fatalf("expected alive, got %s", body.Status)
	}
}
