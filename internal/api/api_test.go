package api

import (
	"encoding/json"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/mroshb/reward_engine/internal/middleware"
	"github.com/mroshb/reward_engine/internal/security"
	"github.com/mroshb/reward_engine/pkg/errors"
)

const testSecret = "test_secret_key_minimum_32_chars"

type envelope struct {
	Success bool            `json:"success"`
	Code    string          `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func decode(t *testing.T, body io.Reader) envelope {
	t.Helper()
	var env envelope
	if err := json.NewDecoder(body).Decode(&env); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return env
}

func TestStatusOf(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{errors.ErrCodeValidation, fiber.StatusBadRequest},
		{errors.ErrCodeInsufficientFunds, fiber.StatusPaymentRequired},
		{errors.ErrCodeQuotaExceeded, fiber.StatusTooManyRequests},
		{errors.ErrCodeStockExhausted, fiber.StatusConflict},
		{errors.ErrCodeIdempotencyConflict, fiber.StatusConflict},
		{errors.ErrCodeForbidden, fiber.StatusForbidden},
		{errors.ErrCodeInvariantViolation, fiber.StatusInternalServerError},
		{"SOMETHING_NEW", fiber.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			if got := StatusOf(tt.code); got != tt.want {
				t.Errorf("StatusOf(%s) = %d, want %d", tt.code, got, tt.want)
			}
		})
	}
}

func newTestApp(rl *middleware.RateLimiter) *fiber.App {
	app := fiber.New()
	v1 := app.Group("/v1", Auth(testSecret), RateLimit(rl))
	v1.Get("/whoami", func(c *fiber.Ctx) error {
		return JSONSuccess(c, "ok", fiber.Map{"account_id": actorOf(c).AccountID})
	})
	v1.Get("/admin/ping", RequireAdmin, func(c *fiber.Ctx) error {
		return JSONSuccess(c, "pong", nil)
	})
	v1.Get("/boom", func(c *fiber.Ctx) error {
		return JSONError(c, errors.Wrap(io.ErrUnexpectedEOF, errors.ErrCodeInternalError, "database exploded"))
	})
	v1.Get("/soldout", func(c *fiber.Ctx) error {
		return JSONError(c, errors.New(errors.ErrCodeStockExhausted, "prize 12 of config 3 has no stock"))
	})
	v1.Get("/empty", func(c *fiber.Ctx) error {
		return JSONError(c, errors.New(errors.ErrCodeNoEligiblePrizes, "all 4 prizes of config 3 are disabled"))
	})
	v1.Get("/closed", func(c *fiber.Ctx) error {
		return JSONError(c, errors.New(errors.ErrCodeInvalidState, "market is CLOSED"))
	})
	v1.Post("/token", func(c *fiber.Ctx) error {
		token, err := parseToken(c)
		if err != nil {
			return badRequest(c, "invalid JSON")
		}
		if !withToken(c, &token) {
			return missingToken(c)
		}
		return JSONSuccess(c, "ok", token)
	})
	return app
}

func bearer(t *testing.T, accountID uint, role string) string {
	t.Helper()
	token, err := security.GenerateJWT(accountID, role, testSecret, time.Hour)
	if err != nil {
		t.Fatalf("GenerateJWT: %v", err)
	}
	return "Bearer " + token
}

func TestAuth(t *testing.T) {
	rl := middleware.NewRateLimiter(100, 100, time.Minute)
	defer rl.Stop()
	app := newTestApp(rl)

	tests := []struct {
		name       string
		path       string
		auth       string
		wantStatus int
		wantCode   string
	}{
		{"missing header", "/v1/whoami", "", fiber.StatusUnauthorized, errors.ErrCodeUnauthorized},
		{"garbage token", "/v1/whoami", "Bearer not-a-jwt", fiber.StatusUnauthorized, errors.ErrCodeUnauthorized},
		{"wrong scheme", "/v1/whoami", "Basic abc", fiber.StatusUnauthorized, errors.ErrCodeUnauthorized},
		{"valid user", "/v1/whoami", bearer(t, 7, "user"), fiber.StatusOK, ""},
		{"user on admin route", "/v1/admin/ping", bearer(t, 7, "user"), fiber.StatusForbidden, errors.ErrCodeForbidden},
		{"admin on admin route", "/v1/admin/ping", bearer(t, 1, "admin"), fiber.StatusOK, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.path, nil)
			if tt.auth != "" {
				req.Header.Set(fiber.HeaderAuthorization, tt.auth)
			}
			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("app.Test: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			env := decode(t, resp.Body)
			if env.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", env.Code, tt.wantCode)
			}
			if env.Success != (tt.wantStatus == fiber.StatusOK) {
				t.Errorf("success = %v", env.Success)
			}
		})
	}
}

func TestAuthStoresActor(t *testing.T) {
	rl := middleware.NewRateLimiter(100, 100, time.Minute)
	defer rl.Stop()
	app := newTestApp(rl)

	req := httptest.NewRequest("GET", "/v1/whoami", nil)
	req.Header.Set(fiber.HeaderAuthorization, bearer(t, 42, "user"))
	resp, err := app.Test(req)
	if err != nil {
		t.Fatalf("app.Test: %v", err)
	}
	defer resp.Body.Close()

	var data struct {
		AccountID uint `json:"account_id"`
	}
	if err := json.Unmarshal(decode(t, resp.Body).Data, &data); err != nil {
		t.Fatalf("unmarshal data: %v", err)
	}
	if data.AccountID != 42 {
		t.Errorf("account_id = %d, want 42", data.AccountID)
	}
}

func TestRateLimit(t *testing.T) {
	rl := middleware.NewRateLimiter(2, 100, time.Minute)
	defer rl.Stop()
	app := newTestApp(rl)
	auth := bearer(t, 9, "user")

	for i, want := range []int{fiber.StatusOK, fiber.StatusOK, fiber.StatusTooManyRequests} {
		req := httptest.NewRequest("GET", "/v1/whoami", nil)
		req.Header.Set(fiber.HeaderAuthorization, auth)
		resp, err := app.Test(req)
		if err != nil {
			t.Fatalf("app.Test: %v", err)
		}
		resp.Body.Close()
		if resp.StatusCode != want {
			t.Errorf("request %d: status = %d, want %d", i+1, resp.StatusCode, want)
		}
	}
}

func TestJSONErrorHidesInternalDetail(t *testing.T) {
	rl := middleware.NewRateLimiter(100, 100, time.Minute)
	defer rl.Stop()
	app := newTestApp(rl)

	tests := []struct {
		name        string
		path        string
		wantStatus  int
		wantCode    string
		wantMessage string
	}{
		{"internal error", "/v1/boom", fiber.StatusInternalServerError, errors.ErrCodeInternalError, "internal error"},
		{"stock exhausted", "/v1/soldout", fiber.StatusConflict, errors.ErrCodeStockExhausted, "sold out"},
		{"no eligible prizes", "/v1/empty", fiber.StatusConflict, errors.ErrCodeNoEligiblePrizes, "no prizes are available right now"},
		{"client error keeps its message", "/v1/closed", fiber.StatusConflict, errors.ErrCodeInvalidState, "market is CLOSED"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", tt.path, nil)
			req.Header.Set(fiber.HeaderAuthorization, bearer(t, 3, "user"))
			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("app.Test: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			env := decode(t, resp.Body)
			if env.Message != tt.wantMessage {
				t.Errorf("message = %q, want %q", env.Message, tt.wantMessage)
			}
			if env.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", env.Code, tt.wantCode)
			}
		})
	}
}

func TestRequestToken(t *testing.T) {
	rl := middleware.NewRateLimiter(100, 100, time.Minute)
	defer rl.Stop()
	app := newTestApp(rl)

	tests := []struct {
		name       string
		body       string
		header     string
		wantStatus int
		wantToken  string
	}{
		{"missing", "", "", fiber.StatusBadRequest, ""},
		{"empty body field", `{"request_id":""}`, "", fiber.StatusBadRequest, ""},
		{"body", `{"request_id":"r1"}`, "", fiber.StatusOK, "r1"},
		{"header", "", "h1", fiber.StatusOK, "h1"},
		{"body wins over header", `{"request_id":"r1"}`, "h1", fiber.StatusOK, "r1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("POST", "/v1/token", strings.NewReader(tt.body))
			req.Header.Set(fiber.HeaderAuthorization, bearer(t, 3, "user"))
			req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
			if tt.header != "" {
				req.Header.Set(idempotencyHeader, tt.header)
			}
			resp, err := app.Test(req)
			if err != nil {
				t.Fatalf("app.Test: %v", err)
			}
			defer resp.Body.Close()

			if resp.StatusCode != tt.wantStatus {
				t.Fatalf("status = %d, want %d", resp.StatusCode, tt.wantStatus)
			}
			env := decode(t, resp.Body)
			if tt.wantToken == "" {
				if env.Code != errors.ErrCodeValidation {
					t.Errorf("code = %q, want %s", env.Code, errors.ErrCodeValidation)
				}
				return
			}
			var token string
			if err := json.Unmarshal(env.Data, &token); err != nil {
				t.Fatalf("decode token: %v", err)
			}
			if token != tt.wantToken {
				t.Errorf("token = %q, want %q", token, tt.wantToken)
			}
		})
	}
}

func TestPagination(t *testing.T) {
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{"limit": limitOf(c), "offset": offsetOf(c)})
	})

	tests := []struct {
		query      string
		wantLimit  int
		wantOffset int
	}{
		{"", 20, 0},
		{"?limit=5&offset=10", 5, 10},
		{"?limit=0", 20, 0},
		{"?limit=5000", maxPageSize, 0},
		{"?offset=-3", 20, 0},
	}

	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			resp, err := app.Test(httptest.NewRequest("GET", "/"+tt.query, nil))
			if err != nil {
				t.Fatalf("app.Test: %v", err)
			}
			defer resp.Body.Close()
			var got struct {
				Limit  int `json:"limit"`
				Offset int `json:"offset"`
			}
			if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if got.Limit != tt.wantLimit || got.Offset != tt.wantOffset {
				t.Errorf("got limit=%d offset=%d, want %d %d", got.Limit, got.Offset, tt.wantLimit, tt.wantOffset)
			}
		})
	}
}
