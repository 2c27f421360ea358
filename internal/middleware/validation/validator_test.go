package validation

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sampleRequest struct {
	Question string `json:"question" validate:"required,max=10"`
	Vote     *int   `json:"feedback" validate:"required,oneof=-1 0 1"`
}

func intPtr(v int) *int { return &v }

func TestStruct(t *testing.T) {
	assert.NoError(t, Struct(sampleRequest{Question: "fees?", Vote: intPtr(-1)}))

	err := Struct(sampleRequest{Vote: intPtr(0)})
	require.Error(t, err)
	assert.Equal(t, "question is required", err.Error())

	err = Struct(sampleRequest{Question: "this is far too long"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "question must be at most 10 characters")
	assert.Contains(t, err.Error(), "feedback is required")

	err = Struct(sampleRequest{Question: "ok", Vote: intPtr(5)})
	require.Error(t, err)
	assert.Equal(t, "feedback must be one of [-1 0 1]", err.Error())
}

func TestSanitize(t *testing.T) {
	assert.Equal(t, "hello", Sanitize("  hel\x00lo \n"))
}

func TestMiddlewareRejectsUnsupportedContentType(t *testing.T) {
	app := fiber.New()
	app.Use(Middleware(Config{}))
	app.Post("/ask", func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) })

	req := httptest.NewRequest("POST", "/ask", strings.NewReader("x"))
	req.Header.Set("Content-Type", "text/xml")
	resp, err := app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusUnsupportedMediaType, resp.StatusCode)

	req = httptest.NewRequest("POST", "/ask", strings.NewReader("{}"))
	req.Header.Set("Content-Type", "application/json; charset=utf-8")
	resp, err = app.Test(req)
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
}
