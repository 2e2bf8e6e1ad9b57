package internal

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/DrGermanius/bookstore/internal/model"
)

const (
	tokenCookie   = "token"
	userIDLocal   = "uid"
	healthTimeout = 2 * time.Second
)

type pinger interface {
	Ping(context.Context) error
}

type Handlers struct {
	Service IService
	db      pinger
	logger  *zap.SugaredLogger
}

func NewHandlers(service IService, db pinger, logger *zap.SugaredLogger) *Handlers {
	return &Handlers{Service: service, db: db, logger: logger}
}

func (h *Handlers) Login(c *fiber.Ctx) error {
	var i model.LoginInput

	if err := c.BodyParser(&i); err != nil {
		h.logger.Errorf("Error on login request: %s", err.Error())
		return errorResponse(c, fiber.StatusBadRequest, "malformed login request")
	}

	t, err := h.Service.Login(c.UserContext(), i.Login, i.Password)
	if err != nil {
		h.logger.Errorf("Error on login request: %s", err.Error())
		if errors.Is(err, ErrInvalidCredentials) {
			return errorResponse(c, fiber.StatusUnauthorized, err.Error())
		}
		return errorResponse(c, fiber.StatusInternalServerError, "login failed")
	}

	setAuthCookie(c, t)
	return c.SendStatus(fiber.StatusOK)
}

func (h *Handlers) Register(c *fiber.Ctx) error {
	var i model.RegisterInput

	if err := c.BodyParser(&i); err != nil {
		h.logger.Errorf("Error on register request: %s", err.Error())
		return errorResponse(c, fiber.StatusBadRequest, "malformed register request")
	}

	t, err := h.Service.Register(c.UserContext(), i)
	if err != nil {
		h.logger.Errorf("Error on register request: %s", err.Error())
		return h.mapError(c, err, "register failed")
	}

	setAuthCookie(c, t)
	return c.SendStatus(fiber.StatusOK)
}

func (h *Handlers) CreateOrder(c *fiber.Ctx) error {
	var i model.CreateOrderInput

	if err := c.BodyParser(&i); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "malformed order request")
	}

	res, err := h.Service.CreateOrder(c.UserContext(), userID(c), i.Items)
	if err != nil {
		h.logger.Errorf("Error on create order request: %s", err.Error())
		return h.mapError(c, err, "order could not be created")
	}

	return c.Status(fiber.StatusCreated).JSON(res)
}

func (h *Handlers) GetOrders(c *fiber.Ctx) error {
	orders, err := h.Service.GetOrders(c.UserContext(), userID(c))
	if err != nil {
		if errors.Is(err, ErrNoRecords) {
			return c.SendStatus(fiber.StatusNoContent)
		}
		h.logger.Errorf("Error on get orders request: %s", err.Error())
		return errorResponse(c, fiber.StatusInternalServerError, "orders could not be loaded")
	}

	return c.Status(fiber.StatusOK).JSON(orders)
}

func (h *Handlers) CancelOrder(c *fiber.Ctx) error {
	id, err := c.ParamsInt("id")
	if err != nil || id <= 0 {
		return errorResponse(c, fiber.StatusBadRequest, "invalid order id")
	}

	if err = h.Service.CancelOrder(c.UserContext(), userID(c), id); err != nil {
		h.logger.Errorf("Error on cancel order request: %s", err.Error())
		return h.mapError(c, err, "order could not be cancelled")
	}

	return c.SendStatus(fiber.StatusOK)
}

func (h *Handlers) CompleteOrder(c *fiber.Ctx) error {
	var i model.CompleteOrderInput

	if err := c.BodyParser(&i); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "malformed complete request")
	}

	order, err := h.Service.CompleteOrder(c.UserContext(), i.ClaimCode)
	if err != nil {
		h.logger.Errorf("Error on complete order request: %s", err.Error())
		return h.mapError(c, err, "order could not be completed")
	}

	return c.Status(fiber.StatusOK).JSON(order)
}

func (h *Handlers) AddToCart(c *fiber.Ctx) error {
	var i model.CartItem

	if err := c.BodyParser(&i); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "malformed cart request")
	}

	if err := h.Service.AddToCart(c.UserContext(), userID(c), i); err != nil {
		h.logger.Errorf("Error on add to cart request: %s", err.Error())
		return h.mapError(c, err, "cart could not be updated")
	}

	return c.SendStatus(fiber.StatusOK)
}

func (h *Handlers) GetCart(c *fiber.Ctx) error {
	items, err := h.Service.GetCart(c.UserContext(), userID(c))
	if err != nil {
		if errors.Is(err, ErrNoRecords) {
			return c.SendStatus(fiber.StatusNoContent)
		}
		h.logger.Errorf("Error on get cart request: %s", err.Error())
		return errorResponse(c, fiber.StatusInternalServerError, "cart could not be loaded")
	}

	return c.Status(fiber.StatusOK).JSON(items)
}

func (h *Handlers) CreateAnnouncement(c *fiber.Ctx) error {
	var i model.AnnouncementInput

	if err := c.BodyParser(&i); err != nil {
		return errorResponse(c, fiber.StatusBadRequest, "malformed announcement request")
	}

	a, err := h.Service.CreateAnnouncement(c.UserContext(), i)
	if err != nil {
		h.logger.Errorf("Error on create announcement request: %s", err.Error())
		return h.mapError(c, err, "announcement could not be created")
	}

	return c.Status(fiber.StatusCreated).JSON(a)
}

func (h *Handlers) Health(c *fiber.Ctx) error {
	ctx, cancel := context.WithTimeout(c.UserContext(), healthTimeout)
	defer cancel()

	if err := h.db.Ping(ctx); err != nil {
		h.logger.Warnf("health check failed: %s", err.Error())
		return errorResponse(c, fiber.StatusServiceUnavailable, "database unavailable")
	}
	return c.JSON(fiber.Map{"status": "ok"})
}

// RequireUser resolves the auth cookie and stores the user id in locals.
func (h *Handlers) RequireUser(c *fiber.Ctx) error {
	claims, err := h.Service.ParseToken(c.Cookies(tokenCookie))
	if err != nil {
		return errorResponse(c, fiber.StatusUnauthorized, ErrUnauthorized.Error())
	}

	c.Locals(userIDLocal, claims.UserID)
	return c.Next()
}

func (h *Handlers) RequireAdmin(c *fiber.Ctx) error {
	claims, err := h.Service.ParseToken(c.Cookies(tokenCookie))
	if err != nil {
		return errorResponse(c, fiber.StatusUnauthorized, ErrUnauthorized.Error())
	}
	if !claims.IsAdmin {
		return errorResponse(c, fiber.StatusForbidden, ErrForbidden.Error())
	}

	c.Locals(userIDLocal, claims.UserID)
	return c.Next()
}

func (h *Handlers) mapError(c *fiber.Ctx, err error, fallback string) error {
	switch {
	case errors.Is(err, ErrInvalidRequest):
		return errorResponse(c, fiber.StatusBadRequest, err.Error())
	case errors.Is(err, ErrUnauthorized), errors.Is(err, ErrInvalidCredentials):
		return errorResponse(c, fiber.StatusUnauthorized, err.Error())
	case errors.Is(err, ErrForbidden):
		return errorResponse(c, fiber.StatusForbidden, err.Error())
	case errors.Is(err, ErrOrderNotFound):
		return errorResponse(c, fiber.StatusNotFound, err.Error())
	case errors.Is(err, ErrOrderNotPending), errors.Is(err, ErrLoginIsAlreadyTaken):
		return errorResponse(c, fiber.StatusConflict, err.Error())
	default:
		return errorResponse(c, fiber.StatusInternalServerError, fallback)
	}
}

func errorResponse(c *fiber.Ctx, status int, message string) error {
	return c.Status(status).JSON(fiber.Map{"status": "error", "message": message})
}

func setAuthCookie(c *fiber.Ctx, token string) {
	cookie := &fiber.Cookie{
		Name:     tokenCookie,
		Value:    token,
		Path:     "/",
		HTTPOnly: true,
		Expires:  time.Now().Add(tokenTTL),
	}

	c.Cookie(cookie)
}

func userID(c *fiber.Ctx) int {
	uid, _ := c.Locals(userIDLocal).(int)
	return uid
}
