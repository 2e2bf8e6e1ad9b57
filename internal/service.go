package internal

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/DrGermanius/bookstore/internal/model"
)

const (
	claimCodeAttempts = 3
	notifyTimeout     = 10 * time.Second
	tokenTTL          = 72 * time.Hour
)

type IService interface {
	Register(context.Context, model.RegisterInput) (string, error)
	Login(context.Context, string, string) (string, error)
	ParseToken(string) (Claims, error)

	CreateOrder(context.Context, int, []model.OrderItem) (model.CreateOrderResult, error)
	GetOrders(context.Context, int) ([]model.OrderOutput, error)
	CompleteOrder(context.Context, string) (model.Order, error)
	CancelOrder(context.Context, int, int) error

	AddToCart(context.Context, int, model.CartItem) error
	GetCart(context.Context, int) ([]model.CartItem, error)

	CreateAnnouncement(context.Context, model.AnnouncementInput) (model.Announcement, error)
}

// Claims is what the auth cookie carries.
type Claims struct {
	UserID  int
	IsAdmin bool
}

type Service struct {
	Repository  IRepository
	Mailer      IMailer
	Broadcaster IBroadcaster

	// overridable in tests
	Now          func() time.Time
	NewClaimCode func() string

	secret []byte
	logger *zap.SugaredLogger
}

func NewService(repository IRepository, mailer IMailer, broadcaster IBroadcaster, secret string, logger *zap.SugaredLogger) *Service {
	return &Service{
		Repository:   repository,
		Mailer:       mailer,
		Broadcaster:  broadcaster,
		Now:          time.Now,
		NewClaimCode: NewClaimCode,
		secret:       []byte(secret),
		logger:       logger,
	}
}

func (s *Service) CreateOrder(ctx context.Context, uid int, items []model.OrderItem) (res model.CreateOrderResult, err error) {
	defer func() { recordOrderOperation("create", err) }()

	if err = validateOrderItems(items); err != nil {
		return res, err
	}

	completed, err := s.Repository.CountCompletedOrders(ctx, uid)
	if err != nil {
		return res, err
	}

	quote := CalculateDiscount(items, completed)

	order := model.Order{
		UserID:         uid,
		Status:         model.OrderStatusPending,
		Items:          items,
		TotalAmount:    quote.Total,
		DiscountAmount: quote.Discount,
		CreatedAt:      s.Now().UTC(),
	}

	for attempt := 1; ; attempt++ {
		order.ClaimCode = s.NewClaimCode()
		order.ID, err = s.Repository.CreateOrder(ctx, order)
		if !errors.Is(err, ErrClaimCodeTaken) || attempt == claimCodeAttempts {
			break
		}
		s.logger.Warnf("claim code collision on attempt %d, retrying", attempt)
	}
	if err != nil {
		return res, errors.Wrap(err, "create order")
	}

	for _, tier := range quote.Tiers {
		discountTiersApplied.WithLabelValues(tier).Inc()
	}

	s.sendOrderConfirmation(ctx, order, quote)

	return model.CreateOrderResult{
		ClaimCode: order.ClaimCode,
		Discount:  quote.Discount,
		Total:     quote.Total,
		Message:   quote.Explanation(),
	}, nil
}

// sendOrderConfirmation is best effort: the order is already stored.
func (s *Service) sendOrderConfirmation(ctx context.Context, order model.Order, quote Quote) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), notifyTimeout)
	defer cancel()

	contact, err := s.Repository.GetUserContact(ctx, order.UserID)
	if err != nil {
		s.logger.Warnf("order %s: skip confirmation, contact lookup: %s", order.ClaimCode, err.Error())
		return
	}
	if contact.Email == "" {
		s.logger.Warnf("order %s: skip confirmation, user %d has no email", order.ClaimCode, order.UserID)
		return
	}

	err = s.Mailer.SendOrderConfirmation(ctx, contact, model.OrderConfirmation{
		CustomerName: contact.Name,
		ClaimCode:    order.ClaimCode,
		CreatedAt:    order.CreatedAt,
		Subtotal:     quote.Subtotal,
		Discount:     quote.Discount,
		Total:        quote.Total,
		Explanation:  quote.Explanation(),
	})
	if err != nil {
		notificationFailures.WithLabelValues("mail").Inc()
		s.logger.Warnf("order %s: confirmation mail error: %s", order.ClaimCode, err.Error())
	}
}

func (s *Service) GetOrders(ctx context.Context, uid int) ([]model.OrderOutput, error) {
	orders, err := s.Repository.GetOrders(ctx, uid)
	if err != nil {
		return nil, err
	}

	if len(orders) == 0 {
		return nil, ErrNoRecords
	}
	return orders, nil
}

// CompleteOrder redeems a claim code. Only pending orders can be completed,
// a second redemption fails with ErrOrderNotPending.
func (s *Service) CompleteOrder(ctx context.Context, claimCode string) (order model.Order, err error) {
	defer func() { recordOrderOperation("complete", err) }()

	code := normalizeClaimCode(claimCode)
	if code == "" {
		return order, errors.Errorf("%w: claim code is required", ErrInvalidRequest)
	}

	order, err = s.Repository.GetOrderByClaimCode(ctx, code)
	if err != nil {
		return order, err
	}
	if order.Status != model.OrderStatusPending {
		return order, ErrOrderNotPending
	}

	now := s.Now().UTC()
	if err = s.Repository.UpdateOrderStatus(ctx, order.ID, model.OrderStatusPending, model.OrderStatusCompleted, &now); err != nil {
		return order, err
	}
	order.Status = model.OrderStatusCompleted
	order.CompletedAt = &now

	n := model.Notification{
		Type:        model.NotificationOrderCompleted,
		Content:     fmt.Sprintf("Order %s is completed", order.ClaimCode),
		ID:          uuid.NewString(),
		Timestamp:   now,
		Title:       "Order completed",
		Description: fmt.Sprintf("Claim code %s has been redeemed", order.ClaimCode),
	}
	if err := s.Broadcaster.Broadcast(ctx, n); err != nil {
		notificationFailures.WithLabelValues("broadcast").Inc()
		s.logger.Warnf("order %s: completion broadcast error: %s", order.ClaimCode, err.Error())
	}

	return order, nil
}

func (s *Service) CancelOrder(ctx context.Context, uid, orderID int) (err error) {
	defer func() { recordOrderOperation("cancel", err) }()

	order, err := s.Repository.GetOrderByID(ctx, orderID)
	if err != nil {
		return err
	}
	if order.UserID != uid {
		return ErrForbidden
	}
	if order.Status != model.OrderStatusPending {
		return ErrOrderNotPending
	}

	return s.Repository.UpdateOrderStatus(ctx, order.ID, model.OrderStatusPending, model.OrderStatusCancelled, nil)
}

func (s *Service) AddToCart(ctx context.Context, uid int, item model.CartItem) error {
	if item.BookID <= 0 {
		return ErrInvalidBookID
	}
	if item.Quantity <= 0 {
		return ErrInvalidQuantity
	}
	if item.Quantity > maxQuantity {
		return ErrQuantityTooLarge
	}
	return s.Repository.AddToCart(ctx, uid, item)
}

func (s *Service) GetCart(ctx context.Context, uid int) ([]model.CartItem, error) {
	items, err := s.Repository.GetCart(ctx, uid)
	if err != nil {
		return nil, err
	}

	if len(items) == 0 {
		return nil, ErrNoRecords
	}
	return items, nil
}

func (s *Service) CreateAnnouncement(ctx context.Context, i model.AnnouncementInput) (model.Announcement, error) {
	if strings.TrimSpace(i.Title) == "" {
		return model.Announcement{}, ErrEmptyTitle
	}
	if i.ScheduledEnd.Before(i.ScheduledStart) {
		return model.Announcement{}, ErrInvalidSchedule
	}

	a := model.Announcement{
		Title:          i.Title,
		Body:           i.Body,
		ScheduledStart: i.ScheduledStart.UTC(),
		ScheduledEnd:   i.ScheduledEnd.UTC(),
	}

	id, err := s.Repository.CreateAnnouncement(ctx, a)
	if err != nil {
		return model.Announcement{}, err
	}
	a.ID = id
	return a, nil
}

func (s *Service) Register(ctx context.Context, i model.RegisterInput) (string, error) {
	if i.Login == "" || i.Password == "" {
		return "", errors.Errorf("%w: login and password are required", ErrInvalidRequest)
	}

	exist, err := s.Repository.IsUserExist(ctx, i.Login)
	if err != nil {
		return "", err
	}

	if exist {
		return "", ErrLoginIsAlreadyTaken
	}

	h, err := GetHash(i.Password)
	if err != nil {
		return "", err
	}

	id, err := s.Repository.Register(ctx, model.User{
		Login:    i.Login,
		Password: h,
		Name:     i.Name,
		Email:    i.Email,
	})
	if err != nil {
		return "", err
	}

	return s.GetJWTToken(id, false)
}

func (s *Service) Login(ctx context.Context, login, password string) (string, error) {
	u, err := s.Repository.GetUserByLogin(ctx, login)
	if err != nil {
		return "", err
	}

	if err = bcrypt.CompareHashAndPassword([]byte(u.Password), []byte(password)); err != nil {
		return "", ErrInvalidCredentials
	}

	return s.GetJWTToken(u.ID, u.IsAdmin)
}

func (s *Service) GetJWTToken(uid int, admin bool) (string, error) {
	claims := jwt.MapClaims{
		"id":    strconv.Itoa(uid),
		"admin": admin,
		"exp":   s.Now().Add(tokenTTL).Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)

	t, err := token.SignedString(s.secret)
	if err != nil {
		return "", errors.Wrap(err, "sign token")
	}

	return t, nil
}

func (s *Service) ParseToken(tokenString string) (Claims, error) {
	claims := jwt.MapClaims{}
	_, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return Claims{}, ErrUnauthorized
	}

	id, ok := claims["id"].(string)
	if !ok {
		return Claims{}, ErrUnauthorized
	}
	uid, err := strconv.Atoi(id)
	if err != nil {
		return Claims{}, ErrUnauthorized
	}

	admin, _ := claims["admin"].(bool)
	return Claims{UserID: uid, IsAdmin: admin}, nil
}

func GetHash(password string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", errors.Wrap(err, "hash password")
	}
	return string(h), nil
}

var _ IService = (*Service)(nil)
