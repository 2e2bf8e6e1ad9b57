package model

import (
	"time"

	"github.com/shopspring/decimal"
)

const (
	OrderStatusPending   = "PENDING"
	OrderStatusCompleted = "COMPLETED"
	OrderStatusCancelled = "CANCELLED"
)

type Order struct {
	ID             int             `json:"id"`
	UserID         int             `json:"userID"`
	ClaimCode      string          `json:"claimCode"`
	Status         string          `json:"status"`
	Items          []OrderItem     `json:"items"`
	TotalAmount    decimal.Decimal `json:"totalAmount"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	CreatedAt      time.Time       `json:"createdAt"`
	CompletedAt    *time.Time      `json:"completedAt,omitempty"`
}

// OrderItem is a price snapshot taken when the order is placed.
type OrderItem struct {
	BookID    int             `json:"bookID"`
	Quantity  int             `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unitPrice"`
}

type CreateOrderInput struct {
	Items []OrderItem `json:"items"`
}

type CreateOrderResult struct {
	ClaimCode string          `json:"claimCode"`
	Discount  decimal.Decimal `json:"discount"`
	Total     decimal.Decimal `json:"total"`
	Message   string          `json:"message"`
}

type CompleteOrderInput struct {
	ClaimCode string `json:"claimCode"`
}

type OrderOutput struct {
	ID             int             `json:"id"`
	ClaimCode      string          `json:"claimCode"`
	Status         string          `json:"status"`
	TotalAmount    decimal.Decimal `json:"totalAmount"`
	DiscountAmount decimal.Decimal `json:"discountAmount"`
	CreatedAt      time.Time       `json:"createdAt"`
	CompletedAt    *time.Time      `json:"completedAt,omitempty"`
}

// OrderConfirmation is the data rendered into the confirmation e-mail.
type OrderConfirmation struct {
	CustomerName string
	ClaimCode    string
	CreatedAt    time.Time
	Subtotal     decimal.Decimal
	Discount     decimal.Decimal
	Total        decimal.Decimal
	Explanation  string
}
