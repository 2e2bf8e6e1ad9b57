package internal

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/DrGermanius/bookstore/internal/model"
)

const (
	quantityDiscountThreshold = 5
	loyaltyOrderPeriod        = 10

	// quantities are stored as INT
	maxQuantity = math.MaxInt32

	quantityDiscountLabel = "5% quantity discount"
	loyaltyDiscountLabel  = "10% loyalty discount"
	noDiscountLabel       = "No discount applied"
)

var (
	quantityDiscountRate = decimal.RequireFromString("0.05")
	loyaltyDiscountRate  = decimal.RequireFromString("0.10")
)

// Quote is the priced outcome of an order before it is stored.
type Quote struct {
	Subtotal      decimal.Decimal
	TotalQuantity int
	Factor        decimal.Decimal
	Discount      decimal.Decimal
	Total         decimal.Decimal
	Tiers         []string
}

// Explanation lists the applied tiers for the customer.
func (q Quote) Explanation() string {
	if len(q.Tiers) == 0 {
		return noDiscountLabel
	}
	return strings.Join(q.Tiers, ", ")
}

// CalculateDiscount prices items for a user with completedOrders prior
// completed orders. Tiers add up and are not capped.
func CalculateDiscount(items []model.OrderItem, completedOrders int) Quote {
	q := Quote{
		Subtotal: decimal.Zero,
		Factor:   decimal.Zero,
	}

	for _, item := range items {
		q.Subtotal = q.Subtotal.Add(item.UnitPrice.Mul(decimal.NewFromInt(int64(item.Quantity))))
		q.TotalQuantity += item.Quantity
	}

	if q.TotalQuantity >= quantityDiscountThreshold {
		q.Factor = q.Factor.Add(quantityDiscountRate)
		q.Tiers = append(q.Tiers, quantityDiscountLabel)
	}

	// the order being placed counts as the next one
	if completedOrders > 0 && (completedOrders+1)%loyaltyOrderPeriod == 0 {
		q.Factor = q.Factor.Add(loyaltyDiscountRate)
		q.Tiers = append(q.Tiers, loyaltyDiscountLabel)
	}

	q.Discount = q.Subtotal.Mul(q.Factor)
	q.Total = q.Subtotal.Sub(q.Discount)
	return q
}

func validateOrderItems(items []model.OrderItem) error {
	if len(items) == 0 {
		return ErrEmptyOrder
	}

	for _, item := range items {
		if item.BookID <= 0 {
			return ErrInvalidBookID
		}
		if item.Quantity <= 0 {
			return ErrInvalidQuantity
		}
		if item.Quantity > maxQuantity {
			return ErrQuantityTooLarge
		}
		if item.UnitPrice.IsNegative() {
			return ErrInvalidPrice
		}
	}
	return nil
}
