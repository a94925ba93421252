// Package model содержит доменные сущности платформы курсов.
package model

import "time"

// Role определяет роль пользователя на платформе.
type Role string

const (
	RoleStudent Role = "STUDENT"
	RoleOwner   Role = "OWNER"
)

// User представляет зарегистрированного пользователя платформы.
type User struct {
	ID           int64
	Email        string
	Name         string
	PasswordHash []byte
	Role         Role
	CreatedAt    time.Time
}

// CourseStatus описывает статус публикации курса.
type CourseStatus string

const (
	CourseStatusUpcoming  CourseStatus = "UPCOMING"
	CourseStatusPublished CourseStatus = "PUBLISHED"
	CourseStatusArchived  CourseStatus = "ARCHIVED"
)

// Course описывает курс каталога. Цены хранятся в минимальных единицах валюты (пайсах).
type Course struct {
	ID              int64
	Slug            string
	Title           string
	Subtitle        string
	Description     string
	Price           int64
	DiscountedPrice *int64
	Status          CourseStatus
	Level           string
	Duration        string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// EffectivePrice возвращает цену курса с учётом скидки каталога.
func (c *Course) EffectivePrice() int64 {
	if c.DiscountedPrice != nil {
		return *c.DiscountedPrice
	}
	return c.Price
}

// Coupon описывает промокод со скидкой фиксированной суммы.
type Coupon struct {
	ID            int64
	Code          string
	DiscountValue int64
	StartsAt      time.Time
	ExpiresAt     time.Time
	IsActive      bool
	UsageLimit    *int64
	UsedCount     int64
	CreatedAt     time.Time
}

// RedeemableAt сообщает, действует ли промокод в указанный момент времени.
func (c *Coupon) RedeemableAt(now time.Time) bool {
	if !c.IsActive {
		return false
	}
	if now.Before(c.StartsAt) || now.After(c.ExpiresAt) {
		return false
	}
	return true
}

// Exhausted сообщает, исчерпан ли лимит применений промокода.
func (c *Coupon) Exhausted() bool {
	return c.UsageLimit != nil && c.UsedCount >= *c.UsageLimit
}

// OrderStatus описывает статус жизненного цикла заказа.
type OrderStatus string

const (
	OrderStatusPending   OrderStatus = "PENDING"
	OrderStatusCompleted OrderStatus = "COMPLETED"
	OrderStatusCancelled OrderStatus = "CANCELLED"
)

// Order описывает одну попытку покупки курса. Суммы хранятся в пайсах.
type Order struct {
	ID                int64
	UserID            int64
	CourseID          int64
	Amount            int64
	OriginalAmount    int64
	DiscountAmount    *int64
	CouponID          *int64
	RazorpayOrderID   string
	RazorpayPaymentID *string
	RazorpaySignature *string
	Status            OrderStatus
	Currency          string
	Receipt           string
	CustomerName      string
	CustomerEmail     string
	IdempotencyKey    string
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// Enrollment описывает доступ пользователя к курсу.
type Enrollment struct {
	ID         int64
	UserID     int64
	CourseID   int64
	OrderID    *int64
	Progress   int32
	Completed  bool
	EnrolledAt time.Time
}

// Customer содержит отображаемые данные покупателя для платёжного виджета.
type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
}

// CheckoutSession содержит данные для открытия платёжного виджета на клиенте.
type CheckoutSession struct {
	OrderID         int64    `json:"orderId"`
	RazorpayOrderID string   `json:"razorpayOrderId"`
	Amount          int64    `json:"amount"`
	Currency        string   `json:"currency"`
	Key             string   `json:"key"`
	Customer        Customer `json:"customer"`
}

// DashboardStats содержит агрегированные показатели для панели владельца.
type DashboardStats struct {
	Revenue         int64
	CompletedOrders int64
	PendingOrders   int64
	CancelledOrders int64
	Enrollments     int64
	Students        int64
}
