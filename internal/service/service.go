// Package service реализует бизнес-логику платформы курсов.
package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/coursehub-system/internal/cache"
	"github.com/mmeshcher/coursehub-system/internal/model"
	"github.com/mmeshcher/coursehub-system/internal/payment"
	"github.com/mmeshcher/coursehub-system/internal/repository"
	"github.com/mmeshcher/coursehub-system/internal/validation"
)

// ErrInvalidCredentials возвращается при неверной паре email/пароль.
var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAlreadyEnrolled возвращается при покупке курса, к которому уже есть доступ.
	ErrAlreadyEnrolled = errors.New("already enrolled in this course")
	// ErrCouponInvalid возвращается для несуществующего или выключенного промокода.
	ErrCouponInvalid = errors.New("invalid coupon")
	// ErrCouponExpired возвращается, если текущий момент вне окна действия промокода.
	ErrCouponExpired = errors.New("coupon expired")
	// ErrCouponExhausted возвращается при исчерпанном лимите применений промокода.
	ErrCouponExhausted = errors.New("coupon usage limit reached")
	// ErrOrderMismatch возвращается, если идентификатор заказа шлюза не совпадает с сохранённым.
	ErrOrderMismatch = errors.New("invalid gateway order id")
	// ErrVerificationFailed возвращается при несовпадении подписи платежа.
	ErrVerificationFailed = errors.New("payment verification failed")
	// ErrForbidden возвращается при попытке работать с чужим заказом или записью о доступе.
	ErrForbidden = errors.New("forbidden")
	// ErrInvalidInput возвращается при некорректных данных курса, промокода или прогресса.
	ErrInvalidInput = errors.New("invalid input")
)

const currencyINR = "INR"

// Repository описывает контракт доступа к данным, используемый сервисом.
type Repository interface {
	Close() error

	CreateUser(ctx context.Context, email, name string, passwordHash []byte, role model.Role) (int64, error)
	GetUserByEmail(ctx context.Context, email string) (*model.User, error)
	GetUserByID(ctx context.Context, id int64) (*model.User, error)

	CreateCourse(ctx context.Context, c *model.Course) (int64, error)
	GetCourseByID(ctx context.Context, id int64) (*model.Course, error)
	ListCourses(ctx context.Context, offset, limit int, search string, publishedOnly bool) ([]model.Course, int64, error)
	UpdateCourse(ctx context.Context, c *model.Course) error
	DeleteCourse(ctx context.Context, id int64) error

	CreateCoupon(ctx context.Context, c *model.Coupon) (int64, error)
	GetCouponByID(ctx context.Context, id int64) (*model.Coupon, error)
	ListCoupons(ctx context.Context, offset, limit int, search string) ([]model.Coupon, int64, error)
	UpdateCoupon(ctx context.Context, c *model.Coupon) error
	DeleteCoupon(ctx context.Context, id int64) error

	CreateOrder(ctx context.Context, o *model.Order) (*model.Order, bool, error)
	GetOrderByID(ctx context.Context, id int64) (*model.Order, error)
	GetOrderByGatewayID(ctx context.Context, razorpayOrderID string) (*model.Order, error)
	GetPendingOrderByIdempotencyKey(ctx context.Context, userID int64, key string) (*model.Order, error)
	CancelOrder(ctx context.Context, orderID int64) error
	CompleteOrderAndEnroll(ctx context.Context, orderID int64, paymentID string, signature *string) error
	ListOrders(ctx context.Context, offset, limit int, status string) ([]model.Order, int64, error)

	EnrollmentExists(ctx context.Context, userID, courseID int64) (bool, error)
	GetEnrollmentsByUser(ctx context.Context, userID int64) ([]repository.EnrollmentWithCourse, error)
	GetEnrollmentByID(ctx context.Context, id int64) (*model.Enrollment, error)
	UpdateEnrollmentProgress(ctx context.Context, id int64, progress int32, completed bool) error

	GetDashboardStats(ctx context.Context) (*model.DashboardStats, error)
}

// Gateway описывает контракт платёжного шлюза.
type Gateway interface {
	CreateOrder(ctx context.Context, req payment.OrderRequest) (*payment.GatewayOrder, error)
	VerifyPaymentSignature(orderID, paymentID, signature string) bool
	VerifyWebhookSignature(payload []byte, signature string) bool
	KeyID() string
	Sandbox() bool
}

// CourseCache описывает контракт кэша курсов.
type CourseCache interface {
	Get(ctx context.Context, id int64) (*model.Course, error)
	Set(ctx context.Context, course *model.Course) error
	Invalidate(ctx context.Context, id int64) error
}

// Service содержит бизнес-логику платформы курсов.
type Service struct {
	repo    Repository
	gateway Gateway
	cache   CourseCache
}

// NewService создаёт новый сервис с указанным репозиторием, платёжным шлюзом
// и необязательным кэшем курсов.
func NewService(repo Repository, gateway Gateway, courseCache CourseCache) *Service {
	return &Service{
		repo:    repo,
		gateway: gateway,
		cache:   courseCache,
	}
}

// Close закрывает ресурсы сервиса.
func (s *Service) Close() error {
	if s.repo != nil {
		return s.repo.Close()
	}
	return nil
}

// RegisterUser регистрирует нового пользователя с ролью STUDENT.
func (s *Service) RegisterUser(ctx context.Context, email, name, password string) (*model.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	id, err := s.repo.CreateUser(ctx, email, name, hash, model.RoleStudent)
	if err != nil {
		return nil, err
	}

	return &model.User{
		ID:    id,
		Email: email,
		Name:  name,
		Role:  model.RoleStudent,
	}, nil
}

// AuthenticateUser проверяет email и пароль пользователя.
func (s *Service) AuthenticateUser(ctx context.Context, email, password string) (*model.User, error) {
	u, err := s.repo.GetUserByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword(u.PasswordHash, []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}

	return u, nil
}

// GetCourse возвращает курс, используя кэш, если он настроен.
func (s *Service) GetCourse(ctx context.Context, id int64) (*model.Course, error) {
	if s.cache != nil {
		if course, err := s.cache.Get(ctx, id); err == nil {
			return course, nil
		} else if !errors.Is(err, cache.ErrCacheMiss) {
			// Недоступный кэш не должен ломать чтение курса.
			return s.repo.GetCourseByID(ctx, id)
		}
	}

	course, err := s.repo.GetCourseByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		_ = s.cache.Set(ctx, course)
	}

	return course, nil
}

// ListCourses возвращает страницу курсов и их общее количество.
func (s *Service) ListCourses(ctx context.Context, page, limit int, search string, publishedOnly bool) ([]model.Course, int64, error) {
	_, limit, offset := normalizePage(page, limit)
	return s.repo.ListCourses(ctx, offset, limit, search, publishedOnly)
}

// CreateCourse валидирует и сохраняет новый курс.
func (s *Service) CreateCourse(ctx context.Context, c *model.Course) (int64, error) {
	if err := validateCourse(c); err != nil {
		return 0, err
	}
	if c.Status == "" {
		c.Status = model.CourseStatusUpcoming
	}

	return s.repo.CreateCourse(ctx, c)
}

// CourseUpdate описывает частичное обновление курса.
type CourseUpdate struct {
	Slug            *string
	Title           *string
	Subtitle        *string
	Description     *string
	Price           *int64
	DiscountedPrice *int64
	Status          *model.CourseStatus
	Level           *string
	Duration        *string
}

// UpdateCourse применяет частичное обновление курса и сбрасывает его кэш.
func (s *Service) UpdateCourse(ctx context.Context, id int64, upd CourseUpdate) (*model.Course, error) {
	course, err := s.repo.GetCourseByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if upd.Slug != nil {
		course.Slug = *upd.Slug
	}
	if upd.Title != nil {
		course.Title = *upd.Title
	}
	if upd.Subtitle != nil {
		course.Subtitle = *upd.Subtitle
	}
	if upd.Description != nil {
		course.Description = *upd.Description
	}
	if upd.Price != nil {
		course.Price = *upd.Price
	}
	if upd.DiscountedPrice != nil {
		course.DiscountedPrice = upd.DiscountedPrice
	}
	if upd.Status != nil {
		course.Status = *upd.Status
	}
	if upd.Level != nil {
		course.Level = *upd.Level
	}
	if upd.Duration != nil {
		course.Duration = *upd.Duration
	}

	if err := validateCourse(course); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateCourse(ctx, course); err != nil {
		return nil, err
	}

	if s.cache != nil {
		_ = s.cache.Invalidate(ctx, id)
	}

	return course, nil
}

// DeleteCourse удаляет курс и сбрасывает его кэш.
func (s *Service) DeleteCourse(ctx context.Context, id int64) error {
	if err := s.repo.DeleteCourse(ctx, id); err != nil {
		return err
	}
	if s.cache != nil {
		_ = s.cache.Invalidate(ctx, id)
	}
	return nil
}

func validateCourse(c *model.Course) error {
	if !validation.IsValidSlug(c.Slug) {
		return fmt.Errorf("%w: invalid course slug", ErrInvalidInput)
	}
	if c.Title == "" {
		return fmt.Errorf("%w: title is required", ErrInvalidInput)
	}
	if c.Price <= 0 {
		return fmt.Errorf("%w: price must be positive", ErrInvalidInput)
	}
	if c.DiscountedPrice != nil && (*c.DiscountedPrice <= 0 || *c.DiscountedPrice > c.Price) {
		return fmt.Errorf("%w: discounted price must be positive and not exceed price", ErrInvalidInput)
	}

	switch c.Status {
	case "", model.CourseStatusUpcoming, model.CourseStatusPublished, model.CourseStatusArchived:
	default:
		return fmt.Errorf("%w: unknown course status", ErrInvalidInput)
	}

	return nil
}

// CreateCoupon валидирует и сохраняет новый промокод.
func (s *Service) CreateCoupon(ctx context.Context, c *model.Coupon) (int64, error) {
	if err := validateCoupon(c); err != nil {
		return 0, err
	}
	return s.repo.CreateCoupon(ctx, c)
}

// CouponUpdate описывает частичное обновление промокода.
type CouponUpdate struct {
	Code          *string
	DiscountValue *int64
	StartsAt      *time.Time
	ExpiresAt     *time.Time
	IsActive      *bool
	UsageLimit    *int64
}

// UpdateCoupon применяет частичное обновление промокода.
func (s *Service) UpdateCoupon(ctx context.Context, id int64, upd CouponUpdate) (*model.Coupon, error) {
	coupon, err := s.repo.GetCouponByID(ctx, id)
	if err != nil {
		return nil, err
	}

	if upd.Code != nil {
		coupon.Code = *upd.Code
	}
	if upd.DiscountValue != nil {
		coupon.DiscountValue = *upd.DiscountValue
	}
	if upd.StartsAt != nil {
		coupon.StartsAt = *upd.StartsAt
	}
	if upd.ExpiresAt != nil {
		coupon.ExpiresAt = *upd.ExpiresAt
	}
	if upd.IsActive != nil {
		coupon.IsActive = *upd.IsActive
	}
	if upd.UsageLimit != nil {
		coupon.UsageLimit = upd.UsageLimit
	}

	if err := validateCoupon(coupon); err != nil {
		return nil, err
	}

	if err := s.repo.UpdateCoupon(ctx, coupon); err != nil {
		return nil, err
	}

	return coupon, nil
}

// DeleteCoupon удаляет промокод.
func (s *Service) DeleteCoupon(ctx context.Context, id int64) error {
	return s.repo.DeleteCoupon(ctx, id)
}

// ListCoupons возвращает страницу промокодов и их общее количество.
func (s *Service) ListCoupons(ctx context.Context, page, limit int, search string) ([]model.Coupon, int64, error) {
	_, limit, offset := normalizePage(page, limit)
	return s.repo.ListCoupons(ctx, offset, limit, search)
}

func validateCoupon(c *model.Coupon) error {
	if !validation.IsValidCouponCode(c.Code) {
		return fmt.Errorf("%w: invalid coupon code", ErrInvalidInput)
	}
	if c.DiscountValue <= 0 {
		return fmt.Errorf("%w: discount value must be positive", ErrInvalidInput)
	}
	if !c.ExpiresAt.After(c.StartsAt) {
		return fmt.Errorf("%w: expiresAt must be after startsAt", ErrInvalidInput)
	}
	if c.UsageLimit != nil && *c.UsageLimit <= 0 {
		return fmt.Errorf("%w: usage limit must be positive", ErrInvalidInput)
	}
	return nil
}

// resolveCouponDiscount возвращает размер скидки промокода в минимальных
// единицах валюты либо причину, по которой он неприменим.
func resolveCouponDiscount(c *model.Coupon, now time.Time) (int64, error) {
	if c == nil || !c.IsActive {
		return 0, ErrCouponInvalid
	}
	if !c.RedeemableAt(now) {
		return 0, ErrCouponExpired
	}
	if c.Exhausted() {
		return 0, ErrCouponExhausted
	}
	return c.DiscountValue, nil
}

// InitiateOrder создаёт заказ на покупку курса: проверяет доступ и промокод,
// создаёт заказ в платёжном шлюзе и сохраняет локальный заказ в статусе
// PENDING. Повторный вызов с тем же ключом идемпотентности возвращает уже
// созданный заказ без обращения к шлюзу.
func (s *Service) InitiateOrder(ctx context.Context, userID, courseID int64, couponID *int64, idempotencyKey string) (*model.CheckoutSession, error) {
	user, err := s.repo.GetUserByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	if idempotencyKey == "" {
		idempotencyKey = uuid.NewString()
	} else {
		existing, err := s.repo.GetPendingOrderByIdempotencyKey(ctx, userID, idempotencyKey)
		if err == nil {
			return s.checkoutSession(existing), nil
		}
		if !errors.Is(err, repository.ErrOrderNotFound) {
			return nil, err
		}
	}

	enrolled, err := s.repo.EnrollmentExists(ctx, userID, courseID)
	if err != nil {
		return nil, err
	}
	if enrolled {
		return nil, ErrAlreadyEnrolled
	}

	course, err := s.repo.GetCourseByID(ctx, courseID)
	if err != nil {
		return nil, err
	}

	var (
		discount       int64
		couponRef      *int64
		discountAmount *int64
	)
	if couponID != nil {
		coupon, err := s.repo.GetCouponByID(ctx, *couponID)
		if err != nil {
			if errors.Is(err, repository.ErrCouponNotFound) {
				return nil, ErrCouponInvalid
			}
			return nil, err
		}

		discount, err = resolveCouponDiscount(coupon, time.Now())
		if err != nil {
			return nil, err
		}

		couponRef = &coupon.ID
		if discount > 0 {
			discountAmount = &discount
		}
	}

	basePrice := course.EffectivePrice()
	amount := basePrice - discount
	if amount < 0 {
		amount = 0
	}

	receipt := fmt.Sprintf("rcpt_%d", time.Now().UnixNano())

	// Сначала заказ в шлюзе: локальная запись без заказа шлюза бесполезна.
	gatewayOrder, err := s.gateway.CreateOrder(ctx, payment.OrderRequest{
		Amount:   amount,
		Currency: currencyINR,
		Receipt:  receipt,
		Notes: map[string]string{
			"customer_name":  user.Name,
			"customer_email": user.Email,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("create gateway order: %w", err)
	}

	order := &model.Order{
		UserID:          userID,
		CourseID:        courseID,
		Amount:          amount,
		OriginalAmount:  basePrice,
		DiscountAmount:  discountAmount,
		CouponID:        couponRef,
		RazorpayOrderID: gatewayOrder.ID,
		Currency:        currencyINR,
		Receipt:         receipt,
		CustomerName:    user.Name,
		CustomerEmail:   user.Email,
		IdempotencyKey:  idempotencyKey,
	}

	stored, _, err := s.repo.CreateOrder(ctx, order)
	if err != nil {
		return nil, err
	}

	return s.checkoutSession(stored), nil
}

func (s *Service) checkoutSession(o *model.Order) *model.CheckoutSession {
	return &model.CheckoutSession{
		OrderID:         o.ID,
		RazorpayOrderID: o.RazorpayOrderID,
		Amount:          o.Amount,
		Currency:        o.Currency,
		Key:             s.gateway.KeyID(),
		Customer: model.Customer{
			Name:  o.CustomerName,
			Email: o.CustomerEmail,
		},
	}
}

// VerifyPayment проверяет подтверждение платежа от клиента и атомарно
// завершает заказ вместе с созданием записи о доступе. Возвращает признак
// того, что платёж уже был подтверждён ранее.
func (s *Service) VerifyPayment(ctx context.Context, userID, orderID int64, paymentID, gatewayOrderID, signature string) (bool, error) {
	order, err := s.repo.GetOrderByID(ctx, orderID)
	if err != nil {
		return false, err
	}

	if order.UserID != userID {
		return false, ErrForbidden
	}

	if order.Status != model.OrderStatusPending {
		if order.Status == model.OrderStatusCompleted &&
			order.RazorpayPaymentID != nil && *order.RazorpayPaymentID == paymentID {
			return true, nil
		}
		return false, repository.ErrOrderProcessed
	}

	if order.RazorpayOrderID != gatewayOrderID {
		return false, ErrOrderMismatch
	}

	valid := s.gateway.VerifyPaymentSignature(gatewayOrderID, paymentID, signature)
	if !valid && !s.gateway.Sandbox() {
		if err := s.repo.CancelOrder(ctx, order.ID); err != nil {
			return false, err
		}
		return false, ErrVerificationFailed
	}

	// В тестовом режиме подпись не сохраняется.
	var sig *string
	if !s.gateway.Sandbox() {
		sig = &signature
	}

	if err := s.repo.CompleteOrderAndEnroll(ctx, order.ID, paymentID, sig); err != nil {
		return false, err
	}

	return false, nil
}

// SettleWebhookPayment завершает заказ по событию вебхука шлюза.
// Уже обработанный заказ считается успехом.
func (s *Service) SettleWebhookPayment(ctx context.Context, gatewayOrderID, paymentID string) error {
	order, err := s.repo.GetOrderByGatewayID(ctx, gatewayOrderID)
	if err != nil {
		return err
	}

	if order.Status != model.OrderStatusPending {
		return nil
	}

	if err := s.repo.CompleteOrderAndEnroll(ctx, order.ID, paymentID, nil); err != nil {
		if errors.Is(err, repository.ErrOrderProcessed) {
			return nil
		}
		return err
	}

	return nil
}

// VerifyWebhookSignature проверяет подпись вебхука шлюза.
func (s *Service) VerifyWebhookSignature(payload []byte, signature string) bool {
	return s.gateway.VerifyWebhookSignature(payload, signature)
}

// ListEnrollments возвращает записи о доступе пользователя к курсам.
func (s *Service) ListEnrollments(ctx context.Context, userID int64) ([]repository.EnrollmentWithCourse, error) {
	return s.repo.GetEnrollmentsByUser(ctx, userID)
}

// UpdateEnrollmentProgress обновляет прогресс прохождения курса.
// Прогресс 100 отмечает курс завершённым.
func (s *Service) UpdateEnrollmentProgress(ctx context.Context, userID, enrollmentID int64, progress int32) error {
	if progress < 0 || progress > 100 {
		return fmt.Errorf("%w: progress must be between 0 and 100", ErrInvalidInput)
	}

	enrollment, err := s.repo.GetEnrollmentByID(ctx, enrollmentID)
	if err != nil {
		return err
	}
	if enrollment.UserID != userID {
		return ErrForbidden
	}

	return s.repo.UpdateEnrollmentProgress(ctx, enrollmentID, progress, progress == 100)
}

// ListOrders возвращает страницу заказов для панели владельца.
func (s *Service) ListOrders(ctx context.Context, page, limit int, status string) ([]model.Order, int64, error) {
	switch status {
	case "", string(model.OrderStatusPending), string(model.OrderStatusCompleted), string(model.OrderStatusCancelled):
	default:
		return nil, 0, fmt.Errorf("%w: unknown order status", ErrInvalidInput)
	}

	_, limit, offset := normalizePage(page, limit)
	return s.repo.ListOrders(ctx, offset, limit, status)
}

// GetDashboardStats возвращает агрегированные показатели для панели владельца.
func (s *Service) GetDashboardStats(ctx context.Context) (*model.DashboardStats, error) {
	return s.repo.GetDashboardStats(ctx)
}

func normalizePage(page, limit int) (int, int, int) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit, (page - 1) * limit
}
