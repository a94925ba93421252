// Package handler содержит HTTP-обработчики API сервиса coursehub.
package handler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/mmeshcher/coursehub-system/internal/middleware"
	"github.com/mmeshcher/coursehub-system/internal/model"
	"github.com/mmeshcher/coursehub-system/internal/repository"
	"github.com/mmeshcher/coursehub-system/internal/service"
)

// Service определяет контракт бизнес-логики, используемой HTTP-обработчиками.
type Service interface {
	RegisterUser(ctx context.Context, email, name, password string) (*model.User, error)
	AuthenticateUser(ctx context.Context, email, password string) (*model.User, error)

	GetCourse(ctx context.Context, id int64) (*model.Course, error)
	ListCourses(ctx context.Context, page, limit int, search string, publishedOnly bool) ([]model.Course, int64, error)
	CreateCourse(ctx context.Context, c *model.Course) (int64, error)
	UpdateCourse(ctx context.Context, id int64, upd service.CourseUpdate) (*model.Course, error)
	DeleteCourse(ctx context.Context, id int64) error

	ListCoupons(ctx context.Context, page, limit int, search string) ([]model.Coupon, int64, error)
	CreateCoupon(ctx context.Context, c *model.Coupon) (int64, error)
	UpdateCoupon(ctx context.Context, id int64, upd service.CouponUpdate) (*model.Coupon, error)
	DeleteCoupon(ctx context.Context, id int64) error

	InitiateOrder(ctx context.Context, userID, courseID int64, couponID *int64, idempotencyKey string) (*model.CheckoutSession, error)
	VerifyPayment(ctx context.Context, userID, orderID int64, paymentID, gatewayOrderID, signature string) (bool, error)
	SettleWebhookPayment(ctx context.Context, gatewayOrderID, paymentID string) error
	VerifyWebhookSignature(payload []byte, signature string) bool

	ListEnrollments(ctx context.Context, userID int64) ([]repository.EnrollmentWithCourse, error)
	UpdateEnrollmentProgress(ctx context.Context, userID, enrollmentID int64, progress int32) error

	ListOrders(ctx context.Context, page, limit int, status string) ([]model.Order, int64, error)
	GetDashboardStats(ctx context.Context) (*model.DashboardStats, error)
}

// Handler реализует HTTP-обработчики API сервиса coursehub.
type Handler struct {
	service        Service
	logger         *zap.Logger
	authMiddleware *middleware.AuthMiddleware
}

// NewHandler создаёт новый экземпляр обработчика HTTP-запросов.
func NewHandler(s Service, logger *zap.Logger, auth *middleware.AuthMiddleware) *Handler {
	return &Handler{
		service:        s,
		logger:         logger,
		authMiddleware: auth,
	}
}

type envelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
	Error   string `json:"error,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, payload envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeData(w http.ResponseWriter, status int, data any) {
	writeJSON(w, status, envelope{Success: true, Data: data})
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, envelope{Success: false, Error: msg})
}

// writeServiceError переводит ошибки бизнес-логики в коды ответов API.
func (h *Handler) writeServiceError(w http.ResponseWriter, err error, op string) {
	switch {
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrCouponInvalid),
		errors.Is(err, service.ErrCouponExpired),
		errors.Is(err, service.ErrCouponExhausted):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrOrderMismatch):
		writeError(w, http.StatusBadRequest, "order does not match payment")
	case errors.Is(err, service.ErrVerificationFailed):
		writeError(w, http.StatusBadRequest, "payment verification failed")
	case errors.Is(err, repository.ErrOrderProcessed):
		writeError(w, http.StatusBadRequest, "order already processed")
	case errors.Is(err, service.ErrInvalidCredentials):
		writeError(w, http.StatusUnauthorized, "invalid credentials")
	case errors.Is(err, service.ErrForbidden):
		writeError(w, http.StatusForbidden, "access denied")
	case errors.Is(err, service.ErrAlreadyEnrolled):
		writeError(w, http.StatusNotFound, "course not available for purchase")
	case errors.Is(err, repository.ErrUserNotFound),
		errors.Is(err, repository.ErrCourseNotFound),
		errors.Is(err, repository.ErrCouponNotFound),
		errors.Is(err, repository.ErrOrderNotFound),
		errors.Is(err, repository.ErrEnrollmentNotFound):
		writeError(w, http.StatusNotFound, "not found")
	case errors.Is(err, repository.ErrUserExists):
		writeError(w, http.StatusConflict, "user already exists")
	case errors.Is(err, repository.ErrCourseExists):
		writeError(w, http.StatusConflict, "course already exists")
	case errors.Is(err, repository.ErrCouponExists):
		writeError(w, http.StatusConflict, "coupon already exists")
	default:
		h.logger.Error(op+" error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// rupeesToPaise переводит сумму в рупиях в минимальные единицы валюты.
func rupeesToPaise(v float64) int64 {
	return int64(math.Round(v * 100))
}

func paiseToRupees(v int64) float64 {
	return float64(v) / 100
}

func parseIDParam(r *http.Request, name string) (int64, error) {
	return strconv.ParseInt(chi.URLParam(r, name), 10, 64)
}

func parsePageQuery(r *http.Request) (page, limit int) {
	page, _ = strconv.Atoi(r.URL.Query().Get("page"))
	limit, _ = strconv.Atoi(r.URL.Query().Get("limit"))
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 10
	}
	if limit > 100 {
		limit = 100
	}
	return page, limit
}

type registerRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type userResponse struct {
	ID    int64  `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  string `json:"role"`
}

// Register обрабатывает регистрацию нового пользователя.
func (h *Handler) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Name == "" || req.Email == "" || len(req.Password) < 8 {
		writeError(w, http.StatusBadRequest, "name, email and password of at least 8 characters are required")
		return
	}

	user, err := h.service.RegisterUser(r.Context(), req.Email, req.Name, req.Password)
	if err != nil {
		h.writeServiceError(w, err, "register user")
		return
	}

	if err := h.authMiddleware.SetAuthCookie(w, user.ID, user.Role); err != nil {
		h.logger.Error("set auth cookie error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeData(w, http.StatusCreated, userResponse{
		ID:    user.ID,
		Name:  user.Name,
		Email: user.Email,
		Role:  string(user.Role),
	})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Login выполняет аутентификацию пользователя и установку cookie.
func (h *Handler) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Email == "" || req.Password == "" {
		writeError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	user, err := h.service.AuthenticateUser(r.Context(), req.Email, req.Password)
	if err != nil {
		h.writeServiceError(w, err, "login user")
		return
	}

	if err := h.authMiddleware.SetAuthCookie(w, user.ID, user.Role); err != nil {
		h.logger.Error("set auth cookie error", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeData(w, http.StatusOK, userResponse{
		ID:    user.ID,
		Name:  user.Name,
		Email: user.Email,
		Role:  string(user.Role),
	})
}

type courseResponse struct {
	ID              int64    `json:"id"`
	Slug            string   `json:"slug"`
	Title           string   `json:"title"`
	Subtitle        string   `json:"subtitle,omitempty"`
	Description     string   `json:"description,omitempty"`
	Price           float64  `json:"price"`
	DiscountedPrice *float64 `json:"discountedPrice,omitempty"`
	Status          string   `json:"status"`
	Level           string   `json:"level,omitempty"`
	Duration        string   `json:"duration,omitempty"`
}

func toCourseResponse(c *model.Course) courseResponse {
	resp := courseResponse{
		ID:          c.ID,
		Slug:        c.Slug,
		Title:       c.Title,
		Subtitle:    c.Subtitle,
		Description: c.Description,
		Price:       paiseToRupees(c.Price),
		Status:      string(c.Status),
		Level:       c.Level,
		Duration:    c.Duration,
	}
	if c.DiscountedPrice != nil {
		dp := paiseToRupees(*c.DiscountedPrice)
		resp.DiscountedPrice = &dp
	}
	return resp
}

type pageResponse struct {
	Items       any   `json:"items"`
	Total       int64 `json:"total"`
	TotalPages  int64 `json:"totalPages"`
	CurrentPage int   `json:"currentPage"`
	Limit       int   `json:"limit"`
}

func newPageResponse(items any, total int64, page, limit int) pageResponse {
	totalPages := (total + int64(limit) - 1) / int64(limit)
	return pageResponse{
		Items:       items,
		Total:       total,
		TotalPages:  totalPages,
		CurrentPage: page,
		Limit:       limit,
	}
}

// ListCourses возвращает страницу каталога курсов. Для не-владельцев
// показываются только опубликованные курсы.
func (h *Handler) ListCourses(w http.ResponseWriter, r *http.Request) {
	page, limit := parsePageQuery(r)
	search := r.URL.Query().Get("search")

	role, _ := middleware.GetRoleFromContext(r.Context())
	publishedOnly := role != model.RoleOwner

	courses, total, err := h.service.ListCourses(r.Context(), page, limit, search, publishedOnly)
	if err != nil {
		h.writeServiceError(w, err, "list courses")
		return
	}

	items := make([]courseResponse, 0, len(courses))
	for i := range courses {
		items = append(items, toCourseResponse(&courses[i]))
	}

	writeData(w, http.StatusOK, newPageResponse(items, total, page, limit))
}

// GetCourse возвращает один курс по идентификатору.
func (h *Handler) GetCourse(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid course id")
		return
	}

	course, err := h.service.GetCourse(r.Context(), id)
	if err != nil {
		h.writeServiceError(w, err, "get course")
		return
	}

	writeData(w, http.StatusOK, toCourseResponse(course))
}

type courseRequest struct {
	Slug            *string  `json:"slug"`
	Title           *string  `json:"title"`
	Subtitle        *string  `json:"subtitle"`
	Description     *string  `json:"description"`
	Price           *float64 `json:"price"`
	DiscountedPrice *float64 `json:"discountedPrice"`
	Status          *string  `json:"status"`
	Level           *string  `json:"level"`
	Duration        *string  `json:"duration"`
}

// CreateCourse создаёт новый курс. Доступно только владельцу.
func (h *Handler) CreateCourse(w http.ResponseWriter, r *http.Request) {
	var req courseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Slug == nil || req.Title == nil || req.Price == nil {
		writeError(w, http.StatusBadRequest, "slug, title and price are required")
		return
	}

	course := &model.Course{
		Slug:  *req.Slug,
		Title: *req.Title,
		Price: rupeesToPaise(*req.Price),
	}
	if req.Subtitle != nil {
		course.Subtitle = *req.Subtitle
	}
	if req.Description != nil {
		course.Description = *req.Description
	}
	if req.DiscountedPrice != nil {
		dp := rupeesToPaise(*req.DiscountedPrice)
		course.DiscountedPrice = &dp
	}
	if req.Status != nil {
		course.Status = model.CourseStatus(*req.Status)
	}
	if req.Level != nil {
		course.Level = *req.Level
	}
	if req.Duration != nil {
		course.Duration = *req.Duration
	}

	id, err := h.service.CreateCourse(r.Context(), course)
	if err != nil {
		h.writeServiceError(w, err, "create course")
		return
	}

	course.ID = id
	writeData(w, http.StatusCreated, toCourseResponse(course))
}

// UpdateCourse применяет частичное обновление курса. Доступно только владельцу.
func (h *Handler) UpdateCourse(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid course id")
		return
	}

	var req courseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	upd := service.CourseUpdate{
		Slug:        req.Slug,
		Title:       req.Title,
		Subtitle:    req.Subtitle,
		Description: req.Description,
		Level:       req.Level,
		Duration:    req.Duration,
	}
	if req.Price != nil {
		p := rupeesToPaise(*req.Price)
		upd.Price = &p
	}
	if req.DiscountedPrice != nil {
		dp := rupeesToPaise(*req.DiscountedPrice)
		upd.DiscountedPrice = &dp
	}
	if req.Status != nil {
		st := model.CourseStatus(*req.Status)
		upd.Status = &st
	}

	course, err := h.service.UpdateCourse(r.Context(), id, upd)
	if err != nil {
		h.writeServiceError(w, err, "update course")
		return
	}

	writeData(w, http.StatusOK, toCourseResponse(course))
}

// DeleteCourse удаляет курс. Доступно только владельцу.
func (h *Handler) DeleteCourse(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid course id")
		return
	}

	if err := h.service.DeleteCourse(r.Context(), id); err != nil {
		h.writeServiceError(w, err, "delete course")
		return
	}

	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "course deleted"})
}

type couponResponse struct {
	ID            int64   `json:"id"`
	Code          string  `json:"code"`
	DiscountValue float64 `json:"discountValue"`
	StartsAt      string  `json:"startsAt"`
	ExpiresAt     string  `json:"expiresAt"`
	IsActive      bool    `json:"isActive"`
	UsageLimit    *int64  `json:"usageLimit,omitempty"`
	UsedCount     int64   `json:"usedCount"`
}

func toCouponResponse(c *model.Coupon) couponResponse {
	return couponResponse{
		ID:            c.ID,
		Code:          c.Code,
		DiscountValue: paiseToRupees(c.DiscountValue),
		StartsAt:      c.StartsAt.Format(time.RFC3339),
		ExpiresAt:     c.ExpiresAt.Format(time.RFC3339),
		IsActive:      c.IsActive,
		UsageLimit:    c.UsageLimit,
		UsedCount:     c.UsedCount,
	}
}

// ListCoupons возвращает страницу промокодов. Доступно только владельцу.
func (h *Handler) ListCoupons(w http.ResponseWriter, r *http.Request) {
	page, limit := parsePageQuery(r)
	search := r.URL.Query().Get("search")

	coupons, total, err := h.service.ListCoupons(r.Context(), page, limit, search)
	if err != nil {
		h.writeServiceError(w, err, "list coupons")
		return
	}

	items := make([]couponResponse, 0, len(coupons))
	for i := range coupons {
		items = append(items, toCouponResponse(&coupons[i]))
	}

	writeData(w, http.StatusOK, newPageResponse(items, total, page, limit))
}

type couponRequest struct {
	Code          *string  `json:"code"`
	DiscountValue *float64 `json:"discountValue"`
	StartsAt      *string  `json:"startsAt"`
	ExpiresAt     *string  `json:"expiresAt"`
	IsActive      *bool    `json:"isActive"`
	UsageLimit    *int64   `json:"usageLimit"`
}

func parseTimeField(value *string) (*time.Time, error) {
	if value == nil {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, *value)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// CreateCoupon создаёт новый промокод. Доступно только владельцу.
func (h *Handler) CreateCoupon(w http.ResponseWriter, r *http.Request) {
	var req couponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Code == nil || req.DiscountValue == nil || req.StartsAt == nil || req.ExpiresAt == nil {
		writeError(w, http.StatusBadRequest, "code, discountValue, startsAt and expiresAt are required")
		return
	}

	startsAt, err := parseTimeField(req.StartsAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid startsAt")
		return
	}
	expiresAt, err := parseTimeField(req.ExpiresAt)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid expiresAt")
		return
	}

	coupon := &model.Coupon{
		Code:          *req.Code,
		DiscountValue: rupeesToPaise(*req.DiscountValue),
		StartsAt:      *startsAt,
		ExpiresAt:     *expiresAt,
		IsActive:      true,
		UsageLimit:    req.UsageLimit,
	}
	if req.IsActive != nil {
		coupon.IsActive = *req.IsActive
	}

	id, err := h.service.CreateCoupon(r.Context(), coupon)
	if err != nil {
		h.writeServiceError(w, err, "create coupon")
		return
	}

	coupon.ID = id
	writeData(w, http.StatusCreated, toCouponResponse(coupon))
}

// UpdateCoupon применяет частичное обновление промокода. Доступно
// только владельцу.
func (h *Handler) UpdateCoupon(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid coupon id")
		return
	}

	var req couponRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	upd := service.CouponUpdate{
		Code:       req.Code,
		IsActive:   req.IsActive,
		UsageLimit: req.UsageLimit,
	}
	if req.DiscountValue != nil {
		dv := rupeesToPaise(*req.DiscountValue)
		upd.DiscountValue = &dv
	}
	if upd.StartsAt, err = parseTimeField(req.StartsAt); err != nil {
		writeError(w, http.StatusBadRequest, "invalid startsAt")
		return
	}
	if upd.ExpiresAt, err = parseTimeField(req.ExpiresAt); err != nil {
		writeError(w, http.StatusBadRequest, "invalid expiresAt")
		return
	}

	coupon, err := h.service.UpdateCoupon(r.Context(), id, upd)
	if err != nil {
		h.writeServiceError(w, err, "update coupon")
		return
	}

	writeData(w, http.StatusOK, toCouponResponse(coupon))
}

// DeleteCoupon удаляет промокод. Доступно только владельцу.
func (h *Handler) DeleteCoupon(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid coupon id")
		return
	}

	if err := h.service.DeleteCoupon(r.Context(), id); err != nil {
		h.writeServiceError(w, err, "delete coupon")
		return
	}

	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "coupon deleted"})
}

type buyRequest struct {
	CouponID       *int64 `json:"couponId"`
	IdempotencyKey string `json:"idempotencyKey"`
}

// BuyCourse создаёт заказ на покупку курса и возвращает параметры
// платёжного виджета.
func (h *Handler) BuyCourse(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	courseID, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid course id")
		return
	}

	var req buyRequest
	if r.Body != nil && r.ContentLength != 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}

	session, err := h.service.InitiateOrder(r.Context(), userID, courseID, req.CouponID, req.IdempotencyKey)
	if err != nil {
		h.writeServiceError(w, err, "initiate order")
		return
	}

	writeData(w, http.StatusCreated, session)
}

type verifyRequest struct {
	RazorpayPaymentID string `json:"razorpay_payment_id"`
	RazorpayOrderID   string `json:"razorpay_order_id"`
	RazorpaySignature string `json:"razorpay_signature"`
}

type verifyResponse struct {
	OrderID         int64  `json:"orderId"`
	Status          string `json:"status"`
	AlreadyVerified bool   `json:"alreadyVerified"`
}

// VerifyPayment подтверждает платёж по данным, полученным клиентом
// от платёжного виджета.
func (h *Handler) VerifyPayment(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	orderID, err := parseIDParam(r, "orderID")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid order id")
		return
	}

	var req verifyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.RazorpayPaymentID == "" || req.RazorpayOrderID == "" || req.RazorpaySignature == "" {
		writeError(w, http.StatusBadRequest, "razorpay_payment_id, razorpay_order_id and razorpay_signature are required")
		return
	}

	already, err := h.service.VerifyPayment(r.Context(), userID, orderID,
		req.RazorpayPaymentID, req.RazorpayOrderID, req.RazorpaySignature)
	if err != nil {
		if errors.Is(err, service.ErrVerificationFailed) {
			middleware.RecordOrderSettled(string(model.OrderStatusCancelled))
			h.logger.Warn("payment verification failed",
				zap.Int64("orderID", orderID), zap.Int64("userID", userID))
		}
		h.writeServiceError(w, err, "verify payment")
		return
	}

	if !already {
		middleware.RecordOrderSettled(string(model.OrderStatusCompleted))
	}

	writeData(w, http.StatusOK, verifyResponse{
		OrderID:         orderID,
		Status:          string(model.OrderStatusCompleted),
		AlreadyVerified: already,
	})
}

type webhookEvent struct {
	Event   string `json:"event"`
	Payload struct {
		Payment struct {
			Entity struct {
				ID      string `json:"id"`
				OrderID string `json:"order_id"`
			} `json:"entity"`
		} `json:"payment"`
	} `json:"payload"`
}

// RazorpayWebhook обрабатывает серверные уведомления платёжного шлюза.
// Подпись считается по сырому телу запроса.
func (h *Handler) RazorpayWebhook(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	signature := r.Header.Get("X-Razorpay-Signature")
	if !h.service.VerifyWebhookSignature(body, signature) {
		h.logger.Warn("webhook signature mismatch")
		writeError(w, http.StatusBadRequest, "invalid webhook signature")
		return
	}

	var event webhookEvent
	if err := json.Unmarshal(body, &event); err != nil {
		writeError(w, http.StatusBadRequest, "invalid webhook payload")
		return
	}

	if event.Event != "payment.captured" {
		writeJSON(w, http.StatusOK, envelope{Success: true, Message: "event ignored"})
		return
	}

	entity := event.Payload.Payment.Entity
	if entity.ID == "" || entity.OrderID == "" {
		writeError(w, http.StatusBadRequest, "invalid webhook payload")
		return
	}

	if err := h.service.SettleWebhookPayment(r.Context(), entity.OrderID, entity.ID); err != nil {
		if errors.Is(err, repository.ErrOrderNotFound) {
			// Шлюз ретраит вебхуки: неизвестный заказ подтверждаем, чтобы
			// не получать его бесконечно.
			writeJSON(w, http.StatusOK, envelope{Success: true, Message: "unknown order"})
			return
		}
		h.writeServiceError(w, err, "settle webhook payment")
		return
	}

	middleware.RecordOrderSettled(string(model.OrderStatusCompleted))
	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "payment settled"})
}

type enrollmentResponse struct {
	ID          int64  `json:"id"`
	CourseID    int64  `json:"courseId"`
	CourseSlug  string `json:"courseSlug"`
	CourseTitle string `json:"courseTitle"`
	Progress    int32  `json:"progress"`
	Completed   bool   `json:"completed"`
	EnrolledAt  string `json:"enrolledAt"`
}

// ListEnrollments возвращает курсы, доступные текущему пользователю.
func (h *Handler) ListEnrollments(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	enrollments, err := h.service.ListEnrollments(r.Context(), userID)
	if err != nil {
		h.writeServiceError(w, err, "list enrollments")
		return
	}

	items := make([]enrollmentResponse, 0, len(enrollments))
	for _, e := range enrollments {
		items = append(items, enrollmentResponse{
			ID:          e.Enrollment.ID,
			CourseID:    e.Enrollment.CourseID,
			CourseSlug:  e.CourseSlug,
			CourseTitle: e.CourseTitle,
			Progress:    e.Enrollment.Progress,
			Completed:   e.Enrollment.Completed,
			EnrolledAt:  e.Enrollment.EnrolledAt.Format(time.RFC3339),
		})
	}

	writeData(w, http.StatusOK, items)
}

type progressRequest struct {
	Progress int32 `json:"progress"`
}

// UpdateProgress обновляет прогресс прохождения курса текущим пользователем.
func (h *Handler) UpdateProgress(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "authentication required")
		return
	}

	id, err := parseIDParam(r, "id")
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid enrollment id")
		return
	}

	var req progressRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := h.service.UpdateEnrollmentProgress(r.Context(), userID, id, req.Progress); err != nil {
		h.writeServiceError(w, err, "update progress")
		return
	}

	writeJSON(w, http.StatusOK, envelope{Success: true, Message: "progress updated"})
}

type orderResponse struct {
	ID              int64    `json:"id"`
	CourseID        int64    `json:"courseId"`
	Amount          float64  `json:"amount"`
	OriginalAmount  float64  `json:"originalAmount"`
	DiscountAmount  *float64 `json:"discountAmount,omitempty"`
	Status          string   `json:"status"`
	RazorpayOrderID string   `json:"razorpayOrderId"`
	CustomerName    string   `json:"customerName"`
	CustomerEmail   string   `json:"customerEmail"`
	CreatedAt       string   `json:"createdAt"`
}

// ListOrders возвращает страницу заказов. Доступно только владельцу.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	page, limit := parsePageQuery(r)
	status := r.URL.Query().Get("status")

	orders, total, err := h.service.ListOrders(r.Context(), page, limit, status)
	if err != nil {
		h.writeServiceError(w, err, "list orders")
		return
	}

	items := make([]orderResponse, 0, len(orders))
	for _, o := range orders {
		item := orderResponse{
			ID:              o.ID,
			CourseID:        o.CourseID,
			Amount:          paiseToRupees(o.Amount),
			OriginalAmount:  paiseToRupees(o.OriginalAmount),
			Status:          string(o.Status),
			RazorpayOrderID: o.RazorpayOrderID,
			CustomerName:    o.CustomerName,
			CustomerEmail:   o.CustomerEmail,
			CreatedAt:       o.CreatedAt.Format(time.RFC3339),
		}
		if o.DiscountAmount != nil {
			da := paiseToRupees(*o.DiscountAmount)
			item.DiscountAmount = &da
		}
		items = append(items, item)
	}

	writeData(w, http.StatusOK, newPageResponse(items, total, page, limit))
}

type dashboardResponse struct {
	Revenue         float64 `json:"revenue"`
	CompletedOrders int64   `json:"completedOrders"`
	PendingOrders   int64   `json:"pendingOrders"`
	CancelledOrders int64   `json:"cancelledOrders"`
	Enrollments     int64   `json:"enrollments"`
	Students        int64   `json:"students"`
}

// Dashboard возвращает сводные показатели продаж. Доступно только владельцу.
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	stats, err := h.service.GetDashboardStats(r.Context())
	if err != nil {
		h.writeServiceError(w, err, "dashboard stats")
		return
	}

	writeData(w, http.StatusOK, dashboardResponse{
		Revenue:         paiseToRupees(stats.Revenue),
		CompletedOrders: stats.CompletedOrders,
		PendingOrders:   stats.PendingOrders,
		CancelledOrders: stats.CancelledOrders,
		Enrollments:     stats.Enrollments,
		Students:        stats.Students,
	})
}
