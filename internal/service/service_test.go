package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/mmeshcher/coursehub-system/internal/cache"
	"github.com/mmeshcher/coursehub-system/internal/model"
	"github.com/mmeshcher/coursehub-system/internal/payment"
	"github.com/mmeshcher/coursehub-system/internal/repository"
)

type stubRepo struct {
	user    *model.User
	userErr error

	course    *model.Course
	courseErr error

	coupon    *model.Coupon
	couponErr error

	enrolled bool

	order    *model.Order
	orderErr error

	pendingByKey *model.Order

	createdOrder      *model.Order
	createOrderCalled bool

	cancelCalled   bool
	completeCalled bool
	completeSig    *string
	completeErr    error

	enrollment *model.Enrollment
}

func (s *stubRepo) Close() error { return nil }

func (s *stubRepo) CreateUser(ctx context.Context, email, name string, passwordHash []byte, role model.Role) (int64, error) {
	return 1, nil
}

func (s *stubRepo) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	return s.user, s.userErr
}

func (s *stubRepo) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	return s.user, s.userErr
}

func (s *stubRepo) CreateCourse(ctx context.Context, c *model.Course) (int64, error) {
	return 1, nil
}

func (s *stubRepo) GetCourseByID(ctx context.Context, id int64) (*model.Course, error) {
	return s.course, s.courseErr
}

func (s *stubRepo) ListCourses(ctx context.Context, offset, limit int, search string, publishedOnly bool) ([]model.Course, int64, error) {
	return nil, 0, nil
}

func (s *stubRepo) UpdateCourse(ctx context.Context, c *model.Course) error { return nil }
func (s *stubRepo) DeleteCourse(ctx context.Context, id int64) error        { return nil }

func (s *stubRepo) CreateCoupon(ctx context.Context, c *model.Coupon) (int64, error) {
	return 1, nil
}

func (s *stubRepo) GetCouponByID(ctx context.Context, id int64) (*model.Coupon, error) {
	return s.coupon, s.couponErr
}

func (s *stubRepo) ListCoupons(ctx context.Context, offset, limit int, search string) ([]model.Coupon, int64, error) {
	return nil, 0, nil
}

func (s *stubRepo) UpdateCoupon(ctx context.Context, c *model.Coupon) error { return nil }
func (s *stubRepo) DeleteCoupon(ctx context.Context, id int64) error        { return nil }

func (s *stubRepo) CreateOrder(ctx context.Context, o *model.Order) (*model.Order, bool, error) {
	s.createOrderCalled = true
	s.createdOrder = o

	stored := *o
	stored.ID = 100
	stored.Status = model.OrderStatusPending
	return &stored, true, nil
}

func (s *stubRepo) GetOrderByID(ctx context.Context, id int64) (*model.Order, error) {
	return s.order, s.orderErr
}

func (s *stubRepo) GetOrderByGatewayID(ctx context.Context, razorpayOrderID string) (*model.Order, error) {
	return s.order, s.orderErr
}

func (s *stubRepo) GetPendingOrderByIdempotencyKey(ctx context.Context, userID int64, key string) (*model.Order, error) {
	if s.pendingByKey != nil {
		return s.pendingByKey, nil
	}
	return nil, repository.ErrOrderNotFound
}

func (s *stubRepo) CancelOrder(ctx context.Context, orderID int64) error {
	s.cancelCalled = true
	if s.order != nil {
		s.order.Status = model.OrderStatusCancelled
	}
	return nil
}

func (s *stubRepo) CompleteOrderAndEnroll(ctx context.Context, orderID int64, paymentID string, signature *string) error {
	s.completeCalled = true
	s.completeSig = signature
	return s.completeErr
}

func (s *stubRepo) ListOrders(ctx context.Context, offset, limit int, status string) ([]model.Order, int64, error) {
	return nil, 0, nil
}

func (s *stubRepo) EnrollmentExists(ctx context.Context, userID, courseID int64) (bool, error) {
	return s.enrolled, nil
}

func (s *stubRepo) GetEnrollmentsByUser(ctx context.Context, userID int64) ([]repository.EnrollmentWithCourse, error) {
	return nil, nil
}

func (s *stubRepo) GetEnrollmentByID(ctx context.Context, id int64) (*model.Enrollment, error) {
	if s.enrollment == nil {
		return nil, repository.ErrEnrollmentNotFound
	}
	return s.enrollment, nil
}

func (s *stubRepo) UpdateEnrollmentProgress(ctx context.Context, id int64, progress int32, completed bool) error {
	return nil
}

func (s *stubRepo) GetDashboardStats(ctx context.Context) (*model.DashboardStats, error) {
	return &model.DashboardStats{}, nil
}

type stubGateway struct {
	orderErr       error
	createCalled   bool
	validSignature bool
	sandbox        bool
}

func (g *stubGateway) CreateOrder(ctx context.Context, req payment.OrderRequest) (*payment.GatewayOrder, error) {
	g.createCalled = true
	if g.orderErr != nil {
		return nil, g.orderErr
	}
	return &payment.GatewayOrder{
		ID:       "order_GW1",
		Amount:   req.Amount,
		Currency: req.Currency,
		Receipt:  req.Receipt,
		Status:   "created",
	}, nil
}

func (g *stubGateway) VerifyPaymentSignature(orderID, paymentID, signature string) bool {
	return g.validSignature
}

func (g *stubGateway) VerifyWebhookSignature(payload []byte, signature string) bool {
	return g.validSignature
}

func (g *stubGateway) KeyID() string { return "rzp_live_key" }
func (g *stubGateway) Sandbox() bool { return g.sandbox }

type stubCache struct {
	course    *model.Course
	getCalled bool
	setCalled bool
}

func (c *stubCache) Get(ctx context.Context, id int64) (*model.Course, error) {
	c.getCalled = true
	if c.course == nil {
		return nil, cache.ErrCacheMiss
	}
	return c.course, nil
}

func (c *stubCache) Set(ctx context.Context, course *model.Course) error {
	c.setCalled = true
	c.course = course
	return nil
}

func (c *stubCache) Invalidate(ctx context.Context, id int64) error {
	c.course = nil
	return nil
}

func ptrInt64(v int64) *int64 { return &v }

func testUser() *model.User {
	return &model.User{ID: 1, Email: "student@example.com", Name: "Student", Role: model.RoleStudent}
}

func testCourse(price int64) *model.Course {
	return &model.Course{ID: 7, Slug: "golang-basics", Title: "Golang Basics", Price: price, Status: model.CourseStatusPublished}
}

func TestInitiateOrder_AlreadyEnrolled(t *testing.T) {
	repo := &stubRepo{
		user:     testUser(),
		enrolled: true,
	}
	gw := &stubGateway{}
	svc := NewService(repo, gw, nil)

	_, err := svc.InitiateOrder(context.Background(), 1, 7, nil, "")
	if !errors.Is(err, ErrAlreadyEnrolled) {
		t.Fatalf("expected ErrAlreadyEnrolled, got %v", err)
	}
	if gw.createCalled {
		t.Fatalf("gateway must not be called for enrolled user")
	}
	if repo.createOrderCalled {
		t.Fatalf("order must not be created for enrolled user")
	}
}

func TestInitiateOrder_FullPrice(t *testing.T) {
	repo := &stubRepo{
		user:   testUser(),
		course: testCourse(100000),
	}
	gw := &stubGateway{}
	svc := NewService(repo, gw, nil)

	session, err := svc.InitiateOrder(context.Background(), 1, 7, nil, "")
	if err != nil {
		t.Fatalf("InitiateOrder error: %v", err)
	}
	if session.Amount != 100000 {
		t.Fatalf("amount = %d, want 100000", session.Amount)
	}
	if session.Currency != "INR" {
		t.Fatalf("currency = %q, want INR", session.Currency)
	}
	if session.RazorpayOrderID != "order_GW1" {
		t.Fatalf("gateway order id = %q, want order_GW1", session.RazorpayOrderID)
	}
	if session.Key != "rzp_live_key" {
		t.Fatalf("key = %q, want rzp_live_key", session.Key)
	}
	if session.Customer.Email != "student@example.com" {
		t.Fatalf("customer email = %q", session.Customer.Email)
	}
	if repo.createdOrder.IdempotencyKey == "" {
		t.Fatalf("idempotency key must be generated when absent")
	}
}

func TestInitiateOrder_WithCoupon(t *testing.T) {
	now := time.Now()
	repo := &stubRepo{
		user:   testUser(),
		course: testCourse(100000),
		coupon: &model.Coupon{
			ID:            3,
			Code:          "WELCOME200",
			DiscountValue: 20000,
			StartsAt:      now.Add(-time.Hour),
			ExpiresAt:     now.Add(time.Hour),
			IsActive:      true,
		},
	}
	gw := &stubGateway{}
	svc := NewService(repo, gw, nil)

	session, err := svc.InitiateOrder(context.Background(), 1, 7, ptrInt64(3), "")
	if err != nil {
		t.Fatalf("InitiateOrder error: %v", err)
	}
	if session.Amount != 80000 {
		t.Fatalf("amount = %d, want 80000", session.Amount)
	}
	if repo.createdOrder.DiscountAmount == nil || *repo.createdOrder.DiscountAmount != 20000 {
		t.Fatalf("discount amount = %v, want 20000", repo.createdOrder.DiscountAmount)
	}
	if repo.createdOrder.CouponID == nil || *repo.createdOrder.CouponID != 3 {
		t.Fatalf("coupon id = %v, want 3", repo.createdOrder.CouponID)
	}
	if repo.createdOrder.OriginalAmount != 100000 {
		t.Fatalf("original amount = %d, want 100000", repo.createdOrder.OriginalAmount)
	}
}

func TestInitiateOrder_CouponRejections(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name    string
		coupon  *model.Coupon
		wantErr error
	}{
		{
			name: "inactive",
			coupon: &model.Coupon{
				ID: 3, Code: "OFF10", DiscountValue: 100,
				StartsAt: now.Add(-time.Hour), ExpiresAt: now.Add(time.Hour),
				IsActive: false,
			},
			wantErr: ErrCouponInvalid,
		},
		{
			name: "expired",
			coupon: &model.Coupon{
				ID: 3, Code: "OFF10", DiscountValue: 100,
				StartsAt: now.Add(-2 * time.Hour), ExpiresAt: now.Add(-time.Hour),
				IsActive: true,
			},
			wantErr: ErrCouponExpired,
		},
		{
			name: "not started",
			coupon: &model.Coupon{
				ID: 3, Code: "OFF10", DiscountValue: 100,
				StartsAt: now.Add(time.Hour), ExpiresAt: now.Add(2 * time.Hour),
				IsActive: true,
			},
			wantErr: ErrCouponExpired,
		},
		{
			name: "exhausted",
			coupon: &model.Coupon{
				ID: 3, Code: "OFF10", DiscountValue: 100,
				StartsAt: now.Add(-time.Hour), ExpiresAt: now.Add(time.Hour),
				IsActive: true, UsageLimit: ptrInt64(5), UsedCount: 5,
			},
			wantErr: ErrCouponExhausted,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &stubRepo{
				user:   testUser(),
				course: testCourse(100000),
				coupon: tt.coupon,
			}
			gw := &stubGateway{}
			svc := NewService(repo, gw, nil)

			_, err := svc.InitiateOrder(context.Background(), 1, 7, ptrInt64(3), "")
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
			if gw.createCalled {
				t.Fatalf("gateway must not be called for rejected coupon")
			}
			if repo.createOrderCalled {
				t.Fatalf("order must not be created for rejected coupon")
			}
		})
	}
}

func TestInitiateOrder_AmountNeverNegative(t *testing.T) {
	now := time.Now()
	repo := &stubRepo{
		user:   testUser(),
		course: testCourse(10000),
		coupon: &model.Coupon{
			ID: 3, Code: "MEGA500", DiscountValue: 50000,
			StartsAt: now.Add(-time.Hour), ExpiresAt: now.Add(time.Hour),
			IsActive: true,
		},
	}
	gw := &stubGateway{}
	svc := NewService(repo, gw, nil)

	session, err := svc.InitiateOrder(context.Background(), 1, 7, ptrInt64(3), "")
	if err != nil {
		t.Fatalf("InitiateOrder error: %v", err)
	}
	if session.Amount != 0 {
		t.Fatalf("amount = %d, want 0", session.Amount)
	}
}

func TestInitiateOrder_UsesDiscountedPrice(t *testing.T) {
	course := testCourse(100000)
	course.DiscountedPrice = ptrInt64(75000)

	repo := &stubRepo{
		user:   testUser(),
		course: course,
	}
	svc := NewService(repo, &stubGateway{}, nil)

	session, err := svc.InitiateOrder(context.Background(), 1, 7, nil, "")
	if err != nil {
		t.Fatalf("InitiateOrder error: %v", err)
	}
	if session.Amount != 75000 {
		t.Fatalf("amount = %d, want 75000", session.Amount)
	}
	if repo.createdOrder.OriginalAmount != 75000 {
		t.Fatalf("original amount = %d, want 75000", repo.createdOrder.OriginalAmount)
	}
}

func TestInitiateOrder_IdempotencyKeyReturnsExisting(t *testing.T) {
	repo := &stubRepo{
		user: testUser(),
		pendingByKey: &model.Order{
			ID:              55,
			UserID:          1,
			CourseID:        7,
			Amount:          100000,
			RazorpayOrderID: "order_OLD",
			Status:          model.OrderStatusPending,
			Currency:        "INR",
			CustomerName:    "Student",
			CustomerEmail:   "student@example.com",
		},
	}
	gw := &stubGateway{}
	svc := NewService(repo, gw, nil)

	session, err := svc.InitiateOrder(context.Background(), 1, 7, nil, "retry-key")
	if err != nil {
		t.Fatalf("InitiateOrder error: %v", err)
	}
	if session.OrderID != 55 {
		t.Fatalf("order id = %d, want 55", session.OrderID)
	}
	if session.RazorpayOrderID != "order_OLD" {
		t.Fatalf("gateway order id = %q, want order_OLD", session.RazorpayOrderID)
	}
	if gw.createCalled {
		t.Fatalf("gateway must not be called on idempotent retry")
	}
	if repo.createOrderCalled {
		t.Fatalf("no new order on idempotent retry")
	}
}

func TestInitiateOrder_GatewayFailureAbortsInsert(t *testing.T) {
	repo := &stubRepo{
		user:   testUser(),
		course: testCourse(100000),
	}
	gw := &stubGateway{orderErr: errors.New("gateway unavailable")}
	svc := NewService(repo, gw, nil)

	_, err := svc.InitiateOrder(context.Background(), 1, 7, nil, "")
	if err == nil {
		t.Fatalf("expected error on gateway failure")
	}
	if repo.createOrderCalled {
		t.Fatalf("local order must not be created after gateway failure")
	}
}

func pendingOrder() *model.Order {
	return &model.Order{
		ID:              100,
		UserID:          1,
		CourseID:        7,
		Amount:          100000,
		RazorpayOrderID: "order_GW1",
		Status:          model.OrderStatusPending,
		Currency:        "INR",
	}
}

func TestVerifyPayment_Success(t *testing.T) {
	repo := &stubRepo{order: pendingOrder()}
	gw := &stubGateway{validSignature: true}
	svc := NewService(repo, gw, nil)

	already, err := svc.VerifyPayment(context.Background(), 1, 100, "pay_1", "order_GW1", "sig")
	if err != nil {
		t.Fatalf("VerifyPayment error: %v", err)
	}
	if already {
		t.Fatalf("already = true for first verification")
	}
	if !repo.completeCalled {
		t.Fatalf("order must be completed")
	}
	if repo.completeSig == nil || *repo.completeSig != "sig" {
		t.Fatalf("signature must be stored in live mode")
	}
}

func TestVerifyPayment_IdempotentOnCompleted(t *testing.T) {
	payID := "pay_1"
	order := pendingOrder()
	order.Status = model.OrderStatusCompleted
	order.RazorpayPaymentID = &payID

	repo := &stubRepo{order: order}
	svc := NewService(repo, &stubGateway{validSignature: true}, nil)

	already, err := svc.VerifyPayment(context.Background(), 1, 100, "pay_1", "order_GW1", "sig")
	if err != nil {
		t.Fatalf("VerifyPayment error: %v", err)
	}
	if !already {
		t.Fatalf("already = false for repeated verification")
	}
	if repo.completeCalled {
		t.Fatalf("no second write for repeated verification")
	}
}

func TestVerifyPayment_CompletedWithAnotherPayment(t *testing.T) {
	payID := "pay_other"
	order := pendingOrder()
	order.Status = model.OrderStatusCompleted
	order.RazorpayPaymentID = &payID

	repo := &stubRepo{order: order}
	svc := NewService(repo, &stubGateway{validSignature: true}, nil)

	_, err := svc.VerifyPayment(context.Background(), 1, 100, "pay_1", "order_GW1", "sig")
	if !errors.Is(err, repository.ErrOrderProcessed) {
		t.Fatalf("expected ErrOrderProcessed, got %v", err)
	}
}

func TestVerifyPayment_ForeignOrder(t *testing.T) {
	repo := &stubRepo{order: pendingOrder()}
	svc := NewService(repo, &stubGateway{validSignature: true}, nil)

	_, err := svc.VerifyPayment(context.Background(), 2, 100, "pay_1", "order_GW1", "sig")
	if !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}

func TestVerifyPayment_GatewayOrderMismatch(t *testing.T) {
	repo := &stubRepo{order: pendingOrder()}
	svc := NewService(repo, &stubGateway{validSignature: true}, nil)

	_, err := svc.VerifyPayment(context.Background(), 1, 100, "pay_1", "order_OTHER", "sig")
	if !errors.Is(err, ErrOrderMismatch) {
		t.Fatalf("expected ErrOrderMismatch, got %v", err)
	}
	if repo.cancelCalled || repo.completeCalled {
		t.Fatalf("order status must not change on gateway id mismatch")
	}
	if repo.order.Status != model.OrderStatusPending {
		t.Fatalf("status = %s, want PENDING", repo.order.Status)
	}
}

func TestVerifyPayment_TamperedSignatureCancelsOrder(t *testing.T) {
	repo := &stubRepo{order: pendingOrder()}
	gw := &stubGateway{validSignature: false}
	svc := NewService(repo, gw, nil)

	_, err := svc.VerifyPayment(context.Background(), 1, 100, "pay_1", "order_GW1", "tampered")
	if !errors.Is(err, ErrVerificationFailed) {
		t.Fatalf("expected ErrVerificationFailed, got %v", err)
	}
	if !repo.cancelCalled {
		t.Fatalf("order must be cancelled on signature mismatch")
	}
	if repo.completeCalled {
		t.Fatalf("order must not be completed on signature mismatch")
	}
}

func TestVerifyPayment_SandboxBypassesSignature(t *testing.T) {
	repo := &stubRepo{order: pendingOrder()}
	gw := &stubGateway{validSignature: false, sandbox: true}
	svc := NewService(repo, gw, nil)

	already, err := svc.VerifyPayment(context.Background(), 1, 100, "pay_1", "order_GW1", "whatever")
	if err != nil {
		t.Fatalf("VerifyPayment error: %v", err)
	}
	if already {
		t.Fatalf("already = true for first verification")
	}
	if !repo.completeCalled {
		t.Fatalf("order must be completed in sandbox mode")
	}
	if repo.completeSig != nil {
		t.Fatalf("signature must not be stored in sandbox mode")
	}
}

func TestSettleWebhookPayment(t *testing.T) {
	repo := &stubRepo{order: pendingOrder()}
	svc := NewService(repo, &stubGateway{}, nil)

	if err := svc.SettleWebhookPayment(context.Background(), "order_GW1", "pay_1"); err != nil {
		t.Fatalf("SettleWebhookPayment error: %v", err)
	}
	if !repo.completeCalled {
		t.Fatalf("pending order must be completed from webhook")
	}

	completed := pendingOrder()
	completed.Status = model.OrderStatusCompleted
	repo = &stubRepo{order: completed}
	svc = NewService(repo, &stubGateway{}, nil)

	if err := svc.SettleWebhookPayment(context.Background(), "order_GW1", "pay_1"); err != nil {
		t.Fatalf("SettleWebhookPayment on completed order: %v", err)
	}
	if repo.completeCalled {
		t.Fatalf("completed order must not be written again")
	}
}

func TestAuthenticateUser(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("correct"), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("bcrypt: %v", err)
	}

	repo := &stubRepo{
		user: &model.User{ID: 1, Email: "u@example.com", PasswordHash: hash},
	}
	svc := NewService(repo, &stubGateway{}, nil)

	_, err = svc.AuthenticateUser(context.Background(), "u@example.com", "wrong")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}

	u, err := svc.AuthenticateUser(context.Background(), "u@example.com", "correct")
	if err != nil {
		t.Fatalf("AuthenticateUser error: %v", err)
	}
	if u.ID != 1 {
		t.Fatalf("user id = %d, want 1", u.ID)
	}
}

func TestAuthenticateUser_UnknownUser(t *testing.T) {
	repo := &stubRepo{userErr: repository.ErrUserNotFound}
	svc := NewService(repo, &stubGateway{}, nil)

	_, err := svc.AuthenticateUser(context.Background(), "ghost@example.com", "pass")
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestUpdateEnrollmentProgress(t *testing.T) {
	repo := &stubRepo{
		enrollment: &model.Enrollment{ID: 10, UserID: 1, CourseID: 7},
	}
	svc := NewService(repo, &stubGateway{}, nil)

	if err := svc.UpdateEnrollmentProgress(context.Background(), 1, 10, 50); err != nil {
		t.Fatalf("UpdateEnrollmentProgress error: %v", err)
	}

	if err := svc.UpdateEnrollmentProgress(context.Background(), 2, 10, 50); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for foreign enrollment, got %v", err)
	}

	if err := svc.UpdateEnrollmentProgress(context.Background(), 1, 10, 120); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for progress > 100, got %v", err)
	}
}

func TestGetCourse_CacheHitSkipsRepository(t *testing.T) {
	repo := &stubRepo{courseErr: repository.ErrCourseNotFound}
	c := &stubCache{course: testCourse(100000)}
	svc := NewService(repo, &stubGateway{}, c)

	course, err := svc.GetCourse(context.Background(), 7)
	if err != nil {
		t.Fatalf("GetCourse error: %v", err)
	}
	if course.ID != 7 {
		t.Fatalf("course id = %d, want 7", course.ID)
	}
	if !c.getCalled {
		t.Fatalf("cache must be consulted first")
	}
}

func TestGetCourse_CacheMissFillsCache(t *testing.T) {
	repo := &stubRepo{course: testCourse(100000)}
	c := &stubCache{}
	svc := NewService(repo, &stubGateway{}, c)

	if _, err := svc.GetCourse(context.Background(), 7); err != nil {
		t.Fatalf("GetCourse error: %v", err)
	}
	if !c.setCalled {
		t.Fatalf("course must be cached after a miss")
	}
}

func TestValidateCoupon(t *testing.T) {
	now := time.Now()

	valid := &model.Coupon{
		Code:          "WELCOME200",
		DiscountValue: 20000,
		StartsAt:      now,
		ExpiresAt:     now.Add(time.Hour),
	}
	if err := validateCoupon(valid); err != nil {
		t.Fatalf("valid coupon rejected: %v", err)
	}

	badWindow := *valid
	badWindow.ExpiresAt = now.Add(-time.Hour)
	if err := validateCoupon(&badWindow); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for inverted window, got %v", err)
	}

	badCode := *valid
	badCode.Code = "no"
	if err := validateCoupon(&badCode); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput for bad code, got %v", err)
	}
}
