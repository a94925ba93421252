// Package repository содержит реализацию доступа к данным в PostgreSQL.
package repository

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/mmeshcher/coursehub-system/internal/model"
	"github.com/pressly/goose/v3"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// ErrUserExists возвращается при попытке создать пользователя с уже существующим email.
var (
	ErrUserExists = errors.New("user already exists")
	// ErrUserNotFound возвращается, если пользователь не найден.
	ErrUserNotFound = errors.New("user not found")
	// ErrCourseExists возвращается при попытке создать курс с уже занятым slug.
	ErrCourseExists = errors.New("course already exists")
	// ErrCourseNotFound возвращается, если курс не найден.
	ErrCourseNotFound = errors.New("course not found")
	// ErrCouponExists возвращается при попытке создать промокод с уже существующим кодом.
	ErrCouponExists = errors.New("coupon already exists")
	// ErrCouponNotFound возвращается, если промокод не найден.
	ErrCouponNotFound = errors.New("coupon not found")
	// ErrOrderNotFound возвращается, если заказ не найден.
	ErrOrderNotFound = errors.New("order not found")
	// ErrOrderProcessed возвращается при попытке перевести заказ из финального статуса.
	ErrOrderProcessed = errors.New("order already processed")
	// ErrEnrollmentNotFound возвращается, если запись о доступе к курсу не найдена.
	ErrEnrollmentNotFound = errors.New("enrollment not found")
)

const orderColumns = `id, user_id, course_id, amount, original_amount, discount_amount,
	coupon_id, razorpay_order_id, razorpay_payment_id, razorpay_signature, status,
	currency, receipt, customer_name, customer_email, idempotency_key, created_at, updated_at`

// PostgresRepository предоставляет доступ к хранилищу данных в PostgreSQL.
type PostgresRepository struct {
	pool *pgxpool.Pool
}

// NewPostgresRepository создаёт новый репозиторий и инициализирует схему БД через миграции.
func NewPostgresRepository(dsn string) (*PostgresRepository, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("parse pool config: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	r := &PostgresRepository{pool: pool}

	if err := r.runMigrations(ctx); err != nil {
		pool.Close()
		return nil, err
	}

	return r, nil
}

func (r *PostgresRepository) runMigrations(ctx context.Context) error {
	db := stdlib.OpenDBFromPool(r.pool)
	defer db.Close()

	goose.SetBaseFS(migrationsFS)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.UpContext(ctx, db, "migrations"); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}

	return nil
}

func (r *PostgresRepository) withRetry(ctx context.Context, fn func() error) error {
	var err error
	delays := []time.Duration{1 * time.Second, 3 * time.Second, 5 * time.Second}

	for i := 0; i <= len(delays); i++ {
		err = fn()
		if err == nil {
			return nil
		}

		// Если ошибка контекста — выходим сразу
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}

		// Ретраи полезны для Serialization Failure и Deadlocks.
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == pgerrcode.SerializationFailure || pgErr.Code == pgerrcode.DeadlockDetected {
				if i < len(delays) {
					time.Sleep(delays[i])
					continue
				}
			}
		}

		// Если это не pg-ошибка, но сетевая
		if isConnectionError(err) {
			if i < len(delays) {
				time.Sleep(delays[i])
				continue
			}
		}

		break
	}
	return err
}

func isConnectionError(err error) bool {
	// Упрощенная проверка на ошибки соединения
	return strings.Contains(err.Error(), "connection refused") ||
		strings.Contains(err.Error(), "broken pipe") ||
		strings.Contains(err.Error(), "connection reset by peer")
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation
}

// Close закрывает пул соединений с БД.
func (r *PostgresRepository) Close() error {
	r.pool.Close()
	return nil
}

// CreateUser создаёт нового пользователя.
func (r *PostgresRepository) CreateUser(ctx context.Context, email, name string, passwordHash []byte, role model.Role) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO users (email, name, password_hash, role) VALUES ($1, $2, $3, $4) RETURNING id`,
		email, name, passwordHash, string(role),
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: %s", ErrUserExists, email)
		}
		return 0, fmt.Errorf("create user: %w", err)
	}
	return id, nil
}

// GetUserByEmail возвращает пользователя по email.
func (r *PostgresRepository) GetUserByEmail(ctx context.Context, email string) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, email, name, password_hash, role, created_at FROM users WHERE email = $1`,
		email,
	)

	return scanUser(row)
}

// GetUserByID возвращает пользователя по идентификатору.
func (r *PostgresRepository) GetUserByID(ctx context.Context, id int64) (*model.User, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, email, name, password_hash, role, created_at FROM users WHERE id = $1`,
		id,
	)

	return scanUser(row)
}

func scanUser(row pgx.Row) (*model.User, error) {
	var u model.User
	var role string
	err := row.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &role, &u.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("get user: %w", err)
	}
	u.Role = model.Role(role)

	return &u, nil
}

// CreateCourse сохраняет новый курс и возвращает его идентификатор.
func (r *PostgresRepository) CreateCourse(ctx context.Context, c *model.Course) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO courses (slug, title, subtitle, description, price, discounted_price, status, level, duration)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		 RETURNING id`,
		c.Slug, c.Title, c.Subtitle, c.Description, c.Price, c.DiscountedPrice,
		string(c.Status), c.Level, c.Duration,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: %s", ErrCourseExists, c.Slug)
		}
		return 0, fmt.Errorf("create course: %w", err)
	}
	return id, nil
}

// GetCourseByID возвращает курс по идентификатору.
func (r *PostgresRepository) GetCourseByID(ctx context.Context, id int64) (*model.Course, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, slug, title, subtitle, description, price, discounted_price, status, level, duration, created_at, updated_at
		 FROM courses
		 WHERE id = $1`,
		id,
	)

	var c model.Course
	var status string
	err := row.Scan(&c.ID, &c.Slug, &c.Title, &c.Subtitle, &c.Description, &c.Price,
		&c.DiscountedPrice, &status, &c.Level, &c.Duration, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCourseNotFound
		}
		return nil, fmt.Errorf("get course: %w", err)
	}
	c.Status = model.CourseStatus(status)

	return &c, nil
}

// ListCourses возвращает страницу курсов и их общее количество.
// При publishedOnly выбираются только опубликованные курсы.
func (r *PostgresRepository) ListCourses(ctx context.Context, offset, limit int, search string, publishedOnly bool) ([]model.Course, int64, error) {
	where := `WHERE ($1 = '' OR title ILIKE '%' || $1 || '%' OR slug ILIKE '%' || $1 || '%')`
	if publishedOnly {
		where += ` AND status = 'PUBLISHED'`
	}

	var total int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM courses `+where, search).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count courses: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, slug, title, subtitle, description, price, discounted_price, status, level, duration, created_at, updated_at
		 FROM courses `+where+`
		 ORDER BY created_at DESC
		 OFFSET $2 LIMIT $3`,
		search, offset, limit,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("select courses: %w", err)
	}
	defer rows.Close()

	var courses []model.Course
	for rows.Next() {
		var c model.Course
		var status string
		if err := rows.Scan(&c.ID, &c.Slug, &c.Title, &c.Subtitle, &c.Description, &c.Price,
			&c.DiscountedPrice, &status, &c.Level, &c.Duration, &c.CreatedAt, &c.UpdatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan course: %w", err)
		}
		c.Status = model.CourseStatus(status)
		courses = append(courses, c)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows error: %w", err)
	}

	return courses, total, nil
}

// UpdateCourse обновляет данные курса.
func (r *PostgresRepository) UpdateCourse(ctx context.Context, c *model.Course) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE courses
		 SET slug = $2, title = $3, subtitle = $4, description = $5, price = $6,
		     discounted_price = $7, status = $8, level = $9, duration = $10, updated_at = now()
		 WHERE id = $1`,
		c.ID, c.Slug, c.Title, c.Subtitle, c.Description, c.Price,
		c.DiscountedPrice, string(c.Status), c.Level, c.Duration,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrCourseExists, c.Slug)
		}
		return fmt.Errorf("update course: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrCourseNotFound
	}
	return nil
}

// DeleteCourse удаляет курс по идентификатору.
func (r *PostgresRepository) DeleteCourse(ctx context.Context, id int64) error {
	cmdTag, err := r.pool.Exec(ctx, `DELETE FROM courses WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete course: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrCourseNotFound
	}
	return nil
}

// CreateCoupon сохраняет новый промокод и возвращает его идентификатор.
func (r *PostgresRepository) CreateCoupon(ctx context.Context, c *model.Coupon) (int64, error) {
	var id int64
	err := r.pool.QueryRow(ctx,
		`INSERT INTO coupons (code, discount_value, starts_at, expires_at, is_active, usage_limit)
		 VALUES ($1, $2, $3, $4, $5, $6)
		 RETURNING id`,
		c.Code, c.DiscountValue, c.StartsAt, c.ExpiresAt, c.IsActive, c.UsageLimit,
	).Scan(&id)
	if err != nil {
		if isUniqueViolation(err) {
			return 0, fmt.Errorf("%w: %s", ErrCouponExists, c.Code)
		}
		return 0, fmt.Errorf("create coupon: %w", err)
	}
	return id, nil
}

// GetCouponByID возвращает промокод по идентификатору.
func (r *PostgresRepository) GetCouponByID(ctx context.Context, id int64) (*model.Coupon, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, code, discount_value, starts_at, expires_at, is_active, usage_limit, used_count, created_at
		 FROM coupons
		 WHERE id = $1`,
		id,
	)

	var c model.Coupon
	err := row.Scan(&c.ID, &c.Code, &c.DiscountValue, &c.StartsAt, &c.ExpiresAt,
		&c.IsActive, &c.UsageLimit, &c.UsedCount, &c.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrCouponNotFound
		}
		return nil, fmt.Errorf("get coupon: %w", err)
	}

	return &c, nil
}

// ListCoupons возвращает страницу промокодов и их общее количество.
func (r *PostgresRepository) ListCoupons(ctx context.Context, offset, limit int, search string) ([]model.Coupon, int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM coupons WHERE ($1 = '' OR code ILIKE '%' || $1 || '%')`,
		search,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count coupons: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT id, code, discount_value, starts_at, expires_at, is_active, usage_limit, used_count, created_at
		 FROM coupons
		 WHERE ($1 = '' OR code ILIKE '%' || $1 || '%')
		 ORDER BY created_at DESC
		 OFFSET $2 LIMIT $3`,
		search, offset, limit,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("select coupons: %w", err)
	}
	defer rows.Close()

	var coupons []model.Coupon
	for rows.Next() {
		var c model.Coupon
		if err := rows.Scan(&c.ID, &c.Code, &c.DiscountValue, &c.StartsAt, &c.ExpiresAt,
			&c.IsActive, &c.UsageLimit, &c.UsedCount, &c.CreatedAt); err != nil {
			return nil, 0, fmt.Errorf("scan coupon: %w", err)
		}
		coupons = append(coupons, c)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows error: %w", err)
	}

	return coupons, total, nil
}

// UpdateCoupon обновляет данные промокода.
func (r *PostgresRepository) UpdateCoupon(ctx context.Context, c *model.Coupon) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE coupons
		 SET code = $2, discount_value = $3, starts_at = $4, expires_at = $5, is_active = $6, usage_limit = $7
		 WHERE id = $1`,
		c.ID, c.Code, c.DiscountValue, c.StartsAt, c.ExpiresAt, c.IsActive, c.UsageLimit,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrCouponExists, c.Code)
		}
		return fmt.Errorf("update coupon: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrCouponNotFound
	}
	return nil
}

// DeleteCoupon удаляет промокод по идентификатору.
func (r *PostgresRepository) DeleteCoupon(ctx context.Context, id int64) error {
	cmdTag, err := r.pool.Exec(ctx, `DELETE FROM coupons WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete coupon: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrCouponNotFound
	}
	return nil
}

// CreateOrder сохраняет заказ в статусе PENDING. Благодаря уникальным
// ограничениям повторная или конкурентная попытка покупки не создаёт
// дубликат: возвращается уже существующий незавершённый заказ и признак
// created = false.
func (r *PostgresRepository) CreateOrder(ctx context.Context, o *model.Order) (*model.Order, bool, error) {
	row := r.pool.QueryRow(ctx,
		`INSERT INTO orders (user_id, course_id, amount, original_amount, discount_amount, coupon_id,
		                     razorpay_order_id, status, currency, receipt, customer_name, customer_email, idempotency_key)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		 RETURNING `+orderColumns,
		o.UserID, o.CourseID, o.Amount, o.OriginalAmount, o.DiscountAmount, o.CouponID,
		o.RazorpayOrderID, string(model.OrderStatusPending), o.Currency, o.Receipt,
		o.CustomerName, o.CustomerEmail, o.IdempotencyKey,
	)

	created, err := scanOrder(row)
	if err == nil {
		return created, true, nil
	}

	if !isUniqueViolation(err) {
		return nil, false, fmt.Errorf("insert order: %w", err)
	}

	// Сработало одно из ограничений уникальности: либо повтор ключа
	// идемпотентности, либо параллельный PENDING-заказ на тот же курс.
	existing, idemErr := r.GetPendingOrderByIdempotencyKey(ctx, o.UserID, o.IdempotencyKey)
	if idemErr == nil {
		return existing, false, nil
	}
	if !errors.Is(idemErr, ErrOrderNotFound) {
		return nil, false, idemErr
	}

	existing, pendErr := r.getPendingOrderByCourse(ctx, o.UserID, o.CourseID)
	if pendErr != nil {
		return nil, false, fmt.Errorf("insert order: %w", err)
	}

	return existing, false, nil
}

// GetOrderByID возвращает заказ по идентификатору.
func (r *PostgresRepository) GetOrderByID(ctx context.Context, id int64) (*model.Order, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE id = $1`,
		id,
	)

	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order: %w", err)
	}
	return o, nil
}

// GetOrderByGatewayID возвращает заказ по идентификатору заказа платёжного шлюза.
func (r *PostgresRepository) GetOrderByGatewayID(ctx context.Context, razorpayOrderID string) (*model.Order, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+` FROM orders WHERE razorpay_order_id = $1`,
		razorpayOrderID,
	)

	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order by gateway id: %w", err)
	}
	return o, nil
}

// GetPendingOrderByIdempotencyKey возвращает незавершённый заказ пользователя
// по ключу идемпотентности.
func (r *PostgresRepository) GetPendingOrderByIdempotencyKey(ctx context.Context, userID int64, key string) (*model.Order, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+`
		 FROM orders
		 WHERE user_id = $1 AND idempotency_key = $2 AND status = $3`,
		userID, key, string(model.OrderStatusPending),
	)

	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get order by idempotency key: %w", err)
	}
	return o, nil
}

func (r *PostgresRepository) getPendingOrderByCourse(ctx context.Context, userID, courseID int64) (*model.Order, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT `+orderColumns+`
		 FROM orders
		 WHERE user_id = $1 AND course_id = $2 AND status = $3`,
		userID, courseID, string(model.OrderStatusPending),
	)

	o, err := scanOrder(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrOrderNotFound
		}
		return nil, fmt.Errorf("get pending order: %w", err)
	}
	return o, nil
}

// CancelOrder переводит заказ из PENDING в CANCELLED. Если заказ уже в
// финальном статусе, изменение не выполняется.
func (r *PostgresRepository) CancelOrder(ctx context.Context, orderID int64) error {
	_, err := r.pool.Exec(ctx,
		`UPDATE orders SET status = $2, updated_at = now() WHERE id = $1 AND status = $3`,
		orderID, string(model.OrderStatusCancelled), string(model.OrderStatusPending),
	)
	if err != nil {
		return fmt.Errorf("cancel order: %w", err)
	}
	return nil
}

// CompleteOrderAndEnroll атомарно переводит заказ в COMPLETED, создаёт либо
// дополняет запись о доступе к курсу и увеличивает счётчик применений
// промокода. Повторный вызов с тем же идентификатором платежа завершается
// успешно без изменений.
func (r *PostgresRepository) CompleteOrderAndEnroll(ctx context.Context, orderID int64, paymentID string, signature *string) error {
	return r.withRetry(ctx, func() error {
		return r.completeOrderAndEnroll(ctx, orderID, paymentID, signature)
	})
}

func (r *PostgresRepository) completeOrderAndEnroll(ctx context.Context, orderID int64, paymentID string, signature *string) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	// Блокируем строку заказа, чтобы сериализовать конкурентные подтверждения.
	var (
		userID, courseID  int64
		couponID          *int64
		status            string
		existingPaymentID *string
	)
	err = tx.QueryRow(ctx,
		`SELECT user_id, course_id, coupon_id, status, razorpay_payment_id
		 FROM orders
		 WHERE id = $1
		 FOR UPDATE`,
		orderID,
	).Scan(&userID, &courseID, &couponID, &status, &existingPaymentID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrOrderNotFound
		}
		return fmt.Errorf("lock order: %w", err)
	}

	if status != string(model.OrderStatusPending) {
		if status == string(model.OrderStatusCompleted) && existingPaymentID != nil && *existingPaymentID == paymentID {
			return nil
		}
		return ErrOrderProcessed
	}

	_, err = tx.Exec(ctx,
		`UPDATE orders
		 SET status = $2, razorpay_payment_id = $3, razorpay_signature = $4, updated_at = now()
		 WHERE id = $1`,
		orderID, string(model.OrderStatusCompleted), paymentID, signature,
	)
	if err != nil {
		return fmt.Errorf("complete order: %w", err)
	}

	// Запись о доступе либо создаётся, либо к существующей привязывается заказ.
	_, err = tx.Exec(ctx,
		`INSERT INTO enrollments (user_id, course_id, order_id)
		 VALUES ($1, $2, $3)
		 ON CONFLICT (user_id, course_id)
		 DO UPDATE SET order_id = COALESCE(enrollments.order_id, EXCLUDED.order_id)`,
		userID, courseID, orderID,
	)
	if err != nil {
		return fmt.Errorf("upsert enrollment: %w", err)
	}

	if couponID != nil {
		_, err = tx.Exec(ctx,
			`UPDATE coupons SET used_count = used_count + 1 WHERE id = $1`,
			*couponID,
		)
		if err != nil {
			return fmt.Errorf("increment coupon usage: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	return nil
}

// ListOrders возвращает страницу заказов, опционально отфильтрованных по статусу.
func (r *PostgresRepository) ListOrders(ctx context.Context, offset, limit int, status string) ([]model.Order, int64, error) {
	var total int64
	err := r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM orders WHERE ($1 = '' OR status = $1)`,
		status,
	).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count orders: %w", err)
	}

	rows, err := r.pool.Query(ctx,
		`SELECT `+orderColumns+`
		 FROM orders
		 WHERE ($1 = '' OR status = $1)
		 ORDER BY created_at DESC
		 OFFSET $2 LIMIT $3`,
		status, offset, limit,
	)
	if err != nil {
		return nil, 0, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	var orders []model.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, *o)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("rows error: %w", err)
	}

	return orders, total, nil
}

func scanOrder(row pgx.Row) (*model.Order, error) {
	var o model.Order
	var status string
	err := row.Scan(&o.ID, &o.UserID, &o.CourseID, &o.Amount, &o.OriginalAmount, &o.DiscountAmount,
		&o.CouponID, &o.RazorpayOrderID, &o.RazorpayPaymentID, &o.RazorpaySignature, &status,
		&o.Currency, &o.Receipt, &o.CustomerName, &o.CustomerEmail, &o.IdempotencyKey,
		&o.CreatedAt, &o.UpdatedAt)
	if err != nil {
		return nil, err
	}
	o.Status = model.OrderStatus(status)
	return &o, nil
}

// EnrollmentExists сообщает, есть ли у пользователя доступ к курсу.
func (r *PostgresRepository) EnrollmentExists(ctx context.Context, userID, courseID int64) (bool, error) {
	var exists bool
	err := r.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM enrollments WHERE user_id = $1 AND course_id = $2)`,
		userID, courseID,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("check enrollment: %w", err)
	}
	return exists, nil
}

// EnrollmentWithCourse описывает запись о доступе вместе с данными курса.
type EnrollmentWithCourse struct {
	Enrollment  model.Enrollment
	CourseSlug  string
	CourseTitle string
}

// GetEnrollmentsByUser возвращает записи о доступе пользователя к курсам.
func (r *PostgresRepository) GetEnrollmentsByUser(ctx context.Context, userID int64) ([]EnrollmentWithCourse, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT e.id, e.user_id, e.course_id, e.order_id, e.progress, e.completed, e.enrolled_at,
		        c.slug, c.title
		 FROM enrollments e
		 JOIN courses c ON c.id = e.course_id
		 WHERE e.user_id = $1
		 ORDER BY e.enrolled_at DESC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("select enrollments: %w", err)
	}
	defer rows.Close()

	var res []EnrollmentWithCourse
	for rows.Next() {
		var ec EnrollmentWithCourse
		if err := rows.Scan(&ec.Enrollment.ID, &ec.Enrollment.UserID, &ec.Enrollment.CourseID,
			&ec.Enrollment.OrderID, &ec.Enrollment.Progress, &ec.Enrollment.Completed,
			&ec.Enrollment.EnrolledAt, &ec.CourseSlug, &ec.CourseTitle); err != nil {
			return nil, fmt.Errorf("scan enrollment: %w", err)
		}
		res = append(res, ec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}

	return res, nil
}

// GetEnrollmentByID возвращает запись о доступе по идентификатору.
func (r *PostgresRepository) GetEnrollmentByID(ctx context.Context, id int64) (*model.Enrollment, error) {
	row := r.pool.QueryRow(ctx,
		`SELECT id, user_id, course_id, order_id, progress, completed, enrolled_at
		 FROM enrollments
		 WHERE id = $1`,
		id,
	)

	var e model.Enrollment
	err := row.Scan(&e.ID, &e.UserID, &e.CourseID, &e.OrderID, &e.Progress, &e.Completed, &e.EnrolledAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrEnrollmentNotFound
		}
		return nil, fmt.Errorf("get enrollment: %w", err)
	}

	return &e, nil
}

// UpdateEnrollmentProgress обновляет прогресс прохождения курса.
func (r *PostgresRepository) UpdateEnrollmentProgress(ctx context.Context, id int64, progress int32, completed bool) error {
	cmdTag, err := r.pool.Exec(ctx,
		`UPDATE enrollments SET progress = $2, completed = $3 WHERE id = $1`,
		id, progress, completed,
	)
	if err != nil {
		return fmt.Errorf("update enrollment: %w", err)
	}
	if cmdTag.RowsAffected() == 0 {
		return ErrEnrollmentNotFound
	}
	return nil
}

// GetDashboardStats возвращает агрегированные показатели для панели владельца.
func (r *PostgresRepository) GetDashboardStats(ctx context.Context) (*model.DashboardStats, error) {
	var stats model.DashboardStats

	err := r.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(amount) FILTER (WHERE status = 'COMPLETED'), 0),
		        COUNT(*) FILTER (WHERE status = 'COMPLETED'),
		        COUNT(*) FILTER (WHERE status = 'PENDING'),
		        COUNT(*) FILTER (WHERE status = 'CANCELLED')
		 FROM orders`,
	).Scan(&stats.Revenue, &stats.CompletedOrders, &stats.PendingOrders, &stats.CancelledOrders)
	if err != nil {
		return nil, fmt.Errorf("aggregate orders: %w", err)
	}

	err = r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM enrollments`).Scan(&stats.Enrollments)
	if err != nil {
		return nil, fmt.Errorf("count enrollments: %w", err)
	}

	err = r.pool.QueryRow(ctx,
		`SELECT COUNT(*) FROM users WHERE role = $1`,
		string(model.RoleStudent),
	).Scan(&stats.Students)
	if err != nil {
		return nil, fmt.Errorf("count students: %w", err)
	}

	return &stats, nil
}
