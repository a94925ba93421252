package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	custommiddleware "github.com/mmeshcher/coursehub-system/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса coursehub.
func (h *Handler) SetupRouter() *chi.Mux {
	r := chi.NewRouter()

	r.Use(custommiddleware.GzipMiddleware)
	r.Use(custommiddleware.Logger(h.logger))
	r.Use(custommiddleware.Metrics)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", h.Register)
		r.Post("/auth/login", h.Login)

		// Каталог доступен без авторизации, но владелец видит и
		// неопубликованные курсы.
		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.OptionalMiddleware)

			r.Get("/courses", h.ListCourses)
			r.Get("/courses/{id}", h.GetCourse)
		})

		r.Group(func(r chi.Router) {
			r.Use(h.authMiddleware.Middleware)

			r.Post("/courses/{id}/buy", h.BuyCourse)
			r.Post("/orders/{orderID}/verify", h.VerifyPayment)

			r.Get("/enrollments", h.ListEnrollments)
			r.Patch("/enrollments/{id}/progress", h.UpdateProgress)

			r.Group(func(r chi.Router) {
				r.Use(h.authMiddleware.RequireOwner)

				r.Post("/courses", h.CreateCourse)
				r.Patch("/courses/{id}", h.UpdateCourse)
				r.Delete("/courses/{id}", h.DeleteCourse)

				r.Get("/coupons", h.ListCoupons)
				r.Post("/coupons", h.CreateCoupon)
				r.Patch("/coupons/{id}", h.UpdateCoupon)
				r.Delete("/coupons/{id}", h.DeleteCoupon)

				r.Get("/orders", h.ListOrders)
				r.Get("/dashboard", h.Dashboard)
			})
		})
	})

	r.Post("/webhooks/razorpay", h.RazorpayWebhook)

	r.Handle("/metrics", promhttp.Handler())

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})

	return r
}
