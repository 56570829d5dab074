package http

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"coursehub/internal/auth"
	"coursehub/internal/domain"
	"coursehub/internal/service"
)

// Handler wires HTTP routes to domain services.
type Handler struct {
	users     service.UserService
	courses   service.CourseService
	purchases service.PurchaseService
	tokens    *auth.Tokens
	logger    logrus.FieldLogger
}

func NewHandler(users service.UserService, courses service.CourseService, purchases service.PurchaseService, tokens *auth.Tokens, logger logrus.FieldLogger) *Handler {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("uuidv7", func(fl validator.FieldLevel) bool {
			return domain.IsID(fl.Field().String())
		})
	}
	return &Handler{
		users:     users,
		courses:   courses,
		purchases: purchases,
		tokens:    tokens,
		logger:    logger,
	}
}

func (h *Handler) RegisterRoutes(router *gin.Engine) {
	router.Use(corsMiddleware(), requestLogger(h.logger), metricsMiddleware())

	authed := h.authMiddleware()
	instructor := requireRole(domain.RoleInstructor)
	student := requireRole(domain.RoleStudent)

	router.POST("/auth/signup", h.signup)
	router.POST("/auth/login", h.login)
	router.GET("/me", authed, h.me)

	router.POST("/courses", authed, instructor, h.createCourse)
	router.GET("/courses", h.listCourses)
	router.GET("/courses/:id", h.getCourse)
	router.PATCH("/courses/:id", authed, instructor, h.updateCourse)
	router.DELETE("/courses/:id", authed, instructor, h.deleteCourse)
	router.GET("/courses/:id/lessons", h.listLessons)
	router.GET("/courses/:id/archive", authed, h.courseArchive)
	router.POST("/lessons", authed, instructor, h.createLesson)

	router.POST("/purchases", authed, student, h.purchase)
	router.GET("/users/:id/purchases", authed, h.listPurchases)

	router.GET("/health", func(ctx *gin.Context) {
		ctx.JSON(http.StatusOK, gin.H{"ok": "ok"})
	})
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// bindJSON decodes the request body and reports a validation error on
// failure. It returns false when the response has been written.
func (h *Handler) bindJSON(c *gin.Context, dst any) bool {
	if err := c.ShouldBindJSON(dst); err != nil {
		h.logger.WithError(err).Debug("bind request")
		writeError(c, http.StatusBadRequest, "Invalid request")
		return false
	}
	return true
}

func mustIdentity(c *gin.Context) auth.Identity {
	identity, _ := identityFrom(c)
	return identity
}
