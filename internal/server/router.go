package server

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sandwichproject/coordinator/internal/auth"
	"github.com/sandwichproject/coordinator/internal/collections"
	"github.com/sandwichproject/coordinator/internal/metrics"
	"github.com/sandwichproject/coordinator/internal/storage"
	"github.com/sandwichproject/coordinator/internal/users"
	"go.uber.org/zap"
)

const (
	userContextKey      = "sandwich_user"
	requestIDHeader     = "X-Request-ID"
	defaultHeartbeat    = 30 * time.Second
	corsPreflightMaxAge = 12 * time.Hour
)

var (
	errMissingRepository = errors.New("repository dependency required")
	errMissingSessions   = errors.New("session validator dependency required")
	errMissingUsers      = errors.New("user service dependency required")
)

// Repository is the persistence surface the handlers depend on.
type Repository interface {
	storage.Store
	ListSandwichCollections(ctx context.Context, page, limit int) (storage.CollectionPage, error)
	GetCollectionStats(ctx context.Context) (collections.Stats, error)
	Degraded() bool
}

// SessionVerifier authenticates a request from its bearer token or session cookie.
type SessionVerifier interface {
	ValidateRequest(r *http.Request) (auth.SessionClaims, error)
}

// UserDirectory resolves and administers platform users.
type UserDirectory interface {
	Resolve(ctx context.Context, claims auth.SessionClaims) (users.User, error)
	List(ctx context.Context) ([]users.User, error)
	UpdateRole(ctx context.Context, id string, role string) (users.User, error)
	SetActive(ctx context.Context, id string, active bool) (users.User, error)
}

type Dependencies struct {
	Repository     Repository
	Sessions       SessionVerifier
	Users          UserDirectory
	Realtime       *RealtimeDispatcher
	Metrics        *metrics.HTTPMetrics
	Gatherer       prometheus.Gatherer
	AllowedOrigins []string
	// HeartbeatInterval spaces keep-alive events on message streams.
	HeartbeatInterval time.Duration
	Logger            *zap.Logger
}

func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Repository == nil {
		return nil, errMissingRepository
	}
	if deps.Sessions == nil {
		return nil, errMissingSessions
	}
	if deps.Users == nil {
		return nil, errMissingUsers
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	realtime := deps.Realtime
	if realtime == nil {
		realtime = NewRealtimeDispatcher()
	}
	heartbeat := deps.HeartbeatInterval
	if heartbeat <= 0 {
		heartbeat = defaultHeartbeat
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger, deps.Metrics))
	router.Use(corsMiddleware(deps.AllowedOrigins...))

	handler := &httpHandler{
		repository: deps.Repository,
		sessions:   deps.Sessions,
		users:      deps.Users,
		realtime:   realtime,
		heartbeat:  heartbeat,
		logger:     logger,
	}

	router.GET("/healthz", handler.handleHealth)
	if deps.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(deps.Gatherer, promhttp.HandlerOpts{})))
	}

	api := router.Group("/api")
	api.Use(handler.authorizeRequest)

	api.GET("/me", handler.handleCurrentUser)
	api.GET("/users", requirePermission(auth.PermissionViewUsers), handler.handleListUsers)
	api.PATCH("/users/:id/role", requirePermission(auth.PermissionManageUsers), handler.handleUpdateUserRole)
	api.PATCH("/users/:id/active", requirePermission(auth.PermissionManageUsers), handler.handleSetUserActive)

	collectionRoutes := api.Group("/sandwich-collections")
	collectionRoutes.GET("", requirePermission(auth.PermissionViewCollections), handler.handleListCollections)
	collectionRoutes.GET("/stats", requirePermission(auth.PermissionViewCollections), handler.handleCollectionStats)
	collectionRoutes.GET("/analytics", requirePermission(auth.PermissionViewReports), handler.handleCollectionAnalytics)
	collectionRoutes.POST("", requirePermission(auth.PermissionEditData), handler.handleCreateCollection)
	collectionRoutes.PATCH("/batch-edit", requirePermission(auth.PermissionEditData), handler.handleBatchEditCollections)
	collectionRoutes.PATCH("/:id", requirePermission(auth.PermissionEditData), handler.handleUpdateCollection)
	collectionRoutes.DELETE("/batch", requirePermission(auth.PermissionDeleteData), handler.handleBatchDeleteCollections)
	collectionRoutes.DELETE("/:id", requirePermission(auth.PermissionDeleteData), handler.handleDeleteCollection)

	hostRoutes := api.Group("/hosts")
	hostRoutes.GET("", handler.handleListHosts)
	hostRoutes.GET("/:id", handler.handleGetHost)
	hostRoutes.POST("", requirePermission(auth.PermissionEditData), handler.handleCreateHost)
	hostRoutes.PATCH("/:id", requirePermission(auth.PermissionEditData), handler.handleUpdateHost)
	hostRoutes.DELETE("/:id", requirePermission(auth.PermissionDeleteData), handler.handleDeleteHost)

	recipientRoutes := api.Group("/recipients")
	recipientRoutes.GET("", handler.handleListRecipients)
	recipientRoutes.GET("/:id", handler.handleGetRecipient)
	recipientRoutes.POST("", requirePermission(auth.PermissionEditData), handler.handleCreateRecipient)
	recipientRoutes.PATCH("/:id", requirePermission(auth.PermissionEditData), handler.handleUpdateRecipient)
	recipientRoutes.DELETE("/:id", requirePermission(auth.PermissionDeleteData), handler.handleDeleteRecipient)

	driverRoutes := api.Group("/drivers")
	driverRoutes.GET("", handler.handleListDrivers)
	driverRoutes.GET("/:id", handler.handleGetDriver)
	driverRoutes.POST("", requirePermission(auth.PermissionEditData), handler.handleCreateDriver)
	driverRoutes.PATCH("/:id", requirePermission(auth.PermissionEditData), handler.handleUpdateDriver)
	driverRoutes.DELETE("/:id", requirePermission(auth.PermissionDeleteData), handler.handleDeleteDriver)

	projectRoutes := api.Group("/projects")
	projectRoutes.Use(requirePermission(auth.PermissionViewProjects))
	projectRoutes.GET("", handler.handleListProjects)
	projectRoutes.GET("/:id", handler.handleGetProject)
	projectRoutes.POST("/:id/claim", handler.handleClaimProject)
	projectRoutes.POST("", requirePermission(auth.PermissionEditData), handler.handleCreateProject)
	projectRoutes.PATCH("/:id", requirePermission(auth.PermissionEditData), handler.handleUpdateProject)
	projectRoutes.DELETE("/:id", requirePermission(auth.PermissionDeleteData), handler.handleDeleteProject)

	messageRoutes := api.Group("/messages")
	messageRoutes.Use(requirePermission(auth.PermissionGeneralChat))
	messageRoutes.GET("", handler.handleListMessages)
	messageRoutes.GET("/stream", handler.handleMessageStream)
	messageRoutes.POST("", handler.handleCreateMessage)
	messageRoutes.GET("/:id/thread", handler.handleMessageThread)
	messageRoutes.POST("/:id/replies", handler.handleCreateReply)
	messageRoutes.DELETE("/:id", requirePermission(auth.PermissionDeleteData), handler.handleDeleteMessage)

	return router, nil
}

type httpHandler struct {
	repository Repository
	sessions   SessionVerifier
	users      UserDirectory
	realtime   *RealtimeDispatcher
	heartbeat  time.Duration
	logger     *zap.Logger
}

// corsMiddleware allows credentialed requests from the listed origins. With no
// origins configured every origin is reflected, which suits local development.
func corsMiddleware(allowedOrigins ...string) gin.HandlerFunc {
	config := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Authorization", "Content-Type", "Accept", "Cache-Control", requestIDHeader},
		ExposeHeaders:    []string{requestIDHeader},
		AllowCredentials: true,
		MaxAge:           corsPreflightMaxAge,
	}
	if len(allowedOrigins) == 0 {
		config.AllowOriginFunc = func(string) bool { return true }
	} else {
		config.AllowOrigins = allowedOrigins
	}
	return cors.New(config)
}

func requestLogger(logger *zap.Logger, httpMetrics *metrics.HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		started := time.Now()
		requestID := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}
		c.Header(requestIDHeader, requestID)

		c.Next()

		elapsed := time.Since(started)
		status := c.Writer.Status()
		route := c.FullPath()
		httpMetrics.ObserveRequest(c.Request.Method, route, status, elapsed)

		fields := []zap.Field{
			zap.String("request_id", requestID),
			zap.String("method", c.Request.Method),
			zap.String("route", route),
			zap.Int("status", status),
			zap.Duration("elapsed", elapsed),
		}
		switch {
		case status >= http.StatusInternalServerError:
			logger.Error("request failed", fields...)
		case status >= http.StatusBadRequest:
			logger.Info("request rejected", fields...)
		default:
			logger.Debug("request served", fields...)
		}
	}
}

func (h *httpHandler) authorizeRequest(c *gin.Context) {
	claims, err := h.sessions.ValidateRequest(c.Request)
	if err != nil {
		if errors.Is(err, auth.ErrExpiredSessionToken) || errors.Is(err, auth.ErrMissingSessionToken) {
			h.logger.Info("session validation failed", zap.Error(err))
		} else {
			h.logger.Warn("session validation failed", zap.Error(err))
		}
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	user, err := h.users.Resolve(c.Request.Context(), claims)
	switch {
	case errors.Is(err, users.ErrInactiveUser):
		c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "account_inactive"})
		return
	case errors.Is(err, users.ErrInvalidIdentity):
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	case err != nil:
		h.logger.Error("failed to resolve session user", zap.String("user_id", claims.UserID), zap.Error(err))
		c.AbortWithStatusJSON(statusForStoreError(err), gin.H{"error": "user_resolution_failed"})
		return
	}
	c.Set(userContextKey, user)
	c.Next()
}

func requirePermission(permission auth.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		user, ok := currentUser(c)
		if !ok || !auth.HasPermission(user.Role, user.Permissions, permission) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "forbidden", "permission": string(permission)})
			return
		}
		c.Next()
	}
}

func currentUser(c *gin.Context) (users.User, bool) {
	value, ok := c.Get(userContextKey)
	if !ok {
		return users.User{}, false
	}
	user, ok := value.(users.User)
	return user, ok
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	status := "ok"
	if h.repository.Degraded() {
		status = "degraded"
	}
	c.JSON(http.StatusOK, gin.H{"status": status})
}

// respondStoreError logs a persistence failure and answers with the code.
func (h *httpHandler) respondStoreError(c *gin.Context, code string, err error) {
	h.logger.Error("storage operation failed", zap.String("code", code), zap.Error(err))
	c.JSON(statusForStoreError(err), gin.H{"error": code})
}

func statusForStoreError(err error) int {
	if errors.Is(err, storage.ErrStoreUnavailable) {
		return http.StatusServiceUnavailable
	}
	return http.StatusInternalServerError
}

// respondInvalid answers 400, listing rejected fields for validation failures.
func respondInvalid(c *gin.Context, err error) {
	var validationErr *collections.ValidationError
	if errors.As(err, &validationErr) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request", "fields": validationErr.Fields})
		return
	}
	c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_request"})
}

func respondNotFound(c *gin.Context) {
	c.JSON(http.StatusNotFound, gin.H{"error": "not_found"})
}

func pathID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_id"})
		return 0, false
	}
	return id, true
}

// queryInt parses an optional integer query parameter. Absent values yield
// fallback; malformed values answer 400.
func queryInt(c *gin.Context, name string, fallback int) (int, bool) {
	raw := strings.TrimSpace(c.Query(name))
	if raw == "" {
		return fallback, true
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid_query", "parameter": name})
		return 0, false
	}
	return value, true
}
