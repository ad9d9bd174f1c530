package server

import (
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/limiter"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"gorm.io/gorm"

	"pdfreader-backend/internal/ai"
	"pdfreader-backend/internal/annotation"
	"pdfreader-backend/internal/auth"
	"pdfreader-backend/internal/cache"
	"pdfreader-backend/internal/config"
	"pdfreader-backend/internal/handler"
	"pdfreader-backend/internal/middleware"
	"pdfreader-backend/internal/service"
)

// Server Fiber 서버 래퍼
type Server struct {
	app                 *fiber.App
	cfg                 *config.Config
	db                  *gorm.DB
	redis               *cache.RedisClient
	stores              *annotation.Manager
	authHandler         *handler.AuthHandler
	documentHandler     *handler.DocumentHandler
	annotationHandler   *handler.AnnotationHandler
	annotationWSHandler *handler.AnnotationWSHandler
	aiHandler           *handler.AIHandler
	progressHandler     *handler.ProgressHandler
	healthHandler       *handler.HealthHandler
	documentMiddleware  *middleware.DocumentMiddleware
	jwtManager          *auth.JWTManager
}

// New 새 서버 인스턴스 생성
func New(cfg *config.Config, db *gorm.DB) *Server {
	app := fiber.New(fiber.Config{
		AppName:               "PDF Reader Backend",
		ServerHeader:          "Fiber",
		StrictRouting:         true,
		CaseSensitive:         true,
		ReadTimeout:           cfg.Server.ReadTimeout,
		WriteTimeout:          cfg.Server.WriteTimeout,
		IdleTimeout:           cfg.Server.IdleTimeout,
		Prefork:               false, // WebSocket과 호환성 문제로 비활성화
		ReadBufferSize:        16384, // 16KB - 큰 헤더 허용
		WriteBufferSize:       16384,
		BodyLimit:             cfg.Upload.MaxFileSize + 1024*1024,
		DisableStartupMessage: false,
	})

	// Auth 초기화
	jwtManager := auth.NewJWTManager(
		cfg.Auth.JWTSecret,
		cfg.Auth.AccessTokenExpiry,
		cfg.Auth.RefreshTokenExpiry,
	)
	googleAuth := auth.NewGoogleAuthenticator(cfg.Auth.GoogleClientID)
	authHandler := handler.NewAuthHandler(db, jwtManager, googleAuth, cfg.Auth.SecureCookie)

	// Redis 초기화 (선택적 - 죽어도 주석 백업만 비활성화)
	var redisClient *cache.RedisClient
	if cfg.Redis.Addr != "" {
		var err error
		redisClient, err = cache.NewRedisClient(cfg.Redis.Addr, cfg.Redis.Password)
		if err != nil {
			log.Printf("⚠️ Redis initialization failed: %v (annotation backup disabled)", err)
			redisClient = nil
		}
	}

	// 주석 스토어 초기화
	persister := service.NewAnnotationPersister(db)
	var backup annotation.Backup
	if redisClient != nil {
		backup = redisClient
	} else {
		backup = annotation.NoopBackup{}
	}
	stores := annotation.NewManager(func(userID, documentID int64) *annotation.Store {
		return annotation.NewStore(userID, documentID, persister, backup, cfg.Sync.RetryInterval)
	})

	// AI 클라이언트 초기화 (선택적)
	var aiClient *ai.Client
	if cfg.AI.Enabled && cfg.AI.APIKey != "" {
		aiClient = ai.NewClient(cfg.AI.APIKey, cfg.AI.Model)
		log.Println("✅ AI features enabled")
	} else {
		log.Println("ℹ️ AI features not configured")
	}

	layers := service.NewTextLayerService(db)
	stats := service.NewStatsService(db)
	annotationWSHandler := handler.NewAnnotationWSHandler()

	return &Server{
		app:                 app,
		cfg:                 cfg,
		db:                  db,
		redis:               redisClient,
		stores:              stores,
		authHandler:         authHandler,
		documentHandler:     handler.NewDocumentHandler(db, redisClient, stores, cfg.Upload.Dir, cfg.Upload.MaxFileSize),
		annotationHandler:   handler.NewAnnotationHandler(db, stores, layers, annotationWSHandler),
		annotationWSHandler: annotationWSHandler,
		aiHandler:           handler.NewAIHandler(db, aiClient, redisClient, layers),
		progressHandler:     handler.NewProgressHandler(stats),
		healthHandler:       handler.NewHealthHandler(db, redisClient, aiClient != nil),
		documentMiddleware:  middleware.NewDocumentMiddleware(db),
		jwtManager:          jwtManager,
	}
}

// SetupMiddleware 미들웨어 설정
func (s *Server) SetupMiddleware() {
	// 패닉 복구
	s.app.Use(recover.New(recover.Config{
		EnableStackTrace: true,
	}))

	// 로깅
	s.app.Use(logger.New(logger.Config{
		Format:     "${time} | ${status} | ${latency} | ${ip} | ${method} ${path}\n",
		TimeFormat: "2006-01-02 15:04:05",
		TimeZone:   "Asia/Seoul",
	}))

	// CORS
	s.app.Use(cors.New(cors.Config{
		AllowOrigins:     s.cfg.CORS.AllowOrigins,
		AllowHeaders:     "Origin, Content-Type, Accept, Authorization",
		AllowMethods:     "GET, POST, PUT, PATCH, DELETE, OPTIONS",
		AllowCredentials: true,
	}))
}

// SetupRoutes 라우트 설정
func (s *Server) SetupRoutes() {
	// 헬스체크 엔드포인트
	s.app.Get("/health", s.healthHandler.Check)
	s.app.Get("/health/live", s.healthHandler.Liveness)
	s.app.Get("/health/ready", s.healthHandler.Readiness)

	// Rate Limiter 설정 (인증 엔드포인트용 - Brute Force 방지)
	authLimiter := limiter.New(limiter.Config{
		Max:        10,              // 최대 10회
		Expiration: 1 * time.Minute, // 1분당
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP() // IP 기반 제한
		},
		LimitReached: func(c *fiber.Ctx) error {
			return c.Status(fiber.StatusTooManyRequests).JSON(fiber.Map{
				"error": "too many requests, please try again later",
			})
		},
	})

	// Auth 라우트 그룹
	authGroup := s.app.Group("/auth")
	authGroup.Post("/register", authLimiter, s.authHandler.Register)
	authGroup.Post("/login", authLimiter, s.authHandler.Login)
	authGroup.Post("/google", authLimiter, s.authHandler.GoogleLogin)
	authGroup.Post("/refresh", authLimiter, s.authHandler.RefreshToken)
	authGroup.Post("/logout", auth.AuthMiddleware(s.jwtManager), s.authHandler.Logout) // 인증된 사용자만
	authGroup.Get("/me", auth.AuthMiddleware(s.jwtManager), s.authHandler.GetMe)

	// Document 라우트 그룹 (인증 필요)
	docGroup := s.app.Group("/api/documents", auth.AuthMiddleware(s.jwtManager))
	docGroup.Post("/", s.documentHandler.Upload)
	docGroup.Get("/", s.documentHandler.List)

	// 문서 하위 라우트 (소유자만)
	owned := docGroup.Group("/:documentId", s.documentMiddleware.RequireOwnership())
	owned.Get("/", s.documentHandler.Get)
	owned.Get("/file", s.documentHandler.ServeFile)
	owned.Delete("/", s.documentHandler.Delete)

	// Annotation 라우트 (문서 하위)
	owned.Get("/annotations", s.annotationHandler.ListForPage)
	owned.Post("/annotations", s.annotationHandler.Create)
	owned.Patch("/annotations/:annotationId", s.annotationHandler.Update)
	owned.Delete("/annotations/:annotationId", s.annotationHandler.Delete)
	owned.Post("/annotations/erase", s.annotationHandler.EraseAt)
	owned.Post("/annotations/:annotationId/attachments", s.annotationHandler.AddAttachment)
	owned.Get("/annotations/:annotationId/attachments", s.annotationHandler.ListAttachments)
	owned.Get("/annotations/:annotationId/attachments/:attachmentId", s.annotationHandler.ServeAttachment)
	owned.Delete("/annotations/:annotationId/attachments/:attachmentId", s.annotationHandler.DeleteAttachment)
	owned.Put("/pages/:page/textlayer", s.annotationHandler.ReportTextLayer)
	owned.Get("/pages/:page/text", s.documentHandler.PageText)

	// AI 라우트 (문서 하위)
	owned.Post("/ai/summarize", s.aiHandler.Summarize)
	owned.Post("/ai/explain", s.aiHandler.Explain)
	owned.Post("/ai/quiz", s.aiHandler.Quiz)
	owned.Post("/ai/suggestions", s.aiHandler.SuggestHighlights)

	// Reading Session 라우트 (문서 하위)
	owned.Post("/sessions", s.progressHandler.StartSession)
	owned.Post("/sessions/heartbeat", s.progressHandler.Heartbeat)
	owned.Post("/sessions/end", s.progressHandler.EndSession)
	owned.Get("/stats", s.progressHandler.DocumentStats)

	// 대시보드 통계
	s.app.Get("/api/stats/overview", auth.AuthMiddleware(s.jwtManager), s.progressHandler.Overview)

	// WebSocket 업그레이드 체크 미들웨어
	s.app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	// WebSocket 주석 동기화 엔드포인트 (문서별)
	s.app.Get("/ws/documents/:documentId", func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}

		// 쿠키에서 JWT 토큰 추출
		accessToken := c.Cookies("access_token")
		if accessToken == "" {
			// WebSocket은 JSON 응답 대신 연결 거부
			return c.SendStatus(fiber.StatusUnauthorized)
		}

		// JWT 검증
		claims, err := s.jwtManager.ValidateAccessToken(accessToken)
		if err != nil {
			return c.SendStatus(fiber.StatusUnauthorized)
		}

		documentID, err := c.ParamsInt("documentId")
		if err != nil {
			return c.SendStatus(fiber.StatusBadRequest)
		}

		// 소유자 확인
		if err := auth.CheckDocumentAccess(s.db, int64(documentID), claims.UserID); err != nil {
			return c.SendStatus(fiber.StatusForbidden)
		}

		c.Locals("documentID", int64(documentID))

		return c.Next()
	}, websocket.New(s.annotationWSHandler.HandleWebSocket, websocket.Config{
		ReadBufferSize:  s.cfg.WebSocket.ReadBufferSize,
		WriteBufferSize: s.cfg.WebSocket.WriteBufferSize,
	}))
}

// Start 서버 시작 (Graceful Shutdown 지원)
func (s *Server) Start() error {
	// Graceful Shutdown 설정
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-quit
		log.Println("🛑 Shutting down server...")
		s.stores.CloseAll()
		if s.redis != nil {
			s.redis.Close()
		}
		if err := s.app.ShutdownWithTimeout(30 * time.Second); err != nil {
			log.Fatalf("Server shutdown error: %v", err)
		}
	}()

	log.Printf("🚀 PDF Reader Backend starting on %s", s.cfg.Server.Port)
	log.Printf("📡 WebSocket endpoint: ws://localhost%s/ws/documents/:id", s.cfg.Server.Port)

	return s.app.Listen(s.cfg.Server.Port)
}

// Shutdown 서버 종료
func (s *Server) Shutdown() error {
	s.stores.CloseAll()
	return s.app.ShutdownWithTimeout(30 * time.Second)
}
