package router

import (
	"net/http"
	"time"

	"github.com/cph-cachet/carp-portal/internal/config"
	"github.com/cph-cachet/carp-portal/internal/handlers"

	ratelimit "github.com/JGLTechnologies/gin-rate-limit"
	"github.com/gin-contrib/cors"
	"github.com/gin-contrib/sessions"
	"github.com/gin-contrib/sessions/cookie"
	"github.com/gin-gonic/gin"
	"github.com/unrolled/secure"
	"go.uber.org/zap"
)

// Handlers are the request handlers the router dispatches to.
type Handlers struct {
	Participants *handlers.ParticipantHandler
	Deployments  *handlers.DeploymentHandler
	Health       *handlers.HealthHandler
}

func keyFunc(c *gin.Context) string {
	return c.ClientIP()
}

func errorHandler(c *gin.Context, info ratelimit.Info) {
	c.String(http.StatusTooManyRequests, "Too many requests. Try again in "+time.Until(info.ResetTime).Round(time.Second).String()+".")
}

func Setup(log *zap.Logger, conf config.ServerConfig, h Handlers) *gin.Engine {
	// Set up a new Gin router, add recovery middleware and request logging.
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(RequestID())
	router.Use(RequestLogger(log))

	if len(conf.AllowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     conf.AllowedOrigins,
			AllowMethods:     []string{http.MethodGet, http.MethodPost},
			AllowHeaders:     []string{"Origin", "Content-Type", "Accept", csrfTokenHeaderKey, requestIDHeader},
			ExposeHeaders:    []string{requestIDHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	store := cookie.NewStore([]byte(conf.SessionSecret))
	store.Options(sessions.Options{
		Path:     "/",
		HttpOnly: true,
		Secure:   conf.SecureCookies,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   86400 * 7,
	})
	router.Use(sessions.Sessions("carp-portal", store))

	// --- Now that sessions are initialized, other middleware can use them ---
	router.Use(NonceMiddleware())
	router.Use(ContentSecurityPolicy())

	secureMiddleware := secure.New(secure.Options{
		FrameDeny:          true,
		ContentTypeNosniff: true,
		BrowserXssFilter:   true,
	})
	router.Use(func(c *gin.Context) {
		if err := secureMiddleware.Process(c.Writer, c.Request); err != nil {
			c.Abort()
			return
		}
		c.Next()
	})

	router.Static("/assets", "./assets")
	router.GET("/health", h.Health.Check)

	limit := conf.SubmitRateLimit
	if limit <= 0 {
		limit = 10
	}
	limiter := ratelimit.RateLimiter(ratelimit.InMemoryStore(&ratelimit.InMemoryOptions{
		Rate:  time.Minute,
		Limit: uint(limit),
	}), &ratelimit.Options{
		ErrorHandler: errorHandler,
		KeyFunc:      keyFunc,
	})

	studies := router.Group("/studies/:studyId/deployments/:deploymentId")
	studies.Use(CSRFProtection())
	{
		studies.GET("", h.Deployments.ShowPage)
		studies.GET("/audit", h.Deployments.ListAudits)

		participant := studies.Group("/participants/:participantId")
		{
			participant.GET("", h.Participants.ShowPage)
			participant.GET("/data", h.Participants.ShowCard)
			participant.GET("/data/edit", h.Participants.EditCard)
			participant.POST("/data", limiter, h.Participants.Submit)
			participant.GET("/consent.pdf", h.Deployments.DownloadConsent)
		}
	}

	return router
}
