package api

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"medschool-core/internal/behavior"
	"medschool-core/internal/chat"
	"medschool-core/internal/course"
	"medschool-core/internal/idempotency"
	"medschool-core/internal/listcache"
	"medschool-core/internal/order"
	"medschool-core/internal/recommend"
	"medschool-core/internal/session"
	"medschool-core/internal/user"
)

// Handler holds every dependency a route needs, injected once from
// cmd/server/main.go — no package-level singletons (§9).
type Handler struct {
	log zerolog.Logger

	cache      *listcache.Cache
	idempotent *idempotency.Gate
	sessions   *session.Registry
	behaviors  *behavior.Publisher
	recommend  *recommend.Recommender
	chat       *chat.Engine
	chatStore  *chat.Store
	orders     *order.Service
	courses    course.Repository
	verifier   *user.Verifier
	accessTTL  time.Duration
	adminToken string
}

// NewHandler builds a Handler from its fully-constructed dependencies.
func NewHandler(
	log zerolog.Logger,
	cache *listcache.Cache,
	idempotent *idempotency.Gate,
	sessions *session.Registry,
	behaviors *behavior.Publisher,
	recommender *recommend.Recommender,
	chatEngine *chat.Engine,
	chatStore *chat.Store,
	orders *order.Service,
	courses course.Repository,
	verifier *user.Verifier,
	accessTTL time.Duration,
	adminToken string,
) *Handler {
	return &Handler{
		log:        log.With().Str("component", "api").Logger(),
		cache:      cache,
		idempotent: idempotent,
		sessions:   sessions,
		behaviors:  behaviors,
		recommend:  recommender,
		chat:       chatEngine,
		chatStore:  chatStore,
		orders:     orders,
		courses:    courses,
		verifier:   verifier,
		accessTTL:  accessTTL,
		adminToken: adminToken,
	}
}

// Register mounts every route in SPEC_FULL.md §6's route table on r.
func (h *Handler) Register(r *gin.Engine) {
	r.GET("/health", h.Health)

	v1 := r.Group("/api/v1")

	userGroup := v1.Group("/user")
	userGroup.POST("/login", h.Login)
	userGroup.POST("/refresh-token", h.RefreshToken)

	home := v1.Group("/home", Auth(h.verifier))
	home.POST("/article-list", h.ArticleList)
	home.POST("/course-list", h.CourseList)

	ord := v1.Group("/order")
	ord.POST("/create", Auth(h.verifier), h.idempotent.Middleware(), h.CreateOrder)
	ord.POST("/notify/:payment_method", h.OrderNotify)
	ord.GET("/:order_id", Auth(h.verifier), h.GetOrder)

	rec := v1.Group("/recommendation", Auth(h.verifier))
	rec.POST("/course-recommend", h.CourseRecommend)
	rec.POST("/record-behavior", h.RecordBehavior)

	ai := v1.Group("/ai", Auth(h.verifier))
	ai.POST("/chat", h.Chat)
	ai.POST("/chat/create-session", h.CreateChatSession)

	ws := v1.Group("/ws")
	ws.GET("/:client_id", h.WebSocket)
	ws.POST("/send/:client_id", Auth(h.verifier), h.WSSend)
	ws.POST("/broadcast", Auth(h.verifier), h.WSBroadcast)

	admin := v1.Group("/admin", AdminAuth(h.adminToken))
	admin.GET("/sessions", h.AdminListSessions)
	admin.DELETE("/idempotency/:key", h.AdminForceExpireIdempotencyKey)
}

// Health is the teacher's liveness endpoint, kept as-is (§6: "kept").
func (h *Handler) Health(c *gin.Context) {
	writeOK(c, gin.H{"status": "ok"})
}
