package routes

import (
	"net/http"
	"time"

	"openfashion/handlers"
	"openfashion/logger"
	"openfashion/metrics"
	"openfashion/middleware"
	"openfashion/websocket"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
)

// Options carries what the router needs besides the handlers.
type Options struct {
	Secret         string
	AllowedOrigins []string
	Hub            *websocket.Manager
	// Limiter applies to every route, AuthLimiter additionally to login and register.
	Limiter     middleware.Limiter
	AuthLimiter middleware.Limiter
}

func SetupRouter(h *handlers.Handler, opts Options) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger.Get()))
	router.Use(middleware.Metrics())

	router.Use(cors.New(cors.Config{
		AllowOrigins:     opts.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS", "PATCH"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "Accept", "X-Requested-With", "Stripe-Signature"},
		ExposeHeaders:    []string{"Content-Length", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	// Ops endpoints sit outside the rate limit.
	router.GET("/health", handlers.HealthCheck)
	router.GET("/api/health", handlers.HealthCheck)
	router.GET("/metrics", gin.WrapH(metrics.Handler()))

	router.GET("/ws", gin.WrapF(websocket.WebSocketHandler(opts.Hub,
		func(token string) (string, error) { return middleware.ParseToken(opts.Secret, token) },
		originAllowed(opts.AllowedOrigins),
	)))

	api := router.Group("/api")
	if opts.Limiter != nil {
		api.Use(middleware.RateLimitMiddleware(opts.Limiter))
	}
	auth := middleware.JWTAuthMiddleware(opts.Secret)

	// Public routes
	api.POST("/subscription/webhook", h.StripeWebhook)
	api.GET("/subscription/tiers", h.GetTiers)
	api.GET("/vapid-public-key", h.GetVapidPublicKey)
	api.GET("/style/quiz-questions", h.QuizQuestions)

	authGroup := api.Group("/auth")
	{
		strict := []gin.HandlerFunc{}
		if opts.AuthLimiter != nil {
			strict = append(strict, middleware.RateLimitMiddleware(opts.AuthLimiter))
		}
		authGroup.POST("/register", append(strict, h.Register)...)
		authGroup.POST("/login", append(strict, h.Login)...)
		authGroup.POST("/google", h.GoogleAuth)
		authGroup.GET("/me", auth, h.Me)
	}

	users := api.Group("/users", auth)
	{
		users.GET("/user/:username", h.GetUser)
		users.PUT("/user/profile", h.UpdateProfile)
		users.POST("/user/follow/:username", h.Follow)
		users.POST("/user/unfollow/:username", h.Unfollow)
		users.GET("/users/search", h.SearchUsers)

		users.GET("/chat/style/start", h.StartChat)
		users.POST("/chat/style", h.ChatMessage)
		users.GET("/chat/style/profile", h.ChatProfile)
	}

	closet := api.Group("/closet", auth)
	{
		closet.GET("", h.GetCloset)
		closet.GET("/", h.GetCloset)
		closet.POST("/add", h.AddClosetItem)
		closet.PUT("/update", h.UpdateClosetItem)
		closet.DELETE("/delete", h.DeleteClosetItem)
		closet.GET("/user/:username", h.UserCloset)

		closet.POST("/outfit", h.CreateOutfit)
		closet.GET("/outfit/:id", h.GetOutfit)
		closet.GET("/outfit/user/:username", h.UserOutfits)
		closet.PUT("/outfit/:id/components", h.ReplaceOutfitComponents)
		closet.POST("/outfit/:id/components", h.AddOutfitComponent)
		closet.DELETE("/outfit/:id", h.DeleteOutfit)
	}

	wishlist := api.Group("/wishlist", auth)
	{
		wishlist.GET("", h.GetWishlist)
		wishlist.GET("/", h.GetWishlist)
		wishlist.GET("/discover", h.DiscoverWishlist)
		wishlist.GET("/user/:user_id", h.UserWishlist)
		wishlist.POST("/add", h.AddWishlistItem)
		wishlist.DELETE("/:id", h.DeleteWishlistItem)
		wishlist.POST("/:id/like", h.LikeWishlistItem)
	}

	upload := api.Group("/upload", auth)
	{
		upload.POST("", h.UploadImage)
		upload.POST("/", h.UploadImage)
		upload.GET("/job/:id", h.GetJob)
		upload.GET("/jobs", h.ListJobs)
		upload.DELETE("/job/:id", h.DeleteJob)
		upload.POST("/upload-thumbnail", h.UploadThumbnail)
	}

	style := api.Group("/style", auth)
	{
		style.POST("/quiz/start", h.StartQuiz)
		style.POST("/quiz/submit-response", h.SubmitQuizResponse)
		style.POST("/quiz/complete", h.CompleteQuiz)
		style.GET("/quiz-status", h.QuizStatus)
		style.POST("/quiz/retake", h.RetakeQuiz)
		style.GET("/current-quiz", h.CurrentQuiz)
		style.POST("/interactions/track", h.TrackInteraction)
		style.GET("/for-you/recommendations", h.Recommendations)
		style.GET("/generate-search-queries", h.GenerateSearchQueries)
	}

	fashion := api.Group("/fashion", auth)
	{
		fashion.POST("/fashion-search", h.FashionSearch)
		fashion.GET("/fashion-search/suggestions", h.SearchSuggestions)
		fashion.GET("/fashion-search/limit", h.SearchLimit)
	}
	api.GET("/search/google-shopping", auth, h.GoogleShopping)

	subscription := api.Group("/subscription", auth)
	{
		subscription.POST("/create-customer", h.CreateCustomer)
		subscription.POST("/create-subscription", h.CreateSubscription)
		subscription.POST("/create-checkout-session", h.CreateCheckoutSession)
		subscription.POST("/embedded-checkout-session", h.CreateEmbeddedCheckout)
		subscription.POST("/cancel-subscription", h.CancelSubscription)
		subscription.GET("/upload-limit", h.UploadLimit)
	}

	api.POST("/push/subscribe", auth, h.SubscribePush)

	router.NoRoute(func(c *gin.Context) {
		c.JSON(http.StatusNotFound, gin.H{"error": "Route not found"})
	})

	return router
}

func originAllowed(origins []string) func(string) bool {
	allowed := make(map[string]bool, len(origins))
	for _, o := range origins {
		allowed[o] = true
	}
	return func(origin string) bool {
		return allowed["*"] || allowed[origin]
	}
}
