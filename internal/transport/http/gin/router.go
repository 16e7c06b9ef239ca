package httpgin

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/kirinyoku/staygo/internal/domain"
	redisrepo "github.com/kirinyoku/staygo/internal/repository/redis"
	"github.com/kirinyoku/staygo/internal/service"
)

type Deps struct {
	Services *service.Services
	// Idem enables Idempotency-Key on POST /reservations. Optional.
	Idem *redisrepo.IdempotencyStore
	// Streams feeds the availability change streams. Optional.
	Streams   *StreamHub
	JWTSecret []byte
	// Heartbeat is the idle interval between stream keep-alives.
	Heartbeat time.Duration
}

func NewRouter(deps Deps, logger *slog.Logger, middlewares ...gin.HandlerFunc) *gin.Engine {
	if deps.Streams == nil {
		deps.Streams = NewStreamHub()
	}

	if deps.Heartbeat <= 0 {
		deps.Heartbeat = 15 * time.Second
	}

	svcs := deps.Services

	r := gin.New()

	r.Use(gin.Recovery(), RequestIDMiddleware(), LoggingMiddleware(logger), CORS())
	for _, m := range middlewares {
		if m != nil {
			r.Use(m)
		}
	}

	// Swagger UI
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	// health
	r.GET("/healthz", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Public API
	rooms := r.Group("/rooms")
	{
		rooms.GET("", handleListRooms(svcs))
		rooms.GET("/availability", handleAllAvailability(svcs))
		rooms.GET("/:id", handleGetRoom(svcs))
		rooms.GET("/:id/availability", handleRoomAvailability(svcs))
		rooms.GET("/:id/availability/stream", handleAvailabilityStream(svcs, deps.Streams, deps.Heartbeat))
		rooms.GET("/:id/price", handleRoomPrice(svcs))
	}

	authed := r.Group("", Auth(deps.JWTSecret))

	reservations := authed.Group("/reservations")
	{
		reservations.POST("", handleCreateReservation(svcs, deps.Idem))
		reservations.GET("", handleMyReservations(svcs))
		reservations.GET("/:id", handleGetReservation(svcs))
		reservations.GET("/ref/:code", handleGetReservationByRef(svcs))
		reservations.PATCH("/:id/cancel", handleCancelReservation(svcs))
	}

	admin := authed.Group("/admin", RequireRole(domain.RoleAdmin))
	{
		admin.GET("/reservations", handleListAllReservations(svcs))
		admin.POST("/reservations/complete", handleCompleteStays(svcs))
		admin.PATCH("/reservations/:id/confirm", handleConfirmReservation(svcs))
		admin.DELETE("/reservations/:id", handleAdminCancel(svcs))
		admin.GET("/stats", handleStats(svcs))
		admin.GET("/analytics/heatmap", handleHeatmap(svcs))
		admin.POST("/rooms", handleCreateRoom(svcs))
		admin.PUT("/rooms/:id", handleUpdateRoom(svcs))
		admin.POST("/rooms/:id/pricing", handleRecordPrice(svcs))
	}

	return r
}

// --- Helpers ---

func parseInt64Param(c *gin.Context, name string) (int64, bool) {
	s := c.Param(name)
	v, err := strconv.ParseInt(s, 10, 64)
	if err != nil || v <= 0 {
		badRequest(c, "invalid "+name)
		return 0, false
	}
	return v, true
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return def
	}
	return v
}

// parseDates reads check_in and check_out from the query string. The range
// is not validated; ordering is left to the services.
func parseDates(c *gin.Context) (domain.DateRange, bool) {
	in, err := domain.ParseDate(c.Query("check_in"))
	if err != nil {
		respondErr(c, err)
		return domain.DateRange{}, false
	}
	out, err := domain.ParseDate(c.Query("check_out"))
	if err != nil {
		respondErr(c, err)
		return domain.DateRange{}, false
	}
	return domain.DateRange{CheckIn: in, CheckOut: out}, true
}
