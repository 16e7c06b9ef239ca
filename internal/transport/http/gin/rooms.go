package httpgin

import (
	"io"
	"net/http"
	"time"

	"cloud.google.com/go/civil"
	"github.com/gin-gonic/gin"

	"github.com/kirinyoku/staygo/internal/domain"
	"github.com/kirinyoku/staygo/internal/service"
)

// @Summary  List room types
// @Param    sort   query  string  false  "price_per_night | rating | capacity | name"
// @Param    order  query  string  false  "asc | desc"
// @Success  200  {array}  domain.RoomType
// @Router   /rooms [get]
func handleListRooms(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		sort := domain.RoomSort{
			Field: domain.RoomSortField(c.DefaultQuery("sort", string(domain.SortByPrice))),
			Desc:  c.Query("order") == "desc",
		}
		rooms, err := svcs.Catalogue.List(c.Request.Context(), sort)
		if err != nil {
			respondErr(c, err)
			return
		}
		writeJSONWithCache(c, http.StatusOK, rooms, "public, max-age=60", true)
	}
}

// @Summary  Get room type
// @Param    id  path  int  true  "Room type ID"
// @Success  200  {object}  domain.RoomType
// @Failure  404  {object}  ErrorResponse
// @Router   /rooms/{id} [get]
func handleGetRoom(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		rt, err := svcs.Catalogue.Get(c.Request.Context(), id)
		if err != nil {
			respondErr(c, err)
			return
		}
		writeJSONWithCache(c, http.StatusOK, rt, "public, max-age=60", true)
	}
}

// @Summary  Check availability of a room type
// @Param    id         path   int     true  "Room type ID"
// @Param    check_in   query  string  true  "YYYY-MM-DD"
// @Param    check_out  query  string  true  "YYYY-MM-DD"
// @Success  200  {object}  domain.Availability
// @Failure  400  {object}  ErrorResponse
// @Failure  404  {object}  ErrorResponse
// @Router   /rooms/{id}/availability [get]
func handleRoomAvailability(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		stay, ok := parseDates(c)
		if !ok {
			return
		}
		a, err := svcs.Availability.Check(c.Request.Context(), id, stay.CheckIn, stay.CheckOut)
		if err != nil {
			respondErr(c, err)
			return
		}
		writeJSONWithCache(c, http.StatusOK, a, "public, max-age=15", true)
	}
}

// @Summary  Remaining units of every room type
// @Param    check_in   query  string  true  "YYYY-MM-DD"
// @Param    check_out  query  string  true  "YYYY-MM-DD"
// @Success  200  {array}  domain.RoomAvailability
// @Failure  400  {object}  ErrorResponse
// @Router   /rooms/availability [get]
func handleAllAvailability(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		stay, ok := parseDates(c)
		if !ok {
			return
		}
		out, err := svcs.Availability.CheckAll(c.Request.Context(), stay.CheckIn, stay.CheckOut)
		if err != nil {
			respondErr(c, err)
			return
		}
		writeJSONWithCache(c, http.StatusOK, out, "public, max-age=15", true)
	}
}

// @Summary  Price quote for one night
// @Param    id    path   int     true   "Room type ID"
// @Param    date  query  string  false  "YYYY-MM-DD, defaults to today"
// @Success  200  {object}  domain.PriceQuote
// @Failure  404  {object}  ErrorResponse
// @Router   /rooms/{id}/price [get]
func handleRoomPrice(svcs *service.Services) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		date := civil.DateOf(time.Now())
		if s := c.Query("date"); s != "" {
			d, err := domain.ParseDate(s)
			if err != nil {
				respondErr(c, err)
				return
			}
			date = d
		}
		q, err := svcs.Pricing.Quote(c.Request.Context(), id, date)
		if err != nil {
			respondErr(c, err)
			return
		}
		c.JSON(http.StatusOK, q)
	}
}

// @Summary  Stream availability changes (server-sent events)
// @Param    id         path   int     true  "Room type ID"
// @Param    check_in   query  string  true  "YYYY-MM-DD"
// @Param    check_out  query  string  true  "YYYY-MM-DD"
// @Produce  text/event-stream
// @Success  200  {object}  domain.Availability  "event: availability"
// @Router   /rooms/{id}/availability/stream [get]
func handleAvailabilityStream(svcs *service.Services, hub *StreamHub, heartbeat time.Duration) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := parseInt64Param(c, "id")
		if !ok {
			return
		}
		stay, ok := parseDates(c)
		if !ok {
			return
		}

		ctx := c.Request.Context()

		// subscribe first so a change between the first read and the loop is not lost
		changed, unsubscribe := hub.Subscribe(id)
		defer unsubscribe()

		a, err := svcs.Availability.Check(ctx, id, stay.CheckIn, stay.CheckOut)
		if err != nil {
			respondErr(c, err)
			return
		}

		c.Header("Cache-Control", "no-cache")
		c.Header("X-Accel-Buffering", "no")
		c.SSEvent("availability", a)
		c.Writer.Flush()

		ticker := time.NewTicker(heartbeat)
		defer ticker.Stop()

		c.Stream(func(_ io.Writer) bool {
			select {
			case <-ctx.Done():
				return false
			case <-ticker.C:
				c.SSEvent("ping", gin.H{"ts": time.Now().Unix()})
				return true
			case _, open := <-changed:
				if !open {
					return false
				}
				a, err := svcs.Availability.Check(ctx, id, stay.CheckIn, stay.CheckOut)
				if err != nil {
					_, msg := domain.Describe(err)
					c.SSEvent("error", ErrorResponse{Error: msg})
					return false
				}
				c.SSEvent("availability", a)
				return true
			}
		})
	}
}
