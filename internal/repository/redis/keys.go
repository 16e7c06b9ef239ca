package redis

import (
	"fmt"
	"time"

	"cloud.google.com/go/civil"

	"github.com/kirinyoku/staygo/internal/domain"
)

const ns = "staygo:v1"

func KeyRoom(roomTypeID int64) string {
	return fmt.Sprintf("%s:room:%d", ns, roomTypeID)
}

func KeyRoomList(sort domain.RoomSort) string {
	sort = sort.Normalize()
	dir := "asc"
	if sort.Desc {
		dir = "desc"
	}
	return fmt.Sprintf("%s:rooms:%s:%s", ns, sort.Field, dir)
}

// roomListKeys enumerates every KeyRoomList variant.
func roomListKeys() []string {
	var keys []string
	for _, f := range []domain.RoomSortField{
		domain.SortByPrice, domain.SortByRating, domain.SortByCapacity, domain.SortByName,
	} {
		keys = append(keys,
			KeyRoomList(domain.RoomSort{Field: f}),
			KeyRoomList(domain.RoomSort{Field: f, Desc: true}),
		)
	}
	return keys
}

// KeyAvailabilityGen holds a counter bumped on every inventory change of the
// room type. Availability entries embed it, so a bump orphans them all.
func KeyAvailabilityGen(roomTypeID int64) string {
	return fmt.Sprintf("%s:room:%d:avail:gen", ns, roomTypeID)
}

func KeyAvailability(roomTypeID, gen int64, checkIn, checkOut civil.Date) string {
	return fmt.Sprintf("%s:room:%d:avail:%d:%s:%s", ns, roomTypeID, gen, checkIn, checkOut)
}

func KeyRateLimit(scope, id string) string {
	return fmt.Sprintf("%s:rl:%s:%s", ns, scope, id)
}

func ChannelInventoryChanged() string {
	return ns + ":inventory:changed"
}

func KeyStats() string {
	return ns + ":admin:stats"
}

func KeyHeatmap(year int, month time.Month) string {
	return fmt.Sprintf("%s:admin:heatmap:%04d-%02d", ns, year, int(month))
}
