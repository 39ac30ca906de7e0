// Package app wires the HTTP surface: owner-facing schedule and meeting type
// management behind auth, and the public slot listing and booking endpoints.
package app

import (
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"booking-service/internal/booking"
	"booking-service/internal/cache"
	"booking-service/internal/model"
	"booking-service/internal/store"
	"booking-service/internal/timeslot"
)

type App struct {
	Store     *store.Store
	Schedules *cache.ScheduleCache
	Bookings  *booking.Service
	Log       *slog.Logger
}

type scheduleRulePayload struct {
	DayOfWeek int    `json:"day_of_week" binding:"min=0,max=6"`
	StartTime string `json:"start_time" binding:"required"`
	EndTime   string `json:"end_time" binding:"required"`
}

type schedulePayload struct {
	Timezone string                `json:"timezone" binding:"required"`
	Rules    []scheduleRulePayload `json:"rules" binding:"required,dive"`
}

// PUT /api/owners/:id/schedule
// Replaces the owner's schedule wholesale: timezone plus the full rule set.
func (a *App) SaveScheduleHandler(c *gin.Context) {
	ownerID := c.Param("id")
	var payload schedulePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": bindingFieldErrors(err)})
		return
	}

	if _, err := time.LoadLocation(payload.Timezone); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed",
			"fields": gin.H{"timezone": "unknown IANA timezone"}})
		return
	}

	sched := model.Schedule{OwnerID: ownerID, Timezone: payload.Timezone}
	for i, r := range payload.Rules {
		start, err := timeslot.ParseTimeOfDay(r.StartTime)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed",
				"fields": gin.H{"rules[" + strconv.Itoa(i) + "].start_time": "must be HH:MM"}})
			return
		}
		end, err := timeslot.ParseTimeOfDay(r.EndTime)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed",
				"fields": gin.H{"rules[" + strconv.Itoa(i) + "].end_time": "must be HH:MM"}})
			return
		}
		if !start.Before(end) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed",
				"fields": gin.H{"rules[" + strconv.Itoa(i) + "].end_time": "must be after start_time"}})
			return
		}
		sched.Rules = append(sched.Rules, timeslot.Rule{
			Weekday: time.Weekday(r.DayOfWeek),
			Start:   start,
			End:     end,
		})
	}

	if err := a.Store.SaveSchedule(c.Request.Context(), &sched); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	a.Schedules.Invalidate(ownerID)
	c.JSON(http.StatusOK, sched)
}

// GET /api/owners/:id/schedule
func (a *App) GetScheduleHandler(c *gin.Context) {
	sched, err := a.Store.GetSchedule(c.Request.Context(), c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "schedule not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, sched)
}

type meetingTypePayload struct {
	Name            string `json:"name" binding:"required"`
	Description     string `json:"description"`
	DurationMinutes int    `json:"duration_minutes" binding:"required,min=1"`
	BufferBefore    int    `json:"buffer_before_minutes" binding:"min=0"`
	BufferAfter     int    `json:"buffer_after_minutes" binding:"min=0"`
	MinAdvanceHours int    `json:"min_advance_booking_hours" binding:"min=0"`
	MaxAdvanceDays  int    `json:"max_advance_booking_days" binding:"required,min=1"`
	IsActive        *bool  `json:"is_active"`
}

func (p meetingTypePayload) toModel(ownerID string) model.MeetingType {
	active := true
	if p.IsActive != nil {
		active = *p.IsActive
	}
	return model.MeetingType{
		OwnerID:         ownerID,
		Name:            p.Name,
		Description:     p.Description,
		DurationMinutes: p.DurationMinutes,
		BufferBefore:    p.BufferBefore,
		BufferAfter:     p.BufferAfter,
		MinAdvanceHours: p.MinAdvanceHours,
		MaxAdvanceDays:  p.MaxAdvanceDays,
		IsActive:        active,
	}
}

// POST /api/owners/:id/meeting-types
func (a *App) CreateMeetingTypeHandler(c *gin.Context) {
	var payload meetingTypePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": bindingFieldErrors(err)})
		return
	}
	mt := payload.toModel(c.Param("id"))
	if err := a.Store.CreateMeetingType(c.Request.Context(), &mt); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusCreated, mt)
}

// PUT /api/owners/:id/meeting-types/:mt_id
func (a *App) UpdateMeetingTypeHandler(c *gin.Context) {
	mtID, err := strconv.ParseInt(c.Param("mt_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid meeting type id"})
		return
	}
	var payload meetingTypePayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "validation failed", "fields": bindingFieldErrors(err)})
		return
	}
	mt := payload.toModel(c.Param("id"))
	mt.ID = mtID
	switch err := a.Store.UpdateMeetingType(c.Request.Context(), &mt); {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "meeting type not found"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, mt)
	}
}

// GET /api/owners/:id/meeting-types
func (a *App) ListMeetingTypesHandler(c *gin.Context) {
	types, err := a.Store.ListMeetingTypes(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, types)
}

// GET /api/owners/:id/meeting-types/:mt_id
func (a *App) GetMeetingTypeHandler(c *gin.Context) {
	mtID, err := strconv.ParseInt(c.Param("mt_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid meeting type id"})
		return
	}
	mt, err := a.Store.GetMeetingType(c.Request.Context(), mtID, c.Param("id"))
	if errors.Is(err, store.ErrNotFound) {
		c.JSON(http.StatusNotFound, gin.H{"error": "meeting type not found"})
		return
	}
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, mt)
}

// DELETE /api/owners/:id/meeting-types/:mt_id
func (a *App) DeleteMeetingTypeHandler(c *gin.Context) {
	mtID, err := strconv.ParseInt(c.Param("mt_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid meeting type id"})
		return
	}
	switch err := a.Store.DeleteMeetingType(c.Request.Context(), mtID, c.Param("id")); {
	case errors.Is(err, store.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": "meeting type not found"})
	case err != nil:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusOK, gin.H{"ok": true})
	}
}

// GET /api/owners/:id/stats
func (a *App) OwnerStatsHandler(c *gin.Context) {
	stats, err := a.Store.OwnerStats(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, stats)
}

// GET /api/owners/:id/bookings?from=ISO&to=ISO
func (a *App) ListBookingsHandler(c *gin.Context) {
	ownerID := c.Param("id")
	var from, to time.Time

	fromStr, toStr := c.Query("from"), c.Query("to")
	if fromStr != "" && toStr != "" {
		var err error
		from, err = time.Parse(time.RFC3339, fromStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from"})
			return
		}
		to, err = time.Parse(time.RFC3339, toStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to"})
			return
		}
		if !from.Before(to) {
			c.JSON(http.StatusBadRequest, gin.H{"error": "from must be before to"})
			return
		}
	}

	bookings, err := a.Store.ListBookings(c.Request.Context(), ownerID, from, to)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, bookings)
}

// GET /book/:id/meeting-types/:mt_id/slots?from=ISO&to=ISO
// Public: lists offerable slots for a meeting type.
func (a *App) GetSlotsHandler(c *gin.Context) {
	ownerID := c.Param("id")
	mtID, err := strconv.ParseInt(c.Param("mt_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid meeting type id"})
		return
	}

	fromStr, toStr := c.Query("from"), c.Query("to")
	if fromStr == "" || toStr == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from and to required (RFC3339)"})
		return
	}
	from, err := time.Parse(time.RFC3339, fromStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid from"})
		return
	}
	to, err := time.Parse(time.RFC3339, toStr)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid to"})
		return
	}
	if !from.Before(to) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "from must be before to"})
		return
	}

	slots, err := a.Bookings.ListSlots(c.Request.Context(), ownerID, mtID, from.UTC(), to.UTC())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"slots": slots, "count": len(slots)})
}

// POST /book/:id/meeting-types/:mt_id/bookings
// Public: commits a booking through the saga.
func (a *App) CreateBookingHandler(c *gin.Context) {
	mtID, err := strconv.ParseInt(c.Param("mt_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid meeting type id"})
		return
	}

	var req booking.CreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	// Path parameters win over anything in the body.
	req.OwnerID = c.Param("id")
	req.MeetingTypeID = mtID

	b, err := a.Bookings.CreateBooking(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, b)
}

// DELETE /api/bookings/:id
func (a *App) CancelBookingHandler(c *gin.Context) {
	b, err := a.Bookings.CancelBooking(c.Request.Context(), c.Param("id"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, b)
}
