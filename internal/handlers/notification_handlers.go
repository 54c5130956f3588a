package handlers

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"
	"gorm.io/gorm"

	"github.com/wajihaissa/fahamni/internal/repository"
	"github.com/wajihaissa/fahamni/internal/services"
)

const unreadCountCacheTTL = 30 * time.Second

type NotificationHandler struct {
	db            *gorm.DB
	notifications *services.NotificationService
	store         *repository.NotificationRepository
	cache         *services.RedisCache
}

func NewNotificationHandler(db *gorm.DB, notifications *services.NotificationService, store *repository.NotificationRepository, cache *services.RedisCache) *NotificationHandler {
	return &NotificationHandler{db: db, notifications: notifications, store: store, cache: cache}
}

// ListNotifications returns the caller's notifications newest first
func (h *NotificationHandler) ListNotifications(c echo.Context) error {
	user, err := currentUser(c, h.db)
	if err != nil {
		return err
	}

	limit := 0
	if raw := c.QueryParam("limit"); raw != "" {
		if v, err := strconv.Atoi(raw); err == nil {
			limit = v
		}
	}

	notifications, err := h.notifications.ListLatest(c.Request().Context(), user.ID, limit)
	if err != nil {
		return err
	}
	return c.JSON(http.StatusOK, map[string]any{"notifications": notifications})
}

// UnreadCount returns the caller's unread notification count, cached in
// Redis for a short while.
func (h *NotificationHandler) UnreadCount(c echo.Context) error {
	user, err := currentUser(c, h.db)
	if err != nil {
		return err
	}

	ctx := c.Request().Context()
	fetch := func() (int64, error) {
		return h.notifications.CountUnread(ctx, user.ID)
	}

	var count int64
	if h.cache != nil {
		count, err = services.GetOrSet(h.cache, ctx, unreadCountKey(user.ID), unreadCountCacheTTL, fetch)
	} else {
		count, err = fetch()
	}
	if err != nil {
		return err
	}

	return c.JSON(http.StatusOK, map[string]any{"unread": count})
}

// MarkNotificationRead marks one of the caller's notifications read
func (h *NotificationHandler) MarkNotificationRead(c echo.Context) error {
	user, err := currentUser(c, h.db)
	if err != nil {
		return err
	}

	id, err := parseIDParam(c, "id")
	if err != nil {
		return err
	}

	notification, err := h.store.FindByID(c.Request().Context(), id)
	if err != nil {
		return err
	}
	if notification == nil || notification.RecipientID != user.ID {
		return echo.NewHTTPError(http.StatusNotFound, "notification not found")
	}

	if err := h.notifications.MarkRead(c.Request().Context(), notification, time.Now()); err != nil {
		return err
	}
	h.invalidateUnreadCount(c, user.ID)

	return c.JSON(http.StatusOK, notification)
}

// MarkAllNotificationsRead marks all the caller's unread notifications
// read and reports how many were affected.
func (h *NotificationHandler) MarkAllNotificationsRead(c echo.Context) error {
	user, err := currentUser(c, h.db)
	if err != nil {
		return err
	}

	updated, err := h.notifications.MarkAllRead(c.Request().Context(), user.ID, time.Now())
	if err != nil {
		return err
	}
	h.invalidateUnreadCount(c, user.ID)

	return c.JSON(http.StatusOK, map[string]any{"updated": updated})
}

func (h *NotificationHandler) invalidateUnreadCount(c echo.Context, userID uint) {
	if h.cache == nil {
		return
	}
	if err := h.cache.Delete(c.Request().Context(), unreadCountKey(userID)); err != nil {
		c.Logger().Warnf("failed to invalidate unread count cache: %v", err)
	}
}

func unreadCountKey(userID uint) string {
	return fmt.Sprintf("fahamni:notif:unread:%d", userID)
}
