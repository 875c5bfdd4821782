package handler

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/jx"

	"github.com/threadline/storefront/internal/domain/notification"
)

func (h *Handler) listNotifications(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}

	items, err := h.notifications.List(r.Context(), userID(r.Context()), limit)
	if err != nil {
		writeInternalError(w, r, err)
		return
	}
	if items == nil {
		items = []notification.Notification{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) markNotificationRead(w http.ResponseWriter, r *http.Request) {
	err := h.notifications.MarkRead(r.Context(), userID(r.Context()), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, notification.ErrNotFound) {
			writeError(w, http.StatusNotFound, "notification not found")
			return
		}
		writeInternalError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) markAllNotificationsRead(w http.ResponseWriter, r *http.Request) {
	count, err := h.notifications.MarkAllRead(r.Context(), userID(r.Context()))
	if err != nil {
		writeInternalError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"marked": count})
}

// streamUnreadCount is a server-sent events endpoint pushing the user's
// unread count: one event on connect, then one per change. The storefront
// badge subscribes here instead of polling.
func (h *Handler) streamUnreadCount(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	counts, cancel, err := h.notifications.Subscribe(r.Context(), userID(r.Context()))
	if err != nil {
		writeInternalError(w, r, err)
		return
	}
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			return
		case count, ok := <-counts:
			if !ok {
				return
			}

			var e jx.Encoder
			e.Obj(func(e *jx.Encoder) {
				e.Field("unreadCount", func(e *jx.Encoder) { e.Int(count) })
			})
			fmt.Fprintf(w, "event: unread\ndata: %s\n\n", e.Bytes())
			flusher.Flush()
		}
	}
}

func (h *Handler) adminListNotifications(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}

	items, err := h.notifications.ListAdmin(r.Context(), limit)
	if err != nil {
		writeInternalError(w, r, err)
		return
	}
	if items == nil {
		items = []notification.Notification{}
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *Handler) adminMarkNotificationRead(w http.ResponseWriter, r *http.Request) {
	err := h.notifications.MarkReadAdmin(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		if errors.Is(err, notification.ErrNotFound) {
			writeError(w, http.StatusNotFound, "notification not found")
			return
		}
		writeInternalError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
