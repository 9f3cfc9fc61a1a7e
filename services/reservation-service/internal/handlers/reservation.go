package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/md-rashed-zaman/apptreserve/services/reservation-service/internal/booking"
	"github.com/md-rashed-zaman/apptreserve/services/reservation-service/internal/slotgrid"
)

type ReservationHandler struct {
	machine *booking.Machine
	orch    *booking.Orchestrator
	grid    slotgrid.Grid
	logger  *slog.Logger
	now     func() time.Time
}

func NewReservationHandler(machine *booking.Machine, orch *booking.Orchestrator, grid slotgrid.Grid, logger *slog.Logger) *ReservationHandler {
	return &ReservationHandler{machine: machine, orch: orch, grid: grid, logger: logger, now: time.Now}
}

type inputRequest struct {
	UserID string `json:"user_id"`
	Kind   string `json:"kind"`
	Text   string `json:"text"`
}

type errorBody struct {
	Kind    booking.Kind `json:"kind"`
	Message string       `json:"message"`
}

type bookingBody struct {
	EventID   string `json:"event_id"`
	Name      string `json:"name"`
	Email     string `json:"email"`
	Day       string `json:"day"`
	Time      string `json:"time"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type replyResponse struct {
	Step    booking.Step `json:"step"`
	Prompt  string       `json:"prompt"`
	Options []string     `json:"options,omitempty"`
	Error   *errorBody   `json:"error,omitempty"`
	Booking *bookingBody `json:"booking,omitempty"`
}

type dayItem struct {
	Day   string   `json:"day"`
	Slots []string `json:"slots"`
}

type eventItem struct {
	EventID   string `json:"event_id"`
	Summary   string `json:"summary"`
	StartTime string `json:"start_time"`
	EndTime   string `json:"end_time"`
}

type listBookingsResponse struct {
	Items    []eventItem `json:"items"`
	Page     int         `json:"page"`
	PageSize int         `json:"page_size"`
	Total    int         `json:"total"`
}

type cancelRequest struct {
	Email   string `json:"email"`
	EventID string `json:"event_id"`
}

// Input applies one conversation input. Recoverable errors still return the
// re-rendered step so the client can show the prompt and the explanation.
func (h *ReservationHandler) Input(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req inputRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.UserID) == "" {
		http.Error(w, "user_id is required", http.StatusBadRequest)
		return
	}
	kind, err := booking.ParseInputKind(req.Kind)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	reply, err := h.machine.Handle(r.Context(), req.UserID, booking.Input{Kind: kind, Text: req.Text})
	resp := replyResponse{Step: reply.Step, Prompt: reply.Prompt, Options: reply.Options}
	if reply.Booking != nil {
		resp.Booking = toBookingBody(*reply.Booking)
	}
	status := http.StatusOK
	if err != nil {
		status = statusFor(err)
		resp.Error = toErrorBody(err)
		if status >= http.StatusInternalServerError {
			h.logger.Warn("conversation input failed", "user_id", req.UserID, "kind", booking.KindOf(err), "err", err)
		}
	}
	writeJSON(w, status, resp)
}

// Availability lists open days and slots; from defaults to today.
func (h *ReservationHandler) Availability(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	from := h.now()
	if raw := strings.TrimSpace(r.URL.Query().Get("from")); raw != "" {
		day, err := h.grid.ParseDay(raw)
		if err != nil {
			http.Error(w, "invalid from (use YYYY-MM-DD)", http.StatusBadRequest)
			return
		}
		from = day
	}
	days := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("days")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			http.Error(w, "invalid days", http.StatusBadRequest)
			return
		}
		days = n
	}

	open, err := h.orch.OpenDays(r.Context(), from, days)
	if err != nil {
		http.Error(w, messageFor(err), statusFor(err))
		return
	}
	items := make([]dayItem, 0, len(open))
	for _, d := range open {
		items = append(items, dayItem{Day: d.Day, Slots: d.Slots})
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *ReservationHandler) ListBookings(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	page := 0
	if raw := strings.TrimSpace(r.URL.Query().Get("page")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			http.Error(w, "invalid page", http.StatusBadRequest)
			return
		}
		page = n
	}

	res, err := h.orch.ListUserBookings(r.Context(), r.URL.Query().Get("email"), page)
	if err != nil {
		http.Error(w, messageFor(err), statusFor(err))
		return
	}
	resp := listBookingsResponse{Items: []eventItem{}, Page: res.Page, PageSize: res.PageSize, Total: res.Total}
	for _, e := range res.Items {
		resp.Items = append(resp.Items, eventItem{
			EventID:   e.ID,
			Summary:   e.Summary,
			StartTime: e.Start.Format(time.RFC3339),
			EndTime:   e.End.Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *ReservationHandler) CancelBooking(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if err := h.orch.CancelBooking(r.Context(), req.Email, strings.TrimSpace(req.EventID)); err != nil {
		http.Error(w, messageFor(err), statusFor(err))
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"event_id": req.EventID, "status": "cancelled"})
}

func statusFor(err error) int {
	switch booking.KindOf(err) {
	case booking.KindValidation:
		return http.StatusUnprocessableEntity
	case booking.KindSlotContention, booking.KindSlotNoLongerAvailable:
		return http.StatusConflict
	case booking.KindCalendarUnavailable:
		return http.StatusServiceUnavailable
	case booking.KindCalendarWriteFailed:
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

func messageFor(err error) string {
	var be *booking.Error
	if errors.As(err, &be) && be.Msg != "" {
		return be.Msg
	}
	return "internal error"
}

func toErrorBody(err error) *errorBody {
	return &errorBody{Kind: booking.KindOf(err), Message: messageFor(err)}
}

func toBookingBody(b booking.ConfirmedBooking) *bookingBody {
	return &bookingBody{
		EventID:   b.EventID,
		Name:      b.Name,
		Email:     b.Email,
		Day:       b.Slot.DayKey(),
		Time:      b.Slot.Key(),
		StartTime: b.Slot.Start.Format(time.RFC3339),
		EndTime:   b.Slot.End.Format(time.RFC3339),
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
