package api

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"giftwrap/internal/audit"
	"giftwrap/internal/booking"
	"giftwrap/internal/metrics"
	"giftwrap/internal/model"
	"giftwrap/internal/ticket"
	"github.com/julienschmidt/httprouter"
)

type slotsResponse struct {
	Date   string   `json:"date"`
	Worker string   `json:"worker,omitempty"`
	Slots  []string `json:"slots"`
}

type bookableResponse struct {
	Date     string `json:"date"`
	Bookable bool   `json:"bookable"`
}

type maxItemsResponse struct {
	Date     string `json:"date"`
	Time     string `json:"time"`
	MaxItems int    `json:"max_items"`
}

type rejectionResponse struct {
	Rejection *booking.Rejection `json:"rejection"`
}

type statusRequest struct {
	Status model.BookingStatus `json:"status"`
}

type addItemsRequest struct {
	Labels []string `json:"labels,omitempty"`
	Count  int      `json:"count,omitempty"`
}

type itemStatusRequest struct {
	Status model.ItemStatus `json:"status"`
}

type itemUpdateResponse struct {
	Item    *model.WorkItem `json:"item"`
	Booking *model.Booking  `json:"booking"`
}

// handleSlots returns the free slots of a date.
// GET /api/v1/slots?date=YYYY-MM-DD&worker=
func (s *HTTPServer) handleSlots(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	metrics.IncHTTP("slots")
	q := r.URL.Query()
	date := q.Get("date")
	if date == "" {
		writeError(w, http.StatusBadRequest, "date is required")
		return
	}

	free, err := s.svc.AvailableSlots(r.Context(), date, q.Get("worker"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if free == nil {
		free = []string{}
	}
	writeJSON(w, http.StatusOK, slotsResponse{Date: date, Worker: q.Get("worker"), Slots: free})
}

// GET /api/v1/dates/:date/bookable?worker=
func (s *HTTPServer) handleBookable(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	metrics.IncHTTP("bookable")
	date := ps.ByName("date")
	ok, err := s.svc.IsDateBookable(r.Context(), date, r.URL.Query().Get("worker"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, bookableResponse{Date: date, Bookable: ok})
}

// GET /api/v1/dates/:date/plan?worker=
func (s *HTTPServer) handlePlan(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	metrics.IncHTTP("plan")
	plan, err := s.svc.WorkPlan(r.Context(), ps.ByName("date"), r.URL.Query().Get("worker"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, plan)
}

// GET /api/v1/max-items?date=&time=&service=&worker=
func (s *HTTPServer) handleMaxItems(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	metrics.IncHTTP("max_items")
	q := r.URL.Query()
	query := booking.MaxItemsQuery{
		Date:      q.Get("date"),
		Time:      q.Get("time"),
		ServiceID: q.Get("service"),
		WorkerID:  q.Get("worker"),
	}
	n, err := s.svc.MaxItemsForSlot(r.Context(), query)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, maxItemsResponse{Date: query.Date, Time: query.Time, MaxItems: n})
}

// POST /api/v1/bookings
func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	metrics.IncHTTP("create_booking")
	var req booking.CreateRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	b, rej, err := s.svc.TryCreateBooking(r.Context(), req)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if rej != nil {
		writeJSON(w, http.StatusConflict, rejectionResponse{Rejection: rej})
		return
	}
	w.Header().Set("Location", fmt.Sprintf("/api/v1/bookings/%d", b.ID))
	writeJSON(w, http.StatusCreated, b)
}

// GET /api/v1/bookings/:id
func (s *HTTPServer) handleGetBooking(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	metrics.IncHTTP("get_booking")
	id, ok := pathID(w, ps)
	if !ok {
		return
	}
	b, err := s.svc.GetBooking(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// POST /api/v1/bookings/:id/status
func (s *HTTPServer) handleTransition(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	metrics.IncHTTP("transition")
	id, ok := pathID(w, ps)
	if !ok {
		return
	}
	var req statusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	b, err := s.svc.TransitionBookingStatus(r.Context(), id, req.Status)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, b)
}

// GET /api/v1/bookings/:id/items
func (s *HTTPServer) handleListItems(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	metrics.IncHTTP("list_items")
	id, ok := pathID(w, ps)
	if !ok {
		return
	}
	items, err := s.svc.ListWorkItems(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	if items == nil {
		items = []model.WorkItem{}
	}
	writeJSON(w, http.StatusOK, items)
}

// POST /api/v1/bookings/:id/items
// Either labels or a count of unnamed gifts.
func (s *HTTPServer) handleAddItems(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	metrics.IncHTTP("add_items")
	id, ok := pathID(w, ps)
	if !ok {
		return
	}
	var req addItemsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	labels := req.Labels
	if len(labels) == 0 && req.Count > 0 {
		labels = make([]string, req.Count)
	}

	items, err := s.svc.AddWorkItems(r.Context(), id, labels)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, items)
}

// PUT /api/v1/items/:id
func (s *HTTPServer) handleUpdateItem(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	metrics.IncHTTP("update_item")
	id, ok := pathID(w, ps)
	if !ok {
		return
	}
	var req itemStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	item, b, err := s.svc.SetWorkItemStatus(r.Context(), id, req.Status)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, itemUpdateResponse{Item: item, Booking: b})
}

// GET /api/v1/bookings/:id/ticket.pdf
func (s *HTTPServer) handleTicket(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	metrics.IncHTTP("ticket")
	id, ok := pathID(w, ps)
	if !ok {
		return
	}
	b, err := s.svc.GetBooking(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	items, err := s.svc.ListWorkItems(r.Context(), id)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}

	pdf, err := ticket.Render(s.cfg.Shop, b, items)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%s.pdf", b.Reference()))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(pdf)
}

// GET /api/v1/schedules?worker=
func (s *HTTPServer) handleGetSchedule(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	metrics.IncHTTP("get_schedule")
	sched, err := s.svc.GetSchedule(r.Context(), r.URL.Query().Get("worker"))
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, sched)
}

// PUT /api/v1/schedules?worker=
func (s *HTTPServer) handlePutSchedule(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	metrics.IncHTTP("put_schedule")
	var sched model.Schedule
	if err := decodeJSON(r, &sched); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if worker := r.URL.Query().Get("worker"); worker != "" {
		sched.WorkerID = worker
	}
	saved, err := s.svc.PutSchedule(r.Context(), &sched)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, saved)
}

// GET /api/v1/reports/bookings.xlsx?month=YYYY-MM
func (s *HTTPServer) handleReport(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	metrics.IncHTTP("report")
	month, err := time.Parse("2006-01", r.URL.Query().Get("month"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid month; expected YYYY-MM")
		return
	}
	data, err := audit.MonthlyReport(r.Context(), s.svc, month)
	if err != nil {
		s.writeServiceError(w, r, err)
		return
	}
	w.Header().Set("Content-Type", "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet")
	w.Header().Set("Content-Disposition", "attachment; filename="+audit.Filename(month))
	http.ServeContent(w, r, audit.Filename(month), time.Time{}, bytes.NewReader(data))
}

func pathID(w http.ResponseWriter, ps httprouter.Params) (int64, bool) {
	id, err := strconv.ParseInt(ps.ByName("id"), 10, 64)
	if err != nil || id <= 0 {
		writeError(w, http.StatusBadRequest, "invalid id")
		return 0, false
	}
	return id, true
}
