package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/kayuraya/presensi-backend/internal/domain/attendance"
	"github.com/kayuraya/presensi-backend/internal/handler/http/middleware"
	"github.com/kayuraya/presensi-backend/internal/handler/http/response"
)

type AttendanceHandler interface {
	Today(w http.ResponseWriter, r *http.Request)
	CheckIn(w http.ResponseWriter, r *http.Request)
	CheckOut(w http.ResponseWriter, r *http.Request)
	SubmitRequest(w http.ResponseWriter, r *http.Request)
	EditRequest(w http.ResponseWriter, r *http.Request)
	CancelRequest(w http.ResponseWriter, r *http.Request)
	History(w http.ResponseWriter, r *http.Request)
	Approve(w http.ResponseWriter, r *http.Request)
	Reject(w http.ResponseWriter, r *http.Request)
	List(w http.ResponseWriter, r *http.Request)
	Export(w http.ResponseWriter, r *http.Request)
}

type attendanceHandlerImpl struct {
	attendanceService attendance.AttendanceService
}

func NewAttendanceHandler(attendanceService attendance.AttendanceService) AttendanceHandler {
	return &attendanceHandlerImpl{
		attendanceService: attendanceService,
	}
}

// decodeJSON reads an optional JSON body into dst. An empty body leaves dst untouched.
func decodeJSON(r *http.Request, dst interface{}) error {
	if r.Body == nil {
		return nil
	}
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

func employeeFromToken(w http.ResponseWriter, r *http.Request) (string, bool) {
	employeeID, ok := middleware.EmployeeID(r)
	if !ok {
		slog.Error("employee_id not found in JWT claims")
		response.Forbidden(w, "Employee ID not found in token")
		return "", false
	}
	return employeeID, true
}

// Today implements AttendanceHandler.
func (h *attendanceHandlerImpl) Today(w http.ResponseWriter, r *http.Request) {
	employeeID, ok := employeeFromToken(w, r)
	if !ok {
		return
	}

	result, err := h.attendanceService.GetTodayStatus(r.Context(), employeeID)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, result)
}

// CheckIn implements AttendanceHandler.
func (h *attendanceHandlerImpl) CheckIn(w http.ResponseWriter, r *http.Request) {
	employeeID, ok := employeeFromToken(w, r)
	if !ok {
		return
	}

	var req attendance.CheckInRequest
	if err := decodeJSON(r, &req); err != nil {
		response.BadRequest(w, "Invalid request format", nil)
		return
	}
	req.EmployeeID = employeeID

	result, err := h.attendanceService.CheckIn(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Created(w, "Check in successful", result)
}

// CheckOut implements AttendanceHandler.
func (h *attendanceHandlerImpl) CheckOut(w http.ResponseWriter, r *http.Request) {
	employeeID, ok := employeeFromToken(w, r)
	if !ok {
		return
	}

	result, err := h.attendanceService.CheckOut(r.Context(), attendance.CheckOutRequest{EmployeeID: employeeID})
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Check out successful", result)
}

// SubmitRequest implements AttendanceHandler.
func (h *attendanceHandlerImpl) SubmitRequest(w http.ResponseWriter, r *http.Request) {
	employeeID, ok := employeeFromToken(w, r)
	if !ok {
		return
	}

	var req attendance.SubmitRequestRequest
	if err := decodeJSON(r, &req); err != nil {
		response.BadRequest(w, "Invalid request format", nil)
		return
	}
	req.EmployeeID = employeeID

	result, err := h.attendanceService.SubmitRequest(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Created(w, "Request submitted successfully", result)
}

// EditRequest implements AttendanceHandler.
func (h *attendanceHandlerImpl) EditRequest(w http.ResponseWriter, r *http.Request) {
	employeeID, ok := employeeFromToken(w, r)
	if !ok {
		return
	}

	var req attendance.EditRequestRequest
	if err := decodeJSON(r, &req); err != nil {
		response.BadRequest(w, "Invalid request format", nil)
		return
	}
	req.EmployeeID = employeeID
	req.RequestID = chi.URLParam(r, "id")

	result, err := h.attendanceService.EditRequest(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Request updated successfully", result)
}

// CancelRequest implements AttendanceHandler.
func (h *attendanceHandlerImpl) CancelRequest(w http.ResponseWriter, r *http.Request) {
	employeeID, ok := employeeFromToken(w, r)
	if !ok {
		return
	}

	err := h.attendanceService.CancelRequest(r.Context(), attendance.CancelRequestRequest{
		EmployeeID: employeeID,
		RequestID:  chi.URLParam(r, "id"),
	})
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMessage(w, "Request cancelled successfully", nil)
}

// History implements AttendanceHandler.
func (h *attendanceHandlerImpl) History(w http.ResponseWriter, r *http.Request) {
	employeeID, ok := employeeFromToken(w, r)
	if !ok {
		return
	}

	results, err := h.attendanceService.GetHistory(r.Context(), employeeID)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.Success(w, results)
}

// Approve implements AttendanceHandler.
func (h *attendanceHandlerImpl) Approve(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, true)
}

// Reject implements AttendanceHandler.
func (h *attendanceHandlerImpl) Reject(w http.ResponseWriter, r *http.Request) {
	h.decide(w, r, false)
}

func (h *attendanceHandlerImpl) decide(w http.ResponseWriter, r *http.Request, approve bool) {
	approverID, ok := middleware.UserID(r)
	if !ok {
		response.Unauthorized(w, "User ID not found in token")
		return
	}

	var req attendance.DecideRequestRequest
	if err := decodeJSON(r, &req); err != nil {
		response.BadRequest(w, "Invalid request format", nil)
		return
	}
	req.RequestID = chi.URLParam(r, "id")
	req.ApproverID = approverID
	req.Approve = approve

	result, err := h.attendanceService.DecideRequest(r.Context(), req)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	if approve {
		response.SuccessWithMessage(w, "Request approved successfully", result)
		return
	}
	response.SuccessWithMessage(w, "Request rejected successfully", result)
}

// filterFromQuery reads the list filter. Page and limit that are not numbers
// fall back to the defaults.
func filterFromQuery(r *http.Request) attendance.AttendanceFilter {
	q := r.URL.Query()
	filter := attendance.AttendanceFilter{}

	optional := func(key string) *string {
		if v := q.Get(key); v != "" {
			return &v
		}
		return nil
	}
	filter.EmployeeID = optional("employee_id")
	filter.StartDate = optional("start_date")
	filter.EndDate = optional("end_date")
	filter.Status = optional("status")
	filter.RequestKind = optional("request_kind")
	filter.RequestStatus = optional("request_status")

	if p := q.Get("page"); p != "" {
		if pageNum, err := strconv.Atoi(p); err == nil {
			filter.Page = pageNum
		}
	}
	if l := q.Get("limit"); l != "" {
		if limitNum, err := strconv.Atoi(l); err == nil {
			filter.Limit = limitNum
		}
	}
	return filter
}

// List implements AttendanceHandler.
func (h *attendanceHandlerImpl) List(w http.ResponseWriter, r *http.Request) {
	results, err := h.attendanceService.ListAttendance(r.Context(), filterFromQuery(r))
	if err != nil {
		response.HandleError(w, err)
		return
	}

	response.SuccessWithMeta(w, results.Attendances, &response.Meta{
		Page:       results.Page,
		Limit:      results.Limit,
		TotalItems: results.TotalCount,
		TotalPages: results.TotalPages,
		Showing:    results.Showing,
	})
}

// Export implements AttendanceHandler.
func (h *attendanceHandlerImpl) Export(w http.ResponseWriter, r *http.Request) {
	filter := filterFromQuery(r)

	buf, err := h.attendanceService.ExportAttendance(r.Context(), filter)
	if err != nil {
		response.HandleError(w, err)
		return
	}

	name := "presensi"
	if filter.StartDate != nil {
		name += "_" + *filter.StartDate
	}
	if filter.EndDate != nil {
		name += "_" + *filter.EndDate
	}
	response.XLSX(w, fmt.Sprintf("%s.xlsx", name), buf)
}
