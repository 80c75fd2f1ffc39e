package handler_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/HananR99/Ruhutickets/internal/handler"
	"github.com/HananR99/Ruhutickets/internal/model"
	"github.com/HananR99/Ruhutickets/internal/service/mocks"
	apperrors "github.com/HananR99/Ruhutickets/pkg/app_errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func setupReservationRouter(svc *mocks.ReservationServiceMock) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	handler.NewReservationHandler(svc).RegisterRoutes(r)
	return r
}

func doJSONRequest(t *testing.T, router *gin.Engine, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestReserveEndpoint_Created(t *testing.T) {
	svc := mocks.NewReservationServiceMock()
	router := setupReservationRouter(svc)

	ttID := uuid.New()
	reservationID := uuid.New()
	svc.On("Reserve", mock.Anything, model.ReserveRequest{TicketTypeID: ttID, Qty: 2}).
		Return(&model.ReserveResponse{ReservationID: reservationID, ExpiresInSeconds: 300}, nil)

	w := doJSONRequest(t, router, http.MethodPost, "/api/v1/reservations",
		gin.H{"ticket_type_id": ttID, "qty": 2})

	assert.Equal(t, http.StatusCreated, w.Code)
	var resp model.ReserveResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, reservationID, resp.ReservationID)
	assert.Equal(t, 300, resp.ExpiresInSeconds)
	svc.AssertExpectations(t)
}

func TestReserveEndpoint_BadBody(t *testing.T) {
	svc := mocks.NewReservationServiceMock()
	router := setupReservationRouter(svc)

	// qty 缺漏，binding 擋下，service 不被呼叫
	w := doJSONRequest(t, router, http.MethodPost, "/api/v1/reservations",
		gin.H{"ticket_type_id": uuid.New()})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNotCalled(t, "Reserve")
}

func TestReserveEndpoint_ErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		wantStatus int
		wantError  string
	}{
		{"lock busy", apperrors.ErrLockBusy, http.StatusConflict, "busy"},
		{"insufficient", apperrors.ErrInsufficientInventory, http.StatusConflict, "insufficient inventory"},
		{"ticket type not found", apperrors.ErrTicketTypeNotFound, http.StatusNotFound, "not_found"},
		{"invalid input", apperrors.ErrInvalidInput, http.StatusBadRequest, "invalid input"},
		{"internal", apperrors.ErrInternalServerError, http.StatusInternalServerError, "Internal server error"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := mocks.NewReservationServiceMock()
			router := setupReservationRouter(svc)
			svc.On("Reserve", mock.Anything, mock.Anything).Return(nil, tc.err)

			w := doJSONRequest(t, router, http.MethodPost, "/api/v1/reservations",
				gin.H{"ticket_type_id": uuid.New(), "qty": 1})

			assert.Equal(t, tc.wantStatus, w.Code)
			var resp map[string]string
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tc.wantError, resp["error"])
		})
	}
}

func TestCommitEndpoint_OK(t *testing.T) {
	svc := mocks.NewReservationServiceMock()
	router := setupReservationRouter(svc)

	id := uuid.New()
	committedAt := time.Now().UTC()
	svc.On("Commit", mock.Anything, id).Return(&model.CommitResult{
		OK: true,
		Reservation: &model.ReservationSummary{
			ID:          id,
			EventName:   "Ruhunu Live",
			Qty:         2,
			Status:      model.ReservationStatusCommitted,
			CommittedAt: &committedAt,
		},
	}, nil)

	w := doJSONRequest(t, router, http.MethodPost, "/api/v1/reservations/"+id.String()+"/commit", nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var result model.CommitResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.True(t, result.OK)
	require.NotNil(t, result.Reservation)
	assert.Equal(t, "Ruhunu Live", result.Reservation.EventName)
}

func TestCommitEndpoint_Rejected(t *testing.T) {
	cases := []string{
		model.CommitReasonNotFound,
		model.CommitReasonBadStatus,
		model.CommitReasonExpired,
		model.CommitReasonInsufficient,
	}

	for _, reason := range cases {
		t.Run(reason, func(t *testing.T) {
			svc := mocks.NewReservationServiceMock()
			router := setupReservationRouter(svc)

			id := uuid.New()
			svc.On("Commit", mock.Anything, id).Return(&model.CommitResult{OK: false, Reason: reason}, nil)

			w := doJSONRequest(t, router, http.MethodPost, "/api/v1/reservations/"+id.String()+"/commit", nil)

			assert.Equal(t, http.StatusConflict, w.Code)
			var result model.CommitResult
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
			assert.False(t, result.OK)
			assert.Equal(t, reason, result.Reason)
		})
	}
}

func TestCommitEndpoint_InternalError(t *testing.T) {
	svc := mocks.NewReservationServiceMock()
	router := setupReservationRouter(svc)

	id := uuid.New()
	svc.On("Commit", mock.Anything, id).Return(nil, apperrors.ErrInternalServerError)

	w := doJSONRequest(t, router, http.MethodPost, "/api/v1/reservations/"+id.String()+"/commit", nil)

	// 內部錯誤降級成結構化 reason
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	var result model.CommitResult
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &result))
	assert.False(t, result.OK)
	assert.Equal(t, model.CommitReasonError, result.Reason)
}

func TestCommitEndpoint_BadID(t *testing.T) {
	svc := mocks.NewReservationServiceMock()
	router := setupReservationRouter(svc)

	w := doJSONRequest(t, router, http.MethodPost, "/api/v1/reservations/not-a-uuid/commit", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	svc.AssertNotCalled(t, "Commit")
}

func TestGetReservationEndpoint(t *testing.T) {
	svc := mocks.NewReservationServiceMock()
	router := setupReservationRouter(svc)

	id := uuid.New()
	svc.On("GetReservation", mock.Anything, id).Return(&model.Reservation{
		ID:     id,
		Qty:    2,
		Status: model.ReservationStatusHeld,
	}, nil)

	w := doJSONRequest(t, router, http.MethodGet, "/api/v1/reservations/"+id.String(), nil)

	assert.Equal(t, http.StatusOK, w.Code)
	var r model.Reservation
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &r))
	assert.Equal(t, id, r.ID)
	assert.Equal(t, model.ReservationStatusHeld, r.Status)
}

func TestGetReservationEndpoint_NotFound(t *testing.T) {
	svc := mocks.NewReservationServiceMock()
	router := setupReservationRouter(svc)

	id := uuid.New()
	svc.On("GetReservation", mock.Anything, id).Return(nil, apperrors.ErrReservationNotFound)

	w := doJSONRequest(t, router, http.MethodGet, "/api/v1/reservations/"+id.String(), nil)

	assert.Equal(t, http.StatusNotFound, w.Code)
}
