package handler

import (
	"bytes"
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/inbo/vespa-db-sub000/internal/domains/export/model"
	"github.com/inbo/vespa-db-sub000/internal/shared"
)

type fakeService struct {
	gotUser  int64
	gotStaff bool
	err      error
}

func (f *fakeService) Create(_ context.Context, userID int64, isStaff bool, req model.CreateExportRequest) (*model.Export, error) {
	f.gotUser, f.gotStaff = userID, isStaff
	if f.err != nil {
		return nil, f.err
	}
	return &model.Export{ID: uuid.New(), Format: req.Format, Status: model.StatusPending}, nil
}

func (f *fakeService) Get(_ context.Context, id uuid.UUID, _ int64, _ bool) (*model.ExportResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &model.ExportResponse{Export: &model.Export{ID: id}}, nil
}

func (f *fakeService) Generate(context.Context, uuid.UUID) error     { return nil }
func (f *fakeService) Cleanup(context.Context, int) (int64, error) { return 0, nil }

func router(svc *fakeService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(func(c *gin.Context) {
		c.Set(shared.CtxUserID, int64(7))
		c.Set(shared.CtxIsStaff, false)
	})
	h := NewExportHandler(svc)
	r.POST("/exports", h.Create)
	r.GET("/exports/:id", h.Get)
	return r
}

func TestCreateExport(t *testing.T) {
	svc := &fakeService{}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/exports", bytes.NewBufferString(`{"format":"csv","filters":{"visible":["true"]}}`))
	req.Header.Set("Content-Type", "application/json")

	router(svc).ServeHTTP(w, req)

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, int64(7), svc.gotUser)
	assert.False(t, svc.gotStaff)
}

func TestCreateExport_Invalid(t *testing.T) {
	svc := &fakeService{err: fmt.Errorf("%w: format", model.ErrInvalidExport)}
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/exports", bytes.NewBufferString(`{"format":"pdf"}`))
	req.Header.Set("Content-Type", "application/json")

	router(svc).ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestGetExport_Errors(t *testing.T) {
	tests := []struct {
		name   string
		path   string
		err    error
		status int
	}{
		{name: "bad id", path: "/exports/nope", status: http.StatusBadRequest},
		{name: "missing", path: "/exports/" + uuid.NewString(), err: model.ErrExportNotFound, status: http.StatusNotFound},
		{name: "foreign", path: "/exports/" + uuid.NewString(), err: model.ErrExportForbidden, status: http.StatusForbidden},
		{name: "ok", path: "/exports/" + uuid.NewString(), status: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			router(&fakeService{err: tt.err}).ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.path, nil))
			assert.Equal(t, tt.status, w.Code)
		})
	}
}
