package handler

import (
	"context"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stemsi/modexam-backend/internal/model"
	"github.com/stemsi/modexam-backend/internal/response"
	"github.com/stemsi/modexam-backend/internal/service"
)

// fakeComposer records the last step edit it received.
type fakeComposer struct {
	err     error
	index   int
	minutes *string
	seconds *string
	from    int
	to      int
}

func (f *fakeComposer) test() (*model.Test, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &model.Test{UID: uuid.New(), Title: "Practice", Level: 1}, nil
}

func (f *fakeComposer) Create(context.Context, model.SaveTestRequest) (*model.Test, error) {
	return f.test()
}

func (f *fakeComposer) Update(context.Context, uuid.UUID, model.SaveTestRequest) (*model.Test, error) {
	return f.test()
}

func (f *fakeComposer) Get(context.Context, uuid.UUID) (*model.Test, error) { return f.test() }

func (f *fakeComposer) List(context.Context, int, int) ([]model.Test, int, error) {
	return nil, 0, f.err
}

func (f *fakeComposer) Delete(context.Context, uuid.UUID) error { return f.err }

func (f *fakeComposer) TimeSummary(context.Context, uuid.UUID) (*model.TimeSummary, error) {
	return &model.TimeSummary{ModuleTime: "60:00", BreakTime: "10:00"}, f.err
}

func (f *fakeComposer) AppendModuleStep(context.Context, uuid.UUID, string) (*model.Test, error) {
	return f.test()
}

func (f *fakeComposer) AppendBreakStep(context.Context, uuid.UUID) (*model.Test, error) {
	return f.test()
}

func (f *fakeComposer) RemoveStep(_ context.Context, _ uuid.UUID, index int) (*model.Test, error) {
	f.index = index
	return f.test()
}

func (f *fakeComposer) MoveStep(_ context.Context, _ uuid.UUID, from, to int) (*model.Test, error) {
	f.from, f.to = from, to
	return f.test()
}

func (f *fakeComposer) SetStepTime(_ context.Context, _ uuid.UUID, index int, minutes, seconds *string) (*model.Test, error) {
	f.index, f.minutes, f.seconds = index, minutes, seconds
	return f.test()
}

func testRouter(f *fakeComposer) *gin.Engine {
	h := NewTestHandler(f)
	r := gin.New()
	g := r.Group("/tests")
	g.GET("", h.ListTests)
	g.POST("", h.CreateTest)
	g.GET("/:id", h.GetTest)
	g.PUT("/:id", h.UpdateTest)
	g.DELETE("/:id", h.DeleteTest)
	g.GET("/:id/time-summary", h.GetTimeSummary)
	g.POST("/:id/steps/module", h.AppendModuleStep)
	g.POST("/:id/steps/break", h.AppendBreakStep)
	g.POST("/:id/steps/move", h.MoveStep)
	g.DELETE("/:id/steps/:index", h.RemoveStep)
	g.PATCH("/:id/steps/:index/time", h.SetStepTime)
	return r
}

func TestCreateTestValidation(t *testing.T) {
	f := &fakeComposer{err: &service.ValidationError{Fields: map[string]string{"title": "title is a required field"}}}
	w, env := perform(t, testRouter(f), http.MethodPost, "/tests", model.SaveTestRequest{Level: 1})
	if w.Code != http.StatusBadRequest || errCode(env) != response.ErrValidation {
		t.Fatalf("status=%d code=%q", w.Code, errCode(env))
	}
	if env.Error.Fields["title"] == "" {
		t.Errorf("fields = %v", env.Error.Fields)
	}
}

func TestCreateTestUnknownModule(t *testing.T) {
	f := &fakeComposer{err: service.ErrModuleNotFound}
	w, env := perform(t, testRouter(f), http.MethodPost, "/tests", model.SaveTestRequest{Title: "t", Level: 1})
	if w.Code != http.StatusNotFound || errCode(env) != response.ErrNotFound {
		t.Errorf("status=%d code=%q", w.Code, errCode(env))
	}
}

func TestDeleteTestInUse(t *testing.T) {
	w, env := perform(t, testRouter(&fakeComposer{err: service.ErrTestInUse}), http.MethodDelete, "/tests/"+uuid.NewString(), nil)
	if w.Code != http.StatusConflict || errCode(env) != response.ErrDependencyExists {
		t.Errorf("status=%d code=%q", w.Code, errCode(env))
	}
}

func TestSetStepTimePassesRawInput(t *testing.T) {
	f := &fakeComposer{}
	body := map[string]string{"minutes": "150"}
	w, _ := perform(t, testRouter(f), http.MethodPatch, "/tests/"+uuid.NewString()+"/steps/2/time", body)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if f.index != 2 || f.minutes == nil || *f.minutes != "150" || f.seconds != nil {
		t.Errorf("index=%d minutes=%v seconds=%v", f.index, f.minutes, f.seconds)
	}
}

func TestStepIndexParsing(t *testing.T) {
	r := testRouter(&fakeComposer{})
	for _, idx := range []string{"x", "-1"} {
		w, env := perform(t, r, http.MethodDelete, "/tests/"+uuid.NewString()+"/steps/"+idx, nil)
		if w.Code != http.StatusBadRequest || errCode(env) != response.ErrStepOutOfRange {
			t.Errorf("index %q: status=%d code=%q", idx, w.Code, errCode(env))
		}
	}

	w, env := perform(t, testRouter(&fakeComposer{err: service.ErrStepIndexOutOfRange}), http.MethodDelete, "/tests/"+uuid.NewString()+"/steps/9", nil)
	if w.Code != http.StatusBadRequest || errCode(env) != response.ErrStepOutOfRange {
		t.Errorf("out of range: status=%d code=%q", w.Code, errCode(env))
	}
}

func TestMoveStep(t *testing.T) {
	f := &fakeComposer{}
	w, _ := perform(t, testRouter(f), http.MethodPost, "/tests/"+uuid.NewString()+"/steps/move", model.MoveStepRequest{From: 0, To: 2})
	if w.Code != http.StatusOK || f.from != 0 || f.to != 2 {
		t.Errorf("status=%d from=%d to=%d", w.Code, f.from, f.to)
	}
}

func TestAppendModuleStepRequiresUUID(t *testing.T) {
	w, env := perform(t, testRouter(&fakeComposer{}), http.MethodPost, "/tests/"+uuid.NewString()+"/steps/module", map[string]string{"moduleUid": "nope"})
	if w.Code != http.StatusBadRequest || errCode(env) != response.ErrValidation {
		t.Errorf("status=%d code=%q", w.Code, errCode(env))
	}
	if _, ok := env.Error.Fields["moduleUid"]; !ok {
		t.Errorf("fields = %v", env.Error.Fields)
	}
}

func TestListTestsPagination(t *testing.T) {
	w, _ := perform(t, testRouter(&fakeComposer{}), http.MethodGet, "/tests?per_page=500", nil)
	if w.Code != http.StatusBadRequest {
		t.Errorf("per_page over limit: status = %d", w.Code)
	}
	w, _ = perform(t, testRouter(&fakeComposer{}), http.MethodGet, "/tests", nil)
	if w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
}
