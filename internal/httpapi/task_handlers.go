package httpapi

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"sentra.org/internal/audit"
	"sentra.org/internal/obs"
	"sentra.org/internal/task"
)

type submitTaskRequest struct {
	Kind    string            `json:"kind"`
	Name    string            `json:"name,omitempty"`
	Payload map[string]string `json:"payload,omitempty"`
}

type taskResponse struct {
	TaskID      string            `json:"task_id"`
	Name        string            `json:"name,omitempty"`
	Status      task.Status       `json:"status"`
	CreatedAt   time.Time         `json:"created_at"`
	StartedAt   *time.Time        `json:"started_at,omitempty"`
	CompletedAt *time.Time        `json:"completed_at,omitempty"`
	Progress    float64           `json:"progress"`
	Result      any               `json:"result,omitempty"`
	Error       string            `json:"error,omitempty"`
	Metadata    map[string]string `json:"metadata,omitempty"`
}

// taskStepDelay paces the simulated workloads so polling clients can watch
// progress move.
const taskStepDelay = 100 * time.Millisecond

func (a *API) handleTasksCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		a.submitTask(w, r)
	case http.MethodGet:
		a.listTasks(w, r)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodPost)
	}
}

func (a *API) handleTaskResource(w http.ResponseWriter, r *http.Request) {
	id := strings.TrimPrefix(r.URL.Path, "/v1/tasks/")
	if id == "" || strings.Contains(id, "/") {
		writeError(w, r, http.StatusNotFound, "resource not found")
		return
	}
	switch r.Method {
	case http.MethodGet:
		a.getTask(w, r, id)
	case http.MethodDelete:
		a.deleteTask(w, r, id)
	default:
		methodNotAllowed(w, r, http.MethodGet, http.MethodDelete)
	}
}

func (a *API) submitTask(w http.ResponseWriter, r *http.Request) {
	identity, ok := a.requireScope(w, r, "write")
	if !ok {
		return
	}

	var req submitTaskRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	fn, name, err := buildWork(req)
	if err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	meta := map[string]string{
		"kind":         req.Kind,
		"requested_by": identity.ID,
	}
	id, err := a.tasks.Submit(r.Context(), name, meta, instrumented(fn))
	if err != nil {
		if errors.Is(err, task.ErrClosed) || errors.Is(err, task.ErrQueueFull) {
			writeError(w, r, http.StatusServiceUnavailable, "task queue unavailable")
			return
		}
		writeError(w, r, http.StatusInternalServerError, "could not submit task")
		return
	}

	_ = audit.LogEvent(r.Context(), "task.submit", map[string]any{
		"task_id": id,
		"kind":    req.Kind,
	})
	w.Header().Set("Location", "/v1/tasks/"+id)
	writeJSON(w, http.StatusAccepted, map[string]any{
		"task_id": id,
		"status":  task.StatusPending,
	})
}

func (a *API) getTask(w http.ResponseWriter, r *http.Request, id string) {
	if _, ok := a.requireIdentity(w, r); !ok {
		return
	}
	t, err := a.tasks.Get(id)
	if err != nil {
		writeError(w, r, http.StatusNotFound, "task not found")
		return
	}
	writeJSON(w, http.StatusOK, taskView(t))
}

func (a *API) listTasks(w http.ResponseWriter, r *http.Request) {
	if _, ok := a.requireIdentity(w, r); !ok {
		return
	}
	filter := task.Status(strings.TrimSpace(r.URL.Query().Get("status")))
	switch filter {
	case "", task.StatusPending, task.StatusRunning, task.StatusCompleted, task.StatusFailed:
	default:
		writeError(w, r, http.StatusBadRequest, "unknown status filter")
		return
	}

	items := a.tasks.List(filter)
	out := make([]taskResponse, 0, len(items))
	for _, t := range items {
		out = append(out, taskView(t))
	}
	writeJSON(w, http.StatusOK, map[string]any{"items": out})
}

func (a *API) deleteTask(w http.ResponseWriter, r *http.Request, id string) {
	if _, ok := a.requireScope(w, r, "write"); !ok {
		return
	}
	if err := a.tasks.Delete(id); err != nil {
		switch {
		case errors.Is(err, task.ErrNotFound):
			writeError(w, r, http.StatusNotFound, "task not found")
		case errors.Is(err, task.ErrConflict):
			writeError(w, r, http.StatusConflict, "task is still running")
		default:
			writeError(w, r, http.StatusInternalServerError, "could not delete task")
		}
		return
	}
	_ = audit.LogEvent(r.Context(), "task.delete", map[string]any{
		"task_id": id,
	})
	w.WriteHeader(http.StatusNoContent)
}

func buildWork(req submitTaskRequest) (task.Func, string, error) {
	kind := strings.TrimSpace(strings.ToLower(req.Kind))
	name := strings.TrimSpace(req.Name)
	switch kind {
	case "email":
		recipient := req.Payload["recipient"]
		if recipient == "" {
			return nil, "", errors.New("payload.recipient is required for email tasks")
		}
		if name == "" {
			name = "email to " + recipient
		}
		return task.EmailWork(recipient, req.Payload["subject"], taskStepDelay), name, nil
	case "report":
		report := req.Payload["report"]
		if report == "" {
			report = "summary"
		}
		if name == "" {
			name = report + " report"
		}
		return task.ReportWork(report, taskStepDelay), name, nil
	default:
		return nil, "", errors.New("kind must be one of: email, report")
	}
}

// instrumented wraps work so terminal states feed the task metrics.
func instrumented(fn task.Func) task.Func {
	return func(ctx context.Context, p *task.Progress) (any, error) {
		res, err := fn(ctx, p)
		if err != nil {
			obs.ObserveTask(string(task.StatusFailed))
			return nil, err
		}
		obs.ObserveTask(string(task.StatusCompleted))
		return res, nil
	}
}

func taskView(t task.Task) taskResponse {
	return taskResponse{
		TaskID:      t.ID,
		Name:        t.Name,
		Status:      t.Status,
		CreatedAt:   t.CreatedAt,
		StartedAt:   t.StartedAt,
		CompletedAt: t.CompletedAt,
		Progress:    t.Progress,
		Result:      t.Result,
		Error:       t.Error,
		Metadata:    t.Metadata,
	}
}
