package api

import (
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"sprintboard/domain"
)

// Register wires up all API routes on the provided Echo instance. The
// deduper is optional; without it unsafe requests are applied as-is.
func Register(e *echo.Echo, engine Engine, deduper Deduper, logger *log.Logger) {
	e.GET("/api/board", getBoard(engine))
	e.GET("/api/board/:stage", getStageTasks(engine))
	e.POST("/api/tasks", postTask(engine, deduper, logger))
	e.GET("/api/tasks/:id", getTask(engine))
	e.PATCH("/api/tasks/:id", patchTask(engine))
	e.DELETE("/api/tasks/:id", deleteTask(engine))
	e.POST("/api/tasks/:id/move", postMove(engine, logger))
	e.POST("/api/tasks/:id/like", postLike(engine))
	e.POST("/api/tasks/:id/comments", postComment(engine, deduper))
	e.DELETE("/api/tasks/:id/comments/:commentId", deleteComment(engine))
	e.GET("/api/members", getMembers(engine))
	e.POST("/api/members", postMember(engine))
	e.DELETE("/api/members/:id", deleteMember(engine))
	e.GET("/api/report", getReport(engine))
	e.POST("/api/sprint/start", postSprintStart(engine))
	e.GET("/api/stream", streamBoard(engine))
	e.GET("/healthz", healthz())
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

// filterFromQuery builds the explicit query object every read projection
// takes. Absent parameters leave the corresponding predicate inactive.
func filterFromQuery(c echo.Context) domain.Filter {
	return domain.Filter{
		Search:   c.QueryParam("search"),
		Sprint:   c.QueryParam("sprint"),
		Assignee: c.QueryParam("assignee"),
	}
}

func decodeBody(c echo.Context, dst any) error {
	lr := io.LimitReader(c.Request().Body, requestBodyMaxSize)
	dec := sonic.ConfigStd.NewDecoder(lr)
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// httpError maps domain failures to response codes. Persistence failures
// never reach here; the engine treats them as non-fatal.
func httpError(c echo.Context, err error) error {
	var verr *domain.ValidationError
	switch {
	case errors.As(err, &verr):
		return c.JSON(http.StatusBadRequest, errorResponse{Error: verr.Error()})
	case errors.Is(err, domain.ErrTaskNotFound),
		errors.Is(err, domain.ErrCommentNotFound),
		errors.Is(err, domain.ErrMemberNotFound):
		return c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrEmptyBacklog):
		return c.JSON(http.StatusConflict, errorResponse{Error: err.Error()})
	default:
		c.Logger().Error(err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
}

func taskIDParam(c echo.Context) (int64, error) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		return 0, echo.NewHTTPError(http.StatusBadRequest, "invalid task id")
	}
	return id, nil
}

func getBoard(engine Engine) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, engine.BoardView(filterFromQuery(c)))
	}
}

func getStageTasks(engine Engine) echo.HandlerFunc {
	return func(c echo.Context) error {
		stage, ok := domain.ParseStage(c.Param("stage"))
		if !ok {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "unknown stage " + c.Param("stage")})
		}
		return c.JSON(http.StatusOK, engine.Tasks(stage, filterFromQuery(c)))
	}
}

func getTask(engine Engine) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := taskIDParam(c)
		if err != nil {
			return err
		}
		task, _, err := engine.FindTask(id)
		if err != nil {
			return httpError(c, err)
		}
		return c.JSON(http.StatusOK, task)
	}
}

type createTaskRequest struct {
	Title       string     `json:"title"`
	Description string     `json:"description"`
	Priority    string     `json:"priority"`
	Assignee    string     `json:"assignee"`
	Label       string     `json:"label"`
	Points      int        `json:"points"`
	Stage       string     `json:"stage"`
	Sprint      string     `json:"sprint"`
	DueDate     *time.Time `json:"dueDate"`
}

func postTask(engine Engine, deduper Deduper, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		metrics := newBoardRequestMetrics("/api/tasks", logger)
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		var req createTaskRequest
		decodeStart := time.Now()
		if decErr := decodeBody(c, &req); decErr != nil {
			metrics.SetErrorStage("decode")
			err = c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid body"})
			return err
		}
		metrics.ObserveDecode(time.Since(decodeStart))

		key, release, handled, dupErr := claimIdempotencyKey(c, deduper)
		if handled {
			metrics.SetErrorStage("idempotency")
			err = dupErr
			return err
		}

		draft := domain.TaskDraft{
			Title:       req.Title,
			Description: req.Description,
			Priority:    domain.Priority(req.Priority),
			Assignee:    req.Assignee,
			Label:       domain.Label(req.Label),
			Points:      req.Points,
			Stage:       domain.Stage(req.Stage),
			Sprint:      req.Sprint,
			DueDate:     req.DueDate,
		}
		applyStart := time.Now()
		task, addErr := engine.AddTask(draft)
		metrics.ObserveApply(time.Since(applyStart))
		if addErr != nil {
			release()
			metrics.SetErrorStage("apply")
			err = httpError(c, addErr)
			return err
		}
		metrics.SetIdempotencyKey(key)
		err = c.JSON(http.StatusCreated, task)
		return err
	}
}

// claimIdempotencyKey records the Idempotency-Key header with the deduper.
// Duplicate keys short-circuit with 409; handled reports that a response was
// already written. The returned release func rolls the claim back when the
// request fails downstream so the client may retry.
func claimIdempotencyKey(c echo.Context, deduper Deduper) (key string, release func(), handled bool, err error) {
	noop := func() {}
	key = c.Request().Header.Get("Idempotency-Key")
	if deduper == nil || key == "" {
		return key, noop, false, nil
	}
	ctx := c.Request().Context()
	added, addErr := deduper.Add(ctx, key)
	if addErr != nil {
		// Dedupe storage trouble must not block writes.
		c.Logger().Error(addErr)
		return key, noop, false, nil
	}
	if !added {
		return key, noop, true, c.JSON(http.StatusConflict, errorResponse{Error: "duplicate request"})
	}
	return key, func() { _ = deduper.Remove(ctx, key) }, false, nil
}

type moveTaskRequest struct {
	Stage string `json:"stage"`
}

func postMove(engine Engine, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		metrics := newBoardRequestMetrics("/api/tasks/:id/move", logger)
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		id, idErr := taskIDParam(c)
		if idErr != nil {
			metrics.SetErrorStage("task_id")
			err = idErr
			return err
		}
		var req moveTaskRequest
		if decErr := decodeBody(c, &req); decErr != nil {
			metrics.SetErrorStage("decode")
			err = c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid body"})
			return err
		}
		applyStart := time.Now()
		task, moveErr := engine.MoveTask(id, domain.Stage(req.Stage))
		metrics.ObserveApply(time.Since(applyStart))
		if moveErr != nil {
			metrics.SetErrorStage("apply")
			err = httpError(c, moveErr)
			return err
		}
		err = c.JSON(http.StatusOK, task)
		return err
	}
}

type patchTaskRequest struct {
	Title       *string    `json:"title"`
	Description *string    `json:"description"`
	Priority    *string    `json:"priority"`
	Assignee    *string    `json:"assignee"`
	Points      *int       `json:"points"`
	Label       *string    `json:"label"`
	Sprint      *string    `json:"sprint"`
	DueDate     *time.Time `json:"dueDate"`
}

func patchTask(engine Engine) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := taskIDParam(c)
		if err != nil {
			return err
		}
		var req patchTaskRequest
		if err := decodeBody(c, &req); err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid body"})
		}
		patch := domain.TaskPatch{
			Title:       req.Title,
			Description: req.Description,
			Assignee:    req.Assignee,
			Points:      req.Points,
			Sprint:      req.Sprint,
			DueDate:     req.DueDate,
		}
		if req.Priority != nil {
			p := domain.Priority(*req.Priority)
			patch.Priority = &p
		}
		if req.Label != nil {
			l := domain.Label(*req.Label)
			patch.Label = &l
		}
		task, err := engine.UpdateTask(id, patch)
		if err != nil {
			return httpError(c, err)
		}
		return c.JSON(http.StatusOK, task)
	}
}

func deleteTask(engine Engine) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := taskIDParam(c)
		if err != nil {
			return err
		}
		if err := engine.DeleteTask(id); err != nil {
			return httpError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func postLike(engine Engine) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := taskIDParam(c)
		if err != nil {
			return err
		}
		task, err := engine.LikeTask(id)
		if err != nil {
			return httpError(c, err)
		}
		return c.JSON(http.StatusOK, task)
	}
}

type commentRequest struct {
	Text   string `json:"text"`
	Author string `json:"author"`
}

func postComment(engine Engine, deduper Deduper) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := taskIDParam(c)
		if err != nil {
			return err
		}
		var req commentRequest
		if err := decodeBody(c, &req); err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid body"})
		}
		_, release, handled, dupErr := claimIdempotencyKey(c, deduper)
		if handled {
			return dupErr
		}
		comment, err := engine.AddComment(id, req.Text, req.Author)
		if err != nil {
			release()
			return httpError(c, err)
		}
		return c.JSON(http.StatusCreated, comment)
	}
}

func deleteComment(engine Engine) echo.HandlerFunc {
	return func(c echo.Context) error {
		id, err := taskIDParam(c)
		if err != nil {
			return err
		}
		commentID, err := strconv.ParseInt(c.Param("commentId"), 10, 64)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "invalid comment id")
		}
		if err := engine.DeleteComment(id, commentID); err != nil {
			return httpError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func getMembers(engine Engine) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, engine.Members())
	}
}

type memberRequest struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Initials string `json:"initials"`
	Role     string `json:"role"`
	Email    string `json:"email"`
}

func postMember(engine Engine) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req memberRequest
		if err := decodeBody(c, &req); err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid body"})
		}
		member, err := engine.UpsertMember(domain.Member{
			ID:       req.ID,
			Name:     req.Name,
			Initials: req.Initials,
			Role:     req.Role,
			Email:    req.Email,
		})
		if err != nil {
			return httpError(c, err)
		}
		return c.JSON(http.StatusCreated, member)
	}
}

func deleteMember(engine Engine) echo.HandlerFunc {
	return func(c echo.Context) error {
		if err := engine.RemoveMember(c.Param("id")); err != nil {
			return httpError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func getReport(engine Engine) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, engine.ReportStats(filterFromQuery(c)))
	}
}

func postSprintStart(engine Engine) echo.HandlerFunc {
	return func(c echo.Context) error {
		moved, err := engine.StartSprint(filterFromQuery(c))
		if err != nil {
			return httpError(c, err)
		}
		return c.JSON(http.StatusOK, sprintStartResponse{Moved: moved})
	}
}
