package api

import (
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/bytedance/sonic"
	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"taskboard/domain"
	"taskboard/index"
	"taskboard/state"
	"taskboard/storage"
)

const (
	requestBodyLimit = 1 << 20
	importBodyLimit  = 16 << 20
)

// Register wires the JSON routes onto e. The /api group goes through the auth
// middleware; /healthz stays open for probes.
func Register(e *echo.Echo, store StateStore, search Searcher, auth Authenticator, logger *log.Logger) {
	if logger == nil {
		logger = log.StandardLogger()
	}
	e.GET("/healthz", healthz())

	g := e.Group("/api", authMiddleware(auth))
	g.GET("/state", getState(store))
	g.PUT("/filter", putFilter(store))
	g.GET("/boards", getBoards(store))
	g.POST("/boards", postBoard(store))
	g.PATCH("/boards/:id", patchBoard(store))
	g.DELETE("/boards/:id", deleteBoard(store))
	g.POST("/boards/:id/select", selectBoard(store))
	g.POST("/boards/:id/tasks", postTask(store))
	g.PATCH("/tasks/:id", patchTask(store))
	g.POST("/tasks/:id/move", moveTask(store))
	g.POST("/tasks/:id/archive", archiveTask(store))
	g.DELETE("/boards/:id/tasks/:taskId", deleteTask(store))
	g.GET("/search", searchTasks(store, search, logger))
	g.GET("/index/stats", indexStats(search))
	g.GET("/export", exportState(store))
	g.POST("/import", importState(store, logger))
}

func healthz() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.NoContent(http.StatusOK)
	}
}

func getState(store StateStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, store.GetState())
	}
}

func putFilter(store StateStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req setFilterRequest
		if err := decodeBody(c, &req); err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid body"})
		}
		if !domain.ValidFilter(req.Filter) {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "filter: invalid value"})
		}
		filter := req.Filter
		store.SetState(state.Patch{Filter: &filter})
		return c.NoContent(http.StatusNoContent)
	}
}

func getBoards(store StateStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, store.GetState().Boards)
	}
}

func postBoard(store StateStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req createBoardRequest
		if err := decodeBody(c, &req); err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid body"})
		}
		board, err := domain.NewBoard(req.Name, domain.BoardOptions{
			Description: req.Description,
			Color:       req.Color,
		})
		if err != nil {
			return writeError(c, err)
		}
		added, err := store.AddBoard(board)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusCreated, added)
	}
}

func patchBoard(store StateStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		var patch domain.BoardPatch
		if err := decodeBody(c, &patch); err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid body"})
		}
		board, err := store.UpdateBoard(c.Param("id"), patch)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, board)
	}
}

func deleteBoard(store StateStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !store.RemoveBoard(c.Param("id")) {
			return c.JSON(http.StatusNotFound, errorResponse{Error: domain.ErrBoardNotFound.Error()})
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func selectBoard(store StateStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !store.SetCurrentBoard(c.Param("id")) {
			return c.JSON(http.StatusNotFound, errorResponse{Error: domain.ErrBoardNotFound.Error()})
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func postTask(store StateStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req createTaskRequest
		if err := decodeBody(c, &req); err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid body"})
		}
		task, err := domain.NewTask(req.Text, domain.TaskOptions{Status: req.Status})
		if err != nil {
			return writeError(c, err)
		}
		if err := store.AddTask(c.Param("id"), task); err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusCreated, task)
	}
}

func patchTask(store StateStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		var patch domain.TaskPatch
		if err := decodeBody(c, &patch); err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid body"})
		}
		taskID := c.Param("id")
		boardID, ok := boardOfTask(store.GetState(), taskID)
		if !ok {
			return c.JSON(http.StatusNotFound, errorResponse{Error: domain.ErrTaskNotFound.Error()})
		}
		task, err := store.UpdateTask(boardID, taskID, patch)
		if err != nil {
			return writeError(c, err)
		}
		return c.JSON(http.StatusOK, task)
	}
}

func moveTask(store StateStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req moveTaskRequest
		if err := decodeBody(c, &req); err != nil {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid body"})
		}
		if req.Status == "" && req.BoardID == "" {
			return c.JSON(http.StatusBadRequest, errorResponse{Error: "status or boardId is required"})
		}
		taskID := c.Param("id")

		if req.BoardID != "" {
			fromID := req.FromID
			if fromID == "" {
				var ok bool
				if fromID, ok = boardOfTask(store.GetState(), taskID); !ok {
					return c.JSON(http.StatusNotFound, errorResponse{Error: domain.ErrTaskNotFound.Error()})
				}
			}
			if err := store.MoveTaskToBoard(taskID, fromID, req.BoardID); err != nil {
				return writeError(c, err)
			}
		}
		if req.Status != "" {
			task, err := store.MoveTask(taskID, req.Status)
			if err != nil {
				return writeError(c, err)
			}
			return c.JSON(http.StatusOK, task)
		}

		// Board-only move: re-resolve the task from one snapshot. It can be
		// gone by now if a concurrent delete won the race.
		st := store.GetState()
		boardID, ok := boardOfTask(st, taskID)
		if !ok {
			return c.JSON(http.StatusNotFound, errorResponse{Error: domain.ErrTaskNotFound.Error()})
		}
		board, _ := st.FindBoard(boardID)
		task, ok := board.GetTask(taskID)
		if !ok {
			return c.JSON(http.StatusNotFound, errorResponse{Error: domain.ErrTaskNotFound.Error()})
		}
		return c.JSON(http.StatusOK, task)
	}
}

func archiveTask(store StateStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		taskID := c.Param("id")
		boardID, ok := boardOfTask(store.GetState(), taskID)
		if !ok {
			return c.JSON(http.StatusNotFound, errorResponse{Error: domain.ErrTaskNotFound.Error()})
		}
		if err := store.ArchiveTask(boardID, taskID); err != nil {
			return writeError(c, err)
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func deleteTask(store StateStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		if !store.RemoveTask(c.Param("id"), c.Param("taskId")) {
			return c.JSON(http.StatusNotFound, errorResponse{Error: domain.ErrTaskNotFound.Error()})
		}
		return c.NoContent(http.StatusNoContent)
	}
}

func searchTasks(store StateStore, search Searcher, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		metrics, spanCtx := newRequestMetrics(c.Request().Context(), logger, "GET /api/search")
		c.SetRequest(c.Request().WithContext(spanCtx))
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		criteria := index.Criteria{
			Status:  domain.Status(c.QueryParam("status")),
			Text:    c.QueryParam("text"),
			Date:    c.QueryParam("date"),
			BoardID: c.QueryParam("boardId"),
		}
		if criteria.Status != "" && !domain.ValidStatus(criteria.Status) {
			metrics.SetErrorStage("invalid_status")
			err = c.JSON(http.StatusBadRequest, errorResponse{Error: "status: invalid value"})
			return err
		}
		if criteria.Date != "" && !domain.ValidDate(criteria.Date) {
			metrics.SetErrorStage("invalid_date")
			err = c.JSON(http.StatusBadRequest, errorResponse{Error: "date: invalid value"})
			return err
		}

		applyStart := time.Now()
		st := store.GetState()
		resp := searchResponse{IDs: []string{}, Tasks: []domain.Task{}}
		if search.Ready() {
			ids := search.Search(criteria)
			for _, bt := range st.ActiveTasks() {
				if ids.Contains(bt.Task.ID) {
					resp.IDs = append(resp.IDs, bt.Task.ID)
					resp.Tasks = append(resp.Tasks, bt.Task)
				}
			}
		} else {
			// The index never scans on its own; its caller does.
			resp.Degraded = true
			for _, bt := range st.ActiveTasks() {
				if index.MatchTask(bt.Task, bt.BoardID, criteria) {
					resp.IDs = append(resp.IDs, bt.Task.ID)
					resp.Tasks = append(resp.Tasks, bt.Task)
				}
			}
		}
		resp.Total = len(resp.IDs)
		metrics.ObserveApply(time.Since(applyStart))

		encodeStart := time.Now()
		err = c.JSON(http.StatusOK, resp)
		metrics.ObserveEncode(time.Since(encodeStart))
		if err != nil {
			metrics.SetErrorStage("encode_response")
		}
		return err
	}
}

func indexStats(search Searcher) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, search.Stats())
	}
}

func exportState(store StateStore) echo.HandlerFunc {
	return func(c echo.Context) error {
		opts := storage.ExportOptions{
			BoardID:         c.QueryParam("board"),
			IncludeArchived: c.QueryParam("includeArchived") == "true",
			Pretty:          c.QueryParam("pretty") == "true",
		}
		doc := store.Export(opts)
		if opts.Pretty {
			return c.JSONPretty(http.StatusOK, doc, "  ")
		}
		return c.JSON(http.StatusOK, doc)
	}
}

func importState(store StateStore, logger *log.Logger) echo.HandlerFunc {
	return func(c echo.Context) (err error) {
		metrics, spanCtx := newRequestMetrics(c.Request().Context(), logger, "POST /api/import")
		c.SetRequest(c.Request().WithContext(spanCtx))
		defer func() {
			metrics.Log(c.Response().Status, err)
		}()

		decodeStart := time.Now()
		payload, readErr := io.ReadAll(io.LimitReader(c.Request().Body, importBodyLimit))
		metrics.ObserveDecode(time.Since(decodeStart))
		if readErr != nil {
			metrics.SetErrorStage("read_body")
			err = c.JSON(http.StatusBadRequest, errorResponse{Error: "unreadable body"})
			return err
		}

		applyStart := time.Now()
		ok := store.Import(c.Request().Context(), payload)
		metrics.ObserveApply(time.Since(applyStart))
		if !ok {
			metrics.SetErrorStage("import")
			err = c.JSON(http.StatusBadRequest, errorResponse{Error: "import rejected"})
			return err
		}
		err = c.JSON(http.StatusOK, importResponse{Imported: true})
		return err
	}
}

func decodeBody(c echo.Context, dst any) error {
	dec := sonic.ConfigStd.NewDecoder(io.LimitReader(c.Request().Body, requestBodyLimit))
	dec.DisallowUnknownFields()
	return dec.Decode(dst)
}

// boardOfTask locates the board holding an active task.
func boardOfTask(st domain.AppState, taskID string) (string, bool) {
	for i := range st.Boards {
		if _, ok := st.Boards[i].GetTask(taskID); ok {
			return st.Boards[i].ID, true
		}
	}
	return "", false
}

// writeError maps core errors onto HTTP statuses: validation 400, unknown ids
// 404, duplicates 409, everything else 500.
func writeError(c echo.Context, err error) error {
	switch {
	case domain.IsValidation(err):
		return c.JSON(http.StatusBadRequest, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrBoardNotFound) || errors.Is(err, domain.ErrTaskNotFound):
		return c.JSON(http.StatusNotFound, errorResponse{Error: err.Error()})
	case errors.Is(err, domain.ErrBoardExists):
		return c.JSON(http.StatusConflict, errorResponse{Error: err.Error()})
	default:
		c.Logger().Error(err)
		return c.JSON(http.StatusInternalServerError, errorResponse{Error: err.Error()})
	}
}
