package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/evogene-server/internal/domain"
	"github.com/evogene-server/internal/logging"
	"github.com/evogene-server/internal/router"
	"github.com/evogene-server/internal/task"
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
)

// chatRequest accepts either user_query or prompt
type chatRequest struct {
	UserQuery   string      `json:"user_query" binding:"max=500"`
	Prompt      string      `json:"prompt" binding:"max=500"`
	SessionID   string      `json:"session_id" binding:"max=100"`
	PatientData interface{} `json:"patient_data"`
}

func (r chatRequest) query() string {
	if r.UserQuery != "" {
		return r.UserQuery
	}
	return r.Prompt
}

// variantTaskResult is the payload stored for a background variant analysis
type variantTaskResult struct {
	Status       string `json:"status"`
	Report       string `json:"report"`
	ModelResult  string `json:"model_result"`
	ErrorMessage string `json:"error_message"`
}

func (s *Server) bindChat(c *gin.Context) (chatRequest, bool) {
	var req chatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest, fieldErrors(err))
		return req, false
	}
	if req.query() == "" {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"non_field_errors": []string{"Either 'user_query' or 'prompt' is required."},
		})
		return req, false
	}
	return req, true
}

// handleChat runs one chat turn synchronously. With ?async=true it behaves
// like handleChatAsync.
func (s *Server) handleChat(c *gin.Context) {
	if async, _ := strconv.ParseBool(c.Query("async")); async {
		s.handleChatAsync(c)
		return
	}

	req, ok := s.bindChat(c)
	if !ok {
		return
	}

	state, err := s.deps.Chat.Chat(c.Request.Context(), router.ChatRequest{
		SessionID:   req.SessionID,
		Query:       req.query(),
		PatientData: req.PatientData,
	})
	if err != nil {
		logging.FromContext(c.Request.Context(), s.log).WithError(err).Error("Graph execution failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":   "Internal Server Error during graph execution",
			"details": err.Error(),
		})
		return
	}

	c.JSON(http.StatusOK, router.NewChatResponse(state))
}

// handleChatAsync queues a standalone variant analysis and returns its id
func (s *Server) handleChatAsync(c *gin.Context) {
	req, ok := s.bindChat(c)
	if !ok {
		return
	}

	query := req.query()
	entry := logging.FromContext(c.Request.Context(), s.log)
	taskID, err := s.deps.Tasks.Submit(func(ctx context.Context) (domain.TaskStatus, interface{}) {
		state, err := s.deps.Chat.AnalyzeVariant(ctx, query)
		if err != nil {
			entry.WithError(err).Error("Background variant analysis failed")
			return domain.TaskError, variantTaskResult{
				Status:       string(domain.TaskError),
				ErrorMessage: err.Error(),
			}
		}

		resp := router.NewChatResponse(state)
		status := domain.TaskSuccess
		if resp.Status == router.StatusError {
			status = domain.TaskError
		}
		return status, variantTaskResult{
			Status:       resp.Status,
			Report:       resp.Report,
			ModelResult:  state.ModelResult,
			ErrorMessage: resp.ErrorMessage,
		}
	})
	if err != nil {
		if errors.Is(err, task.ErrQueueFull) || errors.Is(err, task.ErrPoolClosed) {
			abortAPIError(c, http.StatusServiceUnavailable, domain.ErrQueueFull, "Task queue is full, try again later", err.Error())
			return
		}
		abortAPIError(c, http.StatusInternalServerError, domain.ErrInternalServer, "Failed to queue task", err.Error())
		return
	}

	entry.WithField("task_id", taskID).Info("Variant analysis queued")
	c.JSON(http.StatusAccepted, gin.H{
		"task_id": taskID,
		"status":  string(domain.TaskProcessing),
		"message": "Analysis started in background",
	})
}

// handleTaskStatus returns the stored task payload, or processing while the
// task has not finished
func (s *Server) handleTaskStatus(c *gin.Context) {
	taskID := c.Param("task_id")

	result, err := s.deps.Tasks.Result(c.Request.Context(), taskID)
	if errors.Is(err, domain.ErrNotFound) {
		c.JSON(http.StatusAccepted, gin.H{"status": string(domain.TaskProcessing)})
		return
	}
	if err != nil {
		logging.FromContext(c.Request.Context(), s.log).WithFields(logrus.Fields{
			"task_id": taskID,
			"error":   err,
		}).Error("Failed to read task result")
		abortAPIError(c, http.StatusInternalServerError, domain.ErrDatabaseError, "Failed to read task result", err.Error())
		return
	}

	c.Data(http.StatusOK, "application/json; charset=utf-8", result.Payload)
}
