// Package api exposes schema provisioning and expense ingestion over HTTP.
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/developer-mesh/expense-store/pkg/database"
	"github.com/developer-mesh/expense-store/pkg/ingest"
	"github.com/developer-mesh/expense-store/pkg/models"
	"github.com/developer-mesh/expense-store/pkg/observability"
)

// SchemaProvisioner creates the expenses schema
type SchemaProvisioner interface {
	EnsureSchema(ctx context.Context, connectionString string) database.SchemaResult
}

// ExpenseWriter inserts expense batches
type ExpenseWriter interface {
	InsertBatch(ctx context.Context, expenses []models.Expense, connectionString string) (database.InsertResult, error)
}

// SchemaChecker reports the state of the expenses schema
type SchemaChecker interface {
	Inspect(ctx context.Context, connectionString string) (database.SchemaStatus, error)
}

// ErrorResponse is the body of a rejected request
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// ExpenseHandler handles schema and expense endpoints
type ExpenseHandler struct {
	provisioner SchemaProvisioner
	writer      ExpenseWriter
	checker     SchemaChecker
	timeout     time.Duration
	logger      observability.Logger
}

// NewExpenseHandler creates a new expense handler. A positive timeout bounds
// every database call made on behalf of a request.
func NewExpenseHandler(
	provisioner SchemaProvisioner,
	writer ExpenseWriter,
	checker SchemaChecker,
	timeout time.Duration,
	logger observability.Logger,
) *ExpenseHandler {
	if logger == nil {
		logger = observability.NewNoopLogger()
	}
	return &ExpenseHandler{
		provisioner: provisioner,
		writer:      writer,
		checker:     checker,
		timeout:     timeout,
		logger:      logger.WithPrefix("api"),
	}
}

// RegisterRoutes registers all expense API routes
func (h *ExpenseHandler) RegisterRoutes(router *gin.RouterGroup) {
	router.POST("/schema", h.EnsureSchema)
	router.POST("/expenses", h.InsertExpenses)
}

func (h *ExpenseHandler) requestContext(c *gin.Context) (context.Context, context.CancelFunc) {
	if h.timeout <= 0 {
		return context.WithCancel(c.Request.Context())
	}
	return context.WithTimeout(c.Request.Context(), h.timeout)
}

// EnsureSchema provisions the expenses schema
func (h *ExpenseHandler) EnsureSchema(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	result := h.provisioner.EnsureSchema(ctx, "")
	if !result.Success() {
		c.JSON(http.StatusInternalServerError, result)
		return
	}
	c.JSON(http.StatusOK, result)
}

// InsertExpenses inserts a JSON array of expenses as one batch
func (h *ExpenseHandler) InsertExpenses(c *gin.Context) {
	var expenses []models.Expense
	if err := c.ShouldBindJSON(&expenses); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: "Invalid request body", Details: err.Error()})
		return
	}

	for i, e := range expenses {
		if err := e.Validate(); err != nil {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "Invalid expense",
				Details: (&ingest.RecordError{Record: i + 1, Err: err}).Error(),
			})
			return
		}
	}

	ctx, cancel := h.requestContext(c)
	defer cancel()

	result, err := h.writer.InsertBatch(ctx, expenses, "")
	if err != nil {
		if errors.Is(err, database.ErrInvalidArgument) {
			c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
			return
		}
		h.logger.Error("Insert batch failed", map[string]interface{}{
			"error": err.Error(),
		})
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "Internal server error"})
		return
	}

	if !result.Success() {
		c.JSON(http.StatusInternalServerError, result)
		return
	}
	c.JSON(http.StatusCreated, result)
}

// Health reports healthy once the schema is fully provisioned
func (h *ExpenseHandler) Health(c *gin.Context) {
	ctx, cancel := h.requestContext(c)
	defer cancel()

	status, err := h.checker.Inspect(ctx, "")
	if err != nil {
		h.logger.Warn("Health check failed", map[string]interface{}{
			"error": err.Error(),
		})
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "error": err.Error()})
		return
	}
	if !status.Ready() {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unhealthy", "schema": status})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "healthy", "schema": status})
}
