package runtime

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"net/http"
	"slices"

	"github.com/BDNK1/sfnsim/runtime/states"
	"github.com/gin-gonic/gin"
)

const (
	StatusSucceeded = "SUCCEEDED"
	StatusFailed    = "FAILED"
)

// NewHttpHandler registers the execution endpoints for the machines in
// registry on g.
//
//	GET  /state-machines
//	POST /state-machines/:name/executions
func NewHttpHandler(registry map[string]*StateMachine, l *slog.Logger, g *gin.Engine) {
	if l == nil {
		l = slog.Default()
	}
	l.Info(fmt.Sprintf("registering HTTP entrypoints for %d state machines", len(registry)))

	g.GET("/state-machines", listStateMachines(registry))
	g.POST("/state-machines/:name/executions", startExecution(registry, l))
}

func listStateMachines(registry map[string]*StateMachine) gin.HandlerFunc {
	names := slices.Sorted(maps.Keys(registry))
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"stateMachines": names})
	}
}

var wrongBodyFormatRes = gin.H{"message": "Wrong request body format"}

func startExecution(registry map[string]*StateMachine, l *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		name := c.Param("name")
		machine, ok := registry[name]
		if !ok {
			c.JSON(http.StatusNotFound, gin.H{"message": "State machine not found: " + name})
			return
		}

		input, ok := extractJsonBody(c)
		if !ok {
			c.JSON(http.StatusBadRequest, wrongBodyFormatRes)
			return
		}

		result := machine.Run(c.Request.Context(), input)
		if result.Err != nil {
			toFailure(c, l, name, result)
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"executionId": result.ExecutionID,
			"status":      StatusSucceeded,
			"output":      result.Output,
		})
	}
}

// extractJsonBody decodes the request body. An empty body is an empty object.
func extractJsonBody(c *gin.Context) (any, bool) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		return nil, false
	}
	if len(body) == 0 {
		return map[string]any{}, true
	}

	var parsed any
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, false
	}
	return parsed, true
}

// toFailure reports a failed execution with 200 and its error name and cause.
// Errors that carry no name never reached the definition and are a 500.
func toFailure(c *gin.Context, l *slog.Logger, name string, result Result) {
	err := result.Err
	se, named := states.As(err)
	if !named {
		l.Error("Execution could not start",
			"stateMachine", name,
			"path", c.Request.URL.Path,
			"error", err.Error())
		c.JSON(http.StatusInternalServerError, gin.H{"message": "Error starting execution: " + err.Error()})
		return
	}

	l.Info("Execution failed",
		"stateMachine", name,
		"executionId", result.ExecutionID,
		"error", se.Name)
	c.JSON(http.StatusOK, gin.H{
		"executionId": result.ExecutionID,
		"status":      StatusFailed,
		"error":       se.Name,
		"cause":       se.Cause,
	})
}
