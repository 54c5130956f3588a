package tasks

import (
	"context"
	"fmt"
	"log"

	"gorm.io/gorm"
)

// LogInfoTaskDef logs its arguments. Useful for checking that the worker
// picks tasks up end to end.
type LogInfoTaskDef struct{}

// TaskID returns the unique identifier for this task
func (t *LogInfoTaskDef) TaskID() string {
	return "log_info"
}

// HandleExecution logs the task arguments
func (t *LogInfoTaskDef) HandleExecution(ctx context.Context, db *gorm.DB, args map[string]any) (map[string]any, error) {
	message, _ := args["message"].(string)
	if message == "" {
		message = fmt.Sprintf("log_info: %v", args)
	}
	log.Println(message)
	return map[string]any{"logged": message}, nil
}

// LogInfoTask is the singleton instance of LogInfoTaskDef
var LogInfoTask = &LogInfoTaskDef{}
