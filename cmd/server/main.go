package main

import (
	"os"

	_ "taskboard/docs"
)

// @title           Taskboard API
// @version         1.0
// @description     Kanban task board with per-column ordering.

// @host      localhost:8080
// @BasePath  /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

// @schemes http
func main() {
	if err := newRootCommand().Execute(); err != nil {
		os.Exit(1)
	}
}
