package main

import (
	"github.com/newstrace/backend/internal/server"
	"github.com/newstrace/backend/internal/util"
	"github.com/newstrace/backend/pkg/logger"
	"github.com/newstrace/backend/pkg/logger/console"
)

func main() {
	util.LoadEnv()

	debug := util.GetEnvBool("DEBUG", false)

	consoleLogger := console.NewConsoleLogger(console.ConsoleLoggerParams{
		Debug: debug,
	})
	logger.Init(consoleLogger)

	server.Init()
}
