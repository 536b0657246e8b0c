package servers

import (
	"context"
	"net/http"

	"github.com/qmdx00/lifecycle"
	"github.com/robfig/cron/v3"
)

var (
	_ Server = (*httpServer)(nil)
	_ Server = (*cronServer)(nil)
)

type Server interface {
	lifecycle.Server
}

var (
	_ CronServer = (*cron.Cron)(nil)
)

type CronServer interface {
	Start()
	Stop() context.Context
}

//

var (
	_ BuildHttpServerFn = BuildHttpServer
	_ BuildCronServerFn = BuildCronServer
)

type BuildHttpServerFn func(name string, server *http.Server) (string, Server)

type BuildCronServerFn func(name string, internal CronServer) (string, Server)
