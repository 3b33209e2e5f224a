// Command rowrun runs the automaton.
//
// With the mesh transport every participant runs in this process. With the
// websocket transport this process hosts one participant (--rank) and
// every participant process is started with the same --peers list.
package main

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/gin-gonic/gin"

	"github.com/sbl8/rowlife/logging"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	gin.SetMode(gin.ReleaseMode)
	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		var logged *loggedError
		if !errors.As(err, &logged) {
			logging.New(logging.Config{Service: "rowrun"}).Error("rowrun failed", "error", err)
		}
		stop()
		os.Exit(1)
	}
}
