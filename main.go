package main

import (
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/lunfardo314/tangle/node"
)

const stopTimeout = 10 * time.Second

func main() {
	killChan := make(chan os.Signal, 1)
	signal.Notify(killChan, syscall.SIGINT, syscall.SIGTERM)

	n := node.New()
	go func() {
		<-killChan
		n.Stop()
	}()

	n.Start()

	n.WaitAllWorkProcessesToStop(stopTimeout)
	n.WaitAllDBClosed()
	n.Log().Info("tangle node has been stopped")
}
