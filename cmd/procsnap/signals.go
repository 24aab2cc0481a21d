package main

import (
	"os"
	"os/signal"
	"syscall"
)

// waitForQuit blocks until the process receives a termination signal,
// mirroring the teacher's utils.WaitForQuit for the watch subcommand's
// foreground run loop.
func waitForQuit() os.Signal {
	quitSig := make(chan os.Signal, 1)
	defer close(quitSig)
	signal.Notify(quitSig, syscall.SIGHUP, syscall.SIGINT, syscall.SIGQUIT, syscall.SIGTERM)
	return <-quitSig
}
