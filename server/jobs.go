package server

import (
	"github.com/nudgelabs/nudged/server/dispatch"
	"github.com/nudgelabs/nudged/server/work"
)

const sweepOpenSendsHandler = "sweep_open_sends"

// The sweep catches sends whose delivery jobs got lost, e.g. across a
// restart between nudge creation and enqueue.
func registerJobHandlers(wpa *work.WorkerPoolAdapter, dispatcher *dispatch.Scheduler) {
	err := wpa.Register(sweepOpenSendsHandler, func(map[string]interface{}) error {
		return dispatcher.EnqueueOpenSends()
	})
	if err != nil {
		logg.Error(err)
	}
}

func enqueueJobs(wpa *work.WorkerPoolAdapter) {
	err := wpa.PeriodicallyPerform("*/10 * * * *", work.JobParams{
		Name:    sweepOpenSendsHandler,
		Handler: sweepOpenSendsHandler,
		Args:    map[string]interface{}{},
	})
	if err != nil {
		logg.Error(err)
	}
}
