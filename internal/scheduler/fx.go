package scheduler

import (
	"context"

	"go.uber.org/fx"
)

var Module = fx.Module("scheduler",
	fx.Provide(DefaultConfig),
	fx.Provide(NewNotifier),
	fx.Provide(NewWaitlistSweeper),
	fx.Invoke(runWorkers),
)

func runWorkers(lc fx.Lifecycle, notifier *Notifier, sweeper *WaitlistSweeper) {
	workerCtx, cancel := context.WithCancel(context.Background())
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			go notifier.RunForever(workerCtx)
			go sweeper.RunForever(workerCtx)
			return nil
		},
		OnStop: func(context.Context) error {
			cancel()
			return nil
		},
	})
}
