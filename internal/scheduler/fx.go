package scheduler

import (
	"context"

	"go.uber.org/fx"
)

// Module provides the Scheduler without starting it; the cron endpoint
// drives RunOnce on demand.
var Module = fx.Module("scheduler",
	fx.Provide(New),
)

// RunModule additionally runs the sweep loop for the lifetime of the app.
var RunModule = fx.Module("scheduler.run",
	fx.Invoke(StartSweepLoop),
)

func StartSweepLoop(lc fx.Lifecycle, sched *Scheduler) {
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			ctx, cancel := context.WithCancel(context.Background())

			go sched.RunForever(ctx)

			lc.Append(fx.Hook{
				OnStop: func(context.Context) error {
					cancel()
					return nil
				},
			})

			return nil
		},
	})
}
