// Copyright 2026 Joseph Cumines
//
// Permission to use, copy, modify, and distribute this software for any
// purpose with or without fee is hereby granted, provided that this copyright
// notice appears in all copies.

// Package gojascheduler binds the [scheduler] package, and the rest of the
// legacy environment, into the Goja JavaScript runtime.
//
// # Hosting
//
// [Host] implements [scheduler.Host] atop the goja_nodejs event loop, which
// owns the runtime. Scripts are loaded (require, ScriptInjector.fromUrl)
// from an [afero.Fs], see [WithFs].
//
//	host, err := gojascheduler.NewHost(gojascheduler.WithLogger(logger))
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	err = host.Run(ctx, func(vm *goja.Runtime) {
//	    adapter, err := gojascheduler.New(host, vm)
//	    if err != nil {
//	        panic(err)
//	    }
//	    if err := adapter.Bind(); err != nil {
//	        panic(err)
//	    }
//	    _, _ = vm.RunString(`
//	        Scheduler.scheduleDeferred(function () { console.log("deferred"); });
//	        Scheduler.scheduleFinally(function () { console.log("finally"); });
//	    `)
//	})
//
// [Host.Run] returns once there are no more outstanding host jobs (timers
// scheduled via [Host.ScheduleTimer], and [Host.RunOnLoop] functions), like
// Node.js. A job that schedules another keeps the loop alive.
//
// To host the bindings on some other [scheduler.Host], initialize the
// runtime using [NewRuntime].
//
// # Failures
//
// A script exception thrown by a scheduled command is a command failure,
// reported through [Adapter.OnUncaughtException]: to the script's handler,
// if one was set via GWT.setUncaughtExceptionHandler, otherwise to the Go
// handler, see [WithUncaughtHandler]. Errors returned by the scheduler, e.g.
// for an invalid interval, are thrown as GoError values.
package gojascheduler
