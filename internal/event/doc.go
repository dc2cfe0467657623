// Package event carries supervisor notifications to whoever hosts the
// supervisor: session lifecycle, state transitions and captured output.
//
// # Thread Safety
//
// [Bus] is safe for concurrent use. Handlers are called synchronously on the
// publishing goroutine; output pumps publish [OutputLineEvent] from their own
// goroutines, so a slow handler slows capture of that stream.
//
// # Basic Usage
//
//	bus := event.NewBus(logger)
//	bus.Subscribe(event.TypeOutputLine, func(e event.Event) {
//	    line := e.(event.OutputLineEvent).Line
//	    fmt.Println(line.Text)
//	})
//	sup := supervisor.New(l, cfg, logger, supervisor.WithBus(bus))
package event
