// Package events implements the default asynchronous event-dispatch loop.
//
// Link drivers post link-layer notifications (disconnects, address
// acquisition, teardown completion) and interested components register
// handlers for the classes they care about. Delivery happens on the loop's
// own goroutine, so a caller blocked waiting for link readiness never
// prevents the event that unblocks it from being delivered.
//
//	loop := events.NewLoop(events.DefaultQueueSize)
//	defer loop.Close()
//
//	h, _ := loop.Register(events.AddressAcquired, func(ev events.Event) {
//	    addr := ev.Data.(events.Address)
//	    fmt.Println("got", addr.Addr)
//	})
//	defer loop.Unregister(h)
package events
