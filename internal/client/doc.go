// Package client queries a remote probewatch daemon over its HTTP API.
//
// A daemon in connected mode serves /api/status and /api/table (see package
// web). Client wraps both endpoints with a bounded exponential retry for
// transient failures:
//
//	c := client.New("http://192.168.1.40:8080")
//	st, err := c.Status(ctx)
//	if err != nil {
//	    fmt.Println(client.ShortMessage(err))
//	}
//
// Errors are returned as *SensorError, classified by ErrorType so callers
// can tell an unreachable sensor from one that answered badly.
package client
