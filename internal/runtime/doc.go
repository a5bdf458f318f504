// Package runtime wires the service catalog, the cache registry and the
// persistence writer into a single server instance. Sessions, the admin API
// and shutdown all go through one Runtime so every connection observes the
// same named stores.
//
// Example:
//
//	rt, err := runtime.Open(runtime.Options{Config: config.Default()})
//	if err != nil {
//	    return err
//	}
//	defer rt.Close()
//	store, _ := rt.Attach(ctx, "svc1", false)
//	_ = rt.Append(store, logstore.NewRecord("2024-01-01T00:00:00", "boot"))
//	_, _ = rt.Flush(ctx, store)
package runtime
