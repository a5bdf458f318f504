// Package pebblestore wraps Pebble with an fsync policy, prefix scans and a
// small metrics hook. logcache keeps service metadata here; log records
// themselves live in memory and in per-service files.
//
//	db, err := pebblestore.Open(pebblestore.Options{DataDir: "./meta", Fsync: pebblestore.FsyncModeAlways})
//	if err != nil { /* handle */ }
//	defer db.Close()
//	_ = db.Set([]byte("k"), []byte("v"))
//	_ = db.ScanPrefix([]byte("svc/"), func(k, v []byte) error { return nil })
package pebblestore
