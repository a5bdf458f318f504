// Package protocol defines the logcache line protocol: the op table, request
// parsing and validation, and the fixed-size reply and data frames.
//
// A request is one ASCII line "<OP>[ <data>]". The server answers every
// request with one LineSize reply holding either the op's success text or
// "FAILED: <reason>". STAT and GETLOGS send their data frames before the
// reply, and only when the op succeeds.
package protocol
