// Package id issues short, ordered session identifiers.
//
// Usage
//
//	g := id.NewGenerator()
//	sid := g.Next()
//	logger.With(log.Str("session", sid.String()))
package id
