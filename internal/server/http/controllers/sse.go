package controllers

import (
	"encoding/json"
	"net/http"
)

// sseWriter formats log records as Server-Sent Events.
type sseWriter struct {
	w http.ResponseWriter
}

// Send writes rec as one SSE data event.
func (s sseWriter) Send(rec recordJSON) error {
	b, err := json.Marshal(rec)
	if err != nil {
		return err
	}
	if _, err := s.w.Write([]byte("data: ")); err != nil {
		return err
	}
	if _, err := s.w.Write(b); err != nil {
		return err
	}
	_, err = s.w.Write([]byte("\n\n"))
	return err
}

// Flush pushes buffered events to the client.
func (s sseWriter) Flush() {
	if f, ok := s.w.(http.Flusher); ok {
		f.Flush()
	}
}
