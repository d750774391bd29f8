package orm

import "net/http"

// Response is the status marker attached to an entity by repository calls.
// A not-found lookup yields an entity whose Response.Status is 404 instead of
// an error.
type Response struct {
	Status  int
	Title   string
	Details []string
}

// Model is embedded by every entity.
type Model struct {
	ID       int64     `json:"id"`
	Response *Response `json:"-"`
}

// Base returns the embedded model.
func (m *Model) Base() *Model {
	return m
}

// SetResponse attaches a status marker.
func (m *Model) SetResponse(status int, details ...string) {
	m.Response = &Response{Status: status, Title: http.StatusText(status), Details: details}
}

// Status returns the attached status, 0 when there is none.
func (m *Model) Status() int {
	if m.Response == nil {
		return 0
	}
	return m.Response.Status
}

// IsNotFound reports whether the entity is the not-found sentinel.
func (m *Model) IsNotFound() bool {
	return m.Status() == http.StatusNotFound
}

// Entity is implemented by every struct embedding Model.
type Entity interface {
	Base() *Model
}
