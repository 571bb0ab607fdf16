// Copyright 2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

import (
	"net/http"

	uuid "github.com/satori/go.uuid"
	"github.com/sirupsen/logrus"
	"github.com/urfave/negroni"
)

// RequestIDHeader carries the identifier of a request, in both the
// request and the response.
const RequestIDHeader = "X-Request-Id"

// RequestID is negroni middleware that gives every request an
// identifier, unless the client already supplied one, and echoes it
// in the response.
func RequestID(rw http.ResponseWriter, req *http.Request, next http.HandlerFunc) {
	id := req.Header.Get(RequestIDHeader)
	if id == "" {
		id = uuid.NewV4().String()
		req.Header.Set(RequestIDHeader, id)
	}
	rw.Header().Set(RequestIDHeader, id)
	next(rw, req)
}

// RequestLogger is negroni middleware that logs every request at
// debug level once it completes.
type RequestLogger struct {
	Logger logrus.FieldLogger
}

func (l RequestLogger) ServeHTTP(rw http.ResponseWriter, req *http.Request, next http.HandlerFunc) {
	next(rw, req)
	fields := logrus.Fields{
		"method":     req.Method,
		"path":       req.URL.Path,
		"request_id": req.Header.Get(RequestIDHeader),
	}
	if res, ok := rw.(negroni.ResponseWriter); ok {
		fields["status"] = res.Status()
		fields["size"] = res.Size()
	}
	l.Logger.WithFields(fields).Debug("Request")
}

// Middleware wraps a handler in the standard middleware chain: panic
// recovery, request identifiers, and, if logger is non-nil, request
// logging.
func Middleware(h http.Handler, logger logrus.FieldLogger) *negroni.Negroni {
	n := negroni.New(negroni.NewRecovery(), negroni.HandlerFunc(RequestID))
	if logger != nil {
		n.Use(RequestLogger{Logger: logger})
	}
	n.UseHandler(h)
	return n
}
