// Copyright 2015-2017 Diffeo, Inc.
// This software is released under an MIT/X11 open source license.

package restserver

// This file contains the request pipeline every endpoint shares.
//
// A request is handled in a fixed order: negotiate the response
// format from the Accept: header, build the datastore parameters,
// call the datastore action, strip the datastore's row ids from the
// result and render it, and write the response.  A failure at any
// step goes through the error taxonomy in restdata and is written as
// JSON.

import (
	"fmt"
	"net/http"

	"github.com/diffeo/go-datastore/datastore"
	"github.com/diffeo/go-datastore/restdata"
	"github.com/sirupsen/logrus"
)

// paramBuilder builds the parameters of a datastore action from a
// request.  It may call other actions through ctx.
type paramBuilder func(ctx *context) (datastore.Dict, error)

// shaper renders the result of a datastore action as a response body.
type shaper func(ctx *context, result datastore.Dict) (string, error)

// locator returns the URL of a resource created by a request.
type locator func(ctx *context) (string, error)

// actionHandler serves one endpoint by calling one datastore action.
type actionHandler struct {
	API *restAPI

	// Name identifies the endpoint in logs and metrics.
	Name string

	// Action is the datastore action to call.
	Action string

	// Formats are the acceptable response formats, default first.
	Formats []restdata.Format

	// Params builds the action parameters.
	Params paramBuilder

	// Shape renders the action result.
	Shape shaper

	// Location, if non-nil, makes a successful response 201
	// Created with this Location: header.
	Location locator
}

func (h *actionHandler) ServeHTTP(resp http.ResponseWriter, req *http.Request) {
	var (
		ctx      *context
		params   datastore.Dict
		result   datastore.Dict
		body     string
		location string
		err      error
		status   int
	)
	start := h.API.Clock.Now()
	f := &finisher{Response: resp, Request: req}

	defer func() {
		if recovered := recover(); recovered != nil {
			httpErr, stack := restdata.FromPanic(recovered)
			h.log(req).WithFields(logrus.Fields{
				"panic": fmt.Sprint(recovered),
				"stack": stack,
			}).Error("Panic in request handler")
			status = f.FinishError(httpErr)
		}
		h.API.Metrics.observe(h.Name, status, h.API.Clock.Now().Sub(start))
	}()

	ctx, err = h.API.Context(req)

	// Negotiating
	if err == nil {
		ctx.Format, err = restdata.Negotiate(req.Header.Get("Accept"), h.Formats)
	}

	// ParamBuilding
	if err == nil {
		params, err = h.Params(ctx)
	}

	// Invoking
	if err == nil {
		result, err = ctx.Call(h.Action, params)
	}

	// Shaping
	if err == nil {
		if result == nil {
			result = datastore.Dict{}
		}
		datastore.StripBookkeeping(result)
		body, err = h.Shape(ctx, result)
	}
	if err == nil && h.Location != nil {
		location, err = h.Location(ctx)
	}

	// Responding
	if err != nil {
		httpErr := restdata.FromError(err, params)
		if httpErr.Status >= http.StatusInternalServerError {
			h.log(req).WithFields(logrus.Fields{
				"err":  err,
				"type": fmt.Sprintf("%T", err),
			}).Error("Unexpected error")
		}
		status = f.FinishError(httpErr)
		return
	}
	status = f.FinishOK(body, ctx.Format, location)
}

// log returns a logger carrying the request's identity.
func (h *actionHandler) log(req *http.Request) logrus.FieldLogger {
	return h.API.Logger.WithFields(logrus.Fields{
		"action":     h.Action,
		"endpoint":   h.Name,
		"method":     req.Method,
		"path":       req.URL.Path,
		"request_id": req.Header.Get(RequestIDHeader),
	})
}
