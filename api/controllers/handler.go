package controllers

import (
	"net/http"

	"github.com/talentloop/talentloop-backend/api/responses"
	pkgerrors "github.com/talentloop/talentloop-backend/pkg/errors"
	"github.com/talentloop/talentloop-backend/pkg/logger"
)

// endpoint does the work of one route and returns the data to encode.
type endpoint func(r *http.Request) (any, error)

// route adapts an endpoint to net/http. Failures go through the shared
// error envelope; successes are written with status.
type route struct {
	logg       *logger.Logger
	dependency string
	ready      bool
	status     int
	// mask, when set, may swap the client-facing message of a failure.
	mask func(error) (string, bool)
}

func newRoute(logg *logger.Logger, dependency string, ready bool) route {
	return route{logg: logg, dependency: dependency, ready: ready, status: http.StatusOK}
}

func (rt route) created() route {
	rt.status = http.StatusCreated
	return rt
}

func (rt route) masking(mask func(error) (string, bool)) route {
	rt.mask = mask
	return rt
}

func (rt route) handle(fn endpoint) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !rt.ready {
			rt.fail(w, r, pkgerrors.New(pkgerrors.CodeInternal, rt.dependency+" unavailable"))
			return
		}
		data, err := fn(r)
		if err != nil {
			rt.fail(w, r, err)
			return
		}
		responses.WriteSuccessStatus(w, rt.status, data)
	}
}

func (rt route) fail(w http.ResponseWriter, r *http.Request, err error) {
	if rt.mask != nil {
		if msg, ok := rt.mask(err); ok {
			responses.WriteErrorWithMessage(r.Context(), rt.logg, w, err, msg)
			return
		}
	}
	responses.WriteError(r.Context(), rt.logg, w, err)
}
