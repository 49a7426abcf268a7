package router

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog/log"

	"github.com/thatsimonsguy/irrigation-controller/internal/faults"
	"github.com/thatsimonsguy/irrigation-controller/internal/model"
	"github.com/thatsimonsguy/irrigation-controller/internal/pump"
	"github.com/thatsimonsguy/irrigation-controller/internal/render"
)

type Action string

const (
	ActionIndex     Action = "index"
	ActionLightOn   Action = "lighton"
	ActionLightOff  Action = "lightoff"
	ActionPump      Action = "pump"
	ActionBadPump   Action = "pump_invalid"
	ActionAutoWater Action = "autowater"
	ActionThreshold Action = "threshold"
	ActionData      Action = "data"
	ActionPumpLog   Action = "pumplog"
	ActionUpdate    Action = "update"
	ActionNotFound  Action = "not_found"
)

type Pump interface {
	Activate(now time.Time, reason pump.Reason) error
	Deactivate(now time.Time, reason pump.Reason) error
	SetThreshold(v float64) error
	Threshold() float64
	Running() bool
	Records() []model.ActivationRecord
}

type Light interface {
	Set(on bool) error
	On() bool
}

type Override interface {
	Set(active bool)
	Active() bool
}

type Updater interface {
	Apply(ctx context.Context) string
}

type Request struct {
	Path  string
	Query url.Values
}

// Outcome is what dispatching a request did. The response body is built
// later from the outcome and the iteration's fresh sensor sample.
type Outcome struct {
	Action        Action
	Status        int
	Message       string
	UpdateMessage string
	Err           error
}

type Result struct {
	Status int
	Body   string
}

// View carries the per-iteration values the response needs.
type View struct {
	Sample        model.SensorSample
	History       []model.HistoryPoint
	UpdateMessage string
}

// Router maps a request to an action against its collaborators. It keeps no
// state of its own; the mux table is only used for matching.
type Router struct {
	routes   *mux.Router
	pump     Pump
	light    Light
	override Override
	updater  Updater
}

func New(p Pump, l Light, o Override, u Updater) *Router {
	r := mux.NewRouter()
	r.Path("/").Name(string(ActionIndex))
	r.Path("/lighton").Name(string(ActionLightOn))
	r.Path("/lightoff").Name(string(ActionLightOff))
	r.Path("/pump").Queries("action", "{action:on|off}").Name(string(ActionPump))
	r.Path("/pump").Name(string(ActionBadPump))
	r.Path("/autowater").Name(string(ActionAutoWater))
	r.Path("/threshold").Name(string(ActionThreshold))
	r.Path("/data").Name(string(ActionData))
	r.Path("/pumplog").Name(string(ActionPumpLog))
	r.Path("/update").Name(string(ActionUpdate))

	return &Router{routes: r, pump: p, light: l, override: o, updater: u}
}

// Classify resolves a request to an action and its route variables.
func (rt *Router) Classify(req Request) (Action, map[string]string) {
	httpReq := &http.Request{
		Method: http.MethodGet,
		URL:    &url.URL{Path: req.Path, RawQuery: req.Query.Encode()},
	}
	var match mux.RouteMatch
	if !rt.routes.Match(httpReq, &match) || match.Route == nil {
		return ActionNotFound, nil
	}
	return Action(match.Route.GetName()), match.Vars
}

// Quiet reports whether a path is polled by the page and should only be
// logged at debug level.
func Quiet(path string) bool {
	return path == "/data" || path == "/pumplog"
}

func (rt *Router) Dispatch(ctx context.Context, req Request, now time.Time) Outcome {
	action, vars := rt.Classify(req)
	out := Outcome{Action: action, Status: http.StatusOK}

	switch action {
	case ActionLightOn, ActionLightOff:
		out.Err = rt.light.Set(action == ActionLightOn)

	case ActionPump:
		rt.override.Set(true)
		if vars["action"] == "on" {
			out.Err = rt.pump.Activate(now, pump.ReasonManual)
		} else {
			out.Err = rt.pump.Deactivate(now, pump.ReasonManual)
		}

	case ActionBadPump:
		out.Status = http.StatusBadRequest
		out.Message = render.InvalidPumpAction
		out.Err = faults.New(faults.RequestError, "pump", fmt.Errorf("action %q", req.Query.Get("action")))

	case ActionAutoWater:
		rt.override.Set(false)

	case ActionThreshold:
		if err := rt.setThreshold(req.Query.Get("value")); err != nil {
			out.Status = http.StatusBadRequest
			out.Message = render.InvalidThreshold
			out.Err = err
		}

	case ActionUpdate:
		out.UpdateMessage = rt.updater.Apply(ctx)

	case ActionNotFound:
		out.Status = http.StatusNotFound
		out.Message = render.NotFoundBody
		out.Err = faults.New(faults.RequestError, "route", fmt.Errorf("no route for %s", req.Path))
	}

	if out.Err != nil {
		// Actuator failures keep a 200 so the page still renders.
		log.Warn().Err(out.Err).Str("path", req.Path).Int("status", out.Status).Msg("Request not fully applied")
	}
	return out
}

func (rt *Router) setThreshold(raw string) error {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return faults.New(faults.RequestError, "threshold", fmt.Errorf("missing value"))
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return faults.New(faults.RequestError, "threshold", err)
	}
	return rt.pump.SetThreshold(v)
}

// Respond builds the HTTP result for an outcome. Data, log and update
// endpoints get their raw payload, errors get a short message, and
// everything else gets the full page.
func (rt *Router) Respond(o Outcome, v View) Result {
	if o.Status != http.StatusOK {
		return Result{Status: o.Status, Body: o.Message}
	}

	switch o.Action {
	case ActionData:
		return Result{Status: http.StatusOK, Body: render.Data(v.Sample)}
	case ActionPumpLog:
		return Result{Status: http.StatusOK, Body: render.PumpLog(rt.pump.Records())}
	case ActionUpdate:
		return Result{Status: http.StatusOK, Body: render.UpdateJSON(o.UpdateMessage)}
	}

	page, err := render.Page(render.PageData{
		Temperature:   v.Sample.Temperature,
		Moisture:      v.Sample.Moisture,
		PumpOn:        rt.pump.Running(),
		LightOn:       rt.light.On(),
		AutoWater:     !rt.override.Active(),
		Threshold:     rt.pump.Threshold(),
		History:       v.History,
		UpdateMessage: v.UpdateMessage,
	})
	if err != nil {
		log.Error().Err(err).Msg("Page render failed")
		return Result{Status: http.StatusInternalServerError, Body: "render failed"}
	}
	return Result{Status: http.StatusOK, Body: page}
}
