// Package commands defines the side-channel capabilities the sgv feed can
// trigger and a route-backed implementation of them.
package commands

import (
	"context"
	"strconv"

	"github.com/okian/glucofeed/internal/domain/types"
)

// Code is the result code of a side-channel command. Zero means the command
// was not invoked; positive values are HTTP-style completion codes.
type Code int

// Invoked reports whether the command ran and produced a code.
func (c Code) Invoked() bool { return c > 0 }

// Commander exposes the side-channel operations as typed calls.
type Commander interface {
	// SetSteps records a pedometer value. value is passed through verbatim.
	SetSteps(ctx context.Context, value string) Code
	// SetHeart records a heart-rate value with the given accuracy.
	SetHeart(ctx context.Context, value string, accuracy int) Code
	// SendTasker forwards a single-word command to the tasker integration.
	SendTasker(ctx context.Context, word string) Code
}

// Router resolves an internal route path.
type Router interface {
	HandleRoute(ctx context.Context, path string) types.Result
}

// Route prefixes understood by the internal router.
const (
	StepsRoute  = "steps/set/"
	HeartRoute  = "heart/set/"
	TaskerRoute = "tasker/"
)

// RouteCommander implements Commander by synthesizing sub-paths for a Router.
type RouteCommander struct {
	router Router
}

// NewRouteCommander wraps router.
func NewRouteCommander(router Router) *RouteCommander {
	return &RouteCommander{router: router}
}

// SetSteps resolves "steps/set/<value>".
func (c *RouteCommander) SetSteps(ctx context.Context, value string) Code {
	return Code(c.router.HandleRoute(ctx, StepsRoute+value).Code)
}

// SetHeart resolves "heart/set/<value>/<accuracy>".
func (c *RouteCommander) SetHeart(ctx context.Context, value string, accuracy int) Code {
	return Code(c.router.HandleRoute(ctx, HeartRoute+value+"/"+strconv.Itoa(accuracy)).Code)
}

// SendTasker resolves "tasker/<word>".
func (c *RouteCommander) SendTasker(ctx context.Context, word string) Code {
	return Code(c.router.HandleRoute(ctx, TaskerRoute+word).Code)
}
