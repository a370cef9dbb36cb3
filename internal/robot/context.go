package robot

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/siot-decada-robotics/rmf-ros2/internal/nav"
)

// ActionExecutor performs an out-of-band custom action. The execution
// token reports progress and completion back to the engine.
type ActionExecutor func(category string, description json.RawMessage, execution *ActionExecution)

// NavigationHandler receives motion commands issued by go-to-place events.
// done must be called exactly once with the motion result.
type NavigationHandler func(route *nav.Route, goal int, done func(error))

// TaskEndState is where the robot is expected to be when its current task
// finishes, plus its dedicated charging waypoint.
type TaskEndState struct {
	Waypoint        *int
	ChargerWaypoint *int
}

// Context is the per-robot mutable aggregate. It is owned by the fleet
// adapter for that robot; every mutation goes through the robot's Worker so
// updates are totally ordered no matter which goroutine initiated them.
//
// Getters read the current value under a short lock without passing through
// the worker queue. They may observe state concurrent with queued writers;
// callers that need a consistent point-in-time view must read from a
// scheduled job.
type Context struct {
	name    string
	fleet   string
	worker  *Worker
	graph   *nav.Graph
	planner nav.Planner
	now     func() time.Time

	mu             sync.Mutex
	location       []nav.PlanStart
	batterySOC     float64
	maximumDelay   *time.Duration
	actionExecutor ActionExecutor
	endState       TaskEndState
	navHandler     NavigationHandler
	interruptFns   []func()
}

// NewContext creates a robot context with a single initial plan start.
func NewContext(fleet, name string, graph *nav.Graph, planner nav.Planner, initial nav.PlanStart) *Context {
	return &Context{
		name:       name,
		fleet:      fleet,
		worker:     NewWorker(),
		graph:      graph,
		planner:    planner,
		now:        time.Now,
		location:   []nav.PlanStart{initial},
		batterySOC: 1.0,
	}
}

func (c *Context) Name() string          { return c.name }
func (c *Context) Fleet() string         { return c.fleet }
func (c *Context) Worker() *Worker       { return c.worker }
func (c *Context) Graph() *nav.Graph     { return c.graph }
func (c *Context) Planner() nav.Planner  { return c.planner }
func (c *Context) Now() time.Time        { return c.now() }

// Location returns a copy of the current plan-start candidates.
func (c *Context) Location() []nav.PlanStart {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]nav.PlanStart(nil), c.location...)
}

// BatterySOC returns the current state of charge in [0, 1].
func (c *Context) BatterySOC() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.batterySOC
}

// MaximumDelay returns the configured delay tolerance, or nil when unset.
// This is a relaxed read: it does not wait for queued writers.
func (c *Context) MaximumDelay() *time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.maximumDelay
}

// TaskEndState returns the expected end state of the current task.
func (c *Context) TaskEndState() TaskEndState {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.endState
}

// ActionExecutor returns the registered custom-action executor, or nil.
func (c *Context) ActionExecutor() ActionExecutor {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.actionExecutor
}

// NavigationHandler returns the registered motion command sink, or nil.
func (c *Context) NavigationHandler() NavigationHandler {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.navHandler
}

// SetNavigationHandler registers the sink that receives motion commands.
// Called once by the fleet integrator during setup.
func (c *Context) SetNavigationHandler(handler NavigationHandler) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.navHandler = handler
}

// SetTaskEndState records where the robot will be once its current task
// finishes. Called by the execution engine when a task is assigned or
// completes; the mutation goes through the worker like any other.
func (c *Context) SetTaskEndState(state TaskEndState) {
	c.worker.Schedule(func() {
		c.setEndState(state)
	})
}

// OnInterrupt registers a callback invoked when the integrator reports an
// interruption. Callbacks run on the worker.
func (c *Context) OnInterrupt(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.interruptFns = append(c.interruptFns, fn)
}

// Destroy stops the worker. Pending jobs drain before it returns.
func (c *Context) Destroy() {
	c.worker.Stop()
}

// The setters below are only called from jobs already running on the
// worker, so they hold the lock just long enough to publish the value for
// relaxed readers.

func (c *Context) setLocation(starts []nav.PlanStart) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.location = starts
}

func (c *Context) setBatterySOC(soc float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.batterySOC = soc
}

func (c *Context) setMaximumDelay(d *time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.maximumDelay = d
}

func (c *Context) setActionExecutor(executor ActionExecutor) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.actionExecutor = executor
}

func (c *Context) setEndState(state TaskEndState) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.endState = state
}

func (c *Context) interruptHandlers() []func() {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]func(), len(c.interruptFns))
	copy(out, c.interruptFns)
	return out
}
