package runtime

import (
	"context"
	"fmt"
	"maps"
	"slices"
)

// App is a set of state machines sharing one resource catalog. Every machine
// is also registered as a stepFunctions resource, so machines can start each
// other through states:startExecution.
type App struct {
	Container *Container
	Machines  map[string]*StateMachine
}

// NewApp loads every definition in dir. Machines are named after their files.
func NewApp(dir string, resources []Resource, opts *Options) (*App, error) {
	defs, err := LoadDefinitionDir(dir)
	if err != nil {
		return nil, err
	}
	return NewAppFromDefinitions(defs, resources, opts)
}

// NewAppFromDefinitions loads the given definitions keyed by machine name.
func NewAppFromDefinitions(defs map[string]*Definition, resources []Resource, opts *Options) (*App, error) {
	app := App{
		Container: NewContainer(),
		Machines:  make(map[string]*StateMachine, len(defs)),
	}

	for _, r := range resources {
		if err := app.Container.Register(r); err != nil {
			return nil, fmt.Errorf("failed to register resource: %w", err)
		}
	}

	for _, name := range slices.Sorted(maps.Keys(defs)) {
		if err := app.RegisterStateMachine(name, defs[name], opts); err != nil {
			return nil, err
		}
	}
	return &app, nil
}

// RegisterStateMachine loads def under name and makes it reachable from the
// other machines of the app.
func (a *App) RegisterStateMachine(name string, def *Definition, opts *Options) error {
	machineOpts := Options{}
	if opts != nil {
		machineOpts = *opts
	}
	machineOpts.StateMachineName = name

	machine, err := load(def, a.Container, &machineOpts)
	if err != nil {
		return fmt.Errorf("error loading state machine %s: %w", name, err)
	}

	if _, exists := a.Container.Lookup(ServiceStepFunctions, name); !exists {
		if err := a.Container.Register(&StateMachineResource{Name: name, Machine: machine}); err != nil {
			return err
		}
	}
	a.Machines[name] = machine
	return nil
}

// Names returns the machine names in order.
func (a *App) Names() []string {
	return slices.Sorted(maps.Keys(a.Machines))
}

func (a *App) Initialize(ctx context.Context) error {
	return a.Container.Initialize(ctx)
}

func (a *App) Shutdown(ctx context.Context) error {
	return a.Container.Shutdown(ctx)
}
