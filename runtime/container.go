package runtime

import (
	"context"
	"errors"
	"fmt"
	"sort"
)

// Interface names for resource capabilities
const (
	InterfaceInitializer = "Initializer"
	InterfaceShutdowner  = "Shutdowner"
)

// Container is the resource catalog shared by every execution of a state
// machine. Resources are keyed by service and name.
type Container struct {
	resources            map[string]Resource
	resourcesByInterface map[string][]Resource
}

func NewContainer() *Container {
	return &Container{
		resources:            make(map[string]Resource),
		resourcesByInterface: make(map[string][]Resource),
	}
}

func catalogKey(service, name string) string {
	return service + "/" + name
}

// Register adds a resource and records the lifecycle interfaces it implements.
func (c *Container) Register(resource Resource) error {
	if resource == nil {
		return fmt.Errorf("resource cannot be nil")
	}
	if resource.Service() == "" || resource.ResourceName() == "" {
		return fmt.Errorf("resource %T must have a service and a name", resource)
	}

	key := catalogKey(resource.Service(), resource.ResourceName())
	if _, exists := c.resources[key]; exists {
		return fmt.Errorf("resource %s registered twice", key)
	}

	c.resources[key] = resource
	c.detectResourceInterfaces(resource)
	return nil
}

func (c *Container) detectResourceInterfaces(resource Resource) {
	if _, ok := resource.(Initializer); ok {
		c.resourcesByInterface[InterfaceInitializer] = append(c.resourcesByInterface[InterfaceInitializer], resource)
	}
	if _, ok := resource.(Shutdowner); ok {
		c.resourcesByInterface[InterfaceShutdowner] = append(c.resourcesByInterface[InterfaceShutdowner], resource)
	}
}

// Lookup finds a resource by service and name.
func (c *Container) Lookup(service, name string) (Resource, bool) {
	r, ok := c.resources[catalogKey(service, name)]
	return r, ok
}

// Names lists the registered resources as service/name, sorted.
func (c *Container) Names() []string {
	names := make([]string, 0, len(c.resources))
	for key := range c.resources {
		names = append(names, key)
	}
	sort.Strings(names)
	return names
}

// Initialize calls Initialize on every resource implementing Initializer, in
// registration order. The first failure stops startup.
func (c *Container) Initialize(ctx context.Context) error {
	for _, resource := range c.resourcesByInterface[InterfaceInitializer] {
		if err := resource.(Initializer).Initialize(ctx); err != nil {
			return fmt.Errorf("resource %s initialization failed: %w",
				catalogKey(resource.Service(), resource.ResourceName()), err)
		}
	}
	return nil
}

// Shutdown calls Shutdown on every resource implementing Shutdowner, in
// reverse registration order.
func (c *Container) Shutdown(ctx context.Context) error {
	shutdowners := c.resourcesByInterface[InterfaceShutdowner]

	var errs []error
	for i := len(shutdowners) - 1; i >= 0; i-- {
		resource := shutdowners[i]
		if err := resource.(Shutdowner).Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("resource %s shutdown failed: %w",
				catalogKey(resource.Service(), resource.ResourceName()), err))
		}
	}
	return errors.Join(errs...)
}
