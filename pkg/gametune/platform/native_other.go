//go:build !windows

package platform

import (
	"context"
	"fmt"
)

// unsupported backs every Windows-only facility on other systems.
type unsupported struct{}

func nativeRegistry() Registry { return unsupported{} }

func nativeServices() ServiceManager { return unsupported{} }

func nativePurger() MemoryPurger { return unsupported{} }

func errUnsupported(what string) error {
	return fmt.Errorf("%s: %w", what, ErrUnsupported)
}

func (unsupported) PurgeStandbyList() error {
	return errUnsupported("purge standby list")
}

func (unsupported) GetValue(k RegistryKey) (RegistryValue, error) {
	return RegistryValue{}, errUnsupported("registry " + k.String())
}

func (unsupported) SetValue(k RegistryKey, _ RegistryValue) error {
	return errUnsupported("registry " + k.String())
}

func (unsupported) DeleteValue(k RegistryKey) error {
	return errUnsupported("registry " + k.String())
}

func (unsupported) StartMode(name string) (StartMode, error) {
	return "", errUnsupported("service " + name)
}

func (unsupported) SetStartMode(name string, _ StartMode) error {
	return errUnsupported("service " + name)
}

func (unsupported) State(name string) (ServiceState, error) {
	return "", errUnsupported("service " + name)
}

func (unsupported) Stop(_ context.Context, name string) error {
	return errUnsupported("service " + name)
}

func (unsupported) Start(name string) error {
	return errUnsupported("service " + name)
}
