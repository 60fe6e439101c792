//go:build windows

package platform

import (
	"errors"
	"fmt"

	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/registry"
)

type winRegistry struct{}

func nativeRegistry() Registry {
	return winRegistry{}
}

func rootKey(h Hive) registry.Key {
	if h == CurrentUser {
		return registry.CURRENT_USER
	}
	return registry.LOCAL_MACHINE
}

func (winRegistry) GetValue(k RegistryKey) (RegistryValue, error) {
	key, err := registry.OpenKey(rootKey(k.Hive), k.Path, registry.QUERY_VALUE)
	if err != nil {
		return RegistryValue{}, registryError("open", k, err)
	}
	defer key.Close()

	_, valType, err := key.GetValue(k.Name, nil)
	if err != nil {
		return RegistryValue{}, registryError("query", k, err)
	}

	switch valType {
	case registry.DWORD:
		n, _, err := key.GetIntegerValue(k.Name)
		if err != nil {
			return RegistryValue{}, registryError("read", k, err)
		}
		return DWord(uint32(n)), nil
	case registry.SZ, registry.EXPAND_SZ:
		s, _, err := key.GetStringValue(k.Name)
		if err != nil {
			return RegistryValue{}, registryError("read", k, err)
		}
		return SZ(s), nil
	default:
		return RegistryValue{}, fmt.Errorf("%s: %w: value type %d", k, ErrUnsupported, valType)
	}
}

func (winRegistry) SetValue(k RegistryKey, v RegistryValue) error {
	key, _, err := registry.CreateKey(rootKey(k.Hive), k.Path, registry.SET_VALUE)
	if err != nil {
		return registryError("create", k, err)
	}
	defer key.Close()

	if v.Kind == KindString {
		err = key.SetStringValue(k.Name, v.Text)
	} else {
		err = key.SetDWordValue(k.Name, v.DWord)
	}
	if err != nil {
		return registryError("write", k, err)
	}
	return nil
}

func (winRegistry) DeleteValue(k RegistryKey) error {
	key, err := registry.OpenKey(rootKey(k.Hive), k.Path, registry.SET_VALUE)
	if errors.Is(err, registry.ErrNotExist) {
		return nil
	}
	if err != nil {
		return registryError("open", k, err)
	}
	defer key.Close()

	if err := key.DeleteValue(k.Name); err != nil && !errors.Is(err, registry.ErrNotExist) {
		return registryError("delete", k, err)
	}
	return nil
}

func registryError(op string, k RegistryKey, err error) error {
	switch {
	case errors.Is(err, registry.ErrNotExist):
		return fmt.Errorf("%s %s: %w", op, k, ErrNotFound)
	case errors.Is(err, windows.ERROR_ACCESS_DENIED):
		return fmt.Errorf("%s %s: %w", op, k, ErrPermissionDenied)
	default:
		return fmt.Errorf("%s %s: %w", op, k, err)
	}
}
