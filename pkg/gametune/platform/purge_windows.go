//go:build windows

package platform

import (
	"errors"
	"fmt"
	"unsafe"

	"golang.org/x/sys/windows"
)

const (
	// SYSTEM_INFORMATION_CLASS SystemMemoryListInformation
	systemMemoryListInformation = 80
	// SYSTEM_MEMORY_LIST_COMMAND MemoryPurgeStandbyList
	memoryPurgeStandbyList = 4

	profileSingleProcessPrivilege = "SeProfileSingleProcessPrivilege"
)

type winPurger struct{}

func nativePurger() MemoryPurger {
	return winPurger{}
}

func (winPurger) PurgeStandbyList() error {
	if err := enablePrivilege(profileSingleProcessPrivilege); err != nil {
		return err
	}

	command := uint32(memoryPurgeStandbyList)
	err := windows.NtSetSystemInformation(systemMemoryListInformation, unsafe.Pointer(&command), uint32(unsafe.Sizeof(command)))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, windows.STATUS_PRIVILEGE_NOT_HELD), errors.Is(err, windows.STATUS_ACCESS_DENIED):
		return fmt.Errorf("purge standby list: %w", ErrPermissionDenied)
	case errors.Is(err, windows.STATUS_INVALID_INFO_CLASS), errors.Is(err, windows.STATUS_NOT_IMPLEMENTED):
		return fmt.Errorf("purge standby list: %w", ErrUnsupported)
	default:
		return fmt.Errorf("purge standby list: %w", err)
	}
}

// enablePrivilege enables a privilege the process token already holds.
func enablePrivilege(name string) error {
	var token windows.Token
	err := windows.OpenProcessToken(windows.CurrentProcess(), windows.TOKEN_ADJUST_PRIVILEGES|windows.TOKEN_QUERY, &token)
	if err != nil {
		return fmt.Errorf("open process token: %w", err)
	}
	defer token.Close()

	namePtr, err := windows.UTF16PtrFromString(name)
	if err != nil {
		return err
	}

	var luid windows.LUID
	if err := windows.LookupPrivilegeValue(nil, namePtr, &luid); err != nil {
		return fmt.Errorf("lookup %s: %w", name, err)
	}

	privileges := windows.Tokenprivileges{PrivilegeCount: 1}
	privileges.Privileges[0] = windows.LUIDAndAttributes{Luid: luid, Attributes: windows.SE_PRIVILEGE_ENABLED}

	if err := windows.AdjustTokenPrivileges(token, false, &privileges, 0, nil, nil); err != nil {
		if errors.Is(err, windows.ERROR_NOT_ALL_ASSIGNED) || errors.Is(err, windows.ERROR_ACCESS_DENIED) {
			return fmt.Errorf("enable %s: %w", name, ErrPermissionDenied)
		}
		return fmt.Errorf("enable %s: %w", name, err)
	}
	return nil
}
