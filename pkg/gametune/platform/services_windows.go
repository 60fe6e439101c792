//go:build windows

package platform

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sys/windows"
	"golang.org/x/sys/windows/svc"
	"golang.org/x/sys/windows/svc/mgr"
)

const (
	stopTimeout  = 15 * time.Second
	pollInterval = 200 * time.Millisecond
)

type winServices struct{}

func nativeServices() ServiceManager {
	return winServices{}
}

// with connects to the SCM, opens name and calls fn.
func (winServices) with(name string, fn func(s *mgr.Service) error) error {
	m, err := mgr.Connect()
	if err != nil {
		return serviceError("connect", "service manager", err)
	}
	defer m.Disconnect()

	s, err := m.OpenService(name)
	if err != nil {
		return serviceError("open", name, err)
	}
	defer s.Close()

	return fn(s)
}

func (w winServices) StartMode(name string) (StartMode, error) {
	var mode StartMode
	err := w.with(name, func(s *mgr.Service) error {
		cfg, err := s.Config()
		if err != nil {
			return serviceError("query config", name, err)
		}
		switch cfg.StartType {
		case mgr.StartAutomatic:
			mode = StartAuto
			if cfg.DelayedAutoStart {
				mode = StartDelayedAuto
			}
		case mgr.StartManual:
			mode = StartManual
		case mgr.StartDisabled:
			mode = StartDisabled
		default:
			// boot and system drivers are never touched
			return fmt.Errorf("%s: %w: start type %d", name, ErrUnsupported, cfg.StartType)
		}
		return nil
	})
	return mode, err
}

func (w winServices) SetStartMode(name string, mode StartMode) error {
	return w.with(name, func(s *mgr.Service) error {
		cfg, err := s.Config()
		if err != nil {
			return serviceError("query config", name, err)
		}

		switch mode {
		case StartAuto, StartDelayedAuto:
			cfg.StartType = mgr.StartAutomatic
		case StartManual:
			cfg.StartType = mgr.StartManual
		case StartDisabled:
			cfg.StartType = mgr.StartDisabled
		default:
			return fmt.Errorf("%s: %w: start mode %q", name, ErrInvalidArgument, mode)
		}
		cfg.DelayedAutoStart = mode == StartDelayedAuto

		if err := s.UpdateConfig(cfg); err != nil {
			return serviceError("update config", name, err)
		}
		return nil
	})
}

func (w winServices) State(name string) (ServiceState, error) {
	var state ServiceState
	err := w.with(name, func(s *mgr.Service) error {
		status, err := s.Query()
		if err != nil {
			return serviceError("query", name, err)
		}
		state = fromSvcState(status.State)
		return nil
	})
	return state, err
}

func (w winServices) Stop(ctx context.Context, name string) error {
	return w.with(name, func(s *mgr.Service) error {
		status, err := s.Control(svc.Stop)
		if errors.Is(err, windows.ERROR_SERVICE_NOT_ACTIVE) {
			return nil
		}
		if err != nil {
			return serviceError("stop", name, err)
		}

		ctx, cancel := context.WithTimeout(ctx, stopTimeout)
		defer cancel()

		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()

		for status.State != svc.Stopped {
			select {
			case <-ctx.Done():
				return fmt.Errorf("stop %s: still %s: %w", name, fromSvcState(status.State), ctx.Err())
			case <-ticker.C:
			}
			if status, err = s.Query(); err != nil {
				return serviceError("query", name, err)
			}
		}
		return nil
	})
}

func (w winServices) Start(name string) error {
	return w.with(name, func(s *mgr.Service) error {
		err := s.Start()
		if err == nil || errors.Is(err, windows.ERROR_SERVICE_ALREADY_RUNNING) {
			return nil
		}
		return serviceError("start", name, err)
	})
}

func fromSvcState(s svc.State) ServiceState {
	switch s {
	case svc.Running:
		return StateRunning
	case svc.Stopped:
		return StateStopped
	case svc.Paused:
		return StatePaused
	default:
		return StatePending
	}
}

func serviceError(op, name string, err error) error {
	switch {
	case errors.Is(err, windows.ERROR_SERVICE_DOES_NOT_EXIST):
		return fmt.Errorf("%s %s: %w", op, name, ErrNotFound)
	case errors.Is(err, windows.ERROR_ACCESS_DENIED):
		return fmt.Errorf("%s %s: %w", op, name, ErrPermissionDenied)
	case errors.Is(err, windows.ERROR_SERVICE_DISABLED):
		return fmt.Errorf("%s %s: service is disabled: %w", op, name, err)
	default:
		return fmt.Errorf("%s %s: %w", op, name, err)
	}
}
