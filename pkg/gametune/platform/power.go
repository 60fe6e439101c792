package platform

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Powercfg implements PowerManager with powercfg.exe.
type Powercfg struct {
	Runner Runner
}

// schemeLine matches lines like
//
//	Power Scheme GUID: 381b4222-f694-41f0-9685-ff5bb260df2e  (Balanced) *
var schemeLine = regexp.MustCompile(`(?i)GUID:\s*([0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12})\s*(?:\((.*)\))?\s*(\*)?`)

// Schemes parses `powercfg /list`.
func (p *Powercfg) Schemes(ctx context.Context) ([]PowerScheme, error) {
	out, err := p.Runner.Run(ctx, "powercfg", "/list")
	if err != nil {
		return nil, fmt.Errorf("listing power schemes: %w", err)
	}
	return parseSchemes(string(out)), nil
}

// ActiveScheme parses `powercfg /getactivescheme`.
func (p *Powercfg) ActiveScheme(ctx context.Context) (PowerScheme, error) {
	out, err := p.Runner.Run(ctx, "powercfg", "/getactivescheme")
	if err != nil {
		return PowerScheme{}, fmt.Errorf("reading active power scheme: %w", err)
	}
	schemes := parseSchemes(string(out))
	if len(schemes) == 0 {
		return PowerScheme{}, fmt.Errorf("reading active power scheme: unexpected output %q", firstLine(string(out)))
	}
	active := schemes[0]
	active.Active = true
	return active, nil
}

// DuplicateScheme runs `powercfg -duplicatescheme <template>` and returns the new GUID.
// Editions that ship without the template reject it as an invalid parameter.
func (p *Powercfg) DuplicateScheme(ctx context.Context, template string) (string, error) {
	if !isGUID(template) {
		return "", fmt.Errorf("%w: scheme GUID %q", ErrInvalidArgument, template)
	}

	out, err := p.Runner.Run(ctx, "powercfg", "-duplicatescheme", template)
	if err != nil {
		var cmdErr *CommandError
		if errors.As(err, &cmdErr) && !errors.Is(err, ErrPermissionDenied) {
			return "", fmt.Errorf("duplicating scheme %s: %w: %s", template, ErrUnsupported, firstLine(cmdErr.Stderr))
		}
		return "", fmt.Errorf("duplicating scheme %s: %w", template, err)
	}

	schemes := parseSchemes(string(out))
	if len(schemes) == 0 {
		return "", fmt.Errorf("duplicating scheme %s: %w: unexpected output %q", template, ErrUnsupported, firstLine(string(out)))
	}
	return schemes[0].GUID, nil
}

// SetActiveScheme runs `powercfg /setactive <guid>`.
func (p *Powercfg) SetActiveScheme(ctx context.Context, guid string) error {
	if !isGUID(guid) {
		return fmt.Errorf("%w: scheme GUID %q", ErrInvalidArgument, guid)
	}
	if _, err := p.Runner.Run(ctx, "powercfg", "/setactive", guid); err != nil {
		var cmdErr *CommandError
		if errors.As(err, &cmdErr) && !errors.Is(err, ErrPermissionDenied) {
			return fmt.Errorf("activating scheme %s: %w: %s", guid, ErrNotFound, firstLine(cmdErr.Stderr))
		}
		return fmt.Errorf("activating scheme %s: %w", guid, err)
	}
	return nil
}

func parseSchemes(out string) []PowerScheme {
	var schemes []PowerScheme
	for _, line := range strings.Split(out, "\n") {
		m := schemeLine.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		schemes = append(schemes, PowerScheme{
			GUID:   strings.ToLower(m[1]),
			Name:   strings.TrimSpace(m[2]),
			Active: m[3] == "*",
		})
	}
	return schemes
}

var guidPattern = regexp.MustCompile(`(?i)^[0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12}$`)

func isGUID(s string) bool {
	return guidPattern.MatchString(s)
}
