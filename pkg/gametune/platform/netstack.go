package platform

import (
	"context"
	"errors"
	"fmt"
	"net/netip"
	"strings"

	"github.com/tidwall/gjson"
)

// tcpipInterfaces holds the per-interface TCP/IP parameters, keyed by
// interface GUID.
const tcpipInterfaces = `SYSTEM\CurrentControlSet\Services\Tcpip\Parameters\Interfaces`

// PowerShellNetwork implements NetworkStack with the NetAdapter, NetTCPIP and
// DnsClient PowerShell modules, parsing their ConvertTo-Json output. Static
// resolvers are read from Registry, since the DnsClient cmdlets do not tell
// them apart from DHCP-assigned ones.
type PowerShellNetwork struct {
	Runner   Runner
	Registry Registry
}

// Adapters lists adapters with Get-NetAdapter.
func (n *PowerShellNetwork) Adapters(ctx context.Context) ([]Adapter, error) {
	out, err := n.Runner.PowerShell(ctx, jsonArray(
		"Get-NetAdapter | Select-Object Name, InterfaceIndex, @{n='Status';e={[string]$_.Status}}, MacAddress, LinkSpeed",
	))
	if err != nil {
		return nil, fmt.Errorf("listing adapters: %w", err)
	}

	var adapters []Adapter
	gjson.ParseBytes(out).ForEach(func(_, item gjson.Result) bool {
		adapters = append(adapters, Adapter{
			Name:      item.Get("Name").String(),
			Index:     int(item.Get("InterfaceIndex").Int()),
			Status:    item.Get("Status").String(),
			MAC:       item.Get("MacAddress").String(),
			LinkSpeed: item.Get("LinkSpeed").String(),
		})
		return true
	})
	return adapters, nil
}

// DefaultRoutes lists IPv4 default routes with Get-NetRoute.
func (n *PowerShellNetwork) DefaultRoutes(ctx context.Context) ([]Route, error) {
	out, err := n.Runner.PowerShell(ctx, jsonArray(
		"Get-NetRoute -AddressFamily IPv4 -DestinationPrefix '0.0.0.0/0' -ErrorAction SilentlyContinue | "+
			"Select-Object ifIndex, NextHop, RouteMetric, InterfaceMetric",
	))
	if err != nil {
		return nil, fmt.Errorf("listing default routes: %w", err)
	}

	var routes []Route
	gjson.ParseBytes(out).ForEach(func(_, item gjson.Result) bool {
		routes = append(routes, Route{
			InterfaceIndex:  int(item.Get("ifIndex").Int()),
			NextHop:         item.Get("NextHop").String(),
			RouteMetric:     int(item.Get("RouteMetric").Int()),
			InterfaceMetric: int(item.Get("InterfaceMetric").Int()),
		})
		return true
	})
	return routes, nil
}

// AdapterProperty reads an advanced property with Get-NetAdapterAdvancedProperty.
func (n *PowerShellNetwork) AdapterProperty(ctx context.Context, adapter, keyword string) (string, error) {
	out, err := n.Runner.PowerShell(ctx, jsonArray(fmt.Sprintf(
		"Get-NetAdapterAdvancedProperty -Name %s -AllProperties -RegistryKeyword %s | Select-Object RegistryValue",
		psQuote(adapter), psQuote(keyword),
	)))
	if err != nil {
		return "", fmt.Errorf("reading %s on %s: %w", keyword, adapter, err)
	}

	value := gjson.GetBytes(out, "0.RegistryValue")
	if !value.Exists() {
		return "", fmt.Errorf("reading %s on %s: %w", keyword, adapter, ErrNotFound)
	}
	// RegistryValue is a string array; single-valued keywords hold one element.
	if value.IsArray() {
		value = value.Get("0")
	}
	return value.String(), nil
}

// SetAdapterProperty writes an advanced property without restarting the adapter.
func (n *PowerShellNetwork) SetAdapterProperty(ctx context.Context, adapter, keyword, value string) error {
	_, err := n.Runner.PowerShell(ctx, fmt.Sprintf(
		"Set-NetAdapterAdvancedProperty -Name %s -AllProperties -RegistryKeyword %s -RegistryValue %s -NoRestart",
		psQuote(adapter), psQuote(keyword), psQuote(value),
	))
	if err != nil {
		return fmt.Errorf("writing %s on %s: %w", keyword, adapter, err)
	}
	return nil
}

// TCPSetting reads one parameter of a NetTCPSetting template.
func (n *PowerShellNetwork) TCPSetting(ctx context.Context, template, name string) (string, error) {
	if !isIdentifier(name) {
		return "", fmt.Errorf("%w: TCP parameter %q", ErrInvalidArgument, name)
	}
	out, err := n.Runner.PowerShell(ctx, fmt.Sprintf(
		"@{ value = [string](Get-NetTCPSetting -SettingName %s).%s } | ConvertTo-Json -Compress",
		psQuote(template), name,
	))
	if err != nil {
		return "", fmt.Errorf("reading TCP %s/%s: %w", template, name, err)
	}
	return gjson.GetBytes(out, "value").String(), nil
}

// SetTCPSetting writes one parameter of a NetTCPSetting template.
func (n *PowerShellNetwork) SetTCPSetting(ctx context.Context, template, name, value string) error {
	if !isIdentifier(name) {
		return fmt.Errorf("%w: TCP parameter %q", ErrInvalidArgument, name)
	}
	_, err := n.Runner.PowerShell(ctx, fmt.Sprintf(
		"Set-NetTCPSetting -SettingName %s -%s %s",
		psQuote(template), name, psQuote(value),
	))
	if err != nil {
		return fmt.Errorf("writing TCP %s/%s: %w", template, name, err)
	}
	return nil
}

// DNSServers reads the statically configured IPv4 resolvers of an interface
// from its NameServer value. An empty or missing value means DHCP.
func (n *PowerShellNetwork) DNSServers(ctx context.Context, ifIndex int) ([]string, error) {
	guid, err := n.interfaceGUID(ctx, ifIndex)
	if err != nil {
		return nil, err
	}

	key := RegistryKey{Hive: LocalMachine, Path: tcpipInterfaces + `\` + guid, Name: "NameServer"}
	v, err := n.Registry.GetValue(key)
	if errors.Is(err, ErrNotFound) {
		return []string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading resolvers of interface %d: %w", ifIndex, err)
	}
	return splitNameServer(v.Text), nil
}

// interfaceGUID returns the braced GUID of an interface, e.g. {4d36e972-...}.
func (n *PowerShellNetwork) interfaceGUID(ctx context.Context, ifIndex int) (string, error) {
	out, err := n.Runner.PowerShell(ctx, jsonArray(fmt.Sprintf(
		"(Get-NetAdapter -InterfaceIndex %d -ErrorAction Stop).InterfaceGuid", ifIndex,
	)))
	if err != nil {
		return "", fmt.Errorf("looking up interface %d: %w", ifIndex, err)
	}
	guid := gjson.GetBytes(out, "0").String()
	if guid == "" {
		return "", fmt.Errorf("interface %d: %w", ifIndex, ErrNotFound)
	}
	return guid, nil
}

// splitNameServer parses a NameServer value, which Windows writes comma
// separated but older tools wrote space separated.
func splitNameServer(s string) []string {
	servers := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == ' ' })
	if servers == nil {
		return []string{}
	}
	return servers
}

// SetDNSServers sets or resets the IPv4 resolvers of an interface.
func (n *PowerShellNetwork) SetDNSServers(ctx context.Context, ifIndex int, servers []string) error {
	var script string
	if len(servers) == 0 {
		script = fmt.Sprintf("Set-DnsClientServerAddress -InterfaceIndex %d -ResetServerAddresses", ifIndex)
	} else {
		quoted := make([]string, 0, len(servers))
		for _, s := range servers {
			addr, err := netip.ParseAddr(s)
			if err != nil || !addr.Is4() {
				return fmt.Errorf("%w: resolver address %q", ErrInvalidArgument, s)
			}
			quoted = append(quoted, psQuote(addr.String()))
		}
		script = fmt.Sprintf("Set-DnsClientServerAddress -InterfaceIndex %d -ServerAddresses @(%s)",
			ifIndex, strings.Join(quoted, ","))
	}

	if _, err := n.Runner.PowerShell(ctx, script); err != nil {
		return fmt.Errorf("setting resolvers of interface %d: %w", ifIndex, err)
	}
	return nil
}

// jsonArray wraps a pipeline so its output is always a compact JSON array,
// even for zero or one result.
func jsonArray(pipeline string) string {
	return "ConvertTo-Json -Compress -Depth 3 -InputObject @(" + pipeline + ")"
}

// psQuote returns s as a single-quoted PowerShell literal.
func psQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", "''") + "'"
}

func isIdentifier(s string) bool {
	if s == "" || s[0] >= '0' && s[0] <= '9' {
		return false
	}
	for _, r := range s {
		if !(r == '_' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z' || r >= '0' && r <= '9') {
			return false
		}
	}
	return true
}
