// Package platformtest provides in-memory platform backends for tests.
//
// A Machine bundles one fake per platform facility. Tests seed it with the
// state a real Windows box would have, run optimizers against m.System(), and
// then inspect the fakes to verify what changed.
package platformtest

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/jamesainslie/gametune/pkg/gametune/platform"
)

// Machine bundles one fake per platform facility.
type Machine struct {
	Registry *Registry
	Services *Services
	Network  *Network
	Power    *Power
	Purger   *Purger
	Memory   *Memory
}

// NewMachine returns a machine with empty fakes.
func NewMachine() *Machine {
	return &Machine{
		Registry: NewRegistry(),
		Services: NewServices(),
		Network:  NewNetwork(),
		Power:    NewPower(),
		Purger:   &Purger{},
		Memory:   &Memory{},
	}
}

// System returns a platform.System backed by the fakes.
func (m *Machine) System() *platform.System {
	return &platform.System{
		Registry: m.Registry,
		Services: m.Services,
		Network:  m.Network,
		Power:    m.Power,
		Purger:   m.Purger,
		Memory:   m.Memory,
	}
}

// Registry is an in-memory registry.
type Registry struct {
	mu     sync.Mutex
	values map[string]platform.RegistryValue

	// FailGet and FailSet inject errors per value path (RegistryKey.String()).
	FailGet map[string]error
	FailSet map[string]error

	Writes int
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		values:  make(map[string]platform.RegistryValue),
		FailGet: make(map[string]error),
		FailSet: make(map[string]error),
	}
}

// Seed sets a value without counting it as a write.
func (r *Registry) Seed(k platform.RegistryKey, v platform.RegistryValue) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.values[k.String()] = v
}

// Value returns the stored value, if any.
func (r *Registry) Value(k platform.RegistryKey) (platform.RegistryValue, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	v, ok := r.values[k.String()]
	return v, ok
}

// GetValue implements platform.Registry.
func (r *Registry) GetValue(k platform.RegistryKey) (platform.RegistryValue, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.FailGet[k.String()]; err != nil {
		return platform.RegistryValue{}, err
	}
	v, ok := r.values[k.String()]
	if !ok {
		return platform.RegistryValue{}, fmt.Errorf("%s: %w", k, platform.ErrNotFound)
	}
	return v, nil
}

// SetValue implements platform.Registry.
func (r *Registry) SetValue(k platform.RegistryKey, v platform.RegistryValue) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.FailSet[k.String()]; err != nil {
		return err
	}
	r.values[k.String()] = v
	r.Writes++
	return nil
}

// DeleteValue implements platform.Registry.
func (r *Registry) DeleteValue(k platform.RegistryKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if err := r.FailSet[k.String()]; err != nil {
		return err
	}
	delete(r.values, k.String())
	r.Writes++
	return nil
}

// Service is the state of one fake service.
type Service struct {
	Mode  platform.StartMode
	State platform.ServiceState

	// Errors returned by the corresponding operations.
	SetErr   error
	StopErr  error
	StartErr error
}

// Services is an in-memory service control manager.
type Services struct {
	mu       sync.Mutex
	services map[string]*Service
	Calls    []string
}

// NewServices returns an SCM with no services.
func NewServices() *Services {
	return &Services{services: make(map[string]*Service)}
}

// Add installs a service and returns it for further tweaking.
func (s *Services) Add(name string, mode platform.StartMode, state platform.ServiceState) *Service {
	s.mu.Lock()
	defer s.mu.Unlock()
	svc := &Service{Mode: mode, State: state}
	s.services[name] = svc
	return svc
}

// Get returns a copy of the service state.
func (s *Services) Get(name string) (Service, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	svc, ok := s.services[name]
	if !ok {
		return Service{}, false
	}
	return *svc, true
}

func (s *Services) lookup(op, name string) (*Service, error) {
	s.Calls = append(s.Calls, op+" "+name)
	svc, ok := s.services[name]
	if !ok {
		return nil, fmt.Errorf("%s %s: %w", op, name, platform.ErrNotFound)
	}
	return svc, nil
}

// StartMode implements platform.ServiceManager.
func (s *Services) StartMode(name string) (platform.StartMode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	svc, err := s.lookup("mode", name)
	if err != nil {
		return "", err
	}
	return svc.Mode, nil
}

// SetStartMode implements platform.ServiceManager.
func (s *Services) SetStartMode(name string, mode platform.StartMode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	svc, err := s.lookup("set-mode", name)
	if err != nil {
		return err
	}
	if svc.SetErr != nil {
		return svc.SetErr
	}
	svc.Mode = mode
	return nil
}

// State implements platform.ServiceManager.
func (s *Services) State(name string) (platform.ServiceState, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	svc, err := s.lookup("state", name)
	if err != nil {
		return "", err
	}
	return svc.State, nil
}

// Stop implements platform.ServiceManager.
func (s *Services) Stop(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	svc, err := s.lookup("stop", name)
	if err != nil {
		return err
	}
	if svc.StopErr != nil {
		return svc.StopErr
	}
	svc.State = platform.StateStopped
	return nil
}

// Start implements platform.ServiceManager. A disabled service cannot start.
func (s *Services) Start(name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	svc, err := s.lookup("start", name)
	if err != nil {
		return err
	}
	if svc.StartErr != nil {
		return svc.StartErr
	}
	if svc.Mode == platform.StartDisabled {
		return fmt.Errorf("start %s: service is disabled", name)
	}
	svc.State = platform.StateRunning
	return nil
}

// Network is an in-memory network stack.
type Network struct {
	mu         sync.Mutex
	adapters   []platform.Adapter
	routes     []platform.Route
	properties map[string]map[string]string
	tcp        map[string]string
	dns        map[int][]string

	// Fail injects an error per method name, e.g. "SetTCPSetting".
	Fail map[string]error

	Writes int
}

// NewNetwork returns a stack with no adapters.
func NewNetwork() *Network {
	return &Network{
		properties: make(map[string]map[string]string),
		tcp:        make(map[string]string),
		dns:        make(map[int][]string),
		Fail:       make(map[string]error),
	}
}

// AddAdapter installs an adapter with the given advanced properties.
func (n *Network) AddAdapter(a platform.Adapter, properties map[string]string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.adapters = append(n.adapters, a)
	props := make(map[string]string, len(properties))
	for k, v := range properties {
		props[k] = v
	}
	n.properties[a.Name] = props
	n.dns[a.Index] = []string{}
}

// RemoveAdapter unplugs an adapter.
func (n *Network) RemoveAdapter(name string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	for i, a := range n.adapters {
		if a.Name == name {
			n.adapters = append(n.adapters[:i], n.adapters[i+1:]...)
			break
		}
	}
	delete(n.properties, name)
}

// AddRoute installs a default route.
func (n *Network) AddRoute(r platform.Route) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.routes = append(n.routes, r)
}

// SeedTCP sets a TCP template parameter.
func (n *Network) SeedTCP(template, name, value string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.tcp[template+"/"+name] = value
}

// SeedDNS sets the resolvers of an interface.
func (n *Network) SeedDNS(ifIndex int, servers ...string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.dns[ifIndex] = append([]string{}, servers...)
}

// Property returns an adapter property as stored.
func (n *Network) Property(adapter, keyword string) (string, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()
	v, ok := n.properties[adapter][keyword]
	return v, ok
}

// TCP returns a TCP template parameter as stored.
func (n *Network) TCP(template, name string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.tcp[template+"/"+name]
}

// DNS returns the resolvers of an interface as stored.
func (n *Network) DNS(ifIndex int) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string{}, n.dns[ifIndex]...)
}

// Adapters implements platform.NetworkStack.
func (n *Network) Adapters(context.Context) ([]platform.Adapter, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.Fail["Adapters"]; err != nil {
		return nil, err
	}
	return append([]platform.Adapter{}, n.adapters...), nil
}

// DefaultRoutes implements platform.NetworkStack.
func (n *Network) DefaultRoutes(context.Context) ([]platform.Route, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.Fail["DefaultRoutes"]; err != nil {
		return nil, err
	}
	return append([]platform.Route{}, n.routes...), nil
}

// AdapterProperty implements platform.NetworkStack.
func (n *Network) AdapterProperty(_ context.Context, adapter, keyword string) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.Fail["AdapterProperty"]; err != nil {
		return "", err
	}
	props, ok := n.properties[adapter]
	if !ok {
		return "", fmt.Errorf("adapter %s: %w", adapter, platform.ErrNotFound)
	}
	v, ok := props[keyword]
	if !ok {
		return "", fmt.Errorf("%s on %s: %w", keyword, adapter, platform.ErrNotFound)
	}
	return v, nil
}

// SetAdapterProperty implements platform.NetworkStack.
func (n *Network) SetAdapterProperty(_ context.Context, adapter, keyword, value string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.Fail["SetAdapterProperty"]; err != nil {
		return err
	}
	if err := n.Fail["SetAdapterProperty:"+keyword]; err != nil {
		return err
	}
	props, ok := n.properties[adapter]
	if !ok {
		return fmt.Errorf("adapter %s: %w", adapter, platform.ErrNotFound)
	}
	if _, ok := props[keyword]; !ok {
		return fmt.Errorf("%s on %s: %w", keyword, adapter, platform.ErrNotFound)
	}
	props[keyword] = value
	n.Writes++
	return nil
}

// TCPSetting implements platform.NetworkStack.
func (n *Network) TCPSetting(_ context.Context, template, name string) (string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.Fail["TCPSetting"]; err != nil {
		return "", err
	}
	v, ok := n.tcp[template+"/"+name]
	if !ok {
		return "", fmt.Errorf("TCP %s/%s: %w", template, name, platform.ErrNotFound)
	}
	return v, nil
}

// SetTCPSetting implements platform.NetworkStack.
func (n *Network) SetTCPSetting(_ context.Context, template, name, value string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.Fail["SetTCPSetting"]; err != nil {
		return err
	}
	if err := n.Fail["SetTCPSetting:"+name]; err != nil {
		return err
	}
	n.tcp[template+"/"+name] = value
	n.Writes++
	return nil
}

// DNSServers implements platform.NetworkStack.
func (n *Network) DNSServers(_ context.Context, ifIndex int) ([]string, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.Fail["DNSServers"]; err != nil {
		return nil, err
	}
	servers, ok := n.dns[ifIndex]
	if !ok {
		return nil, fmt.Errorf("interface %d: %w", ifIndex, platform.ErrNotFound)
	}
	return append([]string{}, servers...), nil
}

// SetDNSServers implements platform.NetworkStack.
func (n *Network) SetDNSServers(_ context.Context, ifIndex int, servers []string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if err := n.Fail["SetDNSServers"]; err != nil {
		return err
	}
	if _, ok := n.dns[ifIndex]; !ok {
		return fmt.Errorf("interface %d: %w", ifIndex, platform.ErrNotFound)
	}
	n.dns[ifIndex] = append([]string{}, servers...)
	n.Writes++
	return nil
}

// Power is an in-memory power scheme manager.
type Power struct {
	mu        sync.Mutex
	schemes   []platform.PowerScheme
	active    string
	templates map[string]string
	next      int

	// Fail injects an error per method name, e.g. "SetActiveScheme".
	Fail map[string]error
}

// NewPower returns a manager with no schemes.
func NewPower() *Power {
	return &Power{templates: make(map[string]string), Fail: make(map[string]error)}
}

// AddScheme installs a scheme, activating it if active is true.
func (p *Power) AddScheme(guid, name string, active bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.schemes = append(p.schemes, platform.PowerScheme{GUID: guid, Name: name})
	if active {
		p.active = guid
	}
}

// AddTemplate makes a hidden template available to DuplicateScheme.
func (p *Power) AddTemplate(guid, name string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.templates[strings.ToLower(guid)] = name
}

// Active returns the active scheme GUID.
func (p *Power) Active() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// Schemes implements platform.PowerManager.
func (p *Power) Schemes(context.Context) ([]platform.PowerScheme, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.Fail["Schemes"]; err != nil {
		return nil, err
	}
	out := make([]platform.PowerScheme, len(p.schemes))
	for i, s := range p.schemes {
		s.Active = s.GUID == p.active
		out[i] = s
	}
	return out, nil
}

// ActiveScheme implements platform.PowerManager.
func (p *Power) ActiveScheme(context.Context) (platform.PowerScheme, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.Fail["ActiveScheme"]; err != nil {
		return platform.PowerScheme{}, err
	}
	for _, s := range p.schemes {
		if s.GUID == p.active {
			s.Active = true
			return s, nil
		}
	}
	return platform.PowerScheme{}, fmt.Errorf("active scheme: %w", platform.ErrNotFound)
}

// DuplicateScheme implements platform.PowerManager.
func (p *Power) DuplicateScheme(_ context.Context, template string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.Fail["DuplicateScheme"]; err != nil {
		return "", err
	}
	name, ok := p.templates[strings.ToLower(template)]
	if !ok {
		return "", fmt.Errorf("duplicating %s: %w", template, platform.ErrUnsupported)
	}
	p.next++
	guid := fmt.Sprintf("00000000-0000-0000-0000-%012d", p.next)
	p.schemes = append(p.schemes, platform.PowerScheme{GUID: guid, Name: name})
	return guid, nil
}

// SetActiveScheme implements platform.PowerManager.
func (p *Power) SetActiveScheme(_ context.Context, guid string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.Fail["SetActiveScheme"]; err != nil {
		return err
	}
	for _, s := range p.schemes {
		if strings.EqualFold(s.GUID, guid) {
			p.active = s.GUID
			return nil
		}
	}
	return fmt.Errorf("activating %s: %w", guid, platform.ErrNotFound)
}

// Purger counts purge calls and returns Err.
type Purger struct {
	mu    sync.Mutex
	Err   error
	Calls int
}

// PurgeStandbyList implements platform.MemoryPurger.
func (p *Purger) PurgeStandbyList() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Calls++
	return p.Err
}

// Memory returns Readings in order, repeating the last one.
type Memory struct {
	mu       sync.Mutex
	Readings []platform.MemoryInfo
	Err      error
	calls    int
}

// Memory implements platform.MemoryStats.
func (m *Memory) Memory(context.Context) (platform.MemoryInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.Err != nil {
		return platform.MemoryInfo{}, m.Err
	}
	if len(m.Readings) == 0 {
		return platform.MemoryInfo{}, fmt.Errorf("memory: %w", platform.ErrUnsupported)
	}
	i := m.calls
	if i >= len(m.Readings) {
		i = len(m.Readings) - 1
	}
	m.calls++
	return m.Readings[i], nil
}
