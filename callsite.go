package injector

import (
	"reflect"
	"sort"
	"strings"

	"github.com/dozm/injector/errorx"
	"github.com/dozm/injector/syncx"
	"github.com/dozm/injector/util"
	"github.com/pkg/errors"
)

type CallSiteKind byte

const (
	CallSiteKind_Constructor CallSiteKind = iota
	CallSiteKind_Constant
	CallSiteKind_Slice
	CallSiteKind_Container
	CallSiteKind_Registration
)

// CallSite is a node of the graph that describes how a service is obtained.
type CallSite interface {
	ServiceType() reflect.Type
	Kind() CallSiteKind
}

//
type ConstantCallSite struct {
	serviceType reflect.Type
	value       any
}

func (cs *ConstantCallSite) Value() any {
	return cs.value
}

func (cs *ConstantCallSite) ServiceType() reflect.Type {
	return cs.serviceType
}

func (cs *ConstantCallSite) Kind() CallSiteKind {
	return CallSiteKind_Constant
}

func newConstantCallSite(serviceType reflect.Type, value any) *ConstantCallSite {
	return &ConstantCallSite{
		serviceType: serviceType,
		value:       value,
	}
}

// ConstructorCallSite calls a constructor with the values of its parameter call sites.
// It creates a new value on every evaluation; sharing is up to the registration that owns it.
type ConstructorCallSite struct {
	serviceType reflect.Type
	Ctor        *ConstructorInfo
	Parameters  []CallSite
}

func (cs *ConstructorCallSite) ServiceType() reflect.Type {
	return cs.serviceType
}

func (cs *ConstructorCallSite) Kind() CallSiteKind {
	return CallSiteKind_Constructor
}

func newConstructorCallSite(serviceType reflect.Type, ctor *ConstructorInfo, parameters []CallSite) *ConstructorCallSite {
	return &ConstructorCallSite{
		serviceType: serviceType,
		Ctor:        ctor,
		Parameters:  parameters,
	}
}

//
type ContainerCallSite struct{}

func (cs *ContainerCallSite) ServiceType() reflect.Type {
	return ContainerType
}

func (cs *ContainerCallSite) Kind() CallSiteKind {
	return CallSiteKind_Container
}

//
type SliceCallSite struct {
	serviceType reflect.Type
	Elem        reflect.Type
	CallSites   []CallSite
}

func (cs *SliceCallSite) ServiceType() reflect.Type {
	return cs.serviceType
}

func (cs *SliceCallSite) Kind() CallSiteKind {
	return CallSiteKind_Slice
}

func newSliceCallSite(elem reflect.Type, callSites []CallSite) *SliceCallSite {
	return &SliceCallSite{
		Elem:        elem,
		CallSites:   callSites,
		serviceType: reflect.SliceOf(elem),
	}
}

// RegistrationCallSite evaluates to Registration.GetInstance. Any evaluator of the
// graph can call it; it does not rely on the container's resolver.
type RegistrationCallSite struct {
	Registration Registration
}

func (cs *RegistrationCallSite) ServiceType() reflect.Type {
	return cs.Registration.ImplementationType()
}

func (cs *RegistrationCallSite) Kind() CallSiteKind {
	return CallSiteKind_Registration
}

func newRegistrationCallSite(r Registration) *RegistrationCallSite {
	return &RegistrationCallSite{Registration: r}
}

//
type chainItem struct {
	Order int
	Ctor  *ConstructorInfo
}

// callSiteChain records the service types and registrations being built on the
// current call stack. owner holds the compile locks taken on that stack.
type callSiteChain struct {
	items map[any]chainItem
	owner syncx.Owner
}

func (c *callSiteChain) CheckCircularDependency(key any) error {
	if _, ok := c.items[key]; ok {
		return c.createCircularDependencyError(key)
	}
	return nil
}

func (c *callSiteChain) Remove(key any) {
	delete(c.items, key)
}

// Add reports whether key was added; a key already on the chain is left untouched.
// the ctor can be nil when the key is a slice or a registration
func (c *callSiteChain) Add(key any, ctor *ConstructorInfo) bool {
	if _, ok := c.items[key]; ok {
		return false
	}
	c.items[key] = chainItem{
		Order: len(c.items),
		Ctor:  ctor,
	}
	return true
}

func (c *callSiteChain) createCircularDependencyError(key any) error {
	var sb strings.Builder
	sb.WriteString("a circular dependency was detected for the service of type '")
	sb.WriteString(chainKeyString(key))
	sb.WriteString("'. resolution path: ")

	keys := make([]any, 0, len(c.items))
	for k := range c.items {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return c.items[keys[i]].Order < c.items[keys[j]].Order })

	for _, k := range keys {
		sb.WriteString(chainKeyString(k))
		sb.WriteString(" -> ")
	}
	sb.WriteString(chainKeyString(key))

	return &errorx.CircularDependencyError{Message: sb.String()}
}

func chainKeyString(key any) string {
	switch k := key.(type) {
	case reflect.Type:
		return k.String()
	case Registration:
		return k.ImplementationType().String()
	default:
		return "?"
	}
}

func newCallSiteChain() *callSiteChain {
	return &callSiteChain{
		items: make(map[any]chainItem),
	}
}

//

const DefaultSlot int = 0

// CallSiteFactory owns the registrations of a container and builds the call sites
// that resolve service types to them.
type CallSiteFactory struct {
	container        *container
	descriptors      []*Descriptor
	registrations    map[*Descriptor]Registration
	callSiteCache    *syncx.Map[ServiceCacheKey, CallSite]
	descriptorLookup map[reflect.Type]descriptorCacheItem
}

func (f *CallSiteFactory) Descriptors() []*Descriptor {
	return f.descriptors
}

func (f *CallSiteFactory) populate() error {
	for _, descriptor := range f.descriptors {
		r, err := descriptor.Lifestyle.createRegistration(f.container, descriptor)
		if err != nil {
			return errors.Wrapf(err, "registering %v", descriptor)
		}
		f.registrations[descriptor] = r

		serviceType := descriptor.ServiceType
		cacheItem := f.descriptorLookup[serviceType]
		f.descriptorLookup[serviceType] = cacheItem.Add(descriptor)
	}
	return nil
}

// Registrations returns the registrations in the order their descriptors were added.
func (f *CallSiteFactory) Registrations() []Registration {
	result := make([]Registration, 0, len(f.descriptors))
	for _, d := range f.descriptors {
		result = append(result, f.registrations[d])
	}
	return result
}

// GetRegistration returns the registration that resolves a single serviceType.
func (f *CallSiteFactory) GetRegistration(serviceType reflect.Type) (Registration, error) {
	if descriptor, ok := f.descriptorLookup[serviceType]; ok {
		return f.registrations[descriptor.Last()], nil
	}
	return nil, &errorx.ServiceNotFound{ServiceType: serviceType}
}

func (f *CallSiteFactory) GetCallSite(serviceType reflect.Type, chain *callSiteChain) (CallSite, error) {
	if site, ok := f.callSiteCache.Load(ServiceCacheKey{ServiceType: serviceType, Slot: DefaultSlot}); ok {
		return site, nil
	}

	return f.createCallSite(serviceType, chain)
}

func (f *CallSiteFactory) GetCallSiteByDescriptor(descriptor *Descriptor, chain *callSiteChain) (CallSite, error) {
	if descriptorCache, ok := f.descriptorLookup[descriptor.ServiceType]; ok {
		return f.tryCreateExact(
			descriptor,
			chain,
			descriptorCache.GetSlot(descriptor))
	}

	return nil, errors.New("descriptorLookup didn't contain requested descriptor")
}

func (f *CallSiteFactory) createCallSite(serviceType reflect.Type, chain *callSiteChain) (CallSite, error) {
	if err := chain.CheckCircularDependency(serviceType); err != nil {
		return nil, err
	}

	if chain.Add(serviceType, nil) {
		defer chain.Remove(serviceType)
	}

	if descriptor, ok := f.descriptorLookup[serviceType]; ok {
		return f.tryCreateExact(descriptor.Last(), chain, DefaultSlot)
	}

	if serviceType.Kind() == reflect.Slice {
		return f.createSlice(serviceType, chain)
	}

	return nil, &errorx.ServiceNotFound{ServiceType: serviceType}
}

func (f *CallSiteFactory) tryCreateExact(descriptor *Descriptor, chain *callSiteChain, slot int) (CallSite, error) {
	callSiteKey := ServiceCacheKey{descriptor.ServiceType, slot}
	callSite, ok := f.callSiteCache.Load(callSiteKey)
	if ok {
		return callSite, nil
	}

	r, ok := f.registrations[descriptor]
	if !ok {
		return nil, &errorx.InvalidDescriptor{ServiceType: descriptor.ServiceType}
	}

	callSite, err := r.buildExpression(chain)
	if err != nil {
		return nil, err
	}

	callSite, _ = f.callSiteCache.LoadOrStore(callSiteKey, callSite)
	return callSite, nil
}

// createConstructorCallSite builds the graph that calls ctor. It is the part of a
// registration's creator that knows how to construct, not how to share.
func (f *CallSiteFactory) createConstructorCallSite(serviceType reflect.Type, ctor *ConstructorInfo, chain *callSiteChain) (*ConstructorCallSite, error) {
	if chain == nil {
		chain = newCallSiteChain()
	}
	if chain.Add(serviceType, ctor) {
		defer chain.Remove(serviceType)
	}

	if len(ctor.In) == 0 {
		return newConstructorCallSite(serviceType, ctor, nil), nil
	}

	parameterCallSites, err := f.createArgumentCallSites(chain, ctor)
	if err != nil {
		return nil, err
	}

	return newConstructorCallSite(serviceType, ctor, parameterCallSites), nil
}

func (f *CallSiteFactory) createArgumentCallSites(chain *callSiteChain, ctor *ConstructorInfo) ([]CallSite, error) {
	callSites := make([]CallSite, len(ctor.In))
	for i, t := range ctor.In {
		cs, err := f.GetCallSite(t, chain)
		if err != nil {
			return nil, err
		}
		callSites[i] = cs
	}
	return callSites, nil
}

func (f *CallSiteFactory) createSlice(serviceType reflect.Type, chain *callSiteChain) (CallSite, error) {
	if serviceType.Kind() != reflect.Slice {
		return nil, errors.Errorf("service type '%v' is not slice", serviceType)
	}

	key := ServiceCacheKey{serviceType, DefaultSlot}
	if callSite, ok := f.callSiteCache.Load(key); ok {
		return callSite, nil
	}

	elementType := serviceType.Elem()
	callSites := make([]CallSite, 0)

	if descriptorCache, ok := f.descriptorLookup[elementType]; ok {
		num := descriptorCache.Num()
		for i := 0; i < num; i++ {
			cs, err := f.tryCreateExact(descriptorCache.Get(i), chain, num-i-1)
			if err != nil {
				return nil, err
			}
			callSites = append(callSites, cs)
		}
	}

	callSite, _ := f.callSiteCache.LoadOrStore(key, newSliceCallSite(elementType, util.ClipSlice(callSites)))
	return callSite, nil
}

func (f *CallSiteFactory) Add(serviceType reflect.Type, callSite CallSite) {
	f.callSiteCache.Store(ServiceCacheKey{ServiceType: serviceType, Slot: DefaultSlot}, callSite)
}

// Determines if the specified service type is available from the ServiceProvider.
func (f *CallSiteFactory) IsService(serviceType reflect.Type) bool {
	if serviceType == nil {
		return false
	}

	if _, ok := f.descriptorLookup[serviceType]; ok {
		return true
	}

	if serviceType.Kind() == reflect.Slice {
		return true
	}

	_, builtIn := f.callSiteCache.Load(ServiceCacheKey{ServiceType: serviceType, Slot: DefaultSlot})
	return builtIn
}

func newCallSiteFactory(c *container, descriptors []*Descriptor) (*CallSiteFactory, error) {
	d := make([]*Descriptor, len(descriptors))
	copy(d, descriptors)

	f := &CallSiteFactory{
		container:        c,
		descriptors:      d,
		registrations:    make(map[*Descriptor]Registration, len(d)),
		callSiteCache:    syncx.NewMap[ServiceCacheKey, CallSite](),
		descriptorLookup: make(map[reflect.Type]descriptorCacheItem),
	}

	if err := f.populate(); err != nil {
		return nil, err
	}
	return f, nil
}

type descriptorCacheItem struct {
	item  *Descriptor
	items []*Descriptor
}

func (dci descriptorCacheItem) Last() *Descriptor {
	if l := len(dci.items); l > 0 {
		return dci.items[l-1]
	}

	return dci.item
}

func (dci descriptorCacheItem) Num() int {
	if dci.item == nil {
		return 0
	}

	return 1 + len(dci.items)
}

func (dci descriptorCacheItem) Get(index int) *Descriptor {
	if index >= dci.Num() {
		panic("index out of range")
	}

	if index == 0 {
		return dci.item
	}

	return dci.items[index-1]
}

func (dci descriptorCacheItem) GetSlot(descriptor *Descriptor) int {
	if descriptor == dci.item {
		return dci.Num() - 1
	}

	if l := len(dci.items); l > 0 {
		for i := range dci.items {
			if descriptor == dci.items[i] {
				return l - (i + 1)
			}
		}
	}

	panic(errors.New("descriptor not exist"))
}

func (dci descriptorCacheItem) Add(descriptor *Descriptor) descriptorCacheItem {
	var newCacheItem descriptorCacheItem
	if dci.item == nil {
		newCacheItem.item = descriptor
	} else {
		newCacheItem.item = dci.item
		newCacheItem.items = append(dci.items, descriptor)
	}
	return newCacheItem
}
