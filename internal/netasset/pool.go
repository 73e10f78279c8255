package netasset

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/netip"
	"os"
	"path/filepath"
	"regexp"
	"strconv"

	"github.com/gofrs/flock"

	"github.com/openshift/assisted-test-framework/internal/resources"
)

const maxShifts = 1 << 16

var ifNameRe = regexp.MustCompile(`^(.*?)(\d*)$`)

// Asset holds the libvirt network settings handed to terraform.
type Asset struct {
	MachineCIDR               string `json:"machine_cidr"`
	ProvisioningCIDR          string `json:"provisioning_cidr"`
	MachineCIDR6              string `json:"machine_cidr6"`
	ProvisioningCIDR6         string `json:"provisioning_cidr6"`
	LibvirtNetworkIf          string `json:"libvirt_network_if"`
	LibvirtSecondaryNetworkIf string `json:"libvirt_secondary_network_if"`
	LibvirtURI                string `json:"libvirt_uri,omitempty"`
}

func (a *Asset) cidrFields() []*string {
	return []*string{&a.MachineCIDR, &a.ProvisioningCIDR, &a.MachineCIDR6, &a.ProvisioningCIDR6}
}

func (a *Asset) ifFields() []*string {
	return []*string{&a.LibvirtNetworkIf, &a.LibvirtSecondaryNetworkIf}
}

func (a Asset) verify() error {
	for name, value := range map[string]string{
		"machine_cidr":                 a.MachineCIDR,
		"provisioning_cidr":            a.ProvisioningCIDR,
		"machine_cidr6":                a.MachineCIDR6,
		"provisioning_cidr6":           a.ProvisioningCIDR6,
		"libvirt_network_if":           a.LibvirtNetworkIf,
		"libvirt_secondary_network_if": a.LibvirtSecondaryNetworkIf,
	} {
		if value == "" {
			return fmt.Errorf("asset field %s is required", name)
		}
	}

	for _, cidr := range a.cidrFields() {
		if _, err := ParseNetwork(*cidr); err != nil {
			return err
		}
	}

	return nil
}

// DefinedNetworks are the subnets and bridge names of the networks already
// defined on a hypervisor.
type DefinedNetworks struct {
	CIDRs   []string
	Bridges []string
}

// NetworkLister reports the networks defined on the hypervisor a pool
// allocates for.
type NetworkLister interface {
	DefinedNetworks() (DefinedNetworks, error)
}

// Pool hands out network assets that do not collide with the assets already
// recorded in its JSON file. The file is shared between processes and every
// read-modify-write happens under an exclusive lock on <file>.lock.
type Pool struct {
	assetsFile string
	lock       *flock.Flock
	base       Asset
	libvirtURI string
	networks   NetworkLister
	taken      []Asset
}

// PoolOption customises a Pool.
type PoolOption func(*Pool)

// WithNetworkLister makes the pool skip the networks already defined on the
// hypervisor, including those no assets file knows about.
func WithNetworkLister(l NetworkLister) PoolOption {
	return func(p *Pool) {
		p.networks = l
	}
}

// NewPool creates a pool backed by assetsFile, allocating from base.
func NewPool(assetsFile string, base Asset, libvirtURI string, opts ...PoolOption) *Pool {
	p := &Pool{
		assetsFile: assetsFile,
		lock:       flock.New(assetsFile + ".lock"),
		base:       base,
		libvirtURI: libvirtURI,
	}
	for _, opt := range opts {
		opt(p)
	}

	return p
}

// AssetsFile returns the path of the JSON file the pool records assets in.
func (p *Pool) AssetsFile() string {
	return p.assetsFile
}

// Taken returns the assets allocated by this pool and not yet released.
func (p *Pool) Taken() []Asset {
	return append([]Asset(nil), p.taken...)
}

// Get allocates a new asset and records it as in use.
func (p *Pool) Get() (Asset, error) {
	if err := p.base.verify(); err != nil {
		return Asset{}, fmt.Errorf("invalid base asset: %w", err)
	}

	var defined DefinedNetworks
	if p.networks != nil {
		var err error
		if defined, err = p.networks.DefinedNetworks(); err != nil {
			return Asset{}, fmt.Errorf("list networks defined on %s: %w", p.libvirtURI, err)
		}
	}

	var asset Asset
	err := p.locked(func(inUse []Asset) ([]Asset, error) {
		allocated, err := allocate(p.base, inUse, defined)
		if err != nil {
			return nil, err
		}

		allocated.LibvirtURI = p.libvirtURI
		asset = allocated

		return append(inUse, allocated), nil
	})
	if err != nil {
		return Asset{}, err
	}

	p.taken = append(p.taken, asset)
	resources.LogLevel("info", "Allocated network asset %+v from %s", asset, p.assetsFile)

	return asset, nil
}

// ReleaseAll removes every asset this pool allocated from the shared file.
func (p *Pool) ReleaseAll() error {
	if len(p.taken) == 0 {
		return nil
	}

	if err := p.release(p.taken); err != nil {
		return err
	}

	resources.LogLevel("info", "Released %d network assets from %s", len(p.taken), p.assetsFile)
	p.taken = nil

	return nil
}

// Release removes an asset recorded by any pool sharing the file, as done
// when the process that allocated it is gone.
func (p *Pool) Release(asset Asset) error {
	if err := p.release([]Asset{asset}); err != nil {
		return err
	}

	for i := range p.taken {
		if p.taken[i] == asset {
			p.taken = append(p.taken[:i], p.taken[i+1:]...)
			break
		}
	}

	resources.LogLevel("info", "Released network asset %s from %s", asset.MachineCIDR, p.assetsFile)

	return nil
}

func (p *Pool) release(assets []Asset) error {
	return p.locked(func(inUse []Asset) ([]Asset, error) {
		for _, asset := range assets {
			for i := range inUse {
				if inUse[i] == asset {
					inUse = append(inUse[:i], inUse[i+1:]...)
					break
				}
			}
		}

		return inUse, nil
	})
}

func (p *Pool) locked(update func([]Asset) ([]Asset, error)) error {
	if err := os.MkdirAll(filepath.Dir(p.assetsFile), 0o755); err != nil {
		return fmt.Errorf("create assets dir: %w", err)
	}

	if err := p.lock.Lock(); err != nil {
		return fmt.Errorf("lock %s: %w", p.lock.Path(), err)
	}
	defer func() {
		if err := p.lock.Unlock(); err != nil {
			resources.LogLevel("warn", "failed to unlock %s: %v", p.lock.Path(), err)
		}
	}()

	inUse, err := readAssets(p.assetsFile)
	if err != nil {
		return err
	}

	updated, err := update(inUse)
	if err != nil {
		return err
	}

	return writeAssets(p.assetsFile, updated)
}

func readAssets(path string) ([]Asset, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read assets file: %w", err)
	}

	if len(data) == 0 {
		return nil, nil
	}

	var assets []Asset
	if err := json.Unmarshal(data, &assets); err != nil {
		return nil, fmt.Errorf("parse assets file %s: %w", path, err)
	}

	return assets, nil
}

func writeAssets(path string, assets []Asset) error {
	if assets == nil {
		assets = []Asset{}
	}

	data, err := json.MarshalIndent(assets, "", "  ")
	if err != nil {
		return err
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write assets file: %w", err)
	}

	return nil
}

func allocate(base Asset, inUse []Asset, defined DefinedNetworks) (Asset, error) {
	var used []netip.Prefix
	usedIfs := map[string]bool{}

	for _, cidr := range defined.CIDRs {
		if prefix, err := netip.ParsePrefix(cidr); err == nil {
			used = append(used, prefix.Masked())
		}
	}
	for _, name := range defined.Bridges {
		usedIfs[name] = true
	}

	for i := range inUse {
		for _, cidr := range inUse[i].cidrFields() {
			if prefix, err := netip.ParsePrefix(*cidr); err == nil {
				used = append(used, prefix.Masked())
			}
		}
		for _, name := range inUse[i].ifFields() {
			usedIfs[*name] = true
		}
	}

	asset := base
	for _, cidr := range asset.cidrFields() {
		prefix, err := ParseNetwork(*cidr)
		if err != nil {
			return Asset{}, err
		}

		free, err := firstFree(prefix, used)
		if err != nil {
			return Asset{}, err
		}

		*cidr = free.String()
		used = append(used, free)
	}

	for _, name := range asset.ifFields() {
		*name = uniqueIfName(*name, usedIfs)
		usedIfs[*name] = true
	}

	return asset, nil
}

func firstFree(prefix netip.Prefix, used []netip.Prefix) (netip.Prefix, error) {
	candidate := prefix
	for i := 0; i < maxShifts; i++ {
		if !overlapsAny(candidate, used) {
			return candidate, nil
		}

		next, ok := nextNetwork(candidate)
		if !ok {
			break
		}
		candidate = next
	}

	return netip.Prefix{}, fmt.Errorf("no free network found starting from %s", prefix)
}

func overlapsAny(prefix netip.Prefix, used []netip.Prefix) bool {
	for _, u := range used {
		if u.Overlaps(prefix) {
			return true
		}
	}

	return false
}

func uniqueIfName(name string, used map[string]bool) string {
	if !used[name] {
		return name
	}

	parts := ifNameRe.FindStringSubmatch(name)
	stem := parts[1]
	n := 0
	if parts[2] != "" {
		n, _ = strconv.Atoi(parts[2])
	}

	for {
		n++
		candidate := stem + strconv.Itoa(n)
		if !used[candidate] {
			return candidate
		}
	}
}
