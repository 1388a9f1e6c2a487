package allocators

import (
	"fmt"
	"strings"

	"github.com/rs/zerolog"

	"github.com/aristath/allocator/internal/host"
	"github.com/aristath/allocator/internal/strategy"
)

// Reference prefixes for host strategies. Unprefixed references name native strategies.
const (
	LuaPrefix    = "lua:"
	RemotePrefix = "remote:"
)

// Catalog resolves strategy references to something allocator.New accepts.
type Catalog struct {
	registry *strategy.Registry
	lua      host.Provider
	remote   host.Provider
	log      zerolog.Logger
}

// NewCatalog creates a catalog over the native registry. Host providers are optional.
func NewCatalog(registry *strategy.Registry, log zerolog.Logger) *Catalog {
	return &Catalog{
		registry: registry,
		log:      log.With().Str("component", "catalog").Logger(),
	}
}

// SetLuaProvider sets the embedded host runtime.
func (c *Catalog) SetLuaProvider(p host.Provider) {
	c.lua = p
}

// SetRemoteProvider sets the remote strategy host.
func (c *Catalog) SetRemoteProvider(p host.Provider) {
	c.remote = p
}

// Resolve returns a *strategy.Definition or a host.Class for ref.
func (c *Catalog) Resolve(ref string) (any, error) {
	switch {
	case strings.HasPrefix(ref, LuaPrefix):
		return c.hostClass(c.lua, "lua", strings.TrimPrefix(ref, LuaPrefix))
	case strings.HasPrefix(ref, RemotePrefix):
		return c.hostClass(c.remote, "remote", strings.TrimPrefix(ref, RemotePrefix))
	}
	return c.registry.Get(ref)
}

func (c *Catalog) hostClass(p host.Provider, kind, name string) (host.Class, error) {
	if p == nil {
		return nil, fmt.Errorf("%w: no %s host configured for %s", strategy.ErrUnknownStrategy, kind, name)
	}
	return p.Class(name)
}

// Entries lists every resolvable reference: native strategies first, then host classes.
// An unreachable host is logged and left out.
func (c *Catalog) Entries() []StrategyEntry {
	var entries []StrategyEntry
	for _, def := range c.registry.Definitions() {
		entries = append(entries, StrategyEntry{
			Ref:         def.Name,
			Source:      SourceNative,
			Description: def.Description,
			InputShape:  def.InputShape,
			OutputShape: def.OutputShape,
			Params:      def.Params,
		})
	}
	entries = append(entries, c.hostEntries(c.lua, SourceLua, LuaPrefix)...)
	entries = append(entries, c.hostEntries(c.remote, SourceRemote, RemotePrefix)...)
	return entries
}

func (c *Catalog) hostEntries(p host.Provider, source Source, prefix string) []StrategyEntry {
	if p == nil {
		return nil
	}
	names, err := p.Classes()
	if err != nil {
		c.log.Warn().Err(err).Str("source", string(source)).Msg("Failed to list host classes")
		return nil
	}
	entries := make([]StrategyEntry, 0, len(names))
	for _, name := range names {
		entries = append(entries, StrategyEntry{Ref: prefix + name, Source: source})
	}
	return entries
}
