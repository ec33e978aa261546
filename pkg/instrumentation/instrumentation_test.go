package instrumentation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/go-delve/nativedbg/pkg/proc"
)

type fakeRuntime struct {
	typ    Type
	loaded [][]*proc.Module
}

func (r *fakeRuntime) Type() Type { return r.typ }
func (r *fakeRuntime) CheckIfRuntimeIsValid(*proc.Module) bool { return false }
func (r *fakeRuntime) ModulesDidLoad(mods []*proc.Module) { r.loaded = append(r.loaded, mods) }
func (r *fakeRuntime) Activate() error { return nil }
func (r *fakeRuntime) Deactivate() {}
func (r *fakeRuntime) IsActive() bool { return false }
func (r *fakeRuntime) GetBacktracesFromExtendedStopInfo(Dictionary) []proc.Thread { return nil }

func TestRegistry(t *testing.T) {
	var created []*fakeRuntime
	Register("AddressSanitizer", "test plugin", TypeAddressSanitizer, func(proc.Target) Runtime {
		r := &fakeRuntime{typ: TypeAddressSanitizer}
		created = append(created, r)
		return r
	})
	defer Unregister(TypeAddressSanitizer)

	assert.Contains(t, PluginNames(), "AddressSanitizer")
	assert.Panics(t, func() {
		Register("other", "", TypeAddressSanitizer, nil)
	})

	runtimes := Collection{}
	mods := []*proc.Module{{Path: "/tmp/a.out"}}
	ModulesDidLoad(mods, nil, runtimes)
	ModulesDidLoad(mods, nil, runtimes)
	require.Len(t, created, 1)
	assert.Len(t, created[0].loaded, 2)
	assert.Same(t, created[0], runtimes[TypeAddressSanitizer])

	Unregister(TypeAddressSanitizer)
	assert.NotContains(t, PluginNames(), "AddressSanitizer")
}

func TestDictionary(t *testing.T) {
	d := Dictionary{
		"u":     uint64(7),
		"i":     int64(-1),
		"n":     3,
		"s":     "str",
		"b":     true,
		"trace": []uint64{1, 2},
		"a":     []Dictionary{{"x": uint64(1)}},
	}
	assert.Equal(t, uint64(7), d.Uint("u"))
	assert.Equal(t, ^uint64(0), d.Uint("i"))
	assert.Equal(t, uint64(3), d.Uint("n"))
	assert.Equal(t, uint64(0), d.Uint("s"))
	assert.Equal(t, "str", d.String("s"))
	assert.Equal(t, "", d.String("u"))
	assert.True(t, d.Bool("b"))
	assert.Equal(t, []uint64{1, 2}, d.Trace("trace"))
	assert.Len(t, d.Array("a"), 1)
	assert.True(t, d.Has("u"))
	assert.False(t, d.Has("missing"))
	assert.Equal(t, "ThreadSanitizer", TypeThreadSanitizer.String())
}
