package manager

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"grimm.is/wrtd/internal/depgraph"
	"grimm.is/wrtd/internal/events"
	"grimm.is/wrtd/internal/logging"
)

func builtinSet(log *callLog) []Manager {
	return []Manager{
		&fakeManager{name: "traffic", log: log},
		&fakeManager{name: "wan", log: log},
		&fakeManager{name: "lan", log: log},
	}
}

func TestController_InitAndDisposeOrder(t *testing.T) {
	log := &callLog{}
	ctx := newTestContext(t)

	// c -> b -> a, plus an independent z and a plugin that follows a built-in.
	registerFake(t, ctx, &fakeManager{name: "c", after: []string{"b"}, log: log})
	registerFake(t, ctx, &fakeManager{name: "a", log: log})
	registerFake(t, ctx, &fakeManager{name: "z", log: log})
	registerFake(t, ctx, &fakeManager{name: "b", after: []string{"a", "wan"}, log: log})

	ctrl := NewController(ctx, builtinSet(log), logging.Discard())
	require.NoError(t, ctrl.InitBuiltins())
	require.NoError(t, ctrl.LoadPlugins())

	wantInit := []string{"traffic", "wan", "lan", "a", "b", "c", "z"}
	assert.Equal(t, wantInit, ctrl.InitOrder())

	require.NoError(t, ctrl.DisposeAll())

	var want []string
	for _, n := range wantInit {
		want = append(want, "init "+n)
	}
	for i := len(wantInit) - 1; i >= 0; i-- {
		want = append(want, "dispose "+wantInit[i])
	}
	assert.Equal(t, want, log.get())

	for _, n := range wantInit {
		assert.Equal(t, StateDisposed, ctrl.State(n))
	}
}

func TestController_ContextGrowsDuringInit(t *testing.T) {
	log := &callLog{}
	ctx := newTestContext(t)
	a := &fakeManager{name: "a", log: log}
	b := &fakeManager{name: "b", after: []string{"a"}, log: log}
	registerFake(t, ctx, a)
	registerFake(t, ctx, b)

	ctrl := NewController(ctx, builtinSet(log), logging.Discard())
	require.NoError(t, ctrl.InitBuiltins())
	require.NoError(t, ctrl.LoadPlugins())

	assert.Equal(t, []string{"traffic", "wan", "lan"}, a.seenAtInit)
	assert.Equal(t, []string{"traffic", "wan", "lan", "a"}, b.seenAtInit)

	got, ok := ctx.Manager("b")
	require.True(t, ok)
	assert.Same(t, b, got)
}

func TestController_DisposeIsIdempotent(t *testing.T) {
	log := &callLog{}
	ctx := newTestContext(t)
	registerFake(t, ctx, &fakeManager{name: "a", log: log})

	ctrl := NewController(ctx, builtinSet(log), logging.Discard())
	require.NoError(t, ctrl.InitBuiltins())
	require.NoError(t, ctrl.LoadPlugins())
	require.NoError(t, ctrl.DisposeAll())
	before := len(log.get())
	require.NoError(t, ctrl.DisposeAll())
	assert.Len(t, log.get(), before)
}

func TestController_DisposeContainsFailures(t *testing.T) {
	log := &callLog{}
	ctx := newTestContext(t)
	registerFake(t, ctx, &fakeManager{name: "a", log: log, disposeErr: errBoom})
	registerFake(t, ctx, &fakeManager{name: "b", after: []string{"a"}, log: log, panicOn: "dispose"})
	registerFake(t, ctx, &fakeManager{name: "c", after: []string{"b"}, log: log})

	sub := ctx.Caller.Hub().Subscribe(32, events.EventManagerDispose)

	ctrl := NewController(ctx, builtinSet(log), logging.Discard())
	require.NoError(t, ctrl.InitBuiltins())
	require.NoError(t, ctrl.LoadPlugins())

	err := ctrl.DisposeAll()
	require.Error(t, err)
	assert.ErrorIs(t, err, errBoom)
	assert.Contains(t, err.Error(), "dispose exploded")

	calls := log.get()
	assert.Equal(t, []string{
		"dispose c", "dispose b", "dispose a", "dispose lan", "dispose wan", "dispose traffic",
	}, calls[len(calls)-6:])

	assert.Len(t, sub, 6)
	var failed []string
	for len(sub) > 0 {
		if d := (<-sub).Data.(events.ManagerData); d.Error != "" {
			failed = append(failed, d.Name)
		}
	}
	assert.Equal(t, []string{"b", "a"}, failed)
}

func TestController_CycleAbortsBeforePluginInit(t *testing.T) {
	log := &callLog{}
	ctx := newTestContext(t)
	registerFake(t, ctx, &fakeManager{name: "a", after: []string{"b"}, log: log})
	registerFake(t, ctx, &fakeManager{name: "b", after: []string{"a"}, log: log})
	registerFake(t, ctx, &fakeManager{name: "free", log: log})

	ctrl := NewController(ctx, builtinSet(log), logging.Discard())
	require.NoError(t, ctrl.InitBuiltins())

	err := ctrl.LoadPlugins()
	require.Error(t, err)
	assert.ErrorIs(t, err, depgraph.ErrCycle)
	assert.Equal(t, []string{"init traffic", "init wan", "init lan"}, log.get())
	assert.Equal(t, StateUnloaded, ctrl.State("free"))
}

func TestController_UnknownDependency(t *testing.T) {
	log := &callLog{}
	ctx := newTestContext(t)
	registerFake(t, ctx, &fakeManager{name: "a", after: []string{"ghost"}, log: log})

	ctrl := NewController(ctx, nil, logging.Discard())
	err := ctrl.LoadPlugins()
	assert.ErrorIs(t, err, ErrUnknownDependency)
	assert.Empty(t, log.get())
}

func TestController_PluginCollidesWithBuiltin(t *testing.T) {
	log := &callLog{}
	ctx := newTestContext(t)
	registerFake(t, ctx, &fakeManager{name: "wan", log: log})

	ctrl := NewController(ctx, builtinSet(log), logging.Discard())
	require.NoError(t, ctrl.InitBuiltins())
	assert.ErrorIs(t, ctrl.LoadPlugins(), ErrDuplicatePlugin)
}

func TestController_NotAManager(t *testing.T) {
	ctx := newTestContext(t)
	require.NoError(t, ctx.Registry.Register(TypeManager, "plain", func() Plugin { return plainPlugin{} }))

	ctrl := NewController(ctx, nil, logging.Discard())
	assert.ErrorIs(t, ctrl.LoadPlugins(), ErrNotManager)
}

func TestController_InitFailureIsFatal(t *testing.T) {
	for _, mode := range []string{"error", "panic"} {
		t.Run(mode, func(t *testing.T) {
			log := &callLog{}
			ctx := newTestContext(t)
			bad := &fakeManager{name: "b", after: []string{"a"}, log: log}
			if mode == "error" {
				bad.initErr = errBoom
			} else {
				bad.panicOn = "init"
			}
			registerFake(t, ctx, &fakeManager{name: "a", log: log})
			registerFake(t, ctx, bad)
			registerFake(t, ctx, &fakeManager{name: "c", after: []string{"b"}, log: log})

			ctrl := NewController(ctx, builtinSet(log), logging.Discard())
			require.NoError(t, ctrl.InitBuiltins())
			err := ctrl.LoadPlugins()
			require.Error(t, err)
			assert.Contains(t, err.Error(), "manager b")

			assert.Equal(t, StateUnloaded, ctrl.State("b"))
			assert.Equal(t, StateUnloaded, ctrl.State("c"))
			_, registered := ctx.Manager("b")
			assert.False(t, registered)

			require.NoError(t, ctrl.DisposeAll())
			calls := log.get()
			assert.Equal(t, []string{"dispose a", "dispose lan", "dispose wan", "dispose traffic"}, calls[len(calls)-4:])
			assert.NotContains(t, calls, "dispose b")
		})
	}
}

func TestController_PluginConfig(t *testing.T) {
	log := &callLog{}
	ctx := newTestContext(t)
	withCfg := &fakeManager{name: "dns", log: log}
	empty := &fakeManager{name: "proxy", log: log}
	registerFake(t, ctx, withCfg)
	registerFake(t, ctx, empty)

	require.NoError(t, os.WriteFile(filepath.Join(ctx.EtcDir, "manager-dns.json"), []byte(`{"upstream": "9.9.9.9"}`), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(ctx.EtcDir, "manager-proxy.json"), nil, 0644))

	ctrl := NewController(ctx, nil, logging.Discard())
	require.NoError(t, ctrl.LoadPlugins())

	assert.Equal(t, "9.9.9.9", withCfg.gotCfg["upstream"])
	assert.NotNil(t, empty.gotCfg)
	assert.Empty(t, empty.gotCfg)
}

func TestController_MalformedPluginConfig(t *testing.T) {
	log := &callLog{}
	ctx := newTestContext(t)
	registerFake(t, ctx, &fakeManager{name: "dns", log: log})
	require.NoError(t, os.WriteFile(filepath.Join(ctx.EtcDir, "manager-dns.json"), []byte(`{"upstream": `), 0644))

	ctrl := NewController(ctx, nil, logging.Discard())
	err := ctrl.LoadPlugins()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "manager dns")
	assert.Empty(t, log.get())
}

func TestController_Notifications(t *testing.T) {
	log := &callLog{}
	ctx := newTestContext(t)
	sub := ctx.Caller.Hub().Subscribe(32, events.EventManagerInit)

	listener := listenerManager{&fakeManager{name: "traffic", log: log}}
	builtins := []Manager{listener, &fakeManager{name: "wan", log: log}}
	registerFake(t, ctx, &fakeManager{name: "a", log: log})

	ctrl := NewController(ctx, builtins, logging.Discard())
	require.NoError(t, ctrl.InitBuiltins())
	require.NoError(t, ctrl.LoadPlugins())

	// A listener hears about managers that come up after it, not itself.
	assert.Equal(t, []string{"wan", "a"}, listener.heard)

	var names []string
	for len(sub) > 0 {
		d := (<-sub).Data.(events.ManagerData)
		names = append(names, d.Name)
	}
	assert.Equal(t, []string{"traffic", "wan", "a"}, names)
	assert.Len(t, ctx.Caller.Managers(), 3)
}
