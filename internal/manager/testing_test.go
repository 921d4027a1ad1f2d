package manager

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"grimm.is/wrtd/internal/config"
	"grimm.is/wrtd/internal/events"
	"grimm.is/wrtd/internal/logging"
)

// callLog records lifecycle calls across managers in order.
type callLog struct {
	mu    sync.Mutex
	calls []string
}

func (l *callLog) add(format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.calls = append(l.calls, fmt.Sprintf(format, args...))
}

func (l *callLog) get() []string {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]string(nil), l.calls...)
}

type fakeManager struct {
	name       string
	after      []string
	log        *callLog
	initErr    error
	disposeErr error
	panicOn    string

	gotCfg     config.PluginConfig
	seenAtInit []string
	heard      []string
}

func (f *fakeManager) Name() string        { return f.name }
func (f *fakeManager) InitAfter() []string { return f.after }

func (f *fakeManager) Init(cfg config.PluginConfig, tmpDir, varDir string, ctx *Context) error {
	f.log.add("init %s", f.name)
	if f.panicOn == "init" {
		panic("init exploded")
	}
	f.gotCfg = cfg
	for _, m := range ctx.Managers() {
		f.seenAtInit = append(f.seenAtInit, m.Name())
	}
	return f.initErr
}

func (f *fakeManager) Dispose() error {
	f.log.add("dispose %s", f.name)
	if f.panicOn == "dispose" {
		panic("dispose exploded")
	}
	return f.disposeErr
}

// listenerManager also implements InitListener.
type listenerManager struct {
	*fakeManager
}

func (l listenerManager) OnManagerInit(m Manager) {
	l.heard = append(l.heard, m.Name())
}

// plainPlugin is a Plugin that is not a Manager.
type plainPlugin struct{}

func (plainPlugin) Name() string { return "plain" }
func (plainPlugin) Init(config.PluginConfig, string, string, *Context) error {
	return nil
}
func (plainPlugin) Dispose() error { return nil }

var errBoom = errors.New("boom")

func newTestContext(t *testing.T) *Context {
	t.Helper()
	return &Context{
		EtcDir:   t.TempDir(),
		TmpDir:   t.TempDir(),
		VarDir:   t.TempDir(),
		Registry: NewRegistry(),
		Caller:   NewCaller(events.NewHub(), logging.Discard()),
		Logger:   logging.Discard(),
	}
}

func registerFake(t *testing.T, ctx *Context, m *fakeManager) {
	t.Helper()
	if err := ctx.Registry.Register(TypeManager, m.name, func() Plugin { return m }); err != nil {
		t.Fatal(err)
	}
}
