package usage_test

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/panbanda/ilscan/pkg/analyzer/usage"
	"github.com/panbanda/ilscan/pkg/metadata"
	"github.com/panbanda/ilscan/pkg/metadata/metadatatest"
)

const usageFixture = `
assemblies:
  - name: App
    modules:
      - name: App.dll
        types:
          - namespace: Acme
            name: IWorker
            kind: interface
            access: public
            methods:
              - {name: Work, access: public, flags: [virtual, abstract, newslot]}
          - namespace: Acme
            name: Service
            access: public
            interfaces: [Acme.IWorker]
            methods:
              - name: Run
                access: public
                body:
                  - {op: call, method: {type: Acme.Service, name: Helper}}
                  - {op: callvirt, method: {type: Acme.IWorker, name: Work}}
                  - {op: call, method: {type: Acme.Gone, name: Vanished}}
                  - {op: calli, method: {type: Acme.Service, name: ViaCalli}}
                  - {op: calli, signature: {params: [], static: true}}
                  - {op: ret}
              - {name: Helper, access: private, body: [{op: ret}]}
              - {name: Unused, access: private, body: [{op: ret}]}
              - {name: ViaCalli, access: private, body: [{op: ret}]}
              - name: Acme.IWorker.Work
                access: private
                flags: [virtual, final, newslot]
                overrides: [{type: Acme.IWorker, name: Work}]
                body: [{op: ret}]
          - namespace: Acme
            name: Box` + "`" + `1
            access: public
            generic_params: [{name: T}]
            methods:
              - {name: Put, access: private, params: [{type: T}], body: [{op: ret}]}
              - {name: Put, access: private, params: [{type: System.Int32}], body: [{op: ret}]}
              - name: Fill
                access: public
                body:
                  - {op: call, method: {type: "Acme.Box` + "`" + `1<!0>", name: Put, params: [System.Int32]}}
                  - {op: ret}
`

func TestIndexIsUsed(t *testing.T) {
	g := metadatatest.LoadYAML(t, usageFixture)
	ix := usage.New()
	service := g.Type("Acme.Service")

	assert.True(t, ix.IsUsed(service, g.Method("Acme.Service::Helper")))
	assert.False(t, ix.IsUsed(service, g.Method("Acme.Service::Unused")))
	assert.False(t, ix.IsUsed(service, g.Method("Acme.Service::Run")))
}

func TestIndexSkipsIndirectCalls(t *testing.T) {
	g := metadatatest.LoadYAML(t, usageFixture)
	ix := usage.New()
	service := g.Type("Acme.Service")

	assert.False(t, ix.IsUsed(service, g.Method("Acme.Service::ViaCalli")))
}

func TestIndexExplicitOverride(t *testing.T) {
	g := metadatatest.LoadYAML(t, usageFixture)
	ix := usage.New()
	service := g.Type("Acme.Service")

	assert.True(t, ix.IsUsed(service, g.Method("Acme.Service::Acme.IWorker.Work")))
}

func TestIndexGenericRetarget(t *testing.T) {
	g := metadatatest.LoadYAML(t, usageFixture)
	ix := usage.New()
	box := g.Type("Acme.Box`1")

	// The reference targets the Int32 overload; the first Put is marked too.
	assert.True(t, ix.IsUsed(box, g.Method("Acme.Box`1::Put#1")))
	assert.True(t, ix.IsUsed(box, g.Method("Acme.Box`1::Put#0")))
	assert.False(t, ix.IsUsed(box, g.Method("Acme.Box`1::Fill")))
}

func TestIndexUsageSetsAreScopedToType(t *testing.T) {
	g := metadatatest.LoadYAML(t, usageFixture)
	ix := usage.New()

	assert.False(t, ix.IsUsed(g.Type("Acme.Box`1"), g.Method("Acme.Service::Helper")))
	assert.True(t, ix.Usage(g.Type("Acme.IWorker")).IsEmpty())
}

const versionedFixture = `
assemblies:
  - name: App
    version: "%s"
    modules:
      - name: App.dll
        types:
          - namespace: Acme
            name: Service
            access: public
            methods:
              - name: Run
                access: public
                body:
                  - {op: call, method: {type: Acme.Service, name: %s}}
                  - {op: ret}
              - {name: Helper, access: private, body: [{op: ret}]}
              - {name: Spare, access: private, body: [{op: ret}]}
`

func TestIndexSeparatesAssemblyVersions(t *testing.T) {
	v1 := metadatatest.LoadYAML(t, fmt.Sprintf(versionedFixture, "1.0.0.0", "Spare"))
	v2 := metadatatest.LoadYAML(t, fmt.Sprintf(versionedFixture, "2.0.0.0", "Helper"))
	ix := usage.New()

	// Build v2's set first so a shared entry would answer for v1.
	assert.True(t, ix.IsUsed(v2.Type("Acme.Service"), v2.Method("Acme.Service::Helper")))
	assert.False(t, ix.IsUsed(v1.Type("Acme.Service"), v1.Method("Acme.Service::Helper")))
	assert.True(t, ix.IsUsed(v1.Type("Acme.Service"), v1.Method("Acme.Service::Spare")))
	assert.False(t, ix.IsUsed(v2.Type("Acme.Service"), v2.Method("Acme.Service::Spare")))
	assert.Equal(t, 2, ix.Stats().Types)
}

func TestIndexMembers(t *testing.T) {
	g := metadatatest.LoadYAML(t, usageFixture)
	ix := usage.New()

	var names []string
	for _, k := range ix.Members(g.Type("Acme.Service")) {
		assert.Equal(t, metadata.AssemblyID("App"), k.Assembly)
		names = append(names, string(k.Method))
	}
	assert.ElementsMatch(t, []string{
		"[App]Acme.Service::Helper():System.Void",
		"[App]Acme.IWorker::Work():System.Void",
	}, names)
	assert.Empty(t, ix.Members(g.Type("Acme.IWorker")))
}

func TestIndexBuildsOncePerType(t *testing.T) {
	g := metadatatest.LoadYAML(t, usageFixture)
	ix := usage.New()
	service := g.Type("Acme.Service")
	helper := g.Method("Acme.Service::Helper")

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.True(t, ix.IsUsed(service, helper))
		}()
	}
	wg.Wait()

	st := ix.Stats()
	assert.Equal(t, int64(1), st.Builds)
	assert.Equal(t, 1, st.Types)
}

func TestIndexIdempotent(t *testing.T) {
	g := metadatatest.LoadYAML(t, usageFixture)
	ix := usage.New()
	service := g.Type("Acme.Service")

	first := ix.Usage(service)
	second := ix.Usage(service)
	assert.True(t, first.Equals(second))
	assert.Equal(t, int64(1), ix.Stats().Builds)
}

func TestIndexClear(t *testing.T) {
	g := metadatatest.LoadYAML(t, usageFixture)
	ix := usage.New()
	service := g.Type("Acme.Service")
	helper := g.Method("Acme.Service::Helper")

	require.True(t, ix.IsUsed(service, helper))
	ix.Clear()
	st := ix.Stats()
	assert.Zero(t, st.Types)
	assert.Zero(t, st.Tokens)

	assert.True(t, ix.IsUsed(service, helper))
	assert.Equal(t, int64(2), ix.Stats().Builds)
}

func TestIndexFailedBuildIsNotCached(t *testing.T) {
	asm := &metadata.Assembly{Name: "Broken"}
	mod := &metadata.Module{Name: "Broken.dll", Assembly: asm}
	asm.Modules = []*metadata.Module{mod}
	broken := &metadata.Type{Name: "Broken", Module: mod, Methods: []*metadata.Method{nil}}
	mod.Types = []*metadata.Type{broken}
	probe := &metadata.Method{Name: "Probe", DeclaringType: broken}

	ix := usage.New()
	assert.Panics(t, func() { ix.IsUsed(broken, probe) })
	assert.Zero(t, ix.Stats().Types)

	broken.Methods = []*metadata.Method{probe}
	assert.NotPanics(t, func() { assert.False(t, ix.IsUsed(broken, probe)) })
	assert.Equal(t, 1, ix.Stats().Types)
}

func TestInterner(t *testing.T) {
	in := usage.NewInterner()
	a := usage.TokenKey{Assembly: "App", Method: "[App]A::M():System.Void"}
	b := usage.TokenKey{Assembly: "App", Method: "[App]A::N():System.Void"}

	_, ok := in.Lookup(a)
	assert.False(t, ok)

	ida := in.Intern(a)
	idb := in.Intern(b)
	assert.NotEqual(t, ida, idb)
	assert.Equal(t, ida, in.Intern(a))

	key, ok := in.Key(idb)
	require.True(t, ok)
	assert.Equal(t, b, key)
	assert.Equal(t, 2, in.Len())

	in.Reset()
	assert.Zero(t, in.Len())
}
