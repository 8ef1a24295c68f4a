package modtrack

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"smatchgo/internal/state"
	"smatchgo/internal/symbol"
)

type marker string

func (m marker) String() string { return string(m) }

func TestExactMatchFiresDirectHook(t *testing.T) {
	r := NewRegistry()
	sym := &symbol.Symbol{Name: "p"}
	var fired []string
	r.AddHook(1, func(prev *state.SM) { fired = append(fired, prev.Key.Name) })

	tree := state.New().Set(state.Key{Owner: 1, Name: "p", Sym: sym}, marker("tracked"))
	r.Notify(tree, "p", sym)

	assert.Equal(t, []string{"p"}, fired)
}

func TestMemberOverwriteFiresIndirectHook(t *testing.T) {
	r := NewRegistry()
	sym := &symbol.Symbol{Name: "p"}
	var direct, indirect []string
	r.AddHook(1, func(prev *state.SM) { direct = append(direct, prev.Key.Name) })
	r.AddIndirectHook(1, func(prev *state.SM) { indirect = append(indirect, prev.Key.Name) })

	tree := state.New().Set(state.Key{Owner: 1, Name: "p->len", Sym: sym}, marker("tracked"))
	r.Notify(tree, "p", sym)

	assert.Empty(t, direct)
	assert.Equal(t, []string{"p->len"}, indirect)
}

func TestDerefTrackedBehindStarMatchesIndirectly(t *testing.T) {
	r := NewRegistry()
	sym := &symbol.Symbol{Name: "p"}
	var indirect []string
	r.AddIndirectHook(1, func(prev *state.SM) { indirect = append(indirect, prev.Key.Name) })

	tree := state.New().Set(state.Key{Owner: 1, Name: "*p", Sym: sym}, marker("tracked"))
	r.Notify(tree, "p", sym)

	assert.Equal(t, []string{"*p"}, indirect)
}

func TestDifferentSymbolNeverMatches(t *testing.T) {
	r := NewRegistry()
	fired := false
	r.AddHook(1, func(*state.SM) { fired = true })

	tree := state.New().Set(state.Key{Owner: 1, Name: "p", Sym: &symbol.Symbol{Name: "p"}}, marker("tracked"))
	r.Notify(tree, "p", &symbol.Symbol{Name: "p"})

	assert.False(t, fired, "same name under a different symbol is different storage")
}

func TestPrefixOfLongerNameDoesNotMatch(t *testing.T) {
	r := NewRegistry()
	sym := &symbol.Symbol{Name: "ptr"}
	fired := false
	r.AddHook(1, func(*state.SM) { fired = true })
	r.AddIndirectHook(1, func(*state.SM) { fired = true })

	// "pt" is a plain string prefix of "ptr" but denotes unrelated storage.
	tree := state.New().Set(state.Key{Owner: 1, Name: "ptr", Sym: sym}, marker("tracked"))
	r.Notify(tree, "pt", sym)

	assert.False(t, fired)
}

func TestNotifyAllCoversEveryArg(t *testing.T) {
	r := NewRegistry()
	symA := &symbol.Symbol{Name: "a"}
	symB := &symbol.Symbol{Name: "b"}
	var fired []string
	r.AddHook(1, func(prev *state.SM) { fired = append(fired, prev.Key.Name) })

	tree := state.New().
		Set(state.Key{Owner: 1, Name: "a", Sym: symA}, marker("x")).
		Set(state.Key{Owner: 1, Name: "b", Sym: symB}, marker("y"))
	r.NotifyAll(tree, []NameSym{{Name: "a", Sym: symA}, {Name: "b", Sym: symB}})

	assert.ElementsMatch(t, []string{"a", "b"}, fired)
}
