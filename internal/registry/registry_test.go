package registry

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_WritesDefaults(t *testing.T) {
	dir := t.TempDir()

	reg, err := New(dir)
	require.NoError(t, err)

	snap := reg.Snapshot()
	require.Len(t, snap.States, 5)
	assert.Equal(t, "concept", snap.DefaultState().Name)
	assert.Equal(t, "#e74c3c", snap.StateColor("morto"))
	assert.Equal(t, DefaultColor, snap.StateColor("unknown"))
	assert.Equal(t, DefaultPolicy(), snap.Policy)

	require.Len(t, snap.Fields, 3)
	assert.Equal(t, "quantita", snap.Fields[1].Name)
	assert.Equal(t, "Quantità", snap.Fields[1].Label)

	assert.FileExists(t, filepath.Join(dir, StatesFile))
	assert.FileExists(t, filepath.Join(dir, FormFile))
}

func TestSnapshot_StateLookup(t *testing.T) {
	snap := DefaultSnapshot()

	state, ok := snap.LookupState("  Prototipo ")
	require.True(t, ok)
	assert.Equal(t, "prototipo", state.Name)

	order, ok := snap.StateOrder("solo per ricambi")
	require.True(t, ok)
	assert.Equal(t, 3, order)

	_, ok = snap.LookupState("released")
	assert.False(t, ok)
}

func TestRegistry_Reload(t *testing.T) {
	dir := t.TempDir()
	reg, err := New(dir)
	require.NoError(t, err)

	err = os.WriteFile(filepath.Join(dir, StatesFile), []byte("# custom\nbozza,#000000\n\nattivo\n"), 0o644)
	require.NoError(t, err)
	err = os.WriteFile(filepath.Join(dir, FormFile), []byte("materiale,Materiale\n# skip\nprova_carico\n"), 0o644)
	require.NoError(t, err)
	err = os.WriteFile(filepath.Join(dir, PolicyFile), []byte("rule,value\nmin_length,12\nrequire_symbol,false\nrequire_upper,yes\n"), 0o644)
	require.NoError(t, err)

	require.NoError(t, reg.Reload())
	snap := reg.Snapshot()

	require.Len(t, snap.States, 2)
	assert.Equal(t, State{Name: "attivo", Color: DefaultColor}, snap.States[1])

	require.Len(t, snap.Fields, 2)
	assert.Equal(t, FormField{Name: "materiale", Label: "Materiale", Order: 0}, snap.Fields[0])
	assert.Equal(t, FormField{Name: "prova_carico", Label: "Prova Carico", Order: 2}, snap.Fields[1])

	assert.Equal(t, Policy{MinLength: 12, RequireDigit: true, RequireSymbol: false, RequireUpper: true}, snap.Policy)
}

func TestPolicy_Validate(t *testing.T) {
	tests := []struct {
		name       string
		policy     Policy
		password   string
		violations int
	}{
		{"default ok", DefaultPolicy(), "secret-123", 0},
		{"too short", DefaultPolicy(), "a1!", 1},
		{"no digit no symbol", DefaultPolicy(), "longpassword", 2},
		{"upper required", Policy{MinLength: 1, RequireUpper: true}, "lower", 1},
		{"all rules", Policy{MinLength: 4, RequireDigit: true, RequireSymbol: true, RequireUpper: true}, "Ab1?", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Len(t, tt.policy.Validate(tt.password), tt.violations)
		})
	}
}

func TestPolicy_Description(t *testing.T) {
	assert.Equal(t, "minimum length 8, at least one digit, at least one symbol", DefaultPolicy().Description())
}

func TestDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), AccountsFile)
	err := os.WriteFile(path, []byte("stabilimento,gruppo,account\nMilano,Qualità,mrossi\nTorino,Acquisti,lbianchi\nMilano,Acquisti,gverdi\n"), 0o644)
	require.NoError(t, err)

	dir, err := NewDirectory(path)
	require.NoError(t, err)

	acc, ok := dir.Find("MRossi", "", "")
	require.True(t, ok)
	assert.Equal(t, "Milano|Qualità|mrossi", acc.Header())

	_, ok = dir.Find("mrossi", "Torino", "")
	assert.False(t, ok)

	_, err = dir.Append("LBIANCHI")
	assert.ErrorIs(t, err, ErrDuplicateAccount)

	created, err := dir.Append("nnuovo")
	require.NoError(t, err)
	assert.Equal(t, Unassigned, created.Facility)

	reloaded, err := NewDirectory(path)
	require.NoError(t, err)
	_, ok = reloaded.Find("nnuovo", Unassigned, Unassigned)
	assert.True(t, ok)

	hierarchy := reloaded.Hierarchy()
	require.Len(t, hierarchy, 3)
	assert.Equal(t, "Milano", hierarchy[0].Facility)
	require.Len(t, hierarchy[0].Groups, 2)
	assert.Equal(t, "Acquisti", hierarchy[0].Groups[0].Name)
	assert.Equal(t, []string{"gverdi"}, hierarchy[0].Groups[0].Accounts)
	assert.Equal(t, "Torino", hierarchy[1].Facility)
	assert.Equal(t, Unassigned, hierarchy[2].Facility)
}

func TestDirectory_CreatesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), AccountsFile)
	dir, err := NewDirectory(path)
	require.NoError(t, err)

	_, err = dir.Append("first")
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "stabilimento,gruppo,account\nda assegnare,da assegnare,first\n", string(data))

	_, err = dir.Append("second")
	require.NoError(t, err)
	require.NoError(t, dir.Remove("FIRST"))
	_, ok := dir.Find("first", "", "")
	assert.False(t, ok)

	data, err = os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "stabilimento,gruppo,account\nda assegnare,da assegnare,second\n", string(data))
}
