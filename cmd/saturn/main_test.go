package main

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"saturn/internal/store"
)

const animals = `name: animals
axioms:
  - subClassOf: [Dog, Mammal]
  - subClassOf: [Mammal, Animal]
  - subClassOf: [Cat, Mammal]
  - subClassOf: [Chimera, {and: [Cat, Dog]}]
  - disjointClasses: [Cat, Dog]
  - subClassOf: [Owner, {some: {property: owns, filler: Animal}}]
  - classAssertion: {class: Dog, individual: rex}
`

const contradiction = `name: contradiction
axioms:
  - disjointClasses: [Cat, Dog]
  - classAssertion: {class: Cat, individual: tom}
  - classAssertion: {class: Dog, individual: tom}
`

func writeOntology(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ontology.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

// execute runs the root command with a throwaway config and database.
// Package flag variables outlive a single Execute, so they are reset here.
func execute(t *testing.T, db string, args ...string) (string, error) {
	t.Helper()
	return executeWithConfig(t, filepath.Join(t.TempDir(), "missing.yaml"), db, args...)
}

func executeWithConfig(t *testing.T, conf, db string, args ...string) (string, error) {
	t.Helper()
	saveSnapshot, showStats, explainSupport = false, false, false
	explainDepth, listLimit, pruneKeep = 0, 20, 10
	metricsAddr = ""

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(append(args,
		"--config", conf,
		"--db", db))
	err := rootCmd.Execute()
	return out.String(), err
}

func TestClassify(t *testing.T) {
	path := writeOntology(t, animals)

	out, err := execute(t, "", "classify", path, "--stats")
	require.NoError(t, err)

	assert.Contains(t, out, "status:      complete")
	assert.Contains(t, out, "owl:Thing\n")
	assert.Contains(t, out, "  Animal\n")
	assert.Contains(t, out, "    Mammal\n")
	assert.Contains(t, out, "      Dog\n")
	assert.Contains(t, out, "unsatisfiable: Chimera")
	assert.Contains(t, out, "  rex: Dog")
	assert.NotContains(t, out, "snapshot")
}

func TestClassify_SaveAndList(t *testing.T) {
	path := writeOntology(t, animals)
	db := filepath.Join(t.TempDir(), "snapshots.db")

	out, err := execute(t, db, "classify", path)
	require.NoError(t, err)
	assert.Contains(t, out, "snapshot ")
	_, err = execute(t, db, "classify", path)
	require.NoError(t, err)

	out, err = execute(t, db, "snapshots", "list")
	require.NoError(t, err)
	assert.Contains(t, out, "LABEL")
	assert.Contains(t, out, "animals")

	s, err := store.Open(db)
	require.NoError(t, err)
	runs, err := s.Runs(context.Background(), 0)
	require.NoError(t, err)
	require.NoError(t, s.Close())
	require.Len(t, runs, 2)

	out, err = execute(t, db, "snapshots", "diff", runs[1].ID, runs[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "taxonomy unchanged\n", out)

	out, err = execute(t, db, "snapshots", "prune", "--keep", "1")
	require.NoError(t, err)
	assert.Equal(t, "deleted 1 snapshots\n", out)

	_, err = execute(t, db, "snapshots", "diff", runs[1].ID, runs[0].ID)
	assert.ErrorIs(t, err, store.ErrRunNotFound)
}

func TestCheck(t *testing.T) {
	out, err := execute(t, "", "check", writeOntology(t, animals))
	require.NoError(t, err)
	assert.Equal(t, "consistent\nunsatisfiable classes: Chimera\n", out)

	out, err = execute(t, "", "check", writeOntology(t, contradiction))
	assert.ErrorIs(t, err, errInconsistent)
	assert.Contains(t, out, "inconsistent\n")
}

func TestExplain(t *testing.T) {
	path := writeOntology(t, animals)

	out, err := execute(t, "", "explain", path, "Dog", "Animal")
	require.NoError(t, err)
	assert.Contains(t, out, "Conclusion: Dog ⊑ Animal")
	assert.Contains(t, out, "Dog ⊑ Mammal")
	assert.Contains(t, out, "[init]")

	out, err = execute(t, "", "explain", path, "rex", "Animal")
	require.NoError(t, err)
	assert.Contains(t, out, "Conclusion: ObjectOneOf(rex) ⊑ Animal")
}

func TestExplain_Support(t *testing.T) {
	path := writeOntology(t, animals)

	out, err := execute(t, "", "explain", path, "rex", "Animal", "--support")
	require.NoError(t, err)
	assert.Contains(t, out, "\nsupport:\n")
	assert.Contains(t, out, "      SubClassOf(Dog Mammal)\n")
	assert.Contains(t, out, "      SubClassOf(Mammal Animal)\n")

	out, err = execute(t, "", "explain", path, "rex", "Animal")
	require.NoError(t, err)
	assert.NotContains(t, out, "support:")
}

func TestExplain_NotDerived(t *testing.T) {
	path := writeOntology(t, animals)

	_, err := execute(t, "", "explain", path, "Cat", "Dog")
	assert.Error(t, err)

	_, err = execute(t, "", "explain", path, "Cat", "Unicorn")
	assert.Error(t, err)
}

func TestInvalidConfig(t *testing.T) {
	for name, body := range map[string]string{
		"invalid chain policy":        "saturation:\n  chain_policy: bogus\n",
		"failed to initialize logger": "logging:\n  level: loud\n",
	} {
		t.Run(name, func(t *testing.T) {
			conf := filepath.Join(t.TempDir(), "saturn.yaml")
			require.NoError(t, os.WriteFile(conf, []byte(body), 0o644))

			_, err := executeWithConfig(t, conf, "", "check", writeOntology(t, animals))
			assert.ErrorContains(t, err, name)
		})
	}
}
