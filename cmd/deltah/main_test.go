package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chrissnell/deltah/pkg/lookup"
)

func TestSummarize(t *testing.T) {
	tbl, err := lookup.FromRows([]int{1, 2},
		[][]float64{{1000000, 500000}, {800000, 250000}, {500000, 0}, {0, 0}},
		[][]float64{{10000000, 2500000}, {6000000, 500000}, {2000000, 0}, {0, 0}},
	)
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, summarize(&buf, tbl, 2))
	out := buf.String()

	assert.Contains(t, out, "units: [1 2]")
	assert.Contains(t, out, "1,500,000")
	assert.Contains(t, out, "12,500,000")
	// Rows 0 and 2 by stride, row 3 because it is the last
	assert.Contains(t, out, "100%")
	assert.NotContains(t, out, "33%")
}

func TestRootCommandComputeAndInspect(t *testing.T) {
	dir := t.TempDir()
	bands := filepath.Join(dir, "bands.csv")
	require.NoError(t, os.WriteFile(bands, []byte("elevation,area,thickness,unit\n2000,1000000,10,1\n1500,500000,5,2\n"), 0o644))

	cfgPath := filepath.Join(dir, "deltah.yaml")
	cfg := "runs:\n  - name: valley\n    increments: 20\n    catchment_area: 3000000\n    geometry_file: " + bands +
		"\n    output_dir: " + filepath.Join(dir, "out") + "\n"
	require.NoError(t, os.WriteFile(cfgPath, []byte(cfg), 0o644))

	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetArgs([]string{"compute", "--config", cfgPath})
	require.NoError(t, rootCmd.Execute())
	assert.True(t, strings.Contains(out.String(), "valley: 2 units, 20 increments"))

	out.Reset()
	rootCmd.SetArgs([]string{"inspect",
		"--area", filepath.Join(dir, "out", "valley_area.csv"),
		"--volume", filepath.Join(dir, "out", "valley_volume.csv"),
		"--every", "5",
	})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "increments: 20")
	assert.Contains(t, out.String(), "12,500,000")

	out.Reset()
	rootCmd.SetArgs([]string{"version"})
	require.NoError(t, rootCmd.Execute())
	assert.Contains(t, out.String(), "deltah "+version)
}
