package executor

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/ethpandaops/gatewaybench/pkg/discovery"
	"github.com/fatih/color"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSpawner struct {
	exitCodes map[string]int
	launchErr map[string]error
	spawned   []string
}

func (f *fakeSpawner) Spawn(_ context.Context, unit discovery.TestUnit, out io.Writer) (int, error) {
	f.spawned = append(f.spawned, unit.Name)

	if err, ok := f.launchErr[unit.Name]; ok {
		return 0, err
	}

	_, _ = fmt.Fprintf(out, "output of %s\n", unit.Name)

	return f.exitCodes[unit.Name], nil
}

func testLogger() logrus.FieldLogger {
	log := logrus.New()
	log.SetOutput(io.Discard)

	return log
}

func makeUnits(names ...string) []discovery.TestUnit {
	units := make([]discovery.TestUnit, 0, len(names))
	for _, n := range names {
		units = append(units, discovery.TestUnit{Name: n, Path: "/tests/" + n + ".py"})
	}

	return units
}

func startExecutor(t *testing.T, cfg *Config, spawner Spawner) Executor {
	t.Helper()

	exec := NewExecutor(testLogger(), cfg, spawner)
	require.NoError(t, exec.Start(context.Background()))

	t.Cleanup(func() { _ = exec.Stop() })

	return exec
}

func TestExecutor_Run(t *testing.T) {
	tests := []struct {
		name          string
		exitCodes     []int
		stopOnFailure bool
		expectedCodes []int
	}{
		{
			name:          "all pass",
			exitCodes:     []int{0, 0, 0},
			expectedCodes: []int{0, 0, 0},
		},
		{
			name:          "failure codes carried through",
			exitCodes:     []int{0, 2, 0, 137},
			expectedCodes: []int{0, 2, 0, 137},
		},
		{
			name:          "stop on failure halts after first failure",
			exitCodes:     []int{0, 0, 5, 0},
			stopOnFailure: true,
			expectedCodes: []int{0, 0, 5},
		},
		{
			name:          "stop on failure with no failure runs everything",
			exitCodes:     []int{0, 0},
			stopOnFailure: true,
			expectedCodes: []int{0, 0},
		},
		{
			name:          "no units",
			exitCodes:     []int{},
			expectedCodes: []int{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			logDir := t.TempDir()

			names := make([]string, 0, len(tt.exitCodes))
			spawner := &fakeSpawner{exitCodes: map[string]int{}}

			for i, code := range tt.exitCodes {
				name := fmt.Sprintf("test_unit_%d", i+1)
				names = append(names, name)
				spawner.exitCodes[name] = code
			}

			exec := startExecutor(t, &Config{LogDir: logDir, StopOnFailure: tt.stopOnFailure}, spawner)

			results, err := exec.Run(context.Background(), makeUnits(names...))
			require.NoError(t, err)
			require.Len(t, results, len(tt.expectedCodes))

			for i, r := range results {
				assert.Equal(t, names[i], r.Name)
				assert.Equal(t, tt.expectedCodes[i], r.ExitCode)
				assert.True(t, filepath.IsAbs(r.LogPath))
				assert.FileExists(t, r.LogPath)
			}

			// Units after the stop point never get a log file.
			for _, name := range names[len(results):] {
				assert.NoFileExists(t, filepath.Join(logDir, LogFileName(name)))
			}

			require.Len(t, spawner.spawned, len(results))

			for i, name := range spawner.spawned {
				assert.Equal(t, names[i], name)
			}
		})
	}
}

func TestExecutor_LaunchFailure(t *testing.T) {
	logDir := t.TempDir()
	spawner := &fakeSpawner{
		exitCodes: map[string]int{"test_after": 0},
		launchErr: map[string]error{"test_missing": errors.New("exec: \"python3\": executable file not found")},
	}

	exec := startExecutor(t, &Config{LogDir: logDir}, spawner)

	results, err := exec.Run(context.Background(), makeUnits("test_missing", "test_after"))
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, 1, results[0].ExitCode)
	assert.Equal(t, 0, results[1].ExitCode)

	data, err := os.ReadFile(results[0].LogPath)
	require.NoError(t, err)
	assert.Contains(t, string(data), "executable file not found")
}

func TestExecutor_LogTruncated(t *testing.T) {
	logDir := t.TempDir()
	logPath := filepath.Join(logDir, "test_orders.log")
	require.NoError(t, os.WriteFile(logPath, []byte(strings.Repeat("stale\n", 100)), 0o644))

	exec := startExecutor(t, &Config{LogDir: logDir}, &fakeSpawner{})

	_, err := exec.Run(context.Background(), makeUnits("test_orders"))
	require.NoError(t, err)

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	assert.Equal(t, "output of test_orders\n", string(data))
}

func TestExecutor_CreatesLogDir(t *testing.T) {
	logDir := filepath.Join(t.TempDir(), "nested", "test_logs")

	exec := startExecutor(t, &Config{LogDir: logDir}, &fakeSpawner{})

	results, err := exec.Run(context.Background(), makeUnits("test_auth"))
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, filepath.Join(logDir, "test_auth.log"), results[0].LogPath)
}

func TestExecutor_DistinctLogsForSimilarNames(t *testing.T) {
	logDir := t.TempDir()

	exec := startExecutor(t, &Config{LogDir: logDir}, &fakeSpawner{})

	results, err := exec.Run(context.Background(), makeUnits("a/b", "a__b"))
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.NotEqual(t, results[0].LogPath, results[1].LogPath)

	for _, r := range results {
		data, err := os.ReadFile(r.LogPath)
		require.NoError(t, err)
		assert.Equal(t, "output of "+r.Name+"\n", string(data))
	}
}

func TestExecutor_ContextCancelled(t *testing.T) {
	spawner := &fakeSpawner{}
	exec := startExecutor(t, &Config{LogDir: t.TempDir()}, spawner)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	results, err := exec.Run(ctx, makeUnits("test_a", "test_b"))
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Empty(t, spawner.spawned)
}

func TestExecutor_RunBeforeStart(t *testing.T) {
	exec := NewExecutor(testLogger(), &Config{LogDir: t.TempDir()}, &fakeSpawner{})

	_, err := exec.Run(context.Background(), makeUnits("test_a"))
	require.Error(t, err)
}

func TestExecutor_ConsoleOutput(t *testing.T) {
	color.NoColor = true

	var console strings.Builder

	spawner := &fakeSpawner{exitCodes: map[string]int{"test_b": 3}}
	exec := startExecutor(t, &Config{LogDir: t.TempDir(), Console: &console}, spawner)

	results, err := exec.Run(context.Background(), makeUnits("test_a", "test_b"))
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(console.String()), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t, "PASS test_a", lines[0])
	assert.Equal(t, fmt.Sprintf("FAIL test_b (exit 3) log: %s", results[1].LogPath), lines[1])
}

func TestLogFileName(t *testing.T) {
	tests := []struct {
		name     string
		expected string
	}{
		{name: "test_orders", expected: "test_orders.log"},
		{name: "graphql/test_gateway", expected: "graphql%2Ftest_gateway.log"},
		{name: "a/b/test_c", expected: "a%2Fb%2Ftest_c.log"},
		{name: "a__b", expected: "a__b.log"},
		{name: "a%2Fb", expected: "a%252Fb.log"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, LogFileName(tt.name))
		})
	}
}
