package musubi

import (
	"os"
	"os/exec"
	"path/filepath"
	"testing"
)

// TestGeneratedPrograms generates the container of every program under testdata and
// examples, runs the program and compares its output with expected.txt.
func TestGeneratedPrograms(t *testing.T) {
	if testing.Short() {
		t.Skip("building programs is slow")
	}
	goBin, err := exec.LookPath("go")
	if err != nil {
		t.Skip("go command not available")
	}

	for _, root := range []string{"testdata", filepath.Join("..", "..", "examples")} {
		entries, err := os.ReadDir(root)
		if err != nil {
			t.Fatalf("failed to read %s: %v", root, err)
		}

		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}

			dir := filepath.Join(root, entry.Name())
			t.Run(filepath.ToSlash(dir), func(t *testing.T) {
				// Generated files are written next to the sources, so cases run one at a time.
				runProgram(t, goBin, dir)
			})
		}
	}
}

func runProgram(t *testing.T, goBin, dir string) {
	t.Helper()

	bundle := filepath.Join(dir, "container.yaml")
	if _, err := os.Stat(bundle); os.IsNotExist(err) {
		t.Fatalf("%s: missing container.yaml", dir)
	}

	generated := filepath.Join(dir, "container_musubi.go")
	if _, err := os.Stat(generated); os.IsNotExist(err) {
		defer func() {
			_ = os.Remove(generated)
		}()
	}

	if err := NewProcessor(WithMetadataDir(t.TempDir())).ProcessFiles(t.Context(), []string{bundle}); err != nil {
		t.Fatalf("%s: generation failed: %v", dir, err)
	}

	cmd := exec.CommandContext(t.Context(), goBin, "run", ".")
	cmd.Dir = dir
	out, err := cmd.CombinedOutput()
	if err != nil {
		src, _ := os.ReadFile(generated)
		t.Fatalf("%s: program failed: %v\n%s\n--- generated ---\n%s", dir, err, out, src)
	}

	expected, err := os.ReadFile(filepath.Join(dir, "expected.txt"))
	if err != nil {
		t.Fatalf("%s: missing expected.txt", dir)
	}
	if string(out) != string(expected) {
		t.Errorf("%s: output mismatch:\n--- expected ---\n%s\n--- got ---\n%s", dir, expected, out)
	}
}
