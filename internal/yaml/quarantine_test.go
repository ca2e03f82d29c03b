package yaml

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRecoverCorruptedFile_FromBackup(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ops.yaml")

	if err := os.WriteFile(path+".bak", []byte("schema_version: 1\nfile_type: state_ops\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("{{{ not yaml"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := RecoverCorruptedFile(dir, path, FileTypeStateOps); err != nil {
		t.Fatalf("RecoverCorruptedFile: %v", err)
	}

	// Corrupted original must be quarantined.
	entries, err := os.ReadDir(filepath.Join(dir, "quarantine"))
	if err != nil {
		t.Fatalf("read quarantine dir: %v", err)
	}
	if len(entries) != 1 || !strings.HasSuffix(entries[0].Name(), ".corrupt") {
		t.Errorf("quarantine contents = %v", entries)
	}

	restored, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read restored: %v", err)
	}
	if !strings.Contains(string(restored), "state_ops") {
		t.Errorf("restored = %q", restored)
	}
}

func TestRecoverCorruptedFile_SkeletonFallback(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ops.yaml")

	// No backup exists; recovery should synthesize a skeleton.
	if err := os.WriteFile(path, []byte(": : :"), 0644); err != nil {
		t.Fatal(err)
	}

	if err := RecoverCorruptedFile(dir, path, FileTypeStateOps); err != nil {
		t.Fatalf("RecoverCorruptedFile: %v", err)
	}

	if err := ValidateSchemaHeader(path, FileTypeStateOps); err != nil {
		t.Errorf("skeleton invalid: %v", err)
	}
}
