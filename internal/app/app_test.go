package app

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"invsnap/internal/config"
	"invsnap/internal/encryption"
	"invsnap/internal/inv"
)

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	return config.NewConfig("test-instance", t.TempDir())
}

func newTestApp(t *testing.T, cfg *config.Config, operation string) *InvApp {
	t.Helper()
	a, err := NewInvApp(cfg, operation, Options{})
	if err != nil {
		t.Fatalf("NewInvApp() error = %v", err)
	}
	return a
}

// withApp runs fn against a fresh InvApp and closes it afterwards, the way
// each CLI command does.
func withApp(t *testing.T, cfg *config.Config, operation string, fn func(a *InvApp)) {
	t.Helper()
	a := newTestApp(t, cfg, operation)
	fn(a)
	if err := a.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
}

func wireTime(t time.Time) map[string]any {
	return map[string]any{"__type": "timestamp", "iso": t.UTC().Format(inv.ISOLayout)}
}

// writeImport writes docs as an import file and returns its path.
func writeImport(t *testing.T, docs []map[string]any) string {
	t.Helper()
	data, err := json.Marshal(docs)
	if err != nil {
		t.Fatalf("marshal import: %v", err)
	}
	path := filepath.Join(t.TempDir(), "records.json")
	if err := os.WriteFile(path, data, 0644); err != nil {
		t.Fatalf("write import: %v", err)
	}
	return path
}

func seedDocs(now time.Time) []map[string]any {
	return []map[string]any{
		{"id": "watch-1", "fields": map[string]any{
			"manufacturer": "Omega", "status": "Sold", "retailPrice": 5200,
			"supplierId": "AbCdEfGhIjKlMnOpQrSt",
			"lastUpdated": wireTime(now.AddDate(0, 0, -90)),
		}},
		{"id": "watch-2", "fields": map[string]any{
			"manufacturer": "Seiko", "status": "Available", "retailPrice": 450,
			"lastUpdated": wireTime(now.AddDate(0, 0, -5)),
		}},
		{"id": "watch-3", "fields": map[string]any{
			"manufacturer": "Rolex", "status": "Sold", "retailPrice": 9800,
			"lastUpdated": wireTime(now.AddDate(0, 0, -10)),
		}},
		{"id": "sup-1", "collection": "suppliers", "fields": map[string]any{"name": "Acme Watches Ltd"}},
	}
}

func TestNewInvApp(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(cfg *config.Config)
	}{
		{"no vaults", func(cfg *config.Config) { cfg.Vaults = nil }},
		{"unknown vault type", func(cfg *config.Config) { cfg.Vaults[0].Type = "tape" }},
		{"unknown encryption", func(cfg *config.Config) { cfg.Encryption.Type = "rot13" }},
		{"unknown store", func(cfg *config.Config) { cfg.Store.Type = "postgres" }},
		{"invalid archive policy", func(cfg *config.Config) { cfg.Archive.MaxBatchBytes = -1 }},
		{"no log dir", func(cfg *config.Config) { cfg.LogDir = "" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := newTestConfig(t)
			tt.mutate(cfg)
			if a, err := NewInvApp(cfg, "Test", Options{}); err == nil {
				a.Close()
				t.Fatal("NewInvApp() error = nil, want error")
			}
		})
	}
}

func TestInvApp_ImportExportCompare(t *testing.T) {
	cfg := newTestConfig(t)
	now := time.Now()

	withApp(t, cfg, "ImportRecords", func(a *InvApp) {
		n, err := a.ImportRecords(writeImport(t, seedDocs(now)))
		if err != nil {
			t.Fatalf("ImportRecords() error = %v", err)
		}
		if n != 4 {
			t.Errorf("ImportRecords() = %d, want 4", n)
		}
	})

	var artifact string
	withApp(t, cfg, "Export", func(a *InvApp) {
		res, err := a.Export(false)
		if err != nil {
			t.Fatalf("Export() error = %v", err)
		}
		if res.Snapshot.Metadata.DocumentCount != 3 {
			t.Errorf("DocumentCount = %d, want 3", res.Snapshot.Metadata.DocumentCount)
		}
		if res.Snapshot.Metadata.Statistics.TotalRetailValue != 15450 {
			t.Errorf("TotalRetailValue = %v, want 15450", res.Snapshot.Metadata.Statistics.TotalRetailValue)
		}
		artifact = res.ArtifactName
	})

	withApp(t, cfg, "ListArtifacts", func(a *InvApp) {
		names, err := a.ListArtifacts()
		if err != nil {
			t.Fatalf("ListArtifacts() error = %v", err)
		}
		if len(names) != 1 || names[0] != artifact {
			t.Errorf("ListArtifacts() = %v, want [%s]", names, artifact)
		}

		_, v, err := a.Verify(artifact)
		if err != nil {
			t.Fatalf("Verify() error = %v", err)
		}
		if !v.Valid || v.DocumentCount != 3 {
			t.Errorf("Verify() = %+v", v)
		}
	})

	changes := []map[string]any{
		{"id": "watch-2", "fields": map[string]any{
			"manufacturer": "Seiko", "status": "Sold", "retailPrice": 450,
			"lastUpdated": wireTime(now.AddDate(0, 0, -5)),
		}},
		{"id": "watch-4", "fields": map[string]any{"manufacturer": "Tudor", "status": "Available"}},
	}
	withApp(t, cfg, "ImportRecords", func(a *InvApp) {
		if _, err := a.ImportRecords(writeImport(t, changes)); err != nil {
			t.Fatalf("ImportRecords() error = %v", err)
		}
	})

	out := filepath.Join(t.TempDir(), "report.txt")
	withApp(t, cfg, "Compare", func(a *InvApp) {
		cmp, err := a.Compare(artifact, out)
		if err != nil {
			t.Fatalf("Compare() error = %v", err)
		}
		c := cmp.Result.Counts
		if c.Matching != 2 || c.Modified != 1 || c.Added != 1 || c.Deleted != 0 {
			t.Errorf("Counts = %+v, want 2 matching, 1 modified, 1 added", c)
		}
		if cmp.Result.Status != inv.StatusStructuralChanges {
			t.Errorf("Status = %s, want %s", cmp.Result.Status, inv.StatusStructuralChanges)
		}
		for _, want := range []string{"status: Available -> Sold", "- watch-4 (Tudor, Available)"} {
			if !strings.Contains(cmp.Report, want) {
				t.Errorf("report missing %q\n%s", want, cmp.Report)
			}
		}
	})

	written, err := os.ReadFile(out)
	if err != nil {
		t.Fatalf("reading report file: %v", err)
	}
	if !strings.Contains(string(written), "Inventory Reconciliation Report") {
		t.Errorf("report file = %q", written)
	}

	withApp(t, cfg, "History", func(a *InvApp) {
		ops, err := a.History(10)
		if err != nil {
			t.Fatalf("History() error = %v", err)
		}
		var names []string
		for _, op := range ops {
			names = append(names, op.Operation+":"+op.Status)
		}
		want := "ImportRecords:success Export:success ImportRecords:success"
		if got := strings.Join(names, " "); got != want {
			t.Errorf("History() = %q, want %q", got, want)
		}
	})
}

func TestInvApp_ExportStatsOnlyIsNotRecorded(t *testing.T) {
	cfg := newTestConfig(t)

	withApp(t, cfg, "Export", func(a *InvApp) {
		res, err := a.Export(true)
		if err != nil {
			t.Fatalf("Export(true) error = %v", err)
		}
		if res.ArtifactName != "" {
			t.Errorf("ArtifactName = %q, want empty", res.ArtifactName)
		}
		ops, _ := a.History(10)
		if len(ops) != 0 {
			t.Errorf("stats-only export recorded %d operations", len(ops))
		}
	})
}

func TestInvApp_ImportRejectsBadFiles(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not json", "{nope"},
		{"object instead of array", `{"id":"a"}`},
		{"missing id", `[{"fields":{"status":"Sold"}}]`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := newTestConfig(t)
			path := filepath.Join(t.TempDir(), "bad.json")
			os.WriteFile(path, []byte(tt.content), 0644)

			withApp(t, cfg, "ImportRecords", func(a *InvApp) {
				if _, err := a.ImportRecords(path); err == nil {
					t.Fatal("ImportRecords() error = nil, want error")
				}
				ops, _ := a.History(10)
				if len(ops) != 0 {
					t.Errorf("rejected import recorded %d operations", len(ops))
				}
			})
		})
	}
}

func TestInvApp_Archive(t *testing.T) {
	cfg := newTestConfig(t)
	now := time.Now()

	withApp(t, cfg, "ImportRecords", func(a *InvApp) {
		if _, err := a.ImportRecords(writeImport(t, seedDocs(now))); err != nil {
			t.Fatalf("ImportRecords() error = %v", err)
		}
	})

	var token string
	withApp(t, cfg, "ArchivePreview", func(a *InvApp) {
		c, err := a.Eligibility()
		if err != nil {
			t.Fatalf("Eligibility() error = %v", err)
		}
		if len(c.Eligible) != 1 || c.Eligible[0].Record.ID != "watch-1" {
			t.Errorf("Eligible = %v, want [watch-1]", c.Eligible)
		}

		if _, err := a.ArchivePreview([]string{"watch-3"}); !errors.Is(err, inv.ErrValidationFailed) {
			t.Errorf("ArchivePreview(watch-3) error = %v, want ErrValidationFailed", err)
		}

		plan, err := a.ArchivePreview(nil)
		if err != nil {
			t.Fatalf("ArchivePreview() error = %v", err)
		}
		if plan.Preview.RecordCount != 1 || plan.Token == "" {
			t.Errorf("plan = %+v", plan)
		}
		token = plan.Token
	})

	withApp(t, cfg, "ArchiveCommit", func(a *InvApp) {
		if _, err := a.ArchiveCommit([]string{"watch-1"}, "deadbeef"); !errors.Is(err, inv.ErrConfirmationMismatch) {
			t.Errorf("ArchiveCommit(bad token) error = %v, want ErrConfirmationMismatch", err)
		}
		moved, err := a.ArchiveCommit([]string{"watch-1"}, token)
		if err != nil {
			t.Fatalf("ArchiveCommit() error = %v", err)
		}
		if moved != 1 {
			t.Errorf("moved = %d, want 1", moved)
		}

		live, _ := a.store.Count(cfg.Inventory.Collection)
		archived, _ := a.store.Count(cfg.Archive.Collection)
		if live != 2 || archived != 1 {
			t.Errorf("live = %d, archived = %d; want 2 and 1", live, archived)
		}
	})
}

func TestInvApp_EncryptedArtifacts(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Encryption.Type = "test"

	var artifact string
	withApp(t, cfg, "Export", func(a *InvApp) {
		res, err := a.Export(false)
		if err != nil {
			t.Fatalf("Export() error = %v", err)
		}
		artifact = res.ArtifactName
	})
	if !strings.HasSuffix(artifact, inv.EncryptedSuffix) {
		t.Fatalf("artifact %q is not sealed", artifact)
	}

	t.Run("no passphrase source", func(t *testing.T) {
		withApp(t, cfg, "Verify", func(a *InvApp) {
			if _, _, err := a.Verify(artifact); err == nil {
				t.Error("Verify() error = nil, want error")
			}
		})
	})

	t.Run("wrong passphrase", func(t *testing.T) {
		withApp(t, cfg, "Verify", func(a *InvApp) {
			a.Passphrase = func() (string, error) { return "wrong", nil }
			if _, _, err := a.Verify(artifact); !errors.Is(err, encryption.ErrWrongPassphrase) {
				t.Errorf("Verify() error = %v, want ErrWrongPassphrase", err)
			}
		})
	})

	t.Run("unlocked", func(t *testing.T) {
		withApp(t, cfg, "Verify", func(a *InvApp) {
			a.Passphrase = func() (string, error) { return "secret", nil }
			if _, v, err := a.Verify(artifact); err != nil || !v.Valid {
				t.Errorf("Verify() = %+v, %v", v, err)
			}
		})
	})
}

func TestInvApp_AgeKeysRequiredBeforeExport(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Encryption.Type = "age"

	withApp(t, cfg, "Export", func(a *InvApp) {
		if _, err := a.Export(false); !errors.Is(err, ErrKeysNotSetUp) {
			t.Fatalf("Export() error = %v, want ErrKeysNotSetUp", err)
		}
		if err := a.SetupEncryption("correct horse"); err != nil {
			t.Fatalf("SetupEncryption() error = %v", err)
		}
		res, err := a.Export(false)
		if err != nil {
			t.Fatalf("Export() after setup error = %v", err)
		}

		a.Passphrase = func() (string, error) { return "correct horse", nil }
		if _, _, err := a.Verify(res.ArtifactName); err != nil {
			t.Errorf("Verify() error = %v", err)
		}
	})
}

func TestInvApp_SetupEncryptionDisabled(t *testing.T) {
	cfg := newTestConfig(t)
	withApp(t, cfg, "SetupEncryption", func(a *InvApp) {
		if err := a.SetupEncryption("pw"); err == nil {
			t.Error("SetupEncryption() error = nil with encryption disabled")
		}
		if err := a.ValidateVault(); err != nil {
			t.Errorf("ValidateVault() error = %v", err)
		}
	})
}
