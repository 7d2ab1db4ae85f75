package intent

import (
	"os"
	"path/filepath"
	"testing"
)

func testDirectory() *Directory {
	return NewDirectory(
		map[string]ContactEntry{
			"Alex": {AccountID: "0.0.1234"},
			"bob":  {AccountID: "0.0.2345"},
		},
		map[string]TokenEntry{
			"USDC": {TokenID: "0.0.456858", Decimals: 6},
			"sauce": {TokenID: "0.0.731861", Decimals: 6},
		},
	)
}

func TestDirectoryResolveAccount(t *testing.T) {
	dir := testDirectory()

	if id, ok := dir.ResolveAccount("0.0.99"); !ok || id != "0.0.99" {
		t.Fatalf("literal account id should resolve to itself, got %q %v", id, ok)
	}
	if id, ok := dir.ResolveAccount("alex"); !ok || id != "0.0.1234" {
		t.Fatalf("contact lookup failed: %q %v", id, ok)
	}
	if _, ok := dir.ResolveAccount("charlie"); ok {
		t.Fatalf("unknown contact must not resolve")
	}
}

func TestDirectoryResolveToken(t *testing.T) {
	dir := testDirectory()

	if id, ok := dir.ResolveToken("usdc"); !ok || id != "0.0.456858" {
		t.Fatalf("token symbol lookup failed: %q %v", id, ok)
	}
	if id, ok := dir.ResolveToken("SAUCE"); !ok || id != "0.0.731861" {
		t.Fatalf("token symbols must be case-insensitive: %q %v", id, ok)
	}
	if decimals, ok := dir.TokenDecimals("USDC"); !ok || decimals != 6 {
		t.Fatalf("unexpected decimals: %d %v", decimals, ok)
	}
}

func TestDirectoryChoicesGrouping(t *testing.T) {
	dir := testDirectory()

	contacts := dir.ContactChoices()
	if len(contacts) != 2 {
		t.Fatalf("expected 2 contact choices, got %d", len(contacts))
	}
	for _, choice := range contacts {
		if choice.Category != "personal contacts" {
			t.Fatalf("unexpected category: %+v", choice)
		}
	}

	tokens := dir.TokenChoices()
	if len(tokens) != 2 {
		t.Fatalf("expected 2 token choices, got %d", len(tokens))
	}
	for _, choice := range tokens {
		if choice.Category != "tokens" {
			t.Fatalf("unexpected category: %+v", choice)
		}
	}
}

func TestLoadDirectoryFromFile(t *testing.T) {
	content := `
contacts:
  Alex:
    account_id: "0.0.1234"
tokens:
  USDC:
    token_id: "0.0.456858"
    decimals: 6
`
	path := filepath.Join(t.TempDir(), "directory.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write directory file: %v", err)
	}

	dir, err := LoadDirectory(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id, ok := dir.ResolveAccount("Alex"); !ok || id != "0.0.1234" {
		t.Fatalf("contact not loaded: %q %v", id, ok)
	}

	empty, err := LoadDirectory("")
	if err != nil {
		t.Fatalf("empty path must yield empty directory: %v", err)
	}
	if _, ok := empty.ResolveAccount("Alex"); ok {
		t.Fatalf("empty directory must not resolve contacts")
	}
}
