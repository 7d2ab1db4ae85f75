package ledger

import "testing"

func TestParseHbarToTinybar(t *testing.T) {
	cases := []struct {
		input string
		want  int64
		ok    bool
	}{
		{"50", 5_000_000_000, true},
		{"1", 100_000_000, true},
		{"0.00000001", 1, true},
		{"0.5", 50_000_000, true},
		{"123.456", 12_345_600_000, true},
		{"0.123456789", 0, false}, // finer than tinybar
		{"0", 0, false},
		{"-1", 0, false},
		{"+1", 0, false},
		{"abc", 0, false},
		{"", 0, false},
		{"1e3", 0, false},
	}

	for _, tc := range cases {
		got, err := ParseHbarToTinybar(tc.input)
		if tc.ok && err != nil {
			t.Errorf("ParseHbarToTinybar(%q) unexpected error: %v", tc.input, err)
			continue
		}
		if !tc.ok {
			if err == nil {
				t.Errorf("ParseHbarToTinybar(%q) expected error, got %d", tc.input, got)
			}
			continue
		}
		if got != tc.want {
			t.Errorf("ParseHbarToTinybar(%q) = %d, want %d", tc.input, got, tc.want)
		}
	}
}

func TestParseAmountTokenDecimals(t *testing.T) {
	got, err := ParseAmount("100", 6)
	if err != nil || got != 100_000_000 {
		t.Fatalf("ParseAmount(100, 6) = %d, %v", got, err)
	}
	got, err = ParseAmount("0.000001", 6)
	if err != nil || got != 1 {
		t.Fatalf("ParseAmount(0.000001, 6) = %d, %v", got, err)
	}
	if _, err := ParseAmount("0.0000001", 6); err == nil {
		t.Fatalf("fraction finer than the smallest unit must be rejected")
	}
}

func TestFormatTinybar(t *testing.T) {
	cases := []struct {
		input int64
		want  string
	}{
		{5_000_000_000, "50 ℏ"},
		{150_000_000, "1.5 ℏ"},
		{1, "0.00000001 ℏ"},
		{-100_000_000, "-1 ℏ"},
	}
	for _, tc := range cases {
		if got := FormatTinybar(tc.input); got != tc.want {
			t.Errorf("FormatTinybar(%d) = %q, want %q", tc.input, got, tc.want)
		}
	}
}

func TestParseNetwork(t *testing.T) {
	for _, name := range []string{"mainnet", "Testnet", " previewnet "} {
		if _, err := ParseNetwork(name); err != nil {
			t.Errorf("ParseNetwork(%q) unexpected error: %v", name, err)
		}
	}
	if _, err := ParseNetwork("devnet"); err == nil {
		t.Fatalf("unrecognized network must fail fast")
	}
	if _, err := ParseNetwork(""); err == nil {
		t.Fatalf("empty network must fail fast")
	}
}

func TestTransactionSpecValidate(t *testing.T) {
	valid := TransactionSpec{
		Kind:         KindHbarTransfer,
		Operator:     "0.0.2",
		Counterparty: "0.0.1234",
		Amount:       5_000_000_000,
	}
	if err := valid.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	invalid := []TransactionSpec{
		{Kind: KindHbarTransfer, Counterparty: "0.0.1234", Amount: 0},
		{Kind: KindHbarTransfer, Amount: 1},
		{Kind: KindTokenTransfer, Counterparty: "0.0.1234", Amount: 1},
		{Kind: KindTopicSubmit, TopicID: "0.0.7890"},
		{Kind: KindSwap, TokenID: "0.0.1", Amount: 1},
		{Kind: "teleport"},
	}
	for _, spec := range invalid {
		if err := spec.Validate(); err == nil {
			t.Errorf("expected validation error for %+v", spec)
		}
	}
}
