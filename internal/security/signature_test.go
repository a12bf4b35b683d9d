package security

import (
	"strings"
	"testing"
)

func TestIsWalletAddress(t *testing.T) {
	testCases := []struct {
		addr string
		want bool
	}{
		{"0x" + strings.Repeat("ab", 20), true},
		{"0x" + strings.Repeat("AB", 20), true},
		{strings.Repeat("ab", 20), false},
		{"0x" + strings.Repeat("ab", 19), false},
		{"0x" + strings.Repeat("ab", 21), false},
		{"0x" + strings.Repeat("zz", 20), false},
		{"", false},
	}
	for _, tc := range testCases {
		if got := IsWalletAddress(tc.addr); got != tc.want {
			t.Errorf("IsWalletAddress(%q) = %v, want %v", tc.addr, got, tc.want)
		}
	}
}

func TestRecoverSigner_RoundTrip(t *testing.T) {
	priv, wallet, err := NewTestWallet()
	if err != nil {
		t.Fatalf("NewTestWallet: %v", err)
	}
	message := "ChainAudit:login:5f9f1b9e"
	sig := SignTestMessage(priv, message)

	recovered, err := RecoverSigner(message, sig)
	if err != nil {
		t.Fatalf("RecoverSigner: %v", err)
	}
	if !strings.EqualFold(recovered, wallet) {
		t.Errorf("recovered %s, want %s", recovered, wallet)
	}
}

func TestRecoverSigner_ZeroBasedRecoveryID(t *testing.T) {
	// Some wallets emit v in {0,1} instead of {27,28}.
	priv, wallet, err := NewTestWallet()
	if err != nil {
		t.Fatalf("NewTestWallet: %v", err)
	}
	message := "ChainAudit:login:nonce"
	sig := SignTestMessage(priv, message)

	raw := []byte(sig[2:])
	// Rewrite the trailing v byte from 1b/1c hex to 00/01.
	switch string(raw[len(raw)-2:]) {
	case "1b":
		raw[len(raw)-2], raw[len(raw)-1] = '0', '0'
	case "1c":
		raw[len(raw)-2], raw[len(raw)-1] = '0', '1'
	default:
		t.Fatalf("unexpected v byte in %s", sig)
	}
	recovered, err := RecoverSigner(message, "0x"+string(raw))
	if err != nil {
		t.Fatalf("RecoverSigner with v in {0,1}: %v", err)
	}
	if !strings.EqualFold(recovered, wallet) {
		t.Errorf("recovered %s, want %s", recovered, wallet)
	}
}

func TestRecoverSigner_InvalidEncoding(t *testing.T) {
	testCases := []struct {
		name string
		sig  string
	}{
		{"not hex", "0xzz"},
		{"too short", "0x" + strings.Repeat("ab", 64)},
		{"too long", "0x" + strings.Repeat("ab", 66)},
		{"bad recovery id", "0x" + strings.Repeat("ab", 64) + "05"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := RecoverSigner("msg", tc.sig); err == nil {
				t.Errorf("RecoverSigner(%q) should fail", tc.sig)
			}
		})
	}
}

func TestVerifyWalletSignature(t *testing.T) {
	priv, wallet, err := NewTestWallet()
	if err != nil {
		t.Fatalf("NewTestWallet: %v", err)
	}
	message := "ChainAudit:validate_record:abc"
	sig := SignTestMessage(priv, message)

	if !VerifyWalletSignature(wallet, message, sig) {
		t.Error("valid signature rejected")
	}
	if !VerifyWalletSignature("0x"+strings.ToUpper(wallet[2:]), message, sig) {
		t.Error("wallet comparison should be case-insensitive")
	}
	if VerifyWalletSignature(wallet, "ChainAudit:validate_record:other", sig) {
		t.Error("signature over a different message accepted")
	}
	if VerifyWalletSignature(wallet, message, "garbage") {
		t.Error("malformed signature accepted")
	}

	_, otherWallet, err := NewTestWallet()
	if err != nil {
		t.Fatalf("NewTestWallet: %v", err)
	}
	if VerifyWalletSignature(otherWallet, message, sig) {
		t.Error("signature attributed to the wrong wallet")
	}
}
