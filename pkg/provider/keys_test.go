package provider

import (
	"strings"
	"testing"

	"golang.org/x/crypto/ssh"
)

func TestGenerateAccessKey(t *testing.T) {
	key, err := GenerateAccessKey("res-1")
	if err != nil {
		t.Fatalf("GenerateAccessKey() error = %v", err)
	}

	pub, comment, _, _, err := ssh.ParseAuthorizedKey([]byte(key.PublicKey))
	if err != nil {
		t.Fatalf("ParseAuthorizedKey: %v", err)
	}
	if comment != "res-1" {
		t.Errorf("comment = %q, want res-1", comment)
	}
	if pub.Type() != ssh.KeyAlgoED25519 {
		t.Errorf("key type = %q", pub.Type())
	}

	if !strings.Contains(key.PrivateKey, "OPENSSH PRIVATE KEY") {
		t.Errorf("PrivateKey is not an OpenSSH PEM block")
	}
	signer, err := ssh.ParsePrivateKey([]byte(key.PrivateKey))
	if err != nil {
		t.Fatalf("ParsePrivateKey: %v", err)
	}
	if string(signer.PublicKey().Marshal()) != string(pub.Marshal()) {
		t.Error("private key does not match public key")
	}
}

func TestGenerateAccessKeyUnique(t *testing.T) {
	a, err := GenerateAccessKey("")
	if err != nil {
		t.Fatal(err)
	}
	b, err := GenerateAccessKey("")
	if err != nil {
		t.Fatal(err)
	}
	if a.PublicKey == b.PublicKey {
		t.Error("two calls returned the same key")
	}
	if strings.Count(a.PublicKey, " ") != 1 {
		t.Errorf("PublicKey without comment = %q", a.PublicKey)
	}
}
