package provider

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/pem"
	"fmt"
	"strings"

	"golang.org/x/crypto/ssh"
)

// AccessKey is the key pair handed to the sandbox for reaching its nodes.
type AccessKey struct {
	ActionID   string `json:"action_id" yaml:"action_id"`
	PublicKey  string `json:"public_key" yaml:"public_key"`
	PrivateKey string `json:"private_key" yaml:"private_key"`
}

// GenerateAccessKey creates an ed25519 key pair. The public key is in
// authorized_keys format and the private key is an OpenSSH PEM block.
func GenerateAccessKey(comment string) (*AccessKey, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("provider: generate key: %w", err)
	}
	sshPub, err := ssh.NewPublicKey(pub)
	if err != nil {
		return nil, fmt.Errorf("provider: encode public key: %w", err)
	}
	block, err := ssh.MarshalPrivateKey(priv, comment)
	if err != nil {
		return nil, fmt.Errorf("provider: encode private key: %w", err)
	}

	authorized := strings.TrimSpace(string(ssh.MarshalAuthorizedKey(sshPub)))
	if comment != "" {
		authorized += " " + comment
	}
	return &AccessKey{
		PublicKey:  authorized,
		PrivateKey: string(pem.EncodeToMemory(block)),
	}, nil
}
