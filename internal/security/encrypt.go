package security

import (
	"errors"
	"strings"

	"github.com/fernet/fernet-go"
)

// Encryptor seals message bodies at rest with Fernet. The primary key
// encrypts; the primary and any legacy keys are tried on decrypt so keys can
// be rotated without rewriting stored rows.
type Encryptor struct {
	primary *fernet.Key
	keys    []*fernet.Key
}

func NewEncryptor(key string, legacyKeys []string) (*Encryptor, error) {
	primary := parseFernetKey(key)
	if primary == nil {
		return nil, errors.New("encryption key must be a base64-encoded 32-byte fernet key")
	}
	keys := make([]*fernet.Key, 0, len(legacyKeys)+1)
	keys = append(keys, primary)
	for _, rawKey := range legacyKeys {
		if fk := parseFernetKey(rawKey); fk != nil {
			keys = append(keys, fk)
		}
	}
	return &Encryptor{primary: primary, keys: keys}, nil
}

func parseFernetKey(raw string) *fernet.Key {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil
	}

	key, err := fernet.DecodeKey(trimmed)
	if err != nil {
		return nil
	}
	return key
}

func (e *Encryptor) Encrypt(plain string) (string, error) {
	tok, err := fernet.EncryptAndSign([]byte(plain), e.primary)
	if err != nil {
		return "", err
	}
	return string(tok), nil
}

func (e *Encryptor) Decrypt(enc string) (string, error) {
	// A negative ttl skips the age check: stored bodies never expire.
	if plain := fernet.VerifyAndDecrypt([]byte(enc), -1, e.keys); plain != nil {
		return string(plain), nil
	}
	return "", errors.New("failed to decrypt message payload")
}
