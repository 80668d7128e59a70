package handler

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
)

// secretSource supplies the per-tenant QR nonce
type secretSource interface {
	TenantSecret(ctx context.Context, tenantID uint) (string, error)
}

// qrKeySource derives each tenant's QR signing key from the service
// secret and the tenant's own nonce. A token signed for one tenant can
// never verify under another tenant's key, and rotating the tenant
// nonce invalidates all of that tenant's outstanding tokens at once.
type qrKeySource struct {
	secrets       secretSource
	serviceSecret []byte
}

func newQRKeySource(secrets secretSource, serviceSecret string) *qrKeySource {
	return &qrKeySource{secrets: secrets, serviceSecret: []byte(serviceSecret)}
}

// SigningKey implements visitor.KeySource
func (k *qrKeySource) SigningKey(ctx context.Context, tenantID uint) ([]byte, error) {
	nonce, err := k.secrets.TenantSecret(ctx, tenantID)
	if err != nil {
		return nil, err
	}
	mac := hmac.New(sha256.New, k.serviceSecret)
	mac.Write([]byte(nonce))
	return mac.Sum(nil), nil
}
