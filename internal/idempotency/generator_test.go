package idempotency

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestGenerateKey(t *testing.T) {
	g := NewGenerator()
	params := map[string]interface{}{"invoice_id": "inv_1", "total": int64(2566)}

	key := g.GenerateKey(ScopePaymentCapture, params)
	assert.True(t, strings.HasPrefix(key, "payment_capture-"))
	assert.Equal(t, key, g.GenerateKey(ScopePaymentCapture, map[string]interface{}{"total": int64(2566), "invoice_id": "inv_1"}))
	assert.True(t, g.ValidateKey(ScopePaymentCapture, params, key))

	assert.NotEqual(t, key, g.GenerateKey(ScopeRefund, params))
	assert.NotEqual(t, key, g.GenerateKey(ScopePaymentCapture, map[string]interface{}{"invoice_id": "inv_1", "total": int64(2567)}))
}
