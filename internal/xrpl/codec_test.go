package xrpl

import (
	"encoding/binary"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPayment() *Payment {
	return &Payment{
		Account:     genesisAddress,
		Destination: genesisAddress,
		Amount:      "30000000",
		Fee:         "100000",
		Sequence:    7,
		Memos: []Memo{{
			MemoType: "48617368", // "Hash"
			MemoData: "A5C3E1B2D4F60718293A4B5C6D7E8F90112233445566778899AABBCCDDEEFF00",
		}},
	}
}

func TestSerializePayment_fieldOrder(t *testing.T) {
	pubKey := make([]byte, 33)
	out, err := serializePayment(testPayment(), pubKey, nil)
	require.NoError(t, err)

	// TransactionType (Payment = 0) leads in canonical order.
	require.Greater(t, len(out), 3)
	assert.Equal(t, byte(fhTransactionType), out[0])
	assert.Equal(t, uint16(0), binary.BigEndian.Uint16(out[1:3]))

	// Sequence follows.
	assert.Equal(t, byte(fhSequence), out[3])
	assert.Equal(t, uint32(7), binary.BigEndian.Uint32(out[4:8]))

	// Amount carries the native bit over the drop count.
	assert.Equal(t, byte(fhAmount), out[8])
	amount := binary.BigEndian.Uint64(out[9:17])
	assert.Equal(t, nativeAmountBit|30000000, amount)

	// Memos trailer closes both nesting levels.
	assert.Equal(t, byte(fhArrayEnd), out[len(out)-1])
	assert.Equal(t, byte(fhObjectEnd), out[len(out)-2])
}

func TestSerializePayment_deterministic(t *testing.T) {
	pubKey := make([]byte, 33)
	a, err := serializePayment(testPayment(), pubKey, nil)
	require.NoError(t, err)
	b, err := serializePayment(testPayment(), pubKey, nil)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestSerializePayment_signatureChangesForm(t *testing.T) {
	pubKey := make([]byte, 33)
	sig := make([]byte, 64)

	unsigned, err := serializePayment(testPayment(), pubKey, nil)
	require.NoError(t, err)
	signed, err := serializePayment(testPayment(), pubKey, sig)
	require.NoError(t, err)

	// The signed form embeds TxnSignature; signing-data form must not.
	assert.Equal(t, len(unsigned)+1+1+len(sig), len(signed))
}

func TestSerializePayment_rejectsBadInputs(t *testing.T) {
	pubKey := make([]byte, 33)

	p := testPayment()
	p.Amount = "not-a-number"
	_, err := serializePayment(p, pubKey, nil)
	assert.Error(t, err)

	p = testPayment()
	p.Account = "not-an-address"
	_, err = serializePayment(p, pubKey, nil)
	assert.Error(t, err)

	p = testPayment()
	p.Memos[0].MemoData = "zz-not-hex"
	_, err = serializePayment(p, pubKey, nil)
	assert.Error(t, err)
}
