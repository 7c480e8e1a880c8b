package xrpl

import (
	"bytes"
	"encoding/binary"
	"encoding/hex"
	"fmt"
	"strconv"
)

// Minimal canonical binary serialization of anchor payments. Only the
// fields an anchor payment carries are supported; this is deliberately not
// a general transaction codec. Field headers are (type, field) pairs in
// canonical sort order per the XRPL serialization format.
const (
	fhTransactionType = 0x12 // UInt16 2
	fhSequence        = 0x24 // UInt32 4
	fhAmount          = 0x61 // Amount 1
	fhFee             = 0x68 // Amount 8
	fhSigningPubKey   = 0x73 // Blob 3
	fhTxnSignature    = 0x74 // Blob 4
	fhAccount         = 0x81 // AccountID 1
	fhDestination     = 0x83 // AccountID 3
	fhMemos           = 0xf9 // STArray 9
	fhMemo            = 0xea // STObject 10
	fhMemoType        = 0x7c // Blob 12
	fhMemoData        = 0x7d // Blob 13
	fhObjectEnd       = 0xe1
	fhArrayEnd        = 0xf1

	// Native amounts set the "not negative" bit over the drop count.
	nativeAmountBit = uint64(1) << 62

	accountIDLen = 20
)

// serializePayment encodes p in canonical field order. A nil sig produces
// the signing-data form (no TxnSignature field); a non-nil sig produces
// the final submittable form.
func serializePayment(p *Payment, signingPubKey, sig []byte) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteByte(fhTransactionType)
	var tt [2]byte
	binary.BigEndian.PutUint16(tt[:], paymentTxType)
	buf.Write(tt[:])

	buf.WriteByte(fhSequence)
	var seq [4]byte
	binary.BigEndian.PutUint32(seq[:], p.Sequence)
	buf.Write(seq[:])

	if err := writeDrops(&buf, fhAmount, p.Amount); err != nil {
		return nil, fmt.Errorf("amount: %w", err)
	}
	if err := writeDrops(&buf, fhFee, p.Fee); err != nil {
		return nil, fmt.Errorf("fee: %w", err)
	}

	writeBlob(&buf, fhSigningPubKey, signingPubKey)
	if sig != nil {
		writeBlob(&buf, fhTxnSignature, sig)
	}

	if err := writeAccountID(&buf, fhAccount, p.Account); err != nil {
		return nil, fmt.Errorf("account: %w", err)
	}
	if err := writeAccountID(&buf, fhDestination, p.Destination); err != nil {
		return nil, fmt.Errorf("destination: %w", err)
	}

	if len(p.Memos) > 0 {
		buf.WriteByte(fhMemos)
		for _, m := range p.Memos {
			buf.WriteByte(fhMemo)
			if err := writeHexBlob(&buf, fhMemoType, m.MemoType); err != nil {
				return nil, fmt.Errorf("memo type: %w", err)
			}
			if err := writeHexBlob(&buf, fhMemoData, m.MemoData); err != nil {
				return nil, fmt.Errorf("memo data: %w", err)
			}
			buf.WriteByte(fhObjectEnd)
		}
		buf.WriteByte(fhArrayEnd)
	}

	return buf.Bytes(), nil
}

func writeDrops(buf *bytes.Buffer, header byte, drops string) error {
	v, err := strconv.ParseUint(drops, 10, 62)
	if err != nil {
		return fmt.Errorf("parse drops %q: %w", drops, err)
	}
	buf.WriteByte(header)
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], nativeAmountBit|v)
	buf.Write(b[:])
	return nil
}

// writeBlob writes a variable-length field. Anchor payments never carry a
// blob anywhere near the multi-byte length-prefix threshold.
func writeBlob(buf *bytes.Buffer, header byte, data []byte) {
	buf.WriteByte(header)
	buf.WriteByte(byte(len(data)))
	buf.Write(data)
}

func writeHexBlob(buf *bytes.Buffer, header byte, hexData string) error {
	data, err := hex.DecodeString(hexData)
	if err != nil {
		return err
	}
	writeBlob(buf, header, data)
	return nil
}

// writeAccountID decodes a classic address and writes its 20-byte account ID
// as a length-prefixed field.
func writeAccountID(buf *bytes.Buffer, header byte, address string) error {
	payload, err := base58CheckDecode(address)
	if err != nil {
		return err
	}
	if len(payload) != 1+accountIDLen || payload[0] != accountIDPrefix {
		return fmt.Errorf("not a classic address: %q", address)
	}
	writeBlob(buf, header, payload[1:])
	return nil
}
