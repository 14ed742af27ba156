package qr

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"ms-event-tickets/internal/models"

	"github.com/skip2/go-qrcode"
)

// Payload is what a ticket's QR code carries, encrypted.
type Payload struct {
	TicketID string `json:"ticket_id"`
	EventID  string `json:"event_id"`
	Code     string `json:"code"`
}

type QRGenerator struct {
	secret []byte
}

func NewQRGenerator(secret string) *QRGenerator {
	hashed := sha256.Sum256([]byte(secret)) // normalize to 32 bytes
	return &QRGenerator{secret: hashed[:]}
}

// EncryptTicket returns the URL-safe encrypted string printed in the QR code.
func (q *QRGenerator) EncryptTicket(ticket models.Ticket) (string, error) {
	data, err := json.Marshal(Payload{
		TicketID: ticket.ID,
		EventID:  ticket.EventID,
		Code:     ticket.Code,
	})
	if err != nil {
		return "", err
	}
	return encryptAES(data, q.secret)
}

// GenerateEncryptedQR renders the encrypted ticket payload as a PNG.
func (q *QRGenerator) GenerateEncryptedQR(ticket models.Ticket, size int) ([]byte, error) {
	encrypted, err := q.EncryptTicket(ticket)
	if err != nil {
		return nil, err
	}
	return qrcode.Encode(encrypted, qrcode.Medium, size)
}

// DecryptQRData reverses EncryptTicket.
func (q *QRGenerator) DecryptQRData(encrypted string) (*Payload, error) {
	data, err := decryptAES(encrypted, q.secret)
	if err != nil {
		return nil, err
	}

	var payload Payload
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, fmt.Errorf("decode qr payload: %w", err)
	}
	if payload.Code == "" {
		return nil, errors.New("qr payload has no ticket code")
	}
	return &payload, nil
}

// encryptAES seals data with AES-GCM and prefixes the nonce, so a tampered
// code fails to open instead of decrypting to garbage.
func encryptAES(data []byte, key []byte) (string, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	sealed := gcm.Seal(nonce, nonce, data, nil)
	return base64.URLEncoding.EncodeToString(sealed), nil
}

func decryptAES(encoded string, key []byte) ([]byte, error) {
	sealed, err := base64.URLEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode qr data: %w", err)
	}

	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}
	if len(sealed) < gcm.NonceSize()+gcm.Overhead() {
		return nil, errors.New("qr data too short")
	}

	nonce, ciphertext := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	data, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("open qr data: %w", err)
	}
	return data, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	return cipher.NewGCM(block)
}
