package utils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"os"
	"path"
	"strings"

	"etix/src/models"
	"etix/src/types"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"github.com/shopspring/decimal"
	"github.com/yeqown/go-qrcode"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// ValidateStruct checks the struct's validate tags and folds every field
// failure into a single validation_error.
func ValidateStruct(s any) error {
	err := validate.Struct(s)
	if err == nil {
		return nil
	}
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return types.WrapError(types.ErrValidation, err, "invalid input")
	}
	fields := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, fmt.Sprintf("%s (%s)", fe.Field(), fe.Tag()))
	}
	return types.NewError(types.ErrValidation, "invalid input: %s", strings.Join(fields, ", "))
}

// OrderTotal computes price times qty without float arithmetic.
func OrderTotal(price decimal.Decimal, qty uint) decimal.Decimal {
	return price.Mul(decimal.NewFromUint64(uint64(qty)))
}

// ParsePrice parses a money string like "25.00" into a decimal, rejecting
// negative amounts.
func ParsePrice(s string) (decimal.Decimal, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, types.WrapError(types.ErrValidation, err, "invalid amount %q", s)
	}
	if d.IsNegative() {
		return decimal.Zero, types.NewError(types.ErrValidation, "amount must not be negative")
	}
	return d, nil
}

func EventSlug(title string) string {
	return slug.Make(title)
}

func NewTransferCode() string {
	return uuid.NewString()
}

// IssueTicketQR renders the booking's admission pass as a QR image on disk
// and returns the file path. The payload is encrypted when API_QRC_SECRET
// is set so gate scanners cannot be fed hand-crafted codes.
func IssueTicketQR(booking *models.Booking) (string, error) {
	rawData := map[string]any{
		"bookingId": booking.ID,
		"ticketId":  booking.TicketID,
		"eventId":   booking.EventID,
		"qty":       booking.Qty,
	}
	rawBytes, _ := json.Marshal(rawData)
	content := string(rawBytes)

	if keyEnv := os.Getenv("API_QRC_SECRET"); keyEnv != "" {
		key, err := hex.DecodeString(keyEnv)
		if err != nil {
			log.Printf("Could not read key from string: %s\n", err.Error())
			return "", err
		}
		content, err = EncryptMessage(key, content)
		if err != nil {
			log.Printf("Error encrypting message: %s\n", err.Error())
			return "", err
		}
	}

	qrc, err := qrcode.New(content)
	if err != nil {
		return "", err
	}
	dir := os.Getenv("API_TICKETS_DIR")
	if dir == "" {
		dir = os.TempDir()
	}
	filename := fmt.Sprintf("eticket-%d-%s.jpeg", booking.ID, uuid.NewString())
	filepath := path.Join(dir, filename)
	if err = qrc.Save(filepath); err != nil {
		log.Printf("Could not save qrcode to file [%s]: %s\n", filepath, err.Error())
		return "", err
	}
	return filepath, nil
}

func EncryptMessage(key []byte, message string) (string, error) {
	plaintext := []byte(message)

	block, err := aes.NewCipher(key)
	if err != nil {
		return "", err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", err
	}

	cipherText := gcm.Seal(nonce, nonce, plaintext, nil)
	encodedString := hex.EncodeToString(cipherText)

	return encodedString, nil
}

func DecryptMessage(key []byte, message string) (*string, error) {
	cipherText, err := hex.DecodeString(message)
	if err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	decryptedData, err := gcm.Open(nil, cipherText[:gcm.NonceSize()], cipherText[gcm.NonceSize():], nil)
	if err != nil {
		return nil, err
	}
	decodedString := string(decryptedData)

	return &decodedString, nil
}
