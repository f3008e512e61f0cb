package mpesa

import (
	"encoding/base64"
	"fmt"
	"math"
	"strings"
	"time"
)

const (
	// TransactionType for STK push against a paybill short code.
	TransactionType = "CustomerPayBillOnline"
	// AccountReference shown to the customer in the STK prompt (max 12 chars).
	AccountReference = "DUKA"

	timestampLayout = "20060102150405"
)

// STKPushRequest is the Daraja Lipa na M-Pesa Online payload.
type STKPushRequest struct {
	BusinessShortCode string `json:"BusinessShortCode"`
	Password          string `json:"Password"`
	Timestamp         string `json:"Timestamp"`
	TransactionType   string `json:"TransactionType"`
	Amount            int64  `json:"Amount"`
	PartyA            string `json:"PartyA"`
	PartyB            string `json:"PartyB"`
	PhoneNumber       string `json:"PhoneNumber"`
	CallBackURL       string `json:"CallBackURL"`
	AccountReference  string `json:"AccountReference"`
	TransactionDesc   string `json:"TransactionDesc"`
}

// STKPushResponse is the gateway's synchronous acknowledgment. ResponseCode
// is a string: the gateway sends "0" for an accepted push, not the number 0.
type STKPushResponse struct {
	MerchantRequestID   string `json:"MerchantRequestID"`
	CheckoutRequestID   string `json:"CheckoutRequestID"`
	ResponseCode        string `json:"ResponseCode"`
	ResponseDescription string `json:"ResponseDescription"`
	CustomerMessage     string `json:"CustomerMessage"`
	ErrorCode           string `json:"errorCode"`
	ErrorMessage        string `json:"errorMessage"`
}

// NormalizePhone strips a single leading "+". No further validation; phone
// format is checked upstream.
func NormalizePhone(phone string) string {
	return strings.TrimPrefix(phone, "+")
}

// Timestamp renders t in the gateway's YYYYMMDDHHmmss convention.
func Timestamp(t time.Time) string {
	return t.Format(timestampLayout)
}

// Password derives the request password: base64(shortCode + passkey + timestamp).
func Password(shortCode, passkey string, t time.Time) string {
	return base64.StdEncoding.EncodeToString([]byte(shortCode + passkey + Timestamp(t)))
}

// RoundAmount rounds to the nearest whole KES, ties away from zero. The
// gateway rejects fractional amounts.
func RoundAmount(amount float64) int64 {
	return int64(math.Round(amount))
}

// BuildSTKPush assembles the push payload. Pure: all inputs are assumed
// pre-validated and the builder never fails.
func BuildSTKPush(creds Credentials, phone string, amount float64, t time.Time) *STKPushRequest {
	rounded := RoundAmount(amount)
	return &STKPushRequest{
		BusinessShortCode: creds.ShortCode,
		Password:          Password(creds.ShortCode, creds.Passkey, t),
		Timestamp:         Timestamp(t),
		TransactionType:   TransactionType,
		Amount:            rounded,
		PartyA:            NormalizePhone(phone),
		PartyB:            creds.ShortCode,
		PhoneNumber:       NormalizePhone(phone),
		CallBackURL:       creds.CallbackURL,
		AccountReference:  AccountReference,
		TransactionDesc:   fmt.Sprintf("Payment of KES %d", rounded),
	}
}
