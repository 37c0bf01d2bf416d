package model

import "time"

// DefaultBankInfo is shown when the backend omits transfer details.
var DefaultBankInfo = BankInfo{Bank: "MB Bank", Account: "0931630902", Name: "DAO NAM HAI"}

// BankInfo carries the manual transfer destination printed next to the QR.
type BankInfo struct {
	Bank    string `json:"bank"`
	Account string `json:"account"`
	Name    string `json:"name"`
}

// String renders "Bank - Account - Name".
func (b BankInfo) String() string {
	return b.Bank + " - " + b.Account + " - " + b.Name
}

// CheckoutRequest asks the backend for a payment session.  Exactly one of
// BookingID or HoldToken identifies the target; BookingID wins once known.
type CheckoutRequest struct {
	BookingID *int64 `json:"bookingId,omitempty"`
	HoldToken string `json:"holdToken,omitempty"`
	Email     string `json:"email,omitempty"`
	FullName  string `json:"fullName,omitempty"`
	Phone     string `json:"phone,omitempty"`
}

// PaymentSession is the artifact returned by the checkout endpoint: a QR
// image, amount, bank details and the session expiry.  The booking id and
// code are sticky for the rest of the checkout page's life.
//
// Fields:
//  Success         – false when the backend refused to create the session.
//  BookingID       – booking created (or reused) for this session.
//  BookingCode     – code used in the confirmation URL.
//  OrderCode       – payment order reference.
//  Amount          – amount due.
//  QRBase64        – QR image, base64 encoded (may carry a data: prefix).
//  CheckoutURL     – hosted payment page, when the gateway provides one.
//  BankInfo        – manual transfer destination.
//  TransferContent – memo the payer must include.
//  ExpiresAt       – QR validity; independent from the hold expiry.
//  Message         – backend message when Success is false.
type PaymentSession struct {
	Success         bool      `json:"success"`
	BookingID       int64     `json:"bookingId"`
	BookingCode     string    `json:"bookingCode"`
	OrderCode       string    `json:"orderCode"`
	Amount          Amount    `json:"amount"`
	QRBase64        string    `json:"qrBase64"`
	CheckoutURL     string    `json:"checkoutUrl,omitempty"`
	BankInfo        *BankInfo `json:"bankInfo,omitempty"`
	TransferContent string    `json:"transferContent"`
	ExpiresAt       time.Time `json:"expiresAt"`
	Message         string    `json:"message,omitempty"`
}

// Bank returns the session's bank details or the default account.
func (p PaymentSession) Bank() BankInfo {
	if p.BankInfo == nil || p.BankInfo.Account == "" {
		return DefaultBankInfo
	}
	return *p.BankInfo
}
