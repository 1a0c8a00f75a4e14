package nwc

import (
	"context"
	"encoding/json"
	"fmt"
)

// MsatsPerSat converts between the wire unit (millisatoshi) and the
// public API unit (satoshi). Conversion happens exactly here, at the
// API boundary.
const MsatsPerSat = 1000

const defaultInvoiceExpiry = 3600 // seconds

// Invoice is a Lightning invoice record as reported by the wallet.
// Amounts are in millisatoshis, matching the wire.
type Invoice struct {
	Type            string `json:"type,omitempty"` // "incoming" or "outgoing"
	Invoice         string `json:"invoice,omitempty"`
	Description     string `json:"description,omitempty"`
	DescriptionHash string `json:"description_hash,omitempty"`
	Preimage        string `json:"preimage,omitempty"`
	PaymentHash     string `json:"payment_hash,omitempty"`
	Amount          int64  `json:"amount"`
	FeesPaid        int64  `json:"fees_paid,omitempty"`
	CreatedAt       int64  `json:"created_at,omitempty"`
	ExpiresAt       int64  `json:"expires_at,omitempty"`
	SettledAt       int64  `json:"settled_at,omitempty"`
}

// call runs one request and decodes the result into out. A wallet
// error is returned verbatim; a response with neither result nor error
// is a protocol violation.
func (c *Client) call(ctx context.Context, method string, params interface{}, out interface{}) error {
	response, err := c.sendRequest(ctx, method, params)
	if err != nil {
		return err
	}

	if response.Error != nil {
		return &WalletError{Code: response.Error.Code, Message: response.Error.Message}
	}
	if len(response.Result) == 0 {
		return fmt.Errorf("%w (method %s)", ErrEmptyResult, method)
	}
	if response.ResultType != "" && response.ResultType != method {
		return fmt.Errorf("unexpected result type %q for %s", response.ResultType, method)
	}

	if out != nil {
		if err := json.Unmarshal(response.Result, out); err != nil {
			return fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
		}
	}
	return nil
}

// MakeInvoice asks the wallet to create a BOLT11 invoice for amountSats.
// expirySeconds <= 0 defaults to one hour.
func (c *Client) MakeInvoice(ctx context.Context, amountSats int64, description string, expirySeconds int64) (*Invoice, error) {
	if expirySeconds <= 0 {
		expirySeconds = defaultInvoiceExpiry
	}

	params := map[string]interface{}{
		"amount": amountSats * MsatsPerSat,
		"expiry": expirySeconds,
	}
	if description != "" {
		params["description"] = description
	}

	var invoice Invoice
	if err := c.call(ctx, "make_invoice", params, &invoice); err != nil {
		return nil, err
	}
	if invoice.Type == "" {
		invoice.Type = "incoming"
	}
	return &invoice, nil
}

// PayInvoice pays a BOLT11 invoice. amountMsatsOverride, when > 0, pays
// that amount instead of the invoice's embedded one (zero-amount
// invoices require it).
func (c *Client) PayInvoice(ctx context.Context, bolt11 string, amountMsatsOverride int64) (*Invoice, error) {
	params := map[string]interface{}{
		"invoice": bolt11,
	}
	if amountMsatsOverride > 0 {
		params["amount"] = amountMsatsOverride
	}

	var invoice Invoice
	if err := c.call(ctx, "pay_invoice", params, &invoice); err != nil {
		return nil, err
	}
	if invoice.Invoice == "" {
		invoice.Invoice = bolt11
	}
	if invoice.Type == "" {
		invoice.Type = "outgoing"
	}
	return &invoice, nil
}

// LookupInvoice fetches the wallet's record for a payment hash
func (c *Client) LookupInvoice(ctx context.Context, paymentHash string) (*Invoice, error) {
	params := map[string]interface{}{
		"payment_hash": paymentHash,
	}

	var invoice Invoice
	if err := c.call(ctx, "lookup_invoice", params, &invoice); err != nil {
		return nil, err
	}
	return &invoice, nil
}

// GetBalance returns the wallet balance in whole satoshis. The wire
// reports millisatoshis; any sub-satoshi remainder is truncated.
func (c *Client) GetBalance(ctx context.Context) (int64, error) {
	var result struct {
		Balance int64 `json:"balance"`
	}
	if err := c.call(ctx, "get_balance", map[string]interface{}{}, &result); err != nil {
		return 0, err
	}
	return result.Balance / MsatsPerSat, nil
}

// GetInfo returns the wallet's advertised info as an opaque map
func (c *Client) GetInfo(ctx context.Context) (map[string]interface{}, error) {
	var info map[string]interface{}
	if err := c.call(ctx, "get_info", map[string]interface{}{}, &info); err != nil {
		return nil, err
	}
	return info, nil
}

// ListTransactions returns up to limit recent transactions (all of
// them when limit <= 0)
func (c *Client) ListTransactions(ctx context.Context, limit int) ([]Invoice, error) {
	params := map[string]interface{}{}
	if limit > 0 {
		params["limit"] = limit
	}

	var result struct {
		Transactions []Invoice `json:"transactions"`
	}
	if err := c.call(ctx, "list_transactions", params, &result); err != nil {
		return nil, err
	}
	return result.Transactions, nil
}
