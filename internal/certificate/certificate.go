// Package certificate renders registration certificates as PDF documents
// and keeps the rendered files for download.
package certificate

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// ErrMissingFields is returned when a certificate request leaves a field empty.
var ErrMissingFields = errors.New("all fields are required")

// Value is a certificate field. JSON strings and numbers are both accepted;
// a number keeps its literal form. Empty strings, zero and null are empty.
type Value string

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	switch {
	case bytes.Equal(data, []byte("null")):
		*v = ""
	case len(data) > 0 && data[0] == '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*v = Value(s)
	default:
		f, err := strconv.ParseFloat(string(data), 64)
		if err != nil {
			return fmt.Errorf("certificate field must be a string or number, got %s", data)
		}
		if f == 0 {
			*v = ""
			return nil
		}
		*v = Value(data)
	}
	return nil
}

// Request holds the fields printed on a certificate.
type Request struct {
	MembershipNumber Value `json:"membershipNumber"`
	NationalNumber   Value `json:"nationalNumber"`
	CompanyName      Value `json:"companyName"`
	OwnerName        Value `json:"ownerName"`
	Address          Value `json:"address"`
	Branches         Value `json:"branches"`
	Capital          Value `json:"capital"`
	Category         Value `json:"category"`
	Sector           Value `json:"sector"`
	BusinessType     Value `json:"businessType"`
	FeesPaid         Value `json:"feesPaid"`
	ReceiptNumber    Value `json:"receiptNumber"`
	IssueDate        Value `json:"issueDate"`
	ValidUntil       Value `json:"validUntil"`
}

// SendRequest is a certificate request that is also mailed to Email.
type SendRequest struct {
	Email        string `json:"email"`
	CustomerName string `json:"customerName"`
	Request
}

// Missing returns the JSON names of the empty fields, in declaration order.
func (r Request) Missing() []string {
	fields := []struct {
		name  string
		value Value
	}{
		{"membershipNumber", r.MembershipNumber},
		{"nationalNumber", r.NationalNumber},
		{"companyName", r.CompanyName},
		{"ownerName", r.OwnerName},
		{"address", r.Address},
		{"branches", r.Branches},
		{"capital", r.Capital},
		{"category", r.Category},
		{"sector", r.Sector},
		{"businessType", r.BusinessType},
		{"feesPaid", r.FeesPaid},
		{"receiptNumber", r.ReceiptNumber},
		{"issueDate", r.IssueDate},
		{"validUntil", r.ValidUntil},
	}

	var missing []string
	for _, f := range fields {
		if f.value == "" {
			missing = append(missing, f.name)
		}
	}
	return missing
}

// Validate returns ErrMissingFields, naming the empty fields, when any
// field is empty.
func (r Request) Validate() error {
	if missing := r.Missing(); len(missing) > 0 {
		return fmt.Errorf("%w: %v", ErrMissingFields, missing)
	}
	return nil
}
