// Package notification delivers case-created notices to the evaluator and
// the patient. Delivery is best effort: outcomes are logged and counted,
// never returned to the request that triggered them.
package notification

import (
	"context"
)

// Notification is the flat record handed to a Dispatcher.
type Notification struct {
	RecipientName   string `json:"recipientName"`
	RecipientEmail  string `json:"recipientEmail"`
	CounterpartName string `json:"counterpartName"`
	Date            string `json:"date"`
	Time            string `json:"time,omitempty"`
	Location        string `json:"location,omitempty"`
	CaseID          string `json:"caseId"`
}

// Dispatcher reports whether the notification was accepted for delivery.
type Dispatcher interface {
	Dispatch(ctx context.Context, n Notification) bool
}
