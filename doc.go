// Package cpsms is a typed client for the CPSMS SMS gateway
// (api.cpsms.dk, v2 JSON API): sending messages to individual numbers
// or stored groups, canceling scheduled sends, managing groups and
// contacts, reading the delivery log, and checking the prepaid credit
// balance.
//
// Two clients share one validation and decoding core. Client blocks for
// the round-trip; AsyncClient returns a Future per call and never
// blocks the caller:
//
//	client, err := cpsms.NewClient(cpsms.Config{
//		Username: "account",
//		APIKey:   "key",
//	})
//	if err != nil {
//		return err
//	}
//	defer client.Close()
//
//	report, err := client.SendSMS(ctx, []string{"4512345678"}, cpsms.Message{
//		Text: "Your order is out for delivery.",
//		From: "WebShop",
//	})
//
// Every failure belongs to one of the package's sentinel categories
// (ErrAuthentication, ErrValidation, ErrNotFound, ErrInsufficientCredit,
// ErrRateLimited, ErrTransport, ErrUnknown) and matches with errors.Is
// however deeply wrapped. Gateway refusals additionally expose an
// *APIError carrying the raw status, provider code and message.
// Structural problems (an empty recipient list, malformed numbers, an
// inverted log range) are rejected locally before any network traffic.
//
// Both clients are safe for concurrent use. Nothing is cached and
// nothing is retried: one call is one fresh round-trip.
package cpsms
