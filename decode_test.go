package cpsms

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeSendReport(t *testing.T) {
	t.Run("success list", func(t *testing.T) {
		body := []byte(`{"success":[
			{"to":"4512345678","cost":1,"smsAmount":1},
			{"to":"4587654321","cost":2.5,"smsAmount":2}
		]}`)

		report, err := decodeSendReport(body, "")

		require.NoError(t, err)
		require.Len(t, report.Deliveries, 2)
		assert.Equal(t, "4512345678", report.Deliveries[0].To)
		assert.Equal(t, 1.0, report.Deliveries[0].Cost)
		assert.Equal(t, 2, report.Deliveries[1].Parts)
		assert.Empty(t, report.Failures)
		assert.Equal(t, []string{"4512345678", "4587654321"}, report.MessageIDs())
	})

	t.Run("single recipient arrives as a bare object", func(t *testing.T) {
		// The gateway unwraps one-element result lists.
		body := []byte(`{"success":{"to":"4512345678","cost":1,"smsAmount":1}}`)

		report, err := decodeSendReport(body, "")

		require.NoError(t, err)
		require.Len(t, report.Deliveries, 1)
		assert.Equal(t, "4512345678", report.Deliveries[0].To)
	})

	t.Run("partial failure keeps both halves", func(t *testing.T) {
		body := []byte(`{
			"success":[{"to":"4512345678","cost":1,"smsAmount":1}],
			"error":[{"code":409,"message":"Phone number length invalid","to":"123"}]
		}`)

		report, err := decodeSendReport(body, "")

		require.NoError(t, err)
		require.Len(t, report.Deliveries, 1)
		require.Len(t, report.Failures, 1)
		assert.Equal(t, 409, report.Failures[0].Code)
		assert.Equal(t, "123", report.Failures[0].To)
		assert.Equal(t, "Phone number length invalid", report.Failures[0].Message)
	})

	t.Run("reference is carried onto the report", func(t *testing.T) {
		body := []byte(`{"success":[{"to":"4512345678","cost":1,"smsAmount":1}]}`)

		report, err := decodeSendReport(body, "order-1234")

		require.NoError(t, err)
		assert.Equal(t, "order-1234", report.Reference)
	})

	t.Run("garbage body maps to the unknown category", func(t *testing.T) {
		_, err := decodeSendReport([]byte(`<html>gateway error</html>`), "")

		assert.ErrorIs(t, err, ErrUnknown)
	})

	t.Run("envelope without results maps to the unknown category", func(t *testing.T) {
		_, err := decodeSendReport([]byte(`{"ok":true}`), "")

		assert.ErrorIs(t, err, ErrUnknown)
	})
}

func TestDecodeCredit(t *testing.T) {
	tests := []struct {
		name string
		body string
		want float64
		raw  string
	}{
		{"danish grouping and decimal comma", `{"credit":"9.843,40"}`, 9843.40, "9.843,40"},
		{"zero balance", `{"credit":"0"}`, 0, "0"},
		{"zero with decimals", `{"credit":"0,00"}`, 0, "0,00"},
		{"plain integer string", `{"credit":"120"}`, 120, "120"},
		{"bare json number", `{"credit":120.5}`, 120.5, "120.5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			balance, err := decodeCredit([]byte(tt.body))

			require.NoError(t, err)
			assert.InDelta(t, tt.want, balance.Amount, 0.0001)
			assert.Equal(t, tt.raw, balance.Raw)
			assert.Equal(t, CreditCurrency, balance.Currency)
		})
	}

	t.Run("unparseable amount maps to the unknown category", func(t *testing.T) {
		_, err := decodeCredit([]byte(`{"credit":"plenty"}`))

		assert.ErrorIs(t, err, ErrUnknown)
	})

	t.Run("missing field maps to the unknown category", func(t *testing.T) {
		_, err := decodeCredit([]byte(`{}`))

		assert.ErrorIs(t, err, ErrUnknown)
	})
}

func TestDecodeCreateGroup(t *testing.T) {
	t.Run("quoted id", func(t *testing.T) {
		// Create answers with the id as a string, list with a number.
		body := []byte(`{"success":{"groupId":"12345","groupName":"Test Group"}}`)

		group, err := decodeCreateGroup(body)

		require.NoError(t, err)
		assert.Equal(t, int64(12345), group.ID)
		assert.Equal(t, "Test Group", group.Name)
	})

	t.Run("numeric id", func(t *testing.T) {
		body := []byte(`{"success":{"groupId":12345,"groupName":"Test Group"}}`)

		group, err := decodeCreateGroup(body)

		require.NoError(t, err)
		assert.Equal(t, int64(12345), group.ID)
	})

	t.Run("malformed body", func(t *testing.T) {
		_, err := decodeCreateGroup([]byte(`"created"`))

		assert.ErrorIs(t, err, ErrUnknown)
	})
}

func TestDecodeGroups(t *testing.T) {
	t.Run("list with numeric ids", func(t *testing.T) {
		body := []byte(`[
			{"groupId":1,"groupName":"Group 1"},
			{"groupId":2,"groupName":"Group 2"}
		]`)

		groups, err := decodeGroups(body)

		require.NoError(t, err)
		require.Len(t, groups, 2)
		assert.Equal(t, int64(1), groups[0].ID)
		assert.Equal(t, "Group 2", groups[1].Name)
	})

	t.Run("empty list", func(t *testing.T) {
		groups, err := decodeGroups([]byte(`[]`))

		require.NoError(t, err)
		assert.Empty(t, groups)
	})

	t.Run("quoted ids decode the same", func(t *testing.T) {
		groups, err := decodeGroups([]byte(`[{"groupId":"7","groupName":"Mixed"}]`))

		require.NoError(t, err)
		assert.Equal(t, int64(7), groups[0].ID)
	})
}

func TestDecodeAck(t *testing.T) {
	t.Run("string ack", func(t *testing.T) {
		assert.NoError(t, decodeAck([]byte(`{"success":"groupId 12345 Updated"}`)))
	})

	t.Run("empty body is accepted", func(t *testing.T) {
		assert.NoError(t, decodeAck(nil))
		assert.NoError(t, decodeAck([]byte("")))
	})

	t.Run("non-json body is rejected", func(t *testing.T) {
		assert.ErrorIs(t, decodeAck([]byte(`<html>`)), ErrUnknown)
	})
}

func TestDecodeCreateContact(t *testing.T) {
	requested := NewContact{PhoneNumber: "+15551234567", Name: "Alice", GroupID: 7}

	t.Run("string ack echoes the request", func(t *testing.T) {
		body := []byte(`{"success":"Contact created/added in group"}`)

		contact, err := decodeCreateContact(body, requested)

		require.NoError(t, err)
		assert.Zero(t, contact.ID)
		assert.Equal(t, "+15551234567", contact.PhoneNumber)
		assert.Equal(t, "Alice", contact.Name)
	})

	t.Run("object ack overrides with stored values", func(t *testing.T) {
		body := []byte(`{"success":{"contactId":501,"phoneNumber":"+15551234567","contactName":"Alice","timeAdded":1780272000}}`)

		contact, err := decodeCreateContact(body, requested)

		require.NoError(t, err)
		assert.Equal(t, int64(501), contact.ID)
		assert.Equal(t, int64(1780272000), contact.AddedAt.Unix())
	})

	t.Run("malformed body", func(t *testing.T) {
		_, err := decodeCreateContact([]byte(`<html>`), requested)

		assert.ErrorIs(t, err, ErrUnknown)
	})
}

func TestDecodeContacts(t *testing.T) {
	t.Run("full rows", func(t *testing.T) {
		body := []byte(`[
			{"contactId":501,"phoneNumber":"+15551234567","contactName":"Alice","timeAdded":1780272000},
			{"contactId":"502","phoneNumber":"4512345678","contactName":"Bob","timeAdded":1780272060}
		]`)

		contacts, err := decodeContacts(body)

		require.NoError(t, err)
		require.Len(t, contacts, 2)
		assert.Equal(t, int64(501), contacts[0].ID)
		assert.Equal(t, "Alice", contacts[0].Name)
		assert.Equal(t, time.Unix(1780272000, 0).UTC(), contacts[0].AddedAt.UTC())
		assert.Equal(t, int64(502), contacts[1].ID)
	})

	t.Run("missing timestamp leaves AddedAt zero", func(t *testing.T) {
		contacts, err := decodeContacts([]byte(`[{"contactId":1,"phoneNumber":"4512345678","contactName":"X"}]`))

		require.NoError(t, err)
		assert.True(t, contacts[0].AddedAt.IsZero())
	})
}

func TestDecodeLog(t *testing.T) {
	t.Run("full row", func(t *testing.T) {
		body := []byte(`[{
			"to":"4512345678",
			"from":"TestApp",
			"smsAmount":2,
			"pointPrice":1.5,
			"userReference":"order-1234",
			"dlrStatus":1,
			"dlrStatusText":"Received",
			"timeSent":1780272000
		}]`)

		entries, err := decodeLog(body)

		require.NoError(t, err)
		require.Len(t, entries, 1)
		entry := entries[0]
		assert.Equal(t, "4512345678", entry.To)
		assert.Equal(t, "TestApp", entry.From)
		assert.Equal(t, 2, entry.Parts)
		assert.Equal(t, 1.5, entry.Cost)
		assert.Equal(t, "order-1234", entry.Reference)
		assert.Equal(t, StatusDelivered, entry.Status)
		assert.Equal(t, "Received", entry.StatusText)
		assert.Equal(t, int64(1780272000), entry.SentAt.Unix())
	})

	t.Run("null reference decodes as empty", func(t *testing.T) {
		body := []byte(`[{"to":"4512345678","from":"App","smsAmount":1,"pointPrice":1,"userReference":null,"dlrStatus":1,"dlrStatusText":"Received","timeSent":1780272000}]`)

		entries, err := decodeLog(body)

		require.NoError(t, err)
		assert.Empty(t, entries[0].Reference)
	})

	t.Run("empty log", func(t *testing.T) {
		entries, err := decodeLog([]byte(`[]`))

		require.NoError(t, err)
		assert.Empty(t, entries)
	})
}

func TestFlexInt64(t *testing.T) {
	tests := []struct {
		name    string
		raw     string
		want    int64
		wantErr bool
	}{
		{"number", `12`, 12, false},
		{"quoted number", `"12"`, 12, false},
		{"null", `null`, 0, false},
		{"empty string", `""`, 0, false},
		{"not a number", `"abc"`, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var v flexInt64
			err := v.UnmarshalJSON([]byte(tt.raw))

			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, int64(v))
		})
	}
}

func TestOneOrMany(t *testing.T) {
	t.Run("single object wraps into a list", func(t *testing.T) {
		var v oneOrMany[wireError]
		require.NoError(t, v.UnmarshalJSON([]byte(`{"code":409,"message":"bad","to":"123"}`)))

		require.Len(t, v, 1)
		assert.Equal(t, 409, v[0].Code)
	})

	t.Run("list passes through", func(t *testing.T) {
		var v oneOrMany[wireError]
		require.NoError(t, v.UnmarshalJSON([]byte(`[{"code":409},{"code":500}]`)))

		assert.Len(t, v, 2)
	})

	t.Run("null decodes to nothing", func(t *testing.T) {
		var v oneOrMany[wireError]
		require.NoError(t, v.UnmarshalJSON([]byte(`null`)))

		assert.Empty(t, v)
	})
}
