package cpsms

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validMessage() Message {
	return Message{Text: "Test message", From: "TestApp"}
}

func TestBuildSend(t *testing.T) {
	t.Run("accepts any non-empty recipient list", func(t *testing.T) {
		tests := []struct {
			name string
			to   []string
		}{
			{"single recipient", []string{"4512345678"}},
			{"multiple recipients", []string{"4512345678", "4587654321"}},
			{"plus prefixed", []string{"+15551234567"}},
			{"short number is still structural", []string{"123"}},
		}

		for _, tt := range tests {
			t.Run(tt.name, func(t *testing.T) {
				req, err := buildSend(tt.to, validMessage())

				require.NoError(t, err)
				assert.Equal(t, http.MethodPost, req.method)
				assert.Equal(t, "/send", req.path)
			})
		}
	})

	t.Run("empty recipient list fails before transport", func(t *testing.T) {
		req, err := buildSend(nil, validMessage())

		assert.Nil(t, req)
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("rejects malformed numbers", func(t *testing.T) {
		for _, number := range []string{"", "abc", "45 12 34 56", "+", "1234567890123456"} {
			_, err := buildSend([]string{number}, validMessage())

			assert.ErrorIs(t, err, ErrValidation, "number %q should be rejected", number)
		}
	})

	t.Run("payload carries the wire field names", func(t *testing.T) {
		at := time.Date(2026, 8, 30, 12, 0, 0, 0, time.UTC)
		msg := Message{
			Text:      "Hello",
			From:      "App",
			Format:    FormatUnicode,
			Flash:     true,
			SendAt:    at,
			DLRURL:    "https://example.com/dlr",
			Reference: "order-1234",
		}

		req, err := buildSend([]string{"4512345678"}, msg)
		require.NoError(t, err)

		raw, err := json.Marshal(req.body)
		require.NoError(t, err)
		var payload map[string]any
		require.NoError(t, json.Unmarshal(raw, &payload))

		assert.Equal(t, []any{"4512345678"}, payload["to"])
		assert.Equal(t, "Hello", payload["message"])
		assert.Equal(t, "App", payload["from"])
		assert.Equal(t, "UNICODE", payload["format"])
		assert.Equal(t, true, payload["flash"])
		assert.Equal(t, float64(at.Unix()), payload["timestamp"])
		assert.Equal(t, "https://example.com/dlr", payload["dlr_url"])
		assert.Equal(t, "order-1234", payload["reference"])
	})

	t.Run("immediate sends omit schedule and callback fields", func(t *testing.T) {
		req, err := buildSend([]string{"4512345678"}, validMessage())
		require.NoError(t, err)

		raw, err := json.Marshal(req.body)
		require.NoError(t, err)

		assert.NotContains(t, string(raw), "timestamp")
		assert.NotContains(t, string(raw), "dlr_url")
		assert.NotContains(t, string(raw), "reference")
	})
}

func TestBuildSendToGroup(t *testing.T) {
	t.Run("builds against the group endpoint", func(t *testing.T) {
		req, err := buildSendToGroup(42, validMessage())

		require.NoError(t, err)
		assert.Equal(t, http.MethodPost, req.method)
		assert.Equal(t, "/sendgroup", req.path)

		raw, err := json.Marshal(req.body)
		require.NoError(t, err)
		assert.Contains(t, string(raw), `"group_id":42`)
	})

	t.Run("rejects non-positive group ids", func(t *testing.T) {
		for _, id := range []int64{0, -1} {
			_, err := buildSendToGroup(id, validMessage())

			assert.ErrorIs(t, err, ErrValidation)
		}
	})

	t.Run("message validation applies equally", func(t *testing.T) {
		_, err := buildSendToGroup(42, Message{From: "App"})

		assert.ErrorIs(t, err, ErrValidation)
	})
}

func TestBuildCancelScheduled(t *testing.T) {
	t.Run("addresses the message by reference", func(t *testing.T) {
		req, err := buildCancelScheduled("abc123")

		require.NoError(t, err)
		assert.Equal(t, http.MethodDelete, req.method)
		assert.Equal(t, "/deletemessage/abc123", req.path)
		assert.Nil(t, req.body)
	})

	t.Run("rejects an empty reference", func(t *testing.T) {
		_, err := buildCancelScheduled("")

		assert.ErrorIs(t, err, ErrValidation)
	})
}

func TestBuildGroupRequests(t *testing.T) {
	t.Run("create posts the name", func(t *testing.T) {
		req, err := buildCreateGroup("Customers")

		require.NoError(t, err)
		assert.Equal(t, http.MethodPost, req.method)
		assert.Equal(t, "/addgroup", req.path)

		raw, err := json.Marshal(req.body)
		require.NoError(t, err)
		assert.JSONEq(t, `{"groupName":"Customers"}`, string(raw))
	})

	t.Run("create rejects a blank name", func(t *testing.T) {
		_, err := buildCreateGroup("   ")

		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("update puts id and name together", func(t *testing.T) {
		req, err := buildUpdateGroup(12345, "VIP")

		require.NoError(t, err)
		assert.Equal(t, http.MethodPut, req.method)
		assert.Equal(t, "/updategroup", req.path)

		raw, err := json.Marshal(req.body)
		require.NoError(t, err)
		assert.JSONEq(t, `{"groupId":12345,"groupName":"VIP"}`, string(raw))
	})

	t.Run("delete sends the id in the body", func(t *testing.T) {
		req, err := buildDeleteGroup(12345)

		require.NoError(t, err)
		assert.Equal(t, http.MethodDelete, req.method)
		assert.Equal(t, "/deletegroup", req.path)

		raw, err := json.Marshal(req.body)
		require.NoError(t, err)
		assert.JSONEq(t, `{"groupId":12345}`, string(raw))
	})

	t.Run("list has no parameters", func(t *testing.T) {
		req := buildListGroups()

		assert.Equal(t, http.MethodGet, req.method)
		assert.Equal(t, "/listgroups", req.path)
		assert.Nil(t, req.body)
	})
}

func TestBuildContactRequests(t *testing.T) {
	t.Run("create posts the wire fields", func(t *testing.T) {
		req, err := buildCreateContact(NewContact{
			PhoneNumber: "+15551234567",
			Name:        "Alice",
			GroupID:     7,
		})

		require.NoError(t, err)
		assert.Equal(t, http.MethodPost, req.method)
		assert.Equal(t, "/addcontact", req.path)

		raw, err := json.Marshal(req.body)
		require.NoError(t, err)
		assert.JSONEq(t, `{"groupId":7,"phoneNumber":"+15551234567","contactName":"Alice"}`, string(raw))
	})

	t.Run("create without a group omits the field", func(t *testing.T) {
		req, err := buildCreateContact(NewContact{PhoneNumber: "4512345678", Name: "Bob"})
		require.NoError(t, err)

		raw, err := json.Marshal(req.body)
		require.NoError(t, err)
		assert.NotContains(t, string(raw), "groupId")
	})

	t.Run("create validates phone and name", func(t *testing.T) {
		_, err := buildCreateContact(NewContact{PhoneNumber: "not-a-number", Name: "Alice"})
		assert.ErrorIs(t, err, ErrValidation)

		_, err = buildCreateContact(NewContact{PhoneNumber: "4512345678", Name: " "})
		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("update sends only the changed fields", func(t *testing.T) {
		req, err := buildUpdateContact(501, ContactUpdate{Name: "Alice B"})

		require.NoError(t, err)
		assert.Equal(t, http.MethodPut, req.method)
		assert.Equal(t, "/updatecontact", req.path)

		raw, err := json.Marshal(req.body)
		require.NoError(t, err)
		assert.JSONEq(t, `{"contactId":501,"contactName":"Alice B"}`, string(raw))
	})

	t.Run("update with nothing to change is rejected", func(t *testing.T) {
		_, err := buildUpdateContact(501, ContactUpdate{})

		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("delete sends the id in the body", func(t *testing.T) {
		req, err := buildDeleteContact(501)

		require.NoError(t, err)
		assert.Equal(t, "/deletecontact", req.path)

		raw, err := json.Marshal(req.body)
		require.NoError(t, err)
		assert.JSONEq(t, `{"contactId":501}`, string(raw))
	})

	t.Run("membership listing addresses the group in the path", func(t *testing.T) {
		req, err := buildListGroupMembers(42)

		require.NoError(t, err)
		assert.Equal(t, http.MethodGet, req.method)
		assert.Equal(t, "/listcontacts/42", req.path)
	})
}

func TestBuildGetLog(t *testing.T) {
	t.Run("zero filter sends no query", func(t *testing.T) {
		req, err := buildGetLog(LogFilter{})

		require.NoError(t, err)
		assert.Equal(t, "/getlog", req.path)
		assert.Nil(t, req.query)
	})

	t.Run("bounds serialize as unix seconds", func(t *testing.T) {
		start := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
		end := time.Date(2026, 6, 30, 0, 0, 0, 0, time.UTC)

		req, err := buildGetLog(LogFilter{Start: start, End: end})

		require.NoError(t, err)
		assert.Equal(t, "1780272000", req.query.Get("from"))
		assert.Equal(t, "1782777600", req.query.Get("to"))
	})

	t.Run("start after end fails locally", func(t *testing.T) {
		_, err := buildGetLog(LogFilter{
			Start: time.Date(2026, 7, 1, 0, 0, 0, 0, time.UTC),
			End:   time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC),
		})

		assert.ErrorIs(t, err, ErrValidation)
	})

	t.Run("open-ended ranges are allowed", func(t *testing.T) {
		req, err := buildGetLog(LogFilter{Start: time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)})

		require.NoError(t, err)
		assert.Equal(t, "", req.query.Get("to"))
		assert.NotEqual(t, "", req.query.Get("from"))
	})
}
