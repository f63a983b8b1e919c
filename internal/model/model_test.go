package model

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecipientChannelRoundTrip(t *testing.T) {
	for _, r := range []Recipient{User(42), Admin(7)} {
		got, err := ParseChannel(string(r.Channel()))
		require.NoError(t, err)
		assert.Equal(t, r, got)
	}
	assert.Equal(t, Channel("user:42"), User(42).Channel())
	assert.Equal(t, Channel("admin:7"), Admin(7).Channel())
}

func TestParseChannelRejectsMalformed(t *testing.T) {
	for _, s := range []string{"", "user", "user:", "user:abc", "seller:1", "admin:0", "user:-3"} {
		_, err := ParseChannel(s)
		assert.True(t, IsValidation(err), "channel %q", s)
	}
}

func TestMetadataJSON(t *testing.T) {
	tests := []struct {
		name string
		m    Metadata
		want string
	}{
		{"none", NoMetadata(), `{"action":"none"}`},
		{"view order", ViewOrder(12), `{"action":"view_order","order_id":12}`},
		{"inventory", UpdateInventory(5, 2, 10), `{"action":"update_inventory","product_id":5,"stock":2,"threshold":10}`},
		{"customer", ViewCustomer(9), `{"action":"view_customer","customer_id":9}`},
		{"product", ViewProduct(3), `{"action":"view_product","product_id":3}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b, err := json.Marshal(tt.m)
			require.NoError(t, err)
			assert.JSONEq(t, tt.want, string(b))

			var back Metadata
			require.NoError(t, json.Unmarshal(b, &back))
			assert.Equal(t, tt.m, back)
		})
	}
}

func TestMetadataUnknownAction(t *testing.T) {
	var m Metadata
	err := json.Unmarshal([]byte(`{"action":"launch_rocket"}`), &m)
	assert.True(t, IsValidation(err))
}

func TestMetadataNullIsNone(t *testing.T) {
	var m Metadata
	require.NoError(t, json.Unmarshal([]byte(`null`), &m))
	assert.Equal(t, ActionNone, m.Action())
}

func TestDraftValidate(t *testing.T) {
	valid := func() Draft {
		return Draft{
			Recipient: User(1),
			Type:      TypeOrderUpdate,
			Title:     "Order placed",
			Message:   "Your order #3 was placed",
			Metadata:  ViewOrder(3),
		}
	}

	d := valid()
	require.NoError(t, d.Validate())
	assert.Equal(t, PriorityMedium, d.Priority)

	cases := map[string]func(*Draft){
		"unknown type":      func(d *Draft) { d.Type = "gossip" },
		"missing recipient": func(d *Draft) { d.Recipient = Recipient{} },
		"bad role":          func(d *Draft) { d.Recipient = Recipient{Role: "seller", ID: 1} },
		"empty title":       func(d *Draft) { d.Title = "  " },
		"empty message":     func(d *Draft) { d.Message = "" },
		"bad priority":      func(d *Draft) { d.Priority = "urgent" },
		"bad metadata":      func(d *Draft) { d.Metadata = ViewOrder(0) },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			d := valid()
			mutate(&d)
			assert.True(t, IsValidation(d.Validate()))
		})
	}
}

func TestDraftNotificationSetsExactlyOneRecipient(t *testing.T) {
	d := Draft{Recipient: Admin(4), Type: TypeInventoryAlert, Title: "t", Message: "m"}
	n := d.Notification()
	assert.Nil(t, n.UserID)
	require.NotNil(t, n.AdminID)
	assert.Equal(t, int64(4), *n.AdminID)

	r, err := n.Recipient()
	require.NoError(t, err)
	assert.Equal(t, Admin(4), r)
	assert.True(t, n.BelongsTo(Admin(4)))
	assert.False(t, n.BelongsTo(User(4)))
}

func TestPageNormalize(t *testing.T) {
	assert.Equal(t, Page{Page: 1, PageSize: DefaultPageSize}, Page{}.Normalize())
	assert.Equal(t, Page{Page: 2, PageSize: MaxPageSize}, Page{Page: 2, PageSize: 1000}.Normalize())
	assert.Equal(t, 40, Page{Page: 3, PageSize: 20}.Offset())

	huge := Page{Page: math.MaxInt, PageSize: MaxPageSize}
	assert.True(t, IsValidation(huge.Validate()))
	assert.Equal(t, MaxPage, huge.Normalize().Page)
	assert.Positive(t, huge.Normalize().Offset())
	assert.NoError(t, Page{Page: MaxPage}.Validate())
}
