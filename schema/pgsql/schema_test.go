package pgsql

import (
	"strings"
	"testing"

	"github.com/fulfillhq/slaengine/pkg/order"
	"github.com/stretchr/testify/require"
)

// The order_status type must carry exactly the vocabulary the engine reads
// and writes, byte for byte. Enum labels are case sensitive, so a casing
// drift rejects every insert and makes stored rows unreadable.
func TestSchemaStatusVocabulary(t *testing.T) {
	statuses := []order.Status{
		order.StatusConfirmed,
		order.StatusAssigned,
		order.StatusPacked,
		order.StatusShipped,
		order.StatusDelivered,
		order.StatusCancelled,
		order.StatusReturned,
	}

	for _, s := range statuses {
		require.Contains(t, Schema, "'"+string(s)+"'")
		require.NotContains(t, Schema, "'"+strings.ToLower(string(s))+"'")
	}
}
