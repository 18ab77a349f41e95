package notify

import (
	"io"
	"log/slog"
	"testing"

	"prgate/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func createTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestHubPublishSubscribe(t *testing.T) {
	h := NewHub(createTestLogger())

	a, cancelA := h.Subscribe("u1")
	b, cancelB := h.Subscribe("u1")
	other, cancelOther := h.Subscribe("u2")
	defer cancelA()
	defer cancelB()
	defer cancelOther()

	n := models.Notification{ID: "n1", UserID: "u1", Type: "deployed"}
	assert.Equal(t, 2, h.Publish(n))

	assert.Equal(t, n, <-a)
	assert.Equal(t, n, <-b)
	select {
	case got := <-other:
		t.Fatalf("unexpected delivery to u2: %+v", got)
	default:
	}
}

func TestHubUnsubscribeClosesChannel(t *testing.T) {
	h := NewHub(createTestLogger())

	ch, cancel := h.Subscribe("u1")
	require.Equal(t, 1, h.Subscribers("u1"))

	cancel()
	cancel()

	_, open := <-ch
	assert.False(t, open)
	assert.Equal(t, 0, h.Subscribers("u1"))
	assert.Equal(t, 0, h.Publish(models.Notification{UserID: "u1"}))
}

func TestHubDropsWhenBufferFull(t *testing.T) {
	h := NewHub(createTestLogger())
	h.buffer = 1

	ch, cancel := h.Subscribe("u1")
	defer cancel()

	assert.Equal(t, 1, h.Publish(models.Notification{ID: "n1", UserID: "u1"}))
	assert.Equal(t, 0, h.Publish(models.Notification{ID: "n2", UserID: "u1"}))
	assert.Equal(t, "n1", (<-ch).ID)
}
