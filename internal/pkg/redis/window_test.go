package redis

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Gopher0727/automod/internal/models"
)

func windowMessage(id, channelID, sender int64, content string) *models.Message {
	guildID := int64(1)
	return &models.Message{
		ID:        id,
		GuildID:   &guildID,
		ChannelID: channelID,
		SenderID:  sender,
		Content:   content,
		CreatedAt: time.Unix(1700000000+id, 0).UTC(),
	}
}

func TestMessageWindow_PushAndGetRecent(t *testing.T) {
	rdb, mr := setupTestRedis(t)
	defer mr.Close()
	w := NewMessageWindow(rdb, 3, time.Minute, nil)
	ctx := context.Background()

	for i := int64(1); i <= 5; i++ {
		require.NoError(t, w.Push(ctx, windowMessage(i, 10, 7, "hi")))
	}
	require.NoError(t, w.Push(ctx, windowMessage(99, 11, 7, "other channel")))

	recent, err := w.GetRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 3)
	assert.Equal(t, []int64{3, 4, 5}, []int64{recent[0].ID, recent[1].ID, recent[2].ID})
	assert.Equal(t, int64(7), recent[0].SenderID)
	assert.True(t, recent[2].CreatedAt.Equal(time.Unix(1700000005, 0)))

	other, err := w.GetRecent(ctx, 11)
	require.NoError(t, err)
	require.Len(t, other, 1)
	assert.Equal(t, "other channel", other[0].Content)
}

func TestMessageWindow_EmptyChannel(t *testing.T) {
	rdb, mr := setupTestRedis(t)
	defer mr.Close()
	w := NewMessageWindow(rdb, 3, time.Minute, nil)

	recent, err := w.GetRecent(context.Background(), 42)
	require.NoError(t, err)
	assert.NotNil(t, recent)
	assert.Empty(t, recent)
}

func TestMessageWindow_Expires(t *testing.T) {
	rdb, mr := setupTestRedis(t)
	defer mr.Close()
	w := NewMessageWindow(rdb, 3, time.Minute, nil)
	ctx := context.Background()

	require.NoError(t, w.Push(ctx, windowMessage(1, 10, 7, "hi")))
	mr.FastForward(2 * time.Minute)

	recent, err := w.GetRecent(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func TestMessageWindow_SkipsMalformedEntries(t *testing.T) {
	rdb, mr := setupTestRedis(t)
	defer mr.Close()
	w := NewMessageWindow(rdb, 3, time.Minute, nil)
	ctx := context.Background()

	require.NoError(t, w.Push(ctx, windowMessage(1, 10, 7, "hi")))
	require.NoError(t, rdb.RPush(ctx, windowKey(10), "not json").Err())

	recent, err := w.GetRecent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, int64(1), recent[0].ID)
}

func TestMessageWindow_Clear(t *testing.T) {
	rdb, mr := setupTestRedis(t)
	defer mr.Close()
	w := NewMessageWindow(rdb, 3, time.Minute, nil)
	ctx := context.Background()

	require.NoError(t, w.Push(ctx, windowMessage(1, 10, 7, "hi")))
	require.NoError(t, w.Clear(ctx, 10))

	recent, err := w.GetRecent(ctx, 10)
	require.NoError(t, err)
	assert.Empty(t, recent)
}

func TestMessageWindow_ServerDown(t *testing.T) {
	rdb, mr := setupTestRedis(t)
	w := NewMessageWindow(rdb, 3, time.Minute, nil)
	mr.Close()

	_, err := w.GetRecent(context.Background(), 10)
	assert.Error(t, err)
}
