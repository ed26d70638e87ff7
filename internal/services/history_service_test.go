package services

import (
	"io"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"

	apperrors "github.com/Corphon/ViralGen/internal/errors"
	"github.com/Corphon/ViralGen/internal/models"
	"github.com/Corphon/ViralGen/internal/storage"
	"github.com/Corphon/ViralGen/internal/utils"
)

func newHistory(t *testing.T, max int) *HistoryService {
	t.Helper()
	store, err := storage.NewFileStorage(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(store.Close)
	return NewHistoryService(store, max, utils.NewLogger(zapcore.AddSync(io.Discard), utils.ERROR))
}

func sampleResult(topic string, at time.Time) *GenerationResult {
	return &GenerationResult{
		ID:        uuid.NewString(),
		Topic:     topic,
		Category:  models.CategoryTech,
		Vibe:      models.VibeFunny,
		Model:     "m1",
		Raw:       "A|||B|||C",
		Result:    models.StructuredResult{models.PlatformXTwitter: {"tweet": "C"}},
		CreatedAt: at,
	}
}

func TestHistory_SaveGetDelete(t *testing.T) {
	h := newHistory(t, 0)
	r := sampleResult("desk setup", time.Now())

	require.NoError(t, h.Save(r))

	got, err := h.Get(r.ID)
	require.NoError(t, err)
	assert.Equal(t, "desk setup", got.Topic)
	assert.Equal(t, "C", got.Result.Get(models.PlatformXTwitter, "tweet"))

	require.NoError(t, h.Delete(r.ID))
	_, err = h.Get(r.ID)
	assert.True(t, apperrors.IsNotFoundError(err))
	assert.True(t, apperrors.IsNotFoundError(h.Delete(r.ID)))
}

func TestHistory_RejectsInvalidID(t *testing.T) {
	h := newHistory(t, 0)

	_, err := h.Get("../../etc/passwd")
	assert.True(t, apperrors.IsValidationError(err))

	r := sampleResult("x", time.Now())
	r.ID = "not-a-uuid"
	assert.True(t, apperrors.IsValidationError(h.Save(r)))
}

func TestHistory_ListNewestFirst(t *testing.T) {
	h := newHistory(t, 0)
	base := time.Now()
	for i, topic := range []string{"first", "second", "third"} {
		require.NoError(t, h.Save(sampleResult(topic, base.Add(time.Duration(i)*time.Minute))))
	}

	all, err := h.List(0)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "third", all[0].Topic)
	assert.Equal(t, "first", all[2].Topic)

	two, err := h.List(2)
	require.NoError(t, err)
	assert.Len(t, two, 2)
}

func TestHistory_PrunesBeyondMax(t *testing.T) {
	h := newHistory(t, 2)
	for i := 0; i < 4; i++ {
		require.NoError(t, h.Save(sampleResult("t", time.Now())))
	}

	all, err := h.List(0)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}
