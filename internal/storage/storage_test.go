package storage

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/reelist/engine/pkg/models"
)

func TestDecodeStrings_MalformedDegradesToNil(t *testing.T) {
	assert.Nil(t, DecodeStrings(nil))
	assert.Nil(t, DecodeStrings([]byte(`{broken`)))
	assert.Nil(t, DecodeStrings([]byte(`42`)))
	assert.Equal(t, []string{"Drama"}, DecodeStrings([]byte(`["Drama"]`)))
}

func TestDecodeVector_MalformedDegradesToNil(t *testing.T) {
	assert.Nil(t, DecodeVector([]byte(`"not a vector"`)))
	assert.Equal(t, []float64{1, 0}, DecodeVector([]byte(`[1,0]`)))
}

func TestDecodeContext_MalformedDegradesToNil(t *testing.T) {
	assert.Nil(t, DecodeContext(nil))
	assert.Nil(t, DecodeContext([]byte(`{broken`)))

	ctx := DecodeContext([]byte(`{"time_of_day":"evening","experiment_name":"x","experiment_variant":"A"}`))
	assert.Equal(t, &models.EventContext{
		TimeOfDay:         "evening",
		ExperimentName:    "x",
		ExperimentVariant: "A",
	}, ctx)
}

func TestEncodeContext_NilStaysNull(t *testing.T) {
	assert.Nil(t, EncodeContext(nil))
}

func TestCanonicalPair(t *testing.T) {
	a := uuid.MustParse("aaaaaaaa-0000-0000-0000-000000000000")
	b := uuid.MustParse("bbbbbbbb-0000-0000-0000-000000000000")

	x, y := CanonicalPair(a, b)
	assert.Equal(t, a, x)
	assert.Equal(t, b, y)

	x, y = CanonicalPair(b, a)
	assert.Equal(t, a, x)
	assert.Equal(t, b, y)
}
