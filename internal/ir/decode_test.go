package ir

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAttributesFromMap(t *testing.T) {
	raw := map[string]any{
		"severity":         1,
		"description_text": "issue (EWM-999)",
		"done":             false,
		"labels":           []any{"a", "b"},
		"due": map[string]any{
			"value":  "2024-03-01T10:00:00Z",
			"type":   "date",
			"traits": map[string]any{"pattern": "2006-01-02"},
		},
		"blob": map[string]any{"nested": 1},
	}

	_, err := AttributesFromMap(raw)
	require.Error(t, err, "maps without a value key are not attributes")

	delete(raw, "blob")
	attrs, err := AttributesFromMap(raw)
	require.NoError(t, err)

	assert.Equal(t, AttributeProperties{Value: Long(1), Type: AttrLong}, attrs["severity"])
	assert.Equal(t, AttributeProperties{Value: String("issue (EWM-999)"), Type: AttrString}, attrs["description_text"])
	assert.Equal(t, AttributeProperties{Value: Bool(false), Type: AttrBoolean}, attrs["done"])
	assert.Equal(t, AttributeProperties{Value: StringList{"a", "b"}, Type: AttrMultiValue}, attrs["labels"])
	assert.Equal(t, AttributeProperties{
		Value:  NewInstant(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)),
		Type:   AttrDate,
		Traits: Traits{TraitPattern: "2006-01-02"},
	}, attrs["due"])
}

func TestAttributesToMapRoundTrip(t *testing.T) {
	attrs := Attributes{
		"status": {Value: String("open"), Type: AttrEnum, Traits: Traits{TraitGroup: "g"}},
		"count":  {Value: Long(3), Type: AttrLong},
	}

	back, err := AttributesFromMap(AttributesToMap(attrs))
	require.NoError(t, err)
	assert.Equal(t, attrs, back)
}
