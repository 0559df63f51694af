package inspector

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUnwrapExtensionWrapped(t *testing.T) {
	raw := json.RawMessage(`{"type":"_extensionType","result":{"description":"App","children":[]}}`)
	var node DiagnosticsNode
	require.NoError(t, json.Unmarshal(unwrapExtension(raw), &node))
	require.NotNil(t, node.Description)
	assert.Equal(t, "App", *node.Description)
	assert.Empty(t, node.Children)
}

func TestUnwrapExtensionBare(t *testing.T) {
	raw := json.RawMessage(`{"description":"App","children":[]}`)
	var node DiagnosticsNode
	require.NoError(t, json.Unmarshal(unwrapExtension(raw), &node))
	require.NotNil(t, node.Description)
	assert.Equal(t, "App", *node.Description)
	assert.Empty(t, node.Children)
}

func TestNodeIdentityPrefersValueID(t *testing.T) {
	objID := "obj-1"
	valID := "val-1"
	node := DiagnosticsNode{ObjectID: &objID, ValueID: &valID}
	id, ok := node.Identity()
	require.True(t, ok)
	assert.Equal(t, "val-1", id)
}

func TestNodeIdentityFallsBackToObjectID(t *testing.T) {
	objID := "obj-1"
	node := DiagnosticsNode{ObjectID: &objID}
	id, ok := node.Identity()
	require.True(t, ok)
	assert.Equal(t, "obj-1", id)
}

func TestNodeIdentityAbsent(t *testing.T) {
	node := DiagnosticsNode{}
	_, ok := node.Identity()
	assert.False(t, ok)
}

func TestIsolateAdvertisesExtension(t *testing.T) {
	iso := Isolate{ExtensionRPCs: []string{"ext.flutter.inspector.getRootWidgetSummaryTree"}}
	assert.True(t, iso.AdvertisesExtension(ExtGetRootWidgetSummaryTree))
	assert.False(t, iso.AdvertisesExtension("ext.flutter.other"))
}
