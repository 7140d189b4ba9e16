package store

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeys(t *testing.T) {
	assert.Equal(t, "warren:lab:session:abc", SessionKey("lab", "abc"))
	assert.Equal(t, "warren:lab:session:abc:steps", SessionStepsKey("lab", "abc"))
	assert.Equal(t, "warren:lab:session:abc:lock", SessionLockKey("lab", "abc"))
	assert.Equal(t, "warren:lab:session:abc:events", SessionEventsChannel("lab", "abc"))
	assert.Equal(t, "warren:lab:checkpoint:map", CheckpointKey("lab", SlotMap))
}

func TestSessionIDFromKey(t *testing.T) {
	tests := []struct {
		key    string
		wantID string
		wantOK bool
	}{
		{"warren:lab:session:abc", "abc", true},
		{"warren:lab:session:abc:steps", "", false},
		{"warren:lab:session:abc:lock", "", false},
		{"warren:lab:session:", "", false},
		{"warren:other:session:abc", "", false},
		{"warren:lab:checkpoint:map", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			id, ok := sessionIDFromKey("lab", tt.key)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.wantID, id)
		})
	}
}

func TestSessionScanPattern_EscapesGlobs(t *testing.T) {
	assert.Equal(t, "warren:lab:session:ab*", sessionScanPattern("lab", "ab"))
	assert.Equal(t, `warren:lab:session:a\*b\?\[c\]*`, sessionScanPattern("lab", "a*b?[c]"))
	assert.Equal(t, `warren:l\*b:session:*`, sessionScanPattern("l*b", ""))
}

func TestValidateSessionID(t *testing.T) {
	valid := []string{"s1", "demo", "it-session", "my_run", "0f8fad5b-d9cb-469f-a165-70867728950e"}
	for _, id := range valid {
		assert.NoError(t, ValidateSessionID(id), id)
	}

	invalid := []string{"", "a:b", "ab*", "a?", "[ab]", "-lead", "has space", strings.Repeat("a", MaxSessionIDLength+1)}
	for _, id := range invalid {
		assert.Error(t, ValidateSessionID(id), id)
	}
}
