package models

import (
	"database/sql"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
)

// ObservationSuite is a test suite for Observation operations.
type ObservationSuite struct {
	suite.Suite
}

func TestObservationSuite(t *testing.T) {
	suite.Run(t, new(ObservationSuite))
}

func (s *ObservationSuite) TestObservationTypeConstants() {
	s.Equal(ObservationType("discovery"), ObsTypeDiscovery)
	s.Equal(ObservationType("bugfix"), ObsTypeBugfix)
	s.Equal(ObservationType("implementation"), ObsTypeImplementation)
	s.Equal(ObservationType("architecture"), ObsTypeArchitecture)
	s.Equal(ObservationType("refactor"), ObsTypeRefactor)
	s.Equal(ObservationType("configuration"), ObsTypeConfiguration)
	s.Equal(ObservationType("documentation"), ObsTypeDocumentation)
	s.Equal(ObservationType("testing"), ObsTypeTesting)
	s.Len(ObservationTypes, 8)
}

func (s *ObservationSuite) TestIsWork_TableDriven() {
	tests := []struct {
		typ      ObservationType
		expected bool
	}{
		{ObsTypeImplementation, true},
		{ObsTypeBugfix, true},
		{ObsTypeDiscovery, false},
		{ObsTypeRefactor, false},
	}
	for _, tt := range tests {
		s.Run(string(tt.typ), func() {
			s.Equal(tt.expected, tt.typ.IsWork())
		})
	}
}

func (s *ObservationSuite) TestNewObservation_InvalidTypeFallsBack() {
	obs := NewObservation("sess", "proj", CLIGemini, ObservationType("feature"), "t", time.Unix(100, 0))
	s.Equal(ObsTypeDiscovery, obs.Type)
	s.Equal(int64(100), obs.CreatedAtEpoch)
	s.Equal("t", obs.Title.String)
}

func (s *ObservationSuite) TestTitleOr() {
	obs := &Observation{}
	s.Equal("Untitled", obs.TitleOr("Untitled"))
	obs.Title = sql.NullString{String: "Fix bug", Valid: true}
	s.Equal("Fix bug", obs.TitleOr("Untitled"))
}

func (s *ObservationSuite) TestObservation_MarshalJSON() {
	obs := &Observation{
		ID:            1,
		Project:       "test-project",
		CLITool:       CLIClaudeCode,
		Type:          ObsTypeDiscovery,
		Title:         sql.NullString{String: "Test Title", Valid: true},
		FilesModified: JSONStringArray{"a.go"},
	}

	data, err := json.Marshal(obs)
	s.NoError(err)
	s.Contains(string(data), `"id":1`)
	s.Contains(string(data), `"project":"test-project"`)
	s.Contains(string(data), `"type":"discovery"`)
	s.Contains(string(data), `"title":"Test Title"`)
	s.Contains(string(data), `"files_modified":["a.go"]`)
	s.NotContains(string(data), `"narrative"`)
}

// TestJSONStringArray tests JSONStringArray scanning.
func TestJSONStringArray(t *testing.T) {
	tests := []struct {
		input    interface{}
		name     string
		expected JSONStringArray
		wantErr  bool
	}{
		{name: "nil input", input: nil, expected: nil},
		{name: "empty string", input: "", expected: nil},
		{name: "json array string", input: `["item1", "item2"]`, expected: JSONStringArray{"item1", "item2"}},
		{name: "json array bytes", input: []byte(`["a", "b", "c"]`), expected: JSONStringArray{"a", "b", "c"}},
		{name: "unsupported type", input: 42, wantErr: true},
		{name: "malformed json", input: `[`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var arr JSONStringArray
			err := arr.Scan(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
				assert.Equal(t, tt.expected, arr)
			}
		})
	}
}

func TestJSONStringArray_Value(t *testing.T) {
	v, err := JSONStringArray(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, "[]", v)

	v, err = JSONStringArray{"x", "y"}.Value()
	require.NoError(t, err)
	assert.Equal(t, `["x","y"]`, v)
}

func TestDedup(t *testing.T) {
	got := Dedup([]string{"a.go", "b.go", ""}, []string{"b.go", "c.go", "a.go"})
	assert.Equal(t, []string{"a.go", "b.go", "c.go"}, got)
	assert.Nil(t, Dedup())
}
