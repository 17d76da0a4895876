package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSet_Canonical(t *testing.T) {
	tests := []struct {
		name     string
		set      Set
		key      string
		expected string
		found    bool
	}{
		{"protocol spelling", TubeAttributes, "current-jobs-ready", "current-jobs-ready", true},
		{"symbolic spelling", TubeAttributes, "current_jobs_ready", "current-jobs-ready", true},
		{"leading colon", TubeAttributes, ":total_jobs", "total-jobs", true},
		{"mixed case", JobAttributes, "Time_Left", "time-left", true},
		{"surrounding space", JobAttributes, " pri ", "pri", true},
		{"job key on tube set", TubeAttributes, "buries", "", false},
		{"tube key on job set", JobAttributes, "current-watching", "", false},
		{"unknown", JobAttributes, "colour", "", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := tt.set.Canonical(tt.key)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.expected, got)
			assert.Equal(t, tt.found, tt.set.Contains(tt.key))
		})
	}
}

func TestSet_NamesIsCopy(t *testing.T) {
	names := JobAttributes.Names()
	assert.Len(t, names, JobAttributes.Len())
	assert.Equal(t, JobID, names[0])

	names[0] = "mutated"
	assert.Equal(t, JobID, JobAttributes.Names()[0])
	assert.True(t, JobAttributes.Contains(JobID))
}

func TestNewSet_DropsDuplicates(t *testing.T) {
	s := NewSet("pri", "PRI", "time-left", "time_left")
	assert.Equal(t, []string{"pri", "time-left"}, s.Names())
}

func TestCatalogVocabulary(t *testing.T) {
	for _, name := range TubeAttributes.Names() {
		assert.Equal(t, Normalize(name), name, "tube attribute %q must be in protocol form", name)
	}
	for _, name := range JobAttributes.Names() {
		assert.Equal(t, Normalize(name), name, "job attribute %q must be in protocol form", name)
	}
}
