package core

import (
	"testing"

	"github.com/BranchIntl/tubecheck/catalog"
	"github.com/stretchr/testify/assert"
)

func TestNewJob(t *testing.T) {
	raw := RawJob{
		ID: "42",
		Stats: map[string]string{
			"id":        "42",
			"tube":      "mailer",
			"state":     "delayed",
			"pri":       "1024",
			"age":       "12",
			"delay":     "30",
			"ttr":       "60",
			"time-left": "18",
			"file":      "0",
			"reserves":  "1",
			"timeouts":  "2",
			"releases":  "3",
			"buries":    "4",
			"kicks":     "5",
		},
		Body: []byte("hello"),
	}

	j := NewJob("localhost:11300", raw)

	assert.Equal(t, "42", j.ID)
	assert.Equal(t, "localhost:11300", j.Member)
	assert.Equal(t, "mailer", j.Tube)
	assert.Equal(t, "delayed", j.State)
	assert.Equal(t, int64(1024), j.Pri)
	assert.Equal(t, int64(12), j.Age)
	assert.Equal(t, int64(30), j.Delay)
	assert.Equal(t, int64(60), j.TTR)
	assert.Equal(t, int64(18), j.TimeLeft)
	assert.Equal(t, int64(1), j.Reserves)
	assert.Equal(t, int64(2), j.Timeouts)
	assert.Equal(t, int64(3), j.Releases)
	assert.Equal(t, int64(4), j.Buries)
	assert.Equal(t, int64(5), j.Kicks)
	assert.Equal(t, []byte("hello"), j.Body)
	assert.Empty(t, j.Connection)
	assert.Equal(t, "localhost:11300#42", j.Key())
}

func TestJob_Attribute(t *testing.T) {
	j := &Job{ID: "7", Member: "m", Tube: "123", State: "ready", Buries: 6, Body: []byte("payload")}

	tests := []struct {
		key      string
		expected any
		found    bool
	}{
		{"id", int64(7), true},
		{"tube", "123", true},
		{"state", "ready", true},
		{"buries", int64(6), true},
		{"BURIES", int64(6), true},
		{":time_left", int64(0), true},
		{"body", "payload", true},
		{"connection", nil, false},
		{"current-jobs-ready", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			v, ok := j.Attribute(tt.key)
			assert.Equal(t, tt.found, ok)
			assert.Equal(t, tt.expected, v)
		})
	}

	j.Connection = "producer-1"
	v, ok := j.Attribute("connection")
	assert.True(t, ok)
	assert.Equal(t, "producer-1", v)
}

func TestJob_AttributeForEveryCatalogName(t *testing.T) {
	j := &Job{ID: "uuid-like-id", Connection: "c"}
	for _, name := range catalog.JobAttributes.Names() {
		_, ok := j.Attribute(name)
		assert.True(t, ok, "attribute %s", name)
	}
	assert.Len(t, j.ToHash(), catalog.JobAttributes.Len())

	v, _ := j.Attribute("id")
	assert.Equal(t, "uuid-like-id", v)
}
